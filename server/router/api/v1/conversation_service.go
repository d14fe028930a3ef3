package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/yougpt/chat"
	"github.com/hrygo/yougpt/internal/cache"
	"github.com/hrygo/yougpt/plugin/markdown"
	"github.com/hrygo/yougpt/store"
)

// renderCacheSize bounds the rendered messages kept in memory. Messages are
// immutable, so entries only leave the cache by eviction or expiry.
const (
	renderCacheSize = 2048
	renderCacheTTL  = 30 * time.Minute
)

type renderedMessage struct {
	html       string
	codeBlocks []markdown.CodeBlock
}

type ConversationService struct {
	Chat     *chat.Service
	Markdown *markdown.Renderer

	rendered *cache.LRU[string, renderedMessage]
}

func NewConversationService(svc *chat.Service, renderer *markdown.Renderer) *ConversationService {
	return &ConversationService{
		Chat:     svc,
		Markdown: renderer,
		rendered: cache.NewLRU[string, renderedMessage](renderCacheSize, renderCacheTTL),
	}
}

// Message is a store message with optional rendered HTML.
type Message struct {
	store.Message
	HTML       string               `json:"html,omitempty"`
	CodeBlocks []markdown.CodeBlock `json:"codeBlocks,omitempty"`
}

type Conversation struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"isLoading"`
}

type ListConversationsResponse struct {
	ActiveConversationID string          `json:"activeConversationId"`
	Status               string          `json:"status"`
	Conversations        []*Conversation `json:"conversations"`
}

type SendMessageRequest struct {
	Prompt string `json:"prompt"`
}

type SendMessageResponse struct {
	ConversationID string        `json:"conversationId"`
	Message        store.Message `json:"message"`
}

func (s *ConversationService) ListConversations(c echo.Context) error {
	render := c.QueryParam("render") == "html"
	snapshot := s.Chat.Store().Snapshot()

	response := &ListConversationsResponse{
		ActiveConversationID: snapshot.ActiveConversationID,
		Status:               s.Chat.Status(),
		Conversations:        make([]*Conversation, 0, len(snapshot.Conversations)),
	}
	for _, conv := range snapshot.Conversations {
		view, err := s.convertConversation(conv, render)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render conversation").SetInternal(err)
		}
		response.Conversations = append(response.Conversations, view)
	}
	return c.JSON(http.StatusOK, response)
}

func (s *ConversationService) CreateConversation(c echo.Context) error {
	conv := s.Chat.CreateConversation(c.Request().Context())
	view, err := s.convertConversation(conv, false)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to convert conversation").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (s *ConversationService) GetConversation(c echo.Context) error {
	conv, ok := s.Chat.Store().GetConversation(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	view, err := s.convertConversation(conv, c.QueryParam("render") == "html")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render conversation").SetInternal(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *ConversationService) SelectConversation(c echo.Context) error {
	s.Chat.SelectConversation(c.Request().Context(), c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (s *ConversationService) DeleteConversation(c echo.Context) error {
	id := c.Param("id")
	conv, found := s.Chat.Store().GetConversation(id)
	if err := s.Chat.DeleteConversation(c.Request().Context(), id); err != nil {
		if errors.Is(err, chat.ErrProtectedConversation) {
			return echo.NewHTTPError(http.StatusForbidden, "the welcome conversation cannot be deleted")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete conversation").SetInternal(err)
	}
	if found {
		s.evictRendered(conv)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *ConversationService) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}

	id := c.Param("id")
	pending, err := s.Chat.Submit(c.Request().Context(), id, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyPrompt):
			return echo.NewHTTPError(http.StatusBadRequest, "prompt must not be empty")
		case errors.Is(err, chat.ErrConversationNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		case errors.Is(err, chat.ErrBusy):
			return echo.NewHTTPError(http.StatusConflict, "a reply is already being generated for this conversation")
		case errors.Is(err, chat.ErrClosed):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "server is shutting down")
		}
		slog.Error("failed to submit prompt", "conversation_id", id, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to submit prompt").SetInternal(err)
	}

	return c.JSON(http.StatusAccepted, &SendMessageResponse{
		ConversationID: pending.ConversationID,
		Message:        pending.UserMessage,
	})
}

func (s *ConversationService) convertConversation(conv *store.Conversation, render bool) (*Conversation, error) {
	view := &Conversation{
		CreatedAt: conv.CreatedAt,
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  make([]Message, 0, len(conv.Messages)),
		IsLoading: s.Chat.IsLoading(conv.ID),
	}
	for _, m := range conv.Messages {
		msg := Message{Message: m}
		if render {
			r, err := s.render(m)
			if err != nil {
				return nil, err
			}
			msg.HTML = r.html
			msg.CodeBlocks = r.codeBlocks
		}
		view.Messages = append(view.Messages, msg)
	}
	return view, nil
}

// evictRendered drops the cached HTML of a deleted conversation. A reply that
// lands after the snapshot was taken is dropped by the store anyway.
func (s *ConversationService) evictRendered(conv *store.Conversation) {
	evicted := 0
	for _, m := range conv.Messages {
		if s.rendered.Remove(m.ID) {
			evicted++
		}
	}
	slog.Debug("Evicted rendered messages", "conversation_id", conv.ID, "evicted", evicted, "cached", s.rendered.Len())
}

func (s *ConversationService) render(m store.Message) (renderedMessage, error) {
	if r, ok := s.rendered.Get(m.ID); ok {
		return r, nil
	}
	html, err := s.Markdown.Render(m.Content)
	if err != nil {
		return renderedMessage{}, errors.Wrapf(err, "message %s", m.ID)
	}
	r := renderedMessage{html: html, codeBlocks: s.Markdown.CodeBlocks(m.Content)}
	s.rendered.Set(m.ID, r)
	return r, nil
}
