package store

import (
	"strconv"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/yougpt/internal/strutil"
)

// Store owns the ordered conversation list and the active conversation pointer.
//
// Every operation is total: unknown ids turn mutations into no-ops instead of errors.
// Mutations are serialized under a single lock, so concurrent callers never
// interleave appends on the same conversation.
type Store struct {
	now   func() time.Time
	newID func() string

	conversations []*Conversation
	activeID      string
	lastCreated   int64

	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMessageIDs replaces the message id generator.
func WithMessageIDs(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// New creates a store seeded with the welcome conversation, which starts out active.
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: shortuuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}

	ts := s.now()
	s.conversations = []*Conversation{{
		ID:        WelcomeConversationID,
		Title:     WelcomeTitle,
		CreatedAt: ts,
		Messages: []Message{{
			ID:        s.newID(),
			Role:      RoleAssistant,
			Content:   WelcomeGreeting,
			Timestamp: ts,
		}},
	}}
	s.activeID = WelcomeConversationID
	return s
}

// CreateConversation inserts an empty conversation at the front of the list and makes it active.
func (s *Store) CreateConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:        s.nextConversationIDLocked(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: s.now(),
	}
	s.conversations = append([]*Conversation{conv}, s.conversations...)
	s.activeID = conv.ID
	return conv.clone()
}

// SelectConversation makes id active. Unknown ids are ignored.
func (s *Store) SelectConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return
	}
	s.activeID = id
}

// DeleteConversation removes id. Deleting the active conversation promotes the
// first remaining one, or leaves nothing active when the list is empty.
func (s *Store) DeleteConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.activeID != id {
		return
	}
	if len(s.conversations) > 0 {
		s.activeID = s.conversations[0].ID
	} else {
		s.activeID = ""
	}
}

// AppendUserMessage appends a user message. The first message of a conversation also
// becomes its title, truncated to TitleMaxLen runes.
// Returns nil when the conversation does not exist.
func (s *Store) AppendUserMessage(conversationID, text string) *Message {
	return s.appendMessage(conversationID, RoleUser, text)
}

// AppendAssistantMessage appends an assistant message.
// Returns nil when the conversation does not exist.
func (s *Store) AppendAssistantMessage(conversationID, text string) *Message {
	return s.appendMessage(conversationID, RoleAssistant, text)
}

func (s *Store) appendMessage(conversationID string, role Role, text string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(conversationID)
	if idx < 0 {
		return nil
	}
	conv := s.conversations[idx]

	if role == RoleUser && len(conv.Messages) == 0 {
		conv.Title = strutil.Truncate(text, TitleMaxLen)
	}

	msg := Message{
		ID:        s.newID(),
		Role:      role,
		Content:   text,
		Timestamp: s.now(),
	}
	conv.Messages = append(conv.Messages, msg)
	return &msg
}

// GetConversation returns a copy of the conversation with the given id.
func (s *Store) GetConversation(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, false
	}
	return s.conversations[idx].clone(), true
}

// ActiveConversationID returns the active id and whether any conversation is active.
func (s *Store) ActiveConversationID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Len returns the number of conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Snapshot returns a deep copy of the store state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		ActiveConversationID: s.activeID,
		Conversations:        make([]*Conversation, len(s.conversations)),
	}
	for i, c := range s.conversations {
		snap.Conversations[i] = c.clone()
	}
	return snap
}

func (s *Store) indexLocked(id string) int {
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// nextConversationIDLocked derives ids from the clock in milliseconds, bumping past
// the previous id so two creations within the same millisecond stay distinct.
func (s *Store) nextConversationIDLocked() string {
	ms := s.now().UnixMilli()
	if ms <= s.lastCreated {
		ms = s.lastCreated + 1
	}
	s.lastCreated = ms
	return strconv.FormatInt(ms, 10)
}
