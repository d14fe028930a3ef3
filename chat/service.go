// Package chat runs prompt submissions against a response engine and applies
// the replies to the conversation store.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/hrygo/yougpt/ai"
	"github.com/hrygo/yougpt/ai/metrics"
	"github.com/hrygo/yougpt/store"
)

// FallbackMessage replaces the reply whenever an engine fails.
const FallbackMessage = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment."

// Service statuses.
const (
	StatusReady    = "ready"
	StatusThinking = "thinking"
)

const (
	defaultGenerateTimeout = 2 * time.Minute
	defaultMaxConcurrent   = 16
)

var (
	ErrEmptyPrompt          = errors.New("prompt is empty")
	ErrBusy                 = errors.New("a reply is already being generated for this conversation")
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrProtectedConversation is returned when deleting the welcome conversation.
	ErrProtectedConversation = errors.New("conversation cannot be deleted")
	ErrClosed                = errors.New("chat service is closed")
)

// Option configures a Service.
type Option func(*Service)

// WithMetrics records request, message and failure metrics.
func WithMetrics(m *metrics.PrometheusExporter) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEventBus publishes chat events to bus.
func WithEventBus(bus *EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithEngineName sets the engine label used in metrics and logs.
func WithEngineName(name string) Option {
	return func(s *Service) { s.engineName = name }
}

// WithGenerateTimeout bounds a single Generate call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxConcurrent bounds the number of engine calls running at once across
// all conversations. Submissions beyond the limit wait in their goroutine.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.global = semaphore.NewWeighted(int64(n))
		}
	}
}

// Service is the single entry point for user actions on conversations.
type Service struct {
	store   *store.Store
	engine  ai.Engine
	metrics *metrics.PrometheusExporter
	bus     *EventBus
	events  *dispatcher
	global  *semaphore.Weighted

	engineName string
	timeout    time.Duration

	// gates holds one weight-1 semaphore per conversation with a reply in flight.
	gates    map[string]*semaphore.Weighted
	gatesMu  sync.Mutex
	inFlight atomic.Int64
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// NewService creates a chat service over st and engine.
func NewService(st *store.Store, engine ai.Engine, opts ...Option) *Service {
	s := &Service{
		store:      st,
		engine:     engine,
		engineName: "mock",
		timeout:    defaultGenerateTimeout,
		global:     semaphore.NewWeighted(defaultMaxConcurrent),
		gates:      make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus != nil {
		s.events = newDispatcher(s.bus)
	}
	s.syncConversationGauge()
	return s
}

// Store returns the underlying conversation store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Engine returns the response engine.
func (s *Service) Engine() ai.Engine {
	return s.engine
}

// CreateConversation creates a new active conversation.
func (s *Service) CreateConversation(_ context.Context) *store.Conversation {
	conv := s.store.CreateConversation()
	s.syncConversationGauge()
	s.publish(&Event{Type: EventConversationCreated, ConversationID: conv.ID})
	return conv
}

// SelectConversation makes id active. Unknown ids are ignored.
func (s *Service) SelectConversation(_ context.Context, id string) {
	if _, ok := s.store.GetConversation(id); !ok {
		return
	}
	s.store.SelectConversation(id)
	s.publish(&Event{Type: EventConversationSelected, ConversationID: id})
}

// DeleteConversation removes id. The welcome conversation is protected; unknown
// ids are ignored.
func (s *Service) DeleteConversation(_ context.Context, id string) error {
	if id == store.WelcomeConversationID {
		return ErrProtectedConversation
	}
	if _, ok := s.store.GetConversation(id); !ok {
		return nil
	}
	s.store.DeleteConversation(id)
	s.syncConversationGauge()
	s.publish(&Event{Type: EventConversationDeleted, ConversationID: id})
	return nil
}

// Submit appends prompt to the conversation and starts generating a reply.
//
// The user message is appended before Submit returns. The reply is appended to
// the same conversation once the engine finishes, or FallbackMessage if it fails.
// Only one reply per conversation may be in flight. Events are delivered
// asynchronously, so Submit never waits for listeners.
func (s *Service) Submit(_ context.Context, conversationID, prompt string) (*Pending, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if _, ok := s.store.GetConversation(conversationID); !ok {
		return nil, ErrConversationNotFound
	}
	if !s.acquire(conversationID) {
		return nil, ErrBusy
	}

	// History is read under the gate so it includes the previous reply.
	conv, ok := s.store.GetConversation(conversationID)
	if !ok {
		s.release(conversationID)
		return nil, ErrConversationNotFound
	}
	history := toHistory(conv.Messages)
	userMsg := s.store.AppendUserMessage(conversationID, prompt)
	if userMsg == nil {
		// Deleted between the lookup and the append.
		s.release(conversationID)
		return nil, ErrConversationNotFound
	}
	s.recordMessage(store.RoleUser)
	s.publish(&Event{Type: EventUserMessage, ConversationID: conversationID, Message: userMsg})

	p := &Pending{
		ConversationID: conversationID,
		UserMessage:    *userMsg,
		done:           make(chan struct{}),
	}

	s.inFlight.Add(1)
	if s.metrics != nil {
		s.metrics.IncInFlight()
	}
	s.wg.Add(1)
	go s.respond(conversationID, prompt, history, p)

	return p, nil
}

// respond runs the engine and applies the result. Cleanup runs in reverse order:
// in-flight counter, gate, then Done. Events are only queued here, so a slow
// listener never holds the gate or delays the reply.
func (s *Service) respond(conversationID, prompt string, history []ai.Message, p *Pending) {
	defer s.wg.Done()
	defer close(p.done)
	defer s.release(conversationID)
	defer func() {
		s.inFlight.Add(-1)
		if s.metrics != nil {
			s.metrics.DecInFlight()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.generate(ctx, prompt, history)
	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordChatRequest(s.engineName, latency, err == nil)
	}

	if err != nil {
		reason := ai.FailureReason(err)
		slog.Warn("Generation failed, replying with fallback",
			"conversation_id", conversationID,
			"engine", s.engineName,
			"reason", reason,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordGenerationFailure(reason)
		}
		reply = FallbackMessage
	}
	p.err = err

	msg := s.store.AppendAssistantMessage(conversationID, reply)
	if err != nil {
		s.publish(&Event{Type: EventGenerationFailed, ConversationID: conversationID, Reason: ai.FailureReason(err)})
	}
	if msg == nil {
		slog.Info("Dropping reply for deleted conversation", "conversation_id", conversationID)
		return
	}
	p.reply = msg
	s.recordMessage(store.RoleAssistant)
	s.publish(&Event{Type: EventAssistantResponse, ConversationID: conversationID, Message: msg})

	slog.Debug("Reply applied",
		"conversation_id", conversationID,
		"latency_ms", latency.Milliseconds(),
		"fallback", err != nil,
	)
}

// generate calls the engine, converting a panic into a generation failure.
func (s *Service) generate(ctx context.Context, prompt string, history []ai.Message) (reply string, err error) {
	if err := s.global.Acquire(ctx, 1); err != nil {
		return "", &ai.GenerationError{Err: err, Engine: s.engineName, Reason: ai.ReasonCanceled}
	}
	defer s.global.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = &ai.GenerationError{Err: fmt.Errorf("panic: %v", r), Engine: s.engineName, Reason: ai.ReasonUnavailable}
		}
	}()

	reply, err = s.engine.Generate(ctx, prompt, history)
	switch {
	case err != nil && !errors.Is(err, ai.ErrGenerationFailure):
		err = &ai.GenerationError{Err: err, Engine: s.engineName, Reason: ai.ReasonTransport}
	case err == nil && strings.TrimSpace(reply) == "":
		err = &ai.GenerationError{Engine: s.engineName, Reason: ai.ReasonEmptyResponse}
	}
	return reply, err
}

// IsLoading reports whether a reply for conversationID is in flight.
func (s *Service) IsLoading(conversationID string) bool {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()
	_, ok := s.gates[conversationID]
	return ok
}

// Status is StatusThinking while any reply is in flight.
func (s *Service) Status() string {
	if s.inFlight.Load() > 0 {
		return StatusThinking
	}
	return StatusReady
}

// Close stops accepting submissions, waits for in-flight replies and then for
// pending events to reach listeners, or for ctx.
func (s *Service) Close(ctx context.Context) error {
	s.closed.Store(true)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.events != nil {
		return s.events.close(ctx)
	}
	return nil
}

func (s *Service) acquire(conversationID string) bool {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()
	gate, ok := s.gates[conversationID]
	if !ok {
		gate = semaphore.NewWeighted(1)
		s.gates[conversationID] = gate
	}
	return gate.TryAcquire(1)
}

func (s *Service) release(conversationID string) {
	s.gatesMu.Lock()
	defer s.gatesMu.Unlock()
	if gate, ok := s.gates[conversationID]; ok {
		gate.Release(1)
		delete(s.gates, conversationID)
	}
}

func (s *Service) publish(event *Event) {
	if s.events == nil {
		return
	}
	s.events.enqueue(event)
}

func (s *Service) recordMessage(role store.Role) {
	if s.metrics != nil {
		s.metrics.RecordMessage(string(role))
	}
}

func (s *Service) syncConversationGauge() {
	if s.metrics != nil {
		s.metrics.SetConversations(s.store.Len())
	}
}

func toHistory(messages []store.Message) []ai.Message {
	history := make([]ai.Message, 0, len(messages))
	for _, m := range messages {
		history = append(history, ai.Message{Role: string(m.Role), Content: m.Content})
	}
	return history
}

// Pending tracks one submitted prompt until its reply has been applied.
type Pending struct {
	reply          *store.Message
	err            error
	done           chan struct{}
	ConversationID string
	UserMessage    store.Message
}

// Done is closed once the reply (or fallback) has been applied and the
// conversation's loading flag is cleared.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until Done or ctx is cancelled.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reply returns the applied assistant message, or nil when the conversation was
// deleted before the reply arrived. Valid after Done.
func (p *Pending) Reply() *store.Message {
	<-p.done
	return p.reply
}

// Err returns the engine error that triggered the fallback, or nil. Valid after Done.
func (p *Pending) Err() error {
	<-p.done
	return p.err
}
