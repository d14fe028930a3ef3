package store

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Welcome conversation seeded into every new store.
const (
	WelcomeConversationID = "welcome"
	WelcomeTitle          = "Welcome to YOUGPT"
	WelcomeGreeting       = "Hello! I'm YOUGPT, your collaborative AI partner powered by TinyLlama. " +
		"I'm here to help you with questions, creative tasks, coding, and much more. How can I assist you today?"
)

const (
	// DefaultTitle is shown until the first user message names the conversation.
	DefaultTitle = "New Conversation"
	// TitleMaxLen is the rune length of a title derived from the first user message.
	TitleMaxLen = 30
)

// Message is one turn of a conversation. Messages are never modified after creation.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// Conversation is a titled, append-only thread of messages.
type Conversation struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

func (c *Conversation) clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// Snapshot is a read-only copy of the store handed to the presentation layer.
type Snapshot struct {
	ActiveConversationID string          `json:"activeConversationId"`
	Conversations        []*Conversation `json:"conversations"`
}

// Active returns the active conversation of the snapshot, or nil when none is active.
func (s *Snapshot) Active() *Conversation {
	for _, c := range s.Conversations {
		if c.ID == s.ActiveConversationID {
			return c
		}
	}
	return nil
}
