package store

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	seq := 0
	return New(
		WithClock(func() time.Time { return base }),
		WithMessageIDs(func() string {
			seq++
			return fmt.Sprintf("msg-%d", seq)
		}),
	)
}

func conversationIDs(s *Store) []string {
	snap := s.Snapshot()
	ids := make([]string, 0, len(snap.Conversations))
	for _, c := range snap.Conversations {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNew_SeedsWelcomeConversation(t *testing.T) {
	s := newTestStore()

	snap := s.Snapshot()
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, WelcomeConversationID, snap.ActiveConversationID)

	welcome := snap.Conversations[0]
	assert.Equal(t, WelcomeTitle, welcome.Title)
	require.Len(t, welcome.Messages, 1)
	assert.Equal(t, RoleAssistant, welcome.Messages[0].Role)
	assert.Equal(t, WelcomeGreeting, welcome.Messages[0].Content)
}

func TestCreateConversation(t *testing.T) {
	s := newTestStore()

	first := s.CreateConversation()
	second := s.CreateConversation()

	assert.NotEqual(t, first.ID, second.ID, "ids created within the same millisecond must differ")
	assert.Equal(t, DefaultTitle, first.Title)
	assert.Empty(t, first.Messages)

	assert.Equal(t, []string{second.ID, first.ID, WelcomeConversationID}, conversationIDs(s))

	active, ok := s.ActiveConversationID()
	require.True(t, ok)
	assert.Equal(t, second.ID, active)
}

func TestSelectConversation(t *testing.T) {
	s := newTestStore()
	conv := s.CreateConversation()

	t.Run("existing id becomes active", func(t *testing.T) {
		s.SelectConversation(WelcomeConversationID)
		active, _ := s.ActiveConversationID()
		assert.Equal(t, WelcomeConversationID, active)
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		s.SelectConversation(conv.ID)
		s.SelectConversation("does-not-exist")
		active, _ := s.ActiveConversationID()
		assert.Equal(t, conv.ID, active)
	})
}

func TestDeleteConversation(t *testing.T) {
	t.Run("create then delete restores the list", func(t *testing.T) {
		s := newTestStore()
		before := conversationIDs(s)

		conv := s.CreateConversation()
		s.DeleteConversation(conv.ID)

		assert.Equal(t, before, conversationIDs(s))
	})

	t.Run("deleting active promotes first remaining", func(t *testing.T) {
		s := newTestStore()
		older := s.CreateConversation()
		newer := s.CreateConversation()

		s.DeleteConversation(newer.ID)

		active, ok := s.ActiveConversationID()
		require.True(t, ok)
		assert.Equal(t, older.ID, active)
	})

	t.Run("deleting inactive keeps active", func(t *testing.T) {
		s := newTestStore()
		conv := s.CreateConversation()

		s.DeleteConversation(WelcomeConversationID)

		active, _ := s.ActiveConversationID()
		assert.Equal(t, conv.ID, active)
		assert.Equal(t, []string{conv.ID}, conversationIDs(s))
	})

	t.Run("deleting the only conversation leaves none active", func(t *testing.T) {
		s := newTestStore()

		s.DeleteConversation(WelcomeConversationID)

		active, ok := s.ActiveConversationID()
		assert.False(t, ok)
		assert.Empty(t, active)
		assert.Equal(t, 0, s.Len())
		assert.Nil(t, s.Snapshot().Active())
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := newTestStore()
		s.DeleteConversation("missing")
		assert.Equal(t, 1, s.Len())
	})
}

func TestAppendUserMessage_Title(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		title string
	}{
		{"short text becomes title", "Hello there", "Hello there"},
		{"thirty runes kept", strings.Repeat("x", 30), strings.Repeat("x", 30)},
		{"long text truncated", "Tell me everything about the Go scheduler", "Tell me everything about the G..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			conv := s.CreateConversation()

			msg := s.AppendUserMessage(conv.ID, tt.text)
			require.NotNil(t, msg)
			assert.Equal(t, RoleUser, msg.Role)
			assert.Equal(t, tt.text, msg.Content)

			got, ok := s.GetConversation(conv.ID)
			require.True(t, ok)
			assert.Equal(t, tt.title, got.Title)
		})
	}

	t.Run("second message keeps the title", func(t *testing.T) {
		s := newTestStore()
		conv := s.CreateConversation()

		s.AppendUserMessage(conv.ID, "first")
		s.AppendUserMessage(conv.ID, "second")

		got, _ := s.GetConversation(conv.ID)
		assert.Equal(t, "first", got.Title)
		assert.Len(t, got.Messages, 2)
	})

	t.Run("non-empty conversation keeps its title", func(t *testing.T) {
		s := newTestStore()
		s.AppendUserMessage(WelcomeConversationID, "What is a function?")

		got, _ := s.GetConversation(WelcomeConversationID)
		assert.Equal(t, WelcomeTitle, got.Title)
	})
}

func TestAppendAssistantMessage(t *testing.T) {
	s := newTestStore()
	conv := s.CreateConversation()

	msg := s.AppendAssistantMessage(conv.ID, "hi")
	require.NotNil(t, msg)
	assert.Equal(t, RoleAssistant, msg.Role)

	got, _ := s.GetConversation(conv.ID)
	assert.Equal(t, DefaultTitle, got.Title, "assistant messages never rename a conversation")

	assert.Nil(t, s.AppendAssistantMessage("missing", "hi"))
	assert.Nil(t, s.AppendUserMessage("missing", "hi"))
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := newTestStore()
	snap := s.Snapshot()

	snap.Conversations[0].Title = "mutated"
	snap.Conversations[0].Messages[0].Content = "mutated"

	got, _ := s.GetConversation(WelcomeConversationID)
	assert.Equal(t, WelcomeTitle, got.Title)
	assert.Equal(t, WelcomeGreeting, got.Messages[0].Content)
}

func TestConcurrentAppends(t *testing.T) {
	s := New()
	conv := s.CreateConversation()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendAssistantMessage(conv.ID, fmt.Sprintf("reply %d", i))
		}(i)
	}
	wg.Wait()

	got, _ := s.GetConversation(conv.ID)
	assert.Len(t, got.Messages, writers)

	seen := make(map[string]bool)
	for _, m := range got.Messages {
		assert.False(t, seen[m.ID], "duplicate message id %s", m.ID)
		seen[m.ID] = true
	}
}
