package cli

import (
	"sync"

	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/transcript"
	"github.com/npezzotti/go-fellowship/internal/types"
)

// conversation is the client-side copy of one conversation's messages,
// merged from the initial fetch, local sends and feed frames.
type conversation struct {
	info types.Conversation
	me   types.User

	mu      sync.Mutex
	msgs    []types.Message
	loading bool
}

func newConversation(info types.Conversation, me types.User) *conversation {
	return &conversation{
		info:    info,
		me:      me,
		loading: true,
	}
}

func (c *conversation) load(msgs []types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append([]types.Message(nil), msgs...)
	c.loading = false
}

// add records m unless it belongs elsewhere or is already known. It reports
// whether anything changed.
func (c *conversation) add(m types.Message) bool {
	if m.ConversationId != c.info.ExternalId {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.msgs {
		if existing.Id == m.Id {
			return false
		}
	}
	c.msgs = append(c.msgs, m)
	return true
}

// markRead applies a read receipt from the other party to our own unread
// messages.
func (c *conversation) markRead(r realtime.ReadReceipt) bool {
	if r.ConversationId != c.info.ExternalId || r.ReaderId == c.me.Id {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for i := range c.msgs {
		m := &c.msgs[i]
		if m.SenderId == c.me.Id && m.ReadAt == nil && !m.CreatedAt.After(r.ReadAt) {
			readAt := r.ReadAt
			m.ReadAt = &readAt
			changed = true
		}
	}
	return changed
}

func (c *conversation) view() transcript.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return transcript.Build(c.msgs, c.me.Id, &c.info, c.loading)
}
