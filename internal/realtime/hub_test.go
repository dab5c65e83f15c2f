package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/npezzotti/go-fellowship/internal/testutil"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, db database.ChurchRepository, su *stats.MockStatsUpdater) *Hub {
	su.On("RegisterMetric", mock.Anything).Return().Times(2)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()
	return NewHub(testutil.TestLogger(t), db, su)
}

func newTestClient(t *testing.T, h *Hub, userId int) *Client {
	c := &Client{
		hub:  h,
		log:  testutil.TestLogger(t),
		user: types.User{Id: userId},
		send: make(chan *ServerMessage, 16),
		subs: make(map[string]subscription),
		stop: make(chan struct{}),
	}
	return c
}

func drain(c *Client) []*ServerMessage {
	var out []*ServerMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestNewHub(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", stats.ConnectedClients).Once()
	su.On("RegisterMetric", stats.ActiveUsers).Once()
	defer su.AssertExpectations(t)

	h := NewHub(testutil.TestLogger(t), &database.MockChurchRepository{}, su)
	assert.NotNil(t, h.registerChan, "expected registerChan to be initialized")
	assert.NotNil(t, h.deRegisterChan, "expected deRegisterChan to be initialized")
	assert.NotNil(t, h.clients, "expected clients map to be initialized")
	assert.NotNil(t, h.userMap, "expected userMap to be initialized")
}

func TestHub_addClient_removeClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(2)
	su.On("Incr", stats.ConnectedClients).Twice()
	su.On("Incr", stats.ActiveUsers).Once()
	su.On("Decr", stats.ConnectedClients).Twice()
	su.On("Decr", stats.ActiveUsers).Once()
	defer su.AssertExpectations(t)

	h := NewHub(testutil.TestLogger(t), &database.MockChurchRepository{}, su)
	c1 := newTestClient(t, h, 1)
	c2 := newTestClient(t, h, 1)

	h.addClient(c1)
	h.addClient(c1)
	h.addClient(c2)
	assert.True(t, h.IsOnline(1))
	assert.Len(t, h.getClients(), 2)

	h.removeClient(c1)
	assert.True(t, h.IsOnline(1), "user should stay online while a connection remains")

	h.removeClient(c2)
	h.removeClient(c2)
	assert.False(t, h.IsOnline(1))
	assert.Empty(t, h.userMap)
}

func TestHub_SendPush(t *testing.T) {
	h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})
	a1 := newTestClient(t, h, 1)
	a2 := newTestClient(t, h, 1)
	b := newTestClient(t, h, 2)
	h.addClient(a1)
	h.addClient(a2)
	h.addClient(b)

	n := h.SendPush(1, types.PushPayload{Title: "hello"})
	assert.Equal(t, 2, n)

	for _, c := range []*Client{a1, a2} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		require.NotNil(t, msgs[0].Push)
		assert.Equal(t, "hello", msgs[0].Push.Title)
	}
	assert.Empty(t, drain(b))

	assert.Zero(t, h.SendPush(99, types.PushPayload{Title: "nobody"}))
}

func TestHub_SendPush_FullQueue(t *testing.T) {
	h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})
	c := newTestClient(t, h, 1)
	c.send = make(chan *ServerMessage, 1)
	c.send <- &ServerMessage{}
	h.addClient(c)

	assert.Zero(t, h.SendPush(1, types.PushPayload{Title: "dropped"}))
}

func TestHub_PublishMessage(t *testing.T) {
	h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})

	subscribed := newTestClient(t, h, 1)
	subscribed.subs["abc"] = subscription{conversationId: 10, participantIds: []int{1, 2}}
	other := newTestClient(t, h, 1)
	recipient := newTestClient(t, h, 2)
	recipient.subs["abc"] = subscription{conversationId: 10, participantIds: []int{1, 2}}
	outsider := newTestClient(t, h, 3)
	outsider.subs["abc"] = subscription{}

	for _, c := range []*Client{subscribed, other, recipient, outsider} {
		h.addClient(c)
	}

	n := h.PublishMessage([]int{1, 2}, types.Message{Id: 5, ConversationId: "abc", SenderId: 1, Content: "hi"})
	assert.Equal(t, 2, n)
	assert.Len(t, drain(subscribed), 1, "sender's subscribed clients receive their own message")
	assert.Empty(t, drain(other), "unsubscribed clients are skipped")
	assert.Len(t, drain(recipient), 1)
	assert.Empty(t, drain(outsider), "non-participants are skipped")
}

func TestHub_PublishRead_SkipsReader(t *testing.T) {
	h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})

	reader := newTestClient(t, h, 2)
	reader.subs["abc"] = subscription{}
	sender := newTestClient(t, h, 1)
	sender.subs["abc"] = subscription{}
	h.addClient(reader)
	h.addClient(sender)

	n := h.PublishRead([]int{1, 2}, ReadReceipt{ConversationId: "abc", ReaderId: 2, ReadAt: Now()})
	assert.Equal(t, 1, n)

	msgs := drain(sender)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Read)
	assert.Equal(t, 2, msgs[0].Read.ReaderId)
	assert.Empty(t, drain(reader))
}

func TestHub_Shutdown(t *testing.T) {
	t.Run("stops running hub", func(t *testing.T) {
		h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})
		go h.Run()

		c := newTestClient(t, h, 1)
		require.True(t, h.Register(c))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, h.Shutdown(ctx))

		select {
		case <-c.stop:
		default:
			t.Error("expected client stop channel to be closed")
		}
		assert.False(t, h.Register(newTestClient(t, h, 2)), "register after shutdown should fail")
		assert.NoError(t, h.Shutdown(ctx), "second shutdown is a no-op")
	})

	t.Run("deadline exceeded when hub not running", func(t *testing.T) {
		h := newTestHub(t, &database.MockChurchRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)
	})
}
