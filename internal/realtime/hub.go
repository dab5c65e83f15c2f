package realtime

import (
	"context"
	"sync"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

type stopReq struct {
	done chan struct{}
}

// Hub tracks connected clients by user and fans frames out to them.
type Hub struct {
	log   zerolog.Logger
	db    database.ChurchRepository
	stats stats.StatsProvider

	registerChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
	done           chan struct{}

	clientsLock sync.RWMutex
	clients     map[*Client]struct{}
	userMap     map[int]map[*Client]struct{}
}

func NewHub(log zerolog.Logger, db database.ChurchRepository, sp stats.StatsProvider) *Hub {
	sp.RegisterMetric(stats.ConnectedClients)
	sp.RegisterMetric(stats.ActiveUsers)

	return &Hub{
		log:            log,
		db:             db,
		stats:          sp,
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[int]map[*Client]struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case c := <-h.registerChan:
			h.log.Debug().Int("user_id", c.user.Id).Msg("adding connection")
			h.addClient(c)
		case c := <-h.deRegisterChan:
			h.log.Debug().Int("user_id", c.user.Id).Msg("removing connection")
			h.removeClient(c)
		case req := <-h.stop:
			h.log.Info().Msg("closing client connections")
			for _, c := range h.getClients() {
				c.stopClient()
				h.removeClient(c)
			}
			close(req.done)
			return
		}
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.registerChan <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) deRegister(c *Client) {
	select {
	case h.deRegisterChan <- c:
	case <-h.done:
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case h.stop <- req:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.stats.Incr(stats.ConnectedClients)

	userClients, ok := h.userMap[c.user.Id]
	if !ok {
		userClients = make(map[*Client]struct{})
		h.userMap[c.user.Id] = userClients
		h.stats.Incr(stats.ActiveUsers)
	}
	userClients[c] = struct{}{}
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.stats.Decr(stats.ConnectedClients)

	if userClients, ok := h.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(h.userMap, c.user.Id)
			h.stats.Decr(stats.ActiveUsers)
		}
	}
}

func (h *Hub) getClients() []*Client {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) IsOnline(userId int) bool {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()
	return len(h.userMap[userId]) > 0
}

// sendToUsers queues msg for every client of userIds that passes filter
// and returns how many accepted it.
func (h *Hub) sendToUsers(userIds []int, msg *ServerMessage, filter func(*Client) bool) int {
	h.clientsLock.RLock()
	defer h.clientsLock.RUnlock()

	sent := 0
	for _, id := range userIds {
		for c := range h.userMap[id] {
			if filter != nil && !filter(c) {
				continue
			}
			if c.queueMessage(msg) {
				sent++
			}
		}
	}
	return sent
}

// publish delivers msg to participants subscribed to the conversation,
// skipping the clients of skipUserId.
func (h *Hub) publish(conversationId string, participantIds []int, msg *ServerMessage, skipUserId int) int {
	return h.sendToUsers(participantIds, msg, func(c *Client) bool {
		return c.user.Id != skipUserId && c.isSubscribed(conversationId)
	})
}

func (h *Hub) PublishMessage(participantIds []int, m types.Message) int {
	return h.publish(m.ConversationId, participantIds, MessageFrame(m), 0)
}

func (h *Hub) PublishRead(participantIds []int, r ReadReceipt) int {
	return h.publish(r.ConversationId, participantIds, ReadFrame(r), r.ReaderId)
}

// SendPush delivers a push payload to every open connection of userId.
func (h *Hub) SendPush(userId int, payload types.PushPayload) int {
	return h.sendToUsers([]int{userId}, PushFrame(payload), nil)
}
