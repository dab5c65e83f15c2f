package realtime

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
)

type subscription struct {
	conversationId int
	participantIds []int
}

type Client struct {
	conn *websocket.Conn
	hub  *Hub
	log  zerolog.Logger
	user types.User
	send chan *ServerMessage

	subsLock sync.RWMutex
	subs     map[string]subscription

	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, hub *Hub, l zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		log:  l.With().Int("user_id", user.Id).Logger(),
		user: user,
		send: make(chan *ServerMessage, 256),
		subs: make(map[string]subscription),
		stop: make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Error().Err(err).Msg("failed to serialize message")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug().Msg("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug().Err(err).Msg("error parsing message")
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *ClientMessage) {
	switch {
	case msg.Subscribe != nil:
		c.subscribe(msg)
	case msg.Unsubscribe != nil:
		c.unsubscribe(msg)
	case msg.Typing != nil:
		c.typing(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) subscribe(msg *ClientMessage) {
	externalId := msg.Subscribe.ConversationId

	conv, err := c.hub.db.GetConversationByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.queueMessage(ErrConversationNotFound(msg.Id))
			return
		}
		c.log.Error().Err(err).Str("conversation_id", externalId).Msg("failed to load conversation")
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if !c.hub.db.IsParticipant(conv.Id, c.user.Id) {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	participants, err := c.hub.db.GetParticipantIds(conv.Id)
	if err != nil {
		c.log.Error().Err(err).Str("conversation_id", externalId).Msg("failed to load participants")
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.subsLock.Lock()
	c.subs[externalId] = subscription{conversationId: conv.Id, participantIds: participants}
	c.subsLock.Unlock()

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"conversation_id": externalId}))
}

func (c *Client) unsubscribe(msg *ClientMessage) {
	c.subsLock.Lock()
	delete(c.subs, msg.Unsubscribe.ConversationId)
	c.subsLock.Unlock()

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) typing(msg *ClientMessage) {
	convId := msg.Typing.ConversationId

	c.subsLock.RLock()
	sub, ok := c.subs[convId]
	c.subsLock.RUnlock()
	if !ok {
		c.queueMessage(ErrNotSubscribed(msg.Id))
		return
	}

	c.hub.publish(convId, sub.participantIds, TypingFrame(convId, c.user.Id), c.user.Id)
}

func (c *Client) isSubscribed(conversationId string) bool {
	c.subsLock.RLock()
	defer c.subsLock.RUnlock()
	_, ok := c.subs[conversationId]
	return ok
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Warn().Msg("failed to send message to client, channel is full")
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("write message")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.hub.deRegister(c)
	c.stopClient()
}
