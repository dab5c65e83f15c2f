package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-fellowship/internal/realtime"
)

const feedWriteWait = 10 * time.Second

// Feed is a realtime websocket connection authenticated with the client's
// session cookie.
type Feed struct {
	conn *websocket.Conn

	mu     sync.Mutex
	nextId int
}

func (c *Client) DialFeed(ctx context.Context) (*Feed, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	dialer := websocket.Dialer{
		Jar:              c.jar,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial feed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	return &Feed{conn: conn}, nil
}

func (f *Feed) send(msg realtime.ClientMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextId++
	msg.Id = f.nextId
	msg.Timestamp = realtime.Now()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	f.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

func (f *Feed) Subscribe(conversationId string) error {
	return f.send(realtime.ClientMessage{Subscribe: &realtime.Subscribe{ConversationId: conversationId}})
}

func (f *Feed) Typing(conversationId string) error {
	return f.send(realtime.ClientMessage{Typing: &realtime.Typing{ConversationId: conversationId}})
}

// Run reads frames until the connection ends or ctx is done, handing each
// to handle on the calling goroutine.
func (f *Feed) Run(ctx context.Context, handle func(*realtime.ServerMessage)) error {
	stop := context.AfterFunc(ctx, func() {
		f.Close()
	})
	defer stop()

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}

		var msg realtime.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		handle(&msg)
	}
}

func (f *Feed) Close() error {
	f.mu.Lock()
	f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	f.mu.Unlock()
	return f.conn.Close()
}
