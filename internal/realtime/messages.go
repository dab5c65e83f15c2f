package realtime

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-fellowship/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a frame sent by a connected client. Exactly one of the
// pointer fields is set.
type ClientMessage struct {
	BaseMessage
	Subscribe   *Subscribe `json:"subscribe,omitempty"`
	Unsubscribe *Subscribe `json:"unsubscribe,omitempty"`
	Typing      *Typing    `json:"typing,omitempty"`
}

type Subscribe struct {
	ConversationId string `json:"conversation_id"`
}

type Typing struct {
	ConversationId string `json:"conversation_id"`
	UserId         int    `json:"user_id,omitempty"`
}

type ReadReceipt struct {
	ConversationId string    `json:"conversation_id"`
	ReaderId       int       `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response          `json:"response,omitempty"`
	Message  *types.Message     `json:"message,omitempty"`
	Read     *ReadReceipt       `json:"read,omitempty"`
	Typing   *Typing            `json:"typing,omitempty"`
	Push     *types.PushPayload `json:"push,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrConversationNotFound(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "conversation not found")
}

func ErrForbidden(id int) *ServerMessage {
	return errResponse(id, http.StatusForbidden, "forbidden")
}

func ErrNotSubscribed(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "not subscribed")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := errResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

func MessageFrame(m types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &m,
	}
}

func ReadFrame(r ReadReceipt) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Read:        &r,
	}
}

func TypingFrame(conversationId string, userId int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Typing:      &Typing{ConversationId: conversationId, UserId: userId},
	}
}

func PushFrame(p types.PushPayload) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Push:        &p,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
