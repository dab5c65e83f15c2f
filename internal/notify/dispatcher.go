// Package notify forwards notification payloads to the push function.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

const SendPushFunction = "send-push-notification"

var ErrNoTransport = errors.New("no transport configured")

type Request = types.PushRequest

// Result is the outcome of a dispatch. Data holds the function's response
// on success; Error describes the failure otherwise.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Transport invokes a named remote function with a JSON body.
type Transport interface {
	Invoke(ctx context.Context, name string, body []byte) (json.RawMessage, error)
}

type TransportFunc func(ctx context.Context, name string, body []byte) (json.RawMessage, error)

func (f TransportFunc) Invoke(ctx context.Context, name string, body []byte) (json.RawMessage, error) {
	return f(ctx, name, body)
}

type Dispatcher struct {
	transport Transport
	log       zerolog.Logger
}

func NewDispatcher(transport Transport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		log:       log,
	}
}

// SendPushNotification forwards req once. It never panics and never
// returns an error value; failures are reported in the Result.
func (d *Dispatcher) SendPushNotification(ctx context.Context, req Request) (res Result) {
	if d == nil {
		return failure(ErrNoTransport)
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("push dispatch panicked")
			res = failure(fmt.Errorf("dispatch panicked: %v", r))
		}
	}()

	if d.transport == nil {
		d.log.Error().Msg("push dispatch without transport")
		return failure(ErrNoTransport)
	}

	body, err := json.Marshal(req)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to encode push request")
		return failure(fmt.Errorf("encode request: %w", err))
	}

	data, err := d.transport.Invoke(ctx, SendPushFunction, body)
	if err != nil {
		d.log.Error().Err(err).
			Str("type", req.Notification.Type).
			Ints("user_ids", req.UserIds).
			Msg("push dispatch failed")
		return failure(err)
	}

	d.log.Debug().
		Str("type", req.Notification.Type).
		Ints("user_ids", req.UserIds).
		Msg("push dispatched")

	if len(data) > 0 && !json.Valid(data) {
		encoded, _ := json.Marshal(string(data))
		data = encoded
	}

	return Result{Success: true, Data: data}
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
