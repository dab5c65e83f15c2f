package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/npezzotti/go-fellowship/internal/types"
	"google.golang.org/api/option"
)

var ErrTokenUnregistered = errors.New("push token is no longer registered")

// FCMSender delivers notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	return &FCMSender{client: client}, nil
}

func (s *FCMSender) Send(ctx context.Context, token string, n types.Notification) error {
	_, err := s.client.Send(ctx, buildMessage(token, n))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("%w: %v", ErrTokenUnregistered, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func buildMessage(token string, n types.Notification) *messaging.Message {
	data := stringData(n.Data)
	if n.Type != "" {
		data["type"] = n.Type
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Tag:   n.Tag,
				Icon:  n.Icon,
				Sound: "default",
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title:              n.Title,
				Body:               n.Body,
				Icon:               n.Icon,
				Badge:              n.Badge,
				Tag:                n.Tag,
				Vibrate:            []int{100, 50, 100},
				RequireInteraction: false,
			},
		},
	}

	if link, ok := n.Data["url"].(string); ok && link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}

	return msg
}

// stringData flattens data to the string values FCM requires.
func stringData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			b, _ := json.Marshal(v)
			out[k] = string(b)
		}
	}
	return out
}
