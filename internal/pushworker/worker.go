// Package pushworker handles push deliveries and notification clicks
// independently of any open view.
package pushworker

import (
	"encoding/json"
	"net/url"
	"sync"

	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

type State int

const (
	StateInstalling State = iota
	StateActive
	StateNotificationReceived
	StateNotificationInteracted
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateActive:
		return "active"
	case StateNotificationReceived:
		return "notification_received"
	case StateNotificationInteracted:
		return "notification_interacted"
	default:
		return "unknown"
	}
}

var defaultVibrate = []int{100, 50, 100}

type NotificationOptions struct {
	Body               string
	Icon               string
	Badge              string
	Tag                string
	Data               map[string]any
	Vibrate            []int
	RequireInteraction bool
}

// Shown is a notification the platform displayed.
type Shown interface {
	Close()
	Data() map[string]any
}

type Window interface {
	URL() string
	Focus() error
}

// Platform is the host the worker runs in.
type Platform interface {
	SkipWaiting() error
	ClaimClients() error
	ShowNotification(title string, opts NotificationOptions) error
	Windows() ([]Window, error)
	OpenWindow(url string) error
}

type Worker struct {
	platform Platform
	log      zerolog.Logger

	mu    sync.Mutex
	state State
}

func New(platform Platform, log zerolog.Logger) *Worker {
	return &Worker{
		platform: platform,
		log:      log,
		state:    StateInstalling,
	}
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Install activates the worker immediately instead of waiting for older
// instances to go away.
func (w *Worker) Install() error {
	w.log.Info().Msg("push worker installing")
	w.setState(StateInstalling)

	if err := w.platform.SkipWaiting(); err != nil {
		w.log.Warn().Err(err).Msg("skip waiting failed")
	}
	return w.Activate()
}

// Activate takes control of every open client.
func (w *Worker) Activate() error {
	if err := w.platform.ClaimClients(); err != nil {
		w.log.Error().Err(err).Msg("claim clients failed")
		return err
	}

	w.setState(StateActive)
	w.log.Info().Msg("push worker active")
	return nil
}

// HandlePush displays the notification carried by data. It reports whether
// a notification was shown; empty, malformed and untitled payloads are
// ignored.
func (w *Worker) HandlePush(data []byte) bool {
	if len(data) == 0 {
		w.log.Debug().Msg("push without payload")
		return false
	}

	var payload types.PushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		w.log.Error().Err(err).Msg("invalid push payload")
		return false
	}
	if payload.Title == "" {
		w.log.Error().Msg("push payload without title")
		return false
	}

	err := w.platform.ShowNotification(payload.Title, NotificationOptions{
		Body:               payload.Body,
		Icon:               payload.Icon,
		Badge:              payload.Badge,
		Tag:                payload.Tag,
		Data:               payload.Data,
		Vibrate:            append([]int(nil), defaultVibrate...),
		RequireInteraction: false,
	})
	if err != nil {
		w.log.Error().Err(err).Msg("show notification failed")
		return false
	}

	w.setState(StateNotificationReceived)
	return true
}

// HandleClick closes n and brings its target into view, focusing an open
// window already at the target before opening a new one.
func (w *Worker) HandleClick(n Shown) error {
	n.Close()
	w.setState(StateNotificationInteracted)

	target := TargetURL(n.Data())

	windows, err := w.platform.Windows()
	if err != nil {
		w.log.Warn().Err(err).Msg("list windows failed")
	}
	for _, win := range windows {
		if sameURL(win.URL(), target) {
			return win.Focus()
		}
	}

	return w.platform.OpenWindow(target)
}

// HandleSubscriptionChange only records the event; the subscription is not
// renewed.
func (w *Worker) HandleSubscriptionChange() {
	w.log.Info().Msg("push subscription changed")
}

// TargetURL returns data["url"] when it is a non-empty string, else "/".
func TargetURL(data map[string]any) string {
	if u, ok := data["url"].(string); ok && u != "" {
		return u
	}
	return "/"
}

// sameURL compares path and query, ignoring scheme and host when either
// side is relative.
func sameURL(a, b string) bool {
	if a == b {
		return true
	}

	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}

	if ua.IsAbs() && ub.IsAbs() && ua.Host != ub.Host {
		return false
	}
	return cleanPath(ua.Path) == cleanPath(ub.Path) && ua.RawQuery == ub.RawQuery
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
