// Package push implements the send-push-notification function: it fans a
// notification out to a user's live connections and registered devices.
package push

import (
	"context"
	"errors"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

// Sender delivers to a single device token.
type Sender interface {
	Send(ctx context.Context, token string, n types.Notification) error
}

// LiveDelivery pushes to a user's open realtime connections and returns
// how many received it.
type LiveDelivery interface {
	SendPush(userId int, payload types.PushPayload) int
}

type Service struct {
	db     database.ChurchRepository
	live   LiveDelivery
	sender Sender
	stats  stats.StatsProvider
	log    zerolog.Logger
}

// NewService returns a push service. live and sender may be nil when the
// corresponding channel is not available.
func NewService(db database.ChurchRepository, live LiveDelivery, sender Sender, sp stats.StatsProvider, log zerolog.Logger) *Service {
	if sp == nil {
		sp = stats.NoopStats{}
	}
	sp.RegisterMetric(stats.PushDelivered)
	sp.RegisterMetric(stats.PushSkipped)
	sp.RegisterMetric(stats.PushFailed)
	sp.RegisterMetric(stats.PushTokensPruned)

	return &Service{
		db:     db,
		live:   live,
		sender: sender,
		stats:  sp,
		log:    log,
	}
}

// Deliver sends req to every target user. A user counts as delivered when
// at least one channel accepted the notification, skipped when preferences
// exclude it or the user has nowhere to receive it, and failed otherwise.
func (s *Service) Deliver(ctx context.Context, req types.PushRequest) types.PushReport {
	var report types.PushReport
	payload := req.Notification.Payload()

	for _, userId := range dedupe(req.UserIds) {
		if ctx.Err() != nil {
			report.Failed++
			continue
		}

		if req.CheckPreferences && !s.allowed(userId, req.Notification.Type) {
			s.log.Debug().Int("user_id", userId).Str("type", req.Notification.Type).Msg("push disabled by preferences")
			report.Skipped++
			s.stats.Incr(stats.PushSkipped)
			continue
		}

		reached, attempted := s.deliverTo(ctx, userId, req.Notification, payload)
		switch {
		case reached > 0:
			report.Delivered++
			s.stats.Incr(stats.PushDelivered)
		case attempted == 0:
			report.Skipped++
			s.stats.Incr(stats.PushSkipped)
		default:
			report.Failed++
			s.stats.Incr(stats.PushFailed)
		}
	}

	s.log.Info().
		Str("type", req.Notification.Type).
		Int("delivered", report.Delivered).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("push delivered")

	return report
}

func (s *Service) allowed(userId int, notificationType string) bool {
	prefs, err := s.db.GetNotificationPreferences(userId)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", userId).Msg("failed to load notification preferences, using defaults")
		return types.DefaultNotificationPreferences().Allows(notificationType)
	}

	return types.NotificationPreferences{
		Messages:       prefs.Messages,
		PrayerRequests: prefs.PrayerRequests,
		Events:         prefs.Events,
		Announcements:  prefs.Announcements,
	}.Allows(notificationType)
}

func (s *Service) deliverTo(ctx context.Context, userId int, n types.Notification, payload types.PushPayload) (reached, attempted int) {
	if s.live != nil {
		if c := s.live.SendPush(userId, payload); c > 0 {
			reached += c
			attempted += c
		}
	}

	if s.sender == nil {
		return reached, attempted
	}

	tokens, err := s.db.ListPushTokens(userId)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", userId).Msg("failed to list push tokens")
		return reached, attempted + 1
	}

	for _, t := range tokens {
		attempted++
		err := s.sender.Send(ctx, t.Token, n)
		if err == nil {
			reached++
			continue
		}

		if errors.Is(err, ErrTokenUnregistered) {
			s.log.Info().Int("user_id", userId).Str("token_id", t.Id).Msg("pruning unregistered push token")
			if err := s.db.DeletePushToken(t.Token); err != nil {
				s.log.Error().Err(err).Str("token_id", t.Id).Msg("failed to delete push token")
			} else {
				s.stats.Incr(stats.PushTokensPruned)
			}
			continue
		}

		s.log.Error().Err(err).Int("user_id", userId).Str("token_id", t.Id).Msg("push send failed")
	}

	return reached, attempted
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
