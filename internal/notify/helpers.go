package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/npezzotti/go-fellowship/internal/types"
)

const previewLength = 100

const (
	TagMessage       = "message"
	TagPrayerRequest = "prayer-request"
	TagEvent         = "event-reminder"
	TagAnnouncement  = "announcement"
)

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	r := []rune(s)
	return string(r[:previewLength-3]) + "..."
}

func (d *Dispatcher) NotifyNewMessage(ctx context.Context, recipientId int, senderName, content, conversationId string) Result {
	return d.SendPushNotification(ctx, Request{
		UserIds: []int{recipientId},
		Notification: types.Notification{
			Title: fmt.Sprintf("New message from %s", senderName),
			Body:  preview(content),
			Type:  types.NotificationMessage,
			Tag:   TagMessage,
			Data: map[string]any{
				"url":             "/messages?conversation=" + conversationId,
				"conversation_id": conversationId,
			},
		},
		CheckPreferences: true,
	})
}

// NotifyPrayerRequestUpdate tells the requester their request changed status.
func (d *Dispatcher) NotifyPrayerRequestUpdate(ctx context.Context, requesterId, requestId int, title, status string) Result {
	return d.SendPushNotification(ctx, Request{
		UserIds: []int{requesterId},
		Notification: types.Notification{
			Title: "Prayer request update",
			Body:  fmt.Sprintf("%q is now marked %s", title, status),
			Type:  types.NotificationPrayerRequest,
			Tag:   TagPrayerRequest,
			Data: map[string]any{
				"url":        "/prayer-requests",
				"request_id": requestId,
				"status":     status,
			},
		},
		CheckPreferences: true,
	})
}

// NotifyNewPrayerRequest alerts the prayer team about a new request.
func (d *Dispatcher) NotifyNewPrayerRequest(ctx context.Context, teamIds []int, requestId int, requesterName, title string) Result {
	return d.SendPushNotification(ctx, Request{
		UserIds: teamIds,
		Notification: types.Notification{
			Title: "New prayer request",
			Body:  fmt.Sprintf("%s shared: %s", requesterName, preview(title)),
			Type:  types.NotificationPrayerRequest,
			Tag:   TagPrayerRequest,
			Data: map[string]any{
				"url":        "/prayer-requests",
				"request_id": requestId,
			},
		},
		CheckPreferences: true,
	})
}

func (d *Dispatcher) NotifyUpcomingEvent(ctx context.Context, userIds []int, event types.Event) Result {
	body := event.StartsAt.Format("Mon Jan 2, 3:04 PM")
	if event.Location != "" {
		body += " at " + event.Location
	}

	return d.SendPushNotification(ctx, Request{
		UserIds: userIds,
		Notification: types.Notification{
			Title: "Upcoming: " + event.Title,
			Body:  body,
			Type:  types.NotificationEvent,
			Tag:   TagEvent,
			Data: map[string]any{
				"url":      "/events/" + event.ExternalId,
				"event_id": event.ExternalId,
			},
		},
		CheckPreferences: true,
	})
}

func (d *Dispatcher) NotifyNewAnnouncement(ctx context.Context, userIds []int, announcement types.Announcement) Result {
	return d.SendPushNotification(ctx, Request{
		UserIds: userIds,
		Notification: types.Notification{
			Title: announcement.Title,
			Body:  preview(announcement.Body),
			Type:  types.NotificationAnnouncement,
			Tag:   TagAnnouncement,
			Data: map[string]any{
				"url":             "/announcements",
				"announcement_id": announcement.Id,
			},
		},
		CheckPreferences: true,
	})
}
