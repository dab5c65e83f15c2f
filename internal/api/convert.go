package api

import (
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/types"
)

func toConversation(c database.Conversation) types.Conversation {
	return types.Conversation{
		Id:            c.Id,
		ExternalId:    c.ExternalId,
		OtherParty:    identity.ToUser(c.OtherParty),
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

func toMessage(m database.Message, conversationId string) types.Message {
	return types.Message{
		Id:             m.Id,
		ConversationId: conversationId,
		SenderId:       m.SenderId,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

func toPrayerRequest(p database.PrayerRequest) types.PrayerRequest {
	return types.PrayerRequest{
		Id:        p.Id,
		UserId:    p.AccountId,
		Title:     p.Title,
		Body:      p.Body,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toEvent(e database.Event) types.Event {
	return types.Event{
		Id:          e.Id,
		ExternalId:  e.ExternalId,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		StartsAt:    e.StartsAt,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}

func toAnnouncement(a database.Announcement) types.Announcement {
	return types.Announcement{
		Id:        a.Id,
		Title:     a.Title,
		Body:      a.Body,
		CreatedBy: a.CreatedBy,
		CreatedAt: a.CreatedAt,
	}
}

func toPreferences(p database.NotificationPreferences) types.NotificationPreferences {
	return types.NotificationPreferences{
		Messages:       p.Messages,
		PrayerRequests: p.PrayerRequests,
		Events:         p.Events,
		Announcements:  p.Announcements,
	}
}
