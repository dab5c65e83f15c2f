package types

import (
	"time"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// ValidRole reports whether role is one the server grants.
func ValidRole(role string) bool {
	return role == RoleMember || role == RoleAdmin
}

type User struct {
	Id           int       `json:"id"`
	EmailAddress string    `json:"email_address,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.EmailAddress
	}
}

type Conversation struct {
	Id            int        `json:"id"`
	ExternalId    string     `json:"external_id"`
	OtherParty    User       `json:"other_party"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`
}

type Message struct {
	Id             int        `json:"id"`
	ConversationId string     `json:"conversation_id"`
	SenderId       int        `json:"sender_id"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

const (
	PrayerOpen     = "open"
	PrayerPraying  = "praying"
	PrayerAnswered = "answered"
)

type PrayerRequest struct {
	Id        int       `json:"id"`
	UserId    int       `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Event struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type Announcement struct {
	Id        int       `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type NotificationPreferences struct {
	Messages       bool `json:"messages"`
	PrayerRequests bool `json:"prayer_requests"`
	Events         bool `json:"events"`
	Announcements  bool `json:"announcements"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Messages:       true,
		PrayerRequests: true,
		Events:         true,
		Announcements:  true,
	}
}

// Allows reports whether notifications of the given type may be delivered.
// Untyped notifications are always allowed.
func (p NotificationPreferences) Allows(notificationType string) bool {
	switch notificationType {
	case NotificationMessage:
		return p.Messages
	case NotificationPrayerRequest:
		return p.PrayerRequests
	case NotificationEvent:
		return p.Events
	case NotificationAnnouncement:
		return p.Announcements
	default:
		return true
	}
}
