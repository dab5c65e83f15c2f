package database

import "time"

type User struct {
	Id           int
	EmailAddress string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Conversation struct {
	Id            int
	ExternalId    string
	OtherParty    User
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

type Message struct {
	Id             int
	ConversationId int
	SenderId       int
	Content        string
	CreatedAt      time.Time
	ReadAt         *time.Time
}

type PrayerRequest struct {
	Id        int
	AccountId int
	Title     string
	Body      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Event struct {
	Id          int
	ExternalId  string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	CreatedBy   int
	CreatedAt   time.Time
}

type Announcement struct {
	Id        int
	Title     string
	Body      string
	CreatedBy int
	CreatedAt time.Time
}

type PushToken struct {
	Id         string
	AccountId  int
	Token      string
	DeviceInfo string
	CreatedAt  time.Time
}

type NotificationPreferences struct {
	AccountId      int
	Messages       bool
	PrayerRequests bool
	Events         bool
	Announcements  bool
}

type CreateAccountParams struct {
	EmailAddress string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         string
}

type CreateConversationParams struct {
	ExternalId     string
	ParticipantIds []int
}

type CreateMessageParams struct {
	ConversationId int
	SenderId       int
	Content        string
}

type CreatePrayerRequestParams struct {
	AccountId int
	Title     string
	Body      string
}

type CreateEventParams struct {
	ExternalId  string
	Title       string
	Description string
	Location    string
	StartsAt    time.Time
	CreatedBy   int
}

type CreateAnnouncementParams struct {
	Title     string
	Body      string
	CreatedBy int
}

type SavePushTokenParams struct {
	Id         string
	AccountId  int
	Token      string
	DeviceInfo string
}
