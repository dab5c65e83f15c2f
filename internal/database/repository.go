package database

type ChurchRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetRole(accountId int) (string, error)
	SetRole(accountId int, role string) error
	ListAccountIdsByRole(role string) ([]int, error)
	ListAccountIds() ([]int, error)

	CreateConversation(params CreateConversationParams) (Conversation, error)
	GetConversationByExternalId(externalId string) (Conversation, error)
	ListConversations(accountId int) ([]Conversation, error)
	GetParticipantIds(conversationId int) ([]int, error)
	IsParticipant(conversationId, accountId int) bool

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(conversationId, limit int) ([]Message, error)
	MarkMessagesRead(conversationId, readerId int) (int64, error)

	CreatePrayerRequest(params CreatePrayerRequestParams) (PrayerRequest, error)
	GetPrayerRequest(id int) (PrayerRequest, error)
	ListPrayerRequests(accountId int) ([]PrayerRequest, error)
	UpdatePrayerRequestStatus(id int, status string) (PrayerRequest, error)

	CreateEvent(params CreateEventParams) (Event, error)
	GetEventByExternalId(externalId string) (Event, error)
	ListUpcomingEvents(limit int) ([]Event, error)

	CreateAnnouncement(params CreateAnnouncementParams) (Announcement, error)
	ListAnnouncements(limit int) ([]Announcement, error)

	SavePushToken(params SavePushTokenParams) (PushToken, error)
	ListPushTokens(accountId int) ([]PushToken, error)
	DeletePushToken(token string) error

	GetNotificationPreferences(accountId int) (NotificationPreferences, error)
	UpdateNotificationPreferences(prefs NotificationPreferences) error
}
