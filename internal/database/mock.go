package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChurchRepository struct {
	mock.Mock
}

func (m *MockChurchRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChurchRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChurchRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChurchRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChurchRepository) GetRole(accountId int) (string, error) {
	args := m.Called(accountId)
	return args.String(0), args.Error(1)
}
func (m *MockChurchRepository) SetRole(accountId int, role string) error {
	args := m.Called(accountId, role)
	return args.Error(0)
}
func (m *MockChurchRepository) ListAccountIdsByRole(role string) ([]int, error) {
	args := m.Called(role)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockChurchRepository) ListAccountIds() ([]int, error) {
	args := m.Called()
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockChurchRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChurchRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	args := m.Called(externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockChurchRepository) ListConversations(accountId int) ([]Conversation, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockChurchRepository) GetParticipantIds(conversationId int) ([]int, error) {
	args := m.Called(conversationId)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockChurchRepository) IsParticipant(conversationId, accountId int) bool {
	args := m.Called(conversationId, accountId)
	return args.Bool(0)
}
func (m *MockChurchRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChurchRepository) GetMessages(conversationId, limit int) ([]Message, error) {
	args := m.Called(conversationId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChurchRepository) MarkMessagesRead(conversationId, readerId int) (int64, error) {
	args := m.Called(conversationId, readerId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChurchRepository) CreatePrayerRequest(params CreatePrayerRequestParams) (PrayerRequest, error) {
	args := m.Called(params)
	return args.Get(0).(PrayerRequest), args.Error(1)
}
func (m *MockChurchRepository) GetPrayerRequest(id int) (PrayerRequest, error) {
	args := m.Called(id)
	return args.Get(0).(PrayerRequest), args.Error(1)
}
func (m *MockChurchRepository) ListPrayerRequests(accountId int) ([]PrayerRequest, error) {
	args := m.Called(accountId)
	return args.Get(0).([]PrayerRequest), args.Error(1)
}
func (m *MockChurchRepository) UpdatePrayerRequestStatus(id int, status string) (PrayerRequest, error) {
	args := m.Called(id, status)
	return args.Get(0).(PrayerRequest), args.Error(1)
}
func (m *MockChurchRepository) CreateEvent(params CreateEventParams) (Event, error) {
	args := m.Called(params)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockChurchRepository) GetEventByExternalId(externalId string) (Event, error) {
	args := m.Called(externalId)
	return args.Get(0).(Event), args.Error(1)
}
func (m *MockChurchRepository) ListUpcomingEvents(limit int) ([]Event, error) {
	args := m.Called(limit)
	return args.Get(0).([]Event), args.Error(1)
}
func (m *MockChurchRepository) CreateAnnouncement(params CreateAnnouncementParams) (Announcement, error) {
	args := m.Called(params)
	return args.Get(0).(Announcement), args.Error(1)
}
func (m *MockChurchRepository) ListAnnouncements(limit int) ([]Announcement, error) {
	args := m.Called(limit)
	return args.Get(0).([]Announcement), args.Error(1)
}
func (m *MockChurchRepository) SavePushToken(params SavePushTokenParams) (PushToken, error) {
	args := m.Called(params)
	return args.Get(0).(PushToken), args.Error(1)
}
func (m *MockChurchRepository) ListPushTokens(accountId int) ([]PushToken, error) {
	args := m.Called(accountId)
	return args.Get(0).([]PushToken), args.Error(1)
}
func (m *MockChurchRepository) DeletePushToken(token string) error {
	args := m.Called(token)
	return args.Error(0)
}
func (m *MockChurchRepository) GetNotificationPreferences(accountId int) (NotificationPreferences, error) {
	args := m.Called(accountId)
	return args.Get(0).(NotificationPreferences), args.Error(1)
}
func (m *MockChurchRepository) UpdateNotificationPreferences(prefs NotificationPreferences) error {
	args := m.Called(prefs)
	return args.Error(0)
}
