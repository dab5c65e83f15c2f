package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/notify"
	"github.com/npezzotti/go-fellowship/internal/push"
	"github.com/npezzotti/go-fellowship/internal/session"
	"github.com/npezzotti/go-fellowship/internal/testutil"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestSignUpHandler(t *testing.T) {
	account := database.User{
		Id:           1,
		EmailAddress: "ruth@example.org",
		FirstName:    "Ruth",
		Role:         types.RoleMember,
		CreatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name     string
		body     any
		mockUser database.User
		mockErr  error
		callsDb  bool
		status   int
	}{
		{
			name:     "creates a member account",
			body:     map[string]string{"email": "Ruth@example.org", "password": "pw", "first_name": "Ruth", "role": "admin"},
			mockUser: account,
			callsDb:  true,
			status:   http.StatusCreated,
		},
		{
			name:    "email already taken",
			body:    map[string]string{"email": "ruth@example.org", "password": "pw"},
			mockErr: database.ErrDuplicate,
			callsDb: true,
			status:  http.StatusConflict,
		},
		{
			name:   "invalid email",
			body:   map[string]string{"email": "not-an-email", "password": "pw"},
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid json body",
			body:   "invalid json",
			status: http.StatusBadRequest,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.callsDb {
				mockRepo.On("CreateAccount", mock.MatchedBy(func(p database.CreateAccountParams) bool {
					return p.Role == types.RoleMember && p.EmailAddress == "ruth@example.org"
				})).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/signup", tc.body, 0))

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusCreated {
				cookie := findCookie(rr, tokenCookieKey)
				require.NotNil(t, cookie, "expected session cookie")
				assert.True(t, cookie.HttpOnly)

				var resp SessionResponse
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				assert.Equal(t, 1, resp.User.Id)
				assert.Equal(t, cookie.Value, resp.Token)
			}
		})
	}
}

func TestSignInHandler(t *testing.T) {
	account := database.User{
		Id:           4,
		EmailAddress: "paul@example.org",
		PasswordHash: mustHash(t, "correct"),
	}

	tcases := []struct {
		name     string
		password string
		mockUser database.User
		mockErr  error
		status   int
	}{
		{name: "valid credentials", password: "correct", mockUser: account, status: http.StatusOK},
		{name: "wrong password", password: "wrong", mockUser: account, status: http.StatusUnauthorized},
		{name: "unknown account", password: "correct", mockErr: sql.ErrNoRows, status: http.StatusUnauthorized},
		{name: "database failure", password: "correct", mockErr: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("GetAccountByEmail", "paul@example.org").Return(tc.mockUser, tc.mockErr).Once()

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/signin",
				SignInRequest{Email: "paul@example.org", Password: tc.password}, 0))

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				cookie := findCookie(rr, tokenCookieKey)
				require.NotNil(t, cookie)
				userId, err := app.auth.ParseToken(cookie.Value)
				require.NoError(t, err)
				assert.Equal(t, 4, userId)
			} else {
				assert.Nil(t, findCookie(rr, tokenCookieKey), "expected no session cookie")
			}
		})
	}
}

func TestSignOutHandler(t *testing.T) {
	app := newTestApp(t, &database.MockChurchRepository{}, nil)
	rr := serve(app, newRequest(t, app, http.MethodPost, "/api/auth/signout", nil, 0))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookie := findCookie(rr, tokenCookieKey)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestRoleHandler(t *testing.T) {
	mockRepo := &database.MockChurchRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetRole", 5).Return("", sql.ErrNoRows).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := serve(app, newRequest(t, app, http.MethodGet, "/api/auth/role", nil, 5))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp RoleResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, types.RoleMember, resp.Role)
}

func TestGetMessagesHandler(t *testing.T) {
	conv := database.Conversation{Id: 10, ExternalId: "abc123"}
	now := time.Now().UTC()

	tcases := []struct {
		name        string
		convErr     error
		participant bool
		status      int
	}{
		{name: "returns messages", participant: true, status: http.StatusOK},
		{name: "unknown conversation", convErr: sql.ErrNoRows, status: http.StatusNotFound},
		{name: "not a participant", participant: false, status: http.StatusForbidden},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("GetConversationByExternalId", "abc123").Return(conv, tc.convErr).Once()
			if tc.convErr == nil {
				mockRepo.On("IsParticipant", 10, 1).Return(tc.participant).Once()
			}
			if tc.status == http.StatusOK {
				mockRepo.On("GetMessages", 10, 20).Return([]database.Message{
					{Id: 1, ConversationId: 10, SenderId: 1, Content: "hello", CreatedAt: now},
					{Id: 2, ConversationId: 10, SenderId: 2, Content: "hi", CreatedAt: now.Add(time.Second)},
				}, nil).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodGet, "/api/conversations/abc123/messages?limit=20", nil, 1))

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusOK {
				var msgs []types.Message
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
				require.Len(t, msgs, 2)
				assert.Equal(t, "abc123", msgs[0].ConversationId)
			}
		})
	}
}

func TestGetMessagesHandler_InvalidLimit(t *testing.T) {
	app := newTestApp(t, &database.MockChurchRepository{}, nil)
	rr := serve(app, newRequest(t, app, http.MethodGet, "/api/conversations/abc123/messages?limit=nope", nil, 1))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendMessageHandler(t *testing.T) {
	conv := database.Conversation{Id: 10, ExternalId: "abc123"}

	t.Run("stores the message", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetConversationByExternalId", "abc123").Return(conv, nil).Once()
		mockRepo.On("IsParticipant", 10, 1).Return(true).Once()
		mockRepo.On("CreateMessage", database.CreateMessageParams{ConversationId: 10, SenderId: 1, Content: "peace be with you"}).
			Return(database.Message{Id: 9, ConversationId: 10, SenderId: 1, Content: "peace be with you", CreatedAt: time.Now()}, nil).Once()
		mockRepo.On("GetParticipantIds", 10).Return([]int{1, 2}, nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/conversations/abc123/messages",
			SendMessageRequest{Content: "  peace be with you  "}, 1))

		require.Equal(t, http.StatusCreated, rr.Code)
		var msg types.Message
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
		assert.Equal(t, 9, msg.Id)
		assert.Equal(t, "abc123", msg.ConversationId)
	})

	t.Run("rejects blank content", func(t *testing.T) {
		app := newTestApp(t, &database.MockChurchRepository{}, nil)
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/conversations/abc123/messages",
			SendMessageRequest{Content: "   "}, 1))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCreateConversationHandler(t *testing.T) {
	tcases := []struct {
		name          string
		participantId int
		accountErr    error
		status        int
	}{
		{name: "creates conversation", participantId: 2, status: http.StatusCreated},
		{name: "with self", participantId: 1, status: http.StatusBadRequest},
		{name: "unknown participant", participantId: 3, accountErr: sql.ErrNoRows, status: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.participantId != 1 {
				mockRepo.On("GetAccountById", tc.participantId).
					Return(database.User{Id: tc.participantId, FirstName: "Lydia"}, tc.accountErr).Once()
			}
			if tc.status == http.StatusCreated {
				mockRepo.On("CreateConversation", mock.MatchedBy(func(p database.CreateConversationParams) bool {
					return p.ExternalId != "" && assert.ObjectsAreEqual([]int{1, 2}, p.ParticipantIds)
				})).Return(database.Conversation{Id: 5, ExternalId: "xyz"}, nil).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodPost, "/api/conversations",
				CreateConversationRequest{ParticipantId: tc.participantId}, 1))

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusCreated {
				var conv types.Conversation
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&conv))
				assert.Equal(t, "Lydia", conv.OtherParty.FirstName)
			}
		})
	}
}

func TestMarkReadHandler(t *testing.T) {
	mockRepo := &database.MockChurchRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetConversationByExternalId", "abc123").Return(database.Conversation{Id: 10, ExternalId: "abc123"}, nil).Once()
	mockRepo.On("IsParticipant", 10, 2).Return(true).Once()
	mockRepo.On("MarkMessagesRead", 10, 2).Return(int64(3), nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := serve(app, newRequest(t, app, http.MethodPost, "/api/conversations/abc123/read", nil, 2))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ReadResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, int64(3), resp.Updated)
}

func TestUpdatePrayerRequestHandler(t *testing.T) {
	t.Run("updates and notifies the requester", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRole", 1).Return("admin", nil).Once()
		mockRepo.On("UpdatePrayerRequestStatus", 8, types.PrayerAnswered).
			Return(database.PrayerRequest{Id: 8, AccountId: 6, Title: "Healing", Status: types.PrayerAnswered}, nil).Once()
		mockRepo.On("GetNotificationPreferences", 6).
			Return(database.NotificationPreferences{AccountId: 6, PrayerRequests: false}, nil).Once()

		pushSvc := push.NewService(mockRepo, nil, nil, nil, testutil.TestLogger(t))
		app := newTestApp(t, mockRepo, pushSvc)
		rr := serve(app, newRequest(t, app, http.MethodPut, "/api/prayer-requests/8",
			UpdatePrayerRequestRequest{Status: types.PrayerAnswered}, 1))
		app.bg.Wait()

		require.Equal(t, http.StatusOK, rr.Code)
		var pr types.PrayerRequest
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&pr))
		assert.Equal(t, types.PrayerAnswered, pr.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRole", 1).Return("admin", nil).Once()

		app := newTestApp(t, mockRepo, nil)
		rr := serve(app, newRequest(t, app, http.MethodPut, "/api/prayer-requests/8",
			UpdatePrayerRequestRequest{Status: "forgotten"}, 1))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUnregisterPushTokenHandler(t *testing.T) {
	tcases := []struct {
		name   string
		token  string
		status int
	}{
		{name: "own token", token: "device-a", status: http.StatusNoContent},
		{name: "someone else's token", token: "device-z", status: http.StatusNotFound},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("ListPushTokens", 1).Return([]database.PushToken{{Id: "t1", AccountId: 1, Token: "device-a"}}, nil).Once()
			if tc.status == http.StatusNoContent {
				mockRepo.On("DeletePushToken", "device-a").Return(nil).Once()
			}

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodDelete, "/api/push/tokens", UnregisterPushTokenRequest{Token: tc.token}, 1))
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

type fakeSender struct {
	err error
}

func (f fakeSender) Send(ctx context.Context, token string, n types.Notification) error {
	return f.err
}

func TestSendPushFunctionHandler(t *testing.T) {
	messageReq := func(userIds ...int) types.PushRequest {
		return types.PushRequest{
			UserIds: userIds,
			Notification: types.Notification{
				Title: "New message",
				Type:  types.NotificationMessage,
				Data:  map[string]any{"conversation_id": "abc"},
			},
		}
	}
	announcementReq := types.PushRequest{
		UserIds:      []int{2},
		Notification: types.Notification{Title: "Potluck", Type: types.NotificationAnnouncement},
	}
	conv := database.Conversation{Id: 7, ExternalId: "abc"}

	t.Run("member may notify conversation partners", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRole", 1).Return("member", nil).Once()
		mockRepo.On("GetConversationByExternalId", "abc").Return(conv, nil).Once()
		mockRepo.On("GetParticipantIds", 7).Return([]int{1, 2}, nil).Once()
		mockRepo.On("ListPushTokens", 2).Return([]database.PushToken{{Id: "t", AccountId: 2, Token: "device"}}, nil).Once()

		pushSvc := push.NewService(mockRepo, nil, fakeSender{}, nil, testutil.TestLogger(t))
		app := newTestApp(t, mockRepo, pushSvc)
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, messageReq(2), 1))

		require.Equal(t, http.StatusOK, rr.Code)
		var report types.PushReport
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&report))
		assert.Equal(t, types.PushReport{Delivered: 1}, report)
	})

	t.Run("member may not notify outside the conversation", func(t *testing.T) {
		tcases := []struct {
			name  string
			req   types.PushRequest
			setup func(m *database.MockChurchRepository)
		}{
			{
				name: "target not a participant",
				req:  messageReq(2, 9),
				setup: func(m *database.MockChurchRepository) {
					m.On("GetConversationByExternalId", "abc").Return(conv, nil).Once()
					m.On("GetParticipantIds", 7).Return([]int{1, 2}, nil).Once()
				},
			},
			{
				name: "sender not a participant",
				req:  messageReq(2),
				setup: func(m *database.MockChurchRepository) {
					m.On("GetConversationByExternalId", "abc").Return(conv, nil).Once()
					m.On("GetParticipantIds", 7).Return([]int{2, 3}, nil).Once()
				},
			},
			{
				name: "unknown conversation",
				req:  messageReq(2),
				setup: func(m *database.MockChurchRepository) {
					m.On("GetConversationByExternalId", "abc").Return(database.Conversation{}, sql.ErrNoRows).Once()
				},
			},
			{
				name: "missing conversation id",
				req: types.PushRequest{
					UserIds:      []int{2},
					Notification: types.Notification{Title: "New message from Ruth", Type: types.NotificationMessage},
				},
				setup: func(m *database.MockChurchRepository) {},
			},
		}

		for _, tc := range tcases {
			t.Run(tc.name, func(t *testing.T) {
				mockRepo := &database.MockChurchRepository{}
				defer mockRepo.AssertExpectations(t)
				mockRepo.On("GetRole", 1).Return("member", nil).Once()
				tc.setup(mockRepo)

				app := newTestApp(t, mockRepo, push.NewService(mockRepo, nil, fakeSender{}, nil, testutil.TestLogger(t)))
				rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, tc.req, 1))

				assert.Equal(t, http.StatusForbidden, rr.Code)
				mockRepo.AssertNotCalled(t, "ListPushTokens", mock.Anything)
			})
		}
	})

	t.Run("admin may notify anyone", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRole", 1).Return("admin", nil).Once()
		mockRepo.On("ListPushTokens", 2).Return([]database.PushToken{}, nil).Once()

		app := newTestApp(t, mockRepo, push.NewService(mockRepo, nil, fakeSender{}, nil, testutil.TestLogger(t)))
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, announcementReq, 1))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockRepo.AssertNotCalled(t, "GetConversationByExternalId", mock.Anything)
	})

	t.Run("member may not send announcements", func(t *testing.T) {
		mockRepo := &database.MockChurchRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRole", 1).Return("member", nil).Once()

		app := newTestApp(t, mockRepo, push.NewService(mockRepo, nil, fakeSender{}, nil, testutil.TestLogger(t)))
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, announcementReq, 1))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unavailable without push service", func(t *testing.T) {
		app := newTestApp(t, &database.MockChurchRepository{}, nil)
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, messageReq(2), 1))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("rejects empty request", func(t *testing.T) {
		app := newTestApp(t, &database.MockChurchRepository{}, nil)
		rr := serve(app, newRequest(t, app, http.MethodPost, "/api/functions/"+notify.SendPushFunction, types.PushRequest{}, 1))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestSetRoleHandler(t *testing.T) {
	tcases := []struct {
		name   string
		req    SetRoleRequest
		setup  func(m *database.MockChurchRepository)
		status int
	}{
		{
			name: "grants admin",
			req:  SetRoleRequest{UserId: 2, Role: "admin"},
			setup: func(m *database.MockChurchRepository) {
				m.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
				m.On("SetRole", 2, "admin").Return(nil).Once()
			},
			status: http.StatusOK,
		},
		{
			name:   "unknown role",
			req:    SetRoleRequest{UserId: 2, Role: "admn"},
			setup:  func(m *database.MockChurchRepository) {},
			status: http.StatusBadRequest,
		},
		{
			name:   "empty role",
			req:    SetRoleRequest{UserId: 2},
			setup:  func(m *database.MockChurchRepository) {},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown account",
			req:  SetRoleRequest{UserId: 9, Role: "member"},
			setup: func(m *database.MockChurchRepository) {
				m.On("GetAccountById", 9).Return(database.User{}, sql.ErrNoRows).Once()
			},
			status: http.StatusNotFound,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("GetRole", 1).Return("admin", nil).Once()
			tc.setup(mockRepo)

			app := newTestApp(t, mockRepo, nil)
			rr := serve(app, newRequest(t, app, http.MethodPut, "/api/admin/roles", tc.req, 1))

			assert.Equal(t, tc.status, rr.Code)
			if tc.status == http.StatusBadRequest {
				mockRepo.AssertNotCalled(t, "SetRole", mock.Anything, mock.Anything)
			}
		})
	}
}

func Test_invokeFunction(t *testing.T) {
	mockRepo := &database.MockChurchRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListPushTokens", 3).Return([]database.PushToken{}, nil).Once()

	app := newTestApp(t, mockRepo, push.NewService(mockRepo, nil, fakeSender{}, nil, testutil.TestLogger(t)))

	res := app.notifier.SendPushNotification(context.Background(), notify.Request{
		UserIds:      []int{3},
		Notification: types.Notification{Title: "Hi"},
	})
	require.True(t, res.Success, res.Error)
	assert.JSONEq(t, `{"delivered":0,"skipped":1,"failed":0}`, string(res.Data))

	_, err := app.invokeFunction(context.Background(), "does-not-exist", []byte("{}"))
	assert.Error(t, err)
}

func TestSignInForm(t *testing.T) {
	account := database.User{Id: 4, EmailAddress: "paul@example.org", PasswordHash: mustHash(t, "correct")}

	tcases := []struct {
		name     string
		password string
		status   int
		location string
		body     string
	}{
		{name: "redirects to next", password: "correct", status: http.StatusSeeOther, location: "/messages?conversation=abc"},
		{name: "shows the sanitized message", password: "wrong", status: http.StatusUnauthorized, body: session.MsgInvalidCredentials},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChurchRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("GetAccountByEmail", "paul@example.org").Return(account, nil).Once()

			app := newTestApp(t, mockRepo, nil)
			form := url.Values{
				"email":    {"paul@example.org"},
				"password": {tc.password},
				"next":     {"/messages?conversation=abc"},
			}
			req := newRequest(t, app, http.MethodPost, "/signin", form.Encode(), 0)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := serve(app, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.location != "" {
				assert.Equal(t, tc.location, rr.Header().Get("Location"))
				assert.NotNil(t, findCookie(rr, tokenCookieKey))
			}
			if tc.body != "" {
				assert.Contains(t, rr.Body.String(), tc.body)
			}
		})
	}
}

func Test_safeNext(t *testing.T) {
	tcases := []struct {
		next     string
		expected string
	}{
		{next: "/messages?conversation=a", expected: "/messages?conversation=a"},
		{next: "", expected: "/messages"},
		{next: "https://evil.example", expected: "/messages"},
		{next: "//evil.example", expected: "/messages"},
		{next: "/\\evil.example", expected: "/messages"},
	}

	for _, tc := range tcases {
		t.Run(tc.next, func(t *testing.T) {
			assert.Equal(t, tc.expected, safeNext(tc.next))
		})
	}
}

func TestMessagesPage(t *testing.T) {
	now := time.Now().UTC()
	readAt := now.Add(time.Minute)

	mockRepo := &database.MockChurchRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetRole", 1).Return("member", nil).Once()
	mockRepo.On("ListConversations", 1).Return([]database.Conversation{
		{Id: 10, ExternalId: "abc", OtherParty: database.User{Id: 2, FirstName: "Priscilla"}},
	}, nil).Once()
	mockRepo.On("GetMessages", 10, defaultMessageLimit).Return([]database.Message{
		{Id: 2, SenderId: 2, Content: "see you sunday", CreatedAt: now.Add(time.Second)},
		{Id: 1, SenderId: 1, Content: "amen <3", CreatedAt: now, ReadAt: &readAt},
	}, nil).Once()
	mockRepo.On("MarkMessagesRead", 10, 1).Return(int64(0), nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := serve(app, newRequest(t, app, http.MethodGet, "/messages?conversation=abc", nil, 1))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Priscilla")
	assert.Contains(t, body, "amen &lt;3")
	assert.Contains(t, body, "✓✓")
	assert.Less(t, strings.Index(body, "amen"), strings.Index(body, "see you sunday"), "expected chronological order")
}

func TestMessagesPage_Empty(t *testing.T) {
	mockRepo := &database.MockChurchRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetRole", 1).Return("member", nil).Once()
	mockRepo.On("ListConversations", 1).Return([]database.Conversation{
		{Id: 10, ExternalId: "abc", OtherParty: database.User{Id: 2, FirstName: "Priscilla"}},
	}, nil).Once()
	mockRepo.On("GetMessages", 10, defaultMessageLimit).Return([]database.Message{}, nil).Once()
	mockRepo.On("MarkMessagesRead", 10, 1).Return(int64(0), nil).Once()

	app := newTestApp(t, mockRepo, nil)
	rr := serve(app, newRequest(t, app, http.MethodGet, "/messages?conversation=abc", nil, 1))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No messages yet. Start the conversation!")
}
