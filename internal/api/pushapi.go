package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/notify"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/npezzotti/go-fellowship/internal/types"
)

var errPushUnavailable = errors.New("push delivery is not configured")

type RegisterPushTokenRequest struct {
	Token      string `json:"token"`
	DeviceInfo string `json:"device_info"`
}

type UnregisterPushTokenRequest struct {
	Token string `json:"token"`
}

type PushTokenResponse struct {
	Id         string `json:"id"`
	Token      string `json:"token"`
	DeviceInfo string `json:"device_info,omitempty"`
}

func (s *ChurchApp) registerPushToken(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req RegisterPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	pt, err := s.db.SavePushToken(database.SavePushTokenParams{
		Id:         uuid.New().String(),
		AccountId:  userId,
		Token:      req.Token,
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	s.stats.Incr(stats.PushTokensRegistered)

	s.writeJson(w, http.StatusCreated, PushTokenResponse{
		Id:         pt.Id,
		Token:      pt.Token,
		DeviceInfo: pt.DeviceInfo,
	})
}

func (s *ChurchApp) unregisterPushToken(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req UnregisterPushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	tokens, err := s.db.ListPushTokens(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	owned := false
	for _, pt := range tokens {
		if pt.Token == req.Token {
			owned = true
			break
		}
	}
	if !owned {
		s.writeError(w, NewNotFoundError())
		return
	}

	if err := s.db.DeletePushToken(req.Token); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *ChurchApp) getPreferences(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	prefs, err := s.db.GetNotificationPreferences(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toPreferences(prefs))
}

func (s *ChurchApp) updatePreferences(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req types.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.db.UpdateNotificationPreferences(database.NotificationPreferences{
		AccountId:      userId,
		Messages:       req.Messages,
		PrayerRequests: req.PrayerRequests,
		Events:         req.Events,
		Announcements:  req.Announcements,
	}); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, req)
}

// sendPushFunction is the HTTP face of the send-push-notification function.
// Members may only send message notifications; every other type needs the
// admin role.
func (s *ChurchApp) sendPushFunction(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req types.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	if len(req.UserIds) == 0 || req.Notification.Title == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	if s.push == nil {
		s.writeError(w, NewServiceUnavailableError(errPushUnavailable))
		return
	}

	if s.lookupRole(userId) != adminRole {
		if req.Notification.Type != types.NotificationMessage {
			s.writeError(w, NewForbiddenError())
			return
		}
		ok, err := s.sharesConversation(userId, req)
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
		if !ok {
			s.writeError(w, NewForbiddenError())
			return
		}
	}

	s.writeJson(w, http.StatusOK, s.push.Deliver(r.Context(), req))
}

// sharesConversation reports whether the sender and every target belong to
// the conversation named by the notification's conversation_id.
func (s *ChurchApp) sharesConversation(senderId int, req types.PushRequest) (bool, error) {
	externalId, _ := req.Notification.Data["conversation_id"].(string)
	if externalId == "" {
		return false, nil
	}

	conv, err := s.db.GetConversationByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	ids, err := s.db.GetParticipantIds(conv.Id)
	if err != nil {
		return false, err
	}
	if !slices.Contains(ids, senderId) {
		return false, nil
	}
	for _, id := range req.UserIds {
		if !slices.Contains(ids, id) {
			return false, nil
		}
	}
	return true, nil
}

// invokeFunction runs named functions in process for the server's own
// notification dispatcher.
func (s *ChurchApp) invokeFunction(ctx context.Context, name string, body []byte) (json.RawMessage, error) {
	if name != notify.SendPushFunction {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if s.push == nil {
		return nil, errPushUnavailable
	}

	var req types.PushRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("decode push request: %w", err)
	}

	report := s.push.Deliver(ctx, req)
	return json.Marshal(report)
}
