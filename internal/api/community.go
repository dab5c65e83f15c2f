package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/teris-io/shortid"
)

const listLimit = 50

type CreatePrayerRequestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type UpdatePrayerRequestRequest struct {
	Status string `json:"status"`
}

type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at"`
}

type CreateAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func validPrayerStatus(status string) bool {
	switch status {
	case types.PrayerOpen, types.PrayerPraying, types.PrayerAnswered:
		return true
	}
	return false
}

func (s *ChurchApp) listPrayerRequests(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	// admins see every request, members only their own
	accountId := userId
	if s.lookupRole(userId) == adminRole {
		accountId = 0
	}

	reqs, err := s.db.ListPrayerRequests(accountId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]types.PrayerRequest, 0, len(reqs))
	for _, p := range reqs {
		out = append(out, toPrayerRequest(p))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *ChurchApp) createPrayerRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreatePrayerRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	requester, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	created, err := s.db.CreatePrayerRequest(database.CreatePrayerRequestParams{
		AccountId: userId,
		Title:     req.Title,
		Body:      strings.TrimSpace(req.Body),
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	name := identity.ToUser(requester).DisplayName()
	s.background(func(ctx context.Context) {
		teamIds, err := s.db.ListAccountIdsByRole(adminRole)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list prayer team")
			return
		}
		s.notifier.NotifyNewPrayerRequest(ctx, teamIds, created.Id, name, created.Title)
	})

	s.writeJson(w, http.StatusCreated, toPrayerRequest(created))
}

func (s *ChurchApp) updatePrayerRequest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		s.writeError(w, NewBadRequestError())
		return
	}

	var req UpdatePrayerRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validPrayerStatus(req.Status) {
		s.writeError(w, NewBadRequestError())
		return
	}

	updated, err := s.db.UpdatePrayerRequestStatus(id, req.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.background(func(ctx context.Context) {
		s.notifier.NotifyPrayerRequestUpdate(ctx, updated.AccountId, updated.Id, updated.Title, updated.Status)
	})

	s.writeJson(w, http.StatusOK, toPrayerRequest(updated))
}

func (s *ChurchApp) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.db.ListUpcomingEvents(listLimit)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]types.Event, 0, len(events))
	for _, e := range events {
		out = append(out, toEvent(e))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *ChurchApp) createEvent(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartsAt.IsZero() {
		s.writeError(w, NewBadRequestError())
		return
	}

	externalId, err := shortid.Generate()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	event, err := s.db.CreateEvent(database.CreateEventParams{
		ExternalId:  externalId,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		CreatedBy:   userId,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, toEvent(event))
}

func (s *ChurchApp) remindEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.db.GetEventByExternalId(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	userIds, err := s.db.ListAccountIds()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	res := s.notifier.NotifyUpcomingEvent(r.Context(), userIds, toEvent(event))
	if !res.Success {
		s.writeError(w, NewServiceUnavailableError(errors.New(res.Error)))
		return
	}
	s.writeJson(w, http.StatusOK, res.Data)
}

func (s *ChurchApp) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	anns, err := s.db.ListAnnouncements(listLimit)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]types.Announcement, 0, len(anns))
	for _, a := range anns {
		out = append(out, toAnnouncement(a))
	}
	s.writeJson(w, http.StatusOK, out)
}

// publishAnnouncement stores an announcement and notifies every member.
func (s *ChurchApp) publishAnnouncement(userId int, title, body string) (types.Announcement, error) {
	created, err := s.db.CreateAnnouncement(database.CreateAnnouncementParams{
		Title:     title,
		Body:      body,
		CreatedBy: userId,
	})
	if err != nil {
		return types.Announcement{}, err
	}
	ann := toAnnouncement(created)

	s.background(func(ctx context.Context) {
		userIds, err := s.db.ListAccountIds()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list announcement recipients")
			return
		}
		s.notifier.NotifyNewAnnouncement(ctx, userIds, ann)
	})

	return ann, nil
}

func (s *ChurchApp) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateAnnouncementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	ann, err := s.publishAnnouncement(userId, req.Title, strings.TrimSpace(req.Body))
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	s.writeJson(w, http.StatusCreated, ann)
}
