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
	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/teris-io/shortid"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxMessageLength    = 4000
)

type CreateConversationRequest struct {
	ParticipantId int `json:"participant_id"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type ReadResponse struct {
	Updated int64 `json:"updated"`
}

func (s *ChurchApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	convs, err := s.db.ListConversations(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]types.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, toConversation(c))
	}
	s.writeJson(w, http.StatusOK, out)
}

func (s *ChurchApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantId <= 0 || req.ParticipantId == userId {
		s.writeError(w, NewBadRequestError())
		return
	}

	other, err := s.db.GetAccountById(req.ParticipantId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	externalId, err := shortid.Generate()
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	conv, err := s.db.CreateConversation(database.CreateConversationParams{
		ExternalId:     externalId,
		ParticipantIds: []int{userId, req.ParticipantId},
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	conv.OtherParty = other

	s.writeJson(w, http.StatusCreated, toConversation(conv))
}

// conversationFor loads the conversation named by the {id} path value and
// checks the caller takes part in it. It writes the error response itself.
func (s *ChurchApp) conversationFor(w http.ResponseWriter, r *http.Request, externalId string) (database.Conversation, bool) {
	userId, _ := UserId(r.Context())

	conv, err := s.db.GetConversationByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return database.Conversation{}, false
		}
		s.writeError(w, NewInternalServerError(err))
		return database.Conversation{}, false
	}

	if !s.db.IsParticipant(conv.Id, userId) {
		s.writeError(w, NewForbiddenError())
		return database.Conversation{}, false
	}

	return conv, true
}

func parseLimit(raw string, def, max int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

func (s *ChurchApp) getMessages(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r.URL.Query().Get("limit"), defaultMessageLimit, maxMessageLimit)
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	conv, ok := s.conversationFor(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	msgs, err := s.db.GetMessages(conv.Id, limit)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m, conv.ExternalId))
	}
	s.writeJson(w, http.StatusOK, out)
}

// postMessage stores content from userId and fans it out to subscribed
// participants.
func (s *ChurchApp) postMessage(conv database.Conversation, userId int, content string) (types.Message, []int, error) {
	dbMsg, err := s.db.CreateMessage(database.CreateMessageParams{
		ConversationId: conv.Id,
		SenderId:       userId,
		Content:        content,
	})
	if err != nil {
		return types.Message{}, nil, err
	}
	s.stats.Incr(stats.MessagesSent)

	msg := toMessage(dbMsg, conv.ExternalId)

	participants, err := s.db.GetParticipantIds(conv.Id)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conv.ExternalId).Msg("failed to load participants for fan-out")
		return msg, nil, nil
	}

	if s.hub != nil {
		s.hub.PublishMessage(participants, msg)
	}
	return msg, participants, nil
}

func validContent(content string) (string, bool) {
	content = strings.TrimSpace(content)
	return content, content != "" && len(content) <= maxMessageLength
}

func (s *ChurchApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	content, ok := validContent(req.Content)
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	conv, ok := s.conversationFor(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	msg, _, err := s.postMessage(conv, userId, content)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ChurchApp) markRead(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	conv, ok := s.conversationFor(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	n, err := s.readConversation(conv, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, ReadResponse{Updated: n})
}

// readConversation marks the messages userId received in conv as read and
// tells subscribed participants when anything changed.
func (s *ChurchApp) readConversation(conv database.Conversation, userId int) (int64, error) {
	n, err := s.db.MarkMessagesRead(conv.Id, userId)
	if err != nil {
		return 0, err
	}

	if n > 0 && s.hub != nil {
		participants, err := s.db.GetParticipantIds(conv.Id)
		if err != nil {
			s.log.Error().Err(err).Str("conversation_id", conv.ExternalId).Msg("failed to load participants for read receipt")
			return n, nil
		}
		s.hub.PublishRead(participants, realtime.ReadReceipt{
			ConversationId: conv.ExternalId,
			ReaderId:       userId,
			ReadAt:         realtime.Now(),
		})
	}

	return n, nil
}

// background runs fn detached from the request, tracked so shutdown can
// wait for it.
func (s *ChurchApp) background(fn func(ctx context.Context)) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		fn(ctx)
	}()
}
