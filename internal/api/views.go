package api

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/session"
	"github.com/npezzotti/go-fellowship/internal/transcript"
	"github.com/npezzotti/go-fellowship/internal/types"
)

//go:embed templates
var templateFS embed.FS

type pageData struct {
	Title         string
	Role          string
	Error         string
	Next          string
	Email         string
	Conversations []types.Conversation
	Current       string
	Transcript    transcript.View
	Announcements []types.Announcement
}

func (p pageData) Admin() bool {
	return p.Role == adminRole
}

var templateFuncs = template.FuncMap{
	"loadingText": func() string { return transcript.LoadingText },
	"emptyText":   func() string { return transcript.EmptyText },
	"clock": func(t time.Time) string {
		return t.Local().Format("15:04")
	},
	"date": func(t time.Time) string {
		return t.Local().Format("Jan 2, 2006")
	},
}

func newTemplateCache() (map[string]*template.Template, error) {
	tmplCache := make(map[string]*template.Template)

	pages, err := fs.Glob(templateFS, "templates/pages/*.tmpl")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := path.Base(page)
		patterns := []string{
			"templates/base.html.tmpl",
			page,
		}

		ts, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, patterns...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		tmplCache[name] = ts
	}

	return tmplCache, nil
}

// render executes the page into a buffer first so a template error never
// produces a half-written page.
func (s *ChurchApp) render(w http.ResponseWriter, statusCode int, name string, data pageData) {
	tmpl, ok := s.templates[name]
	if !ok {
		s.writeError(w, NewInternalServerError(fmt.Errorf("template %q not in cache", name)))
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		s.writeError(w, NewInternalServerError(fmt.Errorf("render %s: %w", name, err)))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	buf.WriteTo(w)
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/messages"
	}
	return next
}

func (s *ChurchApp) signInPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "signin.html.tmpl", pageData{
		Title: "Sign in",
		Next:  safeNext(r.URL.Query().Get("next")),
	})
}

func (s *ChurchApp) signInForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	email := r.PostForm.Get("email")
	next := safeNext(r.PostForm.Get("next"))

	user, token, err := s.auth.SignIn(email, r.PostForm.Get("password"))
	if err != nil {
		data := pageData{Title: "Sign in", Next: next, Email: email}
		if errors.Is(err, identity.ErrInvalidCredentials) {
			data.Error = session.MsgInvalidCredentials
			s.render(w, http.StatusUnauthorized, "signin.html.tmpl", data)
			return
		}
		s.log.Error().Err(err).Msg("sign in failed")
		data.Error = session.MsgAuthFailed
		s.render(w, http.StatusInternalServerError, "signin.html.tmpl", data)
		return
	}

	s.log.Info().Int("user_id", user.Id).Msg("signed in via web")
	http.SetCookie(w, createJwtCookie(token, s.auth.TTL()))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *ChurchApp) signOutPage(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, expiredCookie())
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

func (s *ChurchApp) messagesPage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	data := pageData{
		Title: "Messages",
		Role:  roleFrom(r.Context()),
	}

	convs, err := s.db.ListConversations(userId)
	if err != nil {
		// the page still renders, the list just stays in its loading state
		s.log.Error().Err(err).Msg("failed to list conversations")
		data.Transcript = transcript.Build(nil, userId, nil, true)
		s.render(w, http.StatusOK, "messages.html.tmpl", data)
		return
	}
	for _, c := range convs {
		data.Conversations = append(data.Conversations, toConversation(c))
	}

	current := r.URL.Query().Get("conversation")
	if current == "" {
		s.render(w, http.StatusOK, "messages.html.tmpl", data)
		return
	}

	var selected *types.Conversation
	for i := range data.Conversations {
		if data.Conversations[i].ExternalId == current {
			selected = &data.Conversations[i]
			break
		}
	}
	if selected == nil {
		data.Error = "Conversation not found"
		s.render(w, http.StatusNotFound, "messages.html.tmpl", data)
		return
	}
	data.Current = current

	conv := database.Conversation{Id: selected.Id, ExternalId: selected.ExternalId}
	msgs, err := s.db.GetMessages(conv.Id, defaultMessageLimit)
	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", current).Msg("failed to load messages")
		data.Transcript = transcript.Build(nil, userId, selected, true)
		s.render(w, http.StatusOK, "messages.html.tmpl", data)
		return
	}

	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m, current))
	}
	data.Transcript = transcript.Build(out, userId, selected, false)

	if _, err := s.readConversation(conv, userId); err != nil {
		s.log.Error().Err(err).Str("conversation_id", current).Msg("failed to mark messages read")
	}

	s.render(w, http.StatusOK, "messages.html.tmpl", data)
}

func (s *ChurchApp) messagesForm(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := r.ParseForm(); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	externalId := r.PostForm.Get("conversation")
	target := "/messages?conversation=" + url.QueryEscape(externalId)

	content, ok := validContent(r.PostForm.Get("content"))
	if !ok {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	conv, err := s.db.GetConversationByExternalId(externalId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Redirect(w, r, "/messages", http.StatusSeeOther)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !s.db.IsParticipant(conv.Id, userId) {
		s.render(w, http.StatusForbidden, "denied.html.tmpl", pageData{Title: "Access denied"})
		return
	}

	msg, participants, err := s.postMessage(conv, userId, content)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	sender, err := s.db.GetAccountById(userId)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load sender for notification")
	} else {
		senderName := identity.ToUser(sender).DisplayName()
		for _, recipientId := range participants {
			if recipientId == userId {
				continue
			}
			s.background(func(ctx context.Context) {
				s.notifier.NotifyNewMessage(ctx, recipientId, senderName, msg.Content, msg.ConversationId)
			})
		}
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *ChurchApp) announcementsPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title: "Announcements",
		Role:  roleFrom(r.Context()),
	}

	anns, err := s.db.ListAnnouncements(listLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list announcements")
		data.Error = "Announcements could not be loaded"
	}
	for _, a := range anns {
		data.Announcements = append(data.Announcements, toAnnouncement(a))
	}

	s.render(w, http.StatusOK, "announcements.html.tmpl", data)
}

func (s *ChurchApp) announcementsForm(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	if err := r.ParseForm(); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	title := strings.TrimSpace(r.PostForm.Get("title"))
	if title == "" {
		http.Redirect(w, r, "/admin/announcements", http.StatusSeeOther)
		return
	}

	if _, err := s.publishAnnouncement(userId, title, strings.TrimSpace(r.PostForm.Get("body"))); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.Redirect(w, r, "/admin/announcements", http.StatusSeeOther)
}
