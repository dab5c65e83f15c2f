package api

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-fellowship/internal/config"
	"github.com/npezzotti/go-fellowship/internal/database"
	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/notify"
	"github.com/npezzotti/go-fellowship/internal/push"
	"github.com/npezzotti/go-fellowship/internal/realtime"
	"github.com/npezzotti/go-fellowship/internal/stats"
	"github.com/rs/zerolog"
)

type ChurchApp struct {
	log            zerolog.Logger
	db             database.ChurchRepository
	hub            *realtime.Hub
	auth           *identity.Service
	push           *push.Service
	notifier       *notify.Dispatcher
	stats          stats.StatsProvider
	templates      map[string]*template.Template
	allowedOrigins []string
	srv            *http.Server

	// background notification dispatches
	bg sync.WaitGroup
}

func NewChurchApp(
	mux *http.ServeMux,
	logger zerolog.Logger,
	db database.ChurchRepository,
	hub *realtime.Hub,
	auth *identity.Service,
	pushSvc *push.Service,
	sp stats.StatsProvider,
	cfg *config.Config,
) (*ChurchApp, error) {
	tmpl, err := newTemplateCache()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	if sp == nil {
		sp = stats.NoopStats{}
	}
	sp.RegisterMetric(stats.MessagesSent)
	sp.RegisterMetric(stats.PushTokensRegistered)

	s := &ChurchApp{
		log:            logger,
		db:             db,
		hub:            hub,
		auth:           auth,
		push:           pushSvc,
		stats:          sp,
		templates:      tmpl,
		allowedOrigins: cfg.AllowedOrigins,
	}
	s.notifier = notify.NewDispatcher(notify.TransportFunc(s.invokeFunction), logger)

	mux.HandleFunc("GET /healthz", s.healthCheck)

	mux.HandleFunc("POST /api/auth/signup", s.signUp)
	mux.HandleFunc("POST /api/auth/signin", s.signIn)
	mux.HandleFunc("POST /api/auth/signout", s.signOut)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/role", s.authMiddleware(s.role))
	mux.HandleFunc("PUT /api/admin/roles", s.authMiddleware(s.requireRole(adminRole, s.setRole)))

	mux.HandleFunc("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.HandleFunc("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("POST /api/conversations/{id}/read", s.authMiddleware(s.markRead))

	mux.HandleFunc("GET /api/prayer-requests", s.authMiddleware(s.listPrayerRequests))
	mux.HandleFunc("POST /api/prayer-requests", s.authMiddleware(s.createPrayerRequest))
	mux.HandleFunc("PUT /api/prayer-requests/{id}", s.authMiddleware(s.requireRole(adminRole, s.updatePrayerRequest)))

	mux.HandleFunc("GET /api/events", s.authMiddleware(s.listEvents))
	mux.HandleFunc("POST /api/events", s.authMiddleware(s.requireRole(adminRole, s.createEvent)))
	mux.HandleFunc("POST /api/events/{id}/remind", s.authMiddleware(s.requireRole(adminRole, s.remindEvent)))

	mux.HandleFunc("GET /api/announcements", s.authMiddleware(s.listAnnouncements))
	mux.HandleFunc("POST /api/announcements", s.authMiddleware(s.requireRole(adminRole, s.createAnnouncement)))

	mux.HandleFunc("POST /api/push/tokens", s.authMiddleware(s.registerPushToken))
	mux.HandleFunc("DELETE /api/push/tokens", s.authMiddleware(s.unregisterPushToken))
	mux.HandleFunc("GET /api/notification-preferences", s.authMiddleware(s.getPreferences))
	mux.HandleFunc("PUT /api/notification-preferences", s.authMiddleware(s.updatePreferences))
	mux.HandleFunc("POST /api/functions/"+notify.SendPushFunction, s.authMiddleware(s.sendPushFunction))

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	mux.HandleFunc("GET /signin", s.signInPage)
	mux.HandleFunc("POST /signin", s.signInForm)
	mux.HandleFunc("GET /signout", s.signOutPage)
	mux.HandleFunc("GET /messages", s.pageGuard("", s.messagesPage))
	mux.HandleFunc("POST /messages", s.pageGuard("", s.messagesForm))
	mux.HandleFunc("GET /admin/announcements", s.pageGuard(adminRole, s.announcementsPage))
	mux.HandleFunc("POST /admin/announcements", s.pageGuard(adminRole, s.announcementsForm))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = handlers.CombinedLoggingHandler(accessLog{logger}, h)
	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s, nil
}

func (s *ChurchApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *ChurchApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *ChurchApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for notifications: %w", ctx.Err())
	}
}

// accessLog writes gorilla/handlers access lines through zerolog.
type accessLog struct {
	log zerolog.Logger
}

func (a accessLog) Write(p []byte) (int, error) {
	n := len(p)
	if n > 0 && p[n-1] == '\n' {
		p = p[:n-1]
	}
	a.log.Info().Str("component", "http").Msg(string(p))
	return n, nil
}

func (s *ChurchApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
