package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/npezzotti/go-fellowship/internal/guard"
	"github.com/npezzotti/go-fellowship/internal/types"
)

const (
	tokenCookieKey = "token"
	adminRole      = types.RoleAdmin
)

type contextKey string

const (
	userIdKey contextKey = "user-id"
	roleKey   contextKey = "role"
)

func WithUserId(ctx context.Context, userId int) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func UserId(ctx context.Context) (int, bool) {
	userId, ok := ctx.Value(userIdKey).(int)
	return userId, ok
}

func withRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func roleFrom(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

func (s *ChurchApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *ChurchApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Error().Err(errResp.Err).Int("status", errResp.StatusCode).Msg("request failed")
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *ChurchApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// sessionUser returns the user id carried by the request's session cookie.
func (s *ChurchApp) sessionUser(r *http.Request) (int, bool) {
	tokenCookie, err := r.Cookie(tokenCookieKey)
	if err != nil {
		return 0, false
	}

	userId, err := s.auth.ParseToken(tokenCookie.Value)
	if err != nil {
		s.log.Debug().Err(err).Msg("rejecting session token")
		return 0, false
	}
	return userId, true
}

func (s *ChurchApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, ok := s.sessionUser(r)
		if !ok {
			s.writeError(w, NewUnauthorizedError())
			return
		}

		ctx := WithUserId(r.Context(), userId)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// lookupRole resolves the caller's role, falling back to member.
func (s *ChurchApp) lookupRole(userId int) string {
	role, err := s.auth.Role(userId)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", userId).Msg("role lookup failed, using default")
		return types.RoleMember
	}
	return role
}

// requireRole rejects callers whose role does not satisfy requiredRole.
// It must run inside authMiddleware.
func (s *ChurchApp) requireRole(requiredRole string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId, ok := UserId(r.Context())
		if !ok {
			s.writeError(w, NewUnauthorizedError())
			return
		}

		role := s.lookupRole(userId)
		switch guard.Decide(false, &types.User{Id: userId}, role, requiredRole) {
		case guard.Render:
			next(w, r.WithContext(withRole(r.Context(), role)))
		case guard.Denied:
			s.writeError(w, NewForbiddenError())
		default:
			s.writeError(w, NewUnauthorizedError())
		}
	}
}

// pageGuard gates an HTML page: visitors without a session are sent to the
// sign-in page, visitors without the role see the access-denied page.
func (s *ChurchApp) pageGuard(requiredRole string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			user *types.User
			role string
		)
		if userId, ok := s.sessionUser(r); ok {
			user = &types.User{Id: userId}
			role = s.lookupRole(userId)
		}

		switch guard.Decide(false, user, role, requiredRole) {
		case guard.Redirect:
			http.Redirect(w, r, "/signin?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		case guard.Denied:
			s.render(w, http.StatusForbidden, "denied.html.tmpl", pageData{Title: "Access denied"})
		case guard.Render:
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			ctx := withRole(WithUserId(r.Context(), user.Id), role)
			next(w, r.WithContext(ctx))
		}
	}
}
