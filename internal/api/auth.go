package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-fellowship/internal/identity"
	"github.com/npezzotti/go-fellowship/internal/types"
)

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

type RoleResponse struct {
	Role string `json:"role"`
}

type SetRoleRequest struct {
	UserId int    `json:"user_id"`
	Role   string `json:"role"`
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *ChurchApp) signUp(w http.ResponseWriter, r *http.Request) {
	var req identity.SignUpParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, err := s.auth.SignUp(req)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			s.writeError(w, NewConflictError())
		case errors.Is(err, identity.ErrInvalidSignUp):
			s.writeError(w, NewBadRequestError())
		default:
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	token, err := s.auth.IssueToken(user.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.log.Info().Int("user_id", user.Id).Msg("account created")
	http.SetCookie(w, createJwtCookie(token, s.auth.TTL()))
	s.writeJson(w, http.StatusCreated, SessionResponse{User: user, Token: token})
}

func (s *ChurchApp) signIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	user, token, err := s.auth.SignIn(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, s.auth.TTL()))
	s.writeJson(w, http.StatusOK, SessionResponse{User: user, Token: token})
}

func (s *ChurchApp) signOut(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, expiredCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChurchApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, SessionResponse{User: identity.ToUser(account)})
}

func (s *ChurchApp) role(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	role, err := s.auth.Role(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, RoleResponse{Role: role})
}

func (s *ChurchApp) setRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId <= 0 || !types.ValidRole(req.Role) {
		s.writeError(w, NewBadRequestError())
		return
	}

	if _, err := s.db.GetAccountById(req.UserId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeError(w, NewNotFoundError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if err := s.db.SetRole(req.UserId, req.Role); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	adminId, _ := UserId(r.Context())
	s.log.Info().Int("admin_id", adminId).Int("user_id", req.UserId).Str("role", req.Role).Msg("role updated")
	s.writeJson(w, http.StatusOK, RoleResponse{Role: req.Role})
}
