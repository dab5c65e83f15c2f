// Package apiclient talks to the fellowship server's JSON API and realtime
// feed on behalf of the terminal client.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/npezzotti/go-fellowship/internal/session"
	"github.com/npezzotti/go-fellowship/internal/types"
	"github.com/rs/zerolog"
)

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type Client struct {
	baseURL    *url.URL
	jar        http.CookieJar
	httpClient *resty.Client
	log        zerolog.Logger
}

func New(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := resty.New().
		SetBaseURL(u.String()).
		SetCookieJar(jar).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "churchctl/1.0").
		SetTimeout(timeout)

	return &Client{
		baseURL:    u,
		jar:        jar,
		httpClient: httpClient,
		log:        log,
	}, nil
}

// HTTP exposes the underlying client, session cookie included, for callers
// such as the push function client.
func (c *Client) HTTP() *resty.Client {
	return c.httpClient
}

// do sends a JSON request and decodes a JSON result into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var apiErr StatusError
	req := c.httpClient.R().
		SetContext(ctx).
		SetError(&apiErr)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return &apiErr
	}

	return nil
}

type sessionResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

// CurrentSession returns nil without error when the server does not
// recognise the stored session.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &resp); err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			return nil, nil
		}
		return nil, err
	}

	return &session.Session{User: resp.User, Token: c.token()}, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (session.Session, error) {
	var resp sessionResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusNotFound) {
			return session.Session{}, fmt.Errorf("%w: %v", session.ErrInvalidCredentials, err)
		}
		return session.Session{}, err
	}

	return session.Session{User: resp.User, Token: resp.Token}, nil
}

func (c *Client) SignUp(ctx context.Context, req session.SignUpRequest) (session.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &resp); err != nil {
		if IsStatus(err, http.StatusConflict) {
			return session.Session{}, fmt.Errorf("%w: %v", session.ErrEmailTaken, err)
		}
		return session.Session{}, err
	}

	return session.Session{User: resp.User, Token: resp.Token}, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil)
}

// FetchRole returns the role of the signed-in user. The server resolves the
// user from the session, so userId only guards against asking while signed
// out.
func (c *Client) FetchRole(ctx context.Context, userId int) (string, error) {
	if userId <= 0 {
		return "", fmt.Errorf("invalid user id %d", userId)
	}

	var resp struct {
		Role string `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/role", nil, &resp); err != nil {
		return "", err
	}
	return resp.Role, nil
}

// token returns the session cookie value the jar holds for the server.
func (c *Client) token() string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == "token" {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) Conversations(ctx context.Context) ([]types.Conversation, error) {
	var convs []types.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) CreateConversation(ctx context.Context, participantId int) (types.Conversation, error) {
	var conv types.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", map[string]int{"participant_id": participantId}, &conv)
	return conv, err
}

func (c *Client) Messages(ctx context.Context, conversationId string, limit int) ([]types.Message, error) {
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationId))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var msgs []types.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationId, content string) (types.Message, error) {
	var msg types.Message
	path := fmt.Sprintf("/api/conversations/%s/messages", url.PathEscape(conversationId))
	err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg)
	return msg, err
}

func (c *Client) MarkRead(ctx context.Context, conversationId string) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	path := fmt.Sprintf("/api/conversations/%s/read", url.PathEscape(conversationId))
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) Announcements(ctx context.Context) ([]types.Announcement, error) {
	var anns []types.Announcement
	if err := c.do(ctx, http.MethodGet, "/api/announcements", nil, &anns); err != nil {
		return nil, err
	}
	return anns, nil
}

func (c *Client) CreateAnnouncement(ctx context.Context, title, body string) (types.Announcement, error) {
	var ann types.Announcement
	err := c.do(ctx, http.MethodPost, "/api/announcements", map[string]string{"title": title, "body": body}, &ann)
	return ann, err
}
