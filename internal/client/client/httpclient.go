package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

const usersPath = "/api/users"

// HTTPClient talks to the SessionGuard JSON API. The session cookie and the
// CSRF token live in a State that is written back to disk whenever the
// server changes them. Not safe for concurrent use.
type HTTPClient struct {
	baseURL   string
	http      *http.Client
	statePath string
	state     *State
}

// NewHTTPClient loads the state file and binds it to baseURL. Credentials
// saved for a different server are discarded.
func NewHTTPClient(baseURL, statePath string, timeout time.Duration) (*HTTPClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	st, err := LoadState(statePath)
	if err != nil {
		return nil, err
	}
	if st.Server != baseURL {
		st = &State{Server: baseURL}
	}

	return &HTTPClient{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: timeout},
		statePath: statePath,
		state:     st,
	}, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sessionStartResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type meResponse struct {
	User User `json:"user"`
}

type changePasswordResponse struct {
	SessionsExpired int64 `json:"sessionsExpired"`
}

type sessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type errorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (c *HTTPClient) LoggedIn() bool {
	return c.state.Token != ""
}

func (c *HTTPClient) Register(ctx context.Context, email string, password []byte) error {
	return c.startSession(ctx, "/register", email, password)
}

func (c *HTTPClient) Login(ctx context.Context, email string, password []byte) error {
	return c.startSession(ctx, "/login", email, password)
}

func (c *HTTPClient) startSession(ctx context.Context, path, email string, password []byte) error {
	var resp sessionStartResponse
	req := credentialsRequest{Email: email, Password: string(password)}
	if err := c.do(ctx, http.MethodPost, path, req, false, &resp); err != nil {
		return err
	}
	if c.state.Token == "" {
		return fmt.Errorf("server did not set a session cookie")
	}

	c.state.CSRFToken = resp.CSRFToken
	return c.save()
}

func (c *HTTPClient) Me(ctx context.Context) (*User, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	var resp meResponse
	if err := c.do(ctx, http.MethodGet, "/me", nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout expires the session on the server. Local credentials are dropped
// even when the server already considers the session gone.
func (c *HTTPClient) Logout(ctx context.Context) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}

	err := c.do(ctx, http.MethodPost, "/logout", nil, true, nil)
	if err == nil || errors.Is(err, ErrUnauthorized) {
		if clearErr := c.forget(); clearErr != nil {
			return clearErr
		}
	}
	return err
}

func (c *HTTPClient) DeleteAccount(ctx context.Context, password []byte, email string) error {
	if !c.LoggedIn() {
		return ErrNotLoggedIn
	}
	req := deleteAccountRequest{Password: string(password), Email: email}
	return c.do(ctx, http.MethodDelete, "/me", req, true, nil)
}

func (c *HTTPClient) ChangePassword(ctx context.Context, current, next []byte) (int64, error) {
	if !c.LoggedIn() {
		return 0, ErrNotLoggedIn
	}

	var resp changePasswordResponse
	req := changePasswordRequest{CurrentPassword: string(current), NewPassword: string(next)}
	if err := c.do(ctx, http.MethodPut, "/me/password", req, true, &resp); err != nil {
		return 0, err
	}
	return resp.SessionsExpired, nil
}

func (c *HTTPClient) Sessions(ctx context.Context) ([]Session, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, "/me/sessions", nil, false, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, withCSRF bool, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+usersPath+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.state.Token != "" {
		req.AddCookie(&http.Cookie{Name: common.SessionCookieName, Value: c.state.Token})
	}
	if withCSRF {
		req.Header.Set(common.CSRFHeaderName, c.state.CSRFToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if c.captureCookie(resp) {
		if err := c.save(); err != nil {
			return err
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// captureCookie applies a Set-Cookie for the session cookie to the state and
// reports whether anything changed. A cleared cookie drops the CSRF token too.
func (c *HTTPClient) captureCookie(resp *http.Response) bool {
	for _, ck := range resp.Cookies() {
		if ck.Name != common.SessionCookieName {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			changed := c.state.Token != ""
			c.state.Token = ""
			c.state.CSRFToken = ""
			return changed
		}
		changed := c.state.Token != ck.Value
		c.state.Token = ck.Value
		return changed
	}
	return false
}

func (c *HTTPClient) forget() error {
	c.state.Token = ""
	c.state.CSRFToken = ""
	return c.save()
}

func (c *HTTPClient) save() error {
	return SaveState(c.statePath, c.state)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && len(er.Errors) > 0 {
		apiErr.Title = er.Errors[0].Title
		apiErr.Detail = er.Errors[0].Detail
	}
	return apiErr
}
