// Package apiclient talks to the society REST API with the token kept in
// persistent storage.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/society/internal/domain"
	"github.com/dkeye/society/internal/service"
	"github.com/dkeye/society/internal/urlstate"
)

const (
	BaseURLEnv     = "SOCIETY_API_URL"
	DefaultBaseURL = "http://localhost:8080"
)

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenStore
}

// BaseURLFromEnv reads SOCIETY_API_URL, defaulting to the local server.
func BaseURLFromEnv() string {
	if v := os.Getenv(BaseURLEnv); v != "" {
		return v
	}
	return DefaultBaseURL
}

func New(baseURL string, tokens TokenStore) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &Client{
		base:   u,
		http:   &http.Client{Timeout: 15 * time.Second},
		tokens: tokens,
	}, nil
}

func (c *Client) Tokens() TokenStore { return c.tokens }

// WebsocketURL is the realtime endpoint on the same host.
func (c *Client) WebsocketURL() string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// NewRequest builds a request with the JSON content type and, when a token
// is stored, the bearer header. Caller headers override the content type;
// the bearer header always reflects the stored token.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any, header http.Header) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	target := c.base.ResolveReference(&url.URL{Path: c.base.Path + ref.Path, RawQuery: ref.RawQuery})

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), rd)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	token, err := c.tokens.Token()
	switch {
	case err == nil && token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	case err != nil && !errors.Is(err, ErrNoToken):
		return nil, err
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.NewRequest(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		}
		log.Debug().Str("module", "apiclient").Str("path", path).Int("status", resp.StatusCode).Msg("api error")
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Login stores the issued token on success.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var resp struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(resp.Token); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout clears the stored token even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if clearErr := c.tokens.ClearToken(); clearErr != nil {
		return clearErr
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

func (c *Client) Me(ctx context.Context) (*service.Profile, error) {
	var p service.Profile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Notifications lists with the filter carried as a query parameter. The
// default filter is left off the URL.
func (c *Client) Notifications(ctx context.Context, filter domain.NotificationFilter) (*service.NotificationPage, error) {
	u := urlstate.Apply(&url.URL{Path: "/api/notifications"}, "filter", string(filter), string(domain.FilterAll))
	var page service.NotificationPage
	if err := c.do(ctx, http.MethodGet, u.String(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) MarkRead(ctx context.Context, id domain.NotificationID) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(string(id))+"/read", nil, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) Announcements(ctx context.Context) ([]domain.Announcement, error) {
	var resp struct {
		Announcements []domain.Announcement `json:"announcements"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/announcements", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Announcements, nil
}

func (c *Client) PostAnnouncement(ctx context.Context, title, body string) (*domain.Announcement, error) {
	var a domain.Announcement
	if err := c.do(ctx, http.MethodPost, "/api/announcements", service.PostInput{Title: title, Body: body}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
