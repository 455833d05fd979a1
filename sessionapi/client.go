package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
)

// Auth API routes, relative to the base URL.
const (
	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Credentials is the login form payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is the body returned by login and refresh.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// Client wraps the three auth calls. The refresh token never passes through it: the server
// sets it as an HttpOnly cookie and the client's cookie jar sends it back.
type Client struct {
	baseURL    string
	httpClient *http.Client
	nowFunc    func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default client. It should carry a cookie jar.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New builds a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[sessionapi.New] invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, errors.Wrap(err, "[sessionapi.New] cookiejar.New")
		}
		c.httpClient = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}
	return c, nil
}

// BaseURL returns the API origin the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for an access token.
// 401 maps to ErrBadCredentials and 403 to ErrEmailUnverified.
func (c *Client) Login(ctx context.Context, credentials Credentials) (*oauth2.Token, error) {
	resp, err := c.post(ctx, LoginPath, credentials)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, apperrors.ErrBadCredentials
	case http.StatusForbidden:
		return nil, apperrors.ErrEmailUnverified
	}
	if err := checkStatus(resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return c.decodeToken(resp)
}

// Refresh trades the refresh cookie for a new access token. Every failure, including a
// transport failure, is reported as ErrRefreshFailed with the cause kept in the chain.
func (c *Client) Refresh(ctx context.Context) (*oauth2.Token, error) {
	resp, err := c.post(ctx, RefreshPath, struct{}{})
	if err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}
	tok, err := c.decodeToken(resp)
	if err != nil {
		return nil, fmt.Errorf("[Client.Refresh] %w: %w", apperrors.ErrRefreshFailed, err)
	}
	return tok, nil
}

// Logout asks the server to revoke the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, LogoutPath, struct{}{})
	if err != nil {
		return errors.Wrap(err, "[Client.Logout]")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return errors.Wrap(checkStatus(resp), "[Client.Logout]")
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "http.NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
	}
	return resp, nil
}

func (c *Client) decodeToken(resp *http.Response) (*oauth2.Token, error) {
	var body TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	if body.AccessToken == "" {
		return nil, apperrors.ErrNoToken
	}

	tok := &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   "Bearer",
	}
	if body.ExpiresIn > 0 {
		tok.Expiry = c.nowFunc().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return tok, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apperrors.FromStatus(resp.StatusCode, strings.TrimSpace(string(body)))
}
