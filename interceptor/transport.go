package interceptor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/sessionapi"
)

// State of the refresh state machine.
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RefreshFunc obtains a new access token, typically from the refresh cookie.
type RefreshFunc func(ctx context.Context) (string, error)

// TokenStore is the part of the credential store the transport reads and writes.
type TokenStore interface {
	Get() string
	Set(token string)
	Clear()
}

const DefaultLoginPath = "/login"

type retriedKey struct{}

// WithRetried marks ctx so a 401 on a request carrying it is returned as is.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx carries the retried marker.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

type outcome struct {
	token string
	err   error
}

// Transport attaches the bearer token to every request and recovers from 401 responses
// with a single shared refresh. Requests that hit a 401 while a refresh is in flight wait
// in FIFO order and receive that refresh's outcome exactly once.
type Transport struct {
	base        http.RoundTripper
	store       TokenStore
	refresh     RefreshFunc
	navigator   navigation.Navigator
	loginPath   string
	refreshPath string
	metrics     *Metrics
	logger      zerolog.Logger

	mu      sync.Mutex
	state   State
	pending []chan outcome
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

// WithBase sets the transport that carries requests. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// WithLoginPath sets where a failed refresh navigates.
func WithLoginPath(path string) Option {
	return func(t *Transport) {
		t.loginPath = path
	}
}

// WithRefreshPath sets the path suffix of the refresh endpoint, whose 401s are never intercepted.
func WithRefreshPath(path string) Option {
	return func(t *Transport) {
		t.refreshPath = path
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(t *Transport) {
		t.metrics = metrics
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(store TokenStore, refresh RefreshFunc, navigator navigation.Navigator, opts ...Option) *Transport {
	t := &Transport{
		base:        http.DefaultTransport,
		store:       store,
		refresh:     refresh,
		navigator:   navigator,
		loginPath:   DefaultLoginPath,
		refreshPath: sessionapi.RefreshPath,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "interceptor").Logger()
	return t
}

// State reports whether a refresh is in flight.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Waiting returns how many requests are queued behind the in-flight refresh.
func (t *Transport) Waiting() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req, err := replayable(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Transport.RoundTrip] buffer body")
	}

	attached := t.store.Get()
	resp, err := t.base.RoundTrip(withBearer(req.Context(), req, attached))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || IsRetried(req.Context()) || t.isRefreshRequest(req) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	ctx := WithRetried(req.Context())
	token, err := t.awaitToken(ctx, attached)
	if err != nil {
		return nil, err
	}

	replay := withBearer(ctx, req, token)
	if req.GetBody != nil {
		if replay.Body, err = req.GetBody(); err != nil {
			return nil, errors.Wrap(err, "[Transport.RoundTrip] GetBody")
		}
	}
	t.metrics.requestReplayed()
	t.logger.Debug().Str("method", req.Method).Str("url", req.URL.String()).Msg("replaying request with refreshed token")
	return t.base.RoundTrip(replay)
}

// awaitToken returns the token to replay with. Only the caller that finds the machine Idle
// refreshes; the others queue behind it.
func (t *Transport) awaitToken(ctx context.Context, attached string) (string, error) {
	t.mu.Lock()
	if t.state == Refreshing {
		slot := make(chan outcome, 1)
		t.pending = append(t.pending, slot)
		t.mu.Unlock()
		t.metrics.requestQueued()

		select {
		case o := <-slot:
			return o.token, o.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// A refresh finished after this request left with the old token.
	if current := t.store.Get(); current != "" && current != attached {
		t.mu.Unlock()
		return current, nil
	}

	t.state = Refreshing
	t.mu.Unlock()
	return t.runRefresh(ctx)
}

func (t *Transport) runRefresh(ctx context.Context) (string, error) {
	t.metrics.refreshStarted()
	t.logger.Debug().Msg("access token rejected, refreshing")

	token, err := t.refresh(context.WithoutCancel(ctx))
	if err == nil && token == "" {
		err = apperrors.ErrNoToken
	}
	if err != nil && !errors.Is(err, apperrors.ErrRefreshFailed) {
		err = fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	// A refresh function that already stored its token, or that was overtaken by a newer
	// login, hands back the store's current token; writing it again is skipped.
	if err == nil {
		if t.store.Get() != token {
			t.store.Set(token)
		}
	} else {
		t.store.Clear()
	}

	t.mu.Lock()
	waiters := t.pending
	t.pending = nil
	for _, slot := range waiters {
		slot <- outcome{token: token, err: err}
	}
	t.state = Idle
	t.mu.Unlock()
	t.metrics.refreshDone(err)

	if err != nil {
		t.logger.Info().Err(err).Int("queued", len(waiters)).Msg("refresh failed, redirecting to login")
		t.navigator.Navigate(t.loginPath)
		return "", err
	}
	t.logger.Debug().Int("queued", len(waiters)).Msg("refresh succeeded")
	return token, nil
}

func (t *Transport) isRefreshRequest(req *http.Request) bool {
	return t.refreshPath != "" && strings.HasSuffix(req.URL.Path, t.refreshPath)
}

// replayable returns a request whose body can be read again through GetBody.
func replayable(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return req, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

func withBearer(ctx context.Context, req *http.Request, token string) *http.Request {
	out := req.Clone(ctx)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out
}
