package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/admin-session/broadcast"
	apperrors "github.com/jrsteele09/admin-session/internal/errors"
	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/sessionapi"
	"github.com/jrsteele09/admin-session/token"
)

const (
	DefaultAdminScope    = "admin-dashboard"
	DefaultPublicPath    = "/"
	DefaultDashboardPath = "/admin/dashboard"
)

// API is the auth API the session drives.
type API interface {
	Login(ctx context.Context, credentials sessionapi.Credentials) (*oauth2.Token, error)
	Refresh(ctx context.Context) (*oauth2.Token, error)
	Logout(ctx context.Context) error
}

// TokenStore holds the access token the session mirrors.
type TokenStore interface {
	Get() string
	Set(token string)
	Clear()
	OnSet(observer func(token string))
}

// Session owns the login state of one panel instance. It is created once at start-up and
// reset, never replaced, on logout.
type Session struct {
	api       API
	store     TokenStore
	navigator navigation.Navigator
	channel   broadcast.Channel

	adminScope    string
	publicPath    string
	dashboardPath string
	logger        zerolog.Logger

	refreshGroup singleflight.Group

	// writeMu serialises token writes. epoch changes on every login and logout so a refresh
	// that started before one of them never commits its result.
	writeMu sync.Mutex
	epoch   uint64

	mu       sync.Mutex
	state    State
	watchers map[int]func(State)
	nextID   int
}

type Option func(*Session)

// WithChannel sets the channel logout is announced on.
func WithChannel(channel broadcast.Channel) Option {
	return func(s *Session) {
		s.channel = channel
	}
}

func WithAdminScope(scope string) Option {
	return func(s *Session) {
		s.adminScope = scope
	}
}

func WithPublicPath(path string) Option {
	return func(s *Session) {
		s.publicPath = path
	}
}

func WithDashboardPath(path string) Option {
	return func(s *Session) {
		s.dashboardPath = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates the session and registers it as the store's observer.
func New(api API, store TokenStore, navigator navigation.Navigator, opts ...Option) *Session {
	s := &Session{
		api:           api,
		store:         store,
		navigator:     navigator,
		adminScope:    DefaultAdminScope,
		publicPath:    DefaultPublicPath,
		dashboardPath: DefaultDashboardPath,
		logger:        log.Logger,
		watchers:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "session").Logger()
	s.state.AccessToken = store.Get()
	store.OnSet(s.mirrorToken)
	return s
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch calls fn after every state change until the returned cancel is called.
// fn runs on the goroutine that made the change and must not block.
func (s *Session) Watch(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// Login exchanges credentials for a token. On failure the user-facing message lands in
// State().Error and the classified error is returned for logging.
func (s *Session) Login(ctx context.Context, credentials sessionapi.Credentials) error {
	tok, err := s.api.Login(ctx, credentials)
	if err != nil {
		message := Message(err)
		s.update(func(st *State) {
			st.LoggedIn = False
			st.IsAdmin = Unknown
			st.Error = message
		})
		s.logger.Info().Err(err).Str("email", credentials.Email).Msg("login failed")
		return err
	}

	isAdmin := s.isAdmin(tok.AccessToken)
	s.writeMu.Lock()
	s.epoch++
	s.store.Set(tok.AccessToken)
	s.update(func(st *State) {
		st.AccessToken = tok.AccessToken
		st.LoggedIn = True
		st.IsAdmin = isAdmin
		st.IsLoggingOut = false
		st.Error = ""
	})
	s.writeMu.Unlock()
	s.logger.Info().Str("email", credentials.Email).Stringer("is_admin", isAdmin).Msg("logged in")
	s.navigator.Navigate(s.dashboardPath)
	return nil
}

// Logout ends the session in this panel and announces it to the others. The API call is
// best effort: its failure is logged and the local logout proceeds.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("logout request failed")
	}

	s.ApplyRemoteLogout()

	if s.channel != nil {
		if err := s.channel.Post(ctx, broadcast.LogoutMessage); err != nil {
			s.logger.Warn().Err(err).Str("channel", s.channel.Name()).Msg("logout broadcast failed")
		}
	}
	s.navigator.Navigate(s.publicPath)
}

// ApplyRemoteLogout applies the logout transition without calling the API or broadcasting.
func (s *Session) ApplyRemoteLogout() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.epoch++
	s.store.Clear()
	s.update(func(st *State) {
		st.IsLoggingOut = true
		st.AccessToken = ""
		st.LoggedIn = False
		st.IsAdmin = Unknown
	})
}

// TryRefreshToken restores the session from the refresh cookie. Concurrent callers share
// one refresh call. It doubles as the interceptor's refresh function.
func (s *Session) TryRefreshToken(ctx context.Context) (string, error) {
	v, err, shared := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	if shared {
		s.logger.Debug().Msg("joined in-flight refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	s.writeMu.Lock()
	started := s.epoch
	s.writeMu.Unlock()

	tok, err := s.api.Refresh(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.epoch != started {
		return s.superseded(err)
	}
	if err != nil {
		s.store.Clear()
		s.update(func(st *State) {
			st.AccessToken = ""
			st.LoggedIn = False
			st.IsAdmin = Unknown
		})
		s.logger.Debug().Err(err).Msg("no session to restore")
		return "", err
	}

	s.store.Set(tok.AccessToken)
	isAdmin := s.isAdmin(tok.AccessToken)
	s.update(func(st *State) {
		st.AccessToken = tok.AccessToken
		st.LoggedIn = True
		st.IsAdmin = isAdmin
	})
	return tok.AccessToken, nil
}

// superseded answers a refresh that a login or logout overtook. Its result is dropped and
// the caller gets whatever the newer transition left in the store.
func (s *Session) superseded(refreshErr error) (string, error) {
	s.logger.Debug().AnErr("refresh_error", refreshErr).Msg("discarding refresh overtaken by login or logout")
	if current := s.store.Get(); current != "" {
		return current, nil
	}
	return "", errors.Wrap(apperrors.ErrRefreshFailed, "[Session.refresh] session ended while refreshing")
}

func (s *Session) isAdmin(rawToken string) Tristate {
	return FromBool(token.IsAdmin(rawToken, s.adminScope))
}

// mirrorToken keeps State().AccessToken in step with the store.
func (s *Session) mirrorToken(tok string) {
	s.update(func(st *State) {
		st.AccessToken = tok
	})
}

func (s *Session) update(change func(*State)) {
	s.mu.Lock()
	change(&s.state)
	snapshot := s.state
	watchers := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(snapshot)
	}
}
