package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/session"
)

// Decision is what a route does with the current session.
type Decision int

const (
	Pending       Decision = iota // session not resolved yet, render nothing
	Allow                         // render the route
	RedirectLogin                 // not logged in
	Forbidden                     // logged in without the admin scope
	RedirectAway                  // already logged in, leave the public page
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case Forbidden:
		return "forbidden"
	case RedirectAway:
		return "redirect-away"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// AdminDecision guards admin-only routes.
func AdminDecision(st session.State) Decision {
	switch st.LoggedIn {
	case session.Unknown:
		return Pending
	case session.False:
		return RedirectLogin
	}
	switch st.IsAdmin {
	case session.True:
		return Allow
	case session.False:
		return Forbidden
	}
	return Pending
}

// PublicDecision guards pages such as login that a logged-in user should not see.
func PublicDecision(st session.State) Decision {
	switch st.LoggedIn {
	case session.Unknown:
		return Pending
	case session.True:
		return RedirectAway
	}
	return Allow
}

// Refresher restores a session from the refresh cookie.
type Refresher interface {
	TryRefreshToken(ctx context.Context) (string, error)
}

// Mount runs the silent refresh once per mount. Every Check after the first waits for and
// returns the first one's result.
type Mount struct {
	refresher Refresher
	once      sync.Once
	done      chan struct{}
	err       error
}

func NewMount(refresher Refresher) *Mount {
	return &Mount{refresher: refresher, done: make(chan struct{})}
}

func (m *Mount) Check(ctx context.Context) error {
	m.once.Do(func() {
		_, m.err = m.refresher.TryRefreshToken(ctx)
		close(m.done)
	})
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session is what the guard reads and refreshes.
type Session interface {
	Refresher
	State() session.State
}

// Guard resolves the session on first use and navigates when a route must not render.
type Guard struct {
	session   Session
	navigator navigation.Navigator
	mount     *Mount
	loginPath string
	awayPath  string
	logger    zerolog.Logger
}

type Option func(*Guard)

func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// WithAwayPath sets where logged-in users leave public pages for.
func WithAwayPath(path string) Option {
	return func(g *Guard) {
		g.awayPath = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(sess Session, navigator navigation.Navigator, opts ...Option) *Guard {
	g := &Guard{
		session:   sess,
		navigator: navigator,
		mount:     NewMount(sess),
		loginPath: "/login",
		awayPath:  session.DefaultDashboardPath,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admin enters an admin-only route.
func (g *Guard) Admin(ctx context.Context) Decision {
	g.resolve(ctx)
	d := AdminDecision(g.session.State())
	if d == RedirectLogin {
		g.navigator.Navigate(g.loginPath)
	}
	g.logger.Debug().Stringer("decision", d).Msg("admin route")
	return d
}

// Public enters a public page.
func (g *Guard) Public(ctx context.Context) Decision {
	g.resolve(ctx)
	d := PublicDecision(g.session.State())
	if d == RedirectAway {
		g.navigator.Navigate(g.awayPath)
	}
	g.logger.Debug().Stringer("decision", d).Msg("public route")
	return d
}

func (g *Guard) resolve(ctx context.Context) {
	if g.session.State().LoggedIn != session.Unknown {
		return
	}
	if err := g.mount.Check(ctx); err != nil {
		g.logger.Debug().Err(err).Msg("session not restored")
	}
}
