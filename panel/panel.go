// Package panel builds the object graph of one admin panel instance: the token store, the
// auth API client, the session, the refreshing transport, the route guard and the admin API
// client. Several panels that share a broadcast channel behave like several browser tabs.
package panel

import (
	"context"
	"net/http"
	"net/http/cookiejar"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/admin-session/adminapi"
	"github.com/jrsteele09/admin-session/broadcast"
	"github.com/jrsteele09/admin-session/credentials"
	"github.com/jrsteele09/admin-session/guard"
	"github.com/jrsteele09/admin-session/interceptor"
	"github.com/jrsteele09/admin-session/internal/config"
	"github.com/jrsteele09/admin-session/navigation"
	"github.com/jrsteele09/admin-session/session"
	"github.com/jrsteele09/admin-session/sessionapi"
)

// processHub links every panel of the process that runs without Redis.
var processHub = broadcast.NewHub()

// Config is the part of the application configuration a panel reads.
type Config interface {
	config.SessionConfig
	config.BroadcastConfig
}

type Panel struct {
	Store     *credentials.Store
	API       *sessionapi.Client
	Session   *session.Session
	Transport *interceptor.Transport
	Guard     *guard.Guard
	Admin     *adminapi.Client

	channel     broadcast.Channel
	ownsChannel bool
	stopListen  func()
	logger      zerolog.Logger
}

type options struct {
	navigator navigation.Navigator
	channel   broadcast.Channel
	base      http.RoundTripper
	registry  prometheus.Registerer
	logger    zerolog.Logger
}

type Option func(*options)

// WithNavigator receives every hard navigation. Without it navigations are only logged.
func WithNavigator(navigator navigation.Navigator) Option {
	return func(o *options) {
		o.navigator = navigator
	}
}

// WithChannel uses an endpoint opened for this panel, e.g. hub.Open(name), instead of one
// built from the config. The caller closes it.
func WithChannel(channel broadcast.Channel) Option {
	return func(o *options) {
		o.channel = channel
	}
}

// WithBaseTransport sets the transport under the interceptor and the auth client.
func WithBaseTransport(base http.RoundTripper) Option {
	return func(o *options) {
		o.base = base
	}
}

// WithRegistry registers the interceptor metrics.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wires a panel and starts listening for logouts from other panels. Close releases it.
// Without REDIS_ADDR, panels in the same process share one in-process hub.
func New(ctx context.Context, cfg Config, opts ...Option) (*Panel, error) {
	o := options{
		base:   http.DefaultTransport,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.navigator == nil {
		logger := o.logger
		o.navigator = navigation.Func(func(path string) {
			logger.Info().Str("path", path).Msg("navigate")
		})
	}

	p := &Panel{logger: o.logger}

	channel, owned, err := openChannel(ctx, cfg, o)
	if err != nil {
		return nil, errors.Wrap(err, "[panel.New] open channel")
	}
	p.channel, p.ownsChannel = channel, owned

	// The auth client and the admin client share one cookie jar so the refresh cookie set
	// at login is sent on refresh.
	jar, err := cookiejar.New(nil)
	if err != nil {
		p.closeChannel()
		return nil, errors.Wrap(err, "[panel.New] cookiejar.New")
	}
	api, err := sessionapi.New(cfg.GetAPIBaseURL(), sessionapi.WithHTTPClient(&http.Client{
		Jar:       jar,
		Transport: o.base,
		Timeout:   cfg.GetRequestTimeout(),
	}))
	if err != nil {
		p.closeChannel()
		return nil, errors.Wrap(err, "[panel.New]")
	}
	p.API = api

	p.Store = credentials.NewStore()
	p.Session = session.New(api, p.Store, o.navigator,
		session.WithChannel(channel),
		session.WithAdminScope(cfg.GetAdminScope()),
		session.WithPublicPath(cfg.GetPublicPath()),
		session.WithDashboardPath(cfg.GetDashboardPath()),
		session.WithLogger(o.logger),
	)

	p.Transport = interceptor.New(p.Store, p.Session.TryRefreshToken, o.navigator,
		interceptor.WithBase(o.base),
		interceptor.WithLoginPath(cfg.GetLoginPath()),
		interceptor.WithMetrics(interceptor.NewMetrics(o.registry)),
		interceptor.WithLogger(o.logger),
	)
	p.Admin = adminapi.New(api.BaseURL(), &http.Client{
		Jar:       jar,
		Transport: p.Transport,
		Timeout:   cfg.GetRequestTimeout(),
	})

	p.Guard = guard.New(p.Session, o.navigator,
		guard.WithLoginPath(cfg.GetLoginPath()),
		guard.WithAwayPath(cfg.GetDashboardPath()),
		guard.WithLogger(o.logger),
	)

	stop, err := p.Session.Listen(ctx, channel)
	if err != nil {
		p.closeChannel()
		return nil, errors.Wrap(err, "[panel.New]")
	}
	p.stopListen = stop
	return p, nil
}

// Close stops the logout listener and closes the channel when the panel opened it.
func (p *Panel) Close() error {
	if p.stopListen != nil {
		p.stopListen()
	}
	return p.closeChannel()
}

func (p *Panel) closeChannel() error {
	if !p.ownsChannel {
		return nil
	}
	return errors.Wrap(p.channel.Close(), "[Panel.Close] channel")
}

func openChannel(ctx context.Context, cfg Config, o options) (broadcast.Channel, bool, error) {
	if o.channel != nil {
		return o.channel, false, nil
	}
	name := cfg.GetAuthChannel()
	if addr := cfg.GetRedisAddr(); addr != "" {
		channel, err := broadcast.DialRedis(ctx, addr, cfg.GetRedisPassword(), cfg.GetRedisDB(), name,
			broadcast.WithLogger(o.logger))
		if err != nil {
			return nil, false, err
		}
		o.logger.Info().Str("addr", addr).Str("channel", name).Msg("logout broadcast over redis")
		return channel, true, nil
	}
	return processHub.Open(name, broadcast.WithLogger(o.logger)), true, nil
}
