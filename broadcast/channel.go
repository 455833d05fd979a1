package broadcast

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogoutMessage is the only payload the panel posts: log out now.
const LogoutMessage = "logout"

const subscriptionBuffer = 16

// Channel is a named broadcast channel shared by every panel instance of the same origin.
// A message posted on one Channel is delivered to the subscribers of every other Channel
// opened with the same name, never back to the poster's own subscribers.
type Channel interface {
	Name() string
	Post(ctx context.Context, data string) error
	Subscribe(ctx context.Context) (Subscription, error)
	Close() error
}

// Subscription delivers messages until it is closed.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

type options struct {
	origin string
	logger zerolog.Logger
}

type Option func(*options)

// WithOrigin fixes the origin identifier instead of generating one.
func WithOrigin(origin string) Option {
	return func(o *options) {
		o.origin = origin
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{
		origin: uuid.NewString(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
