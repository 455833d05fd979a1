package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/admin-session/broadcast"
)

// Listen applies logouts announced by other panels on channel until stop is called or ctx
// ends. Each logout message clears the session and navigates to the public path.
func (s *Session) Listen(ctx context.Context, channel broadcast.Channel) (stop func(), err error) {
	sub, err := channel.Subscribe(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[Session.Listen] subscribe")
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger := s.logger.With().Str("channel", channel.Name()).Logger()

	go func() {
		defer close(done)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				if msg != broadcast.LogoutMessage {
					logger.Debug().Str("data", msg).Msg("ignoring broadcast")
					continue
				}
				logger.Info().Msg("logout received from another panel")
				s.ApplyRemoteLogout()
				s.navigator.Navigate(s.publicPath)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
