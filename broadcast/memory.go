package broadcast

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("broadcast channel closed")

// Hub connects in-process channels by name. It stands in for the browser's same-origin
// channel when every panel lives in one process.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*memSubscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*memSubscription]struct{})}
}

// Open returns a new endpoint on the named channel with its own origin.
func (h *Hub) Open(name string, opts ...Option) Channel {
	o := newOptions(opts)
	return &memChannel{
		hub:    h,
		name:   name,
		origin: o.origin,
		logger: o.logger.With().Str("channel", name).Str("origin", o.origin).Logger(),
		subs:   make(map[*memSubscription]struct{}),
	}
}

func (h *Hub) add(name string, sub *memSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[name] == nil {
		h.subs[name] = make(map[*memSubscription]struct{})
	}
	h.subs[name][sub] = struct{}{}
}

func (h *Hub) remove(name string, sub *memSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[name], sub)
	if len(h.subs[name]) == 0 {
		delete(h.subs, name)
	}
}

func (h *Hub) snapshot(name string) []*memSubscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*memSubscription, 0, len(h.subs[name]))
	for sub := range h.subs[name] {
		out = append(out, sub)
	}
	return out
}

type memChannel struct {
	hub    *Hub
	name   string
	origin string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*memSubscription]struct{}
}

func (c *memChannel) Name() string {
	return c.name
}

func (c *memChannel) Post(ctx context.Context, data string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	for _, sub := range c.hub.snapshot(c.name) {
		if sub.origin == c.origin {
			continue
		}
		if !sub.deliver(data) {
			c.logger.Warn().Str("data", data).Msg("subscriber buffer full, message dropped")
		}
	}
	return nil
}

func (c *memChannel) Subscribe(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	sub := &memSubscription{
		channel: c,
		origin:  c.origin,
		ch:      make(chan string, subscriptionBuffer),
	}
	c.subs[sub] = struct{}{}
	c.hub.add(c.name, sub)
	return sub, nil
}

// Close closes every subscription opened on this endpoint.
func (c *memChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for sub := range subs {
		_ = sub.close()
	}
	return nil
}

func (c *memChannel) forget(sub *memSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub)
}

type memSubscription struct {
	channel *memChannel
	origin  string

	mu     sync.Mutex
	closed bool
	ch     chan string
}

func (s *memSubscription) Messages() <-chan string {
	return s.ch
}

func (s *memSubscription) Close() error {
	s.channel.forget(s)
	return s.close()
}

func (s *memSubscription) close() error {
	s.channel.hub.remove(s.channel.name, s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// deliver never blocks; it reports false when the buffer is full.
func (s *memSubscription) deliver(data string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- data:
		return true
	default:
		return false
	}
}
