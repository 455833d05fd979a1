package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Envelope is the wire format published on the Redis channel.
type Envelope struct {
	Origin string `json:"origin"`
	Data   string `json:"data"`
}

// RedisChannel carries the broadcast channel over Redis Pub/Sub so panels in separate
// processes observe each other's logouts. It owns the client and closes it on Close.
type RedisChannel struct {
	client *redis.Client
	name   string
	origin string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	subs   map[*redisSubscription]struct{}
}

var _ Channel = (*RedisChannel)(nil)

func NewRedisChannel(client *redis.Client, name string, opts ...Option) *RedisChannel {
	o := newOptions(opts)
	return &RedisChannel{
		client: client,
		name:   name,
		origin: o.origin,
		logger: o.logger.With().Str("channel", name).Str("origin", o.origin).Logger(),
		subs:   make(map[*redisSubscription]struct{}),
	}
}

// DialRedis connects to addr and opens the named channel on it.
func DialRedis(ctx context.Context, addr, password string, db int, name string, opts ...Option) (*RedisChannel, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "[broadcast.DialRedis] ping")
	}
	return NewRedisChannel(client, name, opts...), nil
}

func (c *RedisChannel) Name() string {
	return c.name
}

func (c *RedisChannel) Post(ctx context.Context, data string) error {
	payload, err := json.Marshal(Envelope{Origin: c.origin, Data: data})
	if err != nil {
		return errors.Wrap(err, "[RedisChannel.Post] json.Marshal")
	}
	if err := c.client.Publish(ctx, c.name, payload).Err(); err != nil {
		return errors.Wrap(err, "[RedisChannel.Post] publish")
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription.
func (c *RedisChannel) Subscribe(ctx context.Context) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	pubsub := c.client.Subscribe(ctx, c.name)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "[RedisChannel.Subscribe] receive confirmation")
	}

	sub := &redisSubscription{
		channel: c,
		pubsub:  pubsub,
		ch:      make(chan string, subscriptionBuffer),
	}
	c.subs[sub] = struct{}{}
	go sub.run()
	return sub, nil
}

func (c *RedisChannel) Close() error {
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
		_ = sub.pubsub.Close()
	}
	return c.client.Close()
}

func (c *RedisChannel) forget(sub *redisSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, sub)
}

type redisSubscription struct {
	channel *RedisChannel
	pubsub  *redis.PubSub
	ch      chan string
}

func (s *redisSubscription) Messages() <-chan string {
	return s.ch
}

func (s *redisSubscription) Close() error {
	s.channel.forget(s)
	return s.pubsub.Close()
}

// run ends when the pubsub is closed, which closes its Go channel.
func (s *redisSubscription) run() {
	defer close(s.ch)
	logger := s.channel.logger

	for msg := range s.pubsub.Channel() {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			logger.Warn().Err(err).Msg("dropping malformed broadcast payload")
			continue
		}
		if env.Origin == s.channel.origin {
			continue
		}
		select {
		case s.ch <- env.Data:
		default:
			logger.Warn().Str("data", env.Data).Msg("subscriber buffer full, message dropped")
		}
	}
}
