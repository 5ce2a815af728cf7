package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRelayChannel = "collab:realtime"

var errMissingRedisClient = errors.New("realtime: redis client required")

// RelayConfig describes how messages cross process boundaries.
type RelayConfig struct {
	Client  redis.UniversalClient
	Channel string
	Local   *Dispatcher
	Logger  *zap.Logger
}

// RedisRelay publishes every message locally and on a redis channel, and
// replays messages published by other processes into the local dispatcher.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	local   *Dispatcher
	origin  string
	logger  *zap.Logger
}

// NewRedisRelay constructs a relay. Run must be started to receive remote messages.
func NewRedisRelay(cfg RelayConfig) (*RedisRelay, error) {
	if cfg.Client == nil {
		return nil, errMissingRedisClient
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = defaultRelayChannel
	}
	local := cfg.Local
	if local == nil {
		local = NewDispatcher()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:  cfg.Client,
		channel: channel,
		local:   local,
		origin:  uuid.NewString(),
		logger:  logger,
	}, nil
}

// Subscribe registers a local subscription.
func (r *RedisRelay) Subscribe(ctx context.Context, topic string) (<-chan Message, func()) {
	return r.local.Subscribe(ctx, topic)
}

// Publish delivers locally, then forwards the message to other processes.
func (r *RedisRelay) Publish(message Message) {
	r.local.Publish(message)

	message.Origin = r.origin
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Warn("realtime message encode failed", zap.Error(err))
		return
	}
	if err := r.client.Publish(context.Background(), r.channel, payload).Err(); err != nil {
		r.logger.Warn("realtime relay publish failed",
			zap.String("channel", r.channel),
			zap.Error(err))
	}
}

// Run consumes the redis channel until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		_ = pubsub.Close()
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("realtime relay subscribed", zap.String("channel", r.channel))

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-incoming:
			if !ok {
				return nil
			}
			r.forward(delivery.Payload)
		}
	}
}

func (r *RedisRelay) forward(payload string) {
	var message Message
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		r.logger.Warn("realtime relay payload rejected", zap.Error(err))
		return
	}
	if message.Origin == r.origin {
		return
	}
	r.local.Publish(message)
}
