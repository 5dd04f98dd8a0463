package notify

import (
	"context"

	owlredis "wisefido-risk/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamPublisher appends events to a Redis Stream consumed by the
// dashboard and delivery workers.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event AlertEvent) error {
	id, err := owlredis.PublishJSONToStream(ctx, p.client, p.stream, event, p.maxLen)
	if err != nil {
		return err
	}
	p.logger.Debug("Alert published to stream",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("alert_id", event.AlertID),
	)
	return nil
}
