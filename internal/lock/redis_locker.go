package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was re-acquired by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker SET NX PX lock shared by every service replica.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	retry     time.Duration
	logger    *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:    client,
		keyPrefix: "risk:lock:",
		ttl:       ttl,
		retry:     50 * time.Millisecond,
		logger:    logger,
	}
}

var _ SubjectLocker = (*RedisLocker)(nil)

func (l *RedisLocker) key(subjectID string) string {
	return l.keyPrefix + subjectID
}

// Lock polls until the key is free or ctx ends. The TTL bounds how long a
// crashed holder can block others.
func (l *RedisLocker) Lock(ctx context.Context, subjectID string) (func(), error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}
	key := l.key(subjectID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, subjectID, ctx.Err())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, subjectID, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release with a fresh context: the caller's may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
				l.logger.Warn("Failed to release subject lock",
					zap.String("subject_id", subjectID),
					zap.Error(err),
				)
			}
		})
	}, nil
}
