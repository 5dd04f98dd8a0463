// Package cache holds the caller-owned display-name cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"wisefido-risk/internal/profile"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NameCache wraps a NameResolver with a Redis TTL cache. Redis failures fall
// through to the resolver; they never fail a lookup on their own.
type NameCache struct {
	client    *redis.Client
	resolver  profile.NameResolver
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

func NewNameCache(client *redis.Client, resolver profile.NameResolver, ttl time.Duration, logger *zap.Logger) *NameCache {
	return &NameCache{
		client:    client,
		resolver:  resolver,
		ttl:       ttl,
		keyPrefix: "risk:name:",
		logger:    logger,
	}
}

var _ profile.NameResolver = (*NameCache)(nil)

func (c *NameCache) key(subjectID string) string {
	return c.keyPrefix + subjectID
}

func (c *NameCache) ResolveDisplayName(ctx context.Context, subjectID string) (string, error) {
	key := c.key(subjectID)

	name, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if err != redis.Nil {
		c.logger.Warn("Name cache read failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}

	name, err = c.resolver.ResolveDisplayName(ctx, subjectID)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		c.logger.Warn("Name cache write failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
	return name, nil
}

// Invalidate drops the cached name, e.g. after a profile rename.
func (c *NameCache) Invalidate(ctx context.Context, subjectID string) error {
	if err := c.client.Del(ctx, c.key(subjectID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate name cache: %w", err)
	}
	return nil
}
