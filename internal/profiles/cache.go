// Package profiles caches the user directory in Redis so every comment
// section mount does not hit Postgres.
package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"graphreview/api/internal/mention"
)

const defaultKey = "graphreview:profiles"

// Cache implements mention.Directory in front of a slower source. Redis
// failures fall through to the source.
type Cache struct {
	client *redis.Client
	source mention.Directory
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCache(client *redis.Client, source mention.Directory, ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		client: client,
		source: source,
		key:    defaultKey,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *Cache) ListUserProfiles(ctx context.Context) ([]mention.UserIdentity, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var users []mention.UserIdentity
		jsonErr := json.Unmarshal(raw, &users)
		if jsonErr == nil {
			return users, nil
		}
		c.logger.Warn().Err(jsonErr).Msg("discarding corrupt profile cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("profile cache read failed")
	}

	users, err := c.source.ListUserProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	data, err := json.Marshal(users)
	if err != nil {
		return nil, fmt.Errorf("marshal profiles: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("profile cache write failed")
	}
	return users, nil
}

// Invalidate drops the cached list, typically after a user is created.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate profile cache: %w", err)
	}
	return nil
}
