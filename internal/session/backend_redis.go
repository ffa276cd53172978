// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/taskdeck/internal/platform/constants"
)

// RedisBackend stores each record as a plain string key under a shared prefix.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
}

// NewRedisBackend creates a Redis-backed session backend.
// An empty prefix falls back to [constants.RedisPrefixSession].
func NewRedisBackend(client redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = constants.RedisPrefixSession
	}
	return &RedisBackend{client: client, prefix: prefix}
}

/*
Load retrieves the record.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: ErrRecordNotFound or connectivity errors
*/
func (backend *RedisBackend) Load(context context.Context, key string) (string, error) {
	value, err := backend.client.Get(context, backend.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrRecordNotFound
		}
		return "", fmt.Errorf("redis_session_load_failed: %w", err)
	}
	return value, nil
}

// Save stores the record without expiry; the server decides token lifetime.
func (backend *RedisBackend) Save(context context.Context, key, value string) error {
	if err := backend.client.Set(context, backend.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis_session_save_failed: %w", err)
	}
	return nil
}

// Remove deletes the record.
func (backend *RedisBackend) Remove(context context.Context, key string) error {
	if err := backend.client.Del(context, backend.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis_session_remove_failed: %w", err)
	}
	return nil
}

// Name returns "redis".
func (backend *RedisBackend) Name() string { return "redis" }
