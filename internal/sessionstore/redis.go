// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/constants"
)

// RedisStore is a [Store] adapter backed by Redis, relying on Redis's own
// key expiry (SET ... EX) rather than reaping on read — the production
// adapter of choice for multi-instance deployments.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func tokenKey(key string) string { return constants.RedisPrefixSession + key }
func namedKey(name string) string { return constants.RedisPrefixResetToken + "name:" + name }

func (s *RedisStore) StoreToken(ctx context.Context, token Token) error {
	ttl := time.Until(token.Expires)
	if ttl <= 0 {
		ttl = time.Second
	}
	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal token: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(token.Key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: store token: %w", err)
	}
	return nil
}

func (s *RedisStore) FetchToken(ctx context.Context, key string) (Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, apperr.NotFound("session token")
	}
	if err != nil {
		return Token{}, fmt.Errorf("sessionstore: fetch token: %w", err)
	}

	var token Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return Token{}, fmt.Errorf("sessionstore: unmarshal token: %w", err)
	}
	if !token.Expires.After(time.Now()) {
		return Token{}, apperr.NotFound("session token")
	}
	return token, nil
}

func (s *RedisStore) DeleteTokens(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = tokenKey(k)
	}
	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("sessionstore: delete tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) ConfirmToken(ctx context.Context, key, password string) (UserView, error) {
	token, err := s.FetchToken(ctx, key)
	if err != nil || token.Password != password {
		return UserView{}, errConfirmFailed()
	}
	return UserView{UserID: token.UserID, Roles: token.Roles, Key: token.Key}, nil
}

func (s *RedisStore) StoreKey(ctx context.Context, name string, ttl time.Duration, value string) error {
	if err := s.client.Set(ctx, namedKey(name), value, ttl).Err(); err != nil {
		return fmt.Errorf("sessionstore: store key: %w", err)
	}
	return nil
}

func (s *RedisStore) GetKey(ctx context.Context, name string) (string, bool, error) {
	value, err := s.client.Get(ctx, namedKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sessionstore: get key: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) DeleteKeys(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	redisKeys := make([]string, len(names))
	for i, n := range names {
		redisKeys[i] = namedKey(n)
	}
	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("sessionstore: delete keys: %w", err)
	}
	return nil
}

func (s *RedisStore) Quit() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
