// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// MemoryStore is an in-process [Store] adapter backed by a mutex-guarded
// map. Expired entries are reaped lazily, on the read path that would
// otherwise return them — there is no background sweeper, matching the
// "no in-process lock held across a suspension point" rule: every lock
// acquisition here is released before the function returns.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	keys   map[string]memoryKey
}

type memoryKey struct {
	value   string
	expires time.Time
}

// NewMemoryStore constructs an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]Token),
		keys:   make(map[string]memoryKey),
	}
}

func (s *MemoryStore) StoreToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Key] = token
	return nil
}

func (s *MemoryStore) FetchToken(_ context.Context, key string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[key]
	if !ok {
		return Token{}, apperr.NotFound("session token")
	}
	if !token.Expires.After(time.Now()) {
		delete(s.tokens, key)
		return Token{}, apperr.NotFound("session token")
	}
	return token, nil
}

func (s *MemoryStore) DeleteTokens(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.tokens, k)
	}
	return nil
}

func (s *MemoryStore) ConfirmToken(_ context.Context, key, password string) (UserView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[key]
	if !ok || !token.Expires.After(time.Now()) || token.Password != password {
		return UserView{}, errConfirmFailed()
	}
	return UserView{UserID: token.UserID, Roles: token.Roles, Key: token.Key}, nil
}

func (s *MemoryStore) StoreKey(_ context.Context, name string, ttl time.Duration, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[name] = memoryKey{value: value, expires: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetKey(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.keys[name]
	if !ok {
		return "", false, nil
	}
	if !entry.expires.After(time.Now()) {
		delete(s.keys, name)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) DeleteKeys(_ context.Context, names ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		delete(s.keys, n)
	}
	return nil
}

func (s *MemoryStore) Quit() error { return nil }

var _ Store = (*MemoryStore)(nil)
