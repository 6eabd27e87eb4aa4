// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package sessionstore implements the pluggable key-value store for session
tokens and short-lived named keys (invite codes, reset-flow markers).

Architecture:

  - Store is the single contract every adapter satisfies. Memory, file,
    and Redis adapters in this package are behaviorally indistinguishable.
    The contract test suite (store_contract_test.go) runs against the
    memory and file adapters; the Redis adapter is not covered by it.
  - TTL is enforced by the adapter itself — a caller never sees an expired
    record, whether or not the backend actively reaps it.
*/
package sessionstore

import (
	"context"
	"time"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// Token is a session token record as persisted in the store.
type Token struct {
	UserID   string    `json:"_id"`
	Key      string    `json:"key"`
	Password string    `json:"password"`
	Issued   time.Time `json:"issued"`
	Expires  time.Time `json:"expires"`
	Provider string    `json:"provider"`
	Roles    []string  `json:"roles"`
}

// UserView is the minimal user projection ConfirmToken returns on success.
type UserView struct {
	UserID string   `json:"_id"`
	Roles  []string `json:"roles"`
	Key    string   `json:"key"`
}

// Store is the contract every SessionStore adapter satisfies.
type Store interface {
	// StoreToken persists token, keyed by token.Key, until token.Expires.
	StoreToken(ctx context.Context, token Token) error

	// FetchToken returns the token for key, or a NotFound [*apperr.AppError]
	// if absent or expired.
	FetchToken(ctx context.Context, key string) (Token, error)

	// DeleteTokens removes zero or more token records. Deleting an absent
	// key is not an error.
	DeleteTokens(ctx context.Context, keys ...string) error

	// ConfirmToken succeeds iff a record exists for key, has not expired,
	// and its stored password matches the supplied one. On success it
	// returns a minimal user view; on any failure it returns an
	// Unauthorized [*apperr.AppError].
	ConfirmToken(ctx context.Context, key, password string) (UserView, error)

	// StoreKey persists an arbitrary named value (e.g. an invite code)
	// with its own TTL, independent of the token keyspace.
	StoreKey(ctx context.Context, name string, ttl time.Duration, value string) error

	// GetKey returns the value stored under name, and false if absent or
	// expired.
	GetKey(ctx context.Context, name string) (string, bool, error)

	// DeleteKeys removes zero or more named keys.
	DeleteKeys(ctx context.Context, names ...string) error

	// Quit releases any resources the adapter holds (connections, file
	// handles, background sweepers). Safe to call once, at shutdown.
	Quit() error
}

// errConfirmFailed is the shared ConfirmToken failure, used by every
// adapter so the three are indistinguishable to callers.
func errConfirmFailed() error {
	return apperr.Unauthorized("invalid session token")
}
