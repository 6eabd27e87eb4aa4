// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package authstrategies is component C6: thin adapters binding bearer-token
and local-credential authentication to [userservice.Service] (spec.md
§4.6). Neither strategy owns any account logic of its own — each parses
its wire-specific credential shape, calls the corresponding userservice
operation, and translates the outcome into the strategy's own result type.

This mirrors the passport.js "strategy" shape the source model builds on
(a callback that resolves `done(err, user, info)`), reworked into Go's
native (result, error) idiom: the `info` half of that triple is carried by
the returned [*apperr.AppError]'s Key/Message rather than a separate value,
since Go callers branch on errors, not on a side channel.
*/
package authstrategies

import (
	"context"
	"log/slog"
	"strings"

	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/userservice"
)

// SessionCreator is the narrow slice of [userservice.Service] the Local
// strategy needs: the local-credential state machine (lockout, captcha,
// email confirmation) stays owned by the service; this package only binds
// to it, the same way [middleware.TokenVerifier] decouples the teacher's
// HTTP middleware from a concrete token-verifying type. Declared here
// instead of embedding *userservice.Service keeps this package testable
// against a fake without constructing a real document store.
type SessionCreator interface {
	CreateSession(ctx context.Context, login, password string, req userservice.Request) (*userservice.User, sessionstore.Token, error)
}

// Strategies holds the collaborators both strategies bind to.
type Strategies struct {
	sessions  sessionstore.Store
	users     SessionCreator
	publicURL string
	log       *slog.Logger
}

// New constructs [Strategies]. publicURL seeds the per-database URLs in
// [SessionResult.UserDBs] (spec.md §6's session response shape).
func New(sessions sessionstore.Store, users SessionCreator, publicURL string, log *slog.Logger) *Strategies {
	return &Strategies{sessions: sessions, users: users, publicURL: publicURL, log: log}
}

// Bearer authenticates a "<key>:<password>" credential pair (spec.md §4.6).
// It never reads or writes a user document: a confirmed token carries
// everything the caller needs (user id, roles), so the document store is
// not consulted on this path.
func (s *Strategies) Bearer(ctx context.Context, credential string) (sessionstore.UserView, error) {
	key, password, ok := splitBearerCredential(credential)
	if !ok {
		return sessionstore.UserView{}, apperr.InvalidTokenShape()
	}

	view, err := s.sessions.ConfirmToken(ctx, key, password)
	if err != nil {
		s.log.DebugContext(ctx, "bearer authentication rejected", "key", key, "error", err)
		return sessionstore.UserView{}, err
	}
	return view, nil
}

// splitBearerCredential parses "<key>:<password>". A key or password
// containing ":" is never produced by [util.URLSafeUUID], so the first
// separator is authoritative.
func splitBearerCredential(credential string) (key, password string, ok bool) {
	key, password, found := strings.Cut(credential, ":")
	if !found || key == "" || password == "" {
		return "", "", false
	}
	return key, password, true
}
