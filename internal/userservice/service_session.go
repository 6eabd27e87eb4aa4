// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/util"
)

// CreateSession is the local-credential login operation (spec.md §4.5).
// A bad login or password both surface as [apperr.FailedLogin] so the
// caller cannot distinguish "no such account" from "wrong password".
func (s *Service) CreateSession(ctx context.Context, login, password string, req Request) (*User, sessionstore.Token, error) {
	user, err := s.get(ctx, login)
	if err != nil || user.Local == nil {
		return nil, sessionstore.Token{}, apperr.FailedLogin()
	}

	now := time.Now()
	if user.Local.LockedUntil != nil && now.Before(*user.Local.LockedUntil) {
		if !s.cfg.Security.SoftLock {
			return nil, sessionstore.Token{}, apperr.Locked()
		}
		if !req.CaptchaPassed {
			return nil, sessionstore.Token{}, apperr.MissingCaptcha()
		}
		// captcha verified: fall through and let the normal password
		// check below decide the outcome instead of honoring the lock.
	}

	if !util.VerifyPassword(user.Local.Credential, password) {
		return nil, sessionstore.Token{}, s.handleFailedLogin(ctx, user.ID)
	}

	if s.cfg.Local.RequireEmailConfirm && user.UnverifiedEmail != nil {
		return nil, sessionstore.Token{}, apperr.EmailUnconfirmed()
	}

	if user.Local.FailedLoginAttempts > 0 || user.Local.LockedUntil != nil {
		if _, err := s.retryMutate(ctx, user.ID, func(u *User) (bool, error) {
			if u.Local == nil {
				return false, nil
			}
			u.Local.FailedLoginAttempts = 0
			u.Local.LockedUntil = nil
			return true, nil
		}); err != nil {
			return nil, sessionstore.Token{}, err
		}
	}

	return s.issueToken(ctx, user.ID, "local", req)
}

// handleFailedLogin records a failed attempt and locks the account once
// security.maxFailedLogins is reached (spec.md §4.5, §6). It always
// returns the error the caller should surface.
func (s *Service) handleFailedLogin(ctx context.Context, userID string) error {
	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if u.Local == nil {
			return false, nil
		}
		u.Local.FailedLoginAttempts++
		if s.cfg.Security.MaxFailedLogins > 0 && u.Local.FailedLoginAttempts >= s.cfg.Security.MaxFailedLogins {
			until := time.Now().Add(time.Duration(s.cfg.Security.LockoutTime) * time.Second)
			u.Local.LockedUntil = &until
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if user.Local != nil && user.Local.LockedUntil != nil {
		if s.cfg.Security.SoftLock {
			return apperr.SoftLocked()
		}
		return apperr.Locked()
	}
	return apperr.FailedLogin()
}

// issueToken mints a session token, registers it with the session store
// and DBAuth, and records the session on the user document (spec.md §4.5,
// §9).
func (s *Service) issueToken(ctx context.Context, userID, provider string, req Request) (*User, sessionstore.Token, error) {
	key, err := util.URLSafeUUID()
	if err != nil {
		return nil, sessionstore.Token{}, fmt.Errorf("userservice: generate session key: %w", err)
	}
	tokenPassword, err := util.URLSafeUUID()
	if err != nil {
		return nil, sessionstore.Token{}, fmt.Errorf("userservice: generate session password: %w", err)
	}

	issued := time.Now()
	expires := issued.Add(time.Duration(s.cfg.Security.SessionLife) * time.Second)

	current, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, sessionstore.Token{}, err
	}

	if expired := current.expiredSessionKeys(issued); len(expired) > 0 {
		if err := s.logoutUserSessions(ctx, current, expired); err != nil {
			return nil, sessionstore.Token{}, err
		}
		current, err = s.retryMutate(ctx, userID, func(u *User) (bool, error) {
			changed := false
			for _, k := range expired {
				if _, ok := u.Session[k]; ok {
					delete(u.Session, k)
					changed = true
				}
			}
			return changed, nil
		})
		if err != nil {
			return nil, sessionstore.Token{}, err
		}
	}

	token := sessionstore.Token{
		UserID:   userID,
		Key:      key,
		Password: tokenPassword,
		Issued:   issued,
		Expires:  expires,
		Provider: provider,
		Roles:    current.Roles,
	}

	if err := s.sessions.StoreToken(ctx, token); err != nil {
		return nil, sessionstore.Token{}, err
	}
	if err := s.dbAuth.StoreKey(ctx, userID, key, tokenPassword, expires, current.Roles); err != nil {
		return nil, sessionstore.Token{}, err
	}
	if err := s.dbAuth.AuthorizeUserSessions(ctx, current.PersonalDBs, key, current.Roles); err != nil {
		return nil, sessionstore.Token{}, err
	}

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if u.Session == nil {
			u.Session = make(map[string]util.SessionRecord)
		}
		u.Session[key] = util.SessionRecord{Issued: issued, Expires: expires, Provider: provider, IP: req.IP}
		s.synthesizeProfile(u)
		s.appendActivity(u, "login", provider, req.IP)
		return true, nil
	})
	if err != nil {
		return nil, sessionstore.Token{}, err
	}

	s.emit.Emit(events.Event{Name: events.Login, UserID: userID, Provider: provider, Timestamp: issued})
	return user, token, nil
}

// RefreshSession extends an existing session's expiry in both the token
// store, DBAuth's credential entry, and the user document's session
// record (spec.md §4.5).
func (s *Service) RefreshSession(ctx context.Context, userID, sessionKey string, req Request) (*User, sessionstore.Token, error) {
	token, err := s.sessions.FetchToken(ctx, sessionKey)
	if err != nil {
		return nil, sessionstore.Token{}, err
	}

	now := time.Now()
	current, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, sessionstore.Token{}, err
	}
	if expired := current.expiredSessionKeys(now); len(expired) > 0 {
		if err := s.logoutUserSessions(ctx, current, expired); err != nil {
			return nil, sessionstore.Token{}, err
		}
		if _, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
			changed := false
			for _, k := range expired {
				if _, ok := u.Session[k]; ok {
					delete(u.Session, k)
					changed = true
				}
			}
			return changed, nil
		}); err != nil {
			return nil, sessionstore.Token{}, err
		}
	}

	token.Expires = now.Add(time.Duration(s.cfg.Security.SessionLife) * time.Second)
	if err := s.sessions.StoreToken(ctx, token); err != nil {
		return nil, sessionstore.Token{}, err
	}
	if err := s.dbAuth.StoreKey(ctx, userID, sessionKey, token.Password, token.Expires, token.Roles); err != nil {
		return nil, sessionstore.Token{}, err
	}

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		rec, ok := u.Session[sessionKey]
		if !ok {
			return false, apperr.InvalidToken()
		}
		rec.Expires = token.Expires
		u.Session[sessionKey] = rec
		return true, nil
	})
	if err != nil {
		return nil, sessionstore.Token{}, err
	}

	s.emit.Emit(events.Event{Name: events.Refresh, UserID: userID, Provider: token.Provider, Timestamp: time.Now()})
	return user, token, nil
}

// logoutUserSessions tears down keys' standing across every collaborator
// that tracks session state — the token store, DBAuth's credential
// entries, and DBAuth's per-database membership grants — concurrently,
// so the three teardown calls either all succeed or the first error
// surfaces before the user document is ever touched (spec.md §5).
func (s *Service) logoutUserSessions(ctx context.Context, user *User, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.sessions.DeleteTokens(gctx, keys...) })
	g.Go(func() error { return s.dbAuth.RemoveKeys(gctx, keys...) })
	g.Go(func() error { return s.dbAuth.DeauthorizeUser(gctx, user.PersonalDBs, keys...) })
	return g.Wait()
}

// LogoutSession revokes a single session (spec.md §4.5).
func (s *Service) LogoutSession(ctx context.Context, userID, sessionKey string, req Request) (*User, error) {
	user, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := user.Session[sessionKey]; !ok {
		return user, nil
	}

	if err := s.logoutUserSessions(ctx, user, []string{sessionKey}); err != nil {
		return nil, err
	}

	updated, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if _, ok := u.Session[sessionKey]; !ok {
			return false, nil
		}
		delete(u.Session, sessionKey)
		s.appendActivity(u, "logout", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.Logout, UserID: userID, Timestamp: time.Now()})
	return updated, nil
}

// LogoutUser revokes every session on the account (spec.md §4.5).
func (s *Service) LogoutUser(ctx context.Context, userID string, req Request) (*User, error) {
	user, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := user.sessionKeys()

	if err := s.logoutUserSessions(ctx, user, keys); err != nil {
		return nil, err
	}

	updated, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if len(u.Session) == 0 {
			return false, nil
		}
		u.Session = nil
		s.appendActivity(u, "logout-all", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.LogoutAll, UserID: userID, Timestamp: time.Now()})
	return updated, nil
}

// LogoutOthers revokes every session on the account except keepSessionKey
// (spec.md §4.5).
func (s *Service) LogoutOthers(ctx context.Context, userID, keepSessionKey string, req Request) (*User, error) {
	user, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var revoke []string
	for _, key := range user.sessionKeys() {
		if key != keepSessionKey {
			revoke = append(revoke, key)
		}
	}

	if err := s.logoutUserSessions(ctx, user, revoke); err != nil {
		return nil, err
	}

	updated, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if len(revoke) == 0 {
			return false, nil
		}
		for _, key := range revoke {
			delete(u.Session, key)
		}
		s.appendActivity(u, "logout-others", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.Logout, UserID: userID, Timestamp: time.Now()})
	return updated, nil
}

// synthesizeProfile folds session.profileMapping into u.Profile (spec.md
// §4.5 createSession step 11, §9): for each mapped field, the providers
// configured for it are consulted in order and the first one carrying the
// field wins. It mutates u in place and performs no I/O.
func (s *Service) synthesizeProfile(u *User) {
	if len(s.cfg.Session.ProfileMapping) == 0 {
		return
	}

	profile := make(map[string]any, len(s.cfg.Session.ProfileMapping))
	for field, providers := range s.cfg.Session.ProfileMapping {
		for _, provider := range providers {
			data, ok := u.ProviderData[provider]
			if !ok {
				continue
			}
			if v, ok := data.Profile[field]; ok {
				profile[field] = v
				break
			}
		}
	}
	if len(profile) > 0 {
		u.Profile = profile
	}
}
