// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package userservice is component C5: it owns user documents and
orchestrates every account/session/credential operation against the
document store, DBAuth, SessionStore, and the validator.

Architecture:

  - Service holds its collaborators as unexported fields, constructed by
    [New], the same shape the seed project used for its own service types.
  - Every public write operation is a read-modify-write cycle against the
    document store's optimistic concurrency: read, mutate in memory,
    persist with the read revision, retry a bounded number of times on
    conflict (spec.md §5, §9). [Service.retryMutate] is the one place that
    loop lives; every operation below composes it instead of re-deriving
    it.
  - Parallel teardown (token deletion + DB-auth key removal +
    deauthorization) uses golang.org/x/sync/errgroup so all three
    side effects either all complete or the first error surfaces, before
    the user document is ever persisted (spec.md §5).
*/
package userservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/docstore"
	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/mailer"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/validator"
)

// # Configuration

// SecurityConfig is the slice of security.* userservice needs.
type SecurityConfig struct {
	DefaultRoles           []string
	UserActivityLogSize    int
	InviteOnlyRegistration bool
	MaxFailedLogins        int
	LockoutTime            int // seconds
	SoftLock               bool
	TokenLife              int // seconds
	SessionLife            int // seconds
}

// LocalConfig is the slice of local.* userservice needs.
type LocalConfig struct {
	UsernameKeys        []string
	UsernameField       string
	SendConfirmEmail    bool
	RequireEmailConfirm bool
	UUIDAsID            bool
	PhoneRegexp         string
}

// DBServerConfig is the slice of dbServer.* userservice needs.
type DBServerConfig struct {
	PublicURL string
	TypeField string
}

// SessionConfig is the slice of session.* userservice needs.
type SessionConfig struct {
	// ProfileMapping maps a synthesized profile field to the ordered list
	// of providers consulted for it (spec.md §4.5, §9).
	ProfileMapping map[string][]string
}

// UserDBsConfig is the slice of userDBs.* userservice needs. The
// per-logical-name provisioning details (type, permissions, roles,
// design docs) live in [dbauth.DBAuth]'s own config and are resolved via
// [dbauth.DBAuth.GetDBConfig]; userservice only needs to know which
// logical names to provision by default.
type UserDBsConfig struct {
	DefaultDBsPrivate []string
	DefaultDBsShared  []string
}

// Config is the userservice-relevant projection of the application's
// configuration tree, assembled by the caller at wiring time.
type Config struct {
	Security SecurityConfig
	Local    LocalConfig
	DBServer DBServerConfig
	Session  SessionConfig
	UserDBs  UserDBsConfig
}

// # Service

const maxConflictRetries = 3

// Service is component C5.
type Service struct {
	store    docstore.Store
	sessions sessionstore.Store
	dbAuth   *dbauth.DBAuth
	emit     events.Emitter
	mail     mailer.Mailer
	log      *slog.Logger
	cfg      Config

	createSpec         validator.Spec
	changeEmailSpec    validator.Spec
	changePhoneSpec    validator.Spec
	resetPasswordSpec  validator.Spec
	resetPassword2Spec validator.Spec

	phoneRegexp  *regexp.Regexp
	retryLimiter *rate.Limiter

	onCreate []Transformation
	onLink   []Transformation
}

// RegisterOnCreate appends t to the transformations [Service.Create] and
// [Service.SocialAuth]'s create path run before persisting a new user.
func (s *Service) RegisterOnCreate(t Transformation) {
	s.onCreate = append(s.onCreate, t)
}

// RegisterOnLink appends t to the transformations [Service.LinkSocial] and
// [Service.SocialAuth]'s existing-user path run before persisting.
func (s *Service) RegisterOnLink(t Transformation) {
	s.onLink = append(s.onLink, t)
}

// NewRetryLimiter returns the recommended pacing limiter for the
// optimistic-concurrency retry loop: a small, steady trickle rather than
// a hot loop against the store on conflict.
func NewRetryLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
}

// New constructs a [Service]. When cfg.Local.PhoneRegexp is empty or does
// not compile, phone checks fall back to a default E.164-shaped pattern
// (the validator package's own default for validation).
func New(
	store docstore.Store,
	sessions sessionstore.Store,
	dbAuth *dbauth.DBAuth,
	emit events.Emitter,
	mail mailer.Mailer,
	log *slog.Logger,
	cfg Config,
	retryLimiter *rate.Limiter,
) *Service {
	s := &Service{
		store:        store,
		sessions:     sessions,
		dbAuth:       dbAuth,
		emit:         emit,
		mail:         mail,
		log:          log,
		cfg:          cfg,
		retryLimiter: retryLimiter,
	}

	if cfg.Local.PhoneRegexp != "" {
		if re, err := regexp.Compile(cfg.Local.PhoneRegexp); err == nil {
			s.phoneRegexp = re
		}
	}

	s.buildSpecs()
	return s
}

// viewCounter adapts [docstore.Store] to [validator.ViewQuerier].
type viewCounter struct{ store docstore.Store }

func (v viewCounter) CountByView(ctx context.Context, view, key string) (int, error) {
	docs, err := v.store.Query(ctx, view, key)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (s *Service) buildSpecs() {
	q := viewCounter{s.store}

	fields := make(map[string]validator.FieldSpec)
	customValidators := make(map[string]validator.CustomValidator)

	for _, key := range s.cfg.Local.UsernameKeys {
		switch key {
		case "email":
			customValidators["email"] = validator.EmailValidator(q, "auth/email")
			fields["email"] = validator.FieldSpec{Presence: true}
		case "phone":
			customValidators["phone"] = validator.PhoneValidator(q, "auth/phone", s.phoneRegexp)
			fields["phone"] = validator.FieldSpec{Presence: true}
		default:
			customValidators["username"] = validator.UsernameValidator(q, "auth/username")
			fields["username"] = validator.FieldSpec{Presence: true}
		}
	}
	fields["password"] = validator.FieldSpec{Presence: true, Length: &validator.LengthRule{Minimum: 8, Message: "must be at least 8 characters"}}

	s.createSpec = validator.Spec{
		Sanitize:         map[string]validator.SanitizeFunc{"email": validator.ToLowerCase, "username": validator.Trim},
		Fields:           fields,
		Matches:          map[string]string{"confirmPassword": "password"},
		CustomValidators: customValidators,
	}

	s.changeEmailSpec = validator.Spec{
		Fields:           map[string]validator.FieldSpec{"email": {Presence: true}},
		Sanitize:         map[string]validator.SanitizeFunc{"email": validator.ToLowerCase},
		CustomValidators: map[string]validator.CustomValidator{"email": validator.EmailValidator(q, "auth/email")},
	}
	s.changePhoneSpec = validator.Spec{
		Fields:           map[string]validator.FieldSpec{"phone": {Presence: true}},
		CustomValidators: map[string]validator.CustomValidator{"phone": validator.PhoneValidator(q, "auth/phone", s.phoneRegexp)},
	}
	s.resetPasswordSpec = validator.Spec{
		Fields: map[string]validator.FieldSpec{
			"token":           {Presence: true},
			"password":        {Presence: true, Length: &validator.LengthRule{Minimum: 8, Message: "must be at least 8 characters"}},
			"confirmPassword": {Presence: true},
		},
		Matches: map[string]string{"confirmPassword": "password"},
	}
	s.resetPassword2Spec = validator.Spec{
		Fields: map[string]validator.FieldSpec{
			"username":        {Presence: true},
			"password":        {Presence: true, Length: &validator.LengthRule{Minimum: 8, Message: "must be at least 8 characters"}},
			"confirmPassword": {Presence: true},
		},
		Matches: map[string]string{"confirmPassword": "password"},
	}
}

// Request carries the per-call context the out-of-scope HTTP layer would
// otherwise supply as {ip, host, protocol, query, user, body} (spec.md
// §1). Only the fields the core actually consumes are kept.
type Request struct {
	IP            string
	Query         map[string]string
	CaptchaPassed bool

	// SessionKey is the caller's own current session key, when known
	// (spec.md §4.5): [Service.ChangePasswordSecure] uses it to log out
	// every other session without tearing down the caller's own.
	SessionKey string
}

// # Read helpers

func (s *Service) getByID(ctx context.Context, id string) (*User, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return userFromDoc(s.cfg.DBServer.TypeField, doc)
}

func (s *Service) getByView(ctx context.Context, view, key string) (*User, error) {
	docs, err := s.store.Query(ctx, view, key)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.UsernameNotFound()
	}
	return userFromDoc(s.cfg.DBServer.TypeField, docs[0])
}

func (s *Service) persist(ctx context.Context, user *User) error {
	doc, err := user.toDoc(s.cfg.DBServer.TypeField)
	if err != nil {
		return fmt.Errorf("userservice: encode user document: %w", err)
	}
	rev, err := s.store.Put(ctx, doc)
	if err != nil {
		return err
	}
	user.Rev = rev
	return nil
}

// retryMutate implements the bounded read-modify-write cycle (spec.md §5,
// §9): re-read the document, apply, persist with the read revision,
// retrying on a Conflict a bounded number of times, paced by
// s.retryLimiter. apply reports whether it changed the in-memory document;
// when it reports false, retryMutate returns without persisting.
func (s *Service) retryMutate(ctx context.Context, id string, apply func(*User) (bool, error)) (*User, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		user, err := s.getByID(ctx, id)
		if err != nil {
			return nil, err
		}

		changed, err := apply(user)
		if err != nil {
			return nil, err
		}
		if !changed {
			return user, nil
		}

		if err := s.persist(ctx, user); err != nil {
			if ae := apperr.As(err); ae != nil && ae.Code == "CONFLICT" {
				lastErr = err
				if s.retryLimiter != nil {
					_ = s.retryLimiter.Wait(ctx)
				}
				continue
			}
			return nil, err
		}
		return user, nil
	}
	if lastErr == nil {
		lastErr = errors.New("userservice: exhausted conflict retries")
	}
	return nil, lastErr
}

// # Login-type detection

var emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// loginType iterates local.usernameKeys in order and classifies login
// (spec.md §4.5).
func (s *Service) loginType(login string) string {
	for _, key := range s.cfg.Local.UsernameKeys {
		switch key {
		case "email":
			if emailRegexp.MatchString(login) {
				return "email"
			}
		case "phone":
			re := s.phoneRegexp
			if re == nil {
				re = defaultPhoneRegexpFallback
			}
			if re.MatchString(login) {
				return "phone"
			}
		}
	}
	return "username"
}

var defaultPhoneRegexpFallback = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// get resolves a user by an arbitrary login identifier, detecting which
// view to query via [Service.loginType].
func (s *Service) get(ctx context.Context, login string) (*User, error) {
	view := "auth/" + s.loginType(login)
	return s.getByView(ctx, view, login)
}

// # Activity log

// appendActivity mutates user in place (spec.md I5); it performs no I/O.
func (s *Service) appendActivity(user *User, action, provider, ip string) {
	user.PrependActivity(ActivityEntry{
		Timestamp: time.Now(),
		Action:    action,
		Provider:  provider,
		IP:        ip,
	}, s.cfg.Security.UserActivityLogSize)
	s.emit.Emit(events.Event{Name: events.Activity, UserID: user.ID, Provider: provider, Timestamp: time.Now(), Data: map[string]any{"action": action, "ip": ip}})
}

// LogActivity is the public activity-log operation (spec.md §4.5): it
// fetches the user, appends the entry, and persists.
func (s *Service) LogActivity(ctx context.Context, userID, action, provider string, req Request) (*User, error) {
	return s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		s.appendActivity(u, action, provider, req.IP)
		return true, nil
	})
}
