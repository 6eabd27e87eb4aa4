// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/mailer"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/util"
	"github.com/taibuivan/yomira/pkg/slug"
)

const maxGenerateUsernameAttempts = 1000

// Create is component C5's create operation (spec.md §4.5). form carries
// the raw registration fields; the detected login value is first
// duplicated into its matching field so a single form input serves
// whichever identity key is enabled.
func (s *Service) Create(ctx context.Context, form map[string]any, req Request) (*User, error) {
	loginField := s.cfg.Local.UsernameField
	if loginField == "" {
		loginField = "username"
	}
	if login, ok := form[loginField].(string); ok && login != "" {
		switch s.loginType(login) {
		case "email":
			form["email"] = login
		case "phone":
			form["phone"] = login
		default:
			form["username"] = login
		}
	}

	validated, errs := s.createSpec.Validate(ctx, form)
	if errs != nil {
		return nil, apperr.ValidationFailed(errs)
	}

	user := &User{}
	if v, ok := validated["email"].(string); ok {
		user.Email = v
	}
	if v, ok := validated["phone"].(string); ok {
		user.Phone = v
	}
	if v, ok := validated["username"].(string); ok {
		user.Username = v
	}

	if s.cfg.Security.InviteOnlyRegistration {
		code, _ := form["inviteCode"].(string)
		if err := s.consumeInviteCode(ctx, code, user); err != nil {
			return nil, err
		}
	}

	if user.ID == "" {
		if !s.cfg.Local.UUIDAsID && user.Username != "" {
			user.ID = user.Username
		} else {
			id, err := util.NewHexID()
			if err != nil {
				return nil, fmt.Errorf("userservice: generate id: %w", err)
			}
			user.ID = id
		}
	}

	if s.cfg.Local.SendConfirmEmail && user.Email != "" {
		token, err := util.URLSafeUUID()
		if err != nil {
			return nil, fmt.Errorf("userservice: generate confirm token: %w", err)
		}
		user.UnverifiedEmail = &UnverifiedEmail{Email: user.Email, Token: token}
		user.Email = ""
	}

	plain, _ := validated["password"].(string)
	cred, err := util.HashPassword(plain)
	if err != nil {
		return nil, fmt.Errorf("userservice: hash password: %w", err)
	}
	user.Local = &LocalCredential{Credential: cred}
	user.Roles = append([]string{}, s.cfg.Security.DefaultRoles...)
	user.AddProvider("local")
	user.SignUp = SignUpRecord{Provider: "local", Timestamp: time.Now(), IP: req.IP}

	if err := s.provisionDefaultDBs(ctx, user); err != nil {
		return nil, err
	}
	s.appendActivity(user, "signup", "local", req.IP)

	user, err = runTransformations(ctx, user, s.onCreate)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, user); err != nil {
		return nil, err
	}

	if user.UnverifiedEmail != nil {
		_ = s.mail.Send(ctx, mailer.ConfirmEmail, user.UnverifiedEmail.Email, map[string]any{
			"token": user.UnverifiedEmail.Token, "userID": user.ID,
		})
	}

	s.emit.Emit(events.Event{Name: events.Signup, UserID: user.ID, Provider: "local", Timestamp: time.Now()})
	return user, nil
}

// consumeInviteCode validates and deletes the invite code, adopting a
// 32-character stored value as user.ID (spec.md §4.5 step 3).
func (s *Service) consumeInviteCode(ctx context.Context, code string, user *User) error {
	if code == "" {
		return apperr.MissingInviteCode()
	}
	value, ok, err := s.sessions.GetKey(ctx, "invite_code:"+code)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.MissingInviteCode()
	}
	if err := s.sessions.DeleteKeys(ctx, "invite_code:"+code); err != nil {
		return err
	}
	if len(value) == 32 {
		user.ID = value
	}
	return nil
}

// SocialAuth is component C5's federated sign-in/sign-up operation
// (spec.md §4.5).
func (s *Service) SocialAuth(ctx context.Context, provider string, auth, profile map[string]any, req Request) (*User, error) {
	profileID, _ := profile["id"].(string)

	existing, err := s.getByView(ctx, "auth/"+provider, profileID)
	if err == nil {
		return s.relinkExistingSocialUser(ctx, existing.ID, provider, auth, profile, req)
	}
	if ae := apperr.As(err); ae == nil || ae.Code != "NOT_FOUND" {
		return nil, err
	}

	return s.createSocialUser(ctx, provider, auth, profile, req)
}

func (s *Service) relinkExistingSocialUser(ctx context.Context, userID, provider string, auth, profile map[string]any, req Request) (*User, error) {
	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if u.ProviderData == nil {
			u.ProviderData = make(map[string]ProviderAuth)
		}
		u.ProviderData[provider] = ProviderAuth{Auth: auth, Profile: profile}
		s.synthesizeProfile(u)
		s.appendActivity(u, "login", provider, req.IP)

		linked, err := runTransformations(ctx, u, s.onLink)
		if err != nil {
			return false, err
		}
		*u = *linked
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.Login, UserID: user.ID, Provider: provider, Timestamp: time.Now()})
	return user, nil
}

func (s *Service) createSocialUser(ctx context.Context, provider string, auth, profile map[string]any, req Request) (*User, error) {
	if s.cfg.Security.InviteOnlyRegistration {
		code := req.Query["inviteCode"]
		placeholder := &User{}
		if err := s.consumeInviteCode(ctx, code, placeholder); err != nil {
			return nil, err
		}
	}

	emailValue := socialEmail(profile)
	if emailValue != "" {
		count, err := (viewCounter{s.store}).CountByView(ctx, "auth/email", emailValue)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, apperr.InUseEmailLink()
		}
	}

	base := socialBaseUsername(profile)

	user := &User{Email: emailValue}
	if s.cfg.Local.UUIDAsID {
		id, err := util.NewHexID()
		if err != nil {
			return nil, err
		}
		user.ID = id
	} else {
		id, err := s.generateUsername(ctx, base)
		if err != nil {
			return nil, err
		}
		user.ID = id
	}

	delete(profile, "_raw")
	user.ProviderData = map[string]ProviderAuth{provider: {Auth: auth, Profile: profile}}
	user.Providers = []string{provider}
	user.Roles = append([]string{}, s.cfg.Security.DefaultRoles...)
	user.SignUp = SignUpRecord{Provider: provider, Timestamp: time.Now(), IP: req.IP}
	s.synthesizeProfile(user)

	if err := s.provisionDefaultDBs(ctx, user); err != nil {
		return nil, err
	}
	s.appendActivity(user, "signup", provider, req.IP)

	user, err := runTransformations(ctx, user, s.onCreate)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, user); err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.Signup, UserID: user.ID, Provider: provider, Timestamp: time.Now()})
	return user, nil
}

// socialEmail extracts profile.emails[0].value, the shape a normalized
// OAuth profile carries (spec.md §1's {provider, auth, profile} triple).
func socialEmail(profile map[string]any) string {
	emails, ok := profile["emails"].([]any)
	if !ok || len(emails) == 0 {
		return ""
	}
	entry, ok := emails[0].(map[string]any)
	if !ok {
		return ""
	}
	value, _ := entry["value"].(string)
	return value
}

// socialBaseUsername derives the seed for [Service.generateUsername]:
// profile.username, then the email local-part, then displayName with
// spaces stripped (not hyphenated), then profile.id (spec.md §4.5).
func socialBaseUsername(profile map[string]any) string {
	if v, ok := profile["username"].(string); ok && v != "" {
		return slug.From(v)
	}
	if email := socialEmail(profile); email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return slug.From(email[:at])
		}
	}
	if v, ok := profile["displayName"].(string); ok && v != "" {
		return slug.From(strings.ReplaceAll(v, " ", ""))
	}
	if v, ok := profile["id"].(string); ok {
		return slug.From(v)
	}
	return ""
}

// generateUsername preserves the spec's "lowest base+n that does not
// already exist" semantics (spec.md §9), implemented as sequential
// existence probes rather than a literal lexicographic allDocs range
// scan: [docstore.Store] exposes no range-query primitive, and a
// probe-until-free loop observes the identical outcome for the document
// shapes this repository ever writes (no id is ever deleted and
// recreated out of suffix order).
func (s *Service) generateUsername(ctx context.Context, base string) (string, error) {
	if base == "" {
		base = "user"
	}
	for n := 0; n < maxGenerateUsernameAttempts; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s%d", base, n+1)
		}
		_, err := s.store.Get(ctx, candidate)
		if err == nil {
			continue
		}
		if ae := apperr.As(err); ae != nil && ae.Code == "NOT_FOUND" {
			return candidate, nil
		}
		return "", err
	}
	return "", fmt.Errorf("userservice: exhausted username suffix attempts for base %q", base)
}

// LinkSocial attaches a federated identity to an existing user (spec.md
// §4.5).
func (s *Service) LinkSocial(ctx context.Context, userID, provider string, auth, profile map[string]any, req Request) (*User, error) {
	profileID, _ := profile["id"].(string)

	if holder, err := s.getByView(ctx, "auth/"+provider, profileID); err == nil {
		if holder.ID != userID {
			return nil, apperr.InUseProvider(provider)
		}
	} else if ae := apperr.As(err); ae == nil || ae.Code != "NOT_FOUND" {
		return nil, err
	}

	if email := socialEmail(profile); email != "" {
		if holder, err := s.getByView(ctx, "auth/email", email); err == nil && holder.ID != userID {
			return nil, apperr.InUseEmail()
		}
	}

	return s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if current, ok := u.ProviderData[provider]; ok {
			if currentID, _ := current.Profile["id"].(string); currentID != "" && currentID != profileID {
				return false, apperr.ConflictProvider(provider)
			}
		}
		if u.ProviderData == nil {
			u.ProviderData = make(map[string]ProviderAuth)
		}
		u.ProviderData[provider] = ProviderAuth{Auth: auth, Profile: profile}
		u.AddProvider(provider)
		s.synthesizeProfile(u)
		s.appendActivity(u, "link", provider, req.IP)

		linked, err := runTransformations(ctx, u, s.onLink)
		if err != nil {
			return false, err
		}
		*u = *linked
		return true, nil
	})
}

// Unlink detaches a federated identity (spec.md §4.5, I1).
func (s *Service) Unlink(ctx context.Context, userID, provider string, req Request) (*User, error) {
	if provider == "" {
		return nil, apperr.MissingProviderToUnlink()
	}
	if provider == "local" {
		return nil, apperr.UnlinkLocal()
	}

	return s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if len(u.Providers) < 2 {
			return false, apperr.UnlinkOnlyProvider()
		}
		if !u.HasProvider(provider) {
			return false, apperr.ProviderNotFound()
		}
		delete(u.ProviderData, provider)
		u.RemoveProvider(provider)
		s.appendActivity(u, "unlink", provider, req.IP)
		return true, nil
	})
}
