// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package userservice

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/yomira/internal/events"
	"github.com/taibuivan/yomira/internal/mailer"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/util"
)

// VerifyEmail completes an email-confirm flow by plaintext token (spec.md
// §4.5, §4.1): unlike the forgot-password token, the confirm token is
// stored as plaintext on unverifiedEmail, since it is looked up directly
// by an "auth/verifyEmail" view rather than re-derived from a hash.
func (s *Service) VerifyEmail(ctx context.Context, token string, req Request) (*User, error) {
	target, err := s.getByView(ctx, "auth/verifyEmail", token)
	if err != nil {
		return nil, apperr.InvalidTokenShape()
	}

	user, err := s.retryMutate(ctx, target.ID, func(u *User) (bool, error) {
		if u.UnverifiedEmail == nil || u.UnverifiedEmail.Token != token {
			return false, apperr.InvalidTokenShape()
		}
		u.Email = u.UnverifiedEmail.Email
		u.UnverifiedEmail = nil
		s.appendActivity(u, "email-verified", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.EmailVerified, UserID: user.ID, Timestamp: time.Now()})
	return user, nil
}

// ChangeEmail updates a user's email, routing through the confirm-email
// flow when local.sendConfirmEmail is set instead of writing the address
// directly (spec.md §4.5, §6). Emptying the address is only permitted
// when another configured local.usernameKeys field still carries a value
// (I3): a user can never null out their only login credential.
func (s *Service) ChangeEmail(ctx context.Context, userID, newEmail string, req Request) (*User, error) {
	if newEmail != "" {
		if _, errs := s.changeEmailSpec.Validate(ctx, map[string]any{"email": newEmail}); errs != nil {
			return nil, apperr.ValidationFailed(errs)
		}
	}

	current, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Local == nil {
		return nil, apperr.PasswordNotSet()
	}
	if newEmail == "" && s.isOnlyLoginCredential(current, "email") {
		return nil, apperr.OnlyLoginCredential()
	}

	if newEmail != "" && s.cfg.Local.SendConfirmEmail {
		token, err := util.URLSafeUUID()
		if err != nil {
			return nil, fmt.Errorf("userservice: generate confirm token: %w", err)
		}

		user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
			u.UnverifiedEmail = &UnverifiedEmail{Email: newEmail, Token: token}
			return true, nil
		})
		if err != nil {
			return nil, err
		}

		_ = s.mail.Send(ctx, mailer.ConfirmEmail, newEmail, map[string]any{"token": token, "userID": userID})
		return user, nil
	}

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		u.Email = newEmail
		s.appendActivity(u, "email-changed", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.EmailChanged, UserID: userID, Timestamp: time.Now()})
	return user, nil
}

// ChangePhone updates a user's phone number (spec.md §4.5). Unlike email
// there is no confirm-flow toggle: the number is written directly once it
// passes validation. Emptying the number is subject to the same I3 guard
// as [Service.ChangeEmail].
func (s *Service) ChangePhone(ctx context.Context, userID, newPhone string, req Request) (*User, error) {
	if newPhone != "" {
		if _, errs := s.changePhoneSpec.Validate(ctx, map[string]any{"phone": newPhone}); errs != nil {
			return nil, apperr.ValidationFailed(errs)
		}
	}

	current, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Local == nil {
		return nil, apperr.PasswordNotSet()
	}
	if newPhone == "" && s.isOnlyLoginCredential(current, "phone") {
		return nil, apperr.OnlyLoginCredential()
	}

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		u.Phone = newPhone
		s.appendActivity(u, "phone-changed", "", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.PhoneChanged, UserID: userID, Timestamp: time.Now()})
	return user, nil
}

// isOnlyLoginCredential reports whether field is one of local.usernameKeys
// and every other configured key is currently empty on u — i.e. clearing
// field would leave the account with no way to log in (spec.md I3).
func (s *Service) isOnlyLoginCredential(u *User, field string) bool {
	isKey := false
	for _, key := range s.cfg.Local.UsernameKeys {
		if key == field {
			isKey = true
			break
		}
	}
	if !isKey {
		return false
	}
	for _, key := range s.cfg.Local.UsernameKeys {
		if key == field {
			continue
		}
		if usernameKeyValue(u, key) != "" {
			return false
		}
	}
	return true
}

// usernameKeyValue reads the user-document field a local.usernameKeys
// entry names.
func usernameKeyValue(u *User, key string) string {
	switch key {
	case "email":
		return u.Email
	case "phone":
		return u.Phone
	default:
		return u.Username
	}
}
