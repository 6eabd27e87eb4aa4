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

// ForgotPassword issues a password-reset token and emails it (spec.md
// §4.5, I6). login is resolved the same way [Service.get] resolves a
// login at session creation. The stored record holds the token's hash,
// never the plaintext (I6); the plaintext is only ever handed to the
// mailer.
func (s *Service) ForgotPassword(ctx context.Context, login string, req Request) (*User, error) {
	target, err := s.get(ctx, login)
	if err != nil {
		return nil, err
	}

	plaintext, err := util.URLSafeUUID()
	if err != nil {
		return nil, fmt.Errorf("userservice: generate reset token: %w", err)
	}

	issued := time.Now()
	expires := issued.Add(time.Duration(s.cfg.Security.TokenLife) * time.Second)

	user, err := s.retryMutate(ctx, target.ID, func(u *User) (bool, error) {
		u.ForgotPassword = &ForgotPasswordRecord{
			Token:   util.HashToken(plaintext),
			Issued:  issued,
			Expires: expires,
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	loginField := user.Email
	if loginField == "" {
		loginField = user.Phone
	}
	_ = s.mail.Send(ctx, mailer.ForgotPassword, loginField, map[string]any{
		"token": plaintext, "userID": user.ID,
	})

	s.emit.Emit(events.Event{Name: events.ForgotPassword, UserID: user.ID, Timestamp: issued})
	return user, nil
}

// ResetPassword completes a forgot-password flow given the plaintext
// token, which is hashed and compared against the stored digest (spec.md
// §4.5, I6).
func (s *Service) ResetPassword(ctx context.Context, login, plaintextToken, newPassword string, req Request) (*User, error) {
	target, err := s.get(ctx, login)
	if err != nil {
		return nil, err
	}
	return s.resetPasswordByUserID(ctx, target.ID, plaintextToken, newPassword, req)
}

// ResetPassword2 completes a reset flow whose token was already verified
// by the caller (spec.md §4.5's alternate entry point): it resolves the
// account by username alone, with no token/expiry re-check, and delegates
// the write to [Service.changePassword].
func (s *Service) ResetPassword2(ctx context.Context, username, newPassword, confirmPassword string, req Request) (*User, error) {
	if _, errs := s.resetPassword2Spec.Validate(ctx, map[string]any{
		"username": username, "password": newPassword, "confirmPassword": confirmPassword,
	}); errs != nil {
		return nil, apperr.ValidationFailed(errs)
	}

	target, err := s.get(ctx, username)
	if err != nil {
		return nil, apperr.UsernameNotFound()
	}

	return s.changePassword(ctx, target.ID, newPassword, req)
}

func (s *Service) resetPasswordByUserID(ctx context.Context, userID, plaintextToken, newPassword string, req Request) (*User, error) {
	if _, errs := s.resetPasswordSpec.Validate(ctx, map[string]any{
		"token": plaintextToken, "password": newPassword, "confirmPassword": newPassword,
	}); errs != nil {
		return nil, apperr.ValidationFailed(errs)
	}

	cred, err := util.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("userservice: hash password: %w", err)
	}
	hashed := util.HashToken(plaintextToken)

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if u.ForgotPassword == nil || u.ForgotPassword.Token != hashed {
			return false, apperr.InvalidToken()
		}
		if time.Now().After(u.ForgotPassword.Expires) {
			return false, apperr.ExpiredToken()
		}
		if u.Local == nil {
			u.Local = &LocalCredential{}
		}
		u.Local.Credential = cred
		u.Local.FailedLoginAttempts = 0
		u.Local.LockedUntil = nil
		u.ForgotPassword = nil
		s.appendActivity(u, "password-reset", "local", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.logoutUserSessions(ctx, user, user.sessionKeys()); err != nil {
		return nil, err
	}
	user, err = s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if len(u.Session) == 0 {
			return false, nil
		}
		u.Session = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.PasswordReset, UserID: userID, Timestamp: time.Now()})
	return user, nil
}

// ChangePasswordSecure changes a known-authenticated user's password,
// verifying the supplied current password only if the account has a
// local credential to verify against (spec.md §4.5): an account that
// signed up through a federated provider and has never set a password
// has nothing to confirm. Once the password is changed, every session
// but the caller's own current one (req.SessionKey) is logged out.
func (s *Service) ChangePasswordSecure(ctx context.Context, userID, currentPassword, newPassword string, req Request) (*User, error) {
	current, err := s.getByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Local != nil {
		if currentPassword == "" {
			return nil, apperr.MissingCurrentPassword()
		}
		if !util.VerifyPassword(current.Local.Credential, currentPassword) {
			return nil, apperr.InvalidCurrentPassword()
		}
	}

	user, err := s.changePassword(ctx, userID, newPassword, req)
	if err != nil {
		return nil, err
	}

	if req.SessionKey != "" {
		user, err = s.LogoutOthers(ctx, userID, req.SessionKey, req)
		if err != nil {
			return nil, err
		}
	}

	return user, nil
}

// ChangePassword changes a password without verifying a current one — an
// administrative or already-verified-elsewhere path (spec.md §4.5).
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string, req Request) (*User, error) {
	return s.changePassword(ctx, userID, newPassword, req)
}

func (s *Service) changePassword(ctx context.Context, userID, newPassword string, req Request) (*User, error) {
	cred, err := util.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("userservice: hash password: %w", err)
	}

	user, err := s.retryMutate(ctx, userID, func(u *User) (bool, error) {
		if u.Local == nil {
			u.Local = &LocalCredential{}
		}
		u.Local.Credential = cred
		u.Local.FailedLoginAttempts = 0
		u.Local.LockedUntil = nil
		u.AddProvider("local")
		s.appendActivity(u, "password-change", "local", req.IP)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit.Emit(events.Event{Name: events.PasswordChange, UserID: userID, Timestamp: time.Now()})
	return user, nil
}
