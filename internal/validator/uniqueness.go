// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validator

import (
	"context"
	"net/mail"
	"regexp"
)

// ViewQuerier is the slice of [docstore.Store] the uniqueness validators
// need: looking up whether any document already maps to a key under a
// named view. Declared locally (not imported from internal/docstore) so
// this package never depends on the document-store's concrete Doc type.
type ViewQuerier interface {
	CountByView(ctx context.Context, view, key string) (int, error)
}

// EmailValidator returns a [CustomValidator] that rejects malformed
// addresses and, via q, addresses already registered under view.
func EmailValidator(q ViewQuerier, view string) CustomValidator {
	return func(ctx context.Context, value string) (string, error) {
		if _, err := mail.ParseAddress(value); err != nil {
			return "is not a valid email address", nil
		}
		return checkUnique(ctx, q, view, value)
	}
}

// defaultPhoneRegexp is used when local.phoneRegexp is not configured:
// a loose E.164-shaped check (spec.md §6 local.phoneRegexp).
var defaultPhoneRegexp = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// PhoneValidator returns a [CustomValidator] for phone numbers, format
// checked against re (or [defaultPhoneRegexp] if re is nil) then checked
// for uniqueness via q.
func PhoneValidator(q ViewQuerier, view string, re *regexp.Regexp) CustomValidator {
	if re == nil {
		re = defaultPhoneRegexp
	}
	return func(ctx context.Context, value string) (string, error) {
		if !re.MatchString(value) {
			return "is not a valid phone number", nil
		}
		return checkUnique(ctx, q, view, value)
	}
}

// usernameRegexp matches the conservative shape most document-store key
// generators require: no leading '_' or '-' (spec.md §4.1 URLSafeUUID
// note applies the same constraint to generated ids).
var usernameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,63}$`)

// UsernameValidator returns a [CustomValidator] for usernames: format
// checked, then uniqueness via q.
func UsernameValidator(q ViewQuerier, view string) CustomValidator {
	return func(ctx context.Context, value string) (string, error) {
		if !usernameRegexp.MatchString(value) {
			return "must be 3-64 characters, starting with a letter or digit", nil
		}
		return checkUnique(ctx, q, view, value)
	}
}

func checkUnique(ctx context.Context, q ViewQuerier, view, value string) (string, error) {
	count, err := q.CountByView(ctx, view, value)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "already in use", nil
	}
	return "", nil
}
