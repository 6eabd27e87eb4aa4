// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira/internal/validator"
)

func TestSpec_Validate_WhitelistDropsUnknownFields(t *testing.T) {
	spec := validator.Spec{Whitelist: []string{"username"}}

	doc, errs := spec.Validate(context.Background(), map[string]any{
		"username": "alice",
		"isAdmin":  true,
	})
	require.Nil(t, errs)
	assert.Equal(t, "alice", doc["username"])
	_, hasAdmin := doc["isAdmin"]
	assert.False(t, hasAdmin)
}

func TestSpec_Validate_SanitizeRunsBeforeRules(t *testing.T) {
	spec := validator.Spec{
		Sanitize: map[string]validator.SanitizeFunc{
			"username": func(s string) string {
				return validator.ToLowerCase(validator.Trim(s))
			},
		},
		Fields: map[string]validator.FieldSpec{
			"username": {Presence: true},
		},
	}

	doc, errs := spec.Validate(context.Background(), map[string]any{"username": "  Alice  "})
	require.Nil(t, errs)
	assert.Equal(t, "alice", doc["username"])
}

func TestSpec_Validate_PresenceAndLength(t *testing.T) {
	spec := validator.Spec{
		Fields: map[string]validator.FieldSpec{
			"password": {
				Presence: true,
				Length:   &validator.LengthRule{Minimum: 8, Message: "must be at least 8 characters"},
			},
		},
	}

	_, errs := spec.Validate(context.Background(), map[string]any{"password": "short"})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"must be at least 8 characters"}, errs["password"])

	_, errs = spec.Validate(context.Background(), map[string]any{})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"is required"}, errs["password"])
}

func TestSpec_Validate_Matches(t *testing.T) {
	spec := validator.Spec{
		Matches: map[string]string{"confirmPassword": "password"},
	}

	_, errs := spec.Validate(context.Background(), map[string]any{
		"password":        "secret1",
		"confirmPassword": "secret2",
	})
	require.NotNil(t, errs)
	assert.Contains(t, errs["confirmPassword"][0], "does not match")

	doc, errs := spec.Validate(context.Background(), map[string]any{
		"password":        "secret1",
		"confirmPassword": "secret1",
	})
	require.Nil(t, errs)
	assert.Equal(t, "secret1", doc["password"])
}

func TestSpec_Validate_RenameAndStatic(t *testing.T) {
	spec := validator.Spec{
		Rename: map[string]string{"username": "_id"},
		Static: map[string]any{"typeField": "user"},
	}

	doc, errs := spec.Validate(context.Background(), map[string]any{"username": "alice"})
	require.Nil(t, errs)
	assert.Equal(t, "alice", doc["_id"])
	_, hasUsername := doc["username"]
	assert.False(t, hasUsername)
	assert.Equal(t, "user", doc["typeField"])
}

type fakeViewQuerier struct {
	taken map[string]bool
}

func (f fakeViewQuerier) CountByView(_ context.Context, _, key string) (int, error) {
	if f.taken[key] {
		return 1, nil
	}
	return 0, nil
}

func TestEmailValidator(t *testing.T) {
	v := validator.EmailValidator(fakeViewQuerier{taken: map[string]bool{"alice@example.com": true}}, "auth/email")

	msg, err := v(context.Background(), "not-an-email")
	require.NoError(t, err)
	assert.Equal(t, "is not a valid email address", msg)

	msg, err = v(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "already in use", msg)

	msg, err = v(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestUsernameValidator(t *testing.T) {
	v := validator.UsernameValidator(fakeViewQuerier{}, "auth/username")

	msg, err := v(context.Background(), "ab")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	msg, err = v(context.Background(), "alice123")
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestPhoneValidator_DefaultRegexp(t *testing.T) {
	v := validator.PhoneValidator(fakeViewQuerier{}, "auth/phone", nil)

	msg, err := v(context.Background(), "not-a-phone")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	msg, err = v(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.Empty(t, msg)
}

func TestSpec_Validate_CustomValidatorPropagatesQueryError(t *testing.T) {
	spec := validator.Spec{
		CustomValidators: map[string]validator.CustomValidator{
			"email": func(ctx context.Context, value string) (string, error) {
				return "", assertErr{}
			},
		},
	}

	_, errs := spec.Validate(context.Background(), map[string]any{"email": "a@b.com"})
	require.NotNil(t, errs)
	assert.Equal(t, []string{"boom"}, errs["email"])
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
