// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"github.com/taibuivan/yomira/internal/userservice"
)

// publicUser is the client-facing projection of a [userservice.User]: it
// drops the Local credential block (password derivation, lockout state)
// and the raw session-token map, neither of which is ever safe to return
// from a generic "here is the account" response.
type publicUser struct {
	ID        string                    `json:"id"`
	Email     string                    `json:"email,omitempty"`
	Phone     string                    `json:"phone,omitempty"`
	Username  string                    `json:"username,omitempty"`
	Providers []string                  `json:"providers"`
	Roles     []string                  `json:"roles"`
	SignUp    userservice.SignUpRecord  `json:"signUp"`
	Activity  []userservice.ActivityEntry `json:"activity,omitempty"`
	Profile   map[string]any            `json:"profile,omitempty"`
}

func toPublicUser(u *userservice.User) publicUser {
	return publicUser{
		ID:        u.ID,
		Email:     u.Email,
		Phone:     u.Phone,
		Username:  u.Username,
		Providers: u.Providers,
		Roles:     u.Roles,
		SignUp:    u.SignUp,
		Activity:  u.Activity,
		Profile:   u.Profile,
	}
}
