// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package authstrategies

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/userservice"
)

// SessionResult is the "Session response" shape (spec.md §6): everything a
// caller needs to hand a newly authenticated client its credentials and
// per-database URLs, without exposing the full [userservice.User] document.
type SessionResult struct {
	Token    string
	Password string
	UserID   string
	Email    string
	Phone    string
	Roles    []string
	Issued   time.Time
	Expires  time.Time
	Provider string
	IP       string
	Profile  map[string]any
	UserDBs  map[string]string // logical name -> URL
}

// Local authenticates a login/password pair (spec.md §4.6). It does not
// reimplement the lockout/captcha/email-confirmation state machine — that
// lives in [userservice.Service.CreateSession], since it is account logic,
// not a credential-parsing concern. This method's only job is translating
// a successful outcome into the wire-shaped [SessionResult].
func (s *Strategies) Local(ctx context.Context, login, password string, req userservice.Request) (SessionResult, error) {
	user, token, err := s.users.CreateSession(ctx, login, password, req)
	if err != nil {
		s.log.DebugContext(ctx, "local authentication rejected", "login", login, "error", err)
		return SessionResult{}, err
	}
	return SessionResult{
		Token:    token.Key,
		Password: token.Password,
		UserID:   user.ID,
		Email:    user.Email,
		Phone:    user.Phone,
		Roles:    user.Roles,
		Issued:   token.Issued,
		Expires:  token.Expires,
		Provider: token.Provider,
		IP:       req.IP,
		Profile:  user.Profile,
		UserDBs:  s.userDBURLs(user),
	}, nil
}

// userDBURLs builds the logical-name-to-URL map the session response
// exposes (spec.md §6), distinct from [util.GetDBURL] which embeds
// credentials and must never reach a client.
func (s *Strategies) userDBURLs(user *userservice.User) map[string]string {
	if len(user.PersonalDBs) == 0 {
		return nil
	}
	urls := make(map[string]string, len(user.PersonalDBs))
	for physicalName, db := range user.PersonalDBs {
		urls[db.Name] = fmt.Sprintf("%s/%s", s.publicURL, physicalName)
	}
	return urls
}
