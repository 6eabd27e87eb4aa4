// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/taibuivan/yomira/internal/authstrategies"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/sessionstore"
)

// ctxKey is a private context key type, following the same collision-safe
// pattern as [ctxkey.Key], scoped to this package's own value instead of
// reusing the platform's JWT-shaped AuthClaims key.
type ctxKey int

const ctxKeyUser ctxKey = iota

// Authenticate extracts the bearer JWT from the Authorization header,
// unwraps it back into the core's "<key>:<password>" credential, and
// confirms it via [authstrategies.Strategies.Bearer]. A missing or
// malformed header is anonymous access, not an error: individual routes
// that require a session use [RequireAuth] to enforce that.
func Authenticate(jwt *JWTIssuer, strategies *authstrategies.Strategies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respond.Error(w, r, apperr.Unauthorized("invalid authorization header"))
				return
			}

			credential, err := jwt.Parse(parts[1])
			if err != nil {
				respond.Error(w, r, apperr.Unauthorized("invalid or expired bearer token"))
				return
			}

			view, err := strategies.Bearer(r.Context(), credential)
			if err != nil {
				respond.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, view)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that [Authenticate] did not attach a
// confirmed [sessionstore.UserView] to. Must be mounted after Authenticate.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			respond.Error(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext retrieves the confirmed [sessionstore.UserView] a prior
// call to [Authenticate] attached to ctx, if any.
func UserFromContext(ctx context.Context) (sessionstore.UserView, bool) {
	view, ok := ctx.Value(ctxKeyUser).(sessionstore.UserView)
	return view, ok
}
