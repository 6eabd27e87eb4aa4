// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/taibuivan/yomira/internal/authstrategies"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/platform/validate"
	"github.com/taibuivan/yomira/internal/sessionstore"
	"github.com/taibuivan/yomira/internal/userservice"
)

// SessionHandler implements the account-lifecycle and session endpoints
// (spec.md §4.5, §4.6): register, login, refresh, logout, and password
// recovery. It owns no state of its own beyond its collaborators.
type SessionHandler struct {
	users      *userservice.Service
	strategies *authstrategies.Strategies
	jwt        *JWTIssuer
}

// NewSessionHandler constructs a [SessionHandler].
func NewSessionHandler(users *userservice.Service, strategies *authstrategies.Strategies, jwt *JWTIssuer) *SessionHandler {
	return &SessionHandler{users: users, strategies: strategies, jwt: jwt}
}

// sessionResponse is the wire shape of a successful authentication: the
// raw token/password pair the core's Bearer strategy parses, plus a
// "bearer" convenience JWT wrapping the same pair for browser clients
// that would rather store one opaque value.
type sessionResponse struct {
	Token    string            `json:"token"`
	Password string            `json:"password"`
	Bearer   string            `json:"bearer"`
	UserID   string            `json:"userId"`
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Roles    []string          `json:"roles"`
	Issued   string            `json:"issued"`
	Expires  string            `json:"expires"`
	Provider string            `json:"provider"`
	UserDBs  map[string]string `json:"userDBs,omitempty"`
}

func (h *SessionHandler) toSessionResponse(result authstrategies.SessionResult) (sessionResponse, error) {
	bearer, err := h.jwt.Issue(sessionstore.Token{
		Key:      result.Token,
		Password: result.Password,
		UserID:   result.UserID,
		Issued:   result.Issued,
		Expires:  result.Expires,
		Provider: result.Provider,
		Roles:    result.Roles,
	})
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{
		Token:    result.Token,
		Password: result.Password,
		Bearer:   bearer,
		UserID:   result.UserID,
		Email:    result.Email,
		Phone:    result.Phone,
		Roles:    result.Roles,
		Issued:   result.Issued.Format(timeLayout),
		Expires:  result.Expires.Format(timeLayout),
		Provider: result.Provider,
		UserDBs:  result.UserDBs,
	}, nil
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// registerRequest is the account-creation payload. Additional whitelisted
// fields travel through Extra, since the core's create form is a
// freeform map keyed by the configured username/email/phone fields
// (spec.md §4.5, §6 userModel.whitelist).
type registerRequest struct {
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Extra    map[string]any `json:"extra"`
}

// Register handles POST /api/v1/auth/register.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input registerRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}
	if input.Password == "" {
		respond.Error(w, r, validate.RequiredError("password", "is required"))
		return
	}

	form := map[string]any{}
	for k, v := range input.Extra {
		form[k] = v
	}
	if input.Username != "" {
		form["username"] = input.Username
	}
	if input.Email != "" {
		form["email"] = input.Email
	}
	if input.Phone != "" {
		form["phone"] = input.Phone
	}
	form["password"] = input.Password

	user, err := h.users.Create(r.Context(), form, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, toPublicUser(user))
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}
	if input.Login == "" || input.Password == "" {
		respond.Error(w, r, validate.RequiredError("login/password", "are required"))
		return
	}

	result, err := h.strategies.Local(r.Context(), input.Login, input.Password, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	out, err := h.toSessionResponse(result)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, out)
}

// Refresh handles POST /api/v1/auth/refresh. The caller authenticates
// with the session it wants extended; there is no separate refresh
// credential in this model (spec.md §4.5).
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	view, ok := UserFromContext(r.Context())
	if !ok {
		respond.Error(w, r, apperr.Unauthorized("authentication required"))
		return
	}

	user, token, err := h.users.RefreshSession(r.Context(), view.UserID, view.Key, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	bearer, err := h.jwt.Issue(token)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, sessionResponse{
		Token:    token.Key,
		Password: token.Password,
		Bearer:   bearer,
		UserID:   user.ID,
		Email:    user.Email,
		Phone:    user.Phone,
		Roles:    token.Roles,
		Issued:   token.Issued.Format(timeLayout),
		Expires:  token.Expires.Format(timeLayout),
		Provider: token.Provider,
	})
}

type forgotPasswordRequest struct {
	Login string `json:"login"`
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
func (h *SessionHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}
	if input.Login == "" {
		respond.Error(w, r, validate.RequiredError("login", "is required"))
		return
	}

	if _, err := h.users.ForgotPassword(r.Context(), input.Login, requestFromHTTP(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	// An unknown login has already been answered above with the service's
	// username_not_found error; reaching here means the reset mail was sent.
	respond.OK(w, map[string]bool{"sent": true})
}

type resetPasswordRequest struct {
	Login       string `json:"login"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (h *SessionHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}
	if input.Token == "" || input.NewPassword == "" {
		respond.Error(w, r, validate.RequiredError("token/newPassword", "are required"))
		return
	}

	user, err := h.users.ResetPassword(r.Context(), input.Login, input.Token, input.NewPassword, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

// Logout handles POST /api/v1/auth/logout, revoking the calling session.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	view, _ := UserFromContext(r.Context())
	if _, err := h.users.LogoutSession(r.Context(), view.UserID, view.Key, requestFromHTTP(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// LogoutOthers handles POST /api/v1/auth/logout-others, revoking every
// session except the one the caller used to authenticate.
func (h *SessionHandler) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	view, _ := UserFromContext(r.Context())
	if _, err := h.users.LogoutOthers(r.Context(), view.UserID, view.Key, requestFromHTTP(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}

// LogoutAll handles POST /api/v1/auth/logout-all, revoking every session.
func (h *SessionHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	view, _ := UserFromContext(r.Context())
	if _, err := h.users.LogoutUser(r.Context(), view.UserID, requestFromHTTP(r)); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w)
}
