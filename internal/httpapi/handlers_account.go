// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/yomira/internal/dbauth"
	"github.com/taibuivan/yomira/internal/platform/apperr"
	"github.com/taibuivan/yomira/internal/platform/respond"
	"github.com/taibuivan/yomira/internal/platform/validate"
	"github.com/taibuivan/yomira/internal/userservice"
)

// AccountHandler implements the authenticated account-management
// endpoints: password/email/phone changes, social linking, and
// per-user database provisioning (spec.md §4.3, §4.5).
type AccountHandler struct {
	users *userservice.Service
}

// NewAccountHandler constructs an [AccountHandler].
func NewAccountHandler(users *userservice.Service) *AccountHandler {
	return &AccountHandler{users: users}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/account/change-password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var input changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}
	if input.NewPassword == "" {
		respond.Error(w, r, validate.RequiredError("newPassword", "is required"))
		return
	}

	view, _ := UserFromContext(r.Context())
	user, err := h.users.ChangePasswordSecure(r.Context(), view.UserID, input.CurrentPassword, input.NewPassword, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

type changeEmailRequest struct {
	Email string `json:"email"`
}

// ChangeEmail handles POST /api/v1/account/change-email.
func (h *AccountHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var input changeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}

	// An empty email is a legal request: it asks to clear the address,
	// which userservice rejects itself (apperr.OnlyLoginCredential) when
	// it is the account's only login credential.
	view, _ := UserFromContext(r.Context())
	user, err := h.users.ChangeEmail(r.Context(), view.UserID, input.Email, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

type changePhoneRequest struct {
	Phone string `json:"phone"`
}

// ChangePhone handles POST /api/v1/account/change-phone.
func (h *AccountHandler) ChangePhone(w http.ResponseWriter, r *http.Request) {
	var input changePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}

	// An empty phone is a legal request: it asks to clear the number,
	// which userservice rejects itself (apperr.OnlyLoginCredential) when
	// it is the account's only login credential.
	view, _ := UserFromContext(r.Context())
	user, err := h.users.ChangePhone(r.Context(), view.UserID, input.Phone, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

// VerifyEmail handles GET /api/v1/account/verify-email/{token}.
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		respond.Error(w, r, validate.RequiredError("token", "is required"))
		return
	}

	user, err := h.users.VerifyEmail(r.Context(), token, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

type linkSocialRequest struct {
	Auth    map[string]any `json:"auth"`
	Profile map[string]any `json:"profile"`
}

// LinkSocial handles POST /api/v1/account/social/{provider}/link.
func (h *AccountHandler) LinkSocial(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var input linkSocialRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respond.Error(w, r, validate.ErrInvalidJSON)
		return
	}

	view, _ := UserFromContext(r.Context())
	user, err := h.users.LinkSocial(r.Context(), view.UserID, provider, input.Auth, input.Profile, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

// UnlinkSocial handles POST /api/v1/account/social/{provider}/unlink.
func (h *AccountHandler) UnlinkSocial(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	view, _ := UserFromContext(r.Context())
	user, err := h.users.Unlink(r.Context(), view.UserID, provider, requestFromHTTP(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

type addUserDBRequest struct {
	Type string `json:"type"`
}

// AddUserDB handles POST /api/v1/account/databases/{logicalName}.
func (h *AccountHandler) AddUserDB(w http.ResponseWriter, r *http.Request) {
	logicalName := chi.URLParam(r, "logicalName")
	var input addUserDBRequest
	_ = json.NewDecoder(r.Body).Decode(&input)

	dbType := dbauth.Private
	if input.Type == string(dbauth.Shared) {
		dbType = dbauth.Shared
	}

	view, _ := UserFromContext(r.Context())
	user, err := h.users.AddUserDB(r.Context(), view.UserID, logicalName, dbType)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}

// RemoveUserDB handles DELETE /api/v1/account/databases/{physicalName}.
// The physical database is only destroyed when the caller passes the
// matching ?deletePrivate=true / ?deleteShared=true query flag.
func (h *AccountHandler) RemoveUserDB(w http.ResponseWriter, r *http.Request) {
	physicalName := chi.URLParam(r, "physicalName")
	if physicalName == "" {
		respond.Error(w, r, apperr.ValidationError("physicalName is required"))
		return
	}

	deletePrivate := r.URL.Query().Get("deletePrivate") == "true"
	deleteShared := r.URL.Query().Get("deleteShared") == "true"

	view, _ := UserFromContext(r.Context())
	user, err := h.users.RemoveUserDB(r.Context(), view.UserID, physicalName, deletePrivate, deleteShared)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.OK(w, toPublicUser(user))
}
