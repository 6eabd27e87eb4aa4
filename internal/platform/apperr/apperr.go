// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for Yomira.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Localization: Support for translated error messages (if needed in the future).
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the Yomira API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "CONFLICT").
	Code string `json:"code"`
	// Key is the wire-stable error key from the auth error taxonomy
	// (e.g. "failed_login", "missing_invite_code"). Empty for errors that
	// predate the taxonomy and only carry Code.
	Key string `json:"key,omitempty"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
	// ValidationErrors holds field -> messages, for the auth validator's
	// {field: [messages]} rejection shape.
	ValidationErrors map[string][]string `json:"validationErrors,omitempty"`
	// Locked marks an auth rejection caused by an active lockout.
	Locked bool `json:"locked,omitempty"`
}

// ErrorShape is the wire-level rendering of an [AppError], matching the
// {error, key, message, status, validationErrors?, locked?} shape.
type ErrorShape struct {
	Error            string               `json:"error"`
	Key              string               `json:"key"`
	Message          string               `json:"message"`
	Status           int                  `json:"status"`
	ValidationErrors map[string][]string  `json:"validationErrors,omitempty"`
	Locked           bool                 `json:"locked,omitempty"`
}

// ToErrorShape renders e as the wire-level error envelope.
func (e *AppError) ToErrorShape() ErrorShape {
	return ErrorShape{
		Error:            e.Message,
		Key:              e.Key,
		Message:          e.Message,
		Status:           e.HTTPStatus,
		ValidationErrors: e.ValidationErrors,
		Locked:           e.Locked,
	}
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Comic") // Returns "Comic not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Unprocessable creates a 422 [AppError] for semantically invalid input.
func Unprocessable(msg string) *AppError {
	return &AppError{
		Code:       "UNPROCESSABLE",
		Message:    msg,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError] for maintenance mode.
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Auth Errors

// ValidationFailed creates a 400 [AppError] carrying the validator's
// {field: [messages]} rejection map.
func ValidationFailed(fields map[string][]string) *AppError {
	return &AppError{
		Code:             "VALIDATION_ERROR",
		Key:              "validation_failed",
		Message:          "validation failed",
		HTTPStatus:       http.StatusBadRequest,
		ValidationErrors: fields,
	}
}

// FailedLogin creates a 401 [AppError] for a rejected local-strategy login.
func FailedLogin() *AppError {
	return &AppError{Code: "FAILED_LOGIN", Key: "failed_login", Message: "Invalid username or password", HTTPStatus: http.StatusUnauthorized}
}

// SoftLocked creates a 401 [AppError] for a locked account that accepts a captcha.
func SoftLocked() *AppError {
	return &AppError{Code: "SOFT_LOCKED", Key: "soft_locked", Message: "Account temporarily locked", HTTPStatus: http.StatusUnauthorized, Locked: true}
}

// MissingCaptcha creates a 401 [AppError] when soft-lock requires a captcha the caller omitted.
func MissingCaptcha() *AppError {
	return &AppError{Code: "MISSING_CAPTCHA", Key: "missing_captcha", Message: "Captcha verification required", HTTPStatus: http.StatusUnauthorized}
}

// EmailUnconfirmed creates a 401 [AppError] when login succeeds but email confirmation is required.
func EmailUnconfirmed() *AppError {
	return &AppError{Code: "EMAIL_UNCONFIRMED", Key: "email_unconfirmed", Message: "Email confirmation required", HTTPStatus: http.StatusUnauthorized}
}

// Locked creates a 401 [AppError] once the failed-login threshold has just been crossed.
func Locked() *AppError {
	return &AppError{Code: "LOCKED", Key: "locked", Message: "Account locked due to too many failed attempts", HTTPStatus: http.StatusUnauthorized, Locked: true}
}

// InUseProvider creates a 409 [AppError] when a federated identity is already linked elsewhere.
func InUseProvider(provider string) *AppError {
	return &AppError{Code: "CONFLICT", Key: "inuse_" + provider, Message: provider + " account already linked to another user", HTTPStatus: http.StatusConflict}
}

// ConflictProvider creates a 409 [AppError] when the caller already has a different identity for the provider.
func ConflictProvider(provider string) *AppError {
	return &AppError{Code: "CONFLICT", Key: "conflict_" + provider, Message: provider + " is already linked to a different identity", HTTPStatus: http.StatusConflict}
}

// InUseEmail creates a 409 [AppError] when an email is claimed by a different user.
func InUseEmail() *AppError {
	return &AppError{Code: "CONFLICT", Key: "inuse_email", Message: "Email already in use", HTTPStatus: http.StatusConflict}
}

// InUseEmailLink creates a 409 [AppError] when social sign-up's email collides with an existing account.
func InUseEmailLink() *AppError {
	return &AppError{Code: "CONFLICT", Key: "inuse_email_link", Message: "Email already in use by another account", HTTPStatus: http.StatusConflict}
}

// MissingInviteCode creates a 400 [AppError] for invite-gated registration without a valid code.
func MissingInviteCode() *AppError {
	return &AppError{Code: "MISSING_INVITE_CODE", Key: "missing_invite_code", Message: "A valid invite code is required", HTTPStatus: http.StatusBadRequest}
}

// InvalidToken creates a 400 [AppError] for a token that fails its lookup.
func InvalidToken() *AppError {
	return &AppError{Code: "INVALID_TOKEN", Key: "invalid_token", Message: "Invalid token", HTTPStatus: http.StatusBadRequest}
}

// ExpiredToken creates a 400 [AppError] for a token found but past expiry.
func ExpiredToken() *AppError {
	return &AppError{Code: "EXPIRED_TOKEN", Key: "expired_token", Message: "Token has expired", HTTPStatus: http.StatusBadRequest}
}

// InvalidTokenShape creates a 400 [AppError] for an email-verification token miss (distinct wire key from InvalidToken).
func InvalidTokenShape() *AppError {
	return &AppError{Code: "INVALID_TOKEN", Key: "invalidToken", Message: "Invalid or expired verification token", HTTPStatus: http.StatusBadRequest}
}

// MissingCurrentPassword creates a 400 [AppError]. The wire key's typo is
// preserved verbatim for compatibility with existing clients.
func MissingCurrentPassword() *AppError {
	return &AppError{Code: "MISSING_CURRENT_PASSWORD", Key: "missing_current_passowrd", Message: "Current password is required", HTTPStatus: http.StatusBadRequest}
}

// InvalidCurrentPassword creates a 400 [AppError] when the supplied current password does not verify.
func InvalidCurrentPassword() *AppError {
	return &AppError{Code: "INVALID_CURRENT_PASSWORD", Key: "invalid_current_password", Message: "Current password is incorrect", HTTPStatus: http.StatusBadRequest}
}

// OnlyLoginCredential creates a 400 [AppError] when an edit would null out the last identity field.
func OnlyLoginCredential() *AppError {
	return &AppError{Code: "ONLY_LOGIN_CREDENTIAL", Key: "only_login_credential", Message: "You cannot set your only login credential to null!", HTTPStatus: http.StatusBadRequest}
}

// PasswordNotSet creates a 400 [AppError] when changing email/phone requires a local password that does not exist.
func PasswordNotSet() *AppError {
	return &AppError{Code: "PASSWORD_NOT_SET", Key: "password_not_set", Message: "Password must be set before changing this field", HTTPStatus: http.StatusBadRequest}
}

// UnlinkOnlyProvider creates a 400 [AppError] when unlink would leave the user with zero providers.
func UnlinkOnlyProvider() *AppError {
	return &AppError{Code: "UNLINK_ONLY_PROVIDER", Key: "unlink_only_provider", Message: "Cannot unlink your only remaining provider", HTTPStatus: http.StatusBadRequest}
}

// UnlinkLocal creates a 400 [AppError]; the local provider can never be unlinked.
func UnlinkLocal() *AppError {
	return &AppError{Code: "UNLINK_LOCAL", Key: "unlink_local", Message: "The local provider cannot be unlinked", HTTPStatus: http.StatusBadRequest}
}

// MissingProviderToUnlink creates a 400 [AppError] when no provider was named.
func MissingProviderToUnlink() *AppError {
	return &AppError{Code: "MISSING_PROVIDER", Key: "missing_provider_to_unlink", Message: "No provider specified to unlink", HTTPStatus: http.StatusBadRequest}
}

// UsernameNotFound creates a 404 [AppError] for a login identifier with no matching user.
func UsernameNotFound() *AppError {
	return &AppError{Code: "NOT_FOUND", Key: "username_not_found", Message: "No user found for that login", HTTPStatus: http.StatusNotFound}
}

// ProviderNotFound creates a 404 [AppError] when unlink names a provider the user does not have.
func ProviderNotFound() *AppError {
	return &AppError{Code: "NOT_FOUND", Key: "provider_not_found", Message: "Provider not linked to this account", HTTPStatus: http.StatusNotFound}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
