package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies request failures. Business denials (expired license,
// device quota) are not errors; they travel as a Verdict.
type Code string

const (
	// CodeAuthRequired: no recognized credential scheme on the request.
	CodeAuthRequired Code = "authentication_required"
	// CodeInvalidCredential: a credential was presented but not verifiable.
	CodeInvalidCredential Code = "invalid_credential"
	// CodeForbidden: credential found but deactivated or expired.
	CodeForbidden Code = "forbidden"
	// CodeBadRequest: malformed request for the chosen scheme.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound: referenced license does not exist.
	CodeNotFound Code = "not_found"
	// CodeUnavailable: persistence or downstream failure.
	CodeUnavailable Code = "service_unavailable"
)

// Error is the bridge's typed failure. Message is safe for clients;
// wrapped causes stay server-side.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the code to its transport status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeAuthRequired, CodeInvalidCredential:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func newErr(code Code, msg string) *Error { return &Error{Code: code, Message: msg} }

func wrapErr(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// ErrAuthRequired carries the hint naming the three accepted schemes.
var ErrAuthRequired = newErr(CodeAuthRequired,
	"authentication required: provide an API key (Authorization: Bearer ora_...), a license key (X-License-Key + X-Device-ID), or a session token (Authorization: Bearer <token>)")

var (
	ErrInvalidAPIKey     = newErr(CodeInvalidCredential, "invalid API key")
	ErrAPIKeyDisabled    = newErr(CodeForbidden, "API key has been deactivated")
	ErrAPIKeyExpired     = newErr(CodeForbidden, "API key has expired")
	ErrInvalidLicenseKey = newErr(CodeInvalidCredential, "invalid license key")
	ErrInvalidSession    = newErr(CodeInvalidCredential, "invalid session token")
	ErrMissingDeviceID   = newErr(CodeBadRequest, "X-Device-ID header is required with X-License-Key")
	ErrLicenseRequired   = newErr(CodeBadRequest, "this endpoint requires license-key authentication")
	ErrLicenseNotFound   = newErr(CodeNotFound, "license not found")
	ErrDeviceNotFound    = newErr(CodeNotFound, "device not found for this license")
	ErrPlanUnavailable   = newErr(CodeUnavailable, "license plan unavailable")
)

// AsError extracts a bridge *Error, mapping anything unexpected to a
// generic unavailable error so internals never leak to clients.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrapErr(CodeUnavailable, "service temporarily unavailable", err)
}
