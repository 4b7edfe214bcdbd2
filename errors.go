package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrIdentityNotFound is the error we return when no account matches
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND")

// ErrInvalidPassword is returned when the password does not match the stored hash
var ErrInvalidPassword = goerrors.New("invalid password", goerrors.CategoryAuth).
	WithTextCode("INVALID_PASSWORD")

// ErrNoEmptyString guards against hashing empty passwords
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode("EMPTY_PASSWORD")

// ErrTokenExpired is returned for signed claims past their exp instant
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED")

// ErrTokenMalformed is returned for claims we cannot decode, including
// audiences that do not match the "<kind>:<id>" shape
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED")

// ErrTokenSignatureInvalid is returned when the signature does not verify
// against our signing key
var ErrTokenSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode("TOKEN_SIGNATURE_INVALID")

// ErrStaleToken is returned for claims that validate but were superseded by a
// more recently issued token for the same purpose and target
var ErrStaleToken = goerrors.New("token was superseded by a newer one", goerrors.CategoryAuth).
	WithTextCode("TOKEN_STALE")

// ErrSessionTokenInvalid is returned for opaque session tokens with the wrong
// shape. It is deliberately distinct from the signed claims errors above:
// the two token schemes never share a failure mode.
var ErrSessionTokenInvalid = goerrors.New("session token is invalid", goerrors.CategoryAuth).
	WithTextCode("SESSION_TOKEN_INVALID")

// ErrProvisioningConflict is returned when tenant provisioning hits a unique
// constraint on email, username, or billing email
var ErrProvisioningConflict = goerrors.New("email or username already in use", goerrors.CategoryConflict).
	WithTextCode("PROVISIONING_CONFLICT")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for undecodable tokens
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed")
}

// IsConflictError will check for provisioning conflicts
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrProvisioningConflict)
}

// isUniqueViolation detects unique constraint errors across the drivers we
// run against. Neither database/sql nor bun normalize these.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
