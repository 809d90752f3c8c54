package login

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes exposed to API clients.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeIdentityDisabled  = "IDENTITY_DISABLED"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenSignature    = "TOKEN_SIGNATURE_MISMATCH"
	TextCodeInvalidInput      = "INVALID_INPUT"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned on any credentials failure.
// Unknown usernames and wrong passwords produce this same value so the API
// never reveals which half of the check failed.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateIdentity is returned when registering a username that exists
var ErrDuplicateIdentity = goerrors.New("username already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrIdentityDisabled is returned when a valid token resolves to a
// deactivated record
var ErrIdentityDisabled = goerrors.New("inactive user", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityDisabled).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired marks tokens past their embedded expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks tokens we cannot parse
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSignature marks tokens whose signature does not match the payload
var ErrTokenSignature = goerrors.New("token signature mismatch", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty required values
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsSignatureError will check for signature mismatches
func IsSignatureError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenSignature) {
		return true
	}
	return strings.Contains(err.Error(), "signature is invalid")
}

// isUniqueViolation detects driver-level unique constraint failures so the
// repositories can map them to ErrDuplicateIdentity.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// isNotFoundError matches both our sentinel and repository-level not-found
// errors.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrIdentityNotFound) || goerrors.IsNotFound(err)
}
