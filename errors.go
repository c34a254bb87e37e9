package account

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	TextCodeAccountDisabled    = "ACCOUNT_DISABLED"
	TextCodeNetworkFailure     = "NETWORK_FAILURE"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeNoCurrentPrincipal = "NO_CURRENT_PRINCIPAL"
	TextCodeEmailExists        = "EMAIL_EXISTS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
)

// Coded failures reported by the identity backend. The backend's own codes
// are normalized into this set by translateProviderError; anything outside
// it propagates unchanged.
const (
	ProviderCodeInvalidCredential = "auth/invalid-credential"
	ProviderCodeUserNotFound      = "auth/user-not-found"
	ProviderCodeWrongPassword     = "auth/wrong-password"
	ProviderCodeTooManyRequests   = "auth/too-many-requests"
	ProviderCodeUserDisabled      = "auth/user-disabled"
	ProviderCodeNetworkFailed     = "auth/network-request-failed"
	ProviderCodeEmailInUse        = "auth/email-already-in-use"
)

// ErrInvalidCredentials is returned for a bad password or unknown account.
// Never retried automatically.
var ErrInvalidCredentials = errors.New("invalid email or password, please try again", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyRequests is returned when the backend throttles the caller.
var ErrTooManyRequests = errors.New("too many failed attempts, please try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests)

// ErrAccountDisabled is returned for administratively disabled accounts.
var ErrAccountDisabled = errors.New("this account has been disabled, please contact support", errors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrNetworkFailure is returned when the identity backend is unreachable.
var ErrNetworkFailure = errors.New("network error, please check your connection", errors.CategoryOperation).
	WithTextCode(TextCodeNetworkFailure)

// ErrEmailNotVerified is returned when a sign-in succeeds but the account
// email has not been verified. The session is torn down before this is
// returned; an unverified principal never holds an authenticated session
// past the login step.
var ErrEmailNotVerified = errors.New("please verify your email before logging in", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrNoCurrentPrincipal is returned when an operation requires an active
// session and none exists.
var ErrNoCurrentPrincipal = errors.New("no principal is currently signed in", errors.CategoryAuth).
	WithTextCode(TextCodeNoCurrentPrincipal).
	WithCode(errors.CodeUnauthorized)

// ErrEmailAlreadyInUse is returned on sign-up when the email is taken.
var ErrEmailAlreadyInUse = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(errors.CodeConflict)

// ErrTokenExpired is returned for session tokens past their expiry.
var ErrTokenExpired = errors.New("session token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ProviderError is a coded failure from the identity backend.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// NewProviderError builds a coded backend failure.
func NewProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// translateProviderError maps backend codes onto the client taxonomy.
// Unrecognized codes propagate unchanged so new failure modes are never
// masked behind a generic message.
func translateProviderError(err error) error {
	if err == nil {
		return nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) {
		return err
	}

	switch perr.Code {
	case ProviderCodeInvalidCredential, ProviderCodeUserNotFound, ProviderCodeWrongPassword:
		return ErrInvalidCredentials
	case ProviderCodeTooManyRequests:
		return ErrTooManyRequests
	case ProviderCodeUserDisabled:
		return ErrAccountDisabled
	case ProviderCodeNetworkFailed:
		return ErrNetworkFailure
	case ProviderCodeEmailInUse:
		return ErrEmailAlreadyInUse
	default:
		return err
	}
}

// IsUnverifiedError checks for the unverified sign-in rejection.
func IsUnverifiedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeEmailNotVerified
	}

	return strings.Contains(err.Error(), "verify your email")
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
