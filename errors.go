package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrUserNotFound is returned when no user matches the given credentials or identifier.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode("USER_NOT_FOUND")

// ErrMismatchedHashAndPassword is the error for a failed hash comparison
var ErrMismatchedHashAndPassword = goerrors.New("credentials do not match", goerrors.CategoryAuth).
	WithTextCode("CREDENTIALS_MISMATCH")

// ErrNoEmptyString rejects empty values where a secret is required
var ErrNoEmptyString = goerrors.New("value cannot be an empty string", goerrors.CategoryBadInput)

// ErrUserNotActivated is returned when credentials match but the account was never activated.
var ErrUserNotActivated = goerrors.New("user is not activated", goerrors.CategoryAuth).
	WithTextCode("USER_NOT_ACTIVATED")

// ErrLoginSuspended is returned while a throttle record is inside its lockout window.
var ErrLoginSuspended = goerrors.New("login temporarily suspended", goerrors.CategoryRateLimit).
	WithTextCode("LOGIN_SUSPENDED")

// ErrLoginBanned is returned for throttle records flagged as banned.
var ErrLoginBanned = goerrors.New("login banned", goerrors.CategoryAuth).
	WithTextCode("LOGIN_BANNED")

// ErrInvalidPersistCode is returned when a session token does not match the stored persist code.
var ErrInvalidPersistCode = goerrors.New("invalid persist code", goerrors.CategoryAuth).
	WithTextCode("INVALID_PERSIST_CODE")

// ErrInvalidRestoreCode is returned for malformed, consumed, or expired password restore codes.
var ErrInvalidRestoreCode = goerrors.New("invalid or expired restore code", goerrors.CategoryValidation).
	WithTextCode("INVALID_RESTORE_CODE")

// ErrInvalidActivationCode is returned when no user matches the submitted activation code.
var ErrInvalidActivationCode = goerrors.New("invalid activation code", goerrors.CategoryValidation).
	WithTextCode("INVALID_ACTIVATION_CODE")

// ErrSignupDisabled is returned when the registration feature gate is off.
var ErrSignupDisabled = goerrors.New("user registration is disabled", goerrors.CategoryAuthz).
	WithTextCode("SIGNUP_DISABLED")

// ErrPasswordResetDisabled is returned when the password reset feature gate is off.
var ErrPasswordResetDisabled = goerrors.New("password reset is disabled", goerrors.CategoryAuthz).
	WithTextCode("PASSWORD_RESET_DISABLED")

// TextCodeRestoreExpired tags reset codes that aged past their window.
const TextCodeRestoreExpired = "RESTORE_CODE_EXPIRED"

// IsNotFound reports whether err represents a missing record, either from the
// repository layer or from this package's sentinels.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.IsNotFound(err) || goerrors.Is(err, ErrUserNotFound)
}

// IsDuplicateEmail reports whether err is the unique-constraint conflict raised
// when two registrations race on the same email. The store enforces
// uniqueness; this only classifies the loser's error.
func IsDuplicateEmail(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryConflict {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed: users.email") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
