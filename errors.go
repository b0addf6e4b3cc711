package goAccounts

import (
	"errors"
	"net/http"
)

// Error is a pipeline failure with a stable machine code. Two Errors match
// under errors.Is when their codes are equal, so callers compare against the
// sentinel values below.
type Error struct {
	Code    string
	Message string
	// Status is the HTTP status a transport should use.
	Status  int
	Details map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message + " [" + e.Code + "]"
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) withDetails(details map[string]string) *Error {
	out := *e
	out.Details = details
	return &out
}

func codedError(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// ErrorCode extracts the code of the first *Error in err's chain.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

const validateLoginFunction = "Accounts.validateLoginAttempt"

var loginDetails = map[string]string{"function": validateLoginFunction}

var (
	// ErrInvalidDomain rejects an email outside Accounts_AllowedDomainsList.
	ErrInvalidDomain = codedError("error-invalid-domain", "", http.StatusBadRequest)
	// ErrLoginBlockedForIP rejects a login from a rate-limited client address.
	ErrLoginBlockedForIP = codedError("error-login-blocked-for-ip", "Login has been temporarily blocked For IP", http.StatusTooManyRequests)
	// ErrLoginBlockedForUser rejects a login for a rate-limited username.
	ErrLoginBlockedForUser = codedError("error-login-blocked-for-user", "Login has been temporarily blocked For User", http.StatusTooManyRequests)
	// ErrAppUserNotAllowed rejects interactive login by app users.
	ErrAppUserNotAllowed = codedError("error-app-user-is-not-allowed-to-login", "App user is not allowed to login", http.StatusForbidden)
	// ErrUserNotActivated rejects login by users whose active flag is not true.
	ErrUserNotActivated = codedError("error-user-is-not-activated", "User is not activated", http.StatusForbidden)
	// ErrUserHasNoRoles rejects login by users with no role list.
	ErrUserHasNoRoles = codedError("error-user-has-no-roles", "User has no roles", http.StatusForbidden)
	// ErrInvalidEmail rejects password login without a verified email when verification is required.
	ErrInvalidEmail = codedError("error-invalid-email", "Invalid email __email__", http.StatusForbidden)
	// ErrRegistrationDisabled rejects users without a password when service registration is off.
	ErrRegistrationDisabled = codedError("registration-disabled-authentication-services", "User registration is disabled for authentication services", http.StatusForbidden)
	// ErrValidationFailed is the generic creation failure raised after the domain re-check.
	ErrValidationFailed = codedError("error-validation-failed", "User validation failed", http.StatusForbidden)
	// ErrInvalidUser rejects calls without an authenticated caller.
	ErrInvalidUser = codedError("error-invalid-user", "Invalid user", http.StatusUnauthorized)
	// ErrInvalidRoom rejects unknown or inaccessible rooms.
	ErrInvalidRoom = codedError("error-invalid-room", "Invalid room", http.StatusBadRequest)
	// ErrRoomE2EKeyExists rejects a second e2e key assignment.
	ErrRoomE2EKeyExists = codedError("error-room-e2e-key-already-exists", "E2E Key ID already exists", http.StatusConflict)
)

var (
	// ErrEngineNotReady is returned when a required collaborator was not wired.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials is returned by password login for unknown users or wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by stores when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound is returned by room stores when no room matches.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomKeyConflict is returned by room stores when a conditional key write finds a key already set.
	ErrRoomKeyConflict = errors.New("room key already set")
	// ErrResumeTokenInvalid is returned for malformed or unknown resume tokens.
	ErrResumeTokenInvalid = errors.New("resume token invalid")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
)
