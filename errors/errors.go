package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication = fmt.Errorf("authentication failed")
	ErrAccessDenied   = fmt.Errorf("access denied")
	ErrNotInRoom      = fmt.Errorf("sender is not subscribed to the room")
	ErrPersistence    = fmt.Errorf("persistence failure")
	ErrNotFound       = fmt.Errorf("not found")
	ErrValidation     = fmt.Errorf("validation failed")
	ErrWorkerPanic    = fmt.Errorf("worker panic")

	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
)

// Reason maps a domain error to the reason string carried by the
// wire-level `error` event.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "AuthenticationError"
	case errors.Is(err, ErrAccessDenied):
		return "AccessDenied"
	case errors.Is(err, ErrNotInRoom):
		return "NotInRoom"
	case errors.Is(err, ErrPersistence):
		return "PersistenceFailure"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "InternalError"
	}
}
