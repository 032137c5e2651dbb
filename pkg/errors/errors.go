package relay_errors

import "errors"

// Common errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrAlreadyExists  = errors.New("already exists")
	ErrAlreadyFriends = errors.New("users are already friends")
	ErrSelfRequest    = errors.New("cannot send a friend request to yourself")
	ErrNoIdentity     = errors.New("connection has no bound user")
	ErrQueueFull      = errors.New("queue full")
	ErrConnClosed     = errors.New("connection closed")
)

// Code maps an error to the short code sent back to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSelfRequest):
		return "INVALID_INPUT"
	case errors.Is(err, ErrAlreadyFriends), errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNoIdentity):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	default:
		return "INTERNAL_ERROR"
	}
}
