package authkit

import "errors"

var (
	// ErrNoRefreshToken is an exported constant or variable used by the session manager.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrAuthRejected is an exported constant or variable used by the session manager.
	ErrAuthRejected = errors.New("refresh token rejected by backend")
	// ErrTransient is an exported constant or variable used by the session manager.
	ErrTransient = errors.New("transient backend failure")
	// ErrRequestTimeout is an exported constant or variable used by the session manager.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrInvalidCredentials is an exported constant or variable used by the session manager.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionExpired is an exported constant or variable used by the session manager.
	ErrSessionExpired = errors.New("session expired")
	// ErrManagerClosed is an exported constant or variable used by the session manager.
	ErrManagerClosed = errors.New("manager closed")
	// ErrBuilderUsed is an exported constant or variable used by the session manager.
	ErrBuilderUsed = errors.New("builder already used")
)

// IsAuthRejected reports whether err is terminal: the backend declared the
// refresh token invalid, expired, or revoked. Terminal failures clear session
// state; nothing else does.
func IsAuthRejected(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}

// IsTransient reports whether err is a non-terminal backend failure
// (network, timeout, 5xx). Transient failures never mutate session state, so
// the caller may retry later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRequestTimeout)
}
