package authkit

import "context"

// User defines a public type used by authkit APIs.
//
// User instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Grant defines a public type used by authkit APIs.
//
// Grant instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// A Grant is one successful issuance from the credential backend: the identity,
// a fresh token pair, and the flat permission set resolved for the user.
type Grant struct {
	User         User
	AccessToken  string
	RefreshToken string
	Permissions  []string
}

// Backend defines a public type used by authkit APIs.
//
// Backend instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// Implementations classify failures through the error taxonomy in errors.go:
// Renew must return an error matching [ErrAuthRejected] when the backend
// declares the refresh token invalid, and wrap everything else so that
// [IsTransient] holds.
type Backend interface {
	Login(ctx context.Context, email, password string) (*Grant, error)
	Renew(ctx context.Context, refreshToken string) (*Grant, error)
	Logout(ctx context.Context, accessToken string) error
}

// Status defines a public type used by authkit APIs.
//
// Status instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Status uint8

const (
	// StatusBootstrapping is an exported constant or variable used by the session manager.
	StatusBootstrapping Status = iota
	// StatusUnauthenticated is an exported constant or variable used by the session manager.
	StatusUnauthenticated
	// StatusAuthenticated is an exported constant or variable used by the session manager.
	StatusAuthenticated
	// StatusRenewing is an exported constant or variable used by the session manager.
	StatusRenewing
)

// String describes the string operation and its observable behavior.
//
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Status) String() string {
	switch s {
	case StatusBootstrapping:
		return "bootstrapping"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// Snapshot defines a public type used by authkit APIs.
//
// Snapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// A Snapshot is a point-in-time read of the session for UI consumption; it
// never aliases Manager-internal state.
type Snapshot struct {
	User          *User
	Status        Status
	Ready         bool
	Authenticated bool
	Permissions   []string
}
