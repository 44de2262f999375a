package authkit

import (
	"errors"
	"time"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Refresh RefreshConfig
	Session SessionConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by authkit APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// Skew is how long before the access token's expiry the proactive renewal
	// fires.
	Skew time.Duration
	// Floor is the minimum delay before a scheduled renewal. It guards against
	// thrashing when the expiry is very near or already passed.
	Floor time.Duration
	// UnknownExpiryFallback is the delay used when the token codec cannot read
	// an expiry claim. A long fallback prevents refresh storms against
	// malformed or foreign tokens; it is a heuristic, not a correctness bound.
	UnknownExpiryFallback time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authkit APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// PersistAccessToken also writes the access token to the store on every
	// successful login/renewal. The refresh token is always persisted; the
	// access token is never required to be durable.
	PersistAccessToken bool
}

// EventsConfig defines a public type used by authkit APIs.
//
// EventsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authkit APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Refresh: RefreshConfig{
			Skew:                  5 * time.Minute,
			Floor:                 60 * time.Second,
			UnknownExpiryFallback: 23 * time.Hour,
		},
		Session: SessionConfig{
			PersistAccessToken: false,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Refresh
	if c.Refresh.Skew <= 0 {
		return errors.New("Refresh Skew must be > 0")
	}
	if c.Refresh.Floor <= 0 {
		return errors.New("Refresh Floor must be > 0")
	}
	if c.Refresh.UnknownExpiryFallback < c.Refresh.Floor {
		return errors.New("Refresh UnknownExpiryFallback must be >= Floor")
	}

	// Events
	if c.Events.Enabled {
		if c.Events.BufferSize <= 0 {
			return errors.New("Events BufferSize must be > 0 when events are enabled")
		}
	}

	return nil
}
