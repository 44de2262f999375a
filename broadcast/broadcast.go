package broadcast

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultMaxMessageAge bounds the window in which a slow or duplicated message
// can still be applied by a subscriber.
const DefaultMaxMessageAge = 5 * time.Second

// Kind defines a public type used by authkit APIs.
//
// Kind instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Kind string

const (
	// KindLogin is an exported constant or variable used by the session manager.
	KindLogin Kind = "login"
	// KindRenewed is an exported constant or variable used by the session manager.
	KindRenewed Kind = "renewed"
	// KindLoggedOut is an exported constant or variable used by the session manager.
	KindLoggedOut Kind = "logged_out"
)

// Message defines a public type used by authkit APIs.
//
// Message instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Message struct {
	Kind     Kind            `json:"kind"`
	Origin   string          `json:"origin"`
	IssuedAt time.Time       `json:"issued_at"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Handler consumes one delivered message. Handlers run on the broadcaster's
// delivery goroutine and must not block for long.
type Handler func(Message)

// Broadcaster defines a public type used by authkit APIs.
//
// Broadcaster instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Broadcaster interface {
	// Publish sends a message to every sibling context. After Close it is a
	// no-op returning nil.
	Publish(ctx context.Context, kind Kind, payload json.RawMessage) error
	// Subscribe registers a handler for messages from sibling contexts. A
	// subscriber never receives its own messages nor messages older than the
	// staleness bound.
	Subscribe(handler Handler)
	// Close releases the channel. Idempotent; no messages are delivered after
	// Close returns.
	Close() error
}
