package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Codec defines a public type used by authkit APIs.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec interface {
	// ExpiryOf reports the expiration instant of the given access token.
	// The second return value is false when the token carries no readable
	// expiry claim; callers must treat that as "unknown expiry" and use a
	// conservative fallback delay.
	ExpiryOf(token string) (time.Time, bool)
}

// JWTCodec defines a public type used by authkit APIs.
//
// JWTCodec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTCodec struct{}

// NewJWTCodec describes the newjwtcodec operation and its observable behavior.
//
// NewJWTCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewJWTCodec() JWTCodec {
	return JWTCodec{}
}

// ExpiryOf describes the expiryof operation and its observable behavior.
//
// ExpiryOf does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (JWTCodec) ExpiryOf(tokenStr string) (time.Time, bool) {
	if tokenStr == "" {
		return time.Time{}, false
	}

	// Unverified parse on purpose: the claim set is read for scheduling only,
	// never for authorization.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.IsZero() {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// FixedCodec reports the same expiry instant for every token. It exists for
// deployments whose access tokens are opaque strings with an out-of-band TTL.
type FixedCodec struct {
	// TTL is the assumed remaining lifetime of any token handed to ExpiryOf.
	TTL time.Duration
}

// ExpiryOf describes the expiryof operation and its observable behavior.
//
// ExpiryOf does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c FixedCodec) ExpiryOf(tokenStr string) (time.Time, bool) {
	if tokenStr == "" || c.TTL <= 0 {
		return time.Time{}, false
	}
	return time.Now().Add(c.TTL), true
}
