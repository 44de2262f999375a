// Package store provides durable key/value persistence for the session's token
// pair. The refresh token is the durable anchor of a session: it is written on
// every successful login or renewal and erased on logout or terminal failure.
// Access-token persistence is an optional mode.
//
// # Architecture boundaries
//
// This package owns persistence only. It performs no validation, no token
// interpretation, and no session policy — all mutation is driven by the Manager.
//
// # What this package must NOT do
//
//   - Import authkit, token, or broadcast (no upward imports).
//   - Decide when tokens are written or cleared.
package store
