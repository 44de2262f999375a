// Package authkit manages the client-side authentication session for the
// Vantage CMS backend: it holds the access/refresh token pair, proactively
// renews it before expiry, deduplicates concurrent renewal attempts,
// propagates session changes to sibling execution contexts sharing the same
// persisted session, and lets a request pipeline transparently retry failed
// calls after a successful renewal.
//
// The package is designed for concurrent UI-process workloads: Manager methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Manager], [Builder], [Config],
// the error taxonomy, and value types (Snapshot, Grant, Event,
// MetricsSnapshot). Renewal deduplication and the renewal timer live under
// internal/ and are never exported; pluggable edges (token codec, store,
// broadcaster, backend client, request pipeline) live in their own
// sub-packages.
//
// # What this package must NOT do
//
//   - Expose Redis clients, timer internals, or single-flight state in its
//     public API.
//   - Verify token signatures or make authorization decisions; only the
//     backend does that.
//   - Issue more than one renewal network call at any instant, no matter how
//     many callers demand one.
//
// # Failure contract
//
// Only [ErrAuthRejected] and retry exhaustion clear session state. Transient
// failures are surfaced to the caller untouched so the UI can offer a retry
// without destroying the session. Login failures never mutate session state,
// and logout always succeeds from the caller's perspective.
package authkit
