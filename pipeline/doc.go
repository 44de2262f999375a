// Package pipeline wraps outgoing HTTP requests with the session lifecycle:
// bearer injection, a bounded per-request timeout, and a single renew-and-retry
// on 401 responses.
//
// Architecture boundaries:
//   - pipeline consumes the session through a narrow Session interface; it
//     never reaches into manager internals.
//   - a 401 on an auth-exempt path (login, refresh, logout) is returned as a
//     credential failure and never treated as session expiry.
//   - a 401 on any other path triggers exactly one renewal attempt and one
//     retry; a second 401 ends the session.
//
// What this package must NOT do:
//   - retry transient transport failures; callers own their retry policy.
//   - buffer or replay request bodies it cannot replay; requests without
//     GetBody are retried without a body only when they had none.
package pipeline
