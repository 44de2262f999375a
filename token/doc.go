// Package token extracts expiry claims from opaque access tokens so the refresh
// scheduler can decide when to renew.
//
// The session core never verifies token signatures — verification is the backend's
// job. A [Codec] only answers one question: when does this token expire? Malformed
// or foreign tokens yield "unknown", never an error, so callers fall back to a
// conservative renewal delay instead of failing.
package token
