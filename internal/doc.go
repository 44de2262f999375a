// Package internal contains helper utilities that are intentionally private to
// authkit.
//
// # Sub-packages
//
//   - singleflight — renewal deduplication (one in-flight call, shared outcome)
//   - schedule — the single proactive-renewal timer
//
// # What this package must NOT do
//
//   - Export types that appear in the public authkit API.
//   - Be imported by any package outside the authkit module.
package internal
