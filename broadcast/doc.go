// Package broadcast fans session-change events out to sibling execution contexts
// that share the same persisted session (other processes, windows, or hosts
// attached to the same store).
//
// Delivery is best-effort, at-least-once within the set of live contexts, and
// unordered relative to the publisher's own state changes. Handlers always run
// asynchronously with respect to Publish. The sole ordering defense is the
// staleness bound: subscribers discard any message older than MaxMessageAge, so a
// delayed duplicate can never resurrect state that newer local state has already
// superseded. Subscribers also discard their own messages by origin ID.
//
// # What this package must NOT do
//
//   - Import authkit (no upward imports).
//   - Interpret payloads; they are opaque JSON owned by the Manager.
package broadcast
