// Package primitives provides the foundational, dependency-free runtime
// value types used across every engine tier: the Event envelope (spec.md
// §3) and the Context key/value store backing datamodel="null" sessions.
//
// This package intentionally stays stdlib-only: Event and Context are pure
// data plumbing with no business logic of their own, so there is nothing
// here an external library would improve (see DESIGN.md).
package primitives
