// Package engine defines the primitive surface consumed from the embedded
// JavaScript engine and provides the wazero-backed implementation of it.
//
// The Backend interface is the complete collaborator contract: per-kind
// root-list heads, post-write barriers, compartment enter/leave, slow-path
// value coercions, context lifecycle, and scoped allocation of auxiliary
// collections. Everything above this package (rooting, convert, runtime)
// is written against Backend, so tests run against the pure-Go fake in
// package enginetest while production embeds an engine wasm build through
// WazeroBackend.
//
// Context wraps a backend context reference with the host-side bookkeeping
// this layer needs: cached root-list head addresses and compartment depth.
// A Context belongs to exactly one OS thread and is destroyed exactly once.
package engine
