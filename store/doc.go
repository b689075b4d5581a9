// Package store defines the durable credential store contract used by the
// buddyline session manager, together with three implementations: an
// in-memory map for tests and ephemeral processes, a Redis-backed store for
// headless hosts, and an OS-keyring store for desktop and mobile shells.
//
// The contract is deliberately narrow: opaque string blobs keyed by name, with
// idempotent, individually atomic operations and no multi-key transactions.
// Callers own key layout and serialization.
package store
