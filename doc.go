// Package buddyline is the client-side session and API-access layer for the
// Buddyline mobile app: it acquires, persists, and refreshes a bearer credential
// against the Buddyline REST backend, and executes authenticated HTTP calls on
// top of that credential with a uniform error taxonomy.
//
// The package is designed for concurrent UI workloads: [SessionManager] and
// [Gateway] methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// buddyline is the public surface. It exposes [Client], [Builder], [Config],
// [SessionManager], [Gateway], [UserProfile], and the classified error types.
// Durable credential persistence lives behind the narrow [store.Store] contract
// and is never reached around by callers.
//
// # What this package must NOT do
//
//   - Render anything, route anywhere, or cache domain content; it stops at
//     returning parsed JSON and classified errors.
//   - Issue more than one refresh call at a time per [SessionManager]; all
//     concurrent refresh demands share a single in-flight request.
//   - Retry an unauthorized call more than once per logical invocation.
//
// # Concurrency contract
//
// Refresh is single-flight: when a refresh is already in flight every
// additional caller suspends on its outcome, and session state reflects that
// outcome before any waiter resumes. Gateway calls trigger refresh-and-retry at
// most once on a 401 and surface every other failure unchanged.
package buddyline
