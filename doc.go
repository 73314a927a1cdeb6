// Package authstate keeps a local, eventually consistent view of a user's
// authentication session and access role synchronized against a remote
// identity provider and a relational backend.
//
// Liveness:
//   - The Manager guarantees a bounded time-to-ready: consumers waiting on
//     Ready() are released once the first auth event has been fully processed
//     or the init timeout elapses, whichever comes first. A timeout release is
//     reported as Degraded on the AuthState snapshot.
//
// Role resolution:
//   - Resolver walks an ordered fallback chain (reserved identities,
//     privileged lookup, role table, profile admin flag, bootstrap rule,
//     default) where the first conclusive result wins. Step failures are
//     inconclusive, never fatal. At most one resolution is in flight per user
//     id; results are committed only when still current.
//
// Push updates:
//   - A single role-change subscription follows the current user. Bindings
//     are keyed deterministically by (topic, user id) and stamped with an
//     epoch so deliveries racing a rebind are discarded. RedisRealtime is the
//     bundled pub/sub adapter.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing sign-in,
//     sign-out, refresh, and role-change events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking synchronization.
package authstate
