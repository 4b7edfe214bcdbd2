// Package auth is the credential and session authority for a multi-tenant
// backend: it verifies credentials, issues and revokes opaque session
// tokens, mints short-lived signed claims for single-purpose flows, and
// atomically provisions a tenant (organization, root access level, owner).
//
// Two token schemes coexist on purpose and never share a representation:
//   - SessionToken is a high-entropy opaque value stored verbatim and
//     matched by equality. It carries no claims.
//   - Claims is a signed, stateless capability with an audience of the form
//     "<kind>:<id>" and a purpose label in sub. Reset and confirmation
//     claims are additionally cross-checked against the latest token stored
//     on the target row, giving one-active-token-at-a-time semantics without
//     a revocation list.
//
// Persistence is reached only through RepositoryManager, a narrow interface
// over Bun repositories, so the authority logic stays storage-agnostic and
// testable against sqlite. Tenant provisioning is the single multi-row write
// and runs inside RunInTx.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login,
//     session, token, and provisioning events. Sinks run best-effort
//     (errors are logged) so you can forward to a database or queue without
//     blocking authentication.
package auth
