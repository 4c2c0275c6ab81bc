// Package domain models disaster-event records and the events the service
// fans out to live observers.
//
// # Records
//
// A [DisasterRecord] is the unit of coordination: a titled report with an
// optional free-text location name. The resolved coordinate is derived, never
// user-supplied; it is present only when a location name was given and
// geocoding enrichment succeeded. Enrichment is best-effort, so an absent
// coordinate is a valid state and never blocks persistence.
//
// The audit trail is append-only: one {action, actor, timestamp} entry per
// successful mutation, carried inside the record and written together with it.
//
// # Broadcast events
//
// A [BroadcastEvent] is emitted after (and only after) the corresponding store
// write has committed. Created and Updated events carry a full record
// snapshot; Deleted events carry the bare identifier. The registry also emits
// lifecycle events (connected, ping) that never correspond to a mutation.
//
// # Identity
//
// Every entry point takes an explicit [Identity]. Authorization is pure data:
// admins may mutate anything, everyone else only records they own. Creation
// has no prior owner to check and needs only a non-empty identity.
//
// # Error taxonomy
//
// Sentinel errors classify failures at the service boundary:
//
//	ErrUnauthorized        no identity attached to the request
//	ErrForbidden           identity is neither owner nor admin
//	ErrNotFound            target record (or geocoding match) absent
//	ErrPersistence         store write failed; mutation aborted
//	ErrAccessDenied        upstream rejected our credentials or blocked us
//	ErrRateLimited         upstream rate-limit signal (social search)
//	ErrUpstreamUnavailable remote dependency unreachable
//
// Enrichment failures are deliberately absent from the list: they degrade
// into a less-enriched result instead of surfacing to the caller.
package domain
