// Package store holds the client-side reconciliation state: a deduplicating
// entity buffer merged from paginated REST snapshots and socket-pushed deltas,
// a tracker for locally-authored entries awaiting server confirmation, and the
// pure presentation step that derives a render-ready ordered view.
//
// Convergence model:
//   - The buffer upserts by server id, so final state is independent of
//     arrival order. Ordering is restored at presentation time, never assumed
//     in the buffer itself.
//   - All reads hand out copies. Mutations never alias a snapshot a caller
//     already holds.
package store
