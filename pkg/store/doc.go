// Package store provides BoltDB-backed persistence for coordinator state:
// jobs, the worker roster, the mTLS certificate authority, and the raw
// checkpoint blobs the Raft FSM snapshots and restores.
//
// One bucket per entity, JSON marshaling, db.Update/db.View transactions.
// See DESIGN.md for which entities were dropped (services/containers/
// volumes/networks/ingresses/TLS certs have no counterpart in this
// domain) and which were added (checkpoints).
package store
