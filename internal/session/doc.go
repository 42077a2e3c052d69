// Package session implements the listen-together client side: the relay
// connection and the role-aware coordinator that sits between the relay and
// the transport engine.
//
// # Client
//
// [Client] owns one websocket connection to the relay and a small state
// machine (disconnected, connecting, waiting approval, connected,
// reconnecting, error). Only one room membership can be outstanding at a
// time; a second Host or Join call fails locally without touching the
// network. Lost connections are retried with capped exponential backoff
// while preserving the room code and role, so a host can reclaim its seat
// within the relay's grace window.
//
// # Coordinator
//
// [Coordinator] arbitrates roles. A host keeps the engine authoritative and
// broadcasts wholesale state snapshots with a monotonic sequence number,
// both on transport events and on a slow periodic tick. A guest disables
// local transport commands (they fail with [shared.ErrGuestCommand]), keeps
// a shadow copy of the host's queue and playback state, and may only
// suggest tracks. Snapshots arriving out of order are dropped; after a
// reconnect the guest asks for a fresh snapshot with resync_request.
package session
