// Package relay implements the websocket rendezvous server for
// listen-together rooms.
//
// The relay is deliberately dumb: it upgrades connections, tracks room
// membership, and forwards [protocol.Message] values between the host and
// guests. It never inspects playback payloads, so hosts remain the single
// source of truth for queue and transport state.
//
// # Rooms
//
// A room is created by the first connection that sends create_room and is
// keyed by a short shareable code. Joins are mediated by the host: the relay
// parks requesters as pending until the host sends a join_decision.
//
// If the host connection drops, the room is held open for a grace window so
// the host can reconnect and reclaim its seat (a join_request carrying the
// original host user ID). When the window lapses the relay broadcasts
// end_session and tears the room down.
//
// # Flow control
//
// Each connection carries a token-bucket limiter; messages over the budget
// are answered with a rate_limited error and dropped rather than forwarded.
package relay
