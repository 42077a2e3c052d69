// Package engine implements the playback transport and crossfade scheduling.
//
// One goroutine owns the playback clock: it advances the position on a fixed
// tick, detects natural end-of-track, and runs the crossfade gain ramp as a
// phase of the same tick so the ramp can never stutter against progress.
// User commands mutate the queue and state synchronously under the engine
// mutex and cancel any in-flight crossfade first; a crossfade never survives
// a manual transition.
//
// Audio decoding is behind the [Source] interface. Decode failures are
// recoverable: the engine logs them and advances to the next queue entry
// instead of halting playback.
//
// Every logical transition emits exactly one track-changed event on the
// engine's [Bus], carrying the new track and an automatic/manual cause.
// History logging, the crossfade scheduler, and the session broadcast all
// depend on that exactly-once contract.
package engine
