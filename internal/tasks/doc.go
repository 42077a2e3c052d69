// Package tasks runs background work around the transport engine.
//
// # History Recording
//
// [Recorder] subscribes to the engine event bus and appends one listening
// history row per track transition, preserving whether the transition was
// automatic (natural end of track, crossfade commit) or manual (skip, jump).
// Recording is best-effort: a failed insert is logged and playback is never
// blocked.
//
// # Retention
//
// [Janitor] prunes history rows past the retention window on a slow
// periodic tick so the local database stays bounded.
package tasks
