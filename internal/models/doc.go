// Package models defines domain entities and persistence interfaces for the attune playback core.
//
// The package contains two categories of types:
//
// 1. Domain values exchanged between the transport, session, and relay layers:
//   - [Track] : Immutable song metadata; identity and equality are by ID only
//   - [QueueSnapshot] : Wholesale copy of the track queue for state_sync broadcasts
//   - [PlaybackState] : Position, play flag, and crossfade phase owned by the engine
//   - [Participant], [JoinRequest], [Suggestion] : Room membership values mirrored from the relay
//
// 2. Persistent entities backed by the local SQLite store:
//   - [Profile] : The device user's name, pre-filled on relaunch
//   - [Preferences] : Crossfade, equalizer, and sleep timer settings
//   - [HistoryEntry] : One row per track transition, with its cause
//
// All persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
