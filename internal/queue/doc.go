// Package queue implements the ordered track list behind the transport engine.
//
// A [Queue] owns no I/O: every operation is a synchronous, mutex-guarded
// mutation of an in-memory slice plus a cursor. The transport engine drives
// transitions by calling [Queue.Advance] and friends and is responsible for
// emitting exactly one track-changed event per returned transition.
//
// Cursor rules: the cursor is either a valid index or -1 ("empty" / nothing
// current). Removing an index below the cursor shifts the cursor down;
// removing the cursor itself behaves like a natural end-of-track advance.
package queue
