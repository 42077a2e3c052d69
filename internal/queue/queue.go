package queue

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/shared"
)

// Outcome describes what a cursor-moving operation did.
type Outcome string

const (
	// OutcomeAdvanced means the cursor moved to a different valid track.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeWrapped means the cursor crossed an end under loop-all.
	OutcomeWrapped Outcome = "wrapped"
	// OutcomeReplay means the current track plays again from the start.
	OutcomeReplay Outcome = "replay"
	// OutcomeStopped means the cursor hit an end under loop-none; playback stops.
	OutcomeStopped Outcome = "stopped"
	// OutcomeEmptied means the operation removed the last track.
	OutcomeEmptied Outcome = "emptied"
	// OutcomeEmpty means the queue had nothing to operate on; no-op.
	OutcomeEmpty Outcome = "empty"
)

// Moved reports whether the outcome yields a (possibly identical) playable track.
func (o Outcome) Moved() bool {
	return o == OutcomeAdvanced || o == OutcomeWrapped || o == OutcomeReplay
}

// Queue manages an ordered list of tracks with a current-position cursor.
type Queue struct {
	mu      sync.RWMutex
	tracks  []models.Track
	current int
	loop    models.LoopMode
}

// New creates an empty queue with loop mode none.
func New() *Queue {
	return &Queue{
		tracks:  make([]models.Track, 0),
		current: -1,
		loop:    models.LoopNone,
	}
}

// Load replaces the queue contents and places the cursor on startIndex.
// With shuffle, the order is randomized but the requested start track stays
// first, so the listener always hears the track they picked.
func (q *Queue) Load(tracks []models.Track, startIndex int, shuffle bool) error {
	if len(tracks) > 0 && (startIndex < 0 || startIndex >= len(tracks)) {
		return fmt.Errorf("%w: start index %d of %d", shared.ErrInvalidIndex, startIndex, len(tracks))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(tracks) == 0 {
		q.tracks = make([]models.Track, 0)
		q.current = -1
		return nil
	}

	loaded := make([]models.Track, len(tracks))
	copy(loaded, tracks)

	if shuffle {
		loaded[0], loaded[startIndex] = loaded[startIndex], loaded[0]
		rest := loaded[1:]
		rand.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
		startIndex = 0
	}

	q.tracks = loaded
	q.current = startIndex
	return nil
}

// Clear removes all tracks and empties the cursor.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = make([]models.Track, 0)
	q.current = -1
}

// Current returns the track under the cursor.
func (q *Queue) Current() (models.Track, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.current < 0 || q.current >= len(q.tracks) {
		return models.Track{}, shared.ErrNoTrack
	}
	return q.tracks[q.current], nil
}

// CurrentIndex returns the cursor position, or -1 when nothing is current.
func (q *Queue) CurrentIndex() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.current
}

// Len returns the number of tracks in the queue.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// LoopMode returns the active loop mode.
func (q *Queue) LoopMode() models.LoopMode {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.loop
}

// SetLoopMode changes how the cursor behaves at queue boundaries.
func (q *Queue) SetLoopMode(mode models.LoopMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.loop = mode
}

// Advance moves the cursor forward one logical step.
//
// Loop-one replays the current track only on an automatic end-of-track
// advance; an explicit user skip moves on regardless.
func (q *Queue) Advance(cause models.TransitionCause) (models.Track, Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return models.Track{}, OutcomeEmpty
	}

	if q.current < 0 {
		q.current = 0
		return q.tracks[q.current], OutcomeAdvanced
	}

	if q.loop == models.LoopOne && cause == models.CauseAutomatic {
		return q.tracks[q.current], OutcomeReplay
	}

	if q.current+1 < len(q.tracks) {
		q.current++
		return q.tracks[q.current], OutcomeAdvanced
	}

	if q.loop == models.LoopAll {
		q.current = 0
		return q.tracks[q.current], OutcomeWrapped
	}

	// Loop-none at the last track: cursor stays put, playback stops.
	return q.tracks[q.current], OutcomeStopped
}

// Retreat moves the cursor back one step. At the first track it wraps under
// loop-all and otherwise replays the current track from the start.
func (q *Queue) Retreat() (models.Track, Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return models.Track{}, OutcomeEmpty
	}

	if q.current < 0 {
		q.current = 0
		return q.tracks[q.current], OutcomeAdvanced
	}

	if q.current > 0 {
		q.current--
		return q.tracks[q.current], OutcomeAdvanced
	}

	if q.loop == models.LoopAll {
		q.current = len(q.tracks) - 1
		return q.tracks[q.current], OutcomeWrapped
	}

	return q.tracks[q.current], OutcomeReplay
}

// JumpTo moves the cursor to an explicit index.
func (q *Queue) JumpTo(index int) (models.Track, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return models.Track{}, shared.ErrEmptyQueue
	}
	if index < 0 || index >= len(q.tracks) {
		return models.Track{}, fmt.Errorf("%w: %d of %d", shared.ErrInvalidIndex, index, len(q.tracks))
	}

	q.current = index
	return q.tracks[q.current], nil
}

// InsertNext places a track immediately after the current one. With no
// current track it appends and takes the cursor, keeping the cursor valid
// whenever the queue is non-empty.
func (q *Queue) InsertNext(track models.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current < 0 || q.current >= len(q.tracks) {
		q.tracks = append(q.tracks, track)
		q.current = len(q.tracks) - 1
		return
	}

	at := q.current + 1
	q.tracks = append(q.tracks, models.Track{})
	copy(q.tracks[at+1:], q.tracks[at:])
	q.tracks[at] = track
}

// Append adds a track to the end of the queue. Appending into a queue with
// no current track places the cursor on the new track without starting it,
// keeping the cursor valid whenever the queue is non-empty.
func (q *Queue) Append(track models.Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = append(q.tracks, track)
	if q.current < 0 {
		q.current = len(q.tracks) - 1
	}
}

// Remove deletes the track at index.
//
// Removing below the cursor shifts the cursor down by one. Removing the
// cursor itself behaves like a natural end-of-track transition: the caller
// receives the outcome and the track now under the cursor (when any).
func (q *Queue) Remove(index int) (models.Track, Outcome, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return models.Track{}, OutcomeEmpty, shared.ErrEmptyQueue
	}
	if index < 0 || index >= len(q.tracks) {
		return models.Track{}, OutcomeEmpty, fmt.Errorf("%w: %d of %d", shared.ErrInvalidIndex, index, len(q.tracks))
	}

	removedCurrent := index == q.current
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	if len(q.tracks) == 0 {
		q.current = -1
		return models.Track{}, OutcomeEmptied, nil
	}

	if !removedCurrent {
		if index < q.current {
			q.current--
		}
		if q.current < 0 || q.current >= len(q.tracks) {
			// A restored snapshot may carry no cursor; the removal cannot
			// touch playback.
			return models.Track{}, OutcomeStopped, nil
		}
		return q.tracks[q.current], OutcomeAdvanced, nil
	}

	// The playing track is gone; advance to what now sits at its position.
	if q.current < len(q.tracks) {
		return q.tracks[q.current], OutcomeAdvanced, nil
	}
	if q.loop == models.LoopAll {
		q.current = 0
		return q.tracks[q.current], OutcomeWrapped, nil
	}
	q.current = len(q.tracks) - 1
	return q.tracks[q.current], OutcomeStopped, nil
}

// Move reorders the track at from to position to, keeping the cursor on the
// same track it pointed at before the move.
func (q *Queue) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if from < 0 || from >= len(q.tracks) {
		return fmt.Errorf("%w: from %d of %d", shared.ErrInvalidIndex, from, len(q.tracks))
	}
	if to < 0 || to >= len(q.tracks) {
		return fmt.Errorf("%w: to %d of %d", shared.ErrInvalidIndex, to, len(q.tracks))
	}
	if from == to {
		return nil
	}

	track := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks, models.Track{})
	copy(q.tracks[to+1:], q.tracks[to:])
	q.tracks[to] = track

	switch {
	case q.current == from:
		q.current = to
	case from < q.current && to >= q.current:
		q.current--
	case from > q.current && to <= q.current:
		q.current++
	}
	return nil
}

// Peek returns the track that would play after the current one, if any.
// It never moves the cursor; the crossfade scheduler uses it to preload.
func (q *Queue) Peek() (models.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.tracks) == 0 || q.current < 0 {
		return models.Track{}, false
	}
	if q.loop == models.LoopOne {
		return q.tracks[q.current], true
	}
	if q.current+1 < len(q.tracks) {
		return q.tracks[q.current+1], true
	}
	if q.loop == models.LoopAll {
		return q.tracks[0], true
	}
	return models.Track{}, false
}

// Tracks returns a copy of the queue contents.
func (q *Queue) Tracks() []models.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tracks := make([]models.Track, len(q.tracks))
	copy(tracks, q.tracks)
	return tracks
}

// Snapshot captures the queue wholesale for a state_sync broadcast.
func (q *Queue) Snapshot() models.QueueSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	tracks := make([]models.Track, len(q.tracks))
	copy(tracks, q.tracks)
	return models.QueueSnapshot{
		Tracks:       tracks,
		CurrentIndex: q.current,
		LoopMode:     q.loop,
	}
}

// Restore replaces the queue wholesale from a snapshot. Guests apply host
// broadcasts this way so shadow state can never drift via partial updates.
func (q *Queue) Restore(snap models.QueueSnapshot) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tracks = make([]models.Track, len(snap.Tracks))
	copy(q.tracks, snap.Tracks)
	if snap.CurrentIndex >= -1 && snap.CurrentIndex < len(q.tracks) {
		q.current = snap.CurrentIndex
	} else {
		q.current = -1
	}
	if snap.LoopMode != "" {
		q.loop = snap.LoopMode
	}
}
