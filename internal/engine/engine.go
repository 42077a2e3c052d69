package engine

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/queue"
	"github.com/attunefm/attune/internal/shared"
)

// Engine drives decode and playback of the current queue entry and exposes
// the transport command surface consumed by the UI layer.
type Engine struct {
	mu     sync.Mutex
	logger *log.Logger
	source Source
	q      *queue.Queue
	bus    *Bus

	state    models.PlaybackState
	duration time.Duration
	active   Buffer

	fade fadeState

	sleepDeadline time.Time

	tick        time.Duration
	clockCtx    context.Context
	clockCancel context.CancelFunc
}

// New creates a transport engine around the given audio source.
func New(cfg shared.PlayerConfig, source Source, logger *log.Logger) *Engine {
	tick := time.Duration(cfg.TickMillis) * time.Millisecond
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}

	e := &Engine{
		logger: logger,
		source: source,
		q:      queue.New(),
		bus:    NewBus(),
		tick:   tick,
	}
	e.fade.enabled = cfg.CrossfadeEnabled
	e.fade.window = time.Duration(cfg.CrossfadeWindow) * time.Second
	e.fade.ramp = time.Duration(cfg.CrossfadeRamp) * time.Second
	e.state.CrossfadePhase = models.PhaseIdle
	return e
}

// Bus returns the engine's event bus for subscribers.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// Start launches the playback clock. The clock owns position progress,
// natural end-of-track detection, and the crossfade ramp.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.clockCancel != nil {
		e.mu.Unlock()
		return
	}
	clockCtx, cancel := context.WithCancel(ctx)
	e.clockCtx = clockCtx
	e.clockCancel = cancel
	e.mu.Unlock()

	go e.run(clockCtx)
}

// Close stops the clock and releases the active buffers.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.clockCancel != nil {
		e.clockCancel()
		e.clockCancel = nil
	}
	var events []Event
	e.resetFadeLocked(&events)
	if e.active != nil {
		e.active.Close()
		e.active = nil
	}
	e.mu.Unlock()

	e.bus.Close()
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("playback clock stopped")
			return
		case <-ticker.C:
			e.step(e.tick)
		}
	}
}

// step advances the playback clock by dt. The crossfade ramp runs as a phase
// of this same tick so gain and progress can never drift apart.
func (e *Engine) step(dt time.Duration) {
	var events []Event

	e.mu.Lock()
	if e.state.IsPlaying && e.active != nil {
		e.state.Position += dt

		if !e.sleepDeadline.IsZero() && !time.Now().Before(e.sleepDeadline) {
			e.sleepDeadline = time.Time{}
			e.state.IsPlaying = false
			e.resetFadeLocked(&events)
			events = append(events, Event{Type: EventStateChanged, State: e.state})
			e.logger.Info("sleep timer elapsed, pausing playback")
			e.mu.Unlock()
			e.publish(events)
			return
		}

		e.stepFadeLocked(dt, &events)

		if e.fade.phase != models.PhaseFading && e.duration > 0 && e.state.Position >= e.duration {
			e.advanceLocked(models.CauseAutomatic, &events)
		}
	}
	e.mu.Unlock()

	e.publish(events)
}

// Load replaces the queue and starts playback from startIndex.
func (e *Engine) Load(tracks []models.Track, startIndex int, shuffle bool) error {
	e.mu.Lock()
	var events []Event
	e.resetFadeLocked(&events)

	if err := e.q.Load(tracks, startIndex, shuffle); err != nil {
		e.mu.Unlock()
		e.publish(events)
		return err
	}

	if len(tracks) == 0 {
		e.haltEmptyLocked(&events)
		e.mu.Unlock()
		e.publish(events)
		return nil
	}

	track, err := e.q.Current()
	if err != nil {
		e.mu.Unlock()
		e.publish(events)
		return err
	}

	e.startTrackLocked(track, models.CauseManual, &events)
	e.mu.Unlock()
	e.publish(events)
	return nil
}

// PlayNext skips forward. The skip is an explicit user action, so loop-one
// does not replay in place.
func (e *Engine) PlayNext() (queue.Outcome, error) {
	e.mu.Lock()
	var events []Event
	e.resetFadeLocked(&events)
	outcome := e.advanceLocked(models.CauseManual, &events)
	e.mu.Unlock()
	e.publish(events)

	if outcome == queue.OutcomeEmpty {
		return outcome, shared.ErrEmptyQueue
	}
	return outcome, nil
}

// PlayPrevious skips backward, restarting the current track at the first
// queue position unless loop-all wraps.
func (e *Engine) PlayPrevious() (queue.Outcome, error) {
	e.mu.Lock()
	var events []Event
	e.resetFadeLocked(&events)

	track, outcome := e.q.Retreat()
	if outcome.Moved() {
		e.startTrackLocked(track, models.CauseManual, &events)
	}
	e.mu.Unlock()
	e.publish(events)

	if outcome == queue.OutcomeEmpty {
		return outcome, shared.ErrEmptyQueue
	}
	return outcome, nil
}

// PlayFrom jumps to an explicit queue index and plays it.
func (e *Engine) PlayFrom(index int) error {
	e.mu.Lock()
	var events []Event
	e.resetFadeLocked(&events)

	track, err := e.q.JumpTo(index)
	if err != nil {
		e.mu.Unlock()
		e.publish(events)
		return err
	}

	e.startTrackLocked(track, models.CauseManual, &events)
	e.mu.Unlock()
	e.publish(events)
	return nil
}

// InsertNext places a track immediately after the current one.
func (e *Engine) InsertNext(track models.Track) {
	e.mu.Lock()
	e.q.InsertNext(track)
	events := []Event{{Type: EventQueueChanged, State: e.state}}
	e.mu.Unlock()
	e.publish(events)
}

// Append adds a track to the end of the queue.
func (e *Engine) Append(track models.Track) {
	e.mu.Lock()
	e.q.Append(track)
	events := []Event{{Type: EventQueueChanged, State: e.state}}
	e.mu.Unlock()
	e.publish(events)
}

// Move reorders the queue.
func (e *Engine) Move(from, to int) error {
	e.mu.Lock()
	err := e.q.Move(from, to)
	var events []Event
	if err == nil {
		events = append(events, Event{Type: EventQueueChanged, State: e.state})
	}
	e.mu.Unlock()
	e.publish(events)
	return err
}

// Remove deletes a queue entry. Removing the playing entry triggers the same
// transition logic as a natural end-of-track.
func (e *Engine) Remove(index int) error {
	e.mu.Lock()
	var events []Event

	wasCurrent := index == e.q.CurrentIndex()
	track, outcome, err := e.q.Remove(index)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	if !wasCurrent {
		events = append(events, Event{Type: EventQueueChanged, State: e.state})
		e.mu.Unlock()
		e.publish(events)
		return nil
	}

	e.resetFadeLocked(&events)
	switch {
	case outcome.Moved():
		e.startTrackLocked(track, models.CauseAutomatic, &events)
	case outcome == queue.OutcomeEmptied:
		e.haltEmptyLocked(&events)
	case outcome == queue.OutcomeStopped:
		// Cursor fell back to the prior last-valid index; playback stops.
		if e.active != nil {
			e.active.Close()
			e.active = nil
		}
		e.state.TrackID = track.ID
		e.state.Position = 0
		e.state.IsPlaying = false
		e.duration = 0
		events = append(events, Event{Type: EventStateChanged, State: e.state})
	}
	events = append(events, Event{Type: EventQueueChanged, State: e.state})
	e.mu.Unlock()
	e.publish(events)
	return nil
}

// Seek moves the playback position within the current track. A seek during
// a crossfade aborts it; only the seeked-to track stays audible.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		return shared.ErrEmptyQueue
	}

	var events []Event
	e.resetFadeLocked(&events)

	if pos < 0 {
		pos = 0
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	e.state.Position = pos
	events = append(events, Event{Type: EventStateChanged, State: e.state})
	e.mu.Unlock()
	e.publish(events)
	return nil
}

// TogglePlayPause flips between playing and paused. Pausing aborts any
// pending crossfade.
func (e *Engine) TogglePlayPause() (bool, error) {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		return false, shared.ErrEmptyQueue
	}

	var events []Event
	if e.state.IsPlaying {
		e.resetFadeLocked(&events)
	}
	e.state.IsPlaying = !e.state.IsPlaying
	playing := e.state.IsPlaying
	events = append(events, Event{Type: EventStateChanged, State: e.state})
	e.mu.Unlock()
	e.publish(events)
	return playing, nil
}

// SetLoopMode changes the loop mode.
func (e *Engine) SetLoopMode(mode models.LoopMode) {
	e.mu.Lock()
	e.q.SetLoopMode(mode)
	events := []Event{{Type: EventQueueChanged, State: e.state}}
	e.mu.Unlock()
	e.publish(events)
}

// ToggleLoopMode cycles none -> all -> one -> none.
func (e *Engine) ToggleLoopMode() models.LoopMode {
	e.mu.Lock()
	mode := models.NextLoopMode(e.q.LoopMode())
	e.q.SetLoopMode(mode)
	events := []Event{{Type: EventQueueChanged, State: e.state}}
	e.mu.Unlock()
	e.publish(events)
	return mode
}

// SetSleepTimer pauses playback after d. A zero duration clears the timer.
func (e *Engine) SetSleepTimer(d time.Duration) {
	e.mu.Lock()
	if d <= 0 {
		e.sleepDeadline = time.Time{}
	} else {
		e.sleepDeadline = time.Now().Add(d)
	}
	e.mu.Unlock()
}

// ApplyPreferences applies the persisted playback preferences.
func (e *Engine) ApplyPreferences(prefs *models.Preferences) {
	e.SetCrossfade(prefs.CrossfadeEnabled(),
		time.Duration(prefs.CrossfadeWindow())*time.Second,
		time.Duration(prefs.CrossfadeRamp())*time.Second)
	if m := prefs.SleepTimerMinutes(); m > 0 {
		e.SetSleepTimer(time.Duration(m) * time.Minute)
	}
}

// State returns a copy of the playback state.
func (e *Engine) State() models.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot captures the queue and playback state for a state_sync broadcast.
func (e *Engine) Snapshot() (models.QueueSnapshot, models.PlaybackState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.Snapshot(), e.state
}

// Tracks returns a copy of the queue contents.
func (e *Engine) Tracks() []models.Track {
	return e.q.Tracks()
}

// CurrentIndex returns the queue cursor.
func (e *Engine) CurrentIndex() int {
	return e.q.CurrentIndex()
}

// advanceLocked moves the queue cursor forward and starts whatever it lands
// on, halting at the end of the queue under loop-none.
func (e *Engine) advanceLocked(cause models.TransitionCause, events *[]Event) queue.Outcome {
	e.resetFadeLocked(events)
	track, outcome := e.q.Advance(cause)
	switch {
	case outcome.Moved():
		e.startTrackLocked(track, cause, events)
	case outcome == queue.OutcomeStopped:
		e.state.IsPlaying = false
		e.state.Position = 0
		*events = append(*events, Event{Type: EventStateChanged, State: e.state})
	case outcome == queue.OutcomeEmpty:
		e.haltEmptyLocked(events)
	}
	return outcome
}

// startTrackLocked opens and starts a track, skipping past entries that fail
// to decode. Emits exactly one track-changed event for the track that
// actually starts.
func (e *Engine) startTrackLocked(track models.Track, cause models.TransitionCause, events *[]Event) {
	if e.active != nil {
		e.active.Close()
		e.active = nil
	}

	ctx := e.clockCtx
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := e.q.Len()
	for i := 0; i < attempts; i++ {
		buf, err := e.source.Open(ctx, track)
		if err != nil {
			e.logger.Warn("track decode failed, skipping", "track", track.ID, "err", err)
			// Skip with a manual-style advance so loop-one cannot replay
			// the failing track forever.
			next, outcome := e.q.Advance(models.CauseManual)
			if !outcome.Moved() {
				e.haltEmptyLocked(events)
				return
			}
			track = next
			continue
		}

		buf.SetGain(1)
		e.active = buf
		e.duration = buf.Duration()
		if e.duration == 0 {
			e.duration = track.Duration
		}
		e.state.TrackID = track.ID
		e.state.Position = 0
		e.state.IsPlaying = true
		*events = append(*events, Event{Type: EventTrackChanged, Track: track, Cause: cause, State: e.state})
		return
	}

	e.logger.Error("no playable track in queue")
	e.haltEmptyLocked(events)
}

// haltEmptyLocked clears the audible state when nothing is playable.
func (e *Engine) haltEmptyLocked(events *[]Event) {
	if e.active != nil {
		e.active.Close()
		e.active = nil
	}
	e.state = models.PlaybackState{CrossfadePhase: models.PhaseIdle}
	e.duration = 0
	*events = append(*events, Event{Type: EventStateChanged, State: e.state})
}

func (e *Engine) publish(events []Event) {
	for _, evt := range events {
		e.bus.Publish(evt)
	}
}
