package engine

import (
	"context"
	"time"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/queue"
)

// fadeState is the crossfade scheduler: idle -> preloading -> fading -> idle.
// It owns timing decisions only; the gain ramp is applied to the buffers the
// engine already holds.
type fadeState struct {
	enabled bool
	window  time.Duration // start preloading when this much remains
	ramp    time.Duration // both tracks audible for this long

	phase     models.CrossfadePhase
	nextTrack models.Track
	next      Buffer
	failed    bool
	elapsed   time.Duration

	// gen invalidates in-flight preloads after a cancel.
	gen int

	// finishOnDisable completes an in-flight fade after the feature is
	// switched off rather than cutting it abruptly.
	finishOnDisable bool
}

// SetCrossfade reconfigures the scheduler. Disabling during a fade lets the
// in-flight ramp complete; disabling during preload aborts immediately.
func (e *Engine) SetCrossfade(enabled bool, window, ramp time.Duration) {
	e.mu.Lock()
	var events []Event

	if window > 0 {
		e.fade.window = window
	}
	if ramp > 0 && ramp <= e.fade.window {
		e.fade.ramp = ramp
	}

	switch {
	case enabled:
		e.fade.enabled = true
		e.fade.finishOnDisable = false
	case e.fade.phase == models.PhaseFading:
		e.fade.finishOnDisable = true
	default:
		e.fade.enabled = false
		e.resetFadeLocked(&events)
	}
	e.mu.Unlock()
	e.publish(events)
}

// CrossfadePhase returns the scheduler's current phase.
func (e *Engine) CrossfadePhase() models.CrossfadePhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fade.phase
}

// stepFadeLocked runs one scheduler step on the playback clock tick.
func (e *Engine) stepFadeLocked(dt time.Duration, events *[]Event) {
	f := &e.fade
	if e.duration == 0 {
		return
	}
	remaining := e.duration - e.state.Position

	switch f.phase {
	case models.PhaseIdle:
		if !f.enabled || remaining > f.window {
			return
		}
		next, ok := e.q.Peek()
		if !ok {
			return
		}
		f.phase = models.PhasePreloading
		f.nextTrack = next
		f.failed = false
		f.elapsed = 0
		e.setPhaseLocked(models.PhasePreloading, events)
		gen := f.gen
		go e.preload(next, gen)

	case models.PhasePreloading:
		if f.failed {
			// Preload failed; fall back to a hard transition at track end.
			e.resetFadeLocked(events)
			return
		}
		if remaining <= f.ramp && f.next != nil {
			f.phase = models.PhaseFading
			f.elapsed = 0
			f.next.SetGain(0)
			e.setPhaseLocked(models.PhaseFading, events)
		}

	case models.PhaseFading:
		f.elapsed += dt
		frac := float64(f.elapsed) / float64(f.ramp)
		if frac > 1 {
			frac = 1
		}
		e.active.SetGain(1 - frac)
		f.next.SetGain(frac)
		if frac >= 1 {
			e.commitFadeLocked(events)
		}
	}
}

// preload decodes the next track's initial buffer off the clock goroutine.
func (e *Engine) preload(track models.Track, gen int) {
	ctx := e.clockCtx
	if ctx == nil {
		ctx = context.Background()
	}
	buf, err := e.source.Open(ctx, track)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fade.gen != gen || e.fade.phase != models.PhasePreloading || !e.fade.nextTrack.Same(track) {
		// Cancelled while decoding; discard.
		if buf != nil {
			buf.Close()
		}
		return
	}

	if err != nil {
		e.logger.Warn("crossfade preload failed", "track", track.ID, "err", err)
		e.fade.failed = true
		return
	}
	e.fade.next = buf
}

// commitFadeLocked finishes the ramp: the incoming buffer becomes the sole
// audible track and the queue cursor advances exactly once.
func (e *Engine) commitFadeLocked(events *[]Event) {
	f := &e.fade

	track, outcome := e.q.Advance(models.CauseAutomatic)
	if !outcome.Moved() || !track.Same(f.nextTrack) {
		// Queue no longer agrees with what was preloaded; abort cleanly.
		e.resetFadeLocked(events)
		if outcome == queue.OutcomeStopped {
			e.state.IsPlaying = false
			*events = append(*events, Event{Type: EventStateChanged, State: e.state})
		}
		return
	}

	if e.active != nil {
		e.active.Close()
	}
	e.active = f.next
	e.active.SetGain(1)

	e.duration = e.active.Duration()
	if e.duration == 0 {
		e.duration = track.Duration
	}
	e.state.TrackID = track.ID
	// The incoming track has been audible since the ramp began.
	e.state.Position = f.elapsed

	f.next = nil
	f.phase = models.PhaseIdle
	f.gen++
	if f.finishOnDisable {
		f.enabled = false
		f.finishOnDisable = false
	}
	e.setPhaseLocked(models.PhaseIdle, events)
	*events = append(*events, Event{Type: EventTrackChanged, Track: track, Cause: models.CauseAutomatic, State: e.state})
}

// resetFadeLocked aborts any preload or fade in progress, snapping gain back
// to the definitive track and discarding the preloaded buffer.
func (e *Engine) resetFadeLocked(events *[]Event) {
	f := &e.fade
	if f.phase == models.PhaseIdle {
		return
	}

	if f.next != nil {
		f.next.Close()
		f.next = nil
	}
	if e.active != nil {
		e.active.SetGain(1)
	}
	f.failed = false
	f.elapsed = 0
	f.gen++
	f.phase = models.PhaseIdle
	e.setPhaseLocked(models.PhaseIdle, events)
}

func (e *Engine) setPhaseLocked(phase models.CrossfadePhase, events *[]Event) {
	e.state.CrossfadePhase = phase
	*events = append(*events, Event{Type: EventCrossfade, Phase: phase, State: e.state})
}
