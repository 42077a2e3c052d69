package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/queue"
	"github.com/attunefm/attune/internal/shared"
)

// fakeBuffer records gain changes for assertions.
type fakeBuffer struct {
	mu       sync.Mutex
	trackID  string
	duration time.Duration
	gain     float64
	closed   bool
}

func (b *fakeBuffer) TrackID() string         { return b.trackID }
func (b *fakeBuffer) Duration() time.Duration { return b.duration }

func (b *fakeBuffer) SetGain(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gain = gain
}

func (b *fakeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBuffer) Gain() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gain
}

func (b *fakeBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// fakeSource returns fakeBuffers and can be scripted to fail specific tracks.
type fakeSource struct {
	mu      sync.Mutex
	failIDs map[string]bool
	buffers map[string]*fakeBuffer
}

func newFakeSource() *fakeSource {
	return &fakeSource{failIDs: map[string]bool{}, buffers: map[string]*fakeBuffer{}}
}

func (s *fakeSource) Open(ctx context.Context, track models.Track) (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[track.ID] {
		return nil, fmt.Errorf("decode failed for %s", track.ID)
	}
	duration := track.Duration
	if duration == 0 {
		duration = 3 * time.Minute
	}
	buf := &fakeBuffer{trackID: track.ID, duration: duration, gain: 1}
	s.buffers[track.ID] = buf
	return buf, nil
}

func (s *fakeSource) buffer(id string) *fakeBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[id]
}

func testTracks(n int, duration time.Duration) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		tracks[i] = models.Track{
			ID:       fmt.Sprintf("track-%d", i),
			Title:    fmt.Sprintf("Track %d", i),
			Artist:   "Artist",
			Duration: duration,
		}
	}
	return tracks
}

func newTestEngine(t *testing.T, crossfade bool) (*Engine, *fakeSource) {
	t.Helper()
	cfg := shared.PlayerConfig{
		TickMillis:       250,
		CrossfadeEnabled: crossfade,
		CrossfadeWindow:  10,
		CrossfadeRamp:    6,
	}
	src := newFakeSource()
	e := New(cfg, src, shared.NewLogger(io.Discard))
	return e, src
}

// drain collects all pending events of a type from a subscription channel.
func drain(ch <-chan Event, typ EventType) []Event {
	var out []Event
	for {
		select {
		case evt := <-ch:
			if evt.Type == typ {
				out = append(out, evt)
			}
		default:
			return out
		}
	}
}

// waitPreload blocks until the crossfade preload goroutine lands a buffer.
func waitPreload(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		ready := e.fade.next != nil || e.fade.failed
		e.mu.Unlock()
		if ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timeout waiting for crossfade preload")
}

func TestNaturalEnd(t *testing.T) {
	t.Run("AdvancesWithAutomaticCauseExactlyOnce", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()
		ch := e.Bus().Subscribe()

		if err := e.Load(testTracks(2, 3*time.Second), 0, false); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		drain(ch, EventTrackChanged) // the load transition

		for i := 0; i < 3; i++ {
			e.step(time.Second)
		}

		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 {
			t.Fatalf("expected exactly one track change, got %d", len(changes))
		}
		if changes[0].Track.ID != "track-1" || changes[0].Cause != models.CauseAutomatic {
			t.Errorf("unexpected transition: %s cause %s", changes[0].Track.ID, changes[0].Cause)
		}
	})

	t.Run("LoopNoneStopsAtQueueEnd", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()

		e.Load(testTracks(1, 2*time.Second), 0, false)
		for i := 0; i < 3; i++ {
			e.step(time.Second)
		}

		state := e.State()
		if state.IsPlaying {
			t.Error("expected playback stopped at queue end under loop none")
		}
		if e.CurrentIndex() != 0 {
			t.Errorf("cursor should stay on last valid index, got %d", e.CurrentIndex())
		}
	})

	t.Run("LoopOneReplaysInPlace", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()
		ch := e.Bus().Subscribe()

		e.Load(testTracks(2, 2*time.Second), 0, false)
		e.SetLoopMode(models.LoopOne)
		drain(ch, EventTrackChanged)

		for i := 0; i < 2; i++ {
			e.step(time.Second)
		}

		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 || changes[0].Track.ID != "track-0" {
			t.Fatalf("expected replay of track-0, got %v", changes)
		}
		if e.State().Position != 0 {
			t.Errorf("replay should restart at zero, got %v", e.State().Position)
		}
	})
}

func TestManualSkip(t *testing.T) {
	t.Run("LoopOneDoesNotReplayOnUserSkip", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()

		e.Load(testTracks(3, time.Minute), 0, false)
		e.SetLoopMode(models.LoopOne)

		outcome, err := e.PlayNext()
		if err != nil {
			t.Fatalf("skip failed: %v", err)
		}
		if outcome != queue.OutcomeAdvanced {
			t.Errorf("expected advance on manual skip, got %s", outcome)
		}
		if e.State().TrackID != "track-1" {
			t.Errorf("expected track-1 playing, got %s", e.State().TrackID)
		}
	})

	t.Run("EmptyQueueReturnsExplicitOutcome", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()

		outcome, err := e.PlayNext()
		if outcome != queue.OutcomeEmpty {
			t.Errorf("expected empty outcome, got %s", outcome)
		}
		if err != shared.ErrEmptyQueue {
			t.Errorf("expected ErrEmptyQueue, got %v", err)
		}
	})
}

func TestDecodeFailure(t *testing.T) {
	e, src := newTestEngine(t, false)
	defer e.Close()
	src.failIDs["track-1"] = true
	ch := e.Bus().Subscribe()

	e.Load(testTracks(3, time.Minute), 0, false)
	drain(ch, EventTrackChanged)

	if _, err := e.PlayNext(); err != nil {
		t.Fatalf("skip failed: %v", err)
	}

	if e.State().TrackID != "track-2" {
		t.Errorf("expected auto-advance past failing track, got %s", e.State().TrackID)
	}

	changes := drain(ch, EventTrackChanged)
	if len(changes) != 1 {
		t.Errorf("expected one track change for the track that started, got %d", len(changes))
	}
}

func TestCrossfade(t *testing.T) {
	load := func(t *testing.T, e *Engine) {
		t.Helper()
		if err := e.Load(testTracks(2, 30*time.Second), 0, false); err != nil {
			t.Fatalf("load failed: %v", err)
		}
	}

	t.Run("FullCycle", func(t *testing.T) {
		e, src := newTestEngine(t, true)
		defer e.Close()
		ch := e.Bus().Subscribe()
		load(t, e)
		drain(ch, EventTrackChanged)

		// Run up to the preload threshold: 30s duration, 10s window.
		for i := 0; i < 20; i++ {
			e.step(time.Second)
		}
		if e.CrossfadePhase() != models.PhasePreloading {
			t.Fatalf("expected preloading at overlap window, got %s", e.CrossfadePhase())
		}
		waitPreload(t, e)

		// Run into the ramp: fading begins at 6s remaining.
		for i := 0; i < 4; i++ {
			e.step(time.Second)
		}
		if e.CrossfadePhase() != models.PhaseFading {
			t.Fatalf("expected fading, got %s", e.CrossfadePhase())
		}

		// Midway through the ramp both tracks are audible with
		// complementary gains.
		for i := 0; i < 3; i++ {
			e.step(time.Second)
		}
		outgoing := src.buffer("track-0")
		incoming := src.buffer("track-1")
		if outgoing.Gain() >= 1 || incoming.Gain() <= 0 {
			t.Errorf("expected complementary ramps, outgoing %f incoming %f", outgoing.Gain(), incoming.Gain())
		}
		if diff := outgoing.Gain() + incoming.Gain(); diff < 0.99 || diff > 1.01 {
			t.Errorf("gains should sum to one, got %f", diff)
		}

		// Complete the ramp: the advance commits exactly once.
		for i := 0; i < 3; i++ {
			e.step(time.Second)
		}
		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 || changes[0].Track.ID != "track-1" {
			t.Fatalf("expected single commit to track-1, got %v", changes)
		}
		if changes[0].Cause != models.CauseAutomatic {
			t.Errorf("crossfade commit should be automatic, got %s", changes[0].Cause)
		}
		if e.CrossfadePhase() != models.PhaseIdle {
			t.Errorf("scheduler should return to idle, got %s", e.CrossfadePhase())
		}
		if !outgoing.Closed() {
			t.Error("outgoing buffer should be released after commit")
		}
		if incoming.Gain() != 1 {
			t.Errorf("incoming track should be at full gain, got %f", incoming.Gain())
		}
		// The incoming track has been audible since the ramp began.
		if pos := e.State().Position; pos < 5*time.Second || pos > 7*time.Second {
			t.Errorf("committed position should reflect ramp time, got %v", pos)
		}
	})

	t.Run("SeekDuringFadeAborts", func(t *testing.T) {
		e, src := newTestEngine(t, true)
		defer e.Close()
		load(t, e)

		for i := 0; i < 20; i++ {
			e.step(time.Second)
		}
		waitPreload(t, e)
		for i := 0; i < 5; i++ {
			e.step(time.Second)
		}
		if e.CrossfadePhase() != models.PhaseFading {
			t.Fatalf("expected fading, got %s", e.CrossfadePhase())
		}

		if err := e.Seek(5 * time.Second); err != nil {
			t.Fatalf("seek failed: %v", err)
		}

		if e.CrossfadePhase() != models.PhaseIdle {
			t.Errorf("seek must abort the fade, got %s", e.CrossfadePhase())
		}
		if src.buffer("track-0").Gain() != 1 {
			t.Errorf("definitive track should snap to full gain, got %f", src.buffer("track-0").Gain())
		}
		if !src.buffer("track-1").Closed() {
			t.Error("preloaded buffer should be discarded on abort")
		}
		if e.State().TrackID != "track-0" {
			t.Errorf("only the seeked-to track should be audible, got %s", e.State().TrackID)
		}
	})

	t.Run("PauseDuringPreloadAborts", func(t *testing.T) {
		e, _ := newTestEngine(t, true)
		defer e.Close()
		load(t, e)

		for i := 0; i < 20; i++ {
			e.step(time.Second)
		}
		if e.CrossfadePhase() != models.PhasePreloading {
			t.Fatalf("expected preloading, got %s", e.CrossfadePhase())
		}

		if _, err := e.TogglePlayPause(); err != nil {
			t.Fatalf("pause failed: %v", err)
		}
		if e.CrossfadePhase() != models.PhaseIdle {
			t.Errorf("pause must abort the scheduler, got %s", e.CrossfadePhase())
		}
	})

	t.Run("DisableDuringFadeCompletesInFlight", func(t *testing.T) {
		e, _ := newTestEngine(t, true)
		defer e.Close()
		ch := e.Bus().Subscribe()
		load(t, e)
		drain(ch, EventTrackChanged)

		for i := 0; i < 20; i++ {
			e.step(time.Second)
		}
		waitPreload(t, e)
		for i := 0; i < 5; i++ {
			e.step(time.Second)
		}
		if e.CrossfadePhase() != models.PhaseFading {
			t.Fatalf("expected fading, got %s", e.CrossfadePhase())
		}

		e.SetCrossfade(false, 0, 0)
		if e.CrossfadePhase() != models.PhaseFading {
			t.Error("disable during fade should let the ramp finish")
		}

		for i := 0; i < 6; i++ {
			e.step(time.Second)
		}
		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 {
			t.Fatalf("in-flight fade should still commit once, got %d", len(changes))
		}

		e.mu.Lock()
		enabled := e.fade.enabled
		e.mu.Unlock()
		if enabled {
			t.Error("crossfade should be disabled after the in-flight fade")
		}
	})

	t.Run("PreloadFailureFallsBackToHardTransition", func(t *testing.T) {
		e, src := newTestEngine(t, true)
		defer e.Close()
		ch := e.Bus().Subscribe()
		src.failIDs["track-1"] = true
		load(t, e)
		drain(ch, EventTrackChanged)

		for i := 0; i < 20; i++ {
			e.step(time.Second)
		}
		waitPreload(t, e)

		// The failed preload resets the scheduler; the natural end then
		// skips the undecodable track.
		src.mu.Lock()
		delete(src.failIDs, "track-1")
		src.mu.Unlock()
		for i := 0; i < 11; i++ {
			e.step(time.Second)
		}

		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 || changes[0].Track.ID != "track-1" {
			t.Fatalf("expected hard transition to track-1, got %v", changes)
		}
	})
}

func TestRemoveCurrent(t *testing.T) {
	t.Run("LastUnderLoopNoneStopsAtPriorIndex", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()

		e.Load(testTracks(3, time.Minute), 2, false)
		if err := e.Remove(2); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		state := e.State()
		if state.IsPlaying {
			t.Error("expected playback stopped")
		}
		if e.CurrentIndex() != 1 {
			t.Errorf("expected cursor on prior last-valid index, got %d", e.CurrentIndex())
		}
	})

	t.Run("MidQueueStartsFollowingTrack", func(t *testing.T) {
		e, _ := newTestEngine(t, false)
		defer e.Close()
		ch := e.Bus().Subscribe()

		e.Load(testTracks(3, time.Minute), 1, false)
		drain(ch, EventTrackChanged)

		if err := e.Remove(1); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		changes := drain(ch, EventTrackChanged)
		if len(changes) != 1 || changes[0].Track.ID != "track-2" {
			t.Fatalf("expected transition to following track, got %v", changes)
		}
	})
}

func TestSleepTimer(t *testing.T) {
	e, _ := newTestEngine(t, false)
	defer e.Close()

	e.Load(testTracks(1, time.Hour), 0, false)
	e.SetSleepTimer(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	e.step(time.Second)

	if e.State().IsPlaying {
		t.Error("expected sleep timer to pause playback")
	}
}

func TestSeekClamps(t *testing.T) {
	e, _ := newTestEngine(t, false)
	defer e.Close()

	e.Load(testTracks(1, 10*time.Second), 0, false)

	if err := e.Seek(time.Minute); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if e.State().Position != 10*time.Second {
		t.Errorf("seek should clamp to duration, got %v", e.State().Position)
	}

	if err := e.Seek(-time.Second); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	if e.State().Position != 0 {
		t.Errorf("seek should clamp to zero, got %v", e.State().Position)
	}
}
