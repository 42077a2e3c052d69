package tasks

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/shared"
	apptesting "github.com/attunefm/attune/internal/testing"
)

// memoryHistory collects history entries in memory, with scriptable failures.
type memoryHistory struct {
	mu      sync.Mutex
	entries []*models.HistoryEntry
	fail    bool
}

func (m *memoryHistory) Create(entry *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryHistory) all() []*models.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.HistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func recorderFixture(t *testing.T) (*engine.Engine, *memoryHistory, context.CancelFunc) {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	eng := engine.New(shared.PlayerConfig{TickMillis: 250}, apptesting.NewFakeSource(), logger)
	t.Cleanup(eng.Close)

	sink := &memoryHistory{}
	rec := NewRecorder(eng, sink, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rec.Run(ctx)
	// Give the recorder time to subscribe before events flow.
	time.Sleep(10 * time.Millisecond)
	return eng, sink, cancel
}

func waitEntries(t *testing.T, sink *memoryHistory, want int) []*models.HistoryEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := sink.all(); len(entries) >= want {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("wanted %d history entries, have %d", want, len(sink.all()))
	return nil
}

func TestRecorder(t *testing.T) {
	tracks := []models.Track{
		{ID: "t1", Title: "First", Artist: "A", Duration: 30 * time.Second},
		{ID: "t2", Title: "Second", Artist: "B", Duration: 30 * time.Second},
	}

	t.Run("JournalsTransitions", func(t *testing.T) {
		eng, sink, _ := recorderFixture(t)

		if err := eng.Load(tracks, 0, false); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if _, err := eng.PlayNext(); err != nil {
			t.Fatalf("PlayNext() error: %v", err)
		}

		entries := waitEntries(t, sink, 2)
		if entries[0].TrackID() != "t1" || entries[1].TrackID() != "t2" {
			t.Errorf("recorded order = %q, %q; want t1, t2", entries[0].TrackID(), entries[1].TrackID())
		}
		if entries[1].Cause() != models.CauseManual {
			t.Errorf("skip cause = %q, want %q", entries[1].Cause(), models.CauseManual)
		}
	})

	t.Run("PauseIsNotATransition", func(t *testing.T) {
		eng, sink, _ := recorderFixture(t)

		if err := eng.Load(tracks, 0, false); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		waitEntries(t, sink, 1)

		if _, err := eng.TogglePlayPause(); err != nil {
			t.Fatalf("TogglePlayPause() error: %v", err)
		}
		time.Sleep(50 * time.Millisecond)

		if got := len(sink.all()); got != 1 {
			t.Errorf("entries after pause = %d, want 1", got)
		}
	})

	t.Run("InsertFailureDoesNotBlockPlayback", func(t *testing.T) {
		eng, sink, _ := recorderFixture(t)
		sink.mu.Lock()
		sink.fail = true
		sink.mu.Unlock()

		if err := eng.Load(tracks, 0, false); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if _, err := eng.PlayNext(); err != nil {
			t.Fatalf("PlayNext() error: %v", err)
		}
		if got := eng.State().TrackID; got != "t2" {
			t.Errorf("current track = %q, want %q", got, "t2")
		}
	})
}
