package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/attunefm/attune/internal/models"
)

func TestBusDeliversEveryTransition(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ch := bus.Subscribe()

	// Flood the bus without draining, well past the overflow limit.
	const transitions = 300
	for i := range transitions {
		bus.Publish(Event{Type: EventStateChanged})
		bus.Publish(Event{
			Type:  EventTrackChanged,
			Track: models.Track{ID: fmt.Sprintf("track-%d", i)},
			Cause: models.CauseAutomatic,
		})
		bus.Publish(Event{Type: EventQueueChanged})
	}

	var got []string
	deadline := time.After(5 * time.Second)
	for len(got) < transitions {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d transitions", len(got), transitions)
			}
			if evt.Type == EventTrackChanged {
				got = append(got, evt.Track.ID)
			}
		case <-deadline:
			t.Fatalf("received %d of %d transitions", len(got), transitions)
		}
	}

	for i, id := range got {
		if want := fmt.Sprintf("track-%d", i); id != want {
			t.Fatalf("transition %d = %s, want %s", i, id, want)
		}
	}
}

func TestBusOverflowShedsOnlyDroppableEvents(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ch := bus.Subscribe()

	for range overflowLimit * 2 {
		bus.Publish(Event{Type: EventStateChanged})
	}
	bus.Publish(Event{Type: EventTrackChanged, Track: models.Track{ID: "survivor"}})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Type == EventTrackChanged {
				if evt.Track.ID != "survivor" {
					t.Fatalf("unexpected transition %s", evt.Track.ID)
				}
				return
			}
		case <-deadline:
			t.Fatal("transition was shed with the overflow")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ch := bus.Subscribe()

	bus.Unsubscribe(ch)
	bus.Publish(Event{Type: EventTrackChanged})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after unsubscribe")
		}
	}
}
