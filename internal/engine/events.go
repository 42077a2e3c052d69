package engine

import (
	"sync"

	"github.com/attunefm/attune/internal/models"
)

// EventType identifies the kind of transport event.
type EventType string

const (
	// EventTrackChanged fires exactly once per logical track transition.
	EventTrackChanged EventType = "track_changed"
	// EventStateChanged fires on play, pause, and seek.
	EventStateChanged EventType = "state_changed"
	// EventQueueChanged fires when queue contents or loop mode change
	// without a track transition.
	EventQueueChanged EventType = "queue_changed"
	// EventCrossfade fires when the crossfade scheduler changes phase.
	EventCrossfade EventType = "crossfade_phase"
)

// Event is a typed transport observation delivered to subscribers in the
// order it was generated.
type Event struct {
	Type  EventType
	Track models.Track
	Cause models.TransitionCause
	Phase models.CrossfadePhase
	State models.PlaybackState
}

// Bus fans out transport events to subscribers.
//
// Each subscriber gets its own pump goroutine draining a pending list, so a
// slow consumer backs up its own list instead of blocking Publish. When the
// pending list overflows, the oldest state/queue/crossfade event is shed;
// track transitions are never dropped, preserving the one-event-per-
// transition contract for consumers like the history recorder.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

// subscriberBuffer is the delivery channel depth; overflowLimit caps the
// pending list before droppable events are shed.
const (
	subscriberBuffer = 16
	overflowLimit    = 256
)

type subscriber struct {
	out  chan Event
	wake chan struct{}
	quit chan struct{}

	mu      sync.Mutex
	pending []Event
	stopped bool
}

func newSubscriber() *subscriber {
	s := &subscriber{
		out:  make(chan Event, subscriberBuffer),
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *subscriber) publish(evt Event) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, evt)
	if len(s.pending) > overflowLimit {
		s.shedLocked()
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// shedLocked discards the oldest event that is not a track transition. A
// pending list made up entirely of transitions keeps growing instead.
func (s *subscriber) shedLocked() {
	for i, evt := range s.pending {
		if evt.Type != EventTrackChanged {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			evt := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.out <- evt:
			case <-s.quit:
				return
			}
		}
	}
}

func (s *subscriber) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.quit)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make([]*subscriber, 0)}
}

// Subscribe returns a channel that receives transport events in publication
// order. The channel closes on Unsubscribe or when the bus shuts down.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := newSubscriber()
	b.subs = append(b.subs, s)
	return s.out
}

// Unsubscribe removes a listener channel and closes it.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.out == ch {
			s.stop()
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish queues an event for every subscriber without blocking the caller.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.publish(evt)
	}
}

// Close shuts down all listener channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.stop()
	}
	b.subs = nil
}
