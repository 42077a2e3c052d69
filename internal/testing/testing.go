// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
)

// FakeBuffer is a test double for [engine.Buffer] that records gain changes.
type FakeBuffer struct {
	mu       sync.Mutex
	trackID  string
	duration time.Duration
	gain     float64
	gains    []float64
	closed   bool
}

func (b *FakeBuffer) TrackID() string {
	return b.trackID
}

func (b *FakeBuffer) Duration() time.Duration {
	return b.duration
}

func (b *FakeBuffer) SetGain(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gain = gain
	b.gains = append(b.gains, gain)
}

func (b *FakeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Gain returns the last gain applied to the buffer.
func (b *FakeBuffer) Gain() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gain
}

// Closed reports whether the buffer was released.
func (b *FakeBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// GainHistory returns every gain value applied, in order.
func (b *FakeBuffer) GainHistory() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.gains))
	copy(out, b.gains)
	return out
}

// FakeSource is a test double for [engine.Source] with scriptable failures.
type FakeSource struct {
	mu sync.Mutex

	// DefaultDuration is used when a track has no duration hint.
	DefaultDuration time.Duration
	// FailIDs lists track IDs whose Open calls fail.
	FailIDs map[string]bool

	opened  []string
	buffers map[string]*FakeBuffer
}

// NewFakeSource creates a FakeSource with a 3 minute default duration.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		DefaultDuration: 3 * time.Minute,
		FailIDs:         map[string]bool{},
		buffers:         map[string]*FakeBuffer{},
	}
}

func (s *FakeSource) Open(ctx context.Context, track models.Track) (engine.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = append(s.opened, track.ID)
	if s.FailIDs[track.ID] {
		return nil, fmt.Errorf("decode failed for %s", track.ID)
	}

	duration := track.Duration
	if duration == 0 {
		duration = s.DefaultDuration
	}
	buf := &FakeBuffer{trackID: track.ID, duration: duration, gain: 1}
	s.buffers[track.ID] = buf
	return buf, nil
}

// Opened returns the track IDs passed to Open, in call order.
func (s *FakeSource) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.opened))
	copy(out, s.opened)
	return out
}

// Buffer returns the most recent buffer opened for a track ID.
func (s *FakeSource) Buffer(trackID string) *FakeBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[trackID]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
