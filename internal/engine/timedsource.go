package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/attunefm/attune/internal/models"
)

// TimedSource is a decoder-less [Source] that plays tracks as stretches of
// wall-clock time using their duration hint. It stands in for a platform
// audio backend, which lives outside this module.
type TimedSource struct {
	// DefaultDuration is used for tracks without a duration hint.
	DefaultDuration time.Duration
}

// NewTimedSource creates a TimedSource with a 3 minute default duration.
func NewTimedSource() *TimedSource {
	return &TimedSource{DefaultDuration: 3 * time.Minute}
}

func (s *TimedSource) Open(ctx context.Context, track models.Track) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if track.ID == "" {
		return nil, fmt.Errorf("track has no ID")
	}

	duration := track.Duration
	if duration <= 0 {
		duration = s.DefaultDuration
	}
	return &timedBuffer{trackID: track.ID, duration: duration, gain: 1}, nil
}

type timedBuffer struct {
	mu       sync.Mutex
	trackID  string
	duration time.Duration
	gain     float64
}

func (b *timedBuffer) TrackID() string {
	return b.trackID
}

func (b *timedBuffer) Duration() time.Duration {
	return b.duration
}

func (b *timedBuffer) SetGain(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gain = gain
}

func (b *timedBuffer) Close() error {
	return nil
}
