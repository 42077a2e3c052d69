package engine

import (
	"context"
	"time"

	"github.com/attunefm/attune/internal/models"
)

// Source opens decodable audio for tracks. Implementations wrap the actual
// codec/decoder layer, which is outside this package's scope.
type Source interface {
	// Open fetches and decodes the initial buffer for a track. It is the
	// only engine operation allowed to block on I/O.
	Open(ctx context.Context, track models.Track) (Buffer, error)
}

// Buffer is a decoded, playable stretch of audio with a controllable gain.
type Buffer interface {
	TrackID() string
	Duration() time.Duration
	// SetGain sets the output gain in [0,1]. The crossfade scheduler drives
	// complementary ramps on the outgoing and incoming buffers.
	SetGain(gain float64)
	Close() error
}
