package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/attunefm/attune/internal/engine"
	"github.com/attunefm/attune/internal/models"
	"github.com/attunefm/attune/internal/repositories"
	"github.com/attunefm/attune/internal/shared"
)

// HistoryWriter is the slice of the history repository the recorder needs.
type HistoryWriter interface {
	Create(entry *models.HistoryEntry) error
}

var _ HistoryWriter = (*repositories.HistoryRepository)(nil)

// Recorder journals track transitions from the engine bus into the
// listening history.
type Recorder struct {
	logger  *log.Logger
	eng     *engine.Engine
	history HistoryWriter
}

// NewRecorder creates a Recorder around an engine and a history sink.
func NewRecorder(eng *engine.Engine, history HistoryWriter, logger *log.Logger) *Recorder {
	return &Recorder{
		logger:  shared.WithLogger(logger, "component", "recorder"),
		eng:     eng,
		history: history,
	}
}

// Run consumes engine events until ctx is cancelled or the bus closes.
// Inserts are best-effort; failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context) {
	events := r.eng.Bus().Subscribe()
	defer r.eng.Bus().Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Type != engine.EventTrackChanged {
				continue
			}
			r.record(evt)
		}
	}
}

func (r *Recorder) record(evt engine.Event) {
	entry := models.NewHistoryEntry(0, evt.Track, evt.Cause)
	if err := r.history.Create(entry); err != nil {
		r.logger.Warn("failed to record history entry", "track", evt.Track.ID, "err", err)
		return
	}
	r.logger.Debug("recorded transition", "track", evt.Track.ID, "cause", evt.Cause)
}
