package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/attunefm/attune/internal/repositories"
	"github.com/attunefm/attune/internal/shared"
)

// Janitor prunes old history rows on a periodic tick.
type Janitor struct {
	logger   *log.Logger
	history  *repositories.HistoryRepository
	maxAge   time.Duration
	interval time.Duration
}

// NewJanitor creates a Janitor. maxAge defaults to 90 days and interval to
// one hour when unset.
func NewJanitor(history *repositories.HistoryRepository, maxAge, interval time.Duration, logger *log.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = 90 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		logger:   shared.WithLogger(logger, "component", "janitor"),
		history:  history,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run prunes immediately and then on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.prune()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.prune()
		}
	}
}

func (j *Janitor) prune() {
	cutoff := time.Now().Add(-j.maxAge)
	pruned, err := j.history.PruneOlderThan(cutoff)
	if err != nil {
		j.logger.Warn("history prune failed", "err", err)
		return
	}
	if pruned > 0 {
		j.logger.Info("pruned history", "rows", pruned, "cutoff", cutoff.Format(time.DateOnly))
	}
}
