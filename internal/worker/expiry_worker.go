package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Finalizer closes attempts whose time ran out.
type Finalizer interface {
	FinalizeExpired(ctx context.Context) (int, error)
}

// ExpiryWorker periodically finalizes overdue sessions, so attempts whose
// automatic submission never reached the server are still scored.
type ExpiryWorker struct {
	finalizer Finalizer
	interval  time.Duration
	log       zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(finalizer Finalizer, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpiryWorker{
		finalizer: finalizer,
		interval:  interval,
		log:       log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start sweeps once immediately and then on every interval until ctx is done.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	closed, err := w.finalizer.FinalizeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Expiry sweep failed")
		}
		return
	}
	if closed > 0 {
		w.log.Info().Int("closed", closed).Msg("Finalized expired sessions")
	}
}
