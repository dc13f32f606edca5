package worker

import (
	"context"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/crawler"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/services/publisher"
)

// Harvester is the part of crawler.Harvester the worker drives
type Harvester interface {
	HarvestAll(ctx context.Context) ([]crawler.Result, error)
}

// Worker runs a full harvest of every site on a fixed interval
type Worker struct {
	harvester Harvester
	publisher publisher.Publisher
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a new worker. pub may be nil.
func NewWorker(h Harvester, pub publisher.Publisher, interval time.Duration) *Worker {
	return &Worker{
		harvester: h,
		publisher: pub,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start runs harvest cycles until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	for {
		w.RunCycle(ctx)
		if err := helpers.Sleep(ctx, w.interval); err != nil {
			w.log.Info().Msg("Worker stopped")
			return nil
		}
	}
}

// RunCycle harvests every site once, one after another, then trims the
// product streams
func (w *Worker) RunCycle(ctx context.Context) []crawler.Result {
	start := time.Now()
	results, err := w.harvester.HarvestAll(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Harvest cycle finished with errors")
	}

	added := 0
	for _, res := range results {
		added += res.Added
		w.log.Info().
			Str("site", res.Site).
			Str("mode", string(res.Mode)).
			Str("reason", string(res.Reason)).
			Int("added", res.Added).
			Msg("Site harvested")
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			logger.LogError("StreamTrimming", err, "failed to trim product streams")
		}
	}

	w.log.Info().
		Int("sites", len(results)).
		Int("added", added).
		Dur("elapsed", time.Since(start)).
		Msg("Harvest cycle finished")
	return results
}
