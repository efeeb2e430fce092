package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// SweepFunc merges matched YES/NO pairs back into collateral and returns the
// merged share count. Wired from the strategy's pair scan plus the relayer.
type SweepFunc func(ctx context.Context) (float64, error)

// Orchestrator runs the background jobs concurrently: market rotation, the
// merge sweep, and the archive cron. Any job failing with a non-context
// error stops the rest.
type Orchestrator struct {
	rotator *Rotator
	archive *ArchiveJob
	sweep   SweepFunc

	rotateInterval time.Duration
	sweepInterval  time.Duration
	archiveCron    string
	logger         *slog.Logger
}

// NewOrchestrator creates an Orchestrator. rotator, archive, and sweep are
// each optional; nil disables that job.
func NewOrchestrator(
	rotator *Rotator,
	archive *ArchiveJob,
	sweep SweepFunc,
	rotateInterval, sweepInterval time.Duration,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		rotator:        rotator,
		archive:        archive,
		sweep:          sweep,
		rotateInterval: rotateInterval,
		sweepInterval:  sweepInterval,
		archiveCron:    archiveCron,
		logger:         logger.With(slog.String("component", "pipeline")),
	}
}

// Run blocks until the context is cancelled or a job fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline starting",
		slog.Duration("rotate_interval", o.rotateInterval),
		slog.Duration("sweep_interval", o.sweepInterval),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.rotator != nil {
		g.Go(func() error {
			err := o.rotator.RunLoop(ctx, o.rotateInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rotator: %w", err)
		})
	}

	if o.sweep != nil {
		g.Go(func() error {
			err := o.runSweep(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("merge sweep: %w", err)
		})
	}

	if o.archive != nil && o.archiveCron != "" {
		g.Go(func() error {
			err := o.archive.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archive: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline stopped cleanly")
	return nil
}

// runSweep merges paired positions on a fixed interval.
func (o *Orchestrator) runSweep(ctx context.Context) error {
	ticker := time.NewTicker(o.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("merge sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			merged, err := o.sweep(ctx)
			if err != nil {
				o.logger.Error("merge sweep failed", slog.String("error", err.Error()))
				continue
			}
			if merged > 0 {
				o.logger.Info("merged paired positions", slog.Float64("shares", merged))
			}
		}
	}
}
