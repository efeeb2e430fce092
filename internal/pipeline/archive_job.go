package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// ArchiveJob moves aged rows out of Postgres into cold storage on a cron
// schedule.
type ArchiveJob struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiveJob creates an ArchiveJob archiving everything older than
// retentionDays.
func NewArchiveJob(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *ArchiveJob {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &ArchiveJob{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archive_job")),
	}
}

// Run performs one archive pass over trades, rounds, and daily stats.
func (a *ArchiveJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("archive run starting",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	trades, err := a.archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive trades: %w", err)
	}
	rounds, err := a.archiver.ArchiveRounds(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive rounds: %w", err)
	}
	stats, err := a.archiver.ArchiveDailyStats(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive daily stats: %w", err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("trades", trades),
		slog.Int64("rounds", rounds),
		slog.Int64("daily_stats", stats),
	)
	return nil
}

// RunCron runs the job on a standard 5-field cron schedule
// ("minute hour day-of-month month day-of-week") until cancelled, e.g.
// "0 3 * * *" for 03:00 UTC daily.
func (a *ArchiveJob) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("archive cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("pipeline: parse cron %q: %w", cronExpr, err)
		}

		a.logger.Info("archive waiting for next trigger", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archive cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField matches one cron position: either a wildcard or a value list.
type cronField struct {
	wildcard bool
	values   []int
}

func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}
	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

type parsedCron struct {
	minute, hour, dom, month, dow cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression needs 5 fields, got %d", len(fields))
	}

	var c parsedCron
	var err error
	for i, dst := range []*cronField{&c.minute, &c.hour, &c.dom, &c.month, &c.dow} {
		if *dst, err = parseCronField(fields[i]); err != nil {
			return parsedCron{}, fmt.Errorf("cron field %d: %w", i, err)
		}
	}
	return c, nil
}

// nextCronTime finds the first minute after 'after' matching the expression,
// searching at most a year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching time within a year for %q", cronExpr)
}
