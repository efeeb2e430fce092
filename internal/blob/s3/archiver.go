package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// Narrow store interfaces for archival. The archiver only needs time-ranged
// reads, not the full domain store surface; the Postgres stores provide
// these via their ListBefore methods.

// TradeArchiveSource reads fills older than a cutoff.
type TradeArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error)
}

// RoundArchiveSource reads terminal rounds older than a cutoff.
type RoundArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Round, error)
}

// DailyStatsArchiveSource reads daily stats rows older than a cutoff date.
type DailyStatsArchiveSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.DailyStats, error)
}

// Archiver implements domain.Archiver: it serializes old records to JSONL
// and uploads them to cold storage. Deleting archived rows from the primary
// store stays a separate, explicit step run after the archive is verified.
type Archiver struct {
	writer domain.BlobWriter
	trades TradeArchiveSource
	rounds RoundArchiveSource
	daily  DailyStatsArchiveSource
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing through the given BlobWriter.
func NewArchiver(
	writer domain.BlobWriter,
	trades TradeArchiveSource,
	rounds RoundArchiveSource,
	daily DailyStatsArchiveSource,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		rounds: rounds,
		daily:  daily,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades uploads all fills before the cutoff to
// archive/trades/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return upload(ctx, a, "trades", before, trades)
}

// ArchiveRounds uploads all terminal rounds before the cutoff to
// archive/rounds/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveRounds(ctx context.Context, before time.Time) (int64, error) {
	rounds, err := a.rounds.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive rounds query: %w", err)
	}
	return upload(ctx, a, "rounds", before, rounds)
}

// ArchiveDailyStats uploads all daily stats rows dated before the cutoff to
// archive/daily_stats/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveDailyStats(ctx context.Context, before time.Time) (int64, error) {
	stats, err := a.daily.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive daily stats query: %w", err)
	}
	return upload(ctx, a, "daily_stats", before, stats)
}

// upload serializes records as JSONL, puts the object, and records the
// archival in the audit log.
func upload[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		a.logger.Warn("archive audit log failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()))
	}

	a.logger.Info("archived records",
		slog.String("kind", kind),
		slog.String("path", path),
		slog.Int64("count", count))
	return count, nil
}

// archivePath builds the object key, partitioned by the cutoff year-month,
// e.g. archive/trades/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
