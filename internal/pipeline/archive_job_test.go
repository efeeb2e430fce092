package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubArchiver struct {
	cutoffs []time.Time
	trades  int64
	rounds  int64
	stats   int64
	fail    error
}

func (a *stubArchiver) ArchiveTrades(_ context.Context, before time.Time) (int64, error) {
	a.cutoffs = append(a.cutoffs, before)
	return a.trades, a.fail
}

func (a *stubArchiver) ArchiveRounds(_ context.Context, before time.Time) (int64, error) {
	a.cutoffs = append(a.cutoffs, before)
	return a.rounds, a.fail
}

func (a *stubArchiver) ArchiveDailyStats(_ context.Context, before time.Time) (int64, error) {
	a.cutoffs = append(a.cutoffs, before)
	return a.stats, a.fail
}

func TestArchiveJobRunArchivesAllKinds(t *testing.T) {
	arch := &stubArchiver{trades: 10, rounds: 3, stats: 2}
	job := NewArchiveJob(arch, 7, testLogger())

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, arch.cutoffs, 3)

	wantCutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	for _, c := range arch.cutoffs {
		assert.WithinDuration(t, wantCutoff, c, time.Minute)
	}
}

func TestArchiveJobRunPropagatesErrors(t *testing.T) {
	arch := &stubArchiver{fail: errors.New("bucket gone")}
	job := NewArchiveJob(arch, 30, testLogger())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")
	// The first failing kind stops the pass.
	assert.Len(t, arch.cutoffs, 1)
}

func TestArchiveJobDefaultsRetention(t *testing.T) {
	job := NewArchiveJob(&stubArchiver{}, 0, testLogger())
	assert.Equal(t, 30, job.retentionDays)
}

func TestParseCron(t *testing.T) {
	c, err := parseCron("0 3 * * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 5, 1, 3, 1, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 5, 1, 4, 0, 0, 0, time.UTC)))

	_, err = parseCron("0 3 * *")
	require.Error(t, err)

	_, err = parseCron("x 3 * * *")
	require.Error(t, err)
}

func TestParseCronValueList(t *testing.T) {
	c, err := parseCron("0,30 * * * *")
	require.NoError(t, err)
	assert.True(t, c.matchesTime(time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)))
	assert.False(t, c.matchesTime(time.Date(2026, 5, 1, 9, 15, 0, 0, time.UTC)))
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, 5, 1, 12, 34, 56, 0, time.UTC)

	next, err := nextCronTime("0 3 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 3, 0, 0, 0, time.UTC), next)

	// A matching minute strictly after 'after' is chosen, never 'after' itself.
	next, err = nextCronTime("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 12, 35, 0, 0, time.UTC), next)
}
