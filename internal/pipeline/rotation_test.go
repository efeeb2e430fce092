package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

type stubPicker struct {
	markets    []domain.Market
	next       domain.MarketConfig
	refreshErr error
	selectErr  error
	refreshes  int
	excludes   []string
}

func (p *stubPicker) Refresh(_ context.Context, _ int) ([]domain.Market, error) {
	p.refreshes++
	return p.markets, p.refreshErr
}

func (p *stubPicker) SelectTradable(_ context.Context, exclude string) (domain.MarketConfig, error) {
	p.excludes = append(p.excludes, exclude)
	return p.next, p.selectErr
}

type stubRotStrategy struct {
	rotated []domain.MarketConfig
	err     error
}

func (s *stubRotStrategy) RotateMarket(_ context.Context, next domain.MarketConfig) error {
	if s.err != nil {
		return s.err
	}
	s.rotated = append(s.rotated, next)
	return nil
}

func (s *stubRotStrategy) Status() domain.BotStatus { return domain.BotStatus{} }

type stubSwitcher struct {
	active   domain.MarketConfig
	switched []domain.MarketConfig
	err      error
}

func (f *stubSwitcher) SwitchMarket(_ context.Context, market domain.MarketConfig) error {
	if f.err != nil {
		return f.err
	}
	f.switched = append(f.switched, market)
	f.active = market
	return nil
}

func (f *stubSwitcher) Active() domain.MarketConfig { return f.active }

type stubScanner struct {
	opps  []domain.ArbitrageOpportunity
	err   error
	scans int
}

func (s *stubScanner) ScanAll(_ context.Context, _ []domain.Market) ([]domain.ArbitrageOpportunity, error) {
	s.scans++
	return s.opps, s.err
}

type stubLocks struct {
	held     bool
	acquired []string
	released int
}

func (l *stubLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return func() { l.released++ }, nil
}

func marketCfg(id string) domain.MarketConfig {
	return domain.MarketConfig{
		MarketID:    id,
		ConditionID: "cond-" + id,
		Question:    "question " + id,
		UpTokenID:   id + "-up",
		DownTokenID: id + "-down",
	}
}

func TestRotatorSwitchesToNewMarket(t *testing.T) {
	picker := &stubPicker{next: marketCfg("b")}
	strat := &stubRotStrategy{}
	feed := &stubSwitcher{active: marketCfg("a")}
	locks := &stubLocks{}
	r := NewRotator(picker, strat, feed, nil, locks, 10, testLogger())

	require.NoError(t, r.Run(context.Background(), time.Minute))

	require.Len(t, strat.rotated, 1)
	assert.Equal(t, "b", strat.rotated[0].MarketID)
	require.Len(t, feed.switched, 1)
	assert.Equal(t, "b", feed.switched[0].MarketID)
	assert.Equal(t, []string{"a"}, picker.excludes)
	assert.Equal(t, []string{"rotation"}, locks.acquired)
	assert.Equal(t, 1, locks.released)
}

func TestRotatorSkipsWhenLockHeld(t *testing.T) {
	picker := &stubPicker{next: marketCfg("b")}
	r := NewRotator(picker, &stubRotStrategy{}, &stubSwitcher{}, nil, &stubLocks{held: true}, 10, testLogger())

	require.NoError(t, r.Run(context.Background(), time.Minute))
	assert.Zero(t, picker.refreshes)
}

func TestRotatorNoopOnSameMarket(t *testing.T) {
	current := marketCfg("a")
	picker := &stubPicker{next: current}
	strat := &stubRotStrategy{}
	feed := &stubSwitcher{active: current}
	r := NewRotator(picker, strat, feed, nil, &stubLocks{}, 10, testLogger())

	require.NoError(t, r.Run(context.Background(), time.Minute))
	assert.Empty(t, strat.rotated)
	assert.Empty(t, feed.switched)
}

func TestRotatorKeepsCurrentWhenNoneTradable(t *testing.T) {
	picker := &stubPicker{selectErr: domain.ErrNotFound}
	strat := &stubRotStrategy{}
	feed := &stubSwitcher{active: marketCfg("a")}
	r := NewRotator(picker, strat, feed, nil, &stubLocks{}, 10, testLogger())

	require.NoError(t, r.Run(context.Background(), time.Minute))
	assert.Empty(t, strat.rotated)
	assert.Empty(t, feed.switched)
}

func TestRotatorSweepFailureIsNonFatal(t *testing.T) {
	picker := &stubPicker{next: marketCfg("b")}
	strat := &stubRotStrategy{}
	feed := &stubSwitcher{active: marketCfg("a")}
	scanner := &stubScanner{err: errors.New("redis down")}
	r := NewRotator(picker, strat, feed, scanner, &stubLocks{}, 10, testLogger())

	require.NoError(t, r.Run(context.Background(), time.Minute))
	assert.Equal(t, 1, scanner.scans)
	require.Len(t, feed.switched, 1)
}

func TestRotatorStrategyFailureAbortsSwitch(t *testing.T) {
	picker := &stubPicker{next: marketCfg("b")}
	strat := &stubRotStrategy{err: errors.New("unwind failed")}
	feed := &stubSwitcher{active: marketCfg("a")}
	r := NewRotator(picker, strat, feed, nil, &stubLocks{}, 10, testLogger())

	err := r.Run(context.Background(), time.Minute)
	require.Error(t, err)
	assert.Empty(t, feed.switched)
}
