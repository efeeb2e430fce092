package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

func TestHealthHandlerOK(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Equal(t, "ok", body.Dependencies["postgres"])
}

func TestHealthHandlerDegraded(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("pool exhausted") },
	})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, body.Dependencies["postgres"], "pool exhausted")
}

type stubStatusSource struct{ status domain.BotStatus }

func (s stubStatusSource) Status() domain.BotStatus { return s.status }

type stubRiskSource struct{ snap domain.RiskSnapshot }

func (s stubRiskSource) Snapshot(context.Context) domain.RiskSnapshot { return s.snap }

func TestStatusHandlerMergesSources(t *testing.T) {
	bot := stubStatusSource{status: domain.BotStatus{
		ActiveMarket: "m1",
		RoundPhase:   domain.RoundLeg1Filled,
		Leg1Price:    0.44,
	}}
	risk := stubRiskSource{snap: domain.RiskSnapshot{DailyPnL: -3.2, DailyTradesCount: 7}}

	h := NewStatusHandler("trade", bot, risk, func() bool { return true })
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var st domain.BotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "trade", st.Mode)
	assert.True(t, st.WSConnected)
	assert.Equal(t, "m1", st.ActiveMarket)
	assert.Equal(t, domain.RoundLeg1Filled, st.RoundPhase)
	assert.Equal(t, -3.2, st.Risk.DailyPnL)
	assert.Equal(t, 7, st.Risk.DailyTradesCount)
}

func TestStatusHandlerWithoutBot(t *testing.T) {
	h := NewStatusHandler("server", nil, stubRiskSource{}, nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var st domain.BotStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "server", st.Mode)
	assert.False(t, st.WSConnected)
}

type stubRoundStore struct {
	rounds []domain.Round
	err    error
}

func (s *stubRoundStore) Insert(context.Context, domain.Round) error { return nil }

func (s *stubRoundStore) GetByID(_ context.Context, id string) (domain.Round, error) {
	if s.err != nil {
		return domain.Round{}, s.err
	}
	for _, r := range s.rounds {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Round{}, domain.ErrNotFound
}

func (s *stubRoundStore) ListRecent(_ context.Context, limit int) ([]domain.Round, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > len(s.rounds) {
		limit = len(s.rounds)
	}
	return s.rounds[:limit], nil
}

func (s *stubRoundStore) SumProfit(context.Context, time.Time) (float64, error) {
	return 0, nil
}

func TestRoundHandlerList(t *testing.T) {
	store := &stubRoundStore{rounds: []domain.Round{{ID: "r1"}, {ID: "r2"}}}
	h := NewRoundHandler(store)

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/rounds", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestRoundHandlerGetNotFound(t *testing.T) {
	h := NewRoundHandler(&stubRoundStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/rounds/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.GetRound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubSignalSource struct {
	signals []domain.TradeSignal
	names   []string
}

func (s stubSignalSource) RecentSignals(limit int) []domain.TradeSignal {
	if limit > len(s.signals) {
		limit = len(s.signals)
	}
	return s.signals[:limit]
}

func (s stubSignalSource) ActiveNames() []string { return s.names }

func TestSignalHandlerListRecent(t *testing.T) {
	h := NewSignalHandler(stubSignalSource{
		signals: []domain.TradeSignal{{ID: "s1", Kind: domain.SignalLeg1}},
		names:   []string{"dip_arb"},
	})

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count      int      `json:"count"`
		Strategies []string `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, []string{"dip_arb"}, body.Strategies)
}

func TestParseListOptsCapsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trades?limit=9999&offset=20", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}
