package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

type stubSender struct {
	name     string
	titles   []string
	messages []string
	err      error
}

func (s *stubSender) Send(_ context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return nil
}

func (s *stubSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersEvents(t *testing.T) {
	sender := &stubSender{name: "tg"}
	n := NewNotifier([]Sender{sender}, []string{EventFill}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSignal, "sig", "ignored"))
	assert.Empty(t, sender.titles)

	require.NoError(t, n.Notify(context.Background(), EventFill, "fill", "delivered"))
	assert.Equal(t, []string{"fill"}, sender.titles)
}

func TestNotifyEmptyFilterPassesEverything(t *testing.T) {
	sender := &stubSender{name: "tg"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSignal, "a", "x"))
	require.NoError(t, n.Notify(context.Background(), EventError, "b", "y"))
	assert.Equal(t, []string{"a", "b"}, sender.titles)
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	sender := &stubSender{name: "tg"}
	n := NewNotifier([]Sender{sender}, []string{EventFill}, testLogger())

	require.NoError(t, n.NotifyKillSwitch(context.Background(), "daily loss floor breached"))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, "daily loss floor breached", sender.messages[0])
}

func TestDispatchReportsFailedSenders(t *testing.T) {
	good := &stubSender{name: "tg"}
	bad := &stubSender{name: "discord", err: errors.New("webhook 404")}
	n := NewNotifier([]Sender{good, bad}, nil, testLogger())

	err := n.Notify(context.Background(), EventError, "boom", "details")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord")
	// The healthy sender still delivered.
	assert.Equal(t, []string{"boom"}, good.titles)
}

func TestNotifyRoundComplete(t *testing.T) {
	sender := &stubSender{name: "tg"}
	n := NewNotifier([]Sender{sender}, []string{EventRound}, testLogger())

	round := domain.Round{ID: "r1", MarketID: "m1", TotalCost: 0.97, Profit: 0.03, Merged: true}
	require.NoError(t, n.NotifyRoundComplete(context.Background(), round))
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "r1")
	assert.Contains(t, sender.messages[0], "0.03")
}
