// Package notify fans operator alerts out to one or more channels (Telegram,
// Discord). Events can be filtered so an operator only hears about fills and
// risk trips, not every emitted signal.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EthanAlgoX/Polymarket-TradeBot/internal/domain"
)

// Event types the bot emits. The configured filter list matches against
// these names.
const (
	EventSignal     = "signal"
	EventFill       = "fill"
	EventStopLoss   = "stop_loss"
	EventKillSwitch = "kill_switch"
	EventRound      = "round"
	EventError      = "error"
)

// Sender delivers one rendered notification over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to all registered senders. An empty event
// filter means everything passes.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to the given senders, forwarding
// only events named in the filter (or all events when the filter is empty).
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an event-tagged alert, subject to the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll delivers an alert to every sender, ignoring the filter. Used for
// kill-switch and shutdown alerts that must always reach the operator.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// NotifyFill reports an executed order.
func (n *Notifier) NotifyFill(ctx context.Context, sig domain.TradeSignal, res domain.OrderResult) error {
	msg := fmt.Sprintf("%s %s %.2f shares @ %.4f (market %s, %s)",
		sig.Kind, sig.Side, res.FilledSize, res.FilledPrice, sig.MarketID, sig.Reason)
	return n.Notify(ctx, EventFill, "Order filled", msg)
}

// NotifyStopLoss reports a stop-loss unwind on a round.
func (n *Notifier) NotifyStopLoss(ctx context.Context, roundID string, loss float64) error {
	msg := fmt.Sprintf("round %s unwound, realized %.2f USDC", roundID, loss)
	return n.Notify(ctx, EventStopLoss, "Stop loss triggered", msg)
}

// NotifyKillSwitch reports that trading has been halted. Bypasses the filter.
func (n *Notifier) NotifyKillSwitch(ctx context.Context, reason string) error {
	return n.NotifyAll(ctx, "Kill switch engaged", reason)
}

// NotifyRoundComplete reports a finished arbitrage round.
func (n *Notifier) NotifyRoundComplete(ctx context.Context, round domain.Round) error {
	msg := fmt.Sprintf("round %s on %s closed: cost %.2f, profit %.2f, merged=%v",
		round.ID, round.MarketID, round.TotalCost, round.Profit, round.Merged)
	return n.Notify(ctx, EventRound, "Round complete", msg)
}

// dispatch sends to every sender; one failing channel does not block the
// rest, and all failures come back joined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
