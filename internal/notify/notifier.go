// Package notify delivers operator alerts to Telegram and Discord. Alerts
// are filtered by event type so operators receive only what they ask for.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// Event types.
const (
	EventOpportunity = "opportunity"
	EventRejection   = "rejection"
)

// maxAlertRows bounds the number of opportunities listed in one message.
const maxAlertRows = 5

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to every Sender. Only events in the allowed
// set are forwarded; an empty set allows everything.
type Notifier struct {
	senders   []Sender
	events    map[string]bool
	minSpread float64
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. Opportunity alerts only include pairs
// whose spread is at least minSpread.
func NewNotifier(senders []Sender, events []string, minSpread float64, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:   senders,
		events:    allowed,
		minSpread: minSpread,
		logger:    logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title and message if event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notifier: event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// OpportunityAlert reports the real opportunities of snap at or above the
// alert threshold. Synthetic pairs are never alerted.
func (n *Notifier) OpportunityAlert(ctx context.Context, snap domain.Snapshot) error {
	var rows []domain.Opportunity
	for _, o := range snap.Opportunities {
		if !o.Synthetic && o.Spread >= n.minSpread {
			rows = append(rows, o)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	var b strings.Builder
	for i, o := range rows {
		if i == maxAlertRows {
			fmt.Fprintf(&b, "…and %d more\n", len(rows)-maxAlertRows)
			break
		}
		fmt.Fprintf(&b, "%.1f%% spread, est. %.2f profit [%s]\n  %s: %s\n  %s: %s\n",
			o.Spread*100, o.ProfitEstimate, o.Category,
			o.Primary.Venue, o.Primary.Title,
			o.Secondary.Venue, o.Secondary.Title)
	}
	title := fmt.Sprintf("%d cross-venue opportunities", len(rows))
	return n.Notify(ctx, EventOpportunity, title, b.String())
}

// RejectionAlert reports a submission that ended in Rejected.
func (n *Notifier) RejectionAlert(ctx context.Context, intent domain.OrderIntent, res domain.SubmissionResult) error {
	if res.State != domain.StateRejected {
		return nil
	}
	msg := fmt.Sprintf("%s %s @ %s on token %s\nreason: %s",
		intent.Side, intent.Size, intent.Price, intent.TokenID, res.Message)
	return n.Notify(ctx, EventRejection, "Order rejected", msg)
}

// dispatch delivers to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notifier: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notifier: sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
