package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/order"
	"github.com/alanyoungcy/crossarb/internal/submit"
)

// Exchange is the order-taking side of the CLOB.
type Exchange interface {
	submit.OrderPoster
	CancelOrder(ctx context.Context, orderID string) error
	HasCredentials() bool
}

// TradeDeps are the collaborators of a TradeService. Wallet, Audit, and
// Notifier are optional; without a Wallet only the interactive flow works.
type TradeDeps struct {
	Pipeline *submit.Pipeline
	// Interactive builds orders for the prepare/submit flow.
	Interactive *order.Builder
	Exchange    Exchange
	Wallet      crypto.Wallet
	Audit       domain.AuditStore
	Notifier    *notify.Notifier
}

// PreparedOrder is returned by Prepare for an external wallet to sign.
type PreparedOrder struct {
	ID        string             `json:"id"`
	Salt      string             `json:"salt"`
	Maker     string             `json:"maker"`
	ExpiresAt time.Time          `json:"expires_at"`
	TypedData apitypes.TypedData `json:"typed_data"`
}

// TradeService runs trade intents through the submission pipeline and
// records the outcome.
type TradeService struct {
	deps    TradeDeps
	pending *pendingOrders
	logger  *slog.Logger
	now     func() time.Time
}

// NewTradeService creates a TradeService.
func NewTradeService(deps TradeDeps, logger *slog.Logger) *TradeService {
	return &TradeService{
		deps:    deps,
		pending: newPendingOrders(time.Now),
		logger:  logger.With(slog.String("component", "trade_service")),
		now:     time.Now,
	}
}

// WalletAddress returns the server-side signing address, or "".
func (s *TradeService) WalletAddress() string {
	if s.deps.Wallet == nil {
		return ""
	}
	return s.deps.Wallet.Address()
}

// Trade builds, signs with the server-side wallet, and submits intent.
func (s *TradeService) Trade(ctx context.Context, intent domain.OrderIntent) (domain.SubmissionResult, error) {
	if err := checkVenue(intent); err != nil {
		return domain.SubmissionResult{}, err
	}
	if s.deps.Wallet == nil {
		return domain.SubmissionResult{}, fmt.Errorf("trade_service: server wallet: %w", domain.ErrNotConfigured)
	}
	if err := s.requireCredentials(); err != nil {
		return domain.SubmissionResult{}, err
	}

	res, err := s.deps.Pipeline.Submit(ctx, s.deps.Wallet, intent)
	intent.WalletAddress = s.deps.Wallet.Address()
	s.record(ctx, "order.trade", intent, res, err)
	return res, err
}

// Prepare builds an order for an external wallet and keeps it until the
// signature arrives or the order expires.
func (s *TradeService) Prepare(ctx context.Context, intent domain.OrderIntent) (PreparedOrder, error) {
	if err := checkVenue(intent); err != nil {
		return PreparedOrder{}, err
	}
	if err := s.requireCredentials(); err != nil {
		return PreparedOrder{}, err
	}
	prep, err := s.deps.Pipeline.PrepareWith(s.deps.Interactive, intent)
	if err != nil {
		return PreparedOrder{}, err
	}

	out := PreparedOrder{
		ID:        uuid.NewString(),
		Salt:      prep.Order.Salt.String(),
		Maker:     prep.Order.Maker,
		ExpiresAt: time.Unix(prep.Order.Expiration, 0).UTC(),
		TypedData: prep.TypedData,
	}
	s.pending.put(out.ID, pendingOrder{prep: prep, intent: intent, expiresAt: out.ExpiresAt})

	s.logger.InfoContext(ctx, "trade_service: order prepared",
		slog.String("prepared_id", out.ID),
		slog.String("salt", out.Salt),
		slog.String("wallet", intent.WalletAddress),
	)
	return out, nil
}

// SubmitPrepared posts a prepared order with its external signature. A
// prepared order is consumed by the first attempt, successful or not.
func (s *TradeService) SubmitPrepared(ctx context.Context, id, signature string) (domain.SubmissionResult, error) {
	if err := s.requireCredentials(); err != nil {
		return domain.SubmissionResult{}, err
	}
	po, ok := s.pending.take(id)
	if !ok {
		return domain.SubmissionResult{}, fmt.Errorf("trade_service: prepared order %s: %w", id, domain.ErrNotFound)
	}
	res, err := s.deps.Pipeline.SubmitSigned(ctx, po.prep, signature, po.intent.WalletAddress)
	s.record(ctx, "order.submit", po.intent, res, err)
	return res, err
}

// Cancel cancels a resting order.
func (s *TradeService) Cancel(ctx context.Context, orderID string) error {
	if err := s.requireCredentials(); err != nil {
		return err
	}
	err := s.deps.Exchange.CancelOrder(ctx, orderID)
	if s.deps.Audit != nil {
		detail := map[string]any{"order_id": orderID, "ok": err == nil}
		if err != nil {
			detail["error"] = err.Error()
		}
		if aerr := s.deps.Audit.Log(ctx, "order.cancel", detail); aerr != nil {
			s.logger.WarnContext(ctx, "trade_service: audit cancel failed", slog.String("error", aerr.Error()))
		}
	}
	if err != nil {
		return fmt.Errorf("trade_service: cancel %s: %w", orderID, err)
	}
	return nil
}

func (s *TradeService) record(ctx context.Context, event string, intent domain.OrderIntent, res domain.SubmissionResult, err error) {
	if s.deps.Audit != nil {
		detail := map[string]any{
			"state":    string(res.State),
			"token_id": intent.TokenID,
			"side":     intent.Side.String(),
			"size":     intent.Size.String(),
			"price":    intent.Price.String(),
			"wallet":   intent.WalletAddress,
		}
		if res.Salt != "" {
			detail["salt"] = res.Salt
		}
		if res.OrderID != "" {
			detail["order_id"] = res.OrderID
		}
		if res.Message != "" {
			detail["message"] = res.Message
		}
		if err != nil {
			detail["error"] = err.Error()
		}
		if aerr := s.deps.Audit.Log(ctx, event, detail); aerr != nil {
			s.logger.WarnContext(ctx, "trade_service: audit failed", slog.String("error", aerr.Error()))
		}
	}

	if res.State == domain.StateRejected && s.deps.Notifier.Enabled() {
		if nerr := s.deps.Notifier.RejectionAlert(ctx, intent, res); nerr != nil {
			s.logger.WarnContext(ctx, "trade_service: rejection alert failed", slog.String("error", nerr.Error()))
		}
	}
}

// requireCredentials fails with domain.ErrNotConfigured while the exchange
// has no L2 credentials, before any order is built or consumed.
func (s *TradeService) requireCredentials() error {
	if !s.deps.Exchange.HasCredentials() {
		return fmt.Errorf("trade_service: exchange credentials: %w", domain.ErrNotConfigured)
	}
	return nil
}

// checkVenue accepts intents for the CLOB venue only; an empty venue means
// that venue.
func checkVenue(intent domain.OrderIntent) error {
	if intent.Venue != "" && intent.Venue != domain.VenuePolymarket {
		return domain.InvalidIntentf("orders can only be placed on %s, not %q", domain.VenuePolymarket, intent.Venue)
	}
	return nil
}

// IsClientError reports whether err is the caller's fault rather than the
// system's or the venue's.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidIntent) || errors.Is(err, domain.ErrSigningDeclined)
}
