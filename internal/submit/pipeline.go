// Package submit sequences order submission: build, identity check, sign,
// post, and classification of the venue's answer.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/order"
)

// OrderPoster sends a signed order to the venue. Errors must be classified
// as *domain.RejectionError or *domain.TransportError.
type OrderPoster interface {
	PostOrder(ctx context.Context, so domain.SignedOrder) (domain.OrderAck, error)
}

// credentialed is implemented by posters that need private-endpoint
// credentials before they can send anything.
type credentialed interface {
	HasCredentials() bool
}

// Observer is told about every state the pipeline enters.
type Observer func(state domain.SubmissionState, o domain.UnsignedOrder)

// Config wires a Pipeline.
type Config struct {
	Builder  *order.Builder
	Exchange crypto.ExchangeDomain
	Poster   OrderPoster
	Logger   *slog.Logger
	Observer Observer
}

// Pipeline turns intents into submitted orders. It holds no per-order
// state and never retries; a retry needs a new call, which builds a fresh
// order with a new salt.
type Pipeline struct {
	builder  *order.Builder
	exchange crypto.ExchangeDomain
	poster   OrderPoster
	logger   *slog.Logger
	observe  Observer
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Exchange == (crypto.ExchangeDomain{}) {
		cfg.Exchange = crypto.DefaultExchangeDomain()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = func(domain.SubmissionState, domain.UnsignedOrder) {}
	}
	return &Pipeline{
		builder:  cfg.Builder,
		exchange: cfg.Exchange,
		poster:   cfg.Poster,
		logger:   cfg.Logger.With(slog.String("component", "submit")),
		observe:  cfg.Observer,
	}
}

// Ready returns domain.ErrNotConfigured when the poster has no credentials
// to post with. Nothing is built in that case, so no order passes through
// the Submitted state without a request being sent.
func (p *Pipeline) Ready() error {
	if c, ok := p.poster.(credentialed); ok && !c.HasCredentials() {
		return fmt.Errorf("submit: no api credentials: %w", domain.ErrNotConfigured)
	}
	return nil
}

// Prepared is a built order together with the exact typed data a wallet is
// asked to sign.
type Prepared struct {
	Order     domain.UnsignedOrder
	TypedData apitypes.TypedData
}

// Prepare builds an order for intent, checks its identity against the
// intent's wallet, and returns the canonical message to sign.
func (p *Pipeline) Prepare(intent domain.OrderIntent) (Prepared, error) {
	return p.prepare(p.builder, intent)
}

// PrepareWith is Prepare using b in place of the pipeline's builder, e.g.
// one with a different expiration policy.
func (p *Pipeline) PrepareWith(b *order.Builder, intent domain.OrderIntent) (Prepared, error) {
	return p.prepare(b, intent)
}

func (p *Pipeline) prepare(b *order.Builder, intent domain.OrderIntent) (Prepared, error) {
	o, err := b.Build(intent)
	if err != nil {
		return Prepared{}, err
	}
	p.observe(domain.StateBuilt, o)

	if err := order.CheckIdentity(o, intent.WalletAddress, b.Funder()); err != nil {
		return Prepared{}, err
	}
	td, err := crypto.OrderTypedData(p.exchange, o)
	if err != nil {
		return Prepared{}, fmt.Errorf("submit: typed data: %w", err)
	}
	return Prepared{Order: o, TypedData: td}, nil
}

// Submit runs the whole pipeline for intent with wallet as signer. The
// intent's wallet address is replaced by the wallet's own address.
//
// If ctx is cancelled while the wallet is deciding, Submit returns
// domain.ErrSigningDeclined and nothing is sent.
func (p *Pipeline) Submit(ctx context.Context, wallet crypto.Wallet, intent domain.OrderIntent) (domain.SubmissionResult, error) {
	if err := p.Ready(); err != nil {
		return domain.SubmissionResult{}, err
	}
	intent.WalletAddress = wallet.Address()
	prep, err := p.Prepare(intent)
	if err != nil {
		return domain.SubmissionResult{State: domain.StateBuilt}, err
	}

	sig, err := wallet.SignTypedData(ctx, prep.TypedData)
	if err != nil {
		p.logger.Info("submit: signing declined", slog.String("salt", prep.Order.Salt.String()), slog.String("error", err.Error()))
		if !errors.Is(err, domain.ErrSigningDeclined) {
			err = fmt.Errorf("%w: %v", domain.ErrSigningDeclined, err)
		}
		return domain.SubmissionResult{State: domain.StateBuilt, Salt: prep.Order.Salt.String()}, err
	}

	return p.SubmitSigned(ctx, prep, sig, wallet.Address())
}

// SubmitSigned posts an order signed outside the pipeline. The signature
// must recover to signer; otherwise nothing is sent.
func (p *Pipeline) SubmitSigned(ctx context.Context, prep Prepared, signature, signer string) (domain.SubmissionResult, error) {
	if err := p.Ready(); err != nil {
		return domain.SubmissionResult{}, err
	}
	salt := prep.Order.Salt.String()
	base := domain.SubmissionResult{State: domain.StateBuilt, Salt: salt}

	recovered, err := crypto.RecoverSigner(prep.TypedData, signature)
	if err != nil {
		return base, fmt.Errorf("%w: %v", domain.ErrSigningDeclined, err)
	}
	if !strings.EqualFold(recovered, signer) {
		return base, fmt.Errorf("%w: signature recovers to %s, want %s", domain.ErrSigningDeclined, recovered, signer)
	}

	so := domain.SignedOrder{Order: prep.Order, Signature: signature}
	p.observe(domain.StateSigned, so.Order)
	if err := ctx.Err(); err != nil {
		return domain.SubmissionResult{State: domain.StateSigned, Salt: salt}, fmt.Errorf("%w: %v", domain.ErrSigningDeclined, err)
	}

	p.observe(domain.StateSubmitted, so.Order)
	ack, err := p.poster.PostOrder(ctx, so)
	res := Classify(ack, err)
	res.Salt = salt
	p.observe(res.State, so.Order)

	attrs := []any{
		slog.String("state", string(res.State)),
		slog.String("salt", salt),
		slog.String("side", so.Order.Side.String()),
		slog.String("maker", so.Order.Maker),
	}
	switch res.State {
	case domain.StateAccepted:
		p.logger.Info("submit: order accepted", append(attrs, slog.String("order_id", res.OrderID))...)
	case domain.StateRejected:
		p.logger.Warn("submit: order rejected", append(attrs, slog.String("message", res.Message))...)
	default:
		p.logger.Error("submit: order transport failure", append(attrs, slog.String("error", err.Error()))...)
	}
	return res, err
}

// Classify maps a poster outcome onto the terminal submission state.
// Errors that are neither rejections nor transport failures are treated
// as transport failures, since the venue's answer is unknown.
func Classify(ack domain.OrderAck, err error) domain.SubmissionResult {
	if err == nil {
		return domain.SubmissionResult{State: domain.StateAccepted, OrderID: ack.OrderID, Status: ack.Status}
	}
	var rej *domain.RejectionError
	if errors.As(err, &rej) {
		return domain.SubmissionResult{State: domain.StateRejected, Message: rej.Message}
	}
	if errors.Is(err, domain.ErrAuthenticationRejected) {
		return domain.SubmissionResult{State: domain.StateRejected, Message: err.Error()}
	}
	return domain.SubmissionResult{State: domain.StateTransportError, Message: err.Error()}
}
