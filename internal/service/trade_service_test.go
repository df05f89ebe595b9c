package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/notify"
	"github.com/alanyoungcy/crossarb/internal/order"
	"github.com/alanyoungcy/crossarb/internal/submit"
)

const (
	serverKey   = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	externalKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

type fakeExchange struct {
	posted    []domain.SignedOrder
	ack       domain.OrderAck
	err       error
	cancelled []string
	cancelErr error
	noCreds   bool
}

func (f *fakeExchange) PostOrder(_ context.Context, so domain.SignedOrder) (domain.OrderAck, error) {
	f.posted = append(f.posted, so)
	return f.ack, f.err
}

func (f *fakeExchange) CancelOrder(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

func (f *fakeExchange) HasCredentials() bool { return !f.noCreds }

type captureSender struct{ titles []string }

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func keyWallet(t *testing.T, key string) *crypto.KeyWallet {
	t.Helper()
	w, err := crypto.NewKeyWallet(key)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func buyIntent() domain.OrderIntent {
	return domain.OrderIntent{
		Venue:   domain.VenuePolymarket,
		TokenID: "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		Side:    domain.OrderSideBuy,
		Size:    decimal.NewFromInt(10),
		Price:   decimal.RequireFromString("0.65"),
	}
}

func newTradeService(t *testing.T, ex *fakeExchange, wallet crypto.Wallet, audit domain.AuditStore, n *notify.Notifier) *TradeService {
	t.Helper()
	b, err := order.NewBuilder("", order.DefaultExpiration)
	if err != nil {
		t.Fatal(err)
	}
	p := submit.New(submit.Config{Builder: b, Poster: ex, Logger: quietLogger()})
	return NewTradeService(TradeDeps{
		Pipeline:    p,
		Interactive: b.WithExpiration(order.InteractiveExpiration),
		Exchange:    ex,
		Wallet:      wallet,
		Audit:       audit,
		Notifier:    n,
	}, quietLogger())
}

func TestTradeAccepted(t *testing.T) {
	ex := &fakeExchange{ack: domain.OrderAck{OrderID: "0xabc", Status: "live"}}
	audit := &memAudit{}
	w := keyWallet(t, serverKey)
	svc := newTradeService(t, ex, w, audit, nil)

	res, err := svc.Trade(context.Background(), buyIntent())
	if err != nil {
		t.Fatalf("Trade() error = %v", err)
	}
	if res.State != domain.StateAccepted || res.OrderID != "0xabc" {
		t.Errorf("result = %+v", res)
	}
	if len(ex.posted) != 1 || ex.posted[0].Order.Maker != w.Address() {
		t.Fatalf("posted = %+v", ex.posted)
	}
	if len(audit.events) != 1 || audit.events[0] != "order.trade" {
		t.Fatalf("audit events = %v", audit.events)
	}
	d := audit.details[0]
	if d["state"] != "accepted" || d["order_id"] != "0xabc" || d["wallet"] != w.Address() || d["side"] != "BUY" {
		t.Errorf("audit detail = %v", d)
	}
}

func TestTradeRejectedAlerts(t *testing.T) {
	ex := &fakeExchange{err: &domain.RejectionError{Status: 400, Message: "not enough balance / allowance"}}
	sender := &captureSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, nil, 0, quietLogger())
	svc := newTradeService(t, ex, keyWallet(t, serverKey), nil, n)

	res, err := svc.Trade(context.Background(), buyIntent())
	if !errors.Is(err, domain.ErrOrderRejected) {
		t.Fatalf("Trade() error = %v, want ErrOrderRejected", err)
	}
	if res.State != domain.StateRejected || res.Message != "not enough balance / allowance" {
		t.Errorf("result = %+v", res)
	}
	if len(sender.titles) != 1 {
		t.Errorf("alerts = %v, want one rejection alert", sender.titles)
	}
}

func TestTradeRequiresWalletAndVenue(t *testing.T) {
	ex := &fakeExchange{}
	svc := newTradeService(t, ex, nil, nil, nil)
	if _, err := svc.Trade(context.Background(), buyIntent()); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("Trade() without wallet error = %v, want ErrNotConfigured", err)
	}

	svc = newTradeService(t, ex, keyWallet(t, serverKey), nil, nil)
	in := buyIntent()
	in.Venue = domain.VenueKalshi
	if _, err := svc.Trade(context.Background(), in); !errors.Is(err, domain.ErrInvalidIntent) {
		t.Errorf("Trade() on kalshi error = %v, want ErrInvalidIntent", err)
	}
	if len(ex.posted) != 0 {
		t.Error("order posted despite validation failure")
	}
}

func TestPrepareAndSubmit(t *testing.T) {
	ex := &fakeExchange{ack: domain.OrderAck{OrderID: "0xdef", Status: "live"}}
	audit := &memAudit{}
	svc := newTradeService(t, ex, nil, audit, nil)
	ext := keyWallet(t, externalKey)

	in := buyIntent()
	in.WalletAddress = ext.Address()
	before := time.Now()
	prep, err := svc.Prepare(context.Background(), in)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if prep.ID == "" || prep.Maker != ext.Address() || prep.TypedData.PrimaryType != "Order" {
		t.Fatalf("prepared = %+v", prep)
	}
	if d := prep.ExpiresAt.Sub(before); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("expiry %v ahead, want one hour", d)
	}

	sig, err := ext.SignTypedData(context.Background(), prep.TypedData)
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitPrepared(context.Background(), prep.ID, sig)
	if err != nil {
		t.Fatalf("SubmitPrepared() error = %v", err)
	}
	if res.State != domain.StateAccepted || res.Salt != prep.Salt {
		t.Errorf("result = %+v", res)
	}
	if len(ex.posted) != 1 || ex.posted[0].Signature != sig {
		t.Error("signed order not posted")
	}

	if _, err := svc.SubmitPrepared(context.Background(), prep.ID, sig); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second SubmitPrepared() error = %v, want ErrNotFound", err)
	}
	if len(ex.posted) != 1 {
		t.Error("prepared order posted twice")
	}
}

func TestSubmitPreparedWrongSigner(t *testing.T) {
	ex := &fakeExchange{}
	svc := newTradeService(t, ex, nil, nil, nil)
	ext := keyWallet(t, externalKey)
	other := keyWallet(t, serverKey)

	in := buyIntent()
	in.WalletAddress = ext.Address()
	prep, err := svc.Prepare(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	sig, _ := other.SignTypedData(context.Background(), prep.TypedData)

	_, err = svc.SubmitPrepared(context.Background(), prep.ID, sig)
	if !errors.Is(err, domain.ErrSigningDeclined) {
		t.Errorf("error = %v, want ErrSigningDeclined", err)
	}
	if len(ex.posted) != 0 {
		t.Error("order with foreign signature was posted")
	}
}

func TestCancelAudited(t *testing.T) {
	ex := &fakeExchange{cancelErr: &domain.RejectionError{Status: 400, Message: "order not found"}}
	audit := &memAudit{}
	svc := newTradeService(t, ex, nil, audit, nil)

	err := svc.Cancel(context.Background(), "0x1")
	if err == nil || !strings.Contains(err.Error(), "order not found") {
		t.Errorf("Cancel() error = %v", err)
	}
	if len(audit.events) != 1 || audit.events[0] != "order.cancel" || audit.details[0]["ok"] != false {
		t.Errorf("audit = %v %v", audit.events, audit.details)
	}
}

func TestPendingOrdersExpire(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := newPendingOrders(func() time.Time { return now })

	p.put("a", pendingOrder{expiresAt: now.Add(time.Minute)})
	p.put("b", pendingOrder{expiresAt: now.Add(time.Hour)})

	now = now.Add(2 * time.Minute)
	if _, ok := p.take("a"); ok {
		t.Error("expired entry was returned")
	}
	p.put("c", pendingOrder{expiresAt: now.Add(time.Hour)})
	if p.len() != 2 {
		t.Errorf("len = %d, want 2", p.len())
	}
	if _, ok := p.take("b"); !ok {
		t.Error("live entry missing")
	}
}

func TestTradeWithoutCredentials(t *testing.T) {
	ex := &fakeExchange{noCreds: true}
	audit := &memAudit{}
	sender := &captureSender{}
	n := notify.NewNotifier([]notify.Sender{sender}, nil, 0, quietLogger())
	svc := newTradeService(t, ex, keyWallet(t, serverKey), audit, n)

	res, err := svc.Trade(context.Background(), buyIntent())
	if !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("Trade() error = %v, want ErrNotConfigured", err)
	}
	if res.State != "" {
		t.Errorf("state = %q, want none", res.State)
	}

	ext := keyWallet(t, externalKey)
	in := buyIntent()
	in.WalletAddress = ext.Address()
	if _, err := svc.Prepare(context.Background(), in); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("Prepare() error = %v, want ErrNotConfigured", err)
	}
	if err := svc.Cancel(context.Background(), "0x1"); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("Cancel() error = %v, want ErrNotConfigured", err)
	}

	if len(ex.posted) != 0 || len(ex.cancelled) != 0 {
		t.Errorf("exchange called: posted %d, cancelled %d", len(ex.posted), len(ex.cancelled))
	}
	if len(audit.events) != 0 {
		t.Errorf("audit events = %v, want none", audit.events)
	}
	if len(sender.titles) != 0 {
		t.Errorf("alerts sent = %v, want none", sender.titles)
	}
}

func TestSubmitPreparedKeptWhileCredentialsMissing(t *testing.T) {
	ex := &fakeExchange{ack: domain.OrderAck{OrderID: "0x9", Status: "live"}}
	svc := newTradeService(t, ex, nil, nil, nil)
	ext := keyWallet(t, externalKey)

	in := buyIntent()
	in.WalletAddress = ext.Address()
	prep, err := svc.Prepare(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := ext.SignTypedData(context.Background(), prep.TypedData)
	if err != nil {
		t.Fatal(err)
	}

	ex.noCreds = true
	if _, err := svc.SubmitPrepared(context.Background(), prep.ID, sig); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("SubmitPrepared() error = %v, want ErrNotConfigured", err)
	}

	ex.noCreds = false
	res, err := svc.SubmitPrepared(context.Background(), prep.ID, sig)
	if err != nil || res.State != domain.StateAccepted {
		t.Errorf("SubmitPrepared() after credentials = %+v, %v", res, err)
	}
}

func TestPreparedOrderSignedAfterJSONRoundTrip(t *testing.T) {
	ex := &fakeExchange{ack: domain.OrderAck{OrderID: "0x77", Status: "live"}}
	svc := newTradeService(t, ex, nil, nil, nil)
	ext := keyWallet(t, externalKey)

	in := buyIntent()
	in.WalletAddress = ext.Address()
	prep, err := svc.Prepare(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(prep)
	if err != nil {
		t.Fatal(err)
	}
	var decoded PreparedOrder
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if got := decoded.TypedData.Message["salt"]; got != prep.Salt {
		t.Errorf("decoded salt = %v (%T), want %s", got, got, prep.Salt)
	}
	if got := decoded.TypedData.Message["tokenId"]; got != in.TokenID {
		t.Errorf("decoded tokenId = %v (%T), want %s", got, got, in.TokenID)
	}

	sig, err := ext.SignTypedData(context.Background(), decoded.TypedData)
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitPrepared(context.Background(), decoded.ID, sig)
	if err != nil {
		t.Fatalf("SubmitPrepared() error = %v", err)
	}
	if res.State != domain.StateAccepted {
		t.Errorf("state = %s, want accepted", res.State)
	}
}
