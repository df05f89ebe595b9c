package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/service"
)

// TradeService defines the methods that the trade handler requires from the
// service layer.
type TradeService interface {
	WalletAddress() string
	Trade(ctx context.Context, intent domain.OrderIntent) (domain.SubmissionResult, error)
	Prepare(ctx context.Context, intent domain.OrderIntent) (service.PreparedOrder, error)
	SubmitPrepared(ctx context.Context, id, signature string) (domain.SubmissionResult, error)
	Cancel(ctx context.Context, orderID string) error
}

// OrderHandler serves the trade endpoints.
type OrderHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(trades TradeService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		trades: trades,
		logger: logger,
	}
}

// intentRequest is the JSON form of a trade intent. Size and price accept
// JSON numbers or decimal strings.
type intentRequest struct {
	Venue         string          `json:"venue"`
	TokenID       string          `json:"outcome_token_id"`
	Side          string          `json:"side"`
	Size          decimal.Decimal `json:"size"`
	Price         decimal.Decimal `json:"price"`
	WalletAddress string          `json:"wallet_address"`
}

func (req intentRequest) intent() (domain.OrderIntent, error) {
	side, ok := domain.ParseOrderSide(strings.TrimSpace(req.Side))
	if !ok {
		return domain.OrderIntent{}, domain.InvalidIntentf("side must be buy or sell, got %q", req.Side)
	}
	var venue domain.Venue
	if req.Venue != "" {
		v, ok := domain.ParseVenue(req.Venue)
		if !ok {
			return domain.OrderIntent{}, domain.InvalidIntentf("unknown venue %q", req.Venue)
		}
		venue = v
	}
	return domain.OrderIntent{
		Venue:         venue,
		TokenID:       req.TokenID,
		Side:          side,
		Size:          req.Size,
		Price:         req.Price,
		WalletAddress: req.WalletAddress,
	}, nil
}

// tradeResponse is a submission result plus the error that ended it, if any.
type tradeResponse struct {
	domain.SubmissionResult
	Error string `json:"error,omitempty"`
}

// writeResult picks the status from the terminal state: 200 accepted, 422
// rejected by the venue, 502 transport failure. Failures before submission
// follow statusFor.
func (h *OrderHandler) writeResult(w http.ResponseWriter, r *http.Request, res domain.SubmissionResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, tradeResponse{SubmissionResult: res})
		return
	}
	switch res.State {
	case domain.StateRejected:
		writeJSON(w, http.StatusUnprocessableEntity, tradeResponse{SubmissionResult: res, Error: err.Error()})
	case domain.StateTransportError:
		writeJSON(w, http.StatusBadGateway, tradeResponse{SubmissionResult: res, Error: err.Error()})
	default:
		writeServiceError(w, r, h.logger, err, "failed to submit order")
	}
}

// Trade builds, signs with the server wallet, and submits an order.
// POST /api/trade
func (h *OrderHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	intent, err := req.intent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.trades.Trade(r.Context(), intent)
	h.writeResult(w, r, res, err)
}

// Prepare builds an unsigned order and returns the typed data an external
// wallet must sign.
// POST /api/trade/prepare
func (h *OrderHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet_address is required")
		return
	}
	intent, err := req.intent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prep, err := h.trades.Prepare(r.Context(), intent)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to prepare order")
		return
	}
	writeJSON(w, http.StatusCreated, prep)
}

type submitRequest struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
}

// Submit posts a prepared order with its external signature.
// POST /api/trade/submit
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "id and signature are required")
		return
	}

	res, err := h.trades.SubmitPrepared(r.Context(), req.ID, req.Signature)
	h.writeResult(w, r, res, err)
}

// CancelOrder cancels a resting order by its venue id.
// DELETE /api/trade/orders/{id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.trades.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to cancel order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": id,
	})
}

// Wallet reports the server-side signing address.
// GET /api/trade/wallet
func (h *OrderHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	addr := h.trades.WalletAddress()
	writeJSON(w, http.StatusOK, map[string]any{
		"address":        addr,
		"server_signing": addr != "",
	})
}
