package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/crypto"
	"github.com/alanyoungcy/crossarb/internal/domain"
)

// DefaultClobURL is the public CLOB API root.
const DefaultClobURL = "https://clob.polymarket.com"

// ClobConfig configures a ClobClient.
type ClobConfig struct {
	BaseURL string
	// Timeout bounds every request. The order endpoint has been seen to hang
	// under load, so it must be finite.
	Timeout time.Duration
	// Wallet is the identity sent in POLY_ADDRESS and used to derive API
	// credentials. Public reads work without it.
	Wallet  crypto.Wallet
	ChainID int64
	Creds   *crypto.HMACAuth
	Logger  *slog.Logger
}

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API: public book and price reads, order submission and
// cancellation, and API credential derivation.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	wallet     crypto.Wallet
	chainID    int64
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	hmacAuth *crypto.HMACAuth
}

// NewClobClient creates a new CLOB REST client.
func NewClobClient(cfg ClobConfig) *ClobClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClobURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = crypto.PolygonChainID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ClobClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		wallet:     cfg.Wallet,
		chainID:    cfg.ChainID,
		hmacAuth:   cfg.Creds,
		logger:     cfg.Logger.With(slog.String("component", "clob")),
		now:        time.Now,
	}
}

// SetCredentials replaces the L2 credentials used for private requests.
func (c *ClobClient) SetCredentials(h *crypto.HMACAuth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hmacAuth = h
}

// HasCredentials reports whether complete L2 credentials are loaded.
func (c *ClobClient) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hmacAuth.Complete()
}

// --------------------------------------------------------------------------
// Public reads
// --------------------------------------------------------------------------

// GetOrderBook returns the order book for one outcome token.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doPublic(ctx, "/book?"+params.Encode())
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	if book.AssetID == "" {
		book.AssetID = tokenID
	}
	return book.ToDomainSnapshot(), nil
}

// GetPrice returns the best price for tokenID on side.
func (c *ClobClient) GetPrice(ctx context.Context, tokenID string, side domain.OrderSide) (domain.Quote, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side.String())

	body, err := c.doPublic(ctx, "/price?"+params.Encode())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: get price %s: %w", tokenID, err)
	}
	var p APIPrice
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}
	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: parse price %q: %w", p.Price, err)
	}
	return domain.Quote{TokenID: tokenID, Side: side, Price: price}, nil
}

// GetMarket returns CLOB metadata for one market by condition id.
func (c *ClobClient) GetMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	body, err := c.doPublic(ctx, "/markets/"+url.PathEscape(conditionID))
	if err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/clob: get market %s: %w", conditionID, err)
	}
	var m APIClobMarket
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.Market{}, fmt.Errorf("polymarket/clob: decode market: %w", err)
	}
	return m.ToDomainMarket(), nil
}

// --------------------------------------------------------------------------
// Private endpoints
// --------------------------------------------------------------------------

// PostOrder submits a signed order. The returned error is classified:
// *domain.RejectionError for a structured refusal, *domain.TransportError
// for a network failure, timeout, or unparseable response. PostOrder never
// retries.
func (c *ClobClient) PostOrder(ctx context.Context, so domain.SignedOrder) (domain.OrderAck, error) {
	const op = "post order"

	status, body, err := c.doAuthenticated(ctx, op, http.MethodPost, "/order", NewPostOrderRequest(so))
	if err != nil {
		return domain.OrderAck{}, err
	}
	if status < 200 || status >= 300 {
		return domain.OrderAck{}, classifyError(op, status, body)
	}

	var result APIOrderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.OrderAck{}, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.OrderID == "" {
		if result.ErrorMsg != "" {
			return domain.OrderAck{}, &domain.RejectionError{Status: status, Message: result.ErrorMsg}
		}
		return domain.OrderAck{}, &domain.TransportError{Op: op, Err: errors.New("response carries no order id")}
	}
	return result.ToDomainAck(), nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	const op = "cancel order"

	body := map[string]string{"orderID": orderID}
	status, respBody, err := c.doAuthenticated(ctx, op, http.MethodDelete, "/order", body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return classifyError(op, status, respBody)
	}

	var result struct {
		Canceled    []string          `json:"canceled"`
		NotCanceled map[string]string `json:"not_canceled"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if reason, ok := result.NotCanceled[orderID]; ok {
		return &domain.RejectionError{Status: status, Message: reason}
	}
	return nil
}

// DeriveAPIKey performs the CLOB L1 auth flow: the wallet signs a ClobAuth
// typed-data message, which is sent with L1 headers to the derive-api-key
// endpoint. On success the credentials are installed on the client and
// returned.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (*crypto.HMACAuth, error) {
	const op = "derive api key"
	if c.wallet == nil {
		return nil, errors.New("polymarket/clob: derive api key: no wallet configured")
	}

	address := c.wallet.Address()
	timestamp := c.now().Unix()
	nonce := int64(0)

	sig, err := c.wallet.SignTypedData(ctx, crypto.ClobAuthTypedData(address, c.chainID, timestamp, nonce))
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set(crypto.HeaderAddress, address)
	req.Header.Set(crypto.HeaderSignature, sig)
	req.Header.Set(crypto.HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(crypto.HeaderNonce, strconv.FormatInt(nonce, 10))

	status, body, err := c.send(op, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.logAuthRejection(classifyError(op, status, body), timestamp)
	}

	var creds APICreds
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	h := &crypto.HMACAuth{Key: creds.APIKey, Secret: creds.Secret, Passphrase: creds.Passphrase}
	if !h.Complete() {
		return nil, &domain.TransportError{Op: op, Err: errors.New("incomplete credentials in response")}
	}
	c.SetCredentials(h)
	c.logger.Info("clob: derived api credentials", slog.String("creds", h.String()))
	return h, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doAuthenticated builds, signs (HMAC), and sends a private request. It
// returns the status and raw body; only transport failures are errors.
func (c *ClobClient) doAuthenticated(ctx context.Context, op, method, path string, body any) (int, []byte, error) {
	c.mu.RLock()
	auth := c.hmacAuth
	c.mu.RUnlock()
	if !auth.Complete() {
		return 0, nil, fmt.Errorf("polymarket/clob: %s: no api credentials: %w", op, domain.ErrNotConfigured)
	}
	if c.wallet == nil {
		return 0, nil, fmt.Errorf("polymarket/clob: %s: no wallet configured", op)
	}

	var bodyStr string
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("polymarket/clob: %s: marshal request body: %w", op, err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("polymarket/clob: %s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ts := c.now().Unix()
	headers, err := auth.L2HeadersAt(c.wallet.Address(), method, path, bodyStr, ts)
	if err != nil {
		return 0, nil, fmt.Errorf("polymarket/clob: %s: sign request: %w", op, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	status, respBody, err := c.send(op, req)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return status, respBody, c.logAuthRejection(classifyError(op, status, respBody), ts)
	}
	return status, respBody, nil
}

// logAuthRejection logs credential refusals. Timestamp complaints are
// logged at warn with the timestamp that was sent.
func (c *ClobClient) logAuthRejection(err error, ts int64) error {
	var rej *domain.RejectionError
	if !errors.As(err, &rej) || !rej.Auth {
		return err
	}
	if strings.Contains(strings.ToLower(rej.Message), "timestamp") {
		c.logger.Warn("clob: request timestamp rejected by venue",
			slog.Int64("timestamp", ts),
			slog.Int("status", rej.Status),
			slog.String("message", rej.Message),
		)
	} else {
		c.logger.Error("clob: authentication rejected",
			slog.Int("status", rej.Status),
			slog.String("message", rej.Message),
		)
	}
	return err
}

// send executes req. Failures to reach the venue or read its answer are
// reported as *domain.TransportError.
func (c *ClobClient) send(op string, req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &domain.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

// doPublic sends an unauthenticated GET request.
func (c *ClobClient) doPublic(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.send("get "+path, req)
	if err != nil {
		return nil, err
	}
	if err := checkHTTPStatus(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// classifyError maps a non-2xx response from a private endpoint. A JSON
// body with error or errorMsg is a rejection, carried verbatim; anything
// else is a transport error.
func classifyError(op string, status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message() == "" {
		return &domain.TransportError{
			Op:  op,
			Err: fmt.Errorf("HTTP %d with unparseable body: %s", status, truncate(body, 200)),
		}
	}
	return &domain.RejectionError{
		Status:  status,
		Message: apiErr.Message(),
		Auth:    status == http.StatusUnauthorized || status == http.StatusForbidden,
	}
}

// checkHTTPStatus maps non-2xx status codes on public endpoints to domain
// errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := truncate(body, 200)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
