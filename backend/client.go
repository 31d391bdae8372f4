package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lunef/agent-go/logger"
	"github.com/lunef/agent-go/metrics"
)

// Per-operation timeouts. Lookups and quotes are fast; execution waits on a
// blockchain transaction and video generation on an external renderer.
const (
	lookupTimeout  = 10 * time.Second
	balanceTimeout = 15 * time.Second
	previewTimeout = 15 * time.Second
	executeTimeout = 60 * time.Second
	videoTimeout   = 120 * time.Second
)

const userIDHeader = "X-User-Id"

// Client performs authenticated HTTP calls against the Lunef payment backend.
// Every call is a single attempt: retry policy is deliberately left to the
// orchestrating agent and the backend's own idempotency guarantees.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
	metrics    metrics.Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom underlying HTTP client. Per-operation
// deadlines are applied via context, so the client's own Timeout should
// usually stay zero.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithMetrics sets the call recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    trimTrailingSlash(baseURL),
		httpClient: &http.Client{},
		log:        logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveTag resolves a normalized (no "@", lowercase) tag to a wallet
// address. Normalization and empty-tag rejection happen in the tool layer.
func (c *Client) ResolveTag(ctx context.Context, tag string) (*TagResolution, error) {
	var raw struct {
		WalletAddress string `json:"wallet_address"`
		DisplayName   string `json:"display_name"`
	}
	err := c.doJSON(ctx, "resolve_tag", http.MethodGet, "/api/v1/users/tag/"+url.PathEscape(tag), nil, nil, "", lookupTimeout, &raw)
	if err != nil {
		return nil, mapError(err, "Request timed out. Please try again.", map[int]string{
			http.StatusNotFound: fmt.Sprintf("Tag @%s not found. Please check the spelling.", tag),
		}, "Failed to resolve tag")
	}
	display := raw.DisplayName
	if display == "" {
		display = tag
	}
	return &TagResolution{Tag: "@" + tag, Address: raw.WalletAddress, DisplayName: display}, nil
}

// FiatToGAS quotes a fiat amount in GAS. Currency and amount are validated
// by the caller before any network call is made.
func (c *Client) FiatToGAS(ctx context.Context, currency string, amount float64) (*Conversion, error) {
	query := url.Values{}
	query.Set("fiat", currency)
	query.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	conv := &Conversion{FiatAmount: amount, FiatCurrency: currency}
	err := c.doJSON(ctx, "convert_fiat_to_gas", http.MethodGet, "/api/v1/rates/fiat-to-gas", query, nil, "", lookupTimeout, conv)
	if err != nil {
		return nil, mapError(err, "Conversion service timed out", nil, "Conversion failed")
	}
	return conv, nil
}

// Balance returns the caller's wallet balance. The caller is identified by
// the X-User-Id header.
func (c *Client) Balance(ctx context.Context, userID string) (*Balance, error) {
	bal := &Balance{}
	err := c.doJSON(ctx, "check_balance", http.MethodGet, "/api/v1/wallets/balance", nil, nil, userID, balanceTimeout, bal)
	if err != nil {
		return nil, mapError(err, "Balance check timed out. The blockchain may be slow.", map[int]string{
			http.StatusNotFound: "Wallet not found. Please create a wallet first.",
		}, "Failed to check balance")
	}
	return bal, nil
}

// CreatePreview asks the backend to quote a payment. The returned preview is
// time-bounded and must be executed or it expires server-side.
func (c *Client) CreatePreview(ctx context.Context, userID string, req *PreviewRequest) (*PaymentPreview, error) {
	preview := &PaymentPreview{}
	err := c.doJSON(ctx, "create_payment_preview", http.MethodPost, "/api/v1/payments/preview", nil, req, userID, previewTimeout, preview)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			// Backend validation messages are user-facing; pass them through.
			if apiErr.Message == "" {
				apiErr.Message = "Invalid payment request"
			}
			return nil, apiErr
		}
		return nil, mapError(err, "Payment preview timed out", map[int]string{
			http.StatusForbidden: "Insufficient balance for this payment",
		}, "Failed to create preview")
	}
	preview.ToTag = req.ToTag
	preview.FiatAmount = req.FiatAmount
	preview.FiatCurrency = req.FiatCurrency
	if preview.EstimatedFee == "" {
		preview.EstimatedFee = "0.001"
	}
	preview.Status = PreviewAwaitingConfirmation
	return preview, nil
}

// ExecutePayment executes a previously previewed payment. A timeout here is
// ambiguous: the transaction may still land, so the error is distinguishable
// and the caller must not retry.
func (c *Client) ExecutePayment(ctx context.Context, userID, previewID string) (*TransactionResult, error) {
	tx := &TransactionResult{}
	err := c.doJSON(ctx, "execute_payment", http.MethodPost, "/api/v1/payments/"+url.PathEscape(previewID)+"/execute", nil, nil, userID, executeTimeout, tx)
	if err != nil {
		return nil, mapError(err, "The payment was submitted but confirmation timed out. Please check your transaction history.", map[int]string{
			http.StatusNotFound:  "Payment preview expired or not found. Please start a new payment.",
			http.StatusForbidden: "Insufficient balance or payment not confirmed",
			http.StatusConflict:  "Payment already executed",
		}, "Payment failed")
	}
	if tx.Status == "" {
		tx.Status = "confirmed"
	}
	return tx, nil
}

// GenerateVideo requests AI video generation. The backend negotiates the
// x402 machine-to-machine payment itself; a 402 surfacing here means that
// negotiation failed.
func (c *Client) GenerateVideo(ctx context.Context, userID string, req *VideoRequest) (*VideoResult, error) {
	video := &VideoResult{}
	err := c.doJSON(ctx, "generate_video", http.MethodPost, "/api/v1/content/video/generate", nil, req, userID, videoTimeout, video)
	if err != nil {
		return nil, mapError(err, "Video generation is taking longer than expected. It will be ready soon - check your content library.", map[int]string{
			http.StatusPaymentRequired: "Video generation requires payment. Please ensure you have sufficient balance.",
			http.StatusForbidden:       "Insufficient GAS balance for video generation",
			http.StatusTooManyRequests: "Rate limited. Please try again in a few minutes.",
		}, "Video generation failed")
	}
	return video, nil
}

// doJSON issues one HTTP request with a per-operation deadline and decodes a
// 2xx JSON body into out. Non-2xx responses become *APIError carrying the
// backend's message when one is present; deadline hits become *TimeoutError.
func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body interface{}, userID string, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = bytes.NewReader(b)
	} else {
		payload = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.record(op, "timeout", start)
			c.log.Warn("backend call timed out", map[string]any{"operation": op, "timeout": timeout.String()})
			return &TimeoutError{Operation: op}
		}
		c.record(op, "network_error", start)
		c.log.Error("backend call failed", map[string]any{"operation": op, "error": err.Error()})
		return fmt.Errorf("%s: network error: %w", op, err)
	}
	defer resp.Body.Close()

	c.record(op, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Message
		if msg == "" {
			msg = errBody.Error
		}
		c.log.Warn("backend call rejected", map[string]any{"operation": op, "status": resp.StatusCode, "message": msg})
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) record(op, status string, start time.Time) {
	labels := map[string]string{"status": status}
	c.metrics.IncCounter(op, labels)
	c.metrics.ObserveLatency(op, time.Since(start), labels)
}

// mapError rewrites raw transport/status errors into the user-facing
// messages spoken back to the caller. Known status codes get their specific
// message; anything else keeps the status code for debugging.
func mapError(err error, timeoutMsg string, statusMsgs map[int]string, genericPrefix string) error {
	var tErr *TimeoutError
	if errors.As(err, &tErr) {
		tErr.Message = timeoutMsg
		return tErr
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := statusMsgs[apiErr.StatusCode]; ok {
			apiErr.Message = msg
		} else {
			apiErr.Message = fmt.Sprintf("%s: %d", genericPrefix, apiErr.StatusCode)
		}
		return apiErr
	}
	return err
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
