package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kitstore/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("payment provider not configured")
	// ErrUpstream covers transport failures and non-2xx answers from the provider.
	ErrUpstream = errors.New("payment provider error")
)

const checkoutPath = "/platform/pay-ins/checkout"

// Consumer identifies the shopper at the provider
type Consumer struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
}

// CheckoutRequest is the hosted checkout payload
type CheckoutRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Country     string            `json:"country"`
	Reference   string            `json:"reference"`
	Email       string            `json:"email"`
	Description string            `json:"description"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Consumer    Consumer          `json:"consumer"`
	Metadata    map[string]string `json:"metadata"`
}

// CheckoutSession is what the provider hands back for a new checkout
type CheckoutSession struct {
	ID           string `json:"id"`
	SessionToken string `json:"sessionToken"`
	ShortLink    string `json:"shortLink"`
}

type checkoutEnvelope struct {
	Data *CheckoutSession `json:"data"`
	CheckoutSession
}

// Client talks to the payment provider's REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider client. Calls are bounded by timeout and never retried.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// BaseURL is the provider root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateCheckoutSession opens a hosted checkout for req
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "payment.CreateCheckoutSession")
	defer span.End()

	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkoutPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		util.PaymentAPILatency.WithLabelValues("checkout", "error").Observe(time.Since(start).Seconds())
		util.SpanError(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		util.PaymentAPILatency.WithLabelValues("checkout", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.PaymentAPILatency.WithLabelValues("checkout", "rejected").Observe(time.Since(start).Seconds())
		c.logger.Warn("Payment provider rejected checkout",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(raw, 512)))
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	util.PaymentAPILatency.WithLabelValues("checkout", "ok").Observe(time.Since(start).Seconds())

	var env checkoutEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	session := env.CheckoutSession
	if env.Data != nil {
		session = *env.Data
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: response without session id", ErrUpstream)
	}

	return &session, nil
}

// Ping checks the provider base URL is reachable and returns the HTTP status seen
func (c *Client) Ping(ctx context.Context) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		util.PaymentAPILatency.WithLabelValues("ping", "error").Observe(time.Since(start).Seconds())
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	util.PaymentAPILatency.WithLabelValues("ping", "ok").Observe(time.Since(start).Seconds())
	return resp.StatusCode, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
