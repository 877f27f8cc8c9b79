package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/invobr/paysync/internal/pkg/env"
)

const defaultBaseURL = "https://api.mercadopago.com"

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
	requestTimeout     = 10 * time.Second

	breakerThreshold = 5
	breakerWindow    = 30 * time.Second
	breakerCooldown  = 30 * time.Second
)

// CredentialSource resolves the bearer token for a tenant's gateway account.
// Tenant 0 is the platform account (used for tenant resolution fallbacks).
type CredentialSource interface {
	AccessToken(ctx context.Context, tenantID uint) (string, error)
}

// Client is the MercadoPago REST client. All calls are synchronous with a
// bounded retry policy: transient errors (network, 5xx) retry with
// exponential backoff and jitter, 4xx responses surface immediately.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	creds   CredentialSource
	breaker *Breaker

	maxAttempts int
	backoffBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewClient(creds CredentialSource) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(env.GetEnv("GATEWAY_BASE_URL", defaultBaseURL), "/"),
		HTTPClient:  &http.Client{Timeout: requestTimeout},
		creds:       creds,
		breaker:     NewBreaker(breakerThreshold, breakerWindow, breakerCooldown),
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		sleep:       sleepCtx,
	}
}

// CreatePreference creates a checkout preference for the tenant.
func (c *Client) CreatePreference(ctx context.Context, tenantID uint, req PreferenceRequest) (*Preference, error) {
	body, err := c.do(ctx, tenantID, http.MethodPost, "/checkout/preferences", req)
	if err != nil {
		return nil, err
	}
	var pref Preference
	if err := json.Unmarshal(body, &pref); err != nil {
		return nil, fmt.Errorf("decode preference response: %w", err)
	}
	if strings.TrimSpace(pref.ID) == "" {
		return nil, errors.New("preference response missing id")
	}
	return &pref, nil
}

// FetchPayment returns the authoritative payment snapshot.
func (c *Client) FetchPayment(ctx context.Context, tenantID uint, paymentID string) (*PaymentSnapshot, error) {
	body, err := c.do(ctx, tenantID, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, mapNotFound(err)
	}
	var snap PaymentSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode payment %s: %w", paymentID, err)
	}
	return &snap, nil
}

// FetchMerchantOrder returns the authoritative merchant order snapshot.
func (c *Client) FetchMerchantOrder(ctx context.Context, tenantID uint, orderID string) (*MerchantOrderSnapshot, error) {
	body, err := c.do(ctx, tenantID, http.MethodGet, "/merchant_orders/"+orderID, nil)
	if err != nil {
		return nil, mapNotFound(err)
	}
	var snap MerchantOrderSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode merchant order %s: %w", orderID, err)
	}
	return &snap, nil
}

// CancelPayment asks the gateway to cancel a non-terminal payment.
func (c *Client) CancelPayment(ctx context.Context, tenantID uint, paymentID string) error {
	_, err := c.do(ctx, tenantID, http.MethodPut, "/v1/payments/"+paymentID,
		map[string]string{"status": "cancelled"})
	return mapTerminal(mapNotFound(err))
}

// RefundPayment refunds a payment, fully when amount is nil.
func (c *Client) RefundPayment(ctx context.Context, tenantID uint, paymentID string, amount *decimal.Decimal) (*RefundResult, error) {
	payload := map[string]interface{}{}
	if amount != nil {
		payload["amount"] = *amount
	}
	body, err := c.do(ctx, tenantID, http.MethodPost, "/v1/payments/"+paymentID+"/refunds", payload)
	if err != nil {
		return nil, mapTerminal(mapNotFound(err))
	}
	var res RefundResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}
	return &res, nil
}

// ExpirePreference invalidates a checkout preference so stale open tabs can
// no longer produce payments against it.
func (c *Client) ExpirePreference(ctx context.Context, tenantID uint, preferenceID string) error {
	_, err := c.do(ctx, tenantID, http.MethodPut, "/checkout/preferences/"+preferenceID,
		map[string]interface{}{
			"expires":            true,
			"expiration_date_to": time.Now().Add(-time.Minute).Format("2006-01-02T15:04:05.000-07:00"),
		})
	return mapNotFound(err)
}

func (c *Client) do(ctx context.Context, tenantID uint, method, path string, body interface{}) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	token, err := c.creds.AccessToken(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve gateway credentials for tenant %d: %w", tenantID, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, backoffDelay(c.backoffBase, attempt)); err != nil {
				return nil, err
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.breaker.Failure()
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gateway %s %s: status=%d", method, path, resp.StatusCode)
			c.breaker.Failure()
			continue
		}

		c.breaker.Success()
		if resp.StatusCode >= 400 {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: apiMessage(respBody)}
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// backoffDelay computes the delay before `attempt` (2-based): base doubling
// per attempt with +-20% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 2)
	jitter := time.Duration(rand.Int63n(int64(d)*2/5)) - d/5
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func apiMessage(body []byte) string {
	var out struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err == nil && out.Message != "" {
		return out.Message
	}
	return string(body)
}

func mapNotFound(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func mapTerminal(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusConflict:
			return ErrAlreadyTerminal
		}
	}
	return err
}
