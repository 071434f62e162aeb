package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelora/storefront/internal/domain"
	apperrors "github.com/avelora/storefront/pkg/errors"
	"github.com/avelora/storefront/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests. Both
// httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPClient talks to the commerce gateway over REST.
type HTTPClient struct {
	httpClient HTTPDoer
	baseURL    string
	logger     *slog.Logger
}

// NewHTTPClient creates a gateway client against the given base URL.
func NewHTTPClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// CreateCheckout calls POST /checkout. A non-2xx response surfaces as a
// creation error; no reservation exists in that case.
func (c *HTTPClient) CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest) (*CreateCheckoutResult, error) {
	type createRequest struct {
		UserID    string                 `json:"user_id"`
		AddressID string                 `json:"address_id"`
		CartItems []domain.CartLine      `json:"cart_items,omitempty"`
		Direct    *domain.DirectPurchase `json:"direct,omitempty"`
	}

	type createResponse struct {
		OrderIDs          []string `json:"order_ids"`
		StripeCheckoutURL string   `json:"stripe_checkout_url"`
		ExpiresAt         string   `json:"expires_at,omitempty"`
	}

	body, err := json.Marshal(createRequest{
		UserID:    userID,
		AddressID: req.AddressID,
		CartItems: req.CartItems,
		Direct:    req.Direct,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, apperrors.CreationFailed(fmt.Sprintf("gateway unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "gateway")
	}

	var createResp createResponse
	if err := json.NewDecoder(resp.Body).Decode(&createResp); err != nil {
		return nil, fmt.Errorf("decode checkout response: %w", err)
	}

	result := &CreateCheckoutResult{
		OrderIDs:       createResp.OrderIDs,
		PaymentPageURL: createResp.StripeCheckoutURL,
	}

	if createResp.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, createResp.ExpiresAt)
		if err != nil {
			// A hold with an unreadable deadline is treated as no hold; the
			// server-side expiry stays authoritative either way.
			c.logger.WarnContext(ctx, "unparseable expires_at in checkout response",
				slog.String("expires_at", createResp.ExpiresAt),
				slog.String("error", err.Error()),
			)
		} else {
			result.ExpiresAt = &expiresAt
		}
	}

	c.logger.InfoContext(ctx, "checkout created",
		slog.Int("order_count", len(result.OrderIDs)),
		slog.Bool("has_hold", result.ExpiresAt != nil),
	)

	return result, nil
}

// CancelReservation calls POST /checkout/cancel/{orderId} for each order id.
// A 410 Gone (hold already expired server-side) counts as success; the cancel
// is an idempotent no-op at that point. Other failures are collected and
// returned for the caller to log.
func (c *HTTPClient) CancelReservation(ctx context.Context, orderIDs []string) error {
	var errs []error
	for _, orderID := range orderIDs {
		if err := c.cancelOne(ctx, orderID); err != nil {
			errs = append(errs, fmt.Errorf("cancel order %s: %w", orderID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *HTTPClient) cancelOne(ctx context.Context, orderID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/cancel/"+orderID, http.NoBody)
	if err != nil {
		return fmt.Errorf("create cancel request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		// Already expired or released server-side.
		c.logger.DebugContext(ctx, "cancel was a no-op, hold already gone",
			slog.String("order_id", orderID),
			slog.Int("status", resp.StatusCode),
		)
		return nil
	default:
		return httpclient.ParseResponseError(resp, "gateway")
	}
}

// GetSettlementStatus calls GET /payment/status-by-session/{sessionId}.
func (c *HTTPClient) GetSettlementStatus(ctx context.Context, sessionRef string) (*SettlementStatus, error) {
	type statusResponse struct {
		Status      string `json:"status"`
		DeclineCode string `json:"decline_code,omitempty"`
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payment/status-by-session/"+sessionRef, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "gateway")
	}

	var statusResp statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return &SettlementStatus{
		Status:      statusResp.Status,
		DeclineCode: statusResp.DeclineCode,
	}, nil
}
