// Package gateway wraps the commerce gateway's REST endpoints the checkout
// core depends on: checkout creation, reservation cancellation, and
// settlement-status lookup.
package gateway

import (
	"context"
	"time"

	"github.com/avelora/storefront/internal/domain"
)

// CreateCheckoutResult is the gateway's answer to a successful checkout call.
type CreateCheckoutResult struct {
	OrderIDs       []string
	PaymentPageURL string
	// ExpiresAt is nil when the server did not grant a bounded hold.
	ExpiresAt *time.Time
}

// SettlementStatus is the gateway's view of how a payment session resolved.
type SettlementStatus struct {
	Status      string
	DeclineCode string
}

// StatusFailed is the settlement status indicating a failed payment attempt.
const StatusFailed = "FAILED"

// Failed reports whether the settlement indicates a payment failure with a
// provider decline code, as opposed to a voluntary abandon.
func (s SettlementStatus) Failed() bool {
	return s.Status == StatusFailed && s.DeclineCode != ""
}

// Client is the gateway interface consumed by the checkout orchestrator.
type Client interface {
	// CreateCheckout asks the server to reserve inventory and open a payment
	// session. The caller must not open a payment page when this fails.
	CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest) (*CreateCheckoutResult, error)

	// CancelReservation releases the hold on the given orders. Best-effort:
	// the caller treats failure as non-fatal advisory cleanup.
	CancelReservation(ctx context.Context, orderIDs []string) error

	// GetSettlementStatus looks up how the payment session referenced by
	// sessionRef resolved, to distinguish a card decline from a voluntary
	// cancel.
	GetSettlementStatus(ctx context.Context, sessionRef string) (*SettlementStatus, error)
}
