package domain

import (
	"strings"
	"time"
)

// Reservation session status constants.
const (
	StatusActive    = "active"
	StatusSettling  = "settling"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// ReservationSession is the live state created by a checkout call. It exists
// only in memory: it is created when the gateway grants the reservation and
// dropped once the terminal transition completes.
type ReservationSession struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrderIDs       []string   `json:"order_ids"`
	PaymentPageURL string     `json:"payment_page_url"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsTerminal returns true once the session has left the active state for good.
func (s *ReservationSession) IsTerminal() bool {
	return s.Status == StatusSettling || s.Status == StatusCancelled || s.Status == StatusExpired
}

// HasHold reports whether the server granted a bounded hold for this session.
// Sessions without a hold never auto-expire client-side.
func (s *ReservationSession) HasHold() bool {
	return s.ExpiresAt != nil
}

// Remaining returns the time left until expiry at the given instant, clamped
// to zero. The second return value is false when no hold was granted.
func (s *ReservationSession) Remaining(now time.Time) (time.Duration, bool) {
	if s.ExpiresAt == nil {
		return 0, false
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// JoinedOrderIDs returns the session's order identifiers joined with commas,
// the format the success screen receives.
func (s *ReservationSession) JoinedOrderIDs() string {
	return strings.Join(s.OrderIDs, ",")
}
