package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/storefront/internal/cart"
	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/internal/gateway"
	"github.com/avelora/storefront/pkg/clock"
	apperrors "github.com/avelora/storefront/pkg/errors"
)

// Service owns the live reservation sessions, one orchestrator per session.
// Sessions are held only in memory and dropped once their terminal outcome
// has been delivered to the client.
type Service struct {
	gateway      gateway.Client
	resyncer     cart.Resyncer
	events       EventPublisher
	clock        clock.Clock
	logger       *slog.Logger
	tickInterval time.Duration

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
}

// NewService creates the checkout session service.
func NewService(gw gateway.Client, resyncer cart.Resyncer, events EventPublisher, clk clock.Clock, tickInterval time.Duration, logger *slog.Logger) *Service {
	return &Service{
		gateway:      gw,
		resyncer:     resyncer,
		events:       events,
		clock:        clk,
		logger:       logger,
		tickInterval: tickInterval,
		sessions:     make(map[string]*Orchestrator),
	}
}

// SubmitResult is what the client needs to open the hosted payment page.
type SubmitResult struct {
	SessionID      string     `json:"session_id"`
	OrderIDs       []string   `json:"order_ids"`
	PaymentPageURL string     `json:"payment_page_url"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Submit creates a reservation for the request and registers the session.
// Validation and creation failures surface to the caller with nothing
// registered and no payment page to open.
func (s *Service) Submit(ctx context.Context, userID string, req *domain.CheckoutRequest) (*SubmitResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	o := NewOrchestrator(s.gateway, s.resyncer, s.events, s.clock, s.logger)

	sessionID := uuid.New().String()
	session, err := o.Start(ctx, sessionID, userID, req, s.tickInterval)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sessionID] = o
	s.mu.Unlock()
	sessionsInFlight.Inc()

	return &SubmitResult{
		SessionID:      sessionID,
		OrderIDs:       session.OrderIDs,
		PaymentPageURL: session.PaymentPageURL,
		ExpiresAt:      session.ExpiresAt,
	}, nil
}

// HandleNavigation feeds a hosted-page navigation target to the session's
// observer. A nil outcome means the target was irrelevant and the session is
// still awaiting payment. A terminal outcome is delivered exactly here: the
// session is dropped from memory on the way out.
func (s *Service) HandleNavigation(ctx context.Context, sessionID, target string) (*domain.Outcome, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	outcome, err := o.HandleNavigation(ctx, target)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		s.drop(sessionID)
	}
	return outcome, nil
}

// HandleUserExit handles the user explicitly dismissing the payment page.
func (s *Service) HandleUserExit(ctx context.Context, sessionID string) (*domain.Outcome, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	outcome, err := o.HandleUserExit(ctx)
	if err != nil {
		return nil, err
	}
	s.drop(sessionID)
	return outcome, nil
}

// SessionState is a point-in-time view of a live session for the client UI.
type SessionState struct {
	SessionID   string          `json:"session_id"`
	Status      string          `json:"status"`
	OrderIDs    []string        `json:"order_ids"`
	RemainingMS *int64          `json:"remaining_ms,omitempty"`
	Outcome     *domain.Outcome `json:"outcome,omitempty"`
}

// GetState returns the session's current state, including the remaining hold
// time when a hold was granted. If the session already reached a terminal
// outcome (e.g. the countdown expired while the client was away), the outcome
// is delivered and the session dropped.
func (s *Service) GetState(ctx context.Context, sessionID string) (*SessionState, error) {
	o, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	session := o.Session()
	state := &SessionState{
		SessionID: sessionID,
		Status:    session.Status,
		OrderIDs:  session.OrderIDs,
	}

	if outcome := o.terminalOutcome(); outcome != nil {
		state.Outcome = outcome
		s.drop(sessionID)
		return state, nil
	}

	if remaining, ok := o.Remaining(); ok {
		ms := remaining.Milliseconds()
		state.RemainingMS = &ms
	}

	return state, nil
}

// Shutdown tears down all live sessions: countdown timers stop and
// still-active holds are released best-effort. Holds that slip through are
// expired server-side.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	orchestrators := make([]*Orchestrator, 0, len(s.sessions))
	for id, o := range s.sessions {
		orchestrators = append(orchestrators, o)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, o := range orchestrators {
		o.Teardown()
		sessionsInFlight.Dec()
	}

	if len(orchestrators) > 0 {
		s.logger.InfoContext(ctx, "released sessions on shutdown",
			slog.Int("count", len(orchestrators)),
		)
	}
}

func (s *Service) lookup(sessionID string) (*Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("checkout session", sessionID)
	}
	return o, nil
}

func (s *Service) drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		sessionsInFlight.Dec()
	}
}
