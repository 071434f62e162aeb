// Package checkout implements the client-side state machine that drives a
// single external payment attempt to a terminal outcome: it creates the
// reservation, runs the countdown against the hold's expiry, classifies how
// the hosted payment page was exited, releases the reservation at most once,
// and resynchronizes cart state after every terminal transition.
package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avelora/storefront/internal/cart"
	"github.com/avelora/storefront/internal/countdown"
	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/internal/gateway"
	"github.com/avelora/storefront/internal/guard"
	"github.com/avelora/storefront/internal/observer"
	"github.com/avelora/storefront/pkg/clock"
)

// Orchestrator states.
type State string

const (
	StateIdle            State = "idle"
	StateCreating        State = "creating"
	StateAwaitingPayment State = "awaiting_payment"
	StateTerminal        State = "terminal"
)

// teardownTimeout bounds the cancel + resync work done when a session ends
// outside of a client request (timer expiry, shutdown).
const teardownTimeout = 10 * time.Second

// EventPublisher publishes session lifecycle events. Publishing is advisory:
// failures are logged and never block a transition.
type EventPublisher interface {
	PublishSessionCreated(ctx context.Context, session *domain.ReservationSession) error
	PublishSessionSettled(ctx context.Context, session *domain.ReservationSession) error
	PublishSessionReleased(ctx context.Context, session *domain.ReservationSession, exit domain.ExitClassification) error
}

// Orchestrator owns one reservation session and wires the countdown timer,
// cancellation guard, and hosted-payment observer together. All transitions
// out of AWAITING_PAYMENT are serialized: the first exit path wins the
// terminal transition, and the guard's atomic consume guarantees the gateway
// cancel is invoked at most once no matter how paths race.
type Orchestrator struct {
	gateway  gateway.Client
	resyncer cart.Resyncer
	events   EventPublisher
	logger   *slog.Logger
	clock    clock.Clock

	session  *domain.ReservationSession
	guard    *guard.Guard
	timer    *countdown.Timer
	observer *observer.Observer

	mu      sync.Mutex
	state   State
	outcome *domain.Outcome
}

// NewOrchestrator creates an idle orchestrator. Start drives it to
// AWAITING_PAYMENT.
func NewOrchestrator(gw gateway.Client, resyncer cart.Resyncer, events EventPublisher, clk clock.Clock, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:  gw,
		resyncer: resyncer,
		events:   events,
		clock:    clk,
		logger:   logger,
		state:    StateIdle,
	}
}

// Start validates the request, asks the gateway to create the reservation,
// and on success opens the observer and starts the countdown. Validation
// failures surface before any gateway call; gateway failures return the
// orchestrator to idle with no session created.
func (o *Orchestrator) Start(ctx context.Context, sessionID, userID string, req *domain.CheckoutRequest, tickInterval time.Duration) (*domain.ReservationSession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return nil, errAlreadyStarted
	}

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	o.state = StateCreating

	result, err := o.gateway.CreateCheckout(ctx, userID, req)
	if err != nil {
		o.state = StateIdle
		return nil, err
	}

	o.session = &domain.ReservationSession{
		ID:             sessionID,
		UserID:         userID,
		OrderIDs:       result.OrderIDs,
		PaymentPageURL: result.PaymentPageURL,
		ExpiresAt:      result.ExpiresAt,
		Status:         domain.StatusActive,
		CreatedAt:      o.clock.Now(),
	}

	o.guard = guard.New()
	o.guard.MarkActive()

	o.observer = observer.New(o.gateway, o.logger)

	o.timer = countdown.New(result.ExpiresAt, o.clock, tickInterval, o.onExpiry)
	o.timer.Start()

	o.state = StateAwaitingPayment

	if err := o.events.PublishSessionCreated(ctx, o.session); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish session_created event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.InfoContext(ctx, "reservation session created",
		slog.String("session_id", sessionID),
		slog.String("user_id", userID),
		slog.Int("order_count", len(result.OrderIDs)),
		slog.Bool("has_hold", result.ExpiresAt != nil),
	)

	session := *o.session
	return &session, nil
}

func validateRequest(req *domain.CheckoutRequest) error {
	if req == nil {
		return errNoRequest
	}
	if req.AddressID == "" {
		return errNoAddress
	}
	if !req.HasItems() {
		return errEmptySelection
	}
	return nil
}

// HandleNavigation feeds one hosted-page navigation target to the observer.
// Irrelevant targets return a nil outcome. A terminal classification drives
// the terminal transition and returns the outcome the client should render.
func (o *Orchestrator) HandleNavigation(ctx context.Context, target string) (*domain.Outcome, error) {
	if outcome := o.terminalOutcome(); outcome != nil {
		return outcome, nil
	}

	exit := o.observer.Observe(ctx, target)
	if exit == nil {
		return nil, nil
	}

	if exit.Kind == domain.ExitSuccess {
		outcome := o.settleSuccess(ctx)
		return &outcome, nil
	}

	outcome := o.release(ctx, *exit)
	return &outcome, nil
}

// HandleUserExit handles the user explicitly dismissing the payment page
// before any hosted-page outcome. Idempotent: a double-tap exit performs one
// cancellation and returns the same outcome twice.
func (o *Orchestrator) HandleUserExit(ctx context.Context) (*domain.Outcome, error) {
	outcome := o.release(ctx, domain.ExitClassification{Kind: domain.ExitUserClosedPage})
	return &outcome, nil
}

// onExpiry is invoked by the countdown timer at most once. It runs detached
// from any client request, so it carries its own bounded context, and its
// cancellation and resync run to completion before the outcome is recorded
// as deliverable.
func (o *Orchestrator) onExpiry() {
	if !o.guard.ConsumeExpiry() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	o.release(ctx, domain.ExitClassification{Kind: domain.ExitTimedOut})
}

// settleSuccess handles the hosted page reaching the success path: the
// reservation settled server-side, so cancellation is suppressed forever,
// the cart is resynced, and the client is sent to the success screen with
// the session's order identifiers.
func (o *Orchestrator) settleSuccess(ctx context.Context) domain.Outcome {
	outcome, won := o.enterTerminal(domain.ExitClassification{Kind: domain.ExitSuccess})
	if !won {
		return outcome
	}

	o.guard.MarkSettledSuccess()
	o.timer.Stop()

	// Resync runs even if event publishing below fails.
	defer o.resyncer.Resync(ctx, o.session.UserID)

	if err := o.events.PublishSessionSettled(ctx, o.session); err != nil {
		o.logger.ErrorContext(ctx, "failed to publish session_settled event",
			slog.String("session_id", o.session.ID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.InfoContext(ctx, "payment settled",
		slog.String("session_id", o.session.ID),
		slog.String("order_ids", o.session.JoinedOrderIDs()),
	)

	terminalOutcomes.WithLabelValues(string(domain.ExitSuccess)).Inc()

	return outcome
}

// release drives a non-success terminal transition: consume the cancel
// intent, best-effort cancel the reservation, and always resync the cart
// afterward. The outcome is returned even when cleanup fails; the user must
// reach a terminal screen regardless.
func (o *Orchestrator) release(ctx context.Context, exit domain.ExitClassification) domain.Outcome {
	outcome, won := o.enterTerminal(exit)
	if !won {
		return outcome
	}

	o.timer.Stop()

	defer func() {
		// Always attempted after the cancel resolves, success or failure.
		o.resyncer.Resync(ctx, o.session.UserID)

		if err := o.events.PublishSessionReleased(ctx, o.session, exit); err != nil {
			o.logger.ErrorContext(ctx, "failed to publish session_released event",
				slog.String("session_id", o.session.ID),
				slog.String("error", err.Error()),
			)
		}

		terminalOutcomes.WithLabelValues(string(exit.Kind)).Inc()
	}()

	if o.guard.ConsumeCancelIntent() {
		if err := o.gateway.CancelReservation(ctx, o.session.OrderIDs); err != nil {
			// Advisory cleanup; the server expires the hold on its own.
			o.logger.WarnContext(ctx, "reservation cancel failed",
				slog.String("session_id", o.session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	o.logger.InfoContext(ctx, "reservation released",
		slog.String("session_id", o.session.ID),
		slog.String("exit", string(exit.Kind)),
	)

	return outcome
}

// enterTerminal records the terminal transition exactly once. The first exit
// path wins and runs the side effects; racing paths receive the recorded
// outcome and proceed to navigate without cancelling again.
func (o *Orchestrator) enterTerminal(exit domain.ExitClassification) (domain.Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateTerminal {
		return *o.outcome, false
	}

	o.state = StateTerminal
	o.session.Status = sessionStatusFor(exit.Kind)

	outcome := outcomeFor(exit, o.session)
	o.outcome = &outcome

	return outcome, true
}

// terminalOutcome returns the recorded outcome, or nil while the session is
// still live.
func (o *Orchestrator) terminalOutcome() *domain.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcome == nil {
		return nil
	}
	outcome := *o.outcome
	return &outcome
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a snapshot of the owned session. Nil before Start succeeds.
// The live session is only mutated under the orchestrator's lock, so callers
// get a copy rather than the shared pointer.
func (o *Orchestrator) Session() *domain.ReservationSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil
	}
	session := *o.session
	return &session
}

// Remaining returns the time left on the hold, clamped to zero. False when
// the server granted no hold.
func (o *Orchestrator) Remaining() (time.Duration, bool) {
	o.mu.Lock()
	timer := o.timer
	o.mu.Unlock()
	if timer == nil {
		return 0, false
	}
	return timer.Remaining()
}

// Teardown releases the session during coordinator shutdown: the countdown
// stops and a still-active hold is released best-effort. The server-side
// expiry remains authoritative for anything missed here.
func (o *Orchestrator) Teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	o.timer.Stop()

	if o.guard.ConsumeCancelIntent() {
		if err := o.gateway.CancelReservation(ctx, o.session.OrderIDs); err != nil {
			o.logger.WarnContext(ctx, "reservation cancel failed during teardown",
				slog.String("session_id", o.session.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func sessionStatusFor(kind domain.ExitKind) string {
	switch kind {
	case domain.ExitSuccess:
		return domain.StatusSettling
	case domain.ExitTimedOut:
		return domain.StatusExpired
	default:
		return domain.StatusCancelled
	}
}

func outcomeFor(exit domain.ExitClassification, session *domain.ReservationSession) domain.Outcome {
	switch exit.Kind {
	case domain.ExitSuccess:
		return domain.Outcome{
			Screen:   domain.ScreenSuccess,
			Status:   "SUCCESS",
			OrderIDs: session.JoinedOrderIDs(),
		}
	case domain.ExitDeclined:
		return domain.Outcome{
			Screen:      domain.ScreenFailure,
			Status:      "DECLINED",
			DeclineCode: exit.DeclineCode,
		}
	case domain.ExitTimedOut:
		return domain.Outcome{
			Screen: domain.ScreenTimeout,
			Status: "CANCELLED_TIMEOUT",
		}
	default:
		return domain.Outcome{
			Screen: domain.ScreenTimeout,
			Status: "CANCELLED_USER",
		}
	}
}
