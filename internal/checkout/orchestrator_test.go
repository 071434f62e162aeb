package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/internal/gateway"
	"github.com/avelora/storefront/pkg/clock"
	apperrors "github.com/avelora/storefront/pkg/errors"
)

var testRequest = &domain.CheckoutRequest{
	AddressID: "addr-1",
	CartItems: []domain.CartLine{{ItemID: "item-1", Quantity: 1}},
}

func createResult(expiresAt *time.Time) *gateway.CreateCheckoutResult {
	return &gateway.CreateCheckoutResult{
		OrderIDs:       []string{"ord-1", "ord-2"},
		PaymentPageURL: "https://pay.example.com/c/pay/cs_1",
		ExpiresAt:      expiresAt,
	}
}

func startedOrchestrator(t *testing.T, gw *mockGateway, resyncer *mockResyncer, clk clock.Clock, expiresAt *time.Time) *Orchestrator {
	t.Helper()

	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(expiresAt), nil).Once()

	o := NewOrchestrator(gw, resyncer, newQuietPublisher(), clk, newTestLogger())
	_, err := o.Start(context.Background(), "sess-1", "user-1", testRequest, time.Millisecond)
	require.NoError(t, err)
	return o
}

func TestStart_OpensSessionAndCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	expiresAt := now.Add(15 * time.Minute)

	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(&expiresAt), nil)
	gw.On("CancelReservation", mock.Anything, mock.Anything).Return(nil).Maybe()

	events := new(mockPublisher)
	events.On("PublishSessionCreated", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(gw, new(mockResyncer), events, clk, newTestLogger())
	session, err := o.Start(context.Background(), "sess-1", "user-1", testRequest, time.Millisecond)
	defer o.Teardown()

	require.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, []string{"ord-1", "ord-2"}, session.OrderIDs)
	assert.Equal(t, domain.StatusActive, session.Status)
	assert.Equal(t, StateAwaitingPayment, o.State())

	remaining, ok := o.Remaining()
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, remaining)

	events.AssertCalled(t, "PublishSessionCreated", mock.Anything, session)
}

func TestStart_ValidationFailuresSkipGateway(t *testing.T) {
	tests := []struct {
		name string
		req  *domain.CheckoutRequest
	}{
		{"nil request", nil},
		{"missing address", &domain.CheckoutRequest{CartItems: []domain.CartLine{{ItemID: "item-1", Quantity: 1}}}},
		{"empty selection", &domain.CheckoutRequest{AddressID: "addr-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(mockGateway)
			o := NewOrchestrator(gw, new(mockResyncer), newQuietPublisher(), clock.NewSystem(), newTestLogger())

			_, err := o.Start(context.Background(), "sess-1", "user-1", tt.req, time.Millisecond)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, StateIdle, o.State())
			gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestStart_GatewayFailureReturnsToIdle(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).
		Return(nil, apperrors.CreationFailed("out of stock"))

	o := NewOrchestrator(gw, new(mockResyncer), newQuietPublisher(), clock.NewSystem(), newTestLogger())

	session, err := o.Start(context.Background(), "sess-1", "user-1", testRequest, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCreationFailed)
	assert.Nil(t, session)
	assert.Equal(t, StateIdle, o.State())
	assert.Nil(t, o.Session())
}

func TestStart_SecondStartRejected(t *testing.T) {
	gw := new(mockGateway)
	resyncer := new(mockResyncer)
	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	_, err := o.Start(context.Background(), "sess-2", "user-1", testRequest, time.Millisecond)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestSuccessPath_NeverCancels(t *testing.T) {
	gw := new(mockGateway)
	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	outcome, err := o.HandleNavigation(context.Background(), "https://pay.example.com/payment/success")

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, domain.ScreenSuccess, outcome.Screen)
	assert.Equal(t, "SUCCESS", outcome.Status)
	assert.Equal(t, "ord-1,ord-2", outcome.OrderIDs)
	assert.Equal(t, domain.StatusSettling, o.Session().Status)

	gw.AssertNotCalled(t, "CancelReservation", mock.Anything, mock.Anything)
	resyncer.AssertExpectations(t)
}

func TestDeclinePath_CancelsOnceWithDeclineCode(t *testing.T) {
	gw := new(mockGateway)
	gw.On("GetSettlementStatus", mock.Anything, "cs_abc").
		Return(&gateway.SettlementStatus{Status: "FAILED", DeclineCode: "card_declined"}, nil)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	outcome, err := o.HandleNavigation(context.Background(), "https://pay.example.com/payment/cancel?session_id=cs_abc")

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, domain.ScreenFailure, outcome.Screen)
	assert.Equal(t, "DECLINED", outcome.Status)
	assert.Equal(t, "card_declined", outcome.DeclineCode)
	assert.Equal(t, domain.StatusCancelled, o.Session().Status)

	gw.AssertExpectations(t)
	resyncer.AssertExpectations(t)
}

func TestVoluntaryCancelPath(t *testing.T) {
	gw := new(mockGateway)
	gw.On("GetSettlementStatus", mock.Anything, "cs_abc").
		Return(&gateway.SettlementStatus{Status: "PENDING"}, nil)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	outcome, err := o.HandleNavigation(context.Background(), "https://pay.example.com/payment/cancel?session_id=cs_abc")

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "CANCELLED_USER", outcome.Status)

	gw.AssertExpectations(t)
}

func TestUserExit_DoubleTapCancelsOnce(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	first, err := o.HandleUserExit(context.Background())
	require.NoError(t, err)
	second, err := o.HandleUserExit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "CANCELLED_USER", first.Status)
	assert.Equal(t, first, second)

	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "CancelReservation", 1)
	resyncer.AssertNumberOfCalls(t, "Resync", 1)
}

func TestExpiry_ReleasesAndRecordsTimeoutOutcome(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	expiresAt := now.Add(15 * time.Minute)

	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clk, &expiresAt)

	clk.Advance(16 * time.Minute)

	require.Eventually(t, func() bool {
		return o.State() == StateTerminal
	}, time.Second, time.Millisecond)

	// The outcome recorded by the expiry wins over any later hosted-page
	// navigation.
	outcome, err := o.HandleNavigation(context.Background(), "https://pay.example.com/payment/success")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, domain.ScreenTimeout, outcome.Screen)
	assert.Equal(t, "CANCELLED_TIMEOUT", outcome.Status)
	assert.Equal(t, domain.StatusExpired, o.Session().Status)

	gw.AssertExpectations(t)
	gw.AssertNumberOfCalls(t, "CancelReservation", 1)
}

func TestRelease_CancelFailureStillReachesTerminalScreen(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).
		Return(errors.New("gateway unreachable")).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	outcome, err := o.HandleUserExit(context.Background())

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "CANCELLED_USER", outcome.Status)
	resyncer.AssertExpectations(t)
}

func TestHandleNavigation_IrrelevantTargetKeepsSessionLive(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, mock.Anything).Return(nil).Maybe()
	o := startedOrchestrator(t, gw, new(mockResyncer), clock.NewSystem(), nil)
	defer o.Teardown()

	outcome, err := o.HandleNavigation(context.Background(), "https://pay.example.com/3ds/challenge")

	require.NoError(t, err)
	assert.Nil(t, outcome)
	assert.Equal(t, StateAwaitingPayment, o.State())
}

func TestConcurrentExits_AtMostOneCancellation(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil)

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1")

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	const goroutines = 8

	var wg sync.WaitGroup
	outcomes := make([]*domain.Outcome, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := o.HandleUserExit(context.Background())
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		require.NotNil(t, outcome)
		assert.Equal(t, "CANCELLED_USER", outcome.Status)
	}
	gw.AssertNumberOfCalls(t, "CancelReservation", 1)
}

func TestTeardown_ReleasesActiveHold(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	o := startedOrchestrator(t, gw, new(mockResyncer), clock.NewSystem(), nil)

	o.Teardown()

	gw.AssertExpectations(t)
}

func TestTeardown_AfterSuccessDoesNotCancel(t *testing.T) {
	gw := new(mockGateway)
	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	o := startedOrchestrator(t, gw, resyncer, clock.NewSystem(), nil)

	_, err := o.HandleNavigation(context.Background(), "https://pay.example.com/payment/success")
	require.NoError(t, err)

	o.Teardown()

	gw.AssertNotCalled(t, "CancelReservation", mock.Anything, mock.Anything)
}
