package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/pkg/clock"
	apperrors "github.com/avelora/storefront/pkg/errors"
)

func newTestService(gw *mockGateway, resyncer *mockResyncer, clk clock.Clock) *Service {
	return NewService(gw, resyncer, newQuietPublisher(), clk, time.Millisecond, newTestLogger())
}

func TestSubmit_RegistersSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	expiresAt := now.Add(15 * time.Minute)

	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(&expiresAt), nil)
	gw.On("CancelReservation", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := newTestService(gw, new(mockResyncer), clk)
	defer svc.Shutdown(context.Background())

	result, err := svc.Submit(context.Background(), "user-1", testRequest)

	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, []string{"ord-1", "ord-2"}, result.OrderIDs)
	assert.Equal(t, "https://pay.example.com/c/pay/cs_1", result.PaymentPageURL)
	require.NotNil(t, result.ExpiresAt)

	state, err := svc.GetState(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, state.Status)
	require.NotNil(t, state.RemainingMS)
	assert.Equal(t, (15 * time.Minute).Milliseconds(), *state.RemainingMS)
	assert.Nil(t, state.Outcome)
}

func TestSubmit_RequiresUserID(t *testing.T) {
	gw := new(mockGateway)
	svc := newTestService(gw, new(mockResyncer), clock.NewSystem())

	_, err := svc.Submit(context.Background(), "", testRequest)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_CreationFailureRegistersNothing(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).
		Return(nil, apperrors.CreationFailed("out of stock"))

	svc := newTestService(gw, new(mockResyncer), clock.NewSystem())

	_, err := svc.Submit(context.Background(), "user-1", testRequest)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCreationFailed)
	assert.Empty(t, svc.sessions)
}

func TestHandleNavigation_TerminalOutcomeDropsSession(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(nil), nil)

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	svc := newTestService(gw, resyncer, clock.NewSystem())

	result, err := svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)

	outcome, err := svc.HandleNavigation(context.Background(), result.SessionID, "https://pay.example.com/payment/success")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "SUCCESS", outcome.Status)

	// Delivered outcomes drop the session.
	_, err = svc.HandleNavigation(context.Background(), result.SessionID, "https://pay.example.com/payment/success")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHandleNavigation_IrrelevantTargetKeepsSession(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(nil), nil)
	gw.On("CancelReservation", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := newTestService(gw, new(mockResyncer), clock.NewSystem())
	defer svc.Shutdown(context.Background())

	result, err := svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)

	outcome, err := svc.HandleNavigation(context.Background(), result.SessionID, "https://pay.example.com/3ds/challenge")
	require.NoError(t, err)
	assert.Nil(t, outcome)

	_, err = svc.GetState(context.Background(), result.SessionID)
	assert.NoError(t, err)
}

func TestHandleUserExit_CancelsAndDropsSession(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(nil), nil)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	svc := newTestService(gw, resyncer, clock.NewSystem())

	result, err := svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)

	outcome, err := svc.HandleUserExit(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, "CANCELLED_USER", outcome.Status)

	_, err = svc.GetState(context.Background(), result.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	gw.AssertExpectations(t)
}

func TestGetState_DeliversExpiryOutcomeWhileClientAway(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	expiresAt := now.Add(15 * time.Minute)

	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(&expiresAt), nil)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Once()

	resyncer := new(mockResyncer)
	resyncer.On("Resync", mock.Anything, "user-1").Once()

	svc := newTestService(gw, resyncer, clk)

	result, err := svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)

	clk.Advance(16 * time.Minute)

	var state *SessionState
	require.Eventually(t, func() bool {
		state, err = svc.GetState(context.Background(), result.SessionID)
		return err == nil && state.Outcome != nil
	}, time.Second, time.Millisecond)

	assert.Equal(t, "CANCELLED_TIMEOUT", state.Outcome.Status)
	assert.Equal(t, domain.StatusExpired, state.Status)

	// Delivering the outcome drops the session.
	_, err = svc.GetState(context.Background(), result.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUnknownSession_NotFound(t *testing.T) {
	svc := newTestService(new(mockGateway), new(mockResyncer), clock.NewSystem())

	_, err := svc.GetState(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.HandleNavigation(context.Background(), "nope", "https://pay.example.com/payment/success")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.HandleUserExit(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestShutdown_ReleasesLiveSessions(t *testing.T) {
	gw := new(mockGateway)
	gw.On("CreateCheckout", mock.Anything, "user-1", testRequest).Return(createResult(nil), nil)
	gw.On("CancelReservation", mock.Anything, []string{"ord-1", "ord-2"}).Return(nil).Twice()

	svc := newTestService(gw, new(mockResyncer), clock.NewSystem())

	_, err := svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "user-1", testRequest)
	require.NoError(t, err)

	svc.Shutdown(context.Background())

	gw.AssertExpectations(t)
	assert.Empty(t, svc.sessions)
}
