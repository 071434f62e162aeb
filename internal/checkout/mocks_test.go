package checkout

import (
	"context"
	"log/slog"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/internal/gateway"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, userID string, req *domain.CheckoutRequest) (*gateway.CreateCheckoutResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateCheckoutResult), args.Error(1)
}

func (m *mockGateway) CancelReservation(ctx context.Context, orderIDs []string) error {
	args := m.Called(ctx, orderIDs)
	return args.Error(0)
}

func (m *mockGateway) GetSettlementStatus(ctx context.Context, sessionRef string) (*gateway.SettlementStatus, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SettlementStatus), args.Error(1)
}

type mockResyncer struct {
	mock.Mock
}

func (m *mockResyncer) Resync(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSessionCreated(ctx context.Context, session *domain.ReservationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockPublisher) PublishSessionSettled(ctx context.Context, session *domain.ReservationSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockPublisher) PublishSessionReleased(ctx context.Context, session *domain.ReservationSession, exit domain.ExitClassification) error {
	args := m.Called(ctx, session, exit)
	return args.Error(0)
}

// newQuietPublisher returns a publisher that accepts every lifecycle event.
func newQuietPublisher() *mockPublisher {
	events := new(mockPublisher)
	events.On("PublishSessionCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishSessionSettled", mock.Anything, mock.Anything).Return(nil).Maybe()
	events.On("PublishSessionReleased", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return events
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}
