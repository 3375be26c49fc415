package services_test

import (
	"errors"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/session"
	"storefront/pkg/gateway"
	"storefront/pkg/oauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockGateway is a mock implementation of services.PaymentGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(summary models.OrderSummary, token string) (gateway.CreateResult, error) {
	args := m.Called(summary, token)
	return args.Get(0).(gateway.CreateResult), args.Error(1)
}

func (m *MockGateway) UpdateSession(paymentID string, summary models.OrderSummary, token string) (gateway.UpdateResult, error) {
	args := m.Called(paymentID, summary, token)
	return args.Get(0).(gateway.UpdateResult), args.Error(1)
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken() (string, error) {
	return s.token, s.err
}

type paymentFixture struct {
	orderRepo *repositories.MockOrderRepository
	orders    *services.OrderService
	gateway   *MockGateway
	service   *services.PaymentService
	backend   session.MapBackend
	store     *session.Store
}

func newPaymentFixture(tokens services.TokenProvider, allowAnonymous bool) *paymentFixture {
	f := &paymentFixture{
		orderRepo: repositories.NewMockOrderRepository(),
		gateway:   new(MockGateway),
		backend:   session.MapBackend{},
	}
	f.orders = services.NewOrderService(f.orderRepo, repositories.NewMockProductRepository(), nil)
	f.service = services.NewPaymentService(f.orders, f.gateway, tokens, allowAnonymous)
	f.store = session.NewStore(f.backend)
	return f
}

func (f *paymentFixture) submit(t *testing.T) models.OrderSummary {
	t.Helper()
	outcome, err := f.service.Submit(f.store, []cart.Item{cartItem("p1", "Widget", "10.00", 2)}, testForm())
	require.NoError(t, err)
	require.NotNil(t, outcome.Summary)
	return *outcome.Summary
}

func TestPaymentService_Submit(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	assert.Equal(t, services.StateNoSession, f.service.CurrentState(f.store))

	summary := f.submit(t)
	assert.Equal(t, "20.00", summary.Total)
	assert.Equal(t, services.StateSessionPending, f.service.CurrentState(f.store))

	stored, status, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, session.StatusLoaded, status)
	assert.Equal(t, summary, stored)

	// Resubmitting keeps the order and the payment session.
	f.store.SavePaymentSessionID("pay-1")
	again := f.submit(t)
	assert.Equal(t, summary.OrderID, again.OrderID)
	id, ok := f.store.PaymentSessionID()
	assert.True(t, ok)
	assert.Equal(t, "pay-1", id)
	assert.Equal(t, 1, f.orderRepo.ItemCount())
}

func TestPaymentService_Submit_CorruptSummaryDropsPaymentSession(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	f.backend[session.SummaryKey] = "{not json"
	f.backend[session.PaymentIDKey] = "pay-old"

	summary := f.submit(t)
	assert.Equal(t, services.StateSessionPending, f.service.CurrentState(f.store))
	_, ok := f.store.PaymentSessionID()
	assert.False(t, ok)

	f.gateway.On("CreateSession", summary, "tok").
		Return(gateway.CreateResult{PaymentID: "pay-new", PaymentLink: "https://pay.example/new"}, nil).Once()

	outcome := f.service.RequestPayment(f.store)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "https://pay.example/new", outcome.RedirectURL)
	f.gateway.AssertNotCalled(t, "UpdateSession", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertExpectations(t)
}

func TestPaymentService_Submit_EmptySummaryDropsPaymentSession(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	f.backend[session.PaymentIDKey] = "pay-old"

	f.submit(t)
	_, ok := f.store.PaymentSessionID()
	assert.False(t, ok)
	assert.Equal(t, services.StateSessionPending, f.service.CurrentState(f.store))
}

func TestPaymentService_Submit_LineFailureKeepsOrderInSession(t *testing.T) {
	orderRepo := &failingItemRepository{MockOrderRepository: repositories.NewMockOrderRepository(), productID: "p2"}
	orders := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)
	service := services.NewPaymentService(orders, new(MockGateway), staticTokens{token: "tok"}, false)
	store := session.NewStore(session.MapBackend{})

	items := []cart.Item{
		cartItem("p1", "Widget", "10.00", 1),
		cartItem("p2", "Gadget", "2.00", 1),
	}

	_, err := service.Submit(store, items, testForm())
	require.Error(t, err)

	stored, status, _ := store.Load()
	require.Equal(t, session.StatusLoaded, status)
	require.NotEmpty(t, stored.OrderID)
	assert.Equal(t, []models.SummaryProduct{{Name: "Widget", Quantity: 1}}, stored.Products)

	orderRepo.productID = ""
	outcome, err := service.Submit(store, items, testForm())
	require.NoError(t, err)
	assert.Equal(t, stored.OrderID, outcome.Summary.OrderID)
	assert.Equal(t, "12.00", outcome.Summary.Total)

	all, err := orders.GetAllOrders()
	require.NoError(t, err)
	assert.Len(t, all, 1, "a retry must not leave an orphaned order behind")
}

func TestPaymentService_RequestPayment_NoSummary(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)

	outcome := f.service.RequestPayment(f.store)
	assert.Equal(t, services.ViewCreate, outcome.View)
	assert.Equal(t, services.StateNoSession, outcome.State)
	assert.ErrorIs(t, outcome.Err, services.ErrNoPendingOrder)
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestPaymentService_RequestPayment_CorruptSummary(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	f.backend[session.SummaryKey] = "{not json"

	outcome := f.service.RequestPayment(f.store)
	assert.Equal(t, services.ViewCreate, outcome.View)
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestPaymentService_RequestPayment_CreateThenUpdate(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	summary := f.submit(t)

	f.gateway.On("CreateSession", summary, "tok").
		Return(gateway.CreateResult{PaymentID: "pay-1", PaymentLink: "https://pay.example/1"}, nil).Once()

	outcome := f.service.RequestPayment(f.store)
	require.NoError(t, outcome.Err)
	assert.Equal(t, services.ViewRedirect, outcome.View)
	assert.Equal(t, services.StateSessionActive, outcome.State)
	assert.Equal(t, "https://pay.example/1", outcome.RedirectURL)

	id, ok := f.store.PaymentSessionID()
	require.True(t, ok)
	assert.Equal(t, "pay-1", id)

	f.gateway.On("UpdateSession", "pay-1", summary, "tok").
		Return(gateway.UpdateResult{PaymentLink: "https://pay.example/1b"}, nil).Twice()

	for i := 0; i < 2; i++ {
		outcome = f.service.RequestPayment(f.store)
		require.NoError(t, outcome.Err)
		assert.Equal(t, "https://pay.example/1b", outcome.RedirectURL)
	}

	f.gateway.AssertNumberOfCalls(t, "CreateSession", 1)
	f.gateway.AssertNumberOfCalls(t, "UpdateSession", 2)
	f.gateway.AssertExpectations(t)
}

func TestPaymentService_RequestPayment_TokenUnavailable(t *testing.T) {
	f := newPaymentFixture(staticTokens{err: oauth.ErrAuthUnavailable}, false)
	summary := f.submit(t)

	outcome := f.service.RequestPayment(f.store)
	assert.Equal(t, services.ViewPayments, outcome.View)
	assert.Equal(t, services.StateFailed, outcome.State)
	assert.ErrorIs(t, outcome.Err, oauth.ErrAuthUnavailable)
	require.NotNil(t, outcome.Order)
	assert.Equal(t, summary.OrderID, outcome.Order.ID)

	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	_, ok := f.store.PaymentSessionID()
	assert.False(t, ok)
	assert.Equal(t, services.StateSessionPending, f.service.CurrentState(f.store))
}

func TestPaymentService_RequestPayment_AnonymousFallback(t *testing.T) {
	f := newPaymentFixture(staticTokens{err: oauth.ErrAuthUnavailable}, true)
	summary := f.submit(t)

	f.gateway.On("CreateSession", summary, "").
		Return(gateway.CreateResult{PaymentID: "pay-2", PaymentLink: "https://pay.example/2"}, nil).Once()

	outcome := f.service.RequestPayment(f.store)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "https://pay.example/2", outcome.RedirectURL)
	f.gateway.AssertExpectations(t)
}

func TestPaymentService_RequestPayment_GatewayError(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	summary := f.submit(t)

	gwErr := &gateway.Error{Op: "create", StatusCode: 500, Body: []byte("boom")}
	f.gateway.On("CreateSession", summary, "tok").Return(gateway.CreateResult{}, gwErr).Once()

	outcome := f.service.RequestPayment(f.store)
	assert.Equal(t, services.ViewPayments, outcome.View)
	assert.Equal(t, services.StateFailed, outcome.State)

	var target *gateway.Error
	require.True(t, errors.As(outcome.Err, &target))
	assert.Equal(t, 500, target.StatusCode)

	_, ok := f.store.PaymentSessionID()
	assert.False(t, ok, "failed create must not store a payment id")
	stored, status, _ := f.store.Load()
	assert.Equal(t, session.StatusLoaded, status)
	assert.Equal(t, summary, stored)
}

func TestPaymentService_RequestPayment_UpdateFailureKeepsPaymentID(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	summary := f.submit(t)
	f.store.SavePaymentSessionID("pay-1")

	gwErr := &gateway.Error{Op: "update", StatusCode: 503, Body: []byte("unavailable")}
	f.gateway.On("UpdateSession", "pay-1", summary, "tok").Return(gateway.UpdateResult{}, gwErr).Once()

	outcome := f.service.RequestPayment(f.store)
	assert.Equal(t, services.ViewPayments, outcome.View)
	assert.Equal(t, services.StateFailed, outcome.State)
	var target *gateway.Error
	require.True(t, errors.As(outcome.Err, &target))
	assert.Equal(t, 503, target.StatusCode)

	id, ok := f.store.PaymentSessionID()
	require.True(t, ok)
	assert.Equal(t, "pay-1", id)

	f.gateway.On("UpdateSession", "pay-1", summary, "tok").
		Return(gateway.UpdateResult{PaymentLink: "https://pay.example/1"}, nil).Once()

	outcome = f.service.RequestPayment(f.store)
	require.NoError(t, outcome.Err)
	assert.Equal(t, services.ViewRedirect, outcome.View)
	assert.Equal(t, "https://pay.example/1", outcome.RedirectURL)

	f.gateway.AssertNumberOfCalls(t, "UpdateSession", 2)
	f.gateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestPaymentService_Confirm(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	summary := f.submit(t)
	f.store.SavePaymentSessionID("pay-1")

	outcome := f.service.Confirm(f.store, "missing")
	assert.Equal(t, services.ViewPaymentError, outcome.View)
	assert.ErrorIs(t, outcome.Err, repositories.ErrNotFound)

	outcome = f.service.Confirm(f.store, summary.OrderID)
	assert.Equal(t, services.ViewPaymentError, outcome.View)
	assert.Equal(t, services.StateSessionActive, outcome.State)
	assert.ErrorIs(t, outcome.Err, services.ErrNotPaid)
	_, status, _ := f.store.Load()
	assert.Equal(t, session.StatusLoaded, status, "unpaid confirmation keeps the session")

	require.NoError(t, f.orders.MarkOrderPaid(summary.OrderID))

	outcome = f.service.Confirm(f.store, summary.OrderID)
	require.NoError(t, outcome.Err)
	assert.Equal(t, services.ViewPaid, outcome.View)
	assert.Equal(t, services.StateConfirmed, outcome.State)
	require.NotNil(t, outcome.Summary)
	assert.Equal(t, summary.OrderID, outcome.Summary.OrderID)

	_, status, _ = f.store.Load()
	assert.Equal(t, session.StatusEmpty, status)
	_, ok := f.store.PaymentSessionID()
	assert.False(t, ok)
	assert.Equal(t, services.StateNoSession, f.service.CurrentState(f.store))
}

func TestPaymentService_Confirm_OtherOrderKeepsSession(t *testing.T) {
	f := newPaymentFixture(staticTokens{token: "tok"}, false)
	summary := f.submit(t)

	other := &models.Order{Name: "Grace"}
	require.NoError(t, f.orderRepo.Create(other))
	require.NoError(t, f.orders.MarkOrderPaid(other.ID))

	outcome := f.service.Confirm(f.store, other.ID)
	assert.Equal(t, services.ViewPaid, outcome.View)
	require.NotNil(t, outcome.Summary, "the session's summary is shown even for another order")
	assert.Equal(t, summary.OrderID, outcome.Summary.OrderID)
	assert.Equal(t, other.ID, outcome.Order.ID)

	stored, status, _ := f.store.Load()
	assert.Equal(t, session.StatusLoaded, status)
	assert.Equal(t, summary.OrderID, stored.OrderID)
}
