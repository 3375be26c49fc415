package services_test

import (
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	exchange   string
	routingKey string
	body       []byte
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

// failingItemRepository refuses to create an item for one product.
type failingItemRepository struct {
	*repositories.MockOrderRepository
	productID string
}

func (r *failingItemRepository) CreateItem(item *models.OrderItem) error {
	if item.ProductID == r.productID {
		return errors.New("disk full")
	}
	return r.MockOrderRepository.CreateItem(item)
}

func (r *failingItemRepository) Transaction(fn func(repo repositories.OrderRepository) error) error {
	return r.MockOrderRepository.Transaction(func(repositories.OrderRepository) error {
		return fn(r)
	})
}

func cartItem(id, name, price string, quantity int) cart.Item {
	p := decimal.RequireFromString(price)
	return cart.Item{
		Product: models.Product{
			ID:                id,
			Name:              name,
			Price:             p,
			QuantityAvailable: 10,
		},
		Quantity: quantity,
		Price:    p,
	}
}

func testForm() models.CustomerForm {
	return models.CustomerForm{
		Name:       "Ada",
		Surname:    "Lovelace",
		Email:      "ada@example.com",
		Address:    "12 St James's Square",
		PostalCode: "SW1Y 4JH",
		City:       "London",
	}
}

func TestOrderService_BuildSummary_NewOrder(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	publisher := &recordingPublisher{}
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), publisher)

	items := []cart.Item{
		cartItem("p1", "Widget", "10.00", 2),
		cartItem("p2", "Gadget", "5.50", 1),
	}

	summary, order, err := service.BuildSummary(items, "", testForm())
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, order.ID, summary.OrderID)
	assert.Equal(t, models.Client{Name: "Ada", Surname: "Lovelace", Email: "ada@example.com"}, summary.Client)
	assert.Equal(t, []models.SummaryProduct{{Name: "Widget", Quantity: 2}, {Name: "Gadget", Quantity: 1}}, summary.Products)
	assert.Equal(t, "25.50", summary.Total)
	assert.Equal(t, 2, orderRepo.ItemCount())

	stored, err := orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "SW1Y 4JH", stored.PostalCode)
	assert.False(t, stored.Paid)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, services.EventOrderSubmitted, publisher.events[0].routingKey)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(publisher.events[0].body, &payload))
	assert.Equal(t, order.ID, payload["order_id"])
	assert.Equal(t, "25.50", payload["total"])
}

func TestOrderService_BuildSummary_ReusesExistingOrder(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	first, _, err := service.BuildSummary([]cart.Item{cartItem("p1", "Widget", "10.00", 2)}, "", testForm())
	require.NoError(t, err)

	form := testForm()
	form.City = "Manchester"
	second, order, err := service.BuildSummary([]cart.Item{cartItem("p1", "Widget", "10.00", 5)}, first.OrderID, form)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, "Manchester", order.City)
	assert.Equal(t, 1, orderRepo.ItemCount(), "existing line must be updated, not duplicated")
	assert.Equal(t, []models.SummaryProduct{{Name: "Widget", Quantity: 5}}, second.Products)
	assert.Equal(t, "50.00", second.Total)

	stored, err := orderRepo.GetByID(first.OrderID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 5, stored.Items[0].Quantity)
	assert.Equal(t, "Manchester", stored.City)
}

func TestOrderService_BuildSummary_ExistingLineKeepsSavedPrice(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	first, _, err := service.BuildSummary([]cart.Item{cartItem("p1", "Widget", "10.00", 2)}, "", testForm())
	require.NoError(t, err)
	assert.Equal(t, "20.00", first.Total)

	second, _, err := service.BuildSummary([]cart.Item{cartItem("p1", "Widget", "12.00", 3)}, first.OrderID, testForm())
	require.NoError(t, err)
	assert.Equal(t, "30.00", second.Total)

	stored, err := orderRepo.GetByID(first.OrderID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "30.00", stored.TotalCost().StringFixed(2))
}

func TestOrderService_BuildSummary_MissingOrderCreatesNew(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	summary, _, err := service.BuildSummary([]cart.Item{cartItem("p1", "Widget", "1.00", 1)}, "gone", testForm())
	require.NoError(t, err)
	assert.NotEqual(t, "gone", summary.OrderID)
	assert.NotEmpty(t, summary.OrderID)
}

func TestOrderService_BuildSummary_SkipsOutOfStockAndZeroPrice(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	soldOut := cartItem("p2", "Sold out", "3.00", 1)
	soldOut.Product.QuantityAvailable = 0

	items := []cart.Item{
		cartItem("p1", "Widget", "10.00", 2),
		soldOut,
		cartItem("p3", "Freebie", "0.00", 4),
	}

	summary, _, err := service.BuildSummary(items, "", testForm())
	require.NoError(t, err)
	assert.Equal(t, []models.SummaryProduct{{Name: "Widget", Quantity: 2}}, summary.Products)
	assert.Equal(t, "20.00", summary.Total)
	assert.Equal(t, 1, orderRepo.ItemCount())
}

func TestOrderService_BuildSummary_EmptyCart(t *testing.T) {
	service := services.NewOrderService(repositories.NewMockOrderRepository(), repositories.NewMockProductRepository(), nil)

	summary, _, err := service.BuildSummary(nil, "", testForm())
	require.NoError(t, err)
	assert.NotNil(t, summary.Products)
	assert.Empty(t, summary.Products)
	assert.Equal(t, "0", summary.Total)

	zeroOnly, _, err := service.BuildSummary([]cart.Item{cartItem("p1", "Freebie", "0.00", 3)}, "", testForm())
	require.NoError(t, err)
	assert.Empty(t, zeroOnly.Products)
	assert.Equal(t, "0", zeroOnly.Total)
}

func TestOrderService_BuildSummary_LineFailureKeepsOtherLines(t *testing.T) {
	orderRepo := &failingItemRepository{MockOrderRepository: repositories.NewMockOrderRepository(), productID: "p2"}
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	items := []cart.Item{
		cartItem("p1", "Widget", "10.00", 1),
		cartItem("p2", "Gadget", "2.00", 1),
		cartItem("p3", "Gizmo", "3.00", 1),
	}

	summary, order, err := service.BuildSummary(items, "", testForm())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, order)
	assert.Equal(t, order.ID, summary.OrderID)
	assert.Equal(t, []models.SummaryProduct{{Name: "Widget", Quantity: 1}, {Name: "Gizmo", Quantity: 1}}, summary.Products)
	assert.Equal(t, "13.00", summary.Total)

	stored, err := orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "p1", stored.Items[0].ProductID)
	assert.Equal(t, "p3", stored.Items[1].ProductID)
}

func TestOrderService_MarkOrderPaid(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	publisher := &recordingPublisher{}
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), publisher)

	order := &models.Order{Name: "Ada"}
	require.NoError(t, orderRepo.Create(order))

	require.NoError(t, service.MarkOrderPaid(order.ID))
	stored, err := orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Paid)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, services.EventOrderPaid, publisher.events[0].routingKey)

	err = service.MarkOrderPaid(order.ID)
	assert.ErrorIs(t, err, repositories.ErrAlreadyPaid)
	assert.Len(t, publisher.events, 1)

	err = service.MarkOrderPaid("missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestOrderService_HandlePaymentEvent(t *testing.T) {
	orderRepo := repositories.NewMockOrderRepository()
	service := services.NewOrderService(orderRepo, repositories.NewMockProductRepository(), nil)

	order := &models.Order{Name: "Ada"}
	require.NoError(t, orderRepo.Create(order))

	assert.NoError(t, service.HandlePaymentEvent(rabbitmq.PaymentEvent{OrderID: order.ID, Status: "pending"}))
	stored, _ := orderRepo.GetByID(order.ID)
	assert.False(t, stored.Paid)

	assert.NoError(t, service.HandlePaymentEvent(rabbitmq.PaymentEvent{OrderID: order.ID, Status: rabbitmq.StatusPaid}))
	stored, _ = orderRepo.GetByID(order.ID)
	assert.True(t, stored.Paid)

	// Redelivery and unknown orders are acknowledged.
	assert.NoError(t, service.HandlePaymentEvent(rabbitmq.PaymentEvent{OrderID: order.ID, Status: rabbitmq.StatusPaid}))
	assert.NoError(t, service.HandlePaymentEvent(rabbitmq.PaymentEvent{OrderID: "missing", Status: rabbitmq.StatusPaid}))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", services.FormatAmount(decimal.Zero))
	assert.Equal(t, "20.00", services.FormatAmount(decimal.RequireFromString("20.00")))
	assert.Equal(t, "7.50", services.FormatAmount(decimal.RequireFromString("2.50").Mul(decimal.NewFromInt(3))))
	assert.Equal(t, "12", services.FormatAmount(decimal.NewFromInt(12)))
}
