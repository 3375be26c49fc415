package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
)

// Routing keys of the events published on the order exchange.
const (
	EventOrderSubmitted = "order.submitted"
	EventOrderPaid      = "order.paid"
)

// EventPublisher publishes order events. *rabbitmq.Client satisfies it.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService. publisher may be nil.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		publisher:   publisher,
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// BuildSummary persists the cart as the lines of an order and returns the
// snapshot sent to the payment gateway.
//
// When existingOrderID names a stored order its customer fields are updated in
// place; otherwise a new order is created from the form. Each cart line is
// saved in its own transaction: out-of-stock products are skipped, an existing
// line gets its quantity overwritten, a new zero-priced line is skipped, and
// anything else becomes a new order item. An existing line is costed at the
// price it was saved with. The summary lists exactly the lines the order holds
// afterwards; when some lines fail to save it is still returned, alongside the
// order and the error, so the caller can keep hold of the order.
func (s *OrderService) BuildSummary(items []cart.Item, existingOrderID string, form models.CustomerForm) (models.OrderSummary, *models.Order, error) {
	order, err := s.resolveOrder(existingOrderID, form)
	if err != nil {
		return models.OrderSummary{}, nil, err
	}

	products := make([]models.SummaryProduct, 0, len(items))
	total := decimal.Zero
	var lineErrs []error

	for _, item := range items {
		if !item.Product.InStock() {
			continue
		}

		listed := false
		cost := item.Cost()
		err := s.orderRepo.Transaction(func(repo repositories.OrderRepository) error {
			existing, err := repo.GetItem(order.ID, item.Product.ID)
			switch {
			case err == nil:
				listed = true
				// The line keeps the price it was first saved with.
				cost = existing.Price.Round(cart.PriceScale).Mul(decimal.NewFromInt(int64(item.Quantity)))
				return repo.UpdateItemQuantity(existing.ID, item.Quantity)
			case !errors.Is(err, repositories.ErrNotFound):
				return err
			case item.Price.IsZero():
				return nil
			default:
				listed = true
				return repo.CreateItem(&models.OrderItem{
					OrderID:   order.ID,
					ProductID: item.Product.ID,
					Price:     item.Price,
					Quantity:  item.Quantity,
				})
			}
		})
		if err != nil {
			log.Printf("Error saving line for product %s on order %s: %v", item.Product.ID, order.ID, err)
			lineErrs = append(lineErrs, fmt.Errorf("product %s: %w", item.Product.ID, err))
			continue
		}
		if !listed {
			continue
		}

		products = append(products, models.SummaryProduct{
			Name:     item.Product.Name,
			Quantity: item.Quantity,
		})
		total = total.Add(cost)
	}

	summary := models.OrderSummary{
		Client: models.Client{
			Name:    order.Name,
			Surname: order.Surname,
			Email:   order.Email,
		},
		Products: products,
		OrderID:  order.ID,
		Total:    FormatAmount(total),
	}

	if len(lineErrs) > 0 {
		return summary, order, fmt.Errorf("failed to save order %s lines: %w", order.ID, errors.Join(lineErrs...))
	}

	s.publish(EventOrderSubmitted, map[string]interface{}{
		"order_id": summary.OrderID,
		"total":    summary.Total,
		"lines":    len(summary.Products),
	})

	return summary, order, nil
}

func (s *OrderService) resolveOrder(existingOrderID string, form models.CustomerForm) (*models.Order, error) {
	if existingOrderID != "" {
		order, err := s.orderRepo.GetByID(existingOrderID)
		switch {
		case err == nil:
			order.ApplyCustomer(form)
			if err := s.orderRepo.UpdateCustomer(order); err != nil {
				return nil, fmt.Errorf("failed to update order %s: %w", existingOrderID, err)
			}
			return order, nil
		case errors.Is(err, repositories.ErrNotFound):
			log.Printf("Order %s from session no longer exists, creating a new one", existingOrderID)
		default:
			return nil, err
		}
	}

	order := &models.Order{}
	order.ApplyCustomer(form)
	if err := s.orderRepo.Create(order); err != nil {
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}
	return order, nil
}

// MarkOrderPaid sets the order's paid flag. It fails with
// repositories.ErrAlreadyPaid when the flag is already set.
func (s *OrderService) MarkOrderPaid(id string) error {
	if err := s.orderRepo.MarkPaid(id); err != nil {
		return err
	}
	log.Printf("Order %s marked as paid", id)
	s.publish(EventOrderPaid, map[string]interface{}{
		"order_id": id,
		"paid_at":  time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// HandlePaymentEvent applies a payment notification from the queue.
// Duplicate and unknown-order notifications are acknowledged and dropped.
func (s *OrderService) HandlePaymentEvent(ev rabbitmq.PaymentEvent) error {
	if ev.Status != rabbitmq.StatusPaid {
		log.Printf("Ignoring payment event for order %s with status %q", ev.OrderID, ev.Status)
		return nil
	}
	err := s.MarkOrderPaid(ev.OrderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrAlreadyPaid):
		log.Printf("Duplicate payment event for order %s", ev.OrderID)
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		log.Printf("Payment event for unknown order %s", ev.OrderID)
		return nil
	default:
		return err
	}
}

func (s *OrderService) publish(routingKey string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", routingKey, err)
		return
	}
	if err := s.publisher.Publish("", routingKey, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", routingKey, err)
	}
}

// FormatAmount renders an amount without float conversion, keeping the scale
// of the prices it was summed from ("20.00"). An amount with no fractional
// digits, such as an empty sum, renders as an integer ("0").
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
