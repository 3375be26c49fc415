package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders     map[string]models.Order
	items      map[uint]models.OrderItem
	nextItemID uint
	mu         sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
		items:  make(map[uint]models.OrderItem),
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		order.Items = r.itemsOf(order.ID)
		orderList = append(orderList, order)
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.After(orderList[j].CreatedAt)
	})
	return orderList, nil
}

// GetByID returns an order and its items.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order.Items = r.itemsOf(id)
	return &order, nil
}

// Create adds a new order.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

// UpdateCustomer overwrites the customer fields of an order.
func (r *MockOrderRepository) UpdateCustomer(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", order.ID, ErrNotFound)
	}
	stored.Name = order.Name
	stored.Surname = order.Surname
	stored.Email = order.Email
	stored.Address = order.Address
	stored.PostalCode = order.PostalCode
	stored.City = order.City
	stored.UpdatedAt = time.Now()
	r.orders[order.ID] = stored
	return nil
}

// MarkPaid sets the paid flag once.
func (r *MockOrderRepository) MarkPaid(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	if order.Paid {
		return fmt.Errorf("order with ID %s: %w", id, ErrAlreadyPaid)
	}
	order.Paid = true
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// GetItem returns the item for the (order, product) pair.
func (r *MockOrderRepository) GetItem(orderID, productID string) (*models.OrderItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if item.OrderID == orderID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("item for order %s and product %s: %w", orderID, productID, ErrNotFound)
}

// CreateItem adds an item, enforcing one item per (order, product) pair.
func (r *MockOrderRepository) CreateItem(item *models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[item.OrderID]; !ok {
		return fmt.Errorf("order with ID %s: %w", item.OrderID, ErrNotFound)
	}
	for _, existing := range r.items {
		if existing.OrderID == item.OrderID && existing.ProductID == item.ProductID {
			return fmt.Errorf("failed to create order item: duplicate product %s for order %s", item.ProductID, item.OrderID)
		}
	}
	r.nextItemID++
	item.ID = r.nextItemID
	stored := *item
	stored.Product = nil
	r.items[item.ID] = stored
	return nil
}

// UpdateItemQuantity overwrites the quantity of an item.
func (r *MockOrderRepository) UpdateItemQuantity(itemID uint, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return fmt.Errorf("order item %d: %w", itemID, ErrNotFound)
	}
	item.Quantity = quantity
	r.items[itemID] = item
	return nil
}

// Transaction runs fn and restores the previous state if fn fails.
func (r *MockOrderRepository) Transaction(fn func(repo OrderRepository) error) error {
	r.mu.RLock()
	orders := make(map[string]models.Order, len(r.orders))
	for k, v := range r.orders {
		orders[k] = v
	}
	items := make(map[uint]models.OrderItem, len(r.items))
	for k, v := range r.items {
		items[k] = v
	}
	nextItemID := r.nextItemID
	r.mu.RUnlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.orders = orders
		r.items = items
		r.nextItemID = nextItemID
		r.mu.Unlock()
		return err
	}
	return nil
}

// ItemCount returns the number of stored items.
func (r *MockOrderRepository) ItemCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// itemsOf must be called with the lock held.
func (r *MockOrderRepository) itemsOf(orderID string) []models.OrderItem {
	var items []models.OrderItem
	for _, item := range r.items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
