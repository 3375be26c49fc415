package repositories

import (
	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	Create(order *models.Order) error
	UpdateCustomer(order *models.Order) error
	// MarkPaid flips paid from false to true. It returns ErrAlreadyPaid when
	// the flag was already set.
	MarkPaid(id string) error

	GetItem(orderID, productID string) (*models.OrderItem, error)
	CreateItem(item *models.OrderItem) error
	UpdateItemQuantity(itemID uint, quantity int) error

	// Transaction runs fn against a repository bound to a single transaction.
	Transaction(fn func(repo OrderRepository) error) error
}
