package repositories

import (
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders, newest first.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves an order with its items and their products.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).Preload("Items.Product").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

// Create inserts a new order. Items are persisted separately.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateCustomer overwrites the customer fields of an existing order.
func (r *GORMOrderRepository) UpdateCustomer(order *models.Order) error {
	res := r.db.Model(&models.Order{ID: order.ID}).
		Select("name", "surname", "email", "address", "postal_code", "city").
		Updates(order)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", order.ID, ErrNotFound)
	}
	return nil
}

// MarkPaid sets paid = true only while it is still false.
func (r *GORMOrderRepository) MarkPaid(id string) error {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND paid = ?", id, false).
		Update("paid", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark order %s paid: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check order %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("order with ID %s: %w", id, ErrAlreadyPaid)
}

// GetItem returns the item for the (order, product) pair.
func (r *GORMOrderRepository) GetItem(orderID, productID string) (*models.OrderItem, error) {
	var item models.OrderItem
	err := r.db.Where("order_id = ? AND product_id = ?", orderID, productID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item for order %s and product %s: %w", orderID, productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order item: %w", err)
	}
	return &item, nil
}

// CreateItem inserts a new order item.
func (r *GORMOrderRepository) CreateItem(item *models.OrderItem) error {
	if err := r.db.Omit("Product").Create(item).Error; err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

// UpdateItemQuantity overwrites the quantity of an item.
func (r *GORMOrderRepository) UpdateItemQuantity(itemID uint, quantity int) error {
	res := r.db.Model(&models.OrderItem{}).Where("id = ?", itemID).Update("quantity", quantity)
	if res.Error != nil {
		return fmt.Errorf("failed to update order item %d: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order item %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// Transaction runs fn inside a database transaction.
func (r *GORMOrderRepository) Transaction(fn func(repo OrderRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GORMOrderRepository{db: tx})
	})
}
