package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a single (order, product) line. Quantity may be overwritten in
// place; Price is the snapshot taken when the line was first persisted.
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   string          `json:"order_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_order_product"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_order_product"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Quantity  int             `json:"quantity" gorm:"not null;default:1"`
}

// Cost returns Price * Quantity.
func (i OrderItem) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order.
type Order struct {
	ID         string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name       string      `json:"name" gorm:"type:varchar(50)"`
	Surname    string      `json:"surname" gorm:"type:varchar(50)"`
	Email      string      `json:"email" gorm:"type:varchar(255)"`
	Address    string      `json:"address" gorm:"type:varchar(250)"`
	PostalCode string      `json:"postal_code" gorm:"type:varchar(20)"`
	City       string      `json:"city" gorm:"type:varchar(100)"`
	Paid       bool        `json:"paid" gorm:"not null;default:false"`
	Items      []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// ApplyCustomer copies the customer fields of the form onto the order.
func (o *Order) ApplyCustomer(form CustomerForm) {
	o.Name = form.Name
	o.Surname = form.Surname
	o.Email = form.Email
	o.Address = form.Address
	o.PostalCode = form.PostalCode
	o.City = form.City
}

// TotalCost sums the cost of every item loaded on the order.
func (o *Order) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Cost())
	}
	return total
}
