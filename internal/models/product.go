package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
type Product struct {
	ID                string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name              string          `json:"name" gorm:"type:varchar(200);index" validate:"required,min=3,max=200"`
	Slug              string          `json:"slug" gorm:"type:varchar(200);index"`
	Description       string          `json:"description" validate:"omitempty,max=500"`
	Price             decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	QuantityAvailable int             `json:"quantity_available" gorm:"not null;default:0" validate:"gte=0"`
	CategoryID        *string         `json:"category_id,omitempty" gorm:"type:varchar(36);index"`
	Category          *Category       `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InStock reports whether the product can still be ordered.
func (p Product) InStock() bool {
	return p.QuantityAvailable > 0
}
