// Package cart keeps a visitor's shopping cart in their session.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/session"

	"github.com/shopspring/decimal"
)

// SessionKey is the session key holding the serialized cart.
const SessionKey = "cart"

// PriceScale is the number of decimal places prices are kept at.
const PriceScale = 2

type line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// Item is a cart line resolved against the catalog.
type Item struct {
	Product  models.Product
	Quantity int
	Price    decimal.Decimal
}

// Cost returns Price * Quantity.
func (i Item) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ProductLookup resolves product ids.
type ProductLookup interface {
	GetByID(id string) (*models.Product, error)
}

// Cart is a session-backed list of product lines in insertion order.
type Cart struct {
	backend session.Backend
	lines   []line
}

// Load reads the cart from the session. Unreadable data yields an empty cart.
func Load(backend session.Backend) *Cart {
	c := &Cart{backend: backend}
	raw, ok := backend.Get(SessionKey).(string)
	if !ok || raw == "" {
		return c
	}
	if err := json.Unmarshal([]byte(raw), &c.lines); err != nil {
		log.Printf("Discarding unreadable cart from session: %v", err)
		c.lines = nil
	}
	return c
}

// Add puts quantity units of product in the cart. With override the line's
// quantity is replaced instead of incremented.
func (c *Cart) Add(product models.Product, quantity int, override bool) {
	price := product.Price.Round(PriceScale).StringFixed(PriceScale)
	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			if override {
				c.lines[i].Quantity = quantity
			} else {
				c.lines[i].Quantity += quantity
			}
			return
		}
	}
	c.lines = append(c.lines, line{ProductID: product.ID, Quantity: quantity, Price: price})
}

// Remove drops the product's line, if present.
func (c *Cart) Remove(productID string) {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
}

// Len returns the number of units in the cart.
func (c *Cart) Len() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Save writes the cart back to the session.
func (c *Cart) Save() error {
	if len(c.lines) == 0 {
		c.backend.Delete(SessionKey)
		return nil
	}
	b, err := json.Marshal(c.lines)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	c.backend.Set(SessionKey, string(b))
	return nil
}

// Items resolves every line against the catalog. Lines whose product no
// longer exists are skipped.
func (c *Cart) Items(products ProductLookup) ([]Item, error) {
	items := make([]Item, 0, len(c.lines))
	for _, l := range c.lines {
		product, err := products.GetByID(l.ProductID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to resolve cart line %s: %w", l.ProductID, err)
		}
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			price = product.Price
		}
		items = append(items, Item{
			Product:  *product,
			Quantity: l.Quantity,
			Price:    price.Round(PriceScale),
		})
	}
	return items, nil
}

// Total sums the cost of the stored lines.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
