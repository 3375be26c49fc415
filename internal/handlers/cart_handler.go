package handlers

import (
	"errors"
	"log"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
)

// catalog adapts ProductService to cart.ProductLookup.
type catalog struct {
	products *services.ProductService
}

func (c catalog) GetByID(id string) (*models.Product, error) {
	return c.products.GetProductByID(id)
}

// CartAddRequest is the body of POST /cart/add.
type CartAddRequest struct {
	ProductID string `json:"product_id" form:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" form:"quantity" validate:"required,min=1,max=20"`
	Override  bool   `json:"override" form:"override"`
}

// CartHandler manages the session cart.
type CartHandler struct {
	sessions *fsession.Store
	products *services.ProductService
	validate *validator.Validate
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(sessions *fsession.Store, products *services.ProductService) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		products: products,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Get("/", h.HandleDetail)
	cartRoutes.Post("/add", h.HandleAdd)
	cartRoutes.Post("/remove/:productID", h.HandleRemove)
}

// HandleDetail shows the cart lines and total.
func (h *CartHandler) HandleDetail(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}
	return h.render(c, cart.Load(sess))
}

// HandleAdd adds a product to the cart, or sets its quantity with override.
func (h *CartHandler) HandleAdd(c *fiber.Ctx) error {
	var req CartAddRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing cart request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	product, err := h.products.GetProductByID(req.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Product not found",
			})
		}
		log.Printf("Error loading product %s for cart: %v", req.ProductID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not add product",
			"error":   err.Error(),
		})
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}
	userCart := cart.Load(sess)
	userCart.Add(*product, req.Quantity, req.Override)
	if err := userCart.Save(); err != nil {
		return sessionError(c, err)
	}
	if err := saveSession(sess); err != nil {
		return sessionError(c, err)
	}
	return h.render(c, userCart)
}

// HandleRemove drops a product from the cart.
func (h *CartHandler) HandleRemove(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}
	userCart := cart.Load(sess)
	userCart.Remove(c.Params("productID"))
	if err := userCart.Save(); err != nil {
		return sessionError(c, err)
	}
	if err := saveSession(sess); err != nil {
		return sessionError(c, err)
	}
	return h.render(c, userCart)
}

func (h *CartHandler) render(c *fiber.Ctx, userCart *cart.Cart) error {
	items, err := userCart.Items(catalog{products: h.products})
	if err != nil {
		log.Printf("Error resolving cart: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load cart",
			"error":   err.Error(),
		})
	}

	lines := make([]fiber.Map, 0, len(items))
	for _, item := range items {
		lines = append(lines, fiber.Map{
			"product_id":  item.Product.ID,
			"name":        item.Product.Name,
			"quantity":    item.Quantity,
			"price":       item.Price.StringFixed(cart.PriceScale),
			"total_price": item.Cost().StringFixed(cart.PriceScale),
		})
	}
	return c.JSON(fiber.Map{
		"items": lines,
		"count": userCart.Len(),
		"total": userCart.Total().StringFixed(cart.PriceScale),
	})
}
