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
)

// AdminHandler serves the staff order views and catalog management.
type AdminHandler struct {
	orders   *services.OrderService
	products *services.ProductService
	validate *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(orders *services.OrderService, products *services.ProductService) *AdminHandler {
	return &AdminHandler{
		orders:   orders,
		products: products,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the admin routes. The router is expected to be
// guarded by middleware.AuthRequired and middleware.StaffRequired.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)

	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Put("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetOrders lists every order, newest first.
func (h *AdminHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.orders.GetAllOrders()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID shows an order with its lines and total cost.
func (h *AdminHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.orders.GetOrderByID(orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order not found",
			})
		}
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"order":      order,
		"total_cost": order.TotalCost().StringFixed(cart.PriceScale),
	})
}

// HandleCreateProduct adds a product to the catalog.
func (h *AdminHandler) HandleCreateProduct(c *fiber.Ctx) error {
	product, err := h.parseProduct(c)
	if product == nil {
		return err
	}

	if err := h.products.CreateProduct(product); err != nil {
		return h.productError(c, "create", product.ID, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces the fields of an existing product.
func (h *AdminHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	product, err := h.parseProduct(c)
	if product == nil {
		return err
	}
	product.ID = c.Params("id")

	if err := h.products.UpdateProduct(product); err != nil {
		return h.productError(c, "update", product.ID, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product from the catalog.
func (h *AdminHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	productID := c.Params("id")
	if err := h.products.DeleteProduct(productID); err != nil {
		return h.productError(c, "delete", productID, err)
	}
	return c.JSON(fiber.Map{
		"message": "Product deleted successfully",
	})
}

// parseProduct decodes and validates the request body. When it returns a nil
// product the error response has already been written.
func (h *AdminHandler) parseProduct(c *fiber.Ctx) (*models.Product, error) {
	product := new(models.Product)
	if err := c.BodyParser(product); err != nil {
		log.Printf("Error parsing product body: %v", err)
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(product); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}
	return product, nil
}

func (h *AdminHandler) productError(c *fiber.Ctx, op, productID string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Product not found",
		})
	case errors.Is(err, services.ErrNegativePrice):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	log.Printf("Error trying to %s product %s: %v", op, productID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not " + op + " product",
		"error":   err.Error(),
	})
}
