package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Sessions *fsession.Store
	Products *services.ProductService
	Orders   *services.OrderService
	Payments *services.PaymentService
	Auth     *services.AuthService
}

// Register mounts every route on app.
func Register(app *fiber.App, deps Dependencies) {
	apiV1 := app.Group("/api/v1")
	NewProductHandler(deps.Products).RegisterRoutes(apiV1)
	NewAuthHandler(deps.Auth).RegisterRoutes(apiV1)

	NewCartHandler(deps.Sessions, deps.Products).RegisterRoutes(app)
	NewCheckoutHandler(deps.Sessions, deps.Payments, deps.Products).RegisterRoutes(app)

	admin := app.Group("/admin", middleware.AuthRequired(deps.Auth), middleware.StaffRequired())
	NewAdminHandler(deps.Orders, deps.Products).RegisterRoutes(admin)
}
