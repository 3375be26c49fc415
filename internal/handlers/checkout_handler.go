package handlers

import (
	"errors"
	"log"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/internal/session"
	"storefront/pkg/gateway"
	"storefront/pkg/oauth"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
)

// CheckoutHandler serves order submission, payment requests and payment
// confirmation. Responses are view documents:
//
//	{"view": "payments", "state": "SESSION_PENDING", "data": {...}, "order": {...}}
type CheckoutHandler struct {
	sessions *fsession.Store
	payments *services.PaymentService
	products *services.ProductService
	validate *validator.Validate
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(sessions *fsession.Store, payments *services.PaymentService, products *services.ProductService) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		payments: payments,
		products: products,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the checkout routes with the Fiber app.
func (h *CheckoutHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/create", h.HandleCreateForm)
	orderRoutes.Post("/create", h.HandleCreate)
	orderRoutes.Post("/payment", h.HandlePayment)
	orderRoutes.Get("/paid/:orderID", h.HandlePaid)
}

// HandleCreateForm renders the order form, prefilled from a pending summary.
func (h *CheckoutHandler) HandleCreateForm(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}
	store := session.NewStore(sess)

	outcome := services.Outcome{View: services.ViewCreate, State: h.payments.CurrentState(store)}
	if summary, status, _ := store.Load(); status == session.StatusLoaded {
		outcome.Summary = &summary
	}
	return render(c, fiber.StatusOK, outcome)
}

// HandleCreate validates the customer form and turns the cart into an order.
func (h *CheckoutHandler) HandleCreate(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}
	store := session.NewStore(sess)

	var form models.CustomerForm
	if err := c.BodyParser(&form); err != nil {
		log.Printf("Error parsing order form: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"view":    services.ViewCreate,
			"state":   h.payments.CurrentState(store),
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"view":    services.ViewCreate,
			"state":   h.payments.CurrentState(store),
			"message": "Validation failed",
			"errors":  validationMessages(err),
		})
	}

	items, err := cart.Load(sess).Items(catalog{products: h.products})
	if err != nil {
		log.Printf("Error resolving cart for order: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not load cart",
			"error":   err.Error(),
		})
	}

	outcome, err := h.payments.Submit(store, items, form)
	if err != nil {
		log.Printf("Error creating order: %v", err)
		// A partially saved order stays in the session so a retry reuses it.
		if err := saveSession(sess); err != nil {
			return sessionError(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create order",
			"error":   err.Error(),
		})
	}
	if err := saveSession(sess); err != nil {
		return sessionError(c, err)
	}
	return render(c, fiber.StatusOK, outcome)
}

// HandlePayment opens or updates the gateway payment session and redirects
// the customer to the payment link.
func (h *CheckoutHandler) HandlePayment(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}

	outcome := h.payments.RequestPayment(session.NewStore(sess))
	if err := saveSession(sess); err != nil {
		return sessionError(c, err)
	}
	if outcome.View == services.ViewRedirect {
		return c.Redirect(outcome.RedirectURL, fiber.StatusSeeOther)
	}
	return render(c, statusFor(outcome.Err), outcome)
}

// HandlePaid confirms the payment of an order.
func (h *CheckoutHandler) HandlePaid(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return sessionError(c, err)
	}

	outcome := h.payments.Confirm(session.NewStore(sess), c.Params("orderID"))
	if outcome.View == services.ViewPaid && outcome.Summary != nil && outcome.Summary.OrderID == outcome.Order.ID {
		// The session's own order is settled; start the next visit afresh.
		userCart := cart.Load(sess)
		userCart.Clear()
		if err := userCart.Save(); err != nil {
			return sessionError(c, err)
		}
	}
	if err := saveSession(sess); err != nil {
		return sessionError(c, err)
	}
	return render(c, statusFor(outcome.Err), outcome)
}

func render(c *fiber.Ctx, status int, outcome services.Outcome) error {
	body := fiber.Map{
		"view":  outcome.View,
		"state": outcome.State,
		"data":  outcome.Summary,
		"order": outcome.Order,
	}
	if outcome.Err != nil {
		body["error"] = outcome.Err.Error()
	}
	return c.Status(status).JSON(body)
}

func statusFor(err error) int {
	var gwErr *gateway.Error
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, repositories.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, oauth.ErrAuthUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &gwErr):
		return fiber.StatusBadGateway
	case errors.Is(err, services.ErrNoPendingOrder):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotPaid):
		return fiber.StatusPaymentRequired
	default:
		return fiber.StatusInternalServerError
	}
}
