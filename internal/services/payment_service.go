package services

import (
	"errors"
	"fmt"
	"log"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/session"
	"storefront/pkg/gateway"
)

// State is where a visitor's checkout stands with the payment gateway.
type State string

const (
	StateNoSession      State = "NO_SESSION"
	StateSessionPending State = "SESSION_PENDING"
	StateSessionActive  State = "SESSION_ACTIVE"
	StateConfirmed      State = "CONFIRMED"
	StateFailed         State = "FAILED"
)

// View names the page a checkout step renders.
type View string

const (
	ViewCreate       View = "create"
	ViewPayments     View = "payments"
	ViewPaid         View = "paid"
	ViewPaymentError View = "payment_error"
	ViewRedirect     View = "redirect"
)

var (
	// ErrNoPendingOrder is reported when payment is requested before an
	// order summary exists in the session.
	ErrNoPendingOrder = errors.New("no order awaiting payment")
	// ErrNotPaid is reported when confirmation is requested for an order
	// the gateway has not marked as paid.
	ErrNotPaid = errors.New("order has not been paid")
)

// Outcome is the result of one checkout step.
type Outcome struct {
	View        View
	State       State
	Summary     *models.OrderSummary
	Order       *models.Order
	RedirectURL string
	Err         error
}

// TokenProvider hands out the gateway access token.
type TokenProvider interface {
	AccessToken() (string, error)
}

// PaymentGateway opens and updates payment sessions. *gateway.Client
// satisfies it.
type PaymentGateway interface {
	CreateSession(summary models.OrderSummary, token string) (gateway.CreateResult, error)
	UpdateSession(paymentID string, summary models.OrderSummary, token string) (gateway.UpdateResult, error)
}

// PaymentService drives a visitor's order from submission to confirmed
// payment, keeping the session in step with the gateway.
type PaymentService struct {
	orders         *OrderService
	gateway        PaymentGateway
	tokens         TokenProvider
	allowAnonymous bool
}

// NewPaymentService creates a PaymentService. With allowAnonymous, a missing
// access token no longer fails the payment request and the gateway is called
// without credentials.
func NewPaymentService(orders *OrderService, gw PaymentGateway, tokens TokenProvider, allowAnonymous bool) *PaymentService {
	return &PaymentService{
		orders:         orders,
		gateway:        gw,
		tokens:         tokens,
		allowAnonymous: allowAnonymous,
	}
}

// CurrentState derives the checkout state from what the session holds.
func (s *PaymentService) CurrentState(store *session.Store) State {
	summary, _, _ := store.Load()
	if summary.IsZero() {
		return StateNoSession
	}
	if _, ok := store.PaymentSessionID(); ok {
		return StateSessionActive
	}
	return StateSessionPending
}

// Submit persists the cart as an order and stores its summary in the session.
// A summary already in the session reuses its order; its lines are
// overwritten by the cart's quantities. When only some lines could be saved
// the partial summary is still stored, so a retry reuses the same order, and
// the error is returned.
func (s *PaymentService) Submit(store *session.Store, items []cart.Item, form models.CustomerForm) (Outcome, error) {
	previous, status, err := store.Load()
	if status == session.StatusCorrupt {
		log.Printf("Ignoring unreadable order summary in session: %v", err)
	}

	summary, order, buildErr := s.orders.BuildSummary(items, previous.OrderID, form)
	if buildErr != nil && summary.IsZero() {
		return Outcome{}, buildErr
	}

	// A payment session only belongs to the order it was opened for.
	if previous.IsZero() || previous.OrderID != summary.OrderID {
		if id, ok := store.PaymentSessionID(); ok {
			log.Printf("Dropping payment session %s not tied to order %s", id, summary.OrderID)
			store.Clear()
		}
	}

	if err := store.Save(summary); err != nil {
		return Outcome{}, fmt.Errorf("failed to store order summary: %w", err)
	}
	if buildErr != nil {
		return Outcome{}, buildErr
	}

	return Outcome{
		View:    ViewPayments,
		State:   s.CurrentState(store),
		Summary: &summary,
		Order:   order,
	}, nil
}

// RequestPayment opens a gateway payment session for the stored summary, or
// updates the one already opened, and returns the payment link to redirect to.
func (s *PaymentService) RequestPayment(store *session.Store) Outcome {
	summary, status, err := store.Load()
	if status == session.StatusCorrupt {
		log.Printf("Unreadable order summary in session: %v", err)
	}
	if summary.IsZero() {
		return Outcome{View: ViewCreate, State: StateNoSession, Err: ErrNoPendingOrder}
	}

	token, err := s.tokens.AccessToken()
	if err != nil {
		if !s.allowAnonymous {
			log.Printf("Payment request for order %s refused: %v", summary.OrderID, err)
			return s.failed(summary, err)
		}
		log.Printf("No access token, calling gateway anonymously for order %s", summary.OrderID)
		token = ""
	}

	if paymentID, ok := store.PaymentSessionID(); ok {
		res, err := s.gateway.UpdateSession(paymentID, summary, token)
		if err != nil {
			log.Printf("Failed to update payment session %s: %v", paymentID, err)
			return s.failed(summary, err)
		}
		return Outcome{
			View:        ViewRedirect,
			State:       StateSessionActive,
			Summary:     &summary,
			RedirectURL: res.PaymentLink,
		}
	}

	res, err := s.gateway.CreateSession(summary, token)
	if err != nil {
		log.Printf("Failed to create payment session for order %s: %v", summary.OrderID, err)
		return s.failed(summary, err)
	}
	store.SavePaymentSessionID(res.PaymentID)

	return Outcome{
		View:        ViewRedirect,
		State:       StateSessionActive,
		Summary:     &summary,
		RedirectURL: res.PaymentLink,
	}
}

// Confirm reports whether orderID has been paid. On success the summary held
// in the session is attached to the outcome, and the checkout state is dropped
// from the session only when it refers to that order.
func (s *PaymentService) Confirm(store *session.Store, orderID string) Outcome {
	order, err := s.orders.GetOrderByID(orderID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			log.Printf("Failed to load order %s for confirmation: %v", orderID, err)
		}
		return Outcome{View: ViewPaymentError, State: s.CurrentState(store), Err: err}
	}

	if !order.Paid {
		return Outcome{View: ViewPaymentError, State: s.CurrentState(store), Order: order, Err: ErrNotPaid}
	}

	outcome := Outcome{View: ViewPaid, State: StateConfirmed, Order: order}
	summary, status, _ := store.Load()
	if status == session.StatusLoaded {
		outcome.Summary = &summary
		if summary.OrderID == order.ID {
			store.Clear()
		}
	}
	return outcome
}

func (s *PaymentService) failed(summary models.OrderSummary, err error) Outcome {
	outcome := Outcome{View: ViewPayments, State: StateFailed, Summary: &summary, Err: err}
	if order, lookupErr := s.orders.GetOrderByID(summary.OrderID); lookupErr == nil {
		outcome.Order = order
	}
	return outcome
}
