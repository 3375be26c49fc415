// Package gateway talks to the remote payment gateway that hosts checkout
// sessions.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
)

// DefaultTimeout bounds every gateway call when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Config holds gateway connection details.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate checks. Only meant for
	// development setups with self-signed certificates.
	InsecureSkipVerify bool
}

// CreateResult is the gateway's answer to a session creation.
type CreateResult struct {
	PaymentID   string `json:"payment_id"`
	PaymentLink string `json:"payment_link"`
}

// UpdateResult is the gateway's answer to a session update.
type UpdateResult struct {
	PaymentLink string `json:"payment_link"`
}

// Error is returned for any unsuccessful gateway exchange. Body holds the raw
// response for diagnostics.
type Error struct {
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s failed (status %d): %s", e.Op, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func (e *Error) Unwrap() error { return e.Err }

// Client issues create/update calls for payment sessions.
type Client struct {
	baseURL  string
	timeout  time.Duration
	insecure bool
}

// NewClient creates a gateway Client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if cfg.InsecureSkipVerify {
		log.Println("WARNING: payment gateway TLS certificate verification is disabled")
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  timeout,
		insecure: cfg.InsecureSkipVerify,
	}
}

// CreateSession opens a payment session for the summary. The gateway answers
// 201 with the session id and the link the customer pays at.
func (c *Client) CreateSession(summary models.OrderSummary, token string) (CreateResult, error) {
	var result CreateResult
	agent := c.prepare(fiber.Post(c.baseURL+"/api/orders/"), summary, token)
	if err := c.exchange("create", agent, http.StatusCreated, &result); err != nil {
		return CreateResult{}, err
	}
	if result.PaymentID == "" || result.PaymentLink == "" {
		return CreateResult{}, &Error{Op: "create", StatusCode: http.StatusCreated, Err: errors.New("response lacks payment_id or payment_link")}
	}
	return result, nil
}

// UpdateSession replaces the order data of an existing payment session. The
// gateway answers 200 with a possibly refreshed payment link.
func (c *Client) UpdateSession(paymentID string, summary models.OrderSummary, token string) (UpdateResult, error) {
	var result UpdateResult
	endpoint := fmt.Sprintf("%s/api/orders/%s/", c.baseURL, url.PathEscape(paymentID))
	agent := c.prepare(fiber.Put(endpoint), summary, token)
	if err := c.exchange("update", agent, http.StatusOK, &result); err != nil {
		return UpdateResult{}, err
	}
	if result.PaymentLink == "" {
		return UpdateResult{}, &Error{Op: "update", StatusCode: http.StatusOK, Err: errors.New("response lacks payment_link")}
	}
	return result, nil
}

func (c *Client) prepare(agent *fiber.Agent, summary models.OrderSummary, token string) *fiber.Agent {
	if summary.Products == nil {
		summary.Products = []models.SummaryProduct{}
	}
	agent.Timeout(c.timeout).JSON(summary)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if c.insecure {
		agent.InsecureSkipVerify()
	}
	return agent
}

func (c *Client) exchange(op string, agent *fiber.Agent, want int, out interface{}) error {
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return &Error{Op: op, StatusCode: code, Body: body, Err: errors.Join(errs...)}
	}
	if code != want {
		return &Error{Op: op, StatusCode: code, Body: body}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, StatusCode: code, Body: body, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
