// Package session keeps the checkout correlation state of one visitor: the
// order summary awaiting payment and the gateway's payment-session id.
package session

import (
	"fmt"

	"storefront/internal/models"
)

// Keys under which checkout state lives in the visitor's session.
const (
	SummaryKey   = "data"
	PaymentIDKey = "payment_id"
)

// Backend is the per-visitor key/value storage. *session.Session from
// gofiber/fiber/v2/middleware/session satisfies it.
type Backend interface {
	Get(key string) interface{}
	Set(key string, val interface{})
	Delete(key string)
}

// LoadStatus tells an empty session apart from one holding unreadable data.
type LoadStatus int

const (
	StatusEmpty LoadStatus = iota
	StatusLoaded
	StatusCorrupt
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "empty"
	}
}

// Store reads and writes typed checkout state on a Backend.
type Store struct {
	backend Backend
}

// NewStore wraps a session backend.
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Save replaces the stored summary.
func (s *Store) Save(summary models.OrderSummary) error {
	raw, err := EncodeSummary(summary)
	if err != nil {
		return err
	}
	s.backend.Set(SummaryKey, raw)
	return nil
}

// Load returns the stored summary. For StatusEmpty and StatusCorrupt the
// summary is the zero value; the error is only set for StatusCorrupt and is
// meant for diagnostics.
func (s *Store) Load() (models.OrderSummary, LoadStatus, error) {
	value := s.backend.Get(SummaryKey)
	if value == nil {
		return models.OrderSummary{}, StatusEmpty, nil
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return models.OrderSummary{}, StatusCorrupt, fmt.Errorf("unexpected %T under session key %q", value, SummaryKey)
	}
	if raw == "" {
		return models.OrderSummary{}, StatusEmpty, nil
	}

	summary, err := DecodeSummary(raw)
	if err != nil {
		return models.OrderSummary{}, StatusCorrupt, err
	}
	return summary, StatusLoaded, nil
}

// SavePaymentSessionID records the gateway's payment-session id.
func (s *Store) SavePaymentSessionID(id string) {
	s.backend.Set(PaymentIDKey, id)
}

// PaymentSessionID returns the stored payment-session id, if any.
func (s *Store) PaymentSessionID() (string, bool) {
	id, ok := s.backend.Get(PaymentIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Clear drops both the summary and the payment-session id.
func (s *Store) Clear() {
	s.backend.Delete(SummaryKey)
	s.backend.Delete(PaymentIDKey)
}

// MapBackend is a Backend kept in memory. It is used by tests and by callers
// that need checkout state outside an HTTP session.
type MapBackend map[string]interface{}

func (m MapBackend) Get(key string) interface{}      { return m[key] }
func (m MapBackend) Set(key string, val interface{}) { m[key] = val }
func (m MapBackend) Delete(key string)               { delete(m, key) }
