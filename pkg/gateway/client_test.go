package gateway_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/pkg/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   models.OrderSummary
}

func newGateway(t *testing.T, status int, response string) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func summary() models.OrderSummary {
	return models.OrderSummary{
		Client:   models.Client{Name: "Ada", Surname: "Lovelace", Email: "ada@example.com"},
		Products: []models.SummaryProduct{{Name: "Widget", Quantity: 2}},
		OrderID:  "order-1",
		Total:    "20.00",
	}
}

func TestClient_CreateSession(t *testing.T) {
	srv, rec := newGateway(t, http.StatusCreated, `{"payment_id":"pay-1","payment_link":"https://pay.example/pay-1"}`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL + "/", Timeout: time.Second})

	result, err := client.CreateSession(summary(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, "https://pay.example/pay-1", result.PaymentLink)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/orders/", rec.path)
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, summary(), rec.body)
}

func TestClient_CreateSessionNon201IsGatewayError(t *testing.T) {
	srv, _ := newGateway(t, http.StatusInternalServerError, `{"detail":"boom"}`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.CreateSession(summary(), "tok")
	require.Error(t, err)

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusInternalServerError, gwErr.StatusCode)
	assert.Contains(t, string(gwErr.Body), "boom")
}

func TestClient_CreateSession200IsNotSuccess(t *testing.T) {
	srv, _ := newGateway(t, http.StatusOK, `{"payment_id":"pay-1","payment_link":"x"}`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.CreateSession(summary(), "tok")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusOK, gwErr.StatusCode)
}

func TestClient_UpdateSession(t *testing.T) {
	srv, rec := newGateway(t, http.StatusOK, `{"payment_link":"https://pay.example/pay-1?v=2"}`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, Timeout: time.Second})

	result, err := client.UpdateSession("pay-1", summary(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/pay-1?v=2", result.PaymentLink)
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/api/orders/pay-1/", rec.path)
}

func TestClient_UpdateSessionFailure(t *testing.T) {
	srv, _ := newGateway(t, http.StatusNotFound, `not found`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.UpdateSession("pay-1", summary(), "tok")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
}

func TestClient_NoTokenSendsNoAuthorization(t *testing.T) {
	srv, rec := newGateway(t, http.StatusCreated, `{"payment_id":"pay-1","payment_link":"x"}`)
	client := gateway.NewClient(gateway.Config{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.CreateSession(summary(), "")
	require.NoError(t, err)
	assert.Empty(t, rec.auth)
}

func TestClient_UnreachableGateway(t *testing.T) {
	client := gateway.NewClient(gateway.Config{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond})

	_, err := client.CreateSession(summary(), "tok")
	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "create", gwErr.Op)
}
