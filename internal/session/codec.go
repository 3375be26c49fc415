package session

import (
	"encoding/json"
	"fmt"

	"storefront/internal/models"
)

// EncodeSummary serializes a summary for storage in the session.
func EncodeSummary(summary models.OrderSummary) (string, error) {
	if summary.Products == nil {
		summary.Products = []models.SummaryProduct{}
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode order summary: %w", err)
	}
	return string(b), nil
}

// DecodeSummary parses a stored summary. A summary without an order id is
// rejected because nothing can be correlated with it.
func DecodeSummary(raw string) (models.OrderSummary, error) {
	var summary models.OrderSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return models.OrderSummary{}, fmt.Errorf("failed to decode order summary: %w", err)
	}
	if summary.OrderID == "" {
		return models.OrderSummary{}, fmt.Errorf("failed to decode order summary: missing order_id")
	}
	return summary, nil
}
