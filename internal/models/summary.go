package models

// Client is the customer subset sent to the payment gateway.
type Client struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// SummaryProduct is one product line of an OrderSummary.
type SummaryProduct struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderSummary is the session-scoped snapshot of an order that is sent to the
// payment gateway. Total is a decimal string; it is never a float.
type OrderSummary struct {
	Client   Client           `json:"client"`
	Products []SummaryProduct `json:"products"`
	OrderID  string           `json:"order_id"`
	Total    string           `json:"total"`
}

// IsZero reports whether the summary carries no order.
func (s OrderSummary) IsZero() bool {
	return s.OrderID == ""
}
