package models

// CustomerForm is the checkout form submitted by the customer.
type CustomerForm struct {
	Name       string `json:"name" form:"name" validate:"required,max=50"`
	Surname    string `json:"surname" form:"surname" validate:"required,max=50"`
	Email      string `json:"email" form:"email" validate:"required,email,max=255"`
	Address    string `json:"address" form:"address" validate:"required,max=250"`
	PostalCode string `json:"postal_code" form:"postal_code" validate:"required,max=20"`
	City       string `json:"city" form:"city" validate:"required,max=100"`
}
