package model

import "time"

// CheckoutForm is the flat shipping/billing record accumulated across the
// multi-step checkout. No validation happens at this layer; each storefront
// step owns its own schema.
type CheckoutForm struct {
	Name      string `json:"name,omitempty"`
	Address   string `json:"address,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Zip       string `json:"zip,omitempty"`
	City      string `json:"city,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// DeliveryOption is a selectable shipping method shown during checkout.
type DeliveryOption struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       FlexPrice `json:"price"`
	Description string    `json:"description,omitempty"`
}

// PaymentCard holds the card form fields. The proxy never charges the card;
// the fields only survive navigation between checkout steps.
type PaymentCard struct {
	Number string `json:"number,omitempty"`
	Holder string `json:"holder,omitempty"`
	Expiry string `json:"expiry,omitempty"` // MM/YY as typed
	CVC    string `json:"cvc,omitempty"`
}

// CheckoutState is one session's accumulated checkout progress. Created
// empty on checkout entry, discarded when the session ends.
type CheckoutState struct {
	Form     CheckoutForm    `json:"form"`
	Delivery *DeliveryOption `json:"delivery,omitempty"`
	Card     *PaymentCard    `json:"card,omitempty"`

	// UpdatedAt drives idle-session expiry, not serialized to clients.
	UpdatedAt time.Time `json:"-"`
}

// Summary is the read-only view rendered by the order-review step.
type Summary struct {
	Items    []CartItem      `json:"items"`
	Form     CheckoutForm    `json:"form"`
	Delivery *DeliveryOption `json:"delivery,omitempty"`
	Subtotal FlexPrice       `json:"subtotal"`
	Total    FlexPrice       `json:"total"`
}
