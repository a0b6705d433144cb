package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderCommandType scopes request ids in the idempotency store.
const CreateOrderCommandType = "CreateOrderCommand"

// CreateOrderCommand carries everything needed to place an order. The buyer
// identity comes from the authenticated session, never from the request body.
type CreateOrderCommand struct {
	UserID   string
	UserName string

	Street  string
	City    string
	State   string
	Country string
	ZipCode string

	CardTypeID         int
	CardNumber         string
	CardHolderName     string
	CardSecurityNumber string
	CardExpiration     time.Time

	Items []OrderItemDTO
}

// OrderItemDTO is one requested basket line.
type OrderItemDTO struct {
	ProductID   int
	ProductName string
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	PictureURL  string
	Units       int
}

// CreateOrderResult is stored by the idempotency gate and replayed verbatim to
// duplicate deliveries, so it must round-trip through JSON.
type CreateOrderResult struct {
	Success bool      `json:"success"`
	OrderID uuid.UUID `json:"order_id"`
}
