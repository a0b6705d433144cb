package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

// Status is the lifecycle state of an Order.
type Status string

// StatusSubmitted is the state every new order starts in.
const StatusSubmitted Status = "submitted"

// Order is the aggregate root for the ordering bounded context. State is only
// reachable through NewOrder and AddItem so the invariants always hold.
type Order struct {
	id        uuid.UUID
	buyerID   string
	buyerName string
	address   Address
	payment   PaymentMethod
	status    Status
	items     []OrderItem
	createdAt time.Time
}

// NewOrder constructs a submitted Order with a generated ID and no items.
func NewOrder(buyerID, buyerName string, address Address, payment PaymentMethod) (*Order, error) {
	return NewOrderWithID(uuid.New(), buyerID, buyerName, address, payment)
}

// NewOrderWithID is NewOrder with a caller-chosen ID, used when the ID must be
// the same on every attempt to place the same order.
func NewOrderWithID(id uuid.UUID, buyerID, buyerName string, address Address, payment PaymentMethod) (*Order, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: order id is required", orderdomain.ErrValidation)
	}
	if strings.TrimSpace(buyerID) == "" {
		return nil, fmt.Errorf("%w: buyer id is required", orderdomain.ErrInvalidBuyer)
	}
	if err := address.validate(); err != nil {
		return nil, err
	}
	if payment.isZero() {
		return nil, fmt.Errorf("%w: payment method is required", orderdomain.ErrInvalidPaymentMethod)
	}

	return &Order{
		id:        id,
		buyerID:   buyerID,
		buyerName: buyerName,
		address:   address,
		payment:   payment,
		status:    StatusSubmitted,
		createdAt: time.Now().UTC(),
	}, nil
}

// AddItem appends a line item. The order is left unchanged when the item is invalid.
func (o *Order) AddItem(productID int, productName string, unitPrice, discount decimal.Decimal, pictureURL string, units int) error {
	item, err := newOrderItem(productID, productName, unitPrice, discount, pictureURL, units)
	if err != nil {
		return err
	}
	o.items = append(o.items, item)
	return nil
}

// Total sums the line totals. It is computed on every call rather than stored.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.Total())
	}
	return total
}

// UnitCount is the number of units across all items.
func (o *Order) UnitCount() int {
	n := 0
	for _, item := range o.items {
		n += item.units
	}
	return n
}

// Items returns a copy of the line items in insertion order.
func (o *Order) Items() []OrderItem {
	out := make([]OrderItem, len(o.items))
	copy(out, o.items)
	return out
}

func (o *Order) ID() uuid.UUID                { return o.id }
func (o *Order) BuyerID() string              { return o.buyerID }
func (o *Order) BuyerName() string            { return o.buyerName }
func (o *Order) Address() Address             { return o.address }
func (o *Order) PaymentMethod() PaymentMethod { return o.payment }
func (o *Order) Status() Status               { return o.status }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
