package models

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

// OrderItem is a line of an Order. It has no identity of its own and is only
// created through Order.AddItem.
type OrderItem struct {
	productID   int
	productName string
	unitPrice   decimal.Decimal
	discount    decimal.Decimal
	pictureURL  string
	units       int
}

const (
	// moneyScale is the number of decimal places stored for prices and discounts.
	moneyScale = 2
	// maxIDOrCount bounds product ids and unit counts to the stored integer width.
	maxIDOrCount = math.MaxInt32
)

// moneyLimit is the first amount that no longer fits 16 integer digits.
var moneyLimit = decimal.New(1, 16)

func newOrderItem(productID int, productName string, unitPrice, discount decimal.Decimal, pictureURL string, units int) (OrderItem, error) {
	if productID <= 0 || productID > maxIDOrCount {
		return OrderItem{}, fmt.Errorf("%w: product id out of range (got %d)", orderdomain.ErrInvalidOrderItem, productID)
	}
	if units <= 0 {
		return OrderItem{}, fmt.Errorf("%w: units must be positive (got %d)", orderdomain.ErrInvalidOrderItem, units)
	}
	if units > maxIDOrCount {
		return OrderItem{}, fmt.Errorf("%w: units out of range (got %d)", orderdomain.ErrInvalidOrderItem, units)
	}
	if unitPrice.IsNegative() {
		return OrderItem{}, fmt.Errorf("%w: unit price must not be negative (got %s)", orderdomain.ErrInvalidOrderItem, unitPrice)
	}
	if discount.IsNegative() {
		return OrderItem{}, fmt.Errorf("%w: discount must not be negative (got %s)", orderdomain.ErrInvalidOrderItem, discount)
	}
	if err := checkMoney("unit price", unitPrice); err != nil {
		return OrderItem{}, err
	}
	if err := checkMoney("discount", discount); err != nil {
		return OrderItem{}, err
	}
	gross := unitPrice.Mul(decimal.NewFromInt(int64(units)))
	if discount.GreaterThan(gross) {
		return OrderItem{}, fmt.Errorf("%w: discount %s exceeds line amount %s", orderdomain.ErrInvalidOrderItem, discount, gross)
	}

	return OrderItem{
		productID:   productID,
		productName: productName,
		unitPrice:   unitPrice,
		discount:    discount,
		pictureURL:  pictureURL,
		units:       units,
	}, nil
}

// checkMoney rejects amounts the order_items columns would round or overflow.
func checkMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(moneyScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places (got %s)", orderdomain.ErrInvalidOrderItem, field, moneyScale, d)
	}
	if d.GreaterThanOrEqual(moneyLimit) {
		return fmt.Errorf("%w: %s too large (got %s)", orderdomain.ErrInvalidOrderItem, field, d)
	}
	return nil
}

// Total is unit price × units minus the line discount. Never negative.
func (i OrderItem) Total() decimal.Decimal {
	return i.unitPrice.Mul(decimal.NewFromInt(int64(i.units))).Sub(i.discount)
}

func (i OrderItem) ProductID() int             { return i.productID }
func (i OrderItem) ProductName() string        { return i.productName }
func (i OrderItem) UnitPrice() decimal.Decimal { return i.unitPrice }
func (i OrderItem) Discount() decimal.Decimal  { return i.discount }
func (i OrderItem) PictureURL() string         { return i.pictureURL }
func (i OrderItem) Units() int                 { return i.units }
