package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ghuser/eshop-ordering/pkg/masking"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

// PaymentMethod describes how the buyer pays. Only a masked card reference is
// kept; the full card number and the security code never leave the constructor.
type PaymentMethod struct {
	cardTypeID     int
	cardReference  string
	cardHolderName string
	expiration     time.Time
}

// NewPaymentMethod validates the card descriptor. The card must not be expired
// at the time of the call.
func NewPaymentMethod(cardTypeID int, cardNumber, securityNumber, cardHolderName string, expiration time.Time) (PaymentMethod, error) {
	cardNumber = strings.TrimSpace(cardNumber)
	cardHolderName = strings.TrimSpace(cardHolderName)

	switch {
	case cardTypeID <= 0:
		return PaymentMethod{}, fmt.Errorf("%w: card type is required", orderdomain.ErrInvalidPaymentMethod)
	case cardTypeID > math.MaxInt32:
		return PaymentMethod{}, fmt.Errorf("%w: card type out of range (got %d)", orderdomain.ErrInvalidPaymentMethod, cardTypeID)
	case cardNumber == "":
		return PaymentMethod{}, fmt.Errorf("%w: card number is required", orderdomain.ErrInvalidPaymentMethod)
	case strings.TrimSpace(securityNumber) == "":
		return PaymentMethod{}, fmt.Errorf("%w: security number is required", orderdomain.ErrInvalidPaymentMethod)
	case cardHolderName == "":
		return PaymentMethod{}, fmt.Errorf("%w: card holder name is required", orderdomain.ErrInvalidPaymentMethod)
	case !expiration.After(time.Now()):
		return PaymentMethod{}, fmt.Errorf("%w: card expired", orderdomain.ErrInvalidPaymentMethod)
	}

	return PaymentMethod{
		cardTypeID:     cardTypeID,
		cardReference:  masking.CardNumber(cardNumber),
		cardHolderName: cardHolderName,
		expiration:     expiration.UTC(),
	}, nil
}

func (p PaymentMethod) CardTypeID() int        { return p.cardTypeID }
func (p PaymentMethod) CardReference() string  { return p.cardReference }
func (p PaymentMethod) CardHolderName() string { return p.cardHolderName }
func (p PaymentMethod) Expiration() time.Time  { return p.expiration }
func (p PaymentMethod) isZero() bool           { return p.cardTypeID == 0 && p.cardReference == "" }
