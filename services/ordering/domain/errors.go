package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ordering domain. Use errors.Is() to check these.
var (
	// ErrValidation indicates an order invariant was violated. Every more
	// specific validation error below matches it with errors.Is.
	ErrValidation = errors.New("order validation failed")

	// ErrInvalidBuyer indicates the buyer identity is missing.
	ErrInvalidBuyer = fmt.Errorf("%w: invalid buyer", ErrValidation)

	// ErrInvalidAddress indicates a shipping address field is missing.
	ErrInvalidAddress = fmt.Errorf("%w: invalid address", ErrValidation)

	// ErrInvalidPaymentMethod indicates the payment descriptor is incomplete or expired.
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)

	// ErrInvalidOrderItem indicates a line item violates units, price or discount rules.
	ErrInvalidOrderItem = fmt.Errorf("%w: invalid order item", ErrValidation)

	// ErrEmptyOrder indicates an order was submitted without items.
	ErrEmptyOrder = fmt.Errorf("%w: order must have at least one item", ErrValidation)

	// ErrPersistence indicates the order unit of work could not be committed.
	// Nothing from the failed attempt is visible; callers may retry.
	ErrPersistence = errors.New("order persistence failed")

	// ErrOrderAlreadyExists indicates an order with the same id is already stored.
	ErrOrderAlreadyExists = errors.New("order already exists")
)
