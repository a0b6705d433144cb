// Package services contains stateless domain services for the ordering bounded context.
// Domain services enforce business rules that operate purely on domain types
// and have zero external dependencies beyond stdlib and the domain layer.
package services

import (
	"fmt"

	"github.com/google/uuid"

	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
)

// ValidateOrderForSubmission performs whole-aggregate checks on an Order built
// via models.NewOrder and AddItem, right before it is persisted.
//
// Business rules:
//   - At least one item
//   - Order total is not negative
func ValidateOrderForSubmission(order *models.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order cannot be nil", orderdomain.ErrValidation)
	}

	if order.ID() == uuid.Nil {
		return fmt.Errorf("%w: id must be set", orderdomain.ErrValidation)
	}

	if len(order.Items()) == 0 {
		return orderdomain.ErrEmptyOrder
	}

	if total := order.Total(); total.IsNegative() {
		return fmt.Errorf("%w: order total must not be negative (got %s)", orderdomain.ErrValidation, total)
	}

	return nil
}
