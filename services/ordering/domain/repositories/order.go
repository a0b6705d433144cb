package repositories

import (
	"context"

	"github.com/ghuser/eshop-ordering/services/ordering/domain/events"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
)

// OrderRepository is the persistence interface for the Order aggregate.
// The domain layer owns this interface; infrastructure implements it.
type OrderRepository interface {
	// Save persists the order with its items and appends the given integration
	// events to the event log. Everything commits in one transaction or not at all.
	// Failures wrap domain.ErrPersistence.
	Save(ctx context.Context, order *models.Order, evts ...events.IntegrationEvent) error
}
