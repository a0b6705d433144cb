package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghuser/eshop-ordering/pkg/database"
	"github.com/ghuser/eshop-ordering/pkg/eventlog"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
	domainevents "github.com/ghuser/eshop-ordering/services/ordering/domain/events"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
	"github.com/ghuser/eshop-ordering/services/ordering/infrastructure/persistence/postgres/db"
)

// OrderRepository implements repositories.OrderRepository against PostgreSQL.
type OrderRepository struct {
	db     *database.Database
	events *eventlog.Log
}

// NewOrderRepository returns an OrderRepository backed by the given connection
// pool. Integration events passed to Save go to the integration event log.
func NewOrderRepository(database *database.Database) *OrderRepository {
	return &OrderRepository{db: database, events: eventlog.New(database.DB())}
}

// Save appends evts to the integration event log, then inserts the order and
// its items, all in one transaction. Every failure wraps ErrPersistence; a
// duplicate order id additionally matches ErrOrderAlreadyExists.
func (r *OrderRepository) Save(ctx context.Context, order *models.Order, evts ...domainevents.IntegrationEvent) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, evt := range evts {
			entry, err := eventlog.NewEntry(evt.ID(), evt.Topic(), evt.SchemaVersion(), evt)
			if err != nil {
				return err
			}
			if err := r.events.Append(ctx, tx, entry); err != nil {
				return err
			}
		}

		q := db.New(tx)
		if err := q.InsertOrder(ctx, orderParams(order)); err != nil {
			if database.IsUniqueViolation(err) {
				return orderdomain.ErrOrderAlreadyExists
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range order.Items() {
			if err := q.InsertOrderItem(ctx, itemParams(order, i, item)); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: save order %s: %w", orderdomain.ErrPersistence, order.ID(), err)
	}
	return nil
}

func orderParams(o *models.Order) db.InsertOrderParams {
	address := o.Address()
	payment := o.PaymentMethod()
	return db.InsertOrderParams{
		ID:             o.ID(),
		BuyerID:        o.BuyerID(),
		BuyerName:      o.BuyerName(),
		Street:         address.Street(),
		City:           address.City(),
		State:          address.State(),
		Country:        address.Country(),
		ZipCode:        address.ZipCode(),
		CardTypeID:     int32(payment.CardTypeID()),
		CardReference:  payment.CardReference(),
		CardHolderName: payment.CardHolderName(),
		CardExpiration: payment.Expiration(),
		Status:         string(o.Status()),
		CreatedAt:      o.CreatedAt(),
	}
}

func itemParams(o *models.Order, position int, item models.OrderItem) db.InsertOrderItemParams {
	return db.InsertOrderItemParams{
		OrderID:     o.ID(),
		Position:    int32(position),
		ProductID:   int32(item.ProductID()),
		ProductName: item.ProductName(),
		UnitPrice:   item.UnitPrice().String(),
		Discount:    item.Discount().String(),
		PictureUrl:  item.PictureURL(),
		Units:       int32(item.Units()),
	}
}
