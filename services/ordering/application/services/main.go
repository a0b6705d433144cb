package services

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/ghuser/eshop-ordering/pkg/app"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/services/ordering/infrastructure/persistence/postgres"
)

// TracerName is the instrumentation scope of the ordering spans.
const TracerName = "ordering"

// Services is the application-layer service container for this bounded context.
// It wires domain services with their infrastructure implementations.
type Services struct {
	Order    *OrderService
	Dispatch *Dispatcher
}

// New wires all ordering application services with infrastructure from the Application container.
func New(a *app.Application) (*Services, error) {
	repo := postgres.NewOrderRepository(a.Db)
	orderSvc, err := NewOrderService(repo, otel.Meter(MeterName), otel.Tracer(TracerName), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("ordering services: %w", err)
	}

	gate := idempotency.NewGate(
		idempotency.NewPostgresStore(a.Db.DB()),
		CreateOrderCommandType,
		orderSvc.PlaceOrder,
		idempotency.Config{ClaimTTL: a.Config.IdempotencyClaimTTL},
		a.Logger,
	)

	return &Services{
		Order:    orderSvc,
		Dispatch: NewDispatcher(gate, a.Logger),
	}, nil
}
