package services

import (
	"context"

	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/masking"
)

// Dispatcher is the entry point for identified commands. Each command runs
// through its idempotency gate.
type Dispatcher struct {
	createOrder *idempotency.Gate[CreateOrderCommand, CreateOrderResult]
	log         logger.Logger
}

// NewDispatcher returns a Dispatcher around the create-order gate.
func NewDispatcher(createOrder *idempotency.Gate[CreateOrderCommand, CreateOrderResult], log logger.Logger) *Dispatcher {
	return &Dispatcher{createOrder: createOrder, log: log}
}

// CreateOrder places an order at most once per requestID. A duplicate of a
// completed request is a successful no-op that returns the first result, so a
// client retrying a flaky submission is neither rejected nor charged twice.
// A duplicate that arrives while the first delivery is still running fails
// with idempotency.ErrRequestInProgress.
func (d *Dispatcher) CreateOrder(ctx context.Context, requestID string, cmd CreateOrderCommand) (CreateOrderResult, error) {
	res, duplicate, err := d.createOrder.Execute(ctx, requestID, cmd)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if duplicate {
		d.log.InfoContext(ctx, "duplicate create order request",
			"request_id", requestID,
			"order_id", res.OrderID,
			"buyer_ref", masking.Identifier(cmd.UserID),
		)
	}
	return res, nil
}
