package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
)

// MeterName is the instrumentation scope of the ordering instruments.
const MeterName = "ordering"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// orderMetrics holds the ordering instruments. Recording never fails and never
// influences the workflow.
type orderMetrics struct {
	totalOrders    metric.Int64Counter
	itemsPurchased metric.Int64Counter
	totalValue     metric.Float64Counter
	processingTime metric.Float64Histogram
}

func newOrderMetrics(meter metric.Meter) (*orderMetrics, error) {
	totalOrders, err := meter.Int64Counter("total_orders",
		metric.WithDescription("Number of orders placed"),
		metric.WithUnit("{order}"))
	if err != nil {
		return nil, fmt.Errorf("total_orders counter: %w", err)
	}

	itemsPurchased, err := meter.Int64Counter("total_items_purchased",
		metric.WithDescription("Number of units purchased across all orders"),
		metric.WithUnit("{item}"))
	if err != nil {
		return nil, fmt.Errorf("total_items_purchased counter: %w", err)
	}

	totalValue, err := meter.Float64Counter("total_value",
		metric.WithDescription("Monetary value of placed orders"))
	if err != nil {
		return nil, fmt.Errorf("total_value counter: %w", err)
	}

	processingTime, err := meter.Float64Histogram("order_processing_time",
		metric.WithDescription("Time spent building and persisting an order"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("order_processing_time histogram: %w", err)
	}

	return &orderMetrics{
		totalOrders:    totalOrders,
		itemsPurchased: itemsPurchased,
		totalValue:     totalValue,
		processingTime: processingTime,
	}, nil
}

// recordPlaced is called only after the order committed.
func (m *orderMetrics) recordPlaced(ctx context.Context, order *models.Order) {
	m.totalOrders.Add(ctx, 1)
	m.itemsPurchased.Add(ctx, int64(order.UnitCount()))
	m.totalValue.Add(ctx, order.Total().InexactFloat64())
}

func (m *orderMetrics) recordProcessingTime(ctx context.Context, elapsed time.Duration, outcome string) {
	m.processingTime.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
