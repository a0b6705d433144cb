package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/events"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
)

// fakeOrderRepository keeps saved orders and events in memory. Save is atomic:
// when err is set, or the order id is already stored, nothing is recorded.
type fakeOrderRepository struct {
	mu     sync.Mutex
	orders []*models.Order
	events []events.IntegrationEvent
	err    error
	delay  time.Duration

	// beforeSave runs at the start of every Save with the 1-based call number.
	beforeSave func(call int)
	calls      int
}

func (f *fakeOrderRepository) Save(ctx context.Context, order *models.Order, evts ...events.IntegrationEvent) error {
	f.mu.Lock()
	f.calls++
	call, hook := f.calls, f.beforeSave
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrPersistence, f.err)
	}
	for _, existing := range f.orders {
		if existing.ID() == order.ID() {
			return fmt.Errorf("%w: save order %s: %w", orderdomain.ErrPersistence, order.ID(), orderdomain.ErrOrderAlreadyExists)
		}
	}
	f.orders = append(f.orders, order)
	f.events = append(f.events, evts...)
	return nil
}

func (f *fakeOrderRepository) saved() ([]*models.Order, []events.IntegrationEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Order(nil), f.orders...), append([]events.IntegrationEvent(nil), f.events...)
}

func (f *fakeOrderRepository) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type telemetryHarness struct {
	reader   *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
}

func newTestOrderService(t *testing.T, repo *fakeOrderRepository) (*OrderService, *telemetryHarness) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	svc, err := NewOrderService(repo, mp.Meter(MeterName), tp.Tracer(TracerName), logger.New(&config.Config{LogLevel: "error"}))
	require.NoError(t, err)
	return svc, &telemetryHarness{reader: reader, recorder: recorder}
}

func (h *telemetryHarness) collect(t *testing.T) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func validCommand() CreateOrderCommand {
	return CreateOrderCommand{
		UserID:             "U1",
		UserName:           "Alice",
		Street:             "1 Main St",
		City:               "Redmond",
		State:              "WA",
		Country:            "US",
		ZipCode:            "98052",
		CardTypeID:         1,
		CardNumber:         "4012888888881881",
		CardHolderName:     "Alice Buyer",
		CardSecurityNumber: "535",
		CardExpiration:     time.Now().AddDate(1, 0, 0),
		Items: []OrderItemDTO{{
			ProductID:   42,
			ProductName: ".NET Bot Black Hoodie",
			UnitPrice:   decimal.RequireFromString("10.00"),
			Discount:    decimal.Zero,
			PictureURL:  "42.png",
			Units:       3,
		}},
	}
}
