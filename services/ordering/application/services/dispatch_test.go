package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/masking"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

func newTestDispatcher(t *testing.T, repo *fakeOrderRepository) *Dispatcher {
	t.Helper()
	return newDispatcherWith(t, repo, idempotency.NewMemoryStore(), idempotency.Config{}, logger.New(&config.Config{LogLevel: "error"}))
}

func newDispatcherWith(t *testing.T, repo *fakeOrderRepository, store idempotency.Store, cfg idempotency.Config, log logger.Logger) *Dispatcher {
	t.Helper()
	svc, err := NewOrderService(repo, metricnoop.NewMeterProvider().Meter("test"), tracenoop.NewTracerProvider().Tracer("test"), log)
	require.NoError(t, err)
	gate := idempotency.NewGate(store, CreateOrderCommandType, svc.PlaceOrder, cfg, log)
	return NewDispatcher(gate, log)
}

// lossyStore never manages to mark a record Completed.
type lossyStore struct {
	*idempotency.MemoryStore
}

func (lossyStore) Complete(context.Context, idempotency.Record, []byte) error {
	return errors.New("connection reset")
}

// expireAtOnce makes every InProgress claim stale by the next delivery.
var expireAtOnce = idempotency.Config{ClaimTTL: time.Nanosecond, CompleteRetries: 1, CompleteBackoff: time.Millisecond}

func TestDispatcher_DuplicateIsSuccessfulNoOp(t *testing.T) {
	repo := &fakeOrderRepository{}
	d := newTestDispatcher(t, repo)

	first, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	orders, evts := repo.saved()
	assert.Len(t, orders, 1, "exactly one order persisted")
	assert.Len(t, evts, 1, "exactly one OrderStarted event queued")
}

func TestDispatcher_DistinctRequestIDsCreateDistinctOrders(t *testing.T) {
	repo := &fakeOrderRepository{}
	d := newTestDispatcher(t, repo)

	a, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	b, err := d.CreateOrder(context.Background(), "R2", validCommand())
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
	orders, _ := repo.saved()
	assert.Len(t, orders, 2)
}

func TestDispatcher_ValidationFailureThenCorrectedRetry(t *testing.T) {
	repo := &fakeOrderRepository{}
	d := newTestDispatcher(t, repo)

	bad := validCommand()
	bad.Items[0].Units = 0
	_, err := d.CreateOrder(context.Background(), "R1", bad)
	require.ErrorIs(t, err, orderdomain.ErrValidation)

	orders, evts := repo.saved()
	require.Empty(t, orders)
	require.Empty(t, evts)

	res, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	assert.True(t, res.Success)

	again, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	assert.Equal(t, res, again)

	orders, evts = repo.saved()
	assert.Len(t, orders, 1)
	assert.Len(t, evts, 1)
}

func TestDispatcher_PersistenceFailureIsNotCached(t *testing.T) {
	repo := &fakeOrderRepository{err: errors.New("commit failed")}
	d := newTestDispatcher(t, repo)

	_, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.ErrorIs(t, err, orderdomain.ErrPersistence)

	repo.setErr(nil)
	res, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	assert.True(t, res.Success)

	orders, _ := repo.saved()
	assert.Len(t, orders, 1)
}

func TestDispatcher_ConcurrentDuplicates(t *testing.T) {
	const deliveries = 20
	repo := &fakeOrderRepository{delay: 20 * time.Millisecond}
	d := newTestDispatcher(t, repo)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []CreateOrderResult
	)
	start := make(chan struct{})
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := d.CreateOrder(context.Background(), "R1", validCommand())
			if errors.Is(err, idempotency.ErrRequestInProgress) {
				return
			}
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	orders, evts := repo.saved()
	require.Len(t, orders, 1)
	assert.Len(t, evts, 1)
	require.NotEmpty(t, results)
	for _, res := range results {
		assert.Equal(t, orders[0].ID(), res.OrderID)
	}
}

func TestDispatcher_InvalidRequestID(t *testing.T) {
	repo := &fakeOrderRepository{}
	d := newTestDispatcher(t, repo)

	_, err := d.CreateOrder(context.Background(), "", validCommand())

	assert.ErrorIs(t, err, idempotency.ErrInvalidRequestID)
	orders, _ := repo.saved()
	assert.Empty(t, orders)
}

func TestDispatcher_RetryAfterLostCompletionPlacesOneOrder(t *testing.T) {
	repo := &fakeOrderRepository{}
	d := newDispatcherWith(t, repo, lossyStore{idempotency.NewMemoryStore()}, expireAtOnce, logger.New(&config.Config{LogLevel: "error"}))

	first, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)

	// The first record never completed and its claim has expired, so each
	// retry runs PlaceOrder again against the same order id.
	for i := 0; i < 3; i++ {
		retry, err := d.CreateOrder(context.Background(), "R1", validCommand())
		require.NoError(t, err)
		assert.Equal(t, first, retry)
	}

	orders, evts := repo.saved()
	require.Len(t, orders, 1)
	assert.Len(t, evts, 1)
	assert.Equal(t, first.OrderID, orders[0].ID())
}

func TestDispatcher_SlowDeliveryOverlappingRetryPlacesOneOrder(t *testing.T) {
	started := make(chan struct{})
	resume := make(chan struct{})
	repo := &fakeOrderRepository{beforeSave: func(call int) {
		if call == 1 {
			close(started)
			<-resume
		}
	}}
	d := newDispatcherWith(t, repo, idempotency.NewMemoryStore(), expireAtOnce, logger.New(&config.Config{LogLevel: "error"}))

	type outcome struct {
		res CreateOrderResult
		err error
	}
	slow := make(chan outcome, 1)
	go func() {
		res, err := d.CreateOrder(context.Background(), "R1", validCommand())
		slow <- outcome{res, err}
	}()
	<-started

	retry, err := d.CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)

	close(resume)
	late := <-slow
	require.NoError(t, late.err)
	assert.Equal(t, retry, late.res)

	orders, evts := repo.saved()
	require.Len(t, orders, 1)
	assert.Len(t, evts, 1)
	assert.Equal(t, retry.OrderID, orders[0].ID())
}

func TestDispatcher_SameRequestIDSameOrderID(t *testing.T) {
	a, err := newTestDispatcher(t, &fakeOrderRepository{}).CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)
	b, err := newTestDispatcher(t, &fakeOrderRepository{}).CreateOrder(context.Background(), "R1", validCommand())
	require.NoError(t, err)

	assert.Equal(t, a.OrderID, b.OrderID)
}

func TestDispatcher_LogsMaskedBuyer(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeOrderRepository{}
	d := newDispatcherWith(t, repo, idempotency.NewMemoryStore(), idempotency.Config{}, logger.NewWriter(&buf, "debug"))
	cmd := validCommand()
	cmd.UserID = "buyer-secret-42"

	_, err := d.CreateOrder(context.Background(), "R1", cmd)
	require.NoError(t, err)
	_, err = d.CreateOrder(context.Background(), "R1", cmd)
	require.NoError(t, err)
	bad := cmd
	bad.Items = nil
	_, err = d.CreateOrder(context.Background(), "R2", bad)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "order placed")
	assert.Contains(t, out, "duplicate create order request")
	assert.Contains(t, out, "place order failed")
	assert.NotContains(t, out, "buyer-secret-42")
	assert.Contains(t, out, `"buyer_ref":"`+masking.Identifier("buyer-secret-42")+`"`)
}
