package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ghuser/eshop-ordering/pkg/auth"
	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/httpx"
	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	appsvcs "github.com/ghuser/eshop-ordering/services/ordering/application/services"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/events"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
)

type memoryOrderRepository struct {
	mu     sync.Mutex
	orders []*models.Order
	err    error
}

func (m *memoryOrderRepository) Save(_ context.Context, order *models.Order, _ ...events.IntegrationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("%w: %w", orderdomain.ErrPersistence, m.err)
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *memoryOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func newTestHandler(t *testing.T, repo *memoryOrderRepository, isProduction bool) *PostOrderHandler {
	t.Helper()
	log := logger.New(&config.Config{LogLevel: "error"})
	orderSvc, err := appsvcs.NewOrderService(repo, metricnoop.NewMeterProvider().Meter("test"), tracenoop.NewTracerProvider().Tracer("test"), log)
	require.NoError(t, err)
	gate := idempotency.NewGate(idempotency.NewMemoryStore(), appsvcs.CreateOrderCommandType, orderSvc.PlaceOrder, idempotency.Config{}, log)
	return NewPostOrderHandler(&appsvcs.Services{
		Order:    orderSvc,
		Dispatch: appsvcs.NewDispatcher(gate, log),
	}, isProduction)
}

func validBody() string {
	exp := time.Now().AddDate(2, 0, 0).UTC().Format(time.RFC3339)
	return `{
		"street": "15703 NE 61st Ct", "city": "Redmond", "state": "WA", "country": "U.S.", "zip_code": "98052",
		"card_type_id": 1, "card_number": "4012888888881881", "card_holder_name": "Alice Smith",
		"card_security_number": "535", "card_expiration": "` + exp + `",
		"items": [
			{"product_id": 1, "product_name": "Hoodie", "unit_price": "19.50", "discount": "0", "units": 2},
			{"product_id": 2, "product_name": "Mug", "unit_price": 8.5, "units": 1}
		]
	}`
}

func newRequest(body, requestID string, buyer *auth.Buyer) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if requestID != "" {
		r.Header.Set(httpx.RequestIDHeader, requestID)
	}
	if buyer != nil {
		r = r.WithContext(auth.WithBuyer(r.Context(), *buyer))
	}
	return r
}

var alice = &auth.Buyer{ID: "U1", Name: "Alice"}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) CreateOrderResponse {
	t.Helper()
	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestPostOrder_Created(t *testing.T) {
	repo := &memoryOrderRepository{}
	h := newTestHandler(t, repo, false)

	rr := httptest.NewRecorder()
	h.Execute(rr, newRequest(validBody(), uuid.NewString(), alice))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decodeResponse(t, rr)
	assert.True(t, resp.Success)
	assert.NotEqual(t, uuid.Nil, resp.OrderID)

	require.Equal(t, 1, repo.count())
	order := repo.orders[0]
	assert.Equal(t, "U1", order.BuyerID())
	assert.Equal(t, "47.50", order.Total().StringFixed(2))
}

func TestPostOrder_DuplicateReturnsFirstResult(t *testing.T) {
	repo := &memoryOrderRepository{}
	h := newTestHandler(t, repo, false)
	requestID := uuid.NewString()

	first := httptest.NewRecorder()
	h.Execute(first, newRequest(validBody(), requestID, alice))
	second := httptest.NewRecorder()
	h.Execute(second, newRequest(validBody(), strings.ToUpper(requestID), alice))

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decodeResponse(t, first).OrderID, decodeResponse(t, second).OrderID)
	assert.Equal(t, 1, repo.count())
}

func TestPostOrder_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		requestID  string
		buyer      *auth.Buyer
		wantStatus int
	}{
		{"no buyer", validBody(), uuid.NewString(), nil, http.StatusUnauthorized},
		{"missing request id", validBody(), "", alice, http.StatusBadRequest},
		{"malformed request id", validBody(), "order-1", alice, http.StatusBadRequest},
		{"malformed json", "{", uuid.NewString(), alice, http.StatusBadRequest},
		{"no items", strings.Replace(validBody(), `"items": [`, `"items": [], "ignored": [`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"zero units", strings.Replace(validBody(), `"units": 2`, `"units": 0`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"negative price", strings.Replace(validBody(), `"19.50"`, `"-1"`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"missing city", strings.Replace(validBody(), `"Redmond"`, `""`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"discount above line", strings.Replace(validBody(), `"discount": "0"`, `"discount": "100"`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"product id beyond int32", strings.Replace(validBody(), `"product_id": 1,`, `"product_id": 4294967297,`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"units beyond int32", strings.Replace(validBody(), `"units": 2`, `"units": 2147483648`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"card type beyond int32", strings.Replace(validBody(), `"card_type_id": 1`, `"card_type_id": 2147483648`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"sub-cent price", strings.Replace(validBody(), `"19.50"`, `"19.505"`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"sub-cent discount", strings.Replace(validBody(), `"discount": "0"`, `"discount": "0.001"`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"price beyond column precision", strings.Replace(validBody(), `"19.50"`, `"10000000000000000"`, 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
		{"expired card", strings.Replace(validBody(), time.Now().AddDate(2, 0, 0).UTC().Format("2006"), "2001", 1), uuid.NewString(), alice, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memoryOrderRepository{}
			h := newTestHandler(t, repo, false)

			rr := httptest.NewRecorder()
			h.Execute(rr, newRequest(tt.body, tt.requestID, tt.buyer))

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Zero(t, repo.count())
		})
	}
}

func TestPostOrder_PersistenceFailureIsRetryable(t *testing.T) {
	repo := &memoryOrderRepository{err: errors.New("connection reset")}
	h := newTestHandler(t, repo, true)
	requestID := uuid.NewString()

	rr := httptest.NewRecorder()
	h.Execute(rr, newRequest(validBody(), requestID, alice))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	rr = httptest.NewRecorder()
	h.Execute(rr, newRequest(validBody(), requestID, alice))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 1, repo.count())
}
