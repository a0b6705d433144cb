package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/eshop-ordering/pkg/idempotency"
	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/masking"
	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/events"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/models"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/repositories"
	domainsvcs "github.com/ghuser/eshop-ordering/services/ordering/domain/services"
)

// OrderService runs the order creation workflow: queue OrderStarted, build the
// Order aggregate, persist both in one transaction.
type OrderService struct {
	repo    repositories.OrderRepository
	metrics *orderMetrics
	tracer  trace.Tracer
	log     logger.Logger
}

// NewOrderService returns an OrderService. meter and tracer receive the
// ordering instruments and the PlaceOrder span.
func NewOrderService(repo repositories.OrderRepository, meter metric.Meter, tracer trace.Tracer, log logger.Logger) (*OrderService, error) {
	m, err := newOrderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("ordering metrics: %w", err)
	}
	return &OrderService{repo: repo, metrics: m, tracer: tracer, log: log}, nil
}

// PlaceOrder validates cmd, builds the Order and saves it together with an
// OrderStartedEvent. Validation failures match domain.ErrValidation and
// persist nothing; storage failures match domain.ErrPersistence.
//
// Run behind an idempotency.Gate, the order id is the claim key, so every
// attempt for one request id targets the same order. An attempt that finds
// the order already stored returns its result with idempotency.ErrAlreadyApplied.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(
		attribute.String("user.id", masking.Identifier(cmd.UserID)),
		attribute.String("card.number", masking.Identifier(cmd.CardNumber)),
		attribute.String("card.security_number", masking.Identifier(cmd.CardSecurityNumber)),
	))
	defer span.End()

	order, err := s.placeOrder(ctx, cmd)

	elapsed := time.Since(start)
	span.SetAttributes(
		attribute.Int("order.item_count", len(cmd.Items)),
		attribute.Float64("order.processing_time", elapsed.Seconds()),
	)

	switch {
	case errors.Is(err, idempotency.ErrAlreadyApplied):
		span.SetAttributes(attribute.String("order.id", order.ID().String()))
		s.log.InfoContext(ctx, "order already placed by an earlier attempt",
			"order_id", order.ID(),
			"buyer_ref", masking.Identifier(cmd.UserID),
		)
		return resultFor(order), err

	case err != nil:
		s.metrics.recordProcessingTime(ctx, elapsed, outcomeFailure)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WarnContext(ctx, "place order failed", "buyer_ref", masking.Identifier(cmd.UserID), "error", err)
		return CreateOrderResult{}, err
	}

	s.metrics.recordProcessingTime(ctx, elapsed, outcomeSuccess)
	s.metrics.recordPlaced(ctx, order)
	span.SetAttributes(attribute.String("order.id", order.ID().String()))

	s.log.InfoContext(ctx, "order placed",
		"order_id", order.ID(),
		"buyer_ref", masking.Identifier(order.BuyerID()),
		"items", len(order.Items()),
		"total", order.Total().StringFixed(2),
	)

	return resultFor(order), nil
}

func resultFor(order *models.Order) CreateOrderResult {
	return CreateOrderResult{Success: true, OrderID: order.ID()}
}

func (s *OrderService) placeOrder(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	started := events.NewOrderStartedEvent(cmd.UserID)

	address, err := models.NewAddress(cmd.Street, cmd.City, cmd.State, cmd.Country, cmd.ZipCode)
	if err != nil {
		return nil, err
	}

	payment, err := models.NewPaymentMethod(cmd.CardTypeID, cmd.CardNumber, cmd.CardSecurityNumber, cmd.CardHolderName, cmd.CardExpiration)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	claim, claimed := idempotency.ClaimFromContext(ctx)
	if claimed {
		orderID = claim.Key()
	}

	order, err := models.NewOrderWithID(orderID, cmd.UserID, cmd.UserName, address, payment)
	if err != nil {
		return nil, err
	}

	for i, item := range cmd.Items {
		if err := order.AddItem(item.ProductID, item.ProductName, item.UnitPrice, item.Discount, item.PictureURL, item.Units); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	if err := domainsvcs.ValidateOrderForSubmission(order); err != nil {
		return nil, err
	}

	if err := s.repo.Save(idempotency.CompleteOnCommit(ctx, resultFor(order)), order, started); err != nil {
		if claimed && errors.Is(err, orderdomain.ErrOrderAlreadyExists) {
			return order, fmt.Errorf("%w: %w", idempotency.ErrAlreadyApplied, err)
		}
		return nil, err
	}
	return order, nil
}
