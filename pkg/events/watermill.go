// Package events is the Postgres-backed message bus between the ordering
// processes, built on Watermill's SQL transport.
//
// The api never publishes directly: it records integration events in the
// integration event log, and the worker's relay moves them onto the bus with
// PublishTx so the message row and the log's Published mark commit together.
// Consumers in the worker receive them through Subscribe.
//
// All subscribers share the consumer group "<service>-consumer", so each message
// is handled by one worker instance. Delivery is at-least-once; handlers must be
// idempotent. Trace context rides in message metadata in both directions.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillsql "github.com/ThreeDotsLabs/watermill-sql/v3/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/eshop-ordering/pkg/config"
	"github.com/ghuser/eshop-ordering/pkg/logger"
)

const (
	handlerAttempts  = 3
	handlerBaseDelay = time.Second
	shutdownTimeout  = 30 * time.Second
	forwarderTopic   = "_forwarder_queue"
)

var schema = watermillsql.DefaultPostgreSQLSchema{}

// EventBus publishes and consumes messages stored in Postgres. Messages are
// claimed with FOR UPDATE SKIP LOCKED, so instances never double-deliver
// within a consumer group.
type EventBus struct {
	db         *sql.DB
	publisher  message.Publisher
	subscriber *watermillsql.Subscriber
	fwd        *forwarder.Forwarder
	log        logger.Logger
	wlog       watermill.LoggerAdapter
	group      string
	forwarding bool
	handlers   sync.WaitGroup
}

// NewEventBus connects to cfg.DatabaseURL and prepares a publisher and a
// subscriber. Topic tables are created on first subscribe.
func NewEventBus(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return open(cfg, log, false)
}

// NewEventBusWithForwarder is NewEventBus with every publish routed through a
// durable forwarder queue. Call StartForwarder to drain the queue.
func NewEventBusWithForwarder(cfg *config.Config, log logger.Logger) (*EventBus, error) {
	return open(cfg, log, true)
}

func open(cfg *config.Config, log logger.Logger, forwarding bool) (*EventBus, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("events: open db: %w", err)
	}

	bus := &EventBus{
		db:         db,
		log:        log,
		wlog:       &slogAdapter{log: log},
		group:      cfg.ServiceName + "-consumer",
		forwarding: forwarding,
	}

	pub, err := bus.newPublisher(watermillsql.BeginnerFromStdSQL(db), true)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	bus.publisher = pub

	sub, err := bus.newSubscriber(bus.group)
	if err != nil {
		_ = pub.Close()
		_ = db.Close()
		return nil, err
	}
	bus.subscriber = sub

	return bus, nil
}

// newPublisher builds a SQL publisher on exec, wrapped in a forwarder envelope
// when the bus forwards.
func (q *EventBus) newPublisher(exec watermillsql.ContextExecutor, initSchema bool) (message.Publisher, error) {
	pub, err := q.newSQLPublisher(exec, initSchema)
	if err != nil {
		return nil, err
	}
	if q.forwarding {
		return forwarder.NewPublisher(pub, forwarder.PublisherConfig{ForwarderTopic: forwarderTopic}), nil
	}
	return pub, nil
}

func (q *EventBus) newSQLPublisher(exec watermillsql.ContextExecutor, initSchema bool) (*watermillsql.Publisher, error) {
	pub, err := watermillsql.NewPublisher(exec, watermillsql.PublisherConfig{
		SchemaAdapter:        schema,
		AutoInitializeSchema: initSchema,
	}, q.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new publisher: %w", err)
	}
	return pub, nil
}

func (q *EventBus) newSubscriber(group string) (*watermillsql.Subscriber, error) {
	sub, err := watermillsql.NewSubscriber(watermillsql.BeginnerFromStdSQL(q.db), watermillsql.SubscriberConfig{
		SchemaAdapter:    schema,
		OffsetsAdapter:   watermillsql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
		ConsumerGroup:    group,
	}, q.wlog)
	if err != nil {
		return nil, fmt.Errorf("events: new subscriber for %s: %w", group, err)
	}
	return sub, nil
}

// StartForwarder runs the daemon that moves enveloped messages from the
// forwarder queue to their real topics. It returns once the daemon is running.
// Only valid once, on a bus from NewEventBusWithForwarder.
func (q *EventBus) StartForwarder(ctx context.Context) error {
	switch {
	case !q.forwarding:
		return errors.New("events: StartForwarder called on non-forwarder EventBus")
	case q.fwd != nil:
		return errors.New("events: forwarder already started")
	}

	queue, err := q.newSubscriber("forwarder-consumer")
	if err != nil {
		return err
	}
	target, err := q.newSQLPublisher(watermillsql.BeginnerFromStdSQL(q.db), true)
	if err != nil {
		_ = queue.Close()
		return err
	}
	fwd, err := forwarder.NewForwarder(queue, target, q.wlog, forwarder.Config{ForwarderTopic: forwarderTopic})
	if err != nil {
		_ = target.Close()
		_ = queue.Close()
		return fmt.Errorf("events: create forwarder: %w", err)
	}
	q.fwd = fwd

	q.handlers.Add(1)
	go func() {
		defer q.handlers.Done()
		q.log.InfoContext(ctx, "events: forwarder started")
		if err := fwd.Run(ctx); err != nil {
			q.log.ErrorContext(ctx, "events: forwarder stopped with error", "error", err)
			return
		}
		q.log.InfoContext(ctx, "events: forwarder stopped")
	}()

	select {
	case <-fwd.Running():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("events: context cancelled waiting for forwarder: %w", ctx.Err())
	}
}

// NewTxPublisher returns a publisher whose writes belong to tx. Topic tables
// must already exist; the worker subscribes before relaying.
func (q *EventBus) NewTxPublisher(tx *sql.Tx) (message.Publisher, error) {
	pub, err := q.newPublisher(watermillsql.TxFromStdSQL(tx), false)
	if err != nil {
		return nil, fmt.Errorf("events: tx publisher: %w", err)
	}
	return pub, nil
}

// PublishTx publishes msg to topic inside tx, so the message row commits or
// rolls back together with the caller's other writes. Trace context from ctx
// is injected into the message metadata.
func (q *EventBus) PublishTx(ctx context.Context, tx *sql.Tx, topic string, msg *message.Message) error {
	if tx == nil {
		return fmt.Errorf("events: publish to %s: nil transaction", topic)
	}
	pub, err := q.NewTxPublisher(tx)
	if err != nil {
		return err
	}
	injectTrace(ctx, msg)
	if err := pub.Publish(topic, msg); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s in tx: %w", topic, err)
	}
	return nil
}

// Publish sends msgs to topic outside any caller transaction.
func (q *EventBus) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	injectTrace(ctx, msgs...)
	if err := q.publisher.Publish(topic, msgs...); err != nil { //nolint:contextcheck
		return fmt.Errorf("events: publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe feeds messages from topic to handler in a background goroutine.
// The handler's context carries the publisher's trace.
//
// A handler error is retried with exponential backoff (three attempts in
// total, starting at one second). When every attempt fails the message is
// Nacked and the error is sent on the returned channel, which callers must
// drain. Close waits for in-flight handlers.
func (q *EventBus) Subscribe(ctx context.Context, topic string, handler func(context.Context, *message.Message) error) (<-chan error, error) {
	msgs, err := q.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("events: subscribe to %s: %w", topic, err)
	}

	errCh := make(chan error, 100)

	q.handlers.Add(1)
	go func() {
		defer q.handlers.Done()
		defer close(errCh)

		for msg := range msgs {
			msgCtx := extractTrace(ctx, msg)
			if err := handleWithRetry(msgCtx, msg, handler, handlerBaseDelay, q.log); err != nil {
				msg.Nack()
				select {
				case errCh <- fmt.Errorf("events: %s message %s: %w", topic, msg.UUID, err):
				default:
					q.log.ErrorContext(msgCtx, "events: error channel full, dropping error",
						"error", err, "topic", topic)
				}
				continue
			}
			msg.Ack()
		}
	}()

	return errCh, nil
}

func injectTrace(ctx context.Context, msgs ...*message.Message) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for _, msg := range msgs {
		for k, v := range carrier {
			msg.Metadata.Set(k, v)
		}
	}
}

func extractTrace(ctx context.Context, msg *message.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Metadata))
}

// handleWithRetry runs handler up to handlerAttempts times, doubling the wait
// from baseDelay between attempts.
func handleWithRetry(
	ctx context.Context,
	msg *message.Message,
	handler func(context.Context, *message.Message) error,
	baseDelay time.Duration,
	log logger.Logger,
) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, handler(ctx, msg)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(handlerAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.WarnContext(ctx, "events: handler failed, retrying",
				"message_uuid", msg.UUID,
				"next_delay", next,
				"error", err,
			)
		}),
	)
	return err
}

// Ping checks the EventBus database connection health.
func (q *EventBus) Ping(ctx context.Context) error {
	if err := q.db.PingContext(ctx); err != nil {
		return fmt.Errorf("events: ping db: %w", err)
	}
	return nil
}

// Close stops consuming, waits up to 30s for in-flight handlers and the
// forwarder, then closes the publisher and the connection.
func (q *EventBus) Close() error {
	var errs []error
	if q.subscriber != nil {
		if err := q.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close subscriber: %w", err))
		}
	}
	if q.fwd != nil {
		if err := q.fwd.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close forwarder: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		q.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		q.log.Error("events: timed out waiting for in-flight handlers to complete")
	}

	if q.publisher != nil {
		if err := q.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close publisher: %w", err))
		}
	}
	if q.db != nil {
		if err := q.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// slogAdapter lets Watermill log through logger.Logger.
type slogAdapter struct{ log logger.Logger }

func (a *slogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(fieldArgs(fields), "error", err)...)
}

func (a *slogAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, fieldArgs(fields)...)
}

func (a *slogAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldArgs(fields)...)
}

// Trace is noisy per-message output; it maps to Debug.
func (a *slogAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, fieldArgs(fields)...)
}

func (a *slogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &slogAdapter{log: a.log.With(fieldArgs(fields)...)}
}

func fieldArgs(fields watermill.LogFields) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
