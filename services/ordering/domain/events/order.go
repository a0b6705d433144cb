package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicOrderStarted is the topic an OrderStartedEvent is relayed to. The worker
// subscribes to it to clear the buyer's basket.
const TopicOrderStarted = "order.started"

// IntegrationEvent is a fact destined for other subsystems. Implementations are
// serialized to JSON and written to the integration event log in the same
// transaction as the aggregate change that produced them.
type IntegrationEvent interface {
	ID() uuid.UUID
	Topic() string
	SchemaVersion() int
}

// OrderStartedEvent is queued whenever a buyer submits an order.
type OrderStartedEvent struct {
	EventID    uuid.UUID `json:"event_id"` // Unique identifier consumers deduplicate on
	Version    int       `json:"version"`  // Schema version; increment on breaking changes
	BuyerID    string    `json:"buyer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderStartedEvent stamps a fresh event id and the current time.
func NewOrderStartedEvent(buyerID string) OrderStartedEvent {
	return OrderStartedEvent{
		EventID:    uuid.New(),
		Version:    1,
		BuyerID:    buyerID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e OrderStartedEvent) ID() uuid.UUID      { return e.EventID }
func (e OrderStartedEvent) Topic() string      { return TopicOrderStarted }
func (e OrderStartedEvent) SchemaVersion() int { return e.Version }
