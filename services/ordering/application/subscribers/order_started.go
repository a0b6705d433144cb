// Package subscribers holds handlers for integration events consumed by the
// ordering worker.
package subscribers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/eshop-ordering/pkg/logger"
	"github.com/ghuser/eshop-ordering/pkg/masking"
	"github.com/ghuser/eshop-ordering/services/ordering/domain/events"
)

// BasketRemover deletes a buyer's basket. Deleting a missing basket must
// succeed.
type BasketRemover interface {
	Delete(ctx context.Context, buyerID string) error
}

// HandleOrderStarted returns a handler for order.started events that clears the
// buyer's basket. Delivery is at-least-once; a redelivered event deletes an
// already-missing key, which is a no-op.
//
// Malformed payloads are logged and acknowledged: retrying cannot fix them.
func HandleOrderStarted(baskets BasketRemover, log logger.Logger) func(context.Context, *message.Message) error {
	return func(ctx context.Context, msg *message.Message) error {
		var evt events.OrderStartedEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			log.ErrorContext(ctx, "dropping malformed order.started event",
				"message_uuid", msg.UUID, "error", err)
			return nil
		}
		if evt.BuyerID == "" {
			log.ErrorContext(ctx, "dropping order.started event without buyer",
				"event_id", evt.EventID)
			return nil
		}

		if err := baskets.Delete(ctx, evt.BuyerID); err != nil {
			return fmt.Errorf("clear basket for event %s: %w", evt.EventID, err)
		}

		log.InfoContext(ctx, "basket cleared",
			"event_id", evt.EventID,
			"buyer_ref", masking.Identifier(evt.BuyerID),
		)
		return nil
	}
}
