package events

import (
	"context"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/messaging"
)

// Source identifies this service on every published event
const Source = "inventory-service"

// Publisher is the part of *messaging.Publisher used here
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes ledger and count events. Publishing is
// best effort: failures are logged and never undo the committed change.
type InventoryEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

var _ service.EventPublisher = (*InventoryEventPublisher)(nil)

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, *messaging.Publisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, Source, log)
	if err != nil {
		return nil, nil, err
	}

	return New(publisher, log), publisher, nil
}

// New wraps an existing publisher
func New(publisher Publisher, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log.WithComponent("inventory-events"),
	}
}

// PublishStockTransferred publishes a stock transferred event
func (p *InventoryEventPublisher) PublishStockTransferred(ctx context.Context, m *repository.StockMovement) {
	if p == nil || m == nil {
		return
	}
	p.publish(ctx, messaging.EventStockTransferred, movementEvent(m), m.ID)
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, m *repository.StockMovement) {
	if p == nil || m == nil {
		return
	}
	p.publish(ctx, messaging.EventStockAdjusted, movementEvent(m), m.ID)
}

// PublishCountApproved publishes a count approved event
func (p *InventoryEventPublisher) PublishCountApproved(ctx context.Context, c *repository.InventoryCount) {
	if p == nil || c == nil {
		return
	}

	data := messaging.CountApprovedEvent{
		CountID:        c.ID,
		OrganizationID: c.OrganizationID,
		LocationID:     c.LocationID,
		TotalValue:     c.TotalValue,
		ItemsCounted:   c.ItemsCounted,
	}
	if c.ApprovedByID != nil {
		data.ApprovedByID = *c.ApprovedByID
	}
	if c.ApprovedAt != nil {
		data.ApprovedAt = *c.ApprovedAt
	}

	p.publish(ctx, messaging.EventCountApproved, data, c.ID)
}

// PublishCountApplied publishes a count applied event
func (p *InventoryEventPublisher) PublishCountApplied(ctx context.Context, r *service.ApplyResult) {
	if p == nil || r == nil {
		return
	}

	changed := 0
	for _, a := range r.Applied {
		if a.Changed {
			changed++
		}
	}

	data := messaging.CountAppliedEvent{
		CountID:          r.CountID,
		OrganizationID:   r.OrganizationID,
		LocationID:       r.LocationID,
		Applied:          len(r.Applied),
		Changed:          changed,
		FailedProductIDs: r.FailedProductIDs(),
	}

	p.publish(ctx, messaging.EventCountApplied, data, r.CountID)
}

func (p *InventoryEventPublisher) publish(ctx context.Context, eventType string, data interface{}, subjectID string) {
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("subject_id", subjectID).
			Msg("failed to publish event")
	}
}

func movementEvent(m *repository.StockMovement) messaging.StockMovementEvent {
	data := messaging.StockMovementEvent{
		MovementID:     m.ID,
		OrganizationID: m.OrganizationID,
		ProductID:      m.ProductID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		MovementType:   string(m.Type),
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		ActorID:        m.ActorID,
		OccurredAt:     m.CreatedAt,
	}
	if m.ReasonCode != nil {
		data.ReasonCode = *m.ReasonCode
	}
	return data
}
