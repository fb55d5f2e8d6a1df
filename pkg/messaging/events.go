package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	// Ledger events
	EventStockTransferred = "inventory.stock.transferred"
	EventStockAdjusted    = "inventory.stock.adjusted"

	// Count events
	EventCountApproved = "inventory.count.approved"
	EventCountApplied  = "inventory.count.applied"

	// Point of sale events consumed by the depletion consumer
	EventSaleRecorded = "pos.sale.recorded"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangePOSEvents       = "pos.events"

	ExchangeDeadLetter = "dlx.events"
)

// Event is the envelope of every message on the bus
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// GenerateEventID returns a new random event id
func GenerateEventID() string {
	return uuid.New().String()
}

// Ledger Events

// StockMovementEvent is published for every committed transfer or adjustment.
// Quantity is unsigned; the before/after pair describes the source row.
type StockMovementEvent struct {
	MovementID     string          `json:"movement_id"`
	OrganizationID string          `json:"organization_id"`
	ProductID      string          `json:"product_id"`
	FromLocationID string          `json:"from_location_id"`
	ToLocationID   string          `json:"to_location_id"`
	MovementType   string          `json:"movement_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	ActorID        string          `json:"actor_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// Count Events

// CountApprovedEvent is published once a count is locked for application
type CountApprovedEvent struct {
	CountID        string          `json:"count_id"`
	OrganizationID string          `json:"organization_id"`
	LocationID     string          `json:"location_id"`
	ApprovedByID   string          `json:"approved_by_id"`
	ApprovedAt     time.Time       `json:"approved_at"`
	TotalValue     decimal.Decimal `json:"total_value"`
	ItemsCounted   int             `json:"items_counted"`
}

// CountAppliedEvent is published after every application run, including
// partial ones
type CountAppliedEvent struct {
	CountID          string   `json:"count_id"`
	OrganizationID   string   `json:"organization_id"`
	LocationID       string   `json:"location_id"`
	Applied          int      `json:"applied"`
	Changed          int      `json:"changed"`
	FailedProductIDs []string `json:"failed_product_ids"`
}

// Point of Sale Events

// SaleRecordedEvent is published by the point of sale integration for every
// closed check
type SaleRecordedEvent struct {
	SaleID         string     `json:"sale_id"`
	OrganizationID string     `json:"organization_id"`
	LocationID     string     `json:"location_id"`
	Lines          []SaleLine `json:"lines"`
	SoldAt         time.Time  `json:"sold_at"`
}

// SaleLine is the stock depleted by one line of a sale
type SaleLine struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}
