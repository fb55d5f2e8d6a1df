package consumers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/messaging"
)

// QueueName is the durable queue fed by the point of sale exchange
const QueueName = "inventory-service.pos-events"

// ErrNoJournal is returned when depletion is started without a journal
var ErrNoJournal = fmt.Errorf("depletion consumer requires a journal")

// journalTTL bounds how long a depleted sale line is remembered
const journalTTL = 72 * time.Hour

// Adjuster is the ledger operation a sale line turns into
type Adjuster interface {
	Adjust(ctx context.Context, a *actor.Actor, req service.AdjustRequest) (*repository.StockMovement, error)
}

// Journal remembers which sale lines were already depleted so a redelivered
// sale does not deplete twice. Without one a retried sale would deplete its
// earlier lines again, so the consumer refuses to start without it.
type Journal interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// DepletionConsumer turns recorded sales into negative SALE adjustments
type DepletionConsumer struct {
	consumer *messaging.Consumer
	ledger   Adjuster
	journal  Journal
	logger   *logger.Logger
}

// NewDepletionConsumer declares the queue, binds it to the point of sale
// exchange and registers the sale handler
func NewDepletionConsumer(rmq *messaging.RabbitMQ, ledger Adjuster, journal Journal, maxRedeliveries int, log *logger.Logger) (*DepletionConsumer, error) {
	if journal == nil {
		return nil, ErrNoJournal
	}
	consumer, err := messaging.NewConsumer(rmq, QueueName, log)
	if err != nil {
		return nil, err
	}
	consumer.SetMaxRedeliveries(maxRedeliveries)

	if err := consumer.Subscribe(messaging.ExchangePOSEvents, "pos.sale.#"); err != nil {
		return nil, err
	}

	c := NewDepletionHandler(ledger, journal, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventSaleRecorded, c.HandleSaleRecorded)

	return c, nil
}

// NewDepletionHandler builds the handler without a broker connection. journal
// must not be nil.
func NewDepletionHandler(ledger Adjuster, journal Journal, log *logger.Logger) *DepletionConsumer {
	return &DepletionConsumer{
		ledger:  ledger,
		journal: journal,
		logger:  log.WithComponent("depletion-consumer"),
	}
}

// Start starts consuming messages
func (c *DepletionConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Restart resubscribes after a broker reconnect
func (c *DepletionConsumer) Restart(ctx context.Context) error {
	return c.consumer.Restart(ctx)
}

// HandleSaleRecorded depletes every line of a sale from the selling
// location. Lines the ledger rejects for business reasons are logged and
// skipped; any other failure is returned so the message is redelivered.
func (c *DepletionConsumer) HandleSaleRecorded(ctx context.Context, event *messaging.Event) error {
	var sale messaging.SaleRecordedEvent
	if err := event.UnmarshalData(&sale); err != nil {
		return err
	}
	if sale.OrganizationID == "" || sale.LocationID == "" {
		c.logger.Warn().Str("sale_id", sale.SaleID).Msg("dropping sale without organization or location")
		return nil
	}

	system := actor.SystemActor(sale.OrganizationID)
	log := c.logger.WithOrganizationID(sale.OrganizationID).WithCorrelationID(event.CorrelationID)

	for i, line := range sale.Lines {
		key := lineKey(sale, i)
		if c.seen(ctx, key) {
			continue
		}

		_, err := c.ledger.Adjust(ctx, system, service.AdjustRequest{
			ProductID:  line.ProductID,
			LocationID: sale.LocationID,
			Delta:      line.Quantity.Neg(),
			ReasonCode: service.ReasonSale,
		})
		switch {
		case err == nil:
		case isRejection(err):
			log.Warn().
				Err(err).
				Str("sale_id", sale.SaleID).
				Str("product_id", line.ProductID).
				Str("location_id", sale.LocationID).
				Msg("sale line not depleted")
		default:
			return fmt.Errorf("deplete sale %s line %d: %w", sale.SaleID, i, err)
		}

		c.remember(ctx, key)
	}

	log.Debug().
		Str("sale_id", sale.SaleID).
		Int("lines", len(sale.Lines)).
		Msg("sale depleted")
	return nil
}

func (c *DepletionConsumer) seen(ctx context.Context, key string) bool {
	ok, err := c.journal.Seen(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("depletion journal read failed")
		return false
	}
	return ok
}

func (c *DepletionConsumer) remember(ctx context.Context, key string) {
	if err := c.journal.Remember(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("depletion journal write failed")
	}
}

func lineKey(sale messaging.SaleRecordedEvent, index int) string {
	return fmt.Sprintf("depletion:%s:%s:%d", sale.OrganizationID, sale.SaleID, index)
}

// isRejection reports errors that will fail again on redelivery
func isRejection(err error) bool {
	for _, target := range []error{
		errors.ErrNegativeResultingStock,
		errors.ErrInvalidQuantity,
		errors.ErrProductNotFound,
		errors.ErrAccessDenied,
		errors.ErrLocationNotFound,
		errors.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// RedisJournal keeps the depletion journal in Redis
type RedisJournal struct {
	client *redis.Client
}

// NewRedisJournal creates a Redis backed journal
func NewRedisJournal(client *redis.Client) *RedisJournal {
	return &RedisJournal{client: client}
}

// Seen reports whether key was remembered within journalTTL
func (j *RedisJournal) Seen(ctx context.Context, key string) (bool, error) {
	n, err := j.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remember records key for journalTTL
func (j *RedisJournal) Remember(ctx context.Context, key string) error {
	return j.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), journalTTL).Err()
}
