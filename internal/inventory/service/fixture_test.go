package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cellarcount/cellarcount-backend/internal/access"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository/memory"
	"github.com/cellarcount/cellarcount-backend/internal/inventory/service"
	"github.com/cellarcount/cellarcount-backend/pkg/actor"
	"github.com/cellarcount/cellarcount-backend/pkg/database"
	"github.com/cellarcount/cellarcount-backend/pkg/logger"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

const (
	orgID     = "org-harbour"
	barID     = "loc-bar"
	cellarID  = "loc-cellar"
	terraceID = "loc-terrace"
	ginID     = "prod-gin"
	tonicID   = "prod-tonic"
	limeID    = "prod-lime"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type recordingEvents struct {
	mu          sync.Mutex
	transferred []repository.StockMovement
	adjusted    []repository.StockMovement
	approved    []repository.InventoryCount
	applied     []service.ApplyResult
}

func (r *recordingEvents) PublishStockTransferred(_ context.Context, m *repository.StockMovement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferred = append(r.transferred, *m)
}

func (r *recordingEvents) PublishStockAdjusted(_ context.Context, m *repository.StockMovement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adjusted = append(r.adjusted, *m)
}

func (r *recordingEvents) PublishCountApproved(_ context.Context, c *repository.InventoryCount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.approved = append(r.approved, *c)
}

func (r *recordingEvents) PublishCountApplied(_ context.Context, result *service.ApplyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, *result)
}

// allowAll lets every actor through so repository-level checks can be
// exercised on locations the real gate would hide.
type allowAll struct{}

func (allowAll) Require(context.Context, *actor.Actor, permissions.Level, ...string) error {
	return nil
}

type fixture struct {
	store      *memory.Store
	events     *recordingEvents
	ledger     *service.LedgerService
	counts     *service.CountService
	reconciler *service.Reconciler
	now        time.Time

	owner    *actor.Actor
	barback  *actor.Actor
	manager  *actor.Actor
	outsider *actor.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	store.AddLocation(orgID, barID)
	store.AddLocation(orgID, cellarID)
	store.AddLocation(orgID, terraceID)
	store.AddProduct(orgID, ginID, dec("18.50"))
	store.AddProduct(orgID, tonicID, dec("1.20"))
	store.AddProduct(orgID, limeID, dec("0.25"))

	f := &fixture{
		store:    store,
		events:   &recordingEvents{},
		now:      time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC),
		owner:    &actor.Actor{ID: "user-owner", OrganizationID: orgID, Role: "owner"},
		barback:  &actor.Actor{ID: "user-barback", OrganizationID: orgID, Role: "staff"},
		manager:  &actor.Actor{ID: "user-manager", OrganizationID: orgID, Role: "manager"},
		outsider: &actor.Actor{ID: "user-outsider", OrganizationID: orgID, Role: "staff"},
	}
	store.Assign(f.barback.ID, barID, permissions.Flags{CanRead: true, CanWrite: true})
	store.Assign(f.manager.ID, barID, permissions.Flags{CanRead: true, CanWrite: true, CanManage: true})
	store.Assign(f.manager.ID, cellarID, permissions.Flags{CanRead: true, CanWrite: true, CanManage: true})

	gate := access.NewGate(store, permissions.NewRoleTable([]string{"owner", "admin"}), logger.Nop())
	f.build(gate, database.RetryPolicy{MaxRetries: 3})
	return f
}

func (f *fixture) build(gate service.AccessGate, retry database.RetryPolicy) {
	log := logger.Nop()
	f.ledger = service.NewLedgerService(f.store, gate, f.events, retry, log)
	f.reconciler = service.NewReconciler(f.store, gate, f.events, retry, log)
	f.counts = service.NewCountService(f.store, gate, f.store, f.reconciler, f.events,
		service.DefaultVariancePolicy(), retry, log)
	f.counts.SetClock(func() time.Time { return f.now })
}

func (f *fixture) setLevel(t *testing.T, productID, locationID, quantity string) {
	t.Helper()
	_, err := f.ledger.SetLevel(context.Background(), f.owner, productID, locationID,
		service.LevelUpdate{Quantity: decPtr(quantity)})
	require.NoError(t, err)
}

func (f *fixture) quantity(productID, locationID string) string {
	return f.store.Quantity(orgID, productID, locationID).String()
}

// completedCount creates a count at the bar with the given areas, submits
// lines (area index -> product -> full units) and completes it.
func (f *fixture) completedCount(t *testing.T, areas []string, lines map[int]map[string]int) *service.CountDetail {
	t.Helper()
	ctx := context.Background()

	count, err := f.counts.CreateCount(ctx, f.owner, service.CreateCountRequest{
		LocationID: barID,
		Name:       "Sunday close",
		Areas:      areas,
	})
	require.NoError(t, err)

	for i, products := range lines {
		for productID, units := range products {
			_, err := f.counts.SubmitItem(ctx, f.owner, count.Areas[i].ID, service.SubmitItemRequest{
				ProductID: productID,
				FullUnits: units,
			})
			require.NoError(t, err)
		}
	}

	_, err = f.counts.UpdateCountStatus(ctx, f.owner, count.ID, service.StatusUpdate{Status: repository.CountCompleted})
	require.NoError(t, err)
	return count
}

// storeBoundCosts resolves each cost inside its own store transaction, the
// way the Postgres product lookup needs a connection of its own. With the
// single-writer memory store a lookup made inside another transaction never
// returns.
type storeBoundCosts struct {
	store *memory.Store
}

func (c storeBoundCosts) UnitCost(ctx context.Context, organizationID, productID string) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := c.store.InTx(ctx, organizationID, func(ctx context.Context, _ repository.Tx) error {
		var err error
		cost, err = c.store.UnitCost(ctx, organizationID, productID)
		return err
	})
	return cost, err
}
