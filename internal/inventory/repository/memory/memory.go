// Package memory provides an in-memory repository.Store for tests and local
// tooling. Transactions are serialized by one mutex and run against a copy of
// the state that is swapped in on success, so a failed transaction leaves no
// trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cellarcount/cellarcount-backend/internal/inventory/repository"
	"github.com/cellarcount/cellarcount-backend/pkg/errors"
	"github.com/cellarcount/cellarcount-backend/pkg/permissions"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type itemKey struct {
	orgID      string
	productID  string
	locationID string
}

type state struct {
	items      map[itemKey]repository.InventoryItem
	movements  []repository.StockMovement
	counts     map[string]repository.InventoryCount
	areas      map[string]repository.CountArea
	countItems map[string]repository.CountItem
}

func newState() *state {
	return &state{
		items:      make(map[itemKey]repository.InventoryItem),
		counts:     make(map[string]repository.InventoryCount),
		areas:      make(map[string]repository.CountArea),
		countItems: make(map[string]repository.CountItem),
	}
}

func (s *state) clone() *state {
	c := &state{
		items:      make(map[itemKey]repository.InventoryItem, len(s.items)),
		movements:  append([]repository.StockMovement(nil), s.movements...),
		counts:     make(map[string]repository.InventoryCount, len(s.counts)),
		areas:      make(map[string]repository.CountArea, len(s.areas)),
		countItems: make(map[string]repository.CountItem, len(s.countItems)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.counts {
		c.counts[k] = v
	}
	for k, v := range s.areas {
		c.areas[k] = v
	}
	for k, v := range s.countItems {
		c.countItems[k] = v
	}
	return c
}

type location struct {
	orgID   string
	deleted bool
}

type product struct {
	orgID string
	cost  decimal.Decimal
}

// Store is an in-memory repository.Store. It also serves the access gate
// directory and the unit-cost catalog so tests need a single fixture.
type Store struct {
	mu    sync.Mutex
	state *state

	metaMu      sync.RWMutex
	locations   map[string]location
	assignments map[string]map[string]permissions.Flags
	products    map[string]product
	faults      map[string][]error

	now func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		state:       newState(),
		locations:   make(map[string]location),
		assignments: make(map[string]map[string]permissions.Flags),
		products:    make(map[string]product),
		faults:      make(map[string][]error),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// InTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds.
func (s *Store) InTx(ctx context.Context, organizationID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, &memTx{store: s, state: working, orgID: organizationID}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// =============================================================================
// FIXTURES
// =============================================================================

// AddLocation registers a live location
func (s *Store) AddLocation(organizationID, locationID string) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.locations[locationID] = location{orgID: organizationID}
}

// DeleteLocation soft-deletes a location
func (s *Store) DeleteLocation(locationID string) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if loc, ok := s.locations[locationID]; ok {
		loc.deleted = true
		s.locations[locationID] = loc
	}
}

// Assign grants a user flags on a location
func (s *Store) Assign(userID, locationID string, flags permissions.Flags) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	if s.assignments[userID] == nil {
		s.assignments[userID] = make(map[string]permissions.Flags)
	}
	s.assignments[userID][locationID] = flags
}

// AddProduct registers a product with its unit cost
func (s *Store) AddProduct(organizationID, productID string, cost decimal.Decimal) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.products[productID] = product{orgID: organizationID, cost: cost}
}

// FailSave queues errors returned by the next SaveInventoryItem calls for a product
func (s *Store) FailSave(productID string, errs ...error) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.faults[productID] = append(s.faults[productID], errs...)
}

// Quantity returns the committed quantity of a ledger row, zero when absent
func (s *Store) Quantity(organizationID, productID, locationID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.items[itemKey{organizationID, productID, locationID}].CurrentQuantity
}

// Movements returns a copy of the committed movement log in insertion order
func (s *Store) Movements() []repository.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.StockMovement(nil), s.state.movements...)
}

// =============================================================================
// ACCESS DIRECTORY AND CATALOG
// =============================================================================

// ListLocationIDs lists every live location of an organization
func (s *Store) ListLocationIDs(_ context.Context, organizationID string) ([]string, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	ids := []string{}
	for id, loc := range s.locations {
		if loc.orgID == organizationID && !loc.deleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListAssignments lists a user's assignments on live locations of the organization
func (s *Store) ListAssignments(_ context.Context, organizationID, userID string) ([]repository.LocationAssignment, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	out := []repository.LocationAssignment{}
	for locationID, flags := range s.assignments[userID] {
		loc, ok := s.locations[locationID]
		if !ok || loc.deleted || loc.orgID != organizationID {
			continue
		}
		out = append(out, repository.LocationAssignment{UserID: userID, LocationID: locationID, Flags: flags})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out, nil
}

// UnitCost returns the registered cost of a product
func (s *Store) UnitCost(_ context.Context, organizationID, productID string) (decimal.Decimal, error) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()

	p, ok := s.products[productID]
	if !ok || p.orgID != organizationID {
		return decimal.Zero, errors.ProductNotFound(productID)
	}
	return p.cost, nil
}

// =============================================================================
// TRANSACTION
// =============================================================================

type memTx struct {
	store *Store
	state *state
	orgID string
}

func (t *memTx) LocationExists(_ context.Context, locationID string) (bool, error) {
	t.store.metaMu.RLock()
	defer t.store.metaMu.RUnlock()
	loc, ok := t.store.locations[locationID]
	return ok && !loc.deleted && loc.orgID == t.orgID, nil
}

func (t *memTx) productExists(productID string) bool {
	t.store.metaMu.RLock()
	defer t.store.metaMu.RUnlock()
	p, ok := t.store.products[productID]
	return ok && p.orgID == t.orgID
}

func (t *memTx) LockInventoryItems(ctx context.Context, productID string, locationIDs ...string) (map[string]*repository.InventoryItem, error) {
	if !t.productExists(productID) {
		return nil, errors.ProductNotFound(productID)
	}

	result := make(map[string]*repository.InventoryItem, len(locationIDs))
	for _, locationID := range locationIDs {
		if _, done := result[locationID]; done {
			continue
		}
		if ok, _ := t.LocationExists(ctx, locationID); !ok {
			return nil, errors.LocationNotFound(locationID)
		}
		key := itemKey{t.orgID, productID, locationID}
		item, ok := t.state.items[key]
		if !ok {
			now := t.store.now()
			item = repository.InventoryItem{
				ID:              uuid.New().String(),
				OrganizationID:  t.orgID,
				ProductID:       productID,
				LocationID:      locationID,
				CurrentQuantity: decimal.Zero,
				MinimumQuantity: decimal.Zero,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			t.state.items[key] = item
		}
		copied := item
		result[locationID] = &copied
	}
	return result, nil
}

func (t *memTx) GetInventoryItem(_ context.Context, productID, locationID string) (*repository.InventoryItem, error) {
	item, ok := t.state.items[itemKey{t.orgID, productID, locationID}]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (t *memTx) SaveInventoryItem(_ context.Context, item *repository.InventoryItem) error {
	t.store.metaMu.Lock()
	if queued := t.store.faults[item.ProductID]; len(queued) > 0 {
		err := queued[0]
		t.store.faults[item.ProductID] = queued[1:]
		t.store.metaMu.Unlock()
		return err
	}
	t.store.metaMu.Unlock()

	if item.CurrentQuantity.IsNegative() {
		return errors.InvalidQuantity("quantity must not be negative")
	}
	key := itemKey{t.orgID, item.ProductID, item.LocationID}
	if _, ok := t.state.items[key]; !ok {
		return fmt.Errorf("inventory row %s was not locked", item.ID)
	}
	item.UpdatedAt = t.store.now()
	t.state.items[key] = *item
	return nil
}

func (t *memTx) ListInventoryItems(_ context.Context, filter repository.LevelFilter) ([]repository.InventoryItem, error) {
	out := []repository.InventoryItem{}
	for key, item := range t.state.items {
		if key.orgID != t.orgID {
			continue
		}
		if filter.LocationID != "" && key.locationID != filter.LocationID {
			continue
		}
		if filter.ProductID != "" && key.productID != filter.ProductID {
			continue
		}
		if filter.BelowMinimum && !item.BelowMinimum() {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (t *memTx) InsertMovement(_ context.Context, m *repository.StockMovement) error {
	if !m.Quantity.IsPositive() {
		return errors.InvalidQuantity("movement quantity must be positive")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = repository.MovementStatusCompleted
	}
	m.OrganizationID = t.orgID
	m.CreatedAt = t.store.now()
	t.state.movements = append(t.state.movements, *m)
	return nil
}

func (t *memTx) ListMovements(_ context.Context, filter repository.MovementFilter) ([]repository.StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	out := []repository.StockMovement{}
	for i := len(t.state.movements) - 1; i >= 0 && len(out) < limit; i-- {
		m := t.state.movements[i]
		if m.OrganizationID != t.orgID {
			continue
		}
		if filter.LocationID != "" && m.FromLocationID != filter.LocationID && m.ToLocationID != filter.LocationID {
			continue
		}
		if filter.ProductID != "" && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.Since != nil && m.CreatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *memTx) InsertCount(_ context.Context, c *repository.InventoryCount) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.OrganizationID = t.orgID
	c.CreatedAt = t.store.now()
	c.UpdatedAt = c.CreatedAt
	t.state.counts[c.ID] = *c
	return nil
}

func (t *memTx) GetCount(_ context.Context, id string) (*repository.InventoryCount, error) {
	c, ok := t.state.counts[id]
	if !ok || c.OrganizationID != t.orgID {
		return nil, errors.NotFound("inventory count")
	}
	return &c, nil
}

func (t *memTx) LockCount(ctx context.Context, id string) (*repository.InventoryCount, error) {
	return t.GetCount(ctx, id)
}

func (t *memTx) UpdateCount(ctx context.Context, c *repository.InventoryCount) error {
	if _, err := t.GetCount(ctx, c.ID); err != nil {
		return err
	}
	c.UpdatedAt = t.store.now()
	t.state.counts[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCount(ctx context.Context, id string) error {
	if _, err := t.GetCount(ctx, id); err != nil {
		return err
	}
	for areaID, a := range t.state.areas {
		if a.CountID == id {
			t.deleteAreaItems(areaID)
			delete(t.state.areas, areaID)
		}
	}
	delete(t.state.counts, id)
	return nil
}

func (t *memTx) ListCounts(_ context.Context, filter repository.CountFilter) ([]repository.InventoryCount, error) {
	out := []repository.InventoryCount{}
	for _, c := range t.state.counts {
		if c.OrganizationID != t.orgID {
			continue
		}
		if filter.LocationID != "" && c.LocationID != filter.LocationID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) InsertArea(ctx context.Context, a *repository.CountArea) error {
	if _, err := t.GetCount(ctx, a.CountID); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = t.store.now()
	a.UpdatedAt = a.CreatedAt
	t.state.areas[a.ID] = *a
	return nil
}

func (t *memTx) GetArea(ctx context.Context, id string) (*repository.CountArea, error) {
	a, ok := t.state.areas[id]
	if !ok {
		return nil, errors.NotFound("count area")
	}
	if _, err := t.GetCount(ctx, a.CountID); err != nil {
		return nil, errors.NotFound("count area")
	}
	return &a, nil
}

func (t *memTx) UpdateArea(ctx context.Context, a *repository.CountArea) error {
	if _, err := t.GetArea(ctx, a.ID); err != nil {
		return err
	}
	a.UpdatedAt = t.store.now()
	t.state.areas[a.ID] = *a
	return nil
}

func (t *memTx) DeleteArea(ctx context.Context, id string) error {
	if _, err := t.GetArea(ctx, id); err != nil {
		return err
	}
	t.deleteAreaItems(id)
	delete(t.state.areas, id)
	return nil
}

func (t *memTx) deleteAreaItems(areaID string) {
	for itemID, item := range t.state.countItems {
		if item.AreaID == areaID {
			delete(t.state.countItems, itemID)
		}
	}
}

func (t *memTx) ListAreas(_ context.Context, countID string) ([]repository.CountArea, error) {
	out := []repository.CountArea{}
	for _, a := range t.state.areas {
		if a.CountID == countID {
			out = append(out, a)
		}
	}
	sortAreas(out)
	return out, nil
}

func sortAreas(areas []repository.CountArea) {
	sort.Slice(areas, func(i, j int) bool {
		if areas[i].SortOrder != areas[j].SortOrder {
			return areas[i].SortOrder < areas[j].SortOrder
		}
		if !areas[i].CreatedAt.Equal(areas[j].CreatedAt) {
			return areas[i].CreatedAt.Before(areas[j].CreatedAt)
		}
		return areas[i].ID < areas[j].ID
	})
}

func (t *memTx) GetCountItem(_ context.Context, areaID, productID string) (*repository.CountItem, error) {
	for _, item := range t.state.countItems {
		if item.AreaID == areaID && item.ProductID == productID {
			return &item, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetCountItemByID(ctx context.Context, id string) (*repository.CountItem, error) {
	item, ok := t.state.countItems[id]
	if !ok {
		return nil, errors.NotFound("count item")
	}
	if _, err := t.GetCount(ctx, item.CountID); err != nil {
		return nil, errors.NotFound("count item")
	}
	return &item, nil
}

func (t *memTx) SaveCountItem(ctx context.Context, item *repository.CountItem) error {
	if item.PartialUnit.IsNegative() || item.PartialUnit.GreaterThan(decimal.RequireFromString("0.9")) {
		return errors.Validation(map[string]string{"partial_unit": "must be between 0 and 0.9"})
	}

	existing, _ := t.GetCountItem(ctx, item.AreaID, item.ProductID)
	if existing != nil {
		item.ID = existing.ID
		item.ExpectedQty = existing.ExpectedQty
		item.UnitCost = existing.UnitCost
		item.Recalculate()
	} else if item.ID == "" {
		item.ID = uuid.New().String()
	}
	t.state.countItems[item.ID] = *item
	return nil
}

func (t *memTx) DeleteCountItem(_ context.Context, id string) error {
	if _, ok := t.state.countItems[id]; !ok {
		return errors.NotFound("count item")
	}
	delete(t.state.countItems, id)
	return nil
}

func (t *memTx) ListCountItems(ctx context.Context, countID string) ([]repository.CountItem, error) {
	areas, _ := t.ListAreas(ctx, countID)
	order := make(map[string]int, len(areas))
	for i, a := range areas {
		order[a.ID] = i
	}

	out := []repository.CountItem{}
	for _, item := range t.state.countItems {
		if item.CountID == countID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if order[out[i].AreaID] != order[out[j].AreaID] {
			return order[out[i].AreaID] < order[out[j].AreaID]
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (t *memTx) CountTotals(ctx context.Context, countID string) (repository.CountTotals, error) {
	items, _ := t.ListCountItems(ctx, countID)
	totals := repository.CountTotals{TotalValue: decimal.Zero}
	products := make(map[string]bool)
	for _, item := range items {
		totals.TotalValue = totals.TotalValue.Add(item.TotalValue)
		products[item.ProductID] = true
	}
	totals.ItemsCounted = len(products)
	return totals, nil
}
