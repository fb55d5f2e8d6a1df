package testutil

// InventoryMigrations returns the inventory schema used by the integration
// tests. Constraint names are the ones database.MapPQError recognizes.
//
// Row level security policies key on app.current_organization. The test role
// owns the tables and bypasses them, so isolation in tests comes from the
// organization_id filters the store applies on every statement.
func InventoryMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS locations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			name VARCHAR(200) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_locations_org ON locations(organization_id) WHERE deleted_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS location_assignments (
			user_id VARCHAR(100) NOT NULL,
			location_id UUID NOT NULL CONSTRAINT location_assignments_location_fk REFERENCES locations(id),
			can_read BOOLEAN NOT NULL DEFAULT FALSE,
			can_write BOOLEAN NOT NULL DEFAULT FALSE,
			can_manage BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (user_id, location_id)
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			name VARCHAR(200) NOT NULL,
			unit_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS inventory_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			organization_id UUID NOT NULL,
			product_id UUID NOT NULL CONSTRAINT inventory_items_product_fk REFERENCES products(id),
			location_id UUID NOT NULL CONSTRAINT inventory_items_location_fk REFERENCES locations(id),
			current_quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
			minimum_quantity NUMERIC(14,4) NOT NULL DEFAULT 0,
			maximum_quantity NUMERIC(14,4),
			last_count_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_items_org_product_location UNIQUE (organization_id, product_id, location_id),
			CONSTRAINT inventory_items_quantity_non_negative CHECK (current_quantity >= 0 AND minimum_quantity >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_items_location ON inventory_items(organization_id, location_id)`,

		`CREATE TABLE IF NOT EXISTS stock_movements (
			id UUID PRIMARY KEY,
			organization_id UUID NOT NULL,
			product_id UUID NOT NULL CONSTRAINT stock_movements_product_fk REFERENCES products(id),
			from_location_id UUID NOT NULL CONSTRAINT stock_movements_from_location_fk REFERENCES locations(id),
			to_location_id UUID NOT NULL CONSTRAINT stock_movements_to_location_fk REFERENCES locations(id),
			quantity NUMERIC(14,4) NOT NULL,
			quantity_before NUMERIC(14,4) NOT NULL,
			quantity_after NUMERIC(14,4) NOT NULL,
			type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'COMPLETED',
			reason_code VARCHAR(50),
			reference_id VARCHAR(100),
			actor_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			CONSTRAINT stock_movements_movement_quantity_positive CHECK (quantity > 0),
			CONSTRAINT stock_movements_type_valid CHECK (
				type IN ('TRANSFER', 'ADJUSTMENT_IN', 'ADJUSTMENT_OUT', 'WASTE', 'COUNT_APPLIED')
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_from ON stock_movements(organization_id, from_location_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_movements_to ON stock_movements(organization_id, to_location_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS inventory_counts (
			id UUID PRIMARY KEY,
			organization_id UUID NOT NULL,
			location_id UUID NOT NULL CONSTRAINT inventory_counts_location_fk REFERENCES locations(id),
			name VARCHAR(200) NOT NULL,
			type VARCHAR(20) NOT NULL DEFAULT 'FULL',
			status VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
			notes TEXT,
			total_value NUMERIC(16,4) NOT NULL DEFAULT 0,
			items_counted INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			approved_at TIMESTAMPTZ,
			approved_by_id VARCHAR(100),
			created_by_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT inventory_counts_status_valid CHECK (
				status IN ('DRAFT', 'IN_PROGRESS', 'COMPLETED', 'APPROVED')
			)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_counts_location ON inventory_counts(organization_id, location_id)`,

		`CREATE TABLE IF NOT EXISTS count_areas (
			id UUID PRIMARY KEY,
			count_id UUID NOT NULL REFERENCES inventory_counts(id) ON DELETE CASCADE,
			name VARCHAR(200) NOT NULL,
			sort_order INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT count_areas_status_valid CHECK (status IN ('PENDING', 'IN_PROGRESS', 'COMPLETED'))
		)`,

		`CREATE TABLE IF NOT EXISTS count_items (
			id UUID PRIMARY KEY,
			count_id UUID NOT NULL REFERENCES inventory_counts(id) ON DELETE CASCADE,
			area_id UUID NOT NULL REFERENCES count_areas(id) ON DELETE CASCADE,
			product_id UUID NOT NULL CONSTRAINT count_items_product_fk REFERENCES products(id),
			full_units INTEGER NOT NULL,
			partial_unit NUMERIC(6,4) NOT NULL DEFAULT 0,
			total_quantity NUMERIC(14,4) NOT NULL,
			expected_qty NUMERIC(14,4) NOT NULL,
			variance NUMERIC(14,4) NOT NULL,
			unit_cost NUMERIC(14,4) NOT NULL,
			total_value NUMERIC(16,4) NOT NULL,
			counted_by_id VARCHAR(100) NOT NULL,
			counted_at TIMESTAMPTZ NOT NULL,
			CONSTRAINT count_items_area_product UNIQUE (area_id, product_id),
			CONSTRAINT count_items_quantity_non_negative CHECK (full_units >= 0),
			CONSTRAINT count_items_partial_unit_range CHECK (partial_unit >= 0 AND partial_unit <= 0.9)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_count_items_count ON count_items(count_id)`,

		`ALTER TABLE inventory_items ENABLE ROW LEVEL SECURITY`,
		`DROP POLICY IF EXISTS inventory_items_organization ON inventory_items`,
		`CREATE POLICY inventory_items_organization ON inventory_items
			USING (organization_id = NULLIF(current_setting('app.current_organization', true), '')::uuid)`,
		`ALTER TABLE stock_movements ENABLE ROW LEVEL SECURITY`,
		`DROP POLICY IF EXISTS stock_movements_organization ON stock_movements`,
		`CREATE POLICY stock_movements_organization ON stock_movements
			USING (organization_id = NULLIF(current_setting('app.current_organization', true), '')::uuid)`,
		`ALTER TABLE inventory_counts ENABLE ROW LEVEL SECURITY`,
		`DROP POLICY IF EXISTS inventory_counts_organization ON inventory_counts`,
		`CREATE POLICY inventory_counts_organization ON inventory_counts
			USING (organization_id = NULLIF(current_setting('app.current_organization', true), '')::uuid)`,
	}
}
