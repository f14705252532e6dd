package reports

import (
	"context"
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
)

// Repository defines the read-only storage operations behind reports.
// Reports never write; all mutation belongs to the adjustment engine.
type Repository interface {
	// EntriesInWindow returns ledger entries with created_at in [from, to],
	// optionally narrowed by key, ordered by
	// (variant_id, location_id, created_at, seq) for per-key replay.
	EntriesInWindow(ctx context.Context, filter MovementFilter) ([]entity.LedgerEntry, error)

	// OpeningBalances returns, per key matching the filter, the sum of all
	// deltas strictly before the window start. Keys with no prior history
	// are simply absent (balance zero).
	OpeningBalances(ctx context.Context, filter MovementFilter) ([]KeyBalance, error)

	// ActiveRecords returns stock records with on-hand > 0, ordered by
	// (variant_id, location_id).
	ActiveRecords(ctx context.Context) ([]entity.StockRecord, error)

	// StreamEntries walks all ledger entries with created_at in [from, to]
	// in replay order, invoking fn per entry. Used by the archive export.
	StreamEntries(ctx context.Context, from, to time.Time, fn func(entity.LedgerEntry) error) error
}

// KeyBalance is the reconstructed on-hand for one key at a point in time.
type KeyBalance struct {
	VariantID  id.ID `db:"variant_id"`
	LocationID id.ID `db:"location_id"`
	Balance    int64 `db:"balance"`
}

// --- External collaborator ports (consumed, never implemented here) ---

// SalesProvider exposes order/sales aggregates for velocity and turnover.
type SalesProvider interface {
	// UnitsSoldInWindow returns units of the variant sold in [from, to].
	UnitsSoldInWindow(ctx context.Context, variantID id.ID, from, to time.Time) (int64, error)

	// LastSaleAt returns the most recent sale timestamp, or nil if the
	// variant has never sold.
	LastSaleAt(ctx context.Context, variantID id.ID) (*time.Time, error)
}

// VariantInfo is read-only catalog metadata used for report enrichment.
type VariantInfo struct {
	ID        id.ID       `db:"id"`
	SKU       string      `db:"sku"`
	Title     string      `db:"title"`
	Price     types.Money `db:"price"`
	CreatedAt time.Time   `db:"created_at"`
}

// CatalogProvider looks up variant metadata. The ledger never mutates the
// catalog.
type CatalogProvider interface {
	Variant(ctx context.Context, variantID id.ID) (*VariantInfo, error)
	Variants(ctx context.Context, variantIDs []id.ID) (map[id.ID]VariantInfo, error)
}

// LocationInfo is read-only location metadata for report display.
type LocationInfo struct {
	ID   id.ID  `db:"id"`
	Name string `db:"name"`
	Kind string `db:"kind"`
}

// LocationProvider looks up location metadata.
type LocationProvider interface {
	Location(ctx context.Context, locationID id.ID) (*LocationInfo, error)
}

// CostSource supplies the unit cost for valuation. Pluggable so a real
// costing system can replace the configured ratio without touching the
// valuation arithmetic.
type CostSource interface {
	UnitCost(ctx context.Context, variant VariantInfo) (types.Money, error)
}

// RatioCostSource derives cost as a fixed fraction of the catalog price.
type RatioCostSource struct {
	Ratio types.Ratio
}

// UnitCost implements CostSource.
func (s RatioCostSource) UnitCost(_ context.Context, variant VariantInfo) (types.Money, error) {
	return variant.Price.Mul(s.Ratio), nil
}
