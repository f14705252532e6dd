// Package stock provides the stock record store and adjustment engine.
// All mutation of stock records and all ledger appends funnel through this
// package; report components are read-only consumers.
package stock

import (
	"context"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
)

// Repository defines storage operations for stock records and the ledger.
type Repository interface {
	// Record operations

	// GetRecord returns the record for (variant, location), or nil when absent.
	GetRecord(ctx context.Context, variantID, locationID id.ID) (*entity.StockRecord, error)

	// GetRecordForUpdate returns the record with a row lock, or nil when absent.
	// Must be called within a transaction.
	GetRecordForUpdate(ctx context.Context, variantID, locationID id.ID) (*entity.StockRecord, error)

	// InsertRecord creates a new record (first receipt into a location).
	InsertRecord(ctx context.Context, rec *entity.StockRecord) error

	// UpdateRecord persists a mutated record. Implementations compare the
	// stored version and return a concurrency conflict on mismatch.
	UpdateRecord(ctx context.Context, rec *entity.StockRecord) error

	// ListRecords returns records matching the filter, ordered by
	// (variant_id, location_id).
	ListRecords(ctx context.Context, filter RecordFilter) ([]entity.StockRecord, error)

	// Ledger operations

	// AppendEntry appends one immutable ledger entry and fills in Seq.
	AppendEntry(ctx context.Context, entry *entity.LedgerEntry) error

	// AppendEntries bulk-appends entries (COPY path). Seq values are
	// assigned by storage and not reported back.
	AppendEntries(ctx context.Context, entries []entity.LedgerEntry) error

	// Reconciliation

	// LedgerSums returns the per-key sum of all qty deltas for keys
	// matching the filter.
	LedgerSums(ctx context.Context, filter ReconcileFilter) ([]KeyDeltaSum, error)
}

// RecordFilter narrows ListRecords.
type RecordFilter struct {
	VariantID  *id.ID
	LocationID *id.ID

	// ExcludeZero drops records with zero on-hand.
	ExcludeZero bool

	// BelowThreshold keeps only records whose available quantity is at or
	// below their configured low-stock threshold.
	BelowThreshold bool

	Limit  int
	Offset int
}

// ReconcileFilter narrows the reconciliation scan.
type ReconcileFilter struct {
	VariantID  *id.ID
	LocationID *id.ID
}

// KeyDeltaSum is the ledger delta total for one (variant, location) key.
type KeyDeltaSum struct {
	VariantID  id.ID `db:"variant_id"`
	LocationID id.ID `db:"location_id"`
	DeltaSum   int64 `db:"delta_sum"`
}
