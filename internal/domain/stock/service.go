package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/tx"
	"stockroom/pkg/logger"
)

// Service is the adjustment engine: the sole mutator of stock records and
// the sole appender to the transaction ledger. Every quantity change is an
// atomic pair (record update + ledger entry) inside one transaction.
type Service struct {
	repo Repository
	txm  tx.ReadOnlyManager
}

// NewService creates a new adjustment engine.
func NewService(repo Repository, txm tx.ReadOnlyManager) *Service {
	return &Service{
		repo: repo,
		txm:  txm,
	}
}

// AdjustmentRequest describes one signed quantity change.
type AdjustmentRequest struct {
	VariantID     id.ID
	LocationID    id.ID
	QtyDelta      int64
	Reason        entity.Reason
	ReferenceType *entity.ReferenceType
	ReferenceID   *string
}

// Validate checks input constraints before any storage access.
func (r *AdjustmentRequest) Validate() error {
	if id.IsNil(r.VariantID) {
		return apperror.NewInvalidInput("variantId is required")
	}
	if id.IsNil(r.LocationID) {
		return apperror.NewInvalidInput("locationId is required")
	}
	if r.QtyDelta == 0 {
		return apperror.NewInvalidInput("qtyDelta must not be zero")
	}
	if !r.Reason.Valid() {
		return apperror.NewInvalidInput(fmt.Sprintf("unknown reason code %q", r.Reason))
	}
	if r.ReferenceType != nil {
		if !r.ReferenceType.Valid() {
			return apperror.NewInvalidInput(fmt.Sprintf("unknown reference type %q", *r.ReferenceType))
		}
		if r.ReferenceID == nil || *r.ReferenceID == "" {
			return apperror.NewInvalidInput("referenceId is required when referenceType is set")
		}
	}
	return nil
}

// AdjustmentResult reports the outcome of one applied adjustment.
type AdjustmentResult struct {
	VariantID     id.ID `json:"variantId"`
	LocationID    id.ID `json:"locationId"`
	NewOnHand     int64 `json:"newOnHand"`
	AppliedDelta  int64 `json:"appliedDelta"`
	TransactionID id.ID `json:"transactionId"`
}

// Adjust applies a signed quantity delta to one (variant, location) key.
//
// The stock record update and the ledger append commit together or not at
// all. A delta that would drive on-hand negative fails with
// InsufficientStock unless the reason is a correction; corrections clamp at
// zero and the ledger entry records the applied (possibly clamped) delta so
// the reconciliation invariant stays exact.
func (s *Service) Adjust(ctx context.Context, req AdjustmentRequest) (*AdjustmentResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *AdjustmentResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.applyAdjustment(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjusted",
		"variant_id", result.VariantID,
		"location_id", result.LocationID,
		"delta", result.AppliedDelta,
		"reason", req.Reason,
		"new_on_hand", result.NewOnHand,
		"transaction_id", result.TransactionID,
	)

	return result, nil
}

// AdjustBulk applies many adjustments in a single transaction: all succeed
// or none do. Requests are applied in deterministic key order so concurrent
// bulk operations cannot deadlock on row locks. Ledger entries are written
// through the bulk append path.
func (s *Service) AdjustBulk(ctx context.Context, reqs []AdjustmentRequest) ([]AdjustmentResult, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewInvalidInput("at least one adjustment is required")
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, err
		}
	}

	ordered := make([]AdjustmentRequest, len(reqs))
	copy(ordered, reqs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.VariantID != b.VariantID {
			return a.VariantID.String() < b.VariantID.String()
		}
		return a.LocationID.String() < b.LocationID.String()
	})

	var results []AdjustmentResult
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		entries := make([]entity.LedgerEntry, 0, len(ordered))
		results = make([]AdjustmentResult, 0, len(ordered))
		for i := range ordered {
			r, entry, err := s.applyRecordChange(ctx, ordered[i])
			if err != nil {
				return err
			}
			entries = append(entries, *entry)
			results = append(results, *r)
		}
		if err := s.repo.AppendEntries(ctx, entries); err != nil {
			return fmt.Errorf("append ledger entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "bulk stock adjustment applied", "count", len(results))
	return results, nil
}

// applyAdjustment performs the atomic pair for a single request.
func (s *Service) applyAdjustment(ctx context.Context, req AdjustmentRequest) (*AdjustmentResult, error) {
	result, entry, err := s.applyRecordChange(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	return result, nil
}

// applyRecordChange locks and mutates the stock record and builds the
// matching ledger entry. The caller is responsible for appending the entry
// within the same transaction.
func (s *Service) applyRecordChange(ctx context.Context, req AdjustmentRequest) (*AdjustmentResult, *entity.LedgerEntry, error) {
	rec, err := s.repo.GetRecordForUpdate(ctx, req.VariantID, req.LocationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get record for update: %w", err)
	}

	if rec == nil {
		if req.QtyDelta < 0 {
			// Nothing was ever received here; outbound movement is not
			// creation-on-demand.
			return nil, nil, apperror.NewNotFound("stock record",
				fmt.Sprintf("%s@%s", req.VariantID, req.LocationID))
		}
		now := time.Now().UTC()
		rec = &entity.StockRecord{
			VariantID:  req.VariantID,
			LocationID: req.LocationID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repo.InsertRecord(ctx, rec); err != nil {
			return nil, nil, fmt.Errorf("create record: %w", err)
		}
	}

	applied := req.QtyDelta
	newOnHand := rec.OnHand + applied
	if newOnHand < 0 {
		if !req.Reason.IsCorrection() {
			return nil, nil, apperror.NewInsufficientStock(
				req.VariantID.String(), req.LocationID.String(),
				-req.QtyDelta, rec.OnHand,
			)
		}
		// Corrections rebase at zero; the entry records the applied delta
		// so ledger sums still reconcile with on-hand.
		applied = -rec.OnHand
		newOnHand = 0
		logger.Warn(ctx, "correction clamped at zero on-hand",
			"variant_id", req.VariantID,
			"location_id", req.LocationID,
			"requested_delta", req.QtyDelta,
			"applied_delta", applied,
		)
	}
	if applied == 0 {
		// Correction of an already-zero record: no movement to record.
		return nil, nil, apperror.NewInvalidInput("correction has no effect on zero on-hand")
	}

	rec.OnHand = newOnHand
	rec.Version++
	rec.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateRecord(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("update record: %w", err)
	}

	if rec.Reserved > rec.OnHand {
		logger.Warn(ctx, "reserved exceeds on-hand after adjustment",
			"variant_id", rec.VariantID,
			"location_id", rec.LocationID,
			"on_hand", rec.OnHand,
			"reserved", rec.Reserved,
		)
	}

	entry := entity.NewLedgerEntry(req.VariantID, req.LocationID, applied, req.Reason, req.ReferenceType, req.ReferenceID)

	return &AdjustmentResult{
		VariantID:     rec.VariantID,
		LocationID:    rec.LocationID,
		NewOnHand:     rec.OnHand,
		AppliedDelta:  applied,
		TransactionID: entry.ID,
	}, &entry, nil
}

// Reserve allocates quantity to an unfulfilled commitment. Reservations are
// not physical movements and write no ledger entry.
func (s *Service) Reserve(ctx context.Context, variantID, locationID id.ID, qty int64) error {
	if qty <= 0 {
		return apperror.NewInvalidInput("reservation quantity must be positive")
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, variantID, locationID)
		if err != nil {
			return fmt.Errorf("get record for update: %w", err)
		}
		if rec == nil {
			return apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", variantID, locationID))
		}

		if qty > rec.Available() {
			return apperror.NewInsufficientAvailable(
				variantID.String(), locationID.String(), qty, rec.Available())
		}

		rec.Reserved += qty
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateRecord(ctx, rec)
	})
}

// Release returns reserved quantity to the sellable pool. Releasing more
// than is currently reserved clamps to zero; duplicate releases from order
// cancellation races are tolerated, not fatal.
func (s *Service) Release(ctx context.Context, variantID, locationID id.ID, qty int64) error {
	if qty <= 0 {
		return apperror.NewInvalidInput("release quantity must be positive")
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, variantID, locationID)
		if err != nil {
			return fmt.Errorf("get record for update: %w", err)
		}
		if rec == nil {
			return apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", variantID, locationID))
		}

		if qty > rec.Reserved {
			logger.Warn(ctx, "release exceeds reserved, clamping",
				"variant_id", variantID,
				"location_id", locationID,
				"requested", qty,
				"reserved", rec.Reserved,
			)
			qty = rec.Reserved
		}

		rec.Reserved -= qty
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateRecord(ctx, rec)
	})
}

// SetLevels updates merchandising configuration. Not a physical movement;
// no ledger entry is written.
func (s *Service) SetLevels(ctx context.Context, variantID, locationID id.ID, lowStockThreshold, safetyStock *int64) error {
	if lowStockThreshold != nil && *lowStockThreshold < 0 {
		return apperror.NewInvalidInput("lowStockThreshold must not be negative")
	}
	if safetyStock != nil && *safetyStock < 0 {
		return apperror.NewInvalidInput("safetyStock must not be negative")
	}

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.repo.GetRecordForUpdate(ctx, variantID, locationID)
		if err != nil {
			return fmt.Errorf("get record for update: %w", err)
		}
		if rec == nil {
			return apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", variantID, locationID))
		}

		rec.LowStockThreshold = lowStockThreshold
		rec.SafetyStock = safetyStock
		rec.Version++
		rec.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateRecord(ctx, rec)
	})
}

// Get returns one stock record.
func (s *Service) Get(ctx context.Context, variantID, locationID id.ID) (*entity.StockRecord, error) {
	rec, err := s.repo.GetRecord(ctx, variantID, locationID)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec == nil {
		return nil, apperror.NewNotFound("stock record", fmt.Sprintf("%s@%s", variantID, locationID))
	}
	return rec, nil
}

// List returns stock records matching the filter.
func (s *Service) List(ctx context.Context, filter RecordFilter) ([]entity.StockRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.ListRecords(ctx, filter)
}

// Mismatch is one reconciliation divergence: the ledger sum for a key does
// not equal the stored on-hand.
type Mismatch struct {
	VariantID  id.ID `json:"variantId"`
	LocationID id.ID `json:"locationId"`
	OnHand     int64 `json:"onHand"`
	LedgerSum  int64 `json:"ledgerSum"`
	Difference int64 `json:"difference"`
}

// ReconciliationReport summarizes an invariant check over the ledger.
type ReconciliationReport struct {
	CheckedKeys int        `json:"checkedKeys"`
	Mismatches  []Mismatch `json:"mismatches"`
	CheckedAt   time.Time  `json:"checkedAt"`
}

// Reconcile verifies the core invariant: for every key, the sum of all
// ledger deltas equals the stored on-hand. Divergence is surfaced and
// logged as an integrity warning, never silently corrected.
//
// Runs in a read-only snapshot transaction: the ledger sums and the record
// scan must observe the same point in time, or an adjustment committing
// between the two statements would report a false mismatch.
func (s *Service) Reconcile(ctx context.Context, filter ReconcileFilter) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Mismatches: []Mismatch{},
		CheckedAt:  time.Now().UTC(),
	}

	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		sums, err := s.repo.LedgerSums(ctx, filter)
		if err != nil {
			return fmt.Errorf("ledger sums: %w", err)
		}

		recFilter := RecordFilter{VariantID: filter.VariantID, LocationID: filter.LocationID}
		records, err := s.repo.ListRecords(ctx, recFilter)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}

		type key struct{ v, l id.ID }
		byKey := make(map[key]int64, len(sums))
		for _, sum := range sums {
			byKey[key{sum.VariantID, sum.LocationID}] = sum.DeltaSum
		}

		report.CheckedKeys = len(records)
		for i := range records {
			rec := &records[i]
			ledgerSum := byKey[key{rec.VariantID, rec.LocationID}]
			if ledgerSum == rec.OnHand {
				continue
			}
			m := Mismatch{
				VariantID:  rec.VariantID,
				LocationID: rec.LocationID,
				OnHand:     rec.OnHand,
				LedgerSum:  ledgerSum,
				Difference: rec.OnHand - ledgerSum,
			}
			report.Mismatches = append(report.Mismatches, m)
			logger.Warn(ctx, "ledger reconciliation mismatch",
				"code", apperror.CodeIntegrityWarning,
				"variant_id", m.VariantID,
				"location_id", m.LocationID,
				"on_hand", m.OnHand,
				"ledger_sum", m.LedgerSum,
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
