// Package stock_repo provides the PostgreSQL implementation of the stock
// record store and the transaction ledger.
package stock_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/domain/stock"
	"stockroom/internal/infrastructure/storage/postgres"
)

const (
	stockRecordsTable = "stock_records"
	stockLedgerTable  = "stock_ledger"
)

var (
	recordColumns = postgres.ExtractDBColumns[entity.StockRecord]()

	// seq is assigned by the bigserial default; never written on insert.
	ledgerInsertColumns = []string{
		"id", "variant_id", "location_id", "qty_delta",
		"reason", "reference_type", "reference_id", "created_at",
	}
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetRecord returns the record for (variant, location), or nil when absent.
func (r *StockRepo) GetRecord(ctx context.Context, variantID, locationID id.ID) (*entity.StockRecord, error) {
	q := r.builder.Select(recordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Eq{
			"variant_id":  variantID,
			"location_id": locationID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec entity.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	return &rec, nil
}

// GetRecordForUpdate returns the record with a pessimistic row lock.
// Concurrent adjustments to the same key serialize here.
func (r *StockRepo) GetRecordForUpdate(ctx context.Context, variantID, locationID id.ID) (*entity.StockRecord, error) {
	sql := `
		SELECT variant_id, location_id, on_hand, reserved,
		       low_stock_threshold, safety_stock, version, created_at, updated_at
		FROM stock_records
		WHERE variant_id = $1 AND location_id = $2
		FOR UPDATE
	`

	var rec entity.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, variantID, locationID); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get record for update: %w", err)
	}

	return &rec, nil
}

// InsertRecord creates a new record (first receipt into a location).
func (r *StockRepo) InsertRecord(ctx context.Context, rec *entity.StockRecord) error {
	q := r.builder.Insert(stockRecordsTable).
		SetMap(postgres.StructToMap(rec))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

// UpdateRecord persists a mutated record, guarded by the version the caller
// read. Zero rows affected means a concurrent writer got there first.
func (r *StockRepo) UpdateRecord(ctx context.Context, rec *entity.StockRecord) error {
	q := r.builder.Update(stockRecordsTable).
		Set("on_hand", rec.OnHand).
		Set("reserved", rec.Reserved).
		Set("low_stock_threshold", rec.LowStockThreshold).
		Set("safety_stock", rec.SafetyStock).
		Set("version", rec.Version).
		Set("updated_at", rec.UpdatedAt).
		Where(squirrel.Eq{
			"variant_id":  rec.VariantID,
			"location_id": rec.LocationID,
			"version":     rec.Version - 1,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrencyConflict("stock record",
			fmt.Sprintf("%s/%s", rec.VariantID, rec.LocationID))
	}

	return nil
}

// listRecordsQuery builds the filtered record select. Split out so the
// filter-to-SQL mapping is testable without a database.
func (r *StockRepo) listRecordsQuery(filter stock.RecordFilter) squirrel.SelectBuilder {
	q := r.builder.Select(recordColumns...).From(stockRecordsTable)

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"on_hand": int64(0)})
	}
	if filter.BelowThreshold {
		q = q.Where("low_stock_threshold IS NOT NULL").
			Where("on_hand - reserved <= low_stock_threshold")
	}

	q = q.OrderBy("variant_id", "location_id")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}

// ListRecords returns records matching the filter, ordered by key.
func (r *StockRepo) ListRecords(ctx context.Context, filter stock.RecordFilter) ([]entity.StockRecord, error) {
	sql, args, err := r.listRecordsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []entity.StockRecord
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}

	return records, nil
}

// AppendEntry appends one ledger entry and fills in the assigned Seq.
func (r *StockRepo) AppendEntry(ctx context.Context, entry *entity.LedgerEntry) error {
	q := r.builder.Insert(stockLedgerTable).
		Columns(ledgerInsertColumns...).
		Values(
			entry.ID, entry.VariantID, entry.LocationID, entry.QtyDelta,
			entry.Reason, entry.ReferenceType, entry.ReferenceID, entry.CreatedAt,
		).
		Suffix("RETURNING seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, sql, args...).Scan(&entry.Seq); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	return nil
}

// AppendEntries bulk-appends ledger entries.
// Fast path: COPY when inside a transaction. Seq values are assigned by the
// database and not reported back.
func (r *StockRepo) AppendEntries(ctx context.Context, entries []entity.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{
				e.ID, e.VariantID, e.LocationID, e.QtyDelta,
				e.Reason, e.ReferenceType, e.ReferenceID, e.CreatedAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, stockLedgerTable, ledgerInsertColumns, rows); err != nil {
			return fmt.Errorf("copy entries: %w", err)
		}
		return nil
	}

	// Fallback: multi-row insert. Prefer calling AppendEntries within tx.
	q := r.builder.Insert(stockLedgerTable).Columns(ledgerInsertColumns...)
	for _, e := range entries {
		q = q.Values(
			e.ID, e.VariantID, e.LocationID, e.QtyDelta,
			e.Reason, e.ReferenceType, e.ReferenceID, e.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert entries: %w", err)
	}

	return nil
}

// ledgerSumsQuery builds the per-key delta aggregation for reconciliation.
func (r *StockRepo) ledgerSumsQuery(filter stock.ReconcileFilter) squirrel.SelectBuilder {
	q := r.builder.Select(
		"variant_id",
		"location_id",
		"COALESCE(SUM(qty_delta), 0) AS delta_sum",
	).From(stockLedgerTable).
		GroupBy("variant_id", "location_id").
		OrderBy("variant_id", "location_id")

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}

	return q
}

// LedgerSums returns per-key delta totals for the reconciliation scan.
func (r *StockRepo) LedgerSums(ctx context.Context, filter stock.ReconcileFilter) ([]stock.KeyDeltaSum, error) {
	sql, args, err := r.ledgerSumsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var sums []stock.KeyDeltaSum
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &sums, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger sums: %w", err)
	}

	return sums, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
