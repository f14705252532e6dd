// Package report_repo provides the PostgreSQL read side for report queries.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/internal/core/entity"
	"stockroom/internal/domain/reports"
	"stockroom/internal/infrastructure/storage/postgres"
)

const (
	stockRecordsTable = "stock_records"
	stockLedgerTable  = "stock_ledger"
)

var (
	recordColumns = postgres.ExtractDBColumns[entity.StockRecord]()
	ledgerColumns = postgres.ExtractDBColumns[entity.LedgerEntry]()
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EntriesInWindow returns ledger entries in [from, to] in per-key replay order.
func (r *ReportRepo) EntriesInWindow(ctx context.Context, filter reports.MovementFilter) ([]entity.LedgerEntry, error) {
	q := r.builder.Select(ledgerColumns...).
		From(stockLedgerTable).
		Where(squirrel.GtOrEq{"created_at": filter.From}).
		Where(squirrel.LtOrEq{"created_at": filter.To})

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}

	q = q.OrderBy("variant_id", "location_id", "created_at", "seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []entity.LedgerEntry
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}

	return entries, nil
}

// OpeningBalances returns per-key delta sums strictly before the window start.
// Keys with no prior history are absent from the result.
func (r *ReportRepo) OpeningBalances(ctx context.Context, filter reports.MovementFilter) ([]reports.KeyBalance, error) {
	q := r.builder.Select(
		"variant_id",
		"location_id",
		"COALESCE(SUM(qty_delta), 0) AS balance",
	).From(stockLedgerTable).
		Where(squirrel.Lt{"created_at": filter.From}).
		GroupBy("variant_id", "location_id")

	if filter.VariantID != nil {
		q = q.Where(squirrel.Eq{"variant_id": *filter.VariantID})
	}
	if filter.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *filter.LocationID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []reports.KeyBalance
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("select opening balances: %w", err)
	}

	return balances, nil
}

// ActiveRecords returns stock records with on-hand > 0, ordered by key.
func (r *ReportRepo) ActiveRecords(ctx context.Context) ([]entity.StockRecord, error) {
	q := r.builder.Select(recordColumns...).
		From(stockRecordsTable).
		Where(squirrel.Gt{"on_hand": int64(0)}).
		OrderBy("variant_id", "location_id")

	sql, args, err := q.ToSql()
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

// StreamEntries walks ledger entries in [from, to] in replay order, one row
// at a time. Keeps the export memory-flat regardless of window size.
func (r *ReportRepo) StreamEntries(ctx context.Context, from, to time.Time, fn func(entity.LedgerEntry) error) error {
	q := r.builder.Select(ledgerColumns...).
		From(stockLedgerTable).
		Where(squirrel.GtOrEq{"created_at": from}).
		Where(squirrel.LtOrEq{"created_at": to}).
		OrderBy("created_at", "seq")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	rows, err := querier.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	scanner := pgxscan.NewRowScanner(rows)
	for rows.Next() {
		var entry entity.LedgerEntry
		if err := scanner.Scan(&entry); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}

	return nil
}

// Ensure interface compliance.
var _ reports.Repository = (*ReportRepo)(nil)
