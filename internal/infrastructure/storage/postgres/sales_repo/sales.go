// Package sales_repo provides the read-only PostgreSQL adapter over the
// order lines table owned by the order system.
package sales_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stockroom/internal/core/id"
	"stockroom/internal/domain/reports"
	"stockroom/internal/infrastructure/storage/postgres"
)

// SalesRepo implements reports.SalesProvider.
type SalesRepo struct {
	txm *postgres.TxManager
}

// NewSalesRepo creates a new sales repository.
func NewSalesRepo(txm *postgres.TxManager) *SalesRepo {
	return &SalesRepo{txm: txm}
}

// UnitsSoldInWindow returns units of the variant sold in [from, to].
// Cancelled orders do not count as demand.
func (r *SalesRepo) UnitsSoldInWindow(ctx context.Context, variantID id.ID, from, to time.Time) (int64, error) {
	sql := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM order_lines
		WHERE variant_id = $1
		  AND sold_at >= $2 AND sold_at <= $3
		  AND status <> 'cancelled'
	`

	var units int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, variantID, from, to).Scan(&units)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum units sold: %w", err)
	}

	return units, nil
}

// LastSaleAt returns the most recent sale timestamp, or nil when the variant
// has never sold.
func (r *SalesRepo) LastSaleAt(ctx context.Context, variantID id.ID) (*time.Time, error) {
	sql := `
		SELECT MAX(sold_at)
		FROM order_lines
		WHERE variant_id = $1
		  AND status <> 'cancelled'
	`

	var lastSale *time.Time
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, variantID).Scan(&lastSale)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("last sale: %w", err)
	}

	return lastSale, nil
}

// Ensure interface compliance.
var _ reports.SalesProvider = (*SalesRepo)(nil)
