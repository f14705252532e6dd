// Package catalog_repo provides read-only PostgreSQL adapters for the catalog
// and location collaborator tables. The ledger never writes to these tables.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/id"
	"stockroom/internal/domain/reports"
	"stockroom/internal/infrastructure/storage/postgres"
)

const (
	variantsTable  = "catalog_variants"
	locationsTable = "locations"
)

// CatalogRepo implements reports.CatalogProvider and reports.LocationProvider.
type CatalogRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCatalogRepo creates a new catalog repository.
func NewCatalogRepo(txm *postgres.TxManager) *CatalogRepo {
	return &CatalogRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Variant returns catalog metadata for one variant.
func (r *CatalogRepo) Variant(ctx context.Context, variantID id.ID) (*reports.VariantInfo, error) {
	q := r.builder.Select("id", "sku", "title", "price", "created_at").
		From(variantsTable).
		Where(squirrel.Eq{"id": variantID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var info reports.VariantInfo
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &info, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("variant", variantID)
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}

	return &info, nil
}

// Variants batch-loads catalog metadata. Unknown IDs are simply absent from
// the result map; callers decide how to handle catalog gaps.
func (r *CatalogRepo) Variants(ctx context.Context, variantIDs []id.ID) (map[id.ID]reports.VariantInfo, error) {
	if len(variantIDs) == 0 {
		return map[id.ID]reports.VariantInfo{}, nil
	}

	q := r.builder.Select("id", "sku", "title", "price", "created_at").
		From(variantsTable).
		Where(squirrel.Eq{"id": variantIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var infos []reports.VariantInfo
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &infos, sql, args...); err != nil {
		return nil, fmt.Errorf("select variants: %w", err)
	}

	result := make(map[id.ID]reports.VariantInfo, len(infos))
	for _, info := range infos {
		result[info.ID] = info
	}

	return result, nil
}

// Location returns display metadata for one location.
func (r *CatalogRepo) Location(ctx context.Context, locationID id.ID) (*reports.LocationInfo, error) {
	q := r.builder.Select("id", "name", "kind").
		From(locationsTable).
		Where(squirrel.Eq{"id": locationID}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var info reports.LocationInfo
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &info, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("location", locationID)
		}
		return nil, fmt.Errorf("get location: %w", err)
	}

	return &info, nil
}

// Ensure interface compliance.
var (
	_ reports.CatalogProvider  = (*CatalogRepo)(nil)
	_ reports.LocationProvider = (*CatalogRepo)(nil)
)
