package stock_repo

import (
	"strings"
	"testing"

	"stockroom/internal/core/id"
	"stockroom/internal/domain/stock"
)

func TestListRecordsQuery_NoFilter(t *testing.T) {
	repo := NewStockRepo(nil)

	sql, args, err := repo.listRecordsQuery(stock.RecordFilter{}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(sql, "FROM stock_records") {
		t.Errorf("expected stock_records table, got: %s", sql)
	}
	if strings.Contains(sql, "WHERE") {
		t.Errorf("expected no WHERE clause, got: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY variant_id, location_id") {
		t.Errorf("expected key ordering, got: %s", sql)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestListRecordsQuery_KeyFilter(t *testing.T) {
	repo := NewStockRepo(nil)
	variantID := id.New()
	locationID := id.New()

	sql, args, err := repo.listRecordsQuery(stock.RecordFilter{
		VariantID:  &variantID,
		LocationID: &locationID,
		Limit:      50,
		Offset:     100,
	}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(sql, "variant_id = $1") {
		t.Errorf("expected variant filter, got: %s", sql)
	}
	if !strings.Contains(sql, "location_id = $2") {
		t.Errorf("expected location filter, got: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT 50") || !strings.Contains(sql, "OFFSET 100") {
		t.Errorf("expected pagination, got: %s", sql)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %v", args)
	}
}

func TestListRecordsQuery_LowStockScan(t *testing.T) {
	repo := NewStockRepo(nil)

	sql, _, err := repo.listRecordsQuery(stock.RecordFilter{
		ExcludeZero:    true,
		BelowThreshold: true,
	}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(sql, "on_hand <> $1") {
		t.Errorf("expected zero exclusion, got: %s", sql)
	}
	if !strings.Contains(sql, "low_stock_threshold IS NOT NULL") {
		t.Errorf("expected threshold presence check, got: %s", sql)
	}
	if !strings.Contains(sql, "on_hand - reserved <= low_stock_threshold") {
		t.Errorf("expected available-vs-threshold comparison, got: %s", sql)
	}
}

func TestLedgerSumsQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	variantID := id.New()

	sql, args, err := repo.ledgerSumsQuery(stock.ReconcileFilter{
		VariantID: &variantID,
	}).ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}

	if !strings.Contains(sql, "COALESCE(SUM(qty_delta), 0) AS delta_sum") {
		t.Errorf("expected delta aggregation, got: %s", sql)
	}
	if !strings.Contains(sql, "GROUP BY variant_id, location_id") {
		t.Errorf("expected per-key grouping, got: %s", sql)
	}
	if !strings.Contains(sql, "variant_id = $1") {
		t.Errorf("expected variant filter, got: %s", sql)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %v", args)
	}
}
