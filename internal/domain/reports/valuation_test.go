package reports

import (
	"context"
	"testing"
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
)

func TestValuation_PricesStockAtCost(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()

	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, locationID, 10, 0),
	}
	env.catalog.variants[variantID] = VariantInfo{
		ID:    variantID,
		SKU:   "TEE-RED-M",
		Price: types.MustMoney("25"),
	}
	env.locations.locations[locationID] = LocationInfo{ID: locationID, Name: "Main Warehouse", Kind: "warehouse"}

	report, err := env.svc.Valuation(context.Background())
	if err != nil {
		t.Fatalf("Valuation: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(report.Items))
	}

	// Cost is 60% of the catalog price.
	item := report.Items[0]
	if !item.UnitCost.Equal(types.MustMoney("15")) {
		t.Errorf("expected unit cost 15, got %s", item.UnitCost)
	}
	if !item.TotalCost.Equal(types.MustMoney("150")) {
		t.Errorf("expected total cost 150, got %s", item.TotalCost)
	}
	if !item.PotentialRevenue.Equal(types.MustMoney("250")) {
		t.Errorf("expected potential revenue 250, got %s", item.PotentialRevenue)
	}
	if !item.PotentialProfit.Equal(types.MustMoney("100")) {
		t.Errorf("expected potential profit 100, got %s", item.PotentialProfit)
	}
	if !item.Margin.Equal(types.MustMoney("0.4")) {
		t.Errorf("expected margin 0.4, got %s", item.Margin)
	}
	if item.LocationName != "Main Warehouse" {
		t.Errorf("expected location name enrichment, got %q", item.LocationName)
	}

	summary := report.Summary
	if summary.TotalItems != 1 || summary.TotalUnits != 10 {
		t.Errorf("unexpected summary counts: %+v", summary)
	}
	if !summary.OverallMargin.Equal(types.MustMoney("0.4")) {
		t.Errorf("expected overall margin 0.4, got %s", summary.OverallMargin)
	}
}

func TestValuation_CatalogGapValuedAtZero(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()

	// No catalog entry for the variant: physical units still appear.
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 7, 0),
	}

	report, err := env.svc.Valuation(context.Background())
	if err != nil {
		t.Fatalf("Valuation: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(report.Items))
	}

	item := report.Items[0]
	if item.OnHand != 7 {
		t.Errorf("expected on-hand 7, got %d", item.OnHand)
	}
	if !item.TotalCost.IsZero() || !item.PotentialRevenue.IsZero() {
		t.Errorf("expected zero value for unknown variant, got cost %s revenue %s", item.TotalCost, item.PotentialRevenue)
	}
	if !item.Margin.IsZero() {
		t.Errorf("expected zero margin on zero revenue, got %s", item.Margin)
	}
}

func TestValuation_SortedByCapitalCommitted(t *testing.T) {
	env := newTestEnv()
	locationID := id.New()
	cheap, expensive := id.New(), id.New()

	env.repo.records = []entity.StockRecord{
		activeRecord(cheap, locationID, 100, 0),
		activeRecord(expensive, locationID, 10, 0),
	}
	env.catalog.variants[cheap] = VariantInfo{ID: cheap, Price: types.MustMoney("1")}
	env.catalog.variants[expensive] = VariantInfo{ID: expensive, Price: types.MustMoney("500")}

	report, err := env.svc.Valuation(context.Background())
	if err != nil {
		t.Fatalf("Valuation: %v", err)
	}
	if len(report.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(report.Items))
	}
	if report.Items[0].VariantID != expensive {
		t.Errorf("expected the largest capital commitment first, got %v", report.Items[0].VariantID)
	}
}

func TestValuation_EmptyInventory(t *testing.T) {
	env := newTestEnv()

	report, err := env.svc.Valuation(context.Background())
	if err != nil {
		t.Fatalf("Valuation: %v", err)
	}
	if len(report.Items) != 0 {
		t.Errorf("expected no items, got %d", len(report.Items))
	}
	if !report.Summary.TotalCost.IsZero() || !report.Summary.OverallMargin.IsZero() {
		t.Errorf("expected zero summary, got %+v", report.Summary)
	}
}

// --- Slow-moving ---

func agedVariant(env *testEnv, daysInStock int, price string) id.ID {
	variantID := id.New()
	env.catalog.variants[variantID] = VariantInfo{
		ID:        variantID,
		SKU:       "SKU-" + variantID.String()[:8],
		Price:     types.MustMoney(price),
		CreatedAt: time.Now().UTC().AddDate(0, 0, -daysInStock),
	}
	return variantID
}

func TestSlowMoving_Recommendations(t *testing.T) {
	tests := []struct {
		name        string
		daysInStock int
		sold        int64
		want        Recommendation
	}{
		// 200 days, 5 sold: turnover 0.025.
		{"stale stock goes to clearance", 200, 5, RecommendClearance},
		// 100 days, 10 sold: turnover 0.1.
		{"aging stock gets discounted", 100, 10, RecommendDiscount},
		// 60 days, 18 sold: turnover 0.3.
		{"sluggish stock gets bundled", 60, 18, RecommendBundle},
		// 60 days, 36 sold: turnover 0.6.
		{"healthy turnover gets promoted", 60, 36, RecommendPromote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			variantID := agedVariant(env, tt.daysInStock, "10")
			env.repo.records = []entity.StockRecord{
				activeRecord(variantID, id.New(), 20, 0),
			}
			env.sales.sold[variantID] = tt.sold

			report, err := env.svc.SlowMoving(context.Background(), SlowMovingParams{})
			if err != nil {
				t.Fatalf("SlowMoving: %v", err)
			}
			if len(report.Items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(report.Items))
			}
			if report.Items[0].Recommendation != tt.want {
				t.Errorf("expected %q, got %q", tt.want, report.Items[0].Recommendation)
			}
		})
	}
}

func TestSlowMoving_YoungStockExcluded(t *testing.T) {
	env := newTestEnv()
	variantID := agedVariant(env, 10, "10")
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 20, 0),
	}

	report, err := env.svc.SlowMoving(context.Background(), SlowMovingParams{MinDaysInStock: 30})
	if err != nil {
		t.Fatalf("SlowMoving: %v", err)
	}
	if len(report.Items) != 0 {
		t.Errorf("expected young stock excluded, got %d items", len(report.Items))
	}
}

func TestSlowMoving_MinValueFilter(t *testing.T) {
	env := newTestEnv()
	// 2 units at cost 0.6: value 1.2, below the 100 floor.
	lowValue := agedVariant(env, 200, "1")
	// 50 units at cost 60: value 3000.
	highValue := agedVariant(env, 200, "100")

	locationID := id.New()
	env.repo.records = []entity.StockRecord{
		activeRecord(lowValue, locationID, 2, 0),
		activeRecord(highValue, locationID, 50, 0),
	}

	report, err := env.svc.SlowMoving(context.Background(), SlowMovingParams{
		MinValue: types.MustMoney("100"),
	})
	if err != nil {
		t.Fatalf("SlowMoving: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(report.Items))
	}
	if report.Items[0].VariantID != highValue {
		t.Errorf("expected only the high-value variant, got %v", report.Items[0].VariantID)
	}
	if !report.TotalValue.Equal(types.MustMoney("3000")) {
		t.Errorf("expected total value 3000, got %s", report.TotalValue)
	}
}

func TestSlowMoving_AggregatesAcrossLocations(t *testing.T) {
	env := newTestEnv()
	variantID := agedVariant(env, 200, "10")
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 8, 0),
		activeRecord(variantID, id.New(), 12, 0),
	}
	env.sales.sold[variantID] = 3
	lastSale := time.Now().UTC().AddDate(0, 0, -150)
	env.sales.lastSale[variantID] = &lastSale

	report, err := env.svc.SlowMoving(context.Background(), SlowMovingParams{})
	if err != nil {
		t.Fatalf("SlowMoving: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("expected one aggregated item, got %d", len(report.Items))
	}

	item := report.Items[0]
	if item.OnHand != 20 {
		t.Errorf("expected aggregated on-hand 20, got %d", item.OnHand)
	}
	if item.LastSaleAt == nil || !item.LastSaleAt.Equal(lastSale) {
		t.Errorf("expected last sale %v, got %v", lastSale, item.LastSaleAt)
	}
	// 20 units at cost 6.
	if !item.InventoryValue.Equal(types.MustMoney("120")) {
		t.Errorf("expected inventory value 120, got %s", item.InventoryValue)
	}
}

func TestSlowMoving_SortedByValueDesc(t *testing.T) {
	env := newTestEnv()
	small := agedVariant(env, 200, "10")
	large := agedVariant(env, 200, "10")

	locationID := id.New()
	env.repo.records = []entity.StockRecord{
		activeRecord(small, locationID, 5, 0),
		activeRecord(large, locationID, 50, 0),
	}

	report, err := env.svc.SlowMoving(context.Background(), SlowMovingParams{})
	if err != nil {
		t.Fatalf("SlowMoving: %v", err)
	}
	if len(report.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(report.Items))
	}
	if report.Items[0].VariantID != large {
		t.Errorf("expected the most valuable item first, got %v", report.Items[0].VariantID)
	}
}
