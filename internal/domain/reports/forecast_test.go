package reports

import (
	"context"
	"testing"
	"time"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
)

func activeRecord(variantID, locationID id.ID, onHand, reserved int64) entity.StockRecord {
	return entity.StockRecord{
		VariantID:  variantID,
		LocationID: locationID,
		OnHand:     onHand,
		Reserved:   reserved,
	}
}

func TestForecast_ProjectsStockout(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()

	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, locationID, 10, 0),
	}
	// 60 units over the default 30-day window: 2 units/day.
	env.sales.sold[variantID] = 60

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.AverageDailySales != 2 {
		t.Errorf("expected velocity 2/day, got %v", item.AverageDailySales)
	}
	if item.DaysUntilStockout != 5 {
		t.Errorf("expected 5 days until stockout, got %d", item.DaysUntilStockout)
	}
	if item.Urgency != UrgencyUrgent {
		t.Errorf("expected urgency %q, got %q", UrgencyUrgent, item.Urgency)
	}
	// Reorder covers one full window of sales less what is available.
	if item.RecommendedReorderQty != 50 {
		t.Errorf("expected reorder qty 50, got %d", item.RecommendedReorderQty)
	}
}

func TestForecast_UrgencyTiers(t *testing.T) {
	tests := []struct {
		name    string
		onHand  int64
		sold    int64 // over the 30-day window
		urgency UrgencyTier
	}{
		{"exactly three days is immediate", 6, 60, UrgencyImmediate},
		{"exactly seven days is urgent", 14, 60, UrgencyUrgent},
		{"exactly fourteen days is soon", 28, 60, UrgencySoon},
		{"beyond fourteen days is monitor", 30, 60, UrgencyMonitor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			variantID := id.New()
			env.repo.records = []entity.StockRecord{
				activeRecord(variantID, id.New(), tt.onHand, 0),
			}
			env.sales.sold[variantID] = tt.sold

			items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 60})
			if err != nil {
				t.Fatalf("Forecast: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("expected 1 item, got %d", len(items))
			}
			if items[0].Urgency != tt.urgency {
				t.Errorf("expected urgency %q, got %q", tt.urgency, items[0].Urgency)
			}
		})
	}
}

func TestForecast_ReservedReducesRunway(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()

	// 10 on hand but 4 reserved: only 6 sellable at 2/day.
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 10, 4),
	}
	env.sales.sold[variantID] = 60

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].DaysUntilStockout != 3 {
		t.Errorf("expected 3 days until stockout, got %d", items[0].DaysUntilStockout)
	}
	if items[0].Urgency != UrgencyImmediate {
		t.Errorf("expected immediate, got %q", items[0].Urgency)
	}
}

func TestForecast_ZeroVelocityExcluded(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 100, 0),
	}
	// No sales in the window: nothing to extrapolate.

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items for zero velocity, got %d", len(items))
	}
}

func TestForecast_BeyondHorizonDropped(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()
	// 100 available at 1/day: 100 days out, beyond a 14-day horizon.
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 100, 0),
	}
	env.sales.sold[variantID] = 30

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items beyond horizon, got %d", len(items))
	}
}

func TestForecast_ReorderFlooredAtSafetyStock(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()
	safety := int64(80)

	// One window of sales (60) minus available (10) suggests 50, below the
	// safety stock floor.
	rec := activeRecord(variantID, id.New(), 10, 0)
	rec.SafetyStock = &safety
	env.repo.records = []entity.StockRecord{rec}
	env.sales.sold[variantID] = 60

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].RecommendedReorderQty != safety {
		t.Errorf("expected reorder floored at %d, got %d", safety, items[0].RecommendedReorderQty)
	}
}

func TestForecast_OversoldProjectsImmediate(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()

	// Reserved exceeds on hand: available is negative.
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 5, 8),
	}
	env.sales.sold[variantID] = 30

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].DaysUntilStockout != 0 {
		t.Errorf("expected 0 days for oversold stock, got %d", items[0].DaysUntilStockout)
	}
	if items[0].Urgency != UrgencyImmediate {
		t.Errorf("expected immediate, got %q", items[0].Urgency)
	}
}

func TestForecast_SortedByUrgencyThenProjection(t *testing.T) {
	env := newTestEnv()
	locationID := id.New()
	urgent, immediate := id.New(), id.New()

	env.repo.records = []entity.StockRecord{
		activeRecord(urgent, locationID, 12, 0),   // 6 days at 2/day
		activeRecord(immediate, locationID, 4, 0), // 2 days at 2/day
	}
	env.sales.sold[urgent] = 60
	env.sales.sold[immediate] = 60

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].VariantID != immediate {
		t.Errorf("expected the immediate stockout first, got %v", items[0].VariantID)
	}
}

func TestForecast_EnrichesFromCatalog(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, locationID, 10, 0),
	}
	env.sales.sold[variantID] = 60
	env.catalog.variants[variantID] = VariantInfo{
		ID:    variantID,
		SKU:   "TEE-RED-M",
		Title: "Red Tee M",
	}
	env.locations.locations[locationID] = LocationInfo{ID: locationID, Name: "Store Front", Kind: "store"}

	items, err := env.svc.Forecast(context.Background(), ForecastParams{HorizonDays: 14})
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].SKU != "TEE-RED-M" || items[0].Title != "Red Tee M" {
		t.Errorf("expected catalog enrichment, got %q/%q", items[0].SKU, items[0].Title)
	}
	if items[0].LocationName != "Store Front" {
		t.Errorf("expected location name enrichment, got %q", items[0].LocationName)
	}
}

func TestForecast_RequiresHorizon(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Forecast(context.Background(), ForecastParams{})
	if !apperror.IsCode(err, apperror.CodeInvalidInput) {
		t.Errorf("expected invalid input for missing horizon, got %v", err)
	}
}

func TestForecast_DeadlineYieldsReportTimeout(t *testing.T) {
	env := newTestEnv()
	variantID := id.New()
	env.repo.records = []entity.StockRecord{
		activeRecord(variantID, id.New(), 10, 0),
	}
	env.sales.sold[variantID] = 60

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := env.svc.Forecast(ctx, ForecastParams{HorizonDays: 14})
	if !apperror.IsReportTimeout(err) {
		t.Fatalf("expected report timeout, got %v", err)
	}
}
