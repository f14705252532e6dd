package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
)

const defaultSlowMovingMinDays = 30

// Valuation prices current stock at unit cost from the configured cost
// source. Margin is profit over potential revenue; a zero revenue yields a
// zero margin, never a division fault.
func (s *Service) Valuation(ctx context.Context) (*ValuationReport, error) {
	records, err := s.repo.ActiveRecords(ctx)
	if err != nil {
		return nil, reportErr("valuation", err)
	}

	report := &ValuationReport{
		GeneratedAt: time.Now().UTC(),
		Items:       make([]ValuationItem, 0, len(records)),
	}
	report.Summary.TotalCost = types.Zero()
	report.Summary.PotentialRevenue = types.Zero()
	report.Summary.PotentialProfit = types.Zero()

	variants, err := s.recordVariants(ctx, records)
	if err != nil {
		return nil, reportErr("valuation", err)
	}

	for i := range records {
		rec := &records[i]
		if err := ctx.Err(); err != nil {
			return nil, reportErr("valuation", err)
		}

		variant, ok := variants[rec.VariantID]
		if !ok {
			// Catalog gap: price unknown, value as zero rather than drop
			// the physical units from the report.
			variant = VariantInfo{ID: rec.VariantID, Price: types.Zero()}
		}

		cost, err := s.costs.UnitCost(ctx, variant)
		if err != nil {
			return nil, reportErr("valuation", fmt.Errorf("unit cost for %s: %w", rec.VariantID, err))
		}

		onHand := types.NewMoney(float64(rec.OnHand))
		item := ValuationItem{
			VariantID:  rec.VariantID,
			LocationID: rec.LocationID,
			SKU:        variant.SKU,
			Title:      variant.Title,
			OnHand:     rec.OnHand,
			UnitCost:   cost,
			UnitPrice:  variant.Price,
		}
		item.TotalCost = cost.Mul(onHand)
		item.PotentialRevenue = variant.Price.Mul(onHand)
		item.PotentialProfit = item.PotentialRevenue.Sub(item.TotalCost)
		item.Margin = moneyOrZero(item.PotentialProfit, item.PotentialRevenue)

		report.Items = append(report.Items, item)
		report.Summary.TotalItems++
		report.Summary.TotalUnits += rec.OnHand
		report.Summary.TotalCost = report.Summary.TotalCost.Add(item.TotalCost)
		report.Summary.PotentialRevenue = report.Summary.PotentialRevenue.Add(item.PotentialRevenue)
		report.Summary.PotentialProfit = report.Summary.PotentialProfit.Add(item.PotentialProfit)
	}
	report.Summary.OverallMargin = moneyOrZero(report.Summary.PotentialProfit, report.Summary.PotentialRevenue)

	// Largest capital commitment first.
	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].TotalCost.GreaterThan(report.Items[j].TotalCost)
	})

	locIDs := make([]id.ID, len(report.Items))
	for i := range report.Items {
		locIDs[i] = report.Items[i].LocationID
	}
	names := s.locationNames(ctx, locIDs)
	for i := range report.Items {
		report.Items[i].LocationName = names[report.Items[i].LocationID]
	}

	return report, nil
}

// SlowMoving classifies variants whose stock has aged past the threshold
// with enough value tied up to matter. Turnover rate is units sold per day
// in stock. Recommendations are evaluated most aggressive first, so a
// variant matching several thresholds gets the strongest action.
func (s *Service) SlowMoving(ctx context.Context, params SlowMovingParams) (*SlowMovingReport, error) {
	if params.MinDaysInStock <= 0 {
		params.MinDaysInStock = defaultSlowMovingMinDays
	}

	records, err := s.repo.ActiveRecords(ctx)
	if err != nil {
		return nil, reportErr("slow-moving", err)
	}

	variants, err := s.recordVariants(ctx, records)
	if err != nil {
		return nil, reportErr("slow-moving", err)
	}

	// Days in stock and sales history are variant-level figures; aggregate
	// on-hand across locations.
	totals := make(map[id.ID]int64)
	for i := range records {
		totals[records[i].VariantID] += records[i].OnHand
	}

	now := time.Now().UTC()
	report := &SlowMovingReport{
		GeneratedAt: now,
		Items:       []SlowMovingItem{},
		TotalValue:  types.Zero(),
	}

	for variantID, onHand := range totals {
		if err := ctx.Err(); err != nil {
			return nil, reportErr("slow-moving", err)
		}

		variant, ok := variants[variantID]
		if !ok {
			continue
		}

		daysInStock := int(now.Sub(variant.CreatedAt).Hours() / 24)
		if daysInStock < params.MinDaysInStock {
			continue
		}

		cost, err := s.costs.UnitCost(ctx, variant)
		if err != nil {
			return nil, reportErr("slow-moving", fmt.Errorf("unit cost for %s: %w", variantID, err))
		}
		value := cost.Mul(types.NewMoney(float64(onHand)))
		if value.LessThan(params.MinValue) {
			continue
		}

		sold, err := s.sales.UnitsSoldInWindow(ctx, variantID, variant.CreatedAt, now)
		if err != nil {
			return nil, reportErr("slow-moving", fmt.Errorf("units sold for %s: %w", variantID, err))
		}
		turnover := float64(sold) / float64(daysInStock)

		lastSale, err := s.sales.LastSaleAt(ctx, variantID)
		if err != nil {
			return nil, reportErr("slow-moving", fmt.Errorf("last sale for %s: %w", variantID, err))
		}

		report.Items = append(report.Items, SlowMovingItem{
			VariantID:      variantID,
			SKU:            variant.SKU,
			Title:          variant.Title,
			OnHand:         onHand,
			DaysInStock:    daysInStock,
			TotalSold:      sold,
			TurnoverRate:   turnover,
			InventoryValue: value,
			LastSaleAt:     lastSale,
			Recommendation: recommendFor(turnover, daysInStock),
		})
		report.TotalValue = report.TotalValue.Add(value)
	}

	sort.SliceStable(report.Items, func(i, j int) bool {
		if !report.Items[i].InventoryValue.Equal(report.Items[j].InventoryValue) {
			return report.Items[i].InventoryValue.GreaterThan(report.Items[j].InventoryValue)
		}
		return report.Items[i].VariantID.String() < report.Items[j].VariantID.String()
	})

	return report, nil
}

// recommendFor applies the fixed-priority thresholds: clearance before
// discount before bundle, so the most aggressive action wins.
func recommendFor(turnover float64, daysInStock int) Recommendation {
	switch {
	case turnover < 0.05 && daysInStock >= 180:
		return RecommendClearance
	case turnover < 0.15 && daysInStock >= 90:
		return RecommendDiscount
	case turnover < 0.5:
		return RecommendBundle
	default:
		return RecommendPromote
	}
}

// recordVariants batch-loads catalog metadata for the variants present in
// records.
func (s *Service) recordVariants(ctx context.Context, records []entity.StockRecord) (map[id.ID]VariantInfo, error) {
	if len(records) == 0 {
		return map[id.ID]VariantInfo{}, nil
	}
	seen := make(map[id.ID]struct{}, len(records))
	ids := make([]id.ID, 0, len(records))
	for i := range records {
		if _, ok := seen[records[i].VariantID]; ok {
			continue
		}
		seen[records[i].VariantID] = struct{}{}
		ids = append(ids, records[i].VariantID)
	}
	return s.catalog.Variants(ctx, ids)
}
