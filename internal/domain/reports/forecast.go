package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/id"
)

const defaultForecastWindowDays = 30

// Forecast projects days-until-stockout from current availability and the
// sales velocity over the lookback window.
//
// Items with no sales in the window carry no trend to extrapolate and are
// excluded, not errored. Items whose projected stockout lies beyond the
// horizon are dropped. Output is ordered by urgency tier, then by the
// unfloored projection ascending within tier.
func (s *Service) Forecast(ctx context.Context, params ForecastParams) ([]ForecastItem, error) {
	if params.WindowDays <= 0 {
		params.WindowDays = defaultForecastWindowDays
	}
	if params.HorizonDays <= 0 {
		return nil, apperror.NewInvalidInput("horizonDays must be positive")
	}

	records, err := s.repo.ActiveRecords(ctx)
	if err != nil {
		return nil, reportErr("forecast", err)
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -params.WindowDays)

	// Velocity is a per-variant figure; records sharing a variant across
	// locations reuse one lookup.
	velocities := make(map[id.ID]float64)
	variantIDs := make([]id.ID, 0, len(records))

	items := make([]ForecastItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.OnHand <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, reportErr("forecast", err)
		}

		velocity, ok := velocities[rec.VariantID]
		if !ok {
			sold, err := s.sales.UnitsSoldInWindow(ctx, rec.VariantID, windowStart, now)
			if err != nil {
				return nil, reportErr("forecast", fmt.Errorf("units sold for %s: %w", rec.VariantID, err))
			}
			velocity = float64(sold) / float64(params.WindowDays)
			velocities[rec.VariantID] = velocity
		}
		if velocity == 0 {
			continue
		}

		available := rec.Available()
		projected := float64(available) / velocity
		if projected < 0 {
			// Oversold: already out of sellable stock.
			projected = 0
		}
		if projected > float64(params.HorizonDays) {
			continue
		}

		reorder := int64(math.Ceil(velocity*float64(params.WindowDays))) - available
		if safety := rec.SafetyStockOrZero(); reorder < safety {
			reorder = safety
		}
		if reorder < 0 {
			reorder = 0
		}

		items = append(items, ForecastItem{
			VariantID:             rec.VariantID,
			LocationID:            rec.LocationID,
			CurrentStock:          rec.OnHand,
			Available:             available,
			AverageDailySales:     velocity,
			DaysUntilStockout:     int(math.Floor(projected)),
			Urgency:               urgencyFor(projected),
			RecommendedReorderQty: reorder,
			projected:             projected,
		})
		variantIDs = append(variantIDs, rec.VariantID)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Urgency != items[j].Urgency {
			return items[i].Urgency.rank() < items[j].Urgency.rank()
		}
		if items[i].projected != items[j].projected {
			return items[i].projected < items[j].projected
		}
		return items[i].VariantID.String() < items[j].VariantID.String()
	})

	s.enrichForecastItems(ctx, items, variantIDs)
	return items, nil
}

// enrichForecastItems fills SKU/title from the catalog and the location
// display name; best-effort.
func (s *Service) enrichForecastItems(ctx context.Context, items []ForecastItem, variantIDs []id.ID) {
	if len(items) == 0 {
		return
	}
	if variants, err := s.catalog.Variants(ctx, variantIDs); err == nil {
		for i := range items {
			if v, ok := variants[items[i].VariantID]; ok {
				items[i].SKU = v.SKU
				items[i].Title = v.Title
			}
		}
	}

	locIDs := make([]id.ID, len(items))
	for i := range items {
		locIDs[i] = items[i].LocationID
	}
	names := s.locationNames(ctx, locIDs)
	for i := range items {
		items[i].LocationName = names[items[i].LocationID]
	}
}
