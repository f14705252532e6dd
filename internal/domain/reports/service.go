package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/tx"
	"stockroom/internal/core/types"
)

const defaultTopN = 5

// Service generates ledger-derived reports. All methods are read-only and
// honor the caller-supplied deadline: on expiry they fail with ReportTimeout
// instead of returning a silently truncated result.
type Service struct {
	repo      Repository
	sales     SalesProvider
	catalog   CatalogProvider
	locations LocationProvider
	costs     CostSource
	txm       tx.ReadOnlyManager
}

// NewService creates a new reports service.
func NewService(repo Repository, sales SalesProvider, catalog CatalogProvider, locations LocationProvider, costs CostSource, txm tx.ReadOnlyManager) *Service {
	return &Service{
		repo:      repo,
		sales:     sales,
		catalog:   catalog,
		locations: locations,
		costs:     costs,
		txm:       txm,
	}
}

// reportErr maps deadline expiry to ReportTimeout and wraps anything else.
func reportErr(report string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewReportTimeout(report).WithCause(err)
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	return fmt.Errorf("%s report: %w", report, err)
}

// MovementReport replays ledger entries in [from, to] in chronological
// order per key, reconstructing running balances seeded from each key's
// balance immediately prior to the window.
func (s *Service) MovementReport(ctx context.Context, filter MovementFilter) (*MovementReport, error) {
	if filter.From.IsZero() || filter.To.IsZero() {
		return nil, apperror.NewInvalidInput("from and to are required")
	}
	if filter.From.After(filter.To) {
		return nil, apperror.NewInvalidInput("from must not be after to")
	}
	if filter.TopN <= 0 {
		filter.TopN = defaultTopN
	}

	report := &MovementReport{
		From:  filter.From,
		To:    filter.To,
		Items: []MovementItem{},
	}
	report.Summary.TopVariants = []VariantFrequency{}

	// Single read-only transaction: entries and opening balances observe
	// the same snapshot, so a concurrent adjustment cannot skew the fold.
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		entries, err := s.repo.EntriesInWindow(ctx, filter)
		if err != nil {
			return fmt.Errorf("select entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		openings, err := s.repo.OpeningBalances(ctx, filter)
		if err != nil {
			return fmt.Errorf("opening balances: %w", err)
		}

		type key struct{ v, l id.ID }
		running := make(map[key]int64, len(openings))
		for _, ob := range openings {
			running[key{ob.VariantID, ob.LocationID}] = ob.Balance
		}

		counts := make(map[id.ID]int)
		report.Items = make([]MovementItem, 0, len(entries))
		for i := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := entries[i]
			k := key{e.VariantID, e.LocationID}
			running[k] += e.QtyDelta
			report.Items = append(report.Items, MovementItem{
				Entry:          e,
				RunningBalance: running[k],
			})

			if e.QtyDelta > 0 {
				report.Summary.TotalInbound += e.QtyDelta
			} else {
				report.Summary.TotalOutbound += -e.QtyDelta
			}
			counts[e.VariantID]++
		}
		report.Summary.NetChange = report.Summary.TotalInbound - report.Summary.TotalOutbound
		report.Summary.TopVariants = topVariants(counts, filter.TopN)
		return nil
	})
	if err != nil {
		return nil, reportErr("movement", err)
	}

	s.enrichTopVariants(ctx, report.Summary.TopVariants)

	locIDs := make([]id.ID, len(report.Items))
	for i := range report.Items {
		locIDs[i] = report.Items[i].Entry.LocationID
	}
	names := s.locationNames(ctx, locIDs)
	for i := range report.Items {
		report.Items[i].LocationName = names[report.Items[i].Entry.LocationID]
	}

	return report, nil
}

// topVariants picks the N most transaction-frequent variants, ties broken
// by variantId ascending.
func topVariants(counts map[id.ID]int, n int) []VariantFrequency {
	freq := make([]VariantFrequency, 0, len(counts))
	for vid, c := range counts {
		freq = append(freq, VariantFrequency{VariantID: vid, Count: c})
	}
	sort.Slice(freq, func(i, j int) bool {
		if freq[i].Count != freq[j].Count {
			return freq[i].Count > freq[j].Count
		}
		return freq[i].VariantID.String() < freq[j].VariantID.String()
	})
	if len(freq) > n {
		freq = freq[:n]
	}
	return freq
}

// enrichTopVariants fills SKUs from the catalog; lookup failure only costs
// the enrichment, never the report.
func (s *Service) enrichTopVariants(ctx context.Context, top []VariantFrequency) {
	if len(top) == 0 {
		return
	}
	ids := make([]id.ID, len(top))
	for i := range top {
		ids[i] = top[i].VariantID
	}
	variants, err := s.catalog.Variants(ctx, ids)
	if err != nil {
		return
	}
	for i := range top {
		if v, ok := variants[top[i].VariantID]; ok {
			top[i].SKU = v.SKU
		}
	}
}

// locationNames resolves display names for the given locations, deduplicated.
// Lookup failure only costs the enrichment, never the report.
func (s *Service) locationNames(ctx context.Context, locIDs []id.ID) map[id.ID]string {
	names := make(map[id.ID]string, len(locIDs))
	for _, lid := range locIDs {
		if _, ok := names[lid]; ok {
			continue
		}
		loc, err := s.locations.Location(ctx, lid)
		if err != nil {
			continue
		}
		names[lid] = loc.Name
	}
	return names
}

// ExportLedger streams every ledger entry in [from, to] in replay order.
// The caller owns encoding; fn errors abort the walk.
func (s *Service) ExportLedger(ctx context.Context, from, to time.Time, fn func(entity.LedgerEntry) error) error {
	if from.IsZero() || to.IsZero() {
		return apperror.NewInvalidInput("from and to are required")
	}
	if from.After(to) {
		return apperror.NewInvalidInput("from must not be after to")
	}
	err := s.txm.ReadOnly(ctx, func(ctx context.Context) error {
		return s.repo.StreamEntries(ctx, from, to, fn)
	})
	return reportErr("ledger-export", err)
}

// Dashboard assembles the composite admin summary. The three underlying
// reports are independent read paths and run concurrently.
func (s *Service) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	now := time.Now().UTC()
	summary := &DashboardSummary{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.Forecast(gctx, ForecastParams{HorizonDays: 14})
		if err != nil {
			return err
		}
		summary.StockoutsProjected = len(items)
		for i := range items {
			if items[i].Urgency == UrgencyImmediate {
				summary.ImmediateStockouts++
			}
		}
		return nil
	})

	g.Go(func() error {
		valuation, err := s.Valuation(gctx)
		if err != nil {
			return err
		}
		summary.InventoryValue = valuation.Summary.TotalCost
		summary.PotentialRevenue = valuation.Summary.PotentialRevenue
		return nil
	})

	g.Go(func() error {
		movement, err := s.MovementReport(gctx, MovementFilter{
			From: now.AddDate(0, 0, -7),
			To:   now,
		})
		if err != nil {
			return err
		}
		summary.WeekInbound = movement.Summary.TotalInbound
		summary.WeekOutbound = movement.Summary.TotalOutbound
		summary.WeekNet = movement.Summary.NetChange
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, reportErr("dashboard", err)
	}
	return summary, nil
}

// moneyOrZero guards divisions: zero when the denominator is zero.
func moneyOrZero(numerator, denominator types.Money) types.Money {
	if denominator.IsZero() {
		return types.Zero()
	}
	return numerator.Div(denominator)
}
