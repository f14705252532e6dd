package reports

import (
	"context"
	"sort"
	"testing"
	"time"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
)

// --- Fakes ---

type fakeReportRepo struct {
	entries []entity.LedgerEntry
	records []entity.StockRecord
}

func (r *fakeReportRepo) EntriesInWindow(_ context.Context, filter MovementFilter) ([]entity.LedgerEntry, error) {
	var out []entity.LedgerEntry
	for _, e := range r.entries {
		if e.CreatedAt.Before(filter.From) || e.CreatedAt.After(filter.To) {
			continue
		}
		if filter.VariantID != nil && e.VariantID != *filter.VariantID {
			continue
		}
		if filter.LocationID != nil && e.LocationID != *filter.LocationID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.VariantID != b.VariantID {
			return a.VariantID.String() < b.VariantID.String()
		}
		if a.LocationID != b.LocationID {
			return a.LocationID.String() < b.LocationID.String()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return out, nil
}

func (r *fakeReportRepo) OpeningBalances(_ context.Context, filter MovementFilter) ([]KeyBalance, error) {
	type key struct{ v, l id.ID }
	sums := make(map[key]int64)
	for _, e := range r.entries {
		if !e.CreatedAt.Before(filter.From) {
			continue
		}
		if filter.VariantID != nil && e.VariantID != *filter.VariantID {
			continue
		}
		if filter.LocationID != nil && e.LocationID != *filter.LocationID {
			continue
		}
		sums[key{e.VariantID, e.LocationID}] += e.QtyDelta
	}
	out := make([]KeyBalance, 0, len(sums))
	for k, v := range sums {
		out = append(out, KeyBalance{VariantID: k.v, LocationID: k.l, Balance: v})
	}
	return out, nil
}

func (r *fakeReportRepo) ActiveRecords(_ context.Context) ([]entity.StockRecord, error) {
	var out []entity.StockRecord
	for _, rec := range r.records {
		if rec.OnHand > 0 {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeReportRepo) StreamEntries(_ context.Context, from, to time.Time, fn func(entity.LedgerEntry) error) error {
	entries := make([]entity.LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Seq < entries[j].Seq
	})
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

type fakeSales struct {
	sold     map[id.ID]int64
	lastSale map[id.ID]*time.Time
}

func (s *fakeSales) UnitsSoldInWindow(_ context.Context, variantID id.ID, _, _ time.Time) (int64, error) {
	return s.sold[variantID], nil
}

func (s *fakeSales) LastSaleAt(_ context.Context, variantID id.ID) (*time.Time, error) {
	return s.lastSale[variantID], nil
}

type fakeCatalog struct {
	variants map[id.ID]VariantInfo
}

func (c *fakeCatalog) Variant(_ context.Context, variantID id.ID) (*VariantInfo, error) {
	if v, ok := c.variants[variantID]; ok {
		return &v, nil
	}
	return nil, apperror.NewNotFound("variant", variantID)
}

func (c *fakeCatalog) Variants(_ context.Context, variantIDs []id.ID) (map[id.ID]VariantInfo, error) {
	out := make(map[id.ID]VariantInfo)
	for _, vid := range variantIDs {
		if v, ok := c.variants[vid]; ok {
			out[vid] = v
		}
	}
	return out, nil
}

type fakeLocations struct {
	locations map[id.ID]LocationInfo
}

func (l *fakeLocations) Location(_ context.Context, locationID id.ID) (*LocationInfo, error) {
	if loc, ok := l.locations[locationID]; ok {
		return &loc, nil
	}
	return nil, apperror.NewNotFound("location", locationID)
}

// fakeRoTxManager runs callbacks directly; the fakes are already consistent.
type fakeRoTxManager struct{}

func (fakeRoTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (fakeRoTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type testEnv struct {
	repo      *fakeReportRepo
	sales     *fakeSales
	catalog   *fakeCatalog
	locations *fakeLocations
	svc       *Service
}

func newTestEnv() *testEnv {
	repo := &fakeReportRepo{}
	sales := &fakeSales{sold: map[id.ID]int64{}, lastSale: map[id.ID]*time.Time{}}
	catalog := &fakeCatalog{variants: map[id.ID]VariantInfo{}}
	locations := &fakeLocations{locations: map[id.ID]LocationInfo{}}
	costs := RatioCostSource{Ratio: types.MustRatio("0.6")}
	return &testEnv{
		repo:      repo,
		sales:     sales,
		catalog:   catalog,
		locations: locations,
		svc:       NewService(repo, sales, catalog, locations, costs, fakeRoTxManager{}),
	}
}

func entryAt(variantID, locationID id.ID, delta int64, reason entity.Reason, at time.Time, seq int64) entity.LedgerEntry {
	return entity.LedgerEntry{
		ID:         id.New(),
		Seq:        seq,
		VariantID:  variantID,
		LocationID: locationID,
		QtyDelta:   delta,
		Reason:     reason,
		CreatedAt:  at,
	}
}

// --- Movement report ---

func TestMovementReport_RunningBalances(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 20, entity.ReasonPurchaseOrder, base.Add(1*time.Hour), 1),
		entryAt(variantID, locationID, -5, entity.ReasonSale, base.Add(2*time.Hour), 2),
		entryAt(variantID, locationID, 3, entity.ReasonReturn, base.Add(3*time.Hour), 3),
	}
	env.locations.locations[locationID] = LocationInfo{ID: locationID, Name: "Main Warehouse", Kind: "warehouse"}

	report, err := env.svc.MovementReport(context.Background(), MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("MovementReport: %v", err)
	}

	wantBalances := []int64{20, 15, 18}
	if len(report.Items) != len(wantBalances) {
		t.Fatalf("expected %d items, got %d", len(wantBalances), len(report.Items))
	}
	for i, want := range wantBalances {
		if report.Items[i].RunningBalance != want {
			t.Errorf("item %d: expected running balance %d, got %d", i, want, report.Items[i].RunningBalance)
		}
	}

	if report.Summary.TotalInbound != 23 {
		t.Errorf("expected inbound 23, got %d", report.Summary.TotalInbound)
	}
	if report.Summary.TotalOutbound != 5 {
		t.Errorf("expected outbound 5, got %d", report.Summary.TotalOutbound)
	}
	if report.Summary.NetChange != 18 {
		t.Errorf("expected net 18, got %d", report.Summary.NetChange)
	}

	for i := range report.Items {
		if report.Items[i].LocationName != "Main Warehouse" {
			t.Errorf("item %d: expected location name enrichment, got %q", i, report.Items[i].LocationName)
		}
	}
}

func TestMovementReport_UnknownLocationKeepsEmptyName(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 5, entity.ReasonPurchaseOrder, base.Add(time.Hour), 1),
	}

	report, err := env.svc.MovementReport(context.Background(), MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("MovementReport: %v", err)
	}

	// A failed location lookup only costs the enrichment.
	if len(report.Items) != 1 || report.Items[0].LocationName != "" {
		t.Errorf("expected item with empty location name, got %+v", report.Items)
	}
}

func TestMovementReport_SeedsOpeningBalance(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	env.repo.entries = []entity.LedgerEntry{
		// Before the window: establishes an opening balance of 50.
		entryAt(variantID, locationID, 50, entity.ReasonPurchaseOrder, base.AddDate(0, 0, -5), 1),
		entryAt(variantID, locationID, -10, entity.ReasonSale, base.Add(time.Hour), 2),
	}

	report, err := env.svc.MovementReport(context.Background(), MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("MovementReport: %v", err)
	}

	if len(report.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(report.Items))
	}
	if report.Items[0].RunningBalance != 40 {
		t.Errorf("expected running balance 40, got %d", report.Items[0].RunningBalance)
	}
}

func TestMovementReport_TopVariantsTieBreak(t *testing.T) {
	env := newTestEnv()
	locationID := id.New()
	variantA := id.MustParse("00000000-0000-7000-8000-00000000000a")
	variantB := id.MustParse("00000000-0000-7000-8000-00000000000b")
	variantC := id.MustParse("00000000-0000-7000-8000-00000000000c")
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var entries []entity.LedgerEntry
	seq := int64(0)
	add := func(v id.ID, n int) {
		for i := 0; i < n; i++ {
			seq++
			entries = append(entries, entryAt(v, locationID, 1, entity.ReasonPurchaseOrder, base.Add(time.Duration(seq)*time.Minute), seq))
		}
	}
	add(variantC, 3)
	add(variantA, 2)
	add(variantB, 2)
	env.repo.entries = entries
	env.catalog.variants[variantC] = VariantInfo{ID: variantC, SKU: "SKU-C"}

	report, err := env.svc.MovementReport(context.Background(), MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
		TopN: 2,
	})
	if err != nil {
		t.Fatalf("MovementReport: %v", err)
	}

	top := report.Summary.TopVariants
	if len(top) != 2 {
		t.Fatalf("expected 2 top variants, got %d", len(top))
	}
	if top[0].VariantID != variantC || top[0].Count != 3 {
		t.Errorf("expected variantC count 3 first, got %v count %d", top[0].VariantID, top[0].Count)
	}
	// Tie between A and B broken by ascending variant ID.
	if top[1].VariantID != variantA {
		t.Errorf("expected variantA on tie, got %v", top[1].VariantID)
	}
	if top[0].SKU != "SKU-C" {
		t.Errorf("expected SKU enrichment, got %q", top[0].SKU)
	}
}

func TestMovementReport_EmptyWindow(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	report, err := env.svc.MovementReport(context.Background(), MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("MovementReport: %v", err)
	}

	if len(report.Items) != 0 {
		t.Errorf("expected no items, got %d", len(report.Items))
	}
	if report.Summary.TotalInbound != 0 || report.Summary.TotalOutbound != 0 || report.Summary.NetChange != 0 {
		t.Errorf("expected zero summary, got %+v", report.Summary)
	}
	if len(report.Summary.TopVariants) != 0 {
		t.Errorf("expected no top variants, got %d", len(report.Summary.TopVariants))
	}
}

func TestMovementReport_InvalidWindow(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, err := env.svc.MovementReport(context.Background(), MovementFilter{})
	if !apperror.IsCode(err, apperror.CodeInvalidInput) {
		t.Errorf("expected invalid input for missing window, got %v", err)
	}

	_, err = env.svc.MovementReport(context.Background(), MovementFilter{
		From: base.AddDate(0, 0, 1),
		To:   base,
	})
	if !apperror.IsCode(err, apperror.CodeInvalidInput) {
		t.Errorf("expected invalid input for inverted window, got %v", err)
	}
}

func TestMovementReport_ReadIsIdempotent(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 20, entity.ReasonPurchaseOrder, base.Add(time.Hour), 1),
		entryAt(variantID, locationID, -5, entity.ReasonSale, base.Add(2*time.Hour), 2),
	}
	filter := MovementFilter{From: base, To: base.AddDate(0, 0, 1)}

	first, err := env.svc.MovementReport(context.Background(), filter)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := env.svc.MovementReport(context.Background(), filter)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.Summary.NetChange != second.Summary.NetChange || len(first.Items) != len(second.Items) {
		t.Error("expected identical reports for identical windows")
	}
	for i := range first.Items {
		if first.Items[i].RunningBalance != second.Items[i].RunningBalance {
			t.Errorf("item %d diverged between reads", i)
		}
	}
}

func TestMovementReport_DeadlineYieldsReportTimeout(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 20, entity.ReasonPurchaseOrder, base.Add(time.Hour), 1),
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := env.svc.MovementReport(ctx, MovementFilter{
		From: base,
		To:   base.AddDate(0, 0, 1),
	})
	if !apperror.IsReportTimeout(err) {
		t.Fatalf("expected report timeout, got %v", err)
	}
}

// --- Export ---

func TestExportLedger_ReplayOrder(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Same timestamp: seq must break the tie.
	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 1, entity.ReasonPurchaseOrder, base.Add(time.Hour), 2),
		entryAt(variantID, locationID, 2, entity.ReasonPurchaseOrder, base.Add(time.Hour), 1),
		entryAt(variantID, locationID, 3, entity.ReasonPurchaseOrder, base.Add(2*time.Hour), 3),
	}

	var seqs []int64
	err := env.svc.ExportLedger(context.Background(), base, base.AddDate(0, 0, 1), func(e entity.LedgerEntry) error {
		seqs = append(seqs, e.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("ExportLedger: %v", err)
	}

	want := []int64{1, 2, 3}
	if len(seqs) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(seqs))
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Errorf("position %d: expected seq %d, got %d", i, want[i], seqs[i])
		}
	}
}

// --- Dashboard ---

func TestDashboard(t *testing.T) {
	env := newTestEnv()
	variantID, locationID := id.New(), id.New()
	now := time.Now().UTC()

	env.repo.records = []entity.StockRecord{
		{VariantID: variantID, LocationID: locationID, OnHand: 10},
	}
	env.repo.entries = []entity.LedgerEntry{
		entryAt(variantID, locationID, 10, entity.ReasonPurchaseOrder, now.AddDate(0, 0, -2), 1),
		entryAt(variantID, locationID, -4, entity.ReasonSale, now.AddDate(0, 0, -1), 2),
	}
	env.catalog.variants[variantID] = VariantInfo{
		ID:    variantID,
		SKU:   "SKU-1",
		Price: types.MustMoney("10"),
	}
	// 60 sold over the default 30-day window: velocity 2/day, stockout in 5 days.
	env.sales.sold[variantID] = 60

	summary, err := env.svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if summary.StockoutsProjected != 1 {
		t.Errorf("expected 1 projected stockout, got %d", summary.StockoutsProjected)
	}
	if !summary.InventoryValue.Equal(types.MustMoney("60")) {
		t.Errorf("expected inventory value 60, got %s", summary.InventoryValue)
	}
	if summary.WeekInbound != 10 || summary.WeekOutbound != 4 || summary.WeekNet != 6 {
		t.Errorf("unexpected week movement: %+v", summary)
	}
}
