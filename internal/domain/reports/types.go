// Package reports provides the read-only analytics over the stock ledger:
// movement history with running balances, stockout forecasting, inventory
// valuation and slow-moving classification.
package reports

import (
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
)

// --- Movement report ---

// MovementFilter selects a ledger window, optionally narrowed by key.
type MovementFilter struct {
	From time.Time
	To   time.Time

	VariantID  *id.ID
	LocationID *id.ID

	// TopN caps the most-frequent-variants list. Defaults to 5.
	TopN int
}

// MovementItem is one ledger entry with the running on-hand balance for its
// (variant, location) key after the entry is applied.
type MovementItem struct {
	Entry          entity.LedgerEntry `json:"entry"`
	LocationName   string             `json:"locationName,omitempty"`
	RunningBalance int64              `json:"runningBalance"`
}

// VariantFrequency counts ledger entries for a variant within the window.
type VariantFrequency struct {
	VariantID id.ID  `json:"variantId"`
	SKU       string `json:"sku,omitempty"`
	Count     int    `json:"count"`
}

// MovementSummary aggregates a movement window.
type MovementSummary struct {
	TotalInbound  int64              `json:"totalInbound"`
	TotalOutbound int64              `json:"totalOutbound"` // absolute value
	NetChange     int64              `json:"netChange"`
	TopVariants   []VariantFrequency `json:"topVariants"`
}

// MovementReport is the full movement history result.
type MovementReport struct {
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Items   []MovementItem  `json:"items"`
	Summary MovementSummary `json:"summary"`
}

// --- Forecast ---

// UrgencyTier classifies how soon a stockout is projected.
type UrgencyTier string

const (
	UrgencyImmediate UrgencyTier = "immediate" // ≤ 3 days
	UrgencyUrgent    UrgencyTier = "urgent"    // ≤ 7 days
	UrgencySoon      UrgencyTier = "soon"      // ≤ 14 days
	UrgencyMonitor   UrgencyTier = "monitor"
)

// rank orders tiers, most urgent first.
func (u UrgencyTier) rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencySoon:
		return 2
	default:
		return 3
	}
}

// urgencyFor classifies by the unfloored projection to avoid off-by-one
// misclassification at tier boundaries.
func urgencyFor(daysUntilStockout float64) UrgencyTier {
	switch {
	case daysUntilStockout <= 3:
		return UrgencyImmediate
	case daysUntilStockout <= 7:
		return UrgencyUrgent
	case daysUntilStockout <= 14:
		return UrgencySoon
	default:
		return UrgencyMonitor
	}
}

// ForecastParams configures the stockout forecast.
type ForecastParams struct {
	// WindowDays is the sales-velocity lookback. Defaults to 30.
	WindowDays int
	// HorizonDays drops items whose projected stockout is further out.
	HorizonDays int
}

// ForecastItem is one projected stockout, recomputed on demand.
type ForecastItem struct {
	VariantID    id.ID  `json:"variantId"`
	LocationID   id.ID  `json:"locationId"`
	LocationName string `json:"locationName,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Title        string `json:"title,omitempty"`

	CurrentStock int64 `json:"currentStock"`
	Available    int64 `json:"available"`

	AverageDailySales float64 `json:"averageDailySales"`

	// DaysUntilStockout is floored to whole days for display; tier
	// classification uses the unfloored projection.
	DaysUntilStockout int         `json:"daysUntilStockout"`
	Urgency           UrgencyTier `json:"urgency"`

	RecommendedReorderQty int64 `json:"recommendedReorderQty"`

	// projected keeps the unfloored value for sorting.
	projected float64
}

// --- Valuation ---

// ValuationItem prices one stock record, recomputed on demand.
type ValuationItem struct {
	VariantID    id.ID  `json:"variantId"`
	LocationID   id.ID  `json:"locationId"`
	LocationName string `json:"locationName,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Title        string `json:"title,omitempty"`

	OnHand int64 `json:"onHand"`

	UnitCost  types.Money `json:"unitCost"`
	UnitPrice types.Money `json:"unitPrice"`

	TotalCost        types.Money `json:"totalCost"`
	PotentialRevenue types.Money `json:"potentialRevenue"`
	PotentialProfit  types.Money `json:"potentialProfit"`

	// Margin is profit/revenue; zero when potential revenue is zero.
	Margin types.Money `json:"margin"`
}

// ValuationSummary totals the valuation report.
type ValuationSummary struct {
	TotalItems       int         `json:"totalItems"`
	TotalUnits       int64       `json:"totalUnits"`
	TotalCost        types.Money `json:"totalCost"`
	PotentialRevenue types.Money `json:"potentialRevenue"`
	PotentialProfit  types.Money `json:"potentialProfit"`
	OverallMargin    types.Money `json:"overallMargin"`
}

// ValuationReport is the full inventory valuation.
type ValuationReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Items       []ValuationItem  `json:"items"`
	Summary     ValuationSummary `json:"summary"`
}

// --- Slow-moving classification ---

// Recommendation is the merchandising action for slow stock, ordered from
// most to least aggressive.
type Recommendation string

const (
	RecommendClearance Recommendation = "clearance"
	RecommendDiscount  Recommendation = "discount"
	RecommendBundle    Recommendation = "bundle"
	RecommendPromote   Recommendation = "promote"
)

// SlowMovingParams configures the slow-moving scan.
type SlowMovingParams struct {
	// MinDaysInStock excludes young variants. Defaults to 30.
	MinDaysInStock int
	// MinValue excludes low-value stock (inventory value at cost).
	MinValue types.Money
}

// SlowMovingItem is one slow-moving variant, aggregated across locations.
type SlowMovingItem struct {
	VariantID id.ID  `json:"variantId"`
	SKU       string `json:"sku,omitempty"`
	Title     string `json:"title,omitempty"`

	OnHand       int64   `json:"onHand"`
	DaysInStock  int     `json:"daysInStock"`
	TotalSold    int64   `json:"totalSold"`
	TurnoverRate float64 `json:"turnoverRate"` // units sold per day in stock

	InventoryValue types.Money    `json:"inventoryValue"`
	LastSaleAt     *time.Time     `json:"lastSaleAt,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
}

// SlowMovingReport is the full slow-moving result.
type SlowMovingReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Items       []SlowMovingItem `json:"items"`
	TotalValue  types.Money      `json:"totalValue"`
}

// --- Dashboard ---

// DashboardSummary is the composite report backing the admin dashboard.
type DashboardSummary struct {
	GeneratedAt time.Time `json:"generatedAt"`

	StockoutsProjected int `json:"stockoutsProjected"`
	ImmediateStockouts int `json:"immediateStockouts"`

	InventoryValue   types.Money `json:"inventoryValue"`
	PotentialRevenue types.Money `json:"potentialRevenue"`

	WeekInbound  int64 `json:"weekInbound"`
	WeekOutbound int64 `json:"weekOutbound"`
	WeekNet      int64 `json:"weekNet"`
}
