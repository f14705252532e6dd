// Package entity provides core domain entities.
package entity

import (
	"time"

	"stockroom/internal/core/id"
)

// Reason classifies the cause of a quantity change.
// The set is closed: the adjustment engine rejects anything else.
type Reason string

const (
	ReasonPurchaseOrder Reason = "purchase-order"
	ReasonReturn        Reason = "return"
	ReasonAdjustment    Reason = "adjustment"
	// ReasonCorrection is an administrative override. It is the only reason
	// allowed to bypass the insufficient-stock guard (clamped at zero).
	ReasonCorrection  Reason = "correction"
	ReasonSale        Reason = "sale"
	ReasonDamage      Reason = "damage"
	ReasonShrinkage   Reason = "shrinkage"
	ReasonTransferIn  Reason = "transfer-in"
	ReasonTransferOut Reason = "transfer-out"
)

// Valid reports whether r is one of the recognized reason codes.
func (r Reason) Valid() bool {
	switch r {
	case ReasonPurchaseOrder, ReasonReturn, ReasonAdjustment, ReasonCorrection,
		ReasonSale, ReasonDamage, ReasonShrinkage, ReasonTransferIn, ReasonTransferOut:
		return true
	}
	return false
}

// IsCorrection reports whether r may rebase on-hand past the
// insufficient-stock guard.
func (r Reason) IsCorrection() bool {
	return r == ReasonCorrection
}

// ReferenceType identifies the kind of external event a ledger entry points to.
// A reference is a lookup pointer, never an ownership relationship.
type ReferenceType string

const (
	ReferenceOrder         ReferenceType = "order"
	ReferenceRMA           ReferenceType = "rma"
	ReferencePurchaseOrder ReferenceType = "purchase-order"
	ReferenceCycleCount    ReferenceType = "cycle-count"
)

// Valid reports whether t is a recognized reference type.
func (t ReferenceType) Valid() bool {
	switch t {
	case ReferenceOrder, ReferenceRMA, ReferencePurchaseOrder, ReferenceCycleCount:
		return true
	}
	return false
}

// StockRecord holds the current quantity state for one (variant, location) pair.
// Mutated exclusively through the adjustment engine. Never physically deleted:
// a zero-quantity record is a valid steady state that anchors future transactions.
type StockRecord struct {
	VariantID  id.ID `db:"variant_id" json:"variantId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	// OnHand is physical units present. Invariant: never negative.
	OnHand int64 `db:"on_hand" json:"onHand"`

	// Reserved is units allocated to unfulfilled commitments. Never negative.
	// Reserved may transiently exceed OnHand during a correction window;
	// that condition is logged, not fatal.
	Reserved int64 `db:"reserved" json:"reserved"`

	// Merchandising configuration (optional).
	LowStockThreshold *int64 `db:"low_stock_threshold" json:"lowStockThreshold,omitempty"`
	SafetyStock       *int64 `db:"safety_stock" json:"safetyStock,omitempty"`

	// Version counts successful mutations. Used to detect concurrent
	// modification on the optimistic path.
	Version int64 `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns the sellable quantity: on-hand minus reserved.
// Derived, never stored. May be negative during an oversell window;
// callers must treat a negative value as a display/reporting signal only.
func (r *StockRecord) Available() int64 {
	return r.OnHand - r.Reserved
}

// SafetyStockOrZero returns the configured safety stock, or zero.
func (r *StockRecord) SafetyStockOrZero() int64 {
	if r.SafetyStock == nil {
		return 0
	}
	return *r.SafetyStock
}

// LedgerEntry is one immutable quantity change in the transaction ledger.
// Entries are append-only: never updated, never deleted.
type LedgerEntry struct {
	// ID is a UUIDv7 transaction identifier (time-ordered).
	ID id.ID `db:"id" json:"transactionId"`

	// Seq is a monotonically increasing sequence assigned by storage.
	// Replay order is (created_at, seq); seq breaks ties when the clock
	// resolution cannot.
	Seq int64 `db:"seq" json:"seq"`

	VariantID  id.ID `db:"variant_id" json:"variantId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	// QtyDelta is the signed quantity change. Positive = inbound
	// (receipt, return, correction-up), negative = outbound
	// (sale, loss, correction-down). Never zero.
	QtyDelta int64 `db:"qty_delta" json:"qtyDelta"`

	Reason Reason `db:"reason" json:"reason"`

	// Optional pointer to the external event that caused the delta.
	ReferenceType *ReferenceType `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *string        `db:"reference_id" json:"referenceId,omitempty"`

	// CreatedAt defines replay order together with Seq.
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewLedgerEntry creates a ledger entry with a generated transaction ID.
// Seq is assigned by storage on append.
func NewLedgerEntry(variantID, locationID id.ID, qtyDelta int64, reason Reason, refType *ReferenceType, refID *string) LedgerEntry {
	return LedgerEntry{
		ID:            id.New(),
		VariantID:     variantID,
		LocationID:    locationID,
		QtyDelta:      qtyDelta,
		Reason:        reason,
		ReferenceType: refType,
		ReferenceID:   refID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Inbound reports whether the entry increases on-hand.
func (e *LedgerEntry) Inbound() bool {
	return e.QtyDelta > 0
}
