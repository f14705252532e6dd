package dto

import (
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/domain/stock"
)

// --- Adjustments ---

// AdjustmentRequest is one signed quantity change.
type AdjustmentRequest struct {
	VariantID     string `json:"variantId" binding:"required"`
	LocationID    string `json:"locationId" binding:"required"`
	QtyDelta      int64  `json:"qtyDelta" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	ReferenceType string `json:"referenceType,omitempty"`
	ReferenceID   string `json:"referenceId,omitempty"`
}

// BulkAdjustmentRequest applies many adjustments atomically.
type BulkAdjustmentRequest struct {
	Adjustments []AdjustmentRequest `json:"adjustments" binding:"required,min=1"`
}

// AdjustmentResponse reports one applied adjustment.
type AdjustmentResponse struct {
	VariantID     string `json:"variantId"`
	LocationID    string `json:"locationId"`
	NewOnHand     int64  `json:"newOnHand"`
	AppliedDelta  int64  `json:"appliedDelta"`
	TransactionID string `json:"transactionId"`
}

// FromAdjustmentResult converts a domain result.
func FromAdjustmentResult(r stock.AdjustmentResult) AdjustmentResponse {
	return AdjustmentResponse{
		VariantID:     r.VariantID.String(),
		LocationID:    r.LocationID.String(),
		NewOnHand:     r.NewOnHand,
		AppliedDelta:  r.AppliedDelta,
		TransactionID: r.TransactionID.String(),
	}
}

// --- Reservations ---

// ReservationRequest allocates or releases reserved quantity.
type ReservationRequest struct {
	VariantID  string `json:"variantId" binding:"required"`
	LocationID string `json:"locationId" binding:"required"`
	Qty        int64  `json:"qty" binding:"required,min=1"`
}

// --- Levels ---

// SetLevelsRequest updates merchandising configuration.
type SetLevelsRequest struct {
	LowStockThreshold *int64 `json:"lowStockThreshold"`
	SafetyStock       *int64 `json:"safetyStock"`
}

// --- Records ---

// StockRecordResponse is one stock record.
type StockRecordResponse struct {
	VariantID         string    `json:"variantId"`
	LocationID        string    `json:"locationId"`
	OnHand            int64     `json:"onHand"`
	Reserved          int64     `json:"reserved"`
	Available         int64     `json:"available"`
	LowStockThreshold *int64    `json:"lowStockThreshold,omitempty"`
	SafetyStock       *int64    `json:"safetyStock,omitempty"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// FromStockRecord converts a domain record.
func FromStockRecord(r entity.StockRecord) StockRecordResponse {
	return StockRecordResponse{
		VariantID:         r.VariantID.String(),
		LocationID:        r.LocationID.String(),
		OnHand:            r.OnHand,
		Reserved:          r.Reserved,
		Available:         r.Available(),
		LowStockThreshold: r.LowStockThreshold,
		SafetyStock:       r.SafetyStock,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
}
