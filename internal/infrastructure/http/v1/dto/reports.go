package dto

import (
	"time"

	"stockroom/internal/core/entity"
	"stockroom/internal/domain/reports"
)

// --- Movement report ---

// LedgerEntryResponse is one ledger entry.
type LedgerEntryResponse struct {
	TransactionID string    `json:"transactionId"`
	Seq           int64     `json:"seq"`
	VariantID     string    `json:"variantId"`
	LocationID    string    `json:"locationId"`
	QtyDelta      int64     `json:"qtyDelta"`
	Reason        string    `json:"reason"`
	ReferenceType string    `json:"referenceType,omitempty"`
	ReferenceID   string    `json:"referenceId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// FromLedgerEntry converts a domain entry.
func FromLedgerEntry(e entity.LedgerEntry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		TransactionID: e.ID.String(),
		Seq:           e.Seq,
		VariantID:     e.VariantID.String(),
		LocationID:    e.LocationID.String(),
		QtyDelta:      e.QtyDelta,
		Reason:        string(e.Reason),
		CreatedAt:     e.CreatedAt,
	}
	if e.ReferenceType != nil {
		resp.ReferenceType = string(*e.ReferenceType)
	}
	if e.ReferenceID != nil {
		resp.ReferenceID = *e.ReferenceID
	}
	return resp
}

// MovementItemResponse is one entry with its running balance.
type MovementItemResponse struct {
	Entry          LedgerEntryResponse `json:"entry"`
	LocationName   string              `json:"locationName,omitempty"`
	RunningBalance int64               `json:"runningBalance"`
}

// MovementReportResponse is the full movement history result.
type MovementReportResponse struct {
	From    time.Time               `json:"from"`
	To      time.Time               `json:"to"`
	Items   []MovementItemResponse  `json:"items"`
	Summary reports.MovementSummary `json:"summary"`
}

// FromMovementReport converts a domain report.
func FromMovementReport(r *reports.MovementReport) MovementReportResponse {
	items := make([]MovementItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = MovementItemResponse{
			Entry:          FromLedgerEntry(item.Entry),
			LocationName:   item.LocationName,
			RunningBalance: item.RunningBalance,
		}
	}
	return MovementReportResponse{
		From:    r.From,
		To:      r.To,
		Items:   items,
		Summary: r.Summary,
	}
}
