package handlers

import (
	"github.com/gin-gonic/gin"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/domain/stock"
	"stockroom/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock record and adjustment requests.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// toAdjustmentRequest converts and validates the transport shape. Domain
// validation still runs in the service; this only parses IDs.
func toAdjustmentRequest(req dto.AdjustmentRequest) (stock.AdjustmentRequest, error) {
	variantID, err := id.Parse(req.VariantID)
	if err != nil {
		return stock.AdjustmentRequest{}, apperror.NewValidation("invalid variantId format")
	}
	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		return stock.AdjustmentRequest{}, apperror.NewValidation("invalid locationId format")
	}

	out := stock.AdjustmentRequest{
		VariantID:  variantID,
		LocationID: locationID,
		QtyDelta:   req.QtyDelta,
		Reason:     entity.Reason(req.Reason),
	}
	if req.ReferenceType != "" {
		refType := entity.ReferenceType(req.ReferenceType)
		out.ReferenceType = &refType
	}
	if req.ReferenceID != "" {
		refID := req.ReferenceID
		out.ReferenceID = &refID
	}
	return out, nil
}

// Adjust handles POST /stock/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReq, err := toAdjustmentRequest(req)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.Adjust(c.Request.Context(), domainReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustmentResult(*result))
}

// AdjustBulk handles POST /stock/adjustments/bulk
func (h *StockHandler) AdjustBulk(c *gin.Context) {
	var req dto.BulkAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	domainReqs := make([]stock.AdjustmentRequest, len(req.Adjustments))
	for i, a := range req.Adjustments {
		domainReq, err := toAdjustmentRequest(a)
		if err != nil {
			h.Error(c, err)
			return
		}
		domainReqs[i] = domainReq
	}

	results, err := h.service.AdjustBulk(c.Request.Context(), domainReqs)
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]dto.AdjustmentResponse, len(results))
	for i, r := range results {
		responses[i] = dto.FromAdjustmentResult(r)
	}

	h.OK(c, dto.ListResponse{Items: responses, TotalCount: len(responses)})
}

// Reserve handles POST /stock/reservations
func (h *StockHandler) Reserve(c *gin.Context) {
	variantID, locationID, qty, ok := h.bindReservation(c)
	if !ok {
		return
	}

	if err := h.service.Reserve(c.Request.Context(), variantID, locationID, qty); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "reserved")
}

// Release handles POST /stock/reservations/release
func (h *StockHandler) Release(c *gin.Context) {
	variantID, locationID, qty, ok := h.bindReservation(c)
	if !ok {
		return
	}

	if err := h.service.Release(c.Request.Context(), variantID, locationID, qty); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "released")
}

func (h *StockHandler) bindReservation(c *gin.Context) (id.ID, id.ID, int64, bool) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return id.Nil(), id.Nil(), 0, false
	}

	variantID, err := id.Parse(req.VariantID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid variantId format"))
		return id.Nil(), id.Nil(), 0, false
	}
	locationID, err := id.Parse(req.LocationID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid locationId format"))
		return id.Nil(), id.Nil(), 0, false
	}

	return variantID, locationID, req.Qty, true
}

// SetLevels handles PUT /stock/records/:variantId/:locationId/levels
func (h *StockHandler) SetLevels(c *gin.Context) {
	variantID, locationID, ok := h.bindKeyParams(c)
	if !ok {
		return
	}

	var req dto.SetLevelsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.service.SetLevels(c.Request.Context(), variantID, locationID, req.LowStockThreshold, req.SafetyStock)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "levels updated")
}

// GetRecord handles GET /stock/records/:variantId/:locationId
func (h *StockHandler) GetRecord(c *gin.Context) {
	variantID, locationID, ok := h.bindKeyParams(c)
	if !ok {
		return
	}

	rec, err := h.service.Get(c.Request.Context(), variantID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockRecord(*rec))
}

// ListRecords handles GET /stock/records
func (h *StockHandler) ListRecords(c *gin.Context) {
	limit, ok := h.ParseIntQuery(c, "limit", 100)
	if !ok {
		return
	}
	offset, ok := h.ParseIntQuery(c, "offset", 0)
	if !ok {
		return
	}
	filter := stock.RecordFilter{
		ExcludeZero:    c.Query("excludeZero") == "true",
		BelowThreshold: c.Query("belowThreshold") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	if vStr := c.Query("variantId"); vStr != "" {
		parsed, err := id.Parse(vStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variantId format"))
			return
		}
		filter.VariantID = &parsed
	}
	if lStr := c.Query("locationId"); lStr != "" {
		parsed, err := id.Parse(lStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return
		}
		filter.LocationID = &parsed
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	responses := make([]dto.StockRecordResponse, len(records))
	for i, r := range records {
		responses[i] = dto.FromStockRecord(r)
	}

	h.OK(c, dto.ListResponse{
		Items:      responses,
		TotalCount: len(responses),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Reconcile handles POST /stock/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	var filter stock.ReconcileFilter

	if vStr := c.Query("variantId"); vStr != "" {
		parsed, err := id.Parse(vStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variantId format"))
			return
		}
		filter.VariantID = &parsed
	}
	if lStr := c.Query("locationId"); lStr != "" {
		parsed, err := id.Parse(lStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return
		}
		filter.LocationID = &parsed
	}

	report, err := h.service.Reconcile(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

func (h *StockHandler) bindKeyParams(c *gin.Context) (id.ID, id.ID, bool) {
	variantID, err := id.Parse(c.Param("variantId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid variantId format"))
		return id.Nil(), id.Nil(), false
	}
	locationID, err := id.Parse(c.Param("locationId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid locationId format"))
		return id.Nil(), id.Nil(), false
	}
	return variantID, locationID, true
}
