package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"

	"stockroom/internal/core/apperror"
	"stockroom/internal/core/entity"
	"stockroom/internal/core/id"
	"stockroom/internal/core/types"
	"stockroom/internal/domain/reports"
	"stockroom/internal/infrastructure/cache"
	"stockroom/internal/infrastructure/http/v1/dto"
	"stockroom/pkg/logger"
)

// ReportsHandler handles report requests. Reports are computed on demand
// inside a per-request deadline; results may be served from the cache.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
	cache   *cache.ReportCache
	timeout time.Duration
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service, reportCache *cache.ReportCache, timeout time.Duration) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
		cache:       reportCache,
		timeout:     timeout,
	}
}

// reportCtx caps report computation at the configured timeout.
func (h *ReportsHandler) reportCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// Movement handles GET /reports/movements
func (h *ReportsHandler) Movement(c *gin.Context) {
	filter, ok := h.bindMovementFilter(c)
	if !ok {
		return
	}

	ctx, cancel := h.reportCtx(c)
	defer cancel()

	report, err := h.service.MovementReport(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromMovementReport(report))
}

// Forecast handles GET /reports/forecast
func (h *ReportsHandler) Forecast(c *gin.Context) {
	windowDays, ok := h.ParseIntQuery(c, "windowDays", 0)
	if !ok {
		return
	}
	horizonDays, ok := h.ParseIntQuery(c, "horizonDays", 14)
	if !ok {
		return
	}
	params := reports.ForecastParams{
		WindowDays:  windowDays,
		HorizonDays: horizonDays,
	}

	ctx, cancel := h.reportCtx(c)
	defer cancel()

	cacheKey := fmt.Sprintf("forecast:%d:%d", params.WindowDays, params.HorizonDays)
	var cached []reports.ForecastItem
	if h.cache.Get(ctx, cacheKey, &cached) {
		h.OK(c, dto.ListResponse{Items: cached, TotalCount: len(cached)})
		return
	}

	items, err := h.service.Forecast(ctx, params)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Set(ctx, cacheKey, items)
	h.OK(c, dto.ListResponse{Items: items, TotalCount: len(items)})
}

// Valuation handles GET /reports/valuation
func (h *ReportsHandler) Valuation(c *gin.Context) {
	ctx, cancel := h.reportCtx(c)
	defer cancel()

	var cached reports.ValuationReport
	if h.cache.Get(ctx, "valuation", &cached) {
		h.OK(c, cached)
		return
	}

	report, err := h.service.Valuation(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Set(ctx, "valuation", report)
	h.OK(c, report)
}

// SlowMoving handles GET /reports/slow-moving
func (h *ReportsHandler) SlowMoving(c *gin.Context) {
	minDays, ok := h.ParseIntQuery(c, "minDaysInStock", 0)
	if !ok {
		return
	}
	params := reports.SlowMovingParams{
		MinDaysInStock: minDays,
		MinValue:       types.Zero(),
	}
	if mvStr := c.Query("minValue"); mvStr != "" {
		mv, err := types.NewMoneyFromString(mvStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid minValue format"))
			return
		}
		params.MinValue = mv
	}

	ctx, cancel := h.reportCtx(c)
	defer cancel()

	report, err := h.service.SlowMoving(ctx, params)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}

// Dashboard handles GET /reports/dashboard
func (h *ReportsHandler) Dashboard(c *gin.Context) {
	ctx, cancel := h.reportCtx(c)
	defer cancel()

	var cached reports.DashboardSummary
	if h.cache.Get(ctx, "dashboard", &cached) {
		h.OK(c, cached)
		return
	}

	summary, err := h.service.Dashboard(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.cache.Set(ctx, "dashboard", summary)
	h.OK(c, summary)
}

// ExportLedger handles GET /reports/ledger-export
// Streams the window as zstd-compressed NDJSON, one ledger entry per line.
func (h *ReportsHandler) ExportLedger(c *gin.Context) {
	from, to, ok := h.bindWindow(c)
	if !ok {
		return
	}

	enc, err := zstd.NewWriter(c.Writer)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	c.Header("Content-Type", "application/zstd")
	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename="ledger_%s_%s.ndjson.zst"`,
			from.Format("20060102"), to.Format("20060102")))
	c.Status(http.StatusOK)

	jsonEnc := json.NewEncoder(enc)
	err = h.service.ExportLedger(c.Request.Context(), from, to, func(entry entity.LedgerEntry) error {
		return jsonEnc.Encode(dto.FromLedgerEntry(entry))
	})
	if closeErr := enc.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		// Headers are already sent; the truncated stream is the signal.
		logger.Error(c.Request.Context(), "ledger export aborted", "error", err)
	}
}

func (h *ReportsHandler) bindMovementFilter(c *gin.Context) (reports.MovementFilter, bool) {
	from, to, ok := h.bindWindow(c)
	if !ok {
		return reports.MovementFilter{}, false
	}

	topN, ok := h.ParseIntQuery(c, "topN", 0)
	if !ok {
		return reports.MovementFilter{}, false
	}
	filter := reports.MovementFilter{
		From: from,
		To:   to,
		TopN: topN,
	}

	if vStr := c.Query("variantId"); vStr != "" {
		parsed, err := id.Parse(vStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid variantId format"))
			return reports.MovementFilter{}, false
		}
		filter.VariantID = &parsed
	}
	if lStr := c.Query("locationId"); lStr != "" {
		parsed, err := id.Parse(lStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid locationId format"))
			return reports.MovementFilter{}, false
		}
		filter.LocationID = &parsed
	}

	return filter, true
}

func (h *ReportsHandler) bindWindow(c *gin.Context) (time.Time, time.Time, bool) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		h.Error(c, apperror.NewValidation("from and to are required"))
		return time.Time{}, time.Time{}, false
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid from format, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid to format, expected RFC3339"))
		return time.Time{}, time.Time{}, false
	}

	return from, to, true
}
