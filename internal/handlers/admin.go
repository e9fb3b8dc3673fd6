package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"galamsey-report-backend/internal/middleware"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/submission"
	"galamsey-report-backend/internal/supabase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportReader is the moderation side of the report store.
type ReportReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdminHandler struct {
	store         ReportReader
	enricher      submission.Enricher
	enrichTimeout time.Duration
	explorer      ExplorerLinker
	logger        zerolog.Logger
}

// NewAdminHandler accepts a nil enricher; reprocessing then answers 503.
func NewAdminHandler(store ReportReader, enricher submission.Enricher, enrichTimeout time.Duration, explorer ExplorerLinker, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:         store,
		enricher:      enricher,
		enrichTimeout: enrichTimeout,
		explorer:      explorer,
		logger:        logger,
	}
}

// ListReports godoc
// @Summary     List reports
// @Description Newest first. Filter by AI category or by reports the classifier has not processed yet.
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       category    query string false "AI category"
// @Param       unprocessed query bool   false "Only reports without AI fields"
// @Param       limit       query int    false "Maximum rows"
// @Success     200 {object} models.ReportListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /admin/reports [get]
func (h *AdminHandler) ListReports(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "database not available"})
		return
	}

	filter := models.ReportFilter{Category: c.Query("category")}
	if filter.Category != "" && !models.IsCategory(filter.Category) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown category", Message: filter.Category})
		return
	}
	if raw := c.Query("unprocessed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid unprocessed flag"})
			return
		}
		filter.Unprocessed = v
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}
		filter.Limit = n
	}

	reports, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list reports", Message: err.Error()})
		return
	}

	out := make([]models.ReportResponse, len(reports))
	for i := range reports {
		out[i] = h.toResponse(&reports[i])
	}
	c.JSON(http.StatusOK, models.ReportListResponse{Reports: out, Count: len(out)})
}

// GetReport godoc
// @Summary     Get a report
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Report ID"
// @Success     200 {object} models.ReportResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/reports/{id} [get]
func (h *AdminHandler) GetReport(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	report, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get report")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(report))
}

// DeleteReport godoc
// @Summary     Delete a report
// @Tags        admin
// @Security    Bearer
// @Param       id path string true "Report ID"
// @Success     204
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /admin/reports/{id} [delete]
func (h *AdminHandler) DeleteReport(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.respondStoreError(c, err, "failed to delete report")
		return
	}
	h.logger.Info().Str("report_id", id.String()).Str("admin_id", c.GetString(middleware.UserIDKey)).Msg("Report deleted")
	c.Status(http.StatusNoContent)
}

// ReprocessReport godoc
// @Summary     Classify a report again
// @Description Runs AI classification for a report and stores the summary and category.
// @Tags        admin
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Report ID"
// @Success     200 {object} models.ReportResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Failure     503 {object} models.ErrorResponse
// @Router      /admin/reports/{id}/reprocess [post]
func (h *AdminHandler) ReprocessReport(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "AI classification not configured"})
		return
	}
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	report, err := h.store.Get(ctx, id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get report")
		return
	}

	enrichCtx, cancel := context.WithTimeout(ctx, h.enrichTimeout)
	defer cancel()
	if err := h.enricher.Enrich(enrichCtx, report.ID, report.Description); err != nil {
		h.logger.Warn().Err(err).Str("report_id", id.String()).Msg("Reprocessing failed")
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "classification failed"})
		return
	}

	report, err = h.store.Get(ctx, id)
	if err != nil {
		h.respondStoreError(c, err, "failed to get report")
		return
	}
	c.JSON(http.StatusOK, h.toResponse(report))
}

func (h *AdminHandler) reportID(c *gin.Context) (uuid.UUID, bool) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "database not available"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *AdminHandler) respondStoreError(c *gin.Context, err error, msg string) {
	if errors.Is(err, supabase.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "report not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg, Message: err.Error()})
}

func (h *AdminHandler) toResponse(r *models.Report) models.ReportResponse {
	resp := models.ReportResponse{
		ID:            r.ID.String(),
		UserID:        r.UserID.String(),
		Date:          r.Date,
		Location:      r.Location,
		Description:   r.Description,
		GPSAddress:    r.GPSAddress.String,
		Photos:        r.Photos,
		WalletAddress: r.WalletAddress.String,
		AISummary:     r.AISummary.String,
		AICategory:    r.AICategory.String,
		Processed:     r.Processed(),
		ScrollTxHash:  r.ScrollTxHash.String,
		CreatedAt:     r.CreatedAt,
	}
	if resp.Photos == nil {
		resp.Photos = []string{}
	}
	if r.GPSLat.Valid && r.GPSLng.Valid {
		resp.GPSCoordinates = &models.Coordinates{Lat: r.GPSLat.Float64, Lng: r.GPSLng.Float64}
	}
	if resp.ScrollTxHash != "" && h.explorer != nil {
		resp.ExplorerURL = h.explorer.ExplorerURL(resp.ScrollTxHash)
	}
	return resp
}
