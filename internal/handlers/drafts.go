package handlers

import (
	"net/http"

	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionCloser tears down per-user wizard state when a draft is abandoned.
type SessionCloser interface {
	Close(owner string)
}

type DraftsHandler struct {
	medium   draft.Medium
	sessions SessionCloser
	logger   zerolog.Logger
}

func NewDraftsHandler(medium draft.Medium, sessions SessionCloser, logger zerolog.Logger) *DraftsHandler {
	return &DraftsHandler{
		medium:   medium,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *DraftsHandler) store(owner string) *draft.Store {
	return draft.NewStore(h.medium, owner, h.logger)
}

// GetDraft godoc
// @Summary     Get the current draft
// @Description Returns the caller's in-progress report. Missing or unreadable parts come back empty.
// @Tags        drafts
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ReportDraft
// @Failure     401 {object} models.ErrorResponse
// @Router      /drafts/current [get]
func (h *DraftsHandler) GetDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.store(userID).Load(c.Request.Context()))
}

// SaveDraft godoc
// @Summary     Save a wizard step
// @Description Overwrites only the supplied keys. With step=1 the date, location and description are validated first.
// @Tags        drafts
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       step  query    int               false "Wizard step to validate"
// @Param       patch body     models.DraftPatch true  "Keys to overwrite"
// @Success     200 {object} models.ReportDraft
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /drafts/current [patch]
func (h *DraftsHandler) SaveDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var patch models.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	store := h.store(userID)
	ctx := c.Request.Context()

	if c.Query("step") == "1" {
		current := store.Load(ctx)
		merged := mergeForm(current, patch)
		if v := validation.ValidateStep1(merged.Date, merged.Location, merged.Description); v != nil {
			respondViolation(c, v)
			return
		}
	}
	if v := validation.ValidateCoordinates(patch.GPS); v != nil {
		respondViolation(c, v)
		return
	}
	if patch.Photos != nil {
		if v := validation.ValidatePhotos(*patch.Photos); v != nil {
			respondViolation(c, v)
			return
		}
	}

	saved, err := store.SaveStep(ctx, patch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save draft", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, saved)
}

// DeleteDraft godoc
// @Summary     Abandon the current draft
// @Tags        drafts
// @Security    Bearer
// @Success     204
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /drafts/current [delete]
func (h *DraftsHandler) DeleteDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if h.sessions != nil {
		h.sessions.Close(userID)
	}
	if err := h.store(userID).Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to clear draft", Message: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func mergeForm(d models.ReportDraft, patch models.DraftPatch) models.ReportDraft {
	if patch.Date != nil {
		d.Date = *patch.Date
	}
	if patch.Location != nil {
		d.Location = *patch.Location
	}
	if patch.Description != nil {
		d.Description = *patch.Description
	}
	return d
}
