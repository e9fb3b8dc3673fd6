package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/location"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Geocoder resolves text and positions. *location.Geocoder satisfies it.
type Geocoder interface {
	Search(ctx context.Context, text string) (location.Place, error)
	Reverse(ctx context.Context, lat, lng float64) (location.Place, error)
}

type LocationHandler struct {
	geocoder Geocoder
	trackers *location.Trackers
	medium   draft.Medium
	debounce time.Duration
	logger   zerolog.Logger
}

func NewLocationHandler(geocoder Geocoder, trackers *location.Trackers, medium draft.Medium, debounce time.Duration, logger zerolog.Logger) *LocationHandler {
	return &LocationHandler{
		geocoder: geocoder,
		trackers: trackers,
		medium:   medium,
		debounce: debounce,
		logger:   logger,
	}
}

func (h *LocationHandler) tracker(owner string) *location.Tracker {
	return h.trackers.Get(owner, func() *location.Tracker {
		return location.NewTracker(h.geocoder, draft.NewStore(h.medium, owner, h.logger), h.debounce, h.logger)
	})
}

// QueryLocation godoc
// @Summary     Search for a location
// @Description Schedules a debounced lookup. The result lands in the draft's location step; poll GET /location/query for the outcome.
// @Tags        location
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.LocationQueryRequest true "Search text"
// @Success     202 {object} location.Status
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /location/query [post]
func (h *LocationHandler) QueryLocation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.LocationQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	status, err := h.tracker(userID).Query(req.Query)
	if errors.Is(err, location.ErrClosed) {
		// Closed between lookup and use; a fresh tracker takes over.
		status, err = h.tracker(userID).Query(req.Query)
	}
	if err != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "location search unavailable", Message: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, status)
}

// GetLocationQuery godoc
// @Summary     Get the latest location search outcome
// @Tags        location
// @Produce     json
// @Security    Bearer
// @Success     200 {object} location.Status
// @Failure     401 {object} models.ErrorResponse
// @Router      /location/query [get]
func (h *LocationHandler) GetLocationQuery(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.tracker(userID).Status())
}

// CancelLocationQuery godoc
// @Summary     Cancel a pending location search
// @Tags        location
// @Security    Bearer
// @Success     204
// @Failure     401 {object} models.ErrorResponse
// @Router      /location/query [delete]
func (h *LocationHandler) CancelLocationQuery(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	h.tracker(userID).Cancel()
	c.Status(http.StatusNoContent)
}

// UseDevicePosition godoc
// @Summary     Use the device's GPS position
// @Description Stores the position in the draft, labelled with its address when one can be found.
// @Tags        location
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.DevicePositionRequest true "Device position"
// @Success     200 {object} location.Place
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /location/device [post]
func (h *LocationHandler) UseDevicePosition(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.DevicePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}
	coords := &models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	if v := validation.ValidateCoordinates(coords); v != nil {
		respondViolation(c, v)
		return
	}

	place, err := h.tracker(userID).UsePosition(c.Request.Context(), h.geocoder.Reverse, coords.Lat, coords.Lng)
	if errors.Is(err, location.ErrSuperseded) {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "location changed", Message: err.Error(), Code: "superseded"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to store location", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, place)
}

// ReverseGeocode godoc
// @Summary     Look up the address at a position
// @Tags        location
// @Produce     json
// @Security    Bearer
// @Param       lat query number true "Latitude"
// @Param       lng query number true "Longitude"
// @Success     200 {object} location.Place
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /location/reverse [get]
func (h *LocationHandler) ReverseGeocode(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "lat and lng query parameters are required"})
		return
	}
	if v := validation.ValidateCoordinates(&models.Coordinates{Lat: lat, Lng: lng}); v != nil {
		respondViolation(c, v)
		return
	}

	place, err := h.geocoder.Reverse(c.Request.Context(), lat, lng)
	if errors.Is(err, location.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "location not found"})
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("Reverse geocoding failed")
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "unable to search for location"})
		return
	}

	c.JSON(http.StatusOK, place)
}
