package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/photos"
	"galamsey-report-backend/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type PhotosHandler struct {
	collector *photos.Collector
	medium    draft.Medium
	logger    zerolog.Logger

	// Adding a photo is read-modify-write on the photo slot.
	locks sync.Map
}

func NewPhotosHandler(collector *photos.Collector, medium draft.Medium, logger zerolog.Logger) *PhotosHandler {
	return &PhotosHandler{
		collector: collector,
		medium:    medium,
		logger:    logger,
	}
}

func (h *PhotosHandler) lock(owner string) func() {
	m, _ := h.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AddPhoto godoc
// @Summary     Add a photo to the draft
// @Description Accepts one image of at most 5MB. A draft holds at most 10 photos.
// @Tags        photos
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       photo formData file true "Image file"
// @Success     201 {object} models.PhotoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /photos [post]
func (h *PhotosHandler) AddPhoto(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no photo provided", Message: err.Error()})
		return
	}
	if fileHeader.Size > photos.MaxRawSize {
		respondViolation(c, &validation.Violation{Code: validation.CodePhotoTooLarge, Message: photos.ErrTooLarge.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to open photo", Message: err.Error()})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, photos.MaxRawSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read photo", Message: err.Error()})
		return
	}

	unlock := h.lock(userID)
	defer unlock()

	ctx := c.Request.Context()
	store := draft.NewStore(h.medium, userID, h.logger)
	current := store.Load(ctx).Photos

	list, photo, err := h.collector.Add(ctx, userID, current, data)
	if err != nil {
		respondPhotoError(c, err)
		return
	}

	if _, err := store.SaveStep(ctx, models.DraftPatch{Photos: &list}); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to save photo", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, models.PhotoResponse{
		Index:       len(list) - 1,
		Count:       len(list),
		ContentType: photo.ContentType,
		Size:        photo.Size,
		ArchiveURL:  photo.ArchiveURL,
	})
}

// RemovePhoto godoc
// @Summary     Remove a photo from the draft
// @Tags        photos
// @Produce     json
// @Security    Bearer
// @Param       index path int true "Photo position, starting at 0"
// @Success     200 {object} models.PhotoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /photos/{index} [delete]
func (h *PhotosHandler) RemovePhoto(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid photo index"})
		return
	}

	unlock := h.lock(userID)
	defer unlock()

	ctx := c.Request.Context()
	store := draft.NewStore(h.medium, userID, h.logger)

	list, err := photos.Remove(store.Load(ctx).Photos, index)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "photo not found", Message: err.Error()})
		return
	}
	if _, err := store.SaveStep(ctx, models.DraftPatch{Photos: &list}); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to remove photo", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.PhotoResponse{Index: index, Count: len(list)})
}

func respondPhotoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, photos.ErrTooMany):
		respondViolation(c, &validation.Violation{Code: validation.CodeTooManyPhotos, Message: err.Error()})
	case errors.Is(err, photos.ErrTooLarge):
		respondViolation(c, &validation.Violation{Code: validation.CodePhotoTooLarge, Message: err.Error()})
	case errors.Is(err, photos.ErrUnsupportedType), errors.Is(err, photos.ErrEmpty):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid photo", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to add photo", Message: err.Error()})
	}
}
