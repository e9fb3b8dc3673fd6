package photos

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"galamsey-report-backend/internal/validation"
	"github.com/rs/zerolog"
)

// MaxRawSize is the largest original image accepted. Base64 inflates it to
// roughly validation.MaxEncodedPhotoSize.
const MaxRawSize = 5 << 20

var (
	ErrTooMany         = errors.New("maximum 10 photos allowed")
	ErrTooLarge        = errors.New("photo exceeds 5MB limit")
	ErrEmpty           = errors.New("photo is empty")
	ErrUnsupportedType = errors.New("file is not a supported image")
	ErrIndexOutOfRange = errors.New("photo index out of range")
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Archive keeps an original copy of evidence photos.
type Archive interface {
	UploadEvidence(userID, ext, contentType string, data []byte) (storagePath, publicURL string, err error)
}

// Photo describes an accepted image.
type Photo struct {
	Encoded     string `json:"-"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	ArchiveURL  string `json:"archive_url,omitempty"`
}

// Collector accepts images into a draft's photo list.
type Collector struct {
	archive Archive
	logger  zerolog.Logger
}

// NewCollector returns a collector. archive may be nil.
func NewCollector(archive Archive, logger zerolog.Logger) *Collector {
	return &Collector{
		archive: archive,
		logger:  logger.With().Str("component", "photos").Logger(),
	}
}

// Add appends image to current and returns the new list. current is not
// modified. Archive failures are logged and do not reject the photo.
func (c *Collector) Add(ctx context.Context, owner string, current []string, image []byte) ([]string, Photo, error) {
	if len(current) >= validation.MaxPhotos {
		return nil, Photo{}, ErrTooMany
	}
	if len(image) == 0 {
		return nil, Photo{}, ErrEmpty
	}
	if len(image) > MaxRawSize {
		return nil, Photo{}, ErrTooLarge
	}

	contentType := http.DetectContentType(image)
	ext, ok := extensions[contentType]
	if !ok {
		return nil, Photo{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	photo := Photo{
		Encoded:     Encode(contentType, image),
		ContentType: contentType,
		Size:        len(image),
	}

	if c.archive != nil && ctx.Err() == nil {
		_, url, err := c.archive.UploadEvidence(owner, ext, contentType, image)
		if err != nil {
			c.logger.Warn().Err(err).Str("user_id", owner).Msg("Failed to archive evidence photo")
		} else {
			photo.ArchiveURL = url
		}
	}

	next := make([]string, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, photo.Encoded)
	return next, photo, nil
}

// Encode renders image as a data URL.
func Encode(contentType string, image []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// Remove returns current without the photo at index.
func Remove(current []string, index int) ([]string, error) {
	if index < 0 || index >= len(current) {
		return nil, ErrIndexOutOfRange
	}
	next := make([]string, 0, len(current)-1)
	next = append(next, current[:index]...)
	next = append(next, current[index+1:]...)
	return next, nil
}
