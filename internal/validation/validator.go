package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"galamsey-report-backend/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	MaxLocationLength    = 500
	MinDescriptionLength = 10
	MaxDescriptionLength = 5000
	MaxGPSAddressLength  = 500
	MaxPhotos            = 10
	// MaxEncodedPhotoSize is the ceiling for one base64 photo (~5MB original).
	MaxEncodedPhotoSize = 7 * 1024 * 1024
)

// Code identifies which constraint a draft violated.
type Code string

const (
	CodeDateInvalid         Code = "date_invalid"
	CodeLocationRequired    Code = "location_required"
	CodeLocationTooLong     Code = "location_too_long"
	CodeDescriptionTooShort Code = "description_too_short"
	CodeDescriptionTooLong  Code = "description_too_long"
	CodeLatitudeOutOfRange  Code = "latitude_out_of_range"
	CodeLongitudeOutOfRange Code = "longitude_out_of_range"
	CodeGPSAddressTooLong   Code = "gps_address_too_long"
	CodeTooManyPhotos       Code = "too_many_photos"
	CodePhotoTooLarge       Code = "photo_too_large"
	CodeOwnerInvalid        Code = "owner_invalid"
)

// Violation is the first failed constraint. It is a value, not a panic: callers
// show Message to the user and switch on Code.
type Violation struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

var messages = map[Code]string{
	CodeDateInvalid:         "Please enter a valid date",
	CodeLocationRequired:    "Location is required",
	CodeLocationTooLong:     "Location must be less than 500 characters",
	CodeDescriptionTooShort: "Description must be at least 10 characters",
	CodeDescriptionTooLong:  "Description must be less than 5000 characters",
	CodeLatitudeOutOfRange:  "Latitude must be between -90 and 90",
	CodeLongitudeOutOfRange: "Longitude must be between -180 and 180",
	CodeGPSAddressTooLong:   "GPS address must be less than 500 characters",
	CodeTooManyPhotos:       "Maximum 10 photos allowed",
	CodePhotoTooLarge:       "Photo is too large (max 5MB)",
	CodeOwnerInvalid:        "Invalid user ID",
}

func violation(code Code) *Violation {
	return &Violation{Code: code, Message: messages[code]}
}

// step1 mirrors the first wizard screen.
type step1 struct {
	Date        string `validate:"reportdate"`
	Location    string `validate:"trimmin=1,trimmax=500"`
	Description string `validate:"trimmin=10,trimmax=5000"`
}

type photoList struct {
	Photos []string `validate:"max=10,dive,max=7340032"`
}

type submission struct {
	Step       step1
	GPS        *models.Coordinates
	GPSAddress string `validate:"max=500"`
	Photos     photoList
	UserID     string `validate:"required,uuid"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "reportdate", func(fl validator.FieldLevel) bool {
		_, ok := ParseDate(fl.Field().String())
		return ok
	})
	mustRegister(v, "trimmin", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			panic(fmt.Sprintf("trimmin: bad param %q", fl.Param()))
		}
		return trimmedLen(fl.Field().String()) >= n
	})
	mustRegister(v, "trimmax", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			panic(fmt.Sprintf("trimmax: bad param %q", fl.Param()))
		}
		return trimmedLen(fl.Field().String()) <= n
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// ParseDate accepts a calendar date or an ISO timestamp.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateStep1 checks date, location and description.
func ValidateStep1(date, location, description string) *Violation {
	return run(step1{Date: date, Location: location, Description: description})
}

// ValidateCoordinates accepts nil: coordinates are optional.
func ValidateCoordinates(c *models.Coordinates) *Violation {
	if c == nil {
		return nil
	}
	return run(c)
}

func ValidatePhotos(photos []string) *Violation {
	return run(photoList{Photos: photos})
}

// ValidateSubmission is the final gate before persistence. It re-checks every
// step because drafts can be edited or tampered with between screens.
func ValidateSubmission(d models.ReportDraft, userID string) *Violation {
	return run(submission{
		Step:       step1{Date: d.Date, Location: d.Location, Description: d.Description},
		GPS:        d.GPS,
		GPSAddress: d.GPSAddress,
		Photos:     photoList{Photos: d.Photos},
		UserID:     userID,
	})
}

func run(s interface{}) *Violation {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		// InvalidValidationError: a nil or non-struct was passed in.
		panic(fmt.Sprintf("validation: %v", err))
	}
	return toViolation(errs[0])
}

func toViolation(fe validator.FieldError) *Violation {
	field := fe.StructField()
	switch {
	case field == "Date":
		return violation(CodeDateInvalid)
	case field == "Location" && fe.Tag() == "trimmin":
		return violation(CodeLocationRequired)
	case field == "Location":
		return violation(CodeLocationTooLong)
	case field == "Description" && fe.Tag() == "trimmin":
		return violation(CodeDescriptionTooShort)
	case field == "Description":
		return violation(CodeDescriptionTooLong)
	case field == "Lat":
		return violation(CodeLatitudeOutOfRange)
	case field == "Lng":
		return violation(CodeLongitudeOutOfRange)
	case field == "GPSAddress":
		return violation(CodeGPSAddressTooLong)
	case field == "Photos":
		return violation(CodeTooManyPhotos)
	case strings.HasPrefix(field, "Photos["):
		return violation(CodePhotoTooLarge)
	case field == "UserID":
		return violation(CodeOwnerInvalid)
	}
	panic(fmt.Sprintf("validation: unmapped constraint %s on %s", fe.Tag(), fe.Namespace()))
}
