package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"galamsey-report-backend/internal/models"
	"github.com/rs/zerolog"
)

// Slot names. A draft is split across three independently written slots, one
// per wizard screen.
const (
	SlotForm     = "report_form"
	SlotLocation = "report_location"
	SlotPhotos   = "report_photos"
)

var slots = []string{SlotForm, SlotLocation, SlotPhotos}

// Medium is the string-keyed storage a Store writes through to.
// Delete must remove every given key in one operation.
type Medium interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

type formSlot struct {
	Date        string `json:"date"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type locationSlot struct {
	GPS        *models.Coordinates `json:"gps_coordinates"`
	GPSAddress string              `json:"gps_address"`
}

// Store holds one owner's draft. Only the active wizard screen writes to it.
type Store struct {
	medium Medium
	owner  string
	logger zerolog.Logger
}

func NewStore(medium Medium, owner string, logger zerolog.Logger) *Store {
	return &Store{
		medium: medium,
		owner:  owner,
		logger: logger.With().Str("component", "draft_store").Str("owner", owner).Logger(),
	}
}

func (s *Store) key(slot string) string {
	return fmt.Sprintf("draft:%s:%s", s.owner, slot)
}

// SaveStep merges patch into the stored draft, overwriting only the supplied
// keys, and writes the touched slots immediately.
func (s *Store) SaveStep(ctx context.Context, patch models.DraftPatch) (models.ReportDraft, error) {
	if patch.TouchesForm() {
		var form formSlot
		s.read(ctx, SlotForm, &form)
		if patch.Date != nil {
			form.Date = *patch.Date
		}
		if patch.Location != nil {
			form.Location = *patch.Location
		}
		if patch.Description != nil {
			form.Description = *patch.Description
		}
		if err := s.write(ctx, SlotForm, form); err != nil {
			return models.ReportDraft{}, err
		}
	}

	if patch.TouchesLocation() {
		var loc locationSlot
		s.read(ctx, SlotLocation, &loc)
		if patch.ClearGPS {
			loc.GPS = nil
		}
		if patch.GPS != nil {
			gps := *patch.GPS
			loc.GPS = &gps
		}
		if patch.GPSAddress != nil {
			loc.GPSAddress = *patch.GPSAddress
		}
		if err := s.write(ctx, SlotLocation, loc); err != nil {
			return models.ReportDraft{}, err
		}
	}

	if patch.TouchesPhotos() {
		photos := append([]string{}, (*patch.Photos)...)
		if err := s.write(ctx, SlotPhotos, photos); err != nil {
			return models.ReportDraft{}, err
		}
	}

	return s.Load(ctx), nil
}

// Load returns the last persisted draft, or an empty draft. Unreadable slots
// are logged and treated as empty; the final submission check catches
// anything that matters.
func (s *Store) Load(ctx context.Context) models.ReportDraft {
	var (
		form   formSlot
		loc    locationSlot
		photos []string
	)
	s.read(ctx, SlotForm, &form)
	s.read(ctx, SlotLocation, &loc)
	s.read(ctx, SlotPhotos, &photos)

	return models.ReportDraft{
		Date:        form.Date,
		Location:    form.Location,
		Description: form.Description,
		GPS:         loc.GPS,
		GPSAddress:  loc.GPSAddress,
		Photos:      photos,
	}
}

// Clear removes all three slots together.
func (s *Store) Clear(ctx context.Context) error {
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = s.key(slot)
	}
	if err := s.medium.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear draft: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, slot string, into interface{}) {
	raw, ok, err := s.medium.Get(ctx, s.key(slot))
	if err != nil {
		s.logger.Warn().Err(err).Str("slot", slot).Msg("draft slot read failed, using empty value")
		return
	}
	if !ok || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		s.logger.Warn().Err(err).Str("slot", slot).Msg("draft slot is not valid JSON, ignoring")
	}
}

func (s *Store) write(ctx context.Context, slot string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode draft slot %s: %w", slot, err)
	}
	if err := s.medium.Set(ctx, s.key(slot), string(data)); err != nil {
		return fmt.Errorf("failed to save draft slot %s: %w", slot, err)
	}
	return nil
}
