package models

// Coordinates is a WGS84 position. A nil *Coordinates means "not captured".
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// ReportDraft is the in-progress report assembled across the wizard steps.
type ReportDraft struct {
	Date          string       `json:"date"`
	Location      string       `json:"location"`
	Description   string       `json:"description"`
	GPS           *Coordinates `json:"gps_coordinates"`
	GPSAddress    string       `json:"gps_address,omitempty"`
	Photos        []string     `json:"photos"`
	WalletAddress string       `json:"wallet_address,omitempty"`
}

// DraftPatch carries the keys a wizard step wants to overwrite. Nil fields are
// left untouched. ClearGPS removes previously captured coordinates.
type DraftPatch struct {
	Date        *string      `json:"date,omitempty"`
	Location    *string      `json:"location,omitempty"`
	Description *string      `json:"description,omitempty"`
	GPS         *Coordinates `json:"gps_coordinates,omitempty"`
	ClearGPS    bool         `json:"clear_gps,omitempty"`
	GPSAddress  *string      `json:"gps_address,omitempty"`
	Photos      *[]string    `json:"photos,omitempty"`
}

func (p DraftPatch) TouchesForm() bool {
	return p.Date != nil || p.Location != nil || p.Description != nil
}

func (p DraftPatch) TouchesLocation() bool {
	return p.GPS != nil || p.ClearGPS || p.GPSAddress != nil
}

func (p DraftPatch) TouchesPhotos() bool {
	return p.Photos != nil
}
