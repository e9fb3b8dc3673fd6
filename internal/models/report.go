package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// AI categories the classifier may assign.
const (
	CategoryWaterPollution    = "Water Pollution"
	CategoryForestDestruction = "Forest Destruction"
	CategoryMiningPits        = "Mining Pits"
	CategoryOther             = "Other"
)

var Categories = []string{
	CategoryWaterPollution,
	CategoryForestDestruction,
	CategoryMiningPits,
	CategoryOther,
}

func IsCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// Report is the durable record in galamsey_reports.
type Report struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Date          string
	Location      string
	Description   string
	GPSLat        sql.NullFloat64
	GPSLng        sql.NullFloat64
	GPSAddress    sql.NullString
	Photos        []string
	WalletAddress sql.NullString
	AISummary     sql.NullString
	AICategory    sql.NullString
	ScrollTxHash  sql.NullString
	CreatedAt     time.Time
}

// Processed reports whether AI enrichment has landed on the record.
func (r *Report) Processed() bool {
	return r.AISummary.Valid || r.AICategory.Valid
}

// NewReport is what the orchestrator inserts. The store assigns ID and CreatedAt.
type NewReport struct {
	UserID        uuid.UUID
	Date          string
	Location      string
	Description   string
	GPS           *Coordinates
	GPSAddress    string
	Photos        []string
	WalletAddress string
}

// ReportFilter narrows the admin listing.
type ReportFilter struct {
	Category    string
	Unprocessed bool
	Limit       int
}
