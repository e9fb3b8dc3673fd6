package supabase

import (
	"context"
	"fmt"
	"time"

	"galamsey-report-backend/internal/models"
	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

const (
	reportsTable = "galamsey_reports"
	rolesTable   = "user_roles"
)

// RestStore is the report store over the Supabase REST API, used when no
// direct database connection is configured.
type RestStore struct {
	client *supabase.Client
}

func NewRestStore(supabaseURL, key string) (*RestStore, error) {
	client, err := supabase.NewClient(supabaseURL, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &RestStore{client: client}, nil
}

// restReport is the row shape PostgREST returns.
type restReport struct {
	ID            uuid.UUID `json:"id,omitempty"`
	UserID        uuid.UUID `json:"user_id"`
	Date          string    `json:"date"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	GPSLat        *float64  `json:"gps_lat"`
	GPSLng        *float64  `json:"gps_long"`
	GPSAddress    *string   `json:"gps_address"`
	Photos        []string  `json:"photos"`
	WalletAddress *string   `json:"wallet_address"`
	AISummary     *string   `json:"ai_summary,omitempty"`
	AICategory    *string   `json:"ai_category,omitempty"`
	ScrollTxHash  *string   `json:"scroll_tx_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

type newRestReport struct {
	UserID        uuid.UUID `json:"user_id"`
	Date          string    `json:"date"`
	Location      string    `json:"location"`
	Description   string    `json:"description"`
	GPSLat        *float64  `json:"gps_lat"`
	GPSLng        *float64  `json:"gps_long"`
	GPSAddress    *string   `json:"gps_address"`
	Photos        []string  `json:"photos"`
	WalletAddress *string   `json:"wallet_address"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toNewRestReport(nr models.NewReport) newRestReport {
	row := newRestReport{
		UserID:        nr.UserID,
		Date:          nr.Date,
		Location:      nr.Location,
		Description:   nr.Description,
		GPSAddress:    optString(nr.GPSAddress),
		Photos:        nr.Photos,
		WalletAddress: optString(nr.WalletAddress),
	}
	if row.Photos == nil {
		row.Photos = []string{}
	}
	if nr.GPS != nil {
		lat, lng := nr.GPS.Lat, nr.GPS.Lng
		row.GPSLat, row.GPSLng = &lat, &lng
	}
	return row
}

func (r restReport) toModel() models.Report {
	out := models.Report{
		ID:          r.ID,
		UserID:      r.UserID,
		Date:        r.Date,
		Location:    r.Location,
		Description: r.Description,
		Photos:      r.Photos,
		CreatedAt:   r.CreatedAt,
	}
	if r.GPSLat != nil && r.GPSLng != nil {
		out.GPSLat.Float64, out.GPSLat.Valid = *r.GPSLat, true
		out.GPSLng.Float64, out.GPSLng.Valid = *r.GPSLng, true
	}
	setNull := func(dst *string, valid *bool, src *string) {
		if src != nil {
			*dst, *valid = *src, true
		}
	}
	setNull(&out.GPSAddress.String, &out.GPSAddress.Valid, r.GPSAddress)
	setNull(&out.WalletAddress.String, &out.WalletAddress.Valid, r.WalletAddress)
	setNull(&out.AISummary.String, &out.AISummary.Valid, r.AISummary)
	setNull(&out.AICategory.String, &out.AICategory.Valid, r.AICategory)
	setNull(&out.ScrollTxHash.String, &out.ScrollTxHash.Valid, r.ScrollTxHash)
	return out
}

func (s *RestStore) Insert(ctx context.Context, nr models.NewReport) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []restReport
	_, err := s.client.From(reportsTable).
		Insert(toNewRestReport(nr), false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to insert report: no row returned")
	}
	report := rows[0].toModel()
	return &report, nil
}

func (s *RestStore) UpdateEnrichment(ctx context.Context, id uuid.UUID, summary, category string) error {
	return s.update(ctx, "update enrichment", id, map[string]interface{}{
		"ai_summary":  summary,
		"ai_category": category,
	})
}

func (s *RestStore) AttachTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	return s.update(ctx, "attach transaction hash", id, map[string]interface{}{
		"scroll_tx_hash": txHash,
	})
}

func (s *RestStore) update(ctx context.Context, op string, id uuid.UUID, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []restReport
	_, err := s.client.From(reportsTable).
		Update(fields, "representation", "").
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RestStore) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []restReport
	_, err := s.client.From(reportsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	report := rows[0].toModel()
	return &report, nil
}

func (s *RestStore) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := s.client.From(reportsTable).Select("*", "", false)
	if filter.Category != "" {
		query = query.Eq("ai_category", filter.Category)
	}
	if filter.Unprocessed {
		query = query.Is("ai_summary", "null").Is("ai_category", "null")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []restReport
	_, err := query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]models.Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.toModel())
	}
	return reports, nil
}

func (s *RestStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []restReport
	_, err := s.client.From(reportsTable).
		Delete("representation", "").
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RestStore) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var rows []struct {
		Role string `json:"role"`
	}
	_, err := s.client.From(rolesTable).
		Select("role", "", false).
		Eq("user_id", userID.String()).
		Eq("role", "admin").
		ExecuteTo(&rows)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return len(rows) > 0, nil
}
