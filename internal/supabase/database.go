package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"galamsey-report-backend/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

// DefaultListLimit caps admin listings when no limit is given.
const DefaultListLimit = 200

const reportColumns = `id, user_id, date, location, description, gps_lat, gps_long, gps_address,
	photos, wallet_address, ai_summary, ai_category, scroll_tx_hash, created_at`

// DatabaseClient is the Postgres report store.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the pool for the migrator.
func (d *DatabaseClient) DB() *sql.DB {
	return d.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r      models.Report
		photos []byte
	)
	err := row.Scan(
		&r.ID, &r.UserID, &r.Date, &r.Location, &r.Description,
		&r.GPSLat, &r.GPSLng, &r.GPSAddress, &photos, &r.WalletAddress,
		&r.AISummary, &r.AICategory, &r.ScrollTxHash, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(photos) > 0 {
		if err := json.Unmarshal(photos, &r.Photos); err != nil {
			return nil, fmt.Errorf("failed to decode photos: %w", err)
		}
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d *DatabaseClient) Insert(ctx context.Context, nr models.NewReport) (*models.Report, error) {
	photos := nr.Photos
	if photos == nil {
		photos = []string{}
	}
	photosJSON, err := json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photos: %w", err)
	}

	var lat, lng sql.NullFloat64
	if nr.GPS != nil {
		lat = sql.NullFloat64{Float64: nr.GPS.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: nr.GPS.Lng, Valid: true}
	}

	report, err := scanReport(d.db.QueryRowContext(ctx, `
		INSERT INTO galamsey_reports (user_id, date, location, description, gps_lat, gps_long, gps_address, photos, wallet_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+reportColumns,
		nr.UserID, nr.Date, nr.Location, nr.Description, lat, lng,
		nullString(nr.GPSAddress), photosJSON, nullString(nr.WalletAddress),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	return report, nil
}

func (d *DatabaseClient) UpdateEnrichment(ctx context.Context, id uuid.UUID, summary, category string) error {
	return d.execOne(ctx, "update enrichment", `
		UPDATE galamsey_reports
		SET ai_summary = $1, ai_category = $2
		WHERE id = $3
	`, summary, category, id)
}

func (d *DatabaseClient) AttachTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	return d.execOne(ctx, "attach transaction hash", `
		UPDATE galamsey_reports
		SET scroll_tx_hash = $1
		WHERE id = $2
	`, txHash, id)
}

func (d *DatabaseClient) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	report, err := scanReport(d.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM galamsey_reports
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

func (d *DatabaseClient) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	query, args := buildListQuery(filter)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}

func buildListQuery(filter models.ReportFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("ai_category = $%d", len(args)))
	}
	if filter.Unprocessed {
		where = append(where, "ai_summary IS NULL AND ai_category IS NULL")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	var b strings.Builder
	b.WriteString("SELECT " + reportColumns + " FROM galamsey_reports")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&b, " ORDER BY created_at DESC LIMIT $%d", len(args))
	return b.String(), args
}

func (d *DatabaseClient) Delete(ctx context.Context, id uuid.UUID) error {
	return d.execOne(ctx, "delete report", `
		DELETE FROM galamsey_reports
		WHERE id = $1
	`, id)
}

// IsAdmin reports whether user holds the admin role.
func (d *DatabaseClient) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var admin bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_roles
			WHERE user_id = $1 AND role = 'admin'
		)
	`, userID).Scan(&admin)
	if err != nil {
		return false, fmt.Errorf("failed to check role: %w", err)
	}
	return admin, nil
}

func (d *DatabaseClient) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
