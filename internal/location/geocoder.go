package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrNotFound = errors.New("location not found")

// Place is a resolved position with its display address.
type Place struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Geocoder talks to a Nominatim-compatible search API.
type Geocoder struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	backoffs   []time.Duration
	maxRetries int
}

func NewGeocoder(baseURL, userAgent string) *Geocoder {
	return &Geocoder{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoffs:   []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		maxRetries: 3,
	}
}

// SetBackoffs replaces the wait schedule between retries.
func (g *Geocoder) SetBackoffs(backoffs ...time.Duration) {
	g.backoffs = backoffs
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p nominatimPlace) toPlace() (Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return Place{Lat: lat, Lng: lng, Address: p.DisplayName}, nil
}

// Search returns the best match for a free-text query.
func (g *Geocoder) Search(ctx context.Context, text string) (Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", text)

	var results []nominatimPlace
	if err := g.get(ctx, "/search", q, &results); err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, ErrNotFound
	}
	return results[0].toPlace()
}

// Reverse returns the address at a position.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) (Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	var result nominatimPlace
	if err := g.get(ctx, "/reverse", q, &result); err != nil {
		return Place{}, err
	}
	if result.Error != "" || result.DisplayName == "" {
		return Place{}, ErrNotFound
	}
	return Place{Lat: lat, Lng: lng, Address: result.DisplayName}, nil
}

// permanentError stops retryWithBackoff.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (g *Geocoder) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := g.baseURL + path + "?" + query.Encode()

	return g.retryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return &permanentError{fmt.Errorf("failed to create request: %w", err)}
		}
		req.Header.Set("User-Agent", g.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return &permanentError{ctx.Err()}
			}
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("geocoder returned status %d, body: %s", resp.StatusCode, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			return &permanentError{fmt.Errorf("geocoder returned status %d, body: %s", resp.StatusCode, string(body))}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return &permanentError{fmt.Errorf("failed to decode response: %w", err)}
		}
		return nil
	})
}

// retryWithBackoff executes fn with exponential backoff until it succeeds,
// returns a permanent error, or maxRetries attempts are used.
func (g *Geocoder) retryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < g.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if i < len(g.backoffs) && i < g.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.backoffs[i]):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", g.maxRetries, lastErr)
}
