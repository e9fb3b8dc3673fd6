package location

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"galamsey-report-backend/internal/models"
	"github.com/rs/zerolog"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	// CurrentLocationLabel is used when a device position has no address.
	CurrentLocationLabel = "Current Location"
)

var (
	ErrClosed = errors.New("location tracker closed")
	// ErrSuperseded means a newer query or position replaced this one before
	// it was stored.
	ErrSuperseded = errors.New("location superseded by a newer request")
)

// Resolver turns free text into a place.
type Resolver interface {
	Search(ctx context.Context, text string) (Place, error)
}

// DraftWriter persists resolved places into the location slot of a draft.
type DraftWriter interface {
	SaveStep(ctx context.Context, patch models.DraftPatch) (models.ReportDraft, error)
}

// Notice is the user-facing outcome of the latest lookup.
type Notice struct {
	Level   string    `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Status is a snapshot of a tracker.
type Status struct {
	Query   string  `json:"query"`
	Pending bool    `json:"pending"`
	Place   *Place  `json:"place,omitempty"`
	Notice  *Notice `json:"notice,omitempty"`
}

// Tracker debounces location queries for one user and applies the latest
// answer to that user's draft. Only one lookup runs at a time; answers for
// superseded queries are dropped.
type Tracker struct {
	resolver Resolver
	draft    DraftWriter
	debounce time.Duration
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes draft writes. It is never acquired while mu is held.
	writeMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	gen      uint64
	timer    *time.Timer
	inFlight bool
	rerun    bool
	status   Status
}

func NewTracker(resolver Resolver, draft DraftWriter, debounce time.Duration, logger zerolog.Logger) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		resolver: resolver,
		draft:    draft,
		debounce: debounce,
		logger:   logger.With().Str("component", "location").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Query schedules a lookup for text after the debounce window. A blank
// query cancels whatever is pending.
func (t *Tracker) Query(text string) (Status, error) {
	text = strings.TrimSpace(text)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Status{}, ErrClosed
	}

	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.status.Query = text
	if text == "" {
		t.status.Pending = false
		return t.status, nil
	}

	t.status.Pending = true
	gen := t.gen
	t.timer = time.AfterFunc(t.debounce, func() { t.fire(gen) })
	return t.status, nil
}

// Cancel drops any pending query.
func (t *Tracker) Cancel() {
	_, _ = t.Query("")
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Close stops the tracker. Lookups still running finish without touching
// the draft. A draft write already under way is cancelled and waited for.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.cancel()
	t.mu.Unlock()

	t.writeMu.Lock()
	t.writeMu.Unlock()
}

func (t *Tracker) fire(gen uint64) {
	t.mu.Lock()
	if t.closed || gen != t.gen {
		t.mu.Unlock()
		return
	}
	if t.inFlight {
		t.rerun = true
		t.mu.Unlock()
		return
	}
	t.inFlight = true
	text := t.status.Query
	t.mu.Unlock()

	t.resolve(gen, text)
}

func (t *Tracker) resolve(gen uint64, text string) {
	for {
		place, err := t.resolver.Search(t.ctx, text)
		var saveErr error
		if err == nil {
			_, saveErr = t.store(gen, place)
		}

		t.mu.Lock()
		if t.closed {
			t.inFlight = false
			t.mu.Unlock()
			return
		}
		if gen == t.gen {
			t.apply(place, err, saveErr)
		}
		if t.rerun && gen != t.gen && t.status.Pending {
			t.rerun = false
			gen, text = t.gen, t.status.Query
			t.mu.Unlock()
			continue
		}
		t.rerun = false
		t.inFlight = false
		t.mu.Unlock()
		return
	}
}

// apply records the outcome of a lookup whose place, if any, is already in
// the draft. Caller holds t.mu.
func (t *Tracker) apply(place Place, err, saveErr error) {
	t.status.Pending = false
	now := time.Now()

	switch {
	case errors.Is(err, ErrNotFound):
		t.status.Notice = &Notice{Level: "warning", Title: "Location not found", Message: "Please try a different search term", At: now}
		return
	case err != nil:
		t.logger.Warn().Err(err).Str("query", t.status.Query).Msg("Location lookup failed")
		t.status.Notice = &Notice{Level: "error", Title: "Search error", Message: "Unable to search for location", At: now}
		return
	}

	if saveErr != nil {
		t.logger.Error().Err(saveErr).Msg("Failed to store resolved location")
		t.status.Notice = &Notice{Level: "error", Title: "Search error", Message: "Unable to save location", At: now}
		return
	}
	p := place
	t.status.Place = &p
	t.status.Notice = &Notice{Level: "info", Title: "Location found", Message: place.Address, At: now}
}

// store writes place to the draft if gen is still the latest request and the
// tracker is open. It reports whether the write was attempted. t.mu must not
// be held.
func (t *Tracker) store(gen uint64, place Place) (bool, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	current := !t.closed && gen == t.gen
	t.mu.Unlock()
	if !current {
		return false, nil
	}

	address := place.Address
	_, err := t.draft.SaveStep(t.ctx, models.DraftPatch{
		GPS:        &models.Coordinates{Lat: place.Lat, Lng: place.Lng},
		GPSAddress: &address,
	})
	return true, err
}

// UsePosition stores a device-reported position, labelled with its address
// when the reverse lookup succeeds.
func (t *Tracker) UsePosition(ctx context.Context, reverse func(ctx context.Context, lat, lng float64) (Place, error), lat, lng float64) (Place, error) {
	place := Place{Lat: lat, Lng: lng, Address: CurrentLocationLabel}
	if reverse != nil {
		if found, err := reverse(ctx, lat, lng); err == nil && found.Address != "" {
			place.Address = found.Address
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			t.logger.Debug().Err(err).Msg("Reverse lookup failed, using generic label")
		}
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Place{}, ErrClosed
	}
	// A device fix supersedes any typed query.
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.status.Pending = false
	gen := t.gen
	t.mu.Unlock()

	stored, err := t.store(gen, place)
	if err != nil {
		return Place{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Place{}, ErrClosed
	}
	if !stored || gen != t.gen {
		return Place{}, ErrSuperseded
	}
	p := place
	t.status.Place = &p
	return place, nil
}

// Trackers holds one tracker per user.
type Trackers struct {
	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewTrackers() *Trackers {
	return &Trackers{trackers: make(map[string]*Tracker)}
}

// Get returns the user's tracker, creating it with create on first use.
func (ts *Trackers) Get(owner string, create func() *Tracker) *Tracker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if t, ok := ts.trackers[owner]; ok {
		return t
	}
	t := create()
	ts.trackers[owner] = t
	return t
}

// Close tears down the user's tracker, if any.
func (ts *Trackers) Close(owner string) {
	ts.mu.Lock()
	t, ok := ts.trackers[owner]
	delete(ts.trackers, owner)
	ts.mu.Unlock()
	if ok {
		t.Close()
	}
}

func (ts *Trackers) CloseAll() {
	ts.mu.Lock()
	all := ts.trackers
	ts.trackers = make(map[string]*Tracker)
	ts.mu.Unlock()
	for _, t := range all {
		t.Close()
	}
}
