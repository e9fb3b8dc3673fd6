package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"galamsey-report-backend/internal/config"
	"galamsey-report-backend/internal/location"
	"galamsey-report-backend/internal/middleware"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/supabase"
	"galamsey-report-backend/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testUser   = "0d0c5d55-31a4-4d7f-a9b5-6c3a4f2e8b10"
	otherUser  = "7a4f1e0b-8c2d-4b6e-9f3a-1d5c7e9b2a40"
	testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asUser stands in for the JWT middleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into), w.Body.String())
}

// memoryReports is an in-memory report store.
type memoryReports struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]*models.Report
	insertErr error
}

func newMemoryReports() *memoryReports {
	return &memoryReports{reports: make(map[uuid.UUID]*models.Report)}
}

func (m *memoryReports) Insert(_ context.Context, nr models.NewReport) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	r := &models.Report{
		ID:          uuid.New(),
		UserID:      nr.UserID,
		Date:        nr.Date,
		Location:    nr.Location,
		Description: nr.Description,
		Photos:      nr.Photos,
		CreatedAt:   time.Now(),
	}
	if nr.WalletAddress != "" {
		r.WalletAddress.String, r.WalletAddress.Valid = nr.WalletAddress, true
	}
	m.reports[r.ID] = r
	out := *r
	return &out, nil
}

func (m *memoryReports) AttachTxHash(_ context.Context, id uuid.UUID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return supabase.ErrNotFound
	}
	r.ScrollTxHash.String, r.ScrollTxHash.Valid = txHash, true
	return nil
}

func (m *memoryReports) UpdateEnrichment(_ context.Context, id uuid.UUID, summary, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return supabase.ErrNotFound
	}
	r.AISummary.String, r.AISummary.Valid = summary, true
	r.AICategory.String, r.AICategory.Valid = category, true
	return nil
}

func (m *memoryReports) Get(_ context.Context, id uuid.UUID) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, supabase.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *memoryReports) List(_ context.Context, filter models.ReportFilter) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Report, 0)
	for _, r := range m.reports {
		if filter.Category != "" && r.AICategory.String != filter.Category {
			continue
		}
		if filter.Unprocessed && r.Processed() {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryReports) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return supabase.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *memoryReports) add(r models.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = &r
}

func (m *memoryReports) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

// stubChain records hashes instantly, or fails with err.
type stubChain struct {
	mu        sync.Mutex
	enabled   bool
	err       error
	hashes    []common.Hash
	reporters []string
}

func (s *stubChain) Enabled() bool          { return s.enabled }
func (s *stubChain) ExpectedChainID() int64 { return config.ScrollSepoliaChainID }

func (s *stubChain) CurrentNetwork(context.Context) (int64, error) {
	return config.ScrollSepoliaChainID, nil
}

func (s *stubChain) SwitchToExpectedNetwork(context.Context) error { return nil }

func (s *stubChain) SubmitHash(_ context.Context, h common.Hash, reporter string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.hashes = append(s.hashes, h)
	s.reporters = append(s.reporters, reporter)
	return "0x" + common.Bytes2Hex(h.Bytes()), nil
}

func (s *stubChain) submittedHashes() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common.Hash(nil), s.hashes...)
}

func (s *stubChain) creditedReporters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reporters...)
}

func (s *stubChain) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stubChain) RewardsFor(_ context.Context, address string) (wallet.Rewards, error) {
	return wallet.Rewards{Address: address, Amount: big.NewInt(10), Count: big.NewInt(1)}, nil
}

func (s *stubChain) RewardPerReport(context.Context) (*big.Int, error) {
	return big.NewInt(10), nil
}

func (s *stubChain) ExplorerURL(txHash string) string {
	return "https://sepolia.scrollscan.com/tx/" + txHash
}

// stubGeocoder answers from a table.
type stubGeocoder struct {
	places map[string]location.Place
}

func (s stubGeocoder) Search(_ context.Context, text string) (location.Place, error) {
	if p, ok := s.places[text]; ok {
		return p, nil
	}
	return location.Place{}, location.ErrNotFound
}

func (s stubGeocoder) Reverse(_ context.Context, lat, lng float64) (location.Place, error) {
	if lat == 6.2 {
		return location.Place{Lat: lat, Lng: lng, Address: "Obuasi, Ghana"}, nil
	}
	return location.Place{}, location.ErrNotFound
}
