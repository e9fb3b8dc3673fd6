package submission_test

import (
	"context"
	"database/sql"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"galamsey-report-backend/internal/config"
	"galamsey-report-backend/internal/draft"
	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/submission"
	"galamsey-report-backend/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

// fakeStore keeps reports in memory and records which fields each patch touched.
type fakeStore struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]*models.Report
	inserts   int
	insertErr error
	attachErr error
	block     chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[uuid.UUID]*models.Report)}
}

func (f *fakeStore) Insert(ctx context.Context, r models.NewReport) (*models.Report, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	rec := &models.Report{
		ID:            uuid.New(),
		UserID:        r.UserID,
		Date:          r.Date,
		Location:      r.Location,
		Description:   r.Description,
		Photos:        r.Photos,
		WalletAddress: sql.NullString{String: r.WalletAddress, Valid: r.WalletAddress != ""},
		CreatedAt:     time.Now(),
	}
	f.reports[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (f *fakeStore) AttachTxHash(_ context.Context, id uuid.UUID, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	rec, ok := f.reports[id]
	if !ok {
		return errors.New("report not found")
	}
	rec.ScrollTxHash.String, rec.ScrollTxHash.Valid = txHash, true
	return nil
}

func (f *fakeStore) UpdateEnrichment(_ context.Context, id uuid.UUID, summary, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.reports[id]
	if !ok {
		return errors.New("report not found")
	}
	rec.AISummary.String, rec.AISummary.Valid = summary, true
	rec.AICategory.String, rec.AICategory.Valid = category, true
	return nil
}

func (f *fakeStore) insertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func (f *fakeStore) get(id uuid.UUID) models.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reports[id]
}

// fakeEnricher writes a fixed classification through the store, or fails.
type fakeEnricher struct {
	store *fakeStore
	err   error
	calls chan uuid.UUID
}

func (f *fakeEnricher) Enrich(ctx context.Context, id uuid.UUID, _ string) error {
	if f.calls != nil {
		f.calls <- id
	}
	if f.err != nil {
		return f.err
	}
	return f.store.UpdateEnrichment(ctx, id, "Mining pit near river", models.CategoryMiningPits)
}

type submitResult struct {
	txHash string
	err    error
	// wait blocks the call until closed or the context ends.
	wait chan struct{}
}

type fakeChain struct {
	mu        sync.Mutex
	enabled   bool
	network   int64
	switchErr error
	switches  int
	results   []submitResult
	submitted []common.Hash
	reporters []string
	readFor   []string
}

func newFakeChain(results ...submitResult) *fakeChain {
	return &fakeChain{enabled: true, network: config.ScrollSepoliaChainID, results: results}
}

func (f *fakeChain) Enabled() bool          { return f.enabled }
func (f *fakeChain) ExpectedChainID() int64 { return config.ScrollSepoliaChainID }

func (f *fakeChain) CurrentNetwork(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.network, nil
}

func (f *fakeChain) SwitchToExpectedNetwork(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches++
	if f.switchErr != nil {
		return f.switchErr
	}
	f.network = config.ScrollSepoliaChainID
	return nil
}

func (f *fakeChain) SubmitHash(ctx context.Context, h common.Hash, reporter string) (string, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, h)
	f.reporters = append(f.reporters, reporter)
	var res submitResult
	if len(f.results) > 0 {
		res, f.results = f.results[0], f.results[1:]
	}
	f.mu.Unlock()

	if res.wait != nil {
		select {
		case <-res.wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return res.txHash, res.err
}

func (f *fakeChain) RewardsFor(_ context.Context, address string) (wallet.Rewards, error) {
	f.mu.Lock()
	f.readFor = append(f.readFor, address)
	f.mu.Unlock()
	return wallet.Rewards{Address: address, Amount: big.NewInt(10), Count: big.NewInt(1)}, nil
}

func (f *fakeChain) hashes() []common.Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Hash(nil), f.submitted...)
}

func (f *fakeChain) credited() (reporters, readFor []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reporters...), append([]string(nil), f.readFor...)
}

func strPtr(s string) *string { return &s }

// seededDraft returns a draft store for owner holding a valid step-one form.
func seededDraft(t *testing.T, owner string) (*draft.Store, *draft.MemoryMedium) {
	t.Helper()
	medium := draft.NewMemoryMedium()
	store := draft.NewStore(medium, owner, zerolog.Nop())
	_, err := store.SaveStep(context.Background(), models.DraftPatch{
		Date:        strPtr("2024-05-01"),
		Location:    strPtr("Obuasi"),
		Description: strPtr("Illegal mining near river"),
	})
	require.NoError(t, err)
	return store, medium
}

func newSubmission(owner, walletAddr string, store *fakeStore, d submission.Draft, chain submission.Chain, enricher submission.Enricher) *submission.Submission {
	return submission.New(owner, walletAddr, submission.Deps{
		Store:        store,
		Enricher:     enricher,
		Chain:        chain,
		Draft:        d,
		Logger:       zerolog.Nop(),
		ChainTimeout: time.Second,
	})
}
