package submission_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/submission"
	"galamsey-report-backend/internal/validation"
	"galamsey-report-backend/internal/wallet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertDraftCleared(t *testing.T, d submission.Draft) {
	t.Helper()
	assert.Equal(t, models.ReportDraft{}, d.Load(context.Background()))
}

func assertDraftKept(t *testing.T, d submission.Draft) {
	t.Helper()
	assert.Equal(t, "Obuasi", d.Load(context.Background()).Location)
}

func TestStart_WithoutWallet(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	chain := newFakeChain()

	sub := newSubmission(owner, "", store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceededNoChain, st.Status)
	assert.True(t, st.DBSuccess)
	assert.False(t, st.ChainSuccess)
	assert.NotEqual(t, uuid.Nil, st.ReportID)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 1, store.insertCount())
	assert.Empty(t, chain.hashes())
	assertDraftCleared(t, d)
}

func TestStart_RecordingDisabled(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	chain := newFakeChain()
	chain.enabled = false

	sub := newSubmission(owner, testWallet, newFakeStore(), d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	assert.Equal(t, submission.StatusSucceededNoChain, sub.Snapshot().Status)
	assert.Empty(t, chain.hashes())
}

func TestStart_ValidationFailure(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	_, err := d.SaveStep(context.Background(), models.DraftPatch{Description: strPtr("too short")})
	require.NoError(t, err)
	store := newFakeStore()

	sub := newSubmission(owner, "", store, d, nil, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusFailed, st.Status)
	assert.Equal(t, string(validation.CodeDescriptionTooShort), st.Code)
	assert.NotEmpty(t, st.LastError)
	assert.False(t, st.DBSuccess)
	assert.Equal(t, 0, store.insertCount())
	assert.Equal(t, "too short", d.Load(context.Background()).Description)
}

func TestStart_TooManyPhotosMakesNoCalls(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	photos := make([]string, 11)
	_, err := d.SaveStep(context.Background(), models.DraftPatch{Photos: &photos})
	require.NoError(t, err)
	store := newFakeStore()
	chain := newFakeChain()

	sub := newSubmission(owner, testWallet, store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	assert.Equal(t, string(validation.CodeTooManyPhotos), sub.Snapshot().Code)
	assert.Equal(t, 0, store.insertCount())
	assert.Empty(t, chain.hashes())
}

func TestStart_PersistFailureThenRetry(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	store.insertErr = errors.New("connection refused")

	sub := newSubmission(owner, "", store, d, nil, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusFailed, st.Status)
	assert.Equal(t, submission.CodePersistFailed, st.Code)
	assert.NotContains(t, st.LastError, "connection refused")
	assertDraftKept(t, d)

	store.mu.Lock()
	store.insertErr = nil
	store.mu.Unlock()

	require.NoError(t, sub.Retry(context.Background()))
	st = sub.Snapshot()
	assert.Equal(t, submission.StatusSucceededNoChain, st.Status)
	assert.Equal(t, sub.ID(), st.ID)
	assert.Empty(t, st.LastError)
	assert.Equal(t, 2, store.insertCount())
	assertDraftCleared(t, d)
}

func TestStart_IsOneShot(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	sub := newSubmission(owner, "", store, d, nil, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sub.Start(context.Background())
			if err == nil {
				mu.Lock()
				started++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, submission.ErrAlreadyStarted)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, store.insertCount())
	assert.ErrorIs(t, sub.Start(context.Background()), submission.ErrAlreadyStarted)
}

func TestStart_RecordsOnChain(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	chain := newFakeChain(submitResult{txHash: "0xfeed"})

	sub := newSubmission(owner, testWallet, store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceeded, st.Status)
	assert.True(t, st.DBSuccess)
	assert.True(t, st.ChainSuccess)
	assert.Equal(t, "0xfeed", st.TxHash)
	require.NotNil(t, st.Rewards)
	assert.Equal(t, "1", st.Rewards.Count.String())

	rec := store.get(st.ReportID)
	assert.Equal(t, "0xfeed", rec.ScrollTxHash.String)
	require.Len(t, chain.hashes(), 1)
	assert.Equal(t, chain.hashes()[0].Hex(), st.ReportHash)
	assertDraftCleared(t, d)

	// The reward is read for the same address the transaction credited.
	reporters, readFor := chain.credited()
	assert.Equal(t, []string{testWallet}, reporters)
	assert.Equal(t, reporters, readFor)
	assert.Equal(t, testWallet, rec.WalletAddress.String)
}

func TestStart_PersistsTrimmedFields(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	_, err := d.SaveStep(context.Background(), models.DraftPatch{
		Location:    strPtr("  Obuasi \n"),
		Description: strPtr("\t Illegal mining near river   "),
	})
	require.NoError(t, err)
	store := newFakeStore()

	sub := newSubmission(owner, "", store, d, nil, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	require.Equal(t, submission.StatusSucceededNoChain, st.Status)
	rec := store.get(st.ReportID)
	assert.Equal(t, "Obuasi", rec.Location)
	assert.Equal(t, "Illegal mining near river", rec.Description)
}

func TestStart_AttachFailureStillSucceeds(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	store.attachErr = errors.New("timeout")

	sub := newSubmission(owner, testWallet, store, d, newFakeChain(submitResult{txHash: "0xfeed"}), nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceeded, st.Status)
	assert.Equal(t, "0xfeed", st.TxHash)
}

func TestStart_ChainTimeoutThenRetry(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	chain := newFakeChain(
		submitResult{err: context.DeadlineExceeded},
		submitResult{txHash: "0xbeef"},
	)

	sub := newSubmission(owner, testWallet, store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusPartiallySucceeded, st.Status)
	assert.True(t, st.DBSuccess)
	assert.False(t, st.ChainSuccess)
	assert.Equal(t, submission.CodeChainTimeout, st.Code)
	assert.NotEmpty(t, st.LastError)
	assertDraftCleared(t, d)
	reportID := st.ReportID

	require.NoError(t, sub.RetryChain(context.Background(), testWallet))

	st = sub.Snapshot()
	assert.Equal(t, submission.StatusSucceeded, st.Status)
	assert.True(t, st.DBSuccess)
	assert.True(t, st.ChainSuccess)
	assert.Equal(t, reportID, st.ReportID)
	assert.Equal(t, "0xbeef", st.TxHash)
	assert.Empty(t, st.LastError)
	assert.Empty(t, st.Code)
	assert.Equal(t, 1, store.insertCount())

	hashes := chain.hashes()
	require.Len(t, hashes, 2)
	assert.Equal(t, hashes[0], hashes[1])
}

func TestRetryChain_RequiresTheSubmittingWallet(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	chain := newFakeChain(
		submitResult{err: errors.New("rpc down")},
		submitResult{txHash: "0xbeef"},
	)

	sub := newSubmission(owner, testWallet, store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))
	require.Equal(t, submission.StatusPartiallySucceeded, sub.Snapshot().Status)

	assert.ErrorIs(t, sub.RetryChain(context.Background(), ""), submission.ErrNoWallet)
	other := "0x0000000000000000000000000000000000000001"
	assert.ErrorIs(t, sub.RetryChain(context.Background(), other), submission.ErrWalletChanged)
	assert.Len(t, chain.hashes(), 1)
	assert.Equal(t, submission.StatusPartiallySucceeded, sub.Snapshot().Status)

	require.NoError(t, sub.RetryChain(context.Background(), strings.ToLower(testWallet)))
	assert.Equal(t, submission.StatusSucceeded, sub.Snapshot().Status)
	reporters, _ := chain.credited()
	assert.Equal(t, []string{testWallet, testWallet}, reporters)
}

func TestStart_ChainTimeoutIsEnforced(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	chain := newFakeChain(submitResult{wait: make(chan struct{})})

	sub := submission.New(owner, testWallet, submission.Deps{
		Store:        newFakeStore(),
		Chain:        chain,
		Draft:        d,
		Logger:       zerolog.Nop(),
		ChainTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusPartiallySucceeded, st.Status)
	assert.Equal(t, submission.CodeChainTimeout, st.Code)
}

func TestStart_DuplicateHashCountsAsRecorded(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	chain := newFakeChain(submitResult{err: &wallet.DuplicateHashError{ReportHash: "0x01", TxHash: "0xoriginal"}})

	sub := newSubmission(owner, testWallet, store, d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceeded, st.Status)
	assert.True(t, st.ChainSuccess)
	assert.Equal(t, "0xoriginal", st.TxHash)
	assert.Equal(t, "0xoriginal", store.get(st.ReportID).ScrollTxHash.String)
}

func TestStart_SwitchesNetwork(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	chain := newFakeChain(submitResult{txHash: "0xfeed"})
	chain.network = 1

	sub := newSubmission(owner, testWallet, newFakeStore(), d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	assert.Equal(t, submission.StatusSucceeded, sub.Snapshot().Status)
	assert.Equal(t, 1, chain.switches)
}

func TestStart_SwitchRejected(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	chain := newFakeChain()
	chain.network = 1
	chain.switchErr = wallet.ErrWrongNetwork

	sub := newSubmission(owner, testWallet, newFakeStore(), d, chain, nil)
	require.NoError(t, sub.Start(context.Background()))

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusPartiallySucceeded, st.Status)
	assert.Equal(t, submission.CodeWrongNetwork, st.Code)
	assert.True(t, st.DBSuccess)
	assert.Empty(t, chain.hashes())
}

func TestStart_EnrichmentFailureIsSilent(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	enricher := &fakeEnricher{store: store, err: errors.New("network unreachable")}

	sub := newSubmission(owner, "", store, d, nil, enricher)
	require.NoError(t, sub.Start(context.Background()))
	sub.Wait()

	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceededNoChain, st.Status)
	assert.Empty(t, st.LastError)

	rec := store.get(st.ReportID)
	assert.False(t, rec.AISummary.Valid)
	assert.False(t, rec.AICategory.Valid)
}

func TestStart_EnrichmentDoesNotBlockOutcome(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	enricher := &fakeEnricher{store: store, calls: make(chan uuid.UUID)}

	sub := newSubmission(owner, "", store, d, nil, enricher)
	require.NoError(t, sub.Start(context.Background()))

	// The enricher is still parked on its channel.
	st := sub.Snapshot()
	assert.Equal(t, submission.StatusSucceededNoChain, st.Status)

	assert.Equal(t, st.ReportID, <-enricher.calls)
	sub.Wait()
	assert.Equal(t, models.CategoryMiningPits, store.get(st.ReportID).AICategory.String)
}

func TestEnrichmentAndChainPatchesAreDisjoint(t *testing.T) {
	owner := uuid.NewString()
	d, _ := seededDraft(t, owner)
	store := newFakeStore()
	enricher := &fakeEnricher{store: store}

	sub := newSubmission(owner, testWallet, store, d, newFakeChain(submitResult{txHash: "0xfeed"}), enricher)
	require.NoError(t, sub.Start(context.Background()))
	sub.Wait()

	rec := store.get(sub.Snapshot().ReportID)
	assert.Equal(t, "0xfeed", rec.ScrollTxHash.String)
	assert.Equal(t, "Mining pit near river", rec.AISummary.String)
	assert.Equal(t, models.CategoryMiningPits, rec.AICategory.String)
	assert.Equal(t, "Illegal mining near river", rec.Description)
}

func TestRetryChain_Guards(t *testing.T) {
	t.Run("not after full success", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		sub := newSubmission(owner, "", newFakeStore(), d, nil, nil)
		require.NoError(t, sub.Start(context.Background()))

		assert.ErrorIs(t, sub.RetryChain(context.Background(), testWallet), submission.ErrRetryNotAllowed)
	})

	t.Run("not before start", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		sub := newSubmission(owner, "", newFakeStore(), d, nil, nil)

		assert.ErrorIs(t, sub.RetryChain(context.Background(), testWallet), submission.ErrRetryNotAllowed)
		assert.ErrorIs(t, sub.Retry(context.Background()), submission.ErrRetryNotAllowed)
	})

	t.Run("whole-flow retry not after partial success", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		store := newFakeStore()
		sub := newSubmission(owner, testWallet, store, d, newFakeChain(submitResult{err: errors.New("rpc down")}), nil)
		require.NoError(t, sub.Start(context.Background()))
		require.Equal(t, submission.StatusPartiallySucceeded, sub.Snapshot().Status)

		assert.ErrorIs(t, sub.Retry(context.Background()), submission.ErrRetryNotAllowed)
		assert.Equal(t, 1, store.insertCount())
	})

	t.Run("serialized while in flight", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		release := make(chan struct{})
		chain := newFakeChain(
			submitResult{err: errors.New("rpc down")},
			submitResult{txHash: "0xfeed", wait: release},
		)
		sub := newSubmission(owner, testWallet, newFakeStore(), d, chain, nil)
		require.NoError(t, sub.Start(context.Background()))

		done := make(chan error, 1)
		go func() { done <- sub.RetryChain(context.Background(), testWallet) }()

		require.Eventually(t, func() bool {
			return sub.Snapshot().Status == submission.StatusRecordingChain
		}, time.Second, time.Millisecond)
		assert.ErrorIs(t, sub.RetryChain(context.Background(), testWallet), submission.ErrRetryInFlight)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, submission.StatusSucceeded, sub.Snapshot().Status)
		assert.Len(t, chain.hashes(), 2)
	})
}

func TestDiscard(t *testing.T) {
	t.Run("drops in-flight persistence", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		store := newFakeStore()
		store.block = make(chan struct{})
		sub := newSubmission(owner, "", store, d, nil, nil)

		done := make(chan error, 1)
		go func() { done <- sub.Start(context.Background()) }()

		require.Eventually(t, func() bool {
			return sub.Snapshot().Status == submission.StatusPersisting
		}, time.Second, time.Millisecond)
		sub.Discard()
		require.NoError(t, <-done)

		assert.False(t, sub.Alive())
		assert.Equal(t, submission.StatusPersisting, sub.Snapshot().Status)
		assert.Equal(t, 0, store.insertCount())
		assertDraftKept(t, d)
	})

	t.Run("rejects further work", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		sub := newSubmission(owner, "", newFakeStore(), d, nil, nil)
		sub.Discard()

		assert.ErrorIs(t, sub.Start(context.Background()), submission.ErrDiscarded)
		assert.ErrorIs(t, sub.RetryChain(context.Background(), testWallet), submission.ErrDiscarded)
		assert.Equal(t, submission.StatusIdle, sub.Snapshot().Status)
	})

	t.Run("chain result after teardown is ignored", func(t *testing.T) {
		owner := uuid.NewString()
		d, _ := seededDraft(t, owner)
		release := make(chan struct{})
		store := newFakeStore()
		chain := newFakeChain(submitResult{txHash: "0xfeed", wait: release})
		sub := newSubmission(owner, testWallet, store, d, chain, nil)

		done := make(chan error, 1)
		go func() { done <- sub.Start(context.Background()) }()

		require.Eventually(t, func() bool {
			return sub.Snapshot().Status == submission.StatusRecordingChain
		}, time.Second, time.Millisecond)
		sub.Discard()
		require.NoError(t, <-done)

		st := sub.Snapshot()
		assert.Equal(t, submission.StatusRecordingChain, st.Status)
		assert.False(t, st.ChainSuccess)
		assert.False(t, store.get(st.ReportID).ScrollTxHash.Valid)
		// The report itself landed, so the draft is gone.
		assertDraftCleared(t, d)
	})
}
