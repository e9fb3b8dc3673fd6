package submission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"galamsey-report-backend/internal/models"
	"galamsey-report-backend/internal/validation"
	"galamsey-report-backend/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReportStore persists the report and takes the transaction patch.
type ReportStore interface {
	Insert(ctx context.Context, r models.NewReport) (*models.Report, error)
	AttachTxHash(ctx context.Context, id uuid.UUID, txHash string) error
}

// Enricher classifies a persisted report and writes the AI fields.
type Enricher interface {
	Enrich(ctx context.Context, reportID uuid.UUID, description string) error
}

// Chain records content hashes. *wallet.Client satisfies it.
type Chain interface {
	Enabled() bool
	ExpectedChainID() int64
	CurrentNetwork(ctx context.Context) (int64, error)
	SwitchToExpectedNetwork(ctx context.Context) error
	SubmitHash(ctx context.Context, reportHash common.Hash, reporter string) (string, error)
	RewardsFor(ctx context.Context, address string) (wallet.Rewards, error)
}

// Draft is the owner's draft. *draft.Store satisfies it.
type Draft interface {
	Load(ctx context.Context) models.ReportDraft
	Clear(ctx context.Context) error
}

type Deps struct {
	Store    ReportStore
	Enricher Enricher
	Chain    Chain
	Draft    Draft
	Logger   zerolog.Logger

	// ChainTimeout bounds one pass of the chain leg. Zero means no bound.
	ChainTimeout time.Duration
	// EnrichTimeout bounds the background AI call.
	EnrichTimeout time.Duration
	// PatchTimeout bounds best-effort writes made after the outcome is known.
	PatchTimeout time.Duration
}

// Submission drives one report from draft to durable record and, when a
// wallet is connected, to an on-chain hash.
type Submission struct {
	id     uuid.UUID
	deps   Deps
	owner  string
	wallet string
	logger zerolog.Logger

	life    context.Context
	discard context.CancelFunc
	enrich  sync.WaitGroup

	mu            sync.Mutex
	state         State
	started       bool
	discarded     bool
	chainInFlight bool
	date          string
	location      string
	reportHash    common.Hash
	hashed        bool
}

// New creates an idle submission for owner. walletAddress is the address
// connected at submission time, or "".
func New(owner, walletAddress string, deps Deps) *Submission {
	if deps.PatchTimeout == 0 {
		deps.PatchTimeout = 10 * time.Second
	}
	id := uuid.New()
	life, cancel := context.WithCancel(context.Background())
	return &Submission{
		id:     id,
		deps:   deps,
		owner:  owner,
		wallet: walletAddress,
		logger: deps.Logger.With().
			Str("component", "submission").
			Str("submission_id", id.String()).
			Str("owner", owner).
			Logger(),
		life:    life,
		discard: cancel,
		state:   State{ID: id, Status: StatusIdle},
	}
}

func (s *Submission) ID() uuid.UUID {
	return s.id
}

func (s *Submission) Owner() string {
	return s.owner
}

// Snapshot returns a copy of the current state.
func (s *Submission) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Rewards != nil {
		r := *st.Rewards
		st.Rewards = &r
	}
	return st
}

// Alive is false once the submission has been discarded.
func (s *Submission) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.discarded
}

// Discard tears the submission down. In-flight calls are cancelled and their
// results are dropped. Background enrichment of an already persisted report
// keeps running.
func (s *Submission) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
	s.discard()
}

// Wait blocks until background enrichment has finished.
func (s *Submission) Wait() {
	s.enrich.Wait()
}

// Start runs the submission once. Later calls return ErrAlreadyStarted
// without doing any work. The outcome is reported through Snapshot, not the
// returned error.
func (s *Submission) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return ErrDiscarded
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.state.Status = StatusPersisting
	s.mu.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	report, ok := s.persist(ctx)
	if !ok {
		return nil
	}

	if !s.chainWanted() {
		s.update(func(st *State) {
			st.Status = StatusSucceededNoChain
		})
		s.logger.Info().Str("report_id", report.ID.String()).Msg("report submitted without chain recording")
		return nil
	}

	s.mu.Lock()
	s.chainInFlight = true
	s.mu.Unlock()
	s.recordChain(ctx)
	return nil
}

// Retry restarts the whole flow after a failed persistence. The draft was
// kept, so the same content is validated and submitted again.
func (s *Submission) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return ErrDiscarded
	}
	if s.state.Status != StatusFailed {
		s.mu.Unlock()
		return ErrRetryNotAllowed
	}
	s.state = State{ID: s.id, Status: StatusIdle}
	s.started = false
	s.mu.Unlock()

	return s.Start(ctx)
}

// RetryChain re-runs only the chain leg for the report that was already
// persisted. It never writes the report again. walletAddress is the address
// connected now; it must still be the one the report was stored with.
func (s *Submission) RetryChain(ctx context.Context, walletAddress string) error {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return ErrDiscarded
	}
	if s.chainInFlight {
		s.mu.Unlock()
		return ErrRetryInFlight
	}
	if s.state.Status != StatusPartiallySucceeded {
		s.mu.Unlock()
		return ErrRetryNotAllowed
	}
	if walletAddress == "" {
		s.mu.Unlock()
		return ErrNoWallet
	}
	if !strings.EqualFold(walletAddress, s.wallet) {
		s.mu.Unlock()
		return ErrWalletChanged
	}
	s.chainInFlight = true
	s.mu.Unlock()

	ctx, cancel := s.bind(ctx)
	defer cancel()

	s.logger.Info().Str("report_id", s.Snapshot().ReportID.String()).Msg("retrying chain recording")
	s.recordChain(ctx)
	return nil
}

func (s *Submission) persist(ctx context.Context) (*models.Report, bool) {
	d := s.deps.Draft.Load(ctx)
	d.WalletAddress = s.wallet

	if v := validation.ValidateSubmission(d, s.owner); v != nil {
		s.logger.Info().Str("code", string(v.Code)).Msg("submission rejected by validation")
		s.update(func(st *State) {
			st.Status = StatusFailed
			st.Code = string(v.Code)
			st.LastError = v.Message
		})
		return nil, false
	}
	owner, err := uuid.Parse(s.owner)
	if err != nil {
		s.failPersist(err)
		return nil, false
	}

	d.Location = strings.TrimSpace(d.Location)
	d.Description = strings.TrimSpace(d.Description)

	report, err := s.deps.Store.Insert(ctx, models.NewReport{
		UserID:        owner,
		Date:          d.Date,
		Location:      d.Location,
		Description:   d.Description,
		GPS:           d.GPS,
		GPSAddress:    d.GPSAddress,
		Photos:        d.Photos,
		WalletAddress: d.WalletAddress,
	})
	if err != nil {
		s.failPersist(err)
		return nil, false
	}

	// The report is durable from here on, so the draft goes regardless of
	// what happens to this submission afterwards.
	if err := s.deps.Draft.Clear(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear draft after submission")
	}
	s.startEnrichment(ctx, report.ID, d.Description)

	s.mu.Lock()
	s.date = d.Date
	s.location = d.Location
	s.mu.Unlock()

	ok := s.update(func(st *State) {
		st.ReportID = report.ID
		st.DBSuccess = true
	})
	return report, ok
}

func (s *Submission) failPersist(err error) {
	s.logger.Error().Err(err).Msg("failed to persist report")
	s.update(func(st *State) {
		st.Status = StatusFailed
		st.Code = CodePersistFailed
		st.LastError = "Failed to submit report. Please try again."
	})
}

func (s *Submission) startEnrichment(ctx context.Context, reportID uuid.UUID, description string) {
	if s.deps.Enricher == nil {
		return
	}
	s.enrich.Add(1)
	go func() {
		defer s.enrich.Done()

		ectx := context.WithoutCancel(ctx)
		if s.deps.EnrichTimeout > 0 {
			var cancel context.CancelFunc
			ectx, cancel = context.WithTimeout(ectx, s.deps.EnrichTimeout)
			defer cancel()
		}
		if err := s.deps.Enricher.Enrich(ectx, reportID, description); err != nil {
			s.logger.Warn().Err(err).Str("report_id", reportID.String()).Msg("AI enrichment failed")
		}
	}()
}

func (s *Submission) chainWanted() bool {
	return s.wallet != "" && s.deps.Chain != nil && s.deps.Chain.Enabled()
}

// recordChain runs awaiting-wallet then recording-chain and settles on
// succeeded or partially-succeeded. The caller has set chainInFlight.
func (s *Submission) recordChain(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.chainInFlight = false
		s.mu.Unlock()
	}()

	if s.deps.ChainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deps.ChainTimeout)
		defer cancel()
	}

	if !s.update(func(st *State) { st.Status = StatusAwaitingWallet }) {
		return
	}

	network, err := s.deps.Chain.CurrentNetwork(ctx)
	if err != nil {
		s.failChain(ctx, err)
		return
	}
	if network != s.deps.Chain.ExpectedChainID() {
		s.logger.Info().
			Int64("chain_id", network).
			Int64("expected_chain_id", s.deps.Chain.ExpectedChainID()).
			Msg("switching network before recording")
		if err := s.deps.Chain.SwitchToExpectedNetwork(ctx); err != nil {
			s.failChain(ctx, err)
			return
		}
	}

	hash := s.contentHash()
	if !s.update(func(st *State) {
		st.Status = StatusRecordingChain
		st.ReportHash = hash.Hex()
	}) {
		return
	}

	txHash, err := s.deps.Chain.SubmitHash(ctx, hash, s.wallet)
	var dup *wallet.DuplicateHashError
	if errors.As(err, &dup) {
		s.logger.Info().Str("tx_hash", dup.TxHash).Msg("report hash already on chain, treating as recorded")
		txHash, err = dup.TxHash, nil
	}
	if err != nil {
		s.failChain(ctx, err)
		return
	}
	if !s.Alive() {
		return
	}

	reportID := s.Snapshot().ReportID
	patchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.PatchTimeout)
	defer cancel()
	if txHash != "" {
		if err := s.deps.Store.AttachTxHash(patchCtx, reportID, txHash); err != nil {
			s.logger.Warn().Err(err).Str("tx_hash", txHash).Msg("failed to attach transaction to report")
		}
	}
	var rewards *wallet.Rewards
	if r, err := s.deps.Chain.RewardsFor(patchCtx, s.wallet); err != nil {
		s.logger.Warn().Err(err).Msg("failed to read rewards")
	} else {
		rewards = &r
	}

	s.update(func(st *State) {
		st.Status = StatusSucceeded
		st.ChainSuccess = true
		st.TxHash = txHash
		st.Rewards = rewards
		st.LastError = ""
		st.Code = ""
	})
	s.logger.Info().Str("report_id", reportID.String()).Str("tx_hash", txHash).Msg("report recorded on chain")
}

// contentHash is computed on first use and reused by every retry.
func (s *Submission) contentHash() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hashed {
		s.reportHash = ContentHash(s.state.ReportID, s.date, s.location, time.Now().UnixMilli())
		s.hashed = true
	}
	return s.reportHash
}

func (s *Submission) failChain(ctx context.Context, err error) {
	code, msg := CodeChainFailed, "Blockchain recording failed. Your report was saved, you can retry."
	switch {
	case errors.Is(err, wallet.ErrWrongNetwork):
		code, msg = CodeWrongNetwork, "Could not switch to the expected blockchain network. Your report was saved, you can retry."
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		code, msg = CodeChainTimeout, "Blockchain recording timed out. Your report was saved, you can retry."
	}
	s.logger.Warn().Err(err).Str("code", code).Msg("chain recording failed")
	s.update(func(st *State) {
		st.Status = StatusPartiallySucceeded
		st.Code = code
		st.LastError = msg
	})
}

// update applies fn unless the submission was discarded. It reports whether
// fn ran.
func (s *Submission) update(fn func(*State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return false
	}
	fn(&s.state)
	return true
}

// bind returns ctx cancelled also on Discard.
func (s *Submission) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
