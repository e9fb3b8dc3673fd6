package submission

import (
	"errors"

	"galamsey-report-backend/internal/wallet"
	"github.com/google/uuid"
)

type Status string

const (
	StatusIdle               Status = "idle"
	StatusPersisting         Status = "persisting"
	StatusAwaitingWallet     Status = "awaiting-wallet"
	StatusRecordingChain     Status = "recording-chain"
	StatusSucceeded          Status = "succeeded"
	StatusSucceededNoChain   Status = "succeeded-no-chain"
	StatusPartiallySucceeded Status = "partially-succeeded"
	StatusFailed             Status = "failed"
)

// Settled reports whether no work is running for this status. Only the
// partial and failed outcomes can be left again, through a retry.
func (s Status) Settled() bool {
	switch s {
	case StatusSucceeded, StatusSucceededNoChain, StatusPartiallySucceeded, StatusFailed:
		return true
	}
	return false
}

// Error codes carried in State.Code next to the user-facing LastError.
// Validation failures use the validator's own codes.
const (
	CodePersistFailed = "persist_failed"
	CodeWrongNetwork  = "wrong_network"
	CodeChainTimeout  = "chain_timeout"
	CodeChainFailed   = "chain_failed"
)

var (
	ErrAlreadyStarted  = errors.New("submission already started")
	ErrRetryNotAllowed = errors.New("retry not allowed in the current state")
	ErrRetryInFlight   = errors.New("chain recording already in progress")
	ErrDiscarded       = errors.New("submission discarded")
	ErrNoWallet        = errors.New("no wallet connected")
	ErrWalletChanged   = errors.New("connected wallet differs from the one the report was stored with")
)

// State is a point-in-time copy of a submission. DBSuccess and ChainSuccess
// never go back to false once set.
type State struct {
	ID           uuid.UUID
	Status       Status
	ReportID     uuid.UUID
	DBSuccess    bool
	ChainSuccess bool
	ReportHash   string
	TxHash       string
	LastError    string
	Code         string
	Rewards      *wallet.Rewards
}
