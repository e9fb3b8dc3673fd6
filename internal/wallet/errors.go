package wallet

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongNetwork means no configured endpoint serves the expected chain.
	ErrWrongNetwork   = errors.New("wallet: no endpoint on the expected network")
	// ErrNoDestination means no report contract is configured.
	ErrNoDestination  = errors.New("wallet: no report contract configured")
	ErrInvalidAddress = errors.New("wallet: invalid address")
	ErrNotConnected   = errors.New("wallet: not connected")
)

// DuplicateHashError is returned by SubmitHash when the hash is already
// recorded on chain. TxHash is the original transaction when it could be
// recovered from the event log, otherwise empty.
type DuplicateHashError struct {
	ReportHash string
	TxHash     string
}

func (e *DuplicateHashError) Error() string {
	if e.TxHash == "" {
		return fmt.Sprintf("wallet: report hash %s already recorded", e.ReportHash)
	}
	return fmt.Sprintf("wallet: report hash %s already recorded in %s", e.ReportHash, e.TxHash)
}
