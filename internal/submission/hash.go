package submission

import (
	"bytes"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// hashedFields is everything that goes on chain. Description, photos and GPS
// data stay off it.
type hashedFields struct {
	ReportID  string `json:"reportId"`
	Date      string `json:"date"`
	Location  string `json:"location"`
	Timestamp int64  `json:"timestamp"`
}

// ContentHash is keccak256 over the compact JSON of reportId, date, location
// and a millisecond timestamp, in that key order.
func ContentHash(reportID uuid.UUID, date, location string, timestampMs int64) common.Hash {
	return crypto.Keccak256Hash(hashPayload(reportID, date, location, timestampMs))
}

func hashPayload(reportID uuid.UUID, date, location string, timestampMs int64) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a flat struct of strings and an int cannot fail.
	_ = enc.Encode(hashedFields{
		ReportID:  reportID.String(),
		Date:      date,
		Location:  location,
		Timestamp: timestampMs,
	})
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
