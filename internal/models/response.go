package models

import "time"

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type CategoryResponse struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

type PhotoResponse struct {
	Index       int    `json:"index"`
	Count       int    `json:"count"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
	ArchiveURL  string `json:"archive_url,omitempty"`
}

type WalletResponse struct {
	Address          string `json:"address"`
	RecordingEnabled bool   `json:"recording_enabled"`
	ExpectedChainID  int64  `json:"expected_chain_id"`
	ChainID          int64  `json:"chain_id,omitempty"`
	RewardPerReport  string `json:"reward_per_report,omitempty"`
}

// RewardsResponse carries raw token units as decimal strings.
type RewardsResponse struct {
	Address     string `json:"address"`
	Amount      string `json:"amount"`
	AmountEther string `json:"amount_ether"`
	ReportCount string `json:"report_count"`
}

type SubmissionResponse struct {
	ID            string           `json:"submission_id"`
	Status        string           `json:"status"`
	ReportID      string           `json:"report_id,omitempty"`
	DBSuccess     bool             `json:"db_success"`
	ChainSuccess  bool             `json:"chain_success"`
	ReportHash    string           `json:"report_hash,omitempty"`
	TxHash        string           `json:"tx_hash,omitempty"`
	ExplorerURL   string           `json:"explorer_url,omitempty"`
	Error         string           `json:"error,omitempty"`
	Code          string           `json:"code,omitempty"`
	CanRetry      bool             `json:"can_retry"`
	CanRetryChain bool             `json:"can_retry_chain"`
	Rewards       *RewardsResponse `json:"rewards,omitempty"`
}

type ReportResponse struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Date           string       `json:"date"`
	Location       string       `json:"location"`
	Description    string       `json:"description"`
	GPSCoordinates *Coordinates `json:"gps_coordinates,omitempty"`
	GPSAddress     string       `json:"gps_address,omitempty"`
	Photos         []string     `json:"photos"`
	WalletAddress  string       `json:"wallet_address,omitempty"`
	AISummary      string       `json:"ai_summary,omitempty"`
	AICategory     string       `json:"ai_category,omitempty"`
	Processed      bool         `json:"processed"`
	ScrollTxHash   string       `json:"scroll_tx_hash,omitempty"`
	ExplorerURL    string       `json:"explorer_url,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type ReportListResponse struct {
	Reports []ReportResponse `json:"reports"`
	Count   int              `json:"count"`
}
