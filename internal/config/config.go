package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ScrollSepoliaChainID = 534351
	ScrollSepoliaRPCURL  = "https://sepolia-rpc.scroll.io"
)

type Config struct {
	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Drafts
	MongoURI string
	MongoDB  string
	DraftTTL time.Duration

	// AI classification
	GeminiAPIKey string
	GeminiModel  string
	AITimeout    time.Duration

	// Chain recording
	Chain ChainConfig

	// Geocoding
	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderDebounce  time.Duration

	// Server
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string
}

// ChainConfig is handed to the wallet client and the submission orchestrator.
type ChainConfig struct {
	RPCURLs           []string
	ChainID           int64
	ContractAddress   string
	RelayerPrivateKey string
	Timeout           time.Duration
	ExplorerURL       string
}

// RecordingEnabled reports whether a destination contract is configured.
func (c ChainConfig) RecordingEnabled() bool {
	return c.ContractAddress != ""
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "report-evidence"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		MongoURI: getEnv("MONGO_URI", ""),
		MongoDB:  getEnv("MONGO_DB", "galamsey"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		Chain: ChainConfig{
			RPCURLs:           splitList(getEnv("CHAIN_RPC_URLS", ScrollSepoliaRPCURL)),
			ContractAddress:   getEnv("REPORT_CONTRACT_ADDRESS", ""),
			RelayerPrivateKey: strings.TrimPrefix(getEnv("RELAYER_PRIVATE_KEY", ""), "0x"),
			ExplorerURL:       strings.TrimSuffix(getEnv("CHAIN_EXPLORER_URL", "https://sepolia.scrollscan.com"), "/"),
		},

		GeocoderBaseURL:   getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "galamsey-report-backend/1.0"),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.DraftTTL, err = getDuration("DRAFT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AITimeout, err = getDuration("AI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Chain.Timeout, err = getDuration("CHAIN_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeocoderDebounce, err = getDuration("GEOCODER_DEBOUNCE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	chainID, err := strconv.ParseInt(getEnv("CHAIN_ID", strconv.Itoa(ScrollSepoliaChainID)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAIN_ID: %w", err)
	}
	cfg.Chain.ChainID = chainID

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.Chain.RecordingEnabled() {
		if len(c.Chain.RPCURLs) == 0 {
			return fmt.Errorf("CHAIN_RPC_URLS is required when REPORT_CONTRACT_ADDRESS is set")
		}
		if c.Chain.RelayerPrivateKey == "" {
			return fmt.Errorf("RELAYER_PRIVATE_KEY is required when REPORT_CONTRACT_ADDRESS is set")
		}
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
