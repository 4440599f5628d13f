package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/transferindex/service/indexer"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSolanaRPCURL  = "https://api.mainnet-beta.solana.com"
	DefaultWalletAddress = "7cMEhpt9y3inBNVv8fNnuaEbx7hKHZnLvR1KWKKxuDDU"
	// DefaultTokenMint is the USDC mint on mainnet.
	DefaultTokenMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Config holds all application configuration loaded from environment variables.
// Values may be seeded from a YAML file named by CONFIG_FILE; the environment wins.
//
// Wallet and mint are not checked here. A malformed identifier fails the indexing
// run, which degrades to an empty result rather than stopping the server.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string
	LogFormat  string

	// Solana configuration
	SolanaRPCURLs []string
	RPCTimeout    time.Duration

	// Indexing target
	WalletAddress string
	TokenMint     string

	// Indexing behavior
	IndexWindow            time.Duration
	SignaturePageLimit     int
	FetchConcurrency       int
	MissingTimestampPolicy indexer.MissingTimestampPolicy
	ExtractionMode         indexer.ExtractionMode

	// NATS configuration (empty disables publishing)
	NATSURL string
}

// fileConfig mirrors the environment variables as a YAML document.
type fileConfig struct {
	ServerAddr             string `yaml:"server_addr"`
	LogLevel               string `yaml:"log_level"`
	LogFormat              string `yaml:"log_format"`
	SolanaRPCURL           string `yaml:"solana_rpc_url"`
	RPCTimeout             string `yaml:"rpc_timeout"`
	WalletAddress          string `yaml:"wallet_address"`
	TokenMint              string `yaml:"token_mint"`
	IndexWindow            string `yaml:"index_window"`
	SignaturePageLimit     string `yaml:"signature_page_limit"`
	FetchConcurrency       string `yaml:"fetch_concurrency"`
	MissingTimestampPolicy string `yaml:"missing_timestamp_policy"`
	ExtractionMode         string `yaml:"extraction_mode"`
	NATSURL                string `yaml:"nats_url"`
}

func (f fileConfig) values() map[string]string {
	return map[string]string{
		"SERVER_ADDR":              f.ServerAddr,
		"LOG_LEVEL":                f.LogLevel,
		"LOG_FORMAT":               f.LogFormat,
		"SOLANA_RPC_URL":           f.SolanaRPCURL,
		"RPC_TIMEOUT":              f.RPCTimeout,
		"WALLET_ADDRESS":           f.WalletAddress,
		"TOKEN_MINT":               f.TokenMint,
		"INDEX_WINDOW":             f.IndexWindow,
		"SIGNATURE_PAGE_LIMIT":     f.SignaturePageLimit,
		"FETCH_CONCURRENCY":        f.FetchConcurrency,
		"MISSING_TIMESTAMP_POLICY": f.MissingTimestampPolicy,
		"EXTRACTION_MODE":          f.ExtractionMode,
		"NATS_URL":                 f.NATSURL,
	}
}

// source resolves a key from the environment first, then the config file.
type source map[string]string

func (s source) get(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s[key]
}

// Load reads configuration and validates all fields.
// Returns an error listing every invalid setting.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src = file.values()
	}

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = src.getOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = src.getOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = src.getOrDefault("LOG_FORMAT", "json")

	// Solana configuration
	cfg.SolanaRPCURLs = splitList(src.getOrDefault("SOLANA_RPC_URL", DefaultSolanaRPCURL))
	rpcTimeout, err := src.parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	cfg.WalletAddress = src.getOrDefault("WALLET_ADDRESS", DefaultWalletAddress)
	cfg.TokenMint = src.getOrDefault("TOKEN_MINT", DefaultTokenMint)

	// Indexing behavior
	window, err := src.parseDuration("INDEX_WINDOW", "24h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.IndexWindow = window
	}

	pageLimit, err := src.parseInt("SIGNATURE_PAGE_LIMIT", 1000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignaturePageLimit = pageLimit
	}

	concurrency, err := src.parseInt("FETCH_CONCURRENCY", indexer.DefaultConcurrency)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.FetchConcurrency = concurrency
	}

	policy, err := indexer.ParseMissingTimestampPolicy(strings.ToLower(src.get("MISSING_TIMESTAMP_POLICY")))
	if err != nil {
		errs = append(errs, fmt.Errorf("MISSING_TIMESTAMP_POLICY: %w", err))
	} else {
		cfg.MissingTimestampPolicy = policy
	}

	mode, err := indexer.ParseExtractionMode(strings.ToLower(src.get("EXTRACTION_MODE")))
	if err != nil {
		errs = append(errs, fmt.Errorf("EXTRACTION_MODE: %w", err))
	} else {
		cfg.ExtractionMode = mode
	}

	cfg.NATSURL = src.get("NATS_URL")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.WalletAddress == "" {
		errs = append(errs, fmt.Errorf("WalletAddress is required"))
	}

	if c.TokenMint == "" {
		errs = append(errs, fmt.Errorf("TokenMint is required"))
	}

	if c.IndexWindow <= 0 {
		errs = append(errs, fmt.Errorf("IndexWindow must be positive"))
	}

	if c.SignaturePageLimit < 1 || c.SignaturePageLimit > 1000 {
		errs = append(errs, fmt.Errorf("SignaturePageLimit must be between 1 and 1000, got %d", c.SignaturePageLimit))
	}

	if c.FetchConcurrency < 1 || c.FetchConcurrency > indexer.MaxConcurrency {
		errs = append(errs, fmt.Errorf("FetchConcurrency must be between 1 and %d, got %d", indexer.MaxConcurrency, c.FetchConcurrency))
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LogFormat must be json or text, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// IndexerOptions converts the indexing settings into indexer.Options.
func (c *Config) IndexerOptions() indexer.Options {
	opts := indexer.DefaultOptions()
	opts.PageLimit = c.SignaturePageLimit
	opts.Concurrency = c.FetchConcurrency
	opts.MissingTimestamp = c.MissingTimestampPolicy
	opts.Mode = c.ExtractionMode
	return opts
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// getOrDefault returns the configured value or a default if not set.
func (s source) getOrDefault(key, defaultValue string) string {
	if value := s.get(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration setting or uses a default.
func (s source) parseDuration(key, defaultValue string) (time.Duration, error) {
	value := s.getOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer setting or uses a default.
func (s source) parseInt(key string, defaultValue int) (int, error) {
	value := s.get(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
