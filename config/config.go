// Package config exposes the process-wide, lazily-initialized configuration
// registry for the aggregation core. The bundle is immutable after first
// access: callers get a read-only snapshot built once from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is the immutable, process-wide configuration bundle. Its lifetime is
// the process; construct it once via Load or Get and never mutate it.
type Config struct {
	Host string
	Port string

	RPCURL          string
	RPCFallbackURLs []string
	SubgraphURL     string
	BlockscoutURL   string
	GeckoTerminalURL string

	USDFCToken        string
	TroveManager      string
	SortedTroves      string
	PriceFeed         string
	MultiTroveGetter  string
	StabilityPool     string
	ActivePool        string
	BorrowerOperations string
	CurrencyUSDFC     string
	CurrencyFIL       string
	PoolUSDFCWFIL     string
	PoolUSDFCAxlUSDC  string
	PoolUSDFCUSDC     string

	RefreshIntervalFast   time.Duration
	RefreshIntervalMedium time.Duration
	RefreshIntervalSlow   time.Duration

	TCRDangerThreshold  float64
	TCRWarningThreshold float64
	WhaleThresholdUSD   float64

	RefreshInterval       time.Duration
	HistoryRetentionSecs  int64
	DatabasePath          string

	RPCTimeout    time.Duration
	RPCRetryCount int
}

var (
	once     sync.Once
	instance *Config
	loadErr  error
)

// Get returns the process-wide configuration, building it from the
// environment on first call. Subsequent calls return the same instance.
// A missing required variable is fatal: Get panics so that a misconfigured
// process never serves partially-initialized behavior.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
		if loadErr != nil {
			panic(fmt.Sprintf("config: %v", loadErr))
		}
	})
	return instance
}

// Load builds a Config from the environment without touching the process
// singleton. It is exported for tests that want an isolated instance.
func Load() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	cfg := &Config{}

	rpcURL, err := requireEnv("RPC_URL")
	if err != nil {
		return nil, err
	}
	cfg.RPCURL = rpcURL
	cfg.RPCFallbackURLs = splitCSV(os.Getenv("RPC_FALLBACK_URLS"))

	cfg.SubgraphURL = envOrDefault("SUBGRAPH_URL", "https://api.thegraph.com/subgraphs/name/usdfc/lending")
	cfg.BlockscoutURL = envOrDefault("BLOCKSCOUT_URL", "https://filfox.info/api/v1")
	cfg.GeckoTerminalURL = envOrDefault("GECKOTERMINAL_URL", "https://api.geckoterminal.com/api/v2")

	cfg.USDFCToken = envOrDefault("USDFC_TOKEN", "")
	cfg.TroveManager = envOrDefault("TROVE_MANAGER", "")
	cfg.SortedTroves = envOrDefault("SORTED_TROVES", "")
	cfg.PriceFeed = envOrDefault("PRICE_FEED", "")
	cfg.MultiTroveGetter = envOrDefault("MULTI_TROVE_GETTER", "")
	cfg.StabilityPool = envOrDefault("STABILITY_POOL", "")
	cfg.ActivePool = envOrDefault("ACTIVE_POOL", "")
	cfg.BorrowerOperations = envOrDefault("BORROWER_OPERATIONS", "")
	cfg.CurrencyUSDFC = envOrDefault("CURRENCY_USDFC", "USDFC")
	cfg.CurrencyFIL = envOrDefault("CURRENCY_FIL", "FIL")
	cfg.PoolUSDFCWFIL = envOrDefault("POOL_USDFC_WFIL", "")
	cfg.PoolUSDFCAxlUSDC = envOrDefault("POOL_USDFC_AXLUSDC", "")
	cfg.PoolUSDFCUSDC = envOrDefault("POOL_USDFC_USDC", "")

	cfg.Host = envOrDefault("HOST", "0.0.0.0")
	cfg.Port = envOrDefault("PORT", "8080")

	cfg.RefreshIntervalFast = secondsOrDefault("REFRESH_INTERVAL_FAST", 10)
	cfg.RefreshIntervalMedium = secondsOrDefault("REFRESH_INTERVAL_MEDIUM", 30)
	cfg.RefreshIntervalSlow = secondsOrDefault("REFRESH_INTERVAL_SLOW", 60)

	cfg.TCRDangerThreshold = floatOrDefault("TCR_DANGER_THRESHOLD", 110)
	cfg.TCRWarningThreshold = floatOrDefault("TCR_WARNING_THRESHOLD", 150)
	cfg.WhaleThresholdUSD = floatOrDefault("WHALE_THRESHOLD_USD", 100000)

	cfg.RefreshInterval = millisOrDefault("REFRESH_INTERVAL_MS", 60000)
	cfg.HistoryRetentionSecs = int64OrDefault("HISTORY_RETENTION_SECS", 7*24*3600)
	cfg.DatabasePath = envOrDefault("DATABASE_PATH", "data/metrics_history.db")

	cfg.RPCTimeout = secondsOrDefault("RPC_TIMEOUT_SECS", 10)
	cfg.RPCRetryCount = intOrDefault("RPC_RETRY_COUNT", 3)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if cfg.RPCRetryCount < 0 {
		return fmt.Errorf("RPC_RETRY_COUNT must be >= 0")
	}
	if cfg.RPCTimeout <= 0 {
		return fmt.Errorf("RPC_TIMEOUT_SECS must be > 0")
	}
	return nil
}

func requireEnv(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("missing required environment variable %s", key)
	}
	return value, nil
}

func envOrDefault(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func secondsOrDefault(key string, def int64) time.Duration {
	return time.Duration(int64OrDefault(key, def)) * time.Second
}

func millisOrDefault(key string, def int64) time.Duration {
	return time.Duration(int64OrDefault(key, def)) * time.Millisecond
}

func int64OrDefault(key string, def int64) int64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func intOrDefault(key string, def int) int {
	return int(int64OrDefault(key, int64(def)))
}

func floatOrDefault(key string, def float64) float64 {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return def
}
