package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the simulated exchange.
type Config struct {
	Port            int
	LogLevel        string
	DBPath          string // empty keeps all state in memory
	InstrumentsFile string // empty seeds the built-in instrument list

	QuoteInterval  time.Duration
	QuoteSpreadBps int64
	QuoteMinQty    int64
	QuoteMaxQty    int64

	InjectBidBps int64
	InjectAskBps int64

	HumanPrefix       string
	HumanInitialCash  int64
	MarketMakerID     string
	MarketMakerCash   int64
	MarketMakerShares int64

	ClockStep       time.Duration
	ClockTick       time.Duration
	MarketOpenHour  int
	MarketCloseHour int
	Location        *time.Location

	ExcludeSyntheticVolume bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cfg := &Config{
		Port:            port,
		LogLevel:        logLevel,
		DBPath:          os.Getenv("DB_PATH"),
		InstrumentsFile: os.Getenv("INSTRUMENTS_FILE"),
		HumanPrefix:     getStr("HUMAN_PREFIX", "USER_"),
		MarketMakerID:   getStr("MARKET_MAKER_ID", "MARKET_MAKER"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"QUOTE_INTERVAL", 2 * time.Second, &cfg.QuoteInterval},
		{"CLOCK_STEP", 10 * time.Minute, &cfg.ClockStep},
		{"CLOCK_TICK", 1 * time.Second, &cfg.ClockTick},
		{"READ_TIMEOUT", 5 * time.Second, &cfg.ReadTimeout},
		{"WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.key)
		}
		*d.dst = v
	}

	int64s := []struct {
		key string
		def int64
		min int64
		dst *int64
	}{
		{"QUOTE_SPREAD_BPS", 50, 0, &cfg.QuoteSpreadBps},
		{"QUOTE_MIN_QTY", 50, 1, &cfg.QuoteMinQty},
		{"QUOTE_MAX_QTY", 100, 1, &cfg.QuoteMaxQty},
		{"INJECT_BID_BPS", 9500, 1, &cfg.InjectBidBps},
		{"INJECT_ASK_BPS", 10500, 1, &cfg.InjectAskBps},
		{"HUMAN_INITIAL_CASH", 5_000_000, 0, &cfg.HumanInitialCash},
		{"MARKET_MAKER_CASH", 1_000_000_000_000_000, 0, &cfg.MarketMakerCash},
		{"MARKET_MAKER_SHARES", 1_000_000, 0, &cfg.MarketMakerShares},
	}
	for _, n := range int64s {
		v, err := getInt64(n.key, n.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", n.key, err)
		}
		if v < n.min {
			return nil, fmt.Errorf("invalid %s: must be at least %d", n.key, n.min)
		}
		*n.dst = v
	}
	if cfg.QuoteMinQty > cfg.QuoteMaxQty {
		return nil, fmt.Errorf("invalid QUOTE_MIN_QTY: %d exceeds QUOTE_MAX_QTY %d", cfg.QuoteMinQty, cfg.QuoteMaxQty)
	}

	if cfg.MarketOpenHour, err = getInt("MARKET_OPEN_HOUR", 9); err != nil {
		return nil, fmt.Errorf("invalid MARKET_OPEN_HOUR: %w", err)
	}
	if cfg.MarketCloseHour, err = getInt("MARKET_CLOSE_HOUR", 19); err != nil {
		return nil, fmt.Errorf("invalid MARKET_CLOSE_HOUR: %w", err)
	}
	if cfg.MarketOpenHour < 0 || cfg.MarketCloseHour > 24 || cfg.MarketOpenHour >= cfg.MarketCloseHour {
		return nil, fmt.Errorf("invalid market hours: open %d, close %d", cfg.MarketOpenHour, cfg.MarketCloseHour)
	}

	if cfg.Location, err = time.LoadLocation(getStr("SIM_TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid SIM_TIMEZONE: %w", err)
	}

	if cfg.ExcludeSyntheticVolume, err = getBool("EXCLUDE_SYNTHETIC_VOLUME", false); err != nil {
		return nil, fmt.Errorf("invalid EXCLUDE_SYNTHETIC_VOLUME: %w", err)
	}

	return cfg, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
