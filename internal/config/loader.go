package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MMSIGNAL_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		// [[exchanges]] replaces the default list rather than merging into it
		// entry by entry.
		defaultExchanges := cfg.Exchanges
		cfg.Exchanges = nil
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
		if !md.IsDefined("exchanges") {
			cfg.Exchanges = defaultExchanges
		}
	}

	// Load .env file if present (silently ignore if missing).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known MMSIGNAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "MMSIGNAL_MODE")
	setStr(&cfg.LogLevel, "MMSIGNAL_LOG_LEVEL")

	// ── Monitor ──
	setStringSlice(&cfg.Monitor.Instruments, "MMSIGNAL_MONITOR_INSTRUMENTS")
	setDuration(&cfg.Monitor.RefreshInterval, "MMSIGNAL_MONITOR_REFRESH_INTERVAL")
	setDuration(&cfg.Monitor.FetchTimeout, "MMSIGNAL_MONITOR_FETCH_TIMEOUT")
	setInt(&cfg.Monitor.MaxInFlight, "MMSIGNAL_MONITOR_MAX_IN_FLIGHT")
	setInt(&cfg.Monitor.BookDepth, "MMSIGNAL_MONITOR_BOOK_DEPTH")
	setFloat64(&cfg.Monitor.ThresholdPercent, "MMSIGNAL_MONITOR_THRESHOLD_PERCENT")
	setStr(&cfg.Monitor.Detector, "MMSIGNAL_MONITOR_DETECTOR")
	setFloat64(&cfg.Monitor.FillVolume, "MMSIGNAL_MONITOR_FILL_VOLUME")
	setFloat64(&cfg.Monitor.MinPotentialProfit, "MMSIGNAL_MONITOR_MIN_POTENTIAL_PROFIT")
	setDuration(&cfg.Monitor.AlertCooldown, "MMSIGNAL_MONITOR_ALERT_COOLDOWN")

	// ── Exchanges ──
	var enabled []string
	setStringSlice(&enabled, "MMSIGNAL_EXCHANGES")
	if len(enabled) > 0 {
		enableOnly(cfg, enabled)
	}

	// ── Imbalance ──
	setFloat64(&cfg.Imbalance.ProfitTarget, "MMSIGNAL_IMBALANCE_PROFIT_TARGET")
	setFloat64(&cfg.Imbalance.StopLossPct, "MMSIGNAL_IMBALANCE_STOP_LOSS_PCT")
	setInt(&cfg.Imbalance.Depth, "MMSIGNAL_IMBALANCE_DEPTH")
	setFloat64(&cfg.Imbalance.MinSpread, "MMSIGNAL_IMBALANCE_MIN_SPREAD")
	setFloat64(&cfg.Imbalance.ImbalanceRatio, "MMSIGNAL_IMBALANCE_IMBALANCE_RATIO")
	setFloat64(&cfg.Imbalance.EntryFraction, "MMSIGNAL_IMBALANCE_ENTRY_FRACTION")
	setDuration(&cfg.Imbalance.Cooldown, "MMSIGNAL_IMBALANCE_COOLDOWN")

	// ── Risk ──
	setFloat64(&cfg.Risk.Capital, "MMSIGNAL_RISK_CAPITAL")
	setFloat64(&cfg.Risk.MaxRiskPerTrade, "MMSIGNAL_RISK_MAX_RISK_PER_TRADE")
	setFloat64(&cfg.Risk.MaxPositionSize, "MMSIGNAL_RISK_MAX_POSITION_SIZE")
	setFloat64(&cfg.Risk.StopLossPercent, "MMSIGNAL_RISK_STOP_LOSS_PERCENT")
	setFloat64(&cfg.Risk.TakeProfitPercent, "MMSIGNAL_RISK_TAKE_PROFIT_PERCENT")

	// ── Backtest ──
	setStr(&cfg.Backtest.Strategy, "MMSIGNAL_BACKTEST_STRATEGY")
	setStringSlice(&cfg.Backtest.Strategies, "MMSIGNAL_BACKTEST_STRATEGIES")
	setStr(&cfg.Backtest.DataPath, "MMSIGNAL_BACKTEST_DATA_PATH")
	setStr(&cfg.Backtest.DataKey, "MMSIGNAL_BACKTEST_DATA_KEY")
	setStr(&cfg.Backtest.Symbol, "MMSIGNAL_BACKTEST_SYMBOL")
	setFloat64(&cfg.Backtest.InitialCapital, "MMSIGNAL_BACKTEST_INITIAL_CAPITAL")
	setFloat64(&cfg.Backtest.Commission, "MMSIGNAL_BACKTEST_COMMISSION")
	setInt(&cfg.Backtest.ShortWindow, "MMSIGNAL_BACKTEST_SHORT_WINDOW")
	setInt(&cfg.Backtest.LongWindow, "MMSIGNAL_BACKTEST_LONG_WINDOW")
	setInt(&cfg.Backtest.RSIWindow, "MMSIGNAL_BACKTEST_RSI_WINDOW")
	setFloat64(&cfg.Backtest.RSIOverbought, "MMSIGNAL_BACKTEST_RSI_OVERBOUGHT")
	setFloat64(&cfg.Backtest.RSIOversold, "MMSIGNAL_BACKTEST_RSI_OVERSOLD")
	setBool(&cfg.Backtest.Archive, "MMSIGNAL_BACKTEST_ARCHIVE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MMSIGNAL_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // common PaaS alias
	setStr(&cfg.Postgres.Host, "MMSIGNAL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MMSIGNAL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MMSIGNAL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MMSIGNAL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MMSIGNAL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MMSIGNAL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MMSIGNAL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MMSIGNAL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MMSIGNAL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MMSIGNAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MMSIGNAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MMSIGNAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MMSIGNAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MMSIGNAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MMSIGNAL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SnapshotTTL, "MMSIGNAL_REDIS_SNAPSHOT_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, "MMSIGNAL_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MMSIGNAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MMSIGNAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "MMSIGNAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MMSIGNAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MMSIGNAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MMSIGNAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MMSIGNAL_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.OpportunityRetention, "MMSIGNAL_S3_OPPORTUNITY_RETENTION")
	setDuration(&cfg.S3.ArchiveInterval, "MMSIGNAL_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MMSIGNAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MMSIGNAL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MMSIGNAL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MMSIGNAL_SERVER_API_KEY")
	setFloat64(&cfg.Server.RateLimitRPS, "MMSIGNAL_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "MMSIGNAL_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MMSIGNAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MMSIGNAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MMSIGNAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MMSIGNAL_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "MMSIGNAL_METRICS_ENABLED")
	setStr(&cfg.Metrics.Namespace, "MMSIGNAL_METRICS_NAMESPACE")
}

// enableOnly enables exactly the named exchanges, adding entries with
// default limits for names the file does not list.
func enableOnly(cfg *Config, names []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	for i := range cfg.Exchanges {
		name := strings.ToLower(cfg.Exchanges[i].Name)
		cfg.Exchanges[i].Enabled = want[name]
		delete(want, name)
	}
	for _, n := range names {
		n = strings.ToLower(n)
		if want[n] {
			cfg.Exchanges = append(cfg.Exchanges, ExchangeConfig{
				Name:              n,
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             5,
				Timeout:           duration{10 * time.Second},
			})
			delete(want, n)
		}
	}
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
