// Package config defines the top-level configuration for the engine and
// provides validation helpers.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Operating modes.
const (
	ModeMonitor  = "monitor"
	ModeSignal   = "signal"
	ModeBacktest = "backtest"
	ModeServer   = "server"
	ModeFull     = "full"
)

// Detector names accepted by monitor.detector.
const (
	DetectorTopOfBook     = "top_of_book"
	DetectorDepthWeighted = "depth_weighted"
)

var (
	validModes     = []string{ModeMonitor, ModeSignal, ModeBacktest, ModeServer, ModeFull}
	knownExchanges = []string{"binance", "coinbase", "okx"}
	barStrategies  = []string{"ma_crossover", "rsi"}
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MMSIGNAL_* environment variables.
type Config struct {
	Mode      string           `toml:"mode"`
	LogLevel  string           `toml:"log_level"`
	Monitor   MonitorConfig    `toml:"monitor"`
	Exchanges []ExchangeConfig `toml:"exchanges"`
	Imbalance ImbalanceConfig  `toml:"imbalance"`
	Risk      RiskConfig       `toml:"risk"`
	Backtest  BacktestConfig   `toml:"backtest"`
	Postgres  PostgresConfig   `toml:"postgres"`
	Redis     RedisConfig      `toml:"redis"`
	S3        S3Config         `toml:"s3"`
	Server    ServerConfig     `toml:"server"`
	Notify    NotifyConfig     `toml:"notify"`
	Metrics   MetricsConfig    `toml:"metrics"`
}

// MonitorConfig drives the poller and the arbitrage detector.
type MonitorConfig struct {
	Instruments        []string `toml:"instruments"`
	RefreshInterval    duration `toml:"refresh_interval"`
	FetchTimeout       duration `toml:"fetch_timeout"`
	MaxInFlight        int      `toml:"max_in_flight"`
	BookDepth          int      `toml:"book_depth"`
	ThresholdPercent   float64  `toml:"threshold_percent"`
	Detector           string   `toml:"detector"`
	FillVolume         float64  `toml:"fill_volume"`
	MinPotentialProfit float64  `toml:"min_potential_profit"`
	AlertCooldown      duration `toml:"alert_cooldown"`
}

// ExchangeConfig is one [[exchanges]] entry.
type ExchangeConfig struct {
	Name              string   `toml:"name"`
	Enabled           bool     `toml:"enabled"`
	BaseURL           string   `toml:"base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
}

// ImbalanceConfig holds the live scalping parameters. Percent-like fields
// are fractions.
type ImbalanceConfig struct {
	ProfitTarget   float64  `toml:"profit_target"`
	StopLossPct    float64  `toml:"stop_loss_pct"`
	Depth          int      `toml:"depth"`
	MinSpread      float64  `toml:"min_spread"`
	ImbalanceRatio float64  `toml:"imbalance_ratio"`
	EntryFraction  float64  `toml:"entry_fraction"`
	Cooldown       duration `toml:"cooldown"`
}

// RiskConfig sizes suggested positions.
type RiskConfig struct {
	Capital           float64 `toml:"capital"`
	MaxRiskPerTrade   float64 `toml:"max_risk_per_trade"`
	MaxPositionSize   float64 `toml:"max_position_size"`
	StopLossPercent   float64 `toml:"stop_loss_percent"`
	TakeProfitPercent float64 `toml:"take_profit_percent"`
}

// BacktestConfig configures backtest mode and the defaults of on-demand runs.
type BacktestConfig struct {
	Strategy       string   `toml:"strategy"`
	Strategies     []string `toml:"strategies"`
	DataPath       string   `toml:"data_path"`
	DataKey        string   `toml:"data_key"`
	Symbol         string   `toml:"symbol"`
	InitialCapital float64  `toml:"initial_capital"`
	Commission     float64  `toml:"commission"`
	ShortWindow    int      `toml:"short_window"`
	LongWindow     int      `toml:"long_window"`
	RSIWindow      int      `toml:"rsi_window"`
	RSIOverbought  float64  `toml:"rsi_overbought"`
	RSIOversold    float64  `toml:"rsi_oversold"`
	Archive        bool     `toml:"archive"`
}

// PostgresConfig holds PostgreSQL connection parameters. Persistence is
// disabled when neither dsn nor host is set.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || strings.TrimSpace(p.Host) != ""
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	SnapshotTTL  duration `toml:"snapshot_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// S3Config holds S3-compatible object storage parameters. Archiving is
// disabled when bucket is empty.
type S3Config struct {
	Endpoint             string   `toml:"endpoint"`
	Region               string   `toml:"region"`
	Bucket               string   `toml:"bucket"`
	AccessKey            string   `toml:"access_key"`
	SecretKey            string   `toml:"secret_key"`
	UseSSL               bool     `toml:"use_ssl"`
	ForcePathStyle       bool     `toml:"force_path_style"`
	OpportunityRetention duration `toml:"opportunity_retention"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// Enabled reports whether object storage is configured.
func (s S3Config) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled        bool     `toml:"enabled"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	APIKey         string   `toml:"api_key"`
	RateLimitRPS   float64  `toml:"rate_limit_rps"`
	RateLimitBurst int      `toml:"rate_limit_burst"`
}

// NotifyConfig configures chat alerts. Events filters which event types are
// sent; empty sends all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Mode:     ModeMonitor,
		LogLevel: "info",
		Monitor: MonitorConfig{
			Instruments:      []string{"BTC/USDT"},
			RefreshInterval:  duration{5 * time.Second},
			FetchTimeout:     duration{3 * time.Second},
			BookDepth:        20,
			ThresholdPercent: 0.5,
			Detector:         DetectorTopOfBook,
			FillVolume:       1.0,
			AlertCooldown:    duration{60 * time.Second},
		},
		Exchanges: []ExchangeConfig{
			{Name: "binance", Enabled: true, RequestsPerSecond: 10, Burst: 5, Timeout: duration{10 * time.Second}},
			{Name: "okx", Enabled: true, RequestsPerSecond: 10, Burst: 5, Timeout: duration{10 * time.Second}},
			{Name: "coinbase", Enabled: true, RequestsPerSecond: 5, Burst: 5, Timeout: duration{10 * time.Second}},
		},
		Imbalance: ImbalanceConfig{
			ProfitTarget:   0.001,
			StopLossPct:    0.0005,
			Depth:          10,
			MinSpread:      0.0001,
			ImbalanceRatio: 1.5,
			EntryFraction:  0.1,
			Cooldown:       duration{5 * time.Second},
		},
		Risk: RiskConfig{
			Capital:           10000,
			MaxRiskPerTrade:   0.02,
			MaxPositionSize:   0.10,
			StopLossPercent:   0.05,
			TakeProfitPercent: 0.10,
		},
		Backtest: BacktestConfig{
			Strategy:       "ma_crossover",
			Symbol:         "BTC/USDT",
			InitialCapital: 10000,
			Commission:     0.001,
			ShortWindow:    10,
			LongWindow:     50,
			RSIWindow:      14,
			RSIOverbought:  70,
			RSIOversold:    30,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "mmsignal",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			SnapshotTTL:  duration{time.Minute},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Region:          "us-east-1",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:     false,
			Port:        8080,
			CORSOrigins: []string{},
		},
		Notify: NotifyConfig{
			Events: []string{},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "mmsignal",
		},
	}
}

// NeedsFeed reports whether the mode polls exchanges.
func (c *Config) NeedsFeed() bool {
	return c.Mode == ModeMonitor || c.Mode == ModeSignal || c.Mode == ModeFull
}

// ServesHTTP reports whether the mode starts the HTTP server.
func (c *Config) ServesHTTP() bool {
	return c.Mode == ModeServer || c.Mode == ModeFull || (c.Server.Enabled && c.Mode != ModeBacktest)
}

// EnabledExchanges returns the enabled [[exchanges]] entries.
func (c *Config) EnabledExchanges() []ExchangeConfig {
	out := make([]ExchangeConfig, 0, len(c.Exchanges))
	for _, ex := range c.Exchanges {
		if ex.Enabled {
			out = append(out, ex)
		}
	}
	return out
}

// Validate checks the configuration for logical errors and missing required
// values. It returns a combined error describing every problem found, or nil.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validModes, c.Mode) {
		errs = append(errs, fmt.Sprintf("mode must be one of %s, got %q", strings.Join(validModes, ", "), c.Mode))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if c.NeedsFeed() {
		errs = append(errs, c.validateFeed()...)
		if !c.Redis.Enabled() {
			errs = append(errs, fmt.Sprintf("redis: addr is required in %s mode", c.Mode))
		}
	}
	if c.Mode == ModeSignal || c.Mode == ModeFull {
		errs = append(errs, c.validateImbalance()...)
		errs = append(errs, c.validateRisk()...)
	}
	if c.Mode == ModeBacktest || c.ServesHTTP() {
		errs = append(errs, c.validateBacktest()...)
	}

	// Postgres
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled() {
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.StreamMaxLen < 0 {
			errs = append(errs, "redis: stream_max_len must be >= 0")
		}
	}

	// S3
	if c.S3.Enabled() {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.OpportunityRetention.Duration > 0 && c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0 when opportunity_retention is set")
		}
	}
	if c.Backtest.DataKey != "" && !c.S3.Enabled() {
		errs = append(errs, "backtest: data_key requires s3.bucket")
	}

	// Server
	if c.ServesHTTP() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server: rate_limit_rps must be >= 0")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		errs = append(errs, "metrics: namespace must not be empty when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validateFeed() []string {
	var errs []string
	m := c.Monitor
	if len(m.Instruments) == 0 {
		errs = append(errs, "monitor: at least one instrument is required")
	}
	for _, inst := range m.Instruments {
		if base, quote, ok := strings.Cut(inst, "/"); !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
			errs = append(errs, fmt.Sprintf("monitor: instrument %q must look like BASE/QUOTE", inst))
		}
	}
	if m.RefreshInterval.Duration <= 0 {
		errs = append(errs, "monitor: refresh_interval must be > 0")
	}
	if m.FetchTimeout.Duration < 0 {
		errs = append(errs, "monitor: fetch_timeout must be >= 0")
	}
	if m.MaxInFlight < 0 {
		errs = append(errs, "monitor: max_in_flight must be >= 0")
	}
	if m.BookDepth < 1 {
		errs = append(errs, "monitor: book_depth must be >= 1")
	}
	if msg := m.detectorProblem(); msg != "" {
		errs = append(errs, msg)
	}
	if m.MinPotentialProfit < 0 {
		errs = append(errs, "monitor: min_potential_profit must be >= 0")
	}

	enabled := c.EnabledExchanges()
	if len(enabled) == 0 {
		errs = append(errs, "exchanges: at least one exchange must be enabled")
	}
	seen := make(map[string]bool, len(enabled))
	for _, ex := range enabled {
		name := strings.ToLower(ex.Name)
		if !slices.Contains(knownExchanges, name) {
			errs = append(errs, fmt.Sprintf("exchanges: unknown exchange %q (known: %s)", ex.Name, strings.Join(knownExchanges, ", ")))
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("exchanges: %q listed twice", ex.Name))
		}
		seen[name] = true
		if ex.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Sprintf("exchanges: %s requests_per_second must be >= 0", ex.Name))
		}
	}
	return errs
}

// detectorProblem describes what is wrong with the detector settings, or
// returns "" when they are usable.
func (m MonitorConfig) detectorProblem() string {
	if m.ThresholdPercent < 0 {
		return "monitor: threshold_percent must be >= 0"
	}
	switch m.Detector {
	case DetectorTopOfBook:
		return ""
	case DetectorDepthWeighted:
		if m.FillVolume <= 0 {
			return "monitor: fill_volume must be > 0 for the depth_weighted detector"
		}
		return ""
	default:
		return fmt.Sprintf("monitor: detector must be %s or %s, got %q", DetectorTopOfBook, DetectorDepthWeighted, m.Detector)
	}
}

func (c *Config) validateImbalance() []string {
	var errs []string
	im := c.Imbalance
	if im.ProfitTarget <= 0 || im.ProfitTarget >= 1 {
		errs = append(errs, "imbalance: profit_target must be in (0, 1)")
	}
	if im.StopLossPct <= 0 || im.StopLossPct >= 1 {
		errs = append(errs, "imbalance: stop_loss_pct must be in (0, 1)")
	}
	if im.Depth < 1 {
		errs = append(errs, "imbalance: depth must be >= 1")
	}
	if im.MinSpread < 0 {
		errs = append(errs, "imbalance: min_spread must be >= 0")
	}
	if im.ImbalanceRatio <= 0 {
		errs = append(errs, "imbalance: imbalance_ratio must be > 0")
	}
	if im.EntryFraction < 0 || im.EntryFraction > 1 {
		errs = append(errs, "imbalance: entry_fraction must be in [0, 1]")
	}
	if im.Cooldown.Duration < 0 {
		errs = append(errs, "imbalance: cooldown must be >= 0")
	}
	return errs
}

func (c *Config) validateRisk() []string {
	var errs []string
	r := c.Risk
	if r.Capital <= 0 {
		errs = append(errs, "risk: capital must be > 0")
	}
	for name, v := range map[string]float64{
		"max_risk_per_trade":  r.MaxRiskPerTrade,
		"max_position_size":   r.MaxPositionSize,
		"stop_loss_percent":   r.StopLossPercent,
		"take_profit_percent": r.TakeProfitPercent,
	} {
		if v <= 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("risk: %s must be in (0, 1]", name))
		}
	}
	slices.Sort(errs)
	return errs
}

func (c *Config) validateBacktest() []string {
	var errs []string
	b := c.Backtest
	names := b.Strategies
	if len(names) == 0 && b.Strategy != "" {
		names = []string{b.Strategy}
	}
	if c.Mode == ModeBacktest {
		if len(names) == 0 {
			errs = append(errs, "backtest: strategy or strategies is required")
		}
		if b.DataPath == "" && b.DataKey == "" {
			errs = append(errs, "backtest: data_path or data_key is required")
		}
	}
	for _, n := range names {
		if !slices.Contains(barStrategies, n) {
			errs = append(errs, fmt.Sprintf("backtest: unknown strategy %q (known: %s)", n, strings.Join(barStrategies, ", ")))
		}
	}
	if b.InitialCapital <= 0 {
		errs = append(errs, "backtest: initial_capital must be > 0")
	}
	if b.Commission < 0 {
		errs = append(errs, "backtest: commission must be >= 0")
	}
	if b.ShortWindow < 1 || b.LongWindow <= b.ShortWindow {
		errs = append(errs, "backtest: windows must satisfy 1 <= short_window < long_window")
	}
	if b.RSIWindow < 1 {
		errs = append(errs, "backtest: rsi_window must be >= 1")
	}
	if b.RSIOversold >= b.RSIOverbought {
		errs = append(errs, "backtest: rsi_oversold must be below rsi_overbought")
	}
	return errs
}
