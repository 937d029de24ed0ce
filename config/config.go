package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Batch endpoint ordering strategies.
const (
	StrategyOrdered       = "ordered"
	StrategyRoundRobin    = "round-robin"
	StrategyLeastResponse = "least-response"
)

const (
	DefaultScanInterval    = 30 * time.Second
	DefaultICMPTimeout     = time.Second
	DefaultTCPTimeout      = 1200 * time.Millisecond
	DefaultFetchTimeout    = 2 * time.Second
	DefaultTCPPort         = 80
	DefaultLedgerCapacity  = 50
	DefaultMaxConcurrency  = 256
	DefaultBatchTimeout    = 10 * time.Second
	DefaultStoreTimeout    = 5 * time.Second
	DefaultBreakerFailures = 3
	DefaultBreakerReset    = time.Minute
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// ScanConfig controls the scheduler cadence and the probe tiers.
type ScanConfig struct {
	Interval       string `mapstructure:"interval"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	ClientFallback bool   `mapstructure:"client_fallback"`
	ICMPEnabled    bool   `mapstructure:"icmp_enabled"`
	ICMPTimeout    string `mapstructure:"icmp_timeout"`
	TCPPort        int    `mapstructure:"tcp_port"`
	TCPTimeout     string `mapstructure:"tcp_timeout"`
	FetchTimeout   string `mapstructure:"fetch_timeout"`
}

// BatchConfig lists remote batch probe endpoints, tried in order.
type BatchConfig struct {
	Endpoints        []string `mapstructure:"endpoints"`
	Strategy         string   `mapstructure:"strategy"`
	Timeout          string   `mapstructure:"timeout"`
	FailureThreshold int      `mapstructure:"failure_threshold"`
	ResetTimeout     string   `mapstructure:"reset_timeout"`
}

type ServerEntry struct {
	Name string `mapstructure:"name" json:"name" yaml:"name"`
	IP   string `mapstructure:"ip" json:"ip" yaml:"ip"`
}

// ClubConfig carries the static default server list of a club.
type ClubConfig struct {
	Name    string        `mapstructure:"name"`
	Servers []ServerEntry `mapstructure:"servers"`
}

// CountryConfig is one node of the inventory tree. Virtual countries (a
// global brand, for instance) are flattened like real ones.
type CountryConfig struct {
	Name    string       `mapstructure:"name"`
	Code    string       `mapstructure:"code"`
	Virtual bool         `mapstructure:"virtual"`
	Clubs   []ClubConfig `mapstructure:"clubs"`
}

// InventoryConfig points at the central configuration store, if any, and
// holds the country tree.
type InventoryConfig struct {
	StoreURL     string          `mapstructure:"store_url"`
	StoreFile    string          `mapstructure:"store_file"`
	StoreTimeout string          `mapstructure:"store_timeout"`
	Countries    []CountryConfig `mapstructure:"countries"`
}

type LedgerConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Batch     BatchConfig     `mapstructure:"batch"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
}

// Load reads config.yaml from ./config or the working directory.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the given file, or searches the default locations when path
// is empty. A missing file is not an error: defaults and environment
// variables still apply.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)

	v.SetDefault("scan.interval", DefaultScanInterval.String())
	v.SetDefault("scan.max_concurrency", DefaultMaxConcurrency)
	v.SetDefault("scan.client_fallback", true)
	v.SetDefault("scan.icmp_enabled", true)
	v.SetDefault("scan.icmp_timeout", DefaultICMPTimeout.String())
	v.SetDefault("scan.tcp_port", DefaultTCPPort)
	v.SetDefault("scan.tcp_timeout", DefaultTCPTimeout.String())
	v.SetDefault("scan.fetch_timeout", DefaultFetchTimeout.String())

	v.SetDefault("batch.strategy", StrategyOrdered)
	v.SetDefault("batch.timeout", DefaultBatchTimeout.String())
	v.SetDefault("batch.failure_threshold", DefaultBreakerFailures)
	v.SetDefault("batch.reset_timeout", DefaultBreakerReset.String())

	v.SetDefault("inventory.store_timeout", DefaultStoreTimeout.String())
	v.SetDefault("ledger.capacity", DefaultLedgerCapacity)
}

// Defaults returns a configuration with every default applied and no
// inventory. Handy for tests and for embedding callers.
func Defaults() Config {
	return Config{
		Server:  ServerConfig{Address: ":8080", Environment: EnvDev},
		Logging: LoggingConfig{Level: LogLevelInfo},
		Scan: ScanConfig{
			Interval:       DefaultScanInterval.String(),
			MaxConcurrency: DefaultMaxConcurrency,
			ClientFallback: true,
			ICMPEnabled:    true,
			ICMPTimeout:    DefaultICMPTimeout.String(),
			TCPPort:        DefaultTCPPort,
			TCPTimeout:     DefaultTCPTimeout.String(),
			FetchTimeout:   DefaultFetchTimeout.String(),
		},
		Batch: BatchConfig{
			Strategy:         StrategyOrdered,
			Timeout:          DefaultBatchTimeout.String(),
			FailureThreshold: DefaultBreakerFailures,
			ResetTimeout:     DefaultBreakerReset.String(),
		},
		Inventory: InventoryConfig{StoreTimeout: DefaultStoreTimeout.String()},
		Ledger:    LedgerConfig{Capacity: DefaultLedgerCapacity},
	}
}

func (s ScanConfig) IntervalDuration() time.Duration {
	return durationOr(s.Interval, DefaultScanInterval)
}

func (s ScanConfig) ICMPTimeoutDuration() time.Duration {
	return durationOr(s.ICMPTimeout, DefaultICMPTimeout)
}

func (s ScanConfig) TCPTimeoutDuration() time.Duration {
	return durationOr(s.TCPTimeout, DefaultTCPTimeout)
}

func (s ScanConfig) FetchTimeoutDuration() time.Duration {
	return durationOr(s.FetchTimeout, DefaultFetchTimeout)
}

func (b BatchConfig) TimeoutDuration() time.Duration {
	return durationOr(b.Timeout, DefaultBatchTimeout)
}

func (b BatchConfig) ResetTimeoutDuration() time.Duration {
	return durationOr(b.ResetTimeout, DefaultBreakerReset)
}

func (i InventoryConfig) StoreTimeoutDuration() time.Duration {
	return durationOr(i.StoreTimeout, DefaultStoreTimeout)
}

// durationOr parses raw, falling back when it is empty, malformed or not
// positive. Validate has already rejected malformed values for loaded configs.
func durationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
