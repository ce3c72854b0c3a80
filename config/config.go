package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Binance  BinanceConfig  `mapstructure:"binance"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Server   ServerConfig   `mapstructure:"server"`
}

// BinanceConfig groups both sockets and the order book tuning knobs.
type BinanceConfig struct {
	Markets []string `mapstructure:"markets"`

	Streams WSConfig `mapstructure:"streams"` // combined stream socket (subscribe/list/push)
	API     WSConfig `mapstructure:"api"`     // WebSocket API socket (depth snapshots)

	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	SnapshotLimit         int           `mapstructure:"snapshot_limit"`
	SnapshotRetryInterval time.Duration `mapstructure:"snapshot_retry_interval"`

	BookDepth      int           `mapstructure:"book_depth"`      // levels per side in views and reports
	TradeHistory   int           `mapstructure:"trade_history"`   // recent trades kept per market
	ReportInterval time.Duration `mapstructure:"report_interval"` // periodic top-of-book log, 0 disables
}

type WSConfig struct {
	URL               string        `mapstructure:"url"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
	Service     string `mapstructure:"service"`

	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	Password    string        `mapstructure:"password"`
	BookTTL     time.Duration `mapstructure:"book_ttl"`
	TradeMaxLen int64         `mapstructure:"trade_max_len"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	TradeTopic string   `mapstructure:"trade_topic"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := newViper()

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "config"))
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}
	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}
	return cfg
}

// LoadFrom reads an explicit config file. Environment variables still win.
func LoadFrom(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	// .env is optional; anything it sets is picked up by AutomaticEnv below
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	// Support environment variables with dot notation (e.g., BINANCE_STREAMS_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i, m := range cfg.Binance.Markets {
		cfg.Binance.Markets[i] = strings.ToLower(strings.TrimSpace(m))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.markets", []string{"btcusdt"})
	v.SetDefault("binance.streams.url", "wss://stream.binance.com:9443/stream")
	v.SetDefault("binance.streams.handshake_timeout", 10*time.Second)
	v.SetDefault("binance.streams.reconnect_interval", 3*time.Second)
	v.SetDefault("binance.api.url", "wss://ws-api.binance.com:443/ws-api/v3")
	v.SetDefault("binance.api.handshake_timeout", 10*time.Second)
	v.SetDefault("binance.api.reconnect_interval", 3*time.Second)
	v.SetDefault("binance.request_timeout", 10*time.Second)
	v.SetDefault("binance.snapshot_limit", 5000)
	v.SetDefault("binance.snapshot_retry_interval", 2*time.Second)
	v.SetDefault("binance.book_depth", 10)
	v.SetDefault("binance.trade_history", 100)
	v.SetDefault("binance.report_interval", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.service", "wsbook")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.compress", true)

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.book_ttl", 2*time.Minute)
	v.SetDefault("redis.trade_max_len", 10000)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.trade_topic", "market.trades")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")
}
