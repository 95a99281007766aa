package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxRateCacheTTL bounds how stale a cached exchange rate may get.
const MaxRateCacheTTL = 60 * time.Second

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Explorers ExplorersConfig `mapstructure:"explorers"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// AutoMigrate applies the embedded goose migrations on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// WalletConfig lists the static receiving addresses per currency.
type WalletConfig struct {
	BitcoinAddresses  []string `mapstructure:"bitcoin_addresses"`
	LitecoinAddresses []string `mapstructure:"litecoin_addresses"`
	// ExclusiveAddresses forbids binding an address held by another live pending order.
	ExclusiveAddresses bool `mapstructure:"exclusive_addresses"`
}

type RatesConfig struct {
	CoinGeckoURL string        `mapstructure:"coingecko_url"`
	CoinDeskURL  string        `mapstructure:"coindesk_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	DefaultBTC   string        `mapstructure:"default_btc"` // EUR, decimal string
	DefaultLTC   string        `mapstructure:"default_ltc"`
}

type ExplorersConfig struct {
	BlockstreamURL   string        `mapstructure:"blockstream_url"`
	MempoolURL       string        `mapstructure:"mempool_url"`
	BlockchairURL    string        `mapstructure:"blockchair_url"`
	BlockchairAPIKey string        `mapstructure:"blockchair_api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxPages         int           `mapstructure:"max_pages"`
	BudgetPerMinute  int64         `mapstructure:"budget_per_minute"` // 0 = unlimited
}

type PaymentConfig struct {
	BindingTTL   time.Duration `mapstructure:"binding_ttl"`
	EpsilonMinor int64         `mapstructure:"epsilon_minor"`
}

type SweepConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	BatchSize   int           `mapstructure:"batch_size"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: AMS_ (Amethyst Storefront).
// Nested keys use underscore: AMS_DATABASE_HOST, AMS_WALLET_BITCOIN_ADDRESSES, etc.
// A .env file in the working directory, if present, is loaded into the
// environment first; variables already set win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "storefront")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "15m")
	v.SetDefault("jwt.issuer", "amethyst-storefront")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("wallet.bitcoin_addresses", []string{})
	v.SetDefault("wallet.litecoin_addresses", []string{})
	v.SetDefault("wallet.exclusive_addresses", true)
	v.SetDefault("rates.coingecko_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("rates.coindesk_url", "https://api.coindesk.com/v1")
	v.SetDefault("rates.timeout", "5s")
	v.SetDefault("rates.cache_ttl", "30s")
	v.SetDefault("rates.default_btc", "90000")
	v.SetDefault("rates.default_ltc", "120")
	v.SetDefault("explorers.blockstream_url", "https://blockstream.info/api")
	v.SetDefault("explorers.mempool_url", "https://mempool.space/api")
	v.SetDefault("explorers.blockchair_url", "https://api.blockchair.com")
	v.SetDefault("explorers.blockchair_api_key", "")
	v.SetDefault("explorers.timeout", "10s")
	v.SetDefault("explorers.max_pages", 4)
	v.SetDefault("explorers.budget_per_minute", 120)
	v.SetDefault("payment.binding_ttl", "24h")
	v.SetDefault("payment.epsilon_minor", 1000)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval", "60s")
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("sweep.batch_size", 500)
	v.SetDefault("sweep.lease_ttl", "5m")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: AMS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("AMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required; env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// normalize clamps values that would break component invariants.
func (c *Config) normalize() {
	if c.Rates.CacheTTL > MaxRateCacheTTL {
		c.Rates.CacheTTL = MaxRateCacheTTL
	}
	if c.Rates.CacheTTL < 0 {
		c.Rates.CacheTTL = 0
	}
	if c.Sweep.Concurrency < 1 {
		c.Sweep.Concurrency = 1
	}
	if c.Explorers.MaxPages < 1 {
		c.Explorers.MaxPages = 1
	}
	if c.Payment.EpsilonMinor < 0 {
		c.Payment.EpsilonMinor = 0
	}
	c.Wallet.BitcoinAddresses = splitAddresses(c.Wallet.BitcoinAddresses)
	c.Wallet.LitecoinAddresses = splitAddresses(c.Wallet.LitecoinAddresses)
}

// splitAddresses accepts both YAML lists and comma separated env values.
func splitAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, a := range strings.Split(item, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}
