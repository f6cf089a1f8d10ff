package config

import (
	"log"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderYahoo = "yahoo"
	ProviderEodhd = "eodhd"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Provider    Provider
	API         API
	Redis       Redis
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	Display     Display
	HTTP        HTTP
}

type Provider struct {
	Name            string        `env:"PROVIDER_NAME" envDefault:"yahoo"`
	LookbackPeriods int           `env:"PROVIDER_LOOKBACK_PERIODS" envDefault:"5"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"15s"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout  time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	YahooApi YahooApi
	EodhdApi EodhdApi
}

type YahooApi struct {
	Url string `env:"YAHOO_API_URL" envDefault:"https://query1.finance.yahoo.com"`
}

type EodhdApi struct {
	Url       string `env:"EODHD_API_URL" envDefault:"https://eodhd.com/api"`
	Token     string `env:"EODHD_API_KEY" envDefault:""`
	Exchange  string `env:"EODHD_EXCHANGE" envDefault:"US"`
	RateLimit int    `env:"EODHD_RATE_LIMIT" envDefault:"10"`
}

type Redis struct {
	Enabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION" envDefault:"5m"`
}

type Jobs struct {
	RefreshInterval time.Duration `env:"REFRESH_JOB_INTERVAL" envDefault:"15m"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"168h"`
}

type Display struct {
	Currency string `env:"DISPLAY_CURRENCY" envDefault:"USD"`
	WordWrap int    `env:"DISPLAY_WORD_WRAP" envDefault:"120"`
}

type HTTP struct {
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
}

const redacted = "***"

type redactedConfig Config

// LogValue masks credentials so the config can be logged as is.
func (c Config) LogValue() slog.Value {
	if c.API.EodhdApi.Token != "" {
		c.API.EodhdApi.Token = redacted
	}
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	return slog.AnyValue(redactedConfig(c))
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
