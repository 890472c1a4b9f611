package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const insecureSessionSecret = "dbay-dev-session-secret"

// Config is the full runtime configuration of the web frontend.
type Config struct {
	Port int `mapstructure:"PORT"`

	APIBaseURL        string `mapstructure:"API_BASE_URL"`
	ListingServiceURL string `mapstructure:"LISTING_SERVICE_URL"`
	AuctionServiceURL string `mapstructure:"AUCTION_SERVICE_URL"`
	WalletServiceURL  string `mapstructure:"WALLET_SERVICE_URL"`
	UserServiceURL    string `mapstructure:"USER_SERVICE_URL"`
	OrderServiceURL   string `mapstructure:"ORDER_SERVICE_URL"`
	SearchServiceURL  string `mapstructure:"SEARCH_SERVICE_URL"`

	HTTPClientTimeout time.Duration `mapstructure:"HTTP_CLIENT_TIMEOUT"`
	UploadTimeout     time.Duration `mapstructure:"UPLOAD_TIMEOUT"`

	UseCognito        bool   `mapstructure:"USE_COGNITO"`
	CognitoUserPoolID string `mapstructure:"COGNITO_USER_POOL_ID"`
	CognitoClientID   string `mapstructure:"COGNITO_CLIENT_ID"`
	AWSRegion         string `mapstructure:"AWS_REGION"`
	DemoAuthFallback  bool   `mapstructure:"DEMO_AUTH_FALLBACK"`

	DogeUSDFallbackRate float64       `mapstructure:"DOGE_USD_FALLBACK_RATE"`
	PriceFeedURL        string        `mapstructure:"PRICE_FEED_URL"`
	RateTTL             time.Duration `mapstructure:"RATE_TTL"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure  bool          `mapstructure:"COOKIE_SECURE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	NATSURL string `mapstructure:"NATS_URL"`

	MetricsPort  string `mapstructure:"PROMETHEUS_METRICS_PORT"`
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	TemplateDir string `mapstructure:"TEMPLATE_DIR"`
}

var defaults = map[string]any{
	"PORT":                        3000,
	"API_BASE_URL":                "http://localhost:8080/api/v1",
	"LISTING_SERVICE_URL":         "",
	"AUCTION_SERVICE_URL":         "",
	"WALLET_SERVICE_URL":          "",
	"USER_SERVICE_URL":            "",
	"ORDER_SERVICE_URL":           "",
	"SEARCH_SERVICE_URL":          "",
	"HTTP_CLIENT_TIMEOUT":         "15s",
	"UPLOAD_TIMEOUT":              "0s",
	"USE_COGNITO":                 false,
	"COGNITO_USER_POOL_ID":        "",
	"COGNITO_CLIENT_ID":           "",
	"AWS_REGION":                  "us-east-1",
	"DEMO_AUTH_FALLBACK":          false,
	"DOGE_USD_FALLBACK_RATE":      0.25,
	"PRICE_FEED_URL":              "https://api.coingecko.com/api/v3/simple/price?ids=dogecoin&vs_currencies=usd",
	"RATE_TTL":                    "5m",
	"SESSION_SECRET":              insecureSessionSecret,
	"SESSION_TTL":                 "720h",
	"COOKIE_SECURE":               false,
	"REDIS_ADDR":                  "",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    0,
	"NATS_URL":                    "",
	"PROMETHEUS_METRICS_PORT":     "9094",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "json",
	"TEMPLATE_DIR":                "web/templates",
}

// LoadConfig reads .env (if present), an optional config.env file and the
// process environment, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations viper cannot express through defaults.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	if c.UploadTimeout < 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must not be negative, got %s", c.UploadTimeout)
	}
	if c.DogeUSDFallbackRate <= 0 {
		return fmt.Errorf("DOGE_USD_FALLBACK_RATE must be positive, got %v", c.DogeUSDFallbackRate)
	}
	if c.UseCognito && (c.CognitoUserPoolID == "" || c.CognitoClientID == "") {
		return errors.New("USE_COGNITO requires COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID")
	}
	return nil
}

// CognitoEnabled reports whether managed identity is fully configured.
func (c *Config) CognitoEnabled() bool {
	return c.UseCognito && c.CognitoUserPoolID != "" && c.CognitoClientID != ""
}

// InsecureSessionSecret reports whether the built-in development secret is in use.
func (c *Config) InsecureSessionSecret() bool {
	return c.SessionSecret == insecureSessionSecret || c.SessionSecret == ""
}

// ServiceURL returns the base URL for a backend service, falling back to
// API_BASE_URL when no per-service target is configured.
func (c *Config) ServiceURL(service string) string {
	var target string
	switch service {
	case "listing":
		target = c.ListingServiceURL
	case "auction":
		target = c.AuctionServiceURL
	case "wallet":
		target = c.WalletServiceURL
	case "user":
		target = c.UserServiceURL
	case "order":
		target = c.OrderServiceURL
	case "search":
		target = c.SearchServiceURL
	}
	if target == "" {
		return c.APIBaseURL
	}
	return strings.TrimRight(target, "/")
}
