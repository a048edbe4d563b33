package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Auth       Auth       `mapstructure:"auth"`
	MarketData MarketData `mapstructure:"marketdata"`
	Symbols    Symbols    `mapstructure:"symbols"`
	Settlement Settlement `mapstructure:"settlement"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the sqlite ledger store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Auth holds the single-user credentials and the JWT signing secret.
type Auth struct {
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// MarketData holds the configuration for the quote provider client.
type MarketData struct {
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Symbols holds the symbol directory sources. ProviderURLs are tried
// in order; Fallback is the static terminal list used when every
// provider fails.
type Symbols struct {
	ProviderURLs []string `mapstructure:"provider_urls"`
	Fallback     []string `mapstructure:"fallback"`
}

// Settlement holds the sweep cadence and the daily market close
// cutoff, after which unmet pending orders are cancelled.
type Settlement struct {
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
	MarketCloseCutoff    string `mapstructure:"market_close_cutoff"` // HH:MM, local time
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: every key has a default, so
// the process can start from defaults alone.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "stocks.db")
	viper.SetDefault("auth.username", "admin")
	viper.SetDefault("auth.password", "1234")
	viper.SetDefault("auth.jwt_secret", "stock-analysis-secret-key")
	viper.SetDefault("marketdata.base_url", "http://localhost:9000/api/v1")
	viper.SetDefault("marketdata.rate_limit", 20) // requests per second
	viper.SetDefault("marketdata.rate_limit_burst", 5)
	viper.SetDefault("marketdata.timeout_seconds", 5)
	viper.SetDefault("symbols.fallback", []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"})
	viper.SetDefault("settlement.sweep_interval_seconds", 60)
	viper.SetDefault("settlement.market_close_cutoff", "16:00")

	if err = viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
