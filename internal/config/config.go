// Package config loads application settings from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the application reads.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Session  SessionConfig  `mapstructure:"session"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RabbitMQConfig struct {
	// URL empty disables event publishing and the payment consumer.
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	PaymentQueue string `mapstructure:"payment_queue"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type GatewayConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	// AllowAnonymous lets payment requests reach the gateway without an
	// access token instead of failing.
	AllowAnonymous bool `mapstructure:"allow_anonymous"`
}

type OAuthConfig struct {
	ClientID        string        `mapstructure:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret"`
	TokenURL        string        `mapstructure:"token_url"`
	Scopes          []string      `mapstructure:"scopes"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Enabled reports whether enough is configured to fetch tokens.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.TokenURL != ""
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// SetDefaults registers the default value of every key on v. Keys must be
// known to viper for environment variables to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=127.0.0.1 user=postgres password=postgres dbname=storefront port=5432 sslmode=disable")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "orders")
	v.SetDefault("rabbitmq.payment_queue", "payment_events")

	v.SetDefault("jwt.secret", "change-me")

	v.SetDefault("gateway.base_url", "http://localhost:8000")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("gateway.insecure_skip_verify", false)
	v.SetDefault("gateway.allow_anonymous", false)

	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.token_url", "")
	v.SetDefault("oauth.scopes", []string{})
	v.SetDefault("oauth.refresh_interval", 5*time.Minute)

	v.SetDefault("session.cookie_name", "storefront_session")
	v.SetDefault("session.expiration", 24*time.Hour)
}

// New returns a viper instance with defaults and environment binding set up.
// GATEWAY_BASE_URL overrides gateway.base_url and so on.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.OAuth.RefreshInterval <= 0 {
		cfg.OAuth.RefreshInterval = 5 * time.Minute
	}
	return &cfg, nil
}
