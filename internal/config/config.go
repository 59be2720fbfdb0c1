package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Auth       AuthConfig       `validate:"required"`
	Email      EmailConfig      `mapstructure:"email"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Public     PublicConfig     `mapstructure:"public"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
	// PublicBaseURL is used to build the client-facing invoice link in emails
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `validate:"required"`
	Port                   int    `validate:"required"`
	User                   string `validate:"required"`
	Password               string
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	// Secret signs and verifies HS256 bearer tokens
	Secret string       `validate:"required"`
	APIKey APIKeyConfig `mapstructure:"api_key"`
	// Internal guards the batch job endpoints triggered by an external scheduler
	Internal InternalKeyConfig `mapstructure:"internal"`
}

type APIKeyConfig struct {
	Header string `mapstructure:"header"`
	// Keys maps the sha256 hex of an api key to the user id it authenticates as
	Keys map[string]string `mapstructure:"keys"`
}

type InternalKeyConfig struct {
	Header string `mapstructure:"header"`
	// Keys are sha256 hex hashes; an empty list disables the cron endpoints
	Keys []string `mapstructure:"keys"`
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	FromAddress string `mapstructure:"from_address" validate:"required_if=Enabled true"`
	// FromName is the sender shown to clients in invoice and reminder emails
	FromName   string `mapstructure:"from_name"`
	ReplyTo    string `mapstructure:"reply_to"`
	MaxRetries uint64 `mapstructure:"max_retries"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

// Enabled reports whether checkout sessions can be created
func (c StripeConfig) Enabled() bool {
	return c.SecretKey != ""
}

type SchedulerConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RecurringInterval time.Duration `mapstructure:"recurring_interval"`
	OverdueInterval   time.Duration `mapstructure:"overdue_interval"`
	FollowUpInterval  time.Duration `mapstructure:"followup_interval"`
	// RunTimeout bounds a single tick of any job
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PublicConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/invoicekit")

	v.SetEnvPrefix("INVOICEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 60)
	v.SetDefault("auth.api_key.header", "x-api-key")
	v.SetDefault("auth.internal.header", "x-internal-key")
	v.SetDefault("email.max_retries", 3)
	v.SetDefault("email.from_name", "InvoiceKit")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.recurring_interval", "15m")
	v.SetDefault("scheduler.overdue_interval", "1h")
	v.SetDefault("scheduler.followup_interval", "15m")
	v.SetDefault("scheduler.run_timeout", "5m")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("public.rate_limit.per_second", 5)
	v.SetDefault("public.rate_limit.burst", 10)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Auth: AuthConfig{
			APIKey:   APIKeyConfig{Header: "x-api-key"},
			Internal: InternalKeyConfig{Header: "x-internal-key"},
		},
		Email: EmailConfig{FromName: "InvoiceKit", MaxRetries: 3},
		Scheduler: SchedulerConfig{
			RecurringInterval: 15 * time.Minute,
			OverdueInterval:   time.Hour,
			FollowUpInterval:  15 * time.Minute,
			RunTimeout:        5 * time.Minute,
		},
		Cache: CacheConfig{Enabled: true},
		Public: PublicConfig{
			RateLimit: RateLimitConfig{PerSecond: 5, Burst: 10},
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
