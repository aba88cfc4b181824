package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	BaseURL     string `mapstructure:"BASE_URL"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	StripeSecretKey string `mapstructure:"STRIPE_SECRET_KEY"`
	AdminSecret     string `mapstructure:"ADMIN_SECRET"`

	CreditsPerVerification int64 `mapstructure:"CREDITS_PER_VERIFICATION"`
	PricePerCreditCents    int64 `mapstructure:"PRICE_PER_CREDIT_CENTS"`
	MinPurchaseCredits     int64 `mapstructure:"MIN_PURCHASE_CREDITS"`
	MaxPurchaseCredits     int64 `mapstructure:"MAX_PURCHASE_CREDITS"`
	DefaultAdminCredits    int64 `mapstructure:"DEFAULT_ADMIN_CREDITS"`
	MaxBatchSize           int   `mapstructure:"MAX_BATCH_SIZE"`

	PaymentTimeout time.Duration `mapstructure:"PAYMENT_TIMEOUT"`
	VerifyTimeout  time.Duration `mapstructure:"VERIFY_TIMEOUT"`

	WorkerCount     int `mapstructure:"WORKER_COUNT"`
	WorkerQueueSize int `mapstructure:"WORKER_QUEUE_SIZE"`
	WorkerRetries   int `mapstructure:"WORKER_RETRIES"`
}

var envKeys = []string{
	"SERVER_PORT", "BASE_URL", "STORE_DRIVER", "DATABASE_URL", "REDIS_ADDR",
	"RABBITMQ_URL", "STRIPE_SECRET_KEY", "ADMIN_SECRET", "API_SECRET_KEY",
	"CREDITS_PER_VERIFICATION", "PRICE_PER_CREDIT_CENTS", "MIN_PURCHASE_CREDITS",
	"MAX_PURCHASE_CREDITS", "DEFAULT_ADMIN_CREDITS", "MAX_BATCH_SIZE",
	"PAYMENT_TIMEOUT", "VERIFY_TIMEOUT", "WORKER_COUNT", "WORKER_QUEUE_SIZE",
	"WORKER_RETRIES",
}

// LoadConfig reads settings from the process environment. A .env file is
// loaded into the environment by main before this runs.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8000")
	viper.SetDefault("BASE_URL", "http://localhost:8000")
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("CREDITS_PER_VERIFICATION", 10)
	viper.SetDefault("PRICE_PER_CREDIT_CENTS", 1)
	viper.SetDefault("MIN_PURCHASE_CREDITS", 10)
	viper.SetDefault("MAX_PURCHASE_CREDITS", 10000)
	viper.SetDefault("DEFAULT_ADMIN_CREDITS", 100)
	viper.SetDefault("MAX_BATCH_SIZE", 10)
	viper.SetDefault("PAYMENT_TIMEOUT", "15s")
	viper.SetDefault("VERIFY_TIMEOUT", "10s")
	viper.SetDefault("WORKER_COUNT", 4)
	viper.SetDefault("WORKER_QUEUE_SIZE", 100)
	viper.SetDefault("WORKER_RETRIES", 3)

	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if strings.TrimSpace(cfg.AdminSecret) == "" {
		cfg.AdminSecret = strings.TrimSpace(viper.GetString("API_SECRET_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}

	if strings.TrimSpace(c.AdminSecret) == "" {
		return errors.New("ADMIN_SECRET (or API_SECRET_KEY) is required")
	}
	if c.CreditsPerVerification <= 0 {
		return errors.New("CREDITS_PER_VERIFICATION must be positive")
	}
	if c.PricePerCreditCents <= 0 {
		return errors.New("PRICE_PER_CREDIT_CENTS must be positive")
	}
	if c.MinPurchaseCredits <= 0 || c.MinPurchaseCredits > c.MaxPurchaseCredits {
		return fmt.Errorf("invalid purchase range %d..%d", c.MinPurchaseCredits, c.MaxPurchaseCredits)
	}
	if c.DefaultAdminCredits < 0 {
		return errors.New("DEFAULT_ADMIN_CREDITS cannot be negative")
	}
	if c.MaxBatchSize <= 0 {
		return errors.New("MAX_BATCH_SIZE must be positive")
	}
	if c.PaymentTimeout <= 0 || c.VerifyTimeout <= 0 {
		return errors.New("PAYMENT_TIMEOUT and VERIFY_TIMEOUT must be positive")
	}
	if c.WorkerCount <= 0 || c.WorkerQueueSize <= 0 || c.WorkerRetries < 0 {
		return errors.New("invalid worker pool settings")
	}
	return nil
}

// SuccessURL is the checkout return URL; Stripe substitutes the session id.
func (c *Config) SuccessURL() string {
	return c.BaseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
}

func (c *Config) CancelURL() string {
	return c.BaseURL + "/payment/cancel"
}
