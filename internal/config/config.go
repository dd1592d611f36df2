/**
 * @description
 * This file handles the configuration management for the ClawBack backend.
 * It uses the 'viper' library to load configuration from environment
 * variables into a single Config object constructed once at process start;
 * nothing else in the service reads the environment directly.
 */
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	ClerkJWKSURL  string `mapstructure:"CLERK_JWKS_URL"`
	ClerkIssuer   string `mapstructure:"CLERK_ISSUER"`
	ClerkAudience string `mapstructure:"CLERK_AUDIENCE"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `mapstructure:"STRIPE_PRICE_ID"`
	CheckoutSuccessURL  string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `mapstructure:"CHECKOUT_CANCEL_URL"`

	// CronSecret guards the HTTP reminder trigger. It is deliberately not
	// required at load time: the endpoint fails closed with a 500 when unset.
	CronSecret          string `mapstructure:"CRON_SECRET"`
	ReminderJobSchedule string `mapstructure:"REMINDER_JOB_SCHEDULE"`
	EnableReminderCron  bool   `mapstructure:"ENABLE_REMINDER_CRON"`

	AMQPURL  string `mapstructure:"AMQP_URL"`
	RedisURL string `mapstructure:"REDIS_URL"`

	CheckoutRateLimit int `mapstructure:"CHECKOUT_RATE_LIMIT"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REMINDER_JOB_SCHEDULE", "0 8 * * *") // Daily at 08:00.
	viper.SetDefault("ENABLE_REMINDER_CRON", false)
	viper.SetDefault("CHECKOUT_RATE_LIMIT", 5)
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "https://clawback.app/upgrade/success")
	viper.SetDefault("CHECKOUT_CANCEL_URL", "https://clawback.app/upgrade/cancel")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("CLERK_ISSUER")
	_ = viper.BindEnv("CLERK_AUDIENCE")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("STRIPE_PRICE_ID")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_CANCEL_URL")
	_ = viper.BindEnv("CRON_SECRET")
	_ = viper.BindEnv("REMINDER_JOB_SCHEDULE")
	_ = viper.BindEnv("ENABLE_REMINDER_CRON")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if config.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if config.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	return &config, nil
}
