package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Config struct {
	// StripeAPIKey authenticates outbound provider calls (sk_...).
	StripeAPIKey string
	// StripeWebhookSecret is the webhook signing secret (whsec_...).
	// Required; the gate never accepts unsigned events.
	StripeWebhookSecret string

	DatabaseURL string
	RedisDSN    string
	NATSURL     string

	// BaseURL is the public site origin used in delivery emails and
	// checkout redirect URLs.
	BaseURL string
	// StorageBaseURL is the storage gateway origin for signed object URLs.
	StorageBaseURL string
	// SigningSecret signs storage object URLs.
	SigningSecret string

	SMTPAddr     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// ReceiptTTL bounds how long webhook event receipts are kept in Redis.
	ReceiptTTL time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		StripeAPIKey:        strings.TrimSpace(os.Getenv("STRIPE_API_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisDSN:            strings.TrimSpace(os.Getenv("REDIS_DSN")),
		NATSURL:             strings.TrimSpace(os.Getenv("NATS_URL")),
		BaseURL:             strings.TrimSpace(os.Getenv("BASE_URL")),
		StorageBaseURL:      strings.TrimSpace(os.Getenv("STORAGE_BASE_URL")),
		SigningSecret:       strings.TrimSpace(os.Getenv("SIGNING_SECRET")),
		SMTPAddr:            strings.TrimSpace(os.Getenv("SMTP_ADDR")),
		SMTPFrom:            strings.TrimSpace(os.Getenv("SMTP_FROM")),
		SMTPUsername:        strings.TrimSpace(os.Getenv("SMTP_USERNAME")),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		ReceiptTTL:          72 * time.Hour,
	}

	if cfg.StripeAPIKey == "" {
		return Config{}, errors.New("STRIPE_API_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return Config{}, errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.SigningSecret == "" {
		return Config{}, errors.New("SIGNING_SECRET is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = "http://localhost:9000"
	}
	if cfg.SMTPFrom == "" {
		cfg.SMTPFrom = "downloads@distro.example"
	}
	if ttl := strings.TrimSpace(os.Getenv("RECEIPT_TTL")); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, errors.New("RECEIPT_TTL is not a valid duration")
		}
		cfg.ReceiptTTL = d
	}
	return cfg, nil
}
