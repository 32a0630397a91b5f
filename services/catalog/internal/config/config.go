package config

import (
	"os"
	"strings"
)

type Config struct {
	DatabaseURL string
	NATSURL     string
	// JWTSecret verifies tokens issued by the hosted auth provider.
	JWTSecret string
	// SigningSecret signs storage object URLs; must match commerce.
	SigningSecret  string
	StorageBaseURL string
}

func Load() Config {
	cfg := Config{
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		NATSURL:        strings.TrimSpace(os.Getenv("NATS_URL")),
		JWTSecret:      strings.TrimSpace(os.Getenv("JWT_SECRET")),
		SigningSecret:  strings.TrimSpace(os.Getenv("SIGNING_SECRET")),
		StorageBaseURL: strings.TrimSpace(os.Getenv("STORAGE_BASE_URL")),
	}
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = "http://localhost:9000"
	}
	return cfg
}
