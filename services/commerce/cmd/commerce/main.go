package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/config"
	"github.com/example/distro/internal/platform/db"
	"github.com/example/distro/internal/platform/httpserver"
	"github.com/example/distro/internal/platform/logging"
	"github.com/example/distro/internal/platform/run"
	"github.com/example/distro/internal/platform/signing"
	commerceconfig "github.com/example/distro/services/commerce/internal/config"
	"github.com/example/distro/services/commerce/internal/email"
	"github.com/example/distro/services/commerce/internal/fees"
	"github.com/example/distro/services/commerce/internal/fulfillment"
	"github.com/example/distro/services/commerce/internal/handlers"
	"github.com/example/distro/services/commerce/internal/payments"
	"github.com/example/distro/services/commerce/internal/publisher"
	"github.com/example/distro/services/commerce/internal/receipts"
	"github.com/example/distro/services/commerce/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	commerceCfg, err := commerceconfig.Load()
	if err != nil {
		log.Error("commerce config", zap.Error(err))
		run.Exit(1)
	}

	pool, closePool := initPool(log, cfg, commerceCfg)
	if closePool != nil {
		defer closePool()
	}

	var st store.CommerceStore
	if pool != nil {
		st = store.NewPostgresCommerceStore(pool)
	} else {
		log.Warn("running with in-memory store, all state is lost on restart (development only)")
		st = store.NewMemoryCommerceStore()
	}

	rec, err := receipts.NewStore(commerceCfg.RedisDSN, commerceCfg.DatabaseURL, commerceCfg.ReceiptTTL, cfg.IsProd())
	if err != nil {
		log.Error("receipt store", zap.Error(err))
		run.Exit(1)
	}
	log.Info("receipt store initialised",
		zap.Bool("redis", commerceCfg.RedisDSN != ""),
		zap.Bool("postgres", commerceCfg.DatabaseURL != ""),
	)

	pub, err := publisher.New(commerceCfg.NATSURL, log)
	if err != nil {
		if cfg.IsProd() {
			log.Error("NATS is required in production", zap.Error(err))
			run.Exit(1)
		}
		log.Warn("NATS unavailable, commerce events will not be published", zap.Error(err))
		pub, _ = publisher.New("", log) // stub
	}

	pay := payments.NewStripeClient(commerceCfg.StripeAPIKey)

	var mail email.Sender
	if commerceCfg.SMTPAddr != "" {
		mail = email.NewSMTPSender(commerceCfg.SMTPAddr, commerceCfg.SMTPFrom, commerceCfg.SMTPUsername, commerceCfg.SMTPPassword)
	} else {
		if cfg.IsProd() {
			log.Error("SMTP_ADDR is required in production")
			run.Exit(1)
		}
		log.Warn("SMTP_ADDR not set, delivery emails will only be logged")
		mail = &email.LogSender{Log: log}
	}

	engine := fulfillment.NewEngine(st, pay, mail, pub, commerceCfg.BaseURL, log)

	checkout := handlers.NewCheckoutHandler(log, st, pay, engine, fees.Default, commerceCfg.BaseURL)
	webhook := handlers.NewWebhookHandler(commerceCfg.StripeWebhookSecret, log, rec, st, engine, pay, pub)
	download := handlers.NewDownloadHandler(log, st, signing.New(commerceCfg.SigningSecret), commerceCfg.StorageBaseURL)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if pool == nil {
			return nil
		}
		return pool.Ping(context.Background())
	}})

	r.Post("/v1/checkout/albums/{album_id}", checkout.CreateAlbumCheckout)
	r.Post("/v1/checkout/donations/{band_id}", checkout.CreateDonationCheckout)
	r.Post("/v1/purchases/success", checkout.Success)
	r.Post("/v1/purchases/resend", checkout.Resend)
	r.Post("/v1/webhooks/payments", webhook.ServeHTTP)
	r.Get("/download/{token}", download.Redeem)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initPool initialises the Postgres connection pool for commerce.
// In production it requires a working connection and terminates otherwise.
func initPool(log *zap.Logger, cfg config.AppConfig, commerceCfg commerceconfig.Config) (*pgxpool.Pool, func()) {
	if commerceCfg.DatabaseURL == "" {
		if cfg.IsProd() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, commerce will run without persistence (development only)")
		return nil, nil
	}

	pool, err := db.OpenDSN(context.Background(), commerceCfg.DatabaseURL)
	if err != nil {
		if cfg.IsProd() {
			log.Error("DATABASE_URL is set but Postgres is unreachable in production", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, commerce will run without persistence", zap.Error(err))
		return nil, nil
	}

	log.Info("postgres connected for commerce")
	return pool, pool.Close
}
