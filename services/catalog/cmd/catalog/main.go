package main

import (
	"context"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/distro/internal/platform/auth"
	"github.com/example/distro/internal/platform/config"
	"github.com/example/distro/internal/platform/db"
	"github.com/example/distro/internal/platform/httpserver"
	"github.com/example/distro/internal/platform/logging"
	"github.com/example/distro/internal/platform/natsconn"
	"github.com/example/distro/internal/platform/run"
	"github.com/example/distro/internal/platform/signing"
	catalogconfig "github.com/example/distro/services/catalog/internal/config"
	"github.com/example/distro/services/catalog/internal/handlers"
	"github.com/example/distro/services/catalog/internal/store"
	"github.com/example/distro/services/catalog/internal/worker"
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

	catalogCfg := catalogconfig.Load()
	if catalogCfg.SigningSecret == "" {
		log.Error("SIGNING_SECRET is required")
		run.Exit(1)
	}

	cs, pool, closePool := initStore(log, cfg, catalogCfg)
	if closePool != nil {
		defer closePool()
	}

	verifier := auth.JWTVerifier{Secret: []byte(catalogCfg.JWTSecret)}
	signer := signing.New(catalogCfg.SigningSecret)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if pool == nil {
			return nil
		}
		return pool.Ping(context.Background())
	}})

	// Public reads.
	r.Get("/v1/bands", handlers.ListBands(cs))
	r.Get("/v1/bands/{band_id}", handlers.GetBand(cs))
	r.Get("/v1/bands/{band_id}/albums", handlers.ListBandAlbums(cs))
	r.Get("/v1/albums/{album_id}", handlers.GetAlbum(cs))
	r.Get("/v1/albums/{album_id}/tracks", handlers.ListAlbumTracks(cs))
	r.Get("/v1/playlists/{playlist_id}", handlers.GetPlaylist(cs))
	r.Get("/v1/search", handlers.Search(cs))

	// Streaming works for anonymous listeners on published albums; the
	// owner check for drafts needs the identity when a token is present.
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/tracks/{track_id}/stream", handlers.StreamTrack(cs, signer, catalogCfg.StorageBaseURL))
	})

	// Authenticated mutations.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/bands", handlers.CreateBand(cs))
		r.Put("/v1/bands/{band_id}", handlers.UpdateBand(cs))
		r.Post("/v1/bands/{band_id}/albums", handlers.CreateAlbum(cs))
		r.Put("/v1/albums/{album_id}", handlers.UpdateAlbum(cs))
		r.Put("/v1/albums/{album_id}/archive", handlers.SetAlbumArchive(cs))
		r.Post("/v1/albums/{album_id}/tracks", handlers.CreateTrack(cs))
		r.Put("/v1/albums/{album_id}/tracks/order", handlers.ReorderTracks(cs))
		r.Delete("/v1/tracks/{track_id}", handlers.DeleteTrack(cs))
		r.Put("/v1/albums/{album_id}/like", handlers.LikeAlbum(cs))
		r.Delete("/v1/albums/{album_id}/like", handlers.UnlikeAlbum(cs))
		r.Get("/v1/playlists", handlers.ListMyPlaylists(cs))
		r.Post("/v1/playlists", handlers.CreatePlaylist(cs))
		r.Post("/v1/playlists/{playlist_id}/tracks", handlers.AddPlaylistTrack(cs))
		r.Delete("/v1/playlists/{playlist_id}/tracks/{track_id}", handlers.RemovePlaylistTrack(cs))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		// Sales consumer needs both NATS and Postgres; non-fatal if either
		// is unavailable in development.
		if pool != nil {
			nc, err := natsconn.Connect(natsconn.Options{})
			if err != nil {
				log.Error("nats connect", zap.Error(err))
			} else {
				worker.StartSalesConsumer(ctx, nc, pool)
				defer nc.Close()
			}
		} else {
			log.Warn("sales consumer disabled without Postgres")
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the CatalogStore backend. In production it requires a
// working Postgres connection and terminates otherwise.
func initStore(log *zap.Logger, cfg config.AppConfig, catalogCfg catalogconfig.Config) (store.CatalogStore, *pgxpool.Pool, func()) {
	if catalogCfg.DatabaseURL == "" {
		if cfg.IsProd() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory catalog store (development only)")
		return store.NewMemoryCatalogStore(), nil, nil
	}

	pool, err := db.OpenDSN(context.Background(), catalogCfg.DatabaseURL)
	if err != nil {
		if cfg.IsProd() {
			log.Error("Postgres is unreachable in production", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, using in-memory catalog store", zap.Error(err))
		return store.NewMemoryCatalogStore(), nil, nil
	}

	log.Info("postgres connected for catalog")
	return store.NewPostgresCatalogStore(pool), pool, pool.Close
}
