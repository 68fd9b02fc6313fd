package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/recombinant/internal/archive"
	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/config"
	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/history"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/metrics"
	"github.com/JonMunkholm/recombinant/internal/schema"
	"github.com/JonMunkholm/recombinant/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	registry, err := schema.Load(cfg.Recombinant.Tables...)
	if err != nil {
		slog.Error("failed to load table descriptors", "error", err)
		os.Exit(1)
	}
	slog.Info("table descriptors loaded",
		"files", len(cfg.Recombinant.Tables),
		"dataset_types", len(registry.DatasetTypes()),
	)

	ctx := context.Background()

	store := history.Store(history.Nop{})
	if cfg.Database.Enabled() {
		pool, err := connectDB(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := history.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate upload history", "error", err)
			os.Exit(1)
		}
		store = pg
		slog.Info("upload history enabled")
	} else {
		slog.Info("DATABASE_URL not set, upload history disabled")
	}

	archiveStore, err := archive.Open(ctx, archive.Config{
		Driver: archive.Driver(cfg.Archive.Driver),
		FSRoot: cfg.Archive.FSRoot,
		S3: archive.S3Config{
			Bucket:          cfg.Archive.S3Bucket,
			Region:          cfg.Archive.S3Region,
			Endpoint:        cfg.Archive.S3Endpoint,
			PathStyle:       cfg.Archive.S3PathStyle,
			AccessKeyID:     cfg.Archive.S3AccessKeyID,
			SecretAccessKey: cfg.Archive.S3SecretAccessKey,
		},
	})
	if err != nil {
		slog.Error("failed to open rejected upload archive", "error", err)
		os.Exit(1)
	}
	if archiveStore != nil {
		slog.Info("rejected upload archive enabled", "driver", archiveStore.Driver())
	}

	api := ckan.New(cfg.CKAN.URL,
		ckan.WithAPIKey(cfg.CKAN.APIKey),
		ckan.WithTimeout(cfg.CKAN.Timeout),
	)
	m := metrics.New()

	service := core.NewService(api, registry, core.Options{
		ContactEmail: cfg.Recombinant.ContactEmail,
		Debug:        cfg.Recombinant.Debug,
		Locales:      cfg.Recombinant.Locales,
		History:      store,
		Archive:      archiveStore,
		Metrics:      m,
	})

	server := web.NewServer(service, cfg, m)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
