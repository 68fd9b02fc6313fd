package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/recombinant/internal/admin"
	"github.com/JonMunkholm/recombinant/internal/ckan"
	"github.com/JonMunkholm/recombinant/internal/config"
	"github.com/JonMunkholm/recombinant/internal/core"
	"github.com/JonMunkholm/recombinant/internal/logging"
	"github.com/JonMunkholm/recombinant/internal/schema"
)

func main() {
	_ = godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	registry, err := schema.Load(cfg.Recombinant.Tables...)
	if err != nil {
		slog.Error("failed to load table descriptors", "error", err)
		os.Exit(1)
	}

	api := ckan.New(cfg.CKAN.URL,
		ckan.WithAPIKey(cfg.CKAN.APIKey),
		ckan.WithTimeout(cfg.CKAN.Timeout),
	)
	service := core.NewService(api, registry, core.Options{
		ContactEmail: cfg.Recombinant.ContactEmail,
		Debug:        true,
		Locales:      cfg.Recombinant.Locales,
	})

	runner := &admin.Runner{
		API:      api,
		Registry: registry,
		Service:  service,
		Out:      os.Stdout,
		Lang:     cfg.Recombinant.Locales[0],
	}
	if err := admin.NewCommand(runner).ExecuteContext(context.Background()); err != nil {
		slog.Debug("command failed", "error", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, "error:", core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
