package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/finpoint/finpoint/internal/common"
	"github.com/finpoint/finpoint/internal/models"
	"github.com/finpoint/finpoint/internal/services/lifecycle"
	"github.com/finpoint/finpoint/internal/services/snapshot"
	"github.com/finpoint/finpoint/internal/storage"
)

func main() {
	var (
		configPath  = flag.String("config", os.Getenv("FINPOINT_CONFIG"), "path to TOML config file")
		recalculate = flag.String("recalculate", "", "comma-separated broker account ids to recompute, then exit")
		tickers     = flag.String("tickers", "", "comma-separated ticker ids to include in recomputation")
		fromFlag    = flag.String("from", "", "recompute window start (YYYY-MM-DD)")
		toFlag      = flag.String("to", "", "recompute window end (YYYY-MM-DD, default today)")
		modeFlag    = flag.String("mode", "", "processing mode: cascade or batch (default from config)")
		force       = flag.Bool("force", false, "rewrite snapshots even when already consistent")
	)
	flag.Parse()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	config, err := common.LoadConfig(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	common.PrintBanner(config, logger)

	store, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	tracker := lifecycle.NewTracker(store, logger)
	engine := snapshot.NewService(store, tracker, logger, config.Engine.MaxConcurrency, config.Engine.DefaultCurrency)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *recalculate != "" {
		req := models.BatchRequest{
			BrokerAccountIDs: splitIDs(*recalculate),
			TickerIDs:        splitIDs(*tickers),
			Mode:             models.ParseProcessingMode(config.Engine.ProcessingMode),
			ForceRecalculate: *force,
		}
		if *modeFlag != "" {
			req.Mode = models.ParseProcessingMode(*modeFlag)
		}
		if req.From, err = parseDay(*fromFlag); err != nil {
			logger.Fatal().Err(err).Msg("Invalid -from date")
		}
		if req.To, err = parseDay(*toFlag); err != nil {
			logger.Fatal().Err(err).Msg("Invalid -to date")
		}

		metrics, err := engine.ProcessBatch(ctx, req)
		if err != nil {
			logger.Fatal().Err(err).Msg("Recalculation failed")
		}
		if metrics.HasErrors() {
			for _, e := range metrics.Errors {
				logger.Error().Err(e).Msg("Recalculation cell error")
			}
			os.Exit(1)
		}
		common.PrintShutdownBanner(logger)
		return
	}

	logger.Info().
		Str("backend", config.Storage.Backend).
		Str("mode", config.Engine.ProcessingMode).
		Msg("Finpoint ready, waiting for shutdown signal")

	<-ctx.Done()

	common.PrintShutdownBanner(logger)
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return day.UTC(), nil
}
