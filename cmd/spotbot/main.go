package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/spotbot/config"
	"github.com/alejandrodnm/spotbot/internal/adapters/storage"
	"github.com/alejandrodnm/spotbot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "consume", "backtest | consume | sweep | stats")
	strategyName := flag.String("strategy", "trend", "strategy name: "+strings.Join(strategy.Names(), " | "))
	symbol := flag.String("symbol", "BTCUSDT", "trading pair")
	source := flag.String("source", "", "filter stats by signal source")
	start := flag.String("start", "", "period start, RFC 3339 or 2006-01-02")
	end := flag.String("end", "", "period end, RFC 3339 or 2006-01-02 (default: now)")
	verbose := flag.Bool("verbose", false, "set log level to debug and print per-trade detail")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("spotbot starting",
		"config", *configPath,
		"mode", *mode,
		"symbol", *symbol,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "backtest":
		err = runBacktest(ctx, cfg, store, *strategyName, *symbol, *start, *end, *verbose)
	case "consume":
		err = runConsume(ctx, cfg, store)
	case "sweep":
		err = runSweep(ctx, cfg, store)
	case "stats":
		err = runStats(ctx, cfg, store, *symbol, *source, *start, *end, *verbose)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("spotbot exited with error", "mode", *mode, "err", err)
		os.Exit(1)
	}

	slog.Info("spotbot stopped cleanly")
}

// parsePeriod resolves the -start/-end flags. End defaults to now, start to
// thirty days before end.
func parsePeriod(startArg, endArg string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if endArg != "" {
		t, err := parseTimeArg(endArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -end: %w", err)
		}
		end = t
	}

	start := end.AddDate(0, 0, -30)
	if startArg != "" {
		t, err := parseTimeArg(startArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -start: %w", err)
		}
		start = t
	}
	return start, end, nil
}

func parseTimeArg(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
