// Command mmsignal runs the market-microstructure engine: cross-exchange
// arbitrage monitoring, the live imbalance signal engine, bar-strategy
// backtests and the HTTP/WebSocket surface, selected by the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/mmsignal/internal/app"
	"github.com/alanyoungcy/mmsignal/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file (empty for defaults and environment only)")
	flag.Parse()
	os.Exit(run(*configPath))
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func run(configPath string) int {
	logger := newLogger(slog.LevelInfo)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", configPath),
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger = newLogger(parseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("mmsignal starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
	)
	logger.Debug("active configuration", slog.Any("config", config.RedactedConfig(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	switch err := application.Run(ctx); {
	case err == nil:
		logger.Info("mmsignal finished")
	case errors.Is(err, context.Canceled):
		logger.Info("mmsignal stopped")
	default:
		logger.Error("mmsignal exited with error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		if strings.EqualFold(s, "warning") {
			return slog.LevelWarn
		}
		return slog.LevelInfo
	}
	return l
}
