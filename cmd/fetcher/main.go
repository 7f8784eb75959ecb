// Command fetcher runs the aggregation pipeline on a schedule: one run at
// startup, then one per interval. Run reports go to the log and, when a
// NATS URL is given, onto a subject for downstream consumers.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/abratronix/pulse/engine/config"
	"github.com/abratronix/pulse/engine/publish"
	"github.com/abratronix/pulse/engine/run"
	"github.com/abratronix/pulse/engine/score"
	"github.com/abratronix/pulse/pkg/metrics"
	"github.com/abratronix/pulse/pkg/natsutil"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	interval := flag.Duration("interval", 30*time.Minute, "run interval (0 = one-shot)")
	natsURL := flag.String("nats", "", "NATS URL for run reports (empty = log only)")
	subject := flag.String("subject", "pulse.runs", "NATS subject for run reports")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	if err := runDaemon(*configPath, *interval, *natsURL, *subject, logger); err != nil {
		logger.Error("fetcher exited with error", "err", err)
		os.Exit(1)
	}
}

func runDaemon(configPath string, interval time.Duration, natsURL, subject string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds := config.CredentialsFromEnv()

	var nc *nats.Conn
	var onReport func(context.Context, run.Report)
	if natsURL != "" {
		nc, err = nats.Connect(natsURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		logger.Info("publishing run reports", "subject", subject)
		onReport = func(ctx context.Context, r run.Report) {
			if err := natsutil.Publish(ctx, nc, subject, r); err != nil {
				logger.Warn("nats publish failed", "err", err)
			}
		}
	}

	coord := run.New(run.Config{
		AdapterTimeout: cfg.Limits.AdapterTimeout(),
		MaxPerSource:   cfg.Limits.MaxPerSource,
		MaxTotal:       cfg.Limits.MaxTotal,
	}, run.Deps{
		Adapters: config.BuildAdapters(cfg, creds, logger),
		Engine: score.New(score.Config{
			SourceWeights: cfg.Scoring.SourceWeights,
			HalfLife:      time.Duration(cfg.Scoring.HalfLifeHours) * time.Hour,
		}),
		Writer:   publish.NewWriter(cfg.Output.Path),
		Logger:   logger,
		Metrics:  metrics.New(),
		OnReport: onReport,
	})

	once := func() {
		if _, err := coord.TriggerRun(ctx); err != nil && !errors.Is(err, run.ErrRunInProgress) {
			logger.Error("run failed", "err", err)
		}
	}

	once()
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			once()
		}
	}
}
