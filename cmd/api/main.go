// Package main implements the pulse API server: it serves the published
// feed snapshot, exposes run status, and accepts manual run triggers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/abratronix/pulse/engine/config"
	"github.com/abratronix/pulse/engine/publish"
	"github.com/abratronix/pulse/engine/run"
	"github.com/abratronix/pulse/engine/score"
	"github.com/abratronix/pulse/pkg/metrics"
	"github.com/abratronix/pulse/pkg/mid"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Optional .env for local development; secrets come from the environment.
	_ = godotenv.Load()

	if err := runServer(*configPath, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func runServer(configPath string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	creds := config.CredentialsFromEnv()

	reg := metrics.New()
	adapters := config.BuildAdapters(cfg, creds, logger)
	engine := score.New(score.Config{
		SourceWeights: cfg.Scoring.SourceWeights,
		HalfLife:      time.Duration(cfg.Scoring.HalfLifeHours) * time.Hour,
	})
	writer := publish.NewWriter(cfg.Output.Path)

	coord := run.New(run.Config{
		AdapterTimeout: cfg.Limits.AdapterTimeout(),
		MaxPerSource:   cfg.Limits.MaxPerSource,
		MaxTotal:       cfg.Limits.MaxTotal,
	}, run.Deps{
		Adapters: adapters,
		Engine:   engine,
		Writer:   writer,
		Logger:   logger,
		Metrics:  reg,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/v1/feed", handleFeed(writer, logger))
	mux.HandleFunc("GET /api/v1/status", handleStatus(coord))
	mux.HandleFunc("POST /api/v1/run", handleRun(coord, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("pulse-api"),
		mid.CORS(envOr("CORS_ORIGIN", "*")),
	)

	srv := &http.Server{
		Addr:         ":" + envOr("PORT", "8080"),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a manual run responds when the run finishes
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr, "adapters", len(adapters))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFeed serves the last published snapshot. Before the first
// successful run there is nothing to serve yet.
func handleFeed(writer *publish.Writer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := publish.Load(writer.Path())
		if err != nil {
			if os.IsNotExist(err) {
				http.Error(w, `{"error":"no snapshot published yet"}`, http.StatusNotFound)
				return
			}
			logger.Error("load snapshot failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleStatus(coord *run.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, coord.Status())
	}
}

// handleRun triggers a run and responds with the finished report. The run
// is detached from the request context so a dropped client connection does
// not abort fetching midway.
func handleRun(coord *run.Coordinator, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := coord.TriggerRun(context.WithoutCancel(r.Context()))
		if errors.Is(err, run.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		if err != nil {
			logger.Error("triggered run failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, report)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
