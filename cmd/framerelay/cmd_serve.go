package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/framerelay/internal/annotate"
	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/config"
	"github.com/user/framerelay/internal/pipeline"
	"github.com/user/framerelay/internal/publish"
	"github.com/user/framerelay/internal/relay"
	"github.com/user/framerelay/internal/remote"
	"github.com/user/framerelay/internal/scheduler"
	"github.com/user/framerelay/internal/state"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the framerelay daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "framerelay.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// buildCoordinator wires remote hop clients, the publish fan-out, and the
// stores into a pipeline coordinator. Shared by serve and process.
func buildCoordinator(cfg *config.Config) (*pipeline.Coordinator, *state.History, error) {
	history := state.NewHistory(cfg.HistoryLimit)
	journal := state.NewJournal(cfg.DataDir)
	sidecars := captures.NewStore()

	extractor, err := remote.NewExtractionClient(cfg.Extract.Endpoint, cfg.Extract.TokenBudget)
	if err != nil {
		return nil, nil, fmt.Errorf("create extraction client: %w", err)
	}
	detector := remote.NewDetectionClient(cfg.Detect.Endpoint, cfg.Detect.AnnotateInService)

	sinks := publish.NewRegistry()
	sinks.Register(publish.NewIngestSink(cfg.Ingest))
	if cfg.Dashboard.URL != "" {
		sinks.Register(publish.NewDashboardSink(cfg.Dashboard))
		slog.Info("dashboard sink enabled", "url", cfg.Dashboard.URL)
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		alerts, err := publish.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, nil, fmt.Errorf("create telegram sink: %w", err)
		}
		sinks.Register(alerts)
		slog.Info("telegram alert sink enabled", "chat_id", cfg.Telegram.ChatID)
	} else {
		slog.Warn("telegram alert sink disabled (no token or chat id)")
	}

	coord := pipeline.New(cfg, pipeline.Options{
		Extractor: extractor,
		Detector:  detector,
		Annotator: annotate.NewWriter(),
		Publisher: sinks,
		History:   history,
		Journal:   journal,
		Sidecars:  sidecars,
	})
	return coord, history, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	coord, history, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord.Start(ctx)
	defer coord.Stop()

	slog.Info("framerelay started",
		"data_dir", cfg.DataDir,
		"captures_root", cfg.CapturesRoot,
		"listen", cfg.Listen,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"extract_endpoint", cfg.Extract.Endpoint,
		"detect_endpoint", cfg.Detect.Endpoint,
		"pid_file", pidPath,
	)

	// Captures sweep
	if cfg.Sweep.Enabled {
		sweeper := scheduler.New(cfg.CapturesRoot, cfg.Sweep.Schedule, coord.Submit)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer sweeper.Stop()
	} else {
		slog.Info("captures sweep disabled")
	}

	// Relay HTTP server
	relaySrv := relay.NewServer(coord, history)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: relaySrv,
	}
	go func() {
		slog.Info("relay server started", "listen", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("relay server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
