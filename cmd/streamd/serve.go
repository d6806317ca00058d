package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"streamd/internal/config"
	"streamd/internal/httpapi"
	"streamd/internal/manager"
	"streamd/internal/registry"
	"streamd/pkg/types"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP streaming server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	registerServeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser.Close()
	zlog.Logger = log

	models, err := registry.NewGGUFScanner(cfg.Backend).Scan(cfg.ModelsDir)
	if err != nil {
		// An empty registry still serves /healthz and /status.
		log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed")
	}
	reg := registry.New(models)

	mgr := manager.NewWithConfig(managerConfig(cfg, reg, &log))
	defer mgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DefaultModel != "" {
		loaded, err := mgr.Load(ctx, types.LoadModelRequest{Model: cfg.DefaultModel})
		if err != nil {
			return fmt.Errorf("load default model %q: %w", cfg.DefaultModel, err)
		}
		log.Info().Str("model", loaded.ID).Str("type", loaded.Type).Str("device", loaded.Device).Msg("default model loaded")
	}

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins, cfg.CORSAllowedMethods, cfg.CORSAllowedHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(models)).
			Bool("parallel_sessions", cfg.ParallelSessions).Msg("streamd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
	return nil
}

func managerConfig(cfg config.Config, reg *registry.Registry, log *zerolog.Logger) manager.ManagerConfig {
	return manager.ManagerConfig{
		Registry:          reg,
		Backend:           cfg.Backend,
		Device:            cfg.Device,
		MaxQueueDepth:     cfg.MaxQueueDepth,
		MaxWait:           cfg.MaxWait.D(),
		ParallelSessions:  cfg.ParallelSessions,
		DrainTimeout:      cfg.DrainTimeout.D(),
		QueueSize:         cfg.QueueSize,
		StepTimeout:       cfg.StepTimeout.D(),
		GenerationTimeout: cfg.GenerationTimeout.D(),
		Granularity:       cfg.Granularity,
		LlamaBin:          cfg.LlamaBin,
		LlamaHost:         cfg.LlamaHost,
		LlamaPortStart:    cfg.LlamaPortStart,
		LlamaPortEnd:      cfg.LlamaPortEnd,
		LlamaCtxSize:      cfg.LlamaCtxSize,
		LlamaThreads:      cfg.LlamaThreads,
		LlamaNGL:          cfg.LlamaNGL,
		LlamaExtraArgs:    cfg.LlamaExtraArgs,
		Logger:            log,
		Publisher:         manager.NewMetricsPublisher(nil),
	}
}
