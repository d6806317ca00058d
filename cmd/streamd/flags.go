package main

import (
	"github.com/spf13/cobra"

	"streamd/internal/config"
)

func registerServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address, e.g. :8080")
	f.String("default-model", "", "model id to load at startup")
	f.String("device", "", "device for the loaded model (cpu, cuda, metal)")
	f.String("llama-bin", "", "llama-server binary for the llama.cpp backend")
	f.Int("max-queue-depth", 0, "requests allowed to wait for the model before 429")
	f.Duration("max-wait", 0, "longest a request waits for the model before 429")
	f.Bool("parallel-sessions", false, "let sessions share the loaded model concurrently")
	f.Duration("step-timeout", 0, "stop a session when no fragment arrives within this duration (0 disables)")
	f.Duration("generation-timeout", 0, "wall-clock cap per generation")
	f.String("granularity", "", "chunk granularity: fragment or char")
	f.Int64("max-body-bytes", 0, "maximum JSON request body size")
	f.Bool("cors", false, "enable CORS")
	f.String("cors-origins", "", "comma-separated allowed CORS origins")
	f.String("log-level", "", "process log level: debug, info, warn, error")
	f.String("log-format", "", "console or json")
	f.String("log-file", "", "rotated log file path (empty disables)")
}

// applyFlags copies flags the user actually set over cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	dur := func(name string, dst *config.Duration) {
		if f.Changed(name) {
			d, _ := f.GetDuration(name)
			*dst = config.Duration(d)
		}
	}
	str("models-dir", &cfg.ModelsDir)
	str("backend", &cfg.Backend)
	str("addr", &cfg.Addr)
	str("default-model", &cfg.DefaultModel)
	str("device", &cfg.Device)
	str("llama-bin", &cfg.LlamaBin)
	str("granularity", &cfg.Granularity)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("log-file", &cfg.LogFile)
	dur("max-wait", &cfg.MaxWait)
	dur("step-timeout", &cfg.StepTimeout)
	dur("generation-timeout", &cfg.GenerationTimeout)
	if f.Changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = f.GetInt("max-queue-depth")
	}
	if f.Changed("parallel-sessions") {
		cfg.ParallelSessions, _ = f.GetBool("parallel-sessions")
	}
	if f.Changed("max-body-bytes") {
		cfg.MaxBodyBytes, _ = f.GetInt64("max-body-bytes")
	}
	if f.Changed("cors") {
		cfg.CORSEnabled, _ = f.GetBool("cors")
	}
	if f.Changed("cors-origins") {
		v, _ := f.GetString("cors-origins")
		cfg.CORSAllowedOrigins = config.SplitCSV(v)
	}
}
