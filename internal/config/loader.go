package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service. Load fills it on top of
// Defaults; ApplyEnv and command-line flags override individual fields.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	Backend      string `json:"backend" yaml:"backend" toml:"backend"`
	Device       string `json:"device" yaml:"device" toml:"device"`

	LlamaBin       string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	LlamaHost      string   `json:"llama_host" yaml:"llama_host" toml:"llama_host"`
	LlamaPortStart int      `json:"llama_port_start" yaml:"llama_port_start" toml:"llama_port_start"`
	LlamaPortEnd   int      `json:"llama_port_end" yaml:"llama_port_end" toml:"llama_port_end"`
	LlamaCtxSize   int      `json:"llama_ctx_size" yaml:"llama_ctx_size" toml:"llama_ctx_size"`
	LlamaThreads   int      `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaNGL       int      `json:"llama_ngl" yaml:"llama_ngl" toml:"llama_ngl"`
	LlamaExtraArgs []string `json:"llama_extra_args" yaml:"llama_extra_args" toml:"llama_extra_args"`

	QueueSize         int      `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	MaxQueueDepth     int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait           Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	ParallelSessions  bool     `json:"parallel_sessions" yaml:"parallel_sessions" toml:"parallel_sessions"`
	DrainTimeout      Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	StepTimeout       Duration `json:"step_timeout" yaml:"step_timeout" toml:"step_timeout"`
	GenerationTimeout Duration `json:"generation_timeout" yaml:"generation_timeout" toml:"generation_timeout"`
	Granularity       string   `json:"granularity" yaml:"granularity" toml:"granularity"`

	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`

	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat     string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile       string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogMaxSizeMB  int    `json:"log_max_size_mb" yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups int    `json:"log_max_backups" yaml:"log_max_backups" toml:"log_max_backups"`
	LogMaxAgeDays int    `json:"log_max_age_days" yaml:"log_max_age_days" toml:"log_max_age_days"`
}

// Defaults returns the configuration used when nothing else is specified.
func Defaults() Config {
	return Config{
		Addr:              ":8080",
		ModelsDir:         "~/models/llm",
		Backend:           "llama.cpp",
		Device:            "cpu",
		LlamaBin:          "llama-server",
		LlamaHost:         "127.0.0.1",
		QueueSize:         64,
		MaxQueueDepth:     32,
		MaxWait:           Duration(30 * time.Second),
		DrainTimeout:      Duration(5 * time.Second),
		GenerationTimeout: Duration(30 * time.Second),
		Granularity:       "fragment",
		MaxBodyBytes:      1 << 20,
		LogLevel:          "info",
		LogFormat:         "console",
		LogFile:           "logs/app.log",
		LogMaxSizeMB:      50,
		LogMaxBackups:     3,
		LogMaxAgeDays:     28,
	}
}

// Load reads a configuration file based on its extension, on top of Defaults.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Backend {
	case "llama.cpp", "in-process":
	default:
		return fmt.Errorf("backend must be llama.cpp or in-process, got %q", c.Backend)
	}
	switch strings.ToLower(c.Granularity) {
	case "", "fragment", "token", "char", "character":
	default:
		return fmt.Errorf("granularity must be fragment or char, got %q", c.Granularity)
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	if c.LlamaPortStart > 0 && c.LlamaPortEnd < c.LlamaPortStart {
		return fmt.Errorf("llama_port_end (%d) < llama_port_start (%d)", c.LlamaPortEnd, c.LlamaPortStart)
	}
	if c.QueueSize < 0 || c.MaxQueueDepth < 0 || c.MaxBodyBytes < 0 {
		return fmt.Errorf("queue_size, max_queue_depth and max_body_bytes must not be negative")
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
