package manager

import (
	"time"

	"github.com/rs/zerolog"

	"streamd/internal/bridge"
	"streamd/internal/registry"
	"streamd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth     = 32
	defaultMaxWait           = 30 * time.Second
	defaultDrainTimeout      = 5 * time.Second
	defaultGenerationTimeout = 30 * time.Second

	// chatRepetitionPenalty is applied to chat requests that leave it unset.
	chatRepetitionPenalty = 1.2
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Registry     *registry.Registry
	DefaultModel string
	// Backend is the runtime type used for models that do not name one.
	Backend string
	Device  string

	// Admission. ParallelSessions lets sessions share the loaded model;
	// otherwise they run one at a time behind a FIFO of MaxQueueDepth.
	MaxQueueDepth    int
	MaxWait          time.Duration
	ParallelSessions bool
	DrainTimeout     time.Duration

	// Stream bridge
	QueueSize         int
	StepTimeout       time.Duration
	GenerationTimeout time.Duration
	Granularity       string

	// External llama-server configuration (no envs; set by callers)
	LlamaBin       string
	LlamaHost      string
	LlamaPortStart int
	LlamaPortEnd   int
	LlamaCtxSize   int
	LlamaThreads   int
	LlamaNGL       int
	LlamaExtraArgs []string

	// Adapters overrides the runtime adapters keyed by model type.
	Adapters  map[string]InferenceAdapter
	Logger    *zerolog.Logger
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	if cfg.Registry == nil {
		cfg.Registry = registry.New(nil)
	}
	if cfg.Backend == "" {
		cfg.Backend = types.ModelTypeLlamaCPP
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = bridge.DefaultQueueSize
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	var pub EventPublisher = noopPublisher{}
	if cfg.Publisher != nil {
		pub = cfg.Publisher
	}
	m := &Manager{
		cfg:       cfg,
		reg:       cfg.Registry,
		state:     StateEmpty,
		log:       log,
		publisher: pub,
		startTime: time.Now(),
		adapters:  make(map[string]InferenceAdapter),
	}
	m.adapters[types.ModelTypeInProcess] = NewLlamaAdapter(cfg.LlamaCtxSize, cfg.LlamaThreads)
	sub := NewLlamaSubprocessAdapter(cfg).(*llamaSubprocessAdapter)
	sub.setPublisher(pub)
	sub.log = log.With().Str("adapter", "llama_subprocess").Logger()
	m.adapters[types.ModelTypeLlamaCPP] = sub
	for k, a := range cfg.Adapters {
		m.adapters[k] = a
	}
	return m
}
