package bridge

import (
	"errors"
	"fmt"
)

// Defaults used when a request leaves a sampling knob unset.
const (
	DefaultMaxNewTokens      = 2048
	DefaultTemperature       = 0.7
	DefaultTopP              = 0.95
	DefaultTopK              = 40
	DefaultRepetitionPenalty = 1.0

	// MaxTokensCeiling bounds max_new_tokens regardless of what a caller asks for.
	MaxTokensCeiling = 2048
)

// GenerationConfig carries the sampling parameters of one generation. It is
// passed by value and never modified once the producer starts.
type GenerationConfig struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	Stream            bool
	Stop              []string
	Seed              int
}

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid generation config")

// Validate checks the documented ranges.
func (c GenerationConfig) Validate() error {
	switch {
	case c.MaxNewTokens <= 0:
		return fmt.Errorf("%w: max_new_tokens must be > 0, got %d", ErrInvalidConfig, c.MaxNewTokens)
	case c.Temperature <= 0:
		return fmt.Errorf("%w: temperature must be > 0, got %g", ErrInvalidConfig, c.Temperature)
	case c.TopP <= 0 || c.TopP > 1:
		return fmt.Errorf("%w: top_p must be in (0,1], got %g", ErrInvalidConfig, c.TopP)
	case c.TopK < 0:
		return fmt.Errorf("%w: top_k must be >= 0, got %d", ErrInvalidConfig, c.TopK)
	case c.RepetitionPenalty <= 0:
		return fmt.Errorf("%w: repetition_penalty must be > 0, got %g", ErrInvalidConfig, c.RepetitionPenalty)
	}
	return nil
}

// WithDefaults fills zero-valued knobs from the package defaults.
func (c GenerationConfig) WithDefaults() GenerationConfig {
	if c.MaxNewTokens <= 0 {
		c.MaxNewTokens = DefaultMaxNewTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP <= 0 {
		c.TopP = DefaultTopP
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.RepetitionPenalty <= 0 {
		c.RepetitionPenalty = DefaultRepetitionPenalty
	}
	if len(c.Stop) > 0 {
		c.Stop = append([]string(nil), c.Stop...)
	}
	return c
}

// Clamp caps MaxNewTokens at ceiling. A non-positive ceiling leaves it unchanged.
func (c GenerationConfig) Clamp(ceiling int) GenerationConfig {
	if ceiling > 0 && c.MaxNewTokens > ceiling {
		c.MaxNewTokens = ceiling
	}
	return c
}
