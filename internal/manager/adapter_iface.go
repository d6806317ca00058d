package manager

import (
	"context"

	"streamd/internal/registry"
	"streamd/pkg/types"
)

// InferenceAdapter abstracts how a model of one runtime type is brought up.
// Load returns a Runtime that generates text and exposes the tokenizer; the
// Manager installs it in the registry and closes it on unload.
type InferenceAdapter interface {
	Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error)
}
