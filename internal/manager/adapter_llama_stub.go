//go:build !llama

package manager

// This file provides a no-CGO stub for the in-process llama adapter. It is
// compiled when the 'llama' build tag is NOT set, keeping default builds and
// CI CGO-free. The real adapter lives in adapter_llama.go (tagged 'llama').

import (
	"context"

	"streamd/internal/registry"
	"streamd/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

// llamaAdapter refuses to load models without the 'llama' build tag. This
// avoids any mocked behavior in production binaries built without CGO support.
type llamaAdapter struct {
	ctxSize int
	threads int
}

func NewLlamaAdapter(ctxSize, threads int) InferenceAdapter {
	return &llamaAdapter{ctxSize: ctxSize, threads: threads}
}

func (a *llamaAdapter) Load(ctx context.Context, mdl types.Model, device string) (registry.Runtime, error) {
	return nil, ErrDependencyUnavailable("in-process llama support not built (missing 'llama' build tag)")
}
