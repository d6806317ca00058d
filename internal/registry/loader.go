package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"streamd/internal/common/fsutil"
	"streamd/pkg/types"
)

// GGUFScanner discovers *.gguf model files in a directory.
type GGUFScanner struct {
	// Type is assigned to every discovered model.
	Type string
}

// NewGGUFScanner returns a scanner that marks models with modelType
// (types.ModelTypeLlamaCPP when empty).
func NewGGUFScanner(modelType string) *GGUFScanner {
	if strings.TrimSpace(modelType) == "" {
		modelType = types.ModelTypeLlamaCPP
	}
	return &GGUFScanner{Type: modelType}
}

// Scan lists dir and builds one model per *.gguf file, sorted by id.
// ID is the full filename (including extension); Path is the absolute file path.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	abs, err := fsutil.Resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:     name,
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Path:   filepath.Join(abs, name),
			Type:   s.Type,
			Family: guessFamily(name),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir with the default llama.cpp model type.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner("").Scan(dir)
}

var knownFamilies = []string{"llama", "mistral", "mixtral", "phi", "qwen", "gemma", "deepseek"}

func guessFamily(name string) string {
	lower := strings.ToLower(name)
	for _, f := range knownFamilies {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}
