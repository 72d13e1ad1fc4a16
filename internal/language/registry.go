// Package language manages the set of supported output languages and their
// typography settings. The language table is embedded at build time so the
// binary is self-contained.
package language

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phrazzld/sage-api/internal/domain"
)

// ErrNotSupported is returned when a language code is not in the registry.
var ErrNotSupported = errors.New("language not supported")

//go:embed languages.yaml
var languagesFS embed.FS

// Registry holds the supported language configurations, keyed by ISO 639-1
// code. It is immutable after construction and safe for concurrent use.
type Registry struct {
	byCode map[string]domain.LanguageConfig
	// order preserves the declaration order of the embedded table so List
	// is stable across calls.
	order []string
}

// NewRegistry parses the embedded language table and returns a registry.
func NewRegistry() (*Registry, error) {
	data, err := languagesFS.ReadFile("languages.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded language table: %w", err)
	}

	var table struct {
		Languages []domain.LanguageConfig `yaml:"languages"`
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse language table: %w", err)
	}
	if len(table.Languages) == 0 {
		return nil, fmt.Errorf("language table is empty")
	}

	r := &Registry{
		byCode: make(map[string]domain.LanguageConfig, len(table.Languages)),
		order:  make([]string, 0, len(table.Languages)),
	}
	for _, cfg := range table.Languages {
		if cfg.Code == "" {
			return nil, fmt.Errorf("language table entry %q has no code", cfg.Name)
		}
		if _, dup := r.byCode[cfg.Code]; dup {
			return nil, fmt.Errorf("language table has duplicate code %q", cfg.Code)
		}
		r.byCode[cfg.Code] = cfg
		r.order = append(r.order, cfg.Code)
	}

	return r, nil
}

// Get returns the configuration for a language code.
// Returns ErrNotSupported, listing the supported codes, for unknown codes.
func (r *Registry) Get(code string) (domain.LanguageConfig, error) {
	cfg, ok := r.byCode[code]
	if !ok {
		return domain.LanguageConfig{}, fmt.Errorf("%w: %q (supported: %s)",
			ErrNotSupported, code, strings.Join(r.order, ", "))
	}
	return cfg, nil
}

// IsSupported reports whether the language code is in the registry.
func (r *Registry) IsSupported(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// List returns all supported language configurations in table order.
func (r *Registry) List() []domain.LanguageConfig {
	out := make([]domain.LanguageConfig, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.byCode[code])
	}
	return out
}

// Codes returns the supported language codes in table order.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
