// Package knowledge provides a small in-memory reference library that answer
// generation consults for supporting material. Search is keyword-based; a
// vector store could replace it behind the same interface.
package knowledge

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/sage-api/internal/domain"
)

// DefaultSearchLimit caps results when the caller passes a non-positive limit.
const DefaultSearchLimit = 5

//go:embed samples.yaml
var samplesFS embed.FS

// Base is an in-memory knowledge store with keyword search. It is safe for
// concurrent use.
type Base struct {
	mu      sync.RWMutex
	entries []domain.KnowledgeEntry
	// byID guards against duplicate identifiers and maps to the entry's
	// position in insertion order.
	byID map[string]int
}

// NewBase returns an empty knowledge base.
func NewBase() *Base {
	return &Base{byID: make(map[string]int)}
}

// NewBaseWithSamples returns a knowledge base preloaded with the bundled
// educational sample entries.
func NewBaseWithSamples() (*Base, error) {
	data, err := samplesFS.ReadFile("samples.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded sample entries: %w", err)
	}

	var table struct {
		Entries []domain.KnowledgeEntry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse sample entries: %w", err)
	}

	b := NewBase()
	for _, entry := range table.Entries {
		if _, err := b.AddEntry(entry); err != nil {
			return nil, fmt.Errorf("failed to load sample entry %q: %w", entry.ID, err)
		}
	}
	return b, nil
}

// AddEntry stores a new entry and returns its identifier. An empty ID is
// replaced with a generated UUID. Adding an ID that already exists fails.
func (b *Base) AddEntry(entry domain.KnowledgeEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byID[entry.ID]; exists {
		return "", fmt.Errorf("knowledge entry %q already exists", entry.ID)
	}
	b.byID[entry.ID] = len(b.entries)
	b.entries = append(b.entries, entry)
	return entry.ID, nil
}

// Search returns up to limit entries whose content, topic, or subject
// contains the query, case-insensitively. An optional subject narrows the
// scan to that subject only; an empty subject searches everything. Results
// come back in insertion order.
func (b *Base) Search(query, subject string, limit int) []domain.KnowledgeEntry {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	queryLower := strings.ToLower(query)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var results []domain.KnowledgeEntry
	for _, entry := range b.entries {
		if subject != "" && entry.Subject != subject {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Content), queryLower) ||
			strings.Contains(strings.ToLower(entry.Topic), queryLower) ||
			strings.Contains(strings.ToLower(entry.Subject), queryLower) {
			results = append(results, entry)
			if len(results) >= limit {
				break
			}
		}
	}
	return results
}

// Subjects returns the distinct subjects present in the base, sorted.
func (b *Base) Subjects() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, entry := range b.entries {
		seen[entry.Subject] = struct{}{}
	}

	subjects := make([]string, 0, len(seen))
	for subject := range seen {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Len returns the number of stored entries.
func (b *Base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
