// Package source defines the Source plugin interface and a registry for the
// input formats an ingestion run can read.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/scbrown/clicat/internal/model"
)

// Source decodes one input format into ingestion items.
type Source interface {
	// Name returns the unique identifier for this format (e.g., "jsonl").
	Name() string

	// Description is a one-line summary for listings.
	Description() string

	// Read decodes all items from r. A returned error is structural: the
	// input as a whole could not be read and nothing should be written.
	// Malformed individual items are reported through Item.Err instead.
	Read(r io.Reader) ([]Item, error)
}

// Item is one decoded input entry. Exactly one of Raw, Curated or Err is set.
type Item struct {
	// Pos locates the item in its input: a line number for line-based and
	// YAML formats, an array index for JSON.
	Pos     int
	Raw     *model.RawRecord
	Curated *model.Profile
	Err     error
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Source)
)

// Register adds a source plugin to the registry. It panics if a source
// with the same name is already registered.
func Register(s Source) {
	mu.Lock()
	defer mu.Unlock()
	name := s.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("source: duplicate registration for %q", name))
	}
	registry[name] = s
}

// Get returns the source plugin with the given name, or nil if not found.
func Get(name string) Source {
	mu.RLock()
	defer mu.RUnlock()
	return registry[name]
}

// Names returns the sorted names of all registered source plugins.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect picks a format from a file extension. Curated files must be named
// explicitly since they share the YAML extension.
func Detect(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".jsonl", ".ndjson":
		return "jsonl", nil
	case ".yaml", ".yml":
		return "yaml", nil
	}
	return "", fmt.Errorf("cannot detect format of %q (known: %s)", path, strings.Join(Names(), ", "))
}

// Counts summarizes items for logging.
func Counts(items []Item) (ok, bad int) {
	for _, it := range items {
		if it.Err != nil {
			bad++
		} else {
			ok++
		}
	}
	return ok, bad
}
