// Package catalog maps source names to their declared relation schemas.
// Get nodes resolve against a catalog during inference. The in-memory
// catalog backs tests and one-shot harness runs; the Badger-backed catalog
// persists definitions across runs.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oxbowdb/oxbow/dataflow"
)

// Catalog resolves source names to relation types and enumerates the
// sources it knows. It satisfies expr.SchemaResolver.
type Catalog interface {
	SourceType(name string) (dataflow.RelationType, error)
	SourceNames() []string
}

// ErrUnknownSource wraps lookups of undefined sources.
type ErrUnknownSource struct {
	Name string
}

func (e *ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown source %q", e.Name)
}

// MemCatalog is an in-memory catalog. Safe for concurrent use.
type MemCatalog struct {
	mu      sync.RWMutex
	sources map[string]dataflow.RelationType
}

// NewMemCatalog creates an empty catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{sources: make(map[string]dataflow.RelationType)}
}

// Define registers a source schema, replacing any existing definition.
// Key columns must be in range for the declared columns.
func (c *MemCatalog) Define(name string, columns []dataflow.ColumnType, keys [][]int) error {
	typ := dataflow.NewRelationType(columns).WithKeys(keys)
	if err := typ.Validate(); err != nil {
		return fmt.Errorf("defsource %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = typ
	return nil
}

// SourceType resolves a source name.
func (c *MemCatalog) SourceType(name string) (dataflow.RelationType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	typ, ok := c.sources[name]
	if !ok {
		return dataflow.RelationType{}, &ErrUnknownSource{Name: name}
	}
	return typ, nil
}

// SourceNames returns all defined names, sorted.
func (c *MemCatalog) SourceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
