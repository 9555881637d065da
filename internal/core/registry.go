package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the destination table schemas known to a Service. It is
// created by the caller and injected, so tests can build their own.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*TableSchema
	imports map[ImportType]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*TableSchema),
		imports: make(map[ImportType]string),
	}
}

// DefaultRegistry returns a registry with the adesoes and nova_ligacao
// schemas and the three import types bound to them.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(AdesoesSchema())
	r.Register(NovaLigacaoSchema())
	r.BindImport(ImportAdesoes, "adesoes")
	r.BindImport(ImportNovaLigacao, "nova_ligacao")
	r.BindImport(ImportLegacy, "nova_ligacao")
	return r
}

// Register adds a table schema.
// Panics if a schema for the same table is already registered or the key
// column is not among its fields.
func (r *Registry) Register(schema *TableSchema) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[schema.Table]; exists {
		panic(fmt.Sprintf("table already registered: %s", schema.Table))
	}
	if _, ok := schema.Field(schema.Key); !ok {
		panic(fmt.Sprintf("table %s: key column %s not declared", schema.Table, schema.Key))
	}

	r.schemas[schema.Table] = schema
}

// BindImport routes an import type to a registered table.
func (r *Registry) BindImport(t ImportType, table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports[t] = table
}

// Get returns a table schema by table name.
func (r *Registry) Get(table string) (*TableSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[table]
	return s, ok
}

// ForImport resolves the destination schema of an import type.
// Unknown types return ErrInvalidImportType.
func (r *Registry) ForImport(t ImportType) (*TableSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.imports[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImportType, t)
	}
	s, ok := r.schemas[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImportType, t)
	}
	return s, nil
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
