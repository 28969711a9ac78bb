package persona

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	ErrNoPersonas = errors.New("persona source returned no personas")
	ErrNoSource   = errors.New("persona source not configured")
)

// Store exposes persona retrieval for handlers and the orchestrator.
type Store interface {
	List() []Persona
	Get(t Type) (Persona, bool)
	Has(t Type) bool
}

// Registry holds the loaded personas. The mapping is immutable once
// published; Reload builds a new one and swaps the pointer.
type Registry struct {
	source Source
	logger *slog.Logger
	items  atomic.Pointer[map[Type]Persona]
}

// NewRegistry returns an empty registry bound to source. Call Load before use.
func NewRegistry(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{source: source, logger: logger.With("component", "personas")}
}

// NewStaticRegistry returns a registry already populated with items.
func NewStaticRegistry(items []Persona) *Registry {
	r := NewRegistry(nil, nil)
	if len(items) == 0 {
		items = Defaults()
	}
	r.publish(index(items))
	return r
}

// Load performs the startup load. When the source fails the built-in
// defaults are published so the registry is never empty.
func (r *Registry) Load(ctx context.Context) error {
	err := r.Reload(ctx)
	if err != nil && r.items.Load() == nil {
		r.logger.Warn("using default personas", "error", err)
		r.publish(index(Defaults()))
	}
	return err
}

// Reload fetches personas from the source and atomically replaces the
// mapping. On failure the previous mapping is retained.
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return ErrNoSource
	}

	records, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.Error("failed to fetch personas", "source", r.source.Name(), "error", err)
		return fmt.Errorf("fetch personas: %w", err)
	}
	if len(records) == 0 {
		r.logger.Warn("persona source is empty", "source", r.source.Name())
		return ErrNoPersonas
	}

	items := make([]Persona, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Prompt) == "" {
			r.logger.Warn("skipping persona without prompt", "source", r.source.Name(), "identifier", rec.Identifier, "id", rec.ID)
			continue
		}
		items = append(items, FromRecord(rec))
	}
	if len(items) == 0 {
		r.logger.Warn("persona source has no usable personas", "source", r.source.Name(), "records", len(records))
		return ErrNoPersonas
	}

	next := index(items)
	if _, ok := next[Sales]; !ok {
		next[Sales] = defaultSales()
	}
	r.publish(next)

	for _, p := range r.List() {
		r.logger.Info("persona loaded", "type", p.Type, "name", p.Name, "identifier", p.Identifier)
	}
	return nil
}

// Get looks up a persona by slot.
func (r *Registry) Get(t Type) (Persona, bool) {
	items := r.items.Load()
	if items == nil {
		return Persona{}, false
	}
	p, ok := (*items)[t]
	return p, ok
}

// Has reports whether a persona is loaded for t.
func (r *Registry) Has(t Type) bool {
	_, ok := r.Get(t)
	return ok
}

// Len returns the number of loaded personas.
func (r *Registry) Len() int {
	items := r.items.Load()
	if items == nil {
		return 0
	}
	return len(*items)
}

// List returns the loaded personas ordered by slot.
func (r *Registry) List() []Persona {
	items := r.items.Load()
	if items == nil {
		return nil
	}
	out := make([]Persona, 0, len(*items))
	for _, p := range *items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (r *Registry) publish(items map[Type]Persona) {
	r.items.Store(&items)
}

// index keys personas by slot; later entries win.
func index(items []Persona) map[Type]Persona {
	out := make(map[Type]Persona, len(items))
	for _, p := range items {
		out[p.Type] = p
	}
	return out
}
