// Package grid implements the editable table shared by the clients,
// products and sales screens: column filters, global search, inline edit of
// one row at a time, selection and delete with confirmation.
//
// A Grid owns only view state. Entities live in a Store (the shared entity
// cache) and are written through a Gateway; every successful mutation
// invalidates the store so the next derivation reads the server's list.
package grid

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// DefaultDeleteConcurrency bounds parallel DELETE calls of a bulk delete.
const DefaultDeleteConcurrency = 4

// Gateway is the remote collection a grid writes to.
type Gateway[T any] interface {
	Create(ctx context.Context, payload any) (T, error)
	Update(ctx context.Context, id int, payload any) (T, error)
	Delete(ctx context.Context, id int) error
}

// Store is the cached list a grid reads from.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Peek() ([]T, bool)
	Replace(items []T)
	Invalidate(ctx context.Context) error
}

// Column binds a field definition to an entity type.
type Column[T any] struct {
	Field domain.FieldDef
	Value func(T) string         // displayed value, also used by filters
	Set   func(*T, string) error // nil for read-only columns
}

// Editable reports whether the column accepts inline input.
func (c Column[T]) Editable() bool {
	return c.Set != nil && c.Field.Editable()
}

// Config describes one resource to a grid.
type Config[T any] struct {
	Resource          string // cache and metric name, e.g. "clients"
	Noun              string // singular label used in messages, e.g. "Client"
	Columns           []Column[T]
	ID                func(T) int
	Validate          func(T) error
	Payload           func(T) any
	Scope             func(T) bool // optional extra visibility predicate
	DeleteConcurrency int
}

// Row is one visible entity with its view state.
type Row[T any] struct {
	ID       int
	Item     T
	Values   []string // column display values of the stored entity
	Edit     []string // column display values of the edit buffer, when editing
	Editing  bool
	Saving   bool
	Selected bool
}

// Grid is the view state of one resource table.
type Grid[T any] struct {
	mu        sync.Mutex
	cfg       Config[T]
	gateway   Gateway[T]
	store     Store[T]
	sink      notify.Sink
	logger    *slog.Logger
	filter    Filter
	scope     func(T) bool
	selection map[int]bool
	state     State
	buffer    *T
	saving    map[int]bool
	pending   *DeleteRequest
	closed    bool
}

// New creates a grid over store, writing through gateway and reporting
// outcomes to sink.
func New[T any](cfg Config[T], gateway Gateway[T], store Store[T], sink notify.Sink, logger *slog.Logger) *Grid[T] {
	if cfg.DeleteConcurrency <= 0 {
		cfg.DeleteConcurrency = DefaultDeleteConcurrency
	}
	if cfg.Noun == "" {
		cfg.Noun = "Row"
	}
	return &Grid[T]{
		cfg:       cfg,
		gateway:   gateway,
		store:     store,
		sink:      sink,
		logger:    logger.With("resource", cfg.Resource),
		filter:    NewFilter(),
		scope:     cfg.Scope,
		selection: make(map[int]bool),
		saving:    make(map[int]bool),
	}
}

// Resource returns the configured resource name.
func (g *Grid[T]) Resource() string {
	return g.cfg.Resource
}

// Columns returns the column definitions in display order.
func (g *Grid[T]) Columns() []Column[T] {
	return g.cfg.Columns
}

// SetScope replaces the extra visibility predicate. nil shows every row.
func (g *Grid[T]) SetScope(scope func(T) bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scope = scope
}

// Close detaches the grid. Responses to calls still in flight update the
// shared cache but no longer touch this grid or its sink.
func (g *Grid[T]) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

// Rows derives the visible rows from the cached list. The selection is
// narrowed to the visible ids as a side effect.
func (g *Grid[T]) Rows(ctx context.Context) ([]Row[T], error) {
	items, err := g.store.List(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	visible := Visible(items, g.cfg.Columns, g.filter, g.scope)
	rows := make([]Row[T], 0, len(visible))
	ids := make(map[int]bool, len(visible))
	for _, item := range visible {
		id := g.cfg.ID(item)
		ids[id] = true
		row := Row[T]{
			ID:       id,
			Item:     item,
			Values:   values(g.cfg.Columns, item),
			Saving:   g.saving[id],
			Selected: g.selection[id],
		}
		if g.state.Mode == Editing && g.state.RowID == id && g.buffer != nil {
			row.Editing = true
			row.Edit = values(g.cfg.Columns, *g.buffer)
		}
		rows = append(rows, row)
	}

	for id := range g.selection {
		if !ids[id] {
			delete(g.selection, id)
		}
	}
	if g.state.Mode == Editing && !g.contains(items, g.state.RowID) {
		g.logger.Debug("edited row vanished from list", "id", g.state.RowID)
		g.resetEdit()
	}
	return rows, nil
}

// ColumnValues returns the distinct display values of column col among the
// scoped rows, sorted, narrowed to those containing search.
func (g *Grid[T]) ColumnValues(ctx context.Context, col int, search string) ([]string, error) {
	const op = "grid.column_values"
	if col < 0 || col >= len(g.cfg.Columns) {
		return nil, domain.Invalid(op, "unknown column")
	}
	items, err := g.store.List(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	scope := g.scope
	g.mu.Unlock()

	needle := Fold(search)
	seen := make(map[string]bool)
	var out []string
	for _, item := range items {
		if scope != nil && !scope(item) {
			continue
		}
		v := g.cfg.Columns[col].Value(item)
		if seen[v] {
			continue
		}
		seen[v] = true
		if needle != "" && !containsFolded(v, needle) {
			continue
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (g *Grid[T]) find(items []T, id int) (T, bool) {
	for _, item := range items {
		if g.cfg.ID(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (g *Grid[T]) contains(items []T, id int) bool {
	_, ok := g.find(items, id)
	return ok
}

func (g *Grid[T]) columnIndex(field string) int {
	for i, c := range g.cfg.Columns {
		if c.Field.Name == field {
			return i
		}
	}
	return -1
}

func values[T any](cols []Column[T], item T) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Value(item)
	}
	return out
}
