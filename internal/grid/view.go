package grid

import (
	"context"
	"sort"

	"github.com/DukeRupert/fazenda/internal/domain"
)

// SetColumnFilter replaces the accepted values of column col.
func (g *Grid[T]) SetColumnFilter(col int, accepted []string) error {
	if col < 0 || col >= len(g.cfg.Columns) {
		return domain.Invalid("grid.set_column_filter", "unknown column")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.SetColumn(col, accepted)
	return nil
}

// ClearColumnFilter accepts every value of column col again.
func (g *Grid[T]) ClearColumnFilter(col int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.ClearColumn(col)
}

// ClearFilters removes every column filter and the search text.
func (g *Grid[T]) ClearFilters() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter = NewFilter()
}

// SetGlobalSearch replaces the free-text search.
func (g *Grid[T]) SetGlobalSearch(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter.SetSearch(text)
}

// Filter returns a copy of the current filter state.
func (g *Grid[T]) Filter() Filter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.filter.clone()
}

// =============================================================================
// Selection
// =============================================================================

// ToggleSelect adds or removes id from the selection.
func (g *Grid[T]) ToggleSelect(id int, selected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if selected {
		g.selection[id] = true
		return
	}
	delete(g.selection, id)
}

// SelectAll selects every visible row, or clears the selection.
func (g *Grid[T]) SelectAll(ctx context.Context, selected bool) error {
	if !selected {
		g.mu.Lock()
		g.selection = make(map[int]bool)
		g.mu.Unlock()
		return nil
	}

	rows, err := g.Rows(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selection = make(map[int]bool, len(rows))
	for _, r := range rows {
		g.selection[r.ID] = true
	}
	return nil
}

// Selected returns the selected ids in ascending order.
func (g *Grid[T]) Selected() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selectedLocked()
}

func (g *Grid[T]) selectedLocked() []int {
	ids := make([]int, 0, len(g.selection))
	for id := range g.selection {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
