package grid

import (
	"context"
	"fmt"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/metrics"
)

// Mode is the edit state of a grid.
type Mode int

const (
	Idle Mode = iota
	Editing
)

// State is the grid's edit state machine: Idle or Editing one row.
type State struct {
	Mode  Mode
	RowID int
}

func (s State) String() string {
	if s.Mode == Editing {
		return fmt.Sprintf("editing(%d)", s.RowID)
	}
	return "idle"
}

// State returns the current edit state.
func (g *Grid[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Buffer returns a copy of the edit buffer of row id.
func (g *Grid[T]) Buffer(id int) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Mode != Editing || g.state.RowID != id || g.buffer == nil {
		var zero T
		return zero, false
	}
	return *g.buffer, true
}

// BeginEdit puts row id in edit mode with a fresh buffer. A row already
// being edited returns to display and its buffer is discarded.
func (g *Grid[T]) BeginEdit(ctx context.Context, id int) error {
	const op = "grid.begin_edit"

	items, err := g.store.List(ctx)
	if err != nil {
		g.sink.Error(domain.ErrorMessage(err))
		return err
	}

	g.mu.Lock()
	item, ok := g.find(items, id)
	if !ok {
		g.mu.Unlock()
		err := domain.NotFound(op, g.cfg.Noun, id)
		g.sink.Error(domain.ErrorMessage(err))
		return err
	}
	if g.state.Mode == Editing && g.state.RowID != id {
		g.logger.Debug("discarding edit buffer", "id", g.state.RowID)
	}
	buf := item
	g.buffer = &buf
	g.state = State{Mode: Editing, RowID: id}
	g.mu.Unlock()
	return nil
}

// CancelEdit discards the buffer of row id. Rows not being edited are
// left alone.
func (g *Grid[T]) CancelEdit(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Mode == Editing && g.state.RowID == id {
		g.resetEdit()
	}
}

// SetField writes one input value into the buffer of row id.
func (g *Grid[T]) SetField(id int, field, value string) error {
	const op = "grid.set_field"

	g.mu.Lock()
	err := g.setFieldLocked(op, id, field, value)
	g.mu.Unlock()
	if err != nil {
		g.sink.Error(domain.ErrorMessage(err))
	}
	return err
}

func (g *Grid[T]) setFieldLocked(op string, id int, field, value string) error {
	if g.state.Mode != Editing || g.state.RowID != id || g.buffer == nil {
		return domain.Invalid(op, "row is not being edited")
	}
	idx := g.columnIndex(field)
	if idx < 0 {
		return domain.Invalid(op, fmt.Sprintf("unknown field %q", field))
	}
	col := g.cfg.Columns[idx]
	if !col.Editable() {
		return domain.Invalid(op, fmt.Sprintf("%s cannot be edited here", col.Field.Label))
	}
	if err := col.Set(g.buffer, value); err != nil {
		return domain.NewValidationError(op, field, fmt.Sprintf("%s: %v", col.Field.Label, err))
	}
	return nil
}

// Update applies fn to the buffer of row id.
func (g *Grid[T]) Update(id int, fn func(*T) error) error {
	const op = "grid.update"

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Mode != Editing || g.state.RowID != id || g.buffer == nil {
		return domain.Invalid(op, "row is not being edited")
	}
	buf := *g.buffer
	if err := fn(&buf); err != nil {
		return err
	}
	g.buffer = &buf
	return nil
}

// CommitEdit validates the buffer of row id and sends it as an update.
// Invalid buffers never reach the gateway. On gateway failure the row stays
// in edit mode with the buffer intact. A second commit while the first is
// in flight fails with EBUSY.
func (g *Grid[T]) CommitEdit(ctx context.Context, id int) error {
	const op = "grid.commit_edit"

	g.mu.Lock()
	if g.state.Mode != Editing || g.state.RowID != id || g.buffer == nil {
		g.mu.Unlock()
		return domain.Invalid(op, "row is not being edited")
	}
	if g.saving[id] {
		g.mu.Unlock()
		return domain.Busy(op, id)
	}
	draft := *g.buffer
	if g.cfg.Validate != nil {
		if err := g.cfg.Validate(draft); err != nil {
			g.mu.Unlock()
			g.sink.Error(domain.ErrorMessage(err))
			return err
		}
	}
	g.saving[id] = true
	g.mu.Unlock()

	// Commits finish even if the browser goes away.
	ctx = context.WithoutCancel(ctx)
	_, err := g.gateway.Update(ctx, id, g.cfg.Payload(draft))
	metrics.GridMutation(g.cfg.Resource, "update", err)

	g.mu.Lock()
	delete(g.saving, id)
	closed := g.closed
	if err == nil && !closed && g.state.Mode == Editing && g.state.RowID == id {
		g.resetEdit()
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("update failed", "op", op, "id", id, "error", err)
		if !closed {
			g.sink.Error(domain.ErrorMessage(err))
		}
		return err
	}

	g.logger.Info("row updated", "op", op, "id", id)
	g.refresh(ctx, closed)
	if !closed {
		g.sink.Success(g.cfg.Noun + " saved")
	}
	return nil
}

// refresh invalidates the store after a successful mutation.
func (g *Grid[T]) refresh(ctx context.Context, closed bool) {
	if err := g.store.Invalidate(ctx); err != nil {
		g.logger.Warn("reload after mutation failed", "error", err)
		if !closed {
			g.sink.Error("Saved, but the list could not be reloaded: " + domain.ErrorMessage(err))
		}
	}
}

// resetEdit returns the grid to Idle. Caller holds g.mu.
func (g *Grid[T]) resetEdit() {
	g.state = State{}
	g.buffer = nil
}
