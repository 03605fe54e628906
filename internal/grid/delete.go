package grid

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/metrics"
)

// DeleteRequest is a delete awaiting confirmation.
type DeleteRequest struct {
	IDs  []int
	Bulk bool
}

// RequestDelete asks for confirmation before deleting row id.
func (g *Grid[T]) RequestDelete(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = &DeleteRequest{IDs: []int{id}}
}

// RequestDeleteSelected asks for confirmation before deleting every
// selected row.
func (g *Grid[T]) RequestDeleteSelected() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := g.selectedLocked()
	if len(ids) == 0 {
		return domain.Invalid("grid.delete_selected", "No rows selected")
	}
	g.pending = &DeleteRequest{IDs: ids, Bulk: true}
	return nil
}

// PendingDelete returns the delete awaiting confirmation, if any.
func (g *Grid[T]) PendingDelete() (DeleteRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return DeleteRequest{}, false
	}
	return *g.pending, true
}

// AbortDelete drops the pending delete without any network call.
func (g *Grid[T]) AbortDelete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}

// ConfirmDelete executes the pending delete. The rows disappear from the
// cached list immediately and come back if the gateway refuses. Cancelling
// ctx does not abort deletes already confirmed.
func (g *Grid[T]) ConfirmDelete(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	g.mu.Lock()
	req := g.pending
	g.pending = nil
	g.mu.Unlock()

	if req == nil {
		return domain.Invalid("grid.confirm_delete", "Nothing to delete")
	}
	if req.Bulk {
		return g.deleteMany(ctx, req.IDs)
	}
	return g.deleteOne(ctx, req.IDs[0])
}

func (g *Grid[T]) deleteOne(ctx context.Context, id int) error {
	const op = "grid.delete"

	snapshot, err := g.store.List(ctx)
	if err != nil {
		g.sink.Error(domain.ErrorMessage(err))
		return err
	}
	g.store.Replace(g.without(snapshot, map[int]bool{id: true}))

	err = g.gateway.Delete(ctx, id)
	metrics.GridMutation(g.cfg.Resource, "delete", err)

	if err != nil {
		g.store.Replace(snapshot)
		g.logger.Warn("delete failed", "op", op, "id", id, "error", err)
		if !g.isClosed() {
			g.sink.Error(domain.ErrorMessage(err))
		}
		return err
	}

	g.logger.Info("row deleted", "op", op, "id", id)
	closed := g.forget(map[int]bool{id: true})
	g.refresh(ctx, closed)
	if !closed {
		g.sink.Success(g.cfg.Noun + " deleted")
	}
	return nil
}

// deleteMany issues one independent DELETE per id. Failures are collected
// and reported together; the store is invalidated once either way.
func (g *Grid[T]) deleteMany(ctx context.Context, ids []int) error {
	const op = "grid.delete_many"

	snapshot, err := g.store.List(ctx)
	if err != nil {
		g.sink.Error(domain.ErrorMessage(err))
		return err
	}
	requested := make(map[int]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	g.store.Replace(g.without(snapshot, requested))

	var (
		mu        sync.Mutex
		errs      error
		failed    []int
		succeeded = make(map[int]bool, len(ids))
	)
	var eg errgroup.Group
	eg.SetLimit(g.cfg.DeleteConcurrency)
	for _, id := range ids {
		eg.Go(func() error {
			err := g.gateway.Delete(ctx, id)
			metrics.GridMutation(g.cfg.Resource, "delete", err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete %d: %w", id, err))
				failed = append(failed, id)
				return nil
			}
			succeeded[id] = true
			return nil
		})
	}
	_ = eg.Wait()

	if len(failed) > 0 {
		// Failed rows come back; the refetch below settles the rest.
		g.store.Replace(g.without(snapshot, succeeded))
	}

	closed := g.forget(succeeded)
	g.refresh(ctx, closed)

	g.logger.Info("bulk delete finished",
		"op", op,
		"requested", len(ids),
		"deleted", len(succeeded),
		"failed", len(failed),
	)
	if closed {
		return errs
	}
	if len(failed) > 0 {
		g.sink.Error(bulkFailureMessage(g.cfg.Noun, len(ids), errs))
		return errs
	}
	g.sink.Success(fmt.Sprintf("%d rows deleted", len(succeeded)))
	return nil
}

// forget drops deleted ids from the selection and leaves edit mode when the
// edited row was deleted. It reports whether the grid is closed.
func (g *Grid[T]) forget(deleted map[int]bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return true
	}
	for id := range deleted {
		delete(g.selection, id)
	}
	if g.state.Mode == Editing && deleted[g.state.RowID] {
		g.resetEdit()
	}
	return false
}

func (g *Grid[T]) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Grid[T]) without(items []T, ids map[int]bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !ids[g.cfg.ID(item)] {
			out = append(out, item)
		}
	}
	return out
}

func bulkFailureMessage(noun string, total int, err error) string {
	errs := multierr.Errors(err)
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, domain.ErrorMessage(e))
	}
	return fmt.Sprintf("%d of %d %s deletions failed: %s",
		len(errs), total, strings.ToLower(noun), strings.Join(dedupe(msgs), "; "))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
