package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/session"
)

// newRow is the new-row form of a screen.
type newRow interface {
	Open(ctx context.Context) error
	SetField(field, value string) error
	Submit(ctx context.Context) error
	Discard()
}

// formRow adapts a plain grid form.
type formRow[T any] struct {
	*grid.Form[T]
}

func (f formRow[T]) Submit(ctx context.Context) error {
	_, err := f.Form.Submit(ctx)
	return err
}

// rowEditor writes and saves the edit buffer of one row.
type rowEditor interface {
	SetField(ctx context.Context, id int, field, value string) error
	CommitEdit(ctx context.Context, id int) error
}

// gridEditor edits through the grid columns alone.
type gridEditor[T any] struct {
	*grid.Grid[T]
}

func (g gridEditor[T]) SetField(ctx context.Context, id int, field, value string) error {
	return g.Grid.SetField(id, field, value)
}

// gridScreen serves the routes every resource screen shares.
type gridScreen[T any] struct {
	h      *Handler
	name   string
	title  string
	grid   func(*session.Workspace) *grid.Grid[T]
	edit   func(*session.Workspace) rowEditor // nil edits through the grid
	form   func(*session.Workspace) newRow
	extras func(ctx context.Context, ws *session.Workspace, data *PageData)
}

func (s *gridScreen[T]) editor(ws *session.Workspace) rowEditor {
	if s.edit != nil {
		return s.edit(ws)
	}
	return gridEditor[T]{s.grid(ws)}
}

func (s *gridScreen[T]) register(handle func(string, http.HandlerFunc)) {
	p := "/" + s.name
	act := func(fn action) http.HandlerFunc { return s.h.act(s.name, fn) }

	handle("GET "+p, s.show)

	handle("POST "+p+"/filter", act(s.filter))
	handle("POST "+p+"/search", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		s.grid(ws).SetGlobalSearch(form.Get("q"))
		return nil
	}))

	handle("POST "+p+"/select-all", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return s.grid(ws).SelectAll(ctx, checked(form, "selected"))
	}))
	handle("POST "+p+"/rows/{id}/select", s.row(func(ctx context.Context, g *grid.Grid[T], id int, form url.Values) error {
		g.ToggleSelect(id, checked(form, "selected"))
		return nil
	}))

	handle("POST "+p+"/rows/{id}/edit", s.row(func(ctx context.Context, g *grid.Grid[T], id int, form url.Values) error {
		return g.BeginEdit(ctx, id)
	}))
	handle("POST "+p+"/rows/{id}/cancel", s.row(func(ctx context.Context, g *grid.Grid[T], id int, form url.Values) error {
		g.CancelEdit(id)
		return nil
	}))
	handle("POST "+p+"/rows/{id}/field", s.editRow(func(ctx context.Context, e rowEditor, id int, form url.Values) error {
		return applyFields(form, func(field, value string) error { return e.SetField(ctx, id, field, value) })
	}))
	handle("POST "+p+"/rows/{id}/save", s.editRow(func(ctx context.Context, e rowEditor, id int, form url.Values) error {
		if err := applyFields(form, func(field, value string) error { return e.SetField(ctx, id, field, value) }); err != nil {
			return err
		}
		return e.CommitEdit(ctx, id)
	}))

	handle("POST "+p+"/rows/{id}/delete", s.row(func(ctx context.Context, g *grid.Grid[T], id int, form url.Values) error {
		g.RequestDelete(id)
		return nil
	}))
	handle("POST "+p+"/selected/delete", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return s.grid(ws).RequestDeleteSelected()
	}))
	handle("POST "+p+"/delete/confirm", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return s.grid(ws).ConfirmDelete(ctx)
	}))
	handle("POST "+p+"/delete/abort", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		s.grid(ws).AbortDelete()
		return nil
	}))

	handle("POST "+p+"/new", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return s.form(ws).Open(ctx)
	}))
	handle("POST "+p+"/new/field", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return applyFields(form, s.form(ws).SetField)
	}))
	handle("POST "+p+"/new/submit", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		f := s.form(ws)
		if err := applyFields(form, f.SetField); err != nil {
			return err
		}
		return f.Submit(ctx)
	}))
	handle("POST "+p+"/new/discard", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		s.form(ws).Discard()
		return nil
	}))
}

// row wraps an action on the row named by the {id} path segment.
func (s *gridScreen[T]) row(fn func(ctx context.Context, g *grid.Grid[T], id int, form url.Values) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.h.act(s.name, func(ctx context.Context, ws *session.Workspace, form url.Values) error {
			id, err := pathInt(r, "id")
			if err != nil {
				return err
			}
			return fn(ctx, s.grid(ws), id, form)
		})(w, r)
	}
}

// editRow wraps an edit of the row named by the {id} path segment.
func (s *gridScreen[T]) editRow(fn func(ctx context.Context, e rowEditor, id int, form url.Values) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.h.act(s.name, func(ctx context.Context, ws *session.Workspace, form url.Values) error {
			id, err := pathInt(r, "id")
			if err != nil {
				return err
			}
			return fn(ctx, s.editor(ws), id, form)
		})(w, r)
	}
}

// filter sets the accepted values of one column. clear=1 removes the
// column's filter, reset=1 removes every filter and the search text.
func (s *gridScreen[T]) filter(ctx context.Context, ws *session.Workspace, form url.Values) error {
	g := s.grid(ws)
	if checked(form, "reset") {
		g.ClearFilters()
		return nil
	}
	col, err := strconv.Atoi(form.Get("col"))
	if err != nil {
		return domain.Invalid("handler.filter", "Invalid column")
	}
	if checked(form, "clear") {
		g.ClearColumnFilter(col)
		return nil
	}
	return g.SetColumnFilter(col, form["value"])
}

// show renders the screen. ?filter=N opens column N's value list, narrowed
// by ?q=.
func (s *gridScreen[T]) show(w http.ResponseWriter, r *http.Request) {
	ws := session.FromRequest(r)
	if ws == nil {
		InternalErrorResponse(w, r, s.h.logger, domain.Errorf(domain.EINTERNAL, "handler.show", "no session attached"))
		return
	}
	ctx := r.Context()
	g := s.grid(ws)

	menuCol := -1
	if v := r.URL.Query().Get("filter"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			menuCol = n
		}
	}

	data := PageData{Title: s.title, Screen: s.name}
	gv, err := gridView(ctx, g, menuCol, r.URL.Query().Get("q"))
	if err != nil {
		s.h.logger.Warn("grid load failed", "screen", s.name, "error", err)
		ws.Flash.Error(domain.ErrorMessage(err))
		gv = GridView{Resource: g.Resource()}
	}
	data.Grid = gv
	if s.extras != nil {
		s.extras(ctx, ws, &data)
	}
	s.h.render(w, r, ws, data)
}
