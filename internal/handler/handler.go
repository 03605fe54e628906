// Package handler serves the dashboard screens. Each resource has one page;
// every action is a form POST that changes the session's workspace and
// redirects back to the page, which drains the queued notifications.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/DukeRupert/fazenda/internal/csrf"
	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/middleware"
	"github.com/DukeRupert/fazenda/internal/session"
)

// Handler serves the HTML screens.
type Handler struct {
	renderer *Renderer
	logger   *slog.Logger
}

// New creates a Handler.
func New(renderer *Renderer, logger *slog.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		logger:   logger.With("component", "handler"),
	}
}

// RegisterRoutes registers every screen route on mux, each wrapped by
// screens (session, CSRF and the rest of the browser stack).
func (h *Handler) RegisterRoutes(mux *http.ServeMux, screens func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, screens(fn))
	}

	handle("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/sales", http.StatusSeeOther)
	})

	clients := &gridScreen[domain.Client]{
		h:     h,
		name:  "clients",
		title: "Clientes",
		grid:  func(ws *session.Workspace) *grid.Grid[domain.Client] { return ws.Clients.Grid },
		form:  func(ws *session.Workspace) newRow { return formRow[domain.Client]{ws.Clients.Form} },
		extras: func(ctx context.Context, ws *session.Workspace, data *PageData) {
			data.Form = formView(ws.Clients.Form)
			data.ClientType = string(ws.Clients.TypeFilter())
			data.ClientTypes = domain.ClientStatusChoices
		},
	}
	clients.register(handle)
	handle("POST /clients/type", h.setClientType)

	products := &gridScreen[domain.Product]{
		h:     h,
		name:  "products",
		title: "Produtos",
		grid:  func(ws *session.Workspace) *grid.Grid[domain.Product] { return ws.Products.Grid },
		form:  func(ws *session.Workspace) newRow { return formRow[domain.Product]{ws.Products.Form} },
		extras: func(ctx context.Context, ws *session.Workspace, data *PageData) {
			data.Form = formView(ws.Products.Form)
		},
	}
	products.register(handle)

	sales := &gridScreen[domain.Sale]{
		h:      h,
		name:   "sales",
		title:  "Vendas",
		grid:   func(ws *session.Workspace) *grid.Grid[domain.Sale] { return ws.Sales.Grid },
		edit:   func(ws *session.Workspace) rowEditor { return saleEditor{ws.Sales} },
		form:   func(ws *session.Workspace) newRow { return draftRow{ws.Sales.Draft} },
		extras: h.salesExtras,
	}
	sales.register(handle)
	h.registerSales(handle)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// =============================================================================
// Helpers
// =============================================================================

// action is a state change on the session's workspace.
type action func(ctx context.Context, ws *session.Workspace, form url.Values) error

// act runs fn and redirects back to screen. Failures the workspace has not
// already reported are queued as a notification; JSON clients get the error
// status instead of a redirect.
func (h *Handler) act(screen string, fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws := session.FromRequest(r)
		if ws == nil {
			InternalErrorResponse(w, r, h.logger, domain.Errorf(domain.EINTERNAL, "handler.act", "no session attached"))
			return
		}

		if err := r.ParseForm(); err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.parse_form", "Malformed form"))
			return
		}

		seq := ws.Flash.Seq()
		err := fn(r.Context(), ws, r.PostForm)
		if err != nil {
			h.logger.Debug("screen action failed",
				"screen", screen,
				"path", r.URL.Path,
				"code", domain.ErrorCode(err),
				"error", err,
			)
			if acceptsJSON(r) {
				ErrorResponse(w, r, h.logger, err)
				return
			}
			if ws.Flash.Seq() == seq {
				ws.Flash.Error(domain.ErrorMessage(err))
			}
		}
		http.Redirect(w, r, "/"+screen, http.StatusSeeOther)
	}
}

// render drains the flash and renders the page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, ws *session.Workspace, data PageData) {
	data.CSRFToken = middleware.CSRFToken(r.Context())
	data.Flash = ws.Flash.Drain()
	h.renderer.RenderHTTP(w, data.Screen, data)
}

// pathInt parses a numeric path segment such as {id} or {idx}.
func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, domain.Invalid("handler.path", "Invalid "+name)
	}
	return n, nil
}

// applyFields calls set for each posted input, in name order, and stops at
// the first failure.
func applyFields(form url.Values, set func(field, value string) error) error {
	names := make([]string, 0, len(form))
	for name := range form {
		if name == csrf.FormFieldName || strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := set(name, form.Get(name)); err != nil {
			return err
		}
	}
	return nil
}

func checked(form url.Values, name string) bool {
	switch form.Get(name) {
	case "1", "on", "true":
		return true
	}
	return false
}
