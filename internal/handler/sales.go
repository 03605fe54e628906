package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/resource"
	"github.com/DukeRupert/fazenda/internal/session"
)

// draftRow adapts the sale draft to the shared new-row routes. Inputs
// are named "cliente", "itens.N.field" or a sale column name.
type draftRow struct {
	*resource.SaleDraft
}

func (d draftRow) SetField(field, value string) error {
	if field == "cliente" {
		return d.TypeClient(value)
	}
	idx, name, isItem, err := resource.ItemField(field)
	switch {
	case !isItem:
		return d.SaleDraft.SetField(field, value)
	case err != nil:
		return err
	case name == "produto":
		return d.TypeItem(idx, value)
	}
	return d.SetItemField(idx, name, value)
}

// saleEditor edits a sale row, its client and its line items.
type saleEditor struct {
	*resource.Sales
}

func (e saleEditor) SetField(ctx context.Context, id int, field, value string) error {
	return e.SetEditField(ctx, id, field, value)
}

func (d draftRow) Submit(ctx context.Context) error {
	_, err := d.SaleDraft.Submit(ctx)
	return err
}

func (h *Handler) registerSales(handle func(string, http.HandlerFunc)) {
	act := func(fn action) http.HandlerFunc { return h.act("sales", fn) }
	// Draft buttons post the whole draft form; its inputs are applied
	// before the button's own action.
	draft := func(fn func(ctx context.Context, d *resource.SaleDraft, form url.Values) error) http.HandlerFunc {
		return act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
			d := ws.Sales.Draft
			if err := applyFields(form, draftRow{d}.SetField); err != nil {
				return err
			}
			return fn(ctx, d, form)
		})
	}
	item := func(fn func(ctx context.Context, d *resource.SaleDraft, idx int, form url.Values) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			draft(func(ctx context.Context, d *resource.SaleDraft, form url.Values) error {
				idx, err := pathInt(r, "idx")
				if err != nil {
					return err
				}
				return fn(ctx, d, idx, form)
			})(w, r)
		}
	}

	handle("POST /sales/window", act(h.setSalesWindow))
	handle("POST /sales/week", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		start, err := domain.ParseDate(form.Get("start"))
		if err != nil {
			return domain.Invalid("handler.create_week", "Invalid start date")
		}
		return ws.Sales.CreateWeek(ctx, start)
	}))

	handle("POST /sales/new/client/blur", draft(func(ctx context.Context, d *resource.SaleDraft, form url.Values) error {
		_, err := d.BlurClient(ctx)
		return err
	}))
	handle("POST /sales/new/client/choose", draft(func(ctx context.Context, d *resource.SaleDraft, form url.Values) error {
		id, err := strconv.Atoi(form.Get("_id"))
		if err != nil {
			return domain.Invalid("handler.choose_client", "Invalid client")
		}
		return d.ChooseClient(ctx, id)
	}))

	handle("POST /sales/new/items", draft(func(ctx context.Context, d *resource.SaleDraft, form url.Values) error {
		return d.AddItem(ctx)
	}))
	handle("POST /sales/new/items/{idx}/blur", item(func(ctx context.Context, d *resource.SaleDraft, idx int, form url.Values) error {
		_, err := d.BlurItem(ctx, idx)
		return err
	}))
	handle("POST /sales/new/items/{idx}/choose", item(func(ctx context.Context, d *resource.SaleDraft, idx int, form url.Values) error {
		id, err := strconv.Atoi(form.Get("_id"))
		if err != nil {
			return domain.Invalid("handler.choose_item", "Invalid product")
		}
		return d.ChooseItem(ctx, idx, id)
	}))
	handle("POST /sales/new/items/{idx}/remove", item(func(ctx context.Context, d *resource.SaleDraft, idx int, form url.Values) error {
		return d.RemoveItem(idx)
	}))

	handle("POST /sales/side/submit", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		d := ws.Sales.Draft
		if err := applyFields(form, d.SetSideField); err != nil {
			return err
		}
		return d.SubmitSide(ctx)
	}))
	handle("POST /sales/side/discard", act(func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		ws.Sales.Draft.DiscardSide()
		return nil
	}))
}

// setSalesWindow handles shift=N (move the window by N days), mode=day
// with date, and mode=period with start and end. Empty dates mean today.
func (h *Handler) setSalesWindow(ctx context.Context, ws *session.Workspace, form url.Values) error {
	const op = "handler.sales_window"

	if v := form.Get("shift"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return domain.Invalid(op, "Invalid day shift")
		}
		return ws.SetSalesWindow(ctx, ws.Sales.Window().Shift(n))
	}

	date := func(name string, fallback domain.Date) (domain.Date, error) {
		d, err := domain.ParseDate(form.Get(name))
		if err != nil {
			return domain.Date{}, domain.NewValidationError(op, name, "Invalid date: "+form.Get(name))
		}
		if d.IsZero() {
			return fallback, nil
		}
		return d, nil
	}

	today := ws.Today()
	switch domain.WindowMode(form.Get("mode")) {
	case domain.WindowPeriod:
		end, err := date("end", today)
		if err != nil {
			return err
		}
		start, err := date("start", end.AddDays(-(session.PeriodDays - 1)))
		if err != nil {
			return err
		}
		return ws.SetSalesWindow(ctx, domain.PeriodWindow(start, end))
	case domain.WindowDay, "":
		d, err := date("date", today)
		if err != nil {
			return err
		}
		return ws.SetSalesWindow(ctx, domain.DayWindow(d))
	default:
		return domain.Invalid(op, "Unknown window mode")
	}
}

func (h *Handler) setClientType(w http.ResponseWriter, r *http.Request) {
	h.act("clients", func(ctx context.Context, ws *session.Workspace, form url.Values) error {
		return ws.SetClientType(ctx, domain.ClientStatus(form.Get("type")))
	})(w, r)
}

// salesExtras adds the window, its summary and the open draft.
func (h *Handler) salesExtras(ctx context.Context, ws *session.Workspace, data *PageData) {
	s := ws.Sales
	sum, err := s.Summary(ctx)
	if err != nil {
		h.logger.Warn("sales summary unavailable", "error", err)
	}
	data.Sales = salesView(s.Window(), sum)

	edit, err := saleEditView(ctx, s)
	if err != nil {
		h.logger.Warn("product names unavailable for sale edit", "error", err)
	}
	data.Sales.Edit = edit

	draft, err := draftView(ctx, s.Draft)
	if err != nil {
		h.logger.Warn("sale draft suggestions unavailable", "error", err)
	}
	data.Sales.Draft = draft
}

// draftView returns nil when no draft is open. Suggestions that cannot be
// loaded are left out.
func draftView(ctx context.Context, d *resource.SaleDraft) (*DraftView, error) {
	sale, ok := d.Draft()
	if !ok {
		return nil, nil
	}

	v := &DraftView{
		Fields: inputs(d.Form.Columns(), sale),
		Units:  domain.UnitChoices,
		Total:  sale.Total().Display(),
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	client, err := pickerView(d.ClientPicker(), func() ([]grid.Candidate, error) {
		return d.ClientSuggestions(ctx, suggestionLimit)
	})
	keep(err)
	v.Client = client

	pickers := d.ItemPickers()
	for i, it := range sale.Items {
		var p grid.Picker
		if i < len(pickers) {
			p = pickers[i]
		}
		idx := i
		product, err := pickerView(p, func() ([]grid.Candidate, error) {
			return d.ItemSuggestions(ctx, idx, suggestionLimit)
		})
		keep(err)
		v.Items = append(v.Items, itemView(i, it, product))
	}

	switch kind, _ := d.Side(); kind {
	case resource.SideClient:
		if c, ok := d.ClientForm.Draft(); ok {
			v.Side = &SideView{Kind: "client", Title: "Novo cliente", Fields: inputs(d.ClientForm.Columns(), c)}
		}
	case resource.SideProduct:
		if p, ok := d.ProductForm.Draft(); ok {
			v.Side = &SideView{Kind: "product", Title: "Novo produto", Fields: inputs(d.ProductForm.Columns(), p)}
		}
	}
	return v, firstErr
}

// saleEditView lists the line items of the sale being edited, or nil.
func saleEditView(ctx context.Context, s *resource.Sales) (*SaleEditView, error) {
	state := s.State()
	if state.Mode != grid.Editing {
		return nil, nil
	}
	sale, ok := s.Buffer(state.RowID)
	if !ok {
		return nil, nil
	}
	v := &SaleEditView{ID: sale.ID, Units: domain.UnitChoices, Total: sale.Total().Display()}
	for i, it := range sale.Items {
		v.Items = append(v.Items, itemView(i, it, PickerView{Text: it.DisplayName(), SelectedID: it.ProductID}))
	}
	products, err := s.Products(ctx)
	if err != nil {
		return v, err
	}
	for _, p := range products {
		v.Products = append(v.Products, p.Name)
	}
	return v, nil
}
