package handler

import (
	"context"
	"strconv"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// suggestionLimit caps the autocomplete list under a picker.
const suggestionLimit = 8

// PageData is passed to every page template.
type PageData struct {
	Title     string
	Screen    string // "clients", "products" or "sales"
	CSRFToken string
	Flash     []notify.Message
	Grid      GridView
	Form      FormView

	// clients only
	ClientType  string
	ClientTypes []domain.Choice

	// sales only
	Sales *SalesView
}

// ColumnView is one grid header.
type ColumnView struct {
	Index    int
	Name     string
	Label    string
	Filtered bool
}

// CellView is one value in a row or an input of a form.
type CellView struct {
	Name     string
	Label    string
	Value    string
	Editable bool
	Choices  []domain.Choice
}

// RowView is one visible row.
type RowView struct {
	ID       int
	Cells    []CellView
	Editing  bool
	Saving   bool
	Selected bool
}

// FilterMenu is the open distinct-value dropdown of one column.
type FilterMenu struct {
	Column  ColumnView
	Search  string
	Options []FilterOption
}

// FilterOption is one distinct value offered by a FilterMenu.
type FilterOption struct {
	Value   string
	Checked bool
}

// DeleteView is a delete waiting for confirmation.
type DeleteView struct {
	Count int
	Bulk  bool
}

// GridView is the rendered state of one grid.
type GridView struct {
	Resource      string
	Columns       []ColumnView
	Rows          []RowView
	Search        string
	Filtered      bool
	SelectedCount int
	AllSelected   bool
	Menu          *FilterMenu
	Delete        *DeleteView
}

// FormView is the new-row form of a grid.
type FormView struct {
	Open   bool
	Fields []CellView
}

// gridView derives the view of g. menuCol >= 0 opens that column's filter
// dropdown narrowed by menuSearch.
func gridView[T any](ctx context.Context, g *grid.Grid[T], menuCol int, menuSearch string) (GridView, error) {
	rows, err := g.Rows(ctx)
	if err != nil {
		return GridView{}, err
	}
	cols := g.Columns()
	filter := g.Filter()

	v := GridView{
		Resource: g.Resource(),
		Search:   filter.Search(),
		Filtered: !filter.Empty(),
		Columns:  make([]ColumnView, len(cols)),
		Rows:     make([]RowView, 0, len(rows)),
	}
	for i, c := range cols {
		v.Columns[i] = ColumnView{Index: i, Name: c.Field.Name, Label: c.Field.Label, Filtered: filter.Active(i)}
	}

	for _, r := range rows {
		rv := RowView{ID: r.ID, Editing: r.Editing, Saving: r.Saving, Selected: r.Selected}
		values := r.Values
		if r.Editing {
			values = r.Edit
		}
		rv.Cells = make([]CellView, len(cols))
		for i, c := range cols {
			rv.Cells[i] = CellView{
				Name:     c.Field.Name,
				Label:    c.Field.Label,
				Value:    values[i],
				Editable: r.Editing && c.Editable(),
				Choices:  c.Field.Choices,
			}
		}
		if r.Selected {
			v.SelectedCount++
		}
		v.Rows = append(v.Rows, rv)
	}
	v.AllSelected = len(rows) > 0 && v.SelectedCount == len(rows)

	if menuCol >= 0 && menuCol < len(cols) {
		values, err := g.ColumnValues(ctx, menuCol, menuSearch)
		if err != nil {
			return GridView{}, err
		}
		accepted := make(map[string]bool)
		for _, a := range filter.Column(menuCol) {
			accepted[a] = true
		}
		menu := &FilterMenu{Column: v.Columns[menuCol], Search: menuSearch}
		for _, val := range values {
			menu.Options = append(menu.Options, FilterOption{
				Value:   val,
				Checked: !filter.Active(menuCol) || accepted[val],
			})
		}
		v.Menu = menu
	}

	if req, ok := g.PendingDelete(); ok {
		v.Delete = &DeleteView{Count: len(req.IDs), Bulk: req.Bulk}
	}
	return v, nil
}

// formView lists the editable inputs of an open form.
func formView[T any](f *grid.Form[T]) FormView {
	draft, ok := f.Draft()
	if !ok {
		return FormView{}
	}
	return FormView{Open: true, Fields: inputs(f.Columns(), draft)}
}

func inputs[T any](cols []grid.Column[T], item T) []CellView {
	var out []CellView
	for _, c := range cols {
		if !c.Editable() {
			continue
		}
		out = append(out, CellView{
			Name:     c.Field.Name,
			Label:    c.Field.Label,
			Value:    c.Value(item),
			Editable: true,
			Choices:  c.Field.Choices,
		})
	}
	return out
}

// =============================================================================
// Sales
// =============================================================================

// SalesView is the sales screen header and its new-sale draft.
type SalesView struct {
	Mode       string
	Date       string // ISO, day mode
	Start      string // ISO, period mode
	End        string
	Label      string
	Count      string
	Revenue    string
	Received   string
	Receivable string
	Draft      *DraftView
	Edit       *SaleEditView
}

// SaleEditView is the line items of the sale row being edited. Its inputs
// belong to the row's edit form.
type SaleEditView struct {
	ID       int
	Items    []ItemView
	Units    []domain.Choice
	Products []string
	Total    string
}

// PickerView is an autocomplete field.
type PickerView struct {
	Text        string
	SelectedID  int
	Suggestions []grid.Candidate
}

// ItemView is one line item of the draft.
type ItemView struct {
	Index     int
	Product   PickerView
	Quantity  string
	UnitPrice string
	Unit      string
	Subtotal  string
}

// SideView is the nested create form opened from a picker.
type SideView struct {
	Kind   string // "client" or "product"
	Title  string
	Fields []CellView
}

// DraftView is the open new-sale form.
type DraftView struct {
	Fields []CellView
	Client PickerView
	Items  []ItemView
	Units  []domain.Choice
	Total  string
	Side   *SideView
}

func salesView(window domain.DateWindow, sum domain.SalesSummary) *SalesView {
	return &SalesView{
		Mode:       string(window.Mode),
		Date:       window.Start.ISO(),
		Start:      window.Start.ISO(),
		End:        window.End.ISO(),
		Label:      window.Label(),
		Count:      domain.FormatCount(sum.Count),
		Revenue:    sum.Revenue.Display(),
		Received:   sum.Received.Display(),
		Receivable: sum.Receivable.Display(),
	}
}

// pickerView shows suggestions only while the text is unresolved.
func pickerView(p grid.Picker, suggest func() ([]grid.Candidate, error)) (PickerView, error) {
	v := PickerView{Text: p.Text, SelectedID: p.SelectedID}
	if p.Text == "" || p.SelectedID != 0 {
		return v, nil
	}
	s, err := suggest()
	if err != nil {
		return v, err
	}
	v.Suggestions = s
	return v, nil
}

func itemView(idx int, it domain.LineItem, product PickerView) ItemView {
	return ItemView{
		Index:     idx,
		Product:   product,
		Quantity:  strconv.Itoa(it.Quantity),
		UnitPrice: it.UnitPrice.Display(),
		Unit:      string(it.Unit),
		Subtotal:  it.Subtotal().Display(),
	}
}
