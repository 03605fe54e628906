package resource

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// SideKind names the entity a nested create form is for.
type SideKind int

const (
	SideNone SideKind = iota
	SideClient
	SideProduct
)

// side is the field that opened the nested form.
type side struct {
	kind SideKind
	item int
}

// SaleDraft is the new-sale form: the sale draft plus the autocomplete
// state of its client and product fields, and the nested forms that create
// a client or product typed by name.
type SaleDraft struct {
	Form        *grid.Form[domain.Sale]
	ClientForm  *grid.Form[domain.Client]
	ProductForm *grid.Form[domain.Product]

	backend Backend
	sink    notify.Sink
	logger  *slog.Logger

	mu     sync.Mutex
	client grid.Picker
	items  []grid.Picker
	side   side
}

// NewSaleDraft builds a closed sale draft.
func NewSaleDraft(b Backend, sink notify.Sink, logger *slog.Logger) *SaleDraft {
	d := &SaleDraft{
		ClientForm:  NewClientForm(b, sink, logger),
		ProductForm: NewProductForm(b, sink, logger),
		backend:     b,
		sink:        sink,
		logger:      logger.With("resource", "sales", "component", "draft"),
	}
	d.Form = grid.NewForm(grid.FormConfig[domain.Sale]{
		Resource: "sales",
		Noun:     "Sale",
		Columns:  saleDraftColumns(),
		Defaults: d.defaults,
		Prepare:  d.resolve,
		Validate: domain.Sale.Validate,
		Payload:  func(s domain.Sale) any { return s.Payload() },
	}, b.SaleAPI, b.Sales, sink, logger)
	return d
}

// defaults is a sale for today, pending payment, with one item of the
// default product when it exists.
func (d *SaleDraft) defaults(ctx context.Context) (domain.Sale, error) {
	item := domain.LineItem{Quantity: 1, Unit: domain.UnitSingle}
	products, err := d.backend.Products.List(ctx)
	if err != nil {
		d.logger.Warn("products unavailable for draft defaults", "error", err)
	}
	for _, p := range products {
		if grid.EqualFold(p.Name, domain.DefaultProductName) {
			item.ProductID = p.ID
			item.Product = &p
			item.ProductName = p.Name
			item.UnitPrice = p.Price
			break
		}
	}
	return domain.Sale{
		Date:          domain.Today(d.backend.location()),
		PaymentStatus: domain.PaymentPending,
		Items:         []domain.LineItem{item},
	}, nil
}

// resolve fills unresolved client and product references whose typed name
// matches exactly one known entity, ignoring case.
func (d *SaleDraft) resolve(ctx context.Context, s *domain.Sale) error {
	if s.ClientID == 0 && s.Client != nil && strings.TrimSpace(s.Client.Name) != "" {
		clients, err := d.backend.Clients.List(ctx)
		if err != nil {
			return err
		}
		if c, ok := grid.ExactMatch(clientCandidates(clients), s.Client.Name); ok {
			s.ClientID = c.ID
			s.Client = findClient(clients, c.ID)
		}
	}

	var products []domain.Product
	for i := range s.Items {
		it := &s.Items[i]
		if it.ProductID != 0 || strings.TrimSpace(it.ProductName) == "" {
			continue
		}
		if products == nil {
			list, err := d.backend.Products.List(ctx)
			if err != nil {
				return err
			}
			products = list
		}
		if c, ok := grid.ExactMatch(productCandidates(products), it.ProductName); ok {
			it.ProductID = c.ID
			it.Product = findProduct(products, c.ID)
		}
	}
	return nil
}

// Open starts a draft. An open draft is kept.
func (d *SaleDraft) Open(ctx context.Context) error {
	wasOpen := d.Form.IsOpen()
	if err := d.Form.Open(ctx); err != nil {
		return err
	}
	if !wasOpen {
		d.resetPickers()
	}
	return nil
}

func (d *SaleDraft) resetPickers() {
	draft, ok := d.Form.Draft()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = grid.Picker{}
	d.items = nil
	d.side = side{}
	if !ok {
		return
	}
	if draft.Client != nil {
		d.client = grid.Picker{Text: draft.Client.Name, SelectedID: draft.ClientID}
	}
	for _, it := range draft.Items {
		d.items = append(d.items, grid.Picker{Text: it.DisplayName(), SelectedID: it.ProductID})
	}
}

// Draft returns a copy of the sale draft.
func (d *SaleDraft) Draft() (domain.Sale, bool) {
	return d.Form.Draft()
}

// ClientPicker returns the client field state.
func (d *SaleDraft) ClientPicker() grid.Picker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client
}

// ItemPickers returns the product field state of every line item.
func (d *SaleDraft) ItemPickers() []grid.Picker {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]grid.Picker, len(d.items))
	copy(out, d.items)
	return out
}

// =============================================================================
// Client field
// =============================================================================

// TypeClient records text typed in the client field.
func (d *SaleDraft) TypeClient(text string) error {
	return d.Form.Update(func(s *domain.Sale) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.client.Type(text)
		if d.client.SelectedID == 0 {
			s.ClientID = 0
			s.Client = &domain.Client{Name: strings.TrimSpace(text)}
		}
		return nil
	})
}

// ClientSuggestions lists known clients whose name contains the typed text.
func (d *SaleDraft) ClientSuggestions(ctx context.Context, limit int) ([]grid.Candidate, error) {
	clients, err := d.backend.Clients.List(ctx)
	if err != nil {
		return nil, err
	}
	p := d.ClientPicker()
	return p.Suggestions(clientCandidates(clients), limit), nil
}

// ChooseClient selects a suggested client.
func (d *SaleDraft) ChooseClient(ctx context.Context, id int) error {
	const op = "sale_draft.choose_client"
	clients, err := d.backend.Clients.List(ctx)
	if err != nil {
		return err
	}
	c := findClient(clients, id)
	if c == nil {
		return domain.NotFound(op, "Client", id)
	}
	return d.Form.Update(func(s *domain.Sale) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.client.Choose(c.ID, c.Name)
		s.ClientID = c.ID
		s.Client = c
		return nil
	})
}

// BlurClient resolves the typed client name. When nothing matches, the
// nested client form opens with the typed name.
func (d *SaleDraft) BlurClient(ctx context.Context) (grid.BlurResult, error) {
	clients, err := d.backend.Clients.List(ctx)
	if err != nil {
		return grid.BlurNone, err
	}

	var result grid.BlurResult
	var typed string
	err = d.Form.Update(func(s *domain.Sale) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		result = d.client.Blur(clientCandidates(clients))
		typed = strings.TrimSpace(d.client.Text)
		if result == grid.BlurMatched {
			s.ClientID = d.client.SelectedID
			s.Client = findClient(clients, d.client.SelectedID)
		}
		return nil
	})
	if err != nil {
		return grid.BlurNone, err
	}
	if result == grid.BlurCreate {
		d.openSide(side{kind: SideClient}, typed)
	}
	return result, nil
}

// =============================================================================
// Line items
// =============================================================================

// AddItem appends a line item with the default product.
func (d *SaleDraft) AddItem(ctx context.Context) error {
	def, err := d.defaults(ctx)
	if err != nil {
		return err
	}
	item := def.Items[0]
	return d.Form.Update(func(s *domain.Sale) error {
		d.mu.Lock()
		defer d.mu.Unlock()
		s.Items = append(s.Items, item)
		d.items = append(d.items, grid.Picker{Text: item.DisplayName(), SelectedID: item.ProductID})
		return nil
	})
}

// RemoveItem drops line item idx. The last item cannot be removed.
func (d *SaleDraft) RemoveItem(idx int) error {
	const op = "sale_draft.remove_item"
	err := d.Form.Update(func(s *domain.Sale) error {
		if idx < 0 || idx >= len(s.Items) {
			return domain.Invalid(op, fmt.Sprintf("Item %d does not exist", idx+1))
		}
		if len(s.Items) == 1 {
			return domain.Invalid(op, "A sale needs at least one item")
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		s.Items = append(s.Items[:idx:idx], s.Items[idx+1:]...)
		if idx < len(d.items) {
			d.items = append(d.items[:idx:idx], d.items[idx+1:]...)
		}
		if d.side.kind == SideProduct {
			switch {
			case d.side.item == idx:
				d.side = side{}
				d.ProductForm.Discard()
			case d.side.item > idx:
				d.side.item--
			}
		}
		return nil
	})
	if err != nil {
		d.sink.Error(domain.ErrorMessage(err))
	}
	return err
}

// TypeItem records text typed in the product field of item idx.
func (d *SaleDraft) TypeItem(idx int, text string) error {
	return d.updateItem("sale_draft.type_item", idx, func(it *domain.LineItem, p *grid.Picker) error {
		p.Type(text)
		if p.SelectedID == 0 {
			it.ProductID = 0
			it.Product = nil
			it.ProductName = strings.TrimSpace(text)
		}
		return nil
	})
}

// ItemSuggestions lists known products whose name contains the text typed
// in item idx.
func (d *SaleDraft) ItemSuggestions(ctx context.Context, idx, limit int) ([]grid.Candidate, error) {
	products, err := d.backend.Products.List(ctx)
	if err != nil {
		return nil, err
	}
	pickers := d.ItemPickers()
	if idx < 0 || idx >= len(pickers) {
		return nil, domain.Invalid("sale_draft.item_suggestions", fmt.Sprintf("Item %d does not exist", idx+1))
	}
	return pickers[idx].Suggestions(productCandidates(products), limit), nil
}

// ChooseItem selects a suggested product for item idx and takes its price.
func (d *SaleDraft) ChooseItem(ctx context.Context, idx, id int) error {
	const op = "sale_draft.choose_item"
	products, err := d.backend.Products.List(ctx)
	if err != nil {
		return err
	}
	p := findProduct(products, id)
	if p == nil {
		return domain.NotFound(op, "Product", id)
	}
	return d.updateItem(op, idx, func(it *domain.LineItem, pk *grid.Picker) error {
		pk.Choose(p.ID, p.Name)
		setProduct(it, p)
		return nil
	})
}

// BlurItem resolves the product name typed in item idx. When nothing
// matches, the nested product form opens with the typed name.
func (d *SaleDraft) BlurItem(ctx context.Context, idx int) (grid.BlurResult, error) {
	products, err := d.backend.Products.List(ctx)
	if err != nil {
		return grid.BlurNone, err
	}

	var result grid.BlurResult
	var typed string
	err = d.updateItem("sale_draft.blur_item", idx, func(it *domain.LineItem, p *grid.Picker) error {
		result = p.Blur(productCandidates(products))
		typed = strings.TrimSpace(p.Text)
		if result == grid.BlurMatched {
			setProduct(it, findProduct(products, p.SelectedID))
		}
		return nil
	})
	if err != nil {
		return grid.BlurNone, err
	}
	if result == grid.BlurCreate {
		d.openSide(side{kind: SideProduct, item: idx}, typed)
	}
	return result, nil
}

// SetItemField writes quantidade, preco_unitario or unidade of item idx.
func (d *SaleDraft) SetItemField(idx int, field, value string) error {
	const op = "sale_draft.set_item_field"
	err := d.updateItem(op, idx, func(it *domain.LineItem, _ *grid.Picker) error {
		return setItemValue(op, idx, it, field, value)
	})
	if err != nil {
		d.sink.Error(domain.ErrorMessage(err))
	}
	return err
}

func (d *SaleDraft) updateItem(op string, idx int, fn func(*domain.LineItem, *grid.Picker) error) error {
	return d.Form.Update(func(s *domain.Sale) error {
		if idx < 0 || idx >= len(s.Items) {
			return domain.Invalid(op, fmt.Sprintf("Item %d does not exist", idx+1))
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		for len(d.items) < len(s.Items) {
			d.items = append(d.items, grid.Picker{})
		}
		items := make([]domain.LineItem, len(s.Items))
		copy(items, s.Items)
		picker := d.items[idx]
		if err := fn(&items[idx], &picker); err != nil {
			return err
		}
		s.Items = items
		d.items[idx] = picker
		return nil
	})
}

// SetField writes a sale-level input (date, payment status, payment date,
// notes).
func (d *SaleDraft) SetField(field, value string) error {
	return d.Form.SetField(field, value)
}

// =============================================================================
// Nested create form
// =============================================================================

func (d *SaleDraft) openSide(s side, name string) {
	d.mu.Lock()
	d.side = s
	d.mu.Unlock()

	switch s.kind {
	case SideClient:
		d.ProductForm.Discard()
		d.ClientForm.OpenWith(domain.Client{Name: name, Weekday: domain.WeekdayVariable, Status: domain.ClientWeekly})
	case SideProduct:
		d.ClientForm.Discard()
		d.ProductForm.OpenWith(domain.Product{Name: name, Type: domain.ProductOther})
	}
	d.logger.Debug("nested form opened", "kind", s.kind, "name", name)
}

// Side reports which nested form is open, and for which item.
func (d *SaleDraft) Side() (SideKind, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.side.kind, d.side.item
}

// SetSideField writes one input of the open nested form.
func (d *SaleDraft) SetSideField(field, value string) error {
	kind, _ := d.Side()
	switch kind {
	case SideClient:
		return d.ClientForm.SetField(field, value)
	case SideProduct:
		return d.ProductForm.SetField(field, value)
	}
	return domain.Invalid("sale_draft.set_side_field", "No nested form is open")
}

// SubmitSide creates the entity of the open nested form and selects it
// into the field that opened it.
func (d *SaleDraft) SubmitSide(ctx context.Context) error {
	const op = "sale_draft.submit_side"
	d.mu.Lock()
	s := d.side
	d.mu.Unlock()

	switch s.kind {
	case SideClient:
		draft, _ := d.ClientForm.Draft()
		created, err := d.ClientForm.Submit(ctx)
		if err != nil {
			return err
		}
		c, err := d.createdClient(ctx, op, created, draft.Name)
		if err != nil {
			return err
		}
		d.clearSide()
		return d.Form.Update(func(sale *domain.Sale) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.client.Resolve(c.ID, c.Name)
			sale.ClientID = c.ID
			sale.Client = &c
			return nil
		})

	case SideProduct:
		draft, _ := d.ProductForm.Draft()
		created, err := d.ProductForm.Submit(ctx)
		if err != nil {
			return err
		}
		p, err := d.createdProduct(ctx, op, created, draft)
		if err != nil {
			return err
		}
		d.clearSide()
		return d.updateItem(op, s.item, func(it *domain.LineItem, pk *grid.Picker) error {
			pk.Resolve(p.ID, p.Name)
			setProduct(it, &p)
			return nil
		})
	}
	return domain.Invalid(op, "No nested form is open")
}

// createdClient returns the new client, looking it up by name in the
// refreshed list when the create response carried no id.
func (d *SaleDraft) createdClient(ctx context.Context, op string, created domain.Client, name string) (domain.Client, error) {
	if created.ID != 0 {
		if created.Name == "" {
			created.Name = name
		}
		return created, nil
	}
	clients, err := d.backend.Clients.List(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	if c, ok := grid.ExactMatch(clientCandidates(clients), name); ok {
		return *findClient(clients, c.ID), nil
	}
	err = domain.Errorf(domain.ENOTFOUND, op, "Client %q was created but could not be selected", name)
	d.sink.Error(domain.ErrorMessage(err))
	return domain.Client{}, err
}

func (d *SaleDraft) createdProduct(ctx context.Context, op string, created, draft domain.Product) (domain.Product, error) {
	if created.ID != 0 {
		if created.Name == "" {
			created.Name = draft.Name
			created.Price = draft.Price
		}
		return created, nil
	}
	products, err := d.backend.Products.List(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if c, ok := grid.ExactMatch(productCandidates(products), draft.Name); ok {
		return *findProduct(products, c.ID), nil
	}
	err = domain.Errorf(domain.ENOTFOUND, op, "Product %q was created but could not be selected", draft.Name)
	d.sink.Error(domain.ErrorMessage(err))
	return domain.Product{}, err
}

// DiscardSide closes the nested form without creating anything.
func (d *SaleDraft) DiscardSide() {
	d.clearSide()
}

func (d *SaleDraft) clearSide() {
	d.mu.Lock()
	d.side = side{}
	d.mu.Unlock()
	d.ClientForm.Discard()
	d.ProductForm.Discard()
}

// =============================================================================
// Submit
// =============================================================================

// Submit resolves typed names, validates and creates the sale.
func (d *SaleDraft) Submit(ctx context.Context) (domain.Sale, error) {
	created, err := d.Form.Submit(ctx)
	if err != nil {
		return created, err
	}
	if !d.Form.IsOpen() {
		d.resetPickers()
	}
	return created, nil
}

// Discard closes the draft and any nested form.
func (d *SaleDraft) Discard() {
	d.Form.Discard()
	d.resetPickers()
	d.clearSide()
}

// Close detaches every form of the draft.
func (d *SaleDraft) Close() {
	d.Form.Close()
	d.ClientForm.Close()
	d.ProductForm.Close()
}

// =============================================================================
// Lookups
// =============================================================================

func clientCandidates(clients []domain.Client) []grid.Candidate {
	out := make([]grid.Candidate, 0, len(clients))
	for _, c := range clients {
		out = append(out, grid.Candidate{ID: c.ID, Name: c.Name})
	}
	return out
}

func productCandidates(products []domain.Product) []grid.Candidate {
	out := make([]grid.Candidate, 0, len(products))
	for _, p := range products {
		out = append(out, grid.Candidate{ID: p.ID, Name: p.Name})
	}
	return out
}

func findClient(clients []domain.Client, id int) *domain.Client {
	for i := range clients {
		if clients[i].ID == id {
			c := clients[i]
			return &c
		}
	}
	return nil
}

func findProduct(products []domain.Product, id int) *domain.Product {
	for i := range products {
		if products[i].ID == id {
			p := products[i]
			return &p
		}
	}
	return nil
}
