package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/gateway"
	"github.com/DukeRupert/fazenda/internal/grid"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// WeekCreator generates a week of sales on the server.
type WeekCreator interface {
	CreateWeek(ctx context.Context, start time.Time) (gateway.WeekResult, error)
}

// Backend is what the screens share across browser sessions: the remote
// collections and their cached lists.
type Backend struct {
	ClientAPI  grid.Gateway[domain.Client]
	ProductAPI grid.Gateway[domain.Product]
	SaleAPI    grid.Gateway[domain.Sale]
	Weeks      WeekCreator

	Clients  grid.Store[domain.Client]
	Products grid.Store[domain.Product]
	Sales    grid.Store[domain.Sale]

	Location          *time.Location
	DeleteConcurrency int
}

func (b Backend) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

// =============================================================================
// Clients
// =============================================================================

// Clients is the clients screen: the grid plus the quick type filter.
type Clients struct {
	*grid.Grid[domain.Client]
	Form *grid.Form[domain.Client]

	mu         sync.Mutex
	clientType domain.ClientStatus
}

// NewClients builds the clients grid and its new-row form.
func NewClients(b Backend, sink notify.Sink, logger *slog.Logger) *Clients {
	cols := ClientColumns()
	return &Clients{
		Grid: grid.New(grid.Config[domain.Client]{
			Resource:          "clients",
			Noun:              "Client",
			Columns:           cols,
			ID:                func(c domain.Client) int { return c.ID },
			Validate:          domain.Client.Validate,
			Payload:           func(c domain.Client) any { return c.Payload() },
			DeleteConcurrency: b.DeleteConcurrency,
		}, b.ClientAPI, b.Clients, sink, logger),
		Form: NewClientForm(b, sink, logger),
	}
}

// NewClientForm builds a new-client form.
func NewClientForm(b Backend, sink notify.Sink, logger *slog.Logger) *grid.Form[domain.Client] {
	return grid.NewForm(grid.FormConfig[domain.Client]{
		Resource: "clients",
		Noun:     "Client",
		Columns:  ClientColumns(),
		Defaults: func(ctx context.Context) (domain.Client, error) {
			return domain.Client{Weekday: domain.WeekdayVariable, Status: domain.ClientWeekly}, nil
		},
		Validate: domain.Client.Validate,
		Payload:  func(c domain.Client) any { return c.Payload() },
	}, b.ClientAPI, b.Clients, sink, logger)
}

// SetTypeFilter limits the grid to one client type; "" shows all.
func (c *Clients) SetTypeFilter(t domain.ClientStatus) error {
	if t != "" && !domain.ClientFields[4].Allows(string(t)) {
		return domain.Invalid("clients.type_filter", fmt.Sprintf("unknown client type %q", t))
	}
	c.mu.Lock()
	c.clientType = t
	c.mu.Unlock()

	if t == "" {
		c.SetScope(nil)
		return nil
	}
	c.SetScope(func(cl domain.Client) bool { return cl.Status == t })
	return nil
}

// TypeFilter returns the active quick type filter.
func (c *Clients) TypeFilter() domain.ClientStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientType
}

// Close detaches the grid and its form.
func (c *Clients) Close() {
	c.Grid.Close()
	c.Form.Close()
}

// =============================================================================
// Products
// =============================================================================

// Products is the products screen.
type Products struct {
	*grid.Grid[domain.Product]
	Form *grid.Form[domain.Product]
}

// NewProducts builds the products grid and its new-row form.
func NewProducts(b Backend, sink notify.Sink, logger *slog.Logger) *Products {
	return &Products{
		Grid: grid.New(grid.Config[domain.Product]{
			Resource:          "products",
			Noun:              "Product",
			Columns:           ProductColumns(),
			ID:                func(p domain.Product) int { return p.ID },
			Validate:          domain.Product.Validate,
			Payload:           func(p domain.Product) any { return p.Payload() },
			DeleteConcurrency: b.DeleteConcurrency,
		}, b.ProductAPI, b.Products, sink, logger),
		Form: NewProductForm(b, sink, logger),
	}
}

// NewProductForm builds a new-product form.
func NewProductForm(b Backend, sink notify.Sink, logger *slog.Logger) *grid.Form[domain.Product] {
	return grid.NewForm(grid.FormConfig[domain.Product]{
		Resource: "products",
		Noun:     "Product",
		Columns:  ProductColumns(),
		Defaults: func(ctx context.Context) (domain.Product, error) {
			return domain.Product{Type: domain.ProductOther}, nil
		},
		Validate: domain.Product.Validate,
		Payload:  func(p domain.Product) any { return p.Payload() },
	}, b.ProductAPI, b.Products, sink, logger)
}

// Close detaches the grid and its form.
func (p *Products) Close() {
	p.Grid.Close()
	p.Form.Close()
}

// =============================================================================
// Sales
// =============================================================================

// Sales is the sales screen: the grid limited to a date window, the
// window's summary and the new-sale draft.
type Sales struct {
	*grid.Grid[domain.Sale]
	Draft *SaleDraft

	backend Backend
	sink    notify.Sink
	logger  *slog.Logger

	mu     sync.Mutex
	window domain.DateWindow
}

// NewSales builds the sales grid showing today's sales.
func NewSales(b Backend, sink notify.Sink, logger *slog.Logger) *Sales {
	s := &Sales{
		Grid: grid.New(grid.Config[domain.Sale]{
			Resource:          "sales",
			Noun:              "Sale",
			Columns:           SaleColumns(),
			ID:                func(s domain.Sale) int { return s.ID },
			Validate:          domain.Sale.Validate,
			Payload:           func(s domain.Sale) any { return s.Payload() },
			DeleteConcurrency: b.DeleteConcurrency,
		}, b.SaleAPI, b.Sales, sink, logger),
		Draft:   NewSaleDraft(b, sink, logger),
		backend: b,
		sink:    sink,
		logger:  logger.With("resource", "sales"),
	}
	s.SetWindow(domain.DayWindow(domain.Today(b.location())))
	return s
}

// Window returns the active date window.
func (s *Sales) Window() domain.DateWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow limits the grid to sales dated inside w.
func (s *Sales) SetWindow(w domain.DateWindow) {
	s.mu.Lock()
	s.window = w
	s.mu.Unlock()
	s.SetScope(func(sale domain.Sale) bool { return w.Contains(sale.Date) })
}

// ShiftDay moves the window by n days.
func (s *Sales) ShiftDay(n int) {
	s.SetWindow(s.Window().Shift(n))
}

// Summary aggregates the sales inside the window, ignoring column filters.
func (s *Sales) Summary(ctx context.Context) (domain.SalesSummary, error) {
	sales, err := s.backend.Sales.List(ctx)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	w := s.Window()
	inWindow := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if w.Contains(sale.Date) {
			inWindow = append(inWindow, sale)
		}
	}
	return domain.Summarize(inWindow), nil
}

// CreateWeek asks the server to generate the week's sales starting at
// start, then reloads the list.
func (s *Sales) CreateWeek(ctx context.Context, start domain.Date) error {
	const op = "sales.create_week"
	ctx = context.WithoutCancel(ctx)
	if s.backend.Weeks == nil {
		return domain.Internal(nil, op, "week generation is not configured")
	}
	if start.IsZero() {
		start = domain.Today(s.backend.location())
	}

	res, err := s.backend.Weeks.CreateWeek(ctx, start.Time)
	if err != nil {
		s.logger.Warn("create week failed", "op", op, "start", start.ISO(), "error", err)
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}
	s.logger.Info("week created", "op", op, "start", start.ISO(), "total", res.Total)

	if err := s.backend.Sales.Invalidate(ctx); err != nil {
		s.logger.Warn("reload after create week failed", "error", err)
	}
	msg := res.Message
	if msg == "" {
		msg = "Week created"
	}
	s.sink.Success(fmt.Sprintf("%s (%s)", msg, domain.FormatCount(res.Total)))
	return nil
}

// Close detaches the grid and the draft.
func (s *Sales) Close() {
	s.Grid.Close()
	s.Draft.Close()
}
