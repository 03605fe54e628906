package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/notify"
	"github.com/DukeRupert/fazenda/internal/prefs"
	"github.com/DukeRupert/fazenda/internal/resource"
)

// Workspace is the UI state of one browser session.
type Workspace struct {
	ID    uuid.UUID
	Flash *notify.Flash

	Clients  *resource.Clients
	Products *resource.Products
	Sales    *resource.Sales

	store  prefs.Store
	loc    *time.Location
	logger *slog.Logger

	mu       sync.Mutex
	prefs    prefs.Prefs
	lastSeen time.Time
}

func newWorkspace(id uuid.UUID, b resource.Backend, store prefs.Store, logger *slog.Logger) *Workspace {
	flash := notify.NewFlash(0)
	logger = logger.With("session", id.String())
	sink := notify.Multi{flash, notify.NewLogSink(logger)}

	return &Workspace{
		ID:       id,
		Flash:    flash,
		Clients:  resource.NewClients(b, sink, logger),
		Products: resource.NewProducts(b, sink, logger),
		Sales:    resource.NewSales(b, sink, logger),
		store:    store,
		loc:      b.Location,
		logger:   logger,
		prefs:    prefs.Default(),
	}
}

// apply sets the grids up from p.
func (w *Workspace) apply(p prefs.Prefs) {
	if err := w.Clients.SetTypeFilter(p.ClientType); err != nil {
		w.logger.Warn("stored client type ignored", "client_type", p.ClientType, "error", err)
		p.ClientType = ""
	}
	today := domain.Today(w.loc)
	if p.SalesMode == prefs.SalesPeriod {
		w.Sales.SetWindow(domain.PeriodWindow(today.AddDays(-(PeriodDays - 1)), today))
	} else {
		w.Sales.SetWindow(domain.DayWindow(today))
	}

	w.mu.Lock()
	w.prefs = p
	w.mu.Unlock()
}

// Today returns the current date in the dashboard timezone.
func (w *Workspace) Today() domain.Date {
	return domain.Today(w.loc)
}

// Prefs returns the current display preferences.
func (w *Workspace) Prefs() prefs.Prefs {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prefs
}

// SetClientType changes the clients quick type filter and remembers it.
func (w *Workspace) SetClientType(ctx context.Context, t domain.ClientStatus) error {
	if err := w.Clients.SetTypeFilter(t); err != nil {
		return err
	}
	return w.save(ctx, func(p *prefs.Prefs) { p.ClientType = t })
}

// SetSalesWindow changes the sales window and remembers its mode.
func (w *Workspace) SetSalesWindow(ctx context.Context, win domain.DateWindow) error {
	w.Sales.SetWindow(win)
	mode := prefs.SalesDay
	if win.Mode == domain.WindowPeriod {
		mode = prefs.SalesPeriod
	}
	return w.save(ctx, func(p *prefs.Prefs) { p.SalesMode = mode })
}

func (w *Workspace) save(ctx context.Context, fn func(*prefs.Prefs)) error {
	w.mu.Lock()
	p := w.prefs
	fn(&p)
	w.prefs = p
	w.mu.Unlock()

	if err := w.store.Save(ctx, w.ID, p); err != nil {
		w.logger.Warn("display preferences not saved", "error", err)
		return err
	}
	return nil
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return now.Sub(w.lastSeen)
}

// Close detaches the grids; responses still in flight no longer reach the
// flash queue.
func (w *Workspace) Close() {
	w.Clients.Close()
	w.Products.Close()
	w.Sales.Close()
}
