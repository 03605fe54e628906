package resource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/fazenda/internal/cache"
	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/gateway"
	"github.com/DukeRupert/fazenda/internal/notify"
)

// fakeAPI is an in-memory remote collection that records mutations.
type fakeAPI[T any] struct {
	mu       sync.Mutex
	items    []T
	nextID   int
	build    func(id int, payload any) T
	id       func(T) int
	payloads []any
	calls    []string
	lists    int

	failUpdate error
}

func (a *fakeAPI[T]) List(ctx context.Context) ([]T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists++
	out := make([]T, len(a.items))
	copy(out, a.items)
	return out, nil
}

func (a *fakeAPI[T]) Create(ctx context.Context, payload any) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "create")
	a.payloads = append(a.payloads, payload)
	item := a.build(a.nextID, payload)
	a.nextID++
	a.items = append(a.items, item)
	return item, nil
}

func (a *fakeAPI[T]) Update(ctx context.Context, id int, payload any) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, fmt.Sprintf("update %d", id))
	a.payloads = append(a.payloads, payload)
	var zero T
	return zero, a.failUpdate
}

func (a *fakeAPI[T]) Delete(ctx context.Context, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, fmt.Sprintf("delete %d", id))
	for i := range a.items {
		if a.id(a.items[i]) == id {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("fake.delete", "Row", id)
}

func (a *fakeAPI[T]) mutations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAPI[T]) lastPayload() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.payloads) == 0 {
		return nil
	}
	return a.payloads[len(a.payloads)-1]
}

func (a *fakeAPI[T]) listCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lists
}

type fakeWeeks struct {
	mu     sync.Mutex
	starts []time.Time
	result gateway.WeekResult
	err    error
}

func (w *fakeWeeks) CreateWeek(ctx context.Context, start time.Time) (gateway.WeekResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.starts = append(w.starts, start)
	return w.result, w.err
}

type env struct {
	clients  *fakeAPI[domain.Client]
	products *fakeAPI[domain.Product]
	sales    *fakeAPI[domain.Sale]
	weeks    *fakeWeeks
	backend  Backend
	flash    *notify.Flash
	logger   *slog.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		clients: &fakeAPI[domain.Client]{
			items: []domain.Client{
				{ID: 1, Name: "Ana", District: "Centro", Status: domain.ClientWeekly},
				{ID: 2, Name: "Bia", District: "Vila", Status: domain.ClientProspect},
			},
			nextID: 10,
			id:     func(c domain.Client) int { return c.ID },
			build: func(id int, payload any) domain.Client {
				p := payload.(domain.ClientPayload)
				return domain.Client{ID: id, Name: p.Name, Status: p.Status, Weekday: p.Weekday}
			},
		},
		products: &fakeAPI[domain.Product]{
			items: []domain.Product{
				{ID: 1, Name: "Ovos", Type: domain.ProductEggs, Price: 15},
				{ID: 2, Name: "Mel", Type: domain.ProductHoney, Price: 30},
			},
			nextID: 10,
			id:     func(p domain.Product) int { return p.ID },
			build: func(id int, payload any) domain.Product {
				p := payload.(domain.ProductPayload)
				return domain.Product{ID: id, Name: p.Name, Type: p.Type, Price: domain.Amount(p.Price)}
			},
		},
		sales: &fakeAPI[domain.Sale]{
			nextID: 100,
			id:     func(s domain.Sale) int { return s.ID },
			build: func(id int, payload any) domain.Sale {
				p := payload.(domain.SalePayload)
				d, _ := domain.ParseDate(p.Date)
				return domain.Sale{ID: id, ClientID: p.ClientID, Date: d, PaymentStatus: p.PaymentStatus}
			},
		},
		weeks:  &fakeWeeks{},
		flash:  notify.NewFlash(50),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	c := cache.New(e.logger)
	e.backend = Backend{
		ClientAPI:  e.clients,
		ProductAPI: e.products,
		SaleAPI:    e.sales,
		Weeks:      e.weeks,
		Clients:    cache.Bind(c, "clients", e.clients.List),
		Products:   cache.Bind(c, "products", e.products.List),
		Sales:      cache.Bind(c, "sales", e.sales.List),
		Location:   time.UTC,
	}
	return e
}

func (e *env) messages(kind notify.Kind) []string {
	var out []string
	for _, m := range e.flash.Drain() {
		if m.Kind == kind {
			out = append(out, m.Text)
		}
	}
	return out
}

func mustDate(t *testing.T, s string) domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}
