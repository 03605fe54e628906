package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/fazenda/internal/cache"
	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/gateway"
	"github.com/DukeRupert/fazenda/internal/middleware"
	"github.com/DukeRupert/fazenda/internal/resource"
	"github.com/DukeRupert/fazenda/internal/session"
)

// memAPI is an in-memory remote collection.
type memAPI[T any] struct {
	mu       sync.Mutex
	items    []T
	nextID   int
	id       func(T) int
	build    func(id int, payload any) T
	payloads []any
	calls    []string
}

func (a *memAPI[T]) List(ctx context.Context) ([]T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]T(nil), a.items...), nil
}

func (a *memAPI[T]) Create(ctx context.Context, payload any) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "create")
	a.payloads = append(a.payloads, payload)
	item := a.build(a.nextID, payload)
	a.nextID++
	a.items = append(a.items, item)
	return item, nil
}

func (a *memAPI[T]) Update(ctx context.Context, id int, payload any) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, fmt.Sprintf("update %d", id))
	a.payloads = append(a.payloads, payload)
	for i := range a.items {
		if a.id(a.items[i]) == id {
			a.items[i] = a.build(id, payload)
			return a.items[i], nil
		}
	}
	var zero T
	return zero, domain.NotFound("mem.update", "Row", id)
}

func (a *memAPI[T]) Delete(ctx context.Context, id int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, fmt.Sprintf("delete %d", id))
	for i := range a.items {
		if a.id(a.items[i]) == id {
			a.items = append(a.items[:i], a.items[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("mem.delete", "Row", id)
}

func (a *memAPI[T]) mutations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *memAPI[T]) lastPayload() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.payloads) == 0 {
		return nil
	}
	return a.payloads[len(a.payloads)-1]
}

type noWeeks struct{}

func (noWeeks) CreateWeek(ctx context.Context, start time.Time) (gateway.WeekResult, error) {
	return gateway.WeekResult{Message: "ok"}, nil
}

// app is the dashboard behind the session middleware, driven like a
// browser that keeps its session cookie.
type app struct {
	t       *testing.T
	mux     *http.ServeMux
	cookie  *http.Cookie
	clients *memAPI[domain.Client]
	sales   *memAPI[domain.Sale]
}

func newApp(t *testing.T) *app {
	t.Helper()
	logger := discardLogger()

	clients := &memAPI[domain.Client]{
		items: []domain.Client{
			{ID: 1, Name: "Ana", District: "Centro", Status: domain.ClientWeekly},
			{ID: 2, Name: "Bia", District: "Vila", Status: domain.ClientProspect},
		},
		nextID: 10,
		id:     func(c domain.Client) int { return c.ID },
		build: func(id int, payload any) domain.Client {
			p := payload.(domain.ClientPayload)
			return domain.Client{ID: id, Name: p.Name, Address: p.Address, District: p.District, Weekday: p.Weekday, Status: p.Status, Notes: p.Notes}
		},
	}
	products := &memAPI[domain.Product]{
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
	}
	sales := &memAPI[domain.Sale]{
		nextID: 100,
		id:     func(s domain.Sale) int { return s.ID },
		build: func(id int, payload any) domain.Sale {
			p := payload.(domain.SalePayload)
			d, _ := domain.ParseDate(p.Date)
			return domain.Sale{ID: id, ClientID: p.ClientID, Date: d, PaymentStatus: p.PaymentStatus}
		},
	}

	c := cache.New(logger)
	manager := session.NewManager(session.Config{
		Backend: resource.Backend{
			ClientAPI:  clients,
			ProductAPI: products,
			SaleAPI:    sales,
			Weeks:      noWeeks{},
			Clients:    cache.Bind(c, "clients", clients.List),
			Products:   cache.Bind(c, "products", products.List),
			Sales:      cache.Bind(c, "sales", sales.List),
			Location:   time.UTC,
		},
		Logger: logger,
	})

	renderer, err := NewRenderer(Templates(), logger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	sessions := middleware.NewSessionMiddleware(manager, logger, false)
	New(renderer, logger).RegisterRoutes(mux, sessions.Attach)

	return &app{t: t, mux: mux, clients: clients, sales: sales}
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	a.t.Helper()
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			a.cookie = c
		}
	}
	return rec
}

func (a *app) get(path string) string {
	a.t.Helper()
	rec := a.do(httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(a.t, http.StatusOK, rec.Code, path)
	return rec.Body.String()
}

func (a *app) post(path string, form url.Values) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req)
}

func TestNewRenderer_ParsesEmbeddedPages(t *testing.T) {
	r, err := NewRenderer(Templates(), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"clients", "products", "sales"}, r.ListTemplates())

	err = r.Render(io.Discard, "missing", PageData{})
	assert.Error(t, err)
}

func TestRoot_RedirectsToSales(t *testing.T) {
	a := newApp(t)
	rec := a.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/sales", rec.Header().Get("Location"))
}

func TestScreens_Render(t *testing.T) {
	a := newApp(t)

	body := a.get("/clients")
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "Bia")
	assert.Contains(t, body, `action="/clients/type"`)

	body = a.get("/products")
	assert.Contains(t, body, "Ovos")
	assert.Contains(t, body, "R$ 30,00")

	body = a.get("/sales")
	assert.Contains(t, body, "Nenhum registro encontrado.")
	assert.Contains(t, body, `action="/sales/window"`)
}

func TestAction_FailureIsFlashedOnce(t *testing.T) {
	a := newApp(t)
	a.get("/clients")

	rec := a.post("/clients/rows/99/edit", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/clients", rec.Header().Get("Location"))

	body := a.get("/clients")
	assert.Equal(t, 1, strings.Count(body, "Client with ID 99 not found"))
	assert.Contains(t, body, "flash-error")

	body = a.get("/clients")
	assert.NotContains(t, body, "not found", "flash is drained by the first render")
}

func TestAction_UnreportedFailureIsFlashed(t *testing.T) {
	a := newApp(t)

	a.post("/clients/filter", url.Values{"col": {"abc"}})
	body := a.get("/clients")
	assert.Contains(t, body, "Invalid column")
}

func TestAction_JSONClientsGetStatus(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodPost, "/clients/rows/99/edit", nil)
	req.Header.Set("Accept", "application/json")
	rec := a.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body JSONError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.ENOTFOUND, body.Error.Code)
}

func TestRowEdit_Save(t *testing.T) {
	a := newApp(t)

	a.post("/clients/rows/1/edit", nil)
	body := a.get("/clients")
	assert.Contains(t, body, `action="/clients/rows/1/save"`)
	assert.Contains(t, body, `form="edit-1"`)

	rec := a.post("/clients/rows/1/save", url.Values{"nome": {"Ana Maria"}, "_ignored": {"x"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	require.Equal(t, []string{"update 1"}, a.clients.mutations())
	assert.Equal(t, "Ana Maria", a.clients.lastPayload().(domain.ClientPayload).Name)

	body = a.get("/clients")
	assert.Contains(t, body, "Client saved")
	assert.Contains(t, body, "Ana Maria")
	assert.NotContains(t, body, `form="edit-1"`)
}

func TestRowEdit_InvalidValueKeepsBuffer(t *testing.T) {
	a := newApp(t)

	a.post("/clients/rows/1/edit", nil)
	a.post("/clients/rows/1/save", url.Values{"status": {"vip"}})

	assert.Empty(t, a.clients.mutations())
	body := a.get("/clients")
	assert.Equal(t, 1, strings.Count(body, "flash-error"))
	assert.Contains(t, body, `form="edit-1"`, "row stays in edit mode")
}

func TestFilter_ColumnValues(t *testing.T) {
	a := newApp(t)
	const bairro = "2"

	body := a.get("/clients?filter=" + bairro)
	assert.Contains(t, body, `value="Centro"`)
	assert.Contains(t, body, `value="Vila"`)

	a.post("/clients/filter", url.Values{"col": {bairro}, "value": {"Vila"}})
	body = a.get("/clients")
	assert.Contains(t, body, "Bia")
	assert.NotContains(t, body, "Ana")
	assert.Contains(t, body, "Limpar filtros")

	a.post("/clients/filter", url.Values{"reset": {"1"}})
	body = a.get("/clients")
	assert.Contains(t, body, "Ana")
}

func TestSearch(t *testing.T) {
	a := newApp(t)

	a.post("/clients/search", url.Values{"q": {"vila"}})
	body := a.get("/clients")
	assert.Contains(t, body, "Bia")
	assert.NotContains(t, body, ">Ana<")
}

func TestDelete_NeedsConfirmation(t *testing.T) {
	a := newApp(t)

	a.post("/clients/rows/2/delete", nil)
	assert.Empty(t, a.clients.mutations())
	assert.Contains(t, a.get("/clients"), "Excluir este registro?")

	a.post("/clients/delete/confirm", nil)
	assert.Equal(t, []string{"delete 2"}, a.clients.mutations())

	body := a.get("/clients")
	assert.Contains(t, body, "Client deleted")
	assert.NotContains(t, body, "Bia")
}

func TestClientType(t *testing.T) {
	a := newApp(t)

	a.post("/clients/type", url.Values{"type": {string(domain.ClientProspect)}})
	body := a.get("/clients")
	assert.Contains(t, body, "Bia")
	assert.NotContains(t, body, "Ana")
}

func TestSalesWindow(t *testing.T) {
	a := newApp(t)

	a.post("/sales/window", url.Values{"mode": {"day"}, "date": {"2025-03-10"}})
	assert.Contains(t, a.get("/sales"), "10/03/2025")

	a.post("/sales/window", url.Values{"shift": {"1"}})
	assert.Contains(t, a.get("/sales"), "11/03/2025")

	a.post("/sales/window", url.Values{"mode": {"period"}, "end": {"2025-03-10"}})
	assert.Contains(t, a.get("/sales"), "04/03/2025")

	a.post("/sales/window", url.Values{"mode": {"day"}, "date": {"ontem"}})
	assert.Contains(t, a.get("/sales"), "Invalid date")
}

func TestSaleDraft_Submit(t *testing.T) {
	a := newApp(t)

	a.post("/sales/new", nil)
	body := a.get("/sales")
	assert.Contains(t, body, "Nova venda")
	assert.Contains(t, body, `name="itens.0.produto"`)

	rec := a.post("/sales/new/submit", url.Values{
		"cliente":                {"ana"},
		"itens.0.produto":        {"Mel"},
		"itens.0.quantidade":     {"2"},
		"itens.0.unidade":        {string(domain.UnitSingle)},
		"itens.0.preco_unitario": {"30,00"},
		"dataVenda":              {"2025-03-10"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	require.Equal(t, []string{"create"}, a.sales.mutations())
	payload := a.sales.lastPayload().(domain.SalePayload)
	assert.Equal(t, 1, payload.ClientID)
	assert.Equal(t, "2025-03-10", payload.Date)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].ProductID)

	assert.Contains(t, a.get("/sales"), "Sale created")
}

func TestSaleDraft_ChooseClientKeepsInputs(t *testing.T) {
	a := newApp(t)

	a.post("/sales/new", nil)
	a.post("/sales/new/client/choose", url.Values{
		"_id":         {"2"},
		"cliente":     {"b"},
		"observacoes": {"portão azul"},
	})

	body := a.get("/sales")
	assert.Contains(t, body, `value="Bia"`)
	assert.Contains(t, body, "portão azul")
	assert.NotContains(t, body, "flash-error")
}

func TestSaleDraft_UnknownClientOpensSideForm(t *testing.T) {
	a := newApp(t)

	a.post("/sales/new", nil)
	a.post("/sales/new/client/blur", url.Values{"cliente": {"Carla"}})
	body := a.get("/sales")
	assert.Contains(t, body, "Novo cliente")

	a.post("/sales/side/submit", url.Values{"nome": {"Carla"}})
	assert.Equal(t, []string{"create"}, a.clients.mutations())
	body = a.get("/sales")
	assert.NotContains(t, body, "Novo cliente")
	assert.Contains(t, body, `value="Carla"`)
}

func TestSaleRowEdit_LineItemsAndClient(t *testing.T) {
	a := newApp(t)
	ovos := domain.Product{ID: 1, Name: "Ovos", Price: 15}
	a.sales.items = []domain.Sale{{
		ID:            5,
		ClientID:      1,
		Client:        &domain.Client{ID: 1, Name: "Ana", District: "Centro", Status: domain.ClientWeekly},
		Date:          domain.Today(time.UTC),
		PaymentStatus: domain.PaymentPending,
		Items:         []domain.LineItem{{ID: 50, ProductID: 1, Product: &ovos, Quantity: 2, UnitPrice: 15, Unit: domain.UnitSingle}},
	}}

	a.post("/sales/rows/5/edit", nil)
	body := a.get("/sales")
	assert.Contains(t, body, "Itens da venda")
	assert.Contains(t, body, `name="itens.0.produto" value="Ovos" list="sale-edit-products" form="edit-5"`)
	assert.Contains(t, body, `name="cliente.nome" value="Ana" form="edit-5"`)

	rec := a.post("/sales/rows/5/save", url.Values{
		"cliente.nome":       {"Ana Maria"},
		"itens.0.produto":    {"Mel"},
		"itens.0.quantidade": {"4"},
		"statusPagamento":    {string(domain.PaymentPaid)},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	assert.Equal(t, []string{"update 1"}, a.clients.mutations())
	assert.Equal(t, "Ana Maria", a.clients.lastPayload().(domain.ClientPayload).Name)
	require.Equal(t, []string{"update 5"}, a.sales.mutations())
	payload := a.sales.lastPayload().(domain.SalePayload)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].ProductID)
	assert.Equal(t, 4, payload.Items[0].Quantity)
	assert.Equal(t, domain.PaymentPaid, payload.PaymentStatus)

	assert.NotContains(t, a.get("/sales"), "Itens da venda")
}
