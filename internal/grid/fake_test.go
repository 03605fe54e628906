package grid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/DukeRupert/fazenda/internal/cache"
	"github.com/DukeRupert/fazenda/internal/domain"
)

// fakeServer is an in-memory remote collection of clients that records
// every call made to it.
type fakeServer struct {
	mu         sync.Mutex
	items      []domain.Client
	nextID     int
	calls      []string
	lists      int
	failUpdate error
	failDelete map[int]error
	failList   error
	gate       chan struct{} // when set, Update and Create wait on it
	entered    chan struct{} // receives when Update or Create is reached
}

func newFakeServer(items ...domain.Client) *fakeServer {
	highest := 0
	for _, c := range items {
		if c.ID > highest {
			highest = c.ID
		}
	}
	return &fakeServer{items: items, nextID: highest + 1, failDelete: map[int]error{}}
}

func (s *fakeServer) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeServer) wait() {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *fakeServer) List(ctx context.Context) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.failList != nil {
		return nil, s.failList
	}
	out := make([]domain.Client, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *fakeServer) Create(ctx context.Context, payload any) (domain.Client, error) {
	s.record("create")
	s.wait()
	p := payload.(domain.ClientPayload)

	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Client{ID: s.nextID, Name: p.Name, Address: p.Address, District: p.District, Weekday: p.Weekday, Status: p.Status}
	s.nextID++
	s.items = append(s.items, c)
	// Like a real transport, a cancelled caller never sees the response.
	if err := ctx.Err(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

func (s *fakeServer) Update(ctx context.Context, id int, payload any) (domain.Client, error) {
	s.record(fmt.Sprintf("update %d", id))
	s.wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate != nil {
		return domain.Client{}, s.failUpdate
	}
	p := payload.(domain.ClientPayload)
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Name = p.Name
			s.items[i].Status = p.Status
			if err := ctx.Err(); err != nil {
				return domain.Client{}, err
			}
			return s.items[i], nil
		}
	}
	return domain.Client{}, domain.NotFound("fake.update", "Client", id)
}

func (s *fakeServer) Delete(ctx context.Context, id int) error {
	s.record(fmt.Sprintf("delete %d", id))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failDelete[id]; err != nil {
		return err
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("fake.delete", "Client", id)
}

func (s *fakeServer) callsWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeServer) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// recordSink keeps every notification.
type recordSink struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (r *recordSink) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recordSink) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes), len(r.errors)
}

var errDown = domain.Unavailable(errors.New("connection refused"), "fake")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clientColumns() []Column[domain.Client] {
	return []Column[domain.Client]{
		{
			Field: domain.ClientFields[0],
			Value: func(c domain.Client) string { return c.Name },
			Set: func(c *domain.Client, v string) error {
				c.Name = v
				return nil
			},
		},
		{
			Field: domain.ClientFields[2],
			Value: func(c domain.Client) string { return c.District },
			Set: func(c *domain.Client, v string) error {
				c.District = v
				return nil
			},
		},
		{
			Field: domain.ClientFields[4],
			Value: func(c domain.Client) string { return string(c.Status) },
			Set: func(c *domain.Client, v string) error {
				if !domain.ClientFields[4].Allows(v) {
					return fmt.Errorf("unknown value %q", v)
				}
				c.Status = domain.ClientStatus(v)
				return nil
			},
		},
		{
			Field: domain.FieldDef{Name: "id", Label: "ID", Type: domain.FieldNumber, ReadOnly: true},
			Value: func(c domain.Client) string { return fmt.Sprint(c.ID) },
		},
	}
}

type fixture struct {
	server *fakeServer
	store  *cache.Typed[domain.Client]
	sink   *recordSink
	grid   *Grid[domain.Client]
}

func newFixture(t *testing.T, items ...domain.Client) *fixture {
	t.Helper()
	server := newFakeServer(items...)
	store := cache.Bind(cache.New(testLogger()), "clients", server.List)
	sink := &recordSink{}
	g := New(Config[domain.Client]{
		Resource: "clients",
		Noun:     "Client",
		Columns:  clientColumns(),
		ID:       func(c domain.Client) int { return c.ID },
		Validate: func(c domain.Client) error { return c.Validate() },
		Payload:  func(c domain.Client) any { return c.Payload() },
	}, server, store, sink, testLogger())
	return &fixture{server: server, store: store, sink: sink, grid: g}
}

func (f *fixture) visibleIDs(t *testing.T) []int {
	t.Helper()
	rows, err := f.grid.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows() error = %v", err)
	}
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}
