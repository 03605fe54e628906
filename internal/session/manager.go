package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DukeRupert/fazenda/internal/metrics"
	"github.com/DukeRupert/fazenda/internal/prefs"
	"github.com/DukeRupert/fazenda/internal/resource"
)

// Config configures a Manager.
type Config struct {
	Backend     resource.Backend
	Prefs       prefs.Store
	IdleTimeout time.Duration
	MaxSessions int // least recently used workspaces beyond this are dropped
	Logger      *slog.Logger
}

// Manager owns the workspaces of all live sessions.
type Manager struct {
	backend resource.Backend
	prefs   prefs.Store
	idle    time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	workspaces *lru.Cache[uuid.UUID, *Workspace]
}

// NewManager creates a manager with no sessions.
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Prefs == nil {
		cfg.Prefs = prefs.NewMemoryStore()
	}
	m := &Manager{
		backend: cfg.Backend,
		prefs:   cfg.Prefs,
		idle:    cfg.IdleTimeout,
		logger:  cfg.Logger.With("component", "session"),
		now:     time.Now,
	}
	workspaces, err := lru.NewWithEvict[uuid.UUID, *Workspace](cfg.MaxSessions, m.dropped)
	if err != nil {
		panic(err)
	}
	m.workspaces = workspaces
	return m
}

// dropped closes a workspace leaving the cache, by eviction or sweep.
func (m *Manager) dropped(id uuid.UUID, ws *Workspace) {
	ws.Close()
	m.logger.Debug("workspace dropped", "session", id.String())
}

// Resolve returns the workspace for id, creating it when id is unknown or
// nil. The second result is false when a new session id was issued.
func (m *Manager) Resolve(ctx context.Context, id uuid.UUID) (*Workspace, bool) {
	now := m.now()

	if id != uuid.Nil {
		m.mu.Lock()
		ws, ok := m.workspaces.Get(id)
		m.mu.Unlock()
		if ok {
			ws.touch(now)
			return ws, true
		}
	}

	// A cookie from a previous process keeps its id, so its stored
	// preferences apply again. A new id has nothing stored.
	known := id != uuid.Nil
	p := prefs.Default()
	if known {
		stored, err := m.prefs.Load(ctx, id)
		if err != nil {
			m.logger.Warn("display preferences unavailable", "session", id.String(), "error", err)
		} else {
			p = stored
		}
	} else {
		id = uuid.New()
	}
	ws := newWorkspace(id, m.backend, m.prefs, m.logger)
	ws.apply(p)
	ws.touch(now)

	m.mu.Lock()
	if existing, ok := m.workspaces.Get(id); ok {
		m.mu.Unlock()
		ws.Close()
		existing.touch(now)
		return existing, known
	}
	m.workspaces.Add(id, ws)
	n := m.workspaces.Len()
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	m.logger.Debug("workspace created", "session", id.String(), "restored", known)
	return ws, known
}

// Len returns the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workspaces.Len()
}

// Sweep drops workspaces idle for longer than the idle timeout.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	var expired []uuid.UUID
	for _, id := range m.workspaces.Keys() {
		if ws, ok := m.workspaces.Peek(id); ok && ws.idleSince(now) > m.idle {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.workspaces.Remove(id)
	}
	n := m.workspaces.Len()
	m.mu.Unlock()

	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		m.logger.Info("idle workspaces dropped", "count", len(expired), "remaining", n)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
