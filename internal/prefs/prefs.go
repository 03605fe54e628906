// Package prefs stores the display preferences of a browser session: the
// sales window mode and the clients quick type filter.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/DukeRupert/fazenda/internal/domain"
)

// SalesMode is how the sales screen picks its date window.
type SalesMode string

const (
	SalesDay    SalesMode = "day"
	SalesPeriod SalesMode = "period"
)

// Prefs are the display preferences of one session.
type Prefs struct {
	SalesMode  SalesMode
	ClientType domain.ClientStatus
}

// Default returns the preferences of a new session.
func Default() Prefs {
	return Prefs{SalesMode: SalesDay}
}

// Validate checks the mode and client type.
func (p Prefs) Validate() error {
	const op = "prefs.validate"
	v := domain.Violations{}
	if p.SalesMode != SalesDay && p.SalesMode != SalesPeriod {
		v.Add("sales_mode", "Unknown sales mode")
	}
	if p.ClientType != "" && !domain.ClientFields[4].Allows(string(p.ClientType)) {
		v.Add("client_type", "Unknown client type")
	}
	return v.Err(op)
}

// Store loads and saves preferences by session id.
type Store interface {
	Load(ctx context.Context, session uuid.UUID) (Prefs, error)
	Save(ctx context.Context, session uuid.UUID, p Prefs) error
}

// =============================================================================
// In-memory store
// =============================================================================

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[uuid.UUID]Prefs
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[uuid.UUID]Prefs)}
}

func (s *MemoryStore) Load(ctx context.Context, session uuid.UUID) (Prefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[session]; ok {
		return p, nil
	}
	return Default(), nil
}

func (s *MemoryStore) Save(ctx context.Context, session uuid.UUID, p Prefs) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[session] = p
	return nil
}

// =============================================================================
// Postgres store
// =============================================================================

// PostgresStore keeps preferences in the display_prefs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const loadQuery = `SELECT sales_mode, client_type FROM display_prefs WHERE session_id = $1`

const saveQuery = `
INSERT INTO display_prefs (session_id, sales_mode, client_type, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (session_id) DO UPDATE
SET sales_mode = EXCLUDED.sales_mode,
    client_type = EXCLUDED.client_type,
    updated_at = now()`

func (s *PostgresStore) Load(ctx context.Context, session uuid.UUID) (Prefs, error) {
	const op = "prefs.load"
	var p Prefs
	err := s.db.QueryRowContext(ctx, loadQuery, session).Scan(&p.SalesMode, &p.ClientType)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Prefs{}, domain.Internal(err, op, "failed to load display preferences")
	}
	return p, nil
}

func (s *PostgresStore) Save(ctx context.Context, session uuid.UUID, p Prefs) error {
	const op = "prefs.save"
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, saveQuery, session, p.SalesMode, p.ClientType); err != nil {
		return domain.Internal(err, op, "failed to save display preferences")
	}
	return nil
}
