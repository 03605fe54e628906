package prefs

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal "github.com/DukeRupert/fazenda/internal"
	"github.com/DukeRupert/fazenda/internal/domain"
)

func TestPrefs_Validate(t *testing.T) {
	tests := []struct {
		name  string
		prefs Prefs
		valid bool
	}{
		{name: "default", prefs: Default(), valid: true},
		{name: "period with type", prefs: Prefs{SalesMode: SalesPeriod, ClientType: domain.ClientOnCall}, valid: true},
		{name: "empty mode", prefs: Prefs{}, valid: false},
		{name: "unknown type", prefs: Prefs{SalesMode: SalesDay, ClientType: "vip"}, valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.prefs.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()

	got, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)

	want := Prefs{SalesMode: SalesPeriod, ClientType: domain.ClientWeekly}
	require.NoError(t, s.Save(ctx, id, want))
	got, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.ClientType = ""
	require.NoError(t, s.Save(ctx, id, want))
	got, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.Error(t, s.Save(ctx, id, Prefs{SalesMode: "week"}))
	got, err = s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, got, "invalid prefs are not stored")
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, internal.RunMigrations(db))

	testStore(t, NewPostgresStore(db))
}
