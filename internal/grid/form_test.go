package grid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/fazenda/internal/domain"
)

func newClientForm(f *fixture) *Form[domain.Client] {
	return NewForm(FormConfig[domain.Client]{
		Resource: "clients",
		Noun:     "Client",
		Columns:  clientColumns(),
		Defaults: func(ctx context.Context) (domain.Client, error) {
			return domain.Client{Status: domain.ClientWeekly, Weekday: domain.WeekdayVariable}, nil
		},
		Validate: func(c domain.Client) error { return c.Validate() },
		Payload:  func(c domain.Client) any { return c.Payload() },
	}, f.server, f.store, f.sink, testLogger())
}

func TestForm_CreateSurfacesServerID(t *testing.T) {
	f := newFixture(t, ana)
	form := newClientForm(f)
	ctx := context.Background()

	require.NoError(t, form.Open(ctx))
	require.True(t, form.IsOpen())
	require.NoError(t, form.SetField("nome", "Dora"))

	created, err := form.Submit(ctx)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, form.IsOpen(), "draft must be gone after create")

	rows, err := f.grid.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, created.ID, rows[1].ID)
	assert.Equal(t, "Dora", rows[1].Values[0])

	successes, _ := f.sink.counts()
	assert.Equal(t, 1, successes)
}

func TestForm_InvalidDraftKept(t *testing.T) {
	f := newFixture(t)
	form := newClientForm(f)
	ctx := context.Background()

	require.NoError(t, form.Open(ctx))
	_, err := form.Submit(ctx)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	assert.True(t, form.IsOpen())
	assert.Empty(t, f.server.callsWithPrefix("create"))
}

func TestForm_Discard(t *testing.T) {
	f := newFixture(t)
	form := newClientForm(f)
	ctx := context.Background()

	require.NoError(t, form.Open(ctx))
	firstKey := form.Key()
	form.Discard()
	assert.False(t, form.IsOpen())

	require.NoError(t, form.Open(ctx))
	assert.NotEqual(t, firstKey, form.Key())
	draft, ok := form.Draft()
	require.True(t, ok)
	assert.Equal(t, domain.ClientWeekly, draft.Status)
	assert.Empty(t, f.server.calls)
}

func TestForm_OpenKeepsExistingDraft(t *testing.T) {
	f := newFixture(t)
	form := newClientForm(f)
	ctx := context.Background()

	require.NoError(t, form.Open(ctx))
	require.NoError(t, form.SetField("nome", "Eva"))
	require.NoError(t, form.Open(ctx))

	draft, _ := form.Draft()
	assert.Equal(t, "Eva", draft.Name)
}

func TestForm_SubmitClosed(t *testing.T) {
	f := newFixture(t)
	form := newClientForm(f)
	_, err := form.Submit(context.Background())
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestForm_SubmitSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, ana)
	form := newClientForm(f)
	f.server.gate = make(chan struct{})
	f.server.entered = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, form.Open(ctx))
	require.NoError(t, form.SetField("nome", "Dora"))

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(ctx)
		done <- err
	}()
	<-f.server.entered
	cancel()
	close(f.server.gate)

	require.NoError(t, <-done)
	assert.False(t, form.IsOpen())
	assert.Len(t, f.visibleIDs(t), 2)
}
