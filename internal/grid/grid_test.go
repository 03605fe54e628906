package grid

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/fazenda/internal/domain"
)

var (
	ana  = domain.Client{ID: 1, Name: "Ana", District: "Centro", Status: domain.ClientWeekly}
	bia  = domain.Client{ID: 2, Name: "Bia", District: "Lagoa", Status: domain.ClientProspect}
	caio = domain.Client{ID: 3, Name: "Caio", District: "Centro", Status: domain.ClientProspect}
)

// =============================================================================
// Filtering
// =============================================================================

func TestVisible_MatchesFilterFormula(t *testing.T) {
	items := []domain.Client{ana, bia, caio}
	cols := clientColumns()

	tests := []struct {
		name    string
		columns map[int][]string
		search  string
		want    []int
	}{
		{name: "no filter", want: []int{1, 2, 3}},
		{name: "one column one value", columns: map[int][]string{1: {"Centro"}}, want: []int{1, 3}},
		{name: "or within column", columns: map[int][]string{0: {"Ana", "Bia"}}, want: []int{1, 2}},
		{name: "and across columns", columns: map[int][]string{1: {"Centro"}, 2: {"potencial"}}, want: []int{3}},
		{name: "search only", search: "LAGO", want: []int{2}},
		{name: "search and column", columns: map[int][]string{1: {"Centro"}}, search: "ca", want: []int{3}},
		{name: "search across columns", search: "ana centro", want: []int{1}},
		{name: "no match", columns: map[int][]string{0: {"Zé"}}, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter()
			for col, vals := range tt.columns {
				f.SetColumn(col, vals)
			}
			f.SetSearch(tt.search)

			got := Visible(items, cols, f, nil)
			ids := make([]int, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)

			// Same result from the formula evaluated directly.
			var expected []int
			for _, c := range items {
				vals := values(cols, c)
				ok := tt.search == "" || containsFolded(vals[0]+" "+vals[1]+" "+vals[2]+" "+vals[3], Fold(tt.search))
				for col, accepted := range tt.columns {
					in := false
					for _, a := range accepted {
						if vals[col] == a {
							in = true
						}
					}
					ok = ok && in
				}
				if ok {
					expected = append(expected, c.ID)
				}
			}
			if expected == nil {
				expected = []int{}
			}
			assert.Equal(t, expected, ids)
		})
	}
}

func TestVisible_OrderIndependentAndIdempotent(t *testing.T) {
	items := []domain.Client{ana, bia, caio}
	cols := clientColumns()

	a := NewFilter()
	a.SetColumn(1, []string{"Centro"})
	a.SetColumn(2, []string{"potencial", "semanal"})
	a.SetSearch("a")

	b := NewFilter()
	b.SetSearch("a")
	b.SetColumn(2, []string{"semanal", "potencial"})
	b.SetColumn(1, []string{"Centro"})
	b.SetColumn(1, []string{"Centro"})

	assert.Equal(t, Visible(items, cols, a, nil), Visible(items, cols, b, nil))
	assert.Equal(t, Visible(items, cols, a, nil), Visible(Visible(items, cols, a, nil), cols, a, nil))
}

func TestScenario_ColumnFilterAnaBia(t *testing.T) {
	f := newFixture(t, domain.Client{ID: 1, Name: "Ana"}, domain.Client{ID: 2, Name: "Bia"})

	require.NoError(t, f.grid.SetColumnFilter(0, []string{"Ana"}))
	assert.Equal(t, []int{1}, f.visibleIDs(t))

	f.grid.ClearColumnFilter(0)
	assert.Equal(t, []int{1, 2}, f.visibleIDs(t))
}

func TestSetColumnFilter_EmptySetShowsAll(t *testing.T) {
	f := newFixture(t, ana, bia)

	require.NoError(t, f.grid.SetColumnFilter(0, []string{"Ana"}))
	require.NoError(t, f.grid.SetColumnFilter(0, nil))

	assert.Equal(t, []int{1, 2}, f.visibleIDs(t))
	assert.False(t, f.grid.Filter().Active(0))
}

func TestSetColumnFilter_UnknownColumn(t *testing.T) {
	f := newFixture(t, ana)
	err := f.grid.SetColumnFilter(9, []string{"x"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestRows_Scope(t *testing.T) {
	f := newFixture(t, ana, bia, caio)
	f.grid.SetScope(func(c domain.Client) bool { return c.Status == domain.ClientProspect })
	assert.Equal(t, []int{2, 3}, f.visibleIDs(t))

	f.grid.SetScope(nil)
	assert.Equal(t, []int{1, 2, 3}, f.visibleIDs(t))
}

func TestColumnValues(t *testing.T) {
	f := newFixture(t, ana, bia, caio)

	got, err := f.grid.ColumnValues(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Centro", "Lagoa"}, got)

	got, err = f.grid.ColumnValues(context.Background(), 1, "LAG")
	require.NoError(t, err)
	assert.Equal(t, []string{"Lagoa"}, got)
}

// =============================================================================
// Selection
// =============================================================================

func TestRows_ReconcilesSelection(t *testing.T) {
	f := newFixture(t, ana, bia, caio)
	f.grid.ToggleSelect(1, true)
	f.grid.ToggleSelect(2, true)

	require.NoError(t, f.grid.SetColumnFilter(0, []string{"Bia"}))
	_ = f.visibleIDs(t)

	assert.Equal(t, []int{2}, f.grid.Selected())
}

func TestSelectAll(t *testing.T) {
	f := newFixture(t, ana, bia, caio)
	require.NoError(t, f.grid.SetColumnFilter(1, []string{"Centro"}))

	require.NoError(t, f.grid.SelectAll(context.Background(), true))
	assert.Equal(t, []int{1, 3}, f.grid.Selected())

	require.NoError(t, f.grid.SelectAll(context.Background(), false))
	assert.Empty(t, f.grid.Selected())
}

// =============================================================================
// Edit state machine
// =============================================================================

func TestBeginEdit_SecondRowDiscardsFirstBuffer(t *testing.T) {
	f := newFixture(t, ana, bia)
	ctx := context.Background()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "Ana Paula"))
	require.NoError(t, f.grid.BeginEdit(ctx, 2))

	assert.Equal(t, State{Mode: Editing, RowID: 2}, f.grid.State())
	_, ok := f.grid.Buffer(1)
	assert.False(t, ok)
	assert.Empty(t, f.server.callsWithPrefix("update"))

	// Re-entering row 1 starts from the stored entity, not the old buffer.
	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	buf, ok := f.grid.Buffer(1)
	require.True(t, ok)
	assert.Equal(t, "Ana", buf.Name)
}

func TestBeginEdit_UnknownRow(t *testing.T) {
	f := newFixture(t, ana)
	err := f.grid.BeginEdit(context.Background(), 99)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, State{}, f.grid.State())
	_, errs := f.sink.counts()
	assert.Equal(t, 1, errs)
}

func TestCancelEdit(t *testing.T) {
	f := newFixture(t, ana)
	require.NoError(t, f.grid.BeginEdit(context.Background(), 1))
	require.NoError(t, f.grid.SetField(1, "nome", "X"))

	f.grid.CancelEdit(1)
	assert.Equal(t, State{}, f.grid.State())

	rows, err := f.grid.Rows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", rows[0].Values[0])
	assert.False(t, rows[0].Editing)
}

func TestSetField_ReadOnlyAndInvalid(t *testing.T) {
	f := newFixture(t, ana)
	require.NoError(t, f.grid.BeginEdit(context.Background(), 1))

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(f.grid.SetField(1, "id", "7")))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(f.grid.SetField(1, "status", "vip")))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(f.grid.SetField(2, "nome", "x")))

	buf, _ := f.grid.Buffer(1)
	assert.Equal(t, domain.ClientWeekly, buf.Status)
}

func TestRows_ShowsEditBuffer(t *testing.T) {
	f := newFixture(t, ana, bia)
	require.NoError(t, f.grid.BeginEdit(context.Background(), 2))
	require.NoError(t, f.grid.SetField(2, "nome", "Beatriz"))

	rows, err := f.grid.Rows(context.Background())
	require.NoError(t, err)
	assert.False(t, rows[0].Editing)
	assert.True(t, rows[1].Editing)
	assert.Equal(t, "Bia", rows[1].Values[0])
	assert.Equal(t, "Beatriz", rows[1].Edit[0])
}

func TestCommitEdit_MissingRequiredFieldNeverCallsGateway(t *testing.T) {
	f := newFixture(t, ana)
	ctx := context.Background()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "   "))

	err := f.grid.CommitEdit(ctx, 1)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("nome"))

	assert.Empty(t, f.server.callsWithPrefix("update"))
	assert.Equal(t, State{Mode: Editing, RowID: 1}, f.grid.State())
	successes, errs := f.sink.counts()
	assert.Zero(t, successes)
	assert.Equal(t, 1, errs)
}

func TestScenario_SuccessfulEdit(t *testing.T) {
	f := newFixture(t, ana, bia)
	ctx := context.Background()
	_ = f.visibleIDs(t)
	listsBefore := f.server.listCount()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "Ana Paula"))
	require.NoError(t, f.grid.CommitEdit(ctx, 1))

	assert.Equal(t, State{}, f.grid.State())
	assert.Equal(t, listsBefore+1, f.server.listCount(), "cache must be invalidated and refetched")
	assert.Equal(t, []string{"update 1"}, f.server.callsWithPrefix("update"))

	successes, errs := f.sink.counts()
	assert.Equal(t, 1, successes)
	assert.Zero(t, errs)

	rows, err := f.grid.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ana Paula", rows[0].Values[0])
}

func TestCommitEdit_GatewayFailureKeepsBuffer(t *testing.T) {
	f := newFixture(t, ana)
	f.server.failUpdate = errDown
	ctx := context.Background()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "Ana Paula"))

	err := f.grid.CommitEdit(ctx, 1)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	assert.Equal(t, State{Mode: Editing, RowID: 1}, f.grid.State())
	buf, ok := f.grid.Buffer(1)
	require.True(t, ok)
	assert.Equal(t, "Ana Paula", buf.Name)

	successes, errs := f.sink.counts()
	assert.Zero(t, successes)
	assert.Equal(t, 1, errs)
}

func TestCommitEdit_DoubleSubmitIsBusy(t *testing.T) {
	f := newFixture(t, ana)
	f.server.gate = make(chan struct{})
	f.server.entered = make(chan struct{}, 1)
	ctx := context.Background()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "Ana Paula"))

	done := make(chan error, 1)
	go func() { done <- f.grid.CommitEdit(ctx, 1) }()

	select {
	case <-f.server.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first commit never reached the gateway")
	}

	err := f.grid.CommitEdit(ctx, 1)
	assert.Equal(t, domain.EBUSY, domain.ErrorCode(err))

	close(f.server.gate)
	require.NoError(t, <-done)
	assert.Len(t, f.server.callsWithPrefix("update"), 1)
}

func TestClose_LateResponseIgnored(t *testing.T) {
	f := newFixture(t, ana)
	f.server.gate = make(chan struct{})
	f.server.entered = make(chan struct{}, 1)
	ctx := context.Background()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	done := make(chan error, 1)
	go func() { done <- f.grid.CommitEdit(ctx, 1) }()
	<-f.server.entered

	f.grid.Close()
	close(f.server.gate)
	require.NoError(t, <-done)

	successes, errs := f.sink.counts()
	assert.Zero(t, successes)
	assert.Zero(t, errs)
	assert.Equal(t, State{Mode: Editing, RowID: 1}, f.grid.State())
}

func TestCommitEdit_SurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, ana)
	f.server.gate = make(chan struct{})
	f.server.entered = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.grid.BeginEdit(ctx, 1))
	require.NoError(t, f.grid.SetField(1, "nome", "Ana Paula"))

	done := make(chan error, 1)
	go func() { done <- f.grid.CommitEdit(ctx, 1) }()
	<-f.server.entered
	cancel()
	close(f.server.gate)

	require.NoError(t, <-done)
	assert.Equal(t, State{}, f.grid.State())

	cached, ok := f.store.Peek()
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, "Ana Paula", cached[0].Name)
}
