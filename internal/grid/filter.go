package grid

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Filter is the per-column accepted-value sets plus the global search text.
// A row is visible iff it contains the search text and, for every column
// with a non-empty set, its value is in that set.
type Filter struct {
	columns map[int]map[string]bool
	search  string
}

// NewFilter returns a filter that accepts every row.
func NewFilter() Filter {
	return Filter{columns: make(map[int]map[string]bool)}
}

// SetColumn replaces the accepted values of column col. An empty list
// removes the column's filter.
func (f *Filter) SetColumn(col int, accepted []string) {
	if len(accepted) == 0 {
		delete(f.columns, col)
		return
	}
	set := make(map[string]bool, len(accepted))
	for _, v := range accepted {
		set[v] = true
	}
	f.columns[col] = set
}

// ClearColumn removes the filter of column col.
func (f *Filter) ClearColumn(col int) {
	delete(f.columns, col)
}

// SetSearch replaces the global search text.
func (f *Filter) SetSearch(text string) {
	f.search = strings.TrimSpace(text)
}

// Search returns the global search text.
func (f Filter) Search() string {
	return f.search
}

// Column returns the accepted values of column col, sorted.
func (f Filter) Column(col int) []string {
	set := f.columns[col]
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Active reports whether column col has a filter.
func (f Filter) Active(col int) bool {
	return len(f.columns[col]) > 0
}

// Empty reports whether the filter accepts every row.
func (f Filter) Empty() bool {
	return f.search == "" && len(f.columns) == 0
}

// Matches reports whether a row with the given column values is visible.
func (f Filter) Matches(values []string) bool {
	if f.search != "" && !containsFolded(strings.Join(values, " "), Fold(f.search)) {
		return false
	}
	for col, set := range f.columns {
		if len(set) == 0 {
			continue
		}
		if col < 0 || col >= len(values) || !set[values[col]] {
			return false
		}
	}
	return true
}

func (f Filter) clone() Filter {
	out := Filter{columns: make(map[int]map[string]bool, len(f.columns)), search: f.search}
	for col, set := range f.columns {
		out.columns[col] = set
	}
	return out
}

// Visible returns the items accepted by scope and f, in list order.
func Visible[T any](items []T, cols []Column[T], f Filter, scope func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if scope != nil && !scope(item) {
			continue
		}
		if f.Matches(values(cols, item)) {
			out = append(out, item)
		}
	}
	return out
}

// Fold normalizes s for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// EqualFold reports whether a and b are equal ignoring case.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// containsFolded reports whether haystack contains an already folded needle.
func containsFolded(haystack, needle string) bool {
	return strings.Contains(cases.Fold().String(norm.NFC.String(haystack)), needle)
}
