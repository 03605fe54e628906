package domain

import "time"

// =============================================================================
// Sales window
// =============================================================================

// WindowMode selects how the sales screen limits its rows by date.
type WindowMode string

const (
	WindowDay    WindowMode = "day"
	WindowPeriod WindowMode = "period"
)

// DateWindow is an inclusive range of sale dates. In day mode Start and
// End are the same date.
type DateWindow struct {
	Mode  WindowMode
	Start Date
	End   Date
}

// DayWindow returns a window covering the single date d.
func DayWindow(d Date) DateWindow {
	return DateWindow{Mode: WindowDay, Start: d, End: d}
}

// PeriodWindow returns a window from start to end inclusive. Swapped
// bounds are reordered.
func PeriodWindow(start, end Date) DateWindow {
	if end.Before(start) {
		start, end = end, start
	}
	return DateWindow{Mode: WindowPeriod, Start: start, End: end}
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return NewDate(time.Now().In(loc))
}

// Contains reports whether d falls inside the window. A zero window
// contains every date.
func (w DateWindow) Contains(d Date) bool {
	if w.Start.IsZero() && w.End.IsZero() {
		return true
	}
	if d.IsZero() {
		return false
	}
	return !d.Before(w.Start) && !d.After(w.End)
}

// Shift moves a day window by n days. Period windows move both bounds.
func (w DateWindow) Shift(n int) DateWindow {
	w.Start = w.Start.AddDays(n)
	w.End = w.End.AddDays(n)
	return w
}

// Label renders the window for the screen header.
func (w DateWindow) Label() string {
	if w.Mode == WindowDay || w.Start.Equal(w.End) {
		return w.Start.Display()
	}
	return w.Start.Display() + " a " + w.End.Display()
}

// =============================================================================
// Sales summary
// =============================================================================

// SalesSummary aggregates a list of sales for the sales screen header.
type SalesSummary struct {
	Count      int
	Revenue    Amount // Sum of all totals
	Received   Amount // Sum of paid totals
	Receivable Amount // Sum of pending totals
}

// Summarize reduces sales into a SalesSummary.
func Summarize(sales []Sale) SalesSummary {
	var s SalesSummary
	for _, sale := range sales {
		total := sale.Total()
		s.Count++
		s.Revenue += total
		switch sale.PaymentStatus {
		case PaymentPaid:
			s.Received += total
		case PaymentPending:
			s.Receivable += total
		}
	}
	return s
}
