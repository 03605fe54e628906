package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// ISODate is the wire format for dates exchanged with the gateway.
	ISODate = "2006-01-02"

	// DisplayDate is the format shown in the grid and accepted from forms.
	DisplayDate = "02/01/2006"
)

// printer formats numbers with Brazilian separators (1.234,50).
var printer = message.NewPrinter(language.BrazilianPortuguese)

// =============================================================================
// Date
// =============================================================================

// Date is a calendar date without time of day, stored as midnight UTC.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO dates, display dates (dd/mm/yyyy) and RFC 3339
// timestamps. Timestamps keep the calendar date of their UTC instant.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(ISODate, s); err == nil {
		return Date{t}, nil
	}
	if t, err := time.Parse(DisplayDate, s); err == nil {
		return Date{t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDate(t.UTC()), nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

// ISO returns the date in gateway format, or "" for the zero date.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODate)
}

// Display returns the date as dd/mm/yyyy, or "" for the zero date.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DisplayDate)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether both dates are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.ISO())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// Amount
// =============================================================================

// Amount is a money or price value. The gateway serialises numeric
// columns as strings, so decoding accepts both JSON numbers and strings.
type Amount float64

// ParseAmount accepts "12.5", "12,50" and "R$ 1.234,50".
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "R$"))
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return Amount(f), nil
}

// Display formats the amount as Brazilian currency, e.g. "R$ 1.234,50".
func (a Amount) Display() string {
	return printer.Sprintf("R$ %.2f", float64(a))
}

// Times multiplies the amount by a quantity.
func (a Amount) Times(q int) Amount {
	return Amount(float64(a) * float64(q))
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// FormatCount formats an integer with Brazilian grouping.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
