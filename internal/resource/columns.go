// Package resource binds the clients, products and sales entities to the
// generic grid: columns, validators, defaults and reference resolution.
package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
)

// parseChoice accepts a choice value or its label, ignoring case.
func parseChoice(f domain.FieldDef, in string) (string, error) {
	in = strings.TrimSpace(in)
	if in == "" && !f.Required {
		return "", nil
	}
	for _, c := range f.Choices {
		if c.Value == in || grid.EqualFold(c.Value, in) || grid.EqualFold(c.Label, in) {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("unknown value %q", in)
}

// =============================================================================
// Clients
// =============================================================================

// ClientColumns returns the clients grid columns.
func ClientColumns() []grid.Column[domain.Client] {
	f := domain.ClientFields
	return []grid.Column[domain.Client]{
		{
			Field: f[0],
			Value: func(c domain.Client) string { return c.Name },
			Set: func(c *domain.Client, v string) error {
				c.Name = strings.TrimSpace(v)
				return nil
			},
		},
		{
			Field: f[1],
			Value: func(c domain.Client) string { return c.Address },
			Set: func(c *domain.Client, v string) error {
				c.Address = strings.TrimSpace(v)
				return nil
			},
		},
		{
			Field: f[2],
			Value: func(c domain.Client) string { return c.District },
			Set: func(c *domain.Client, v string) error {
				c.District = strings.TrimSpace(v)
				return nil
			},
		},
		{
			Field: f[3],
			Value: func(c domain.Client) string { return f[3].ChoiceLabel(string(c.Weekday)) },
			Set: func(c *domain.Client, v string) error {
				val, err := parseChoice(f[3], v)
				if err != nil {
					return err
				}
				c.Weekday = domain.Weekday(val)
				return nil
			},
		},
		{
			Field: f[4],
			Value: func(c domain.Client) string { return f[4].ChoiceLabel(string(c.Status)) },
			Set: func(c *domain.Client, v string) error {
				val, err := parseChoice(f[4], v)
				if err != nil {
					return err
				}
				c.Status = domain.ClientStatus(val)
				return nil
			},
		},
		{
			Field: f[5],
			Value: func(c domain.Client) string { return c.Notes },
			Set: func(c *domain.Client, v string) error {
				c.Notes = v
				return nil
			},
		},
	}
}

// =============================================================================
// Products
// =============================================================================

// ProductColumns returns the products grid columns.
func ProductColumns() []grid.Column[domain.Product] {
	f := domain.ProductFields
	return []grid.Column[domain.Product]{
		{
			Field: f[0],
			Value: func(p domain.Product) string { return p.Name },
			Set: func(p *domain.Product, v string) error {
				p.Name = strings.TrimSpace(v)
				return nil
			},
		},
		{
			Field: f[1],
			Value: func(p domain.Product) string { return f[1].ChoiceLabel(string(p.Type)) },
			Set: func(p *domain.Product, v string) error {
				val, err := parseChoice(f[1], v)
				if err != nil {
					return err
				}
				p.Type = domain.ProductType(val)
				return nil
			},
		},
		{
			Field: f[2],
			Value: func(p domain.Product) string { return p.Price.Display() },
			Set: func(p *domain.Product, v string) error {
				a, err := domain.ParseAmount(v)
				if err != nil {
					return err
				}
				p.Price = a
				return nil
			},
		},
	}
}

// =============================================================================
// Sales
// =============================================================================

// SaleColumns returns the sales grid columns.
func SaleColumns() []grid.Column[domain.Sale] {
	f := domain.SaleFields
	cc := ClientColumns()
	client := func(s domain.Sale) domain.Client { return s.ClientOrZero() }
	return []grid.Column[domain.Sale]{
		{
			Field: f[0],
			Value: func(s domain.Sale) string { return s.Date.Display() },
			Set: func(s *domain.Sale, v string) error {
				d, err := domain.ParseDate(v)
				if err != nil {
					return err
				}
				if d.IsZero() {
					return fmt.Errorf("date is required")
				}
				s.Date = d
				return nil
			},
		},
		{Field: f[1], Value: func(s domain.Sale) string { return client(s).Name }, Set: setClient(cc[0].Set)},
		{Field: f[2], Value: func(s domain.Sale) string { return client(s).Address }, Set: setClient(cc[1].Set)},
		{Field: f[3], Value: func(s domain.Sale) string { return client(s).District }, Set: setClient(cc[2].Set)},
		{Field: f[4], Value: func(s domain.Sale) string { return f[4].ChoiceLabel(string(client(s).Weekday)) }, Set: setClient(cc[3].Set)},
		{Field: f[5], Value: func(s domain.Sale) string { return f[5].ChoiceLabel(string(client(s).Status)) }, Set: setClient(cc[4].Set)},
		{Field: f[6], Value: func(s domain.Sale) string { return s.ProductNames() }},
		{Field: f[7], Value: func(s domain.Sale) string { return strconv.Itoa(s.Quantity()) }},
		{Field: f[8], Value: func(s domain.Sale) string { return s.Units() }},
		{Field: f[9], Value: func(s domain.Sale) string { return s.Total().Display() }},
		{
			Field: f[10],
			Value: func(s domain.Sale) string { return f[10].ChoiceLabel(string(s.PaymentStatus)) },
			Set: func(s *domain.Sale, v string) error {
				val, err := parseChoice(f[10], v)
				if err != nil {
					return err
				}
				s.PaymentStatus = domain.PaymentStatus(val)
				return nil
			},
		},
		{
			Field: f[11],
			Value: func(s domain.Sale) string { return s.PaidOn.Display() },
			Set: func(s *domain.Sale, v string) error {
				d, err := domain.ParseDate(v)
				if err != nil {
					return err
				}
				s.PaidOn = d
				return nil
			},
		},
		{
			Field: f[12],
			Value: func(s domain.Sale) string { return s.Notes },
			Set: func(s *domain.Sale, v string) error {
				s.Notes = v
				return nil
			},
		},
	}
}

// saleDraftColumns are the sales columns without client inputs; a new sale
// picks its client by name instead.
func saleDraftColumns() []grid.Column[domain.Sale] {
	cols := SaleColumns()
	for i := range cols {
		if strings.HasPrefix(cols[i].Field.Name, "cliente.") {
			cols[i].Set = nil
		}
	}
	return cols
}

// setClient applies a client setter to a copy of the sale's client, so the
// cached sale is never written through.
func setClient(set func(*domain.Client, string) error) func(*domain.Sale, string) error {
	return func(s *domain.Sale, v string) error {
		c := s.ClientOrZero()
		if err := set(&c, v); err != nil {
			return err
		}
		s.Client = &c
		return nil
	}
}

// ColumnIndex returns the position of field among cols, or -1.
func ColumnIndex[T any](cols []grid.Column[T], field string) int {
	for i, c := range cols {
		if c.Field.Name == field {
			return i
		}
	}
	return -1
}
