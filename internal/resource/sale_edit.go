package resource

import (
	"context"
	"fmt"
	"slices"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/metrics"
)

// SetEditField writes one input into the edit buffer of sale id. Besides
// the grid columns it accepts "itens.N.produto", "itens.N.quantidade",
// "itens.N.unidade" and "itens.N.preco_unitario". A product is matched by
// exact name.
func (s *Sales) SetEditField(ctx context.Context, id int, field, value string) error {
	const op = "sales.set_edit_field"

	idx, name, isItem, err := ItemField(field)
	if !isItem {
		return s.Grid.SetField(id, field, value)
	}
	if err != nil {
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}

	var products []domain.Product
	if name == "produto" {
		if products, err = s.backend.Products.List(ctx); err != nil {
			s.sink.Error(domain.ErrorMessage(err))
			return err
		}
	}

	err = s.Update(id, func(sale *domain.Sale) error {
		if idx >= len(sale.Items) {
			return domain.Invalid(op, fmt.Sprintf("Item %d does not exist", idx+1))
		}
		items := slices.Clone(sale.Items)
		if name == "produto" {
			renameProduct(&items[idx], value, products)
		} else if err := setItemValue(op, idx, &items[idx], name, value); err != nil {
			return err
		}
		sale.Items = items
		return nil
	})
	if err != nil {
		s.sink.Error(domain.ErrorMessage(err))
	}
	return err
}

// CommitEdit saves the edit buffer of sale id. When the sale's client was
// edited the client is updated first; if that fails the sale is not sent
// and the row stays in edit mode.
func (s *Sales) CommitEdit(ctx context.Context, id int) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.saveClient(ctx, id); err != nil {
		return err
	}
	return s.Grid.CommitEdit(ctx, id)
}

func (s *Sales) saveClient(ctx context.Context, id int) error {
	const op = "sales.save_client"

	buf, ok := s.Buffer(id)
	if !ok || buf.Client == nil || buf.ClientID == 0 {
		return nil
	}
	sales, err := s.backend.Sales.List(ctx)
	if err != nil {
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}
	i := slices.IndexFunc(sales, func(sale domain.Sale) bool { return sale.ID == id })
	if i < 0 {
		return nil
	}
	before := sales[i].ClientOrZero()
	if !domain.ClientChanged(before, *buf.Client) {
		return nil
	}

	// Both must be valid before anything is written.
	if err := buf.Validate(); err != nil {
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}
	client := before
	client.ID = buf.ClientID
	client.Name = buf.Client.Name
	client.Address = buf.Client.Address
	client.District = buf.Client.District
	client.Weekday = buf.Client.Weekday
	client.Status = buf.Client.Status
	if err := client.Validate(); err != nil {
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}

	_, err = s.backend.ClientAPI.Update(ctx, client.ID, client.Payload())
	metrics.GridMutation("clients", "update", err)
	if err != nil {
		s.logger.Warn("client update failed", "op", op, "sale", id, "client", client.ID, "error", err)
		s.sink.Error(domain.ErrorMessage(err))
		return err
	}
	s.logger.Info("sale client updated", "op", op, "sale", id, "client", client.ID)

	if err := s.backend.Clients.Invalidate(ctx); err != nil {
		s.logger.Warn("reload after client update failed", "error", err)
	}
	return nil
}

// Products returns the cached product list offered to item inputs.
func (s *Sales) Products(ctx context.Context) ([]domain.Product, error) {
	return s.backend.Products.List(ctx)
}
