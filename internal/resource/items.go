package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/grid"
)

// ItemField splits an input name of the form "itens.N.field". ok is false
// for names that do not address a line item.
func ItemField(name string) (idx int, field string, ok bool, err error) {
	rest, ok := strings.CutPrefix(name, "itens.")
	if !ok {
		return 0, "", false, nil
	}
	n, field, found := strings.Cut(rest, ".")
	idx, convErr := strconv.Atoi(n)
	if !found || convErr != nil || idx < 0 || field == "" {
		return 0, "", true, domain.Invalid("resource.item_field", "Invalid item field")
	}
	return idx, field, true, nil
}

// setItemValue writes quantidade, preco_unitario or unidade of one item.
func setItemValue(op string, idx int, it *domain.LineItem, field, value string) error {
	value = strings.TrimSpace(value)
	key := fmt.Sprintf("itens[%d].%s", idx, field)
	switch field {
	case "quantidade":
		q, err := strconv.Atoi(value)
		if err != nil {
			return domain.NewValidationError(op, key, fmt.Sprintf("Item %d: quantity must be a whole number", idx+1))
		}
		it.Quantity = q
	case "preco_unitario":
		a, err := domain.ParseAmount(value)
		if err != nil {
			return domain.NewValidationError(op, key, fmt.Sprintf("Item %d: %v", idx+1, err))
		}
		it.UnitPrice = a
	case "unidade":
		val, err := parseChoice(domain.FieldDef{Name: "unidade", Choices: domain.UnitChoices, Required: true}, value)
		if err != nil {
			return domain.NewValidationError(op, key, fmt.Sprintf("Item %d: %v", idx+1, err))
		}
		it.Unit = domain.Unit(val)
	default:
		return domain.Invalid(op, fmt.Sprintf("unknown item field %q", field))
	}
	return nil
}

// renameProduct points an item at the product named text. A name that
// matches no product leaves the item unresolved, which fails validation.
func renameProduct(it *domain.LineItem, text string, products []domain.Product) {
	text = strings.TrimSpace(text)
	if it.ProductID != 0 && grid.EqualFold(text, it.DisplayName()) {
		return
	}
	if c, ok := grid.ExactMatch(productCandidates(products), text); ok {
		setProduct(it, findProduct(products, c.ID))
		return
	}
	it.ProductID = 0
	it.Product = nil
	it.ProductName = text
}

func setProduct(it *domain.LineItem, p *domain.Product) {
	if p == nil {
		return
	}
	it.ProductID = p.ID
	it.Product = p
	it.ProductName = p.Name
	it.UnitPrice = p.Price
}
