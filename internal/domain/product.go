package domain

import (
	"encoding/json"
	"strings"
)

// ProductType groups products for reporting.
type ProductType string

const (
	ProductEggs  ProductType = "ovos"
	ProductHoney ProductType = "mel"
	ProductOther ProductType = "outro"
)

// DefaultProductName is the product preselected on a new sale line item.
const DefaultProductName = "ovos"

// ProductTypeChoices lists the product types in display order.
var ProductTypeChoices = []Choice{
	{Value: string(ProductEggs), Label: "Ovos"},
	{Value: string(ProductHoney), Label: "Mel"},
	{Value: string(ProductOther), Label: "Outro"},
}

// Product is an item the farm sells.
type Product struct {
	ID    int         `json:"id"`
	Name  string      `json:"nomeProduto"`
	Type  ProductType `json:"tipoProduto"`
	Price Amount      `json:"preco"`
}

// UnmarshalJSON accepts either "id" or "id_produto" as the identifier.
func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	var aux struct {
		plain
		AltID int `json:"id_produto"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Product(aux.plain)
	if p.ID == 0 {
		p.ID = aux.AltID
	}
	return nil
}

// ProductFields is the column order of the products grid.
var ProductFields = []FieldDef{
	{Name: "nomeProduto", Label: "Produto", Type: FieldText, Required: true},
	{Name: "tipoProduto", Label: "Tipo", Type: FieldChoice, Choices: ProductTypeChoices},
	{Name: "preco", Label: "Preço", Type: FieldNumber},
}

// ProductPayload is the body sent to create or update a product.
type ProductPayload struct {
	Name  string      `json:"nomeProduto"`
	Type  ProductType `json:"tipoProduto"`
	Price float64     `json:"preco"`
}

// Payload returns the gateway body for p.
func (p Product) Payload() ProductPayload {
	t := p.Type
	if t == "" {
		t = ProductOther
	}
	return ProductPayload{
		Name:  strings.TrimSpace(p.Name),
		Type:  t,
		Price: float64(p.Price),
	}
}

// Validate checks the name, type and price of a product.
func (p Product) Validate() error {
	const op = "product.validate"
	v := Violations{}
	if strings.TrimSpace(p.Name) == "" {
		v.Add("nomeProduto", "Product name is required")
	}
	if p.Type != "" && !ProductFields[1].Allows(string(p.Type)) {
		v.Add("tipoProduto", "Unknown product type")
	}
	if p.Price < 0 {
		v.Add("preco", "Price cannot be negative")
	}
	return v.Err(op)
}
