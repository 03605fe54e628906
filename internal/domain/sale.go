package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// Sale Domain Type
// =============================================================================

// PaymentStatus tracks whether a sale has been paid.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "pago"
	PaymentPending PaymentStatus = "pendente"
)

// PaymentStatusChoices lists the payment states in display order.
var PaymentStatusChoices = []Choice{
	{Value: string(PaymentPaid), Label: "Pago"},
	{Value: string(PaymentPending), Label: "Pendente"},
}

// Unit is the unit of measure of a line item quantity.
type Unit string

const (
	UnitSingle Unit = "unidade"
	UnitDozen  Unit = "Dúzia"
	UnitComb   Unit = "Pente" // 30 eggs
)

// UnitChoices lists the units in display order.
var UnitChoices = []Choice{
	{Value: string(UnitSingle), Label: "Unidade"},
	{Value: string(UnitDozen), Label: "Dúzia"},
	{Value: string(UnitComb), Label: "Pente"},
}

// ValidUnit reports whether u is a known unit.
func ValidUnit(u Unit) bool {
	for _, c := range UnitChoices {
		if c.Value == string(u) {
			return true
		}
	}
	return false
}

// SaleFields is the column order of the sales grid. Client columns edit the
// sale's client, which is saved along with the sale. Item columns are
// aggregates; single items are edited through "itens.N.<field>" inputs.
var SaleFields = []FieldDef{
	{Name: "dataVenda", Label: "Data", Type: FieldDate, Required: true},
	{Name: "cliente.nome", Label: "Cliente", Type: FieldText},
	{Name: "cliente.endereco", Label: "Endereço", Type: FieldText},
	{Name: "cliente.bairro", Label: "Bairro", Type: FieldText},
	{Name: "cliente.dia_semana", Label: "Dia da Semana", Type: FieldChoice, Choices: WeekdayChoices},
	{Name: "cliente.status", Label: "Tipo Cliente", Type: FieldChoice, Choices: ClientStatusChoices},
	{Name: "itens", Label: "Produtos", Type: FieldText, ReadOnly: true},
	{Name: "quantidade", Label: "Quantidade", Type: FieldNumber, ReadOnly: true},
	{Name: "unidade", Label: "Grandeza", Type: FieldText, ReadOnly: true},
	{Name: "valorTotal", Label: "Valor", Type: FieldNumber, ReadOnly: true},
	{Name: "statusPagamento", Label: "Status Pagamento", Type: FieldChoice, Choices: PaymentStatusChoices, Required: true},
	{Name: "dataPagamento", Label: "Data Pagamento", Type: FieldDate},
	{Name: "observacoes", Label: "Observações", Type: FieldText},
}

// Sale is one delivery to a client, made of one or more line items.
type Sale struct {
	ID            int           `json:"id"`
	ClientID      int           `json:"id_cliente"`
	Client        *Client       `json:"cliente,omitempty"`
	Date          Date          `json:"dataVenda"`
	PaidOn        Date          `json:"dataPagamento"`
	PaymentStatus PaymentStatus `json:"statusPagamento"`
	Notes         string        `json:"observacoes"`
	Items         []LineItem    `json:"itens"`
	ReportedTotal Amount        `json:"valorTotal"`
}

// LineItem is one product within a sale.
type LineItem struct {
	ID          int      `json:"id,omitempty"`
	ProductID   int      `json:"id_produto"`
	Product     *Product `json:"produto,omitempty"`
	ProductName string   `json:"-"` // free text typed before resolution
	Quantity    int      `json:"quantidade"`
	UnitPrice   Amount   `json:"preco_unitario"`
	Unit        Unit     `json:"unidade"`
	LineTotal   Amount   `json:"precoTotal"`
}

// UnmarshalJSON fills the client id from the nested client when absent.
func (s *Sale) UnmarshalJSON(b []byte) error {
	type plain Sale
	var aux plain
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Sale(aux)
	if s.ClientID == 0 && s.Client != nil {
		s.ClientID = s.Client.ID
	}
	return nil
}

// UnmarshalJSON fills the product id and name from the nested product.
func (li *LineItem) UnmarshalJSON(b []byte) error {
	type plain LineItem
	var aux struct {
		plain
		Quantity json.RawMessage `json:"quantidade"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*li = LineItem(aux.plain)
	if len(aux.Quantity) > 0 {
		q, err := parseQuantity(aux.Quantity)
		if err != nil {
			return err
		}
		li.Quantity = q
	}
	if li.Product != nil {
		if li.ProductID == 0 {
			li.ProductID = li.Product.ID
		}
		li.ProductName = li.Product.Name
	}
	return nil
}

func parseQuantity(raw json.RawMessage) (int, error) {
	s := strings.Trim(string(raw), `"`)
	if s == "null" || s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return int(f), nil
}

// Subtotal returns unit price times quantity, or the server line total when
// no unit price is known.
func (li LineItem) Subtotal() Amount {
	if li.UnitPrice == 0 && li.LineTotal != 0 {
		return li.LineTotal
	}
	return li.UnitPrice.Times(li.Quantity)
}

// DisplayName returns the resolved product name, or the typed text.
func (li LineItem) DisplayName() string {
	if li.Product != nil && li.Product.Name != "" {
		return li.Product.Name
	}
	return li.ProductName
}

// Total is the sum of the line item subtotals. A sale without items falls
// back to the total reported by the server.
func (s Sale) Total() Amount {
	if len(s.Items) == 0 {
		return s.ReportedTotal
	}
	var sum Amount
	for _, it := range s.Items {
		sum += it.Subtotal()
	}
	return sum
}

// Quantity is the summed quantity of all items.
func (s Sale) Quantity() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// ProductNames joins the item product names for display.
func (s Sale) ProductNames() string {
	names := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		name := it.DisplayName()
		if name == "" {
			name = "Produto desconhecido"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// Units returns the distinct units used by the items, sorted.
func (s Sale) Units() string {
	seen := map[string]bool{}
	var units []string
	for _, it := range s.Items {
		if it.Unit == "" || seen[string(it.Unit)] {
			continue
		}
		seen[string(it.Unit)] = true
		units = append(units, string(it.Unit))
	}
	sort.Strings(units)
	return strings.Join(units, ", ")
}

// ClientChanged reports whether the client fields editable from the sales
// grid differ between a and b.
func ClientChanged(a, b Client) bool {
	return a.Name != b.Name ||
		a.Address != b.Address ||
		a.District != b.District ||
		a.Weekday != b.Weekday ||
		a.Status != b.Status
}

// ClientOrZero returns the embedded client or an empty one.
func (s Sale) ClientOrZero() Client {
	if s.Client == nil {
		return Client{}
	}
	return *s.Client
}

// =============================================================================
// Payload and validation
// =============================================================================

// SalePayload is the body sent to create or update a sale.
type SalePayload struct {
	ClientID      int               `json:"id_cliente"`
	Date          string            `json:"dataVenda"`
	PaidOn        *string           `json:"dataPagamento,omitempty"`
	Total         float64           `json:"valorTotal"`
	PaymentStatus PaymentStatus     `json:"statusPagamento"`
	Notes         string            `json:"observacoes"`
	Items         []LineItemPayload `json:"itens"`
}

// LineItemPayload is one item of a SalePayload.
type LineItemPayload struct {
	ID        int     `json:"id,omitempty"`
	ProductID int     `json:"id_produto"`
	Quantity  int     `json:"quantidade"`
	UnitPrice float64 `json:"preco_unitario"`
	Unit      Unit    `json:"unidade"`
}

// Payload returns the gateway body for s.
func (s Sale) Payload() SalePayload {
	p := SalePayload{
		ClientID:      s.ClientID,
		Date:          s.Date.ISO(),
		Total:         float64(s.Total()),
		PaymentStatus: s.PaymentStatus,
		Notes:         s.Notes,
		Items:         make([]LineItemPayload, 0, len(s.Items)),
	}
	if !s.PaidOn.IsZero() {
		d := s.PaidOn.ISO()
		p.PaidOn = &d
	}
	for _, it := range s.Items {
		unit := it.Unit
		if unit == "" {
			unit = UnitSingle
		}
		p.Items = append(p.Items, LineItemPayload{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: float64(it.UnitPrice),
			Unit:      unit,
		})
	}
	return p
}

// Validate checks that the sale references a client and at least one
// line item with a resolved product, a positive quantity and a known unit.
func (s Sale) Validate() error {
	const op = "sale.validate"
	v := Violations{}
	if s.ClientID == 0 {
		v.Add("id_cliente", "Select a client")
	}
	if s.Date.IsZero() {
		v.Add("dataVenda", "Sale date is required")
	}
	if s.PaymentStatus != "" && s.PaymentStatus != PaymentPaid && s.PaymentStatus != PaymentPending {
		v.Add("statusPagamento", "Unknown payment status")
	}
	if len(s.Items) == 0 {
		v.Add("itens", "Add at least one product")
	}
	for i, it := range s.Items {
		key := fmt.Sprintf("itens[%d]", i)
		if it.ProductID == 0 {
			v.Add(key+".id_produto", fmt.Sprintf("Item %d: missing product", i+1))
		}
		if it.Quantity <= 0 {
			v.Add(key+".quantidade", fmt.Sprintf("Item %d: quantity must be greater than zero", i+1))
		}
		if it.Unit != "" && !ValidUnit(it.Unit) {
			v.Add(key+".unidade", fmt.Sprintf("Item %d: unknown unit", i+1))
		}
		if it.UnitPrice < 0 {
			v.Add(key+".preco_unitario", fmt.Sprintf("Item %d: price cannot be negative", i+1))
		}
	}
	return v.Err(op)
}
