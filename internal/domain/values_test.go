package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2025-03-10", want: "2025-03-10"},
		{in: "10/03/2025", want: "2025-03-10"},
		{in: "2025-03-10T03:00:00.000Z", want: "2025-03-10"},
		{in: "2025-03-10T23:30:00-03:00", want: "2025-03-11"},
		{in: "", want: ""},
		{in: "amanhã", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ISO())
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{in: "12.5", want: 12.5},
		{in: "12,50", want: 12.5},
		{in: "R$ 1.234,50", want: 1234.5},
		{in: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(got), 0.0001)
		})
	}

	_, err := ParseAmount("abc")
	assert.Error(t, err)
}

func TestAmountUnmarshal(t *testing.T) {
	var v struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
		C Amount `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "2.25", "c": null}`), &v))
	assert.InDelta(t, 1.5, float64(v.A), 0.0001)
	assert.InDelta(t, 2.25, float64(v.B), 0.0001)
	assert.Zero(t, v.C)
}

func TestAmountDisplay(t *testing.T) {
	assert.Equal(t, "R$ 1.234,50", Amount(1234.5).Display())
	assert.Equal(t, "R$ 0,00", Amount(0).Display())
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: mustDate(t, "2025-01-02")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2025-01-02","z":null}`, string(b))
}

func TestClientUnmarshalAltID(t *testing.T) {
	var c Client
	require.NoError(t, json.Unmarshal([]byte(`{"id_cliente": 4, "nome": "Bia", "status": "semanal"}`), &c))
	assert.Equal(t, 4, c.ID)
	assert.Equal(t, ClientWeekly, c.Status)

	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id": 2, "nomeProduto": "mel", "preco": "20.00"}`), &p))
	assert.Equal(t, 2, p.ID)
	assert.InDelta(t, 20.0, float64(p.Price), 0.0001)
}

func TestClientValidate(t *testing.T) {
	assert.NoError(t, Client{Name: "Ana", Weekday: WeekdayMonday, Status: ClientWeekly}.Validate())

	err := Client{Name: " ", Status: "vip"}.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("nome"))
	assert.True(t, ve.Has("status"))
}

func TestProductValidate(t *testing.T) {
	assert.NoError(t, Product{Name: "ovos", Type: ProductEggs, Price: 15}.Validate())

	err := Product{Name: "mel", Price: -1}.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("preco"))
	assert.Equal(t, ProductOther, Product{Name: "x"}.Payload().Type)
}

func TestViolations(t *testing.T) {
	v := Violations{}
	assert.NoError(t, v.Err("op"))

	v.Add("nome", "first")
	v.Add("nome", "second")
	err := v.Err("client.validate")
	require.Error(t, err)
	assert.Equal(t, "first", ErrorMessage(err))
	assert.Equal(t, EINVALID, ErrorCode(err))
}
