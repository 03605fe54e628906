// Package domain contains core business types and interfaces.
//
// This file defines the Client domain type: a customer of the farm that
// receives deliveries on a given weekday.
package domain

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// Client Domain Type
// =============================================================================

// Client represents a customer as stored by the remote API.
type Client struct {
	ID       int          `json:"id"`
	Name     string       `json:"nome"`
	Address  string       `json:"endereco"`
	District string       `json:"bairro"`
	Weekday  Weekday      `json:"dia_semana"`
	Status   ClientStatus `json:"status"`
	Notes    string       `json:"observacoes"`
}

// UnmarshalJSON accepts either "id" or "id_cliente" as the identifier.
func (c *Client) UnmarshalJSON(b []byte) error {
	type plain Client
	var aux struct {
		plain
		AltID int `json:"id_cliente"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*c = Client(aux.plain)
	if c.ID == 0 {
		c.ID = aux.AltID
	}
	return nil
}

// Weekday is the delivery day of a client.
type Weekday string

const (
	WeekdayVariable  Weekday = "variavel"
	WeekdayMonday    Weekday = "segunda"
	WeekdayTuesday   Weekday = "terça"
	WeekdayWednesday Weekday = "quarta"
	WeekdayThursday  Weekday = "quinta"
	WeekdayFriday    Weekday = "sexta"
	WeekdaySaturday  Weekday = "sábado"
	WeekdaySunday    Weekday = "domingo"
)

// ClientStatus classifies how often a client buys.
type ClientStatus string

const (
	ClientWeekly      ClientStatus = "semanal"
	ClientProspect    ClientStatus = "potencial"
	ClientFortnightly ClientStatus = "quinzenal"
	ClientOnCall      ClientStatus = "chamar"
	ClientSporadic    ClientStatus = "esporadico"
	ClientTravelling  ClientStatus = "viajando"
)

// WeekdayChoices lists the delivery days in display order.
var WeekdayChoices = []Choice{
	{Value: string(WeekdayVariable), Label: "Variável"},
	{Value: string(WeekdayMonday), Label: "Segunda"},
	{Value: string(WeekdayTuesday), Label: "Terça"},
	{Value: string(WeekdayWednesday), Label: "Quarta"},
	{Value: string(WeekdayThursday), Label: "Quinta"},
	{Value: string(WeekdayFriday), Label: "Sexta"},
	{Value: string(WeekdaySaturday), Label: "Sábado"},
	{Value: string(WeekdaySunday), Label: "Domingo"},
}

// ClientStatusChoices lists the client types in display order.
var ClientStatusChoices = []Choice{
	{Value: string(ClientWeekly), Label: "Semanal"},
	{Value: string(ClientProspect), Label: "Potencial"},
	{Value: string(ClientFortnightly), Label: "Quinzenal"},
	{Value: string(ClientOnCall), Label: "Chamar"},
	{Value: string(ClientSporadic), Label: "Esporádico"},
	{Value: string(ClientTravelling), Label: "Viajando"},
}

// ClientFields is the column order of the clients grid.
var ClientFields = []FieldDef{
	{Name: "nome", Label: "Nome", Type: FieldText, Required: true},
	{Name: "endereco", Label: "Endereço", Type: FieldText},
	{Name: "bairro", Label: "Bairro", Type: FieldText},
	{Name: "dia_semana", Label: "Dia", Type: FieldChoice, Choices: WeekdayChoices},
	{Name: "status", Label: "Tipo", Type: FieldChoice, Choices: ClientStatusChoices},
	{Name: "observacoes", Label: "Observações", Type: FieldText},
}

// ClientPayload is the body sent to create or update a client.
type ClientPayload struct {
	Name     string       `json:"nome"`
	Address  string       `json:"endereco"`
	District string       `json:"bairro"`
	Weekday  Weekday      `json:"dia_semana,omitempty"`
	Status   ClientStatus `json:"status,omitempty"`
	Notes    string       `json:"observacoes"`
}

// Payload returns the gateway body for c.
func (c Client) Payload() ClientPayload {
	return ClientPayload{
		Name:     strings.TrimSpace(c.Name),
		Address:  strings.TrimSpace(c.Address),
		District: strings.TrimSpace(c.District),
		Weekday:  c.Weekday,
		Status:   c.Status,
		Notes:    c.Notes,
	}
}

// Validate checks the required name and enumerated fields.
func (c Client) Validate() error {
	const op = "client.validate"
	v := Violations{}
	if strings.TrimSpace(c.Name) == "" {
		v.Add("nome", "Client name is required")
	}
	if c.Weekday != "" && !ClientFields[3].Allows(string(c.Weekday)) {
		v.Add("dia_semana", "Unknown delivery day")
	}
	if c.Status != "" && !ClientFields[4].Allows(string(c.Status)) {
		v.Add("status", "Unknown client type")
	}
	return v.Err(op)
}
