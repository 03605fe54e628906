package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DukeRupert/fazenda/internal/domain"
)

// Resource is one REST collection of the remote API.
type Resource[T any] struct {
	client *Client
	name   string // metric and log label, e.g. "clients"
	path   string // URL segment, e.g. "cliente"
}

// NewResource binds a collection path to a client.
func NewResource[T any](c *Client, name, path string) *Resource[T] {
	return &Resource[T]{client: c, name: name, path: path}
}

// Name returns the resource name used as cache key.
func (r *Resource[T]) Name() string {
	return r.name
}

// List fetches the whole collection.
func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	var raw json.RawMessage
	if err := r.client.do(ctx, r.name, http.MethodGet, r.path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw, "gateway."+r.name+".get")
}

// Create posts a new entity. An empty response yields the zero T.
func (r *Resource[T]) Create(ctx context.Context, payload any) (T, error) {
	var out T
	err := r.client.do(ctx, r.name, http.MethodPost, r.path, nil, payload, &out)
	return out, err
}

// Update patches the entity with the given id.
func (r *Resource[T]) Update(ctx context.Context, id int, payload any) (T, error) {
	var out T
	err := r.client.do(ctx, r.name, http.MethodPatch, r.itemPath(id), nil, payload, &out)
	return out, err
}

// Delete removes the entity with the given id.
func (r *Resource[T]) Delete(ctx context.Context, id int) error {
	return r.client.do(ctx, r.name, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

func (r *Resource[T]) itemPath(id int) string {
	return r.path + "/" + strconv.Itoa(id)
}

// decodeList accepts a bare JSON array or an object wrapping it in "data".
func decodeList[T any](raw json.RawMessage, op string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}
	if raw[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, domain.Internal(err, op, "unexpected response from server")
		}
		raw = wrapped.Data
		if len(raw) == 0 {
			return []T{}, nil
		}
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, domain.Internal(err, op, "unexpected response from server")
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// =============================================================================
// Sales
// =============================================================================

// SalesResource adds the sales-only endpoints to the generic resource.
type SalesResource struct {
	*Resource[domain.Sale]
}

// WeekResult is the outcome of generating a week of sales.
type WeekResult struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
}

// CreateWeek asks the server to generate the week's sales for the regular
// clients, starting at start.
func (s *SalesResource) CreateWeek(ctx context.Context, start time.Time) (WeekResult, error) {
	var out WeekResult
	q := url.Values{"startDate": {start.Format(domain.ISODate)}}
	err := s.client.do(ctx, s.name, http.MethodPost, s.path+"/criar-semana", q, nil, &out)
	return out, err
}
