// Package gateway is the REST client for the remote farm API, the system
// of record for clients, products and sales.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/fazenda/internal/domain"
	"github.com/DukeRupert/fazenda/internal/metrics"
)

const (
	// DefaultTimeout bounds a single request when Config.Timeout is zero.
	DefaultTimeout = 15 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024
)

// Config contains configuration for the API client.
type Config struct {
	BaseURL string        // e.g. https://api.example.com/api
	Token   string        // optional bearer token
	Timeout time.Duration // per-request transport timeout
}

// Client issues JSON requests against the remote API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a new API client.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway base URL must be absolute: %q", config.BaseURL)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL: u,
		token:   config.Token,
		http: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Clients returns the /cliente resource.
func (c *Client) Clients() *Resource[domain.Client] {
	return NewResource[domain.Client](c, "clients", "cliente")
}

// Products returns the /produto resource.
func (c *Client) Products() *Resource[domain.Product] {
	return NewResource[domain.Product](c, "products", "produto")
}

// Sales returns the /vendas resource.
func (c *Client) Sales() *SalesResource {
	return &SalesResource{Resource: NewResource[domain.Sale](c, "sales", "vendas")}
}

// apiError is the error body returned by the remote API.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one request. body is JSON encoded when non-nil; out is decoded
// from the response when non-nil and the response has content.
func (c *Client) do(ctx context.Context, resource, method, path string, query url.Values, body, out any) error {
	op := "gateway." + resource + "." + strings.ToLower(method)

	u := *c.baseURL
	u.Path = u.Path + "/" + strings.TrimLeft(path, "/")
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return domain.Internal(err, op, "failed to encode request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return domain.Internal(err, op, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.GatewayCall(resource, method, 0, time.Since(start))
		c.logger.Warn("gateway request failed",
			"method", method,
			"path", u.Path,
			"error", err,
		)
		if errors.Is(err, context.Canceled) {
			return domain.Wrap(err, domain.EUNAVAILABLE, op, "The request was cancelled.")
		}
		return domain.Unavailable(err, op)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	metrics.GatewayCall(resource, method, resp.StatusCode, duration)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.Unavailable(fmt.Errorf("read response body: %w", err), op)
	}

	c.logger.Debug("gateway request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		mapped := mapHTTPError(op, resp.StatusCode, respBody)
		c.logger.Warn("gateway returned error",
			"method", method,
			"path", u.Path,
			"status", resp.StatusCode,
			"code", domain.ErrorCode(mapped),
		)
		return mapped
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.Internal(err, op, "unexpected response from server")
	}
	return nil
}

// mapHTTPError maps HTTP status codes to domain errors.
func mapHTTPError(op string, statusCode int, body []byte) error {
	var errResp apiError
	_ = json.Unmarshal(body, &errResp)
	detail := errResp.Message
	if detail == "" {
		detail = errResp.Error
	}
	withDetail := func(fallback string) string {
		if detail != "" {
			return detail
		}
		return fallback
	}
	cause := fmt.Errorf("status %d: %s", statusCode, strings.TrimSpace(string(body)))

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return domain.Wrap(cause, domain.EINVALID, op, withDetail("The server rejected the data sent."))
	case statusCode == http.StatusUnauthorized:
		return domain.Wrap(cause, domain.EUNAUTHORIZED, op, "The server rejected the access token.")
	case statusCode == http.StatusForbidden:
		return domain.Wrap(cause, domain.EFORBIDDEN, op, withDetail("You do not have permission to do that."))
	case statusCode == http.StatusNotFound:
		return domain.Wrap(cause, domain.ENOTFOUND, op, withDetail("The record no longer exists. Reload and try again."))
	case statusCode == http.StatusConflict:
		return domain.Wrap(cause, domain.ECONFLICT, op, withDetail("The record conflicts with existing data."))
	case statusCode == http.StatusTooManyRequests:
		return domain.Wrap(cause, domain.ERATELIMIT, op, "Too many requests. Please wait a moment.")
	case statusCode >= 500:
		return domain.Unavailable(cause, op)
	default:
		return domain.Wrap(cause, domain.EINTERNAL, op, withDetail("Unexpected response from server."))
	}
}
