package sparql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"anitgo/pkg/request"
)

// Binding is one row of a SPARQL result, a map from variable name to value.
type Binding map[string]Value

// Value is a single typed SPARQL result cell.
type Value struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Client executes SPARQL queries against a single endpoint.
//
// A transport failure (retries exhausted, unexpected status) is returned
// as an error; a response that parses to zero bindings is an empty success.
// Callers rely on the distinction to tell "no more pages" from "the
// endpoint is down" — a failed page must never silently end a run.
type Client struct {
	request  *request.Client
	Endpoint string
	logger   *slog.Logger
}

// NewClient creates a new SPARQL client.
func NewClient(r *request.Client, endpoint string, logger *slog.Logger) *Client {
	return &Client{
		request:  r,
		Endpoint: endpoint,
		logger:   logger,
	}
}

// Query executes a SPARQL query and returns the result bindings.
// The query is posted form-encoded with format=json, as the endpoint's
// usage policy prefers for large queries.
func (c *Client) Query(ctx context.Context, query string) ([]Binding, error) {
	form := url.Values{}
	form.Add("query", query)
	form.Add("format", "json")

	headers := map[string]string{
		"Accept": "application/sparql-results+json",
	}

	body, err := c.request.PostForm(ctx, c.Endpoint, form, headers)
	if err != nil {
		c.logger.Error("SPARQL query failed", "error", err, "last_status", c.request.LastStatus())
		return nil, fmt.Errorf("sparql query failed: %w", err)
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	// A valid response with no bindings is an empty page, not an error.
	return result.Results.Bindings, nil
}

// LastStatus returns the most recent HTTP status observed.
func (c *Client) LastStatus() int {
	return c.request.LastStatus()
}

// Val returns the value for a variable, or "" when absent.
func (b Binding) Val(key string) string {
	if v, ok := b[key]; ok {
		return v.Value
	}
	return ""
}

type response struct {
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}
