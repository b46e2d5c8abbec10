// Package negotiatorsdk is a minimal HTTP client for the negotiation
// engine API.
package negotiatorsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal negotiation engine API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, Timeout: 30 * time.Second}
}

// Outcome mirrors the server's OutcomeResponse.
type Outcome struct {
	SellerID string         `json:"seller_id"`
	BundleID string         `json:"bundle_id"`
	Utility  float64        `json:"utility_to_buyer"`
	Issues   map[string]any `json:"issues"`
	Items    []BundleItem   `json:"items"`
}

// BundleItem mirrors the server's BundleItemResponse.
type BundleItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Run mirrors the server's RunResponse.
type Run struct {
	RunID            string    `json:"run_id,omitempty"`
	Demand           string    `json:"demand"`
	Outcomes         []Outcome `json:"outcomes,omitempty"`
	TotalUtility     float64   `json:"total_utility,omitempty"`
	SellersContacted int       `json:"sellers_contacted"`
	UnknownSymbols   []string  `json:"unknown_symbols,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// Bundle mirrors the server's BundleResponse.
type Bundle struct {
	ID         string             `json:"id"`
	Items      []BundleItem       `json:"items"`
	SynergyMin float64            `json:"synergy_min"`
	SynergyMax float64            `json:"synergy_max"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// Catalog mirrors the server's CatalogResponse.
type Catalog struct {
	Sellers map[string][]Bundle `json:"sellers"`
}

// RunEvent mirrors the server's RunEventResponse.
type RunEvent struct {
	SellerID   string `json:"seller_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Detail     string `json:"detail,omitempty"`
}

// RunRecord mirrors the server's RunRecordResponse.
type RunRecord struct {
	RunID            string     `json:"run_id"`
	Demand           string     `json:"demand"`
	StartedAt        string     `json:"started_at"`
	FinishedAt       string     `json:"finished_at"`
	SellersContacted int        `json:"sellers_contacted"`
	OutcomesWon      int        `json:"outcomes_won"`
	Status           string     `json:"status"`
	Error            string     `json:"error,omitempty"`
	Events           []RunEvent `json:"events,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SubmitDemand negotiates a demand vector, e.g. "P1,P1,P3", against the
// seller pool and returns the solver's winning outcome set.
func (c *Client) SubmitDemand(ctx context.Context, demand string) (Run, error) {
	var resp Run
	err := c.do(ctx, http.MethodPost, "v0/demand", map[string]any{"demand": demand}, &resp)
	return resp, err
}

// Catalog lists the bundles every seller currently offers.
func (c *Client) Catalog(ctx context.Context) (Catalog, error) {
	var resp Catalog
	err := c.do(ctx, http.MethodGet, "v0/catalog", nil, &resp)
	return resp, err
}

// ApplyConfig merges a configuration document onto the running
// configuration; the server merges it immediately, not at the start of the
// next run.
func (c *Client) ApplyConfig(ctx context.Context, doc map[string]any) error {
	return c.do(ctx, http.MethodPut, "v0/config", doc, nil)
}

// GetRun looks up a past run's audit record by id.
func (c *Client) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var resp RunRecord
	endpoint := fmt.Sprintf("v0/runs/%s", url.PathEscape(id))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
