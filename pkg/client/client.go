// Package client provides an HTTP client for the demandcast service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quantaleaf/demandcast/pkg/forecast"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
)

// Client talks to a demandcast instance. It is safe for concurrent use by
// multiple goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the service at baseURL, which should include the
// scheme and host (e.g. "http://localhost:8080"). Requests time out after
// 60 seconds; batch forecasts may train models, so the budget is generous.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, 60*time.Second)
}

// NewWithTimeout creates a client with a custom request timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Config identifies one forecast configuration; it is the JSON shape the
// service expects. A nil PlanningAreas or Scenarios list means the filter is
// not in use; an empty non-nil list means in use with nothing selected.
type Config struct {
	Schema        string   `json:"schema,omitempty"`
	Table         string   `json:"table"`
	DateColumn    string   `json:"date_column,omitempty"`
	ItemColumn    string   `json:"item_column,omitempty"`
	QtyColumn     string   `json:"quantity_column,omitempty"`
	ModelType     string   `json:"model_type,omitempty"`
	HorizonDays   int      `json:"horizon_days,omitempty"`
	Tuning        bool     `json:"hyperparameter_tuning,omitempty"`
	// No omitempty here: an empty non-nil list must reach the wire as [],
	// since "in use, nothing selected" and "not in use" are different models.
	PlanningAreas []string `json:"planning_areas"`
	Scenarios     []string `json:"scenarios"`
}

// HistoryPoint is one observed demand value.
type HistoryPoint struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	Quantity float64 `json:"quantity"`
}

// ForecastRequest is the body of POST /v1/forecast.
type ForecastRequest struct {
	Config
	Histories map[string][]HistoryPoint `json:"histories"`
}

// Forecast runs a batch forecast over the inline histories.
func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (*forecast.BatchResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/forecast", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var res forecast.BatchResult
	if err := c.do(httpReq, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CacheInfo reports cache coverage for the items under one configuration.
func (c *Client) CacheInfo(ctx context.Context, cfg Config, items []string) (*modelcache.Info, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("items cannot be empty")
	}

	u, err := url.Parse(c.baseURL + "/v1/cache/info")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.RawQuery = cacheQuery(cfg, items).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var info modelcache.Info
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ClearCache invalidates the cached models for the items under one
// configuration and returns how many entries were removed.
func (c *Client) ClearCache(ctx context.Context, cfg Config, items []string) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("items cannot be empty")
	}

	payload := struct {
		Config
		Items []string `json:"items"`
	}{Config: cfg, Items: items}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/cache", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp map[string]int
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	return resp["cleared"], nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// cacheQuery mirrors the server's query parsing; filter lists are only
// present when in use so the nil-vs-empty distinction survives the URL.
func cacheQuery(cfg Config, items []string) url.Values {
	q := url.Values{}
	q.Set("schema", cfg.Schema)
	q.Set("table", cfg.Table)
	q.Set("date_column", cfg.DateColumn)
	q.Set("item_column", cfg.ItemColumn)
	q.Set("quantity_column", cfg.QtyColumn)
	q.Set("model_type", cfg.ModelType)
	if cfg.HorizonDays > 0 {
		q.Set("horizon_days", strconv.Itoa(cfg.HorizonDays))
	}
	if cfg.Tuning {
		q.Set("hyperparameter_tuning", "true")
	}
	if cfg.PlanningAreas != nil {
		q.Set("planning_areas", strings.Join(cfg.PlanningAreas, ","))
	}
	if cfg.Scenarios != nil {
		q.Set("scenarios", strings.Join(cfg.Scenarios, ","))
	}
	q.Set("items", strings.Join(items, ","))
	return q
}
