package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantaleaf/demandcast/cmd/demandcast/metrics"
	"github.com/quantaleaf/demandcast/pkg/features"
	"github.com/quantaleaf/demandcast/pkg/forecast"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
)

// Shared metrics instance for all tests to avoid duplicate registration
var testMetrics = metrics.New()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMux(t *testing.T) *http.ServeMux {
	t.Helper()
	store, err := modelcache.NewDiskStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	engine := forecast.NewEngine(features.DefaultRecipe(), testLogger())
	orch := forecast.NewOrchestrator(store, engine, testLogger())
	defaults := Defaults{ModelType: "ridge", HorizonDays: 30}
	return SetupRoutes(store, orch, testMetrics, defaults, nil, testLogger())
}

func testRequestBody(items ...string) forecastRequest {
	req := forecastRequest{
		contextRequest: contextRequest{
			Schema:      "dbo",
			Table:       "order_lines",
			DateColumn:  "order_date",
			ItemColumn:  "sku",
			QtyColumn:   "quantity",
			ModelType:   "smoothing",
			HorizonDays: 5,
		},
		Histories: make(map[string][]historyPoint),
	}
	for _, item := range items {
		points := make([]historyPoint, 40)
		for i := range points {
			points[i] = historyPoint{
				Date:     fmt.Sprintf("2025-01-%02d", i%31+1),
				Quantity: 5,
			}
		}
		// Spread the tail past January so dates stay unique.
		for i := 31; i < 40; i++ {
			points[i].Date = fmt.Sprintf("2025-02-%02d", i-30)
		}
		req.Histories[item] = points
	}
	return req
}

func postForecast(t *testing.T, mux *http.ServeMux, req forecastRequest) (*httptest.ResponseRecorder, forecast.BatchResult) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/forecast", bytes.NewReader(body)))

	var res forecast.BatchResult
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
	}
	return w, res
}

func TestForecastEndpoint(t *testing.T) {
	mux := testMux(t)

	w, res := postForecast(t, mux, testRequestBody("SKU-1", "SKU-2"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(res.PerItem) != 2 {
		t.Fatalf("got %d per-item results, want 2", len(res.PerItem))
	}
	if len(res.Trained) != 2 || len(res.Cached) != 0 {
		t.Errorf("first call: trained %v cached %v, want 2 trained", res.Trained, res.Cached)
	}
	for item, r := range res.PerItem {
		if len(r.Values) != 5 {
			t.Errorf("%s: %d values, want 5", item, len(r.Values))
		}
	}
	if len(res.Overall.Values) != 5 {
		t.Errorf("overall has %d values, want 5", len(res.Overall.Values))
	}

	// Second identical request is served from the cache.
	w, res = postForecast(t, mux, testRequestBody("SKU-1", "SKU-2"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(res.Cached) != 2 || len(res.Trained) != 0 {
		t.Errorf("second call: trained %v cached %v, want 2 cached", res.Trained, res.Cached)
	}
}

func TestForecastEndpointValidation(t *testing.T) {
	mux := testMux(t)

	tests := []struct {
		name   string
		mutate func(*forecastRequest)
	}{
		{"missing table", func(r *forecastRequest) { r.Table = "" }},
		{"unknown model", func(r *forecastRequest) { r.ModelType = "oracle" }},
		{"no histories", func(r *forecastRequest) { r.Histories = nil }},
		{"bad date", func(r *forecastRequest) {
			r.Histories["SKU-1"][0].Date = "01/15/2025"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequestBody("SKU-1")
			tt.mutate(&req)
			w, _ := postForecast(t, mux, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/forecast", bytes.NewReader([]byte("{"))))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestCacheInfoEndpoint(t *testing.T) {
	mux := testMux(t)

	if w, _ := postForecast(t, mux, testRequestBody("SKU-1", "SKU-2")); w.Code != http.StatusOK {
		t.Fatalf("seed forecast failed: %d", w.Code)
	}

	url := "/v1/cache/info?schema=dbo&table=order_lines&date_column=order_date" +
		"&item_column=sku&quantity_column=quantity&model_type=smoothing&horizon_days=5" +
		"&items=SKU-1,SKU-2,SKU-9"
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var info modelcache.Info
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.CachedCount != 2 || info.MissingCount != 1 {
		t.Errorf("cached %d missing %d, want 2 and 1", info.CachedCount, info.MissingCount)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/cache/info?table=order_lines", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing items: status = %d, want 400", w.Code)
	}
}

func TestCacheClearEndpoint(t *testing.T) {
	mux := testMux(t)

	seed := testRequestBody("SKU-1", "SKU-2")
	if w, _ := postForecast(t, mux, seed); w.Code != http.StatusOK {
		t.Fatalf("seed forecast failed: %d", w.Code)
	}

	clear := clearRequest{contextRequest: seed.contextRequest, Items: []string{"SKU-1", "SKU-2"}}
	body, _ := json.Marshal(clear)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/cache", bytes.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["cleared"] != 2 {
		t.Errorf("cleared = %d, want 2", resp["cleared"])
	}

	// Everything gone: an identical forecast request must retrain.
	_, res := postForecast(t, mux, seed)
	if len(res.Trained) != 2 {
		t.Errorf("after clear: trained %v, want both items retrained", res.Trained)
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := testMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("got %d %q, want 200 OK", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := testMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
