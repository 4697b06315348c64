// Package router configures HTTP routes for the demandcast service.
//
// Routes configured:
//   - POST /v1/forecast - Run a batch forecast over inline demand histories
//   - GET /v1/cache/info - Cache coverage for a configuration and item list
//   - DELETE /v1/cache - Invalidate cached models for a configuration
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// The forecast endpoint carries the demand history inline; the service never
// talks to the source database itself. Planning-area and scenario filters
// are tri-state: an absent or null list means the filter is not in use, an
// empty list means it is in use with nothing selected, and the two address
// different cached models.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantaleaf/demandcast/cmd/demandcast/metrics"
	"github.com/quantaleaf/demandcast/pkg/cachekey"
	"github.com/quantaleaf/demandcast/pkg/features"
	"github.com/quantaleaf/demandcast/pkg/forecast"
	"github.com/quantaleaf/demandcast/pkg/httpx"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
	"github.com/quantaleaf/demandcast/pkg/models"
)

const dateLayout = "2006-01-02"

// Defaults fill request fields the caller may omit.
type Defaults struct {
	ModelType   string
	HorizonDays int
}

// SetupRoutes configures HTTP endpoints for the service. The health check
// is optional; nil means plain liveness.
func SetupRoutes(store modelcache.Store, orch *forecast.Orchestrator, m *metrics.Metrics, defaults Defaults, healthCheck func() error, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	if healthCheck != nil {
		mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(healthCheck))
	} else {
		mux.Handle("GET /healthz", httpx.HealthHandler())
	}

	mux.HandleFunc("POST /v1/forecast", handleForecast(store, orch, m, defaults, logger))
	mux.HandleFunc("GET /v1/cache/info", handleCacheInfo(store, defaults))
	mux.HandleFunc("DELETE /v1/cache", handleCacheClear(store, m, defaults, logger))

	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// contextRequest is the configuration half of every request body.
type contextRequest struct {
	Schema        string   `json:"schema"`
	Table         string   `json:"table"`
	DateColumn    string   `json:"date_column"`
	ItemColumn    string   `json:"item_column"`
	QtyColumn     string   `json:"quantity_column"`
	ModelType     string   `json:"model_type"`
	HorizonDays   int      `json:"horizon_days"`
	Tuning        bool     `json:"hyperparameter_tuning"`
	PlanningAreas []string `json:"planning_areas"`
	Scenarios     []string `json:"scenarios"`
}

// toContext builds the cache-key context, filling omitted model type and
// horizon from the service defaults. Absent filter lists decode to nil
// slices, which Dimension treats as "filter not in use".
func (cr contextRequest) toContext(defaults Defaults) cachekey.Context {
	modelType := cr.ModelType
	if modelType == "" {
		modelType = defaults.ModelType
	}
	horizon := cr.HorizonDays
	if horizon <= 0 {
		horizon = defaults.HorizonDays
	}
	return cachekey.Context{
		Schema:      cr.Schema,
		Table:       cr.Table,
		DateCol:     cr.DateColumn,
		ItemCol:     cr.ItemColumn,
		QtyCol:      cr.QtyColumn,
		ModelType:   modelType,
		HorizonDays: horizon,
		Tuning:      cr.Tuning,
		Dimensions: []cachekey.Dimension{
			cachekey.PlanningAreas(cr.PlanningAreas),
			cachekey.Scenarios(cr.Scenarios),
		},
	}
}

func (cr contextRequest) validate() error {
	if cr.Table == "" {
		return fmt.Errorf("table is required")
	}
	return nil
}

type historyPoint struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
}

type forecastRequest struct {
	contextRequest
	Histories map[string][]historyPoint `json:"histories"`
}

func handleForecast(store modelcache.Store, orch *forecast.Orchestrator, m *metrics.Metrics, defaults Defaults, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req forecastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := req.validate(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if len(req.Histories) == 0 {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "histories must contain at least one item")
			return
		}

		template := req.toContext(defaults)
		if !models.KnownType(template.ModelType) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown model type %q", template.ModelType))
			return
		}

		histories := make(map[string]features.Series, len(req.Histories))
		for item, points := range req.Histories {
			series := make(features.Series, 0, len(points))
			for _, p := range points {
				date, err := time.Parse(dateLayout, p.Date)
				if err != nil {
					httpx.WriteErrorMessage(w, http.StatusBadRequest,
						fmt.Sprintf("item %q: bad date %q (want YYYY-MM-DD)", item, p.Date))
					return
				}
				series = append(series, features.Point{Date: date, Value: p.Quantity})
			}
			histories[item] = series
		}

		res := orch.Run(template, histories, forecast.BuiltinTrainer(features.DefaultRecipe()))

		m.RecordBatch(len(res.Cached), len(histories)-len(res.Cached), len(res.Failed))
		if len(res.Trained) > 0 {
			m.ObserveTrain(template.ModelType, res.TrainSeconds)
		}
		m.ObserveRequest(time.Since(start).Seconds())
		m.SetCacheEntries(len(store.Entries()))

		logger.Info("forecast request served",
			"items", len(histories),
			"cached", len(res.Cached),
			"trained", len(res.Trained),
			"failed", len(res.Failed),
			"duration_ms", time.Since(start).Milliseconds())

		httpx.WriteJSON(w, http.StatusOK, res)
	}
}

// queryContext builds a context from URL query parameters. A filter
// parameter that is absent stays nil; present but empty means "in use,
// nothing selected".
func queryContext(r *http.Request, defaults Defaults) cachekey.Context {
	q := r.URL.Query()
	horizon, _ := strconv.Atoi(q.Get("horizon_days"))
	tuning, _ := strconv.ParseBool(q.Get("hyperparameter_tuning"))
	return contextRequest{
		Schema:        q.Get("schema"),
		Table:         q.Get("table"),
		DateColumn:    q.Get("date_column"),
		ItemColumn:    q.Get("item_column"),
		QtyColumn:     q.Get("quantity_column"),
		ModelType:     q.Get("model_type"),
		HorizonDays:   horizon,
		Tuning:        tuning,
		PlanningAreas: queryList(r, "planning_areas"),
		Scenarios:     queryList(r, "scenarios"),
	}.toContext(defaults)
}

func queryList(r *http.Request, name string) []string {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(q.Get(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func handleCacheInfo(store modelcache.Store, defaults Defaults) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items := queryList(r, "items")
		if len(items) == 0 {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "items parameter required")
			return
		}
		template := queryContext(r, defaults)
		if template.Table == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "table parameter required")
			return
		}

		httpx.WriteJSON(w, http.StatusOK, store.Info(template, items))
	}
}

type clearRequest struct {
	contextRequest
	Items []string `json:"items"`
}

func handleCacheClear(store modelcache.Store, m *metrics.Metrics, defaults Defaults, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clearRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if err := req.validate(); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if len(req.Items) == 0 {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "items must contain at least one entry")
			return
		}

		template := req.toContext(defaults)
		cleared := store.ClearConfig(template, req.Items)
		m.SetCacheEntries(len(store.Entries()))

		logger.Info("cache cleared", "table", template.Table, "requested", len(req.Items), "cleared", cleared)

		httpx.WriteJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
	}
}
