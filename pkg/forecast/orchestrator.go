package forecast

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/quantaleaf/demandcast/pkg/cachekey"
	"github.com/quantaleaf/demandcast/pkg/features"
	"github.com/quantaleaf/demandcast/pkg/modelcache"
	"github.com/quantaleaf/demandcast/pkg/models"
)

// OverallItem is the reserved item identifier for a model trained on the
// aggregated demand of a whole request. When a cached model exists under
// this identifier it is preferred over summing per-item forecasts.
const OverallItem = "OVERALL"

// TrainResult is what a trainer hands back for one item.
type TrainResult struct {
	Blob           []byte
	Metrics        modelcache.Metrics
	TrainingPoints int
	FeatureColumns []string
}

// TrainerFunc trains one item's model and returns its serialized blob plus
// bookkeeping for the cache metadata.
type TrainerFunc func(modelType string, history features.Series, horizon int, tuning bool) (TrainResult, error)

// BuiltinTrainer returns a TrainerFunc backed by the model families in
// pkg/models, serializing artifacts with the package codec.
func BuiltinTrainer(recipe features.Recipe) TrainerFunc {
	return func(modelType string, history features.Series, horizon int, tuning bool) (TrainResult, error) {
		artifact, acc, err := models.Train(modelType, history, recipe, tuning)
		if err != nil {
			return TrainResult{}, err
		}
		blob, err := models.Encode(artifact)
		if err != nil {
			return TrainResult{}, err
		}
		return TrainResult{
			Blob:           blob,
			Metrics:        modelcache.Metrics{MAE: acc.MAE, RMSE: acc.RMSE, MAPE: acc.MAPE},
			TrainingPoints: len(history),
			FeatureColumns: recipe.Names(),
		}, nil
	}
}

// BatchResult is the outcome of one orchestrated run.
type BatchResult struct {
	PerItem map[string]Result `json:"per_item"`
	Overall Result            `json:"overall"`
	Cached  []string          `json:"cached"`
	Trained []string          `json:"trained"`
	Failed  map[string]string `json:"failed,omitempty"`

	// TrainSeconds is the wall time spent training missing models, zero when
	// everything was cached.
	TrainSeconds float64 `json:"train_seconds"`
}

// Orchestrator drives a batch forecast: partition items into cached and
// missing, train and persist the missing ones, then forecast every item and
// the overall aggregate. One item failing never fails the batch.
type Orchestrator struct {
	cache  modelcache.Store
	engine *Engine
	logger *slog.Logger
}

// NewOrchestrator wires a cache store and an engine together.
func NewOrchestrator(cache modelcache.Store, engine *Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cache: cache, engine: engine, logger: logger}
}

// Run forecasts every item in histories under the template context. The
// template's ItemID is ignored; per-item contexts are derived from it.
//
// A shared anchor date, the latest last-observed date across all histories,
// keeps forecast calendars aligned so the overall series is a clean
// date-wise sum.
func (o *Orchestrator) Run(template cachekey.Context, histories map[string]features.Series, trainer TrainerFunc) BatchResult {
	items := make([]string, 0, len(histories))
	for item := range histories {
		items = append(items, item)
	}
	sort.Strings(items)

	res := BatchResult{
		PerItem: make(map[string]Result, len(items)),
		Failed:  make(map[string]string),
	}

	cached, missing := o.cache.CachedItems(template, items)
	res.Cached = cached
	o.logger.Info("batch partitioned",
		"items", len(items), "cached", len(cached), "missing", len(missing))

	trainStart := time.Now()
	blobs := make(map[string][]byte, len(items))
	for _, item := range missing {
		tr, err := trainer(template.ModelType, histories[item], template.HorizonDays, template.Tuning)
		if err != nil {
			o.logger.Warn("training failed", "item", item, "error", err)
			res.Failed[item] = fmt.Sprintf("train: %v", err)
			continue
		}
		blobs[item] = tr.Blob
		res.Trained = append(res.Trained, item)

		ctx := template.WithItem(item)
		meta := modelcache.MetadataFor(ctx)
		meta.Metrics = tr.Metrics
		meta.TrainingPoints = tr.TrainingPoints
		meta.FeatureColumns = tr.FeatureColumns
		if _, ok := o.cache.Save(ctx, tr.Blob, meta); !ok {
			// The in-memory blob still serves this run.
			o.logger.Warn("model not persisted", "item", item)
		}
	}

	if len(missing) > 0 {
		res.TrainSeconds = time.Since(trainStart).Seconds()
	}

	anchor := sharedAnchor(histories)

	for _, item := range items {
		if _, failed := res.Failed[item]; failed {
			continue
		}
		blob, ok := blobs[item]
		if !ok {
			loaded, _ := o.cache.Load(o.cache.Key(template.WithItem(item)))
			if loaded == nil {
				res.Failed[item] = "cache: model missing"
				continue
			}
			blob = loaded
		}
		artifact, err := models.Decode(blob)
		if err != nil {
			o.logger.Warn("model decode failed", "item", item, "error", err)
			res.Failed[item] = fmt.Sprintf("decode: %v", err)
			continue
		}
		res.PerItem[item] = o.engine.Forecast(item, artifact, histories[item], template.HorizonDays, anchor)
	}

	res.Overall = o.overall(template, histories, anchor, res.PerItem)
	return res
}

// overall prefers a dedicated aggregate model cached under OverallItem; when
// none exists it falls back to the date-wise sum of the per-item forecasts.
func (o *Orchestrator) overall(template cachekey.Context, histories map[string]features.Series, anchor time.Time, perItem map[string]Result) Result {
	ctx := template.WithItem(OverallItem)
	if o.cache.Exists(ctx) {
		if blob, _ := o.cache.Load(o.cache.Key(ctx)); blob != nil {
			if artifact, err := models.Decode(blob); err == nil {
				o.logger.Info("using dedicated overall model")
				return o.engine.Forecast(OverallItem, artifact, aggregateHistory(histories), template.HorizonDays, anchor)
			} else {
				o.logger.Warn("overall model decode failed, summing items", "error", err)
			}
		}
	}
	return sumResults(template.HorizonDays, anchor, perItem)
}

// sharedAnchor is the latest last-observed date across all histories, after
// daily gap filling. Zero when there is no data at all.
func sharedAnchor(histories map[string]features.Series) time.Time {
	var anchor time.Time
	for _, h := range histories {
		if last := features.FillDaily(h).LastDate(); last.After(anchor) {
			anchor = last
		}
	}
	return anchor
}

// aggregateHistory sums all item series into one date-aligned daily series.
func aggregateHistory(histories map[string]features.Series) features.Series {
	var merged features.Series
	for _, h := range histories {
		merged = append(merged, h...)
	}
	return features.FillDaily(merged)
}

// sumResults outer-joins per-item forecasts on date. An item whose partial
// result ended before a date contributes zero for it; bounds add the same
// way so the sum's interval stays consistent with its parts.
func sumResults(horizon int, anchor time.Time, perItem map[string]Result) Result {
	out := Result{
		Item:   OverallItem,
		Dates:  make([]time.Time, 0, horizon),
		Values: make([]float64, 0, horizon),
		Lower:  make([]float64, 0, horizon),
		Upper:  make([]float64, 0, horizon),
	}
	for step := 1; step <= horizon; step++ {
		date := anchor.AddDate(0, 0, step)
		var v, lo, hi float64
		for _, r := range perItem {
			for i, d := range r.Dates {
				if d.Equal(date) {
					v += r.Values[i]
					lo += r.Lower[i]
					hi += r.Upper[i]
					break
				}
			}
		}
		out.append(date, v, lo, hi)
	}
	for _, r := range perItem {
		if r.Partial {
			out.Partial = true
			break
		}
	}
	return out
}
