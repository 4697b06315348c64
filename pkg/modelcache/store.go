// Package modelcache persists trained forecasting models keyed by their
// cache-key context, so repeated forecast requests for the same configuration
// skip retraining.
//
// Two backends implement the same Store interface: DiskStore keeps two
// co-located artifacts per key (model payload and metadata document) plus one
// consolidated index file, and RedisStore shares entries across instances.
//
// Cache lookups never fail loudly. An absent key, a broken artifact, or an
// I/O error all degrade to a miss so that the caller falls back to
// retraining; a broken cache entry must never abort a forecast request.
package modelcache

import (
	"time"

	"github.com/quantaleaf/demandcast/pkg/cachekey"
)

// Metrics is the accuracy summary recorded when a model is trained.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MAPE float64 `json:"mape"`
}

// Metadata describes one cached model. The field set is fixed; anything a
// writer wants to attach beyond it goes into Extra, never into ad-hoc keys.
type Metadata struct {
	Key            string    `json:"key"`
	Schema         string    `json:"schema"`
	Table          string    `json:"table"`
	DateCol        string    `json:"dateCol"`
	ItemCol        string    `json:"itemCol"`
	QtyCol         string    `json:"qtyCol"`
	ModelType      string    `json:"modelType"`
	HorizonDays    int       `json:"horizonDays"`
	Item           string    `json:"item"`
	Tuning         bool      `json:"tuning"`
	TrainedAt      time.Time `json:"trainedAt"`
	TrainingPoints int       `json:"trainingPoints"`
	FeatureColumns []string  `json:"featureColumns,omitempty"`
	Metrics        Metrics   `json:"metrics"`

	Extra map[string]string `json:"extra,omitempty"`
}

// MetadataFor seeds a Metadata with the canonical echo of the context.
// TrainedAt is set to the current time; training details are the caller's.
func MetadataFor(ctx cachekey.Context) Metadata {
	n := ctx.Normalize()
	return Metadata{
		Key:         n.Key(),
		Schema:      n.Schema,
		Table:       n.Table,
		DateCol:     n.DateCol,
		ItemCol:     n.ItemCol,
		QtyCol:      n.QtyCol,
		ModelType:   n.ModelType,
		HorizonDays: n.HorizonDays,
		Item:        n.ItemID,
		Tuning:      n.Tuning,
		TrainedAt:   time.Now().UTC(),
	}
}

// ItemDetail is the per-item slice of Info.
type ItemDetail struct {
	Item      string    `json:"item"`
	Key       string    `json:"key"`
	TrainedAt time.Time `json:"trainedAt"`
	Metrics   Metrics   `json:"metrics"`
}

// Info summarizes cache coverage for a batch of items under one template.
type Info struct {
	TotalItems   int          `json:"totalItems"`
	CachedCount  int          `json:"cachedCount"`
	MissingCount int          `json:"missingCount"`
	CachedItems  []string     `json:"cachedItems"`
	MissingItems []string     `json:"missingItems"`
	Details      []ItemDetail `json:"details"`
}

// Store is the persistent model cache.
//
// Save overwrites any prior entry at the same key wholesale. Load returns
// (nil, nil) on a miss; callers treat that as "retrain", not as a fault.
// Delete is idempotent. CachedItems partitions the input exactly: every item
// lands in exactly one of the two result lists, input order preserved.
type Store interface {
	Key(ctx cachekey.Context) string
	Exists(ctx cachekey.Context) bool
	Save(ctx cachekey.Context, blob []byte, meta Metadata) (key string, ok bool)
	Load(key string) ([]byte, *Metadata)
	Delete(key string) bool
	CachedItems(template cachekey.Context, items []string) (cached, missing []string)
	ClearConfig(template cachekey.Context, items []string) int
	Info(template cachekey.Context, items []string) Info
	Entries() []Metadata
}

// partitionItems implements CachedItems on top of an exists check.
func partitionItems(template cachekey.Context, items []string, exists func(cachekey.Context) bool) (cached, missing []string) {
	cached = make([]string, 0, len(items))
	missing = make([]string, 0, len(items))
	for _, item := range items {
		if exists(template.WithItem(item)) {
			cached = append(cached, item)
		} else {
			missing = append(missing, item)
		}
	}
	return cached, missing
}

// buildInfo implements Info on top of CachedItems and the index.
func buildInfo(template cachekey.Context, items []string, s Store) Info {
	cached, missing := s.CachedItems(template, items)

	details := make([]ItemDetail, 0, len(cached))
	for _, item := range cached {
		key := s.Key(template.WithItem(item))
		if _, meta := s.Load(key); meta != nil {
			details = append(details, ItemDetail{
				Item:      item,
				Key:       key,
				TrainedAt: meta.TrainedAt,
				Metrics:   meta.Metrics,
			})
		}
	}

	return Info{
		TotalItems:   len(items),
		CachedCount:  len(cached),
		MissingCount: len(missing),
		CachedItems:  cached,
		MissingItems: missing,
		Details:      details,
	}
}

// clearConfig implements ClearConfig on top of Delete.
func clearConfig(template cachekey.Context, items []string, s Store) int {
	deleted := 0
	for _, item := range items {
		ctx := template.WithItem(item)
		if !s.Exists(ctx) {
			continue
		}
		if s.Delete(s.Key(ctx)) {
			deleted++
		}
	}
	return deleted
}
