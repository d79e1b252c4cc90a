// Package engram provides an embedded, durable memory store for AI agents.
//
// This file implements the fluent builder API for opening DB handles.
// Builders are immutable - each method returns a new builder with the updated
// configuration.
package engram

import (
	"context"

	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/embed"
	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/resource"
)

// New creates a builder for a database holding vectors of the given
// dimension.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration. This ensures thread-safety and prevents accidental
// state sharing.
//
// Example:
//
//	db, err := engram.New(384).
//	    Cosine().
//	    M(16).
//	    EFConstruction(200).
//	    Open(ctx, "./data")
func New(dimension int) Builder {
	return Builder{
		dimension:      dimension,
		metric:         hnsw.DefaultOptions.Metric,
		m:              hnsw.DefaultOptions.M,
		efConstruction: hnsw.DefaultOptions.EFConstruction,
		efSearch:       hnsw.DefaultOptions.EFSearch,
		heuristic:      hnsw.DefaultOptions.Heuristic,
	}
}

// Builder is an immutable fluent builder for opening DB handles.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	dimension      int
	metric         distance.Metric
	m              int
	efConstruction int
	efSearch       int
	heuristic      bool
	durability     *mnemo.DurabilityMode
	logOptions     []func(*mnemo.Options)
	embedder       embed.Embedder
	logger         *Logger
	metrics        MetricsCollector
	snapshotEvery  int
	resources      *resource.Config
}

// Cosine sets the distance metric to cosine distance (normalized vectors).
func (b Builder) Cosine() Builder {
	b.metric = distance.MetricCosine
	return b
}

// SquaredL2 sets the distance metric to squared Euclidean distance.
func (b Builder) SquaredL2() Builder {
	b.metric = distance.MetricL2
	return b
}

// DotProduct sets the distance metric to negated dot product.
func (b Builder) DotProduct() Builder {
	b.metric = distance.MetricDot
	return b
}

// M sets the maximum number of graph connections per layer.
// Higher values improve recall quality but increase memory usage.
func (b Builder) M(m int) Builder {
	b.m = m
	return b
}

// EFConstruction sets the exploration beam used while inserting.
// Higher values improve graph quality but slow down stores.
//
// Note: this is different from search-time EF, which is tuned per query via
// WithEF.
func (b Builder) EFConstruction(ef int) Builder {
	b.efConstruction = ef
	return b
}

// EFSearch sets the default exploration beam used by Recall when a query
// does not override it.
func (b Builder) EFSearch(ef int) Builder {
	b.efSearch = ef
	return b
}

// Heuristic enables or disables diversity-aware neighbor pruning.
// Default: true.
func (b Builder) Heuristic(enabled bool) Builder {
	b.heuristic = enabled
	return b
}

// Durability selects when Store reports success: fsync per append (the
// default), batched group commits, or the OS page cache.
func (b Builder) Durability(mode mnemo.DurabilityMode) Builder {
	b.durability = &mode
	return b
}

// Log configures the append log beyond the durability mode, e.g. group
// commit tuning or a test file system.
func (b Builder) Log(optFns ...func(*mnemo.Options)) Builder {
	b.logOptions = optFns
	return b
}

// Embedder injects the embedding capability used by StoreText, RecallText
// and Embed.
func (b Builder) Embedder(e embed.Embedder) Builder {
	b.embedder = e
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// SnapshotEvery enables automatic background snapshots after every n
// appended frames.
func (b Builder) SnapshotEvery(n int) Builder {
	b.snapshotEvery = n
	return b
}

// Resources bounds background workers and snapshot IO throughput.
func (b Builder) Resources(cfg resource.Config) Builder {
	b.resources = &cfg
	return b
}

// Open opens the database in dir with the accumulated configuration.
func (b Builder) Open(ctx context.Context, dir string) (*DB, error) {
	optFns := []Option{
		WithHNSW(func(o *hnsw.Options) {
			o.Metric = b.metric
			o.M = b.m
			o.EFConstruction = b.efConstruction
			o.EFSearch = b.efSearch
			o.Heuristic = b.heuristic
		}),
	}
	if b.durability != nil {
		mode := *b.durability
		optFns = append(optFns, WithLog(func(o *mnemo.Options) {
			o.DurabilityMode = mode
		}))
	}
	if len(b.logOptions) > 0 {
		optFns = append(optFns, WithLog(b.logOptions...))
	}
	if b.embedder != nil {
		optFns = append(optFns, WithEmbedder(b.embedder))
	}
	if b.logger != nil {
		optFns = append(optFns, WithLogger(b.logger))
	}
	if b.metrics != nil {
		optFns = append(optFns, WithMetricsCollector(b.metrics))
	}
	if b.snapshotEvery > 0 {
		optFns = append(optFns, WithSnapshotEvery(b.snapshotEvery))
	}
	if b.resources != nil {
		optFns = append(optFns, WithResourceLimits(*b.resources))
	}

	return Open(ctx, dir, b.dimension, optFns...)
}

// MustOpen opens the database, panicking on error.
func (b Builder) MustOpen(ctx context.Context, dir string) *DB {
	db, err := b.Open(ctx, dir)
	if err != nil {
		panic(err)
	}
	return db
}
