package engram

import (
	"log/slog"

	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/embed"
	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/resource"
)

type options struct {
	hnswOptions      []func(*hnsw.Options)
	logOptions       []func(*mnemo.Options)
	embedder         embed.Embedder
	metricsCollector MetricsCollector
	logger           *Logger
	snapshotEvery    int
	resources        resource.Config
}

// Option configures Open behavior.
//
// The fluent Builder assembles Option values itself; plain Open callers pass
// them directly.
type Option func(*options)

// WithMetric configures the distance metric. The metric is fixed at creation;
// a log or snapshot written under another metric is refused on open.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, func(ho *hnsw.Options) {
			ho.Metric = m
		})
	}
}

// WithHNSW exposes the raw index options for tuning beyond the common knobs.
//
// Example:
//
//	engram.Open(ctx, dir, 384, engram.WithHNSW(func(o *hnsw.Options) {
//	    o.M = 16
//	    o.EFConstruction = 400
//	}))
func WithHNSW(optFns ...func(*hnsw.Options)) Option {
	return func(o *options) {
		o.hnswOptions = append(o.hnswOptions, optFns...)
	}
}

// WithLog configures the append log, primarily its durability mode.
//
// Example:
//
//	engram.Open(ctx, dir, 384, engram.WithLog(func(o *mnemo.Options) {
//	    o.DurabilityMode = mnemo.DurabilityGroupCommit
//	    o.GroupCommitInterval = 10 * time.Millisecond
//	}))
func WithLog(optFns ...func(*mnemo.Options)) Option {
	return func(o *options) {
		o.logOptions = append(o.logOptions, optFns...)
	}
}

// WithEmbedder injects the embedding capability used by StoreText,
// RecallText and Embed. The embedder's dimensions must match the database
// dimension. Without one, text operations return ErrNoEmbedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithSnapshotEvery enables automatic snapshots: after every n appended
// frames a background snapshot is attempted, so the next open replays only
// the log suffix. n <= 0 disables automatic snapshots (the default);
// explicit Snapshot calls work either way.
func WithSnapshotEvery(n int) Option {
	return func(o *options) {
		o.snapshotEvery = n
	}
}

// WithResourceLimits bounds background snapshot workers and snapshot IO
// throughput. The zero Config means one background worker and unlimited IO.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &engram.BasicMetricsCollector{}
//	db, _ := engram.Open(ctx, dir, 384, engram.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Stores: %d, Avg latency: %dns\n", stats.StoreCount, stats.StoreAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := engram.NewJSONLogger(slog.LevelInfo)
//	db, _ := engram.Open(ctx, dir, 384, engram.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
