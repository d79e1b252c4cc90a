package engram

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    storeCounter    prometheus.Counter
//	    recallHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordStore(duration time.Duration, err error) {
//	    p.storeCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordStore is called after each store operation.
	// duration is the total time taken, err is nil if successful.
	RecordStore(duration time.Duration, err error)

	// RecordRecall is called after each recall operation.
	// limit is the number of results requested, duration is the time
	// taken, err is nil if successful.
	RecordRecall(limit int, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot attempt, explicit or
	// automatic.
	RecordSnapshot(duration time.Duration, err error)

	// RecordRecovery is called once per successful open with the number
	// of log frames replayed.
	RecordRecovery(frames int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStore(time.Duration, error)       {}
func (NoopMetricsCollector) RecordRecall(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)      {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)    {}
func (NoopMetricsCollector) RecordRecovery(int, time.Duration)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StoreCount       atomic.Int64
	StoreErrors      atomic.Int64
	StoreTotalNanos  atomic.Int64
	RecallCount      atomic.Int64
	RecallErrors     atomic.Int64
	RecallTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	RecoveredFrames  atomic.Int64
	RecoveryNanos    atomic.Int64
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(duration time.Duration, err error) {
	b.StoreCount.Add(1)
	b.StoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StoreErrors.Add(1)
	}
}

// RecordRecall implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecall(limit int, duration time.Duration, err error) {
	b.RecallCount.Add(1)
	b.RecallTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RecallErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordRecovery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecovery(frames int, duration time.Duration) {
	b.RecoveredFrames.Add(int64(frames))
	b.RecoveryNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StoreCount:      b.StoreCount.Load(),
		StoreErrors:     b.StoreErrors.Load(),
		StoreAvgNanos:   b.getAvgStoreNanos(),
		RecallCount:     b.RecallCount.Load(),
		RecallErrors:    b.RecallErrors.Load(),
		RecallAvgNanos:  b.getAvgRecallNanos(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		SnapshotCount:   b.SnapshotCount.Load(),
		SnapshotErrors:  b.SnapshotErrors.Load(),
		RecoveredFrames: b.RecoveredFrames.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgStoreNanos() int64 {
	count := b.StoreCount.Load()
	if count == 0 {
		return 0
	}
	return b.StoreTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgRecallNanos() int64 {
	count := b.RecallCount.Load()
	if count == 0 {
		return 0
	}
	return b.RecallTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StoreCount      int64
	StoreErrors     int64
	StoreAvgNanos   int64
	RecallCount     int64
	RecallErrors    int64
	RecallAvgNanos  int64
	DeleteCount     int64
	DeleteErrors    int64
	SnapshotCount   int64
	SnapshotErrors  int64
	RecoveredFrames int64
}
