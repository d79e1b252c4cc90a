package engram

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/embed"
	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/metadata"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/record"
	"github.com/hupe1980/engram/resource"
	"github.com/hupe1980/engram/store"
)

// DB is a handle to one open database directory. A DB is safe for concurrent
// use; open at most one handle per directory.
type DB struct {
	dir  string
	opts options

	log       *mnemo.Log
	records   *store.Store
	meta      *metadata.Index
	index     *hnsw.Index
	embedder  embed.Embedder
	resources *resource.Controller

	// mu serializes the write path. Graph insertion order therefore always
	// matches log append order, so a live graph and its replayed twin are
	// the same graph.
	mu            sync.Mutex
	nextID        uint64
	lastTimestamp int64

	snapshotMu           sync.Mutex
	appendsSinceSnapshot atomic.Int64

	closed atomic.Bool

	metrics MetricsCollector
	logger  *Logger
}

// StoreOptions customizes a single Store call.
type StoreOptions struct {
	// TTL expires the record this long after it is stored. Zero means the
	// record never expires.
	TTL time.Duration
}

// WithTTL expires the record after d.
func WithTTL(d time.Duration) func(*StoreOptions) {
	return func(o *StoreOptions) {
		o.TTL = d
	}
}

// RecallOptions customizes a single Recall call.
type RecallOptions struct {
	// EF overrides the search beam width. Values below the internal
	// over-fetch floor are raised to it.
	EF int

	// Filters restricts results to records whose metadata matches.
	Filters *metadata.FilterSet
}

// WithEF widens (or narrows) the search beam. Higher values improve recall
// quality at the cost of latency.
func WithEF(ef int) func(*RecallOptions) {
	return func(o *RecallOptions) {
		o.EF = ef
	}
}

// WithFilters restricts recall to records matching the filter set.
func WithFilters(fs *metadata.FilterSet) func(*RecallOptions) {
	return func(o *RecallOptions) {
		o.Filters = fs
	}
}

// RecallResult is one ranked match returned by Recall.
type RecallResult struct {
	ID       uint64
	Content  string
	Metadata metadata.Document
	Distance float32
}

// Store persists one record and makes it immediately searchable. The append
// log reaches its configured durability point before the in-memory index is
// touched; a failed append leaves the database unchanged.
//
// The returned id identifies the record for Get and Delete.
func (db *DB) Store(ctx context.Context, content string, meta metadata.Document, vector []float32, optFns ...func(*StoreOptions)) (uint64, error) {
	start := time.Now()

	id, err := db.storeRecord(ctx, content, meta, vector, optFns)

	duration := time.Since(start)
	err = translateError(err)
	db.metrics.RecordStore(duration, err)
	db.logger.LogStore(ctx, id, len(vector), err)

	return id, err
}

// StoreText embeds content with the configured embedder and stores the
// result. Requires WithEmbedder at open time.
func (db *DB) StoreText(ctx context.Context, content string, meta metadata.Document, optFns ...func(*StoreOptions)) (uint64, error) {
	vector, err := db.Embed(ctx, content)
	if err != nil {
		return 0, err
	}
	return db.Store(ctx, content, meta, vector, optFns...)
}

func (db *DB) storeRecord(ctx context.Context, content string, meta metadata.Document, vector []float32, optFns []func(*StoreOptions)) (uint64, error) {
	if db.closed.Load() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := db.validateVector(vector); err != nil {
		return 0, err
	}

	var opts StoreOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	rec := record.Record{
		ID:        db.nextID,
		Content:   content,
		Metadata:  meta,
		Vector:    slices.Clone(vector),
		Timestamp: db.clampTimestamp(time.Now().UnixNano()),
	}
	if opts.TTL > 0 {
		rec.ExpiresIn(opts.TTL)
	}

	payload, err := record.Encode(rec)
	if err != nil {
		return 0, err
	}
	if _, err := db.log.Append(payload); err != nil {
		return 0, fmt.Errorf("append record %d: %w", rec.ID, err)
	}

	// The append is durable; from here the record exists.
	db.nextID++
	db.lastTimestamp = rec.Timestamp
	if err := db.apply(rec); err != nil {
		return rec.ID, err
	}

	db.maybeSnapshot()

	return rec.ID, nil
}

// Recall returns up to limit records ranked by vector proximity, nearest
// first. Fewer than limit results is not an error.
func (db *DB) Recall(ctx context.Context, vector []float32, limit int, optFns ...func(*RecallOptions)) ([]RecallResult, error) {
	start := time.Now()

	results, err := db.recall(ctx, vector, limit, optFns)

	duration := time.Since(start)
	err = translateError(err)
	db.metrics.RecordRecall(limit, duration, err)
	db.logger.LogRecall(ctx, limit, len(results), err)

	return results, err
}

// RecallText embeds the query text and recalls by proximity to it. Requires
// WithEmbedder at open time.
func (db *DB) RecallText(ctx context.Context, text string, limit int, optFns ...func(*RecallOptions)) ([]RecallResult, error) {
	vector, err := db.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return db.Recall(ctx, vector, limit, optFns...)
}

func (db *DB) recall(ctx context.Context, vector []float32, limit int, optFns []func(*RecallOptions)) ([]RecallResult, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if err := db.validateVector(vector); err != nil {
		return nil, err
	}

	var opts RecallOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	// Expired records still sit in the graph until they are seen here, so
	// fetch a margin beyond the requested limit and top up from it. A zero
	// EF defers to the index default; the index raises either to the fetch
	// count.
	fetch := limit * 2
	matches, err := db.index.Search(vector, fetch, &hnsw.SearchOptions{
		EF:     opts.EF,
		Filter: db.meta.CreateFilterFunc(opts.Filters),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixNano()
	results := make([]RecallResult, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(results) == limit {
			break
		}
		rec, ok := db.records.GetLive(m.ID, now)
		if !ok {
			continue
		}
		results = append(results, RecallResult{
			ID:       rec.ID,
			Content:  rec.Content,
			Metadata: rec.Metadata,
			Distance: m.Distance,
		})
	}
	return results, nil
}

// Get returns a live record by id. Deleted and expired records report
// ok == false.
func (db *DB) Get(id uint64) (record.Record, bool) {
	if db.closed.Load() {
		return record.Record{}, false
	}
	return db.records.GetLive(id, time.Now().UnixNano())
}

// Delete removes a record. The removal is durable once the tombstone frame
// is appended; the graph keeps the node internally but never returns it
// again. Deleting an unknown or already deleted id returns ErrNotFound.
func (db *DB) Delete(ctx context.Context, id uint64) error {
	start := time.Now()

	err := db.deleteRecord(ctx, id)

	duration := time.Since(start)
	err = translateError(err)
	db.metrics.RecordDelete(duration, err)
	db.logger.LogDelete(ctx, id, err)

	return err
}

func (db *DB) deleteRecord(ctx context.Context, id uint64) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.records.Get(id); !ok || db.records.Deleted(id) {
		return ErrNotFound
	}

	ts := db.clampTimestamp(time.Now().UnixNano())
	if _, err := db.log.Append(record.EncodeTombstone(id, ts)); err != nil {
		return fmt.Errorf("append tombstone %d: %w", id, err)
	}

	db.lastTimestamp = ts
	db.applyTombstone(id)
	db.maybeSnapshot()

	return nil
}

// Count returns the number of live, unexpired records.
func (db *DB) Count() int {
	if db.closed.Load() {
		return 0
	}
	return db.records.Len(time.Now().UnixNano())
}

// Embed computes the embedding of text using the configured embedder.
func (db *DB) Embed(ctx context.Context, text string) ([]float32, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	if db.embedder == nil {
		return nil, ErrNoEmbedder
	}
	return db.embedder.Embed(ctx, text)
}

// Dimension returns the configured vector dimension.
func (db *DB) Dimension() int {
	return db.index.Dimension()
}

// Metric returns the configured distance metric.
func (db *DB) Metric() distance.Metric {
	return db.index.Metric()
}

// Stats reports operational counters for one open handle.
type Stats struct {
	// Records is the live, unexpired record count.
	Records int
	// Tombstones is the number of deleted records still in the log.
	Tombstones int
	// LogBytes is the current log size, header included.
	LogBytes int64
	// LogFrames is the number of frames appended over the log's lifetime.
	LogFrames int64
	// Index describes the graph layer by layer.
	Index hnsw.Stats
}

// Stats returns a point-in-time view of the handle.
func (db *DB) Stats() Stats {
	indexStats := db.index.Stats()
	return Stats{
		Records:    db.records.Len(time.Now().UnixNano()),
		Tombstones: indexStats.Tombstones,
		LogBytes:   db.log.Size(),
		LogFrames:  db.log.Frames(),
		Index:      indexStats,
	}
}

// apply installs one record into the in-memory projections. Callers hold
// db.mu, except during open when the handle is not yet published.
func (db *DB) apply(rec record.Record) error {
	db.records.Put(rec)
	db.meta.Set(rec.ID, rec.Metadata)
	return db.index.Insert(rec.ID, rec.Vector)
}

// applyTombstone is apply's counterpart for delete frames.
func (db *DB) applyTombstone(id uint64) {
	db.index.Delete(id)
	db.records.MarkDeleted(id)
	db.meta.Delete(id)
}

// validateVector rejects unusable vectors before anything reaches the log.
// A bad vector that slipped into the log would fail graph insertion on
// every subsequent open.
func (db *DB) validateVector(v []float32) error {
	if len(v) != db.index.Dimension() {
		return &DimensionMismatchError{Expected: db.index.Dimension(), Actual: len(v)}
	}
	nonzero := false
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return ErrNonFiniteVector
		}
		if x != 0 {
			nonzero = true
		}
	}
	if !nonzero && db.index.Metric() == distance.MetricCosine {
		return hnsw.ErrZeroVector
	}
	return nil
}

// clampTimestamp keeps record timestamps non-decreasing even when the wall
// clock steps backwards. Caller must hold db.mu.
func (db *DB) clampTimestamp(now int64) int64 {
	if now < db.lastTimestamp {
		return db.lastTimestamp
	}
	return now
}

// maybeSnapshot starts a background snapshot once enough frames have been
// appended. Called with db.mu held, so it must not block; the snapshot
// itself runs on a bounded background slot.
func (db *DB) maybeSnapshot() {
	every := int64(db.opts.snapshotEvery)
	if every <= 0 {
		return
	}
	if db.appendsSinceSnapshot.Add(1) < every {
		return
	}
	if !db.resources.TryAcquireBackground() {
		return
	}
	db.appendsSinceSnapshot.Store(0)

	go func() {
		defer db.resources.ReleaseBackground()

		ctx := context.Background()
		start := time.Now()
		err := db.snapshot(ctx)
		duration := time.Since(start)
		err = translateError(err)
		db.metrics.RecordSnapshot(duration, err)
		db.logger.LogSnapshot(ctx, SnapshotFileName, err)
	}()
}
