package engram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/metadata"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/record"
	"github.com/hupe1980/engram/resource"
	"github.com/hupe1980/engram/store"
)

// replayQueueDepth is the decode-to-apply channel capacity during replay.
const replayQueueDepth = 128

// Open opens the database in dir, creating it when absent.
//
// Open replays the append log before returning, so the handle starts with
// every committed record searchable. A snapshot left by a previous run
// shortens the replay to the log suffix written after it. A log damaged
// anywhere but its final frame refuses to open with LogCorruptError.
func Open(ctx context.Context, dir string, dimension int, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	hnswOptFns := append([]func(*hnsw.Options){func(o *hnsw.Options) {
		o.Dimension = dimension
	}}, opts.hnswOptions...)

	index, err := hnsw.New(hnswOptFns...)
	if err != nil {
		return nil, translateError(err)
	}

	if opts.embedder != nil && opts.embedder.Dimensions() != dimension {
		return nil, &DimensionMismatchError{Expected: dimension, Actual: opts.embedder.Dimensions()}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	logOpts := mnemo.DefaultOptions()
	for _, fn := range opts.logOptions {
		fn(&logOpts)
	}

	log, err := mnemo.Open(filepath.Join(dir, mnemo.FileName), logOpts)
	if err != nil {
		err = translateError(fmt.Errorf("open log: %w", err))
		opts.logger.LogOpen(ctx, dir, 0, err)
		return nil, err
	}

	db := &DB{
		dir:       dir,
		opts:      opts,
		log:       log,
		records:   store.New(),
		meta:      metadata.NewIndex(),
		index:     index,
		embedder:  opts.embedder,
		resources: resource.NewController(opts.resources),
		nextID:    1,
		metrics:   opts.metricsCollector,
		logger:    opts.logger,
	}

	start := time.Now()
	frames, err := db.recover(ctx)
	duration := time.Since(start)
	if err != nil {
		log.Close()
		err = translateError(err)
		db.logger.LogRecovery(ctx, frames, log.Report().Torn, err)
		db.logger.LogOpen(ctx, dir, 0, err)
		return nil, err
	}
	db.metrics.RecordRecovery(frames, duration)
	db.logger.LogRecovery(ctx, frames, log.Report().Torn, nil)
	db.logger.LogOpen(ctx, dir, db.records.Len(time.Now().UnixNano()), nil)

	return db, nil
}

// recover rebuilds the in-memory projections from the snapshot (when it
// matches the log) plus the log itself. Runs before the handle is
// published, so no locking is needed.
func (db *DB) recover(ctx context.Context) (int, error) {
	replayFrom, err := db.loadSnapshot(ctx)
	if err != nil {
		return 0, err
	}

	var it *mnemo.Iterator
	if replayFrom > 0 {
		it, err = db.log.IterateFrom(replayFrom)
	} else {
		it, err = db.log.Iterate()
	}
	if err != nil {
		return 0, err
	}
	defer it.Close()

	return db.replay(ctx, it)
}

type replayEntry struct {
	rec       record.Record
	tombstone bool
	offset    int64
}

// replay feeds decoded frames through a small pipeline: one goroutine reads
// and decodes, another applies in log order.
func (db *DB) replay(ctx context.Context, it *mnemo.Iterator) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	entries := make(chan replayEntry, replayQueueDepth)

	g.Go(func() error {
		defer close(entries)
		for {
			payload, offset, err := it.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				var cf *mnemo.CorruptFrameError
				if errors.As(err, &cf) {
					return &LogCorruptError{Path: db.log.Path(), cause: err}
				}
				return err
			}

			rec, tombstone, err := record.Decode(payload)
			if err != nil {
				// The frame passed its checksum but the payload is not a
				// record this codec ever produced.
				return &LogCorruptError{
					Path:  db.log.Path(),
					cause: fmt.Errorf("frame at offset %d: %w", offset, err),
				}
			}

			select {
			case entries <- replayEntry{rec: rec, tombstone: tombstone, offset: offset}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	frames := 0
	g.Go(func() error {
		for e := range entries {
			frames++

			if e.tombstone {
				db.applyTombstone(e.rec.ID)
				if e.rec.Timestamp > db.lastTimestamp {
					db.lastTimestamp = e.rec.Timestamp
				}
				continue
			}

			if err := db.apply(e.rec); err != nil {
				return fmt.Errorf("replay record %d at offset %d: %w", e.rec.ID, e.offset, err)
			}
			if e.rec.ID >= db.nextID {
				db.nextID = e.rec.ID + 1
			}
			if e.rec.Timestamp > db.lastTimestamp {
				db.lastTimestamp = e.rec.Timestamp
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return frames, err
	}
	return frames, nil
}
