package engram

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/engram/distance"
	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/mnemo"
	"github.com/hupe1980/engram/record"
	"github.com/hupe1980/engram/resource"
)

// SnapshotFileName is the snapshot file name inside a database directory.
const SnapshotFileName = "engram.snap"

var snapshotMagic = [4]byte{'E', 'N', 'G', 'S'}

const snapshotVersion uint16 = 1

// snapshotBody is the gob-encoded image of the in-memory state at one log
// position. LogBytes and LogCRC32 pin it to an exact log prefix; the image
// is only trusted while the log still starts with that prefix.
type snapshotBody struct {
	Dimension int
	Metric    distance.Metric

	LogBytes int64
	LogCRC32 uint32

	// Records holds every record still in the log's effect, deleted ones
	// included: the graph keeps tombstoned nodes as link waypoints and
	// needs their vectors back on restore.
	Records []record.Record
	Index   *hnsw.State
}

// Snapshot writes a point-in-time image of the database next to the log, so
// the next open can replay only the suffix appended after it. At most one
// snapshot runs at a time; concurrent stores and recalls proceed.
func (db *DB) Snapshot(ctx context.Context) error {
	start := time.Now()

	err := db.snapshot(ctx)

	duration := time.Since(start)
	err = translateError(err)
	db.metrics.RecordSnapshot(duration, err)
	db.logger.LogSnapshot(ctx, SnapshotFileName, err)

	return err
}

func (db *DB) snapshot(ctx context.Context) error {
	if db.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db.snapshotMu.Lock()
	defer db.snapshotMu.Unlock()

	body, err := db.captureSnapshot()
	if err != nil {
		return err
	}
	if err := db.writeSnapshot(ctx, body); err != nil {
		return err
	}

	db.appendsSinceSnapshot.Store(0)
	return nil
}

// captureSnapshot assembles a consistent image. It briefly blocks the write
// path so the log marker matches the captured state exactly.
func (db *DB) captureSnapshot() (*snapshotBody, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	logBytes := db.log.Size()
	crc, err := db.log.ChecksumPrefix(logBytes)
	if err != nil {
		return nil, fmt.Errorf("checksum log prefix: %w", err)
	}

	records := make([]record.Record, 0, db.records.Total())
	db.records.Range(func(rec record.Record) bool {
		records = append(records, rec)
		return true
	})
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	return &snapshotBody{
		Dimension: db.index.Dimension(),
		Metric:    db.index.Metric(),
		LogBytes:  logBytes,
		LogCRC32:  crc,
		Records:   records,
		Index:     db.index.State(),
	}, nil
}

// writeSnapshot publishes body atomically: temp file, fsync, rename.
func (db *DB) writeSnapshot(ctx context.Context, body *snapshotBody) error {
	final := filepath.Join(db.dir, SnapshotFileName)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() {
		if f != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(resource.NewRateLimitedWriter(ctx, f, db.resources))

	var head [6]byte
	copy(head[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint16(head[4:6], snapshotVersion)
	if _, err := w.Write(head[:]); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("snapshot compressor: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(body); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush snapshot compressor: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}

	closeErr := f.Close()
	f = nil
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("close snapshot: %w", closeErr)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// loadSnapshot restores state from the snapshot file when it matches the
// current log, returning the offset delta replay should start from. Zero
// means no usable snapshot: replay the whole log. Only configuration
// mismatches are fatal; a damaged or stale snapshot is ignored because the
// log holds the truth.
func (db *DB) loadSnapshot(ctx context.Context) (int64, error) {
	path := filepath.Join(db.dir, SnapshotFileName)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	body, err := readSnapshotBody(ctx, f, db.resources)
	if err != nil {
		db.logger.WarnContext(ctx, "snapshot unreadable, replaying full log",
			"filename", SnapshotFileName,
			"error", err,
		)
		return 0, nil
	}

	if body.Dimension != db.index.Dimension() {
		return 0, &DimensionMismatchError{Expected: db.index.Dimension(), Actual: body.Dimension}
	}
	if body.Metric != db.index.Metric() {
		return 0, fmt.Errorf("snapshot metric %v does not match configured metric %v", body.Metric, db.index.Metric())
	}

	if body.LogBytes < mnemo.HeaderSize || body.LogBytes > db.log.Size() {
		db.logger.WarnContext(ctx, "snapshot does not cover a prefix of the log, replaying full log",
			"filename", SnapshotFileName,
		)
		return 0, nil
	}
	crc, err := db.log.ChecksumPrefix(body.LogBytes)
	if err != nil {
		return 0, err
	}
	if crc != body.LogCRC32 {
		db.logger.WarnContext(ctx, "snapshot does not match the log, replaying full log",
			"filename", SnapshotFileName,
		)
		return 0, nil
	}

	if err := db.applySnapshot(body); err != nil {
		db.logger.WarnContext(ctx, "snapshot rejected, replaying full log",
			"filename", SnapshotFileName,
			"error", err,
		)
		return 0, nil
	}
	return body.LogBytes, nil
}

func readSnapshotBody(ctx context.Context, r io.Reader, res *resource.Controller) (*snapshotBody, error) {
	br := bufio.NewReader(resource.NewRateLimitedReader(ctx, r, res))

	var head [6]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if [4]byte(head[0:4]) != snapshotMagic {
		return nil, errors.New("bad snapshot magic")
	}
	if v := binary.LittleEndian.Uint16(head[4:6]); v != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", v)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("snapshot decompressor: %w", err)
	}
	defer zr.Close()

	var body snapshotBody
	if err := gob.NewDecoder(zr).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if body.Index == nil {
		return nil, errors.New("snapshot has no index state")
	}
	return &body, nil
}

// applySnapshot installs a decoded image. The graph is restored first and
// only installs on success, so a failure leaves everything empty for the
// full-replay fallback. Runs before the handle is published.
func (db *DB) applySnapshot(body *snapshotBody) error {
	vectors := make(map[uint64][]float32, len(body.Records))
	for _, rec := range body.Records {
		vectors[rec.ID] = rec.Vector
	}

	if err := db.index.Restore(body.Index, func(id uint64) ([]float32, bool) {
		v, ok := vectors[id]
		return v, ok
	}); err != nil {
		return fmt.Errorf("restore index: %w", err)
	}

	for _, rec := range body.Records {
		db.records.Put(rec)
		db.meta.Set(rec.ID, rec.Metadata)
		if rec.ID >= db.nextID {
			db.nextID = rec.ID + 1
		}
		if rec.Timestamp > db.lastTimestamp {
			db.lastTimestamp = rec.Timestamp
		}
	}
	for _, id := range body.Index.Tombstones {
		db.records.MarkDeleted(id)
		db.meta.Delete(id)
	}
	return nil
}
