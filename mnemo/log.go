package mnemo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/engram/internal/fs"
	"github.com/hupe1980/engram/internal/mmap"
)

// Log is the append-only frame log. One writer, many readers.
type Log struct {
	mu   sync.Mutex
	fsys fs.FileSystem
	file fs.File
	cw   *countingWriter
	path string
	opts Options

	useMmap bool
	frames  int64
	report  ScanReport

	// Group commit state
	syncedOffset int64      // Offset known to be fsync'd
	pending      int        // Appends since the last fsync
	syncCond     *sync.Cond // Signals the syncer that there is data to sync
	doneCond     *sync.Cond // Signals waiters that a sync completed
	closed       bool
	lastErr      error // Terminal error from the background syncer
	wg           sync.WaitGroup
	stopTicker   chan struct{}
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func (cw *countingWriter) Flush() error {
	return cw.w.Flush()
}

func (cw *countingWriter) Reset(w io.Writer, n int64) {
	cw.w.Reset(w)
	cw.n = n
}

// Open opens or creates the log at path, scanning existing frames and
// truncating a torn tail so that appends never follow garbage.
func Open(path string, opts Options) (*Log, error) {
	opts.applyDefaults()

	fsys := opts.FS
	useMmap := fsys == nil
	if fsys == nil {
		fsys = fs.Default
	}

	report, err := scanFile(fsys, useMmap, path)
	if err != nil {
		return nil, err
	}

	if report.Torn {
		if err := fsys.Truncate(path, report.ValidBytes); err != nil {
			return nil, fmt.Errorf("truncate torn tail: %w", err)
		}
	}

	f, err := fsys.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	// A fresh file still needs its header.
	if report.ValidBytes == 0 {
		if _, err := f.Write(encodeHeader()); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
		report.ValidBytes = HeaderSize
	}

	l := &Log{
		fsys:    fsys,
		file:    f,
		cw:      &countingWriter{w: bufio.NewWriter(f), n: report.ValidBytes},
		path:    path,
		opts:    opts,
		useMmap: useMmap,
		frames:  report.Frames,
		report:  report,

		syncedOffset: report.ValidBytes,
	}
	l.syncCond = sync.NewCond(&l.mu)
	l.doneCond = sync.NewCond(&l.mu)

	switch opts.DurabilityMode {
	case DurabilitySync:
		l.wg.Add(1)
		go l.runSyncer()
	case DurabilityGroupCommit:
		l.stopTicker = make(chan struct{})
		l.wg.Add(2)
		go l.runSyncer()
		go l.runTicker()
	}

	return l, nil
}

// Scan opens a read-only pass over the frames of a log file. Unlike Open
// it never truncates: a torn tail just ends the pass, reported through the
// iterator's TornTail accessor.
func Scan(fsys fs.FileSystem, path string) (*Iterator, error) {
	useMmap := fsys == nil
	if fsys == nil {
		fsys = fs.Default
	}

	r, size, closer, err := openReadView(fsys, useMmap, path)
	if err != nil {
		return nil, err
	}

	if size < HeaderSize {
		closer.Close()
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidHeader, size)
	}

	head := make([]byte, HeaderSize)
	if _, err := r.ReadAt(head, 0); err != nil {
		closer.Close()
		return nil, err
	}
	if err := parseHeader(head); err != nil {
		closer.Close()
		return nil, err
	}

	return &Iterator{
		scanner: newFrameScanner(r, size, HeaderSize),
		closer:  closer,
	}, nil
}

// scanFile classifies every frame in an existing log file.
// A missing or empty file reports zero ValidBytes.
func scanFile(fsys fs.FileSystem, useMmap bool, path string) (ScanReport, error) {
	statFS := fsys
	if statFS == nil {
		statFS = fs.Default
	}

	info, err := statFS.Stat(path)
	if os.IsNotExist(err) {
		return ScanReport{}, nil
	}
	if err != nil {
		return ScanReport{}, err
	}
	if info.Size() == 0 {
		return ScanReport{}, nil
	}

	var scanFS fs.FileSystem
	if !useMmap {
		scanFS = fsys
	}

	it, err := Scan(scanFS, path)
	if err != nil {
		return ScanReport{}, err
	}
	defer it.Close()

	report := ScanReport{ValidBytes: HeaderSize}

	for {
		_, _, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ScanReport{}, err
		}
		report.Frames++
		report.ValidBytes = it.scanner.offset
	}

	if it.TornTail() {
		report.Torn = true
		report.TornOffset = it.TornOffset()
	}

	return report, nil
}

// openReadView returns a random-access view of the log bytes.
func openReadView(fsys fs.FileSystem, useMmap bool, path string) (io.ReaderAt, int64, io.Closer, error) {
	if useMmap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, 0, nil, err
		}
		return m, int64(m.Len()), m, nil
	}

	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, nil, err
	}
	return f, info.Size(), f, nil
}

// Append writes one frame and reaches the configured durability point
// before returning. It returns the frame's starting offset.
func (l *Log) Append(payload []byte) (int64, error) {
	if int64(len(payload)) > MaxFramePayload {
		return 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, os.ErrClosed
	}
	if l.lastErr != nil {
		return 0, l.lastErr
	}

	start := l.cw.n

	var head [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(head[0:4], frameSync)
	binary.LittleEndian.PutUint32(head[4:8], uint32(len(payload)))

	var tail [4]byte
	binary.LittleEndian.PutUint32(tail[:], crc32.ChecksumIEEE(payload))

	if _, err := l.cw.Write(head[:]); err != nil {
		return 0, l.failAppendLocked(start, err)
	}
	if _, err := l.cw.Write(payload); err != nil {
		return 0, l.failAppendLocked(start, err)
	}
	if _, err := l.cw.Write(tail[:]); err != nil {
		return 0, l.failAppendLocked(start, err)
	}
	if err := l.cw.Flush(); err != nil {
		return 0, l.failAppendLocked(start, err)
	}

	end := l.cw.n
	l.frames++

	switch l.opts.DurabilityMode {
	case DurabilitySync:
		l.syncCond.Signal()
		if err := l.waitForLocked(end); err != nil {
			return 0, err
		}
	case DurabilityGroupCommit:
		l.pending++
		if l.pending >= l.opts.GroupCommitMaxOps {
			l.syncCond.Signal()
		}
		if err := l.waitForLocked(end); err != nil {
			return 0, err
		}
	case DurabilityAsync:
		// Caller accepted the page cache as the durability point.
	}

	return start, nil
}

// failAppendLocked poisons the log after a failed frame write. The frame may
// have partially reached the file, so the size rolls back to the committed
// prefix and every later append fails fast; a surviving fragment is a torn
// tail for the next Open to truncate. Without this, bytes left in the write
// buffer could ride out on a later append and resurrect a frame the caller
// was told failed.
func (l *Log) failAppendLocked(start int64, err error) error {
	l.lastErr = fmt.Errorf("log append failed: %w", err)
	l.cw.Reset(l.file, start)
	l.doneCond.Broadcast()
	return l.lastErr
}

// waitForLocked blocks until the log is synced up to offset.
// Caller must hold l.mu.
func (l *Log) waitForLocked(offset int64) error {
	for l.syncedOffset < offset && !l.closed && l.lastErr == nil {
		l.doneCond.Wait()
	}
	if l.lastErr != nil {
		return l.lastErr
	}
	if l.closed && l.syncedOffset < offset {
		return os.ErrClosed
	}
	return nil
}

func (l *Log) runSyncer() {
	defer l.wg.Done()
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		for l.cw.n <= l.syncedOffset && !l.closed {
			l.syncCond.Wait()
		}

		if l.closed && l.cw.n <= l.syncedOffset {
			return
		}

		target := l.cw.n

		l.mu.Unlock()
		err := l.file.Sync()
		l.mu.Lock()

		if err != nil {
			l.lastErr = fmt.Errorf("log sync failed: %w", err)
			l.doneCond.Broadcast()
			return
		}

		if target > l.syncedOffset {
			l.syncedOffset = target
		}
		l.pending = 0
		l.doneCond.Broadcast()
	}
}

func (l *Log) runTicker() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.opts.GroupCommitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopTicker:
			return
		case <-ticker.C:
			l.mu.Lock()
			if !l.closed && l.cw.n > l.syncedOffset {
				l.syncCond.Signal()
			}
			l.mu.Unlock()
		}
	}
}

// Sync forces all buffered writes to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return os.ErrClosed
	}
	if l.lastErr != nil {
		return l.lastErr
	}

	if err := l.cw.Flush(); err != nil {
		return err
	}

	if l.opts.DurabilityMode == DurabilityAsync {
		return l.file.Sync()
	}

	l.syncCond.Signal()
	return l.waitForLocked(l.cw.n)
}

// Close flushes, stops the background workers, and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return os.ErrClosed
	}

	flushErr := l.cw.Flush()

	var syncErr error
	if l.opts.DurabilityMode == DurabilityAsync && flushErr == nil {
		syncErr = l.file.Sync()
	}

	l.closed = true
	l.syncCond.Signal()
	l.mu.Unlock()

	if l.stopTicker != nil {
		close(l.stopTicker)
	}
	l.wg.Wait()

	closeErr := l.file.Close()

	switch {
	case flushErr != nil:
		return flushErr
	case syncErr != nil:
		return syncErr
	default:
		return closeErr
	}
}

// Iterate opens a pass over all frames from the start.
func (l *Log) Iterate() (*Iterator, error) {
	return l.IterateFrom(HeaderSize)
}

// IterateFrom opens a pass starting at a frame boundary offset, as
// previously returned by Append or Size.
func (l *Log) IterateFrom(offset int64) (*Iterator, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, os.ErrClosed
	}
	bound := l.cw.n
	l.mu.Unlock()

	if offset < HeaderSize || offset > bound {
		return nil, fmt.Errorf("iterate offset %d out of range [%d, %d]", offset, HeaderSize, bound)
	}

	r, size, closer, err := openReadView(l.fsys, l.useMmap, l.path)
	if err != nil {
		return nil, err
	}

	// Frames past the bound may be mid-write; the pass stops before them.
	if size > bound {
		size = bound
	}

	return &Iterator{
		scanner: newFrameScanner(r, size, offset),
		closer:  closer,
	}, nil
}

// ChecksumPrefix returns the IEEE crc32 of the first n file bytes.
// Append-only writes keep any committed prefix stable, so this is safe
// while appends continue.
func (l *Log) ChecksumPrefix(n int64) (uint32, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, os.ErrClosed
	}
	bound := l.cw.n
	l.mu.Unlock()

	if n < 0 || n > bound {
		return 0, fmt.Errorf("checksum prefix %d out of range [0, %d]", n, bound)
	}

	r, _, closer, err := openReadView(l.fsys, l.useMmap, l.path)
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, n)); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// Size returns the current log size in bytes, header included.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cw.n
}

// Frames returns the number of frames in the log.
func (l *Log) Frames() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Report returns what the open-time scan found.
func (l *Log) Report() ScanReport {
	return l.report
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}
