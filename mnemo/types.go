package mnemo

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/engram/internal/fs"
)

// FileName is the log file name inside a database directory.
const FileName = "engram.log"

const (
	// HeaderSize is the length of the file header. The first frame starts
	// here, so it is also the lowest valid iteration offset.
	HeaderSize = 16

	frameHeaderSize = 8                   // sync u32 + length u32
	frameOverhead   = frameHeaderSize + 4 // + trailing crc32

	frameSync  uint32 = 0xFAFAFAFA
	logVersion uint16 = 1

	// MaxFramePayload caps a single frame's payload. Anything larger is
	// rejected on append and treated as corruption on read.
	MaxFramePayload = 64 << 20
)

var headerMagic = [4]byte{'M', 'N', 'M', 'O'}

// DurabilityMode controls when Append reports success.
type DurabilityMode int

const (
	// DurabilitySync fsyncs before every Append returns. Slow but safe.
	DurabilitySync DurabilityMode = iota
	// DurabilityGroupCommit batches fsyncs; appends block until covered.
	DurabilityGroupCommit
	// DurabilityAsync relies on the OS page cache. Fast but risky.
	DurabilityAsync
)

func (m DurabilityMode) String() string {
	switch m {
	case DurabilitySync:
		return "Sync"
	case DurabilityGroupCommit:
		return "GroupCommit"
	case DurabilityAsync:
		return "Async"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Options configures a Log.
type Options struct {
	// DurabilityMode selects the append durability point.
	DurabilityMode DurabilityMode

	// GroupCommitInterval is the ticker period for batched fsyncs.
	GroupCommitInterval time.Duration

	// GroupCommitMaxOps forces an fsync once this many appends wait.
	GroupCommitMaxOps int

	// FS overrides file system access. Nil means the local disk; the
	// open-time scan then uses a read-only mmap fast path.
	FS fs.FileSystem
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		DurabilityMode:      DurabilitySync,
		GroupCommitInterval: 5 * time.Millisecond,
		GroupCommitMaxOps:   64,
	}
}

func (o *Options) applyDefaults() {
	if o.GroupCommitInterval <= 0 {
		o.GroupCommitInterval = 5 * time.Millisecond
	}
	if o.GroupCommitMaxOps <= 0 {
		o.GroupCommitMaxOps = 64
	}
}

// ScanReport summarizes the open-time pass over the log.
type ScanReport struct {
	// Frames is the number of complete, checksum-valid frames.
	Frames int64
	// ValidBytes is the offset one past the last valid frame. The file
	// header counts, so an empty log reports the header size.
	ValidBytes int64
	// Torn reports whether a partially written final frame was found
	// (and truncated away).
	Torn bool
	// TornOffset is where the torn tail began. Zero when Torn is false.
	TornOffset int64
}

var (
	// ErrInvalidHeader means the file does not start with a log header.
	ErrInvalidHeader = errors.New("invalid log header")
	// ErrIncompatibleVersion means the header version is unsupported.
	ErrIncompatibleVersion = errors.New("incompatible log version")
	// ErrFrameTooLarge means an append exceeded MaxFramePayload.
	ErrFrameTooLarge = errors.New("log frame too large")
)

// CorruptFrameError reports mid-stream corruption: a frame that is neither
// checksum-valid nor the designed torn-tail case.
type CorruptFrameError struct {
	Offset int64
	Reason string
}

func (e *CorruptFrameError) Error() string {
	return fmt.Sprintf("corrupt frame at offset %d: %s", e.Offset, e.Reason)
}
