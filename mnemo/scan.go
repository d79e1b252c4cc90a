package mnemo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// errTornTail marks the remaining bytes as a partially written final frame.
// It never escapes the package; scan consumers translate it.
var errTornTail = errors.New("torn tail")

// frameScanner walks frames over a random-access view of the log file.
//
// The payload buffer is reused between calls; a returned payload is valid
// only until the next call.
type frameScanner struct {
	r      io.ReaderAt
	size   int64
	offset int64

	head [frameHeaderSize]byte
	buf  []byte
}

func newFrameScanner(r io.ReaderAt, size, offset int64) *frameScanner {
	return &frameScanner{r: r, size: size, offset: offset}
}

// next returns the next payload and the frame's starting offset.
//
// io.EOF signals a clean end exactly at a frame boundary. errTornTail
// signals an incomplete final frame starting at the returned offset.
// *CorruptFrameError signals unrecoverable mid-stream damage. A torn tail
// can only be the last thing in the file: an incomplete frame is, by
// construction, followed by EOF.
func (s *frameScanner) next() ([]byte, int64, error) {
	start := s.offset
	remaining := s.size - start

	if remaining <= 0 {
		return nil, start, io.EOF
	}
	if remaining < frameHeaderSize {
		return nil, start, errTornTail
	}

	if _, err := s.r.ReadAt(s.head[:], start); err != nil {
		return nil, start, fmt.Errorf("read frame header at %d: %w", start, err)
	}

	sync := binary.LittleEndian.Uint32(s.head[0:4])
	length := binary.LittleEndian.Uint32(s.head[4:8])

	// Frames are written front to back, so a crash tail always keeps the
	// sync marker prefix intact. A wrong marker is damage, not a tail.
	if sync != frameSync {
		return nil, start, &CorruptFrameError{Offset: start, Reason: fmt.Sprintf("bad sync marker %#x", sync)}
	}

	// The writer rejects oversized payloads, so a huge declared length
	// cannot come from a torn append either.
	if length > MaxFramePayload {
		return nil, start, &CorruptFrameError{Offset: start, Reason: fmt.Sprintf("declared payload %d exceeds limit", length)}
	}

	total := int64(frameOverhead) + int64(length)
	if remaining < total {
		return nil, start, errTornTail
	}

	need := int(length) + 4
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	body := s.buf[:need]

	if _, err := s.r.ReadAt(body, start+frameHeaderSize); err != nil {
		return nil, start, fmt.Errorf("read frame body at %d: %w", start, err)
	}

	payload := body[:length]
	stored := binary.LittleEndian.Uint32(body[length:])

	if crc32.ChecksumIEEE(payload) != stored {
		// The final frame may have lost unsynced sectors in a crash;
		// anywhere else a bad checksum is real corruption.
		if start+total == s.size {
			return nil, start, errTornTail
		}
		return nil, start, &CorruptFrameError{Offset: start, Reason: "checksum mismatch"}
	}

	s.offset = start + total

	return payload, start, nil
}

// Iterator yields log frame payloads in write order.
type Iterator struct {
	scanner *frameScanner
	closer  io.Closer

	torn       bool
	tornOffset int64
	done       bool
}

// Next returns the next frame payload and its starting offset.
//
// It returns io.EOF when the pass is over, including the torn-tail case
// (check TornTail afterwards). Mid-stream corruption surfaces as a
// *CorruptFrameError. The payload is only valid until the next call.
func (it *Iterator) Next() ([]byte, int64, error) {
	if it.done {
		return nil, it.scanner.offset, io.EOF
	}

	payload, offset, err := it.scanner.next()

	switch {
	case err == nil:
		return payload, offset, nil
	case errors.Is(err, errTornTail):
		it.done = true
		it.torn = true
		it.tornOffset = offset
		return nil, offset, io.EOF
	case errors.Is(err, io.EOF):
		it.done = true
		return nil, offset, io.EOF
	default:
		it.done = true
		return nil, offset, err
	}
}

// TornTail reports whether the pass ended at a partially written frame.
// Only meaningful once Next has returned io.EOF.
func (it *Iterator) TornTail() bool {
	return it.torn
}

// TornOffset returns where the torn tail began, if TornTail is true.
func (it *Iterator) TornOffset() int64 {
	return it.tornOffset
}

// Close releases the underlying read view.
func (it *Iterator) Close() error {
	if it.closer == nil {
		return nil
	}
	err := it.closer.Close()
	it.closer = nil
	return err
}
