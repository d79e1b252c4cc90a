package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/engram/metadata"
)

// Kind identifies what an encoded payload represents.
type Kind uint8

const (
	// KindRecord is a stored memory.
	KindRecord Kind = 1
	// KindTombstone marks a prior record as deleted.
	KindTombstone Kind = 2
)

// Flag bits in the payload header.
const (
	// FlagHasTTL marks payloads carrying an expiry timestamp.
	FlagHasTTL uint8 = 1 << 0
	// FlagHasMetadata marks payloads carrying a metadata document.
	FlagHasMetadata uint8 = 1 << 1
	// FlagContentLZ4 marks content stored as an LZ4 block.
	FlagContentLZ4 uint8 = 1 << 2
)

// CompressionThreshold is the content size in bytes above which Encode
// attempts LZ4 block compression. Compression is kept only when it wins.
const CompressionThreshold = 512

var (
	ErrInvalidKind   = errors.New("invalid record kind")
	ErrShortBuffer   = errors.New("short buffer in record payload")
	ErrTrailingBytes = errors.New("trailing bytes after record payload")
	ErrUnknownFlags  = errors.New("unknown record flags")
)

const knownFlags = FlagHasTTL | FlagHasMetadata | FlagContentLZ4

// Encode serializes a record into a log payload.
//
// Layout (little-endian):
//
//	kind u8 | id u64 | timestamp i64 | flags u8
//	[expiresAt i64]                  when FlagHasTTL
//	vectorLen u32 | float32 bits...
//	contentLen u32 | content bytes   (rawLen u32 + LZ4 block when flagged)
//	[metaLen u32 | metadata bytes]   when FlagHasMetadata
func Encode(rec Record) ([]byte, error) {
	var flags uint8

	if rec.ExpiresAt != 0 {
		flags |= FlagHasTTL
	}
	if len(rec.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	content := []byte(rec.Content)
	if len(content) >= CompressionThreshold {
		if compressed, ok := compressContent(content); ok {
			content = compressed
			flags |= FlagContentLZ4
		}
	}

	buf := make([]byte, 0, 1+8+8+1+8+4+len(rec.Vector)*4+4+len(content)+4+len(rec.Metadata)*16)

	buf = append(buf, byte(KindRecord))
	buf = binary.LittleEndian.AppendUint64(buf, rec.ID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(rec.Timestamp))
	buf = append(buf, flags)

	if flags&FlagHasTTL != 0 {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(rec.ExpiresAt))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec.Vector)))
	for _, v := range rec.Vector {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(content)))
	buf = append(buf, content...)

	if flags&FlagHasMetadata != 0 {
		metaBytes, err := rec.Metadata.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(metaBytes)))
		buf = append(buf, metaBytes...)
	}

	return buf, nil
}

// EncodeTombstone serializes a deletion marker for id.
func EncodeTombstone(id uint64, timestamp int64) []byte {
	buf := make([]byte, 0, 1+8+8)
	buf = append(buf, byte(KindTombstone))
	buf = binary.LittleEndian.AppendUint64(buf, id)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(timestamp))
	return buf
}

// Decode parses an encoded payload.
//
// For tombstones it returns tombstone=true with only ID and Timestamp set.
// Structural violations (bad kind, short buffer, declared length past the
// end, trailing bytes) fail with one of this package's sentinel errors.
func Decode(data []byte) (rec Record, tombstone bool, err error) {
	if len(data) < 1 {
		return Record{}, false, ErrShortBuffer
	}

	kind := Kind(data[0])
	rest := data[1:]

	switch kind {
	case KindTombstone:
		if len(rest) < 16 {
			return Record{}, false, ErrShortBuffer
		}
		rec.ID = binary.LittleEndian.Uint64(rest)
		rec.Timestamp = int64(binary.LittleEndian.Uint64(rest[8:]))
		if len(rest) != 16 {
			return Record{}, false, ErrTrailingBytes
		}
		return rec, true, nil

	case KindRecord:
		rec, err = decodeRecord(rest)
		return rec, false, err

	default:
		return Record{}, false, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record

	if len(data) < 17 {
		return rec, ErrShortBuffer
	}
	rec.ID = binary.LittleEndian.Uint64(data)
	rec.Timestamp = int64(binary.LittleEndian.Uint64(data[8:]))
	flags := data[16]
	data = data[17:]

	if flags&^knownFlags != 0 {
		return rec, fmt.Errorf("%w: %#x", ErrUnknownFlags, flags)
	}

	if flags&FlagHasTTL != 0 {
		if len(data) < 8 {
			return rec, ErrShortBuffer
		}
		rec.ExpiresAt = int64(binary.LittleEndian.Uint64(data))
		data = data[8:]
	}

	if len(data) < 4 {
		return rec, ErrShortBuffer
	}
	dim := binary.LittleEndian.Uint32(data)
	data = data[4:]

	if uint64(len(data)) < uint64(dim)*4 {
		return rec, ErrShortBuffer
	}
	rec.Vector = make([]float32, dim)
	for i := range rec.Vector {
		rec.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data))
		data = data[4:]
	}

	if len(data) < 4 {
		return rec, ErrShortBuffer
	}
	contentLen := binary.LittleEndian.Uint32(data)
	data = data[4:]

	if uint64(len(data)) < uint64(contentLen) {
		return rec, ErrShortBuffer
	}
	content := data[:contentLen]
	data = data[contentLen:]

	if flags&FlagContentLZ4 != 0 {
		raw, err := decompressContent(content)
		if err != nil {
			return rec, err
		}
		rec.Content = string(raw)
	} else {
		rec.Content = string(content)
	}

	if flags&FlagHasMetadata != 0 {
		if len(data) < 4 {
			return rec, ErrShortBuffer
		}
		metaLen := binary.LittleEndian.Uint32(data)
		data = data[4:]

		if uint64(len(data)) < uint64(metaLen) {
			return rec, ErrShortBuffer
		}
		var doc metadata.Document
		if err := doc.UnmarshalBinary(data[:metaLen]); err != nil {
			return rec, fmt.Errorf("decode metadata: %w", err)
		}
		rec.Metadata = doc
		data = data[metaLen:]
	}

	if len(data) != 0 {
		return rec, ErrTrailingBytes
	}

	return rec, nil
}

// compressContent returns the LZ4 block form of src, prefixed with the raw
// length. Returns ok=false when compression does not shrink the content.
func compressContent(src []byte) ([]byte, bool) {
	var c lz4.Compressor

	dst := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(dst, uint32(len(src)))

	n, err := c.CompressBlock(src, dst[4:])
	if err != nil || n == 0 || 4+n >= len(src) {
		return nil, false
	}

	return dst[:4+n], true
}

func decompressContent(stored []byte) ([]byte, error) {
	if len(stored) < 4 {
		return nil, ErrShortBuffer
	}

	rawLen := binary.LittleEndian.Uint32(stored)
	raw := make([]byte, rawLen)

	n, err := lz4.UncompressBlock(stored[4:], raw)
	if err != nil {
		return nil, fmt.Errorf("lz4 content: %w", err)
	}
	if uint32(n) != rawLen {
		return nil, fmt.Errorf("lz4 content: decompressed %d bytes, expected %d", n, rawLen)
	}

	return raw, nil
}
