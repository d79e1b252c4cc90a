// Package record defines the memory record and its binary codec.
//
// A record is the unit the append log persists: content, metadata, the
// embedding vector, and bookkeeping (id, timestamp, optional expiry).
// Encode and Decode are exact inverses; the log stores the encoded payload
// inside a checksummed frame.
package record

import (
	"time"

	"github.com/hupe1980/engram/metadata"
)

// Record is a single stored memory.
type Record struct {
	// ID is the log-assigned identifier. IDs start at 1 and never repeat
	// within one database.
	ID uint64

	// Content is the remembered text.
	Content string

	// Metadata carries optional typed tags.
	Metadata metadata.Document

	// Vector is the embedding, exactly the dimension the database was
	// created with.
	Vector []float32

	// Timestamp is the append time in Unix nanoseconds.
	Timestamp int64

	// ExpiresAt is the expiry time in Unix nanoseconds. Zero means the
	// record never expires.
	ExpiresAt int64
}

// Expired reports whether the record's TTL has passed at now (Unix nanos).
func (r Record) Expired(now int64) bool {
	return r.ExpiresAt != 0 && now >= r.ExpiresAt
}

// ExpiresIn is a convenience over ExpiresAt for callers holding a duration.
func (r *Record) ExpiresIn(d time.Duration) {
	if d <= 0 {
		r.ExpiresAt = 0
		return
	}
	r.ExpiresAt = r.Timestamp + d.Nanoseconds()
}
