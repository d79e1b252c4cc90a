// Package mnemo implements the append-only binary log that owns every
// durable byte of a database.
//
// The log is a sequence of checksummed frames behind a fixed 16-byte file
// header. Appends are serialized, crash-safe up to the configured
// durability mode, and never rewrite earlier bytes. On open the log scans
// itself once: complete checksum-valid frames are kept, a torn final frame
// (the crash-tail case) is physically truncated, and any other corruption
// refuses the open.
//
// Frame layout (little-endian):
//
//	sync  u32  0xFAFAFAFA
//	len   u32  payload length
//	payload
//	crc32 u32  IEEE, over payload only
//
// Durability modes:
//
//   - DurabilitySync (default): fsync before Append returns.
//   - DurabilityGroupCommit: appends block until a batched fsync covers
//     them; an interval ticker or a pending-append threshold triggers the
//     fsync.
//   - DurabilityAsync: no fsync; the OS page cache decides.
package mnemo
