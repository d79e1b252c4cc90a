// Package mmap provides read-only memory-mapped file access.
//
// Memory mapping allows direct access to file contents without copying data
// through kernel buffers, which keeps full log scans cheap even for large
// logs.
//
// # Usage
//
//	m, err := mmap.Open("engram.log")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with a sequential madvise(2) hint
//   - Windows: CreateFileMapping/MapViewOfFile (no access hint)
//
// Callers must ensure no goroutine touches Bytes() after Close() returns.
package mmap
