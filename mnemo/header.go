package mnemo

import (
	"encoding/binary"
	"fmt"
)

// encodeHeader builds the 16-byte file header.
//
// Layout: magic [4]byte | version u16 | flags u16 | reserved [8]byte.
func encodeHeader() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], logVersion)
	// buf[6:8] flags, buf[8:16] reserved
	return buf
}

// parseHeader validates the first HeaderSize bytes of a log file.
func parseHeader(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: file too small (%d < %d)", ErrInvalidHeader, len(buf), HeaderSize)
	}
	if [4]byte(buf[0:4]) != headerMagic {
		return fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, buf[0:4])
	}

	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != logVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrIncompatibleVersion, version, logVersion)
	}

	return nil
}
