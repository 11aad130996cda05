package segment

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the two little-endian uint32 length prefixes: key_size, value_size.
const headerSize = 8

// Tombstone is the reserved value that marks a key as deleted. Callers must
// never pass this as a real value to Put; the engine rejects it.
var Tombstone = []byte("\x00bitcaskd/tombstone\x00")

// reserved is a second sentinel value reserved for future protocol use
// (e.g. a value-format version marker). Only IsReserved inspects it, so
// that Put rejects it and callers cannot accidentally collide with a future
// use.
var reserved = []byte("\x00bitcaskd/reserved\x00")

// IsTombstone reports whether value is the reserved deletion marker.
func IsTombstone(value []byte) bool {
	return string(value) == string(Tombstone)
}

// IsReserved reports whether value collides with either sentinel.
func IsReserved(value []byte) bool {
	return string(value) == string(Tombstone) || string(value) == string(reserved)
}

// encode lays out a record as: key_size(4) value_size(4) key value, all
// length prefixes little-endian, no padding, no checksum, no type tag.
func encode(key, value []byte) []byte {
	buf := make([]byte, headerSize+len(key)+len(value))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(value)))
	copy(buf[headerSize:], key)
	copy(buf[headerSize+len(key):], value)
	return buf
}

// decodeHeader reads the two length prefixes from a buffer of at least headerSize bytes.
func decodeHeader(b []byte) (keySize, valueSize uint32, err error) {
	if len(b) < headerSize {
		return 0, 0, fmt.Errorf("segment: short header: have %d bytes, need %d", len(b), headerSize)
	}
	keySize = binary.LittleEndian.Uint32(b[0:4])
	valueSize = binary.LittleEndian.Uint32(b[4:8])
	return keySize, valueSize, nil
}
