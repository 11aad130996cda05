// Package segment implements one append-only log file: the Log File
// component of the storage engine. A Segment owns a write handle, a read
// handle, and a write cursor, and enforces the on-disk record format.
package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"bitcaskd/internal/logging"
)

var log = logging.For("segment")

// nameWidth is the width of the zero-padded decimal segment id in its filename.
const nameWidth = 16

// exists reports whether path names an existing file, logging (but not
// failing on) any stat error other than not-found.
func exists(path string) bool {
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	log.WithError(err).WithField("path", path).Warn("stat failed")
	return false
}

// FileName returns the on-disk filename for a segment id.
func FileName(id uint32) string {
	return fmt.Sprintf("%0*d", nameWidth, id)
}

// ParseID parses a segment filename back into its id. It fails on anything
// that is not an exact decimal integer, matching the engine's
// CorruptDirectory contract for unrecognized files.
func ParseID(name string) (uint32, error) {
	v, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Segment is one immutable-once-sealed append-only log file.
type Segment struct {
	ID      uint32
	path    string
	maxSize int64

	writeFile *os.File
	readFile  *os.File

	cursor atomic.Int64
}

// OpenOrCreate resolves id's filename under dir, opening it read-write if it
// exists or creating it otherwise. The write cursor starts at zero; callers
// that are replaying an existing segment must call SetWriteCursor afterward.
func OpenOrCreate(dir string, id uint32, maxSize int64) (*Segment, error) {
	path := filepath.Join(dir, FileName(id))
	existed := exists(path)

	wf, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s for write: %w", path, err)
	}

	rf, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		wf.Close()
		return nil, fmt.Errorf("segment: open %s for read: %w", path, err)
	}

	log.WithFields(map[string]interface{}{"segment": id, "reopened": existed}).Debug("segment opened")

	return &Segment{
		ID:        id,
		path:      path,
		maxSize:   maxSize,
		writeFile: wf,
		readFile:  rf,
	}, nil
}

// WriteCursor returns the current logical end of the segment.
func (s *Segment) WriteCursor() int64 {
	return s.cursor.Load()
}

// SetWriteCursor is used by the engine after replaying the segment at open.
func (s *Segment) SetWriteCursor(pos int64) {
	s.cursor.Store(pos)
}

// IsFull reports whether the write cursor has reached or passed maxSize.
// This is a soft bound: a single WriteItem may push the cursor past
// maxSize, since fullness is checked before writing, not after.
func (s *Segment) IsFull() bool {
	return s.cursor.Load() >= s.maxSize
}

// WriteItem writes one record at the tracked write cursor and fsyncs before
// returning, per the engine's durability contract. On any I/O error the
// write cursor is left unchanged. The write lands at the tracked cursor via
// WriteAt rather than relying on the file's actual end-of-file, because
// after recovery the cursor can sit before a torn tail left over from a
// crashed write; the next WriteItem must overwrite that garbage in place,
// not append past it.
func (s *Segment) WriteItem(key, value []byte) (itemOffset, valueOffset int64, err error) {
	before := s.cursor.Load()
	buf := encode(key, value)

	n, err := s.writeFile.WriteAt(buf, before)
	if err != nil {
		return 0, 0, fmt.Errorf("segment: write item to %s: %w", s.path, err)
	}
	if n != len(buf) {
		return 0, 0, fmt.Errorf("segment: short write to %s: wrote %d of %d bytes", s.path, n, len(buf))
	}

	if err := s.writeFile.Sync(); err != nil {
		return 0, 0, fmt.Errorf("segment: fsync %s: %w", s.path, err)
	}

	itemOffset = before
	valueOffset = before + headerSize + int64(len(key))
	s.cursor.Store(before + int64(len(buf)))
	return itemOffset, valueOffset, nil
}

// ReadValue reads exactly size bytes at offset into a freshly allocated
// buffer. A read that comes up short because it ran into EOF is reported as
// io.EOF/io.ErrUnexpectedEOF (wrapped with enough context to locate it) so
// callers can tell that apart from an unrelated filesystem failure such as
// a permission error or a disk I/O error.
func (s *Segment) ReadValue(offset int64, size int64) ([]byte, error) {
	buf := make([]byte, size)
	n, err := s.readFile.ReadAt(buf, offset)
	if err != nil && n < len(buf) {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("segment: short read in %s at %d (%d of %d bytes): %w", s.path, offset, n, len(buf), err)
		}
		return nil, fmt.Errorf("segment: read %s at %d: %w", s.path, offset, err)
	}
	return buf, nil
}

// Item is one fully decoded log record plus its position.
type Item struct {
	Key         []byte
	Value       []byte
	ItemOffset  int64
	ValueOffset int64
}

// ReadItem reads the two length prefixes, then the key and value, starting
// at itemOffset.
func (s *Segment) ReadItem(itemOffset int64) (Item, error) {
	header := make([]byte, headerSize)
	if _, err := s.readFile.ReadAt(header, itemOffset); err != nil {
		return Item{}, fmt.Errorf("segment: read header in %s at %d: %w", s.path, itemOffset, err)
	}

	keySize, valueSize, err := decodeHeader(header)
	if err != nil {
		return Item{}, err
	}

	rest := make([]byte, int64(keySize)+int64(valueSize))
	if _, err := s.readFile.ReadAt(rest, itemOffset+headerSize); err != nil {
		return Item{}, fmt.Errorf("segment: read body in %s at %d: %w", s.path, itemOffset, err)
	}

	return Item{
		Key:         rest[:keySize],
		Value:       rest[keySize:],
		ItemOffset:  itemOffset,
		ValueOffset: itemOffset + headerSize + int64(keySize),
	}, nil
}

// Sync fsyncs the write handle. WriteItem already does this per record;
// Engine.Close calls it for a final flush before closing each segment.
func (s *Segment) Sync() error {
	if err := s.writeFile.Sync(); err != nil {
		return fmt.Errorf("segment: sync %s: %w", s.path, err)
	}
	return nil
}

// Preallocate best-effort extends the file to size bytes without moving the
// logical write cursor. Failures are logged and swallowed: an unsupported
// filesystem must never fail segment creation.
func (s *Segment) Preallocate(size int64) {
	if err := preallocate(s.writeFile, size); err != nil {
		log.WithError(err).WithField("segment", s.ID).Warn("preallocate failed, continuing without it")
	}
}

// Close releases both file handles.
func (s *Segment) Close() error {
	werr := s.writeFile.Close()
	rerr := s.readFile.Close()
	if werr != nil {
		return fmt.Errorf("segment: close write handle for %s: %w", s.path, werr)
	}
	if rerr != nil {
		return fmt.Errorf("segment: close read handle for %s: %w", s.path, rerr)
	}
	return nil
}

// Remove closes and deletes the segment's file. Used only by compaction
// once no index entry references it any longer.
func (s *Segment) Remove() error {
	_ = s.Close()
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("segment: remove %s: %w", s.path, err)
	}
	return nil
}
