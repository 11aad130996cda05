// Package engine implements the Storage Engine: the public façade that
// drives open/recovery, routes writes to the active segment, resolves
// reads through the sharded index, and performs segment rollover and
// compaction.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"bitcaskd/internal/config"
	"bitcaskd/internal/dirlock"
	"bitcaskd/internal/index"
	"bitcaskd/internal/logging"
	"bitcaskd/internal/segment"
	"bitcaskd/util/file"
)

var log = logging.For("engine")

const metaFileName = ".meta"

// Engine owns the set of open segments, the sharded index, the id of the
// active (writable) segment, and engine-wide configuration.
type Engine struct {
	dir string
	cfg config.Config

	idx *index.Index

	// mu serializes the write/rollover/compaction-swap path and guards the
	// segments map and activeID. Readers take it for shared access so a
	// segment can never be removed out from under an in-flight read.
	mu       sync.RWMutex
	segments map[uint32]*segment.Segment
	activeID uint32

	compactMu sync.Mutex

	lock *dirlock.Lock

	closed atomic.Bool

	stats engineStats
}

type engineStats struct {
	writeCount   atomic.Int64
	readCount    atomic.Int64
	compactCount atomic.Int64
}

// Stats is a snapshot of engine-level counters and sizes, reported the way
// the wider storage-engine family in this pack reports them.
type Stats struct {
	NumKeys       int
	NumSegments   int
	ActiveSegSize int64
	TotalDiskSize int64
	WriteCount    int64
	ReadCount     int64
	CompactCount  int64
}

// Open opens (and, if necessary, initializes) a database directory.
func Open(dir string, cfg config.Config) (*Engine, error) {
	if cfg.NumShards <= 0 {
		return nil, fmt.Errorf("engine: NumShards must be positive")
	}
	if cfg.MaxLogFileSize <= 0 {
		return nil, fmt.Errorf("engine: MaxLogFileSize must be positive")
	}

	if err := file.EnsureDir(dir, false); err != nil {
		return nil, fmt.Errorf("engine: create directory %s: %w", dir, err)
	}

	lk, ok, err := dirlock.Acquire(dir)
	if err != nil {
		return nil, fmt.Errorf("engine: acquire lock on %s: %w", dir, err)
	}
	if !ok {
		return nil, ErrAlreadyLocked
	}

	e := &Engine{
		dir:      dir,
		cfg:      cfg,
		idx:      index.New(cfg.NumShards),
		segments: make(map[uint32]*segment.Segment),
		lock:     lk,
	}

	ids, err := discoverSegmentIDs(dir)
	if err != nil {
		lk.Release()
		return nil, err
	}

	if err := e.recover(ids); err != nil {
		lk.Release()
		for _, s := range e.segments {
			s.Close()
		}
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"dir":      dir,
		"segments": len(e.segments),
		"active":   e.activeID,
	}).Info("engine opened")

	return e, nil
}

// discoverSegmentIDs enumerates a database directory, parsing every
// filename that is not the lock or metadata file as a decimal segment id.
func discoverSegmentIDs(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("engine: read directory %s: %w", dir, err)
	}

	var ids []uint32
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if name == ".lock" || name == metaFileName {
			continue
		}
		id, err := segment.ParseID(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCorruptDir, filepath.Join(dir, name))
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return []uint32{0}, nil
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Put appends a record for key/value to the active segment and updates the
// index. The record is durable on disk before the index is updated: a
// crash between the two loses the index update but not the record, and the
// next Open recomputes the index from the log.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if segment.IsReserved(value) {
		return ErrValueReserved
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, _, err := e.appendLocked(key, value)
	if err != nil {
		return err
	}

	e.stats.writeCount.Add(1)
	return nil
}

// appendLocked rolls over if needed, appends the record, and updates the
// index. Callers must hold e.mu for writing.
func (e *Engine) appendLocked(key, value []byte) (itemOffset, valueOffset int64, err error) {
	active := e.segments[e.activeID]
	if active.IsFull() {
		if err := e.rolloverLocked(); err != nil {
			return 0, 0, err
		}
		active = e.segments[e.activeID]
	}

	itemOffset, valueOffset, err = active.WriteItem(key, value)
	if err != nil {
		return 0, 0, err
	}

	e.idx.Put(key, index.Entry{
		SegmentID:   e.activeID,
		ValueOffset: valueOffset,
		ValueSize:   int64(len(value)),
	})

	return itemOffset, valueOffset, nil
}

// rolloverLocked seals the active segment and opens its successor. Callers
// must hold e.mu for writing.
func (e *Engine) rolloverLocked() error {
	nextID := e.activeID + 1

	seg, err := segment.OpenOrCreate(e.dir, nextID, e.cfg.MaxLogFileSize)
	if err != nil {
		return fmt.Errorf("engine: rollover to segment %d: %w", nextID, err)
	}
	if e.cfg.Preallocate {
		seg.Preallocate(e.cfg.MaxLogFileSize)
	}

	e.segments[nextID] = seg
	e.activeID = nextID

	log.WithField("segment", nextID).Info("rolled over to new active segment")
	return nil
}

// Get looks up key in the index and, if present, reads its value from the
// segment the index points at. The read is taken under the engine's
// shared lock so a segment can never be deleted by compaction out from
// under an in-flight read.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrClosed
	}
	if len(key) == 0 {
		return nil, false, ErrKeyEmpty
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.idx.Get(key)
	if !ok {
		return nil, false, nil
	}

	seg, ok := e.segments[entry.SegmentID]
	if !ok {
		return nil, false, ErrSegmentNotFound
	}

	value, err := seg.ReadValue(entry.ValueOffset, entry.ValueSize)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, fmt.Errorf("%w: %v", ErrShortRead, err)
		}
		return nil, false, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	e.stats.readCount.Add(1)
	return value, true, nil
}

// Remove appends a tombstone for key and removes it from the index. The
// tombstone is durable before the index forgets the key.
func (e *Engine) Remove(key []byte) (bool, error) {
	if e.closed.Load() {
		return false, ErrClosed
	}
	if len(key) == 0 {
		return false, ErrKeyEmpty
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.idx.Get(key); !ok {
		return false, nil
	}

	if _, _, err := e.writeTombstoneLocked(key); err != nil {
		return false, err
	}

	e.idx.Remove(key)
	e.stats.writeCount.Add(1)
	return true, nil
}

func (e *Engine) writeTombstoneLocked(key []byte) (itemOffset, valueOffset int64, err error) {
	active := e.segments[e.activeID]
	if active.IsFull() {
		if err := e.rolloverLocked(); err != nil {
			return 0, 0, err
		}
		active = e.segments[e.activeID]
	}
	return active.WriteItem(key, segment.Tombstone)
}

// Close tears down the index, flushes and closes every open segment, and
// releases the directory lock. A closed Engine rejects further Put/Get/Remove with
// ErrClosed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.idx.Teardown()

	var firstErr error
	for _, s := range e.segments {
		if err := s.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := e.lock.Release(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Stats reports a snapshot of engine counters and sizes.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := e.segments[e.activeID]
	var activeSize int64
	if active != nil {
		activeSize = active.WriteCursor()
	}

	var total int64
	for _, s := range e.segments {
		total += s.WriteCursor()
	}

	return Stats{
		NumKeys:       e.idx.Count(),
		NumSegments:   len(e.segments),
		ActiveSegSize: activeSize,
		TotalDiskSize: total,
		WriteCount:    e.stats.writeCount.Load(),
		ReadCount:     e.stats.readCount.Load(),
		CompactCount:  e.stats.compactCount.Load(),
	}
}
