package engine

import (
	"fmt"

	"bitcaskd/internal/index"
	"bitcaskd/internal/segment"
)

// Compact rewrites every sealed segment's live records into a fresh run of
// segments, then swaps the index over to point at them and removes the old
// segments. It never blocks readers or writers for the expensive rewrite
// phase: the engine's write lock is taken only to snapshot which keys are
// being compacted, and again to swap the index and delete old files.
//
// Concurrent Compact calls are serialized against each other; they are not
// serialized against Put/Get/Remove beyond the two brief lock windows
// described above.
func (e *Engine) Compact() error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.compactMu.Lock()
	defer e.compactMu.Unlock()

	sealed, err := e.sealedSegmentsLocked()
	if err != nil {
		return err
	}
	if len(sealed) < 2 {
		return nil
	}

	sealedIDs := make(map[uint32]bool, len(sealed))
	for _, s := range sealed {
		sealedIDs[s.ID] = true
	}

	// Snapshot which keys currently point at a segment being compacted.
	var toCompact []snapshotEntry
	e.mu.Lock()
	e.idx.ForEach(func(key string, ent index.Entry) {
		if sealedIDs[ent.SegmentID] {
			toCompact = append(toCompact, snapshotEntry{key: key, entry: ent})
		}
	})
	e.mu.Unlock()

	if len(toCompact) == 0 {
		return e.dropEmptySealedSegments(sealed)
	}

	// Rewrite phase: no engine lock held. The sealed segments being read
	// here are immutable until this same Compact call deletes them below,
	// and a second concurrent Compact cannot run because of compactMu.
	newSegments, replacement, err := e.rewrite(sealed, toCompact)
	if err != nil {
		return err
	}

	return e.applyCompaction(sealed, newSegments, replacement, toCompact)
}

// sealedSegmentsLocked returns every open segment other than the active one.
func (e *Engine) sealedSegmentsLocked() ([]*segment.Segment, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sealed := make([]*segment.Segment, 0, len(e.segments))
	for id, s := range e.segments {
		if id != e.activeID {
			sealed = append(sealed, s)
		}
	}
	return sealed, nil
}

// snapshotEntry is one (key, entry) pair captured while deciding which
// keys currently point at a segment being compacted.
type snapshotEntry struct {
	key   string
	entry index.Entry
}

type compactedValue struct {
	key   string
	value []byte
}

// rewrite reads the live value for every snapshotted key and appends it to a
// fresh run of segments, allocated above the current maximum id so they
// never collide with a concurrently-rolled-over active segment. It runs with
// no engine lock held: the sealed segments it reads from are immutable
// until this same Compact call deletes them, and compactMu keeps a second
// concurrent Compact from starting.
func (e *Engine) rewrite(sealed []*segment.Segment, toCompact []snapshotEntry) ([]*segment.Segment, map[string]index.Entry, error) {
	bySegment := make(map[uint32]*segment.Segment, len(sealed))
	for _, s := range sealed {
		bySegment[s.ID] = s
	}

	values := make([]compactedValue, 0, len(toCompact))
	for _, item := range toCompact {
		s, ok := bySegment[item.entry.SegmentID]
		if !ok {
			return nil, nil, fmt.Errorf("engine: compaction: %w", ErrSegmentNotFound)
		}
		v, err := s.ReadValue(item.entry.ValueOffset, item.entry.ValueSize)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: compaction read %q: %w", item.key, err)
		}
		values = append(values, compactedValue{key: item.key, value: v})
	}

	nextID := e.nextCompactionID()

	var newSegments []*segment.Segment
	replacement := make(map[string]index.Entry, len(values))

	var cur *segment.Segment
	for _, cv := range values {
		if cur == nil || cur.IsFull() {
			seg, err := segment.OpenOrCreate(e.dir, nextID, e.cfg.MaxLogFileSize)
			if err != nil {
				return nil, nil, fmt.Errorf("engine: compaction: open segment %d: %w", nextID, err)
			}
			nextID++
			newSegments = append(newSegments, seg)
			cur = seg
		}

		_, valueOffset, err := cur.WriteItem([]byte(cv.key), cv.value)
		if err != nil {
			return nil, nil, fmt.Errorf("engine: compaction: write %q: %w", cv.key, err)
		}

		replacement[cv.key] = index.Entry{
			SegmentID:   cur.ID,
			ValueOffset: valueOffset,
			ValueSize:   int64(len(cv.value)),
		}
	}

	return newSegments, replacement, nil
}

// nextCompactionID returns the first id strictly above every id the engine
// currently knows about, so compaction output never collides with a
// concurrently-rolled-over active segment.
func (e *Engine) nextCompactionID() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	highest := e.activeID
	for id := range e.segments {
		if id > highest {
			highest = id
		}
	}
	return highest + 1
}

// applyCompaction swaps the index over to the new segments and removes the
// old ones, but only for keys whose index entry still points at a
// compacted segment (i.e. no newer Put/Remove arrived since the snapshot).
// A key that raced a concurrent write keeps its newer entry; if that
// entry's segment is one being compacted, the segment is retained rather
// than deleted, and a warning is logged, since deleting it would orphan a
// live pointer.
func (e *Engine) applyCompaction(sealed []*segment.Segment, newSegments []*segment.Segment, replacement map[string]index.Entry, snapshot []snapshotEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	retained := make(map[uint32]bool)
	for _, item := range snapshot {
		next, ok := replacement[item.key]
		if !ok {
			// rewrite produces a replacement for every snapshotted key, so
			// this is not reached in practice. A key tombstoned between
			// snapshot and swap has no index entry, fails the
			// CompareAndSwap below, and is not resurrected.
			continue
		}
		if !e.idx.CompareAndSwap(item.key, item.entry, next) {
			log.WithField("key", item.key).Warn("compaction: key was rewritten after snapshot, keeping newer entry and retaining its segment")
			if cur, ok := e.idx.Get([]byte(item.key)); ok {
				retained[cur.SegmentID] = true
			}
		}
	}

	for _, s := range newSegments {
		e.segments[s.ID] = s
	}

	var firstErr error
	for _, s := range sealed {
		if retained[s.ID] {
			continue
		}
		delete(e.segments, s.ID)
		if err := s.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	e.stats.compactCount.Add(1)
	log.WithFields(map[string]interface{}{
		"compacted": len(sealed) - len(retained),
		"retained":  len(retained),
		"new":       len(newSegments),
	}).Info("compaction complete")

	return firstErr
}

// dropEmptySealedSegments removes sealed segments that hold no live keys at
// all — no rewrite is needed, just deletion.
func (e *Engine) dropEmptySealedSegments(sealed []*segment.Segment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, s := range sealed {
		delete(e.segments, s.ID)
		if err := s.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.stats.compactCount.Add(1)
	return firstErr
}
