// Package index implements the Sharded Index: a concurrent mapping from
// key to directory entry, partitioned into a fixed number of independently
// lock-protected shards.
package index

import "hash/fnv"

// Index partitions the key space across N shards chosen at construction.
// Shard ownership of a key is determined by FNV1a-32(key) mod N: the hash
// function and modulus are part of the contract because they fix lock
// partitioning, not correctness.
type Index struct {
	shards []*shard
}

// New builds an Index with numShards partitions. numShards must be positive;
// it need not be a power of two.
func New(numShards int) *Index {
	if numShards <= 0 {
		numShards = 1
	}
	shards := make([]*shard, numShards)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Index{shards: shards}
}

func (ix *Index) shardFor(key []byte) *shard {
	h := fnv.New32a()
	h.Write(key)
	return ix.shards[h.Sum32()%uint32(len(ix.shards))]
}

// Put inserts or overwrites key's directory entry.
func (ix *Index) Put(key []byte, e Entry) {
	ix.shardFor(key).put(string(key), e)
}

// Get returns a copy of key's directory entry, or ok=false if absent.
func (ix *Index) Get(key []byte) (Entry, bool) {
	return ix.shardFor(key).get(string(key))
}

// Remove deletes key's entry and reports whether one was present.
func (ix *Index) Remove(key []byte) bool {
	return ix.shardFor(key).remove(string(key))
}

// CompareAndSwap overwrites key's entry with next only if its current
// entry still equals expect.
func (ix *Index) CompareAndSwap(key string, expect, next Entry) bool {
	return ix.shardFor([]byte(key)).compareAndSwap(key, expect, next)
}

// Count sums per-shard counts, acquiring each shard's lock in turn. Exact
// if there are no concurrent mutations; merely approximate otherwise, since
// it is not linearizable across shards.
func (ix *Index) Count() int {
	total := 0
	for _, s := range ix.shards {
		total += s.count()
	}
	return total
}

// ForEach snapshots every shard's entries, one shard at a time without
// holding any lock for longer than the snapshot copy, then calls fn for
// each (key, entry) pair across all shards.
func (ix *Index) ForEach(fn func(key string, e Entry)) {
	for _, s := range ix.shards {
		for k, e := range s.snapshot() {
			fn(k, e)
		}
	}
}

// NumShards reports how many partitions this index was built with.
func (ix *Index) NumShards() int {
	return len(ix.shards)
}

// Teardown drops every shard's mapping. Go's garbage collector reclaims the
// owned key copies once they are unreachable, so this is just the
// acquire-lock-and-drop-the-mapping half of the contract; there is no
// explicit free step.
func (ix *Index) Teardown() {
	for _, s := range ix.shards {
		s.mu.Lock()
		s.entries = make(map[string]Entry)
		s.mu.Unlock()
	}
}
