// Package meta provides the process-local partition metadata cache.
package meta

import (
	"time"

	"github.com/granarydb/granary/pkg/types"
)

// Prober is the minimal partition store surface the cache needs to
// populate itself on a miss: a filesystem existence check and a
// header-only read of the first row.
type Prober interface {
	Exists(idx int) (bool, error)
	ReadHeader(idx int) (types.Header, error)
}

// Entry holds cached metadata for one partition.
type Entry struct {
	Exists       bool
	Header       types.Header
	ApproxRows   int
	LastAccessed time.Time
}

// Cache is a read-through memoization of per-partition metadata with
// explicit invalidation. It is populated lazily on first touch of a
// partition and updated in the same call as every mutating file
// operation, so it never claims a partition exists when the file does
// not. Entries live for the lifetime of the owning warehouse; there is
// no cross-process sharing.
//
// The cache never performs destructive file operations itself; all
// mutation notifications originate from the warehouse engine.
type Cache struct {
	prober  Prober
	entries map[int]*Entry
	now     func() time.Time
}

// NewCache creates an empty cache backed by the given prober.
func NewCache(prober Prober) *Cache {
	return &Cache{
		prober:  prober,
		entries: make(map[int]*Entry),
		now:     time.Now,
	}
}

// Exists reports whether the partition exists, from cache if possible,
// otherwise via a filesystem check whose result is stored.
func (c *Cache) Exists(idx int) (bool, error) {
	if e, ok := c.entries[idx]; ok {
		e.LastAccessed = c.now()
		return e.Exists, nil
	}
	exists, err := c.prober.Exists(idx)
	if err != nil {
		return false, err
	}
	c.entries[idx] = &Entry{Exists: exists, LastAccessed: c.now()}
	return exists, nil
}

// Header returns the partition's column header, from cache if possible,
// otherwise by reading only the partition file's first row. Returns
// ErrNotFound if the partition does not exist.
func (c *Cache) Header(idx int) (types.Header, error) {
	if e, ok := c.entries[idx]; ok && e.Header != nil {
		e.LastAccessed = c.now()
		return e.Header, nil
	}
	header, err := c.prober.ReadHeader(idx)
	if err != nil {
		return nil, err
	}
	e, ok := c.entries[idx]
	if !ok {
		e = &Entry{}
		c.entries[idx] = e
	}
	e.Exists = true
	e.Header = header
	e.LastAccessed = c.now()
	return header, nil
}

// RecordWrite notes an append or rewrite of the partition: the partition
// now exists, its header is current, and its approximate row count moves
// by delta.
func (c *Cache) RecordWrite(idx int, header types.Header, delta int) {
	e, ok := c.entries[idx]
	if !ok {
		e = &Entry{}
		c.entries[idx] = e
	}
	e.Exists = true
	e.Header = header
	e.ApproxRows += delta
	if e.ApproxRows < 0 {
		e.ApproxRows = 0
	}
	e.LastAccessed = c.now()
}

// RecordDelete notes a rewrite that removed rows. If the rewrite emptied
// the partition and its file was removed, the entry is cleared; the
// cached header is dropped with it so a later schema-establishing write
// repopulates it.
func (c *Cache) RecordDelete(idx int, removed bool, remaining int) {
	if removed {
		c.entries[idx] = &Entry{Exists: false, LastAccessed: c.now()}
		return
	}
	e, ok := c.entries[idx]
	if !ok {
		e = &Entry{}
		c.entries[idx] = e
	}
	e.Exists = true
	e.ApproxRows = remaining
	e.LastAccessed = c.now()
}

// Invalidate drops the cached entry for a partition, forcing the next
// touch to consult the filesystem.
func (c *Cache) Invalidate(idx int) {
	delete(c.entries, idx)
}

// Snapshot returns a copy of all cached entries, keyed by partition
// index. Used by tests and by the stats reporter.
func (c *Cache) Snapshot() map[int]Entry {
	out := make(map[int]Entry, len(c.entries))
	for idx, e := range c.entries {
		copied := *e
		copied.Header = e.Header.Clone()
		out[idx] = copied
	}
	return out
}
