package warehouse

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/internal/config"
	"github.com/granarydb/granary/internal/meta"
	"github.com/granarydb/granary/internal/observability"
	"github.com/granarydb/granary/internal/partition"
	"github.com/granarydb/granary/pkg/types"
)

var _ Warehouse = (*Engine)(nil)

// Engine is the partitioned warehouse. Records are assigned to one of a
// fixed set of partitions by hashing the partition key, so operations on
// the key touch only the partitions that could contain a match.
//
// The engine assumes single-writer, single-process access; concurrent
// callers within a process must serialize externally. Scans across
// multiple partitions are not snapshots: a query scanning partitions A
// then B observes mutations to B committed between the two scans.
type Engine struct {
	store        *partition.Store
	cache        *meta.Cache
	stats        *observability.OpStats
	count        int
	header       types.Header
	manifestPath string
	manifest     *Manifest
}

// Open constructs a warehouse engine from configuration. On a fresh
// directory the partition count is computed from expected_rows and
// partition_size; on an existing dataset the persisted manifest pins the
// layout and the established schema, and a conflicting configuration is
// rejected because re-partitioning is not supported.
func Open(cfg *config.Config) (*Engine, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("warehouse: %v: %w", err, types.ErrInvalidArgument)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("warehouse: %v: %w", err, types.ErrIOFailure)
	}

	comp := codec.Compression(cfg.Compression)
	count := cfg.PartitionCount()

	m, err := LoadManifest(cfg.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("warehouse: %w", err)
	}

	var header types.Header
	if m != nil {
		if m.PartitionCount != count {
			return nil, fmt.Errorf("warehouse: dataset has %d partitions but configuration implies %d; re-partitioning is not supported: %w",
				m.PartitionCount, count, types.ErrInvalidArgument)
		}
		if m.Compression != cfg.Compression {
			return nil, fmt.Errorf("warehouse: dataset uses %q compression but configuration says %q: %w",
				m.Compression, cfg.Compression, types.ErrInvalidArgument)
		}
		if len(m.Header) > 0 {
			header = m.Header.Clone()
		}
	} else {
		m = &Manifest{
			PartitionCount: count,
			PartitionSize:  cfg.PartitionSize,
			Compression:    cfg.Compression,
		}
	}

	store := partition.NewStore(cfg.PartitionDir, comp)
	return &Engine{
		store:        store,
		cache:        meta.NewCache(store),
		stats:        observability.NewOpStats(),
		count:        count,
		header:       header,
		manifestPath: cfg.ManifestPath(),
		manifest:     m,
	}, nil
}

// PartitionCount returns the fixed number of partitions.
func (e *Engine) PartitionCount() int {
	return e.count
}

// Header returns the established dataset schema, or nil before the first
// add.
func (e *Engine) Header() types.Header {
	if e.header == nil {
		return nil
	}
	return e.header.Clone()
}

// Stats returns the engine's operation statistics tracker.
func (e *Engine) Stats() *observability.OpStats {
	return e.stats
}

// CacheSnapshot returns a copy of the partition metadata cache, keyed by
// partition index.
func (e *Engine) CacheSnapshot() map[int]meta.Entry {
	return e.cache.Snapshot()
}

// AddData appends one record to the partition its key hashes to. No
// existing data is read, so the I/O cost is one append.
func (e *Engine) AddData(data types.Record) error {
	start := time.Now()

	if len(data) == 0 {
		return fmt.Errorf("warehouse: add requires a non-empty record: %w", types.ErrInvalidArgument)
	}
	keyValue, ok := data[types.KeyColumn]
	if !ok {
		return fmt.Errorf("warehouse: add requires the %q field: %w", types.KeyColumn, types.ErrInvalidArgument)
	}

	establishing := e.header == nil
	if establishing {
		e.header = types.HeaderFor(data)
	} else if !e.header.Matches(data) {
		return fmt.Errorf("warehouse: record fields %v do not match schema %v: %w",
			data.Fields(), []string(e.header), types.ErrSchemaMismatch)
	}

	idx := partition.IndexOf(keyValue, e.count)
	if _, err := e.store.Append(idx, e.header, data); err != nil {
		if establishing {
			e.header = nil
		}
		return fmt.Errorf("warehouse: %w", err)
	}
	e.cache.RecordWrite(idx, e.header, 1)

	if establishing {
		e.manifest.Header = e.header.Clone()
		if err := e.manifest.Save(e.manifestPath); err != nil {
			return fmt.Errorf("warehouse: %w", err)
		}
	}

	e.stats.Record("add", 1, 1, time.Since(start))
	return nil
}

// QueryData returns every row whose keyColumn value is in keys. When
// keyColumn is the partition key, only the partitions the keys hash to
// are scanned; any other column carries no placement information, so
// every existing partition is scanned. Results are ordered by partition
// index, then file order within a partition.
//
// A corrupt partition does not abort the sweep: remaining partitions are
// still scanned, and the first corruption error is returned alongside
// what was collected.
func (e *Engine) QueryData(keyColumn string, keys []string) ([]types.Record, error) {
	start := time.Now()

	if keyColumn == "" {
		return nil, fmt.Errorf("warehouse: query requires a key column: %w", types.ErrInvalidArgument)
	}
	if e.header != nil && !e.header.Contains(keyColumn) {
		return nil, fmt.Errorf("warehouse: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}

	results := []types.Record{}
	if len(keys) == 0 {
		return results, nil
	}

	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	var scanErr error
	scanned := 0
	for _, idx := range e.candidates(keyColumn, keys) {
		exists, err := e.cache.Exists(idx)
		if err != nil {
			return results, fmt.Errorf("warehouse: %w", err)
		}
		if !exists {
			continue
		}

		matches, err := e.collectMatches(idx, keyColumn, keySet)
		if err != nil && scanErr == nil {
			scanErr = err
		}
		results = append(results, matches...)
		scanned++
	}

	e.stats.Record("query", len(results), scanned, time.Since(start))
	return results, scanErr
}

// UpdateData replaces fields of the first row whose keyColumn value
// matches keyValue, searching partitions in index order and stopping at
// the first match. Only the matched partition is rewritten. Returns
// ErrNotFound if no row matches anywhere.
func (e *Engine) UpdateData(keyColumn, keyValue string, updated types.Record) error {
	start := time.Now()

	if keyColumn == "" {
		return fmt.Errorf("warehouse: update requires a key column: %w", types.ErrInvalidArgument)
	}
	if len(updated) == 0 {
		return fmt.Errorf("warehouse: update requires at least one field: %w", types.ErrInvalidArgument)
	}
	if e.header == nil {
		return fmt.Errorf("warehouse: no row with %s=%q: %w", keyColumn, keyValue, types.ErrNotFound)
	}
	if !e.header.Contains(keyColumn) {
		return fmt.Errorf("warehouse: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}
	for field := range updated {
		if !e.header.Contains(field) {
			return fmt.Errorf("warehouse: field %q is not in the schema: %w", field, types.ErrSchemaMismatch)
		}
	}

	idx, found, err := e.findFirst(keyColumn, keyValue)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("warehouse: no row with %s=%q: %w", keyColumn, keyValue, types.ErrNotFound)
	}

	header, records, err := e.store.ReadAll(idx)
	if err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	for _, rec := range records {
		if rec[keyColumn] == keyValue {
			for field, value := range updated {
				rec[field] = value
			}
			break
		}
	}
	if _, err := e.store.RewriteAll(idx, header, records); err != nil {
		return fmt.Errorf("warehouse: %w", err)
	}
	e.cache.RecordWrite(idx, header, 0)

	e.stats.Record("update", 1, 1, time.Since(start))
	return nil
}

// DeleteData removes every row whose keyColumn value matches keyValue,
// across all partitions. Each partition is streamed first to detect a
// match, so partitions with no matching rows are never rewritten. A
// partition left empty has its file removed. Returns the number of rows
// removed; zero matches is not an error.
func (e *Engine) DeleteData(keyColumn, keyValue string) (int, error) {
	start := time.Now()

	if keyColumn == "" {
		return 0, fmt.Errorf("warehouse: delete requires a key column: %w", types.ErrInvalidArgument)
	}
	if e.header == nil {
		return 0, nil
	}
	if !e.header.Contains(keyColumn) {
		return 0, fmt.Errorf("warehouse: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}

	removedTotal := 0
	scanned := 0
	var scanErr error
	for idx := 0; idx < e.count; idx++ {
		exists, err := e.cache.Exists(idx)
		if err != nil {
			return removedTotal, fmt.Errorf("warehouse: %w", err)
		}
		if !exists {
			continue
		}
		scanned++

		matched, err := e.hasMatch(idx, keyColumn, keyValue)
		if err != nil {
			if scanErr == nil {
				scanErr = err
			}
			continue
		}
		if !matched {
			continue
		}

		header, records, err := e.store.ReadAll(idx)
		if err != nil {
			if scanErr == nil {
				scanErr = fmt.Errorf("warehouse: %w", err)
			}
			continue
		}
		kept := records[:0]
		for _, rec := range records {
			if rec[keyColumn] == keyValue {
				removedTotal++
				continue
			}
			kept = append(kept, rec)
		}

		removed, err := e.store.RewriteAll(idx, header, kept)
		if err != nil {
			return removedTotal, fmt.Errorf("warehouse: %w", err)
		}
		e.cache.RecordDelete(idx, removed, len(kept))
	}

	e.stats.Record("delete", removedTotal, scanned, time.Since(start))
	return removedTotal, scanErr
}

// candidates returns the partition indexes an operation on keyColumn
// must consider, in ascending order. The partition key prunes to the
// partitions its values hash to; every other column requires a full
// sweep.
func (e *Engine) candidates(keyColumn string, keys []string) []int {
	if keyColumn != types.KeyColumn {
		all := make([]int, e.count)
		for i := range all {
			all[i] = i
		}
		return all
	}

	seen := make(map[int]struct{}, len(keys))
	for _, k := range keys {
		seen[partition.IndexOf(k, e.count)] = struct{}{}
	}
	idxs := make([]int, 0, len(seen))
	for idx := range seen {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return idxs
}

// collectMatches streams one partition and returns every row whose
// keyColumn value is in keySet, in file order.
func (e *Engine) collectMatches(idx int, keyColumn string, keySet map[string]struct{}) ([]types.Record, error) {
	sc, err := e.store.Scan(idx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			// The cached existence bit was ahead of the filesystem;
			// resync and treat as empty.
			e.cache.Invalidate(idx)
			return nil, nil
		}
		return nil, fmt.Errorf("warehouse: %w", err)
	}
	defer sc.Close()

	var matches []types.Record
	for sc.Next() {
		rec := sc.Record()
		if _, ok := keySet[rec[keyColumn]]; ok {
			matches = append(matches, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return matches, fmt.Errorf("warehouse: %w", err)
	}
	return matches, nil
}

// findFirst searches partitions in index order for the first row whose
// keyColumn value matches, pruning to the key's own partition when
// keyColumn is the partition key. The scan of each partition stops at
// the first match.
func (e *Engine) findFirst(keyColumn, keyValue string) (int, bool, error) {
	for _, idx := range e.candidates(keyColumn, []string{keyValue}) {
		exists, err := e.cache.Exists(idx)
		if err != nil {
			return 0, false, fmt.Errorf("warehouse: %w", err)
		}
		if !exists {
			continue
		}
		matched, err := e.hasMatch(idx, keyColumn, keyValue)
		if err != nil {
			return 0, false, err
		}
		if matched {
			return idx, true, nil
		}
	}
	return 0, false, nil
}

// hasMatch streams the partition until the first row whose keyColumn
// value matches keyValue, without materializing the file.
func (e *Engine) hasMatch(idx int, keyColumn, keyValue string) (bool, error) {
	sc, err := e.store.Scan(idx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			e.cache.Invalidate(idx)
			return false, nil
		}
		return false, fmt.Errorf("warehouse: %w", err)
	}
	defer sc.Close()

	for sc.Next() {
		if sc.Record()[keyColumn] == keyValue {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("warehouse: %w", err)
	}
	return false, nil
}
