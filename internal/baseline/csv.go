// Package baseline provides reference warehouse implementations the
// partitioned engine is benchmarked against: a naive single-file CSV
// store and a SQLite-backed store.
package baseline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/internal/observability"
	"github.com/granarydb/granary/internal/warehouse"
	"github.com/granarydb/granary/pkg/types"
)

var _ warehouse.Warehouse = (*CSVStore)(nil)

// CSVStore is the naive baseline: every record lives in one CSV file.
// Adds append; updates, deletes, and queries read the whole file, and
// mutations rewrite it. Its per-operation I/O grows with the dataset
// regardless of how many rows an operation touches.
type CSVStore struct {
	path   string
	header types.Header
	stats  *observability.OpStats
}

// NewCSVStore creates a single-file store at path. If the file already
// exists its header row establishes the schema.
func NewCSVStore(path string) (*CSVStore, error) {
	s := &CSVStore{path: path, stats: observability.NewOpStats()}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("baseline: open failed: %v: %w", err, types.ErrIOFailure)
	}
	defer f.Close()

	header, err := codec.NewDecoder(f, codec.CompressionNone).ReadHeader()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	s.header = header
	return s, nil
}

// Stats returns the store's operation statistics tracker.
func (s *CSVStore) Stats() *observability.OpStats {
	return s.stats
}

// AddData appends one record to the file, writing the header first if
// the file is new.
func (s *CSVStore) AddData(data types.Record) error {
	start := time.Now()

	if len(data) == 0 {
		return fmt.Errorf("baseline: add requires a non-empty record: %w", types.ErrInvalidArgument)
	}
	if _, ok := data[types.KeyColumn]; !ok {
		return fmt.Errorf("baseline: add requires the %q field: %w", types.KeyColumn, types.ErrInvalidArgument)
	}

	establishing := s.header == nil
	if establishing {
		s.header = types.HeaderFor(data)
	} else if !s.header.Matches(data) {
		return fmt.Errorf("baseline: record fields %v do not match schema %v: %w",
			data.Fields(), []string(s.header), types.ErrSchemaMismatch)
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("baseline: open failed: %v: %w", err, types.ErrIOFailure)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("baseline: stat failed: %v: %w", err, types.ErrIOFailure)
	}

	enc := codec.NewEncoder(f, codec.CompressionNone)
	if stat.Size() == 0 {
		if err := enc.WriteHeader(s.header); err != nil {
			return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
		}
	}
	if err := enc.WriteRecord(s.header, data); err != nil {
		return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
	}

	s.stats.Record("add", 1, 1, time.Since(start))
	return nil
}

// QueryData reads the whole file and returns every row whose keyColumn
// value is in keys, in file order.
func (s *CSVStore) QueryData(keyColumn string, keys []string) ([]types.Record, error) {
	start := time.Now()

	if keyColumn == "" {
		return nil, fmt.Errorf("baseline: query requires a key column: %w", types.ErrInvalidArgument)
	}

	results := []types.Record{}
	if len(keys) == 0 {
		return results, nil
	}

	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if _, ok := keySet[rec[keyColumn]]; ok {
			results = append(results, rec)
		}
	}

	s.stats.Record("query", len(results), 1, time.Since(start))
	return results, nil
}

// UpdateData replaces fields of the first matching row and rewrites the
// whole file.
func (s *CSVStore) UpdateData(keyColumn, keyValue string, updated types.Record) error {
	start := time.Now()

	if keyColumn == "" {
		return fmt.Errorf("baseline: update requires a key column: %w", types.ErrInvalidArgument)
	}
	if len(updated) == 0 {
		return fmt.Errorf("baseline: update requires at least one field: %w", types.ErrInvalidArgument)
	}
	for field := range updated {
		if s.header != nil && !s.header.Contains(field) {
			return fmt.Errorf("baseline: field %q is not in the schema: %w", field, types.ErrSchemaMismatch)
		}
	}

	records, err := s.readAll()
	if err != nil {
		return err
	}

	found := false
	for _, rec := range records {
		if rec[keyColumn] == keyValue {
			for field, value := range updated {
				rec[field] = value
			}
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("baseline: no row with %s=%q: %w", keyColumn, keyValue, types.ErrNotFound)
	}

	if err := s.rewrite(records); err != nil {
		return err
	}
	s.stats.Record("update", 1, 1, time.Since(start))
	return nil
}

// DeleteData removes every matching row and rewrites the whole file.
func (s *CSVStore) DeleteData(keyColumn, keyValue string) (int, error) {
	start := time.Now()

	if keyColumn == "" {
		return 0, fmt.Errorf("baseline: delete requires a key column: %w", types.ErrInvalidArgument)
	}

	records, err := s.readAll()
	if err != nil {
		return 0, err
	}

	kept := records[:0]
	removed := 0
	for _, rec := range records {
		if rec[keyColumn] == keyValue {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}

	if err := s.rewrite(kept); err != nil {
		return 0, err
	}
	s.stats.Record("delete", removed, 1, time.Since(start))
	return removed, nil
}

func (s *CSVStore) readAll() ([]types.Record, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("baseline: open failed: %v: %w", err, types.ErrIOFailure)
	}
	defer f.Close()

	dec := codec.NewDecoder(f, codec.CompressionNone)
	var records []types.Record
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("baseline: %w", err)
		}
		records = append(records, rec)
	}
}

func (s *CSVStore) rewrite(records []types.Record) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("baseline: create failed: %v: %w", err, types.ErrIOFailure)
	}
	defer f.Close()

	enc := codec.NewEncoder(f, codec.CompressionNone)
	if err := enc.WriteHeader(s.header); err != nil {
		return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
	}
	for _, rec := range records {
		if err := enc.WriteRecord(s.header, rec); err != nil {
			return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("baseline: %v: %w", err, types.ErrIOFailure)
	}
	return nil
}
