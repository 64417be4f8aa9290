package baseline

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/granarydb/granary/internal/observability"
	"github.com/granarydb/granary/internal/warehouse"
	"github.com/granarydb/granary/pkg/types"
)

var _ warehouse.Warehouse = (*SQLiteStore)(nil)

// SQLiteStore is a baseline backed by a single SQLite table with one
// TEXT column per field. It trades the flat-file stores' rewrite cost
// for B-tree maintenance, which makes it a useful midpoint in the
// benchmark comparison.
type SQLiteStore struct {
	db     *sql.DB
	header types.Header
	stats  *observability.OpStats
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed store at
// path. If the records table already exists, its columns establish the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("baseline: failed to open SQLite database: %w", err)
	}

	s := &SQLiteStore{db: db, stats: observability.NewOpStats()}
	if err := s.loadHeader(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stats returns the store's operation statistics tracker.
func (s *SQLiteStore) Stats() *observability.OpStats {
	return s.stats
}

func (s *SQLiteStore) loadHeader() error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('records') ORDER BY name`)
	if err != nil {
		return fmt.Errorf("baseline: failed to read table info: %w", err)
	}
	defer rows.Close()

	var header types.Header
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("baseline: failed to scan table info: %w", err)
		}
		header = append(header, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("baseline: failed to read table info: %w", err)
	}
	s.header = header
	return nil
}

// quoteIdent quotes a field name for use as a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// AddData inserts one record, creating the records table on the first
// ever add.
func (s *SQLiteStore) AddData(data types.Record) error {
	start := time.Now()

	if len(data) == 0 {
		return fmt.Errorf("baseline: add requires a non-empty record: %w", types.ErrInvalidArgument)
	}
	if _, ok := data[types.KeyColumn]; !ok {
		return fmt.Errorf("baseline: add requires the %q field: %w", types.KeyColumn, types.ErrInvalidArgument)
	}

	if s.header == nil {
		header := types.HeaderFor(data)
		cols := make([]string, len(header))
		for i, field := range header {
			cols[i] = quoteIdent(field) + " TEXT NOT NULL"
		}
		createSQL := fmt.Sprintf("CREATE TABLE records (%s)", strings.Join(cols, ", "))
		if _, err := s.db.Exec(createSQL); err != nil {
			return fmt.Errorf("baseline: failed to create records table: %w", err)
		}
		s.header = header
	} else if !s.header.Matches(data) {
		return fmt.Errorf("baseline: record fields %v do not match schema %v: %w",
			data.Fields(), []string(s.header), types.ErrSchemaMismatch)
	}

	cols := make([]string, len(s.header))
	marks := make([]string, len(s.header))
	args := make([]interface{}, len(s.header))
	for i, field := range s.header {
		cols[i] = quoteIdent(field)
		marks[i] = "?"
		args[i] = data[field]
	}
	insertSQL := fmt.Sprintf("INSERT INTO records (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.db.Exec(insertSQL, args...); err != nil {
		return fmt.Errorf("baseline: insert failed: %v: %w", err, types.ErrIOFailure)
	}

	s.stats.Record("add", 1, 1, time.Since(start))
	return nil
}

// QueryData returns every row whose keyColumn value is in keys, in
// insertion order.
func (s *SQLiteStore) QueryData(keyColumn string, keys []string) ([]types.Record, error) {
	start := time.Now()

	if keyColumn == "" {
		return nil, fmt.Errorf("baseline: query requires a key column: %w", types.ErrInvalidArgument)
	}

	results := []types.Record{}
	if len(keys) == 0 || s.header == nil {
		return results, nil
	}
	if !s.header.Contains(keyColumn) {
		return nil, fmt.Errorf("baseline: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}

	marks := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		marks[i] = "?"
		args[i] = k
	}
	cols := make([]string, len(s.header))
	for i, field := range s.header {
		cols[i] = quoteIdent(field)
	}
	querySQL := fmt.Sprintf("SELECT %s FROM records WHERE %s IN (%s) ORDER BY rowid",
		strings.Join(cols, ", "), quoteIdent(keyColumn), strings.Join(marks, ", "))

	rows, err := s.db.Query(querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("baseline: query failed: %v: %w", err, types.ErrIOFailure)
	}
	defer rows.Close()

	values := make([]string, len(s.header))
	dests := make([]interface{}, len(s.header))
	for i := range values {
		dests[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("baseline: scan failed: %v: %w", err, types.ErrIOFailure)
		}
		rec := make(types.Record, len(s.header))
		for i, field := range s.header {
			rec[field] = values[i]
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("baseline: query failed: %v: %w", err, types.ErrIOFailure)
	}

	s.stats.Record("query", len(results), 1, time.Since(start))
	return results, nil
}

// UpdateData replaces fields of the first matching row in insertion
// order.
func (s *SQLiteStore) UpdateData(keyColumn, keyValue string, updated types.Record) error {
	start := time.Now()

	if keyColumn == "" {
		return fmt.Errorf("baseline: update requires a key column: %w", types.ErrInvalidArgument)
	}
	if len(updated) == 0 {
		return fmt.Errorf("baseline: update requires at least one field: %w", types.ErrInvalidArgument)
	}
	if s.header == nil {
		return fmt.Errorf("baseline: no row with %s=%q: %w", keyColumn, keyValue, types.ErrNotFound)
	}
	if !s.header.Contains(keyColumn) {
		return fmt.Errorf("baseline: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}
	for field := range updated {
		if !s.header.Contains(field) {
			return fmt.Errorf("baseline: field %q is not in the schema: %w", field, types.ErrSchemaMismatch)
		}
	}

	// Deterministic field order for the SET clause.
	sets := []string{}
	args := []interface{}{}
	for _, field := range s.header {
		value, ok := updated[field]
		if !ok {
			continue
		}
		sets = append(sets, quoteIdent(field)+" = ?")
		args = append(args, value)
	}
	args = append(args, keyValue)

	// First-match-only: restrict to the lowest matching rowid.
	updateSQL := fmt.Sprintf(
		"UPDATE records SET %s WHERE rowid = (SELECT rowid FROM records WHERE %s = ? ORDER BY rowid LIMIT 1)",
		strings.Join(sets, ", "), quoteIdent(keyColumn))

	res, err := s.db.Exec(updateSQL, args...)
	if err != nil {
		return fmt.Errorf("baseline: update failed: %v: %w", err, types.ErrIOFailure)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("baseline: update failed: %v: %w", err, types.ErrIOFailure)
	}
	if affected == 0 {
		return fmt.Errorf("baseline: no row with %s=%q: %w", keyColumn, keyValue, types.ErrNotFound)
	}

	s.stats.Record("update", 1, 1, time.Since(start))
	return nil
}

// DeleteData removes every matching row.
func (s *SQLiteStore) DeleteData(keyColumn, keyValue string) (int, error) {
	start := time.Now()

	if keyColumn == "" {
		return 0, fmt.Errorf("baseline: delete requires a key column: %w", types.ErrInvalidArgument)
	}
	if s.header == nil {
		return 0, nil
	}
	if !s.header.Contains(keyColumn) {
		return 0, fmt.Errorf("baseline: unknown column %q: %w", keyColumn, types.ErrInvalidArgument)
	}

	deleteSQL := fmt.Sprintf("DELETE FROM records WHERE %s = ?", quoteIdent(keyColumn))
	res, err := s.db.Exec(deleteSQL, keyValue)
	if err != nil {
		return 0, fmt.Errorf("baseline: delete failed: %v: %w", err, types.ErrIOFailure)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("baseline: delete failed: %v: %w", err, types.ErrIOFailure)
	}

	s.stats.Record("delete", int(affected), 1, time.Since(start))
	return int(affected), nil
}
