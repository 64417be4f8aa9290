package partition

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/pkg/types"
)

// Store owns one flat file per partition index under a single directory.
// Files are named partition_<i> plus the codec extension. A partition
// with no backing file is empty, not an error.
//
// The store assumes single-writer, single-process access. It provides no
// file locking; callers serialize mutations externally.
type Store struct {
	dir  string
	comp codec.Compression
}

// NewStore creates a partition store rooted at dir.
func NewStore(dir string, comp codec.Compression) *Store {
	return &Store{dir: dir, comp: comp}
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the backing file path for a partition index.
func (s *Store) Path(idx int) string {
	return filepath.Join(s.dir, fmt.Sprintf("partition_%d%s", idx, s.comp.Ext()))
}

// Exists reports whether the partition's backing file exists on disk.
func (s *Store) Exists(idx int) (bool, error) {
	_, err := os.Stat(s.Path(idx))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("partition %d: stat failed: %v: %w", idx, err, types.ErrIOFailure)
}

// ReadHeader reads only the partition's header row, without decoding the
// rest of the file. Returns ErrNotFound if the partition is absent.
func (s *Store) ReadHeader(idx int) (types.Header, error) {
	f, err := os.Open(s.Path(idx))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("partition %d: %w", idx, types.ErrNotFound)
		}
		return nil, fmt.Errorf("partition %d: open failed: %v: %w", idx, err, types.ErrIOFailure)
	}
	defer f.Close()

	header, err := codec.NewDecoder(f, s.comp).ReadHeader()
	if err == io.EOF {
		// Zero-byte file; treat like an absent partition.
		return nil, fmt.Errorf("partition %d: %w", idx, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("partition %d: %w", idx, err)
	}
	return header, nil
}

// Append appends one encoded record to the partition's file, creating it
// and writing the header first if the file is new. Returns whether the
// file was created by this call.
func (s *Store) Append(idx int, header types.Header, rec types.Record) (created bool, err error) {
	f, err := os.OpenFile(s.Path(idx), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("partition %d: open failed: %v: %w", idx, err, types.ErrIOFailure)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("partition %d: stat failed: %v: %w", idx, err, types.ErrIOFailure)
	}
	created = stat.Size() == 0

	enc := codec.NewEncoder(f, s.comp)
	if created {
		if err := enc.WriteHeader(header); err != nil {
			return false, fmt.Errorf("partition %d: %v: %w", idx, err, types.ErrIOFailure)
		}
	}
	if err := enc.WriteRecord(header, rec); err != nil {
		return false, fmt.Errorf("partition %d: %v: %w", idx, err, types.ErrIOFailure)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("partition %d: %v: %w", idx, err, types.ErrIOFailure)
	}
	return created, nil
}

// ReadAll decodes every row of the partition. Returns ErrNotFound if the
// partition is absent.
func (s *Store) ReadAll(idx int) (types.Header, []types.Record, error) {
	sc, err := s.Scan(idx)
	if err != nil {
		return nil, nil, err
	}
	defer sc.Close()

	var records []types.Record
	for sc.Next() {
		records = append(records, sc.Record())
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return sc.Header(), records, nil
}

// RewriteAll replaces the partition file with header plus the given
// records, or removes the file entirely if records is empty. The new
// content is written to a temp file and renamed into place so a reader
// never observes a partially written partition. Returns whether the
// backing file was removed.
func (s *Store) RewriteAll(idx int, header types.Header, records []types.Record) (removed bool, err error) {
	if len(records) == 0 {
		if err := s.Remove(idx); err != nil {
			return false, err
		}
		return true, nil
	}

	path := s.Path(idx)
	tmp := filepath.Join(s.dir, fmt.Sprintf(".partition_%d.tmp-%s", idx, uuid.New().String()[:8]))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return false, fmt.Errorf("partition %d: create temp failed: %v: %w", idx, err, types.ErrIOFailure)
	}

	enc := codec.NewEncoder(f, s.comp)
	werr := enc.WriteHeader(header)
	if werr == nil {
		for _, rec := range records {
			if werr = enc.WriteRecord(header, rec); werr != nil {
				break
			}
		}
	}
	if werr == nil {
		werr = enc.Close()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("partition %d: rewrite failed: %v: %w", idx, werr, types.ErrIOFailure)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("partition %d: rename failed: %v: %w", idx, err, types.ErrIOFailure)
	}
	return false, nil
}

// Remove deletes the partition's backing file. Removing an absent
// partition is not an error.
func (s *Store) Remove(idx int) error {
	if err := os.Remove(s.Path(idx)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("partition %d: remove failed: %v: %w", idx, err, types.ErrIOFailure)
	}
	return nil
}
