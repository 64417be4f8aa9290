package partition

import (
	"fmt"
	"io"
	"os"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/pkg/types"
)

// Scanner streams a partition's records one at a time without
// materializing the whole file. Each Scan call opens a fresh read, so
// scans are restartable; a consumer may stop early and Close.
//
// Usage follows the bufio.Scanner idiom:
//
//	sc, err := store.Scan(idx)
//	...
//	defer sc.Close()
//	for sc.Next() {
//	    rec := sc.Record()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	idx    int
	f      *os.File
	dec    *codec.Decoder
	header types.Header
	rec    types.Record
	err    error
}

// Scan opens a streaming read over the partition. Returns ErrNotFound if
// the partition is absent. The caller owns the returned Scanner and must
// Close it.
func (s *Store) Scan(idx int) (*Scanner, error) {
	f, err := os.Open(s.Path(idx))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("partition %d: %w", idx, types.ErrNotFound)
		}
		return nil, fmt.Errorf("partition %d: open failed: %v: %w", idx, err, types.ErrIOFailure)
	}

	dec := codec.NewDecoder(f, s.comp)
	header, err := dec.ReadHeader()
	if err == io.EOF {
		f.Close()
		return nil, fmt.Errorf("partition %d: %w", idx, types.ErrNotFound)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("partition %d: %w", idx, err)
	}

	return &Scanner{idx: idx, f: f, dec: dec, header: header}, nil
}

// Header returns the partition's column header.
func (sc *Scanner) Header() types.Header {
	return sc.header
}

// Next advances to the next record. It returns false at end of file or
// on decode error; Err distinguishes the two.
func (sc *Scanner) Next() bool {
	if sc.err != nil {
		return false
	}
	rec, err := sc.dec.Next()
	if err == io.EOF {
		return false
	}
	if err != nil {
		sc.err = fmt.Errorf("partition %d: %w", sc.idx, err)
		return false
	}
	sc.rec = rec
	return true
}

// Record returns the record read by the last successful Next.
func (sc *Scanner) Record() types.Record {
	return sc.rec
}

// Err returns the first decode error encountered, if any.
func (sc *Scanner) Err() error {
	return sc.err
}

// Close releases the underlying file handle.
func (sc *Scanner) Close() error {
	return sc.f.Close()
}
