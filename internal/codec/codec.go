// Package codec serializes records to and from partition files. Each
// file is a flat CSV container whose first row is the column header;
// files may optionally be wrapped in Snappy framed compression.
package codec

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/granarydb/granary/pkg/types"
)

// Compression selects the partition file encoding.
type Compression string

const (
	// CompressionNone stores plain CSV.
	CompressionNone Compression = "none"

	// CompressionSnappy wraps the CSV stream in Snappy framed format.
	// Appends emit a fresh framed stream; the reader accepts repeated
	// stream identifiers, so appends stay O(1).
	CompressionSnappy Compression = "snappy"
)

// Valid reports whether the compression mode is supported.
func (c Compression) Valid() bool {
	return c == CompressionNone || c == CompressionSnappy
}

// Ext returns the file extension for partition files in this mode.
func (c Compression) Ext() string {
	if c == CompressionSnappy {
		return ".csv.sz"
	}
	return ".csv"
}

// Encoder writes header and record rows to a partition file.
type Encoder struct {
	cw      *csv.Writer
	flusher io.Closer
}

// NewEncoder creates an encoder that writes rows to w using the given
// compression. Close must be called to flush buffered data.
func NewEncoder(w io.Writer, comp Compression) *Encoder {
	if comp == CompressionSnappy {
		sw := snappy.NewBufferedWriter(w)
		return &Encoder{cw: csv.NewWriter(sw), flusher: sw}
	}
	return &Encoder{cw: csv.NewWriter(w)}
}

// WriteHeader writes the column header row.
func (e *Encoder) WriteHeader(h types.Header) error {
	if err := e.cw.Write(h); err != nil {
		return fmt.Errorf("codec: failed to write header: %w", err)
	}
	return nil
}

// WriteRecord writes one record row in header field order. The record's
// field set must match the header; missing fields are an encoding bug
// caught upstream by schema checks.
func (e *Encoder) WriteRecord(h types.Header, r types.Record) error {
	row := make([]string, len(h))
	for i, field := range h {
		row[i] = r[field]
	}
	if err := e.cw.Write(row); err != nil {
		return fmt.Errorf("codec: failed to write record: %w", err)
	}
	return nil
}

// Close flushes all buffered rows and the compression frame, if any.
func (e *Encoder) Close() error {
	e.cw.Flush()
	if err := e.cw.Error(); err != nil {
		return fmt.Errorf("codec: flush failed: %w", err)
	}
	if e.flusher != nil {
		if err := e.flusher.Close(); err != nil {
			return fmt.Errorf("codec: compression flush failed: %w", err)
		}
	}
	return nil
}

// Decoder reads header and record rows from a partition file.
type Decoder struct {
	cr     *csv.Reader
	header types.Header
}

// NewDecoder creates a decoder reading rows from r using the given
// compression.
func NewDecoder(r io.Reader, comp Compression) *Decoder {
	var src io.Reader = r
	if comp == CompressionSnappy {
		src = snappy.NewReader(r)
	}
	cr := csv.NewReader(src)
	// Every row must have exactly as many columns as the header;
	// the csv reader enforces this once the first row is read.
	cr.ReuseRecord = false
	return &Decoder{cr: cr}
}

// ReadHeader reads the header row. It must be called before Next.
// Returns io.EOF for an empty file.
func (d *Decoder) ReadHeader() (types.Header, error) {
	row, err := d.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("codec: unreadable header: %w", types.ErrCorruptPartition)
	}
	d.header = types.Header(row).Clone()
	return d.header, nil
}

// Next reads the next record row. Returns io.EOF at end of file and
// ErrCorruptPartition for rows that cannot be decoded or whose column
// count does not match the header.
func (d *Decoder) Next() (types.Record, error) {
	if d.header == nil {
		if _, err := d.ReadHeader(); err != nil {
			return nil, err
		}
	}
	row, err := d.cr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		// Includes csv.ErrFieldCount when a row's column count does
		// not match the header.
		return nil, fmt.Errorf("codec: unreadable row: %v: %w", err, types.ErrCorruptPartition)
	}
	rec := make(types.Record, len(d.header))
	for i, field := range d.header {
		rec[field] = row[i]
	}
	return rec, nil
}
