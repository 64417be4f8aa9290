// Package types provides core data types for Granary.
package types

import "sort"

// KeyColumn is the conventional partition key field.
const KeyColumn = "id"

// Record represents a single row in the warehouse as a mapping from
// field name to string value. All values are persisted as strings;
// comparisons are string-normalized.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fields returns the record's field names in lexicographic order.
// Go maps carry no order, so a deterministic order is derived here;
// it is the order used for on-disk headers.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Header is the ordered sequence of field names persisted as the first
// row of every partition file. It is fixed for a dataset's lifetime by
// the first record ever written.
type Header []string

// Matches reports whether the record's field set is exactly the header's.
func (h Header) Matches(r Record) bool {
	if len(r) != len(h) {
		return false
	}
	for _, field := range h {
		if _, ok := r[field]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether the header includes the given field.
func (h Header) Contains(field string) bool {
	for _, f := range h {
		if f == field {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the header.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	copy(out, h)
	return out
}

// Equal reports whether two headers list the same fields in the same order.
func (h Header) Equal(other Header) bool {
	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if h[i] != other[i] {
			return false
		}
	}
	return true
}

// HeaderFor derives the canonical header for a record: its field names
// in lexicographic order.
func HeaderFor(r Record) Header {
	return Header(r.Fields())
}
