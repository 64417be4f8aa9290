package types

import "errors"

// Error taxonomy shared by all warehouse operations. Callers classify
// failures with errors.Is; wrapping adds partition index and key context.
var (
	// ErrInvalidArgument is returned when an operation is given a bad
	// input shape (missing key field, empty column name) before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSchemaMismatch is returned when a record's field set conflicts
	// with the schema established by the dataset's first write.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotFound is returned when an operation that requires a matching
	// row finds none, or when a partition's backing file is absent.
	ErrNotFound = errors.New("not found")

	// ErrCorruptPartition is returned when a partition file cannot be
	// decoded (wrong column count, unreadable row). It is scoped to the
	// affected partition and does not halt sibling partition scans.
	ErrCorruptPartition = errors.New("corrupt partition")

	// ErrIOFailure is returned on filesystem-level read/write failures.
	// No automatic retry is performed.
	ErrIOFailure = errors.New("io failure")
)
