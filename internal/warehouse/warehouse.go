// Package warehouse implements the partitioned record warehouse engine.
package warehouse

import "github.com/granarydb/granary/pkg/types"

// Warehouse is the four-operation CRUD contract shared by every store
// implementation, including the baselines the engine is benchmarked
// against.
type Warehouse interface {
	// AddData appends one record. The first record ever written fixes
	// the dataset schema for all subsequent operations.
	AddData(data types.Record) error

	// UpdateData replaces fields of the first row whose keyColumn value
	// matches keyValue. The field set must remain within the dataset
	// schema.
	UpdateData(keyColumn, keyValue string, updated types.Record) error

	// DeleteData removes every row whose keyColumn value matches
	// keyValue and returns the number of rows removed. Zero matches is
	// not an error.
	DeleteData(keyColumn, keyValue string) (int, error)

	// QueryData returns every row whose keyColumn value is in keys.
	// An empty result set is not an error.
	QueryData(keyColumn string, keys []string) ([]types.Record, error)
}
