// Package benchmark compares the partitioned warehouse against the
// baseline stores on a synthetic customer dataset.
package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/granarydb/granary/internal/baseline"
	"github.com/granarydb/granary/internal/config"
	"github.com/granarydb/granary/internal/warehouse"
	"github.com/granarydb/granary/pkg/types"
)

// generateRecords produces n synthetic customer records with sequential
// string ids starting at 1, matching the shape the warehouse is tuned
// for (id, name, address, email).
func generateRecords(n int) []types.Record {
	records := make([]types.Record, n)
	for i := range records {
		id := i + 1
		token := uuid.NewString()[:8]
		records[i] = types.Record{
			"id":      fmt.Sprint(id),
			"name":    fmt.Sprintf("Customer %s", token),
			"address": fmt.Sprintf("%d %s Street", id, token),
			"email":   fmt.Sprintf("%s@example.com", token),
		}
	}
	return records
}

// newEngine opens a partitioned warehouse sized for expectedRows in a
// fresh temp directory.
func newEngine(b *testing.B, partitionSize, expectedRows int) *warehouse.Engine {
	b.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = b.TempDir()
	cfg.PartitionSize = partitionSize
	cfg.ExpectedRows = expectedRows
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		b.Fatal(err)
	}

	eng, err := warehouse.Open(cfg)
	if err != nil {
		b.Fatal(err)
	}
	return eng
}

// benchStores builds one of each store kind so every benchmark runs the
// identical workload against all three.
func benchStores(b *testing.B, partitionSize, expectedRows int) map[string]warehouse.Warehouse {
	b.Helper()

	csvStore, err := baseline.NewCSVStore(filepath.Join(b.TempDir(), "warehouse.csv"))
	if err != nil {
		b.Fatal(err)
	}
	sqliteStore, err := baseline.NewSQLiteStore(filepath.Join(b.TempDir(), "warehouse.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { sqliteStore.Close() })

	return map[string]warehouse.Warehouse{
		"partitioned": newEngine(b, partitionSize, expectedRows),
		"csv":         csvStore,
		"sqlite":      sqliteStore,
	}
}

// load adds every record to the store, failing the benchmark on error.
func load(b *testing.B, store warehouse.Warehouse, records []types.Record) {
	b.Helper()
	for _, rec := range records {
		if err := store.AddData(rec.Clone()); err != nil {
			b.Fatal(err)
		}
	}
}
