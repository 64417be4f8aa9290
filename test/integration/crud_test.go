// Package integration provides end-to-end tests exercising the
// partitioned warehouse through its public operations, cross-checked
// against the baseline stores.
package integration

import (
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/granarydb/granary/internal/baseline"
	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/internal/config"
	"github.com/granarydb/granary/internal/warehouse"
	"github.com/granarydb/granary/pkg/types"
)

// setupEngine opens a fresh partitioned warehouse in a temp directory.
func setupEngine(t *testing.T, partitionSize, expectedRows int, comp codec.Compression) *warehouse.Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.PartitionSize = partitionSize
	cfg.ExpectedRows = expectedRows
	cfg.Compression = string(comp)
	cfg.Resolve()
	require.NoError(t, cfg.EnsureDirectories())

	eng, err := warehouse.Open(cfg)
	require.NoError(t, err)
	return eng
}

func syntheticRecord(i int) types.Record {
	return types.Record{
		"id":      fmt.Sprint(i),
		"name":    fmt.Sprintf("name-%d", i),
		"address": fmt.Sprintf("%d Main Street", i),
		"email":   fmt.Sprintf("user%d@example.com", i),
	}
}

func sortByID(records []types.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i]["id"] < records[j]["id"]
	})
}

// TestEngineMatchesBaselines drives the engine and both baseline stores
// through the same workload and asserts they agree on every result set.
func TestEngineMatchesBaselines(t *testing.T) {
	eng := setupEngine(t, 25, 100, codec.CompressionNone)

	csvStore, err := baseline.NewCSVStore(filepath.Join(t.TempDir(), "warehouse.csv"))
	require.NoError(t, err)
	sqliteStore, err := baseline.NewSQLiteStore(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	defer sqliteStore.Close()

	stores := map[string]warehouse.Warehouse{
		"engine": eng,
		"csv":    csvStore,
		"sqlite": sqliteStore,
	}

	// Load the same 100 rows everywhere.
	for i := 1; i <= 100; i++ {
		rec := syntheticRecord(i)
		for name, store := range stores {
			require.NoError(t, store.AddData(rec.Clone()), "add into %s", name)
		}
	}

	queries := [][]string{
		{"7", "42", "99"},
		{"1"},
		{"100", "101"}, // 101 does not exist
		{"no-such-id"},
	}
	for _, keys := range queries {
		var want []types.Record
		for name, store := range stores {
			got, err := store.QueryData("id", keys)
			require.NoError(t, err, "query %v on %s", keys, name)
			sortByID(got)
			if want == nil {
				want = got
				continue
			}
			require.Equal(t, want, got, "query %v on %s", keys, name)
		}
	}

	// Update a row, then delete another, and re-check agreement.
	for name, store := range stores {
		err := store.UpdateData("id", "42", types.Record{"name": "updated"})
		require.NoError(t, err, "update on %s", name)
		removed, err := store.DeleteData("id", "7")
		require.NoError(t, err, "delete on %s", name)
		require.Equal(t, 1, removed, "delete count on %s", name)
	}

	var want []types.Record
	for name, store := range stores {
		got, err := store.QueryData("id", []string{"7", "42", "99"})
		require.NoError(t, err, "re-query on %s", name)
		sortByID(got)
		if want == nil {
			want = got
			continue
		}
		require.Equal(t, want, got, "re-query on %s", name)
	}
	require.Len(t, want, 2)
	for _, rec := range want {
		require.NotEqual(t, "7", rec["id"])
		if rec["id"] == "42" {
			require.Equal(t, "updated", rec["name"])
		}
	}
}

// TestNonKeyColumnAgreement checks the engine's full-partition sweep
// for non-key columns against the single-file baseline.
func TestNonKeyColumnAgreement(t *testing.T) {
	eng := setupEngine(t, 10, 60, codec.CompressionNone)
	csvStore, err := baseline.NewCSVStore(filepath.Join(t.TempDir(), "warehouse.csv"))
	require.NoError(t, err)

	for i := 1; i <= 60; i++ {
		rec := syntheticRecord(i)
		if i%3 == 0 {
			rec["name"] = "common"
		}
		require.NoError(t, eng.AddData(rec.Clone()))
		require.NoError(t, csvStore.AddData(rec.Clone()))
	}

	engRows, err := eng.QueryData("name", []string{"common"})
	require.NoError(t, err)
	csvRows, err := csvStore.QueryData("name", []string{"common"})
	require.NoError(t, err)

	sortByID(engRows)
	sortByID(csvRows)
	require.Equal(t, csvRows, engRows)
	require.Len(t, engRows, 20)

	// Deleting by the non-key column removes every match in both stores.
	engRemoved, err := eng.DeleteData("name", "common")
	require.NoError(t, err)
	csvRemoved, err := csvStore.DeleteData("name", "common")
	require.NoError(t, err)
	require.Equal(t, csvRemoved, engRemoved)
	require.Equal(t, 20, engRemoved)
}

// TestLifecycleAcrossReopen loads data, closes nothing (the engine holds
// no file handles between operations), reopens the warehouse from the
// same directory, and keeps mutating.
func TestLifecycleAcrossReopen(t *testing.T) {
	for _, comp := range []codec.Compression{codec.CompressionNone, codec.CompressionSnappy} {
		t.Run(string(comp), func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.PartitionSize = 20
			cfg.ExpectedRows = 80
			cfg.Compression = string(comp)
			cfg.Resolve()
			require.NoError(t, cfg.EnsureDirectories())

			eng, err := warehouse.Open(cfg)
			require.NoError(t, err)
			for i := 1; i <= 80; i++ {
				require.NoError(t, eng.AddData(syntheticRecord(i)))
			}

			reopened, err := warehouse.Open(cfg)
			require.NoError(t, err)

			require.NoError(t, reopened.UpdateData("id", "33", types.Record{"address": "moved"}))
			removed, err := reopened.DeleteData("id", "50")
			require.NoError(t, err)
			require.Equal(t, 1, removed)

			rows, err := reopened.QueryData("id", []string{"33", "50"})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.Equal(t, "33", rows[0]["id"])
			require.Equal(t, "moved", rows[0]["address"])

			// New rows still land in the layout recorded at creation.
			require.NoError(t, reopened.AddData(syntheticRecord(81)))
			rows, err = reopened.QueryData("id", []string{"81"})
			require.NoError(t, err)
			require.Len(t, rows, 1)
		})
	}
}
