package meta

import (
	"errors"
	"testing"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/internal/partition"
	"github.com/granarydb/granary/pkg/types"
)

var testHeader = types.Header{"id", "name"}

// countingProber wraps a store and counts filesystem touches, so tests
// can assert the cache actually memoizes.
type countingProber struct {
	store       *partition.Store
	existsCalls int
	headerCalls int
}

func (p *countingProber) Exists(idx int) (bool, error) {
	p.existsCalls++
	return p.store.Exists(idx)
}

func (p *countingProber) ReadHeader(idx int) (types.Header, error) {
	p.headerCalls++
	return p.store.ReadHeader(idx)
}

func newTestStore(t *testing.T) *partition.Store {
	t.Helper()
	return partition.NewStore(t.TempDir(), codec.CompressionNone)
}

func TestExistsReadThrough(t *testing.T) {
	store := newTestStore(t)
	prober := &countingProber{store: store}
	cache := NewCache(prober)

	for i := 0; i < 3; i++ {
		exists, err := cache.Exists(0)
		if err != nil {
			t.Fatalf("Exists failed: %v", err)
		}
		if exists {
			t.Error("partition 0 should not exist")
		}
	}
	if prober.existsCalls != 1 {
		t.Errorf("expected 1 filesystem check, got %d", prober.existsCalls)
	}
}

func TestHeaderReadThrough(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Append(1, testHeader, types.Record{"id": "1", "name": "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	prober := &countingProber{store: store}
	cache := NewCache(prober)

	for i := 0; i < 3; i++ {
		header, err := cache.Header(1)
		if err != nil {
			t.Fatalf("Header failed: %v", err)
		}
		if !header.Equal(testHeader) {
			t.Errorf("header mismatch: got %v", header)
		}
	}
	if prober.headerCalls != 1 {
		t.Errorf("expected 1 header read, got %d", prober.headerCalls)
	}
}

func TestHeaderAbsentPartition(t *testing.T) {
	cache := NewCache(&countingProber{store: newTestStore(t)})
	if _, err := cache.Header(5); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordWriteUpdatesEntry(t *testing.T) {
	cache := NewCache(&countingProber{store: newTestStore(t)})

	cache.RecordWrite(2, testHeader, 1)
	cache.RecordWrite(2, testHeader, 1)

	exists, err := cache.Exists(2)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("entry should exist after RecordWrite")
	}

	snap := cache.Snapshot()
	entry, ok := snap[2]
	if !ok {
		t.Fatal("expected a cached entry for partition 2")
	}
	if entry.ApproxRows != 2 {
		t.Errorf("expected approx 2 rows, got %d", entry.ApproxRows)
	}
	if !entry.Header.Equal(testHeader) {
		t.Errorf("header mismatch: got %v", entry.Header)
	}
}

func TestRecordDeleteClearsOnRemoval(t *testing.T) {
	cache := NewCache(&countingProber{store: newTestStore(t)})
	cache.RecordWrite(3, testHeader, 5)

	cache.RecordDelete(3, false, 2)
	snap := cache.Snapshot()
	if snap[3].ApproxRows != 2 {
		t.Errorf("expected approx 2 rows after partial delete, got %d", snap[3].ApproxRows)
	}
	if !snap[3].Exists {
		t.Error("partition should still exist after partial delete")
	}

	cache.RecordDelete(3, true, 0)
	snap = cache.Snapshot()
	if snap[3].Exists {
		t.Error("entry should be cleared once the file is removed")
	}
	if snap[3].Header != nil {
		t.Error("cleared entry should drop the header")
	}
}

func TestInvalidateForcesReprobe(t *testing.T) {
	store := newTestStore(t)
	prober := &countingProber{store: store}
	cache := NewCache(prober)

	if _, err := cache.Exists(0); err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	cache.Invalidate(0)
	if _, err := cache.Exists(0); err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if prober.existsCalls != 2 {
		t.Errorf("expected 2 filesystem checks after invalidation, got %d", prober.existsCalls)
	}
}
