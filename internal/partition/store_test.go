package partition

import (
	"errors"
	"os"
	"testing"

	"github.com/granarydb/granary/internal/codec"
	"github.com/granarydb/granary/pkg/types"
)

var testHeader = types.Header{"id", "name"}

func rec(id, name string) types.Record {
	return types.Record{"id": id, "name": name}
}

func TestStoreAppendReadAll(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)

	created, err := store.Append(3, testHeader, rec("1", "a"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !created {
		t.Error("first append should create the file")
	}

	created, err = store.Append(3, testHeader, rec("2", "b"))
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}
	if created {
		t.Error("second append should not report creation")
	}

	header, records, err := store.ReadAll(3)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !header.Equal(testHeader) {
		t.Errorf("header mismatch: got %v", header)
	}
	if len(records) != 2 || records[0]["id"] != "1" || records[1]["id"] != "2" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestStoreReadAllAbsent(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)
	_, _, err := store.ReadAll(0)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreExistsAndReadHeader(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)

	exists, err := store.Exists(0)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("partition should not exist before first append")
	}
	if _, err := store.ReadHeader(0); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Append(0, testHeader, rec("1", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	exists, err = store.Exists(0)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("partition should exist after append")
	}
	header, err := store.ReadHeader(0)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if !header.Equal(testHeader) {
		t.Errorf("header mismatch: got %v", header)
	}
}

func TestStoreRewriteAll(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)
	if _, err := store.Append(1, testHeader, rec("1", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	removed, err := store.RewriteAll(1, testHeader, []types.Record{rec("9", "z")})
	if err != nil {
		t.Fatalf("RewriteAll failed: %v", err)
	}
	if removed {
		t.Error("rewrite with records should not remove the file")
	}

	_, records, err := store.ReadAll(1)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 1 || records[0]["id"] != "9" {
		t.Errorf("unexpected records after rewrite: %v", records)
	}
}

func TestStoreRewriteAllEmptyRemovesFile(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)
	if _, err := store.Append(2, testHeader, rec("1", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	removed, err := store.RewriteAll(2, testHeader, nil)
	if err != nil {
		t.Fatalf("RewriteAll failed: %v", err)
	}
	if !removed {
		t.Error("rewrite with no records should remove the file")
	}
	if _, err := os.Stat(store.Path(2)); !os.IsNotExist(err) {
		t.Error("backing file should be gone after empty rewrite")
	}
}

func TestScanStreamsAndRestarts(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionSnappy)
	for i, id := range []string{"1", "2", "3"} {
		if _, err := store.Append(0, testHeader, rec(id, string(rune('a'+i)))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Early stop after the first record.
	sc, err := store.Scan(0)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !sc.Next() {
		t.Fatalf("expected a first record: %v", sc.Err())
	}
	first := sc.Record()["id"]
	if err := sc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if first != "1" {
		t.Errorf("expected first record id 1, got %s", first)
	}

	// A fresh scan starts over and terminates at end of file.
	sc, err = store.Scan(0)
	if err != nil {
		t.Fatalf("restarted Scan failed: %v", err)
	}
	defer sc.Close()
	var ids []string
	for sc.Next() {
		ids = append(ids, sc.Record()["id"])
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected 3 records, got %v", ids)
	}
}

func TestScanSurfacesCorruptRows(t *testing.T) {
	store := NewStore(t.TempDir(), codec.CompressionNone)
	if _, err := store.Append(0, testHeader, rec("1", "a")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	f, err := os.OpenFile(store.Path(0), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := f.WriteString("2,b,extra-column\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	sc, err := store.Scan(0)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	defer sc.Close()

	if !sc.Next() {
		t.Fatalf("first row should scan: %v", sc.Err())
	}
	if sc.Next() {
		t.Fatal("corrupt row should stop the scan")
	}
	if !errors.Is(sc.Err(), types.ErrCorruptPartition) {
		t.Errorf("expected ErrCorruptPartition, got %v", sc.Err())
	}
}
