package heap

import (
	"os"
	"testing"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
)

func setupTestStore(t *testing.T, pageSize int, heapSize uint64) (*FileStore, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "heap_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store := NewFileStore(tmpDir, pageSize, heapSize)
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func TestInitializeCreatesFirstPage(t *testing.T) {
	store, cleanup := setupTestStore(t, 256, 256*16)
	defer cleanup()

	meta := store.Metadata()
	if meta.LastPageID != 1 || meta.PageCount != 1 {
		t.Fatalf("expected page 1 allocated, got last=%d count=%d", meta.LastPageID, meta.PageCount)
	}

	page, err := store.ReadPage(1)
	if err != nil {
		t.Fatalf("failed to read initial page: %v", err)
	}
	if page.NumRecords() != 0 {
		t.Errorf("expected empty initial page, got %d records", page.NumRecords())
	}
}

func TestWriteAndReadPage(t *testing.T) {
	store, cleanup := setupTestStore(t, 256, 256*16)
	defer cleanup()

	page, err := store.ReadPage(1)
	if err != nil {
		t.Fatalf("failed to read page: %v", err)
	}
	page.Append(testRecord(1, "Adega Norte", 2005))
	page.Append(testRecord(2, "Adega Sul", 2006))

	if err := store.WritePage(page); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	got, err := store.ReadPage(1)
	if err != nil {
		t.Fatalf("failed to re-read page: %v", err)
	}
	if got.NumRecords() != 2 {
		t.Fatalf("expected 2 records after round-trip, got %d", got.NumRecords())
	}
	if got.Records()[1].Label != "Adega Sul" {
		t.Errorf("unexpected second record: %+v", got.Records()[1])
	}
}

func TestReadPageOutOfRange(t *testing.T) {
	store, cleanup := setupTestStore(t, 256, 256*16)
	defer cleanup()

	if _, err := store.ReadPage(0); !dberror.HasCode(err, dberror.CodePageOutOfRange) {
		t.Errorf("expected PAGE_OUT_OF_RANGE for page 0, got %v", err)
	}
	if _, err := store.ReadPage(2); !dberror.HasCode(err, dberror.CodePageOutOfRange) {
		t.Errorf("expected PAGE_OUT_OF_RANGE for unallocated page, got %v", err)
	}
}

func TestAllocatePageGrowsContiguously(t *testing.T) {
	store, cleanup := setupTestStore(t, 256, 256*16)
	defer cleanup()

	for want := 2; want <= 4; want++ {
		page, err := store.AllocatePage()
		if err != nil {
			t.Fatalf("failed to allocate page %d: %v", want, err)
		}
		if int(page.ID()) != want {
			t.Fatalf("expected page id %d, got %d", want, page.ID())
		}
	}

	meta := store.Metadata()
	if meta.LastPageID != 4 || meta.PageCount != 4 {
		t.Errorf("expected 4 pages, got last=%d count=%d", meta.LastPageID, meta.PageCount)
	}
	if !store.PageExists(4) || store.PageExists(5) || store.PageExists(0) {
		t.Errorf("page existence checks inconsistent with metadata")
	}
}

func TestAllocatePageHeapFull(t *testing.T) {
	// Room for exactly three pages beyond the reserved offset 0.
	store, cleanup := setupTestStore(t, 128, 128*4)
	defer cleanup()

	for i := 0; i < 2; i++ {
		if _, err := store.AllocatePage(); err != nil {
			t.Fatalf("allocation %d failed early: %v", i, err)
		}
	}

	if _, err := store.AllocatePage(); !dberror.HasCode(err, dberror.CodeHeapFull) {
		t.Fatalf("expected HEAP_FULL, got %v", err)
	}
}

func TestReopenLoadsMetadata(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "heap_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store := NewFileStore(tmpDir, 256, 256*16)
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	page, err := store.ReadPage(1)
	if err != nil {
		t.Fatalf("failed to read page: %v", err)
	}
	page.Append(testRecord(7, "Colheita Tardia", 2018))
	if err := store.WritePage(page); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}
	if _, err := store.AllocatePage(); err != nil {
		t.Fatalf("failed to allocate: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	reopened := NewFileStore(tmpDir, 256, 256*16)
	if err := reopened.Initialize(); err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	meta := reopened.Metadata()
	if meta.LastPageID != 2 {
		t.Fatalf("expected metadata to survive reopen, got last=%d", meta.LastPageID)
	}

	got, err := reopened.ReadPage(1)
	if err != nil {
		t.Fatalf("failed to read page after reopen: %v", err)
	}
	if got.NumRecords() != 1 || got.Records()[0].WineID != 7 {
		t.Errorf("expected persisted record to survive reopen, got %+v", got.Records())
	}
}

func TestHeapFileHasExactConfiguredSize(t *testing.T) {
	store, cleanup := setupTestStore(t, 256, 256*16)
	defer cleanup()

	info, err := os.Stat(store.heapPath())
	if err != nil {
		t.Fatalf("failed to stat heap file: %v", err)
	}
	if info.Size() != 256*16 {
		t.Errorf("expected heap file of %d bytes, got %d", 256*16, info.Size())
	}
}
