package memory

import (
	"testing"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
)

// countingStore is an in-memory FrameStore that counts traffic so
// tests can assert exactly when the pool touches the disk side.
type countingStore struct {
	entities map[int]string
	reads    int
	writes   map[int]int
}

func newCountingStore() *countingStore {
	return &countingStore{
		entities: make(map[int]string),
		writes:   make(map[int]int),
	}
}

type testEntity struct {
	id    int
	value string
}

func (s *countingStore) ReadFrame(id int) (*testEntity, error) {
	s.reads++
	value, ok := s.entities[id]
	if !ok {
		return nil, dberror.New(dberror.CategoryData, dberror.CodeNodeNotFound,
			"entity not found").WithDetail("id=%d", id)
	}
	return &testEntity{id: id, value: value}, nil
}

func (s *countingStore) WriteFrame(e *testEntity) error {
	s.writes[e.id]++
	s.entities[e.id] = e.value
	return nil
}

func setupTestPool(capacity int) (*framePool[int, *testEntity], *countingStore) {
	store := newCountingStore()
	store.entities[1] = "one"
	store.entities[2] = "two"
	store.entities[3] = "three"

	pool := newFramePool[int, *testEntity]("test", capacity, store, func() int { return 1 })
	return pool, store
}

func TestLoadInstallsAtMRU(t *testing.T) {
	pool, store := setupTestPool(2)

	if _, err := pool.load(1); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if _, err := pool.load(2); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	ids := pool.residentIDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("expected LRU order [1 2], got %v", ids)
	}
	if store.reads != 2 {
		t.Errorf("expected 2 store reads, got %d", store.reads)
	}

	// A resident load is a recency move, not a read.
	if _, err := pool.load(1); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if store.reads != 2 {
		t.Errorf("resident load hit the store: %d reads", store.reads)
	}
	ids = pool.residentIDs()
	if ids[0] != 2 || ids[1] != 1 {
		t.Errorf("expected LRU order [2 1] after touch, got %v", ids)
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	pool, _ := setupTestPool(1)

	for _, id := range []int{1, 2, 3, 1, 2} {
		if _, err := pool.load(id); err != nil {
			t.Fatalf("failed to load %d: %v", id, err)
		}
		if pool.size() != 1 {
			t.Fatalf("pool grew past its single frame: %d resident", pool.size())
		}
	}
}

func TestEvictCleanFrameWritesNothing(t *testing.T) {
	pool, store := setupTestPool(1)

	if _, err := pool.load(1); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if _, err := pool.load(2); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if store.writes[1] != 0 {
		t.Errorf("clean eviction wrote to the store %d times", store.writes[1])
	}
}

func TestEvictDirtyFrameWritesOnce(t *testing.T) {
	pool, store := setupTestPool(1)

	e, err := pool.load(1)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	e.value = "uno"
	pool.markDirty(1)

	if _, err := pool.load(2); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if store.writes[1] != 1 {
		t.Errorf("expected exactly one write-back, got %d", store.writes[1])
	}
	if store.entities[1] != "uno" {
		t.Errorf("write-back lost the mutation: %q", store.entities[1])
	}

	// The reloaded frame reflects the written-back state.
	got, err := pool.load(1)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if got.value != "uno" {
		t.Errorf("expected reloaded value %q, got %q", "uno", got.value)
	}
}

func TestMarkDirtyMissIsNoOp(t *testing.T) {
	pool, store := setupTestPool(1)

	pool.markDirty(3)
	if _, err := pool.load(1); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if _, err := pool.load(2); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if store.writes[3] != 0 || store.writes[1] != 0 {
		t.Errorf("phantom dirty flag caused writes: %v", store.writes)
	}
}

func TestPutInstallsAndIsIdempotent(t *testing.T) {
	pool, store := setupTestPool(1)

	fresh := &testEntity{id: 9, value: "nine"}
	if err := pool.put(fresh.id, fresh); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := pool.put(fresh.id, fresh); err != nil {
		t.Fatalf("repeated put failed: %v", err)
	}
	if pool.size() != 1 {
		t.Fatalf("expected 1 resident frame, got %d", pool.size())
	}

	// Putting over a full pool evicts the dirty victim with one write.
	pool.markDirty(9)
	if err := pool.put(1, &testEntity{id: 1, value: "one"}); err != nil {
		t.Fatalf("failed to put over full pool: %v", err)
	}
	if store.writes[9] != 1 {
		t.Errorf("expected dirty victim written once, got %d", store.writes[9])
	}
}

func TestGetCurrentLoadsCanonical(t *testing.T) {
	pool, store := setupTestPool(1)

	e, err := pool.getCurrent()
	if err != nil {
		t.Fatalf("failed to get current from empty pool: %v", err)
	}
	if e.id != 1 {
		t.Errorf("expected canonical entity 1, got %d", e.id)
	}
	if store.reads != 1 {
		t.Errorf("expected one read, got %d", store.reads)
	}

	// Non-empty pool returns the MRU frame without I/O.
	if _, err := pool.load(2); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	e, err = pool.getCurrent()
	if err != nil {
		t.Fatalf("failed to get current: %v", err)
	}
	if e.id != 2 {
		t.Errorf("expected MRU entity 2, got %d", e.id)
	}
}

func TestGetCurrentEmptyUnloadable(t *testing.T) {
	store := newCountingStore()
	pool := newFramePool[int, *testEntity]("test", 1, store, func() int { return 1 })

	if _, err := pool.getCurrent(); !dberror.HasCode(err, dberror.CodePoolEmpty) {
		t.Fatalf("expected POOL_EMPTY_UNLOADABLE, got %v", err)
	}
}

func TestFlushWritesResidentFrame(t *testing.T) {
	pool, store := setupTestPool(2)

	e, err := pool.load(1)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	e.value = "uno"
	pool.markDirty(1)

	if err := pool.flush(1); err != nil {
		t.Fatalf("failed to flush: %v", err)
	}
	if store.entities[1] != "uno" {
		t.Errorf("flush did not reach the store")
	}
	if pool.isDirty(1) {
		t.Errorf("flush left the frame dirty")
	}
	if pool.size() != 1 {
		t.Errorf("flush evicted the frame")
	}

	// Flushing a clean or absent frame is allowed.
	if err := pool.flush(1); err != nil {
		t.Fatalf("clean flush failed: %v", err)
	}
	if err := pool.flush(42); err != nil {
		t.Fatalf("absent flush failed: %v", err)
	}
}

func TestFlushAllIsIdempotent(t *testing.T) {
	pool, store := setupTestPool(2)

	for _, id := range []int{1, 2} {
		e, err := pool.load(id)
		if err != nil {
			t.Fatalf("failed to load %d: %v", id, err)
		}
		e.value += "!"
		pool.markDirty(id)
	}

	if err := pool.flushAll(); err != nil {
		t.Fatalf("failed to flush all: %v", err)
	}
	if err := pool.flushAll(); err != nil {
		t.Fatalf("second flush all failed: %v", err)
	}

	if store.entities[1] != "one!" || store.entities[2] != "two!" {
		t.Errorf("flush all lost mutations: %v", store.entities)
	}
}
