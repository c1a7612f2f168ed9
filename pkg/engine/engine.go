// Package engine composes the storage stack behind the two public
// operations: insert all wines of a harvest year, and fetch all wines
// of a harvest year. The interpreter in this package drives the engine
// from the line-oriented command file.
package engine

import (
	"path/filepath"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/catalog"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/memory"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/storage/heap"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/storage/index"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/wine"
)

// IndexFileName is the tree file inside the storage directory.
const IndexFileName = "index.harvest_year"

// Config carries the engine's storage knobs.
type Config struct {
	StorageDir     string
	PageSizeBytes  int
	HeapSizeBytes  uint64
	MaxKeysPerNode int
	PageFrames     int
	IndexFrames    int
}

// Engine is the façade over catalog, tree and buffer pool.
type Engine struct {
	pool       *memory.BufferPool
	catalog    *catalog.RecordCatalog
	tree       *index.BPlusTree
	heapStore  *heap.FileStore
	indexStore *index.FileStore
	source     wine.Source
}

// New initializes the storage stack under cfg.StorageDir and wires an
// engine over it. source feeds INC commands; it may be nil for an
// engine that only serves searches.
func New(cfg Config, source wine.Source) (*Engine, error) {
	heapStore := heap.NewFileStore(cfg.StorageDir, cfg.PageSizeBytes, cfg.HeapSizeBytes)
	if err := heapStore.Initialize(); err != nil {
		return nil, err
	}

	indexStore := index.NewFileStore(filepath.Join(cfg.StorageDir, IndexFileName))
	if err := indexStore.Initialize(); err != nil {
		return nil, err
	}

	pool := memory.NewBufferPool(heapStore, indexStore, cfg.PageFrames, cfg.IndexFrames)

	tree, err := index.NewBPlusTree(cfg.MaxKeysPerNode, indexStore, pool)
	if err != nil {
		return nil, err
	}

	return &Engine{
		pool:       pool,
		catalog:    catalog.NewRecordCatalog(pool, heapStore),
		tree:       tree,
		heapStore:  heapStore,
		indexStore: indexStore,
		source:     source,
	}, nil
}

// Insert places one record in the heap and indexes its harvest year.
// When indexing fails the heap record stays where it landed; there is
// no compensation.
func (e *Engine) Insert(rec wine.Record) error {
	loc, err := e.catalog.InsertRecord(rec)
	if err != nil {
		return err
	}
	return e.tree.Insert(rec.HarvestYear, loc)
}

// InsertYear inserts every source wine whose harvest year equals year
// and returns how many were inserted.
func (e *Engine) InsertYear(year int32) (int, error) {
	if e.source == nil {
		return 0, dberror.New(dberror.CategoryUser, dberror.CodeParse,
			"no source catalog configured; INC commands need --wine-data")
	}

	matches, err := e.source.LookupByHarvestYear(year)
	if err != nil {
		return 0, err
	}

	for _, rec := range matches {
		if err := e.Insert(rec); err != nil {
			return 0, err
		}
	}

	logging.Info("insert command done", "year", year, "inserted", len(matches))
	return len(matches), nil
}

// Search returns every stored wine with the given harvest year, in
// leaf-chain order of their index entries.
func (e *Engine) Search(year int32) ([]wine.Record, error) {
	locators, err := e.tree.Search(year)
	if err != nil {
		return nil, err
	}

	records := make([]wine.Record, 0, len(locators))
	for _, loc := range locators {
		page, err := e.pool.LoadPage(loc.PageID)
		if err != nil {
			return nil, err
		}
		rec, err := page.RecordAt(loc.Slot)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	logging.Info("search command done", "year", year, "found", len(records))
	return records, nil
}

// Height returns the index height.
func (e *Engine) Height() uint32 {
	return e.tree.Height()
}

// Flush writes every resident frame back (data pages first, then
// index nodes) and forces both files to stable storage.
func (e *Engine) Flush() error {
	if err := e.pool.FlushAll(); err != nil {
		return err
	}
	if err := e.heapStore.Flush(); err != nil {
		return err
	}
	return e.indexStore.Flush()
}

// Close flushes and releases the underlying files.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		return err
	}
	return e.heapStore.Close()
}
