// Package catalog adapts the record-level append protocol to the heap
// store: a record goes onto the current page when it fits, otherwise
// onto a freshly allocated one. Intermediate pages are never revisited
// for free space.
package catalog

import (
	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/storage/heap"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/wine"
)

// PagePool is the slice of the buffer pool the catalog consumes.
type PagePool interface {
	GetCurrentPage() (*heap.Page, error)
	PutPage(page *heap.Page) error
	MarkPageDirty(id primitives.PageID)
}

// RecordCatalog places wine records on heap pages and hands back their
// locators.
type RecordCatalog struct {
	pool  PagePool
	store *heap.FileStore
}

// NewRecordCatalog wires the catalog over its pool and store.
func NewRecordCatalog(pool PagePool, store *heap.FileStore) *RecordCatalog {
	return &RecordCatalog{pool: pool, store: store}
}

// InsertRecord appends the record to the current data page, or to a
// new page when the current one is full, and returns where it landed.
func (c *RecordCatalog) InsertRecord(rec wine.Record) (primitives.Locator, error) {
	page, err := c.pool.GetCurrentPage()
	if err != nil {
		return primitives.Locator{}, err
	}

	if !page.HasSpaceFor(rec, c.store.PageSize()) {
		page, err = c.store.AllocatePage()
		if err != nil {
			return primitives.Locator{}, err
		}
		if err := c.pool.PutPage(page); err != nil {
			return primitives.Locator{}, err
		}

		// A record too large for an empty page cannot be stored at all.
		if !page.HasSpaceFor(rec, c.store.PageSize()) {
			return primitives.Locator{}, dberror.New(dberror.CategoryUser, dberror.CodePageTooLarge,
				"record does not fit on an empty page").
				WithDetail("wine_id=%d page_size=%d", rec.WineID, c.store.PageSize())
		}
	}

	slot := page.Append(rec)
	c.pool.MarkPageDirty(page.ID())

	loc := primitives.NewLocator(page.ID(), slot)
	logging.Debug("inserted record", "wine_id", rec.WineID, "locator", loc.String())
	return loc, nil
}
