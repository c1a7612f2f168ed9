package memory

import (
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/storage/heap"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/storage/index"
)

// pageStoreAdapter exposes the heap file store through the FrameStore
// shape.
type pageStoreAdapter struct {
	store *heap.FileStore
}

func (a pageStoreAdapter) ReadFrame(id primitives.PageID) (*heap.Page, error) {
	return a.store.ReadPage(id)
}

func (a pageStoreAdapter) WriteFrame(page *heap.Page) error {
	return a.store.WritePage(page)
}

// nodeStoreAdapter does the same for the index file store.
type nodeStoreAdapter struct {
	store *index.FileStore
}

func (a nodeStoreAdapter) ReadFrame(id primitives.NodeID) (*index.Node, error) {
	return a.store.LoadNode(id)
}

func (a nodeStoreAdapter) WriteFrame(node *index.Node) error {
	return a.store.SaveNode(node)
}

// BufferPool holds the engine's two frame pools: data pages and index
// nodes. The pools are symmetric and independent; with the default
// configuration each holds exactly one frame, so nearly every access
// is an eviction. Single-threaded by design; callers must not keep a
// page or node reference across another pool operation.
type BufferPool struct {
	pages *framePool[primitives.PageID, *heap.Page]
	nodes *framePool[primitives.NodeID, *index.Node]
}

// NewBufferPool builds the two pools. pageFrames and nodeFrames are
// the capacities F_d and F_i; the canonical elements for GetCurrent
// are page 1 and the tree's current root.
func NewBufferPool(heapStore *heap.FileStore, indexStore *index.FileStore, pageFrames, nodeFrames int) *BufferPool {
	logging.Info("buffer pool configured", "page_frames", pageFrames, "node_frames", nodeFrames)
	return &BufferPool{
		pages: newFramePool[primitives.PageID, *heap.Page](
			"data", pageFrames, pageStoreAdapter{heapStore},
			func() primitives.PageID { return 1 }),
		nodes: newFramePool[primitives.NodeID, *index.Node](
			"index", nodeFrames, nodeStoreAdapter{indexStore},
			indexStore.RootID),
	}
}

// GetCurrentPage returns the MRU data page, loading page 1 when the
// pool is empty.
func (bp *BufferPool) GetCurrentPage() (*heap.Page, error) {
	return bp.pages.getCurrent()
}

// LoadPage returns the page with the given id, reading it through the
// data pool.
func (bp *BufferPool) LoadPage(id primitives.PageID) (*heap.Page, error) {
	return bp.pages.load(id)
}

// PutPage installs a caller-supplied page at MRU.
func (bp *BufferPool) PutPage(page *heap.Page) error {
	return bp.pages.put(page.ID(), page)
}

// MarkPageDirty flags a resident page for write-back.
func (bp *BufferPool) MarkPageDirty(id primitives.PageID) {
	bp.pages.markDirty(id)
}

// FlushPage writes a resident page back without evicting it.
func (bp *BufferPool) FlushPage(id primitives.PageID) error {
	return bp.pages.flush(id)
}

// GetCurrentNode returns the MRU index node, loading the root when the
// pool is empty.
func (bp *BufferPool) GetCurrentNode() (*index.Node, error) {
	return bp.nodes.getCurrent()
}

// LoadNode returns the node with the given id through the index pool.
func (bp *BufferPool) LoadNode(id primitives.NodeID) (*index.Node, error) {
	return bp.nodes.load(id)
}

// PutNode installs a caller-supplied node at MRU.
func (bp *BufferPool) PutNode(node *index.Node) error {
	return bp.nodes.put(node.ID, node)
}

// MarkNodeDirty flags a resident node for write-back.
func (bp *BufferPool) MarkNodeDirty(id primitives.NodeID) {
	bp.nodes.markDirty(id)
}

// FlushNode writes a resident node back without evicting it.
func (bp *BufferPool) FlushNode(id primitives.NodeID) error {
	return bp.nodes.flush(id)
}

// FlushAll flushes every resident frame, data pages first, then index
// nodes. Idempotent.
func (bp *BufferPool) FlushAll() error {
	if err := bp.pages.flushAll(); err != nil {
		return err
	}
	return bp.nodes.flushAll()
}

// ResidentPages returns the resident page ids, LRU first.
func (bp *BufferPool) ResidentPages() []primitives.PageID {
	return bp.pages.residentIDs()
}

// ResidentNodes returns the resident node ids, LRU first.
func (bp *BufferPool) ResidentNodes() []primitives.NodeID {
	return bp.nodes.residentIDs()
}
