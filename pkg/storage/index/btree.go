package index

import (
	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
)

// NodePool is the slice of the buffer pool the tree consumes. Loaded
// nodes are borrowed: a reference is valid only until the next pool
// call, which may evict it (writing it back if dirty).
type NodePool interface {
	LoadNode(id primitives.NodeID) (*Node, error)
	PutNode(node *Node) error
	MarkNodeDirty(id primitives.NodeID)
}

// BPlusTree maintains the persistent harvest-year index: duplicate
// keys permitted, leaves chained left to right. Inserts descend right
// on equal separators so duplicates append at the end of their run;
// searches descend left so they land at or before the run's first
// leaf and collect the whole run along the chain.
type BPlusTree struct {
	degree int // maximum keys per node; a node splits once it holds this many
	store  *FileStore
	pool   NodePool
}

// splitResult carries a finished split up the recursion: the separator
// key for the parent and the new right sibling's id.
type splitResult struct {
	key   int32
	right primitives.NodeID
}

// NewBPlusTree builds a tree over an initialized file store. The
// degree is the maximum key count per node and must be at least 2.
func NewBPlusTree(degree int, store *FileStore, pool NodePool) (*BPlusTree, error) {
	if degree < 2 {
		return nil, dberror.New(dberror.CategoryUser, dberror.CodeBPlusTree,
			"tree degree must be at least 2").WithDetail("degree=%d", degree)
	}
	return &BPlusTree{degree: degree, store: store, pool: pool}, nil
}

// Height returns the cached height: the number of non-leaf levels,
// zero while the root is itself a leaf. No I/O.
func (t *BPlusTree) Height() uint32 {
	return t.store.Height()
}

// Search returns every locator stored under key, in leaf-chain order.
// Duplicates are preserved.
func (t *BPlusTree) Search(key int32) ([]primitives.Locator, error) {
	id := t.store.RootID()

	for {
		node, err := t.pool.LoadNode(id)
		if err != nil {
			return nil, wrapTreeErr(err, "Search")
		}
		if node.Leaf {
			break
		}
		id = node.Children[searchRouteIndex(node.Keys, key)]
	}

	var results []primitives.Locator
	for id != primitives.NoNode {
		node, err := t.pool.LoadNode(id)
		if err != nil {
			return nil, wrapTreeErr(err, "Search")
		}

		done := false
		for i, k := range node.Keys {
			if k == key {
				results = append(results, node.Locators[i])
			} else if k > key {
				done = true
				break
			}
		}
		if done {
			break
		}
		id = node.NextLeaf
	}

	logging.Debug("index search", "key", key, "matches", len(results))
	return results, nil
}

// Insert adds a (key, locator) pair. Inserting an existing key appends
// another pair; the tree never deduplicates. Splits propagate upward,
// growing a new root (and the height) when the old root overflows.
func (t *BPlusTree) Insert(key int32, loc primitives.Locator) error {
	rootID := t.store.RootID()

	split, err := t.insertInto(rootID, key, loc)
	if err != nil {
		return wrapTreeErr(err, "Insert")
	}

	if split != nil {
		newRootID := t.store.AllocateNodeID()
		newRoot := NewInternal(newRootID,
			[]int32{split.key},
			[]primitives.NodeID{rootID, split.right})

		if err := t.pool.PutNode(newRoot); err != nil {
			return wrapTreeErr(err, "Insert")
		}
		t.pool.MarkNodeDirty(newRootID)

		t.store.SetRoot(newRootID, t.store.Height()+1)
		logging.Debug("root split", "new_root", newRootID, "height", t.store.Height())
	}

	// Allocations and root moves live only in the cached metadata
	// until written out.
	if err := t.store.SaveMetadata(); err != nil {
		return wrapTreeErr(err, "Insert")
	}
	return nil
}

// insertInto descends to the leaf for key, inserts, and bubbles splits
// back up. The returned splitResult is nil when no split reached this
// level.
func (t *BPlusTree) insertInto(id primitives.NodeID, key int32, loc primitives.Locator) (*splitResult, error) {
	node, err := t.pool.LoadNode(id)
	if err != nil {
		return nil, err
	}

	if node.Leaf {
		return t.insertIntoLeaf(node, key, loc)
	}

	childIdx := routeIndex(node.Keys, key)
	childID := node.Children[childIdx]

	// The recursive call may evict this node; only ids survive it.
	split, err := t.insertInto(childID, key, loc)
	if err != nil || split == nil {
		return nil, err
	}

	node, err = t.pool.LoadNode(id)
	if err != nil {
		return nil, err
	}
	return t.insertIntoInternal(node, childIdx, split)
}

// insertIntoLeaf places the pair at the first position whose key is
// strictly greater, so duplicates accumulate after their equals.
func (t *BPlusTree) insertIntoLeaf(leaf *Node, key int32, loc primitives.Locator) (*splitResult, error) {
	pos := len(leaf.Keys)
	for i, k := range leaf.Keys {
		if k > key {
			pos = i
			break
		}
	}

	leaf.Keys = insertKey(leaf.Keys, pos, key)
	leaf.Locators = insertLocator(leaf.Locators, pos, loc)
	t.pool.MarkNodeDirty(leaf.ID)

	if len(leaf.Keys) < t.degree {
		return nil, nil
	}
	return t.splitLeaf(leaf)
}

// splitLeaf moves the upper half of the leaf into a new right sibling,
// stitches the chain, and hands the right node's first key up as the
// separator.
func (t *BPlusTree) splitLeaf(leaf *Node) (*splitResult, error) {
	mid := len(leaf.Keys) / 2

	right := NewLeaf(t.store.AllocateNodeID())
	right.Keys = append([]int32(nil), leaf.Keys[mid:]...)
	right.Locators = append([]primitives.Locator(nil), leaf.Locators[mid:]...)
	right.NextLeaf = leaf.NextLeaf

	leaf.Keys = leaf.Keys[:mid]
	leaf.Locators = leaf.Locators[:mid]
	leaf.NextLeaf = right.ID
	t.pool.MarkNodeDirty(leaf.ID)

	// Installing the right node may evict the left one, which is fine:
	// eviction writes dirty frames back.
	if err := t.pool.PutNode(right); err != nil {
		return nil, err
	}
	t.pool.MarkNodeDirty(right.ID)

	logging.Debug("leaf split", "left", leaf.ID, "right", right.ID, "separator", right.Keys[0])
	return &splitResult{key: right.Keys[0], right: right.ID}, nil
}

// insertIntoInternal adds the separator and new child produced by the
// split of children[childIdx].
func (t *BPlusTree) insertIntoInternal(node *Node, childIdx int, split *splitResult) (*splitResult, error) {
	node.Keys = insertKey(node.Keys, childIdx, split.key)
	node.Children = insertChild(node.Children, childIdx+1, split.right)
	t.pool.MarkNodeDirty(node.ID)

	if len(node.Keys) < t.degree {
		return nil, nil
	}
	return t.splitInternal(node)
}

// splitInternal promotes the middle key; the left node keeps the lower
// keys and children, the new right sibling takes the upper ones.
func (t *BPlusTree) splitInternal(node *Node) (*splitResult, error) {
	mid := len(node.Keys) / 2
	promoted := node.Keys[mid]

	right := NewInternal(t.store.AllocateNodeID(),
		append([]int32(nil), node.Keys[mid+1:]...),
		append([]primitives.NodeID(nil), node.Children[mid+1:]...))

	node.Keys = node.Keys[:mid]
	node.Children = node.Children[:mid+1]
	t.pool.MarkNodeDirty(node.ID)

	if err := t.pool.PutNode(right); err != nil {
		return nil, err
	}
	t.pool.MarkNodeDirty(right.ID)

	logging.Debug("internal split", "left", node.ID, "right", right.ID, "promoted", promoted)
	return &splitResult{key: promoted, right: right.ID}, nil
}

// routeIndex picks the insert child: the first separator strictly
// greater than key routes left of itself, so a key equal to a
// separator descends right and duplicates pile up after their run.
func routeIndex(keys []int32, key int32) int {
	for i, k := range keys {
		if key < k {
			return i
		}
	}
	return len(keys)
}

// searchRouteIndex picks the search child: a key equal to a separator
// descends left, because splits may leave the head of a duplicate run
// in the left subtree. The leaf-chain walk picks up the rest.
func searchRouteIndex(keys []int32, key int32) int {
	for i, k := range keys {
		if key <= k {
			return i
		}
	}
	return len(keys)
}

func insertKey(keys []int32, pos int, key int32) []int32 {
	keys = append(keys, 0)
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = key
	return keys
}

func insertLocator(locs []primitives.Locator, pos int, loc primitives.Locator) []primitives.Locator {
	locs = append(locs, primitives.Locator{})
	copy(locs[pos+1:], locs[pos:])
	locs[pos] = loc
	return locs
}

func insertChild(children []primitives.NodeID, pos int, child primitives.NodeID) []primitives.NodeID {
	children = append(children, 0)
	copy(children[pos+1:], children[pos:])
	children[pos] = child
	return children
}

func wrapTreeErr(err error, op string) error {
	return dberror.Wrap(err, dberror.CodeBPlusTree, op, "BPlusTree")
}
