// Package index persists the B+ tree that maps harvest years to heap
// locators. Nodes live as individually rewritable records of a single
// index file headed by a metadata block; the tree itself performs all
// node I/O through the buffer pool's index frames.
package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
)

// Node is one B+ tree node, leaf or internal. Leaves carry parallel
// keys/locators plus the right-sibling link; internals carry keys and
// len(keys)+1 children.
type Node struct {
	ID   primitives.NodeID
	Leaf bool
	Keys []int32

	// Leaf fields.
	Locators []primitives.Locator
	NextLeaf primitives.NodeID

	// Internal field.
	Children []primitives.NodeID
}

// NewLeaf creates an empty leaf with no right sibling.
func NewLeaf(id primitives.NodeID) *Node {
	return &Node{ID: id, Leaf: true, NextLeaf: primitives.NoNode}
}

// NewInternal creates an internal node over the given keys and
// children.
func NewInternal(id primitives.NodeID, keys []int32, children []primitives.NodeID) *Node {
	return &Node{ID: id, Leaf: false, Keys: keys, Children: children}
}

// EncodeRecord renders the node as its single-line file record:
//
//	NODE <id> | LEAF=<bool> | KEYS=<csv> | VALUES=<csv> | NEXT=<id|null>
//	NODE <id> | LEAF=<bool> | KEYS=<csv> | CHILDREN=<csv>
func (n *Node) EncodeRecord() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NODE %d | LEAF=%t | KEYS=%s", n.ID, n.Leaf, joinKeys(n.Keys))

	if n.Leaf {
		locs := make([]string, len(n.Locators))
		for i, loc := range n.Locators {
			locs[i] = loc.String()
		}
		next := "null"
		if n.NextLeaf != primitives.NoNode {
			next = strconv.FormatUint(uint64(n.NextLeaf), 10)
		}
		fmt.Fprintf(&b, " | VALUES=%s | NEXT=%s", strings.Join(locs, ","), next)
	} else {
		children := make([]string, len(n.Children))
		for i, c := range n.Children {
			children[i] = strconv.FormatUint(uint64(c), 10)
		}
		fmt.Fprintf(&b, " | CHILDREN=%s", strings.Join(children, ","))
	}

	return b.String()
}

// DecodeRecord parses a node record line.
func DecodeRecord(line string) (*Node, error) {
	fields := strings.Split(line, " | ")
	if len(fields) < 4 || !strings.HasPrefix(fields[0], "NODE ") {
		return nil, recordErr(line, "malformed node record")
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "NODE "), 10, 32)
	if err != nil {
		return nil, recordErr(line, "invalid node id")
	}

	leafVal, ok := strings.CutPrefix(fields[1], "LEAF=")
	if !ok {
		return nil, recordErr(line, "missing LEAF field")
	}
	leaf, err := strconv.ParseBool(leafVal)
	if err != nil {
		return nil, recordErr(line, "invalid LEAF field")
	}

	keysVal, ok := strings.CutPrefix(fields[2], "KEYS=")
	if !ok {
		return nil, recordErr(line, "missing KEYS field")
	}
	keys, err := splitKeys(keysVal)
	if err != nil {
		return nil, recordErr(line, "invalid key list")
	}

	node := &Node{ID: primitives.NodeID(id), Leaf: leaf, Keys: keys}

	if leaf {
		if len(fields) != 5 {
			return nil, recordErr(line, "leaf record needs VALUES and NEXT")
		}
		locsVal, ok := strings.CutPrefix(fields[3], "VALUES=")
		if !ok {
			return nil, recordErr(line, "missing VALUES field")
		}
		node.Locators, err = splitLocators(locsVal)
		if err != nil {
			return nil, recordErr(line, "invalid locator list")
		}

		nextVal, ok := strings.CutPrefix(fields[4], "NEXT=")
		if !ok {
			return nil, recordErr(line, "missing NEXT field")
		}
		if nextVal == "null" {
			node.NextLeaf = primitives.NoNode
		} else {
			next, err := strconv.ParseUint(nextVal, 10, 32)
			if err != nil {
				return nil, recordErr(line, "invalid NEXT field")
			}
			node.NextLeaf = primitives.NodeID(next)
		}
		if len(node.Keys) != len(node.Locators) {
			return nil, recordErr(line, "leaf key/locator count mismatch")
		}
		return node, nil
	}

	childrenVal, ok := strings.CutPrefix(fields[3], "CHILDREN=")
	if !ok {
		return nil, recordErr(line, "missing CHILDREN field")
	}
	node.Children, err = splitChildren(childrenVal)
	if err != nil {
		return nil, recordErr(line, "invalid child list")
	}
	if len(node.Children) != len(node.Keys)+1 {
		return nil, recordErr(line, "internal child count mismatch")
	}
	return node, nil
}

func joinKeys(keys []int32) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.FormatInt(int64(k), 10)
	}
	return strings.Join(parts, ",")
}

func splitKeys(s string) ([]int32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	keys := make([]int32, len(parts))
	for i, p := range parts {
		k, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, err
		}
		keys[i] = int32(k)
	}
	return keys, nil
}

func splitLocators(s string) ([]primitives.Locator, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	locs := make([]primitives.Locator, len(parts))
	for i, p := range parts {
		pageStr, slotStr, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("locator %q lacks a page:slot separator", p)
		}
		page, err := strconv.ParseUint(pageStr, 10, 32)
		if err != nil {
			return nil, err
		}
		slot, err := strconv.ParseUint(slotStr, 10, 16)
		if err != nil {
			return nil, err
		}
		locs[i] = primitives.NewLocator(primitives.PageID(page), primitives.SlotID(slot))
	}
	return locs, nil
}

func splitChildren(s string) ([]primitives.NodeID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	children := make([]primitives.NodeID, len(parts))
	for i, p := range parts {
		c, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, err
		}
		children[i] = primitives.NodeID(c)
	}
	return children, nil
}

func recordErr(line, msg string) *dberror.DBError {
	return dberror.New(dberror.CategoryData, dberror.CodeIndexIO, msg).
		WithDetail("record %q", line)
}
