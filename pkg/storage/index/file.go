package index

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
)

// Metadata is the tree's persisted header: where the root lives, the
// next id to hand out, and the current height (0 for a lone leaf).
type Metadata struct {
	RootID     primitives.NodeID
	NextNodeID primitives.NodeID
	Height     uint32
}

// FileStore persists B+ tree nodes and metadata in one file: a
// metadata block, a blank separator, then one NODE record per line.
// Lookup scans; save rewrites the one matching line (or appends).
type FileStore struct {
	path string
	meta Metadata
	log  *slog.Logger
}

// NewFileStore configures a store over the index file at path.
// Initialize must be called before any node operation.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, log: logging.With("IndexFileStore")}
}

// Metadata returns a copy of the cached metadata.
func (s *FileStore) Metadata() Metadata {
	return s.meta
}

// RootID returns the current root node id.
func (s *FileStore) RootID() primitives.NodeID {
	return s.meta.RootID
}

// Height returns the cached tree height.
func (s *FileStore) Height() uint32 {
	return s.meta.Height
}

// Initialize loads the metadata block, or on first run creates the
// file with root_id=0, next_node_id=1, height=0 and an empty leaf as
// node 0.
func (s *FileStore) Initialize() error {
	if _, err := os.Stat(s.path); err != nil {
		if !os.IsNotExist(err) {
			return dberror.Wrap(err, dberror.CodeIndexInit, "Initialize", "IndexFileStore")
		}

		s.meta = Metadata{RootID: 0, NextNodeID: 1, Height: 0}
		root := NewLeaf(0)
		content := s.metadataBlock() + root.EncodeRecord() + "\n"
		if err := os.WriteFile(s.path, []byte(content), 0o644); err != nil {
			return dberror.Wrap(err, dberror.CodeIndexInit, "Initialize", "IndexFileStore")
		}

		s.log.Info("created index store", "path", s.path)
		return nil
	}

	if err := s.loadMetadata(); err != nil {
		return err
	}
	s.log.Info("opened index store", "path", s.path,
		"root", s.meta.RootID, "height", s.meta.Height)
	return nil
}

// AllocateNodeID hands out the next node id. The bumped counter
// reaches disk on the next SaveMetadata.
func (s *FileStore) AllocateNodeID() primitives.NodeID {
	id := s.meta.NextNodeID
	s.meta.NextNodeID++
	return id
}

// SetRoot records a new root and height. Persisted by SaveMetadata.
func (s *FileStore) SetRoot(root primitives.NodeID, height uint32) {
	s.meta.RootID = root
	s.meta.Height = height
}

// LoadNode scans the node records for the one with the given id.
func (s *FileStore) LoadNode(id primitives.NodeID) (*Node, error) {
	nodes, err := s.readAll()
	if err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("NODE %d ", id)
	for _, line := range nodes {
		if strings.HasPrefix(line, prefix) {
			node, err := DecodeRecord(line)
			if err != nil {
				return nil, err
			}
			s.log.Debug("loaded index node", "node", id, "leaf", node.Leaf, "keys", len(node.Keys))
			return node, nil
		}
	}

	return nil, dberror.New(dberror.CategoryData, dberror.CodeNodeNotFound,
		"index node not found").WithDetail("node=%d", id)
}

// SaveNode rewrites the node's record in place, or appends it when the
// node is new.
func (s *FileStore) SaveNode(node *Node) error {
	nodes, err := s.readAll()
	if err != nil {
		return err
	}

	record := node.EncodeRecord()
	prefix := fmt.Sprintf("NODE %d ", node.ID)
	replaced := false
	for i, line := range nodes {
		if strings.HasPrefix(line, prefix) {
			nodes[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		nodes = append(nodes, record)
	}

	s.log.Debug("saved index node", "node", node.ID, "appended", !replaced)
	return s.writeAll(nodes)
}

// SaveMetadata rewrites the metadata block, preserving node records.
func (s *FileStore) SaveMetadata() error {
	nodes, err := s.readAll()
	if err != nil {
		return err
	}
	return s.writeAll(nodes)
}

// Flush forces the index file's bytes to stable storage.
func (s *FileStore) Flush() error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeIndexIO, "Flush", "IndexFileStore")
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return dberror.Wrap(err, dberror.CodeIndexIO, "Flush", "IndexFileStore")
	}
	return nil
}

func (s *FileStore) metadataBlock() string {
	return fmt.Sprintf("ROOT_ID=%d\nNEXT_ID=%d\nHEIGHT=%d\n\n",
		s.meta.RootID, s.meta.NextNodeID, s.meta.Height)
}

func (s *FileStore) loadMetadata() error {
	f, err := os.Open(s.path)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeIndexInit, "Initialize", "IndexFileStore")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	fields := map[string]uint64{}
	for _, want := range []string{"ROOT_ID", "NEXT_ID", "HEIGHT"} {
		if !scanner.Scan() {
			return dberror.New(dberror.CategoryData, dberror.CodeIndexInit,
				"truncated index metadata block").WithDetail("missing %s", want)
		}
		name, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || name != want {
			return dberror.New(dberror.CategoryData, dberror.CodeIndexInit,
				"malformed index metadata block").WithDetail("line %q", scanner.Text())
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return dberror.New(dberror.CategoryData, dberror.CodeIndexInit,
				"malformed index metadata value").WithDetail("line %q", scanner.Text())
		}
		fields[name] = n
	}

	s.meta = Metadata{
		RootID:     primitives.NodeID(fields["ROOT_ID"]),
		NextNodeID: primitives.NodeID(fields["NEXT_ID"]),
		Height:     uint32(fields["HEIGHT"]),
	}
	return nil
}

// readAll returns the node record lines, skipping the metadata block.
func (s *FileStore) readAll() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeIndexIO, "readAll", "IndexFileStore")
	}

	var nodes []string
	inNodes := false
	for _, line := range strings.Split(string(data), "\n") {
		if !inNodes {
			if line == "" {
				inNodes = true
			}
			continue
		}
		if line != "" {
			nodes = append(nodes, line)
		}
	}

	return nodes, nil
}

func (s *FileStore) writeAll(nodes []string) error {
	var b strings.Builder
	b.WriteString(s.metadataBlock())
	for _, line := range nodes {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return dberror.Wrap(err, dberror.CodeIndexIO, "writeAll", "IndexFileStore")
	}
	return nil
}
