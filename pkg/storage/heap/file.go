package heap

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
)

const (
	// HeapFileName is the page file inside the storage directory.
	HeapFileName = "heap.ygg"
	// MetadataFileName is the metadata document beside it.
	MetadataFileName = "heap_metadata.ygg"
)

// Metadata is the heap file's metadata document. Pages are numbered
// 1..LastPageID contiguously, so LastPageID always equals PageCount.
type Metadata struct {
	LastPageID     primitives.PageID `json:"last_page_id"`
	PageCount      uint32            `json:"page_count"`
	HeapSizeBytes  uint64            `json:"heap_size_bytes"`
	CreatedAt      time.Time         `json:"created_at"`
	LastModifiedAt time.Time         `json:"last_modified_at"`
}

// FileStore owns the heap file: it allocates pages contiguously,
// reads and writes them by id, and keeps the metadata document
// current. Page reads and write-backs above it go through the buffer
// pool; the record catalog allocates new pages on the store directly.
type FileStore struct {
	dir      string
	pageSize int
	file     *os.File
	meta     Metadata
	log      *slog.Logger
}

// NewFileStore configures a store rooted at dir. Initialize must be
// called before any page operation.
func NewFileStore(dir string, pageSize int, heapSizeBytes uint64) *FileStore {
	return &FileStore{
		dir:      dir,
		pageSize: pageSize,
		meta:     Metadata{HeapSizeBytes: heapSizeBytes},
		log:      logging.With("HeapFileStore"),
	}
}

// PageSize returns the configured page size P.
func (s *FileStore) PageSize() int {
	return s.pageSize
}

// Metadata returns a copy of the current metadata document.
func (s *FileStore) Metadata() Metadata {
	return s.meta
}

// Initialize creates the storage directory and heap file on first run
// (allocating page 1 as an empty page), or loads the existing
// metadata and reopens the heap file.
func (s *FileStore) Initialize() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}

	metaPath := s.metadataPath()
	if _, err := os.Stat(metaPath); err != nil {
		if !os.IsNotExist(err) {
			return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
		}
		return s.create()
	}
	return s.open()
}

func (s *FileStore) create() error {
	file, err := os.OpenFile(s.heapPath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}
	if err := file.Truncate(int64(s.meta.HeapSizeBytes)); err != nil {
		file.Close()
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}
	s.file = file

	now := time.Now().UTC()
	s.meta.CreatedAt = now
	s.meta.LastModifiedAt = now
	s.meta.LastPageID = 0
	s.meta.PageCount = 0

	if _, err := s.AllocatePage(); err != nil {
		return err
	}

	s.log.Info("created heap store", "dir", s.dir,
		"page_size", s.pageSize, "heap_size", s.meta.HeapSizeBytes)
	return nil
}

func (s *FileStore) open() error {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}

	file, err := os.OpenFile(s.heapPath(), os.O_RDWR, 0o644)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "Initialize", "HeapFileStore")
	}
	s.file = file

	s.log.Info("opened heap store", "dir", s.dir, "pages", s.meta.PageCount)
	return nil
}

// ReadPage reads and decodes the page with the given id.
func (s *FileStore) ReadPage(id primitives.PageID) (*Page, error) {
	if !s.PageExists(id) {
		return nil, dberror.New(dberror.CategoryData, dberror.CodePageOutOfRange,
			"page id outside the allocated range").
			WithDetail("page=%d last=%d", id, s.meta.LastPageID)
	}

	buf := make([]byte, s.pageSize)
	if _, err := s.file.ReadAt(buf, s.pageOffset(id)); err != nil {
		return nil, dberror.Wrap(err, dberror.CodeStoreIO, "ReadPage", "HeapFileStore")
	}

	page, err := DecodePage(buf, id)
	if err != nil {
		return nil, err
	}

	s.log.Debug("read heap page", "page", id, "records", page.NumRecords())
	return page, nil
}

// WritePage encodes the page into exactly P bytes, writes it at its
// offset, and bumps the metadata's modification time on disk.
func (s *FileStore) WritePage(page *Page) error {
	if !s.PageExists(page.ID()) {
		return dberror.New(dberror.CategoryData, dberror.CodePageOutOfRange,
			"page id outside the allocated range").
			WithDetail("page=%d last=%d", page.ID(), s.meta.LastPageID)
	}

	buf, err := page.Encode(s.pageSize)
	if err != nil {
		return err
	}

	if _, err := s.file.WriteAt(buf, s.pageOffset(page.ID())); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "WritePage", "HeapFileStore")
	}

	s.meta.LastModifiedAt = time.Now().UTC()
	if err := s.saveMetadata(); err != nil {
		return err
	}

	s.log.Debug("wrote heap page", "page", page.ID(), "records", page.NumRecords())
	return nil
}

// AllocatePage reserves the next page id, writes an empty page at its
// offset and returns it. Allocation is refused once the next page
// would extend past the heap's byte budget.
func (s *FileStore) AllocatePage() (*Page, error) {
	newID := s.meta.LastPageID + 1
	if (uint64(newID)+1)*uint64(s.pageSize) > s.meta.HeapSizeBytes {
		return nil, dberror.New(dberror.CategorySystem, dberror.CodeHeapFull,
			"heap byte budget exhausted").
			WithDetail("page=%d page_size=%d heap_size=%d", newID, s.pageSize, s.meta.HeapSizeBytes)
	}

	page := NewPage(newID)
	buf, err := page.Encode(s.pageSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.file.WriteAt(buf, s.pageOffset(newID)); err != nil {
		return nil, dberror.Wrap(err, dberror.CodeStoreIO, "AllocatePage", "HeapFileStore")
	}

	s.meta.LastPageID = newID
	s.meta.PageCount++
	s.meta.LastModifiedAt = time.Now().UTC()
	if err := s.saveMetadata(); err != nil {
		return nil, err
	}

	s.log.Debug("allocated heap page", "page", newID)
	return page, nil
}

// PageExists reports whether id addresses an allocated page. Id 0 is
// reserved and never exists.
func (s *FileStore) PageExists(id primitives.PageID) bool {
	return id != 0 && id <= s.meta.LastPageID
}

// Flush forces the heap file's dirty bytes to stable storage.
func (s *FileStore) Flush() error {
	if err := s.file.Sync(); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "Flush", "HeapFileStore")
	}
	return nil
}

// Close flushes and releases the heap file handle.
func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}
	if err := s.Flush(); err != nil {
		return err
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "Close", "HeapFileStore")
	}
	return nil
}

func (s *FileStore) saveMetadata() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "saveMetadata", "HeapFileStore")
	}
	if err := os.WriteFile(s.metadataPath(), data, 0o644); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "saveMetadata", "HeapFileStore")
	}
	return nil
}

func (s *FileStore) pageOffset(id primitives.PageID) int64 {
	return int64(id) * int64(s.pageSize)
}

func (s *FileStore) heapPath() string {
	return filepath.Join(s.dir, HeapFileName)
}

func (s *FileStore) metadataPath() string {
	return filepath.Join(s.dir, MetadataFileName)
}
