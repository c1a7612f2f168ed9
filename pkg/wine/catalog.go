package wine

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/logging"
)

// Source serves the equality lookups behind INC commands.
type Source interface {
	// LookupByHarvestYear returns every wine whose harvest year
	// equals year, in catalog order.
	LookupByHarvestYear(year int32) ([]Record, error)
}

// Fixed-width layout of one catalog entry:
// wine id (4) + harvest year (4) + type (1) + label length (2) +
// label bytes (labelCap, zero padded).
const (
	labelCap    = 117
	entryWidth  = 4 + 4 + 1 + 2 + labelCap
	catalogPerm = 0o644
)

// SortedCatalog is the pre-pass artifact: the source dataset sorted by
// harvest year in a fixed-width binary file, answering year lookups by
// binary search without loading the dataset into memory.
type SortedCatalog struct {
	file    *os.File
	entries int64
}

// BuildSortedCatalog sorts records by harvest year (stable, so catalog
// order survives within a year) and writes the fixed-width file at
// path, replacing any previous artifact.
func BuildSortedCatalog(records []Record, path string) error {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].HarvestYear < sorted[j].HarvestYear
	})

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, catalogPerm)
	if err != nil {
		return dberror.Wrap(err, dberror.CodeStoreInit, "BuildSortedCatalog", "SourceCatalog")
	}
	defer f.Close()

	buf := make([]byte, entryWidth)
	for _, rec := range sorted {
		encodeEntry(buf, rec)
		if _, err := f.Write(buf); err != nil {
			return dberror.Wrap(err, dberror.CodeStoreIO, "BuildSortedCatalog", "SourceCatalog")
		}
	}

	if err := f.Sync(); err != nil {
		return dberror.Wrap(err, dberror.CodeStoreIO, "BuildSortedCatalog", "SourceCatalog")
	}

	logging.Info("built sorted wine catalog", "path", path, "entries", len(sorted))
	return nil
}

// OpenSortedCatalog opens a pre-pass artifact for lookups.
func OpenSortedCatalog(path string) (*SortedCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dberror.Wrap(err, dberror.CodeStoreInit, "OpenSortedCatalog", "SourceCatalog")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberror.Wrap(err, dberror.CodeStoreInit, "OpenSortedCatalog", "SourceCatalog")
	}
	if info.Size()%entryWidth != 0 {
		f.Close()
		return nil, dberror.New(dberror.CategoryData, dberror.CodePageCorrupt,
			"catalog file size is not a multiple of the entry width").
			WithDetail("size=%d width=%d", info.Size(), entryWidth)
	}

	return &SortedCatalog{file: f, entries: info.Size() / entryWidth}, nil
}

// Close releases the underlying file handle.
func (c *SortedCatalog) Close() error {
	return c.file.Close()
}

// Len returns the number of catalog entries.
func (c *SortedCatalog) Len() int64 {
	return c.entries
}

// LookupByHarvestYear binary-searches for the leftmost entry with the
// given year, then scans right collecting matches.
func (c *SortedCatalog) LookupByHarvestYear(year int32) ([]Record, error) {
	var searchErr error
	first := int64(sort.Search(int(c.entries), func(i int) bool {
		if searchErr != nil {
			return true
		}
		y, err := c.yearAt(int64(i))
		if err != nil {
			searchErr = err
			return true
		}
		return y >= year
	}))
	if searchErr != nil {
		return nil, searchErr
	}

	var matches []Record
	for i := first; i < c.entries; i++ {
		rec, err := c.entryAt(i)
		if err != nil {
			return nil, err
		}
		if rec.HarvestYear != year {
			break
		}
		matches = append(matches, rec)
	}

	return matches, nil
}

func (c *SortedCatalog) yearAt(i int64) (int32, error) {
	var buf [4]byte
	if _, err := c.file.ReadAt(buf[:], i*entryWidth+4); err != nil {
		return 0, dberror.Wrap(err, dberror.CodeStoreIO, "LookupByHarvestYear", "SourceCatalog")
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func (c *SortedCatalog) entryAt(i int64) (Record, error) {
	buf := make([]byte, entryWidth)
	if _, err := c.file.ReadAt(buf, i*entryWidth); err != nil {
		return Record{}, dberror.Wrap(err, dberror.CodeStoreIO, "LookupByHarvestYear", "SourceCatalog")
	}
	return decodeEntry(buf), nil
}

func encodeEntry(buf []byte, rec Record) {
	label := []byte(rec.Label)
	if len(label) > labelCap {
		label = label[:labelCap]
	}

	binary.BigEndian.PutUint32(buf[0:], uint32(rec.WineID))
	binary.BigEndian.PutUint32(buf[4:], uint32(rec.HarvestYear))
	buf[8] = byte(rec.Type)
	binary.BigEndian.PutUint16(buf[9:], uint16(len(label)))
	copy(buf[11:], label)
	for i := 11 + len(label); i < entryWidth; i++ {
		buf[i] = 0
	}
}

func decodeEntry(buf []byte) Record {
	labelLen := binary.BigEndian.Uint16(buf[9:])
	return Record{
		WineID:      int32(binary.BigEndian.Uint32(buf[0:])),
		HarvestYear: int32(binary.BigEndian.Uint32(buf[4:])),
		Type:        Type(buf[8]),
		Label:       string(buf[11 : 11+labelLen]),
	}
}
