// Package heap persists the wine relation as fixed-size pages in a
// single heap file. Pages hold a variable number of variable-length
// records; the file store addresses pages by id at offset id*P, with
// offset 0 reserved.
package heap

import (
	"encoding/binary"

	"github.com/talDoFlemis/YggdrasilVinum/pkg/dberror"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/primitives"
	"github.com/talDoFlemis/YggdrasilVinum/pkg/wine"
)

// Page layout (big endian, zero padded to the page size):
//
//	[page id u32][record count u16]
//	per record: [wine id u32][harvest year u32][type u8][label len u16][label bytes]
const (
	pageHeaderSize   = 4 + 2
	recordHeaderSize = 4 + 4 + 1 + 2
)

// Page is one in-memory heap page: its identity and the ordered record
// list. Records are only ever appended, so a slot, once handed out,
// keeps addressing the same record.
type Page struct {
	id      primitives.PageID
	records []wine.Record
}

// NewPage creates an empty page with the given id.
func NewPage(id primitives.PageID) *Page {
	return &Page{id: id}
}

// ID returns the page's identity.
func (p *Page) ID() primitives.PageID {
	return p.id
}

// Records returns the page's record list. The slice is the page's own;
// callers must not mutate it.
func (p *Page) Records() []wine.Record {
	return p.records
}

// NumRecords returns how many records the page holds.
func (p *Page) NumRecords() int {
	return len(p.records)
}

// RecordAt returns the record in the given slot.
func (p *Page) RecordAt(slot primitives.SlotID) (wine.Record, error) {
	if int(slot) >= len(p.records) {
		return wine.Record{}, dberror.New(dberror.CategoryData, dberror.CodePageCorrupt,
			"slot out of range").WithDetail("page=%d slot=%d records=%d", p.id, slot, len(p.records))
	}
	return p.records[slot], nil
}

// Append adds a record at the end of the page and returns the slot it
// landed in. The caller is responsible for the size check; Append does
// not re-verify the page bound.
func (p *Page) Append(rec wine.Record) primitives.SlotID {
	p.records = append(p.records, rec)
	return primitives.SlotID(len(p.records) - 1)
}

// EncodedSize returns the byte length of the page's serialized form,
// excluding padding.
func (p *Page) EncodedSize() int {
	size := pageHeaderSize
	for _, rec := range p.records {
		size += recordEncodedSize(rec)
	}
	return size
}

// HasSpaceFor reports whether the page, serialized with rec appended,
// still fits within pageSize bytes.
func (p *Page) HasSpaceFor(rec wine.Record, pageSize int) bool {
	return p.EncodedSize()+recordEncodedSize(rec) <= pageSize
}

func recordEncodedSize(rec wine.Record) int {
	return recordHeaderSize + len(rec.Label)
}

// Encode serializes the page into exactly pageSize bytes, padding the
// tail with zeroes. Fails with PAGE_TOO_LARGE when the records do not
// fit.
func (p *Page) Encode(pageSize int) ([]byte, error) {
	if p.EncodedSize() > pageSize {
		return nil, dberror.New(dberror.CategoryUser, dberror.CodePageTooLarge,
			"page does not fit within the page size").
			WithDetail("page=%d encoded=%d limit=%d", p.id, p.EncodedSize(), pageSize)
	}

	buf := make([]byte, pageSize)
	binary.BigEndian.PutUint32(buf[0:], uint32(p.id))
	binary.BigEndian.PutUint16(buf[4:], uint16(len(p.records)))

	off := pageHeaderSize
	for _, rec := range p.records {
		binary.BigEndian.PutUint32(buf[off:], uint32(rec.WineID))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(rec.HarvestYear))
		buf[off+8] = byte(rec.Type)
		binary.BigEndian.PutUint16(buf[off+9:], uint16(len(rec.Label)))
		copy(buf[off+recordHeaderSize:], rec.Label)
		off += recordEncodedSize(rec)
	}

	return buf, nil
}

// DecodePage reconstructs a page from its on-disk form. The id framed
// into the data must match want; any length that walks off the buffer
// is corruption.
func DecodePage(data []byte, want primitives.PageID) (*Page, error) {
	if len(data) < pageHeaderSize {
		return nil, corrupt(want, "page shorter than its header")
	}

	id := primitives.PageID(binary.BigEndian.Uint32(data[0:]))
	if id != want {
		return nil, corrupt(want, "framed page id mismatch")
	}

	count := int(binary.BigEndian.Uint16(data[4:]))
	page := &Page{id: id, records: make([]wine.Record, 0, count)}

	off := pageHeaderSize
	for i := 0; i < count; i++ {
		if off+recordHeaderSize > len(data) {
			return nil, corrupt(want, "record header walks off the page")
		}

		labelLen := int(binary.BigEndian.Uint16(data[off+9:]))
		if off+recordHeaderSize+labelLen > len(data) {
			return nil, corrupt(want, "record label walks off the page")
		}

		page.records = append(page.records, wine.Record{
			WineID:      int32(binary.BigEndian.Uint32(data[off:])),
			HarvestYear: int32(binary.BigEndian.Uint32(data[off+4:])),
			Type:        wine.Type(data[off+8]),
			Label:       string(data[off+recordHeaderSize : off+recordHeaderSize+labelLen]),
		})
		off += recordHeaderSize + labelLen
	}

	return page, nil
}

func corrupt(id primitives.PageID, msg string) *dberror.DBError {
	return dberror.New(dberror.CategoryData, dberror.CodePageCorrupt, msg).
		WithDetail("page=%d", id)
}
