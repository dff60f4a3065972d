// Package recordmgr is the record manager: table lifecycle, CRUD by RID,
// and predicate scans over slotted pages cached through a bufferpool.
// It is the orchestration layer spec.md §2 describes as "≈55%" of the
// core — it owns no bytes of its own, only the logic that drives
// pagefmt's pure encode/decode helpers through pinned pages.
//
// Grounded on the teacher's pkg/storage/free_page.go (directory chain
// walk-and-extend) and slotted_page.go (insert/get/delete/update against
// a page's slot directory), reshaped from the teacher's variable-length
// per-page slot model to the spec's fixed-slot, chained-directory model.
package recordmgr

import (
	"math"
	"strings"

	"github.com/mnohosten/coredb/pkg/bufferpool"
	"github.com/mnohosten/coredb/pkg/dberror"
	"github.com/mnohosten/coredb/pkg/pagefmt"
	"github.com/mnohosten/coredb/pkg/schema"
	"github.com/mnohosten/coredb/pkg/storagemgr"
	"github.com/mnohosten/coredb/pkg/value"
)

// DefaultBufferPoolPages is the frame count OpenTable allocates when the
// caller does not need control over buffer size; spec.md §4.3 calls this
// "implementation-chosen default, e.g., 10."
const DefaultBufferPoolPages = 10

// Table is an open table handle: it owns its buffer pool and its page
// file exclusively (spec.md §9 — "mixed ownership" is the bug being
// fixed), and caches the per-schema geometry computed once at open/create
// time instead of recomputing it on every call.
type Table struct {
	Name   string
	Schema *schema.Schema

	pool *bufferpool.BufferPool
	file storagemgr.PageFile

	h               int32
	slotsPerRecord  int32
	recordSize      int32
	capacityPerPage int32
}

// CreateTable creates a new, empty table file for sch. Partial creation is
// not rolled back on failure, per spec.md §4.3.
func CreateTable(name string, sch *schema.Schema) error {
	if err := storagemgr.CreatePageFile(name); err != nil {
		return err
	}

	pf, err := storagemgr.OpenPageFile(name)
	if err != nil {
		return err
	}
	defer pf.Close()

	schemaText := schema.Serialize(sch)
	h := int32(math.Ceil(float64(pagefmt.HeaderFieldsSize+len(schemaText)) / float64(pagefmt.PageSize)))
	if h < 1 {
		h = 1
	}

	if err := pf.EnsureCapacity(int(h)); err != nil {
		return dberror.Wrap(dberror.WriteFailed, "createTable", err)
	}

	recordSize := sch.RecordSize()
	slotsPerRecord := int32(math.Ceil(float64(recordSize+1) / float64(pagefmt.SlotSize)))
	if slotsPerRecord < 1 {
		slotsPerRecord = 1
	}

	if err := writeHeaderPages(pf, h, slotsPerRecord, schemaText); err != nil {
		return err
	}

	if err := pf.EnsureCapacity(int(h) + 1); err != nil {
		return dberror.Wrap(dberror.WriteFailed, "createTable", err)
	}
	dirBuf := make([]byte, pagefmt.PageSize)
	pagefmt.InitDirectoryPage(dirBuf)
	if err := pf.WriteBlock(int(h), dirBuf); err != nil {
		return dberror.Wrap(dberror.WriteFailed, "createTable", err)
	}

	return nil
}

func writeHeaderPages(pf storagemgr.PageFile, h int32, slotsPerRecord int32, schemaText string) error {
	remaining := []byte(schemaText)

	buf0 := make([]byte, pagefmt.PageSize)
	pagefmt.EncodeHeader(buf0, pagefmt.Header{
		H:              h,
		SlotsPerRecord: slotsPerRecord,
		SlotSize:       pagefmt.SlotSize,
		NumTuples:      0,
	})
	n := copy(buf0[pagefmt.HeaderFieldsSize:], remaining)
	remaining = remaining[n:]
	if err := pf.WriteBlock(0, buf0); err != nil {
		return dberror.Wrap(dberror.WriteFailed, "createTable", err)
	}

	for p := int32(1); p < h; p++ {
		buf := make([]byte, pagefmt.PageSize)
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if err := pf.WriteBlock(int(p), buf); err != nil {
			return dberror.Wrap(dberror.WriteFailed, "createTable", err)
		}
	}
	return nil
}

// OpenTable opens an existing table file, recovering its schema from the
// header pages and initializing an LRU buffer pool of DefaultBufferPoolPages
// frames against it.
func OpenTable(name string) (*Table, error) {
	pf, err := storagemgr.OpenPageFile(name)
	if err != nil {
		return nil, err
	}

	pool, err := bufferpool.Open(pf, DefaultBufferPoolPages, bufferpool.LRU)
	if err != nil {
		pf.Close()
		return nil, err
	}

	h0, err := pool.Pin(0)
	if err != nil {
		pf.Close()
		return nil, err
	}
	hdr := pagefmt.DecodeHeader(h0.Data)
	schemaBuf := append([]byte(nil), h0.Data[pagefmt.HeaderFieldsSize:]...)
	if err := pool.Unpin(h0); err != nil {
		pf.Close()
		return nil, err
	}

	for p := int32(1); p < hdr.H; p++ {
		hp, err := pool.Pin(int(p))
		if err != nil {
			pf.Close()
			return nil, err
		}
		schemaBuf = append(schemaBuf, hp.Data...)
		if err := pool.Unpin(hp); err != nil {
			pf.Close()
			return nil, err
		}
	}

	schemaText := strings.TrimRight(string(schemaBuf), "\x00")
	sch, err := schema.Parse(schemaText)
	if err != nil {
		pf.Close()
		return nil, err
	}

	return &Table{
		Name:            name,
		Schema:          sch,
		pool:            pool,
		file:            pf,
		h:               hdr.H,
		slotsPerRecord:  hdr.SlotsPerRecord,
		recordSize:      int32(sch.RecordSize()),
		capacityPerPage: pagefmt.PageSize / (hdr.SlotsPerRecord * pagefmt.SlotSize),
	}, nil
}

// Close shuts down the table's buffer pool (flushing dirty pages) and
// closes its file, releasing both exactly once.
func (t *Table) Close() error {
	if err := t.pool.Shutdown(); err != nil {
		return err
	}
	return t.file.Close()
}

// DeleteTable removes a closed table's file from disk.
func DeleteTable(name string) error {
	return storagemgr.DestroyPageFile(name)
}

// GetNumTuples reads the live header count from page 0.
func (t *Table) GetNumTuples() (int32, error) {
	h, err := t.pool.Pin(0)
	if err != nil {
		return 0, err
	}
	n := pagefmt.GetNumTuples(h.Data)
	if err := t.pool.Unpin(h); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Table) incrementNumTuples(delta int32) error {
	h, err := t.pool.Pin(0)
	if err != nil {
		return err
	}
	n := pagefmt.GetNumTuples(h.Data) + delta
	pagefmt.SetNumTuples(h.Data, n)
	t.pool.MarkDirty(h)
	return t.pool.Unpin(h)
}

// appendDataPage grows the file by one block and returns its page index.
func (t *Table) appendDataPage() (int32, error) {
	if err := t.file.AppendEmptyBlock(); err != nil {
		return 0, err
	}
	return int32(t.file.TotalNumPages() - 1), nil
}

// appendDirectoryPage grows the file by one block, initializes it as an
// empty directory page, and returns its page index.
func (t *Table) appendDirectoryPage() (int32, error) {
	if err := t.file.AppendEmptyBlock(); err != nil {
		return 0, err
	}
	pageNum := int32(t.file.TotalNumPages() - 1)

	h, err := t.pool.Pin(int(pageNum))
	if err != nil {
		return 0, err
	}
	pagefmt.InitDirectoryPage(h.Data)
	t.pool.MarkDirty(h)
	if err := t.pool.Unpin(h); err != nil {
		return 0, err
	}
	return pageNum, nil
}

// locateFreeDirectorySlot walks the directory chain starting at page t.h,
// extending it with a fresh directory page if every existing entry is
// already assigned and full.
func (t *Table) locateFreeDirectorySlot() (dirPageNum int32, idx int32, err error) {
	pageNum := t.h
	for {
		h, err := t.pool.Pin(int(pageNum))
		if err != nil {
			return 0, 0, err
		}

		found := int32(-1)
		for i := int32(0); i < pagefmt.DirEntriesPerPage; i++ {
			e := pagefmt.DecodeDirEntry(h.Data, int(i))
			if e.LiveCount < t.capacityPerPage {
				found = i
				break
			}
		}
		if found >= 0 {
			if err := t.pool.Unpin(h); err != nil {
				return 0, 0, err
			}
			return pageNum, found, nil
		}

		next := pagefmt.DecodeNextDirPage(h.Data)
		if next != pagefmt.EndOfChain {
			if err := t.pool.Unpin(h); err != nil {
				return 0, 0, err
			}
			pageNum = next
			continue
		}

		newDirPage, err := t.appendDirectoryPage()
		if err != nil {
			t.pool.Unpin(h)
			return 0, 0, err
		}
		pagefmt.EncodeNextDirPage(h.Data, newDirPage)
		t.pool.MarkDirty(h)
		if err := t.pool.Unpin(h); err != nil {
			return 0, 0, err
		}
		pageNum = newDirPage
	}
}

// InsertRecord assigns rec a RID, writes its bytes into a live slot, and
// bumps the directory entry's and header's live counts.
func (t *Table) InsertRecord(rec *value.Record) error {
	dirPageNum, idx, err := t.locateFreeDirectorySlot()
	if err != nil {
		return err
	}

	dh, err := t.pool.Pin(int(dirPageNum))
	if err != nil {
		return err
	}
	entry := pagefmt.DecodeDirEntry(dh.Data, int(idx))
	if entry.LiveCount == pagefmt.UnassignedLiveCount {
		dataPageIdx, err := t.appendDataPage()
		if err != nil {
			t.pool.Unpin(dh)
			return err
		}
		entry.DataPageIdx = dataPageIdx
		entry.LiveCount = 0
	}

	slot := entry.LiveCount * t.slotsPerRecord
	rid := value.RID{Page: entry.DataPageIdx, Slot: slot}

	ph, err := t.pool.Pin(int(entry.DataPageIdx))
	if err != nil {
		t.pool.Unpin(dh)
		return err
	}
	pagefmt.WriteSlot(ph.Data, int(slot), true, rec.Data)
	t.pool.MarkDirty(ph)
	if err := t.pool.Unpin(ph); err != nil {
		t.pool.Unpin(dh)
		return err
	}

	entry.LiveCount++
	pagefmt.EncodeDirEntry(dh.Data, int(idx), entry)
	t.pool.MarkDirty(dh)
	if err := t.pool.Unpin(dh); err != nil {
		return err
	}

	if err := t.incrementNumTuples(1); err != nil {
		return err
	}
	rec.ID = rid
	return nil
}

// GetRecord reads the record at id into out, or returns RecordNotExist if
// its slot is not live.
func (t *Table) GetRecord(id value.RID, out *value.Record) error {
	h, err := t.pool.Pin(int(id.Page))
	if err != nil {
		return err
	}
	if !pagefmt.ReadSlotLive(h.Data, int(id.Slot)) {
		t.pool.Unpin(h)
		return dberror.New(dberror.RecordNotExist, "getRecord", nil)
	}
	body := pagefmt.ReadSlotBody(h.Data, int(id.Slot), int(t.recordSize))
	out.ID = id
	out.Data = append([]byte(nil), body...)
	return t.pool.Unpin(h)
}

// DeleteRecord zeroes id's slot and decrements numTuples. The directory
// entry's liveCount is left untouched — slots are never reused, per the
// Open Question resolved in SPEC_FULL.md §9.
func (t *Table) DeleteRecord(id value.RID) error {
	h, err := t.pool.Pin(int(id.Page))
	if err != nil {
		return err
	}
	pagefmt.ClearSlot(h.Data, int(id.Slot), int(t.recordSize))
	t.pool.MarkDirty(h)
	if err := t.pool.Unpin(h); err != nil {
		return err
	}
	return t.incrementNumTuples(-1)
}

// UpdateRecord overwrites rec.ID's slot body in place. The live flag is
// not touched; updating a deleted slot is a programming error per
// spec.md §4.4 and is not detected here.
func (t *Table) UpdateRecord(rec *value.Record) error {
	h, err := t.pool.Pin(int(rec.ID.Page))
	if err != nil {
		return err
	}
	pagefmt.WriteSlotBody(h.Data, int(rec.ID.Slot), rec.Data)
	t.pool.MarkDirty(h)
	return t.pool.Unpin(h)
}
