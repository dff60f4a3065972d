// Package pagefmt holds the on-disk layout conventions for a table file:
// the table header, the free-space directory chain, and the fixed-slot
// data page. Every function here is pure — it reads or writes a raw
// PageSize byte buffer (typically a pinned bufferpool.PageHandle's Data)
// and keeps no state of its own, per spec.md §2's "pure data contract, no
// runtime state."
//
// Grounded on the teacher's pkg/storage/free_page.go (chained free-list
// pages: fixed header + fixed-width entries + next-page pointer) and
// slotted_page.go (header/slot-directory encode-decode pairs), adapted
// from variable-length slots to the spec's fixed 256-byte slot layout.
package pagefmt

import "encoding/binary"

const (
	// PageSize is the fixed block size of every page in the table file.
	PageSize = 4096

	// SlotSize is the fixed width of one record slot on a data page.
	SlotSize = 256

	// HeaderFieldsSize is the size, in bytes, of the four header fields at
	// the start of page 0 (H, slotsPerRecord, slotSize, numTuples).
	HeaderFieldsSize = 16

	// DirEntrySize is the width of one (dataPageIdx, liveCount) directory
	// entry.
	DirEntrySize = 8

	// DirFooterSize is the width of the nextDirectoryPage pointer stored
	// at the end of every directory page.
	DirFooterSize = 4

	// DirEntriesPerPage is how many directory entries fit before the
	// trailing next-page pointer.
	DirEntriesPerPage = (PageSize - DirFooterSize) / DirEntrySize

	// UnassignedLiveCount marks a directory entry that has not yet been
	// given a data page.
	UnassignedLiveCount = -1

	// EndOfChain marks the last directory page in the chain.
	EndOfChain = -1
)

// Header holds the four fixed-width fields stored at the start of page 0.
type Header struct {
	H              int32 // header page count
	SlotsPerRecord int32
	SlotSize       int32
	NumTuples      int32
}

// EncodeHeader writes h's fields to buf[0:16].
func EncodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.H))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.SlotsPerRecord))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.SlotSize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.NumTuples))
}

// DecodeHeader reads the four header fields from buf[0:16].
func DecodeHeader(buf []byte) Header {
	return Header{
		H:              int32(binary.LittleEndian.Uint32(buf[0:4])),
		SlotsPerRecord: int32(binary.LittleEndian.Uint32(buf[4:8])),
		SlotSize:       int32(binary.LittleEndian.Uint32(buf[8:12])),
		NumTuples:      int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
}

// GetNumTuples reads just the numTuples field, bytes 12..15.
func GetNumTuples(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf[12:16]))
}

// SetNumTuples writes just the numTuples field, bytes 12..15.
func SetNumTuples(buf []byte, n int32) {
	binary.LittleEndian.PutUint32(buf[12:16], uint32(n))
}

// DirEntry is one (dataPageIdx, liveCount) pair in a free-space directory
// page.
type DirEntry struct {
	DataPageIdx int32
	LiveCount   int32
}

func dirEntryOffset(idx int) int { return idx * DirEntrySize }

// EncodeDirEntry writes entry idx (0-based within the page) to buf.
func EncodeDirEntry(buf []byte, idx int, e DirEntry) {
	off := dirEntryOffset(idx)
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(e.DataPageIdx))
	binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(e.LiveCount))
}

// DecodeDirEntry reads entry idx (0-based within the page) from buf.
func DecodeDirEntry(buf []byte, idx int) DirEntry {
	off := dirEntryOffset(idx)
	return DirEntry{
		DataPageIdx: int32(binary.LittleEndian.Uint32(buf[off : off+4])),
		LiveCount:   int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
	}
}

// EncodeNextDirPage writes the chain pointer into the last 4 bytes of a
// directory page.
func EncodeNextDirPage(buf []byte, next int32) {
	binary.LittleEndian.PutUint32(buf[PageSize-4:PageSize], uint32(next))
}

// DecodeNextDirPage reads the chain pointer from the last 4 bytes of a
// directory page.
func DecodeNextDirPage(buf []byte) int32 {
	return int32(binary.LittleEndian.Uint32(buf[PageSize-4 : PageSize]))
}

// InitDirectoryPage resets buf to a freshly allocated directory page: every
// entry unassigned, no next page.
func InitDirectoryPage(buf []byte) {
	empty := DirEntry{DataPageIdx: UnassignedLiveCount, LiveCount: UnassignedLiveCount}
	for i := 0; i < DirEntriesPerPage; i++ {
		EncodeDirEntry(buf, i, empty)
	}
	EncodeNextDirPage(buf, EndOfChain)
}

// SlotOffset returns the byte offset of slot on a data page.
func SlotOffset(slot int) int { return slot * SlotSize }

// WriteSlot marks slot live (or not) and writes body immediately after the
// live flag byte.
func WriteSlot(buf []byte, slot int, live bool, body []byte) {
	off := SlotOffset(slot)
	if live {
		buf[off] = 1
	} else {
		buf[off] = 0
	}
	copy(buf[off+1:off+1+len(body)], body)
}

// WriteSlotBody overwrites a slot's record bytes without touching its live
// flag.
func WriteSlotBody(buf []byte, slot int, body []byte) {
	off := SlotOffset(slot) + 1
	copy(buf[off:off+len(body)], body)
}

// ReadSlotLive reports whether the slot's live flag is set.
func ReadSlotLive(buf []byte, slot int) bool {
	return buf[SlotOffset(slot)] != 0
}

// ReadSlotBody returns the recordSize bytes following the live flag. The
// returned slice aliases buf.
func ReadSlotBody(buf []byte, slot int, recordSize int) []byte {
	off := SlotOffset(slot) + 1
	return buf[off : off+recordSize]
}

// ClearSlot zeroes the live flag and the record body, per spec.md §4.4:
// deleteRecord "zero[es] out the live byte and the record body."
func ClearSlot(buf []byte, slot int, recordSize int) {
	off := SlotOffset(slot)
	for i := 0; i <= recordSize; i++ {
		buf[off+i] = 0
	}
}
