package recordmgr

import (
	"github.com/mnohosten/coredb/pkg/dberror"
	"github.com/mnohosten/coredb/pkg/expr"
	"github.com/mnohosten/coredb/pkg/pagefmt"
	"github.com/mnohosten/coredb/pkg/value"
)

type scanState int

const (
	scanActive scanState = iota
	scanExhausted
)

// Scan walks every live record of a table's data pages in directory order,
// yielding those for which cond evaluates to a true BOOL. It holds no pins
// between Next calls.
type Scan struct {
	table *Table
	cond  expr.Expr
	state scanState

	dirPageNum int32
	dirIdx     int32
	slotIdx    int32 // next slot (0-based record count) to examine within the current entry
}

// StartScan begins a scan over t filtered by cond. Passing expr.True scans
// every live record unfiltered.
func StartScan(t *Table, cond expr.Expr) *Scan {
	return &Scan{
		table:      t,
		cond:       cond,
		state:      scanActive,
		dirPageNum: t.h,
		dirIdx:     0,
		slotIdx:    0,
	}
}

// dirEntryAt pins dirPageNum just long enough to read entry idx.
func (s *Scan) dirEntryAt(dirPageNum, idx int32) (pagefmt.DirEntry, error) {
	h, err := s.table.pool.Pin(int(dirPageNum))
	if err != nil {
		return pagefmt.DirEntry{}, err
	}
	e := pagefmt.DecodeDirEntry(h.Data, int(idx))
	if err := s.table.pool.Unpin(h); err != nil {
		return pagefmt.DirEntry{}, err
	}
	return e, nil
}

// nextDirPosition advances (dirPageNum, idx) to the next directory slot,
// following the chain pointer when idx runs off the end of a page. It
// returns ok == false once the chain is exhausted.
func (s *Scan) nextDirPosition(dirPageNum, idx int32) (nextPage, nextIdx int32, ok bool, err error) {
	idx++
	if idx < pagefmt.DirEntriesPerPage {
		return dirPageNum, idx, true, nil
	}

	h, err := s.table.pool.Pin(int(dirPageNum))
	if err != nil {
		return 0, 0, false, err
	}
	next := pagefmt.DecodeNextDirPage(h.Data)
	if err := s.table.pool.Unpin(h); err != nil {
		return 0, 0, false, err
	}
	if next == pagefmt.EndOfChain {
		return 0, 0, false, nil
	}
	return next, 0, true, nil
}

// Next advances the scan to the next matching record, writing it into out.
// It returns dberror.NoMoreTuples once the scan is exhausted.
func (s *Scan) Next(out *value.Record) error {
	if s.state == scanExhausted {
		return dberror.New(dberror.NoMoreTuples, "next", nil)
	}

	dirPageNum, idx, k := s.dirPageNum, s.dirIdx, s.slotIdx
	for {
		entry, err := s.dirEntryAt(dirPageNum, idx)
		if err != nil {
			return err
		}

		if entry.LiveCount == pagefmt.UnassignedLiveCount {
			s.state = scanExhausted
			return dberror.New(dberror.NoMoreTuples, "next", nil)
		}

		for ; k < s.table.capacityPerPage && k < entry.LiveCount; k++ {
			slot := k * s.table.slotsPerRecord
			h, err := s.table.pool.Pin(int(entry.DataPageIdx))
			if err != nil {
				return err
			}
			live := pagefmt.ReadSlotLive(h.Data, int(slot))
			if !live {
				if err := s.table.pool.Unpin(h); err != nil {
					return err
				}
				continue
			}
			body := append([]byte(nil), pagefmt.ReadSlotBody(h.Data, int(slot), int(s.table.recordSize))...)
			if err := s.table.pool.Unpin(h); err != nil {
				return err
			}

			candidate := &value.Record{
				ID:   value.RID{Page: entry.DataPageIdx, Slot: slot},
				Data: body,
			}
			matched, err := s.matches(candidate)
			if err != nil {
				return err
			}
			if matched {
				*out = *candidate
				s.dirPageNum, s.dirIdx, s.slotIdx = dirPageNum, idx, k+1
				return nil
			}
		}

		np, ni, ok, err := s.nextDirPosition(dirPageNum, idx)
		if err != nil {
			return err
		}
		if !ok {
			s.state = scanExhausted
			return dberror.New(dberror.NoMoreTuples, "next", nil)
		}
		dirPageNum, idx, k = np, ni, 0
		s.dirPageNum, s.dirIdx, s.slotIdx = dirPageNum, idx, k
	}
}

func (s *Scan) matches(rec *value.Record) (bool, error) {
	v, err := s.cond.Eval(rec, s.table.Schema)
	if err != nil {
		return false, err
	}
	return v.BoolV, nil
}

// Close releases the scan. Scans hold no pins between calls to Next, so
// there is nothing to release; Close exists for symmetry with Table.Close
// and to absorb future state.
func (s *Scan) Close() error {
	s.state = scanExhausted
	return nil
}
