// Package bufferpool implements the fixed-size page cache every other
// layer of the core goes through to touch disk: pin/unpin reference
// counting, dirty tracking, FIFO/LRU replacement, and IO statistics.
//
// Grounded on the teacher's pkg/storage/buffer_pool.go and page.go, but
// reshaped per spec.md §5 and §9: no sync.RWMutex (this core is
// single-threaded, "no internal locks exist"), no container/list LRU
// ("fold [policyTag] into the frame as an ordinary field; the policy
// reads/writes it directly" — victim selection is a linear scan over a
// plain frame slice instead of list reordering).
package bufferpool

import (
	"github.com/mnohosten/coredb/pkg/dberror"
	"github.com/mnohosten/coredb/pkg/storagemgr"
)

// Strategy selects the replacement policy a pool uses to pick a victim
// frame. CLOCK, LFU, and LRUK are declared per spec.md §4.1.1 but not
// implemented; pinning against them fails with StrategyNotFound.
type Strategy int

const (
	FIFO Strategy = iota
	LRU
	CLOCK
	LFU
	LRUK
)

// NoPage marks an empty frame.
const NoPage = -1

// timerWrapThreshold is when the monotonic timer gets rebased, per
// spec.md §4.1.1's wraparound mitigation.
const timerWrapThreshold = int64(1) << 30

type frame struct {
	pageNum   int
	data      []byte
	dirty     bool
	fixCount  int
	policyTag int64
}

// PageHandle is the caller-facing view returned by Pin. Data aliases the
// frame's own buffer — ownership stays with the frame, per spec.md §3.
type PageHandle struct {
	PageNum int
	Data    []byte
}

// BufferPool caches numPages frames of one page file.
type BufferPool struct {
	file     storagemgr.PageFile
	strategy Strategy
	frames   []frame
	timer    int64
	readIO   int
	writeIO  int
}

// Open allocates numPages empty frames bound to file. The file must
// already be open; Open does no file-existence checking of its own —
// that already happened at storagemgr.OpenPageFile time.
func Open(file storagemgr.PageFile, numPages int, strategy Strategy) (*BufferPool, error) {
	frames := make([]frame, numPages)
	for i := range frames {
		frames[i] = frame{pageNum: NoPage, data: make([]byte, storagemgr.PageSize)}
	}
	return &BufferPool{file: file, strategy: strategy, frames: frames}, nil
}

// Shutdown requires every frame to be unpinned; it flushes dirty pages and
// releases frame buffers. On failure the pool is left untouched.
func (p *BufferPool) Shutdown() error {
	for i := range p.frames {
		if p.frames[i].fixCount > 0 {
			return dberror.New(dberror.ShutdownPoolFailed, "shutdownBufferPool", nil)
		}
	}
	if err := p.ForceFlushPool(); err != nil {
		return err
	}
	for i := range p.frames {
		p.frames[i] = frame{pageNum: NoPage}
	}
	return nil
}

// ForceFlushPool writes every dirty, unpinned frame back to disk. Pinned
// frames are skipped and remain dirty.
func (p *BufferPool) ForceFlushPool() error {
	for i := range p.frames {
		f := &p.frames[i]
		if f.pageNum == NoPage || f.fixCount > 0 || !f.dirty {
			continue
		}
		if err := p.file.WriteBlock(f.pageNum, f.data); err != nil {
			return dberror.Wrap(dberror.WriteFailed, "forceFlushPool", err)
		}
		f.dirty = false
		p.writeIO++
	}
	return nil
}

func (p *BufferPool) findFrame(pageNum int) int {
	for i := range p.frames {
		if p.frames[i].pageNum == pageNum {
			return i
		}
	}
	return -1
}

func (p *BufferPool) findEmptyFrame() int {
	for i := range p.frames {
		if p.frames[i].pageNum == NoPage {
			return i
		}
	}
	return -1
}

// stamp sets frame i's policyTag to the next timer value, rebasing the
// timer if it has grown past the wraparound threshold.
func (p *BufferPool) stamp(i int) {
	p.timer++
	p.frames[i].policyTag = p.timer
	if p.timer > timerWrapThreshold {
		p.rebaseTimer()
	}
}

func (p *BufferPool) rebaseTimer() {
	min := int64(0)
	found := false
	for i := range p.frames {
		if p.frames[i].pageNum == NoPage {
			continue
		}
		if !found || p.frames[i].policyTag < min {
			min = p.frames[i].policyTag
			found = true
		}
	}
	if !found {
		return
	}
	for i := range p.frames {
		if p.frames[i].pageNum != NoPage {
			p.frames[i].policyTag -= min
		}
	}
	p.timer -= min
}

// selectVictim picks the evictable frame (fixCount == 0) with the smallest
// policyTag, tie-breaking on the lower frame index.
func (p *BufferPool) selectVictim() int {
	victim := -1
	for i := range p.frames {
		if p.frames[i].fixCount != 0 {
			continue
		}
		if victim == -1 || p.frames[i].policyTag < p.frames[victim].policyTag {
			victim = i
		}
	}
	return victim
}

// Pin guarantees that, on success, the returned handle's Data aliases a
// frame holding pageNum and that frame's fix count is one higher than
// before the call.
func (p *BufferPool) Pin(pageNum int) (*PageHandle, error) {
	if p.strategy == CLOCK || p.strategy == LFU || p.strategy == LRUK {
		return nil, dberror.New(dberror.StrategyNotFound, "pinPage", nil)
	}

	if i := p.findFrame(pageNum); i >= 0 {
		p.frames[i].fixCount++
		if p.strategy == LRU {
			p.stamp(i)
		}
		return &PageHandle{PageNum: pageNum, Data: p.frames[i].data}, nil
	}

	if i := p.findEmptyFrame(); i >= 0 {
		if err := p.file.ReadBlock(pageNum, p.frames[i].data); err != nil {
			return nil, err
		}
		p.readIO++
		p.frames[i].pageNum = pageNum
		p.frames[i].dirty = false
		p.frames[i].fixCount = 1
		p.stamp(i)
		return &PageHandle{PageNum: pageNum, Data: p.frames[i].data}, nil
	}

	i := p.selectVictim()
	if i == -1 {
		return nil, dberror.New(dberror.NoVictim, "pinPage", nil)
	}
	if p.frames[i].dirty {
		if err := p.file.WriteBlock(p.frames[i].pageNum, p.frames[i].data); err != nil {
			return nil, dberror.Wrap(dberror.WriteFailed, "pinPage", err)
		}
		p.writeIO++
		p.frames[i].dirty = false
	}
	if err := p.file.ReadBlock(pageNum, p.frames[i].data); err != nil {
		return nil, err
	}
	p.readIO++
	p.frames[i].pageNum = pageNum
	p.frames[i].fixCount = 1
	p.stamp(i)
	return &PageHandle{PageNum: pageNum, Data: p.frames[i].data}, nil
}

// Unpin decrements the fix count of the frame holding h.PageNum. Unpinning
// a page not currently held is a programming error (spec.md §7); it is a
// no-op here rather than a crash.
func (p *BufferPool) Unpin(h *PageHandle) error {
	i := p.findFrame(h.PageNum)
	if i == -1 {
		return nil
	}
	if p.frames[i].fixCount > 0 {
		p.frames[i].fixCount--
	}
	return nil
}

// MarkDirty marks the frame holding h.PageNum dirty.
func (p *BufferPool) MarkDirty(h *PageHandle) {
	if i := p.findFrame(h.PageNum); i >= 0 {
		p.frames[i].dirty = true
	}
}

// ForcePage writes the frame's current bytes to disk immediately. The
// caller retains its pin.
func (p *BufferPool) ForcePage(h *PageHandle) error {
	i := p.findFrame(h.PageNum)
	if i == -1 {
		return nil
	}
	if err := p.file.WriteBlock(p.frames[i].pageNum, p.frames[i].data); err != nil {
		return dberror.Wrap(dberror.WriteFailed, "forcePage", err)
	}
	p.writeIO++
	p.frames[i].dirty = false
	return nil
}

// FrameContents returns the page number held by each frame, NoPage for an
// empty frame. The returned slice is freshly allocated.
func (p *BufferPool) FrameContents() []int {
	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].pageNum
	}
	return out
}

// DirtyFlags returns each frame's dirty bit. The returned slice is freshly
// allocated.
func (p *BufferPool) DirtyFlags() []bool {
	out := make([]bool, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].dirty
	}
	return out
}

// FixCounts returns each frame's fix count. The returned slice is freshly
// allocated.
func (p *BufferPool) FixCounts() []int {
	out := make([]int, len(p.frames))
	for i := range p.frames {
		out[i] = p.frames[i].fixCount
	}
	return out
}

// ReadIO returns the total number of block reads issued to storagemgr.
func (p *BufferPool) ReadIO() int { return p.readIO }

// WriteIO returns the total number of block writes issued to storagemgr.
func (p *BufferPool) WriteIO() int { return p.writeIO }

// NumPages returns the pool's frame capacity.
func (p *BufferPool) NumPages() int { return len(p.frames) }
