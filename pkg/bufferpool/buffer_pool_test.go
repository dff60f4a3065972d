package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/mnohosten/coredb/pkg/storagemgr"
)

func openTestFile(t *testing.T, numPages int) storagemgr.PageFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	if err := storagemgr.CreatePageFile(path); err != nil {
		t.Fatalf("CreatePageFile: %v", err)
	}
	pf, err := storagemgr.OpenPageFile(path)
	if err != nil {
		t.Fatalf("OpenPageFile: %v", err)
	}
	if err := pf.EnsureCapacity(numPages); err != nil {
		t.Fatalf("EnsureCapacity: %v", err)
	}
	return pf
}

// TestScenarioT1FIFOEviction pins pages 0..2 into a 3-frame FIFO pool (all
// unpinned between pins), pins a 4th page (page 3), and expects the oldest
// frame (page 0) to be the one evicted.
func TestScenarioT1FIFOEviction(t *testing.T) {
	pf := openTestFile(t, 6)
	defer pf.Close()

	pool, err := Open(pf, 3, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		h, err := pool.Pin(i)
		if err != nil {
			t.Fatalf("Pin(%d): %v", i, err)
		}
		if err := pool.Unpin(h); err != nil {
			t.Fatalf("Unpin(%d): %v", i, err)
		}
	}

	if _, err := pool.Pin(3); err != nil {
		t.Fatalf("Pin(3): %v", err)
	}

	contents := pool.FrameContents()
	for _, pn := range contents {
		if pn == 0 {
			t.Fatalf("page 0 should have been evicted, frames=%v", contents)
		}
	}
}

// TestScenarioT2LRUBeatsFIFO re-pins page 0 before pinning a replacement
// page, so under LRU page 0 survives even though it was first in.
func TestScenarioT2LRUBeatsFIFO(t *testing.T) {
	pf := openTestFile(t, 6)
	defer pf.Close()

	pool, err := Open(pf, 3, LRU)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 3; i++ {
		h, err := pool.Pin(i)
		if err != nil {
			t.Fatalf("Pin(%d): %v", i, err)
		}
		if err := pool.Unpin(h); err != nil {
			t.Fatalf("Unpin(%d): %v", i, err)
		}
	}

	// Touch page 0 again, making page 1 the least-recently-used frame.
	h0, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0) again: %v", err)
	}
	if err := pool.Unpin(h0); err != nil {
		t.Fatalf("Unpin(0): %v", err)
	}

	if _, err := pool.Pin(3); err != nil {
		t.Fatalf("Pin(3): %v", err)
	}

	contents := pool.FrameContents()
	sawZero, sawOne := false, false
	for _, pn := range contents {
		if pn == 0 {
			sawZero = true
		}
		if pn == 1 {
			sawOne = true
		}
	}
	if !sawZero {
		t.Fatalf("page 0 should have survived under LRU, frames=%v", contents)
	}
	if sawOne {
		t.Fatalf("page 1 should have been evicted under LRU, frames=%v", contents)
	}
}

// TestScenarioT3DirtyFlushOnEviction marks a frame dirty, forces its
// eviction, and confirms the written bytes are visible on a fresh pin.
func TestScenarioT3DirtyFlushOnEviction(t *testing.T) {
	pf := openTestFile(t, 6)
	defer pf.Close()

	pool, err := Open(pf, 2, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h0, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0): %v", err)
	}
	copy(h0.Data, []byte("dirty-bytes"))
	pool.MarkDirty(h0)
	if err := pool.Unpin(h0); err != nil {
		t.Fatalf("Unpin(0): %v", err)
	}

	h1, err := pool.Pin(1)
	if err != nil {
		t.Fatalf("Pin(1): %v", err)
	}
	if err := pool.Unpin(h1); err != nil {
		t.Fatalf("Unpin(1): %v", err)
	}

	// Evict both frames by pinning two new pages.
	h2, err := pool.Pin(2)
	if err != nil {
		t.Fatalf("Pin(2): %v", err)
	}
	h3, err := pool.Pin(3)
	if err != nil {
		t.Fatalf("Pin(3): %v", err)
	}
	if err := pool.Unpin(h2); err != nil {
		t.Fatalf("Unpin(2): %v", err)
	}
	if err := pool.Unpin(h3); err != nil {
		t.Fatalf("Unpin(3): %v", err)
	}

	if pool.WriteIO() == 0 {
		t.Fatalf("expected at least one write-back on eviction of a dirty frame")
	}

	if err := pool.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	pool2, err := Open(pf, 2, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := pool2.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0) after reopen: %v", err)
	}
	if string(h.Data[:11]) != "dirty-bytes" {
		t.Fatalf("page 0 data = %q, want dirty-bytes prefix", h.Data[:11])
	}
}

// TestScenarioT6ShutdownBlockedByPin confirms Shutdown refuses to proceed
// while any frame is still pinned.
func TestScenarioT6ShutdownBlockedByPin(t *testing.T) {
	pf := openTestFile(t, 3)
	defer pf.Close()

	pool, err := Open(pf, 2, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0): %v", err)
	}

	if err := pool.Shutdown(); err == nil {
		t.Fatalf("Shutdown should fail while page 0 is pinned")
	}

	if err := pool.Unpin(h); err != nil {
		t.Fatalf("Unpin(0): %v", err)
	}
	if err := pool.Shutdown(); err != nil {
		t.Fatalf("Shutdown after unpin: %v", err)
	}
}

// TestPinReusesAlreadyCachedFrame checks that pinning an already-resident
// page does not issue a new read and raises that frame's fix count.
func TestPinReusesAlreadyCachedFrame(t *testing.T) {
	pf := openTestFile(t, 3)
	defer pf.Close()

	pool, err := Open(pf, 2, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h1, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0): %v", err)
	}
	readsAfterFirst := pool.ReadIO()

	h2, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0) again: %v", err)
	}
	if pool.ReadIO() != readsAfterFirst {
		t.Fatalf("second Pin of a cached page issued a read: readIO went from %d to %d", readsAfterFirst, pool.ReadIO())
	}

	fixCounts := pool.FixCounts()
	if fixCounts[0] != 2 {
		t.Fatalf("fix count = %d, want 2 after two pins", fixCounts[0])
	}

	pool.Unpin(h1)
	pool.Unpin(h2)
}

// TestPinFailsWhenAllFramesPinned checks that, with every frame pinned and
// no free frame, Pin on a new page fails.
func TestPinFailsWhenAllFramesPinned(t *testing.T) {
	pf := openTestFile(t, 4)
	defer pf.Close()

	pool, err := Open(pf, 2, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := pool.Pin(0); err != nil {
		t.Fatalf("Pin(0): %v", err)
	}
	if _, err := pool.Pin(1); err != nil {
		t.Fatalf("Pin(1): %v", err)
	}

	if _, err := pool.Pin(2); err == nil {
		t.Fatalf("Pin(2) should fail with no evictable frame")
	}
}

func TestStrategyNotFoundForUnimplementedPolicies(t *testing.T) {
	pf := openTestFile(t, 2)
	defer pf.Close()

	for _, strat := range []Strategy{CLOCK, LFU, LRUK} {
		pool, err := Open(pf, 2, strat)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, err := pool.Pin(0); err == nil {
			t.Fatalf("Pin under strategy %d should fail with StrategyNotFound", strat)
		}
	}
}

func TestForcePageWritesImmediately(t *testing.T) {
	pf := openTestFile(t, 2)
	defer pf.Close()

	pool, err := Open(pf, 1, FIFO)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h, err := pool.Pin(0)
	if err != nil {
		t.Fatalf("Pin(0): %v", err)
	}
	copy(h.Data, []byte("forced"))
	pool.MarkDirty(h)

	if err := pool.ForcePage(h); err != nil {
		t.Fatalf("ForcePage: %v", err)
	}
	if pool.WriteIO() != 1 {
		t.Fatalf("WriteIO = %d, want 1", pool.WriteIO())
	}
	if pool.DirtyFlags()[0] {
		t.Fatalf("frame should be clean after ForcePage")
	}
}
