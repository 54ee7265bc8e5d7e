package bitmap

import (
	"testing"

	"github.com/oslab/go-simfs/common"
)

func TestAllocFirstFit(t *testing.T) {
	bm := MkBitmap(common.TotalBlocks, common.DataStart)
	bn, ok := bm.Alloc()
	if !ok {
		t.Fatal("alloc failed on fresh bitmap")
	}
	if bn != common.Bnum(common.DataStart) {
		t.Errorf("first alloc got %d, want %d", bn, common.DataStart)
	}
	bn2, _ := bm.Alloc()
	if bn2 != bn+1 {
		t.Errorf("second alloc got %d, want %d", bn2, bn+1)
	}
	bm.SetFree(bn)
	bn3, _ := bm.Alloc()
	if bn3 != bn {
		t.Errorf("alloc after free got %d, want reused %d", bn3, bn)
	}
}

func TestReservedRegion(t *testing.T) {
	bm := MkBitmap(common.TotalBlocks, common.DataStart)
	for i := uint64(0); i < common.DataStart; i++ {
		if bm.IsFree(common.Bnum(i)) {
			t.Errorf("block %d below the data region must be used", i)
		}
	}
	if got := bm.FreeCount(); got != common.TotalBlocks-common.DataStart {
		t.Errorf("FreeCount got %d, want %d", got, common.TotalBlocks-common.DataStart)
	}
}

func TestAllocNRollback(t *testing.T) {
	// tiny volume: 8 data blocks
	bm := MkBitmap(12, 4)
	blks := bm.AllocN(5)
	if len(blks) != 5 {
		t.Fatalf("AllocN(5) got %d blocks", len(blks))
	}
	if bm.FreeCount() != 3 {
		t.Errorf("FreeCount got %d, want 3", bm.FreeCount())
	}
	if got := bm.AllocN(4); got != nil {
		t.Errorf("AllocN(4) with 3 free must fail, got %v", got)
	}
	// shortfall must not leak: still exactly 3 free
	if bm.FreeCount() != 3 {
		t.Errorf("rollback leaked: FreeCount %d, want 3", bm.FreeCount())
	}
}

func TestOutOfRange(t *testing.T) {
	bm := MkBitmap(16, 4)
	if bm.IsFree(common.NilBnum) {
		t.Error("negative block must not read as free")
	}
	if bm.IsFree(common.Bnum(16)) {
		t.Error("past-end block must not read as free")
	}
	bm.SetUsed(common.Bnum(100)) // must not panic
	bm.SetFree(common.NilBnum)
}

func TestEncodeDecode(t *testing.T) {
	bm := MkBitmap(common.TotalBlocks, common.DataStart)
	bm.AllocN(7)
	bn, _ := bm.Alloc()
	bm.SetFree(bn - 3)

	reloaded := DecodeBitmap(bm.Encode(), common.TotalBlocks, common.DataStart)
	if reloaded.FreeCount() != bm.FreeCount() {
		t.Errorf("reloaded FreeCount %d, want %d", reloaded.FreeCount(), bm.FreeCount())
	}
	orig := bm.Snapshot()
	got := reloaded.Snapshot()
	for i := range orig {
		if orig[i] != got[i] {
			t.Fatalf("bit %d diverges after reload", i)
		}
	}
}
