package super

import (
	"testing"

	"github.com/oslab/go-simfs/common"
)

func TestFreshSuper(t *testing.T) {
	sb := MkFsSuper()
	if !sb.Valid() {
		t.Fatal("fresh superblock must be valid")
	}
	if sb.FreeBlocks != uint32(common.TotalBlocks-common.DataStart) {
		t.Errorf("FreeBlocks %d, want %d", sb.FreeBlocks, common.TotalBlocks-common.DataStart)
	}
	if sb.FreeInodes != uint32(common.NInodes) {
		t.Errorf("FreeInodes %d, want %d", sb.FreeInodes, common.NInodes)
	}
	if sb.InodeBlock(0) != common.Bnum(common.InodeStart) {
		t.Errorf("InodeBlock(0) = %d", sb.InodeBlock(0))
	}
	if sb.InodeBlock(31) != common.Bnum(common.DataStart-1) {
		t.Errorf("InodeBlock(31) = %d, want %d", sb.InodeBlock(31), common.DataStart-1)
	}
}

func TestEncodeDecode(t *testing.T) {
	sb := MkFsSuper()
	sb.FreeBlocks = 123
	sb.FreeInodes = 7

	blk := sb.Encode()
	if uint64(len(blk)) != common.BlockSize {
		t.Fatalf("encoded superblock is %d bytes, want %d", len(blk), common.BlockSize)
	}
	got, err := Decode(blk)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *sb {
		t.Errorf("round trip mismatch: %+v vs %+v", got, sb)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Error("short buffer must fail")
	}
	blank := make([]byte, common.BlockSize)
	sb, err := Decode(blank)
	if err != nil {
		t.Fatal(err)
	}
	if sb.Valid() {
		t.Error("zeroed superblock must not be valid")
	}
}
