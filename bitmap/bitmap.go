// Package bitmap tracks one free/used bit per block over the whole
// volume, low-bit-first within each byte. Bits below the data region
// start are permanently set at format time.
//
// The bitmap carries no lock of its own; callers serialize through the
// file system lock.
package bitmap

import (
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/util"
)

type Bitmap struct {
	bits    []byte
	nblocks uint64
	start   uint64 // first allocatable block
}

// MkBitmap builds a fresh bitmap with the reserved region [0, start) set.
func MkBitmap(nblocks uint64, start uint64) *Bitmap {
	bm := &Bitmap{
		bits:    make([]byte, (nblocks+7)/8),
		nblocks: nblocks,
		start:   start,
	}
	for i := uint64(0); i < start; i++ {
		bm.SetUsed(common.Bnum(i))
	}
	return bm
}

func (bm *Bitmap) SetUsed(bn common.Bnum) {
	if bn < 0 || uint64(bn) >= bm.nblocks {
		return
	}
	bit := uint64(bn) % 8
	bm.bits[uint64(bn)/8] |= 1 << bit
}

func (bm *Bitmap) SetFree(bn common.Bnum) {
	if bn < 0 || uint64(bn) >= bm.nblocks {
		return
	}
	bit := uint64(bn) % 8
	bm.bits[uint64(bn)/8] &= ^byte(1 << bit)
}

func (bm *Bitmap) IsFree(bn common.Bnum) bool {
	if bn < 0 || uint64(bn) >= bm.nblocks {
		return false
	}
	bit := uint64(bn) % 8
	return bm.bits[uint64(bn)/8]&(1<<bit) == 0
}

// Alloc does a first-fit linear scan over the data region. Returns
// false if no block is free.
func (bm *Bitmap) Alloc() (common.Bnum, bool) {
	for i := bm.start; i < bm.nblocks; i++ {
		bn := common.Bnum(i)
		if bm.IsFree(bn) {
			bm.SetUsed(bn)
			return bn, true
		}
	}
	return common.NilBnum, false
}

// AllocN allocates n blocks or none: on any shortfall it frees every
// block it had just taken and returns nil.
func (bm *Bitmap) AllocN(n int) []common.Bnum {
	blocks := make([]common.Bnum, 0, n)
	for i := 0; i < n; i++ {
		bn, ok := bm.Alloc()
		if !ok {
			for _, b := range blocks {
				bm.SetFree(b)
			}
			util.DPrintf(1, "AllocN: rollback after %d of %d", len(blocks), n)
			return nil
		}
		blocks = append(blocks, bn)
	}
	return blocks
}

// FreeCount rescans the data region rather than caching a counter, so
// it always reflects ground truth after a reload.
func (bm *Bitmap) FreeCount() uint64 {
	count := uint64(0)
	for i := bm.start; i < bm.nblocks; i++ {
		if bm.IsFree(common.Bnum(i)) {
			count++
		}
	}
	return count
}

// Snapshot reports the used flag for every block on the volume.
func (bm *Bitmap) Snapshot() []bool {
	used := make([]bool, bm.nblocks)
	for i := uint64(0); i < bm.nblocks; i++ {
		used[i] = !bm.IsFree(common.Bnum(i))
	}
	return used
}

func (bm *Bitmap) Encode() []byte {
	out := make([]byte, len(bm.bits))
	copy(out, bm.bits)
	return out
}

func DecodeBitmap(data []byte, nblocks uint64, start uint64) *Bitmap {
	bm := MkBitmap(nblocks, start)
	copy(bm.bits, data)
	return bm
}
