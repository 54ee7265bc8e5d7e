package inode

import (
	"github.com/tchajed/marshal"

	"github.com/oslab/go-simfs/common"
)

// IndexBlock is the one-level indirect index: 16 int32 block numbers
// filling one 64-byte block exactly, -1 for unused entries.
type IndexBlock struct {
	Indices [common.IndirectSlots]common.Bnum
}

func MkIndexBlock() *IndexBlock {
	ib := &IndexBlock{}
	for i := range ib.Indices {
		ib.Indices[i] = common.NilBnum
	}
	return ib
}

// SetBlocks fills the leading entries and clears the rest.
func (ib *IndexBlock) SetBlocks(blks []common.Bnum) {
	for i := range ib.Indices {
		if i < len(blks) {
			ib.Indices[i] = blks[i]
		} else {
			ib.Indices[i] = common.NilBnum
		}
	}
}

// Blocks returns the allocated entries in index order.
func (ib *IndexBlock) Blocks() []common.Bnum {
	var blks []common.Bnum
	for _, bn := range ib.Indices {
		if bn >= 0 {
			blks = append(blks, bn)
		}
	}
	return blks
}

func (ib *IndexBlock) Encode() []byte {
	enc := marshal.NewEnc(common.BlockSize)
	for _, bn := range ib.Indices {
		enc.PutInt32(uint32(int32(bn)))
	}
	return enc.Finish()
}

func DecodeIndex(b []byte) *IndexBlock {
	ib := MkIndexBlock()
	if uint64(len(b)) < common.BlockSize {
		return ib
	}
	dec := marshal.NewDec(b)
	for i := range ib.Indices {
		ib.Indices[i] = common.Bnum(int32(dec.GetInt32()))
	}
	return ib
}
