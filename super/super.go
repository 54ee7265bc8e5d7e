// Package super holds the superblock: volume-wide counters persisted
// to block 0 and rewritten after every metadata-affecting operation.
package super

import (
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/oslab/go-simfs/common"
)

type FsSuper struct {
	Magic       uint32
	TotalBlocks uint32
	BlockSize   uint32
	FreeBlocks  uint32
	FreeInodes  uint32
	InodeCount  uint32
	DataStart   uint32
}

// MkFsSuper builds the superblock for a freshly formatted volume.
func MkFsSuper() *FsSuper {
	return &FsSuper{
		Magic:       common.Magic,
		TotalBlocks: uint32(common.TotalBlocks),
		BlockSize:   uint32(common.BlockSize),
		FreeBlocks:  uint32(common.TotalBlocks - common.DataStart),
		FreeInodes:  uint32(common.NInodes),
		InodeCount:  uint32(common.NInodes),
		DataStart:   uint32(common.DataStart),
	}
}

func (sb *FsSuper) Valid() bool {
	return sb.Magic == common.Magic
}

func (sb *FsSuper) BitmapBlockStart() common.Bnum {
	return common.Bnum(common.BitmapStart)
}

func (sb *FsSuper) InodeBlockStart() common.Bnum {
	return common.Bnum(common.InodeStart)
}

// InodeBlock maps an inode slot to the block holding its record.
func (sb *FsSuper) InodeBlock(slot uint64) common.Bnum {
	return common.Bnum(common.InodeStart + slot)
}

func (sb *FsSuper) DataBlockStart() common.Bnum {
	return common.Bnum(sb.DataStart)
}

// Encode serializes the superblock: seven little-endian uint32 fields,
// zero-padded to one block.
func (sb *FsSuper) Encode() []byte {
	enc := marshal.NewEnc(common.BlockSize)
	enc.PutInt32(sb.Magic)
	enc.PutInt32(sb.TotalBlocks)
	enc.PutInt32(sb.BlockSize)
	enc.PutInt32(sb.FreeBlocks)
	enc.PutInt32(sb.FreeInodes)
	enc.PutInt32(sb.InodeCount)
	enc.PutInt32(sb.DataStart)
	return enc.Finish()
}

func Decode(b []byte) (*FsSuper, error) {
	if uint64(len(b)) < 28 {
		return nil, fmt.Errorf("superblock too short: %d bytes", len(b))
	}
	dec := marshal.NewDec(b)
	sb := &FsSuper{}
	sb.Magic = dec.GetInt32()
	sb.TotalBlocks = dec.GetInt32()
	sb.BlockSize = dec.GetInt32()
	sb.FreeBlocks = dec.GetInt32()
	sb.FreeInodes = dec.GetInt32()
	sb.InodeCount = dec.GetInt32()
	sb.DataStart = dec.GetInt32()
	return sb, nil
}
