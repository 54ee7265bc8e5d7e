// Package common holds the on-disk geometry constants and the block
// number type shared by every layer of the stack.
package common

const (
	BlockSize   uint64 = 64
	TotalBlocks uint64 = 1024

	// Fixed layout: superblock, two bitmap blocks, one block per inode.
	SuperStart   uint64 = 0
	BitmapStart  uint64 = 1
	NBitmapBlks  uint64 = 2
	InodeStart   uint64 = 3
	NInodes      uint64 = 32
	DataStart    uint64 = 35

	InodeSize   uint64 = 64 // on-disk size
	MaxFilename        = 20

	NDirect       = 10
	IndirectSlots = 16 // int32 indices per index block
	MaxFileBlocks = NDirect + IndirectSlots

	Magic uint32 = 0x4F534653 // "OSFS"
)

// Bnum is a physical block number. Stored on disk as a signed field so
// that NilBnum can mark an unused slot.
type Bnum int32

const NilBnum Bnum = -1

// CeilBlocks returns the number of data blocks needed for n bytes of
// content, minimum one (an empty file still holds a block).
func CeilBlocks(n int) int {
	blocks := (n + int(BlockSize) - 1) / int(BlockSize)
	if blocks == 0 {
		blocks = 1
	}
	return blocks
}
