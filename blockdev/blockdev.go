// Package blockdev implements the virtual disk: fixed-size block
// read/write over a byte-addressable backing store. All access goes
// through a store-wide lock, modeling a single physical head.
package blockdev

import (
	"errors"
	"fmt"

	"github.com/oslab/go-simfs/common"
)

var ErrOutOfRange = errors.New("block number out of range")

// Store is the raw block device under the file system and the buffer
// cache. ReadBlock always returns exactly BlockSize bytes; WriteBlock
// truncates or zero-pads its input to exactly BlockSize.
type Store interface {
	ReadBlock(bn common.Bnum) ([]byte, error)
	WriteBlock(bn common.Bnum, data []byte) error
	NBlocks() uint64
	Zero() error
	Close() error
}

func checkRange(bn common.Bnum, nblocks uint64) error {
	if bn < 0 || uint64(bn) >= nblocks {
		return fmt.Errorf("%w: %d (volume has %d blocks)", ErrOutOfRange, bn, nblocks)
	}
	return nil
}

// padBlock clamps data to one block, zero-padding short writes.
func padBlock(data []byte) []byte {
	blk := make([]byte, common.BlockSize)
	copy(blk, data)
	return blk
}
