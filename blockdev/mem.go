package blockdev

import (
	"sync"

	"github.com/oslab/go-simfs/common"
)

// MemStore keeps the whole volume in memory. Used by tests and by the
// daemon when no disk image is configured.
type MemStore struct {
	mu      *sync.Mutex
	blocks  [][]byte
	nblocks uint64
}

func NewMemStore(nblocks uint64) *MemStore {
	blocks := make([][]byte, nblocks)
	for i := range blocks {
		blocks[i] = make([]byte, common.BlockSize)
	}
	return &MemStore{mu: new(sync.Mutex), blocks: blocks, nblocks: nblocks}
}

func (ms *MemStore) ReadBlock(bn common.Bnum) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := checkRange(bn, ms.nblocks); err != nil {
		return nil, err
	}
	blk := make([]byte, common.BlockSize)
	copy(blk, ms.blocks[bn])
	return blk, nil
}

func (ms *MemStore) WriteBlock(bn common.Bnum, data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := checkRange(bn, ms.nblocks); err != nil {
		return err
	}
	ms.blocks[bn] = padBlock(data)
	return nil
}

func (ms *MemStore) NBlocks() uint64 {
	return ms.nblocks
}

func (ms *MemStore) Zero() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range ms.blocks {
		ms.blocks[i] = make([]byte, common.BlockSize)
	}
	return nil
}

func (ms *MemStore) Close() error {
	return nil
}
