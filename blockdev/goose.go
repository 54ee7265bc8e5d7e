package blockdev

import (
	"fmt"
	"sync"

	"github.com/tchajed/goose/machine/disk"

	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/util"
)

// simulated blocks packed into one 4K physical block
const blocksPerPhys = disk.BlockSize / common.BlockSize

// GooseStore backs the volume with a goose machine disk (4096-byte
// physical blocks), packing blocksPerPhys simulated blocks into each
// physical block with read-modify-write on partial updates.
type GooseStore struct {
	mu      *sync.Mutex
	d       disk.Disk
	nblocks uint64
}

func physBlocks(nblocks uint64) uint64 {
	return (nblocks + blocksPerPhys - 1) / blocksPerPhys
}

func NewGooseMemStore(nblocks uint64) *GooseStore {
	util.DPrintf(1, "NewGooseMemStore: %d blocks", nblocks)
	var d disk.Disk = disk.NewMemDisk(physBlocks(nblocks))
	return &GooseStore{mu: new(sync.Mutex), d: d, nblocks: nblocks}
}

func NewGooseFileStore(path string, nblocks uint64) (*GooseStore, error) {
	util.DPrintf(1, "NewGooseFileStore: %s, %d blocks", path, nblocks)
	file, err := disk.NewFileDisk(path, physBlocks(nblocks))
	if err != nil {
		return nil, fmt.Errorf("open goose disk: %w", err)
	}
	var d disk.Disk = file
	return &GooseStore{mu: new(sync.Mutex), d: d, nblocks: nblocks}, nil
}

func (gs *GooseStore) ReadBlock(bn common.Bnum) ([]byte, error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if err := checkRange(bn, gs.nblocks); err != nil {
		return nil, err
	}
	phys := gs.d.Read(uint64(bn) / blocksPerPhys)
	off := (uint64(bn) % blocksPerPhys) * common.BlockSize
	blk := make([]byte, common.BlockSize)
	copy(blk, phys[off:off+common.BlockSize])
	return blk, nil
}

func (gs *GooseStore) WriteBlock(bn common.Bnum, data []byte) error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	if err := checkRange(bn, gs.nblocks); err != nil {
		return err
	}
	phys := gs.d.Read(uint64(bn) / blocksPerPhys)
	off := (uint64(bn) % blocksPerPhys) * common.BlockSize
	copy(phys[off:off+common.BlockSize], padBlock(data))
	gs.d.Write(uint64(bn)/blocksPerPhys, phys)
	return nil
}

func (gs *GooseStore) NBlocks() uint64 {
	return gs.nblocks
}

func (gs *GooseStore) Zero() error {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	zero := make([]byte, disk.BlockSize)
	for i := uint64(0); i < physBlocks(gs.nblocks); i++ {
		gs.d.Write(i, zero)
	}
	return nil
}

func (gs *GooseStore) Close() error {
	gs.d.Close()
	return nil
}
