// Package fs orchestrates the bitmap allocator and the inode table
// into a flat file system over a block store.
//
// The FileSystem is the sole owner of the superblock, the bitmap, and
// the inode table; one coarse mutex serializes every file-level
// operation. Go mutexes are not reentrant, so exported entry points
// lock once and delegate to unexported helpers that assume the lock is
// held.
package fs

import (
	"fmt"
	"sync"

	"github.com/oslab/go-simfs/bitmap"
	"github.com/oslab/go-simfs/blockdev"
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/inode"
	"github.com/oslab/go-simfs/super"
	"github.com/oslab/go-simfs/util"
)

type FileSystem struct {
	mu     *sync.Mutex
	store  blockdev.Store
	sb     *super.FsSuper
	bm     *bitmap.Bitmap
	inodes [common.NInodes]*inode.Inode
}

func MkFileSystem(store blockdev.Store) *FileSystem {
	return &FileSystem{mu: new(sync.Mutex), store: store}
}

// Store exposes the block device so the buffer cache can be handed a
// reference instead of reaching for ambient global state.
func (fsys *FileSystem) Store() blockdev.Store {
	return fsys.store
}

// Format reinitializes the volume: zeroed store, fresh superblock,
// reserved bitmap region, empty inode table.
func (fsys *FileSystem) Format() error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.format()
}

func (fsys *FileSystem) format() error {
	if err := fsys.store.Zero(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	fsys.sb = super.MkFsSuper()
	fsys.bm = bitmap.MkBitmap(common.TotalBlocks, common.DataStart)
	for i := uint64(0); i < common.NInodes; i++ {
		fsys.inodes[i] = inode.MkInode(uint8(i))
	}
	if err := fsys.saveSuper(); err != nil {
		return err
	}
	if err := fsys.saveBitmap(); err != nil {
		return err
	}
	for i := uint64(0); i < common.NInodes; i++ {
		if err := fsys.saveInode(uint8(i)); err != nil {
			return err
		}
	}
	util.DPrintf(0, "format: %d blocks, %d free data blocks",
		common.TotalBlocks, fsys.bm.FreeCount())
	return nil
}

// Mount loads the superblock, bitmap, and inode table from the store.
// A bad magic tag means the volume was never formatted (or is not
// ours), in which case the volume is reformatted.
func (fsys *FileSystem) Mount() error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	blk, err := fsys.store.ReadBlock(common.Bnum(common.SuperStart))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	sb, err := super.Decode(blk)
	if err != nil || !sb.Valid() {
		util.DPrintf(0, "mount: invalid volume, reformatting")
		return fsys.format()
	}
	fsys.sb = sb

	var bits []byte
	for i := uint64(0); i < common.NBitmapBlks; i++ {
		blk, err := fsys.store.ReadBlock(common.Bnum(common.BitmapStart + i))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIOFault, err)
		}
		bits = append(bits, blk...)
	}
	fsys.bm = bitmap.DecodeBitmap(bits, common.TotalBlocks, common.DataStart)

	for i := uint64(0); i < common.NInodes; i++ {
		blk, err := fsys.store.ReadBlock(fsys.sb.InodeBlock(i))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIOFault, err)
		}
		fsys.inodes[i] = inode.Decode(blk, uint8(i))
	}
	util.DPrintf(0, "mount: %d free blocks, %d free inodes",
		fsys.bm.FreeCount(), fsys.sb.FreeInodes)
	return nil
}

func (fsys *FileSystem) saveSuper() error {
	fsys.sb.FreeBlocks = uint32(fsys.bm.FreeCount())
	if err := fsys.store.WriteBlock(common.Bnum(common.SuperStart), fsys.sb.Encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	return nil
}

func (fsys *FileSystem) saveBitmap() error {
	bits := fsys.bm.Encode()
	for i := uint64(0); i < common.NBitmapBlks; i++ {
		start := i * common.BlockSize
		end := start + common.BlockSize
		if uint64(len(bits)) < end {
			end = uint64(len(bits))
		}
		if err := fsys.store.WriteBlock(common.Bnum(common.BitmapStart+i), bits[start:end]); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFault, err)
		}
	}
	return nil
}

func (fsys *FileSystem) saveInode(slot uint8) error {
	ip := fsys.inodes[slot]
	if err := fsys.store.WriteBlock(fsys.sb.InodeBlock(uint64(slot)), ip.Encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	return nil
}

// saveMeta persists an inode plus the allocator state after a
// metadata-affecting operation.
func (fsys *FileSystem) saveMeta(slot uint8) error {
	if err := fsys.saveInode(slot); err != nil {
		return err
	}
	if err := fsys.saveBitmap(); err != nil {
		return err
	}
	return fsys.saveSuper()
}

func (fsys *FileSystem) findInode(name string) *inode.Inode {
	for _, ip := range fsys.inodes {
		if ip != nil && ip.Used && ip.Filename == name {
			return ip
		}
	}
	return nil
}

// freeSlot returns the first unused inode slot by id order.
func (fsys *FileSystem) freeSlot() *inode.Inode {
	for _, ip := range fsys.inodes {
		if ip != nil && !ip.Used {
			return ip
		}
	}
	return nil
}

// resolveBlocks returns the file's ordered block list: direct entries
// first, then the entries of the indirect index block.
func (fsys *FileSystem) resolveBlocks(ip *inode.Inode) ([]common.Bnum, error) {
	blks := ip.DirectBlocks()
	if ip.Indirect >= 0 {
		ib, err := fsys.readIndex(ip.Indirect)
		if err != nil {
			return nil, err
		}
		blks = append(blks, ib.Blocks()...)
	}
	return blks, nil
}

func (fsys *FileSystem) readIndex(bn common.Bnum) (*inode.IndexBlock, error) {
	blk, err := fsys.store.ReadBlock(bn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	return inode.DecodeIndex(blk), nil
}

func (fsys *FileSystem) writeIndex(bn common.Bnum, blks []common.Bnum) error {
	ib := inode.MkIndexBlock()
	ib.SetBlocks(blks)
	if err := fsys.store.WriteBlock(bn, ib.Encode()); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	return nil
}

// writeContent scatters content across the file's block list, padding
// the tail block with zeros.
func (fsys *FileSystem) writeContent(blks []common.Bnum, content []byte) error {
	for i, bn := range blks {
		start := i * int(common.BlockSize)
		end := start + int(common.BlockSize)
		if start > len(content) {
			start = len(content)
		}
		if end > len(content) {
			end = len(content)
		}
		if err := fsys.store.WriteBlock(bn, content[start:end]); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFault, err)
		}
	}
	return nil
}
