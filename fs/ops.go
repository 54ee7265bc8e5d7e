package fs

import (
	"fmt"

	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/inode"
	"github.com/oslab/go-simfs/util"
)

// Create allocates an inode and the data blocks for content. Block
// allocation is all-or-nothing: any shortfall rolls back everything and
// reports ErrOutOfSpace, leaving no inode or block leak.
func (fsys *FileSystem) Create(name string, content []byte, perm uint8) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	// the stored form is what all later lookups see, so the duplicate
	// check must run against it
	if len(name) > common.MaxFilename {
		name = name[:common.MaxFilename]
	}
	if fsys.findInode(name) != nil {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	ip := fsys.freeSlot()
	if ip == nil {
		return fmt.Errorf("%w: inode table full", ErrOutOfSpace)
	}

	dataBlocks := common.CeilBlocks(len(content))
	if dataBlocks > common.MaxFileBlocks {
		return fmt.Errorf("%w: %d bytes needs %d blocks, max %d",
			ErrOutOfSpace, len(content), dataBlocks, common.MaxFileBlocks)
	}
	needIndirect := dataBlocks > common.NDirect
	total := dataBlocks
	if needIndirect {
		total++ // one extra block for the index itself
	}

	blks := fsys.bm.AllocN(total)
	if blks == nil {
		return fmt.Errorf("%w: need %d blocks, %d free", ErrOutOfSpace,
			total, fsys.bm.FreeCount())
	}
	rollback := func() {
		for _, bn := range blks {
			fsys.bm.SetFree(bn)
		}
	}

	var dataBlks []common.Bnum
	indirect := common.NilBnum
	if needIndirect {
		dataBlks = blks[:dataBlocks]
		indirect = blks[dataBlocks]
		if err := fsys.writeIndex(indirect, dataBlks[common.NDirect:]); err != nil {
			rollback()
			return err
		}
	} else {
		dataBlks = blks
	}
	if err := fsys.writeContent(dataBlks, content); err != nil {
		rollback()
		return err
	}

	ip.Used = true
	ip.Filename = name
	ip.Size = uint32(len(content))
	ip.Perm = perm
	ip.RefCount = 0
	ip.Indirect = indirect
	for i := range ip.Direct {
		if i < len(dataBlks) && i < common.NDirect {
			ip.Direct[i] = dataBlks[i]
		} else {
			ip.Direct[i] = common.NilBnum
		}
	}
	fsys.sb.FreeInodes--

	util.DPrintf(1, "create %q: %d bytes, %d blocks", name, len(content), total)
	return fsys.saveMeta(ip.ID)
}

// Read returns the whole file, truncated to the stored size (blocks
// may carry trailing zero padding past the logical size).
func (fsys *FileSystem) Read(name string) ([]byte, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	blks, err := fsys.resolveBlocks(ip)
	if err != nil {
		return nil, err
	}
	content := make([]byte, 0, len(blks)*int(common.BlockSize))
	for _, bn := range blks {
		blk, err := fsys.store.ReadBlock(bn)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIOFault, err)
		}
		content = append(content, blk...)
	}
	if uint32(len(content)) > ip.Size {
		content = content[:ip.Size]
	}
	return content, nil
}

// Write overwrites the whole file, growing or shrinking its block list
// as needed. A failed grow rolls back only the newly requested blocks
// and leaves the file unchanged.
func (fsys *FileSystem) Write(name string, content []byte) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if ip.Perm&inode.PermWrite == 0 {
		return fmt.Errorf("%w: %q", ErrPermission, name)
	}
	if ip.RefCount > 0 {
		return fmt.Errorf("%w: %q (ref count %d)", ErrBusy, name, ip.RefCount)
	}

	newBlocks := common.CeilBlocks(len(content))
	if newBlocks > common.MaxFileBlocks {
		return fmt.Errorf("%w: %d bytes needs %d blocks, max %d",
			ErrOutOfSpace, len(content), newBlocks, common.MaxFileBlocks)
	}

	old, err := fsys.resolveBlocks(ip)
	if err != nil {
		return err
	}
	oldIndirect := ip.Indirect

	var all []common.Bnum
	if newBlocks <= len(old) {
		// Shrink (or stay): free the surplus tail, and the indirect
		// block itself once ten or fewer blocks remain.
		all = old[:newBlocks]
		for _, bn := range old[newBlocks:] {
			fsys.bm.SetFree(bn)
		}
		if newBlocks <= common.NDirect && oldIndirect >= 0 {
			fsys.bm.SetFree(oldIndirect)
			ip.Indirect = common.NilBnum
		}
	} else {
		extra := newBlocks - len(old)
		needNewIndirect := newBlocks > common.NDirect && oldIndirect < 0
		if needNewIndirect {
			extra++
		}
		newly := fsys.bm.AllocN(extra)
		if newly == nil {
			return fmt.Errorf("%w: need %d more blocks, %d free",
				ErrOutOfSpace, extra, fsys.bm.FreeCount())
		}
		if needNewIndirect {
			ip.Indirect = newly[0]
			newly = newly[1:]
		}
		all = append(append([]common.Bnum{}, old...), newly...)
	}

	for i := range ip.Direct {
		if i < len(all) {
			ip.Direct[i] = all[i]
		} else {
			ip.Direct[i] = common.NilBnum
		}
	}
	if newBlocks > common.NDirect {
		if err := fsys.writeIndex(ip.Indirect, all[common.NDirect:]); err != nil {
			return err
		}
	}
	if err := fsys.writeContent(all, content); err != nil {
		return err
	}

	ip.Size = uint32(len(content))
	util.DPrintf(1, "write %q: %d bytes, %d blocks", name, len(content), len(all))
	return fsys.saveMeta(ip.ID)
}

// Delete refuses while the advisory ref count is nonzero; otherwise it
// frees every data block, the indirect index block, and the inode.
func (fsys *FileSystem) Delete(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if ip.RefCount > 0 {
		return fmt.Errorf("%w: %q (ref count %d)", ErrBusy, name, ip.RefCount)
	}

	blks, err := fsys.resolveBlocks(ip)
	if err != nil {
		return err
	}
	for _, bn := range blks {
		fsys.bm.SetFree(bn)
	}
	if ip.Indirect >= 0 {
		fsys.bm.SetFree(ip.Indirect)
	}
	ip.Reset()
	fsys.sb.FreeInodes++

	util.DPrintf(1, "delete %q: freed %d blocks", name, len(blks))
	return fsys.saveMeta(ip.ID)
}

// ReadBlockAt returns the raw content of the file's i'th block,
// including any zero padding past the logical size.
func (fsys *FileSystem) ReadBlockAt(name string, idx int) ([]byte, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	blks, err := fsys.resolveBlocks(ip)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(blks) {
		return nil, fmt.Errorf("%w: %d (file has %d blocks)", ErrIndexRange, idx, len(blks))
	}
	blk, err := fsys.store.ReadBlock(blks[idx])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	return blk, nil
}

// ModifyBlockAt overwrites the file's i'th block and grows the logical
// size when the write extends past the previous end of file.
func (fsys *FileSystem) ModifyBlockAt(name string, idx int, data []byte) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if ip.Perm&inode.PermWrite == 0 {
		return fmt.Errorf("%w: %q", ErrPermission, name)
	}
	blks, err := fsys.resolveBlocks(ip)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(blks) {
		return fmt.Errorf("%w: %d (file has %d blocks)", ErrIndexRange, idx, len(blks))
	}
	if len(data) > int(common.BlockSize) {
		data = data[:common.BlockSize]
	}
	if err := fsys.store.WriteBlock(blks[idx], data); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFault, err)
	}
	newSize := uint32(idx)*uint32(common.BlockSize) + uint32(len(data))
	if newSize > ip.Size {
		ip.Size = newSize
	}
	return fsys.saveInode(ip.ID)
}

// GrowSize extends the logical file size, never shrinking it. Used by
// the async layer after a block-level write through the buffer cache.
func (fsys *FileSystem) GrowSize(name string, newSize uint32) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if newSize <= ip.Size {
		return nil
	}
	ip.Size = newSize
	return fsys.saveInode(ip.ID)
}

// Acquire bumps the advisory ref count. It blocks destructive
// operations (write/delete) but never blocks readers.
func (fsys *FileSystem) Acquire(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	ip.RefCount++
	return fsys.saveInode(ip.ID)
}

// Release drops one advisory reference; releasing an unreferenced file
// is a no-op.
func (fsys *FileSystem) Release(name string) error {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if ip.RefCount == 0 {
		return nil
	}
	ip.RefCount--
	return fsys.saveInode(ip.ID)
}

// BlockList resolves the file's ordered block list (direct then
// indirect-indexed) along with its logical size.
func (fsys *FileSystem) BlockList(name string) ([]common.Bnum, uint32, error) {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	ip := fsys.findInode(name)
	if ip == nil {
		return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	blks, err := fsys.resolveBlocks(ip)
	if err != nil {
		return nil, 0, err
	}
	return blks, ip.Size, nil
}
