package fs

import (
	"github.com/oslab/go-simfs/common"
)

// Read-only snapshots for the shell/rendering collaborators. These
// report accurate current state but carry no correctness contract.

type DiskInfo struct {
	TotalBlocks uint64 `json:"total_blocks"`
	BlockSize   uint64 `json:"block_size"`
	FreeBlocks  uint64 `json:"free_blocks"`
	UsedBlocks  uint64 `json:"used_blocks"`
	TotalInodes uint64 `json:"total_inodes"`
	FreeInodes  uint64 `json:"free_inodes"`
	DataStart   uint64 `json:"data_start"`
}

type FileInfo struct {
	Name     string `json:"name"`
	Size     uint32 `json:"size"`
	Blocks   int    `json:"blocks"`
	Perm     string `json:"permission"`
	RefCount uint8  `json:"ref_count"`
	InodeID  uint8  `json:"inode_id"`
}

func (fsys *FileSystem) DiskInfo() DiskInfo {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	free := fsys.bm.FreeCount()
	return DiskInfo{
		TotalBlocks: common.TotalBlocks,
		BlockSize:   common.BlockSize,
		FreeBlocks:  free,
		UsedBlocks:  common.TotalBlocks - free,
		TotalInodes: common.NInodes,
		FreeInodes:  uint64(fsys.sb.FreeInodes),
		DataStart:   common.DataStart,
	}
}

// ListDir lists every regular file, counting the indirect index block
// in the per-file block total.
func (fsys *FileSystem) ListDir() []FileInfo {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()

	var files []FileInfo
	for _, ip := range fsys.inodes {
		if ip == nil || !ip.Used || ip.Dir {
			continue
		}
		blocks := len(ip.DirectBlocks())
		if ip.Indirect >= 0 {
			if ib, err := fsys.readIndex(ip.Indirect); err == nil {
				blocks += len(ib.Blocks()) + 1
			}
		}
		files = append(files, FileInfo{
			Name:     ip.Filename,
			Size:     ip.Size,
			Blocks:   blocks,
			Perm:     ip.PermString(),
			RefCount: ip.RefCount,
			InodeID:  ip.ID,
		})
	}
	return files
}

// BitmapSnapshot reports the used flag for every block on the volume.
func (fsys *FileSystem) BitmapSnapshot() []bool {
	fsys.mu.Lock()
	defer fsys.mu.Unlock()
	return fsys.bm.Snapshot()
}
