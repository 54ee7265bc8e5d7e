package blockdev

import (
	"fmt"
	"os"
	"sync"

	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/util"
)

// FileStore backs the volume with one flat file; block n lives at
// byte offset n*BlockSize.
type FileStore struct {
	mu      *sync.Mutex
	f       *os.File
	nblocks uint64
}

func NewFileStore(path string, nblocks uint64) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, fmt.Errorf("open disk image: %w", err)
	}
	if err := f.Truncate(int64(nblocks * common.BlockSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size disk image: %w", err)
	}
	util.DPrintf(1, "NewFileStore: %s, %d blocks", path, nblocks)
	return &FileStore{mu: new(sync.Mutex), f: f, nblocks: nblocks}, nil
}

func (fs *FileStore) ReadBlock(bn common.Bnum) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := checkRange(bn, fs.nblocks); err != nil {
		return nil, err
	}
	blk := make([]byte, common.BlockSize)
	if _, err := fs.f.ReadAt(blk, int64(uint64(bn)*common.BlockSize)); err != nil {
		return nil, fmt.Errorf("read block %d: %w", bn, err)
	}
	return blk, nil
}

func (fs *FileStore) WriteBlock(bn common.Bnum, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := checkRange(bn, fs.nblocks); err != nil {
		return err
	}
	if _, err := fs.f.WriteAt(padBlock(data), int64(uint64(bn)*common.BlockSize)); err != nil {
		return fmt.Errorf("write block %d: %w", bn, err)
	}
	return nil
}

func (fs *FileStore) NBlocks() uint64 {
	return fs.nblocks
}

func (fs *FileStore) Zero() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	zeros := make([]byte, fs.nblocks*common.BlockSize)
	if _, err := fs.f.WriteAt(zeros, 0); err != nil {
		return fmt.Errorf("zero disk image: %w", err)
	}
	return nil
}

func (fs *FileStore) Close() error {
	return fs.f.Close()
}
