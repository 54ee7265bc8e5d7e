package blockdev

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/goose-lang/std"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oslab/go-simfs/common"
)

func checkStore(t *testing.T, s Store) {
	t.Helper()

	// short writes come back zero-padded to a full block
	require.NoError(t, s.WriteBlock(0, []byte("hello")))
	blk, err := s.ReadBlock(0)
	require.NoError(t, err)
	require.Equal(t, int(common.BlockSize), len(blk))
	assert.Equal(t, []byte("hello"), blk[:5])
	assert.True(t, std.BytesEqual(make([]byte, common.BlockSize-5), blk[5:]))

	// oversized writes are clamped to one block
	big := bytes.Repeat([]byte{0xAB}, int(common.BlockSize)+10)
	require.NoError(t, s.WriteBlock(1, big))
	blk, err = s.ReadBlock(1)
	require.NoError(t, err)
	assert.True(t, std.BytesEqual(big[:common.BlockSize], blk))

	// adjacent blocks stay independent
	blk, err = s.ReadBlock(2)
	require.NoError(t, err)
	assert.True(t, std.BytesEqual(make([]byte, common.BlockSize), blk))

	last := common.Bnum(s.NBlocks() - 1)
	require.NoError(t, s.WriteBlock(last, []byte{1}))

	_, err = s.ReadBlock(common.Bnum(s.NBlocks()))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.ReadBlock(common.NilBnum)
	assert.ErrorIs(t, err, ErrOutOfRange)
	err = s.WriteBlock(common.Bnum(s.NBlocks()), nil)
	assert.ErrorIs(t, err, ErrOutOfRange)

	require.NoError(t, s.Zero())
	blk, err = s.ReadBlock(0)
	require.NoError(t, err)
	assert.True(t, std.BytesEqual(make([]byte, common.BlockSize), blk))
}

func TestMemStore(t *testing.T) {
	s := NewMemStore(common.TotalBlocks)
	defer s.Close()
	assert.Equal(t, common.TotalBlocks, s.NBlocks())
	checkStore(t, s)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	s, err := NewFileStore(path, common.TotalBlocks)
	require.NoError(t, err)
	defer s.Close()
	checkStore(t, s)
}

func TestFileStorePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	s, err := NewFileStore(path, 64)
	require.NoError(t, err)
	require.NoError(t, s.WriteBlock(7, []byte("persist me")))
	require.NoError(t, s.Close())

	s, err = NewFileStore(path, 64)
	require.NoError(t, err)
	defer s.Close()
	blk, err := s.ReadBlock(7)
	require.NoError(t, err)
	assert.Equal(t, []byte("persist me"), blk[:10])
}

func TestGooseStore(t *testing.T) {
	s := NewGooseMemStore(common.TotalBlocks)
	defer s.Close()
	assert.Equal(t, common.TotalBlocks, s.NBlocks())
	checkStore(t, s)
}

// Neighbors sharing one physical 4K block must not clobber each other
// through the read-modify-write path.
func TestGoosePacking(t *testing.T) {
	s := NewGooseMemStore(256)
	defer s.Close()

	for bn := common.Bnum(0); bn < common.Bnum(blocksPerPhys); bn++ {
		require.NoError(t, s.WriteBlock(bn, []byte{byte(bn) + 1}))
	}
	for bn := common.Bnum(0); bn < common.Bnum(blocksPerPhys); bn++ {
		blk, err := s.ReadBlock(bn)
		require.NoError(t, err)
		assert.Equal(t, byte(bn)+1, blk[0], "block %d", bn)
	}
}
