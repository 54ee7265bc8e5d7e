package fs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/oslab/go-simfs/blockdev"
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/inode"
)

const nDataBlocks = common.TotalBlocks - common.DataStart

type FsSuite struct {
	suite.Suite
	store *blockdev.MemStore
	fsys  *FileSystem
}

func (suite *FsSuite) SetupTest() {
	suite.store = blockdev.NewMemStore(common.TotalBlocks)
	suite.fsys = MkFileSystem(suite.store)
	suite.Require().NoError(suite.fsys.Format())
}

func (suite *FsSuite) freeBlocks() uint64 {
	return suite.fsys.DiskInfo().FreeBlocks
}

func (suite *FsSuite) TestFormat() {
	info := suite.fsys.DiskInfo()
	suite.Equal(uint64(nDataBlocks), info.FreeBlocks)
	suite.Equal(uint64(common.NInodes), info.FreeInodes)
	suite.Empty(suite.fsys.ListDir())
}

func (suite *FsSuite) TestCreateRead() {
	content := bytes.Repeat([]byte("x"), 100)
	suite.Require().NoError(suite.fsys.Create("f1", content, inode.DefaultPerm))

	// 100 bytes at 64 bytes/block = 2 blocks, no indirect
	suite.Equal(uint64(nDataBlocks-2), suite.freeBlocks())

	got, err := suite.fsys.Read("f1")
	suite.Require().NoError(err)
	suite.Equal(content, got)

	files := suite.fsys.ListDir()
	suite.Require().Len(files, 1)
	suite.Equal("f1", files[0].Name)
	suite.Equal(uint32(100), files[0].Size)
	suite.Equal(2, files[0].Blocks)
}

func (suite *FsSuite) TestCreateEmpty() {
	suite.Require().NoError(suite.fsys.Create("empty", nil, inode.DefaultPerm))
	// an empty file still holds one block
	suite.Equal(uint64(nDataBlocks-1), suite.freeBlocks())
	got, err := suite.fsys.Read("empty")
	suite.Require().NoError(err)
	suite.Empty(got)
}

func (suite *FsSuite) TestCreateDuplicate() {
	suite.Require().NoError(suite.fsys.Create("f1", []byte("a"), inode.DefaultPerm))
	err := suite.fsys.Create("f1", []byte("b"), inode.DefaultPerm)
	suite.ErrorIs(err, ErrExists)
}

func (suite *FsSuite) TestIndirectBoundary() {
	direct := bytes.Repeat([]byte("d"), common.NDirect*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("direct", direct, inode.DefaultPerm))
	// exactly ten blocks: no index block
	suite.Equal(uint64(nDataBlocks-common.NDirect), suite.freeBlocks())

	before := suite.freeBlocks()
	over := append(bytes.Repeat([]byte("e"), common.NDirect*int(common.BlockSize)), 'z')
	suite.Require().NoError(suite.fsys.Create("spill", over, inode.DefaultPerm))
	// eleven data blocks plus the index block itself
	suite.Equal(before-12, suite.freeBlocks())

	got, err := suite.fsys.Read("spill")
	suite.Require().NoError(err)
	suite.Equal(over, got)

	for _, fi := range suite.fsys.ListDir() {
		if fi.Name == "spill" {
			suite.Equal(12, fi.Blocks)
		}
	}
}

func (suite *FsSuite) TestMaxFileSize() {
	max := bytes.Repeat([]byte("m"), common.MaxFileBlocks*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("max", max, inode.DefaultPerm))
	got, err := suite.fsys.Read("max")
	suite.Require().NoError(err)
	suite.Equal(max, got)

	before := suite.freeBlocks()
	over := append(max, 'x')
	err = suite.fsys.Create("over", over, inode.DefaultPerm)
	suite.ErrorIs(err, ErrOutOfSpace)
	// rejection must not consume anything
	suite.Equal(before, suite.freeBlocks())
	suite.Len(suite.fsys.ListDir(), 1)
}

func (suite *FsSuite) TestCreateExhaustion() {
	// eat almost the whole data region
	filler := bytes.Repeat([]byte("f"), 26*int(common.BlockSize))
	n := 0
	for {
		err := suite.fsys.Create("f"+string(rune('a'+n/26))+string(rune('a'+n%26)), filler, inode.DefaultPerm)
		if err != nil {
			break
		}
		n++
		if n >= int(common.NInodes) {
			break
		}
	}
	before := suite.freeBlocks()
	free := suite.fsys.DiskInfo().FreeInodes
	if free == 0 {
		err := suite.fsys.Create("one-more", []byte("x"), inode.DefaultPerm)
		suite.ErrorIs(err, ErrOutOfSpace)
	}
	suite.Equal(before, suite.freeBlocks())
}

func (suite *FsSuite) TestWriteShrink() {
	content := bytes.Repeat([]byte("s"), 15*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("f", content, inode.DefaultPerm))
	used := nDataBlocks - suite.freeBlocks()
	suite.Equal(uint64(16), used) // 15 data + 1 index

	// shrink under the direct limit: tail and index block both freed
	suite.Require().NoError(suite.fsys.Write("f", []byte("tiny")))
	suite.Equal(uint64(nDataBlocks-1), suite.freeBlocks())

	got, err := suite.fsys.Read("f")
	suite.Require().NoError(err)
	suite.Equal([]byte("tiny"), got)
}

func (suite *FsSuite) TestWriteGrow() {
	suite.Require().NoError(suite.fsys.Create("f", []byte("seed"), inode.DefaultPerm))
	content := bytes.Repeat([]byte("g"), 13*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Write("f", content))
	suite.Equal(uint64(nDataBlocks-14), suite.freeBlocks())

	got, err := suite.fsys.Read("f")
	suite.Require().NoError(err)
	suite.Equal(content, got)
}

func (suite *FsSuite) TestWriteTooBig() {
	suite.Require().NoError(suite.fsys.Create("f", []byte("seed"), inode.DefaultPerm))
	before := suite.freeBlocks()
	over := bytes.Repeat([]byte("o"), (common.MaxFileBlocks+1)*int(common.BlockSize))
	suite.ErrorIs(suite.fsys.Write("f", over), ErrOutOfSpace)
	suite.Equal(before, suite.freeBlocks())

	// the original content survives a rejected write
	got, err := suite.fsys.Read("f")
	suite.Require().NoError(err)
	suite.Equal([]byte("seed"), got)
}

func (suite *FsSuite) TestWritePermission() {
	suite.Require().NoError(suite.fsys.Create("ro", []byte("locked"), inode.PermRead))
	suite.ErrorIs(suite.fsys.Write("ro", []byte("nope")), ErrPermission)
	suite.ErrorIs(suite.fsys.ModifyBlockAt("ro", 0, []byte("nope")), ErrPermission)

	// reads are still fine
	got, err := suite.fsys.Read("ro")
	suite.Require().NoError(err)
	suite.Equal([]byte("locked"), got)
}

func (suite *FsSuite) TestDelete() {
	content := bytes.Repeat([]byte("d"), 12*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("f", content, inode.DefaultPerm))
	suite.Require().NoError(suite.fsys.Delete("f"))

	// every block comes back, index block included
	suite.Equal(uint64(nDataBlocks), suite.freeBlocks())
	suite.Equal(uint64(common.NInodes), suite.fsys.DiskInfo().FreeInodes)
	_, err := suite.fsys.Read("f")
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *FsSuite) TestDeleteBusy() {
	suite.Require().NoError(suite.fsys.Create("f", []byte("held"), inode.DefaultPerm))
	suite.Require().NoError(suite.fsys.Acquire("f"))

	suite.ErrorIs(suite.fsys.Delete("f"), ErrBusy)
	suite.ErrorIs(suite.fsys.Write("f", []byte("x")), ErrBusy)

	// readers are never blocked by a reference
	got, err := suite.fsys.Read("f")
	suite.Require().NoError(err)
	suite.Equal([]byte("held"), got)

	suite.Require().NoError(suite.fsys.Release("f"))
	suite.NoError(suite.fsys.Delete("f"))
}

func (suite *FsSuite) TestReleaseUnreferenced() {
	suite.Require().NoError(suite.fsys.Create("f", []byte("x"), inode.DefaultPerm))
	// releasing with no references is a no-op, not an underflow
	suite.NoError(suite.fsys.Release("f"))
	suite.NoError(suite.fsys.Release("f"))
	suite.NoError(suite.fsys.Delete("f"))
}

func (suite *FsSuite) TestBlockLevelAccess() {
	content := bytes.Repeat([]byte("b"), 3*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("f", content, inode.DefaultPerm))

	blk, err := suite.fsys.ReadBlockAt("f", 1)
	suite.Require().NoError(err)
	suite.Equal(bytes.Repeat([]byte("b"), int(common.BlockSize)), blk)

	_, err = suite.fsys.ReadBlockAt("f", 3)
	suite.ErrorIs(err, ErrIndexRange)
	_, err = suite.fsys.ReadBlockAt("f", -1)
	suite.ErrorIs(err, ErrIndexRange)

	patch := bytes.Repeat([]byte("P"), int(common.BlockSize))
	suite.Require().NoError(suite.fsys.ModifyBlockAt("f", 1, patch))
	got, err := suite.fsys.Read("f")
	suite.Require().NoError(err)
	suite.Equal(patch, got[common.BlockSize:2*common.BlockSize])
}

func (suite *FsSuite) TestGrowSize() {
	suite.Require().NoError(suite.fsys.Create("f", bytes.Repeat([]byte("g"), 2*int(common.BlockSize)), inode.DefaultPerm))
	suite.Require().NoError(suite.fsys.GrowSize("f", 100))
	// grow-only: 100 < current size, unchanged
	_, size, err := suite.fsys.BlockList("f")
	suite.Require().NoError(err)
	suite.Equal(uint32(2*common.BlockSize), size)
}

func (suite *FsSuite) TestFilenameTruncatedOnCreate() {
	long := strings.Repeat("n", common.MaxFilename+5)
	suite.Require().NoError(suite.fsys.Create(long, []byte("x"), inode.DefaultPerm))
	files := suite.fsys.ListDir()
	suite.Require().Len(files, 1)
	suite.Equal(long[:common.MaxFilename], files[0].Name)
}

// Two long names sharing one stored 20-byte prefix are the same file;
// the second create must be rejected, not stored as a duplicate entry.
func (suite *FsSuite) TestLongNamePrefixCollision() {
	prefix := strings.Repeat("p", common.MaxFilename)
	suite.Require().NoError(suite.fsys.Create(prefix+"_one", []byte("1"), inode.DefaultPerm))

	before := suite.freeBlocks()
	err := suite.fsys.Create(prefix+"_two", []byte("2"), inode.DefaultPerm)
	suite.ErrorIs(err, ErrExists)
	suite.Equal(before, suite.freeBlocks())
	suite.Len(suite.fsys.ListDir(), 1)

	// the stored name still resolves
	suite.Require().NoError(suite.fsys.Delete(prefix))
	suite.Empty(suite.fsys.ListDir())
}

func (suite *FsSuite) TestMountRoundTrip() {
	content := bytes.Repeat([]byte("p"), 11*int(common.BlockSize))
	suite.Require().NoError(suite.fsys.Create("keep", content, inode.DefaultPerm))
	suite.Require().NoError(suite.fsys.Create("small", []byte("hi"), inode.DefaultPerm))
	suite.Require().NoError(suite.fsys.Delete("small"))
	want := suite.freeBlocks()

	// fresh FileSystem over the same store sees identical state
	remounted := MkFileSystem(suite.store)
	suite.Require().NoError(remounted.Mount())
	suite.Equal(want, remounted.DiskInfo().FreeBlocks)

	got, err := remounted.Read("keep")
	suite.Require().NoError(err)
	suite.Equal(content, got)
	_, err = remounted.Read("small")
	suite.ErrorIs(err, ErrNotFound)
}

func (suite *FsSuite) TestMountUnformatted() {
	store := blockdev.NewMemStore(common.TotalBlocks)
	fsys := MkFileSystem(store)
	// no magic on disk: mount falls back to a fresh format
	suite.Require().NoError(fsys.Mount())
	suite.Equal(uint64(nDataBlocks), fsys.DiskInfo().FreeBlocks)
}

func TestFsSuite(t *testing.T) {
	suite.Run(t, new(FsSuite))
}
