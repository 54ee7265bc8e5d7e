// Package inode implements the fixed 64-byte file-control record and
// the one-level indirect index block.
package inode

import (
	"bytes"
	"encoding/binary"

	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/util"
)

// flag byte: used(1) | directory(1) | permission(3) | ref-count low 3 bits
const (
	flagUsed = 0x80
	flagDir  = 0x40

	PermRead  uint8 = 0b100
	PermWrite uint8 = 0b010
	PermExec  uint8 = 0b001

	DefaultPerm uint8 = PermRead | PermWrite
)

type Inode struct {
	ID       uint8
	Filename string
	Size     uint32
	Perm     uint8
	Used     bool
	Dir      bool
	RefCount uint8
	Direct   [common.NDirect]common.Bnum
	Indirect common.Bnum
}

// MkInode returns an unused inode: every block field holds the -1
// sentinel.
func MkInode(id uint8) *Inode {
	ip := &Inode{ID: id, Perm: DefaultPerm, Indirect: common.NilBnum}
	for i := range ip.Direct {
		ip.Direct[i] = common.NilBnum
	}
	return ip
}

// Reset returns the inode to the unused sentinel state after a delete.
func (ip *Inode) Reset() {
	ip.Used = false
	ip.Dir = false
	ip.Filename = ""
	ip.Size = 0
	ip.RefCount = 0
	ip.Perm = DefaultPerm
	ip.Indirect = common.NilBnum
	for i := range ip.Direct {
		ip.Direct[i] = common.NilBnum
	}
}

// DirectBlocks returns the allocated prefix of the direct list.
func (ip *Inode) DirectBlocks() []common.Bnum {
	var blks []common.Bnum
	for _, bn := range ip.Direct {
		if bn >= 0 {
			blks = append(blks, bn)
		}
	}
	return blks
}

func (ip *Inode) PermString() string {
	s := []byte("---")
	if ip.Perm&PermRead != 0 {
		s[0] = 'r'
	}
	if ip.Perm&PermWrite != 0 {
		s[1] = 'w'
	}
	if ip.Perm&PermExec != 0 {
		s[2] = 'x'
	}
	return string(s)
}

// Encode packs the inode into its 64-byte on-disk record:
// id u8, filename 20 bytes NUL-padded, size u32, flags u8,
// 10 x int16 direct block numbers, int16 indirect block number,
// zero padding. All integers little-endian.
//
// The marshal encoder only speaks 32/64-bit integers, so the 8- and
// 16-bit fields here are packed by hand.
func (ip *Inode) Encode() []byte {
	b := make([]byte, common.InodeSize)
	b[0] = ip.ID
	name := []byte(ip.Filename)
	if len(name) > common.MaxFilename {
		name = name[:common.MaxFilename]
	}
	copy(b[1:1+common.MaxFilename], name)
	binary.LittleEndian.PutUint32(b[21:25], ip.Size)

	flags := byte(0)
	if ip.Used {
		flags |= flagUsed
	}
	if ip.Dir {
		flags |= flagDir
	}
	flags |= (ip.Perm & 0x07) << 3
	flags |= ip.RefCount & 0x07
	b[25] = flags

	off := 26
	for i := 0; i < common.NDirect; i++ {
		binary.LittleEndian.PutUint16(b[off:off+2], uint16(int16(ip.Direct[i])))
		off += 2
	}
	binary.LittleEndian.PutUint16(b[off:off+2], uint16(int16(ip.Indirect)))
	return b
}

// Decode unpacks a 64-byte record for the given table slot. A stored
// id byte that disagrees with the slot index is ignored in favor of
// the slot index (legacy images carry stale id bytes).
func Decode(b []byte, slot uint8) *Inode {
	if uint64(len(b)) < common.InodeSize {
		return MkInode(slot)
	}
	if b[0] != slot {
		util.DPrintf(1, "inode %d: stored id %d diverges from slot", slot, b[0])
	}

	ip := &Inode{ID: slot}
	ip.Filename = string(bytes.TrimRight(b[1:1+common.MaxFilename], "\x00"))
	ip.Size = binary.LittleEndian.Uint32(b[21:25])

	flags := b[25]
	ip.Used = flags&flagUsed != 0
	ip.Dir = flags&flagDir != 0
	ip.Perm = (flags >> 3) & 0x07
	ip.RefCount = flags & 0x07

	off := 26
	for i := 0; i < common.NDirect; i++ {
		ip.Direct[i] = common.Bnum(int16(binary.LittleEndian.Uint16(b[off : off+2])))
		off += 2
	}
	ip.Indirect = common.Bnum(int16(binary.LittleEndian.Uint16(b[off : off+2])))
	return ip
}
