package fs

import "errors"

// Failure taxonomy surfaced by every file-level operation. All
// failures are rollback-safe: bitmap, inode table, and superblock stay
// mutually consistent as if the operation never ran.
var (
	ErrNotFound   = errors.New("file not found")
	ErrExists     = errors.New("file already exists")
	ErrOutOfSpace = errors.New("insufficient space")
	ErrIndexRange = errors.New("block index out of range")
	ErrPermission = errors.New("permission denied")
	ErrBusy       = errors.New("file is busy")
	ErrIOFault    = errors.New("i/o fault")
)
