// Package storage defines the byte-addressable storage contract chainstore
// builds chain records on top of, and a file-backed default implementation
// rooted in a directory tree with byte-range random access.
package storage

import (
	"errors"
	"io"
)

// ErrNotFound is returned by Stat/Read when the underlying object does not
// exist. It is the "well-known error code" the chainstore contract relies on
// to distinguish "absent" from "I/O failure".
var ErrNotFound = errors.New("storage: not found")

// Info is the subset of file metadata chainstore needs.
type Info struct {
	Size int64
}

// Handle is a single byte-addressable storage object — one physical file in
// the FileFactory implementation, one key in the buntstore implementation.
type Handle interface {
	// ReadAt reads up to length bytes at offset. A read reaching past
	// end-of-object returns only the bytes that exist (possibly none) and no
	// error — ErrNotFound means the object itself doesn't exist.
	ReadAt(offset int64, length int64) ([]byte, error)
	WriteAt(offset int64, data []byte) error
	Stat() (Info, error)
	io.Closer
}

// Factory opens (creating if necessary) the Handle for a logical,
// slash-separated relative path.
type Factory func(name string) (Handle, error)
