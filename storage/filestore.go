package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// FileFactory roots a Factory at a directory on disk, joining the logical,
// slash-separated name onto Root and creating parent directories on first
// write.
type FileFactory struct {
	Root string
}

// NewFileFactory wraps root into a FileFactory.
func NewFileFactory(root string) *FileFactory {
	return &FileFactory{Root: root}
}

// Open opens (without creating) the file at name, joined onto Root. Creation
// happens lazily on first WriteAt.
func (f *FileFactory) Open(name string) (Handle, error) {
	path := filepath.Join(f.Root, filepath.FromSlash(name))
	h := &fileHandle{path: path}
	if strings.HasSuffix(filepath.ToSlash(name), "/bitfield") {
		h.lock = flock.New(path + ".lock")
		// Advisory lock is best-effort: its absence must never fail the
		// open, per the storage contract.
		if ok, err := h.lock.TryLock(); err != nil || !ok {
			h.lock = nil
		}
	}
	return h, nil
}

type fileHandle struct {
	path string
	lock *flock.Flock
}

func (h *fileHandle) ReadAt(offset int64, length int64) ([]byte, error) {
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

func (h *fileHandle) WriteAt(offset int64, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteAt(data, offset)
	return err
}

func (h *fileHandle) Stat() (Info, error) {
	fi, err := os.Stat(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, ErrNotFound
		}
		return Info{}, err
	}
	return Info{Size: fi.Size()}, nil
}

func (h *fileHandle) Close() error {
	if h.lock != nil {
		return h.lock.Unlock()
	}
	return nil
}
