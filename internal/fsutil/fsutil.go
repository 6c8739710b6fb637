// Package fsutil provides atomic file publication for index artifacts.
//
// Index files must never be observable in a partially written state, so
// every write goes to a temp file in the target directory and is renamed
// into place only after a successful sync.
package fsutil

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

const writeBufferSize = 256 * 1024

// AtomicWriter stages writes in a temp file and publishes them to the
// final path only on Commit. The temp file lives in the target directory
// so the rename cannot cross filesystems.
type AtomicWriter struct {
	path    string
	tmpName string
	file    *os.File
	buf     *bufio.Writer
	done    bool
}

// NewAtomicWriter opens a staged writer for path.
func NewAtomicWriter(path string) (*AtomicWriter, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return nil, err
	}
	_ = tmp.Chmod(0o644)

	return &AtomicWriter{
		path:    path,
		tmpName: tmp.Name(),
		file:    tmp,
		buf:     bufio.NewWriterSize(tmp, writeBufferSize),
	}, nil
}

func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

// Commit flushes, syncs and renames the staged file over the target.
func (w *AtomicWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.buf.Flush(); err != nil {
		w.discard()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return err
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(w.tmpName)
		return err
	}
	if err := os.Rename(w.tmpName, w.path); err != nil {
		_ = os.Remove(w.tmpName)
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(filepath.Dir(w.path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Abort removes the staged file without touching the target. Idempotent.
func (w *AtomicWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.discard()
	return nil
}

func (w *AtomicWriter) discard() {
	_ = w.file.Close()
	_ = os.Remove(w.tmpName)
}

// WriteFileAtomic writes the output of writeFunc to path atomically.
// On any error the temp file is removed and the target is left untouched.
func WriteFileAtomic(path string, writeFunc func(w io.Writer) error) error {
	w, err := NewAtomicWriter(path)
	if err != nil {
		return err
	}
	if err := writeFunc(w); err != nil {
		_ = w.Abort()
		return err
	}
	return w.Commit()
}
