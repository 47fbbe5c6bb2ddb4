// Package shmbyte implements named, process-persistent single-byte cells,
// the thin storage primitive a Mapping shadows a serialized payload across.
// Each cell is one regular file under /dev/shm holding exactly one byte;
// no mmap is needed per cell because callers always hold the RW-lock
// around any sequence of cell reads or writes, so there is no intra-cell
// race to guard against at this layer.
package shmbyte

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cell is a handle to a single named byte in shared memory.
type Cell struct {
	name string
	path string
	file *os.File
}

func shmPath(name string) string {
	sanitized := strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
	return filepath.Join("/dev/shm", sanitized)
}

// Create exclusively creates a new named cell holding initial. It fails if
// a cell with this name already exists.
func Create(name string, initial byte) (*Cell, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("cell %q: %w", name, os.ErrExist)
		}
		return nil, fmt.Errorf("cell %q: create: %w", name, err)
	}
	if _, err := f.Write([]byte{initial}); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("cell %q: write initial byte: %w", name, err)
	}
	return &Cell{name: name, path: path, file: f}, nil
}

// Open attaches to an existing named cell. It fails with a wrapped
// os.ErrNotExist if the cell is absent; callers needing the distinguished
// "does not exist" behavior from §4.2 should check errors.Is(err,
// os.ErrNotExist).
func Open(name string) (*Cell, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cell %q: %w", name, os.ErrNotExist)
		}
		return nil, fmt.Errorf("cell %q: open: %w", name, err)
	}
	return &Cell{name: name, path: path, file: f}, nil
}

// Load reads the cell's current byte.
func (c *Cell) Load() (byte, error) {
	buf := make([]byte, 1)
	if _, err := c.file.ReadAt(buf, 0); err != nil {
		return 0, fmt.Errorf("cell %q: load: %w", c.name, err)
	}
	return buf[0], nil
}

// Store overwrites the cell's byte.
func (c *Cell) Store(b byte) error {
	if _, err := c.file.WriteAt([]byte{b}, 0); err != nil {
		return fmt.Errorf("cell %q: store: %w", c.name, err)
	}
	return nil
}

// ReleaseOwnership closes this handle and removes the underlying file,
// freeing the named cell entirely. A Mapping calls this on every cell
// index it pops when a write shrinks the payload.
func (c *Cell) ReleaseOwnership() error {
	var firstErr error
	if err := c.file.Close(); err != nil {
		firstErr = err
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close closes this handle without removing the underlying file, leaving
// the cell in place for other holders.
func (c *Cell) Close() error {
	return c.file.Close()
}
