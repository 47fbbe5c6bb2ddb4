// Package sema implements a POSIX-style named counting semaphore on Linux
// without cgo. Each semaphore is a 4-byte futex word inside a page mmap'd
// from a backing file under /dev/shm, named after the semaphore so that
// unrelated processes opening the same name attach to the same word. The
// wait/post protocol below is the same atomic-compare-and-block-on-futex
// technique glibc's own sem_open/sem_wait/sem_post use internally; this
// package reimplements it in Go rather than wrapping glibc through cgo.
package sema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const wordSize = 4

// Semaphore is a named counting semaphore backed by shared memory.
type Semaphore struct {
	name    string
	path    string
	file    *os.File
	mapping []byte
	creator bool
}

func shmPath(name string) string {
	sanitized := strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
	return filepath.Join("/dev/shm", sanitized)
}

// Create exclusively creates a new named semaphore with the given initial
// value. It fails if a semaphore with this name already exists. The
// returned handle is marked as the creator: Close on it also unlinks the
// backing file (§4.1, §9 teardown rule).
func Create(name string, initial uint32) (*Semaphore, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("semaphore %q: %w", name, os.ErrExist)
		}
		return nil, fmt.Errorf("semaphore %q: create: %w", name, err)
	}

	if err := f.Truncate(wordSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("semaphore %q: truncate: %w", name, err)
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("semaphore %q: mmap: %w", name, err)
	}

	word(mapping).store(initial)

	return &Semaphore{name: name, path: path, file: f, mapping: mapping, creator: true}, nil
}

// Open attaches to an existing named semaphore. It fails if the name does
// not already exist.
func Open(name string) (*Semaphore, error) {
	path := shmPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("semaphore %q: %w", name, os.ErrNotExist)
		}
		return nil, fmt.Errorf("semaphore %q: open: %w", name, err)
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("semaphore %q: mmap: %w", name, err)
	}

	return &Semaphore{name: name, path: path, file: f, mapping: mapping, creator: false}, nil
}

// word is the futex-backed uint32 counter: bytes [0:4] of the mapping,
// accessed with atomic load/store/CAS throughout.
type word []byte

func (w word) ptr() *uint32 { return (*uint32)(ptrOf(w)) }

// Wait blocks until the semaphore's value is greater than zero, then
// atomically decrements it.
func (s *Semaphore) Wait() error {
	w := word(s.mapping)
	for {
		cur := atomicLoad(w.ptr())
		if cur > 0 {
			if atomicCAS(w.ptr(), cur, cur-1) {
				return nil
			}
			continue
		}
		err := unix.Futex(w.ptr(), unix.FUTEX_WAIT, 0, nil, nil, 0)
		if err != nil && err != unix.EAGAIN && err != unix.EINTR {
			return fmt.Errorf("semaphore %q: futex wait: %w", s.name, err)
		}
	}
}

// TryWait attempts a non-blocking decrement. It returns true if the value
// was decremented, false if the value was already zero.
func (s *Semaphore) TryWait() (bool, error) {
	w := word(s.mapping)
	for {
		cur := atomicLoad(w.ptr())
		if cur == 0 {
			return false, nil
		}
		if atomicCAS(w.ptr(), cur, cur-1) {
			return true, nil
		}
	}
}

// Post increments the semaphore's value and wakes one waiter, if any.
func (s *Semaphore) Post() error {
	w := word(s.mapping)
	for {
		cur := atomicLoad(w.ptr())
		if atomicCAS(w.ptr(), cur, cur+1) {
			break
		}
	}
	err := unix.Futex(w.ptr(), unix.FUTEX_WAKE, 1, nil, nil, 0)
	if err != nil {
		return fmt.Errorf("semaphore %q: futex wake: %w", s.name, err)
	}
	return nil
}

// GetValue is a best-effort read of the current value.
func (s *Semaphore) GetValue() uint32 {
	return atomicLoad(word(s.mapping).ptr())
}

// Close releases this handle's mapping and file descriptor. If this
// handle is the creator, Close also unlinks the backing name so that a
// future Create with the same name succeeds; non-creator handles never
// unlink (§9).
func (s *Semaphore) Close() error {
	var firstErr error
	if err := unix.Munmap(s.mapping); err != nil {
		firstErr = err
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.creator {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
