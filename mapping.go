package shmdag

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/arcflow-dev/shmdag/shmbyte"
)

const lengthPrefixSize = 8 // fixed wire size regardless of host pointer width (§4.4)

// equatable is the constraint Mapping's compare-and-swap needs: a value
// type that can tell the mapping whether a freshly read snapshot still
// matches what a caller expects.
type equatable[T any] interface {
	Equal(T) bool
}

// Mapping holds a logical value of type T serialized across a sequence of
// shmbyte cells, guarded by an rwlock (§4.4). Graph is the only T this
// package instantiates, but the type itself stays generic so a caller
// wiring a different payload type only needs to supply its own
// encode/decode pair.
type Mapping[T equatable[T]] struct {
	prefix  string
	lock    *rwlock
	cells   []*shmbyte.Cell
	encode  func(T) ([]byte, error)
	decode  func([]byte) (T, error)
	creator bool
}

func cellName(prefix string, index int) string {
	return fmt.Sprintf("%s_%d", sanitizePrefix(prefix), index)
}

// CreateMapping exclusively creates a new mapping under prefix holding
// initial, serialized with encode/decode. It fails with ErrAlreadyExists
// if the mapping's write_lock semaphore already exists (§4.4, §7);
// callers translate that into OpenMapping exactly as the scheduler does.
func CreateMapping[T equatable[T]](
	prefix string,
	initial T,
	encode func(T) ([]byte, error),
	decode func([]byte) (T, error),
	clock clockz.Clock,
	spinInterval time.Duration,
) (*Mapping[T], error) {
	lock, err := createRWLock(prefix, clock, spinInterval)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	m := &Mapping[T]{prefix: prefix, lock: lock, encode: encode, decode: decode, creator: true}

	payload, err := encode(initial)
	if err != nil {
		lock.close()
		return nil, err
	}
	if err := m.createCellsLocked(payload); err != nil {
		lock.close()
		return nil, err
	}
	return m, nil
}

// OpenMapping attaches to an existing mapping. It fails with
// ErrDoesNotExist if the write_lock semaphore is absent.
func OpenMapping[T equatable[T]](
	prefix string,
	encode func(T) ([]byte, error),
	decode func([]byte) (T, error),
	clock clockz.Clock,
	spinInterval time.Duration,
) (*Mapping[T], error) {
	lock, err := openRWLock(prefix, clock, spinInterval)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrDoesNotExist
		}
		return nil, err
	}
	return &Mapping[T]{prefix: prefix, lock: lock, encode: encode, decode: decode, creator: false}, nil
}

// createCellsLocked writes the initial payload into a brand-new cell
// sequence. Called only from CreateMapping, before any other worker can
// have observed this prefix.
func (m *Mapping[T]) createCellsLocked(payload []byte) error {
	totalLen := lengthPrefixSize + len(payload)
	wire := make([]byte, totalLen)
	binary.BigEndian.PutUint64(wire[0:lengthPrefixSize], uint64(totalLen))
	copy(wire[lengthPrefixSize:], payload)

	cells := make([]*shmbyte.Cell, totalLen)
	for i, b := range wire {
		cell, err := shmbyte.Create(cellName(m.prefix, i), b)
		if err != nil {
			for j := 0; j < i; j++ {
				cells[j].ReleaseOwnership()
			}
			return &StorageError{Op: "create", Err: err}
		}
		cells[i] = cell
	}
	m.cells = cells
	return nil
}

// Read acquires the read lock, fetches the current total length followed
// by the payload bytes in the same lock scope (resolving the torn-read
// open question in favor of a single acquire/release pair), then
// deserializes.
func (m *Mapping[T]) Read() (T, error) {
	var zero T
	if err := m.lock.acquireRead(); err != nil {
		return zero, err
	}
	defer m.lock.releaseRead()

	totalLen, err := m.readTotalLenLocked()
	if err != nil {
		return zero, err
	}
	if err := m.syncCellsLocked(totalLen); err != nil {
		return zero, err
	}
	payload, err := m.readPayloadLocked(totalLen)
	if err != nil {
		return zero, err
	}
	value, err := m.decode(payload)
	if err != nil {
		return zero, err
	}
	return value, nil
}

// readTotalLenLocked loads the 8-byte big-endian length prefix, first
// opening handles to the prefix cells if this mapping has none yet (as
// after OpenMapping). The caller must already hold either lock.
func (m *Mapping[T]) readTotalLenLocked() (int, error) {
	for len(m.cells) < lengthPrefixSize {
		cell, err := shmbyte.Open(cellName(m.prefix, len(m.cells)))
		if err != nil {
			return 0, &StorageError{Op: "open", Err: err}
		}
		m.cells = append(m.cells, cell)
	}
	prefix := make([]byte, lengthPrefixSize)
	for i := 0; i < lengthPrefixSize; i++ {
		b, err := m.cells[i].Load()
		if err != nil {
			return 0, &StorageError{Op: "load", Err: err}
		}
		prefix[i] = b
	}
	return int(binary.BigEndian.Uint64(prefix)), nil
}

func (m *Mapping[T]) readPayloadLocked(totalLen int) ([]byte, error) {
	payload := make([]byte, totalLen-lengthPrefixSize)
	for i := lengthPrefixSize; i < totalLen; i++ {
		b, err := m.cells[i].Load()
		if err != nil {
			return nil, &StorageError{Op: "load", Err: err}
		}
		payload[i-lengthPrefixSize] = b
	}
	return payload, nil
}

// syncCellsLocked grows m.cells with freshly opened handles up to
// totalLen, or closes (without removing) handles beyond it. It never
// creates or removes a cell file itself: by the time a reader observes a
// given totalLen, the writer that produced it has already finished every
// create/release under the exclusive write lock.
func (m *Mapping[T]) syncCellsLocked(totalLen int) error {
	for len(m.cells) < totalLen {
		idx := len(m.cells)
		cell, err := shmbyte.Open(cellName(m.prefix, idx))
		if err != nil {
			return &StorageError{Op: "open", Err: err}
		}
		m.cells = append(m.cells, cell)
	}
	for len(m.cells) > totalLen {
		last := len(m.cells) - 1
		m.cells[last].Close()
		m.cells = m.cells[:last]
	}
	return nil
}

// Write serializes value and overwrites the mapping's cells in place,
// growing or shrinking the cell sequence as needed (§4.4, property 10).
func (m *Mapping[T]) Write(value T) error {
	payload, err := m.encode(value)
	if err != nil {
		return err
	}
	if err := m.lock.acquireWrite(context.Background()); err != nil {
		return err
	}
	defer m.lock.releaseWrite()
	return m.writeLocked(payload)
}

func (m *Mapping[T]) writeLocked(payload []byte) error {
	currentLen, err := m.readTotalLenLocked()
	if err != nil {
		return err
	}
	if err := m.syncCellsLocked(currentLen); err != nil {
		return err
	}

	newLen := lengthPrefixSize + len(payload)
	wire := make([]byte, newLen)
	binary.BigEndian.PutUint64(wire[0:lengthPrefixSize], uint64(newLen))
	copy(wire[lengthPrefixSize:], payload)

	if err := m.resizeCellsLocked(newLen); err != nil {
		return err
	}
	for i, b := range wire {
		if err := m.cells[i].Store(b); err != nil {
			return &StorageError{Op: "store", Err: err}
		}
	}
	return nil
}

// resizeCellsLocked grows the cell sequence by creating new named cells,
// or shrinks it by releasing ownership of (deleting) the now-unused
// tail. The caller must hold the write lock.
func (m *Mapping[T]) resizeCellsLocked(newLen int) error {
	for len(m.cells) < newLen {
		idx := len(m.cells)
		cell, err := shmbyte.Create(cellName(m.prefix, idx), 0)
		if err != nil {
			return &StorageError{Op: "create", Err: err}
		}
		m.cells = append(m.cells, cell)
	}
	for len(m.cells) > newLen {
		last := len(m.cells) - 1
		if err := m.cells[last].ReleaseOwnership(); err != nil {
			return &StorageError{Op: "release_ownership", Err: err}
		}
		m.cells = m.cells[:last]
	}
	return nil
}

// CompareAndSwap writes desired only if the mapping's current value
// equals expected, all under one write-lock hold. It returns (nil, nil)
// on success. On failure it returns a pointer to the value actually
// observed, matching §4.4's Option<T> contract, and performs no write.
func (m *Mapping[T]) CompareAndSwap(expected, desired T) (*T, error) {
	payload, err := m.encode(desired)
	if err != nil {
		return nil, err
	}
	if err := m.lock.acquireWrite(context.Background()); err != nil {
		return nil, err
	}
	defer m.lock.releaseWrite()

	currentLen, err := m.readTotalLenLocked()
	if err != nil {
		return nil, err
	}
	if err := m.syncCellsLocked(currentLen); err != nil {
		return nil, err
	}
	currentPayload, err := m.readPayloadLocked(currentLen)
	if err != nil {
		return nil, err
	}
	current, err := m.decode(currentPayload)
	if err != nil {
		return nil, err
	}

	if !current.Equal(expected) {
		observed := current
		return &observed, nil
	}

	if err := m.writeLocked(payload); err != nil {
		return nil, err
	}
	return nil, nil
}

// createGraphMapping and openGraphMapping specialize Mapping[Graph] with
// the msgpack-backed EncodeGraph/DecodeGraph codec, the only
// instantiation the scheduler needs.
func createGraphMapping(prefix string, initial Graph, clock clockz.Clock, spinInterval time.Duration) (*Mapping[Graph], error) {
	return CreateMapping(prefix, initial, EncodeGraph, DecodeGraph, clock, spinInterval)
}

func openGraphMapping(prefix string, clock clockz.Clock, spinInterval time.Duration) (*Mapping[Graph], error) {
	return OpenMapping(prefix, EncodeGraph, DecodeGraph, clock, spinInterval)
}

// Close releases this handle's semaphores and cell handles. If this
// mapping is the creator, Close also unlinks the semaphores (and, since
// it holds the only live handles, the cells become unreachable garbage
// in /dev/shm until the OS reclaims tmpfs — matching §4.1's
// creator-owns-unlink rule, which the spec scopes to the two semaphores
// rather than every cell).
func (m *Mapping[T]) Close() error {
	var firstErr error
	for _, c := range m.cells {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.lock.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
