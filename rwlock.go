package shmdag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/arcflow-dev/shmdag/sema"
)

var errReadCountUnderflow = errors.New("shmdag: read_count try_wait failed with a registered reader")

// sanitizePrefix replaces "/" in a user-supplied prefix with "_" per the
// naming convention in spec §4.1.
func sanitizePrefix(prefix string) string {
	return strings.ReplaceAll(prefix, "/", "_")
}

// rwlock is the reader/writer discipline of §4.3, built from exactly two
// named counting semaphores: writeLock (initial 1; zero means a writer
// holds exclusion) and readCount (initial 0; current number of active
// readers). It never touches user-space mutexes — every suspension point
// is a kernel-level block inside one of the two semaphores or the
// explicit spin-sleep below, per the design note in spec §9 against
// layering an intra-process lock over the same shared region.
type rwlock struct {
	prefix       string
	writeLock    *sema.Semaphore
	readCount    *sema.Semaphore
	clock        clockz.Clock
	spinInterval time.Duration
}

const defaultWriteSpinInterval = 30 * time.Millisecond

func createRWLock(prefix string, clock clockz.Clock, spinInterval time.Duration) (*rwlock, error) {
	writeLock, err := sema.Create(writeLockName(prefix), 1)
	if err != nil {
		return nil, &SemaphoreError{Op: "create", Err: err}
	}
	readCount, err := sema.Create(readCountName(prefix), 0)
	if err != nil {
		writeLock.Close()
		return nil, &SemaphoreError{Op: "create", Err: err}
	}
	return &rwlock{prefix: prefix, writeLock: writeLock, readCount: readCount, clock: clock, spinInterval: spinInterval}, nil
}

func openRWLock(prefix string, clock clockz.Clock, spinInterval time.Duration) (*rwlock, error) {
	writeLock, err := sema.Open(writeLockName(prefix))
	if err != nil {
		return nil, &SemaphoreError{Op: "open", Err: err}
	}
	readCount, err := sema.Open(readCountName(prefix))
	if err != nil {
		writeLock.Close()
		return nil, &SemaphoreError{Op: "open", Err: err}
	}
	return &rwlock{prefix: prefix, writeLock: writeLock, readCount: readCount, clock: clock, spinInterval: spinInterval}, nil
}

func writeLockName(prefix string) string { return "/" + sanitizePrefix(prefix) + "_write_lock" }
func readCountName(prefix string) string { return "/" + sanitizePrefix(prefix) + "_read_count" }

// acquireRead implements §4.3's three-step reader entry protocol.
func (l *rwlock) acquireRead() error {
	if err := l.writeLock.Wait(); err != nil {
		return &SemaphoreError{Op: "wait", Err: err}
	}
	if err := l.readCount.Post(); err != nil {
		return &SemaphoreError{Op: "post", Err: err}
	}
	if err := l.writeLock.Post(); err != nil {
		return &SemaphoreError{Op: "post", Err: err}
	}
	return nil
}

// releaseRead decrements readCount. A false return from TryWait here is
// an internal bug: the count must be at least 1 for any holder of a read
// lock.
func (l *rwlock) releaseRead() error {
	ok, err := l.readCount.TryWait()
	if err != nil {
		return &SemaphoreError{Op: "try_wait", Err: err}
	}
	if !ok {
		return &SemaphoreError{Op: "try_wait", Err: errReadCountUnderflow}
	}
	return nil
}

// acquireWrite blocks out new readers and other writers, then spins until
// every already-registered reader has released (§4.3's documented
// "restore and sleep" drain loop).
func (l *rwlock) acquireWrite(ctx context.Context) error {
	if err := l.writeLock.Wait(); err != nil {
		return &SemaphoreError{Op: "wait", Err: err}
	}
	for {
		decremented, err := l.readCount.TryWait()
		if err != nil {
			return &SemaphoreError{Op: "try_wait", Err: err}
		}
		if !decremented {
			capitan.Info(ctx, SignalWriteLockAcquired, FieldPrefix.Field(l.prefix))
			return nil
		}
		if err := l.readCount.Post(); err != nil {
			return &SemaphoreError{Op: "post", Err: err}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.spinInterval):
		}
	}
}

func (l *rwlock) releaseWrite() error {
	if err := l.writeLock.Post(); err != nil {
		return &SemaphoreError{Op: "post", Err: err}
	}
	capitan.Info(context.Background(), SignalWriteLockReleased, FieldPrefix.Field(l.prefix))
	return nil
}

// close releases both semaphore handles, unlinking them if this rwlock is
// the creator.
func (l *rwlock) close() error {
	var firstErr error
	if err := l.readCount.Close(); err != nil {
		firstErr = err
	}
	if err := l.writeLock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
