package sema

import (
	"sync/atomic"
	"unsafe"
)

func ptrOf(w word) unsafe.Pointer {
	return unsafe.Pointer(&w[0])
}

func atomicLoad(p *uint32) uint32 {
	return atomic.LoadUint32(p)
}

func atomicCAS(p *uint32, old, new uint32) bool {
	return atomic.CompareAndSwapUint32(p, old, new)
}
