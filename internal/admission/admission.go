// Package admission bounds the number of simultaneous heavy transcription
// operations. Acquisition never blocks: when the pool is exhausted the
// attempt fails immediately and the caller rejects the request.
package admission

import "sync/atomic"

type SlotPool struct {
	capacity int64
	held     int64 // atomic counter
}

func NewSlotPool(capacity int) *SlotPool {
	if capacity < 1 {
		capacity = 1
	}
	return &SlotPool{capacity: int64(capacity)}
}

// TryAcquire claims a slot if one is free. It returns false immediately
// when the pool is exhausted and never waits.
func (p *SlotPool) TryAcquire() bool {
	for {
		cur := atomic.LoadInt64(&p.held)
		if cur >= p.capacity {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.held, cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot to the pool. It must be called exactly once per
// successful TryAcquire.
func (p *SlotPool) Release() {
	if atomic.AddInt64(&p.held, -1) < 0 {
		atomic.StoreInt64(&p.held, 0)
	}
}

func (p *SlotPool) InUse() int64 {
	return atomic.LoadInt64(&p.held)
}

func (p *SlotPool) Capacity() int64 {
	return p.capacity
}
