package software

import (
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
)

// Fence is a counter advanced by the executor goroutine. Waiters sleep on a
// condition variable until it reaches their target.
type Fence struct {
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	lost      bool
}

func newFence(initial uint64) *Fence {
	f := &Fence{completed: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value && !f.lost {
		f.cond.Wait()
	}
	if f.completed < value {
		return core.ErrDeviceLost
	}
	return nil
}

func (f *Fence) signal(value uint64) {
	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// lose wakes every waiter with ErrDeviceLost.
func (f *Fence) lose() {
	f.mu.Lock()
	f.lost = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *Fence) Destroy() {
	f.lose()
}
