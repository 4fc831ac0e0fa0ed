package software

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Queue hands submitted work to a single executor goroutine, which plays
// the part of the GPU. Work runs strictly in submission order.
type Queue struct {
	device *Device

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	paused  bool
	closed  bool

	stopped chan struct{}
}

func newQueue(device *Device) *Queue {
	q := &Queue{
		device:  device,
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for !q.closed && (len(q.pending) == 0 || q.paused) {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return
		}
		work := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		work()
	}
}

func (q *Queue) push(work func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return core.ErrDeviceLost
	}
	q.pending = append(q.pending, work)
	q.cond.Signal()
	return nil
}

// Execute submits closed command lists.
func (q *Queue) Execute(lists ...metadata.CommandList) error {
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("software queue cannot execute %T: %w", l, core.ErrSubmitFailed)
		}
		if cl.recording {
			return fmt.Errorf("command list still recording: %w", core.ErrSubmitFailed)
		}
		if cl.err != nil {
			return fmt.Errorf("command list closed with error: %w", cl.err)
		}

		id := q.device.nextSubmission()
		commands := cl.commands
		reads := cl.reads
		allocator := cl.allocator

		allocator.pending.Add(1)
		q.device.hazards.begin(id, reads)
		err := q.push(func() {
			q.device.execute(commands)
			q.device.hazards.end(id)
			allocator.pending.Add(-1)
		})
		if err != nil {
			allocator.pending.Add(-1)
			q.device.hazards.end(id)
			return fmt.Errorf("submission %d rejected: %w", id, err)
		}
		q.device.stats.submissions.Add(1)
	}
	return nil
}

func (q *Queue) Signal(fence metadata.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("software queue cannot signal %T: %w", fence, core.ErrSubmitFailed)
	}
	return q.push(func() { f.signal(value) })
}

func (q *Queue) Present() error {
	return q.push(q.device.present)
}

// Pause stops the executor before its next piece of work. Submissions keep
// queueing up until Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pending is the number of queued, not yet started, pieces of work.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	q.paused = false
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.stopped
}
