package software

import (
	"sync/atomic"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type Pipeline struct {
	desc metadata.PipelineDesc
}

func (p *Pipeline) Desc() metadata.PipelineDesc { return p.desc }

func (p *Pipeline) Destroy() {}

// CommandAllocator counts the submissions recorded from it that the
// executor has not finished.
type CommandAllocator struct {
	pending atomic.Int64
}

func (a *CommandAllocator) Reset() error {
	if n := a.pending.Load(); n > 0 {
		core.LogError("command allocator reset with %d submissions in flight", n)
		return core.ErrAllocatorInUse
	}
	return nil
}

func (a *CommandAllocator) Destroy() {}

func (a *CommandAllocator) InFlight() int64 { return a.pending.Load() }
