// Package systems holds engine services that run beside the frame loop.
package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
)

/**
 * @brief A unit of work for the job system. OnStart runs on a worker;
 * OnComplete or OnFailure follow it on the same worker, then
 * OnCompletionCallback runs whatever the outcome.
 */
type JobTask struct {
	Name                 string
	OnStart              func() error
	OnComplete           func()
	OnFailure            func(err error)
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	core.LogDebug("job system started with %d workers", numWorkers)
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.pending.Done()

	if err := job.OnStart(); err != nil {
		core.LogError("job %s: %s", job.Name, err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		job.OnComplete()
	}

	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.pending.Add(1)
	js.jobQueue <- jt
}

/**
 * @brief Blocks until every submitted job has finished.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

/**
 * @brief Shuts the job system down after the queued jobs ran.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}
