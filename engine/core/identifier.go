package core

import (
	"sync"

	"github.com/google/uuid"
)

var (
	onceRunID sync.Once
	runID     uuid.UUID
)

// RunID identifies the current process run. It tags telemetry rows and
// screenshot file names so outputs of different runs never collide.
func RunID() uuid.UUID {
	onceRunID.Do(func() {
		runID = uuid.New()
	})
	return runID
}

// ShortRunID is the first block of RunID, handy for file names.
func ShortRunID() string {
	return RunID().String()[:8]
}
