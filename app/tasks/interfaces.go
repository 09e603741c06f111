package tasks

import (
	"context"
	"io"
)

// TaskSchedulerInterface is what the HTTP API needs from the background
// scheduler: queueing work next to the periodic feed runs.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueExtraction(feedName string) error
}

// RunnerInterface processes every enabled feed once and writes a report per
// extracted filing.
type RunnerInterface interface {
	Run(ctx context.Context, w io.Writer) error
}
