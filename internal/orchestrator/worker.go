package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/yhanli/innervoice/pkg/models"
)

func (o *Orchestrator) worker(
	ctx context.Context,
	workerID int,
	jobs <-chan models.Task,
	results chan<- models.TaskResult,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	workerLogger := o.logger.With("worker_id", workerID)
	workerLogger.Debug("Worker started")

	for task := range jobs {
		select {
		case <-ctx.Done():
			workerLogger.Info("Worker cancelled")
			return
		default:
		}

		startTime := time.Now()
		record, err := o.runner.Generate(ctx, task.Sentence)

		results <- models.TaskResult{
			Index:    task.Index,
			Record:   record,
			Err:      err,
			Duration: time.Since(startTime),
		}
	}

	workerLogger.Debug("Worker finished")
}
