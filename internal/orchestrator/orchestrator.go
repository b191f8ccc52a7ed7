package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/yhanli/innervoice/internal/checkpoint"
	"github.com/yhanli/innervoice/internal/config"
	"github.com/yhanli/innervoice/internal/metrics"
	"github.com/yhanli/innervoice/pkg/models"
)

// Runner executes the generation protocol for one sentence.
type Runner interface {
	Generate(ctx context.Context, sentence string) (*models.Record, error)
}

// Orchestrator fans sentence tasks across a bounded worker pool,
// collects results in completion order, and keeps the checkpoint set
// in step with what actually succeeded.
type Orchestrator struct {
	runner      Runner
	store       *checkpoint.Store
	collector   *metrics.Collector
	logger      *slog.Logger
	concurrency int
	stats       *models.RunStats
}

// New creates an orchestrator.
func New(runner Runner, store *checkpoint.Store, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runner:      runner,
		store:       store,
		collector:   collector,
		logger:      logger,
		concurrency: cfg.Generation.Concurrency,
	}
}

// Run processes every sentence whose index is not already in the
// checkpoint set. The index of sentence i is i plus startIndex. In
// bypass mode the checkpoint set is treated as empty and the file is
// never rewritten, so a retry pass cannot pollute resumption state.
//
// Successes and failures come back as two collections; a sentence
// appears in exactly one of them. Results live in memory until the
// run finishes, so an interrupted run keeps only what the checkpoint
// file already recorded.
func (o *Orchestrator) Run(ctx context.Context, sentences []string, startIndex int, bypass bool) ([]models.Record, []models.Failure, error) {
	o.stats = &models.RunStats{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}

	completed := make(map[int]bool)
	if !bypass {
		var err error
		completed, err = o.store.Load()
		if err != nil {
			return nil, nil, err
		}
	}

	var pending []models.Task
	for i, sentence := range sentences {
		index := i + startIndex
		if completed[index] {
			continue
		}
		pending = append(pending, models.Task{Index: index, Sentence: sentence})
	}

	o.stats.TotalTasks = len(pending)
	o.stats.SkippedTasks = len(sentences) - len(pending)
	o.collector.AddTasks("skipped", o.stats.SkippedTasks)

	o.logger.Info("Starting batch",
		"run_id", o.stats.RunID,
		"total_sentences", len(sentences),
		"pending", len(pending),
		"already_completed", o.stats.SkippedTasks,
		"bypass_checkpoint", bypass,
		"concurrency", o.concurrency)

	if len(pending) == 0 {
		o.logger.Info("All sentences already completed, nothing to do")
		o.stats.Finalize()
		return nil, nil, nil
	}

	jobsChan := make(chan models.Task, len(pending))
	resultsChan := make(chan models.TaskResult, len(pending))

	var wg sync.WaitGroup
	wg.Add(o.concurrency) // Add all workers before starting goroutines
	for i := 0; i < o.concurrency; i++ {
		go o.worker(ctx, i, jobsChan, resultsChan, &wg)
	}
	o.collector.SetActiveWorkers(o.concurrency)

	for _, task := range pending {
		jobsChan <- task
	}
	close(jobsChan)

	var records []models.Record
	var failures []models.Failure

	// A single collector goroutine owns the completed set and both
	// result collections; workers never touch them.
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()

		bar := progressbar.Default(int64(len(pending)), "Generating narratives")
		for result := range resultsChan {
			if result.Err != nil {
				original := sentences[result.Index-startIndex]
				o.logger.Error("Task failed",
					"index", result.Index,
					"sentence", original,
					"error", result.Err)
				failures = append(failures, models.Failure{Sentence: original})
				o.stats.FailureCount++
				o.collector.IncrementTask("failure")
			} else {
				records = append(records, *result.Record)
				completed[result.Index] = true
				o.stats.SuccessCount++
				o.collector.IncrementTask("success")
			}
			_ = bar.Add(1)
		}
	}()

	wg.Wait()
	close(resultsChan)
	collectorWg.Wait()
	o.collector.SetActiveWorkers(0)

	o.stats.Finalize()

	o.logger.Info("Batch finished",
		"run_id", o.stats.RunID,
		"successful", o.stats.SuccessCount,
		"failed", o.stats.FailureCount,
		"duration", o.stats.TotalDuration,
		"average_per_sentence", o.stats.AverageDuration)

	if !bypass {
		if err := o.store.Save(completed); err != nil {
			o.logger.Error("Failed to save checkpoint", "error", err)
			return records, failures, err
		}
	}

	return records, failures, nil
}

// GetStats returns statistics for the most recent run.
func (o *Orchestrator) GetStats() *models.RunStats {
	return o.stats
}
