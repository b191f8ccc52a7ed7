package models

import "time"

// Record is one successfully generated narrative. Narrative holds the
// stage-two text with literal newlines escaped to the two-character
// sequence \n so it serializes as a single table cell.
type Record struct {
	Sentence  string
	Narrative string
	Model     string
}

// Failure marks a sentence that did not survive both generation stages.
type Failure struct {
	Sentence string
}

// Task pairs an input sentence with its stable zero-based index within
// the run's ordering.
type Task struct {
	Index    int
	Sentence string
}

// TaskResult is the outcome of one task. Exactly one of Record and Err
// is set.
type TaskResult struct {
	Index    int
	Record   *Record
	Err      error
	Duration time.Duration
}

// RunStats tracks statistics for a single batch run.
type RunStats struct {
	RunID           string
	StartTime       time.Time
	EndTime         time.Time
	TotalTasks      int
	SkippedTasks    int
	SuccessCount    int
	FailureCount    int
	TotalDuration   time.Duration
	AverageDuration time.Duration
}

// Finalize stamps the end time and derives the duration fields.
func (s *RunStats) Finalize() {
	s.EndTime = time.Now()
	s.TotalDuration = s.EndTime.Sub(s.StartTime)
	if s.SuccessCount > 0 {
		s.AverageDuration = s.TotalDuration / time.Duration(s.SuccessCount)
	}
}
