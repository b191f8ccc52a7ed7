package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"

	"github.com/yhanli/innervoice/pkg/models"
)

// FailureColumn is the single header of the failure table. It is fixed
// rather than configurable because the retry mode reads the file back
// and the two sides must always agree.
const FailureColumn = "sentence"

// OutputHeader names the columns of the cumulative output table.
var OutputHeader = []string{"sentence", "narrative", "model"}

// Sink persists the two result tables of a run: the cumulative output
// and the current run's failures.
type Sink struct {
	outputPath  string
	failurePath string
	logger      *slog.Logger
}

// NewSink creates a sink writing to the given file paths.
func NewSink(outputPath, failurePath string, logger *slog.Logger) *Sink {
	return &Sink{
		outputPath:  outputPath,
		failurePath: failurePath,
		logger:      logger,
	}
}

// AppendRecords adds new records after any rows already on disk and
// rewrites the whole output table. Prior rows keep their order. With
// no new records the file is left untouched.
func (s *Sink) AppendRecords(records []models.Record) error {
	if len(records) == 0 {
		s.logger.Info("No new records to save")
		return nil
	}

	table := &Table{Header: OutputHeader}

	if _, err := os.Stat(s.outputPath); err == nil {
		existing, err := ReadTable(s.outputPath)
		if err != nil {
			return fmt.Errorf("failed to load existing output: %w", err)
		}
		if !reflect.DeepEqual(existing.Header, OutputHeader) {
			return fmt.Errorf("existing output %s has unexpected header %v", s.outputPath, existing.Header)
		}
		table.Rows = existing.Rows
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat output: %w", err)
	}

	for _, record := range records {
		table.Rows = append(table.Rows, []string{record.Sentence, record.Narrative, record.Model})
	}

	if err := table.Write(s.outputPath); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	s.logger.Info("Results appended", "path", s.outputPath, "new_rows", len(records), "total_rows", len(table.Rows))
	return nil
}

// WriteFailures replaces the failure table with the current run's
// failures. Zero failures removes the file entirely; its absence is
// the signal that the last run left nothing to retry.
func (s *Sink) WriteFailures(failures []models.Failure) error {
	if len(failures) == 0 {
		if err := os.Remove(s.failurePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale failure table: %w", err)
		}
		s.logger.Info("All sentences processed, no failure table")
		return nil
	}

	table := &Table{Header: []string{FailureColumn}}
	for _, failure := range failures {
		table.Rows = append(table.Rows, []string{failure.Sentence})
	}

	if err := table.Write(s.failurePath); err != nil {
		return fmt.Errorf("failed to write failure table: %w", err)
	}

	s.logger.Warn("Failures saved for retry", "path", s.failurePath, "count", len(failures))
	return nil
}

// LoadFailureSentences reads back the sentences of a previous run's
// failure table for a retry pass.
func (s *Sink) LoadFailureSentences() ([]string, error) {
	table, err := ReadTable(s.failurePath)
	if err != nil {
		return nil, err
	}
	return table.Column(FailureColumn)
}

// FailureTableExists reports whether a failure table is on disk.
func (s *Sink) FailureTableExists() bool {
	_, err := os.Stat(s.failurePath)
	return err == nil
}
