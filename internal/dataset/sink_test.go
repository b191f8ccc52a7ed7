package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yhanli/innervoice/pkg/models"
)

func testSink(t *testing.T) (*Sink, string, string) {
	t.Helper()
	tempDir := t.TempDir()
	outputPath := filepath.Join(tempDir, "narratives.csv")
	failurePath := filepath.Join(tempDir, "fail_data.csv")
	return NewSink(outputPath, failurePath, testLogger()), outputPath, failurePath
}

func TestAppendRecordsCreatesOutput(t *testing.T) {
	sink, outputPath, _ := testSink(t)

	records := []models.Record{
		{Sentence: "我值得被爱", Narrative: `第一段\n第二段`, Model: "kimi-latest"},
	}
	if err := sink.AppendRecords(records); err != nil {
		t.Fatalf("AppendRecords failed: %v", err)
	}

	table, err := ReadTable(outputPath)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if !reflect.DeepEqual(table.Header, OutputHeader) {
		t.Errorf("Expected header %v, got %v", OutputHeader, table.Header)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(table.Rows))
	}

	row := table.Rows[0]
	if row[0] != "我值得被爱" || row[2] != "kimi-latest" {
		t.Errorf("Unexpected row: %v", row)
	}
	if row[1] != `第一段\n第二段` {
		t.Errorf("Expected escaped narrative to survive verbatim, got %q", row[1])
	}
	if strings.Contains(row[1], "\n") {
		t.Error("Narrative cell must not contain a real newline")
	}
}

func TestAppendRecordsPreservesExistingRows(t *testing.T) {
	sink, outputPath, _ := testSink(t)

	first := []models.Record{
		{Sentence: "one", Narrative: "n1", Model: "m"},
		{Sentence: "two", Narrative: "n2", Model: "m"},
	}
	if err := sink.AppendRecords(first); err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	second := []models.Record{
		{Sentence: "three", Narrative: "n3", Model: "m"},
	}
	if err := sink.AppendRecords(second); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	table, err := ReadTable(outputPath)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(table.Rows))
	}
	// Prior rows keep their order, new rows follow.
	got := []string{table.Rows[0][0], table.Rows[1][0], table.Rows[2][0]}
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected row order %v, got %v", want, got)
	}
}

func TestAppendRecordsNothingToSave(t *testing.T) {
	sink, outputPath, _ := testSink(t)

	if err := sink.AppendRecords(nil); err != nil {
		t.Fatalf("AppendRecords failed: %v", err)
	}
	if _, err := os.Stat(outputPath); !os.IsNotExist(err) {
		t.Error("Expected no output file when there are no records")
	}
}

func TestAppendRecordsHeaderMismatch(t *testing.T) {
	sink, outputPath, _ := testSink(t)

	stale := &Table{Header: []string{"other", "columns"}, Rows: [][]string{{"a", "b"}}}
	if err := stale.Write(outputPath); err != nil {
		t.Fatalf("Failed to write stale output: %v", err)
	}

	err := sink.AppendRecords([]models.Record{{Sentence: "s", Narrative: "n", Model: "m"}})
	if err == nil {
		t.Error("Expected error for mismatched output header, got nil")
	}
}

func TestWriteFailuresReplacesStaleContent(t *testing.T) {
	sink, _, failurePath := testSink(t)

	stale := &Table{Header: []string{FailureColumn}, Rows: [][]string{{"old failure"}}}
	if err := stale.Write(failurePath); err != nil {
		t.Fatalf("Failed to write stale failures: %v", err)
	}

	failures := []models.Failure{{Sentence: "new failure"}}
	if err := sink.WriteFailures(failures); err != nil {
		t.Fatalf("WriteFailures failed: %v", err)
	}

	sentences, err := sink.LoadFailureSentences()
	if err != nil {
		t.Fatalf("LoadFailureSentences failed: %v", err)
	}
	if !reflect.DeepEqual(sentences, []string{"new failure"}) {
		t.Errorf("Expected stale content to be replaced, got %v", sentences)
	}
}

func TestWriteFailuresRemovesFileWhenEmpty(t *testing.T) {
	sink, _, failurePath := testSink(t)

	stale := &Table{Header: []string{FailureColumn}, Rows: [][]string{{"old failure"}}}
	if err := stale.Write(failurePath); err != nil {
		t.Fatalf("Failed to write stale failures: %v", err)
	}

	if err := sink.WriteFailures(nil); err != nil {
		t.Fatalf("WriteFailures failed: %v", err)
	}

	if _, err := os.Stat(failurePath); !os.IsNotExist(err) {
		t.Error("Expected failure table to be removed after a clean run")
	}
}

func TestWriteFailuresEmptyWithoutStaleFile(t *testing.T) {
	sink, _, _ := testSink(t)

	if err := sink.WriteFailures(nil); err != nil {
		t.Errorf("Expected no error when nothing to remove, got: %v", err)
	}
}

func TestLoadFailureSentencesRoundTrip(t *testing.T) {
	sink, _, _ := testSink(t)

	failures := []models.Failure{
		{Sentence: "我值得被爱"},
		{Sentence: "second, with comma"},
	}
	if err := sink.WriteFailures(failures); err != nil {
		t.Fatalf("WriteFailures failed: %v", err)
	}

	sentences, err := sink.LoadFailureSentences()
	if err != nil {
		t.Fatalf("LoadFailureSentences failed: %v", err)
	}
	want := []string{"我值得被爱", "second, with comma"}
	if !reflect.DeepEqual(sentences, want) {
		t.Errorf("Expected %v, got %v", want, sentences)
	}
}

func TestFailureTableExists(t *testing.T) {
	sink, _, _ := testSink(t)

	if sink.FailureTableExists() {
		t.Error("Expected no failure table initially")
	}
	if err := sink.WriteFailures([]models.Failure{{Sentence: "s"}}); err != nil {
		t.Fatalf("WriteFailures failed: %v", err)
	}
	if !sink.FailureTableExists() {
		t.Error("Expected failure table to exist after write")
	}
}
