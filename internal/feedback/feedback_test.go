package feedback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/craigmmills/enviroagent/internal/config"
	"github.com/craigmmills/enviroagent/internal/store"
)

type mockCompleter struct {
	answer string
	err    error
	prompt string
	calls  int
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	m.calls++
	return m.answer, m.err
}

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	base := t.TempDir()
	st := store.New(config.DataConfig{
		RawDir:       filepath.Join(base, "raw"),
		ScoredDir:    filepath.Join(base, "scored"),
		SummaryDir:   filepath.Join(base, "summary"),
		Instructions: filepath.Join(base, "config", "agent_prompt.txt"),
	})
	return st, base
}

// A scored batch with two usable reviews and one non-numeric user_score.
const reviewedBatch = `[
  {"title": "a", "tweet_worthiness": 5, "summary": "s", "user_score": 6, "user_reasoning": "too local"},
  {"title": "b", "tweet_worthiness": 9, "summary": "s", "user_score": 8, "user_reasoning": "big impact"},
  {"title": "c", "tweet_worthiness": 7, "summary": "s", "user_score": "x", "user_reasoning": "should be skipped"}
]`

func writeBatch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunAggregatesAndRewrites(t *testing.T) {
	st, base := newTestStore(t)
	batchPath := filepath.Join(base, "scored", "batch.json")
	writeBatch(t, batchPath, reviewedBatch)

	mock := &mockCompleter{answer: "  improved instructions  "}
	res, err := New(st, mock).Run(context.Background(), batchPath, "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.Updated {
		t.Fatal("Expected an update")
	}
	if res.Count != 2 {
		t.Errorf("Expected 2 contributing records, got %d", res.Count)
	}
	if res.Mean != 7.0 {
		t.Errorf("Expected mean 7.00, got %.2f", res.Mean)
	}

	// The feedback document carries the mean and one line per record, and
	// excludes the non-numeric entry.
	if !strings.Contains(mock.prompt, "Average Human Score: 7.00") {
		t.Errorf("Prompt missing mean: %q", mock.prompt)
	}
	if !strings.Contains(mock.prompt, "Score: 6.0 - too local") {
		t.Errorf("Prompt missing first entry: %q", mock.prompt)
	}
	if !strings.Contains(mock.prompt, "Score: 8.0 - big impact") {
		t.Errorf("Prompt missing second entry: %q", mock.prompt)
	}
	if strings.Contains(mock.prompt, "should be skipped") {
		t.Error("Non-numeric record leaked into the feedback document")
	}

	// The trimmed answer becomes the instructions verbatim.
	text, err := st.LoadInstructions()
	if err != nil {
		t.Fatal(err)
	}
	if text != "improved instructions" {
		t.Errorf("Expected trimmed rewrite installed, got %q", text)
	}
}

func TestRunNoFeedbackIsNotAnError(t *testing.T) {
	st, base := newTestStore(t)
	batchPath := filepath.Join(base, "scored", "batch.json")
	writeBatch(t, batchPath, `[{"title": "a", "tweet_worthiness": 5, "summary": "s"}]`)

	mock := &mockCompleter{answer: "should not run"}
	res, err := New(st, mock).Run(context.Background(), batchPath, "")
	if err != nil {
		t.Fatalf("No feedback must be a normal outcome, got: %v", err)
	}
	if res.Updated {
		t.Error("Expected no update without human feedback")
	}
	if mock.calls != 0 {
		t.Error("Rewrite collaborator must not be contacted without feedback")
	}
}

func TestRunDirectoryConcatAndArchive(t *testing.T) {
	st, base := newTestStore(t)
	daily := filepath.Join(base, "daily")
	writeBatch(t, filepath.Join(daily, "day1.json"),
		`[{"title": "a", "user_score": 4, "user_reasoning": "weak"}]`)
	writeBatch(t, filepath.Join(daily, "day2.json"),
		`[{"title": "b", "user_score": 10, "user_reasoning": "strong"}]`)

	mock := &mockCompleter{answer: "rewritten"}
	res, err := New(st, mock).Run(context.Background(), "", daily)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Count != 2 || res.Mean != 7.0 {
		t.Errorf("Unexpected aggregation: %+v", res)
	}
	if res.Archived != 2 {
		t.Errorf("Expected 2 archived files, got %d", res.Archived)
	}

	remaining, err := os.ReadDir(daily)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected daily dir emptied, %d files remain", len(remaining))
	}
	archived, err := os.ReadDir(filepath.Join(base, "processed_daily"))
	if err != nil || len(archived) != 2 {
		t.Errorf("Expected archive with 2 files, got %d (%v)", len(archived), err)
	}
}

func TestRunEmptyDirectoryFallsBackToFile(t *testing.T) {
	st, base := newTestStore(t)
	daily := filepath.Join(base, "daily")
	if err := os.MkdirAll(daily, 0o755); err != nil {
		t.Fatal(err)
	}
	batchPath := filepath.Join(base, "scored", "batch.json")
	writeBatch(t, batchPath, reviewedBatch)

	mock := &mockCompleter{answer: "rewritten"}
	res, err := New(st, mock).Run(context.Background(), batchPath, daily)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.Updated || res.Count != 2 {
		t.Errorf("Fallback to single file did not aggregate: %+v", res)
	}
}

func TestRunNumericStringScoreIsCoerced(t *testing.T) {
	st, base := newTestStore(t)
	batchPath := filepath.Join(base, "scored", "batch.json")
	writeBatch(t, batchPath, `[{"title": "a", "user_score": "7", "user_reasoning": "string score"}]`)

	mock := &mockCompleter{answer: "rewritten"}
	res, err := New(st, mock).Run(context.Background(), batchPath, "")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Count != 1 || res.Mean != 7.0 {
		t.Errorf("Numeric string should be coerced: %+v", res)
	}
}

func TestRunRewriteFailureLeavesInstructions(t *testing.T) {
	st, base := newTestStore(t)
	if err := st.ReplaceInstructions("original"); err != nil {
		t.Fatal(err)
	}
	batchPath := filepath.Join(base, "scored", "batch.json")
	writeBatch(t, batchPath, reviewedBatch)

	mock := &mockCompleter{err: errors.New("rewrite unavailable")}
	if _, err := New(st, mock).Run(context.Background(), batchPath, ""); err == nil {
		t.Fatal("Expected error when the rewrite call fails")
	}

	text, err := st.LoadInstructions()
	if err != nil {
		t.Fatal(err)
	}
	if text != "original" {
		t.Errorf("Instructions must be untouched on rewrite failure, got %q", text)
	}
}

func TestRunMissingInputFails(t *testing.T) {
	st, base := newTestStore(t)
	mock := &mockCompleter{}
	if _, err := New(st, mock).Run(context.Background(), filepath.Join(base, "absent.json"), ""); err == nil {
		t.Fatal("Expected error for missing input file")
	}
}
