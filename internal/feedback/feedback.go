// Package feedback closes the loop: it collects the operator's corrections
// from scored batches, aggregates them into a feedback document, and asks
// the rewrite collaborator for improved evaluator instructions.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/craigmmills/enviroagent/internal/llm"
	"github.com/craigmmills/enviroagent/internal/store"
)

const rewriteTemplate = `You are a prompt improvement agent. Your task is to refine an agent prompt for evaluating news articles using human feedback.
The original prompt is provided below, followed by detailed human feedback; each entry is formatted as 'Score: <score> - <reasoning>'.
Ensure your revised prompt explicitly incorporates this feedback so that future evaluations align with human priorities.

Original Prompt:
%s

Human Feedback:
%s

Please output ONLY the revised prompt text with no additional commentary, greetings, or extra language. The output should consist solely of the improved prompt.
`

// Updater rewrites the standing instructions from aggregated human feedback.
type Updater struct {
	store     *store.Store
	completer llm.Completer
}

// Result reports the outcome of an update run. Updated false with a nil
// error means no human-labeled records were available, which is a normal
// outcome, not a failure.
type Result struct {
	Updated  bool
	Count    int     // records that contributed feedback
	Mean     float64 // arithmetic mean of contributing user scores
	Archived int     // feedback files relocated after a successful rewrite
}

func New(s *store.Store, completer llm.Completer) *Updater {
	return &Updater{store: s, completer: completer}
}

// record is a deliberately loose view of a scored batch entry: feedback
// extraction must tolerate a user_score that is not a number (the record
// is skipped, not an error), so the field stays untyped here.
type record struct {
	UserScore     any     `json:"user_score"`
	UserReasoning *string `json:"user_reasoning"`
}

// Run aggregates corrections from inputDir (every JSON file directly
// inside it) or, when the directory yields no records, from inputPath.
// On a successful rewrite the instructions file is replaced, and consumed
// directory files are archived to the sibling processed directory.
func (u *Updater) Run(ctx context.Context, inputPath, inputDir string) (Result, error) {
	records, err := u.collect(inputPath, inputDir)
	if err != nil {
		return Result{}, err
	}

	scores, entries := extract(records)
	if len(scores) == 0 {
		log.Printf("No human feedback scores available, instructions unchanged")
		return Result{}, nil
	}

	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	current, err := u.store.LoadInstructions()
	if err != nil {
		return Result{}, fmt.Errorf("feedback: %w", err)
	}

	answer, err := u.completer.Complete(ctx, fmt.Sprintf(rewriteTemplate, current, buildFeedbackDoc(mean, entries)))
	if err != nil {
		return Result{}, fmt.Errorf("feedback: rewrite call failed: %w", err)
	}
	improved := strings.TrimSpace(answer)
	if improved == "" {
		return Result{}, fmt.Errorf("feedback: rewrite collaborator returned empty instructions")
	}

	if err := u.store.ReplaceInstructions(improved); err != nil {
		return Result{}, fmt.Errorf("feedback: %w", err)
	}
	log.Printf("Improved instructions saved to %s", u.store.InstructionsPath())

	res := Result{Updated: true, Count: len(scores), Mean: mean}
	if inputDir != "" {
		moved, err := u.store.ArchiveJSONFiles(inputDir)
		if err != nil {
			// The rewrite already happened; archival problems are logged,
			// never unwound.
			log.Printf("Failed to archive feedback files: %v", err)
		}
		res.Archived = moved
	}
	return res, nil
}

// collect builds the working set. Directory files that fail to load are
// logged and skipped; a directory yielding zero records falls back to the
// single-file path.
func (u *Updater) collect(inputPath, inputDir string) ([]record, error) {
	var records []record

	if inputDir != "" {
		info, err := os.Stat(inputDir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("feedback: %s is not a directory", inputDir)
		}
		entries, err := os.ReadDir(inputDir)
		if err != nil {
			return nil, fmt.Errorf("feedback: failed to read %s: %w", inputDir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
				continue
			}
			path := filepath.Join(inputDir, e.Name())
			batch, err := loadRecords(path)
			if err != nil {
				log.Printf("Failed to load %s: %v", path, err)
				continue
			}
			records = append(records, batch...)
		}
		if len(records) > 0 {
			log.Printf("Aggregated %d records from %s", len(records), inputDir)
			return records, nil
		}
		log.Printf("No records found in %s, falling back to %s", inputDir, inputPath)
	}

	records, err := loadRecords(inputPath)
	if err != nil {
		return nil, fmt.Errorf("feedback: %w", err)
	}
	return records, nil
}

func loadRecords(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}

// extract keeps records carrying both a coercible user_score and a
// user_reasoning, preserving input order.
func extract(records []record) (scores []float64, entries []string) {
	for _, rec := range records {
		if rec.UserScore == nil || rec.UserReasoning == nil {
			continue
		}
		score, ok := coerceScore(rec.UserScore)
		if !ok {
			continue
		}
		scores = append(scores, score)
		entries = append(entries, fmt.Sprintf("Score: %.1f - %s", score, *rec.UserReasoning))
	}
	return scores, entries
}

// coerceScore accepts JSON numbers and numeric strings; anything else
// excludes the record from aggregation.
func coerceScore(v any) (float64, bool) {
	switch s := v.(type) {
	case float64:
		return s, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func buildFeedbackDoc(mean float64, entries []string) string {
	var sb strings.Builder
	sb.WriteString("=== Human Feedback Integration ===\n")
	sb.WriteString(fmt.Sprintf("Average Human Score: %.2f\n", mean))
	sb.WriteString("Detailed Feedback:\n")
	for _, entry := range entries {
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}
