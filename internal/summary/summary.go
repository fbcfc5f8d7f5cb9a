// Package summary turns a scored (optionally reviewed) batch into the
// day's terminal summary artifact: quality-filtered, deduplicated, and
// annotated with each story's source link.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/lenient"
	"github.com/craigmmills/enviroagent/internal/llm"
	"github.com/craigmmills/enviroagent/internal/store"
)

const promptTemplate = `You are a news summary agent. Your task is to produce a clean summary JSON from the provided list of scored news articles.
For each article, include all available metadata (such as title, name, count, shareimage, html, tweet_worthiness, summary, geometry, etc.).
Additionally, extract a valid URL from the article's HTML content (assume that the first <a> tag's href is the original story link)
and include it in a field called "link".
Output ONLY the final JSON array of article objects with no additional commentary.
Input JSON:
%s
`

// Stage holds the dependencies of one summary run.
type Stage struct {
	store     *store.Store
	completer llm.Completer
	threshold int
}

// Result reports what a summary run produced.
type Result struct {
	Kept     int  // records surviving filter and dedup
	Written  int  // records in the summary file
	Fallback bool // collaborator answer unusable, emitted dedup set verbatim
}

func New(s *store.Store, completer llm.Completer, threshold int) *Stage {
	return &Stage{store: s, completer: completer, threshold: threshold}
}

// Run reads the scored batch at inputPath and writes the summary batch to
// outputPath. A missing input is a stage failure; an unusable collaborator
// answer is not, it degrades to the deduplicated set without links.
func (s *Stage) Run(ctx context.Context, inputPath, outputPath string) (Result, error) {
	batch, err := s.store.LoadScored(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("summary: %w", err)
	}
	if len(batch) == 0 {
		return Result{}, fmt.Errorf("summary: no articles found in %s", inputPath)
	}

	kept := Deduplicate(Filter(batch, s.threshold))
	res := Result{Kept: len(kept)}

	entries := s.annotate(ctx, kept, &res)
	res.Written = len(entries)

	if err := s.store.SaveSummary(outputPath, entries); err != nil {
		return Result{}, fmt.Errorf("summary: %w", err)
	}
	log.Printf("Summary JSON saved to %s (%d articles)", outputPath, len(entries))
	return res, nil
}

// annotate delegates link derivation and re-serialization to the
// collaborator, falling back to the input set verbatim when its answer
// cannot be recovered as a JSON array.
func (s *Stage) annotate(ctx context.Context, kept []article.Scored, res *Result) []article.SummaryEntry {
	payload, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		log.Printf("Failed to serialize articles for summary prompt: %v", err)
		res.Fallback = true
		return verbatim(kept)
	}

	answer, err := s.completer.Complete(ctx, fmt.Sprintf(promptTemplate, payload))
	if err != nil {
		log.Printf("Summary collaborator call failed: %v", err)
		res.Fallback = true
		return verbatim(kept)
	}

	var entries []article.SummaryEntry
	if err := lenient.ExtractArray(answer, &entries); err != nil {
		log.Printf("Failed to parse summary response: %v", err)
		res.Fallback = true
		return verbatim(kept)
	}
	return entries
}

func verbatim(kept []article.Scored) []article.SummaryEntry {
	entries := make([]article.SummaryEntry, 0, len(kept))
	for _, rec := range kept {
		entries = append(entries, article.SummaryEntry{Scored: rec})
	}
	return entries
}

// Filter keeps records at or above the quality threshold. A record that
// was never scored carries the zero value and is excluded.
func Filter(batch []article.Scored, threshold int) []article.Scored {
	kept := make([]article.Scored, 0, len(batch))
	for _, rec := range batch {
		if rec.TweetWorthiness >= threshold {
			kept = append(kept, rec)
		}
	}
	return kept
}

// Deduplicate drops later records whose normalized title was already seen.
// Records with empty titles are never deduplicated against each other.
func Deduplicate(batch []article.Scored) []article.Scored {
	seen := make(map[string]struct{}, len(batch))
	unique := make([]article.Scored, 0, len(batch))
	for _, rec := range batch {
		key := article.NormTitle(rec.Title)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		unique = append(unique, rec)
	}
	return unique
}
