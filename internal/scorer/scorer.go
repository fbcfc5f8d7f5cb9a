// Package scorer merges an evaluator verdict into every raw record of a
// day's batch.
package scorer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/lenient"
	"github.com/craigmmills/enviroagent/internal/llm"
	"github.com/craigmmills/enviroagent/internal/store"
)

const statePlaceholder = "{state}"

// Orchestrator runs the scoring stage: one sequential evaluator call per
// record, lenient verdict recovery, and a single batch write at the end.
type Orchestrator struct {
	store     *store.Store
	evaluator llm.Completer
}

// Result reports what a scoring run did.
type Result struct {
	Skipped  bool // scored file already existed, nothing contacted
	Scored   int  // records carrying a real verdict
	Fallback int  // records carrying the fallback verdict
}

func New(s *store.Store, evaluator llm.Completer) *Orchestrator {
	return &Orchestrator{store: s, evaluator: evaluator}
}

// Run scores the raw batch for date. If the scored file already exists the
// run is a no-op: re-scoring would both spend money and produce a different
// batch, so existence of the output is the idempotency marker. Per-record
// evaluator failures degrade to the fallback verdict and never abort the
// batch; only a missing input batch is an error.
func (o *Orchestrator) Run(ctx context.Context, date time.Time) (Result, error) {
	outPath := o.store.ScoredPath(date)
	if o.store.Exists(outPath) {
		log.Printf("Scored file %s already exists, skipping", outPath)
		return Result{Skipped: true}, nil
	}

	inPath := o.store.RawPath(date)
	raws, err := o.store.LoadRaw(inPath)
	if err != nil {
		return Result{}, fmt.Errorf("scorer: %w", err)
	}
	if len(raws) == 0 {
		return Result{}, fmt.Errorf("scorer: no articles to process in %s", inPath)
	}

	// Read once per run; a concurrent rewrite never changes instructions
	// mid-batch.
	instructions, err := o.store.LoadInstructions()
	if err != nil {
		return Result{}, fmt.Errorf("scorer: %w", err)
	}

	var res Result
	scored := make([]article.Scored, 0, len(raws))
	for i, raw := range raws {
		verdict, ok := o.evaluate(ctx, instructions, raw, i)
		if ok {
			res.Scored++
		} else {
			res.Fallback++
		}
		scored = append(scored, raw.WithVerdict(verdict))
	}

	if err := o.store.SaveScored(outPath, scored); err != nil {
		return Result{}, fmt.Errorf("scorer: %w", err)
	}
	log.Printf("Saved %d scored articles to %s (%d fallback)", len(scored), outPath, res.Fallback)
	return res, nil
}

// evaluate asks the evaluator about one record and recovers its verdict.
// Any failure, transport or parse, yields the fallback verdict.
func (o *Orchestrator) evaluate(ctx context.Context, instructions string, raw article.Raw, index int) (article.Verdict, bool) {
	answer, err := o.evaluator.Complete(ctx, renderPrompt(instructions, article.StateText(raw)))
	if err != nil {
		log.Printf("Evaluator call failed for article %d: %v", index, err)
		return article.FallbackVerdict(), false
	}

	var verdict article.Verdict
	if err := lenient.ExtractObject(answer, &verdict); err != nil {
		log.Printf("Failed to parse response for article %d: %v", index, err)
		return article.FallbackVerdict(), false
	}

	if verdict.Summary == "" {
		verdict.Summary = "No summary provided"
	}
	return clamp(verdict), true
}

// clamp keeps the score inside [0,10] even when the evaluator wanders.
func clamp(v article.Verdict) article.Verdict {
	if v.TweetWorthiness < 0 {
		v.TweetWorthiness = 0
	}
	if v.TweetWorthiness > 10 {
		v.TweetWorthiness = 10
	}
	return v
}

func renderPrompt(instructions, state string) string {
	if strings.Contains(instructions, statePlaceholder) {
		return strings.ReplaceAll(instructions, statePlaceholder, state)
	}
	return instructions + "\n\nArticle details:\n" + state
}
