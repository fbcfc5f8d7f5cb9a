package article

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Raw is an article as delivered by the news source, before any scoring.
// Count is kept opaque because the source sometimes sends a number and
// sometimes the sentinel "N/A".
type Raw struct {
	Title      string          `json:"title"`
	Name       string          `json:"name"`
	Count      any             `json:"count"`
	ShareImage string          `json:"shareimage"`
	HTML       string          `json:"html"`
	Geometry   json.RawMessage `json:"geometry"`
}

// Verdict is the evaluator's answer for one article.
type Verdict struct {
	TweetWorthiness int    `json:"tweet_worthiness"`
	Summary         string `json:"summary"`
}

// FallbackVerdict is merged into a record whenever the evaluator's answer
// cannot be recovered. The batch keeps going.
func FallbackVerdict() Verdict {
	return Verdict{TweetWorthiness: 0, Summary: "Could not evaluate article."}
}

// Scored is a Raw record with the automated verdict merged in. The review
// gate later adds the operator's decision in place, so the user fields are
// optional and omitted from JSON until a human has seen the record.
type Scored struct {
	Raw
	Verdict
	UserScore     *int    `json:"user_score,omitempty"`
	UserReasoning *string `json:"user_reasoning,omitempty"`
}

// WithVerdict merges an evaluator verdict into the raw record.
func (r Raw) WithVerdict(v Verdict) Scored {
	return Scored{Raw: r, Verdict: v}
}

// WithReview records the operator's decision. Calling it again overwrites
// the previous decision.
func (s Scored) WithReview(score int, reasoning string) Scored {
	s.UserScore = &score
	s.UserReasoning = &reasoning
	return s
}

// Reviewed reports whether a human has confirmed or overridden the verdict.
func (s Scored) Reviewed() bool {
	return s.UserScore != nil && s.UserReasoning != nil
}

// SummaryEntry is a Scored record that survived the quality filter and
// deduplication, annotated with the story link. Link stays empty when the
// summary collaborator's answer could not be parsed.
type SummaryEntry struct {
	Scored
	Link string `json:"link,omitempty"`
}

// WithLink annotates a scored record for the summary batch.
func (s Scored) WithLink(link string) SummaryEntry {
	return SummaryEntry{Scored: s, Link: link}
}

// NormTitle is the deduplication identity of a record: trimmed and
// case-folded. An empty normalized title never deduplicates.
func NormTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// StateText renders the fixed-field state block the evaluator sees. It must
// stay stable for a given record: the scored output is only reproducible if
// the evaluator input is.
func StateText(r Raw) string {
	return fmt.Sprintf("Title: %s\nName: %s\nCount: %s\nHTML: %s",
		orNA(r.Title), orNA(r.Name), countString(r.Count), r.HTML)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func countString(c any) string {
	if c == nil {
		return "N/A"
	}
	if f, ok := c.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", c)
}
