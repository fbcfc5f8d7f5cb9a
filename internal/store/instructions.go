package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultInstructions is used until the feedback loop has produced its
// first rewrite. The {state} placeholder is replaced with the per-record
// state block at scoring time.
const defaultInstructions = `You are a news evaluation agent. Your task is to analyze the following article details and assess its tweet-worthiness. Consider aspects such as relevance, timeliness, clarity, and public interest.

Article details:
{state}

Provide your evaluation as a JSON object with the following keys:
    "tweet_worthiness": an integer score between 0 (not tweet-worthy) and 10 (highly tweet-worthy).
    "summary": a brief (1-2 sentence) summary explaining your evaluation.

Example output:
{"tweet_worthiness": 8, "summary": "The article provides timely insights with significant public interest."}

Now, please provide your JSON evaluation.
`

// LoadInstructions returns the evaluator's standing instructions, falling
// back to the built-in default when no file exists yet.
func (s *Store) LoadInstructions() (string, error) {
	data, err := os.ReadFile(s.instructions)
	if os.IsNotExist(err) {
		return defaultInstructions, nil
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read instructions %s: %w", s.instructions, err)
	}
	return string(data), nil
}

// ReplaceInstructions installs text as the new standing instructions. The
// outgoing version is snapshotted under a versions/ sibling first, then the
// current file is replaced atomically. There is no automatic rollback; the
// snapshot exists so an operator can restore by hand.
func (s *Store) ReplaceInstructions(text string) error {
	if prev, err := os.ReadFile(s.instructions); err == nil {
		versionsDir := filepath.Join(filepath.Dir(s.instructions), "versions")
		if err := os.MkdirAll(versionsDir, 0o755); err != nil {
			return fmt.Errorf("store: failed to create %s: %w", versionsDir, err)
		}
		stamp := time.Now().UTC().Format("20060102T150405")
		snapshot := filepath.Join(versionsDir, fmt.Sprintf("agent_prompt_%s.txt", stamp))
		if err := os.WriteFile(snapshot, prev, 0o644); err != nil {
			return fmt.Errorf("store: failed to snapshot instructions: %w", err)
		}
	}
	return atomicWrite(s.instructions, []byte(text))
}

// InstructionsPath exposes the configured instruction file location.
func (s *Store) InstructionsPath() string {
	return s.instructions
}
