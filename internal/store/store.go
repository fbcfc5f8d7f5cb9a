// Package store is the durability layer of the pipeline. There is no
// database: each stage reads and writes one dated JSON file per day, and
// cross-stage coordination happens entirely through file existence.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/config"
)

const dateLayout = "2006-01-02"

// Store resolves stage paths and performs all batch file IO.
type Store struct {
	rawDir       string
	scoredDir    string
	summaryDir   string
	instructions string
}

func New(cfg config.DataConfig) *Store {
	return &Store{
		rawDir:       cfg.RawDir,
		scoredDir:    cfg.ScoredDir,
		summaryDir:   cfg.SummaryDir,
		instructions: cfg.Instructions,
	}
}

// RawPath is where the fetch stage writes a day's batch.
func (s *Store) RawPath(date time.Time) string {
	return filepath.Join(s.rawDir, fmt.Sprintf("gdelt_articles_%s.json", date.Format(dateLayout)))
}

// ScoredPath is where the scoring stage writes a day's batch. Existence of
// this file is the scoring idempotency marker.
func (s *Store) ScoredPath(date time.Time) string {
	return filepath.Join(s.scoredDir, fmt.Sprintf("generated_scored_articles_%s.json", date.Format(dateLayout)))
}

// SummaryPath is where the summary stage writes its terminal artifact.
func (s *Store) SummaryPath(date time.Time) string {
	return filepath.Join(s.summaryDir, fmt.Sprintf("summary_%s.json", date.Format(dateLayout)))
}

// Exists reports whether a stage file is already on disk.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LatestScored returns the newest scored batch file. Filenames embed the
// date in sortable form, so a name sort is a date sort.
func (s *Store) LatestScored() (string, error) {
	entries, err := os.ReadDir(s.scoredDir)
	if err != nil {
		return "", fmt.Errorf("store: failed to read %s: %w", s.scoredDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "generated_scored_articles_") && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("store: no scored batches in %s", s.scoredDir)
	}
	sort.Strings(names)
	return filepath.Join(s.scoredDir, names[len(names)-1]), nil
}

func (s *Store) LoadRaw(path string) ([]article.Raw, error) {
	var records []article.Raw
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) SaveRaw(path string, records []article.Raw) error {
	if records == nil {
		records = []article.Raw{}
	}
	return writeJSON(path, records)
}

func (s *Store) LoadScored(path string) ([]article.Scored, error) {
	var records []article.Scored
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) SaveScored(path string, records []article.Scored) error {
	return writeJSON(path, records)
}

func (s *Store) SaveSummary(path string, records []article.SummaryEntry) error {
	if records == nil {
		records = []article.SummaryEntry{}
	}
	return writeJSON(path, records)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("store: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: failed to parse %s: %w", path, err)
	}
	return nil
}

// writeJSON writes the value to a temp file in the target directory and
// renames it into place, so a crashed or racing writer never leaves a torn
// batch behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("store: failed to marshal %s: %w", path, err)
	}
	return atomicWrite(path, append(data, '\n'))
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("store: failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: failed to replace %s: %w", path, err)
	}
	return nil
}

// ArchiveJSONFiles moves every JSON file directly inside dir into the
// sibling "processed_daily" directory. A file that cannot be moved is
// logged and skipped; the remaining files still move. Returns how many
// files were relocated.
func (s *Store) ArchiveJSONFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("store: failed to read %s: %w", dir, err)
	}

	archiveDir := filepath.Join(filepath.Dir(dir), "processed_daily")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, fmt.Errorf("store: failed to create %s: %w", archiveDir, err)
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		src := filepath.Join(dir, e.Name())
		dst := filepath.Join(archiveDir, e.Name())
		if err := os.Rename(src, dst); err != nil {
			log.Printf("Failed to archive %s: %v", e.Name(), err)
			continue
		}
		moved++
	}
	return moved, nil
}
