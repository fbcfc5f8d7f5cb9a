package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craigmmills/enviroagent/internal/config"
	"github.com/craigmmills/enviroagent/internal/feedback"
	"github.com/craigmmills/enviroagent/internal/fetcher"
	"github.com/craigmmills/enviroagent/internal/llm"
	"github.com/craigmmills/enviroagent/internal/review"
	"github.com/craigmmills/enviroagent/internal/scorer"
	"github.com/craigmmills/enviroagent/internal/store"
	"github.com/craigmmills/enviroagent/internal/summary"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "extract":
		runExtract(args)
	case "score":
		runScore(args)
	case "review":
		runReview(args)
	case "summarize":
		runSummarize(args)
	case "update-instructions":
		runUpdateInstructions(args)
	case "run":
		runDaemon(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: enviroagent <command> [flags]

Commands:
  extract              Fetch today's articles from GDELT into the raw area
  score                Evaluate today's raw articles with the LLM agent
  review               Start the web interface for human scoring
  summarize            Build the summary JSON from scored articles
  update-instructions  Rewrite the agent instructions from human feedback
  run                  Daemon mode: extract and score on a cron schedule

Each command accepts -config (default "config.yaml").
`)
}

func loadConfig(fs *flag.FlagSet, args []string) *config.Config {
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// newCompleter builds the LLM client; only commands that talk to the
// evaluator require the API key.
func newCompleter(cfg *config.Config) llm.Completer {
	if cfg.LLM.APIKey == "" {
		log.Fatalf("LLM API key is required (set llm.api_key or ANTHROPIC_API_KEY)")
	}
	return llm.NewClient(cfg.LLM)
}

func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	output := fs.String("output", "", "output file path (default: today's raw batch)")
	cfg := loadConfig(fs, args)

	st := store.New(cfg.Data)
	out := *output
	if out == "" {
		out = st.RawPath(time.Now())
	}

	articles := fetcher.NewGDELT(cfg.Fetch).FetchDay(context.Background())
	if err := st.SaveRaw(out, articles); err != nil {
		log.Fatalf("Failed to save articles: %v", err)
	}
	fmt.Printf("Extraction complete. Saved %d articles to %s.\n", len(articles), out)
}

func runScore(args []string) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	dateStr := fs.String("date", "", "batch date YYYY-MM-DD (default: today)")
	cfg := loadConfig(fs, args)

	date := time.Now()
	if *dateStr != "" {
		var err error
		date, err = time.Parse("2006-01-02", *dateStr)
		if err != nil {
			log.Fatalf("Invalid -date %q: %v", *dateStr, err)
		}
	}

	st := store.New(cfg.Data)
	res, err := scorer.New(st, newCompleter(cfg)).Run(context.Background(), date)
	if err != nil {
		log.Fatalf("Scoring failed: %v", err)
	}
	if res.Skipped {
		fmt.Println("Scored file already exists, nothing to do.")
		return
	}
	fmt.Printf("Scoring complete. %d articles evaluated (%d fallback verdicts).\n",
		res.Scored+res.Fallback, res.Fallback)
}

func runReview(args []string) {
	fs := flag.NewFlagSet("review", flag.ExitOnError)
	input := fs.String("input", "", "scored batch to review (default: latest)")
	cfg := loadConfig(fs, args)

	st := store.New(cfg.Data)
	batchPath := *input
	if batchPath == "" {
		var err error
		batchPath, err = st.LatestScored()
		if err != nil {
			log.Fatalf("No scored batch to review: %v", err)
		}
	}

	srv := review.NewServer(cfg.Review.Addr, batchPath, st)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start review server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Review server shutdown error: %v", err)
	}
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	input := fs.String("input", "", "scored batch file (default: today's)")
	output := fs.String("output", "", "summary output file (default: today's)")
	cfg := loadConfig(fs, args)

	st := store.New(cfg.Data)
	now := time.Now()
	in, out := *input, *output
	if in == "" {
		in = st.ScoredPath(now)
	}
	if out == "" {
		out = st.SummaryPath(now)
	}

	res, err := summary.New(st, newCompleter(cfg), cfg.Summary.Threshold).Run(context.Background(), in, out)
	if err != nil {
		log.Fatalf("Summary failed: %v", err)
	}
	if res.Fallback {
		fmt.Printf("Summary complete (collaborator output unusable, emitted %d articles without links).\n", res.Written)
		return
	}
	fmt.Printf("Summary complete. Wrote %d articles to %s.\n", res.Written, out)
}

func runUpdateInstructions(args []string) {
	fs := flag.NewFlagSet("update-instructions", flag.ExitOnError)
	input := fs.String("input", "", "scored batch file (default: today's)")
	inputDir := fs.String("input-dir", "", "directory of scored batch files")
	instructions := fs.String("instructions", "", "instructions file (default: from config)")
	cfg := loadConfig(fs, args)

	if *instructions != "" {
		cfg.Data.Instructions = *instructions
	}
	st := store.New(cfg.Data)

	in := *input
	if in == "" {
		in = st.ScoredPath(time.Now())
	}

	res, err := feedback.New(st, newCompleter(cfg)).Run(context.Background(), in, *inputDir)
	if err != nil {
		log.Fatalf("Instruction update failed: %v", err)
	}
	if !res.Updated {
		fmt.Println("No human feedback available; instructions unchanged.")
		return
	}
	fmt.Printf("Instructions updated from %d reviewed articles (mean score %.2f).\n", res.Count, res.Mean)
	if res.Archived > 0 {
		fmt.Printf("Archived %d feedback files.\n", res.Archived)
	}
}

// runDaemon schedules extract followed by score on the configured cron
// expression and blocks until a shutdown signal.
func runDaemon(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfg := loadConfig(fs, args)

	st := store.New(cfg.Data)
	g := fetcher.NewGDELT(cfg.Fetch)
	sc := scorer.New(st, newCompleter(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := func() {
		now := time.Now()
		articles := g.FetchDay(ctx)
		if err := st.SaveRaw(st.RawPath(now), articles); err != nil {
			log.Printf("Failed to save raw batch: %v", err)
			return
		}
		log.Printf("Fetched %d articles", len(articles))
		if _, err := sc.Run(ctx, now); err != nil {
			log.Printf("Scoring failed: %v", err)
		}
	}

	if cfg.RunOnStart {
		log.Println("Running initial cycle...")
		cycle()
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		log.Println("Cron triggered, running cycle...")
		cycle()
	}); err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Printf("Scheduled pipeline with cron expression: %s", cfg.Schedule)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	c.Stop()
	log.Println("Shutdown complete")
}
