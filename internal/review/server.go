// Package review serves the human review gate: a small web form that walks
// an operator through a scored batch one record at a time, persisting each
// decision back into the batch file in place.
package review

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/craigmmills/enviroagent/internal/article"
	"github.com/craigmmills/enviroagent/internal/store"
)

// Server owns one scored batch file for the duration of a review session.
type Server struct {
	addr      string
	batchPath string
	store     *store.Store
	server    *http.Server

	// Guards the load-modify-save cycle on the batch file.
	mu sync.Mutex
}

func NewServer(addr, batchPath string, st *store.Store) *Server {
	s := &Server{addr: addr, batchPath: batchPath, store: st}
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler exposes the route table; tests drive it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/article/", s.handleArticle)
	mux.HandleFunc("/completed", s.handleCompleted)
	return mux
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("review: failed to listen on %s: %w", s.addr, err)
	}
	go func() {
		log.Printf("Review interface listening on %s (batch %s)", s.addr, s.batchPath)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("Review server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/article/0", http.StatusFound)
}

func (s *Server) handleCompleted(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := completedTmpl.Execute(w, nil); err != nil {
		log.Printf("Failed to render completed page: %v", err)
	}
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/article/"))
	if err != nil || index < 0 {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch, err := s.store.LoadScored(s.batchPath)
	if err != nil {
		log.Printf("Failed to load batch: %v", err)
		http.Error(w, "failed to load batch", http.StatusInternalServerError)
		return
	}

	// Past the end means every record has been seen: review is complete.
	if index >= len(batch) {
		http.Redirect(w, r, "/completed", http.StatusFound)
		return
	}

	if r.Method == http.MethodPost {
		s.submit(w, r, batch, index)
		return
	}

	s.render(w, batch, index, "")
}

// submit records the operator's decision and advances. Reviewing the same
// index twice simply overwrites the earlier decision.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, batch []article.Scored, index int) {
	rec := batch[index]

	var score int
	var reasoning string
	if r.FormValue("action") == "agree" {
		score = rec.TweetWorthiness
		reasoning = rec.Summary
	} else {
		var err error
		score, err = strconv.Atoi(strings.TrimSpace(r.FormValue("user_score")))
		if err != nil {
			s.render(w, batch, index, "Score must be an integer.")
			return
		}
		reasoning = r.FormValue("user_reasoning")
	}

	batch[index] = rec.WithReview(score, reasoning)
	if err := s.store.SaveScored(s.batchPath, batch); err != nil {
		log.Printf("Failed to save batch: %v", err)
		http.Error(w, "failed to save batch", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/article/%d", index+1), http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, batch []article.Scored, index int, message string) {
	rec := batch[index]
	data := articlePage{
		Index:    index,
		Total:    len(batch),
		Progress: float64(index) / float64(len(batch)) * 100,
		Article:  rec,
		Link:     article.FirstLink(rec.HTML),
		Message:  message,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := articleTmpl.Execute(w, data); err != nil {
		log.Printf("Failed to render article %d: %v", index, err)
	}
}

type articlePage struct {
	Index    int
	Total    int
	Progress float64
	Article  article.Scored
	Link     string
	Message  string
}
