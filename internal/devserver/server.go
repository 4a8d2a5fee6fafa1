// Package devserver is a stand-in for the retrieval backend. It answers
// POST /query the way the real service does, without embeddings or a model,
// so the chat front-ends can be run and tested locally.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/diogo/querychat/internal/models"
)

// DefaultAddr matches the real backend's default port
const DefaultAddr = ":5000"

// maxRequestBytes caps the size of a query body
const maxRequestBytes = 1 << 20

// defaultTopK is how many trends GET /trending returns without ?top_k
const defaultTopK = 5

// baseWriteTimeout is the write deadline on top of any artificial latency
const baseWriteTimeout = 60 * time.Second

// Job is one canned retrieval hit
type Job struct {
	BusinessTitle string `json:"business_title"`
	Agency        string `json:"agency"`
	WorkLocation  string `json:"work_location"`
}

// Trend is one canned trending category
type Trend struct {
	JobCategory string `json:"job_category"`
	Count       int    `json:"count"`
}

// TitleTrend is one canned trending job title
type TitleTrend struct {
	BusinessTitle string `json:"business_title"`
	Count         int    `json:"count"`
}

type historyEntry struct {
	Query         string `json:"query"`
	RetrievedJobs []Job  `json:"retrieved_jobs"`
}

// Server answers queries with canned data and keeps an in-memory
// conversation history like the real backend.
type Server struct {
	log     zerolog.Logger
	latency time.Duration
	jobs    []Job
	trends  []Trend
	titles  []TitleTrend

	mu      sync.Mutex
	history []historyEntry
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the access and error logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithLatency delays every reply, to exercise the front-end's pending state
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// New creates a Server
func New(opts ...Option) *Server {
	s := &Server{
		log: zerolog.Nop(),
		jobs: []Job{
			{BusinessTitle: "Software Engineer", Agency: "Department of Transportation", WorkLocation: "New York, NY"},
			{BusinessTitle: "Data Analyst", Agency: "Department of Health", WorkLocation: "Brooklyn, NY"},
			{BusinessTitle: "Systems Administrator", Agency: "Department of Finance", WorkLocation: "Queens, NY"},
		},
		trends: []Trend{
			{JobCategory: "Technology, Data & Innovation", Count: 42},
			{JobCategory: "Health", Count: 31},
			{JobCategory: "Engineering, Architecture & Planning", Count: 18},
		},
		titles: []TitleTrend{
			{BusinessTitle: "Software Engineer", Count: 27},
			{BusinessTitle: "Data Analyst", Count: 19},
			{BusinessTitle: "Systems Administrator", Count: 8},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the HTTP handler with middleware applied
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get(models.PathHealth, s.health)
	r.Post(models.PathQuery, s.query)
	r.Get("/history", s.conversationHistory)
	r.Get("/trending", s.trending)

	return r
}

// snapshot copies the conversation history
func (s *Server) snapshot() []historyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]historyEntry{}, s.history...)
}

func (s *Server) conversationHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_history": s.snapshot(),
	})
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	topK := defaultTopK
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "top_k must be a positive integer"})
			return
		}
		topK = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trending_jobs":       head(s.titles, topK),
		"trending_categories": head(s.trends, topK),
	})
}

func head[T any](items []T, n int) []T {
	if n < len(items) {
		return items[:n]
	}
	return items
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}

	query := gjson.GetBytes(body, models.FieldQuery).String()
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Query is missing"})
		return
	}

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	if gjson.GetBytes(body, "reset_context").Bool() {
		s.mu.Lock()
		s.history = nil
		s.mu.Unlock()
	}

	lower := strings.ToLower(query)

	if strings.Contains(lower, "tell me more") {
		s.followUp(w, body, query)
		return
	}

	if strings.Contains(lower, "trending") {
		if strings.Contains(lower, "category") {
			writeJSON(w, http.StatusOK, map[string]any{
				models.FieldTrending:        s.trends,
				models.FieldResponseMessage: fmt.Sprintf("The busiest category right now is %s with %d openings.", s.trends[0].JobCategory, s.trends[0].Count),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			models.FieldTrending:        s.titles,
			models.FieldResponseMessage: fmt.Sprintf("The most posted title right now is %s with %d listings.", s.titles[0].BusinessTitle, s.titles[0].Count),
		})
		return
	}

	jobs := s.match(query)
	s.mu.Lock()
	s.history = append(s.history, historyEntry{Query: query, RetrievedJobs: jobs})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		models.FieldRetrievedJobs:   jobs,
		models.FieldResponseMessage: describe(query, jobs),
		"conversation_history":      s.snapshot(),
	})
}

// followUp answers "tell me more" from the jobs of the previous query.
// The client may send them as last_jobs; otherwise the most recent history
// entry with results is used. With nothing to go on the reply is a 400 that
// still carries a response_message.
func (s *Server) followUp(w http.ResponseWriter, body []byte, query string) {
	var jobs []Job
	if raw := gjson.GetBytes(body, "last_jobs"); raw.IsArray() {
		if err := json.Unmarshal([]byte(raw.Raw), &jobs); err != nil {
			jobs = nil
		}
	}
	if len(jobs) == 0 {
		jobs = s.lastJobs()
	}

	if len(jobs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			models.FieldResponseMessage: "I don't have details from your previous query. Please ask again or provide more specifics.",
		})
		return
	}

	details := make([]string, len(jobs))
	for i, j := range jobs {
		details[i] = fmt.Sprintf("%s at %s in %s", j.BusinessTitle, j.Agency, j.WorkLocation)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		models.FieldResponseMessage: fmt.Sprintf("About %q: %s.", query, strings.Join(details, "; ")),
	})
}

// lastJobs returns the jobs of the most recent query that found any
func (s *Server) lastJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if len(s.history[i].RetrievedJobs) > 0 {
			return s.history[i].RetrievedJobs
		}
	}
	return nil
}

// match returns the canned jobs sharing a word with the query
func (s *Server) match(query string) []Job {
	words := strings.Fields(strings.ToLower(query))
	out := []Job{}
	for _, job := range s.jobs {
		title := strings.ToLower(job.BusinessTitle)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(title, w) {
				out = append(out, job)
				break
			}
		}
	}
	return out
}

func describe(query string, jobs []Job) string {
	if len(jobs) == 0 {
		return fmt.Sprintf("You asked: %s. I couldn't find any jobs matching your query. Please try refining your search.", query)
	}
	titles := make([]string, len(jobs))
	for i, j := range jobs {
		titles[i] = fmt.Sprintf("%s (%s)", j.BusinessTitle, j.WorkLocation)
	}
	return fmt.Sprintf("You asked: %s. Found %d: %s.", query, len(jobs), strings.Join(titles, "; "))
}

// accessLog writes one line per request
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("req_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("http")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", models.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeTimeout leaves the full base deadline after the artificial delay
func writeTimeout(latency time.Duration) time.Duration {
	return baseWriteTimeout + latency
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      writeTimeout(s.latency),
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()

	s.log.Info().Str("addr", addr).Msg("dev backend listening")

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dev backend: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.log.Info().Msg("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.log.Info().Msg("dev backend stopped")
	return nil
}
