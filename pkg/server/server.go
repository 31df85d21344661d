package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mictrack/internal/runner"
	"mictrack/internal/store"
	"mictrack/pkg/scraper"
)

// Server provides the HTTP API. It is a thin consumer of the store and
// the scrape runner; views and caching are a client concern.
type Server struct {
	store  store.Store
	runner *runner.Runner
	port   int
}

// New creates a new HTTP server.
func New(s store.Store, r *runner.Runner, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, runner: r, port: port}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("mictrack server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.routes())
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/mics", s.handleMics)
	mux.HandleFunc("/api/v1/scrape", s.handleScrape)
	mux.HandleFunc("/api/v1/sets", s.handleSets)
	mux.HandleFunc("/api/v1/plans", s.handlePlans)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var (
		mics []scraper.Mic
		err  error
	)
	if day := r.URL.Query().Get("day"); day != "" {
		mics, err = s.store.MicsByDay(r.Context(), day)
	} else {
		mics, err = s.store.ListActiveMics(r.Context())
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  mics,
		"count": len(mics),
	})
}

// handleScrape runs all configured scrapers synchronously. Extractor
// failures come back inside each source's report; the response is 200
// as long as the store itself worked, so one broken site never hides
// another site's results.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	apply := r.URL.Query().Get("apply") == "true"
	reports, err := s.runner.Run(r.Context(), apply)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":    reports,
		"applied": apply,
	})
}

func (s *Server) handleSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sets, err := s.store.ListSets(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sets,
		"count": len(sets),
	})
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start and end query params required (YYYY-MM-DD)"})
		return
	}

	plans, err := s.store.PlansForRange(r.Context(), start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  plans,
		"count": len(plans),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	history, err := s.store.ScrapeHistory(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  history,
		"count": len(history),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
