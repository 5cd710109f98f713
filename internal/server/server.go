// Package server exposes the memory lifecycle over HTTP: entry
// writes, search across live and archived entries, manual job
// triggers, scheduler state and the suggestion/feedback loop.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/archive"
	"github.com/stellarlinkco/mnemo/internal/compress"
	"github.com/stellarlinkco/mnemo/internal/priority"
	"github.com/stellarlinkco/mnemo/internal/scheduler"
	"github.com/stellarlinkco/mnemo/internal/store"
)

// Server is the mnemo HTTP API.
type Server struct {
	memory     *store.MemoryStore
	archives   *archive.Store
	archival   *archive.Service
	compressor *compress.Service
	sched      *scheduler.Service
	engine     *priority.Engine
	sink       *MemorySink
	router     chi.Router
	log        *zap.Logger
	version    string
	started    time.Time
}

func New(memory *store.MemoryStore, archives *archive.Store, archival *archive.Service, compressor *compress.Service, sched *scheduler.Service, engine *priority.Engine, sink *MemorySink, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		memory:     memory,
		archives:   archives,
		archival:   archival,
		compressor: compressor,
		sched:      sched,
		engine:     engine,
		sink:       sink,
		log:        log,
		version:    version,
		started:    time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Post("/entries", s.handleAppendEntry)
		r.Get("/entries", s.handleListEntries)
		r.Get("/search", s.handleSearch)

		r.Get("/archive/partitions", s.handleListPartitions)
		r.Get("/archive/partitions/{partitionID}", s.handlePartitionDetail)
		r.Post("/archive/restore", s.handleRestore)

		r.Post("/jobs/{job}/run", s.handleRunJob)
		r.Get("/scheduler/status", s.handleSchedulerStatus)
		r.Post("/scheduler/reconfigure", s.handleSchedulerReconfigure)

		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/alerts", s.handleAlerts)
		r.Post("/suggestions/{id}/feedback", s.handleFeedback)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeOK := true
	if _, err := s.memory.Stats(); err != nil {
		storeOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	memStats, err := s.memory.Stats()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	arcStats, err := s.archives.Stats()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	tiers, err := s.compressor.Tiers()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"memory": map[string]any{
			"entries":    memStats.EntryCount,
			"size_bytes": memStats.SizeBytes,
			"modified":   memStats.Modified,
		},
		"tiers": tiers,
		"archive": map[string]any{
			"partitions":    arcStats.TotalPartitions,
			"entries":       arcStats.TotalEntries,
			"total_size_mb": arcStats.TotalSizeMB,
			"oldest":        arcStats.Oldest,
			"newest":        arcStats.Newest,
		},
	})
}
