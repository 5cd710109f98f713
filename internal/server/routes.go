package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stellarlinkco/mnemo/internal/archive"
	"github.com/stellarlinkco/mnemo/internal/priority"
	"github.com/stellarlinkco/mnemo/internal/scheduler"
	"github.com/stellarlinkco/mnemo/internal/store"
)

func (s *Server) handleAppendEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	timestamp, err := s.memory.Append(req.Category, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrEmptyContent) {
			http.Error(w, `{"error":"content required"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "timestamp": timestamp})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.memory.Entries()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n < len(entries) {
			// Most recent entries live at the tail of the file.
			entries = entries[len(entries)-n:]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(entries),
		"entries": entriesJSON(entries),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, `{"error":"q parameter required"}`, http.StatusBadRequest)
		return
	}

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "live"
	}

	var start, end *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, `{"error":"start must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, `{"error":"end must be YYYY-MM-DD"}`, http.StatusBadRequest)
			return
		}
		end = &t
	}

	var results []store.Entry
	if scope == "live" || scope == "all" {
		live, err := s.memory.Search(query)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		results = append(results, live...)
	}
	if scope == "archive" || scope == "all" {
		archived, err := s.archives.Search(query, start, end)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		results = append(results, archived...)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"query":   query,
		"scope":   scope,
		"count":   len(results),
		"results": entriesJSON(results),
	})
}

func (s *Server) handleListPartitions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.archives.ListPartitions()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":      len(ids),
		"partitions": ids,
	})
}

func (s *Server) handlePartitionDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "partitionID")

	meta, err := s.archives.Metadata(id)
	if err != nil {
		if errors.Is(err, archive.ErrPartitionNotFound) {
			http.Error(w, `{"error":"partition not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"partition": id,
		"entries":   meta.EntryCount,
		"size_mb":   meta.SizeMB,
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Partition string `json:"partition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Partition == "" {
		http.Error(w, `{"error":"partition required"}`, http.StatusBadRequest)
		return
	}

	res, err := s.archival.RestoreFromArchive(req.Partition)
	if err != nil {
		if errors.Is(err, archive.ErrPartitionNotFound) {
			http.Error(w, `{"error":"partition not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	job := chi.URLParam(r, "job")

	var res scheduler.JobResult
	switch job {
	case scheduler.JobCompression:
		res = s.sched.RunCompression(r.Context())
	case scheduler.JobArchival:
		res = s.sched.RunArchival()
	case scheduler.JobThresholdCheck:
		res = s.sched.RunThresholdCheck()
	default:
		http.Error(w, `{"error":"unknown job"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if res.Status == scheduler.StatusError {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.sched.Status())
}

// handleSchedulerReconfigure applies a partial config update: absent or
// zero fields keep their current value. The scheduler restarts only if
// it was running.
func (s *Server) handleSchedulerReconfigure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompressionSchedule string  `json:"compression_schedule"`
		ArchivalSchedule    string  `json:"archival_schedule"`
		ThresholdSchedule   string  `json:"threshold_schedule"`
		CompressionPriority int     `json:"compression_priority"`
		ArchivalPriority    int     `json:"archival_priority"`
		ThresholdPriority   int     `json:"threshold_priority"`
		ArchiveDays         int     `json:"archive_days"`
		SizeThresholdMB     float64 `json:"size_threshold_mb"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	cfg := s.sched.Config()
	if req.CompressionSchedule != "" {
		cfg.CompressionSchedule = req.CompressionSchedule
	}
	if req.ArchivalSchedule != "" {
		cfg.ArchivalSchedule = req.ArchivalSchedule
	}
	if req.ThresholdSchedule != "" {
		cfg.ThresholdSchedule = req.ThresholdSchedule
	}
	if req.CompressionPriority > 0 {
		cfg.CompressionPriority = req.CompressionPriority
	}
	if req.ArchivalPriority > 0 {
		cfg.ArchivalPriority = req.ArchivalPriority
	}
	if req.ThresholdPriority > 0 {
		cfg.ThresholdPriority = req.ThresholdPriority
	}
	if req.ArchiveDays > 0 {
		cfg.ArchiveDays = req.ArchiveDays
	}
	if req.SizeThresholdMB > 0 {
		cfg.SizeThresholdMB = req.SizeThresholdMB
	}

	if err := s.sched.Reconfigure(cfg); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "reconfigured",
		"scheduler": map[string]any{
			"compression_schedule": cfg.CompressionSchedule,
			"archival_schedule":    cfg.ArchivalSchedule,
			"threshold_schedule":   cfg.ThresholdSchedule,
			"archive_days":         cfg.ArchiveDays,
			"size_threshold_mb":    cfg.SizeThresholdMB,
		},
	})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"suggestions": s.sink.Suggestions(),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"alerts": s.sink.Alerts(),
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	switch req.Action {
	case priority.ActionAccepted, priority.ActionRejected, priority.ActionIgnored:
	default:
		http.Error(w, `{"error":"action must be accepted, rejected or ignored"}`, http.StatusBadRequest)
		return
	}

	n, ok := s.sink.Resolve(id, req.Action)
	if !ok {
		http.Error(w, `{"error":"notification not found"}`, http.StatusNotFound)
		return
	}

	delta := s.engine.RecordFeedback(n.Score.Task, n.Score.Level, n.Score.Decision, req.Action)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "recorded",
		"task":       n.Score.Task,
		"action":     req.Action,
		"delta":      delta,
		"adjustment": s.engine.Adjustment(n.Score.Task),
	})
}

type entryJSON struct {
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
	Content   string `json:"content"`
}

func entriesJSON(entries []store.Entry) []entryJSON {
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryJSON{Timestamp: e.Timestamp, Category: e.Category, Content: e.Content}
	}
	return out
}
