// Package scheduler drives the periodic memory maintenance jobs:
// daily compression, weekly archival and an hourly size threshold
// check, each routed through the priority layer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/archive"
	"github.com/stellarlinkco/mnemo/internal/compress"
	"github.com/stellarlinkco/mnemo/internal/priority"
	"github.com/stellarlinkco/mnemo/internal/store"
)

// Job names as they appear in results, logs and routed scores.
const (
	JobCompression    = "memory_compression"
	JobArchival       = "memory_archival"
	JobThresholdCheck = "threshold_check"
)

// Job result statuses.
const (
	StatusOK                = "OK"
	StatusSuccess           = "SUCCESS"
	StatusError             = "ERROR"
	StatusThresholdExceeded = "THRESHOLD_EXCEEDED"
)

// JobResult records one run of a maintenance job.
type JobResult struct {
	Job       string        `json:"job"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// JobStatus is one scheduled job as reported by Status.
type JobStatus struct {
	Job      string     `json:"job"`
	Schedule string     `json:"schedule"`
	NextRun  time.Time  `json:"next_run,omitempty"`
	Last     *JobResult `json:"last,omitempty"`
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// Compressor rebuilds the compressed read-model.
type Compressor interface {
	Compress(ctx context.Context) (compress.Result, error)
}

// Archiver moves entries older than a cutoff into monthly partitions.
type Archiver interface {
	ArchiveOldEntries(olderThanDays int) (archive.Result, error)
}

// SizeReporter exposes the live store's current size.
type SizeReporter interface {
	Stats() (store.Stats, error)
}

// ArchiveSizer exposes the archive's total on-disk size.
type ArchiveSizer interface {
	TotalSizeBytes() (int64, error)
}

// Config carries the cron expressions, routed priority per job, and
// the lifecycle parameters the jobs run with.
type Config struct {
	CompressionSchedule string
	ArchivalSchedule    string
	ThresholdSchedule   string
	CompressionPriority int
	ArchivalPriority    int
	ThresholdPriority   int
	ArchiveDays         int
	SizeThresholdMB     float64
}

// Service owns the cron runner and the last result per job. All three
// jobs can also be triggered manually through the Run methods; manual
// runs update the same results and route the same way.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	cron    *rcron.Cron
	entries map[string]rcron.EntryID
	results map[string]JobResult
	running bool

	compressor Compressor
	archiver   Archiver
	memory     SizeReporter
	archives   ArchiveSizer
	router     *priority.Router
	log        *zap.Logger
}

func NewService(cfg Config, compressor Compressor, archiver Archiver, memory SizeReporter, archives ArchiveSizer, router *priority.Router, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:        cfg,
		entries:    make(map[string]rcron.EntryID),
		results:    make(map[string]JobResult),
		compressor: compressor,
		archiver:   archiver,
		memory:     memory,
		archives:   archives,
		router:     router,
		log:        log,
	}
}

// Start registers the three jobs and begins scheduling. A bad cron
// expression fails Start before any job is scheduled.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	c := rcron.New()
	entries := make(map[string]rcron.EntryID)

	jobs := []struct {
		name string
		spec string
		run  func()
	}{
		{JobCompression, s.cfg.CompressionSchedule, func() { s.RunCompression(context.Background()) }},
		{JobArchival, s.cfg.ArchivalSchedule, func() { s.RunArchival() }},
		{JobThresholdCheck, s.cfg.ThresholdSchedule, func() { s.RunThresholdCheck() }},
	}
	for _, job := range jobs {
		id, err := c.AddFunc(job.spec, job.run)
		if err != nil {
			return fmt.Errorf("register %s (%s): %w", job.name, job.spec, err)
		}
		entries[job.name] = id
	}

	c.Start()
	s.cron = c
	s.entries = entries
	s.running = true
	s.log.Info("scheduler started",
		zap.String("compression", s.cfg.CompressionSchedule),
		zap.String("archival", s.cfg.ArchivalSchedule),
		zap.String("threshold", s.cfg.ThresholdSchedule))
	return nil
}

// Stop halts scheduling and waits up to five seconds for jobs that are
// mid-run, then returns in any case.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.entries = make(map[string]rcron.EntryID)
	s.running = false
	s.mu.Unlock()

	if c != nil {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			s.log.Warn("scheduler stop timeout waiting for running jobs")
		}
	}
	s.log.Info("scheduler stopped")
}

// Reconfigure replaces the config, restarting the cron runner if it
// was running. Last results survive a reconfigure.
func (s *Service) Reconfigure(cfg Config) error {
	for _, expr := range []string{cfg.CompressionSchedule, cfg.ArchivalSchedule, cfg.ThresholdSchedule} {
		if _, err := rcron.ParseStandard(expr); err != nil {
			return fmt.Errorf("parse schedule %q: %w", expr, err)
		}
	}

	s.mu.Lock()
	wasRunning := s.running
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if wasRunning {
		return s.startLocked()
	}
	return nil
}

// RunCompression triggers the compression job now.
func (s *Service) RunCompression(ctx context.Context) JobResult {
	cfg := s.Config()
	return s.runJob(JobCompression, func() JobResult {
		res, err := s.compressor.Compress(ctx)
		if err != nil {
			return JobResult{Status: StatusError, Error: err.Error()}
		}
		detail := fmt.Sprintf("hot=%d warm=%d cold=%d", res.Tiers.Hot, res.Tiers.Warm, res.Tiers.Cold)
		s.route(JobCompression, cfg.CompressionPriority, detail)
		return JobResult{Status: res.Status, Detail: detail}
	})
}

// RunArchival triggers the archival job now.
func (s *Service) RunArchival() JobResult {
	cfg := s.Config()
	return s.runJob(JobArchival, func() JobResult {
		res, err := s.archiver.ArchiveOldEntries(cfg.ArchiveDays)
		if err != nil {
			return JobResult{Status: StatusError, Error: err.Error()}
		}
		detail := fmt.Sprintf("archived=%d retained=%d partitions=%d", res.ArchivedCount, res.RecentCount, len(res.PartitionsCreated))
		s.route(JobArchival, cfg.ArchivalPriority, detail)
		return JobResult{Status: StatusSuccess, Detail: detail}
	})
}

// RunThresholdCheck compares the combined live store and archive size
// against the configured threshold. An exceeded threshold is routed
// exactly once per check at the threshold priority; a healthy size
// routes nothing.
func (s *Service) RunThresholdCheck() JobResult {
	cfg := s.Config()
	return s.runJob(JobThresholdCheck, func() JobResult {
		stats, err := s.memory.Stats()
		if err != nil {
			return JobResult{Status: StatusError, Error: err.Error()}
		}
		total := stats.SizeBytes
		if s.archives != nil {
			archiveBytes, err := s.archives.TotalSizeBytes()
			if err != nil {
				return JobResult{Status: StatusError, Error: err.Error()}
			}
			total += archiveBytes
		}
		sizeMB := float64(total) / (1024 * 1024)
		detail := fmt.Sprintf("size=%.2fMB threshold=%.2fMB", sizeMB, cfg.SizeThresholdMB)
		if sizeMB <= cfg.SizeThresholdMB {
			return JobResult{Status: StatusOK, Detail: detail}
		}
		s.route(JobCompression, cfg.ThresholdPriority,
			fmt.Sprintf("memory footprint %.2fMB exceeds %.2fMB threshold", sizeMB, cfg.SizeThresholdMB))
		return JobResult{Status: StatusThresholdExceeded, Detail: detail}
	})
}

// route sends a score at the configured level. Scheduled work carries
// a fixed level rather than an evaluated one, so the decision follows
// directly from config.
func (s *Service) route(task string, level int, rationale string) {
	if s.router == nil {
		return
	}
	s.router.Route(priority.Score{
		Task:       task,
		Level:      level,
		Category:   "maintenance",
		Confidence: 1.0,
		Rationale:  rationale,
		Decision:   priority.DecisionFor(level),
	})
}

// runJob wraps a job body with timing, panic recovery and result
// bookkeeping. A panicking job records an ERROR result; the scheduler
// keeps running.
func (s *Service) runJob(name string, fn func() JobResult) (result JobResult) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = JobResult{Status: StatusError, Error: fmt.Sprintf("panic: %v", r)}
			s.log.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
		}
		result.Job = name
		result.StartedAt = started
		result.Duration = time.Since(started)

		s.mu.Lock()
		s.results[name] = result
		s.mu.Unlock()

		if result.Status == StatusError {
			s.log.Error("job failed", zap.String("job", name), zap.String("error", result.Error))
		} else {
			s.log.Info("job finished",
				zap.String("job", name),
				zap.String("status", result.Status),
				zap.String("detail", result.Detail),
				zap.Duration("duration", result.Duration))
		}
	}()

	return fn()
}

// Config returns the active configuration.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// LastResult returns the most recent result for a job, if it ran.
func (s *Service) LastResult(name string) (JobResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[name]
	return res, ok
}

// Status reports the scheduler state and per-job schedule, next run
// and last result.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	specs := []struct {
		name string
		spec string
	}{
		{JobCompression, s.cfg.CompressionSchedule},
		{JobArchival, s.cfg.ArchivalSchedule},
		{JobThresholdCheck, s.cfg.ThresholdSchedule},
	}

	status := Status{Running: s.running}
	for _, js := range specs {
		j := JobStatus{Job: js.name, Schedule: js.spec}
		if id, ok := s.entries[js.name]; ok && s.cron != nil {
			j.NextRun = s.cron.Entry(id).Next
		}
		if res, ok := s.results[js.name]; ok {
			last := res
			j.Last = &last
		}
		status.Jobs = append(status.Jobs, j)
	}
	return status
}
