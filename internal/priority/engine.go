// Package priority implements the 1-10 decision engine that gates every
// lifecycle action: evaluate a task against static weights plus learned
// feedback adjustments, then route the result to autonomous execution,
// a human suggestion, or a blocking alert.
package priority

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DecisionType is how a scored action is allowed to execute. It is
// always derived from the level, never set independently.
type DecisionType string

const (
	DecisionAutonomous DecisionType = "autonomous" // 1-4: silent housekeeping
	DecisionSuggest    DecisionType = "suggest"    // 5-9: propose to a human
	DecisionInterrupt  DecisionType = "interrupt"  // 10: immediate alert
)

// DecisionFor maps a priority level to its execution mode.
func DecisionFor(level int) DecisionType {
	switch {
	case level <= 4:
		return DecisionAutonomous
	case level <= 9:
		return DecisionSuggest
	default:
		return DecisionInterrupt
	}
}

// User feedback actions on a routed decision.
const (
	ActionAccepted = "accepted"
	ActionRejected = "rejected"
	ActionIgnored  = "ignored"
)

// Score is one priority evaluation result.
type Score struct {
	Task       string       `json:"task"`
	Level      int          `json:"level"`
	Category   string       `json:"category"`
	Confidence float64      `json:"confidence"`
	Rationale  string       `json:"rationale"`
	Decision   DecisionType `json:"decision"`
}

// FeedbackRecord is one appended, never mutated, feedback event.
type FeedbackRecord struct {
	Task          string `json:"task"`
	PriorityLevel int    `json:"priority_level"`
	DecisionType  string `json:"decision_type"`
	UserAction    string `json:"user_action"`
	Timestamp     string `json:"timestamp"`
}

// persistedState is the on-disk document holding everything learned.
type persistedState struct {
	Feedback    []FeedbackRecord   `json:"feedback"`
	Adjustments map[string]float64 `json:"adjustments"`
	LastUpdated string             `json:"last_updated"`
}

// defaultMatrix carries the static base priority per known task.
// Unknown tasks score a neutral 5.
var defaultMatrix = map[string]int{
	"log_rotation":        2,
	"duplicate_removal":   2,
	"memory_compression":  5,
	"memory_archival":     3,
	"sentinel_check":      6,
	"system_optimization": 5,
	"error_recovery":      8,
	"security_alert":      10,
	"resource_exhaustion": 10,
	"user_input":          7,
}

// Engine scores tasks and learns from feedback. It is a plain injected
// instance; all mutable state lives here and persists to one JSON file.
type Engine struct {
	mu          sync.Mutex
	matrix      map[string]int
	adjustments map[string]float64
	feedback    []FeedbackRecord
	path        string // empty disables persistence
	log         *zap.Logger
}

// NewEngine creates an engine persisting learned state at path. Existing
// state is loaded; a missing file starts fresh, and a corrupt one is
// reported, not silently rebuilt.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		matrix:      defaultMatrix,
		adjustments: make(map[string]float64),
		path:        path,
		log:         log,
	}
	if path != "" {
		if err := e.load(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Evaluate scores a task. urgency and impact are 1-10, blockedCount is
// how many tasks wait on this one.
func (e *Engine) Evaluate(task, category string, urgency, impact, blockedCount int) Score {
	e.mu.Lock()
	defer e.mu.Unlock()

	base, ok := e.matrix[task]
	if !ok {
		base = 5
	}
	adjustment := e.adjustments[task]

	raw := float64(base) +
		0.3*float64(urgency-5) +
		0.2*float64(impact-5) +
		0.5*float64(blockedCount) +
		adjustment

	level := int(math.Round(clamp(raw, 1, 10)))
	confidence := 0.7 + 0.3*float64(min(urgency, impact))/10

	score := Score{
		Task:       task,
		Level:      level,
		Category:   category,
		Confidence: confidence,
		Rationale:  buildRationale(base, urgency, impact, blockedCount, adjustment),
		Decision:   DecisionFor(level),
	}
	e.log.Debug("priority evaluated",
		zap.String("task", task),
		zap.Int("level", level),
		zap.String("decision", string(score.Decision)))
	return score
}

// RecordFeedback applies one user response and returns the adjustment
// delta it produced. The feedback history and the adjustment table are
// persisted after every call; a failed write degrades to an in-process
// warning, never an error.
func (e *Engine) RecordFeedback(task string, level int, decision DecisionType, userAction string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.feedback = append(e.feedback, FeedbackRecord{
		Task:          task,
		PriorityLevel: level,
		DecisionType:  string(decision),
		UserAction:    userAction,
		Timestamp:     time.Now().Format(time.RFC3339),
	})

	var delta float64
	switch {
	case userAction == ActionRejected && decision == DecisionSuggest:
		delta = -0.3
	case userAction == ActionAccepted && decision == DecisionSuggest:
		delta = +0.1
	case userAction == ActionIgnored:
		delta = -0.5
	}

	if delta != 0 {
		e.adjustments[task] = clamp(e.adjustments[task]+delta, -1.0, 1.0)
		e.log.Info("priority adjusted",
			zap.String("task", task),
			zap.Float64("delta", delta),
			zap.Float64("adjustment", e.adjustments[task]))
	}

	if err := e.saveLocked(); err != nil {
		e.log.Warn("feedback persistence failed, adjustment valid for this process only",
			zap.Error(err))
	}
	return delta
}

// Adjustment returns the learned delta for a task.
func (e *Engine) Adjustment(task string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.adjustments[task]
}

// History returns a copy of the feedback records.
func (e *Engine) History() []FeedbackRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FeedbackRecord, len(e.feedback))
	copy(out, e.feedback)
	return out
}

func (e *Engine) load() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read feedback store: %w", err)
	}
	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse feedback store: %w", err)
	}
	e.feedback = state.Feedback
	if state.Adjustments != nil {
		e.adjustments = state.Adjustments
	}
	// Re-clamp on load in case the file was edited by hand.
	for task, adj := range e.adjustments {
		e.adjustments[task] = clamp(adj, -1.0, 1.0)
	}
	return nil
}

func (e *Engine) saveLocked() error {
	if e.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return fmt.Errorf("create feedback dir: %w", err)
	}
	state := persistedState{
		Feedback:    e.feedback,
		Adjustments: e.adjustments,
		LastUpdated: time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feedback store: %w", err)
	}
	if err := os.WriteFile(e.path, data, 0644); err != nil {
		return fmt.Errorf("write feedback store: %w", err)
	}
	return nil
}

func buildRationale(base, urgency, impact, blocked int, adjustment float64) string {
	parts := []string{fmt.Sprintf("Base: %d", base)}
	if urgency > 5 {
		parts = append(parts, fmt.Sprintf("Urgent (+%d)", urgency-5))
	}
	if impact > 5 {
		parts = append(parts, fmt.Sprintf("High Impact (+%d)", impact-5))
	}
	if blocked > 0 {
		parts = append(parts, fmt.Sprintf("Blocks %d tasks", blocked))
	}
	if adjustment != 0 {
		parts = append(parts, fmt.Sprintf("Learned adjustment (%+.1f)", adjustment))
	}
	return strings.Join(parts, " | ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
