package priority

import (
	"fmt"

	"go.uber.org/zap"
)

// Sink receives decisions that need a human. Suggestions are delivered
// on their own goroutine and must not block routing; critical alerts
// are delivered synchronously before Route returns.
type Sink interface {
	OnSuggest(score Score)
	OnCritical(score Score)
}

// Router dispatches scored actions by decision type. A nil sink is
// valid: suggestions and alerts are then log-only.
type Router struct {
	sink Sink
	log  *zap.Logger
}

// NewRouter creates a router delivering to sink.
func NewRouter(sink Sink, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{sink: sink, log: log}
}

// Route dispatches a score and returns its decision plus a
// human-readable summary of what was done with it.
func (r *Router) Route(score Score) (DecisionType, string) {
	switch score.Decision {
	case DecisionAutonomous:
		msg := fmt.Sprintf("executing autonomously: %s (%d/10)", score.Task, score.Level)
		r.log.Info("autonomous action",
			zap.String("task", score.Task),
			zap.Int("level", score.Level),
			zap.String("rationale", score.Rationale))
		return DecisionAutonomous, msg

	case DecisionInterrupt:
		msg := fmt.Sprintf("CRITICAL: %s (%d/10) requires immediate attention", score.Task, score.Level)
		r.log.Error("critical alert",
			zap.String("task", score.Task),
			zap.Int("level", score.Level),
			zap.String("rationale", score.Rationale))
		if r.sink != nil {
			r.sink.OnCritical(score)
		}
		return DecisionInterrupt, msg

	default:
		msg := fmt.Sprintf("suggestion: %s (%d/10)", score.Task, score.Level)
		r.log.Info("suggestion raised",
			zap.String("task", score.Task),
			zap.Int("level", score.Level),
			zap.Float64("confidence", score.Confidence))
		if r.sink != nil {
			go r.sink.OnSuggest(score)
		}
		return DecisionSuggest, msg
	}
}
