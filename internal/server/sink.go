package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/priority"
)

// Notification is a routed suggestion or alert held for review over
// the API. Feedback on a notification resolves it.
type Notification struct {
	ID        string         `json:"id"`
	Score     priority.Score `json:"score"`
	CreatedAt time.Time      `json:"created_at"`
	Resolved  bool           `json:"resolved"`
	Action    string         `json:"action,omitempty"`
}

// MemorySink retains routed decisions in memory so API clients can
// list them and respond. It is the process's priority.Sink.
type MemorySink struct {
	mu          sync.Mutex
	suggestions []Notification
	alerts      []Notification
	log         *zap.Logger
}

func NewMemorySink(log *zap.Logger) *MemorySink {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemorySink{log: log}
}

func (s *MemorySink) OnSuggest(score priority.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Notification{ID: uuid.NewString(), Score: score, CreatedAt: time.Now()}
	s.suggestions = append(s.suggestions, n)
	s.log.Info("suggestion retained", zap.String("id", n.ID), zap.String("task", score.Task))
}

func (s *MemorySink) OnCritical(score priority.Score) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Notification{ID: uuid.NewString(), Score: score, CreatedAt: time.Now()}
	s.alerts = append(s.alerts, n)
	s.log.Error("alert retained", zap.String("id", n.ID), zap.String("task", score.Task))
}

// Suggestions returns a copy of all retained suggestions.
func (s *MemorySink) Suggestions() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.suggestions))
	copy(out, s.suggestions)
	return out
}

// Alerts returns a copy of all retained alerts.
func (s *MemorySink) Alerts() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Resolve marks a notification with the user's action and returns it.
// The second return is false when the id is unknown.
func (s *MemorySink) Resolve(id, action string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, list := range [][]Notification{s.suggestions, s.alerts} {
		for i := range list {
			if list[i].ID == id {
				list[i].Resolved = true
				list[i].Action = action
				return list[i], true
			}
		}
	}
	return Notification{}, false
}
