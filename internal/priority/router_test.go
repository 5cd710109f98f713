package priority

import (
	"strings"
	"testing"
	"time"
)

type captureSink struct {
	suggested chan Score
	critical  chan Score
}

func newCaptureSink() *captureSink {
	return &captureSink{
		suggested: make(chan Score, 8),
		critical:  make(chan Score, 8),
	}
}

func (s *captureSink) OnSuggest(score Score)  { s.suggested <- score }
func (s *captureSink) OnCritical(score Score) { s.critical <- score }

func TestRouteAutonomousSkipsSink(t *testing.T) {
	sink := newCaptureSink()
	r := NewRouter(sink, nil)

	decision, msg := r.Route(Score{Task: "log_rotation", Level: 2, Decision: DecisionAutonomous})
	if decision != DecisionAutonomous {
		t.Fatalf("decision = %s", decision)
	}
	if !strings.Contains(msg, "log_rotation") || !strings.Contains(msg, "2/10") {
		t.Fatalf("message = %q", msg)
	}
	select {
	case s := <-sink.suggested:
		t.Fatalf("unexpected suggestion %+v", s)
	case s := <-sink.critical:
		t.Fatalf("unexpected critical %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouteSuggestDeliversAsynchronously(t *testing.T) {
	sink := newCaptureSink()
	r := NewRouter(sink, nil)

	decision, _ := r.Route(Score{Task: "memory_compression", Level: 6, Decision: DecisionSuggest})
	if decision != DecisionSuggest {
		t.Fatalf("decision = %s", decision)
	}
	select {
	case s := <-sink.suggested:
		if s.Task != "memory_compression" {
			t.Fatalf("suggested task = %q", s.Task)
		}
	case <-time.After(time.Second):
		t.Fatal("suggestion never delivered")
	}
}

func TestRouteInterruptDeliversSynchronously(t *testing.T) {
	sink := newCaptureSink()
	r := NewRouter(sink, nil)

	decision, msg := r.Route(Score{Task: "security_alert", Level: 10, Decision: DecisionInterrupt})
	if decision != DecisionInterrupt {
		t.Fatalf("decision = %s", decision)
	}
	if !strings.Contains(msg, "CRITICAL") {
		t.Fatalf("message = %q", msg)
	}
	// Synchronous delivery means the alert is already buffered.
	select {
	case s := <-sink.critical:
		if s.Level != 10 {
			t.Fatalf("critical level = %d", s.Level)
		}
	default:
		t.Fatal("critical alert not delivered before Route returned")
	}
}

func TestRouteNilSink(t *testing.T) {
	r := NewRouter(nil, nil)
	if decision, _ := r.Route(Score{Task: "sentinel_check", Level: 6, Decision: DecisionSuggest}); decision != DecisionSuggest {
		t.Fatalf("decision = %s", decision)
	}
	if decision, _ := r.Route(Score{Task: "security_alert", Level: 10, Decision: DecisionInterrupt}); decision != DecisionInterrupt {
		t.Fatalf("decision = %s", decision)
	}
}
