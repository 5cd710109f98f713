package compress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/store"
)

// Service builds the compressed read-model of the memory store. The
// live memory file is never mutated here; compression only writes the
// separate MEMORY_COMPRESSED.md.
type Service struct {
	memory     *store.MemoryStore
	summarizer Summarizer // nil means key-point extraction only
	log        *zap.Logger

	PreserveRecentDays int
	WarmDays           int
	SummarizerTimeout  time.Duration

	now func() time.Time
}

// Result reports one compression pass.
type Result struct {
	Status string     `json:"status"`
	Tiers  TierCounts `json:"tiers"`
}

func NewService(memory *store.MemoryStore, summarizer Summarizer, preserveRecentDays, warmDays int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		memory:             memory,
		summarizer:         summarizer,
		log:                log,
		PreserveRecentDays: preserveRecentDays,
		WarmDays:           warmDays,
		SummarizerTimeout:  30 * time.Second,
		now:                time.Now,
	}
}

// Tiers returns the current classification snapshot.
func (s *Service) Tiers() (TierCounts, error) {
	entries, err := s.memory.Entries()
	if err != nil {
		return TierCounts{}, err
	}
	return Count(entries, s.PreserveRecentDays, s.WarmDays, s.now()), nil
}

// Compress tiers the store's entries, keeps Hot verbatim, summarizes
// Warm and Cold, and replaces the compressed read-model. Summarizer
// failures and timeouts degrade to the deterministic key-point
// extractor, so the pass never fails for lack of an LLM.
func (s *Service) Compress(ctx context.Context) (Result, error) {
	entries, err := s.memory.Entries()
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{Status: "OK"}, nil
	}

	now := s.now()
	hot, warm, cold := Classify(entries, s.PreserveRecentDays, s.WarmDays, now)

	var sb strings.Builder
	if len(hot) > 0 {
		sb.WriteString("# HOT (Recent)\n")
		sb.WriteString(store.FormatEntries(hot))
	}
	if len(warm) > 0 {
		sb.WriteString("\n# WARM (Medium-term)\n")
		sb.WriteString(s.summarizeTier(ctx, warm, "warm"))
		sb.WriteString("\n")
	}
	if len(cold) > 0 {
		sb.WriteString("\n# COLD (Aged)\n")
		sb.WriteString(s.summarizeTier(ctx, cold, "cold"))
		sb.WriteString("\n")
	}

	if err := s.memory.WriteCompressed(sb.String()); err != nil {
		return Result{}, err
	}

	counts := TierCounts{Total: len(entries), Hot: len(hot), Warm: len(warm), Cold: len(cold)}
	s.log.Info("memory compressed",
		zap.Int("hot", counts.Hot),
		zap.Int("warm", counts.Warm),
		zap.Int("cold", counts.Cold))
	return Result{Status: "SUCCESS", Tiers: counts}, nil
}

// summarizeTier delegates to the summarizer when one is configured,
// bounded by SummarizerTimeout, and falls back to key-point extraction.
func (s *Service) summarizeTier(ctx context.Context, entries []store.Entry, mode string) string {
	if len(entries) == 0 {
		return ""
	}
	if s.summarizer != nil {
		tctx, cancel := context.WithTimeout(ctx, s.SummarizerTimeout)
		defer cancel()
		summary, err := s.summarizer.Summarize(tctx, store.FormatEntries(entries), mode)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil {
			s.log.Warn("summarizer failed, using key-point extraction",
				zap.String("mode", mode), zap.Error(err))
		}
	}
	return ExtractKeyPoints(entries)
}

// ExtractKeyPoints is the deterministic fallback summarizer: entries
// group by category, each group keeps its first and last entry plus a
// count of what was elided.
func ExtractKeyPoints(entries []store.Entry) string {
	order := make([]string, 0)
	byCategory := make(map[string][]store.Entry)
	for _, e := range entries {
		cat := e.Category
		if cat == "" {
			cat = "other"
		}
		if _, seen := byCategory[cat]; !seen {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], e)
	}

	var sb strings.Builder
	for i, cat := range order {
		group := byCategory[cat]
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "## %s\n", cat)
		sb.WriteString(store.FormatLine(group[0]))
		sb.WriteString("\n")
		if len(group) > 2 {
			fmt.Fprintf(&sb, "  ... (%d more entries)\n", len(group)-2)
		}
		if len(group) > 1 {
			sb.WriteString(store.FormatLine(group[len(group)-1]))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
