package compress

import (
	"time"

	"github.com/stellarlinkco/mnemo/internal/store"
)

// Tier is an age-based classification of a memory entry. It is a
// read-model result, never stored state.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// TierCounts is a classification snapshot.
type TierCounts struct {
	Total int `json:"total"`
	Hot   int `json:"hot"`
	Warm  int `json:"warm"`
	Cold  int `json:"cold"`
}

// Classify partitions entries by age relative to now. An entry aged
// exactly preserveRecentDays is still Hot; one aged exactly warmDays is
// still Warm. Entries whose timestamp failed to parse go to Warm: the
// middle tier neither discards them nor exposes them to archival.
func Classify(entries []store.Entry, preserveRecentDays, warmDays int, now time.Time) (hot, warm, cold []store.Entry) {
	hotCutoff := now.AddDate(0, 0, -preserveRecentDays)
	warmCutoff := now.AddDate(0, 0, -warmDays)

	hot = make([]store.Entry, 0)
	warm = make([]store.Entry, 0)
	cold = make([]store.Entry, 0)

	for _, e := range entries {
		switch {
		case !e.HasTime():
			warm = append(warm, e)
		case !e.Time.Before(hotCutoff):
			hot = append(hot, e)
		case !e.Time.Before(warmCutoff):
			warm = append(warm, e)
		default:
			cold = append(cold, e)
		}
	}
	return hot, warm, cold
}

// Count classifies entries and returns only the tallies.
func Count(entries []store.Entry, preserveRecentDays, warmDays int, now time.Time) TierCounts {
	hot, warm, cold := Classify(entries, preserveRecentDays, warmDays, now)
	return TierCounts{
		Total: len(entries),
		Hot:   len(hot),
		Warm:  len(warm),
		Cold:  len(cold),
	}
}
