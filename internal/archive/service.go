package archive

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/store"
)

// Service moves aged entries from the live memory store into monthly
// archive partitions and can restore them back.
type Service struct {
	memory  *store.MemoryStore
	archive *Store
	log     *zap.Logger
	now     func() time.Time
}

// Result reports one archival pass.
type Result struct {
	ArchivedCount     int      `json:"archived_count"`
	RecentCount       int      `json:"recent_count"`
	PartitionsCreated []string `json:"partitions_created"`
}

// RestoreResult reports one restore operation.
type RestoreResult struct {
	RestoredCount int `json:"restored_count"`
	TotalEntries  int `json:"total_entries"`
}

func NewService(memory *store.MemoryStore, archiveStore *Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{memory: memory, archive: archiveStore, log: log, now: time.Now}
}

// ArchiveOldEntries transfers every entry older than olderThanDays into
// its calendar-month partition, then rewrites the live store to contain
// exactly the remaining entries. The whole pass runs inside one store
// transaction: if any partition append fails, the transaction aborts and
// every entry is still present only in the live store, re-archivable on
// the next pass. Entries without a parseable timestamp never qualify.
func (s *Service) ArchiveOldEntries(olderThanDays int) (Result, error) {
	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	var result Result

	err := s.memory.Transact(func(entries []store.Entry) ([]store.Entry, error) {
		old := make([]store.Entry, 0)
		recent := make([]store.Entry, 0, len(entries))
		for _, e := range entries {
			if e.HasTime() && e.Time.Before(cutoff) {
				old = append(old, e)
			} else {
				recent = append(recent, e)
			}
		}

		if len(old) == 0 {
			result = Result{RecentCount: len(recent)}
			return entries, nil
		}

		groups := groupByMonth(old)
		ids := make([]string, 0, len(groups))
		for id := range groups {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		created := make([]string, 0, len(ids))
		for _, id := range ids {
			fresh := !s.archive.Exists(id)
			if err := s.archive.AppendEntries(id, groups[id]); err != nil {
				return nil, fmt.Errorf("archive month %s: %w", id, err)
			}
			if err := s.archive.UpdateIndex(id, len(groups[id])); err != nil {
				return nil, fmt.Errorf("update index for %s: %w", id, err)
			}
			if fresh {
				created = append(created, id)
			}
			s.log.Info("entries archived",
				zap.String("partition", id),
				zap.Int("count", len(groups[id])))
		}

		result = Result{
			ArchivedCount:     len(old),
			RecentCount:       len(recent),
			PartitionsCreated: created,
		}
		return recent, nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// RestoreFromArchive merges a partition's entries back into the live
// store, ordered by timestamp. No content deduplication happens here:
// restoring the same partition twice duplicates its entries.
func (s *Service) RestoreFromArchive(partitionID string) (RestoreResult, error) {
	content, err := s.archive.Read(partitionID)
	if err != nil {
		return RestoreResult{}, err
	}
	restored := store.ParseEntries(content)

	var result RestoreResult
	err = s.memory.Transact(func(entries []store.Entry) ([]store.Entry, error) {
		merged := append(append([]store.Entry{}, entries...), restored...)
		store.SortByTime(merged)
		result = RestoreResult{RestoredCount: len(restored), TotalEntries: len(merged)}
		return merged, nil
	})
	if err != nil {
		return RestoreResult{}, err
	}

	s.log.Warn("archive restored into live memory",
		zap.String("partition", partitionID),
		zap.Int("restored", result.RestoredCount))
	return result, nil
}

func groupByMonth(entries []store.Entry) map[string][]store.Entry {
	groups := make(map[string][]store.Entry)
	for _, e := range entries {
		id := e.Month()
		groups[id] = append(groups[id], e)
	}
	return groups
}
