package archive

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Index reads the cached summary index. A missing index file is an
// empty index, never an error — it can always be rebuilt.
func (s *Store) Index() (map[string]PartitionMeta, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]PartitionMeta{}, nil
		}
		return nil, fmt.Errorf("read archive index: %w", err)
	}

	idx := make(map[string]PartitionMeta)
	for _, line := range strings.Split(string(data), "\n") {
		if id, meta, ok := parseIndexRow(line); ok {
			idx[id] = meta
		}
	}
	return idx, nil
}

// UpdateIndex adds appended entries to a partition's cached count and
// recomputes its size from the partition file. Counts accumulate across
// appends so the cache stays consistent with the append-only file.
func (s *Store) UpdateIndex(id string, appended int) error {
	if err := validateID(id); err != nil {
		return err
	}
	idx, err := s.Index()
	if err != nil {
		return err
	}

	meta := idx[id]
	meta.EntryCount += appended
	if info, err := os.Stat(s.partitionPath(id)); err == nil {
		meta.SizeMB = roundMB(info.Size())
	}
	idx[id] = meta

	return s.writeIndex(idx)
}

// RebuildIndex recounts every partition file and rewrites the index,
// recovering from a lost or corrupted INDEX.md.
func (s *Store) RebuildIndex() (map[string]PartitionMeta, error) {
	ids, err := s.ListPartitions()
	if err != nil {
		return nil, err
	}
	idx := make(map[string]PartitionMeta, len(ids))
	for _, id := range ids {
		meta, err := s.recompute(id)
		if err != nil {
			return nil, err
		}
		idx[id] = meta
	}
	if err := s.writeIndex(idx); err != nil {
		return nil, err
	}
	s.log.Info("archive index rebuilt", zap.Int("partitions", len(idx)))
	return idx, nil
}

func (s *Store) writeIndex(idx map[string]PartitionMeta) error {
	ids := make([]string, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString("# ARCHIVE INDEX\n\n")
	sb.WriteString("| Partition | Entries | Size (MB) |\n")
	sb.WriteString("|-----------|---------|-----------|\n")
	for _, id := range ids {
		meta := idx[id]
		fmt.Fprintf(&sb, "| %s | %d | %.2f |\n", id, meta.EntryCount, meta.SizeMB)
	}
	fmt.Fprintf(&sb, "\nUpdated: %s\n", time.Now().Format(time.RFC3339))

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write archive index: %w", err)
	}
	return nil
}
