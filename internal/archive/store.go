package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/store"
)

const indexFilename = "INDEX.md"

// ErrPartitionNotFound is returned when a YYYY-MM partition file does not exist.
var ErrPartitionNotFound = errors.New("archive partition not found")

var partitionIDRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// PartitionMeta is the cached index record for one partition.
type PartitionMeta struct {
	EntryCount int     `json:"entry_count"`
	SizeMB     float64 `json:"size_mb"`
}

// Stats summarizes the whole archive.
type Stats struct {
	TotalPartitions int
	TotalEntries    int
	TotalSizeMB     float64
	Oldest          string
	Newest          string
	Partitions      map[string]PartitionMeta
}

// Store manages month-partitioned append-only archive files plus a
// summary index. Partition files are never rewritten, only appended.
type Store struct {
	dir string
	log *zap.Logger
}

func NewStore(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}
}

func (s *Store) partitionPath(id string) string {
	return filepath.Join(s.dir, id+".md")
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexFilename)
}

func validateID(id string) error {
	if !partitionIDRe.MatchString(id) {
		return fmt.Errorf("invalid partition id %q, want YYYY-MM", id)
	}
	return nil
}

// Write appends text to the partition file, creating it on first use.
func (s *Store) Write(id, text string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.OpenFile(s.partitionPath(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", id, err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("append partition %s: %w", id, err)
	}
	return nil
}

// Read returns the partition content or ErrPartitionNotFound.
func (s *Store) Read(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.partitionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
		}
		return "", fmt.Errorf("read partition %s: %w", id, err)
	}
	return string(data), nil
}

// Exists reports whether the partition file is present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.partitionPath(id))
	return err == nil
}

// AppendEntries formats entries into canonical lines and appends them
// to the partition.
func (s *Store) AppendEntries(id string, entries []store.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.Write(id, store.FormatEntries(entries))
}

// ListPartitions returns all partition ids in ascending order.
func (s *Store) ListPartitions() ([]string, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list archive dir: %w", err)
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		if partitionIDRe.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Metadata returns the index record for one partition, recomputing it
// from the partition file when the index has no entry.
func (s *Store) Metadata(id string) (PartitionMeta, error) {
	idx, err := s.Index()
	if err != nil {
		return PartitionMeta{}, err
	}
	if meta, ok := idx[id]; ok {
		return meta, nil
	}
	if !s.Exists(id) {
		return PartitionMeta{}, fmt.Errorf("%w: %s", ErrPartitionNotFound, id)
	}
	return s.recompute(id)
}

func (s *Store) recompute(id string) (PartitionMeta, error) {
	content, err := s.Read(id)
	if err != nil {
		return PartitionMeta{}, err
	}
	info, err := os.Stat(s.partitionPath(id))
	if err != nil {
		return PartitionMeta{}, fmt.Errorf("stat partition %s: %w", id, err)
	}
	return PartitionMeta{
		EntryCount: len(store.ParseEntries(content)),
		SizeMB:     roundMB(info.Size()),
	}, nil
}

// Search scans every partition and returns entries matching keyword,
// optionally restricted to a timestamp range.
func (s *Store) Search(keyword string, start, end *time.Time) ([]store.Entry, error) {
	ids, err := s.ListPartitions()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(keyword))
	matches := make([]store.Entry, 0)
	for _, id := range ids {
		content, err := s.Read(id)
		if err != nil {
			return nil, err
		}
		for _, e := range store.ParseEntries(content) {
			if needle != "" &&
				!strings.Contains(strings.ToLower(e.Content), needle) &&
				!strings.Contains(strings.ToLower(e.Category), needle) {
				continue
			}
			if start != nil && (!e.HasTime() || e.Time.Before(*start)) {
				continue
			}
			if end != nil && (!e.HasTime() || e.Time.After(*end)) {
				continue
			}
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// Stats aggregates the index across all partitions.
func (s *Store) Stats() (Stats, error) {
	ids, err := s.ListPartitions()
	if err != nil {
		return Stats{}, err
	}
	out := Stats{Partitions: make(map[string]PartitionMeta)}
	if len(ids) == 0 {
		return out, nil
	}
	for _, id := range ids {
		meta, err := s.Metadata(id)
		if err != nil {
			return Stats{}, err
		}
		out.Partitions[id] = meta
		out.TotalEntries += meta.EntryCount
		out.TotalSizeMB += meta.SizeMB
	}
	out.TotalPartitions = len(ids)
	out.Oldest = ids[0]
	out.Newest = ids[len(ids)-1]
	out.TotalSizeMB = round2(out.TotalSizeMB)
	return out, nil
}

// TotalSizeBytes sums the on-disk size of all partition files.
func (s *Store) TotalSizeBytes() (int64, error) {
	ids, err := s.ListPartitions()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		info, err := os.Stat(s.partitionPath(id))
		if err != nil {
			return 0, fmt.Errorf("stat partition %s: %w", id, err)
		}
		total += info.Size()
	}
	return total, nil
}

func roundMB(sizeBytes int64) float64 {
	return round2(float64(sizeBytes) / (1024 * 1024))
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func parseIndexRow(line string) (string, PartitionMeta, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return "", PartitionMeta{}, false
	}
	cells := strings.Split(strings.Trim(line, "|"), "|")
	if len(cells) < 3 {
		return "", PartitionMeta{}, false
	}
	id := strings.TrimSpace(cells[0])
	if !partitionIDRe.MatchString(id) {
		return "", PartitionMeta{}, false
	}
	count, err := strconv.Atoi(strings.TrimSpace(cells[1]))
	if err != nil {
		return "", PartitionMeta{}, false
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(cells[2]), 64)
	if err != nil {
		return "", PartitionMeta{}, false
	}
	return id, PartitionMeta{EntryCount: count, SizeMB: size}, true
}
