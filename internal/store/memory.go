package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	memoryFilename     = "MEMORY.md"
	compressedFilename = "MEMORY_COMPRESSED.md"
	memoryHeader       = "# MEMORY\n\n"
)

// ErrEmptyContent is returned when a writer submits blank entry content.
var ErrEmptyContent = errors.New("entry content cannot be empty")

var newlineFolder = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// MemoryStore is the append-only log of timestamped entries and the single
// source of current memory. All mutation goes through one mutex, so a
// foreground append can never interleave with an archival rewrite.
type MemoryStore struct {
	dir string
	log *zap.Logger
	mu  sync.Mutex
}

// Stats is a compact snapshot of the live memory file.
type Stats struct {
	EntryCount int
	SizeBytes  int64
	Modified   time.Time
}

func NewMemoryStore(dir string, log *zap.Logger) *MemoryStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryStore{dir: dir, log: log}
}

func (m *MemoryStore) Path() string {
	return filepath.Join(m.dir, memoryFilename)
}

func (m *MemoryStore) compressedPath() string {
	return filepath.Join(m.dir, compressedFilename)
}

// Append writes one entry stamped with the current time and returns the
// timestamp it recorded.
func (m *MemoryStore) Append(category, content string) (string, error) {
	return m.AppendAt(time.Now(), category, content)
}

// AppendAt writes one entry with an explicit timestamp.
func (m *MemoryStore) AppendAt(ts time.Time, category, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	if strings.TrimSpace(category) == "" {
		category = "general"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("create memory dir: %w", err)
	}

	path := m.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(memoryHeader), 0644); err != nil {
			return "", fmt.Errorf("create memory file: %w", err)
		}
	}

	// Entries are one line each; embedded newlines would corrupt the file.
	content = newlineFolder.Replace(strings.TrimSpace(content))

	stamp := ts.Format(TimestampLayout)
	line := FormatLine(Entry{Timestamp: stamp, Category: category, Content: content})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("open memory file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return "", fmt.Errorf("append memory entry: %w", err)
	}
	return stamp, nil
}

// Read returns the raw memory file content, empty when no file exists.
func (m *MemoryStore) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLocked()
}

func (m *MemoryStore) readLocked() (string, error) {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read memory file: %w", err)
	}
	return string(data), nil
}

// Entries parses the memory file into ordered entries (file order, which
// is write order).
func (m *MemoryStore) Entries() ([]Entry, error) {
	content, err := m.Read()
	if err != nil {
		return nil, err
	}
	return ParseEntries(content), nil
}

// Search returns entries whose category or content contains keyword,
// case-insensitively.
func (m *MemoryStore) Search(keyword string) ([]Entry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("search keyword cannot be empty")
	}
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	matches := make([]Entry, 0)
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Content), needle) ||
			strings.Contains(strings.ToLower(e.Category), needle) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// Stats reports entry count, file size and modification time.
func (m *MemoryStore) Stats() (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("stat memory file: %w", err)
	}
	content, err := m.readLocked()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		EntryCount: len(ParseEntries(content)),
		SizeBytes:  info.Size(),
		Modified:   info.ModTime(),
	}, nil
}

// Transact runs a full read-modify-rewrite cycle under the store mutex.
// fn receives the current entries and returns the exact set the store
// should contain afterwards; if fn returns an error the store is left
// untouched. Archival and restore both go through here so no appended
// entry can be lost to a concurrent rewrite.
func (m *MemoryStore) Transact(fn func(entries []Entry) ([]Entry, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, err := m.readLocked()
	if err != nil {
		return err
	}
	keep, err := fn(ParseEntries(content))
	if err != nil {
		return err
	}
	return m.rewriteLocked(keep)
}

func (m *MemoryStore) rewriteLocked(entries []Entry) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	body := memoryHeader + FormatEntries(entries)
	if err := os.WriteFile(m.Path(), []byte(body), 0644); err != nil {
		return fmt.Errorf("rewrite memory file: %w", err)
	}
	m.log.Debug("memory file rewritten", zap.Int("entries", len(entries)))
	return nil
}

// Clear resets the memory file to the bare header.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewriteLocked(nil)
}

// WriteCompressed replaces the compressed read-model. The live memory
// file is never touched by compression.
func (m *MemoryStore) WriteCompressed(content string) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.WriteFile(m.compressedPath(), []byte(content), 0644); err != nil {
		return fmt.Errorf("write compressed memory: %w", err)
	}
	return nil
}

// ReadCompressed returns the compressed read-model, empty when absent.
func (m *MemoryStore) ReadCompressed() (string, error) {
	data, err := os.ReadFile(m.compressedPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read compressed memory: %w", err)
	}
	return string(data), nil
}

// SortByTime orders entries by parsed timestamp, oldest first. Entries
// without a parseable timestamp sort by their raw timestamp text. The
// sort is stable so file order breaks ties.
func SortByTime(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HasTime() && b.HasTime() {
			return a.Time.Before(b.Time)
		}
		return a.Timestamp < b.Timestamp
	})
}
