package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stellarlinkco/mnemo/internal/store"
)

func mkEntry(t *testing.T, ts, category, content string) store.Entry {
	t.Helper()
	e, ok := store.ParseLine("* [" + ts + "] [" + category + "] " + content)
	if !ok {
		t.Fatalf("bad test entry %q", ts)
	}
	return e
}

func TestWriteAndRead(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	if err := s.Write("2026-01", "* [2026-01-10 12:00:00] [note] hello\n"); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	// Second write appends, never overwrites.
	if err := s.Write("2026-01", "* [2026-01-11 12:00:00] [note] again\n"); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	content, err := s.Read("2026-01")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !strings.Contains(content, "hello") || !strings.Contains(content, "again") {
		t.Errorf("content = %q", content)
	}
}

func TestReadMissingPartition(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	_, err := s.Read("2026-01")
	if !errors.Is(err, ErrPartitionNotFound) {
		t.Errorf("error = %v, want ErrPartitionNotFound", err)
	}
}

func TestInvalidPartitionID(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	for _, id := range []string{"2026", "2026-1", "jan-2026", "../2026-01", ""} {
		if err := s.Write(id, "x"); err == nil {
			t.Errorf("Write(%q) should reject invalid id", id)
		}
	}
}

func TestAppendEntriesAndListPartitions(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	err := s.AppendEntries("2026-02", []store.Entry{
		mkEntry(t, "2026-02-01 09:00:00", "note", "feb one"),
		mkEntry(t, "2026-02-02 09:00:00", "note", "feb two"),
	})
	if err != nil {
		t.Fatalf("AppendEntries error: %v", err)
	}
	if err := s.AppendEntries("2026-01", []store.Entry{
		mkEntry(t, "2026-01-05 09:00:00", "note", "jan"),
	}); err != nil {
		t.Fatalf("AppendEntries error: %v", err)
	}

	ids, err := s.ListPartitions()
	if err != nil {
		t.Fatalf("ListPartitions error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "2026-01" || ids[1] != "2026-02" {
		t.Errorf("ids = %v", ids)
	}

	content, _ := s.Read("2026-02")
	entries := store.ParseEntries(content)
	if len(entries) != 2 {
		t.Errorf("parsed %d entries, want 2", len(entries))
	}
}

func TestUpdateIndexAccumulates(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	s.AppendEntries("2026-01", []store.Entry{mkEntry(t, "2026-01-05 09:00:00", "note", "a")})
	if err := s.UpdateIndex("2026-01", 1); err != nil {
		t.Fatalf("UpdateIndex error: %v", err)
	}
	s.AppendEntries("2026-01", []store.Entry{mkEntry(t, "2026-01-06 09:00:00", "note", "b")})
	if err := s.UpdateIndex("2026-01", 1); err != nil {
		t.Fatalf("UpdateIndex error: %v", err)
	}

	meta, err := s.Metadata("2026-01")
	if err != nil {
		t.Fatalf("Metadata error: %v", err)
	}
	if meta.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", meta.EntryCount)
	}
}

func TestIndexSurvivesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	s.AppendEntries("2026-03", []store.Entry{mkEntry(t, "2026-03-05 09:00:00", "note", "x")})
	s.UpdateIndex("2026-03", 1)

	// Fresh store reads the same index from disk.
	s2 := NewStore(dir, nil)
	idx, err := s2.Index()
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	meta, ok := idx["2026-03"]
	if !ok {
		t.Fatal("index missing 2026-03")
	}
	if meta.EntryCount != 1 {
		t.Errorf("EntryCount = %d, want 1", meta.EntryCount)
	}
}

func TestRebuildIndex(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, nil)
	s.AppendEntries("2026-01", []store.Entry{
		mkEntry(t, "2026-01-05 09:00:00", "note", "a"),
		mkEntry(t, "2026-01-06 09:00:00", "note", "b"),
	})
	s.AppendEntries("2026-02", []store.Entry{mkEntry(t, "2026-02-01 09:00:00", "note", "c")})

	// Index lost.
	os.Remove(filepath.Join(dir, "INDEX.md"))

	idx, err := s.RebuildIndex()
	if err != nil {
		t.Fatalf("RebuildIndex error: %v", err)
	}
	if idx["2026-01"].EntryCount != 2 || idx["2026-02"].EntryCount != 1 {
		t.Errorf("rebuilt index = %+v", idx)
	}
}

func TestSearchKeywordAndRange(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	s.AppendEntries("2026-01", []store.Entry{
		mkEntry(t, "2026-01-05 09:00:00", "deploy", "rolled out 2.1"),
		mkEntry(t, "2026-01-20 09:00:00", "note", "quiet day"),
	})
	s.AppendEntries("2026-02", []store.Entry{
		mkEntry(t, "2026-02-10 09:00:00", "deploy", "rolled back 2.1"),
	})

	matches, err := s.Search("rolled", nil, nil)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local)
	matches, err = s.Search("rolled", &start, nil)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matches) != 1 || matches[0].Content != "rolled back 2.1" {
		t.Errorf("range matches = %+v", matches)
	}

	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.Local)
	matches, err = s.Search("", nil, &end)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("empty-keyword range matches = %d, want 2", len(matches))
	}
}

func TestStats(t *testing.T) {
	s := NewStore(t.TempDir(), nil)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalPartitions != 0 {
		t.Errorf("empty stats = %+v", stats)
	}

	s.AppendEntries("2026-01", []store.Entry{mkEntry(t, "2026-01-05 09:00:00", "note", "a")})
	s.UpdateIndex("2026-01", 1)
	s.AppendEntries("2026-03", []store.Entry{mkEntry(t, "2026-03-05 09:00:00", "note", "b")})
	s.UpdateIndex("2026-03", 1)

	stats, err = s.Stats()
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalPartitions != 2 || stats.TotalEntries != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Oldest != "2026-01" || stats.Newest != "2026-03" {
		t.Errorf("oldest/newest = %s/%s", stats.Oldest, stats.Newest)
	}
}

func TestTotalSizeBytes(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	s.AppendEntries("2026-01", []store.Entry{mkEntry(t, "2026-01-05 09:00:00", "note", "abc")})

	size, err := s.TotalSizeBytes()
	if err != nil {
		t.Fatalf("TotalSizeBytes error: %v", err)
	}
	if size == 0 {
		t.Error("size should be non-zero")
	}
}
