// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docstore persists extracted documents as self-describing JSON
// units and maintains a rebuildable multi-key lookup index over them.
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

const (
	documentsDir = "documents"
	indexFile    = "citation-index.json"
)

// ErrNotFound is returned when no stored document matches a lookup key.
var ErrNotFound = errors.New("document not found")

// Store is a directory-backed document store. All mutations go through the
// store's lock, so one Store instance is the single writer for its data
// directory.
type Store struct {
	dataDir   string
	docsDir   string
	indexPath string

	mu    sync.RWMutex
	index *Index
}

// New opens (creating if needed) a store rooted at dataDir. An existing
// index file is loaded; a missing or unreadable one starts empty and can
// be restored with RebuildIndex.
func New(dataDir string) (*Store, error) {
	docsDir := filepath.Join(dataDir, documentsDir)
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	s := &Store{
		dataDir:   dataDir,
		docsDir:   docsDir,
		indexPath: filepath.Join(dataDir, indexFile),
		index:     NewIndex(),
	}

	data, err := os.ReadFile(s.indexPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run, nothing to load.
	case err != nil:
		return nil, fmt.Errorf("reading index: %w", err)
	default:
		if err := json.Unmarshal(data, s.index); err != nil {
			slog.Warn("index file unreadable, starting empty", "path", s.indexPath, "error", err)
			s.index = NewIndex()
		}
	}
	return s, nil
}

// Save persists one document record and updates the index. The record's ID
// and FilePath are assigned here from the title (or source filename) and
// returned on the saved copy. When the derived ID collides with a
// different document, a numeric suffix is appended; re-saving the same
// source overwrites its existing unit.
func (s *Store) Save(rec types.DocumentRecord) (types.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-extraction replaces the previous unit for the same source. The
	// stale unit goes first so a changed title cannot leave a duplicate
	// behind under the old id.
	if rec.SourcePDF != "" {
		if old, err := s.findBySourceLocked(rec.SourcePDF); err == nil {
			s.index.Remove(old.ID, old.FilePath, old.DOI, old.Title, old.Year)
			if err := os.Remove(old.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return types.DocumentRecord{}, fmt.Errorf("removing stale document %s: %w", old.ID, err)
			}
		}
	}

	rec.ID = s.assignID(rec)
	rec.FilePath = filepath.Join(s.docsDir, rec.ID+".json")

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return types.DocumentRecord{}, fmt.Errorf("encoding document %s: %w", rec.ID, err)
	}
	if err := atomic.WriteFile(rec.FilePath, bytes.NewReader(data)); err != nil {
		return types.DocumentRecord{}, fmt.Errorf("writing document %s: %w", rec.ID, err)
	}

	s.index.Add(rec.ID, rec.FilePath, rec.DOI, rec.Title, rec.Year)
	if err := s.writeIndex(); err != nil {
		return types.DocumentRecord{}, err
	}
	return rec, nil
}

// assignID derives the record's ID, resolving collisions against other
// documents with a numeric suffix. Caller holds the write lock; any prior
// unit for the same source has already been removed.
func (s *Store) assignID(rec types.DocumentRecord) string {
	base := DeriveID(rec.Title, rec.SourcePDF)
	id := base
	for n := 2; ; n++ {
		if _, taken := s.index.IDs[id]; !taken {
			return id
		}
		id = capID(base, fmt.Sprintf("_%d", n))
	}
}

// Get looks a document up by id, then by DOI, then by title words. A
// title-word query matches when every indexable word of the query appears
// in one document's title.
func (s *Store) Get(key string) (types.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if path, ok := s.index.IDs[key]; ok {
		return s.readUnit(path)
	}
	if path, ok := s.index.ByDoi[NormalizeDOI(key)]; ok {
		return s.readUnit(path)
	}
	if path, ok := s.titleMatch(key); ok {
		return s.readUnit(path)
	}
	return types.DocumentRecord{}, fmt.Errorf("lookup %q: %w", key, ErrNotFound)
}

// titleMatch intersects the per-word path lists. Caller holds a lock.
func (s *Store) titleMatch(query string) (string, bool) {
	words := TitleWords(query)
	if len(words) == 0 {
		return "", false
	}
	counts := make(map[string]int)
	for _, w := range words {
		for _, path := range s.index.ByTitleWords[w] {
			counts[path]++
		}
	}
	var matches []string
	for path, n := range counts {
		if n == len(words) {
			matches = append(matches, path)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// FindBySource returns the stored record extracted from the given input
// path, or ErrNotFound. Used to skip re-processing known inputs.
func (s *Store) FindBySource(sourcePDF string) (types.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findBySourceLocked(sourcePDF)
}

// findBySourceLocked scans units for a matching source. Caller holds a lock.
func (s *Store) findBySourceLocked(sourcePDF string) (types.DocumentRecord, error) {
	for _, path := range s.index.IDs {
		rec, err := s.readUnit(path)
		if err != nil {
			continue
		}
		if rec.SourcePDF == sourcePDF {
			return rec, nil
		}
	}
	return types.DocumentRecord{}, fmt.Errorf("source %q: %w", sourcePDF, ErrNotFound)
}

// List returns the ids of all stored documents, sorted.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.index.IDs))
	for id := range s.index.IDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RebuildSummary reports the outcome of an index rebuild.
type RebuildSummary struct {
	Indexed int `json:"indexed" yaml:"indexed"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Total returns the number of units the rebuild examined.
func (r RebuildSummary) Total() int { return r.Indexed + r.Skipped }

// HasFailures reports whether any unit could not be indexed.
func (r RebuildSummary) HasFailures() bool { return r.Skipped > 0 }

// RebuildIndex discards the in-memory index and reconstructs it from the
// document units on disk. Malformed units are skipped and logged, never
// fatal. Rebuilding an unchanged store writes a byte-identical index file.
func (s *Store) RebuildIndex() (RebuildSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return RebuildSummary{}, fmt.Errorf("reading documents directory: %w", err)
	}

	var summary RebuildSummary
	rebuilt := NewIndex()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.docsDir, entry.Name())
		rec, err := s.readUnit(path)
		if err != nil || rec.ID == "" {
			slog.Warn("skipping malformed document unit", "path", path, "error", err)
			summary.Skipped++
			continue
		}
		rebuilt.Add(rec.ID, path, rec.DOI, rec.Title, rec.Year)
		summary.Indexed++
	}

	s.index = rebuilt
	if err := s.writeIndex(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) readUnit(path string) (types.DocumentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.DocumentRecord{}, fmt.Errorf("reading document unit: %w", err)
	}
	var rec types.DocumentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.DocumentRecord{}, fmt.Errorf("decoding document unit %s: %w", path, err)
	}
	return rec, nil
}

// writeIndex persists the index atomically. Caller holds the write lock.
func (s *Store) writeIndex() error {
	data, err := json.Marshal(s.index)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := atomic.WriteFile(s.indexPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}
