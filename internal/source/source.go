// Package source loads a book folder: plain-text chapter files plus a
// .metadata JSON file.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackzampolin/synopsis/internal/book"
)

var (
	// ErrNoChapters is returned when a book folder holds no chapter files.
	ErrNoChapters = errors.New("no chapter files found")

	// ErrMissingMetadata is returned when a book folder has no .metadata file.
	ErrMissingMetadata = errors.New("no metadata file found")
)

const (
	ChapterExt  = ".txt"
	MetadataExt = ".metadata"
)

// Loader reads book folders.
type Loader struct {
	Classifier Classifier
	// Category, when valid, overrides classification.
	Category book.Category
	Logger   *slog.Logger
}

// Load reads the book at dir. A missing metadata file is not fatal: the
// book is loaded with "Unknown" title and author and a warning is logged.
func (l *Loader) Load(dir string) (*book.Book, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve book directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("book directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("book directory: %s is not a directory", abs)
	}

	meta, err := LoadMetadata(abs)
	if errors.Is(err, ErrMissingMetadata) {
		logger.Warn("book has no metadata, using defaults", "dir", abs)
	} else if err != nil {
		return nil, err
	}
	meta = meta.Normalized()

	chapters, err := LoadChapters(abs)
	if err != nil {
		return nil, err
	}

	category := l.Category
	if !category.Valid() {
		category = l.Classifier.Classify(meta)
	}

	return &book.Book{
		ID:       filepath.Base(abs),
		Dir:      abs,
		Metadata: meta,
		Category: category,
		Chapters: chapters,
	}, nil
}

// LoadMetadata reads the first *.metadata file in dir.
func LoadMetadata(dir string) (book.Metadata, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+MetadataExt))
	if err != nil {
		return book.Metadata{}, err
	}
	if len(matches) == 0 {
		return book.Metadata{}, fmt.Errorf("%w in %s", ErrMissingMetadata, dir)
	}
	sort.Strings(matches)

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return book.Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta book.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return book.Metadata{}, fmt.Errorf("parse metadata %s: %w", filepath.Base(matches[0]), err)
	}
	return meta, nil
}

// LoadChapters reads every non-hidden *.txt file in dir, sorted by file
// name. The first line of a file is its title; the rest is the body.
func LoadChapters(dir string) ([]book.Chapter, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read book directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ChapterExt {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChapters, dir)
	}
	sort.Strings(names)

	chapters := make([]book.Chapter, 0, len(names))
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read chapter %s: %w", name, err)
		}
		stem := strings.TrimSuffix(name, ChapterExt)
		title, body := splitTitle(string(data), stem)
		chapters = append(chapters, book.Chapter{
			ID:      stem,
			Ordinal: i + 1,
			Title:   title,
			Body:    body,
		})
	}
	return chapters, nil
}

// splitTitle separates the first line from the rest. A one-line file keeps
// its whole text as the body.
func splitTitle(text, fallback string) (string, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fallback, ""
	}
	first, rest, found := strings.Cut(trimmed, "\n")
	title := strings.TrimSpace(first)
	if title == "" {
		title = fallback
	}
	if !found {
		return title, text
	}
	return title, strings.TrimSpace(rest)
}

// IsBookDir reports whether dir looks like a book folder.
func IsBookDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case MetadataExt, ChapterExt:
			return true
		}
	}
	return false
}

// Discover returns the book folders directly under libraryDir, sorted.
func Discover(libraryDir string) ([]string, error) {
	entries, err := os.ReadDir(libraryDir)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(libraryDir, e.Name())
		if IsBookDir(dir) {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
