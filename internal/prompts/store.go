package prompts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// OverrideDirName is the per-book directory holding prompt overrides.
const OverrideDirName = "prompts"

// validKeyPattern matches valid prompt keys (alphanumeric with dots, underscores).
var validKeyPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._]*$`)

// FileStore finds prompt overrides on disk.
type FileStore struct {
	globalDir string
}

// NewFileStore creates a store. globalDir may be empty to disable
// home-level overrides.
func NewFileStore(globalDir string) *FileStore {
	return &FileStore{globalDir: globalDir}
}

// Override returns the override for key, checking the book directory first
// and then the global directory. It returns nil when neither has one.
func (s *FileStore) Override(bookDir, key string) (*Override, error) {
	if !validKeyPattern.MatchString(key) {
		return nil, fmt.Errorf("invalid prompt key: %s", key)
	}

	var dirs []string
	if bookDir != "" {
		dirs = append(dirs, filepath.Join(bookDir, OverrideDirName))
	}
	if s != nil && s.globalDir != "" {
		dirs = append(dirs, s.globalDir)
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, key+".tmpl")
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt override %s: %w", path, err)
		}
		return &Override{Key: key, Text: string(data), Path: path}, nil
	}
	return nil, nil
}

// Export writes each prompt's text to dir as <key>.tmpl, for use as a
// starting point for overrides. Existing files are left untouched unless
// overwrite is set.
func Export(dir string, prompts []EmbeddedPrompt, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompt directory: %w", err)
	}
	var written []string
	for _, p := range prompts {
		path := filepath.Join(dir, p.Key+".tmpl")
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, []byte(p.Text), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
