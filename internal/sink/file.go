package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jackzampolin/synopsis/internal/book"
)

// FileSink writes into <book-dir>/<DirName>/.
type FileSink struct {
	DirName string
}

// NewFileSink creates a file sink. An empty dirName uses DefaultDirName.
func NewFileSink(dirName string) *FileSink {
	if dirName == "" {
		dirName = DefaultDirName
	}
	return &FileSink{DirName: dirName}
}

// OutputDir returns the directory results for b are written to.
func (s *FileSink) OutputDir(b *book.Book) string {
	return filepath.Join(b.Dir, s.DirName)
}

func (s *FileSink) PersistChapter(ctx context.Context, b *book.Book, r book.ChapterResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(s.OutputDir(b), ChapterFileName(r.Chapter))
	return writeAtomic(path, []byte(FormatChapter(r)))
}

// RetractChapter removes a chapter's output file if it exists.
func (s *FileSink) RetractChapter(_ context.Context, b *book.Book, r book.ChapterResult) error {
	err := os.Remove(filepath.Join(s.OutputDir(b), ChapterFileName(r.Chapter)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileSink) PersistContext(ctx context.Context, b *book.Book, rc book.RollingContext) error {
	data, err := FormatContext(rc)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(s.OutputDir(b), ContextFileName), data)
}

// writeAtomic writes via a temp file and rename so readers never see a
// partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

var (
	_ Sink      = (*FileSink)(nil)
	_ Retractor = (*FileSink)(nil)
)
