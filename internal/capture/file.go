package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/spf13/afero"
)

// maxCreateAttempts bounds how often Save re-scans after losing an ordinal race.
const maxCreateAttempts = 16

// FileSink writes each response to <strategy>_response_<n>.md under dir.
// Existing files are never overwritten.
type FileSink struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewFileSink(fs afero.Fs, dir string) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSink{fs: fs, dir: dir}
}

func (s *FileSink) Name() string { return "file" }

func (s *FileSink) Save(ctx context.Context, resp *CapturedResponse) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := s.nextOrdinal(resp.TemplateID)
		if err != nil {
			return "", err
		}

		path := filepath.Join(s.dir, fileName(resp.TemplateID, n))
		f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		if _, err := f.Write([]byte(resp.Text)); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}

	return "", fmt.Errorf("no free ordinal for %s after %d attempts", resp.TemplateID, maxCreateAttempts)
}

func fileName(strategy string, n int) string {
	return fmt.Sprintf("%s_response_%d.md", strategy, n)
}

// nextOrdinal is one past the highest ordinal on disk for strategy, starting at 1.
func (s *FileSink) nextOrdinal(strategy string) (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", s.dir, err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(strategy) + `_response_(\d+)\.md$`)
	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
