// Package dataset resolves dataset references to readable files. Contents
// are never parsed.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"prompt-dispatcher/internal/common/errors"

	"github.com/spf13/afero"
)

// Embed modes.
const (
	ModeReference = "reference"
	ModeInline    = "inline"
)

// Reference is a dataset reference as supplied by the caller plus where it resolved.
type Reference struct {
	Raw  string
	Path string
}

// Resolver checks dataset references against a filesystem. Relative
// references resolve against BaseDir.
type Resolver struct {
	fs      afero.Fs
	baseDir string
}

func NewResolver(fs afero.Fs, baseDir string) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Resolver{fs: fs, baseDir: baseDir}
}

// Resolve fails with DatasetNotFoundError unless ref names a readable regular file.
func (r *Resolver) Resolve(ref string) (Reference, error) {
	if strings.TrimSpace(ref) == "" {
		return Reference{}, errors.NewDatasetNotFoundError(ref, fmt.Errorf("empty reference"))
	}

	path := ref
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}

	info, err := r.fs.Stat(path)
	if err != nil {
		return Reference{}, errors.NewDatasetNotFoundError(ref, err)
	}
	if !info.Mode().IsRegular() {
		return Reference{}, errors.NewDatasetNotFoundError(ref, fmt.Errorf("%s is not a regular file", path))
	}

	f, err := r.fs.Open(path)
	if err != nil {
		return Reference{}, errors.NewDatasetNotFoundError(ref, err)
	}
	_ = f.Close()

	return Reference{Raw: ref, Path: path}, nil
}

// Read returns the dataset content for inline embedding.
func (r *Resolver) Read(ref Reference) (string, error) {
	data, err := afero.ReadFile(r.fs, ref.Path)
	if err != nil {
		return "", errors.NewDatasetNotFoundError(ref.Raw, err)
	}
	return string(data), nil
}

// Attach appends the dataset content to a rendered prompt as a delimited block.
func Attach(text string, ref Reference, content string) string {
	var b strings.Builder
	b.Grow(len(text) + len(content) + 64)
	b.WriteString(text)
	fmt.Fprintf(&b, "\n\n--- BEGIN DATASET %s ---\n", ref.Raw)
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "--- END DATASET %s ---\n", ref.Raw)
	return b.String()
}
