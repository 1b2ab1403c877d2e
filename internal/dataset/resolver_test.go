package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "prompt-dispatcher/internal/common/errors"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/llm_input_data.txt", []byte("# Dataset Summary\n"), 0o644))
	require.NoError(t, fs.MkdirAll("/data/processed", 0o755))
	return fs
}

func TestResolve(t *testing.T) {
	fs := newFs(t)
	resolver := NewResolver(fs, "/data")

	tests := []struct {
		name     string
		ref      string
		wantPath string
		wantErr  bool
	}{
		{"relative", "llm_input_data.txt", "/data/llm_input_data.txt", false},
		{"absolute", "/data/llm_input_data.txt", "/data/llm_input_data.txt", false},
		{"missing", "nope.txt", "", true},
		{"directory", "processed", "", true},
		{"empty", "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := resolver.Resolve(tt.ref)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrDatasetNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ref, ref.Raw)
			assert.Equal(t, tt.wantPath, ref.Path)
		})
	}
}

func TestResolve_MissingWrapsNotExist(t *testing.T) {
	resolver := NewResolver(afero.NewMemMapFs(), "")

	_, err := resolver.Resolve("llm_input_data.txt")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolve_OsFs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm_input_data.txt"), []byte("x"), 0o644))

	ref, err := NewResolver(nil, dir).Resolve("llm_input_data.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "llm_input_data.txt"), ref.Path)
}

func TestReadAndAttach(t *testing.T) {
	resolver := NewResolver(newFs(t), "/data")
	ref, err := resolver.Resolve("llm_input_data.txt")
	require.NoError(t, err)

	content, err := resolver.Read(ref)
	require.NoError(t, err)
	assert.Equal(t, "# Dataset Summary\n", content)

	text := Attach("Analyze llm_input_data.txt", ref, content)
	assert.True(t, strings.HasPrefix(text, "Analyze llm_input_data.txt\n\n--- BEGIN DATASET llm_input_data.txt ---\n"))
	assert.Contains(t, text, "# Dataset Summary\n--- END DATASET llm_input_data.txt ---\n")
}
