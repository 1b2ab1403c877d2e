package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "prompt-dispatcher/internal/common/errors"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/prompt"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm_input_data.txt"), []byte("# Dataset Summary\n"), 0o644))
	return dir
}

func TestTemplatesCmd(t *testing.T) {
	out, _, err := execute(t, newTemplatesCmd())
	require.NoError(t, err)
	assert.Equal(t, "zero_shot\nfew_shot\nchain_of_thought\n", out)
}

func TestRenderCmd(t *testing.T) {
	dir := writeDataset(t)

	out, _, err := execute(t, newRenderCmd(), "--template", "zero_shot", "--dataset", "llm_input_data.txt", "--base-dir", dir)
	require.NoError(t, err)

	expected, err := prompt.Render(prompt.ZeroShot, "llm_input_data.txt")
	require.NoError(t, err)
	assert.Equal(t, expected.Text, out)
}

func TestRenderCmd_Errors(t *testing.T) {
	dir := writeDataset(t)

	_, _, err := execute(t, newRenderCmd(), "-t", "step_back", "-d", "llm_input_data.txt", "--base-dir", dir)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownTemplate))

	_, _, err = execute(t, newRenderCmd(), "-t", "few_shot", "-d", "missing.txt", "--base-dir", dir)
	assert.True(t, errors.Is(err, apperrors.ErrDatasetNotFound))

	_, _, err = execute(t, newRenderCmd(), "-t", "few_shot")
	assert.Error(t, err)
}

func TestRenderCmd_UsesConfiguredDatasetSettings(t *testing.T) {
	dataDir := writeDataset(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
generation:
  provider: http
  base_url: http://127.0.0.1:1
dataset:
  base_dir: %s
  embed_mode: inline
`, dataDir)), 0o600))
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	out, _, err := execute(t, newRenderCmd(), "-t", "zero_shot", "-d", "llm_input_data.txt")
	require.NoError(t, err)

	expected, err := prompt.Render(prompt.ZeroShot, "llm_input_data.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, expected.Text))
	assert.Contains(t, out, "--- BEGIN DATASET llm_input_data.txt ---")
	assert.Contains(t, out, "# Dataset Summary")

	out, _, err = execute(t, newRenderCmd(), "-t", "zero_shot", "-d", "llm_input_data.txt", "--embed", "reference")
	require.NoError(t, err)
	assert.Equal(t, expected.Text, out)

	_, _, err = execute(t, newRenderCmd(), "-t", "zero_shot", "-d", "llm_input_data.txt", "--embed", "attach")
	assert.ErrorContains(t, err, "not supported")
}

func TestRenderCmd_BrokenExplicitConfig(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	t.Cleanup(func() { cfgFile = "" })

	_, _, err := execute(t, newRenderCmd(), "-t", "zero_shot", "-d", "llm_input_data.txt")
	assert.ErrorContains(t, err, "config load failed")
}

func newGenerationServer(t *testing.T, fail string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if fail != "" && strings.Contains(req.Prompt, fail) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "reply for " + req.Prompt[:10]})
	}))
	t.Cleanup(server.Close)
	return server
}

func useConfig(t *testing.T, generatorURL, dataDir, outDir string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := fmt.Sprintf(`
generation:
  provider: http
  base_url: %s
  timeout: 5000
dataset:
  base_dir: %s
capture:
  sinks: [file]
  output_dir: %s
logging:
  level: error
  output: stderr
`, generatorURL, dataDir, outDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
}

func TestDispatchCmd(t *testing.T) {
	server := newGenerationServer(t, "")
	dataDir := writeDataset(t)
	outDir := filepath.Join(t.TempDir(), "responses")
	useConfig(t, server.URL, dataDir, outDir)

	out, _, err := execute(t, newDispatchCmd(), "--template", "few_shot", "--dataset", "llm_input_data.txt")
	require.NoError(t, err)

	path := filepath.Join(outDir, "few_shot_response_1.md")
	assert.Contains(t, out, path)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(saved), "reply for "))

	_, _, err = execute(t, newDispatchCmd(), "--template", "few_shot", "--dataset", "llm_input_data.txt")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "few_shot_response_2.md"))
}

func TestRunAllCmd_ReportsEachOutcome(t *testing.T) {
	server := newGenerationServer(t, "Step 1.")
	dataDir := writeDataset(t)
	outDir := filepath.Join(t.TempDir(), "responses")
	useConfig(t, server.URL, dataDir, outDir)

	out, errOut, err := execute(t, newRunAllCmd(), "--dataset", "llm_input_data.txt")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGenerationService))
	assert.Contains(t, out, "zero_shot")
	assert.Contains(t, out, "few_shot")
	assert.Contains(t, errOut, "chain_of_thought")

	assert.FileExists(t, filepath.Join(outDir, "zero_shot_response_1.md"))
	assert.FileExists(t, filepath.Join(outDir, "few_shot_response_1.md"))
	assert.NoFileExists(t, filepath.Join(outDir, "chain_of_thought_response_1.md"))
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retryWithBackoff(ctx, func() error {
		calls++
		cancel()
		return errors.New("unreachable")
	}, 5, 0, noopLogger(), "test op")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type stubBroker struct{ err error }

func (s stubBroker) HealthCheck(context.Context) error { return s.err }

func TestOpsServer(t *testing.T) {
	tests := []struct {
		path   string
		broker stubBroker
		want   int
	}{
		{"/health", stubBroker{}, http.StatusOK},
		{"/ready", stubBroker{}, http.StatusOK},
		{"/ready", stubBroker{err: errors.New("down")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			srv := newOpsServer(":0", tt.broker)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func noopLogger() logger.Logger { return logger.NewNoOpLogger() }
