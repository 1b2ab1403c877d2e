package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasDispatchPrompt(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	activity, err := reg.Find("dispatch-prompt")
	require.NoError(t, err)
	assert.Equal(t, 0, activity.Retries)
	assert.Contains(t, activity.ErrorCodes, "UNKNOWN_TEMPLATE")
	assert.Contains(t, activity.InputSchema["required"], "datasetRef")
}

func TestFind_Unregistered(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	_, err = reg.Find("send-email")
	assert.Error(t, err)
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","activities":[{"id":"a","taskType":"a"}]}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)
	assert.Len(t, reg.Activities, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = LoadRegistry(path)
	assert.Error(t, err)
}

func TestActivity_TimeoutAndErrorCodes(t *testing.T) {
	tests := []struct {
		timeout string
		want    time.Duration
	}{
		{"120s", 2 * time.Minute},
		{"5m", 5 * time.Minute},
		{"", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		a := Activity{Timeout: tt.timeout}
		assert.Equal(t, tt.want, a.TimeoutDuration(), tt.timeout)
	}

	a := Activity{ErrorCodes: []string{"UNKNOWN_TEMPLATE"}}
	assert.True(t, a.Declares("UNKNOWN_TEMPLATE"))
	assert.False(t, a.Declares("TIMEOUT"))
}
