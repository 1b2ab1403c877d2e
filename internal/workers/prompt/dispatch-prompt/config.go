// internal/workers/prompt/dispatch-prompt/config.go
package dispatchprompt

import (
	"time"

	"prompt-dispatcher/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	MaxJobsActive int
}

// LoadConfig reads the worker section for TaskType, falling back to the camunda defaults.
func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:       config.GetDuration(wc.Timeout),
		MaxJobsActive: wc.MaxJobsActive,
	}
}

// JobTimeout is the activation timeout to register with the broker. It leaves
// room to report the outcome after Timeout has run out.
func (c *Config) JobTimeout() time.Duration {
	return c.Timeout + ReportTimeout
}
