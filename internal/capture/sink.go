package capture

import (
	"context"
	"fmt"
	"strings"

	"prompt-dispatcher/internal/common/errors"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/common/metrics"
)

// Sink stores a captured response and reports where it went.
type Sink interface {
	Save(ctx context.Context, resp *CapturedResponse) (string, error)
	Name() string
}

// Multi writes to each sink in order and stops at the first failure.
type Multi struct {
	sinks  []Sink
	logger logger.Logger
}

func NewMulti(log logger.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, logger: log}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Save returns the locations joined by ", ". Failures become CapturePersistError.
func (m *Multi) Save(ctx context.Context, resp *CapturedResponse) (string, error) {
	if len(m.sinks) == 0 {
		return "", errors.NewCapturePersistError("none", fmt.Errorf("no capture sinks configured"))
	}

	locations := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		loc, err := s.Save(ctx, resp)
		if err != nil {
			m.logger.Error("Capture failed", map[string]interface{}{
				"sink":       s.Name(),
				"responseId": resp.ID,
				"error":      err.Error(),
			})
			return "", errors.NewCapturePersistError(s.Name(), err)
		}

		metrics.CapturedResponses.WithLabelValues(s.Name()).Inc()
		m.logger.Debug("Response captured", map[string]interface{}{
			"sink":       s.Name(),
			"responseId": resp.ID,
			"location":   loc,
		})
		locations = append(locations, loc)
	}

	return strings.Join(locations, ", "), nil
}
