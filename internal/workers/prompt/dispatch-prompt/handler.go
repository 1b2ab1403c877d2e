// internal/workers/prompt/dispatch-prompt/handler.go
package dispatchprompt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prompt-dispatcher/internal/common/errors"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/common/metrics"
	"prompt-dispatcher/internal/common/validation"
	"prompt-dispatcher/internal/dispatch"
	"prompt-dispatcher/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType       = "dispatch-prompt"
	defaultTimeout = 2 * time.Minute

	// ReportTimeout bounds the complete/fail/throw call sent after the work
	// itself, which runs on its own deadline.
	ReportTimeout = 10 * time.Second
)

// Dispatcher is the part of dispatch.Dispatcher the worker needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, templateID, datasetRef string) (*dispatch.Result, error)
}

type Handler struct {
	config       *Config
	dispatcher   Dispatcher
	inputSchema  map[string]interface{}
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler looks up the task's input schema in the activity registry.
func NewHandler(config *Config, dispatcher Dispatcher, reg *registry.ActivityRegistry, log logger.Logger) (*Handler, error) {
	activity, err := reg.Find(TaskType)
	if err != nil {
		return nil, err
	}
	for _, code := range []errors.ErrorCode{errors.ErrCodeUnknownTemplate, errors.ErrCodeDatasetNotFound, errors.ErrCodeGenerationServiceError} {
		if !activity.Declares(string(code)) {
			return nil, fmt.Errorf("activity %s does not declare error code %s", activity.ID, code)
		}
	}

	if config.Timeout <= 0 {
		config.Timeout = activity.TimeoutDuration()
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})

	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		inputSchema:  activity.InputSchema,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(client, job, err)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(client, job, err)
		return err
	}

	if err := h.completeJob(client, job, output); err != nil {
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

// Execute dispatches one prompt. It is what Handle runs once the job variables are valid.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.dispatcher.Dispatch(ctx, input.TemplateID, input.DatasetRef)
	if err != nil {
		return nil, err
	}

	return &Output{
		ResponseID: result.Response.ID,
		TemplateID: result.Response.TemplateID,
		Response:   result.Response.Text,
		CapturedAt: result.Response.CapturedAt.Format(time.RFC3339Nano),
		Location:   result.Location,
	}, nil
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}

	result, err := validation.ValidateInput(raw, h.inputSchema)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode input: %v", err))
	}
	return &input, nil
}

// reportContext is detached from the job deadline so an expired dispatch is
// still reported to the broker.
func reportContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ReportTimeout)
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()

	ctx, cancel := reportContext()
	defer cancel()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	ctx, cancel := reportContext()
	defer cancel()

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"responseId": output.ResponseID,
		"location":   output.Location,
	})
	return nil
}
