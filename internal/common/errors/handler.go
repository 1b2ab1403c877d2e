// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler handles job errors with standardized error handling
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError reports a failed job back to the broker.
// Errors with a BPMN mapping are thrown so the process can route on them;
// anything else fails the job with the retries the error code allows.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logError(job, stdErr, bpmnErr)

	if _, mapped := BPMNErrorMapping[stdErr.Code]; mapped {
		h.throwBPMNError(ctx, client, job, bpmnErr)
		return
	}
	h.failJob(ctx, client, job, bpmnErr, GetRetryCount(stdErr.Code))
}

// Normalize ensures we always have a StandardError
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Message)

	var err error
	if cmdWithVars, varsErr := cmd.VariablesFromString(errorVariablesJSON(bpmnErr)); varsErr == nil {
		_, err = cmdWithVars.Send(ctx)
	} else {
		_, err = cmd.Send(ctx)
	}
	h.logSendError("fail job", job, bpmnErr, err)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	var err error
	if cmdWithVars, varsErr := cmd.VariablesFromString(errorVariablesJSON(bpmnErr)); varsErr == nil {
		_, err = cmdWithVars.Send(ctx)
	} else {
		_, err = cmd.Send(ctx)
	}
	h.logSendError("throw error", job, bpmnErr, err)
}

func errorVariablesJSON(bpmnErr *BPMNError) string {
	varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "{}"
	}
	return string(varsJSON)
}

func (h *ErrorHandler) logSendError(command string, job entities.Job, bpmnErr *BPMNError, err error) {
	if err == nil {
		return
	}
	h.logger.Error("Failed to send "+command+" command", map[string]interface{}{
		"jobKey":        job.Key,
		"bpmnErrorCode": bpmnErr.Code,
		"error":         err.Error(),
	})
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
