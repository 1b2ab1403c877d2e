// internal/workers/prompt/dispatch-prompt/handler_test.go
package dispatchprompt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"prompt-dispatcher/internal/capture"
	"prompt-dispatcher/internal/common/config"
	apperrors "prompt-dispatcher/internal/common/errors"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/dataset"
	"prompt-dispatcher/internal/dispatch"
	"prompt-dispatcher/internal/generation"
	"prompt-dispatcher/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

// ==========================
// Test Helper Functions
// ==========================

type stubGenerator struct {
	calls int
	err   error
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(context.Context, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "Metformin shows the most consistent HbA1c reduction.", nil
}

func createTestHandler(t *testing.T, gen *stubGenerator) (*Handler, afero.Fs) {
	t.Helper()
	return newTestHandler(t, gen, 10*time.Second)
}

func newTestHandler(t *testing.T, gen generation.Generator, timeout time.Duration) (*Handler, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/llm_input_data.txt", []byte("# Dataset Summary\n"), 0o644))

	d := dispatch.New(dispatch.Options{
		Resolver:  dataset.NewResolver(fs, "/data"),
		Generator: gen,
		Sink:      capture.NewMulti(logger.NewNoOpLogger(), capture.NewFileSink(fs, "/responses")),
		Logger:    logger.NewTestLogger(t),
	})

	reg, err := registry.Default()
	require.NoError(t, err)

	h, err := NewHandler(&Config{Timeout: timeout}, d, reg, logger.NewTestLogger(t))
	require.NoError(t, err)
	return h, fs
}

// blockingGenerator holds every call until its context ends.
type blockingGenerator struct {
	calls int
}

func (b *blockingGenerator) Name() string { return "blocking" }

func (b *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	b.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

// fakeGateway records the job commands the real zeebe command builders send.
type fakeGateway struct {
	pb.GatewayClient

	mu        sync.Mutex
	completes []*pb.CompleteJobRequest
	fails     []*pb.FailJobRequest
	throws    []*pb.ThrowErrorRequest
	ctxErrs   []error
}

func (g *fakeGateway) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.completes = append(g.completes, in)
	return &pb.CompleteJobResponse{}, ctx.Err()
}

func (g *fakeGateway) FailJob(ctx context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.fails = append(g.fails, in)
	return &pb.FailJobResponse{}, ctx.Err()
}

func (g *fakeGateway) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.throws = append(g.throws, in)
	return &pb.ThrowErrorResponse{}, ctx.Err()
}

type fakeJobClient struct {
	gateway *fakeGateway
}

func neverRetry(context.Context, error) bool { return false }

func (c fakeJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, neverRetry)
}

func (c fakeJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, neverRetry)
}

func (c fakeJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, neverRetry)
}

func newJob(variables string) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                42,
		Type:               TaskType,
		ProcessInstanceKey: 7,
		Variables:          variables,
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	gen := &stubGenerator{}
	h, fs := createTestHandler(t, gen)

	output, err := h.Execute(context.Background(), &Input{TemplateID: "few_shot", DatasetRef: "llm_input_data.txt"})
	require.NoError(t, err)

	assert.Equal(t, "few_shot", output.TemplateID)
	assert.Equal(t, "Metformin shows the most consistent HbA1c reduction.", output.Response)
	assert.Equal(t, "/responses/few_shot_response_1.md", output.Location)
	assert.NotEmpty(t, output.ResponseID)

	capturedAt, err := time.Parse(time.RFC3339Nano, output.CapturedAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), capturedAt, time.Minute)

	saved, err := afero.ReadFile(fs, output.Location)
	require.NoError(t, err)
	assert.Equal(t, output.Response, string(saved))
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     *Input
		genErr    error
		wantErr   error
		wantCalls int
	}{
		{
			name:    "unknown template",
			input:   &Input{TemplateID: "self_consistency", DatasetRef: "llm_input_data.txt"},
			wantErr: apperrors.ErrUnknownTemplate,
		},
		{
			name:    "missing dataset",
			input:   &Input{TemplateID: "zero_shot", DatasetRef: "other.txt"},
			wantErr: apperrors.ErrDatasetNotFound,
		},
		{
			name:      "generation failure",
			input:     &Input{TemplateID: "chain_of_thought", DatasetRef: "llm_input_data.txt"},
			genErr:    errors.New("401 unauthorized"),
			wantErr:   apperrors.ErrGenerationService,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{err: tt.genErr}
			h, _ := createTestHandler(t, gen)

			output, err := h.Execute(context.Background(), tt.input)

			assert.Nil(t, output)
			assert.True(t, errors.Is(err, tt.wantErr))
			assert.Equal(t, tt.wantCalls, gen.calls)

			bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
			assert.False(t, bpmn.Retryable)
			assert.Zero(t, bpmn.Retries)
		})
	}
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h, _ := createTestHandler(t, &stubGenerator{})

	tests := []struct {
		name      string
		variables string
		wantErr   bool
	}{
		{"valid", `{"templateId":"zero_shot","datasetRef":"llm_input_data.txt"}`, false},
		{"extra process variables are allowed", `{"templateId":"few_shot","datasetRef":"a.txt","requestId":"r-1"}`, false},
		{"missing templateId", `{"datasetRef":"a.txt"}`, true},
		{"missing datasetRef", `{"templateId":"few_shot"}`, true},
		{"empty datasetRef", `{"templateId":"few_shot","datasetRef":""}`, true},
		{"wrong type", `{"templateId":1,"datasetRef":"a.txt"}`, true},
		{"not json", `templateId=few_shot`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(tt.variables)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, input.TemplateID)
		})
	}
}

func TestNewHandler_RequiresRegisteredActivity(t *testing.T) {
	_, err := NewHandler(&Config{}, nil, &registry.ActivityRegistry{}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestNewHandler_RequiresDeclaredErrorCodes(t *testing.T) {
	reg := &registry.ActivityRegistry{Activities: []registry.Activity{{
		ID:         TaskType,
		TaskType:   TaskType,
		ErrorCodes: []string{"UNKNOWN_TEMPLATE"},
	}}}
	_, err := NewHandler(&Config{}, nil, reg, logger.NewNoOpLogger())
	assert.ErrorContains(t, err, "DATASET_NOT_FOUND")
}

func TestNewHandler_DefaultsTimeout(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	cfg := &Config{}
	_, err = NewHandler(cfg, nil, reg, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
}

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{
		Camunda: config.CamundaConfig{MaxJobsActive: 5, Timeout: 120000},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 2, Timeout: 30000},
		},
	}

	wc := LoadConfig(cfg)
	assert.Equal(t, 30*time.Second, wc.Timeout)
	assert.Equal(t, 2, wc.MaxJobsActive)
}

// ==========================
// Job Lifecycle Tests
// ==========================

func TestHandler_Handle_CompletesJob(t *testing.T) {
	gen := &stubGenerator{}
	h, fs := createTestHandler(t, gen)
	gateway := &fakeGateway{}

	err := h.Handle(fakeJobClient{gateway}, newJob(`{"templateId":"few_shot","datasetRef":"llm_input_data.txt"}`))
	require.NoError(t, err)

	require.Len(t, gateway.completes, 1)
	assert.Empty(t, gateway.throws)
	assert.Empty(t, gateway.fails)
	assert.Equal(t, int64(42), gateway.completes[0].JobKey)

	var output Output
	require.NoError(t, json.Unmarshal([]byte(gateway.completes[0].Variables), &output))
	assert.Equal(t, "few_shot", output.TemplateID)
	assert.Equal(t, "Metformin shows the most consistent HbA1c reduction.", output.Response)
	assert.Equal(t, "/responses/few_shot_response_1.md", output.Location)
	assert.NotEmpty(t, output.ResponseID)
	assert.NotEmpty(t, output.CapturedAt)

	exists, err := afero.Exists(fs, output.Location)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, gen.calls)
}

func TestHandler_Handle_ThrowsBPMNErrors(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		genErr    error
		wantCode  string
		wantCalls int
	}{
		{
			name:      "unknown template",
			variables: `{"templateId":"tree_of_thought","datasetRef":"llm_input_data.txt"}`,
			wantCode:  "UNKNOWN_TEMPLATE",
		},
		{
			name:      "missing dataset",
			variables: `{"templateId":"zero_shot","datasetRef":"absent.txt"}`,
			wantCode:  "DATASET_NOT_FOUND",
		},
		{
			name:      "generation failure",
			variables: `{"templateId":"chain_of_thought","datasetRef":"llm_input_data.txt"}`,
			genErr:    errors.New("503 overloaded"),
			wantCode:  "GENERATION_SERVICE_ERROR",
			wantCalls: 1,
		},
		{
			name:      "invalid variables",
			variables: `{"templateId":"zero_shot"}`,
			wantCode:  "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{err: tt.genErr}
			h, _ := createTestHandler(t, gen)
			gateway := &fakeGateway{}

			err := h.Handle(fakeJobClient{gateway}, newJob(tt.variables))
			require.Error(t, err)

			assert.Empty(t, gateway.completes)
			assert.Empty(t, gateway.fails)
			require.Len(t, gateway.throws, 1)
			assert.Equal(t, int64(42), gateway.throws[0].JobKey)
			assert.Equal(t, tt.wantCode, gateway.throws[0].ErrorCode)
			assert.Equal(t, tt.wantCalls, gen.calls)

			var vars map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(gateway.throws[0].Variables), &vars))
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, false, vars["retryable"])
		})
	}
}

func TestHandler_Handle_ReportsAfterDeadline(t *testing.T) {
	gen := &blockingGenerator{}
	h, _ := newTestHandler(t, gen, 50*time.Millisecond)
	gateway := &fakeGateway{}

	err := h.Handle(fakeJobClient{gateway}, newJob(`{"templateId":"zero_shot","datasetRef":"llm_input_data.txt"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrGenerationService))
	assert.Equal(t, 1, gen.calls)

	require.Len(t, gateway.throws, 1)
	assert.Equal(t, "GENERATION_SERVICE_ERROR", gateway.throws[0].ErrorCode)
	require.Len(t, gateway.ctxErrs, 1)
	assert.NoError(t, gateway.ctxErrs[0], "outcome must be sent on a live context")
}

func TestConfig_JobTimeoutLeavesRoomToReport(t *testing.T) {
	cfg := &Config{Timeout: 30 * time.Second}
	assert.Equal(t, 30*time.Second+ReportTimeout, cfg.JobTimeout())
}
