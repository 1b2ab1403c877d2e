// Package dispatch renders a prompt, sends it to the generation service and
// captures the reply. Each invocation is independent and makes one outbound call.
package dispatch

import (
	"context"
	stderrors "errors"
	"time"

	"prompt-dispatcher/internal/capture"
	"prompt-dispatcher/internal/common/errors"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/common/metrics"
	"prompt-dispatcher/internal/common/observability"
	"prompt-dispatcher/internal/dataset"
	"prompt-dispatcher/internal/generation"
	"prompt-dispatcher/internal/prompt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Dispatcher wires the renderer to a generator and a capture sink.
type Dispatcher struct {
	resolver  *dataset.Resolver
	generator generation.Generator
	sink      capture.Sink
	embedMode string
	logger    logger.Logger
	obs       *observability.Observability
}

type Options struct {
	Resolver  *dataset.Resolver
	Generator generation.Generator
	Sink      capture.Sink
	// EmbedMode is dataset.ModeReference (default) or dataset.ModeInline.
	EmbedMode     string
	Logger        logger.Logger
	Observability *observability.Observability
}

func New(opts Options) *Dispatcher {
	if opts.EmbedMode == "" {
		opts.EmbedMode = dataset.ModeReference
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Dispatcher{
		resolver:  opts.Resolver,
		generator: opts.Generator,
		sink:      opts.Sink,
		embedMode: opts.EmbedMode,
		logger:    opts.Logger,
		obs:       opts.Observability,
	}
}

// Result is one captured response and where it was stored.
type Result struct {
	Response *capture.CapturedResponse
	Location string
}

// Outcome is one entry of DispatchAll, in input order.
type Outcome struct {
	TemplateID string
	Result     *Result
	Err        error
}

// Render validates the identifier, then the dataset reference, and composes
// the prompt. In inline mode the dataset content is attached after it.
func (d *Dispatcher) Render(templateID, datasetRef string) (*prompt.Rendered, error) {
	id, err := prompt.ParseTemplateID(templateID)
	if err != nil {
		return nil, err
	}

	ref, err := d.resolver.Resolve(datasetRef)
	if err != nil {
		return nil, err
	}

	rendered, err := prompt.Render(id, ref.Raw)
	if err != nil {
		return nil, err
	}

	if d.embedMode == dataset.ModeInline {
		content, err := d.resolver.Read(ref)
		if err != nil {
			return nil, err
		}
		rendered.Text = dataset.Attach(rendered.Text, ref, content)
	}

	return rendered, nil
}

// Dispatch renders, generates and captures once. Nothing is retried.
func (d *Dispatcher) Dispatch(ctx context.Context, templateID, datasetRef string) (result *Result, err error) {
	start := time.Now()
	label := templateLabel(templateID)
	ctx, span := d.obs.StartSpan(ctx, "prompt.dispatch",
		attribute.String("template_id", label),
		attribute.String("dataset_ref", datasetRef),
	)

	log := d.logger.With(map[string]interface{}{
		"templateId": templateID,
		"datasetRef": datasetRef,
	})

	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusFailure
			log.Error("Dispatch failed", map[string]interface{}{
				"errorCode": string(errors.CodeOf(err)),
				"error":     err.Error(),
			})
		}
		elapsed := time.Since(start)
		metrics.RecordDispatch(label, status, elapsed.Seconds())
		d.obs.RecordDispatch(ctx, label, status, elapsed)
		observability.EndSpan(span, err)
	}()

	rendered, err := d.Render(templateID, datasetRef)
	if err != nil {
		return nil, err
	}

	log.Info("Dispatching prompt", map[string]interface{}{
		"provider":    d.generator.Name(),
		"promptBytes": len(rendered.Text),
	})

	text, err := d.generator.Generate(ctx, rendered.Text)
	if err != nil {
		if !stderrors.Is(err, errors.ErrGenerationService) {
			err = errors.NewGenerationServiceError(d.generator.Name(), err)
		}
		return nil, err
	}

	resp := capture.NewCapturedResponse(string(rendered.TemplateID), rendered.DatasetReference, text, d.generator.Name())

	location, err := d.sink.Save(ctx, resp)
	if err != nil {
		if !stderrors.Is(err, errors.ErrCapturePersist) {
			err = errors.NewCapturePersistError(d.sink.Name(), err)
		}
		return nil, err
	}

	log.Info("Response captured", map[string]interface{}{
		"responseId":    resp.ID,
		"location":      location,
		"responseBytes": len(resp.Text),
	})

	return &Result{Response: resp, Location: location}, nil
}

// templateLabel is the metric and span value for templateID.
func templateLabel(templateID string) string {
	id, err := prompt.ParseTemplateID(templateID)
	if err != nil {
		return metrics.TemplateLabelUnknown
	}
	return string(id)
}

// DispatchAll runs one dispatch per template in parallel against the same
// dataset. A failure does not cancel the others. Outcomes keep input order and
// the returned error joins every failure.
func (d *Dispatcher) DispatchAll(ctx context.Context, templateIDs []string, datasetRef string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(templateIDs))

	var g errgroup.Group
	for i, id := range templateIDs {
		i, id := i, id
		g.Go(func() error {
			res, err := d.Dispatch(ctx, id, datasetRef)
			outcomes[i] = Outcome{TemplateID: id, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return outcomes, stderrors.Join(errs...)
}
