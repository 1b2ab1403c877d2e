package main

import (
	"context"
	"fmt"
	"time"

	"prompt-dispatcher/internal/capture"
	"prompt-dispatcher/internal/common/config"
	"prompt-dispatcher/internal/common/database"
	"prompt-dispatcher/internal/common/logger"
	"prompt-dispatcher/internal/common/observability"
	"prompt-dispatcher/internal/dataset"
	"prompt-dispatcher/internal/dispatch"
	"prompt-dispatcher/internal/generation"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// app holds everything a dispatching command needs.
type app struct {
	cfg        *config.Config
	zapLog     *zap.Logger
	log        logger.Logger
	obs        *observability.Observability
	clients    *database.Clients
	dispatcher *dispatch.Dispatcher
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	return config.Load()
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logger.NewWithOptions(logger.Options{
		Level:      level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// newApp wires config, logging, sink connections, the generator and the dispatcher.
func newApp(ctx context.Context, fs afero.Fs) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := newLogger(cfg.Logging)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": cfg.App.Name,
	})

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
	}

	var obsOpts []observability.Option
	if cfg.Tracing.Exporter == config.TraceExporterLog {
		obsOpts = append(obsOpts, observability.WithSpanExporter(observability.NewLogExporter(log)))
	}
	a.obs = observability.New(cfg.App.Name, obsOpts...)

	err = retryWithBackoff(ctx, func() error {
		var err error
		a.clients, err = database.Open(ctx, cfg)
		return err
	}, 3, time.Second, log, "Capture backend connection")
	if err != nil {
		a.close()
		return nil, err
	}

	sink, err := capture.FromConfig(ctx, cfg, fs, a.clients, log)
	if err != nil {
		a.close()
		return nil, err
	}

	gen, err := generation.New(ctx, cfg.Generation)
	if err != nil {
		a.close()
		return nil, err
	}

	a.dispatcher = dispatch.New(dispatch.Options{
		Resolver:      dataset.NewResolver(fs, cfg.Dataset.BaseDir),
		Generator:     gen,
		Sink:          sink,
		EmbedMode:     cfg.Dataset.EmbedMode,
		Logger:        log,
		Observability: a.obs,
	})

	log.Debug("dispatcher ready", map[string]interface{}{
		"provider":  gen.Name(),
		"sinks":     sink.Name(),
		"embedMode": cfg.Dataset.EmbedMode,
	})

	return a, nil
}

func (a *app) close() {
	if a.clients != nil {
		if err := a.clients.Close(); err != nil {
			a.log.Warn("closing capture backends", map[string]interface{}{"error": err.Error()})
		}
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}
