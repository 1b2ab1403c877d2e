package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prompt-dispatcher/internal/common/camunda"
	"prompt-dispatcher/internal/common/config"
	dp "prompt-dispatcher/internal/workers/prompt/dispatch-prompt"
	"prompt-dispatcher/pkg/registry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve the dispatch-prompt task type as a Zeebe job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx)
		},
	}
}

func runWorker(ctx context.Context) error {
	a, err := newApp(ctx, afero.NewOsFs())
	if err != nil {
		return err
	}
	defer a.close()

	if err := config.ValidateWorker(a.cfg); err != nil {
		return err
	}

	a.log.Info("Starting prompt dispatch worker...", nil)

	// --- Init Zeebe Client with retry ---
	client, err := camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(a.cfg.Camunda))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			a.log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}()
	a.log.Info("Zeebe client connected successfully", map[string]interface{}{
		"broker": a.cfg.Camunda.BrokerAddress,
	})

	if !config.IsWorkerEnabled(a.cfg, dp.TaskType) {
		a.log.Info("worker disabled", map[string]interface{}{"taskType": dp.TaskType})
		return nil
	}

	reg, err := registry.Default()
	if err != nil {
		return err
	}

	wcfg := dp.LoadConfig(a.cfg)
	handler, err := dp.NewHandler(wcfg, a.dispatcher, reg, a.log)
	if err != nil {
		return err
	}

	jobWorker := camunda.NewWorker(client.GetClient(), dp.TaskType, wcfg.MaxJobsActive, wcfg.JobTimeout(), handler, a.log)

	var srv *http.Server
	if a.cfg.Metrics.Enabled {
		srv = newOpsServer(a.cfg.Metrics.Address, client)
		go func() {
			a.log.Info("Health/Metrics server listening", map[string]interface{}{"address": srv.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// --- Graceful Shutdown ---
	<-ctx.Done()
	a.log.Info("Shutdown signal received, stopping workers...", nil)

	jobWorker.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	a.log.Info("Worker stopped gracefully", nil)
	return nil
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func newOpsServer(addr string, broker healthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := broker.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "broker unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
