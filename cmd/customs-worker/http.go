package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/services/clearance"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	registry *prometheus.Registry

	worker *clearance.Worker
	cfg    *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newWorkerRouter(opts workerHTTPOpts) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.worker == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "worker not wired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.worker == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.worker.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config not wired"})
			return
		}
		// только рабочие настройки воркера, без секретов брокера
		c := opts.cfg.CustomsBox
		writeJSON(w, http.StatusOK, map[string]any{
			"pollIntervalSeconds":           c.WorkerPollIntervalSeconds,
			"batchSize":                     c.WorkerBatchSize,
			"concurrency":                   c.WorkerConcurrency,
			"leaseSeconds":                  c.WorkerLeaseSeconds,
			"publishAttempts":               c.WorkerPublishAttempts,
			"rateLimitPerMinute":            c.WorkerRateLimitPerMinute,
			"countryRateLimits":             c.WorkerCountryRateLimits,
			"nextCheckInProcessMinSeconds":  c.WorkerNextCheckInProcessMinSeconds,
			"nextCheckInProcessMaxSeconds":  c.WorkerNextCheckInProcessMaxSeconds,
			"nextCheckInfoRequestedSeconds": c.WorkerNextCheckInfoRequestedSeconds,
			"nextCheckDetainedSeconds":      c.WorkerNextCheckDetainedSeconds,
			"nextCheckUnknownSeconds":       c.WorkerNextCheckUnknownSeconds,
			"brokerMode":                    c.BrokerMode,
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.worker == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "worker not wired"})
			return
		}
		opts.worker.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	if opts.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.registry, promhttp.HandlerOpts{}))
	}

	// no-cache + cachebuster, чтобы UI подхватывал свежий swagger
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return r
}
