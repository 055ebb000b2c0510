package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	shippingapi "github.com/BearBump/CustomsBox/internal/api/shipping_api"
	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
)

type customsAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	gatherer prometheus.Gatherer
	// ready is probed by /readyz; nil means always ready.
	ready func(ctx context.Context) error

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, m messages.CustomsUpdated) error) error
}

type customsService interface {
	shippingapi.Service
	ApplyCustomsUpdate(ctx context.Context, msg messages.CustomsUpdated) error
}

func runCustomsAPI(ctx context.Context, opts customsAPIOpts, svc customsService, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveHTTP(gctx, lis, newHTTPHandler(opts, svc))
	})
	g.Go(func() error {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		consumeCustomsUpdates(gctx, consumer, svc, time.Second)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func newHTTPHandler(opts customsAPIOpts, svc shippingapi.Service) http.Handler {
	r := shippingapi.NewRouter(shippingapi.New(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.ready != nil {
			if err := opts.ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	gatherer := opts.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, opts.swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	return r
}

func serveHTTP(ctx context.Context, lis net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// consumeCustomsUpdates keeps the consumer alive until ctx is done. A failed handler stops
// Consume before the commit, so restarting redelivers the same message.
func consumeCustomsUpdates(ctx context.Context, consumer kafkaConsumer, svc customsService, restartDelay time.Duration) {
	for {
		err := consumer.Consume(ctx, func(mctx context.Context, m messages.CustomsUpdated) error {
			return handleCustomsUpdate(mctx, svc, m)
		})
		if ctx.Err() != nil {
			return
		}
		slog.Error("kafka consumer stopped, restarting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

// handleCustomsUpdate skips updates that can never succeed; only infrastructure errors are
// returned for redelivery.
func handleCustomsUpdate(ctx context.Context, svc customsService, m messages.CustomsUpdated) error {
	err := svc.ApplyCustomsUpdate(ctx, m)
	if errors.Is(err, models.ErrValidation) {
		logging.FromContext(ctx).Warn("invalid customs update skipped", "error", err)
		return nil
	}
	return err
}
