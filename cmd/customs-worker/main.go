package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		panic(err)
	}
	logging.Init("customs-worker", env.LogLevel, env.AppEnv)

	cfg, err := config.LoadConfig(env.ConfigPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunCustomsWorker(ctx, cfg, defaultWorkerFactories(), &workerHTTPOpts{
		httpAddr:    cfg.CustomsBox.WorkerHTTPAddr,
		swaggerPath: env.SwaggerPath,
		registry:    reg,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("customs-worker stopped", "error", err)
		panic(err)
	}
}
