package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/broker/kafka"
	"github.com/BearBump/CustomsBox/internal/cache/rediscache"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/metrics"
	"github.com/BearBump/CustomsBox/internal/reference"
	"github.com/BearBump/CustomsBox/internal/services/shipping"
	"github.com/BearBump/CustomsBox/internal/storage/memstore"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type customsAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     customsAPIOpts
	svc      *shipping.Service
	consumer *kafka.Consumer
	closers  []func()
}

type repository interface {
	shipping.Repository
	Close()
}

func mustBootstrapCustomsAPI() *customsAPIApp {
	env, err := config.LoadEnv()
	if err != nil {
		panic(err)
	}
	if env.SwaggerPath == "" {
		panic("swaggerPath env var is required")
	}
	logging.Init("customs-api", env.LogLevel, env.AppEnv)

	cfg, err := config.LoadConfig(env.ConfigPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.CustomsBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.CustomsBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "customs-api"
	}
	topic := cfg.Kafka.CustomsUpdatedTopicName
	if topic == "" {
		topic = "customs.updated"
	}
	eventsTopic := cfg.Kafka.ShipmentEventsTopicName
	if eventsTopic == "" {
		eventsTopic = shipping.DefaultEventsTopic
	}
	cacheTTL := time.Duration(cfg.CustomsBox.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	lockTTL := time.Duration(cfg.CustomsBox.LockTTLSeconds) * time.Second

	tables := mustLoadReference(cfg.Reference.RestrictionsPath)

	rc := rediscache.New(cfg.Redis.Addr())
	probes := []func(ctx context.Context) error{rc.Ping}

	var st repository
	switch cfg.Storage.Driver {
	case "memory":
		st = memstore.New()
		slog.Warn("in-memory storage selected, data is lost on restart")
	default:
		pg := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
		st = pg
		probes = append(probes, pg.Ping)
	}

	locker := rediscache.NewLocker(cfg.Redis.Addr(), lockTTL)
	producer := kafka.NewProducer(cfg.Kafka.Brokers())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := shipping.New(st, tables, shipping.Options{
		Locker:      locker,
		Cache:       rc,
		CacheTTL:    cacheTTL,
		Events:      producer,
		EventsTopic: eventsTopic,
		Metrics:     metrics.NewShipping(reg),
	})

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &customsAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: customsAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   env.SwaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
			gatherer:      reg,
			ready:         allReady(probes),
		},
		svc:      svc,
		consumer: consumer,
		closers: []func(){
			func() { _ = producer.Close() },
			func() { _ = locker.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func allReady(probes []func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, p := range probes {
			if err := p(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func mustLoadReference(path string) *reference.Tables {
	if path == "" {
		return reference.Defaults()
	}
	t, err := reference.LoadFile(path)
	if err != nil {
		panic(fmt.Sprintf("reference tables: %v", err))
	}
	slog.Info("reference tables loaded", "path", path, "countries", t.Countries())
	return t
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgcustoms.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgcustoms.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *customsAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for _, c := range a.closers {
		c()
	}
}
