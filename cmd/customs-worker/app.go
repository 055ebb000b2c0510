package main

import (
	"context"
	"time"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/broker/kafka"
	"github.com/BearBump/CustomsBox/internal/cache/rediscache"
	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/integrations/customs/brokerhttp"
	"github.com/BearBump/CustomsBox/internal/integrations/customs/fake"
	"github.com/BearBump/CustomsBox/internal/metrics"
	"github.com/BearBump/CustomsBox/internal/services/clearance"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo clearance.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) (clearance.Producer, func())
	newRateLimiter   func(cfg *config.Config) (clearance.RateLimiter, func())
	newCustomsClient func(cfg *config.Config) customs.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (clearance.Repository, func(), error) {
			if cfg.Storage.Driver == "memory" {
				return nil, nil, errors.New("customs-worker needs shared storage, memory driver is API-only")
			}
			st, err := pgcustoms.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (clearance.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newRateLimiter: func(cfg *config.Config) (clearance.RateLimiter, func()) {
			rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
			return rl, func() { _ = rl.Close() }
		},
		newCustomsClient: func(cfg *config.Config) customs.Client {
			// без адреса брокера работаем с локальным fake
			if cfg.CustomsBox.BrokerMode == "http" && cfg.CustomsBox.BrokerBaseURL != "" {
				return brokerhttp.New(cfg.CustomsBox.BrokerBaseURL, cfg.CustomsBox.BrokerAPIKey)
			}
			return fake.New()
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// workerSettings maps config onto clearance.Settings; zero values keep the worker defaults.
func workerSettings(cfg *config.Config) clearance.Settings {
	c := cfg.CustomsBox
	return clearance.Settings{
		PollInterval:       seconds(c.WorkerPollIntervalSeconds),
		BatchSize:          c.WorkerBatchSize,
		Concurrency:        c.WorkerConcurrency,
		Lease:              seconds(c.WorkerLeaseSeconds),
		RateLimitPerMinute: int64(c.WorkerRateLimitPerMinute),
		CountryRateLimits:  c.WorkerCountryRateLimits,
		PublishAttempts:    c.WorkerPublishAttempts,
	}
}

func plannerConfig(cfg *config.Config) clearance.PlannerConfig {
	c := cfg.CustomsBox
	return clearance.PlannerConfig{
		InProcessMinDelay:  seconds(c.WorkerNextCheckInProcessMinSeconds),
		InProcessMaxDelay:  seconds(c.WorkerNextCheckInProcessMaxSeconds),
		InfoRequestedDelay: seconds(c.WorkerNextCheckInfoRequestedSeconds),
		DetainedDelay:      seconds(c.WorkerNextCheckDetainedSeconds),
		UnknownDelay:       seconds(c.WorkerNextCheckUnknownSeconds),
		Backoff1:           seconds(c.WorkerBackoff1Seconds),
		Backoff2:           seconds(c.WorkerBackoff2Seconds),
		Backoff3:           seconds(c.WorkerBackoff3Seconds),
		Backoff4:           seconds(c.WorkerBackoff4Seconds),
	}
}

// RunCustomsWorker runs the clearance worker until ctx is done. With ops set, the operational
// HTTP server runs next to it and a failure of either stops both.
func RunCustomsWorker(ctx context.Context, cfg *config.Config, f workerFactories, ops *workerHTTPOpts) error {
	topic := cfg.Kafka.CustomsUpdatedTopicName
	if topic == "" {
		topic = "customs.updated"
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}
	rl, closeRL := f.newRateLimiter(cfg)
	if closeRL != nil {
		defer closeRL()
	}

	w := clearance.New(repo, f.newCustomsClient(cfg), producer, rl, topic).
		WithSettings(workerSettings(cfg)).
		WithPlanner(clearance.NewPlanner(plannerConfig(cfg), nil))

	if ops == nil {
		return w.Run(ctx)
	}
	if ops.registry != nil {
		w = w.WithMetrics(metrics.NewClearance(ops.registry))
	}
	ops.worker = w
	ops.cfg = cfg

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return runWorkerHTTPServer(gctx, *ops) })
	return g.Wait()
}
