// Package clearance polls the customs broker for shipments under clearance and publishes each
// outcome as a customs.updated message. It never writes shipments itself; the API applies them.
package clearance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/logging"
	"github.com/BearBump/CustomsBox/internal/metrics"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type Repository interface {
	ClaimDueClearances(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ClearanceCheck, error)
}

type Producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type RateLimiter interface {
	AllowCustomsCheck(ctx context.Context, country string, at time.Time, limit int64) (bool, int64, error)
}

type Settings struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	Lease        time.Duration

	// RateLimitPerMinute caps broker calls per destination country; CountryRateLimits overrides it.
	RateLimitPerMinute int64
	CountryRateLimits  map[string]int64

	PublishAttempts int
}

func DefaultSettings() Settings {
	return Settings{
		PollInterval:       2 * time.Second,
		BatchSize:          100,
		Concurrency:        10,
		Lease:              120 * time.Second,
		RateLimitPerMinute: 120,
		PublishAttempts:    10,
	}
}

type Worker struct {
	repo     Repository
	broker   customs.Client
	producer Producer
	rl       RateLimiter
	metrics  *metrics.Clearance

	topic    string
	planner  *Planner
	settings Settings
	now      func() time.Time

	triggerCh chan struct{}

	startedAt           time.Time
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, broker customs.Client, producer Producer, rl RateLimiter, topic string) *Worker {
	return &Worker{
		repo:      repo,
		broker:    broker,
		producer:  producer,
		rl:        rl,
		topic:     topic,
		planner:   NewPlanner(DefaultPlannerConfig(), nil),
		settings:  DefaultSettings(),
		now:       func() time.Time { return time.Now().UTC() },
		triggerCh: make(chan struct{}, 1),
		startedAt: time.Now().UTC(),
	}
}

// WithSettings overrides only the positive fields of s.
func (w *Worker) WithSettings(s Settings) *Worker {
	if s.PollInterval > 0 {
		w.settings.PollInterval = s.PollInterval
	}
	if s.BatchSize > 0 {
		w.settings.BatchSize = s.BatchSize
	}
	if s.Concurrency > 0 {
		w.settings.Concurrency = s.Concurrency
	}
	if s.Lease > 0 {
		w.settings.Lease = s.Lease
	}
	if s.RateLimitPerMinute > 0 {
		w.settings.RateLimitPerMinute = s.RateLimitPerMinute
	}
	if len(s.CountryRateLimits) > 0 {
		w.settings.CountryRateLimits = make(map[string]int64, len(s.CountryRateLimits))
		for c, n := range s.CountryRateLimits {
			w.settings.CountryRateLimits[strings.ToUpper(c)] = n
		}
	}
	if s.PublishAttempts > 0 {
		w.settings.PublishAttempts = s.PublishAttempts
	}
	return w
}

func (w *Worker) WithPlanner(p *Planner) *Worker {
	if p != nil {
		w.planner = p
	}
	return w
}

func (w *Worker) WithMetrics(m *metrics.Clearance) *Worker {
	w.metrics = m
	return w
}

func (w *Worker) WithClock(now func() time.Time) *Worker {
	if now != nil {
		w.now = now
	}
	return w
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(w.now().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"started_at"`
	LastCycleAt    *time.Time `json:"last_cycle_at,omitempty"`
	LastTriggerAt  *time.Time `json:"last_trigger_at,omitempty"`
	TotalClaimed   int64      `json:"total_claimed"`
	TotalProcessed int64      `json:"total_processed"`
	TotalErrors    int64      `json:"total_errors"`
	InFlight       int64      `json:"in_flight"`
	LastError      string     `json:"last_error,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:      w.startedAt,
		TotalClaimed:   w.totalClaimed.Load(),
		TotalProcessed: w.totalProcessed.Load(),
		TotalErrors:    w.totalErrors.Load(),
		InFlight:       w.inFlight.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) setLastError(err error) {
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.settings.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	log := logging.FromContext(ctx)
	now := w.now()
	w.lastCycleUnixNano.Store(now.UnixNano())

	items, err := w.repo.ClaimDueClearances(ctx, now, w.settings.BatchSize, w.settings.Lease)
	if err != nil {
		log.Error("claim due clearances", slog.Any("error", err))
		w.setLastError(err)
		return
	}
	w.totalClaimed.Add(int64(len(items)))

	var g errgroup.Group
	g.SetLimit(w.settings.Concurrency)
	for _, c := range items {
		c := c
		g.Go(func() error {
			w.inFlight.Add(1)
			done := w.metrics.TrackInFlight()
			defer func() {
				done()
				w.inFlight.Add(-1)
				w.totalProcessed.Add(1)
			}()
			if err := w.processOne(ctx, c); err != nil {
				w.totalErrors.Add(1)
				w.setLastError(err)
				log.Error("process clearance", slog.String("shipment_id", c.ShipmentID.String()), slog.Any("error", err))
			}
			// одна неудача не должна останавливать остальную пачку
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) limitFor(country string) int64 {
	if n, ok := w.settings.CountryRateLimits[country]; ok && n > 0 {
		return n
	}
	return w.settings.RateLimitPerMinute
}

// allow reports whether the broker may be called for this destination in the current minute.
func (w *Worker) allow(ctx context.Context, country string, now time.Time) (bool, error) {
	if w.rl == nil || w.settings.RateLimitPerMinute <= 0 {
		return true, nil
	}
	allowed, n, err := w.rl.AllowCustomsCheck(ctx, country, now, w.limitFor(country))
	if err != nil {
		return false, errors.Wrap(err, "rate limiter")
	}
	if !allowed {
		logging.FromContext(ctx).Warn("customs broker rate limit reached", "country", country, "count", n)
	}
	return allowed, nil
}

// processOne checks one shipment with the broker and publishes the outcome. A rate-limited
// check publishes nothing: the claim lease expires and the shipment is picked up again.
func (w *Worker) processOne(ctx context.Context, c *models.ClearanceCheck) error {
	now := w.now()

	ok, err := w.allow(ctx, c.DestinationCountry, now)
	if err != nil {
		return err
	}
	if !ok {
		w.metrics.IncRateLimited()
		return nil
	}

	start := time.Now()
	res, err := w.broker.GetClearanceStatus(ctx, customs.ClearanceQuery{
		TrackingNumber:     c.TrackingNumber,
		DestinationCountry: c.DestinationCountry,
		DeclaredValue:      c.DeclaredValue,
	})
	w.metrics.ObserveBroker(start)

	if errors.Is(err, customs.ErrRateLimited) {
		w.metrics.IncRateLimited()
		return nil
	}

	msg := messages.CustomsUpdated{
		ShipmentID:     c.ShipmentID,
		TrackingNumber: c.TrackingNumber,
		CheckedAt:      now,
	}
	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(w.planner.BackoffDelay(c.CheckFailCount + 1))
		w.metrics.IncCheck("error")
	} else {
		msg.Status = string(res.Status)
		msg.StatusRaw = res.StatusRaw
		msg.Reason = res.Reason
		if res.Fees != nil {
			msg.Fees = &messages.Amount{Amount: res.Fees.Amount, Currency: string(res.Fees.Currency)}
		}
		status := res.Status
		if status == "" {
			status = c.CustomsStatus
		}
		msg.NextCheckAt = now.Add(w.planner.NextCheckDelay(status))
		w.metrics.IncCheck(outcome(res.Status))
	}

	if err := w.publish(ctx, c.ShipmentID.String(), msg); err != nil {
		w.metrics.IncPublishFailure()
		return err
	}
	return nil
}

func outcome(st models.CustomsStatus) string {
	if st == "" {
		return "unchanged"
	}
	return string(st)
}

// publish retries: Kafka may not be ready right after the stack starts.
func (w *Worker) publish(ctx context.Context, key string, msg messages.CustomsUpdated) error {
	var pubErr error
	for i := 0; i < w.settings.PublishAttempts; i++ {
		if pubErr = w.producer.PublishJSON(ctx, w.topic, key, msg); pubErr == nil {
			return nil
		}
		if i == w.settings.PublishAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return errors.Wrap(pubErr, "publish customs update")
}
