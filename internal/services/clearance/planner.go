package clearance

import (
	"math/rand"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	InProcessMinDelay time.Duration // default: 30 minutes
	InProcessMaxDelay time.Duration // default: 60 minutes

	InfoRequestedDelay time.Duration // default: 4 hours
	DetainedDelay      time.Duration // default: 6 hours
	UnknownDelay       time.Duration // default: 60 minutes

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		InProcessMinDelay: 30 * time.Minute,
		InProcessMaxDelay: 60 * time.Minute,

		InfoRequestedDelay: 4 * time.Hour,
		DetainedDelay:      6 * time.Hour,
		UnknownDelay:       60 * time.Minute,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

// Planner decides when a shipment should be checked with the broker again.
type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	orDefault := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	orDefault(&cfg.InProcessMinDelay, def.InProcessMinDelay)
	orDefault(&cfg.InProcessMaxDelay, def.InProcessMaxDelay)
	if cfg.InProcessMaxDelay < cfg.InProcessMinDelay {
		cfg.InProcessMaxDelay = cfg.InProcessMinDelay
	}
	orDefault(&cfg.InfoRequestedDelay, def.InfoRequestedDelay)
	orDefault(&cfg.DetainedDelay, def.DetainedDelay)
	orDefault(&cfg.UnknownDelay, def.UnknownDelay)
	orDefault(&cfg.Backoff1, def.Backoff1)
	orDefault(&cfg.Backoff2, def.Backoff2)
	orDefault(&cfg.Backoff3, def.Backoff3)
	orDefault(&cfg.Backoff4, def.Backoff4)
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// NextCheckDelay spreads in-process checks over a jittered window so a batch claimed together
// does not hit the broker together next time. Terminal statuses return 0: nothing to schedule.
func (p *Planner) NextCheckDelay(status models.CustomsStatus) time.Duration {
	switch status {
	case models.CustomsCleared, models.CustomsRejected:
		return 0
	case models.CustomsInProcess:
		min, max := p.cfg.InProcessMinDelay, p.cfg.InProcessMaxDelay
		if max == min {
			return min
		}
		secMin, secMax := int(min.Seconds()), int(max.Seconds())
		if secMax < secMin {
			secMax = secMin
		}
		return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
	case models.CustomsRequiresAdditionalInfo:
		return p.cfg.InfoRequestedDelay
	case models.CustomsDetained:
		return p.cfg.DetainedDelay
	default:
		return p.cfg.UnknownDelay
	}
}

func (p *Planner) BackoffDelay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
