package clearance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/customs"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu    sync.Mutex
	calls int
	items []*models.ClearanceCheck
	err   error
}

func (r *fakeRepo) ClaimDueClearances(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ClearanceCheck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	items := r.items
	r.items = nil
	return items, r.err
}

func (r *fakeRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	w := New(repo, &fakeBroker{}, &fakeProducer{}, nil, "t").
		WithSettings(Settings{PollInterval: 5 * time.Millisecond, BatchSize: 1, Concurrency: 1, Lease: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := w.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, repo.Calls(), 1)
}

func TestWorker_runOnce_ProcessesBatchAndCountsErrors(t *testing.T) {
	repo := &fakeRepo{items: []*models.ClearanceCheck{check("US", 0), check("ES", 0), check("GB", 0)}}
	fp := &fakeProducer{}
	w := New(repo, &fakeBroker{res: customs.ClearanceResult{Status: models.CustomsInProcess}}, fp, nil, "t").
		WithSettings(Settings{Concurrency: 2, PublishAttempts: 1})

	w.runOnce(context.Background())

	st := w.Stats()
	require.Equal(t, int64(3), st.TotalClaimed)
	require.Equal(t, int64(3), st.TotalProcessed)
	require.Zero(t, st.TotalErrors)
	require.Zero(t, st.InFlight)
	require.NotNil(t, st.LastCycleAt)
	require.Len(t, fp.msgs, 3)
}

func TestWorker_runOnce_ClaimErrorIsRecorded(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	w := New(repo, &fakeBroker{}, &fakeProducer{}, nil, "t")

	w.runOnce(context.Background())
	require.Equal(t, "db down", w.Stats().LastError)
}

func TestWorker_Trigger_NonBlocking(t *testing.T) {
	w := New(&fakeRepo{}, &fakeBroker{}, &fakeProducer{}, nil, "t")
	w.Trigger()
	w.Trigger()
	require.NotNil(t, w.Stats().LastTriggerAt)
	require.Len(t, w.triggerCh, 1)
}
