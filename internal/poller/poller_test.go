package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"checkout-service/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps tests in the tens of milliseconds while preserving the
// production shape: poll interval > countdown tick, budget >> interval.
func fastConfig() Config {
	return Config{
		PollInterval:  5 * time.Millisecond,
		CountdownTick: 2 * time.Millisecond,
		Budget:        time.Second,
		MaxErrors:     5,
	}
}

func scripted(outcomes ...backend.PollResult) (StatusFunc, *int64) {
	var calls int64
	fn := func(ctx context.Context) (backend.PollResult, error) {
		n := atomic.AddInt64(&calls, 1)
		idx := int(n) - 1
		if idx >= len(outcomes) {
			idx = len(outcomes) - 1
		}
		return outcomes[idx], nil
	}
	return fn, &calls
}

func waitDone(t *testing.T, p *Poller) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not finish in time")
	}
}

func TestPollerReachesSuccess(t *testing.T) {
	fetch, _ := scripted(
		backend.PollResult{Outcome: backend.OutcomePending},
		backend.PollResult{Outcome: backend.OutcomePending},
		backend.PollResult{Outcome: backend.OutcomeCompleted},
	)

	var successCalls, failureCalls int64
	p := New(fetch, fastConfig(),
		func() { atomic.AddInt64(&successCalls, 1) },
		func(Result) { atomic.AddInt64(&failureCalls, 1) })

	p.Start(context.Background())
	waitDone(t, p)

	assert.Equal(t, StateSuccess, p.State())
	res, ok := p.Result()
	require.True(t, ok)
	assert.Equal(t, StateSuccess, res.State)
	assert.EqualValues(t, 1, atomic.LoadInt64(&successCalls))
	assert.EqualValues(t, 0, atomic.LoadInt64(&failureCalls))
}

func TestPollerHandlesSlowGateway(t *testing.T) {
	// Round trips take longer than the poll interval; the answer is still
	// authoritative when it lands.
	var calls int64
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(12 * time.Millisecond)
		return backend.PollResult{Outcome: backend.OutcomeCompleted}, nil
	}

	var successCalls, failureCalls int64
	p := New(fetch, fastConfig(),
		func() { atomic.AddInt64(&successCalls, 1) },
		func(Result) { atomic.AddInt64(&failureCalls, 1) })

	p.Start(context.Background())
	waitDone(t, p)

	assert.Equal(t, StateSuccess, p.State())
	assert.EqualValues(t, 1, atomic.LoadInt64(&successCalls))
	assert.EqualValues(t, 0, atomic.LoadInt64(&failureCalls))
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "overlapping polls issued against a slow gateway")
}

func TestPollerTransitionsToPending(t *testing.T) {
	fetch, _ := scripted(backend.PollResult{Outcome: backend.OutcomePending})

	p := New(fetch, fastConfig(), nil, nil)
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.State() == StatePending
	}, time.Second, time.Millisecond)
}

func TestPollerTimesOutWhenBudgetExhausted(t *testing.T) {
	fetch, calls := scripted(backend.PollResult{Outcome: backend.OutcomePending})

	cfg := fastConfig()
	cfg.Budget = 40 * time.Millisecond

	var failures int64
	var got Result
	p := New(fetch, cfg, nil, func(r Result) {
		atomic.AddInt64(&failures, 1)
		got = r
	})

	p.Start(context.Background())
	waitDone(t, p)

	assert.Equal(t, StateTimeout, p.State())
	assert.EqualValues(t, 1, atomic.LoadInt64(&failures))
	assert.Equal(t, StateTimeout, got.State)
	assert.Equal(t, ReasonTimeout, got.Reason)

	// No polling continues after timeout.
	time.Sleep(10 * time.Millisecond)
	after := atomic.LoadInt64(calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt64(calls))
}

func TestPollerFailsOnBusinessOutcome(t *testing.T) {
	fetch, _ := scripted(
		backend.PollResult{Outcome: backend.OutcomePending},
		backend.PollResult{Outcome: backend.OutcomeCancelled, Description: "request cancelled by user"},
	)

	var got Result
	done := make(chan struct{})
	p := New(fetch, fastConfig(), nil, func(r Result) {
		got = r
		close(done)
	})

	p.Start(context.Background())
	waitDone(t, p)
	<-done

	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, "request cancelled by user", got.Reason)
}

func TestPollerCapsConsecutiveTransportErrors(t *testing.T) {
	var calls int64
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		atomic.AddInt64(&calls, 1)
		return backend.PollResult{}, errors.New("connection refused")
	}

	cfg := fastConfig()
	cfg.MaxErrors = 3

	var got Result
	done := make(chan struct{})
	p := New(fetch, cfg, nil, func(r Result) {
		got = r
		close(done)
	})

	p.Start(context.Background())
	waitDone(t, p)
	<-done

	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, ReasonConnectivity, got.Reason)
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
}

func TestPollerErrorCountResetsOnResponse(t *testing.T) {
	var calls int64
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		n := atomic.AddInt64(&calls, 1)
		// Errors interleaved with pendings never hit the cap of 3.
		if n%2 == 1 && n < 8 {
			return backend.PollResult{}, errors.New("blip")
		}
		if n < 9 {
			return backend.PollResult{Outcome: backend.OutcomePending}, nil
		}
		return backend.PollResult{Outcome: backend.OutcomeCompleted}, nil
	}

	cfg := fastConfig()
	cfg.MaxErrors = 3

	var successCalls int64
	p := New(fetch, cfg, func() { atomic.AddInt64(&successCalls, 1) }, nil)
	p.Start(context.Background())
	waitDone(t, p)

	assert.Equal(t, StateSuccess, p.State())
	assert.EqualValues(t, 1, atomic.LoadInt64(&successCalls))
}

func TestStopHaltsPollingAndSuppressesCallbacks(t *testing.T) {
	fetch, calls := scripted(backend.PollResult{Outcome: backend.OutcomePending})

	var callbacks int64
	p := New(fetch, fastConfig(),
		func() { atomic.AddInt64(&callbacks, 1) },
		func(Result) { atomic.AddInt64(&callbacks, 1) })

	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	time.Sleep(10 * time.Millisecond)
	after := atomic.LoadInt64(calls)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, after, atomic.LoadInt64(calls), "polls issued after Stop")
	assert.EqualValues(t, 0, atomic.LoadInt64(&callbacks))
	_, terminal := p.Result()
	assert.False(t, terminal)
}

func TestStaleResponseAfterStopIsIgnored(t *testing.T) {
	release := make(chan struct{})
	var delivered int64
	fetch := func(ctx context.Context) (backend.PollResult, error) {
		<-release
		atomic.AddInt64(&delivered, 1)
		return backend.PollResult{Outcome: backend.OutcomeCompleted}, nil
	}

	var successCalls int64
	p := New(fetch, fastConfig(), func() { atomic.AddInt64(&successCalls, 1) }, nil)

	p.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	p.Stop()
	close(release) // in-flight queries resolve only after close

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt64(&successCalls))
	assert.NotEqual(t, StateSuccess, p.State())
}

func TestContextCancelStopsPoller(t *testing.T) {
	fetch, _ := scripted(backend.PollResult{Outcome: backend.OutcomePending})

	ctx, cancel := context.WithCancel(context.Background())
	p := New(fetch, fastConfig(), nil, nil)
	p.Start(ctx)

	cancel()
	waitDone(t, p)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.CountdownTick)
	assert.Equal(t, 120*time.Second, cfg.Budget)
	assert.Equal(t, 5, cfg.MaxErrors)
}
