// Package poller implements the bounded payment-status watch: an immediate
// first query, a fixed poll interval, and an independent countdown against a
// total time budget. It owns both tickers and tears them down together.
package poller

import (
	"context"
	"sync"
	"time"

	"checkout-service/internal/backend"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// State of a watched payment.
type State string

const (
	StateChecking State = "checking"
	StatePending  State = "pending"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
	StateTimeout  State = "timeout"
)

// Failure reasons the poller produces itself. Business failures carry the
// gateway's own description instead.
const (
	ReasonConnectivity = "connection to payment gateway degraded"
	ReasonTimeout      = "payment not confirmed in time, check your phone"
)

// Result is the terminal outcome of a watch.
type Result struct {
	State  State
	Reason string
}

// StatusFunc fetches the current normalized status for one checkout request.
type StatusFunc func(ctx context.Context) (backend.PollResult, error)

// Config bounds the watch. Zero values fall back to production defaults.
type Config struct {
	PollInterval  time.Duration
	CountdownTick time.Duration
	Budget        time.Duration
	MaxErrors     int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.Budget <= 0 {
		c.Budget = 120 * time.Second
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 5
	}
	return c
}

type pollResult struct {
	res backend.PollResult
	err error
}

// Poller watches a single checkout request until a terminal state, the time
// budget runs out, or Stop is called. Callbacks fire at most once.
type Poller struct {
	cfg       Config
	fetch     StatusFunc
	onSuccess func()
	onFailure func(Result)
	logger    *zap.Logger

	results  chan pollResult
	quit     chan struct{}
	quitOnce sync.Once

	finishOnce sync.Once
	started    time.Time

	mu        sync.Mutex
	state     State
	remaining time.Duration
	inFlight  bool
	result    *Result
}

// New creates a poller. onSuccess and onFailure may be nil.
func New(fetch StatusFunc, cfg Config, onSuccess func(), onFailure func(Result)) *Poller {
	cfg = cfg.withDefaults()
	return &Poller{
		cfg:       cfg,
		fetch:     fetch,
		onSuccess: onSuccess,
		onFailure: onFailure,
		logger:    util.GetLogger(),
		results:   make(chan pollResult, 16),
		quit:      make(chan struct{}),
		state:     StateChecking,
		remaining: cfg.Budget,
	}
}

// Start launches the watch. It returns immediately.
func (p *Poller) Start(ctx context.Context) {
	p.started = time.Now()
	go p.run(ctx)
}

// Stop cancels the watch without firing callbacks. In-flight status queries
// are not aborted; their late results are discarded.
func (p *Poller) Stop() {
	p.quitOnce.Do(func() { close(p.quit) })
}

// Done is closed once the poller has stopped, terminal or cancelled.
func (p *Poller) Done() <-chan struct{} {
	return p.quit
}

// State returns the current state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Remaining returns the unspent time budget.
func (p *Poller) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

// Result returns the terminal result, if one was reached.
func (p *Poller) Result() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return Result{}, false
	}
	return *p.result, true
}

func (p *Poller) run(ctx context.Context) {
	poll := time.NewTicker(p.cfg.PollInterval)
	defer poll.Stop()
	countdown := time.NewTicker(p.cfg.CountdownTick)
	defer countdown.Stop()

	// First query goes out immediately.
	p.issuePoll(ctx)

	errCount := 0
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return

		case <-p.quit:
			return

		case <-poll.C:
			p.issuePoll(ctx)

		case <-countdown.C:
			if p.tick() <= 0 {
				p.finish(Result{State: StateTimeout, Reason: ReasonTimeout})
				return
			}

		case r := <-p.results:
			p.mu.Lock()
			p.inFlight = false
			p.mu.Unlock()

			if r.err != nil {
				errCount++
				util.PollErrorsTotal.Inc()
				p.logger.Warn("Payment status poll failed",
					zap.Int("consecutive_errors", errCount),
					zap.Error(r.err))
				if errCount >= p.cfg.MaxErrors {
					p.finish(Result{State: StateFailed, Reason: ReasonConnectivity})
					return
				}
				continue
			}
			errCount = 0

			switch r.res.Outcome {
			case backend.OutcomePending:
				p.setState(StatePending)
			case backend.OutcomeCompleted:
				p.finish(Result{State: StateSuccess})
				return
			default:
				reason := r.res.Description
				if reason == "" {
					reason = "payment " + r.res.Outcome.String()
				}
				p.finish(Result{State: StateFailed, Reason: reason})
				return
			}
		}
	}
}

// issuePoll starts a status query unless one is already outstanding. A slow
// gateway gets one request at a time, not a pile-up; its answer is still
// current when it lands, however long the round trip took. Results arriving
// after Stop or a terminal state find the loop gone and are discarded.
func (p *Poller) issuePoll(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	util.PollRequestsTotal.Inc()

	go func() {
		res, err := p.fetch(ctx)
		select {
		case p.results <- pollResult{res: res, err: err}:
		case <-p.quit:
		case <-ctx.Done():
		}
	}()
}

func (p *Poller) tick() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remaining -= p.cfg.CountdownTick
	return p.remaining
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateChecking && s == StatePending {
		p.state = s
	}
}

func (p *Poller) finish(res Result) {
	p.finishOnce.Do(func() {
		p.mu.Lock()
		p.state = res.State
		p.result = &res
		p.mu.Unlock()

		util.PaymentOutcomesTotal.WithLabelValues(string(res.State)).Inc()
		if !p.started.IsZero() {
			util.PaymentSettleDuration.Observe(time.Since(p.started).Seconds())
		}

		switch res.State {
		case StateSuccess:
			if p.onSuccess != nil {
				p.onSuccess()
			}
		default:
			if p.onFailure != nil {
				p.onFailure(res)
			}
		}
	})
	p.Stop()
}
