package burst

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"feagi/internal/fanout"
	"feagi/internal/logging"
	"feagi/internal/model"
	"feagi/internal/npu"
	"feagi/internal/sensory"
)

var (
	ErrAlreadyRunning   = errors.New("burst loop already running")
	ErrInvalidFrequency = errors.New("burst frequency must be positive")
)

// DefaultStopTimeout bounds how long Stop waits for the loop goroutine to
// finish. The loop rechecks its stop flag at least every sleep chunk, so
// two seconds is generous; exceeding it means the loop is wedged on the
// engine lock and Stop returns anyway rather than hanging the caller.
const DefaultStopTimeout = 2 * time.Second

// Options assembles a Runner. Shared is required; the rest defaults.
type Options struct {
	Shared      *npu.Shared
	Sensory     *sensory.Manager
	Output      *fanout.Fanout
	FrequencyHz float64
	StopTimeout time.Duration
	Log         *logging.Logger
}

// Runner is the burst-loop façade: it owns the dedicated scheduler
// goroutine and is the only component the registration/transport layer
// touches. At most one loop is active per Runner.
type Runner struct {
	shared *npu.Shared
	queue  *ParameterUpdateQueue
	agents *sensory.Manager
	out    *fanout.Fanout
	log    *logging.Logger

	freqMu sync.Mutex
	freqHz float64

	running     atomic.Bool
	stopTimeout time.Duration

	mu   sync.Mutex
	loop *loopState

	failedTicks atomic.Uint64
}

// loopState belongs to one scheduler goroutine. Every Start creates a fresh
// one, so a loop that outlived a timed-out Stop keeps observing its own
// cleared flag and can never be revived by a later Start.
type loopState struct {
	active atomic.Bool
	done   chan struct{}
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Shared == nil {
		return nil, errors.New("shared engine handle is required")
	}
	if opts.FrequencyHz <= 0 {
		return nil, ErrInvalidFrequency
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Output == nil {
		opts.Output = fanout.New(fanout.Options{Log: opts.Log})
	}
	return &Runner{
		shared:      opts.Shared,
		queue:       NewParameterUpdateQueue(),
		agents:      opts.Sensory,
		out:         opts.Output,
		log:         opts.Log,
		freqHz:      opts.FrequencyHz,
		stopTimeout: opts.StopTimeout,
	}, nil
}

// Start spawns the scheduler goroutine. Starting an already-running loop
// fails with ErrAlreadyRunning and spawns nothing.
func (r *Runner) Start() error {
	if hz := r.Frequency(); hz <= 0 {
		return ErrInvalidFrequency
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ls := &loopState{done: make(chan struct{})}
	ls.active.Store(true)
	r.mu.Lock()
	r.loop = ls
	r.mu.Unlock()

	go r.run(ls)
	r.log.Infof("burst loop started at %.2f Hz", r.Frequency())
	return nil
}

// Stop clears the running flag and joins the scheduler goroutine with a
// bounded wait. Idempotent; never blocks the caller past the stop timeout.
func (r *Runner) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}

	r.mu.Lock()
	ls := r.loop
	r.mu.Unlock()
	if ls == nil {
		return
	}
	ls.active.Store(false)

	select {
	case <-ls.done:
		r.log.Infof("burst loop stopped after %d ticks", r.BurstCount())
	case <-time.After(r.stopTimeout):
		r.log.Warnf("burst loop did not stop within %v, proceeding with shutdown", r.stopTimeout)
	}
}

// Close stops the loop and joins all sensory injectors. Safe to call more
// than once; a Runner is always Closed by its owner so no goroutine can
// outlive it.
func (r *Runner) Close() {
	r.Stop()
	if r.agents != nil {
		r.agents.Shutdown()
	}
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// BurstCount returns the lock-free cached tick counter.
func (r *Runner) BurstCount() uint64 {
	return r.shared.BurstCount()
}

// FailedTicks counts ProcessBurst errors since construction. Repeated
// failures never stop the loop; this counter is the observability hook.
func (r *Runner) FailedTicks() uint64 {
	return r.failedTicks.Load()
}

func (r *Runner) Frequency() float64 {
	r.freqMu.Lock()
	defer r.freqMu.Unlock()
	return r.freqHz
}

// SetFrequency changes the target cadence; takes effect from the next
// iteration, without stopping the loop.
func (r *Runner) SetFrequency(hz float64) error {
	if hz <= 0 {
		return ErrInvalidFrequency
	}
	r.freqMu.Lock()
	r.freqHz = hz
	r.freqMu.Unlock()
	r.log.Infof("burst frequency set to %.2f Hz", hz)
	return nil
}

// EnqueueParameterUpdate queues a runtime-parameter change for application
// at the start of the next tick. Never blocks.
func (r *Runner) EnqueueParameterUpdate(update model.ParameterUpdate) {
	r.queue.Enqueue(update)
}

// RegisterAgent delegates to the sensory manager; the injector goroutine
// starts immediately, whether or not the loop is running.
func (r *Runner) RegisterAgent(cfg model.AgentConfig, src sensory.Source) (string, error) {
	if r.agents == nil {
		return "", errors.New("no sensory manager attached")
	}
	return r.agents.RegisterAgent(cfg, src)
}

// DeregisterAgent stops and joins the agent's injector.
func (r *Runner) DeregisterAgent(agentID string) error {
	if r.agents == nil {
		return errors.New("no sensory manager attached")
	}
	return r.agents.DeregisterAgent(agentID)
}

func (r *Runner) RegisterMotorSubscriptions(agentID string, areas []model.CorticalID) {
	r.out.RegisterSubscriptions(agentID, areas)
}

func (r *Runner) UnregisterMotorSubscriptions(agentID string) {
	r.out.UnregisterSubscriptions(agentID)
}

// run is the dedicated scheduler goroutine: one tick per iteration at the
// target cadence, with the loop's stop flag rechecked at every suspension
// point so shutdown latency stays bounded.
func (r *Runner) run(ls *loopState) {
	defer close(ls.done)

	ctx := context.Background()
	var lastStats time.Time
	var ticksSinceStats uint64

	for {
		hz := r.Frequency()
		if !ls.active.Load() {
			return
		}
		tickStart := time.Now()

		eng := r.shared.Lock()
		// Shutdown may have been requested while waiting for the lock.
		if !ls.active.Load() {
			r.shared.Unlock()
			return
		}

		for _, update := range r.queue.DrainAll() {
			if count := applyParameterUpdate(eng, update); count > 0 {
				r.log.Debugf("applied %s to %d neurons in area %d", update.Name, count, update.CorticalIdx)
			} else {
				r.log.Debugf("skipped parameter update %s for area %d", update.Name, update.CorticalIdx)
			}
		}

		result, err := eng.ProcessBurst()
		if err == nil {
			r.shared.RefreshBurstCount()
		}
		r.shared.Unlock()

		if err != nil {
			// A single bad tick must not halt the simulation.
			r.failedTicks.Add(1)
			r.log.Errorf("burst processing failed at tick %d: %v", r.BurstCount(), err)
		}

		if !ls.active.Load() {
			return
		}

		if err == nil && result.Sample != nil {
			now := time.Now()
			if r.out.NeedsSample(now) {
				r.out.Dispatch(ctx, r.BurstCount(), result.Sample, now)
			}
		}

		if !ls.active.Load() {
			return
		}

		ticksSinceStats++
		if lastStats.IsZero() {
			lastStats = tickStart
		} else if elapsed := tickStart.Sub(lastStats); elapsed >= 5*time.Second {
			actual := float64(ticksSinceStats) / elapsed.Seconds()
			r.log.Debugf("burst stats: tick %d, target %.2f Hz, actual %.2f Hz", r.BurstCount(), hz, actual)
			lastStats = tickStart
			ticksSinceStats = 0
		}

		// The next deadline is computed from this tick's start at the
		// original cadence: a slow tick drifts, it is never compensated
		// with catch-up bursts.
		deadline := tickStart.Add(time.Duration(float64(time.Second) / hz))
		if !waitForDeadline(deadline, hz, &ls.active) {
			return
		}
	}
}
