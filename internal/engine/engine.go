// Package engine implements the Execution Engine: it
// drives a complete run, owning the scheduling loop, concurrency
// substrate selection, queue accounting, and shutdown.
//
// Grounded in internal/supervisor package for the state
// machine and graceful/forced Stop() shape (supervisor.go, state.go) and
// in internal/orchestrator.Orchestrator.Run() for the
// top-level dispatch-loop structure, generalized from FFmpeg-client
// process supervision to in-process iteration dispatch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/happysantoo/vajrapulse-sub008/internal/aggregator"
	"github.com/happysantoo/vajrapulse-sub008/internal/pattern"
	"github.com/happysantoo/vajrapulse-sub008/internal/ratecontrol"
	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

// ErrAlreadyStarted is returned by Run when the Engine is not in
// StateStopped
var ErrAlreadyStarted = errors.New("engine: run called while already started")

// ErrTaskLifecycleFailed wraps an error raised from Task.Init or
// Task.Teardown; this is the only fatal error class Run surfaces.
var ErrTaskLifecycleFailed = errors.New("engine: task lifecycle failed")

// tickInterval bounds how long the scheduling loop ever sleeps between
// release checks "never longer than 100ms" suspension
// rule. 10ms keeps actual-vs-target rate error tight well below that
// ceiling.
const tickInterval = 10 * time.Millisecond

// defaultQueueSize sizes the CpuBound worker pool's job queue when the
// caller doesn't specify one.
const defaultQueueSize = 4096

// Options configures an Engine at build time
// `build(task, pattern, aggregator, {options})`.
type Options struct {
	RunID string
	BackpressureHandler BackpressureHandler
	DrainTimeout time.Duration
	ForceTimeout time.Duration
	QueueSize int
	Logger *slog.Logger

	// OnLifecycleEvent, when set, is called once per lifecycle
	// transition ("starting", "running", "stopping", "stopped") and
	// fatal condition ("init_failed", "teardown_failed",
	// "drain_timeout_exceeded", "force_timeout_exceeded"). The Test
	// Runner wires this to metrics.Collector.RecordLifecycleEvent so the
	// vajrapulse_engine_lifecycle_events_total counter reflects real
	// transitions instead of sitting at zero.
	OnLifecycleEvent func(event string)
}

func (o Options) withDefaults() Options {
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = 5 * time.Second
	}
	if o.ForceTimeout <= 0 {
		o.ForceTimeout = 2 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Engine drives one run of a Task against a Pattern, recording outcomes
// into an Aggregator.
type Engine struct {
	task task.Task
	pat pattern.Pattern
	agg *aggregator.Aggregator
	opts Options
	log *slog.Logger

	mu sync.RWMutex
	state State

	stopOnce sync.Once
	stopCh chan struct{}
	closeOnce sync.Once

	runCtx context.Context
	cancel context.CancelFunc

	iterationSeq atomic.Int64
	queueDepth atomic.Int64
	inFlight sync.WaitGroup

	sub substrate
}

// New builds an Engine for task t driven by pattern pat, recording into
// agg.
func New(t task.Task, pat pattern.Pattern, agg *aggregator.Aggregator, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		task: t,
		pat: pat,
		agg: agg,
		opts: opts,
		log: opts.Logger.With("run_id", opts.RunID),
		state: StateStopped,
	}
}

// State returns the Engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// fireLifecycleEvent reports a transition or fatal condition to the
// caller's OnLifecycleEvent hook, if set.
func (e *Engine) fireLifecycleEvent(event string) {
	if e.opts.OnLifecycleEvent != nil {
		e.opts.OnLifecycleEvent(event)
	}
}

// SubstrateStats reports the current concurrency substrate's sizing, for
// metrics.Collector.ObserveSubstrate. Zero-valued until Run has reached
// StateRunning.
func (e *Engine) SubstrateStats() SubstrateStats {
	e.mu.RLock()
	sub := e.sub
	e.mu.RUnlock()
	if sub == nil {
		return SubstrateStats{}
	}
	return sub.stats()
}

// ThreadType names the concurrency substrate backing this run
// ("io_bound" or "cpu_bound"), for the Collector's thread_type label.
func (e *Engine) ThreadType() string {
	return e.task.ConcurrencyHint().String()
}

// Run blocks until the pattern's duration elapses, Stop is called and
// drain/force completes, or a fatal lifecycle error occurs. Calling Run
// while not StateStopped fails with ErrAlreadyStarted.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.state = StateStarting
	e.stopCh = make(chan struct{})
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	e.fireLifecycleEvent("starting")
	e.log.Info("engine_starting")

	if err := e.task.Init(e.runCtx); err != nil {
		e.setState(StateStopped)
		e.fireLifecycleEvent("init_failed")
		e.log.Error("task_init_failed", "error", err)
		return fmt.Errorf("%w: init: %v", ErrTaskLifecycleFailed, err)
	}

	sub := newSubstrate(e.task.ConcurrencyHint(), e.opts.QueueSize)
	e.mu.Lock()
	e.sub = sub
	e.mu.Unlock()
	rc := ratecontrol.New(e.pat)
	startedAt := time.Now()

	e.setState(StateRunning)
	e.fireLifecycleEvent("running")
	e.log.Info("engine_running", "concurrency_hint", e.task.ConcurrencyHint().String())

	runErr := e.schedulingLoop(rc, startedAt)

	e.setState(StateStopping)
	e.fireLifecycleEvent("stopping")
	e.log.Info("engine_stopping")
	e.drainAndClose()
	e.setState(StateStopped)
	e.fireLifecycleEvent("stopped")
	e.log.Info("engine_stopped")

	if teardownErr := e.task.Teardown(ctx); teardownErr != nil {
		e.fireLifecycleEvent("teardown_failed")
		e.log.Error("task_teardown_failed", "error", teardownErr)
		if runErr == nil {
			return fmt.Errorf("%w: teardown: %v", ErrTaskLifecycleFailed, teardownErr)
		}
	}

	return runErr
}

// schedulingLoop is the single scheduling thread: it owns
// pattern sampling and iteration release, suspending in bounded ticks.
func (e *Engine) schedulingLoop(rc *ratecontrol.Controller, startedAt time.Time) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return nil
		case <-e.runCtx.Done():
			return nil
		case <-ticker.C:
		}

		elapsed := time.Since(startedAt)

		if total := e.pat.TotalDuration(); total != pattern.UnboundedDuration && elapsed >= total {
			return nil
		}

		released := rc.Tick(elapsed)
		if released == 0 {
			if e.pat.TotalDuration() == pattern.UnboundedDuration && rc.NoProgressExceeded(elapsed) {
				e.log.Info("engine_exhausted_zero_rate", "elapsed", elapsed.String())
				return nil
			}
			continue
		}

		suppressed := false
		if s, ok := e.pat.(pattern.Suppressor); ok {
			suppressed = s.SuppressRecording(elapsed)
		}

		for n := int64(0); n < released; n++ {
			select {
			case <-e.stopCh:
				return nil
			case <-e.runCtx.Done():
				return nil
			default:
			}
			i := e.iterationSeq.Add(1) - 1
			e.dispatch(i, time.Now().UnixNano(), suppressed)
		}
	}
}

func (e *Engine) dispatch(iteration int64, enqueueNanos int64, suppressed bool) {
	e.inFlight.Add(1)
	e.queueDepth.Add(1)
	e.agg.SetQueueDepth(e.queueDepth.Load())

	err := e.sub.submit(func() {
		defer func() {
			e.queueDepth.Add(-1)
			e.agg.SetQueueDepth(e.queueDepth.Load())
			e.inFlight.Done()
		}()
		e.runIteration(iteration, enqueueNanos, suppressed)
	})
	if err != nil {
		e.queueDepth.Add(-1)
		e.agg.SetQueueDepth(e.queueDepth.Load())
		e.inFlight.Done()
		e.handleSubmissionRejected(iteration, enqueueNanos, suppressed, err)
	}
}

func (e *Engine) handleSubmissionRejected(iteration int64, enqueueNanos int64, suppressed bool, submitErr error) {
	handler := e.opts.BackpressureHandler
	if handler == nil {
		e.recordRejected(iteration, enqueueNanos, suppressed, submitErr)
		return
	}

	switch handler.Decide(submitErr) {
	case DecisionAccept, DecisionQueue:
		e.dispatch(iteration, enqueueNanos, suppressed)
	case DecisionDrop:
		e.agg.RecordDropped()
	default:
		e.recordRejected(iteration, enqueueNanos, suppressed, submitErr)
	}
}

func (e *Engine) recordRejected(iteration int64, enqueueNanos int64, suppressed bool, submitErr error) {
	e.agg.RecordRejected()
	if suppressed {
		return
	}
	now := time.Now().UnixNano()
	e.agg.Record(aggregator.ExecutionRecord{
		StartNanos: now,
		EndNanos: now,
		EnqueueNanos: enqueueNanos,
		IterationIndex: iteration,
		Outcome: task.Failure(task.ErrorKindSubmissionRejected, submitErr),
	})
}

// runIteration executes one iteration in the substrate's worker. Per
//, a pending iteration that is cancelled before it actually
// starts generates no record; one that starts but whose context is
// cancelled mid-flight is recorded as Failure(Cancelled).
func (e *Engine) runIteration(iteration int64, enqueueNanos int64, suppressed bool) {
	select {
	case <-e.runCtx.Done():
		return
	default:
	}

	start := time.Now().UnixNano()
	outcome := e.safeExecute(iteration)
	end := time.Now().UnixNano()

	if suppressed {
		return
	}
	e.agg.Record(aggregator.ExecutionRecord{
		StartNanos: start,
		EndNanos: end,
		EnqueueNanos: enqueueNanos,
		IterationIndex: iteration,
		Outcome: outcome,
	})
}

func (e *Engine) safeExecute(iteration int64) (outcome task.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = task.Failure(task.ErrorKindIterationFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := e.task.Execute(e.runCtx, iteration)
	if e.runCtx.Err() != nil {
		return task.Failure(task.ErrorKindCancelled, e.runCtx.Err())
	}
	if err != nil {
		return task.Failure(task.ErrorKindIterationFailed, err)
	}
	return out
}

// Stop requests graceful shutdown. Idempotent; safe to call from any
// goroutine, any number of times, including before Run starts (in which
// case it is a no-op).
func (e *Engine) Stop() {
	e.mu.RLock()
	ch := e.stopCh
	e.mu.RUnlock()
	if ch == nil {
		return
	}
	e.stopOnce.Do(func() { close(ch) })
}

// drainAndClose waits up to DrainTimeout for in-flight iterations to
// finish, then cancels the run context and waits up to ForceTimeout
// before abandoning the substrate regardless (a leaked goroutine is
// preferred over an unbounded hang).
func (e *Engine) drainAndClose() {
	if e.waitInFlight(e.opts.DrainTimeout) {
		e.cancel()
		e.Close()
		return
	}

	e.fireLifecycleEvent("drain_timeout_exceeded")
	e.log.Warn("engine_drain_timeout_exceeded", "timeout", e.opts.DrainTimeout.String())
	e.cancel()

	if e.waitInFlight(e.opts.ForceTimeout) {
		e.Close()
		return
	}

	e.fireLifecycleEvent("force_timeout_exceeded")
	e.log.Warn("engine_force_timeout_exceeded_abandoning_substrate", "timeout", e.opts.ForceTimeout.String())
}

// Close releases the concurrency substrate. Safe to call multiple times
// and safe to call even if Run never reached a substrate-owning state.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.sub != nil {
			e.sub.close()
		}
	})
	return nil
}

func (e *Engine) waitInFlight(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
