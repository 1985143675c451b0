package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"face-gallery/internal/logging"
	"face-gallery/internal/pipeline"
)

var logger = logging.For("scheduler")

// Runner is the run-to-completion entry point the scheduler drives.
type Runner interface {
	RunBatch(ctx context.Context) (pipeline.Outcome, error)
	State() pipeline.State
}

// Status is the run state reported to the UI.
type Status struct {
	Running      bool              `json:"running"`
	State        pipeline.State    `json:"state"`
	Runs         int               `json:"runs"`
	LastOutcome  *pipeline.Outcome `json:"lastOutcome,omitempty"`
	LastError    string            `json:"lastError,omitempty"`
	LastStarted  time.Time         `json:"lastStarted,omitempty"`
	LastFinished time.Time         `json:"lastFinished,omitempty"`
	NextRun      time.Time         `json:"nextRun,omitempty"`
}

// Scheduler runs batches periodically and on demand. A manual trigger
// replaces a run in progress: the current run is cancelled and a new one
// starts once it has returned.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu      sync.Mutex
	status  Status
	cancel  context.CancelFunc
	done    chan struct{}
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	trigger chan struct{}
}

// New creates a scheduler. A zero interval disables periodic runs.
func New(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Start begins the periodic loop. The first run starts immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx, s.stop = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.Trigger()
}

// Stop cancels any run in progress and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.wg.Wait()
}

// Trigger requests a run now, cancelling one that is in progress.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.cancel != nil {
		logger.Info("Manual trigger replaces the run in progress")
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.baseCtx.Done():
			return
		case <-s.trigger:
		case <-tick:
		}

		if _, err := s.RunOnce(s.baseCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Scheduled run failed: %v", err)
		}

		if s.interval > 0 {
			s.mu.Lock()
			s.status.NextRun = time.Now().Add(s.interval)
			s.mu.Unlock()
		}
	}
}

// RunOnce runs a single batch in the caller's goroutine, waiting for a
// replaced run to finish first, and records the result.
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	for s.done != nil {
		prev := s.done
		s.mu.Unlock()
		<-prev
		s.mu.Lock()
	}
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.status.Running = true
	s.status.LastStarted = time.Now()
	s.mu.Unlock()

	outcome, err := s.runner.RunBatch(runCtx)

	s.mu.Lock()
	s.cancel = nil
	s.done = nil
	close(done)
	s.status.Running = false
	s.status.Runs++
	s.status.LastFinished = time.Now()
	s.status.LastOutcome = &outcome
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	return outcome, err
}

// Status returns the current run state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.State = s.runner.State()
	if st.LastOutcome != nil {
		o := *st.LastOutcome
		st.LastOutcome = &o
	}
	return st
}
