// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juhiii45/EcoReborn/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is a periodic maintenance task. Run should return promptly once ctx is
// done.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds one run; zero means timeouts.Batch().
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// JobStatus is a point-in-time view of one job for the admin status page.
type JobStatus struct {
	Name         string
	Interval     time.Duration
	Runs         int
	Running      bool
	LastRun      time.Time
	LastDuration time.Duration
	LastError    string
}

type jobState struct {
	job Job

	mu     sync.Mutex
	status JobStatus
}

func (s *jobState) begin(at time.Time) {
	s.mu.Lock()
	s.status.Running = true
	s.status.LastRun = at
	s.mu.Unlock()
}

func (s *jobState) end(took time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.Runs++
	s.status.LastDuration = took
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}

func (s *jobState) snapshot() JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Runner runs each registered job on its own ticker until stopped. Jobs must
// be registered before Start.
type Runner struct {
	logger *zap.Logger
	jobs   []*jobState
	wg     sync.WaitGroup
	stop   context.CancelFunc
}

func New(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, &jobState{
		job:    job,
		status: JobStatus{Name: job.Name, Interval: job.Interval},
	})
}

// Names lists the registered jobs in registration order.
func (r *Runner) Names() []string {
	out := make([]string, len(r.jobs))
	for i, s := range r.jobs {
		out[i] = s.job.Name
	}
	return out
}

// Status reports every job in registration order. Safe on a nil Runner.
func (r *Runner) Status() []JobStatus {
	if r == nil {
		return nil
	}
	out := make([]JobStatus, len(r.jobs))
	for i, s := range r.jobs {
		out[i] = s.snapshot()
	}
	return out
}

// Start runs every job once immediately and then on its interval.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	for _, s := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, s)
	}
	r.logger.Info("background task runner started", zap.Strings("jobs", r.Names()))
}

// Stop cancels every job and waits for in-flight runs until ctx is done.
func (r *Runner) Stop(ctx context.Context) error {
	if r.stop != nil {
		r.stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("background task runner stopped")
		return nil
	case <-ctx.Done():
		var busy []string
		for _, st := range r.Status() {
			if st.Running {
				busy = append(busy, st.Name)
			}
		}
		r.logger.Warn("background task runner did not stop in time", zap.Strings("still_running", busy))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, s *jobState) {
	defer r.wg.Done()

	ticker := time.NewTicker(s.job.Interval)
	defer ticker.Stop()

	for {
		r.execute(ctx, s)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) execute(parent context.Context, s *jobState) {
	timeout := s.job.Timeout
	if timeout <= 0 {
		timeout = timeouts.Batch()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	s.begin(start)
	err := s.job.Run(ctx)
	took := time.Since(start)
	s.end(took, err)

	log := r.logger.With(zap.String("job", s.job.Name), zap.Duration("duration", took))
	switch {
	case err == nil:
		log.Debug("job completed")
	case parent.Err() != nil:
		log.Debug("job cancelled by shutdown")
	default:
		log.Error("job failed", zap.Error(err))
	}
}

// RunOnce runs the named job synchronously, outside the schedule. The run is
// not counted in Status.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, s := range r.jobs {
		if s.job.Name == name {
			return s.job.Run(ctx)
		}
	}
	return ErrUnknownJob
}
