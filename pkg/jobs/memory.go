package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type scheduledJob struct {
	jobType   string
	data      Data
	notBefore time.Time
	attempt   int
}

type memoryOptions struct {
	pollInterval  time.Duration
	maxConcurrent int
	maxAttempts   int
	logger        *slog.Logger
}

// MemoryOption configures a MemoryScheduler.
type MemoryOption func(*memoryOptions)

// WithPollInterval sets how often the dispatch loop scans for due jobs.
func WithPollInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithMaxConcurrent bounds how many jobs run at once.
func WithMaxConcurrent(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithMaxAttempts bounds retries of failed executions.
func WithMaxAttempts(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(o *memoryOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// MemoryScheduler implements Scheduler in process memory. Due jobs are
// dispatched by a timer loop started with Start, or synchronously with
// RunDue, which tests use for deterministic ordering.
type MemoryScheduler struct {
	mu       sync.Mutex
	handlers map[string]Handler
	pending  []scheduledJob

	sem chan struct{}
	wg  sync.WaitGroup

	pollInterval time.Duration
	maxAttempts  int
	logger       *slog.Logger

	cancel context.CancelFunc
}

// NewMemoryScheduler creates an idle scheduler. Register handlers before
// calling Start.
func NewMemoryScheduler(opts ...MemoryOption) *MemoryScheduler {
	options := &memoryOptions{
		pollInterval:  time.Second,
		maxConcurrent: 1,
		maxAttempts:   3,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &MemoryScheduler{
		handlers:     make(map[string]Handler),
		sem:          make(chan struct{}, options.maxConcurrent),
		pollInterval: options.pollInterval,
		maxAttempts:  options.maxAttempts,
		logger:       options.logger,
	}
}

// RegisterHandler binds a handler to a job type, replacing any previous
// binding.
func (s *MemoryScheduler) RegisterHandler(jobType string, handler Handler) error {
	if handler == nil {
		return ErrHandlerNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
	return nil
}

// Schedule implements Scheduler.
func (s *MemoryScheduler) Schedule(ctx context.Context, jobType string, notBefore time.Time, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[jobType]; !ok {
		return ErrUnknownJobType
	}
	s.pending = append(s.pending, scheduledJob{jobType: jobType, data: data, notBefore: notBefore})
	return nil
}

// Start begins the background dispatch loop.
func (s *MemoryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunDue(ctx)
			}
		}
	}()
	return nil
}

// Stop halts the dispatch loop and waits for running jobs to finish.
func (s *MemoryScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunDue dispatches every job whose notBefore has passed and waits for
// them to finish. It returns the number of jobs dispatched.
func (s *MemoryScheduler) RunDue(ctx context.Context) int {
	now := time.Now()

	s.mu.Lock()
	var due, rest []scheduledJob
	for _, job := range s.pending {
		if job.notBefore.After(now) {
			rest = append(rest, job)
		} else {
			due = append(due, job)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, job := range due {
		s.sem <- struct{}{}
		wg.Add(1)
		go func(job scheduledJob) {
			defer func() {
				<-s.sem
				wg.Done()
			}()
			s.run(ctx, job)
		}(job)
	}
	wg.Wait()
	return len(due)
}

func (s *MemoryScheduler) run(ctx context.Context, job scheduledJob) {
	s.mu.Lock()
	handler := s.handlers[job.jobType]
	s.mu.Unlock()
	if handler == nil {
		s.logger.ErrorContext(ctx, "no handler for job", slog.String("job_type", job.jobType))
		return
	}

	exec := NewExecution(job.jobType, job.data)
	exec.attempt = job.attempt
	if err := handler(ctx, exec); err != nil {
		exec.Failed(err)
	}
	exec.Completed()

	switch exec.Status() {
	case StatusFailed:
		if job.attempt+1 >= s.maxAttempts {
			s.logger.ErrorContext(ctx, "job exhausted retries",
				slog.String("job_type", job.jobType),
				slog.String("notification_id", job.data.NotificationID.String()),
				slog.Any("error", exec.Err()))
			return
		}
		s.logger.WarnContext(ctx, "job failed, retrying",
			slog.String("job_type", job.jobType),
			slog.String("notification_id", job.data.NotificationID.String()),
			slog.Int("attempt", job.attempt),
			slog.Any("error", exec.Err()))
		job.attempt++
		job.notBefore = time.Now().Add(s.pollInterval)
		s.mu.Lock()
		s.pending = append(s.pending, job)
		s.mu.Unlock()
	case StatusKilled:
		s.logger.InfoContext(ctx, "job killed",
			slog.String("job_type", job.jobType),
			slog.String("notification_id", job.data.NotificationID.String()))
	}
}

// PendingCount reports how many jobs are waiting to run.
func (s *MemoryScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
