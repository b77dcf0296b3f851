// Package scheduler runs the portal's periodic jobs on gocron: leaderboard
// rebuilds, monthly contribution reminders and monthly recognition.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/impact-hub/partner-portal/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job. It doubles as the lock key.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// ErrSkipped is returned by a job that decided not to run, e.g. because its
// feature flag is off. Skips are not counted as failures.
var ErrSkipped = errors.New("job skipped")

// Schedule defines when a job should run.
type Schedule struct {
	definition gocron.JobDefinition
	desc       string
}

// String returns a human-readable representation of the schedule.
func (s Schedule) String() string { return s.desc }

// Every runs a job at a fixed interval.
func Every(d time.Duration) Schedule {
	return Schedule{definition: gocron.DurationJob(d), desc: fmt.Sprintf("@every %s", d)}
}

// Monthly runs a job once a month on day at hour:minute in the scheduler location.
func Monthly(day int, hour, minute uint) Schedule {
	return Schedule{
		definition: gocron.MonthlyJob(1,
			gocron.NewDaysOfTheMonth(day),
			gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0)),
		),
		desc: fmt.Sprintf("monthly on day %d at %02d:%02d", day, hour, minute),
	}
}

// Cron runs a job on a standard five-field crontab expression.
func Cron(expr string) Schedule {
	return Schedule{definition: gocron.CronJob(expr, false), desc: expr}
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string        `json:"job_name"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Success     bool          `json:"success"`
	Skipped     bool          `json:"skipped"`
	Error       string        `json:"error,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	// Location for calendar schedules (default: UTC).
	Location *time.Location

	// Locker makes each run happen on one replica only. Nil runs locally.
	Locker gocron.Locker

	// StopTimeout bounds how long Stop waits for running jobs.
	StopTimeout time.Duration

	// JobTimeout bounds a single run.
	JobTimeout time.Duration

	// MaxHistorySize is the maximum number of job results to keep.
	MaxHistorySize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Location:       time.UTC,
		StopTimeout:    30 * time.Second,
		JobTimeout:     5 * time.Minute,
		MaxHistorySize: 200,
	}
}

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	cron       gocron.Scheduler
	log        *logger.Logger
	jobTimeout time.Duration

	jobs        map[string]*scheduledJob
	history     []JobResult
	historySize int
	metrics     *Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

type scheduledJob struct {
	job       Job
	schedule  Schedule
	handle    gocron.Job
	lastRun   time.Time
	runCount  int64
	failCount int64
}

// New creates a scheduler. Jobs start firing after Start.
func New(cfg Config, log *logger.Logger) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = def.MaxHistorySize
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("scheduler"))

	opts := []gocron.SchedulerOption{
		gocron.WithLocation(cfg.Location),
		gocron.WithStopTimeout(cfg.StopTimeout),
		gocron.WithLogger(cronLogger{log}),
	}
	if cfg.Locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(cfg.Locker))
	}

	cron, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:        cron,
		log:         log,
		jobTimeout:  cfg.JobTimeout,
		jobs:        make(map[string]*scheduledJob),
		historySize: cfg.MaxHistorySize,
		metrics:     NewMetrics(),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// JOB REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule.definition == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule}
	handle, err := s.cron.NewJob(
		schedule.definition,
		gocron.NewTask(func() { s.execute(s.ctx, sj) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", name, err)
	}
	sj.handle = handle
	s.jobs[name] = sj

	s.log.Info("job registered",
		logger.String("job", name),
		logger.String("schedule", schedule.String()),
		logger.String("description", job.Description()),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins firing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
}

// Stop cancels running jobs and waits for them up to the stop timeout.
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("scheduler: shutdown: %w", err)
	}
	s.log.Info("scheduler stopped")
	return nil
}

// RunNow executes a job synchronously outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (*JobResult, error) {
	s.mu.RLock()
	sj, ok := s.jobs[jobName]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	result := s.execute(ctx, sj)
	return &result, nil
}

func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	name := sj.job.Name()
	start := time.Now()
	err := s.safeRun(ctx, sj.job)
	end := time.Now()

	result := JobResult{
		JobName:     name,
		StartedAt:   start,
		CompletedAt: end,
		Duration:    end.Sub(start),
		Success:     err == nil || errors.Is(err, ErrSkipped),
		Skipped:     errors.Is(err, ErrSkipped),
	}

	switch {
	case result.Skipped:
		s.log.Debug("job skipped", logger.String("job", name), logger.Err(err))
	case err != nil:
		result.Error = err.Error()
		s.log.Error("job failed", logger.String("job", name), logger.Latency(result.Duration), logger.Err(err))
	default:
		s.log.Info("job completed", logger.String("job", name), logger.Latency(result.Duration))
	}

	s.mu.Lock()
	sj.lastRun = start
	sj.runCount++
	if !result.Success {
		sj.failCount++
	}
	s.history = append(s.history, result)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	s.mu.Unlock()

	s.metrics.RecordExecution(name, result.Duration, result.Success)
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// JobInfo contains information about a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run,omitempty"`
	NextRun     time.Time `json:"next_run,omitempty"`
	RunCount    int64     `json:"run_count"`
	FailCount   int64     `json:"fail_count"`
}

// ListJobs returns all registered jobs sorted by name.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, sj := range s.jobs {
		info := JobInfo{
			Name:        sj.job.Name(),
			Description: sj.job.Description(),
			Schedule:    sj.schedule.String(),
			LastRun:     sj.lastRun,
			RunCount:    sj.runCount,
			FailCount:   sj.failCount,
		}
		if next, err := sj.handle.NextRun(); err == nil {
			info.NextRun = next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns up to limit most recent results, newest last.
func (s *Scheduler) History(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]JobResult(nil), h...)
}

// Metrics returns the scheduler metrics.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics counts executions per job.
type Metrics struct {
	mu            sync.Mutex
	executions    map[string]int64
	failures      map[string]int64
	totalDuration map[string]time.Duration
}

// NewMetrics creates empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		executions:    make(map[string]int64),
		failures:      make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
	}
}

// RecordExecution records one run of a job.
func (m *Metrics) RecordExecution(jobName string, d time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions[jobName]++
	m.totalDuration[jobName] += d
	if !success {
		m.failures[jobName]++
	}
}

// MetricsSnapshot is a point-in-time copy of the metrics for one job.
type MetricsSnapshot struct {
	Executions      int64         `json:"executions"`
	Failures        int64         `json:"failures"`
	AverageDuration time.Duration `json:"average_duration"`
}

// Snapshot returns per-job metrics.
func (m *Metrics) Snapshot() map[string]MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]MetricsSnapshot, len(m.executions))
	for name, n := range m.executions {
		out[name] = MetricsSnapshot{
			Executions:      n,
			Failures:        m.failures[name],
			AverageDuration: m.totalDuration[name] / time.Duration(n),
		}
	}
	return out
}

// cronLogger adapts logger.Logger to gocron.Logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, kv(args)...) }
func (l cronLogger) Info(msg string, args ...any)  { l.log.Info(msg, kv(args)...) }
func (l cronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, kv(args)...) }
func (l cronLogger) Error(msg string, args ...any) { l.log.Error(msg, kv(args)...) }

func kv(args []any) []logger.Field {
	fields := make([]logger.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(args[i]), args[i+1]))
	}
	return fields
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNilJob is returned when trying to register a nil job.
	ErrNilJob = errors.New("job cannot be nil")

	// ErrNilSchedule is returned when trying to register a job with an empty schedule.
	ErrNilSchedule = errors.New("schedule cannot be empty")

	// ErrJobAlreadyExists is returned when a job with the same name already exists.
	ErrJobAlreadyExists = errors.New("job already exists")

	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
)
