/*
scheduler.go - Cron wiring for the reconciliation jobs

DESIGN:
  - Specs are standard five-field cron expressions evaluated in the
    configured time zone.
  - A single mutex serialises every task, so heat expiry, weaning and
    notification runs never interleave whether started by cron or RunNow.
  - A task registered with an empty spec is manual only.
  - Failures are logged and recorded on the entry; the schedule carries on.

USAGE:
  s := jobs.NewScheduler(loc, clock, logger)
  s.Register(jobs.HeatExpiry, "0 2 * * *", set.Tasks()[jobs.HeatExpiry])
  s.Start()
  defer s.Stop(ctx)
*/
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

var ErrUnknownJob = errors.New("unknown job")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Task is one schedulable unit of work.
type Task func(ctx context.Context) error

// Set groups the reconciliation jobs.
type Set struct {
	HeatExpiry    *HeatExpiryJob
	Weaning       *WeaningJob
	Notifications *NotificationJob
}

// Tasks adapts the jobs of the set to Task, keyed by job name. Nil jobs are
// left out.
func (s Set) Tasks() map[string]Task {
	out := make(map[string]Task, 3)
	if s.HeatExpiry != nil {
		out[HeatExpiry] = func(ctx context.Context) error { _, err := s.HeatExpiry.Run(ctx); return err }
	}
	if s.Weaning != nil {
		out[Weaning] = func(ctx context.Context) error { _, err := s.Weaning.Run(ctx); return err }
	}
	if s.Notifications != nil {
		out[Notifications] = func(ctx context.Context) error { _, err := s.Notifications.Run(ctx); return err }
	}
	return out
}

// RunRecord describes the last completed run of a task.
type RunRecord struct {
	StartedAt time.Time     `json:"started_at"`
	Took      time.Duration `json:"took"`
	Error     string        `json:"error,omitempty"`
}

// EntryStatus is the schedule state of one task.
type EntryStatus struct {
	Name    string     `json:"name"`
	Spec    string     `json:"spec,omitempty"`
	Next    *time.Time `json:"next,omitempty"`
	LastRun *RunRecord `json:"last_run,omitempty"`
}

type task struct {
	name string
	spec string
	run  Task
	id   cron.EntryID
	last *RunRecord
}

type Scheduler struct {
	cron   *cron.Cron
	clock  breeding.Clock
	logger *zap.Logger

	serial sync.Mutex

	mu      sync.Mutex
	tasks   map[string]*task
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(loc *time.Location, clock breeding.Clock, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = breeding.SystemClock{Location: loc}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		clock:  clock,
		logger: logger.Named("scheduler"),
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a task. An empty spec registers it for RunNow only.
func (s *Scheduler) Register(name, spec string, fn Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}
	t := &task{name: name, spec: spec, run: fn}
	if spec != "" {
		sched, err := cronParser.Parse(spec)
		if err != nil {
			return fmt.Errorf("job %q: invalid cron spec %q: %w", name, spec, err)
		}
		t.id = s.cron.Schedule(sched, cron.FuncJob(func() {
			_ = s.execute(s.ctx, name, fn)
		}))
	}
	s.tasks[name] = t
	return nil
}

// Start begins firing scheduled tasks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()

	for _, e := range s.entriesLocked() {
		if e.Next != nil {
			s.logger.Info("job scheduled", zap.String("job", e.Name), zap.String("spec", e.Spec), zap.Time("next", *e.Next))
		}
	}
}

// Stop halts the schedule, cancels running tasks and waits for them until
// ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if !started {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named task immediately, waiting for any task already in
// progress.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, t.name, t.run)
}

// Exclusive runs fn under the same serialisation as scheduled tasks and
// records it as a run of name when name is registered. HTTP triggers use it
// to get the typed result of a job.
func (s *Scheduler) Exclusive(ctx context.Context, name string, fn Task) error {
	return s.execute(ctx, name, fn)
}

// Entries lists registered tasks by name.
func (s *Scheduler) Entries() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entriesLocked()
}

func (s *Scheduler) entriesLocked() []EntryStatus {
	out := make([]EntryStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		e := EntryStatus{Name: t.name, Spec: t.spec}
		if t.spec != "" {
			if next := s.cron.Entry(t.id).Next; !next.IsZero() {
				e.Next = &next
			}
		}
		if t.last != nil {
			last := *t.last
			e.LastRun = &last
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(ctx context.Context, name string, fn Task) error {
	s.serial.Lock()
	defer s.serial.Unlock()

	rec := RunRecord{StartedAt: s.clock.Now()}
	begin := time.Now()
	err := fn(ctx)
	rec.Took = time.Since(begin)
	if err != nil {
		rec.Error = err.Error()
		s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
	}

	s.mu.Lock()
	if t, ok := s.tasks[name]; ok {
		t.last = &rec
	}
	s.mu.Unlock()
	return err
}
