package jobs_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/jobs"
	"github.com/swinetrack/breeding-engine/notify"
	"github.com/swinetrack/breeding-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.June, 30, 9, 0, 0, 0, time.UTC)

// flakyStore fails GetBirth for one birth so that a single litter's
// transaction cannot run.
type flakyStore struct {
	*memory.Memory
	failBirth int64
}

func (s *flakyStore) GetBirth(ctx context.Context, id int64) (*breeding.Birth, error) {
	if id == s.failBirth {
		return nil, errors.New("disk on fire")
	}
	return s.Memory.GetBirth(ctx, id)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *flakyStore
	coord *breeding.Coordinator
	reg   *prometheus.Registry
	m     *jobs.Metrics
}

func newFixture(t *testing.T) *fixture {
	store := &flakyStore{Memory: memory.New()}
	reg := prometheus.NewRegistry()
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		coord: breeding.NewCoordinator(store, breeding.WithClock(breeding.FixedClock{At: now})),
		reg:   reg,
		m:     jobs.NewMetrics(reg),
	}
}

func day(s string) breeding.Date { return breeding.MustDate(s) }

func (f *fixture) sow(tag string) *breeding.Sow {
	f.t.Helper()
	s, err := f.coord.CreateSow(f.ctx, breeding.Sow{EarTag: tag})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) heat(sowID int64, date string) *breeding.Heat {
	f.t.Helper()
	h, _, err := f.coord.RegisterHeat(f.ctx, breeding.Heat{SowID: sowID, HeatDate: day(date)})
	require.NoError(f.t, err)
	return h
}

// farrowed walks a sow through a confirmed pregnancy to a birth on April
// 26th with eight live piglets, due for weaning on May 17th.
func (f *fixture) farrowed(tag string) *breeding.Birth {
	f.t.Helper()
	s := f.sow(tag)
	h := f.heat(s.ID, "2025-01-02")
	svc, _, err := f.coord.RegisterService(f.ctx, breeding.Service{
		SowID: s.ID, HeatID: h.ID, ServiceDate: day("2025-01-02"), ServiceType: breeding.ServiceArtificial,
	})
	require.NoError(f.t, err)
	p, _, err := f.coord.RegisterPregnancy(f.ctx, breeding.Pregnancy{SowID: s.ID, ServiceID: svc.ID, ConceptionDate: day("2025-01-02")})
	require.NoError(f.t, err)
	_, err = f.coord.ConfirmPregnancy(f.ctx, p.ID, breeding.Confirmation{Date: day("2025-01-30"), Method: breeding.ConfirmUltrasound})
	require.NoError(f.t, err)
	b, err := f.coord.CreateBirth(f.ctx, breeding.BirthInput{Birth: breeding.Birth{
		SowID: s.ID, PregnancyID: p.ID, BirthDate: day("2025-04-26"),
		TotalBorn: 9, BornAlive: 8, Mummified: 1,
	}})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) assertMetric(name, expected string) {
	f.t.Helper()
	assert.NoError(f.t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), name))
}

// =============================================================================
// HEAT EXPIRY
// =============================================================================

func TestHeatExpiryJob_ClosesOnlyExpiredHeats(t *testing.T) {
	// GIVEN: One heat ten days old and one from yesterday, neither serviced
	// WHEN: The heat-expiry job runs twice
	// THEN: Only the old heat is closed, and the second run changes nothing

	f := newFixture(t)
	old := f.heat(f.sow("S-1").ID, "2025-06-20")
	fresh := f.heat(f.sow("S-2").ID, "2025-06-29")
	job := jobs.NewHeatExpiryJob(f.coord, f.m, nil)

	res, err := job.Run(f.ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, old.ID, res.Details[0].HeatID)
	assert.Equal(t, "S-1", res.Details[0].SowEarTag)

	h, err := f.store.GetHeat(f.ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, breeding.HeatNotServiced, h.Status)
	h, err = f.store.GetHeat(f.ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, breeding.HeatDetected, h.Status)

	again, err := job.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, again.UpdatedCount)
	assert.NotNil(t, again.Details)

	f.assertMetric("breeding_job_runs_total", `
# HELP breeding_job_runs_total Job runs by outcome.
# TYPE breeding_job_runs_total counter
breeding_job_runs_total{job="heat-expiry",outcome="success"} 2
`)
	f.assertMetric("breeding_job_items_total", `
# HELP breeding_job_items_total Records changed by job runs.
# TYPE breeding_job_items_total counter
breeding_job_items_total{job="heat-expiry"} 1
`)
}

// =============================================================================
// WEANING
// =============================================================================

func TestWeaningJob_WeansDueLitters(t *testing.T) {
	f := newFixture(t)
	birth := f.farrowed("S-1")
	job := jobs.NewWeaningJob(f.coord, f.m, nil)

	res, err := job.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProcessedLitters)
	assert.Equal(t, 8, res.PigletsWeaned)
	assert.Zero(t, res.Failed)
	require.Len(t, res.Litters, 1)
	assert.Equal(t, birth.ID, res.Litters[0].BirthID)
	assert.Equal(t, day("2025-05-17"), res.Litters[0].WeaningDate)

	again, err := job.Run(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, again.ProcessedLitters)
	assert.Zero(t, again.PigletsWeaned)

	single, err := job.WeanLitter(f.ctx, birth.ID)
	require.NoError(t, err)
	assert.True(t, single.AlreadyWeaned)
}

func TestWeaningJob_FailedLitterDoesNotStopRun(t *testing.T) {
	// GIVEN: Two litters due for weaning, one of which cannot be read
	// WHEN: The weaning job runs
	// THEN: The readable litter is weaned and the other is counted as failed

	f := newFixture(t)
	broken := f.farrowed("S-1")
	f.farrowed("S-2")
	f.store.failBirth = broken.ID

	res, err := jobs.NewWeaningJob(f.coord, f.m, nil).Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.ProcessedLitters)
	assert.Equal(t, 8, res.PigletsWeaned)

	piglets, err := f.store.ListPiglets(f.ctx, breeding.PigletFilter{BirthID: broken.ID, CurrentStatus: breeding.PigletLactating})
	require.NoError(t, err)
	assert.Len(t, piglets, 8, "failed litter is left for the next run")

	f.assertMetric("breeding_job_items_total", `
# HELP breeding_job_items_total Records changed by job runs.
# TYPE breeding_job_items_total counter
breeding_job_items_total{job="weaning"} 8
`)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotificationJob_Run(t *testing.T) {
	f := newFixture(t)
	f.heat(f.sow("S-1").ID, "2025-06-27")
	gen := notify.New(f.store, notify.WithClock(breeding.FixedClock{At: now}))

	res, err := jobs.NewNotificationJob(gen, f.m, nil).Run(f.ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.UnservicedHeats)

	f.assertMetric("breeding_job_runs_total", `
# HELP breeding_job_runs_total Job runs by outcome.
# TYPE breeding_job_runs_total counter
breeding_job_runs_total{job="notifications",outcome="success"} 1
`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	f := newFixture(t)
	_, err := jobs.NewHeatExpiryJob(f.coord, nil, nil).Run(f.ctx)
	assert.NoError(t, err)
}

// =============================================================================
// SCHEDULER
// =============================================================================

func TestScheduler_RunNow(t *testing.T) {
	s := jobs.NewScheduler(time.UTC, breeding.FixedClock{At: now}, nil)
	var calls int
	require.NoError(t, s.Register("count", "", func(context.Context) error { calls++; return nil }))
	require.NoError(t, s.Register("fail", "", func(context.Context) error { return errors.New("boom") }))

	require.NoError(t, s.RunNow(context.Background(), "count"))
	assert.Equal(t, 1, calls)

	assert.EqualError(t, s.RunNow(context.Background(), "fail"), "boom")

	err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrUnknownJob)

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "count", entries[0].Name)
	require.NotNil(t, entries[0].LastRun)
	assert.Equal(t, now, entries[0].LastRun.StartedAt)
	assert.Equal(t, "boom", entries[1].LastRun.Error)
}

func TestScheduler_RegisterValidates(t *testing.T) {
	s := jobs.NewScheduler(nil, nil, nil)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register("bad", "every day", noop))
	require.NoError(t, s.Register(jobs.Weaning, "0 3 * * *", noop))
	assert.Error(t, s.Register(jobs.Weaning, "0 4 * * *", noop))
}

func TestScheduler_StartReportsNextRun(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	s := jobs.NewScheduler(loc, nil, nil)
	require.NoError(t, s.Register(jobs.HeatExpiry, "0 2 * * *", func(context.Context) error { return nil }))

	s.Start()
	defer func() { assert.NoError(t, s.Stop(context.Background())) }()

	entries := s.Entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Next)
	next := entries[0].Next.In(loc)
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestScheduler_SerialisesTasks(t *testing.T) {
	// GIVEN: Two tasks that record how many tasks are running
	// WHEN: Both are triggered concurrently many times
	// THEN: Never more than one runs at a time

	s := jobs.NewScheduler(time.UTC, nil, nil)
	var active, peak int32
	task := func(context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
		return nil
	}
	require.NoError(t, s.Register("a", "", task))
	require.NoError(t, s.Register("b", "", task))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, name := range []string{"a", "b"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				assert.NoError(t, s.RunNow(context.Background(), name))
			}(name)
		}
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
