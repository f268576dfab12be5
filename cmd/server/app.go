package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
	"github.com/swinetrack/breeding-engine/config"
	"github.com/swinetrack/breeding-engine/jobs"
	"github.com/swinetrack/breeding-engine/lock"
	"github.com/swinetrack/breeding-engine/logging"
	"github.com/swinetrack/breeding-engine/notify"
	"github.com/swinetrack/breeding-engine/store/memory"
	"github.com/swinetrack/breeding-engine/store/postgres"
	"github.com/swinetrack/breeding-engine/store/sqlite"
)

const serviceName = "breeding-engine"

// app holds the wired dependencies shared by every command. The farm's
// calendar day follows scheduler.timezone everywhere.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	clock    breeding.Clock
	registry *prometheus.Registry
	store    breeding.Store
	coord    *breeding.Coordinator
	jobs     jobs.Set
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		clock:    breeding.SystemClock{Location: loc},
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	locker, err := a.openLocker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.coord = breeding.NewCoordinator(a.store,
		breeding.WithClock(a.clock),
		breeding.WithPeriods(cfg.Periods),
		breeding.WithLocker(locker),
		breeding.WithLogger(logger.Named("coordinator")),
	)

	metrics := jobs.NewMetrics(a.registry)
	gen := notify.New(a.store,
		notify.WithClock(a.clock),
		notify.WithPeriods(cfg.Periods),
		notify.WithLogger(logger.Named("notify")),
	)
	a.jobs = jobs.Set{
		HeatExpiry:    jobs.NewHeatExpiryJob(a.coord, metrics, logger.Named("jobs")),
		Weaning:       jobs.NewWeaningJob(a.coord, metrics, logger.Named("jobs")),
		Notifications: jobs.NewNotificationJob(gen, metrics, logger.Named("jobs")),
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(sc.DSN)
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, sc.DSN, postgres.Options{
			MaxOpenConns: sc.MaxOpenConns,
			MaxIdleConns: sc.MaxIdleConns,
		})
		if err != nil {
			return err
		}
		a.store = s
		a.closers = append(a.closers, s.Close)
	case config.DriverMemory:
		a.logger.Warn("using in-memory store; data is lost on exit")
		a.store = memory.New()
	default:
		return fmt.Errorf("unknown store driver %q", sc.Driver)
	}
	return nil
}

func (a *app) openLocker(ctx context.Context) (breeding.Locker, error) {
	lc := a.cfg.Lock
	if lc.Driver != config.LockRedis {
		return lock.NewLocal(), nil
	}
	client := lock.NewRedisClient(lc.Redis.Addr, lc.Redis.Password, lc.Redis.DB)
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", lc.Redis.Addr, err)
	}
	return lock.NewRedis(client, lock.RedisOptions{
		Prefix: lc.Redis.Prefix,
		TTL:    lc.TTL,
		Wait:   lc.Wait,
	}, a.logger.Named("lock")), nil
}

// scheduler registers every job. Jobs whose spec is "-" or with the
// scheduler disabled stay available to RunNow only.
func (a *app) scheduler() (*jobs.Scheduler, error) {
	loc, err := a.cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}
	sched := jobs.NewScheduler(loc, a.clock, a.logger)
	for name, task := range a.jobs.Tasks() {
		spec := ""
		if a.cfg.Scheduler.IsEnabled() {
			spec = a.cfg.Scheduler.Spec(name)
		}
		if err := sched.Register(name, spec, task); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Close releases the store and lock client and flushes the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
