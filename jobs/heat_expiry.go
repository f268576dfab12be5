/*
Package jobs holds the reconciliation jobs that move reproductive state
forward with the calendar, and the cron scheduler that runs them.

JOBS:
  heat-expiry    Closes detected heats whose service window has passed
  weaning        Weans every litter due by today, one litter at a time
  notifications  Runs the notification generator

DESIGN:
  - The jobs hold no domain rules. They call the Coordinator, which takes
    the per-sow lock and re-derives each touched sow.
  - Every run is idempotent: a second run on the same day changes nothing.
  - A run of one job never overlaps another run of the same job, whether
    it was started by cron or by an HTTP trigger.

SEE ALSO:
  - breeding/weaning.go: ExpireHeats, DueLitters, WeanLitter
  - scheduler.go: Cron wiring
*/
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// Job names, used for cron entries, metric labels and `jobs run <name>`.
const (
	HeatExpiry    = "heat-expiry"
	Weaning       = "weaning"
	Notifications = "notifications"
)

// HeatExpiryResult reports one heat-expiry run.
type HeatExpiryResult struct {
	RunID        string                 `json:"run_id"`
	UpdatedCount int                    `json:"updated_count"`
	Details      []breeding.ExpiredHeat `json:"details"`
}

// HeatExpiryJob marks unserviced heats as not-serviced once the service
// window has closed.
type HeatExpiryJob struct {
	coord   *breeding.Coordinator
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewHeatExpiryJob(coord *breeding.Coordinator, metrics *Metrics, logger *zap.Logger) *HeatExpiryJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeatExpiryJob{coord: coord, metrics: metrics, logger: logger.Named(HeatExpiry)}
}

// Run expires every due heat in a single transaction.
func (j *HeatExpiryJob) Run(ctx context.Context) (HeatExpiryResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	res := HeatExpiryResult{RunID: uuid.NewString(), Details: []breeding.ExpiredHeat{}}
	log := j.logger.With(zap.String("run_id", res.RunID))

	expired, err := j.coord.ExpireHeats(ctx)
	j.metrics.observe(HeatExpiry, start, len(expired), err)
	if err != nil {
		log.Error("heat expiry failed", zap.Error(err))
		return res, err
	}
	if expired != nil {
		res.Details = expired
	}
	res.UpdatedCount = len(res.Details)

	log.Info("heat expiry completed",
		zap.Int("updated", res.UpdatedCount),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
