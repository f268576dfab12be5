package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/notify"
)

// NotificationRunResult reports one generator run.
type NotificationRunResult struct {
	RunID string `json:"run_id"`
	notify.Summary
}

// NotificationJob runs the notification generator.
type NotificationJob struct {
	gen     *notify.Generator
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewNotificationJob(gen *notify.Generator, metrics *Metrics, logger *zap.Logger) *NotificationJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationJob{gen: gen, metrics: metrics, logger: logger.Named(Notifications)}
}

// Run evaluates every notification rule once. A failing rule does not stop
// the others; its error is returned alongside the partial summary.
func (j *NotificationJob) Run(ctx context.Context) (NotificationRunResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	res := NotificationRunResult{RunID: uuid.NewString()}

	sum, err := j.gen.Run(ctx)
	res.Summary = sum
	j.metrics.observe(Notifications, start, sum.Created()+sum.Purged, err)
	if err != nil {
		j.logger.Warn("notification run finished with errors",
			zap.String("run_id", res.RunID), zap.Strings("errors", sum.Errors))
		return res, err
	}
	j.logger.Debug("notification run completed",
		zap.String("run_id", res.RunID), zap.Duration("took", time.Since(start)))
	return res, nil
}
