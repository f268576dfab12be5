package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// WeaningRunResult reports one weaning run. Failed counts litters whose
// transaction was rolled back; they are retried by the next run.
type WeaningRunResult struct {
	RunID            string                   `json:"run_id"`
	ProcessedLitters int                      `json:"processed_litters"`
	PigletsWeaned    int                      `json:"piglets_weaned"`
	Failed           int                      `json:"failed"`
	Litters          []breeding.LitterWeaning `json:"litters"`
}

// WeaningJob weans litters whose expected weaning date has arrived.
type WeaningJob struct {
	coord   *breeding.Coordinator
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.Mutex
}

func NewWeaningJob(coord *breeding.Coordinator, metrics *Metrics, logger *zap.Logger) *WeaningJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeaningJob{coord: coord, metrics: metrics, logger: logger.Named(Weaning)}
}

// Run weans every due litter. Each litter is its own transaction; a failure
// is logged and counted and the loop moves on.
func (j *WeaningJob) Run(ctx context.Context) (WeaningRunResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	res := WeaningRunResult{RunID: uuid.NewString(), Litters: []breeding.LitterWeaning{}}
	log := j.logger.With(zap.String("run_id", res.RunID))

	due, err := j.coord.DueLitters(ctx)
	if err != nil {
		j.metrics.observe(Weaning, start, 0, err)
		log.Error("failed to list litters due for weaning", zap.Error(err))
		return res, err
	}

	for _, b := range due {
		if err := ctx.Err(); err != nil {
			j.metrics.observe(Weaning, start, res.PigletsWeaned, err)
			return res, err
		}
		w, err := j.coord.WeanLitter(ctx, b.ID)
		if err != nil {
			res.Failed++
			log.Error("failed to wean litter",
				zap.Int64("birth_id", b.ID),
				zap.Int64("sow_id", b.SowID),
				zap.Error(err))
			continue
		}
		if w.AlreadyWeaned {
			continue
		}
		res.ProcessedLitters++
		res.PigletsWeaned += w.PigletsWeaned
		res.Litters = append(res.Litters, *w)
	}

	j.metrics.observe(Weaning, start, res.PigletsWeaned, nil)
	log.Info("weaning completed",
		zap.Int("litters", res.ProcessedLitters),
		zap.Int("piglets", res.PigletsWeaned),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

// WeanLitter weans a single litter on demand.
func (j *WeaningJob) WeanLitter(ctx context.Context, birthID int64) (*breeding.LitterWeaning, error) {
	return j.coord.WeanLitter(ctx, birthID)
}
