package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records job outcomes. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds the job collectors and registers them on reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breeding_job_runs_total",
			Help: "Job runs by outcome.",
		}, []string{"job", "outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breeding_job_items_total",
			Help: "Records changed by job runs.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "breeding_job_duration_seconds",
			Help:    "Job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.items, m.duration)
	}
	return m
}

func (m *Metrics) observe(job string, start time.Time, items int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(job, outcome).Inc()
	m.items.WithLabelValues(job).Add(float64(items))
	m.duration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
