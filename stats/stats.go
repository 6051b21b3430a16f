// Package stats registers the scheduler's runtime counters and gauges
// against a prometheus.Registry (prometheus/client_golang is a direct
// dependency the teacher repository itself carries). spec's transport/UI
// layer is explicitly out of scope, so this package stops at the Registry:
// no HTTP exposition handler is wired up here, that belongs to whatever
// process embeds the scheduler.
package stats

import "github.com/prometheus/client_golang/prometheus"

// Naming follows the teacher's own stats package convention of grouping
// related counters under a single dotted/underscored namespace rather than
// ad hoc names per call site.
const namespace = "scheduler"

// Stats is the set of metrics SchedulerService, QueueManager, JobManager
// and the sweep daemon update as they run.
type Stats struct {
	HeatmapSize     prometheus.Gauge
	ReadynetSize    prometheus.Gauge
	JobsAssigned    prometheus.Counter
	JobsFinished    prometheus.Counter
	JobsReconciled  prometheus.Counter
	LockWaitSeconds prometheus.Histogram
	LockHeldSeconds prometheus.Histogram
}

// Refresh sets the two size gauges from freshly-counted store totals. Called
// after every locked section that might have changed heatmap/readynet
// membership, rather than incrementally, since deletions happen in bulk
// (DeleteReadynetsByHashval, HeatmapGCZeros) and are cheaper to recount than
// to track exactly through every code path that can shrink them.
func (s *Stats) Refresh(heatmapSize, readynetSize int) {
	s.HeatmapSize.Set(float64(heatmapSize))
	s.ReadynetSize.Set(float64(readynetSize))
}

// New creates the metric set and registers it against reg. Call once per
// process; reg is typically a fresh prometheus.NewRegistry() rather than
// the global DefaultRegisterer, so tests can create independent instances.
func New(reg prometheus.Registerer) *Stats {
	s := &Stats{
		HeatmapSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heatmap_size",
			Help:      "Number of distinct hashval buckets currently tracked in the heatmap.",
		}),
		ReadynetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "readynet_size",
			Help:      "Number of (queue, hashval) readynet rows currently eligible for assignment.",
		}),
		JobsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_assigned_total",
			Help:      "Total number of jobs created by job_assign.",
		}),
		JobsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs completed via job_output.",
		}),
		JobsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_reconciled_total",
			Help:      "Total number of jobs force-failed by the reconcile sweep.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting to acquire the scheduler advisory lock.",
			Buckets:   prometheus.DefBuckets,
		}),
		LockHeldSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_held_seconds",
			Help:      "Time the scheduler advisory lock was held per critical section.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		s.HeatmapSize,
		s.ReadynetSize,
		s.JobsAssigned,
		s.JobsFinished,
		s.JobsReconciled,
		s.LockWaitSeconds,
		s.LockHeldSeconds,
	)
	return s
}
