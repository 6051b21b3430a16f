// Package sweep runs the background reconcile loop: periodically scanning
// for jobs whose agent lease has expired and force-failing them so their
// heatmap accounting doesn't strand a bucket hot forever (spec §4.4
// reconcile, §9 Design Notes on dead-agent detection).
//
// The loop shape is grounded on the teacher's own worker-group idiom
// (fs/mpather.JoggerGroup): an errgroup.Group fans work out per tick, a
// stop channel lets Stop() cancel a loop that's mid-sleep, and an atomic
// counter tracks how many reconciles this process has driven.
package sweep

import (
	"context"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/sner/scheduler/scheduler"
)

// Sweeper periodically reconciles stale running jobs across every queue.
type Sweeper struct {
	svc      *scheduler.SchedulerService
	interval time.Duration
	leaseTTL time.Duration

	stopCh    chan struct{}
	doneCh    chan struct{}
	reconcile atomic.Uint64
}

// New constructs a Sweeper. interval is how often the sweep runs; leaseTTL
// is how long a job may remain non-terminal before it's considered
// abandoned by its agent.
func New(svc *scheduler.SchedulerService, interval, leaseTTL time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
		leaseTTL: leaseTTL,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run blocks, ticking every s.interval until Stop is called or ctx is
// cancelled. Intended to be launched in its own goroutine by the process
// entrypoint.
func (s *Sweeper) Run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				glog.Errorf("sweep: tick failed: %v", err)
			}
		}
	}
}

// Stop signals Run to return and blocks until it has.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// ReconcileCount reports how many jobs this Sweeper has reconciled so far,
// exposed for the stats package to register as a gauge/counter source.
func (s *Sweeper) ReconcileCount() uint64 { return s.reconcile.Load() }

func (s *Sweeper) tick(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.leaseTTL)
	stale, err := s.svc.Store().ListStaleRunningJobs(cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	grp, _ := errgroup.WithContext(ctx)
	for _, job := range stale {
		job := job
		grp.Go(func() error {
			if err := s.svc.Jobs().Reconcile(job); err != nil {
				glog.Warningf("sweep: reconcile job %s failed: %v", job.ID, err)
				return nil // one bad job shouldn't abort the whole sweep
			}
			s.reconcile.Inc()
			glog.Infof("sweep: reconciled stale job %s (queue %s)", job.ID, job.QueueID)
			return nil
		})
	}
	return grp.Wait()
}
