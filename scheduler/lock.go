// Package scheduler implements the rate-limited target scheduler: the
// Heatmap/Readynet bookkeeping, QueueManager, JobManager and
// SchedulerService described by spec §4.
package scheduler

import (
	"time"

	"github.com/sner/scheduler/cmn"
)

// lock is the in-process substitute for pg_advisory_lock(SCHEDULER_LOCK_NUMBER)
// sanctioned by spec §9's Design Notes for single-process deployments: every
// Target/Readynet/Heatmap/Job mutation happens with this lock held, the same
// serialization a single postgres advisory lock gives the teacher's original
// multi-process deployment. A buffered channel of capacity 1 stands in for
// the mutex so acquire can honor a timeout without leaking a goroutine.
type lock struct {
	ch chan struct{}
}

func newLock() *lock {
	return &lock{ch: make(chan struct{}, 1)}
}

// acquire blocks up to timeout for the lock, returning a BusyError (spec's
// SchedulerServiceBusyException) on timeout. timeout<=0 blocks forever, the
// same convention the teacher's get_lock(timeout=0) uses for "no timeout".
func (l *lock) acquire(op string, timeout time.Duration) (func(), error) {
	release := func() { <-l.ch }

	if timeout <= 0 {
		l.ch <- struct{}{}
		return release, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l.ch <- struct{}{}:
		return release, nil
	case <-timer.C:
		return nil, cmn.NewBusyError(op)
	}
}
