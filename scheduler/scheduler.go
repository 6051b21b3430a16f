package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/sner/scheduler/cmn"
	"github.com/sner/scheduler/stats"
	"github.com/sner/scheduler/store"
)

// SchedulerService is the rate-limiting scheduling service (nacelnik.mk1
// design, spec §1/§4.5): it owns the process-wide advisory lock substitute
// and the Heatmap/Readynet bookkeeping that QueueManager and JobManager
// mutate under that lock.
//
// Naive queue/target scanning does not scale with large queues; maintaining
// the Readynet pre-computed index is what lets job_assign and job_output
// run in time proportional to one bucket rather than one full table scan.
type SchedulerService struct {
	store     *store.Store
	lock      *lock
	blacklist *ExclMatcher
	queues    *QueueManager
	jobs      *JobManager
	now       func() time.Time
	stats     *stats.Stats
}

// New wires a SchedulerService against an opened Store and the process-wide
// config (cmn.GCO); blacklistPath is cmn.BlacklistConf.SourcePath. metrics
// may be nil, in which case lock/job metrics are simply not recorded.
func New(st *store.Store, blacklistPath string, metrics *stats.Stats) *SchedulerService {
	svc := &SchedulerService{
		store:     st,
		lock:      newLock(),
		blacklist: NewExclMatcher(blacklistPath),
		now:       defaultNow,
		stats:     metrics,
	}
	svc.queues = &QueueManager{svc: svc}
	svc.jobs = &JobManager{svc: svc}
	return svc
}

func (svc *SchedulerService) Queues() *QueueManager { return svc.queues }
func (svc *SchedulerService) Jobs() *JobManager     { return svc.jobs }
func (svc *SchedulerService) Store() *store.Store   { return svc.store }

// withLock acquires the advisory lock for op within timeout, recording wait
// and hold durations to svc.stats when present, and runs fn while holding it.
func (svc *SchedulerService) withLock(op string, timeout time.Duration, fn func() error) error {
	waitStart := svc.now()
	release, err := svc.lock.acquire(op, timeout)
	if err != nil {
		return err
	}
	heldStart := svc.now()
	if svc.stats != nil {
		svc.stats.LockWaitSeconds.Observe(heldStart.Sub(waitStart).Seconds())
	}
	defer func() {
		release()
		if svc.stats != nil {
			svc.stats.LockHeldSeconds.Observe(svc.now().Sub(heldStart).Seconds())
			if hm, err := svc.store.CountHeatmap(); err == nil {
				if rn, err := svc.store.CountReadynet(); err == nil {
					svc.stats.Refresh(hm, rn)
				}
			}
		}
	}()
	return fn()
}

func (svc *SchedulerService) jobAssignTimeout() time.Duration {
	return cmn.GCO.Get().Timeout.JobAssign
}

func (svc *SchedulerService) jobOutputTimeout() time.Duration {
	return cmn.GCO.Get().Timeout.JobOutput
}

// heatmapPut accounts a bucket hit (spec §4.2 heatmap_put): increments the
// Heatmap counter and, once it reaches hot_level, deletes every Readynet row
// for that hashval across all queues so no further assignment picks it up
// until it cools down again.
func (svc *SchedulerService) heatmapPut(hashval string) (int, error) {
	count, err := svc.store.HeatmapIncr(hashval)
	if err != nil {
		return 0, err
	}
	if count >= cmn.GCO.Get().Heatmap.HotLevel {
		if err := svc.store.DeleteReadynetsByHashval(hashval); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// heatmapPop accounts a bucket release (spec §4.2 heatmap_pop): decrements
// the Heatmap counter, opportunistically garbage-collects zeroed rows, and
// — if the transition crossed exactly from hot_level down to hot_level-1 —
// re-activates the bucket by inserting a Readynet row for every queue that
// still holds a Target with this hashval.
func (svc *SchedulerService) heatmapPop(hashval string) (int, error) {
	cfg := cmn.GCO.Get()

	prevCount, found, err := svc.store.HeatmapGet(hashval)
	if err != nil {
		return 0, err
	}
	wasHot := found && prevCount == cfg.Heatmap.HotLevel

	count, err := svc.store.HeatmapDecr(hashval)
	if err != nil {
		return 0, err
	}

	if rand.Float64() < cfg.Heatmap.GCProbability {
		if err := svc.store.HeatmapGCZeros(); err != nil {
			return 0, err
		}
	}

	if wasHot {
		queueIDs, err := svc.store.DistinctQueuesForHashval(hashval)
		if err != nil {
			return 0, err
		}
		for _, qid := range queueIDs {
			if err := svc.store.PutReadynet(qid, hashval); err != nil {
				return 0, err
			}
		}
	}

	return count, nil
}

// GrepHotHashvals returns the subset of hashvals currently at or above
// hot_level (spec §4.2 grep_hot_hashvals).
func (svc *SchedulerService) GrepHotHashvals(hashvals []string) ([]string, error) {
	return svc.store.HeatmapHotSubset(hashvals, cmn.GCO.Get().Heatmap.HotLevel)
}

// getAssignmentQueue selects the queue job_assign should draw from (spec
// §4.5 _get_assignment_queue): active, client capabilities satisfy its
// requirements, it has at least one Readynet row, and — if the caller named
// one — matching name; among candidates, highest priority wins, ties broken
// at random.
func (svc *SchedulerService) getAssignmentQueue(queueName string, clientCaps []string) (*store.Queue, error) {
	capSet := make(map[string]struct{}, len(clientCaps))
	for _, c := range clientCaps {
		capSet[c] = struct{}{}
	}

	queues, err := svc.store.ListQueues()
	if err != nil {
		return nil, err
	}

	var candidates []*store.Queue
	for _, q := range queues {
		if !q.Active {
			continue
		}
		if queueName != "" && q.Name != queueName {
			continue
		}
		if !reqsSatisfied(q.Reqs, capSet) {
			continue
		}
		has, err := svc.store.HasReadynet(q.ID)
		if err != nil {
			return nil, err
		}
		if !has {
			continue
		}
		candidates = append(candidates, q)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	top := candidates[0].Priority
	var topTier []*store.Queue
	for _, q := range candidates {
		if q.Priority == top {
			topTier = append(topTier, q)
		} else {
			break
		}
	}
	return topTier[rand.Intn(len(topTier))], nil
}

func reqsSatisfied(reqs []string, capSet map[string]struct{}) bool {
	for _, r := range reqs {
		if _, ok := capSet[r]; !ok {
			return false
		}
	}
	return true
}

// JobAssign assigns work to a requesting agent (spec §4.5 job_assign):
// select a queue, pop random targets up to group_size (skipping
// blacklisted ones without counting them), account each popped target in
// the heatmap, and create a Job iff any targets were actually assigned.
// An empty Assignment (nowork) is returned, not an error, when there is
// nothing to assign — the same "{}"-as-nowork convention spec §4.5 and §6
// describe.
func (svc *SchedulerService) JobAssign(queueName string, clientCaps []string) (*Assignment, error) {
	var assignment *Assignment
	err := svc.withLock("job_assign", svc.jobAssignTimeout(), func() error {
		queue, err := svc.getAssignmentQueue(queueName, clientCaps)
		if err != nil {
			return err
		}
		if queue == nil {
			assignment = &Assignment{}
			return nil
		}

		var assigned []string
		for len(assigned) < queue.GroupSize {
			rtarget, err := svc.store.PopRandomTarget(queue.ID)
			if err != nil {
				return err
			}
			if rtarget == nil {
				break
			}
			if svc.blacklist.Match(rtarget.Target) {
				continue
			}
			assigned = append(assigned, rtarget.Target)
			if _, err := svc.heatmapPut(rtarget.Hashval); err != nil {
				return err
			}
		}

		if len(assigned) == 0 {
			assignment = &Assignment{}
			return nil
		}
		assignment, err = svc.jobs.Create(queue, assigned)
		if err == nil && svc.stats != nil {
			svc.stats.JobsAssigned.Inc()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// JobOutput receives an agent's result for a previously assigned job (spec
// §4.5 job_output): writeback the output, then release each target's
// heatmap accounting so its bucket can cool back down.
func (svc *SchedulerService) JobOutput(j *store.Job, retval int, out []byte) error {
	return svc.withLock("job_output", svc.jobOutputTimeout(), func() error {
		var assignment Assignment
		if err := jobJSON.UnmarshalFromString(j.Assignment, &assignment); err != nil {
			return err
		}

		if err := svc.jobs.Finish(j, retval, out); err != nil {
			return err
		}
		for _, target := range assignment.Targets {
			if _, err := svc.heatmapPop(Hashval(target)); err != nil {
				return err
			}
		}
		if svc.stats != nil {
			svc.stats.JobsFinished.Inc()
		}
		return nil
	})
}
