package scheduler

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/sner/scheduler/cmn"
	"github.com/sner/scheduler/store"
)

// QueueManager governs Queue lifecycle and its Target/Readynet bookkeeping
// (spec §4.3). All mutating methods run under the SchedulerService-owned
// lock, matching the teacher's own habit of serializing every write path
// through a single guarded section rather than per-table locking.
type QueueManager struct {
	svc *SchedulerService
}

// NewQueue constructs a Queue record; the caller still has to persist it via
// the Store (spec §3 Queue has no implicit creation side effects beyond the
// row itself).
func NewQueue(name string, reqs []string, groupSize, priority int, config, dataAbspath string) *store.Queue {
	return &store.Queue{
		ID:          uuid.NewString(),
		Name:        name,
		Active:      true,
		Priority:    priority,
		Reqs:        reqs,
		GroupSize:   groupSize,
		Config:      config,
		DataAbspath: dataAbspath,
	}
}

// Enqueue adds targets to queue (spec §4.3 enqueue): each non-blank target
// is hashed, inserted, and — unless its bucket is already hot — given a
// Readynet row so job_assign can find it immediately.
func (qm *QueueManager) Enqueue(queue *store.Queue, targets []string) error {
	var toInsert []*store.Target
	for _, raw := range targets {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		toInsert = append(toInsert, &store.Target{
			ID:      uuid.NewString(),
			QueueID: queue.ID,
			Target:  t,
			Hashval: Hashval(t),
		})
	}
	if len(toInsert) == 0 {
		return nil
	}

	return qm.svc.withLock("enqueue", 0, func() error {
		hashvals, err := qm.svc.store.InsertTargets(toInsert)
		if err != nil {
			return err
		}

		cfg := cmn.GCO.Get()
		var hashvalList []string
		for hv := range hashvals {
			hashvalList = append(hashvalList, hv)
		}
		hot, err := qm.svc.store.HeatmapHotSubset(hashvalList, cfg.Heatmap.HotLevel)
		if err != nil {
			return err
		}
		hotSet := make(map[string]struct{}, len(hot))
		for _, hv := range hot {
			hotSet[hv] = struct{}{}
		}

		for hv := range hashvals {
			if _, isHot := hotSet[hv]; isHot {
				continue
			}
			if err := qm.svc.store.PutReadynet(queue.ID, hv); err != nil {
				return err
			}
		}
		return nil
	})
}

// Flush removes every Target and Readynet row belonging to queue, without
// touching its Jobs (spec §4.3 flush).
func (qm *QueueManager) Flush(queue *store.Queue) error {
	return qm.svc.withLock("flush", 0, func() error {
		return qm.svc.store.DeleteTargetsForQueue(queue.ID)
	})
}

// Prune deletes every Job belonging to queue (spec §4.3 prune); it leaves
// the queue's Targets/Readynets alone, unlike Flush. A still-running job
// makes JobManager.Delete refuse, and Prune returns that error at the first
// such job; jobs deleted before it stay deleted.
func (qm *QueueManager) Prune(queue *store.Queue) error {
	jobs, err := qm.svc.store.ListJobsForQueue(queue.ID, false)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := qm.svc.jobs.Delete(j); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes queue entirely: every Job (and its output), then its data
// directory, then the Target/Readynet rows, then the Queue record itself
// (spec §4.3 delete).
func (qm *QueueManager) Delete(queue *store.Queue) error {
	jobs, err := qm.svc.store.ListJobsForQueue(queue.ID, false)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if err := qm.svc.jobs.Delete(j); err != nil {
			return err
		}
	}

	if _, err := os.Stat(queue.DataAbspath); err == nil {
		if err := os.Remove(queue.DataAbspath); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	return qm.svc.withLock("queue-delete", 0, func() error {
		if err := qm.svc.store.DeleteTargetsForQueue(queue.ID); err != nil {
			return err
		}
		return qm.svc.store.DeleteQueueRecord(queue)
	})
}
