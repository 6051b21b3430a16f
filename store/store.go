package store

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/sner/scheduler/cmn"
)

// Store wraps a single buntdb database holding every scheduler relation.
// All mutating methods run inside a buntdb.Update transaction, giving the
// "commit atomically, see a consistent snapshot" guarantee spec §5 demands
// of a single locked section; the caller (scheduler.SchedulerService) is
// still responsible for the process-wide advisory lock that serializes
// *callers*, since buntdb's own transaction lock only protects the
// in-memory btree, not the higher-level Target/Readynet/Heatmap invariants
// that span several keys.
type Store struct {
	db *buntdb.DB
}

// Open opens (creating if necessary) the buntdb file at path. Pass
// ":memory:" for a non-persistent store, the idiom buntdb itself defines
// and that this package's tests rely on.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.NewStorageError(err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func ascendPrefix(tx *buntdb.Tx, prefix string, fn func(key, value string) bool) error {
	return tx.AscendGreaterOrEqual("", prefix, func(key, value string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		return fn(key, value)
	})
}

// ---------------------------------------------------------------- Queue ---

func (s *Store) CreateQueue(q *Queue) error {
	data, err := jsonMarshal(q)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(queueNameKey(q.Name)); err == nil {
			return fmt.Errorf("queue %q already exists", q.Name)
		}
		if _, _, err := tx.Set(queueKey(q.ID), string(data), nil); err != nil {
			return err
		}
		_, _, err := tx.Set(queueNameKey(q.Name), q.ID, nil)
		return err
	})
}

func (s *Store) GetQueue(id string) (*Queue, error) {
	var q Queue
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(queueKey(id))
		if err != nil {
			if err == buntdb.ErrNotFound {
				return cmn.NewNotFoundError("queue", id)
			}
			return err
		}
		return jsonUnmarshal([]byte(val), &q)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (s *Store) GetQueueByName(name string) (*Queue, error) {
	var id string
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(queueNameKey(name))
		if err != nil {
			if err == buntdb.ErrNotFound {
				return cmn.NewNotFoundError("queue", name)
			}
			return err
		}
		id = val
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetQueue(id)
}

func (s *Store) ListQueues() ([]*Queue, error) {
	var queues []*Queue
	err := s.db.View(func(tx *buntdb.Tx) error {
		return ascendPrefix(tx, "q:", func(key, value string) bool {
			var q Queue
			if err := jsonUnmarshal([]byte(value), &q); err == nil {
				queues = append(queues, &q)
			}
			return true
		})
	})
	return queues, err
}

// DeleteQueueRecord removes only the Queue row itself (Target/Readynet rows
// must already be gone via DeleteTargetsForQueue, Jobs via the caller's prune).
func (s *Store) DeleteQueueRecord(q *Queue) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(queueKey(q.ID)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		if _, err := tx.Delete(queueNameKey(q.Name)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// -------------------------------------------------------------- Targets ---

// InsertTargets bulk-inserts targets (spec §4.3 enqueue step 1) and returns
// the distinct hashvals just inserted (step 2), all within one transaction.
func (s *Store) InsertTargets(targets []*Target) (map[string]struct{}, error) {
	hashvals := make(map[string]struct{})
	err := s.db.Update(func(tx *buntdb.Tx) error {
		for _, t := range targets {
			data, err := jsonMarshal(t)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(targetKey(t.ID), string(data), nil); err != nil {
				return err
			}
			if _, _, err := tx.Set(targetIdxKey(t.QueueID, t.Hashval, t.ID), "", nil); err != nil {
				return err
			}
			if err := incrHashQueueCount(tx, t.Hashval, t.QueueID, 1); err != nil {
				return err
			}
			hashvals[t.Hashval] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, cmn.NewStorageError(err)
	}
	return hashvals, nil
}

// DeleteTargetsForQueue implements QueueManager.flush's target half: every
// Target and Readynet row for queueID is removed.
func (s *Store) DeleteTargetsForQueue(queueID string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var targetIDs, idxKeys, idxHashvals []string
		if err := ascendPrefix(tx, "tidx:"+queueID+sep, func(key, _ string) bool {
			idxKeys = append(idxKeys, key)
			targetIDs = append(targetIDs, lastSegment(key))
			idxHashvals = append(idxHashvals, segmentAt(key, 1))
			return true
		}); err != nil {
			return err
		}
		for i, id := range targetIDs {
			if _, err := tx.Delete(targetKey(id)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
			if _, err := tx.Delete(idxKeys[i]); err != nil && err != buntdb.ErrNotFound {
				return err
			}
			if err := incrHashQueueCount(tx, idxHashvals[i], queueID, -1); err != nil {
				return err
			}
		}

		var rnKeys, rnhKeys []string
		if err := ascendPrefix(tx, readynetQueuePrefix(queueID), func(key, _ string) bool {
			rnKeys = append(rnKeys, key)
			hashval := lastSegment(key)
			rnhKeys = append(rnhKeys, readynetHashKey(hashval, queueID))
			return true
		}); err != nil {
			return err
		}
		for _, k := range rnKeys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		for _, k := range rnhKeys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

// RandomTarget is the tuple SchedulerService._pop_random_target returns.
type RandomTarget struct {
	ID      string
	Target  string
	Hashval string
}

// PopRandomTarget implements spec §4.5 _pop_random_target end to end inside
// a single transaction: pick a random Readynet for queueID, pick a random
// Target within it, delete the Target, and prune the Readynet row if it was
// the last Target for that (queue, hashval).
func (s *Store) PopRandomTarget(queueID string) (*RandomTarget, error) {
	var result *RandomTarget
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var hashvals []string
		if err := ascendPrefix(tx, readynetQueuePrefix(queueID), func(key, _ string) bool {
			hashvals = append(hashvals, lastSegment(key))
			return true
		}); err != nil {
			return err
		}
		if len(hashvals) == 0 {
			return nil // no work; result stays nil
		}
		hashval := hashvals[rand.Intn(len(hashvals))]

		var idxKeys, ids []string
		if err := ascendPrefix(tx, targetIdxPrefix(queueID, hashval), func(key, _ string) bool {
			idxKeys = append(idxKeys, key)
			ids = append(ids, lastSegment(key))
			return true
		}); err != nil {
			return err
		}
		if len(ids) == 0 {
			// Readynet row outlived its targets (shouldn't happen); drop it.
			tx.Delete(readynetKey(queueID, hashval))
			tx.Delete(readynetHashKey(hashval, queueID))
			return nil
		}
		choice := rand.Intn(len(ids))
		id, idxKey := ids[choice], idxKeys[choice]

		targetVal, err := tx.Get(targetKey(id))
		if err != nil {
			return err
		}
		var t Target
		if err := jsonUnmarshal([]byte(targetVal), &t); err != nil {
			return err
		}

		if _, err := tx.Delete(targetKey(id)); err != nil {
			return err
		}
		if _, err := tx.Delete(idxKey); err != nil {
			return err
		}
		if err := incrHashQueueCount(tx, hashval, queueID, -1); err != nil {
			return err
		}

		if len(ids) == 1 {
			tx.Delete(readynetKey(queueID, hashval))
			tx.Delete(readynetHashKey(hashval, queueID))
		}

		result = &RandomTarget{ID: id, Target: t.Target, Hashval: hashval}
		return nil
	})
	if err != nil {
		return nil, cmn.NewStorageError(err)
	}
	return result, nil
}

// ------------------------------------------------------------- Readynet ---

func (s *Store) PutReadynet(queueID, hashval string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		return putReadynetTx(tx, queueID, hashval)
	})
}

func putReadynetTx(tx *buntdb.Tx, queueID, hashval string) error {
	// on-conflict-do-nothing: Set with an identical value is a harmless
	// overwrite, matching the teacher's pg_insert(...).on_conflict_do_nothing.
	if _, _, err := tx.Set(readynetKey(queueID, hashval), "", nil); err != nil {
		return err
	}
	_, _, err := tx.Set(readynetHashKey(hashval, queueID), "", nil)
	return err
}

// HasReadynet reports whether queueID has at least one Readynet row,
// i.e. at least one cool bucket with enqueued targets (used by
// _get_assignment_queue's "queue.id.in_(select distinct Readynet.queue_id)"
// filter).
func (s *Store) HasReadynet(queueID string) (bool, error) {
	found := false
	err := s.db.View(func(tx *buntdb.Tx) error {
		return ascendPrefix(tx, readynetQueuePrefix(queueID), func(_, _ string) bool {
			found = true
			return false
		})
	})
	return found, err
}

// DeleteReadynetsByHashval removes every Readynet row with the given
// hashval across all queues (heatmap_put's "bucket became hot everywhere").
func (s *Store) DeleteReadynetsByHashval(hashval string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var queueIDs []string
		if err := ascendPrefix(tx, readynetHashPrefix(hashval), func(key, _ string) bool {
			queueIDs = append(queueIDs, lastSegment(key))
			return true
		}); err != nil {
			return err
		}
		for _, qid := range queueIDs {
			if _, err := tx.Delete(readynetKey(qid, hashval)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
			if _, err := tx.Delete(readynetHashKey(hashval, qid)); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

// DistinctQueuesForHashval returns every queue_id that currently has at
// least one Target with the given hashval (heatmap_pop's cool-down scan).
func (s *Store) DistinctQueuesForHashval(hashval string) ([]string, error) {
	var queueIDs []string
	err := s.db.View(func(tx *buntdb.Tx) error {
		return ascendPrefix(tx, hashQueuePrefix(hashval), func(key, value string) bool {
			if n, _ := strconv.Atoi(value); n > 0 {
				queueIDs = append(queueIDs, lastSegment(key))
			}
			return true
		})
	})
	return queueIDs, err
}

func incrHashQueueCount(tx *buntdb.Tx, hashval, queueID string, delta int) error {
	key := hashQueueCountKey(hashval, queueID)
	cur := 0
	if v, err := tx.Get(key); err == nil {
		cur, _ = strconv.Atoi(v)
	} else if err != buntdb.ErrNotFound {
		return err
	}
	next := cur + delta
	if next <= 0 {
		if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	}
	_, _, err := tx.Set(key, strconv.Itoa(next), nil)
	return err
}

// -------------------------------------------------------------- Heatmap ---

// HeatmapIncr implements heatmap_put's upsert-increment.
func (s *Store) HeatmapIncr(hashval string) (int, error) {
	var count int
	err := s.db.Update(func(tx *buntdb.Tx) error {
		cur := 0
		if v, err := tx.Get(heatmapKey(hashval)); err == nil {
			cur, _ = strconv.Atoi(v)
		} else if err != buntdb.ErrNotFound {
			return err
		}
		count = cur + 1
		_, _, err := tx.Set(heatmapKey(hashval), strconv.Itoa(count), nil)
		return err
	})
	if err != nil {
		return 0, cmn.NewStorageError(err)
	}
	return count, nil
}

// HeatmapDecr implements heatmap_pop's upsert-decrement. Per spec §9's
// Design Notes, pop is never called on an absent key in practice; we still
// tolerate it by clamping at 0 rather than going negative, mirroring the
// teacher's own defensive upsert.
func (s *Store) HeatmapDecr(hashval string) (int, error) {
	var count int
	err := s.db.Update(func(tx *buntdb.Tx) error {
		cur := 0
		if v, err := tx.Get(heatmapKey(hashval)); err == nil {
			cur, _ = strconv.Atoi(v)
		} else if err != buntdb.ErrNotFound {
			return err
		}
		count = cur - 1
		if count < 0 {
			count = 0
		}
		_, _, err := tx.Set(heatmapKey(hashval), strconv.Itoa(count), nil)
		return err
	})
	if err != nil {
		return 0, cmn.NewStorageError(err)
	}
	return count, nil
}

func (s *Store) HeatmapGet(hashval string) (int, bool, error) {
	var count int
	found := false
	err := s.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(heatmapKey(hashval))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		count, _ = strconv.Atoi(v)
		return nil
	})
	return count, found, err
}

// HeatmapHotSubset implements grep_hot_hashvals: the subset of hashvals
// currently at or above hotLevel.
func (s *Store) HeatmapHotSubset(hashvals []string, hotLevel int) ([]string, error) {
	var hot []string
	err := s.db.View(func(tx *buntdb.Tx) error {
		for _, h := range hashvals {
			v, err := tx.Get(heatmapKey(h))
			if err == buntdb.ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			if n, _ := strconv.Atoi(v); n >= hotLevel {
				hot = append(hot, h)
			}
		}
		return nil
	})
	return hot, err
}

// HeatmapGCZeros opportunistically deletes count=0 Heatmap rows, called
// with HEATMAP_GC_PROBABILITY odds by the caller.
func (s *Store) HeatmapGCZeros() error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var zeroKeys []string
		if err := ascendPrefix(tx, heatmapPrefix(), func(key, value string) bool {
			if n, _ := strconv.Atoi(value); n == 0 {
				zeroKeys = append(zeroKeys, key)
			}
			return true
		}); err != nil {
			return err
		}
		for _, k := range zeroKeys {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

// CountHeatmap returns the number of distinct hashvals currently tracked in
// the Heatmap relation, for gauge reporting.
func (s *Store) CountHeatmap() (int, error) {
	return s.countPrefix(heatmapPrefix())
}

// CountReadynet returns the number of (queue_id, hashval) Readynet rows
// currently pickable, for gauge reporting.
func (s *Store) CountReadynet() (int, error) {
	return s.countPrefix("rn:")
}

func (s *Store) countPrefix(prefix string) (int, error) {
	n := 0
	err := s.db.View(func(tx *buntdb.Tx) error {
		return ascendPrefix(tx, prefix, func(key, value string) bool {
			n++
			return true
		})
	})
	return n, err
}

// ------------------------------------------------------------------ Job ---

func (s *Store) CreateJob(j *Job) error {
	data, err := jsonMarshal(j)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(jobKey(j.ID), string(data), nil); err != nil {
			return err
		}
		_, _, err := tx.Set(jobQueueKey(j.QueueID, j.ID), "", nil)
		return err
	})
}

func (s *Store) GetJob(id string) (*Job, error) {
	var j Job
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(jobKey(id))
		if err != nil {
			if err == buntdb.ErrNotFound {
				return cmn.NewNotFoundError("job", id)
			}
			return err
		}
		return jsonUnmarshal([]byte(val), &j)
	})
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) SaveJob(j *Job) error {
	data, err := jsonMarshal(j)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(jobKey(j.ID), string(data), nil)
		return err
	})
}

func (s *Store) DeleteJob(j *Job) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(jobKey(j.ID)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		if _, err := tx.Delete(jobQueueKey(j.QueueID, j.ID)); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
}

// ListJobsForQueue lists every Job belonging to queueID; when
// nonTerminalOnly is set, only jobs with Retval == nil are returned
// (QueueManager.Prune and QueueManager.Delete list with nonTerminalOnly
// false; the sweep finds its candidates through ListStaleRunningJobs).
func (s *Store) ListJobsForQueue(queueID string, nonTerminalOnly bool) ([]*Job, error) {
	var jobs []*Job
	err := s.db.View(func(tx *buntdb.Tx) error {
		var ids []string
		if err := ascendPrefix(tx, jobQueuePrefix(queueID), func(key, _ string) bool {
			ids = append(ids, lastSegment(key))
			return true
		}); err != nil {
			return err
		}
		for _, id := range ids {
			val, err := tx.Get(jobKey(id))
			if err == buntdb.ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			var j Job
			if err := jsonUnmarshal([]byte(val), &j); err != nil {
				return err
			}
			if nonTerminalOnly && j.IsTerminal() {
				continue
			}
			jobs = append(jobs, &j)
		}
		return nil
	})
	return jobs, err
}

// ListStaleRunningJobs returns every non-terminal Job across all queues
// started before cutoff — the candidate set for the reconcile sweep.
func (s *Store) ListStaleRunningJobs(cutoff time.Time) ([]*Job, error) {
	var jobs []*Job
	err := s.db.View(func(tx *buntdb.Tx) error {
		return ascendPrefix(tx, "j:", func(_, value string) bool {
			var j Job
			if err := jsonUnmarshal([]byte(value), &j); err != nil {
				return true
			}
			if !j.IsTerminal() && j.TimeStart.Before(cutoff) {
				jobs = append(jobs, &j)
			}
			return true
		})
	})
	return jobs, err
}
