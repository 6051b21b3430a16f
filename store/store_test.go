package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetQueue(t *testing.T) {
	st := openTestStore(t)

	q := &Queue{ID: "q1", Name: "basic", Active: true, Priority: 10, GroupSize: 1, DataAbspath: "/tmp/basic"}
	if err := st.CreateQueue(q); err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}

	got, err := st.GetQueue("q1")
	if err != nil {
		t.Fatalf("GetQueue: %v", err)
	}
	if got.Name != "basic" || got.Priority != 10 {
		t.Fatalf("GetQueue returned %+v", got)
	}

	byName, err := st.GetQueueByName("basic")
	if err != nil {
		t.Fatalf("GetQueueByName: %v", err)
	}
	if byName.ID != "q1" {
		t.Fatalf("GetQueueByName returned wrong id %q", byName.ID)
	}

	if err := st.CreateQueue(&Queue{ID: "q2", Name: "basic"}); err == nil {
		t.Fatal("expected error creating queue with duplicate name")
	}
}

func TestInsertTargetsAndPopRandomTarget(t *testing.T) {
	st := openTestStore(t)

	targets := []*Target{
		{ID: "t1", QueueID: "q1", Target: "192.0.2.1", Hashval: "192.0.2.0/24"},
		{ID: "t2", QueueID: "q1", Target: "192.0.2.2", Hashval: "192.0.2.0/24"},
	}
	hashvals, err := st.InsertTargets(targets)
	if err != nil {
		t.Fatalf("InsertTargets: %v", err)
	}
	if _, ok := hashvals["192.0.2.0/24"]; !ok {
		t.Fatalf("expected hashval 192.0.2.0/24 in result, got %v", hashvals)
	}

	if err := st.PutReadynet("q1", "192.0.2.0/24"); err != nil {
		t.Fatalf("PutReadynet: %v", err)
	}

	has, err := st.HasReadynet("q1")
	if err != nil || !has {
		t.Fatalf("HasReadynet: got (%v, %v)", has, err)
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		rt, err := st.PopRandomTarget("q1")
		if err != nil {
			t.Fatalf("PopRandomTarget: %v", err)
		}
		if rt == nil {
			t.Fatalf("PopRandomTarget returned nil on iteration %d", i)
		}
		seen[rt.Target] = true
	}
	if !seen["192.0.2.1"] || !seen["192.0.2.2"] {
		t.Fatalf("expected both targets popped, got %v", seen)
	}

	rt, err := st.PopRandomTarget("q1")
	if err != nil {
		t.Fatalf("PopRandomTarget (empty): %v", err)
	}
	if rt != nil {
		t.Fatalf("expected nil after all targets popped, got %+v", rt)
	}

	has, err = st.HasReadynet("q1")
	if err != nil || has {
		t.Fatalf("expected readynet pruned after last target popped, got (%v, %v)", has, err)
	}
}

func TestDeleteTargetsForQueueDecrementsHashQueueCount(t *testing.T) {
	st := openTestStore(t)

	targets := []*Target{
		{ID: "t1", QueueID: "q1", Target: "192.0.2.1", Hashval: "192.0.2.0/24"},
		{ID: "t2", QueueID: "q2", Target: "192.0.2.2", Hashval: "192.0.2.0/24"},
	}
	if _, err := st.InsertTargets(targets); err != nil {
		t.Fatalf("InsertTargets: %v", err)
	}

	queueIDs, err := st.DistinctQueuesForHashval("192.0.2.0/24")
	if err != nil {
		t.Fatalf("DistinctQueuesForHashval: %v", err)
	}
	if len(queueIDs) != 2 {
		t.Fatalf("expected 2 queues before flush, got %v", queueIDs)
	}

	if err := st.DeleteTargetsForQueue("q1"); err != nil {
		t.Fatalf("DeleteTargetsForQueue: %v", err)
	}

	queueIDs, err = st.DistinctQueuesForHashval("192.0.2.0/24")
	if err != nil {
		t.Fatalf("DistinctQueuesForHashval after flush: %v", err)
	}
	if len(queueIDs) != 1 || queueIDs[0] != "q2" {
		t.Fatalf("expected only q2 to remain after flushing q1, got %v", queueIDs)
	}
}

func TestHeatmapIncrDecrAndGCZeros(t *testing.T) {
	st := openTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := st.HeatmapIncr("h1"); err != nil {
			t.Fatalf("HeatmapIncr: %v", err)
		}
	}
	count, found, err := st.HeatmapGet("h1")
	if err != nil || !found || count != 3 {
		t.Fatalf("HeatmapGet after 3 incr: got (%d, %v, %v)", count, found, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := st.HeatmapDecr("h1"); err != nil {
			t.Fatalf("HeatmapDecr: %v", err)
		}
	}
	count, found, err = st.HeatmapGet("h1")
	if err != nil || !found || count != 0 {
		t.Fatalf("HeatmapGet after decr to zero: got (%d, %v, %v)", count, found, err)
	}

	if err := st.HeatmapGCZeros(); err != nil {
		t.Fatalf("HeatmapGCZeros: %v", err)
	}
	_, found, err = st.HeatmapGet("h1")
	if err != nil || found {
		t.Fatalf("expected h1 gone after GC, got found=%v err=%v", found, err)
	}
}

func TestHeatmapHotSubset(t *testing.T) {
	st := openTestStore(t)

	for i := 0; i < 4; i++ {
		if _, err := st.HeatmapIncr("hot"); err != nil {
			t.Fatalf("HeatmapIncr hot: %v", err)
		}
	}
	if _, err := st.HeatmapIncr("cool"); err != nil {
		t.Fatalf("HeatmapIncr cool: %v", err)
	}

	hot, err := st.HeatmapHotSubset([]string{"hot", "cool", "missing"}, 4)
	if err != nil {
		t.Fatalf("HeatmapHotSubset: %v", err)
	}
	if len(hot) != 1 || hot[0] != "hot" {
		t.Fatalf("expected only 'hot' in hot subset, got %v", hot)
	}
}

func TestJobLifecycle(t *testing.T) {
	st := openTestStore(t)

	j := &Job{ID: "j1", QueueID: "q1", Assignment: `{"id":"j1","targets":["x"]}`, TimeStart: time.Now().UTC()}
	if err := st.CreateJob(j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := st.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.IsTerminal() {
		t.Fatal("freshly created job should not be terminal")
	}

	jobs, err := st.ListJobsForQueue("q1", true)
	if err != nil {
		t.Fatalf("ListJobsForQueue: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 non-terminal job, got %d", len(jobs))
	}

	retval := 0
	got.Retval = &retval
	if err := st.SaveJob(got); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	jobs, err = st.ListJobsForQueue("q1", true)
	if err != nil {
		t.Fatalf("ListJobsForQueue after finish: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected 0 non-terminal jobs after finish, got %d", len(jobs))
	}

	if err := st.DeleteJob(got); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := st.GetJob("j1"); err == nil {
		t.Fatal("expected error getting deleted job")
	}
}

func TestListStaleRunningJobs(t *testing.T) {
	st := openTestStore(t)

	old := &Job{ID: "old", QueueID: "q1", Assignment: "{}", TimeStart: time.Now().UTC().Add(-time.Hour)}
	fresh := &Job{ID: "fresh", QueueID: "q1", Assignment: "{}", TimeStart: time.Now().UTC()}
	for _, j := range []*Job{old, fresh} {
		if err := st.CreateJob(j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	stale, err := st.ListStaleRunningJobs(time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ListStaleRunningJobs: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "old" {
		t.Fatalf("expected only 'old' to be stale, got %v", stale)
	}
}
