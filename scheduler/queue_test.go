package scheduler

import (
	"os"
	"path/filepath"
	"testing"
)

// Flush drops Targets/Readynets but leaves Jobs alone.
func TestQueueFlushRemovesTargetsNotJobs(t *testing.T) {
	withHeatmapConf(t, 100, 0)
	svc := newTestService(t)

	q := NewQueue("flush", nil, 1, 0, "", t.TempDir())
	mustCreateQueue(t, svc, q)
	if err := svc.Queues().Enqueue(q, []string{"192.0.2.10", "192.0.2.11"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	assignment, err := svc.JobAssign("", nil)
	if err != nil {
		t.Fatalf("JobAssign: %v", err)
	}
	if len(assignment.Targets) != 1 {
		t.Fatalf("expected 1 target assigned, got %v", assignment.Targets)
	}

	if err := svc.Queues().Flush(q); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	has, err := svc.Store().HasReadynet(q.ID)
	if err != nil {
		t.Fatalf("HasReadynet: %v", err)
	}
	if has {
		t.Fatal("expected no readynet rows left after Flush")
	}

	if again, err := svc.JobAssign("", nil); err != nil {
		t.Fatalf("JobAssign after flush: %v", err)
	} else if len(again.Targets) != 0 {
		t.Fatalf("expected nowork after flush drained the remaining target, got %v", again.Targets)
	}

	if _, err := svc.Store().GetJob(assignment.ID); err != nil {
		t.Fatalf("expected job to survive Flush, GetJob: %v", err)
	}
}

// Prune deletes every finished job, including its output file, but leaves
// the queue's targets/readynets untouched.
func TestQueuePruneDeletesJobsNotTargets(t *testing.T) {
	withHeatmapConf(t, 100, 0)
	svc := newTestService(t)

	q := NewQueue("prune", nil, 1, 0, "", t.TempDir())
	mustCreateQueue(t, svc, q)
	if err := svc.Queues().Enqueue(q, []string{"192.0.2.20", "192.0.2.21"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	assignment, err := svc.JobAssign("", nil)
	if err != nil {
		t.Fatalf("JobAssign: %v", err)
	}
	job, err := svc.Store().GetJob(assignment.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if err := svc.JobOutput(job, 0, []byte("out")); err != nil {
		t.Fatalf("JobOutput: %v", err)
	}
	if _, err := os.Stat(filepath.Join(q.DataAbspath, job.ID)); err != nil {
		t.Fatalf("expected output file to exist before Prune: %v", err)
	}

	if err := svc.Queues().Prune(q); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if _, err := svc.Store().GetJob(assignment.ID); err == nil {
		t.Fatal("expected job to be gone after Prune")
	}
	if _, err := os.Stat(filepath.Join(q.DataAbspath, job.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected job output removed by Prune, stat err = %v", err)
	}

	has, err := svc.Store().HasReadynet(q.ID)
	if err != nil {
		t.Fatalf("HasReadynet: %v", err)
	}
	if !has {
		t.Fatal("expected readynet rows from the still-unassigned target to remain")
	}
}

// Delete requires every job to already be terminal (finished via JobOutput
// here), then removes the queue's data directory, its targets/readynets, and
// finally the queue row itself.
func TestQueueDeleteRemovesDataDirAndRow(t *testing.T) {
	withHeatmapConf(t, 100, 0)
	svc := newTestService(t)

	dataDir := filepath.Join(t.TempDir(), "queue-data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	q := NewQueue("delete", nil, 1, 0, "", dataDir)
	mustCreateQueue(t, svc, q)
	if err := svc.Queues().Enqueue(q, []string{"192.0.2.30"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	assignment, err := svc.JobAssign("", nil)
	if err != nil {
		t.Fatalf("JobAssign: %v", err)
	}
	job, err := svc.Store().GetJob(assignment.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if err := svc.JobOutput(job, 0, []byte("out")); err != nil {
		t.Fatalf("JobOutput: %v", err)
	}

	if err := svc.Queues().Delete(q); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := os.Stat(dataDir); !os.IsNotExist(err) {
		t.Fatalf("expected queue data directory removed, stat err = %v", err)
	}
	if _, err := svc.Store().GetQueue(q.ID); err == nil {
		t.Fatal("expected queue row to be gone after Delete")
	}
	if _, err := svc.Store().GetJob(assignment.ID); err == nil {
		t.Fatal("expected job to be gone after Delete")
	}
}

// Delete refuses to proceed (and leaves the data directory intact) while any
// job on the queue is still running.
func TestQueueDeleteRefusedWithRunningJob(t *testing.T) {
	svc := newTestService(t)

	dataDir := t.TempDir()
	q := NewQueue("busy-delete", nil, 1, 0, "", dataDir)
	mustCreateQueue(t, svc, q)
	if err := svc.Queues().Enqueue(q, []string{"192.0.2.40"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := svc.JobAssign("", nil); err != nil {
		t.Fatalf("JobAssign: %v", err)
	}

	if err := svc.Queues().Delete(q); err == nil {
		t.Fatal("expected Delete to refuse while a job is still running")
	}
	if _, err := os.Stat(dataDir); err != nil {
		t.Fatalf("expected data directory to remain after refused Delete: %v", err)
	}
}

// Delete tolerates a data directory that is already gone, matching the
// existence guard around the original Path.rmdir() call.
func TestQueueDeleteToleratesMissingDataDir(t *testing.T) {
	svc := newTestService(t)

	missingDir := filepath.Join(t.TempDir(), "already-gone")
	q := NewQueue("no-dir", nil, 1, 0, "", missingDir)
	mustCreateQueue(t, svc, q)

	if err := svc.Queues().Delete(q); err != nil {
		t.Fatalf("Delete with missing data dir: %v", err)
	}
}
