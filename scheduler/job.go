package scheduler

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sner/scheduler/cmn"
	"github.com/sner/scheduler/output"
	"github.com/sner/scheduler/store"
)

var jobJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Assignment is the payload handed back to an agent by job_assign and
// persisted verbatim as Job.Assignment (spec §4.4/§6).
type Assignment struct {
	ID      string                 `json:"id"`
	Config  map[string]interface{} `json:"config"`
	Targets []string               `json:"targets"`
}

// JobManager governs Job lifecycle: create, finish, reconcile, repeat,
// delete (spec §4.4).
type JobManager struct {
	svc *SchedulerService
}

// Create persists a new Job for queue carrying assignedTargets and returns
// the Assignment to hand back to the caller (spec §4.4 create). queue.Config
// is the queue's raw YAML blob, parsed the same way the teacher's own
// per-queue config strings are parsed before being handed to an agent.
func (jm *JobManager) Create(queue *store.Queue, assignedTargets []string) (*Assignment, error) {
	cfg := map[string]interface{}{}
	if queue.Config != "" {
		if err := yaml.Unmarshal([]byte(queue.Config), &cfg); err != nil {
			return nil, err
		}
	}

	assignment := &Assignment{
		ID:      uuid.NewString(),
		Config:  cfg,
		Targets: assignedTargets,
	}
	raw, err := jobJSON.Marshal(assignment)
	if err != nil {
		return nil, err
	}

	j := &store.Job{
		ID:            assignment.ID,
		QueueID:       queue.ID,
		Assignment:    string(raw),
		TimeStart:     jm.svc.now(),
		OutputAbspath: outputAbspath(queue, assignment.ID),
	}
	if err := jm.svc.store.CreateJob(j); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Finish writes back an agent's result (spec §4.4 finish): the raw output
// bytes go to the queue's configured output.Store, retval and time_end are
// recorded on the Job row.
func (jm *JobManager) Finish(j *store.Job, retval int, out []byte) error {
	queue, err := jm.svc.store.GetQueue(j.QueueID)
	if err != nil {
		return err
	}
	if err := output.ForPath(queue.DataAbspath).Write(queue.DataAbspath, j.ID, out); err != nil {
		return cmn.NewStorageError(err)
	}
	j.Retval = &retval
	j.TimeEnd = jm.svc.now()
	return jm.svc.store.SaveJob(j)
}

// Reconcile force-fails a still-running job and reclaims its heatmap
// accounting (spec §4.4 reconcile): used when a broken agent leaves a job
// orphaned with targets still counted hot in the heatmap.
func (jm *JobManager) Reconcile(j *store.Job) error {
	if j.IsTerminal() {
		return cmn.NewInvariantViolation("cannot reconcile completed job %s", j.ID)
	}

	var assignment Assignment
	if err := jobJSON.UnmarshalFromString(j.Assignment, &assignment); err != nil {
		return err
	}

	return jm.svc.withLock("reconcile", jm.svc.jobAssignTimeout(), func() error {
		failed := -1
		j.Retval = &failed
		for _, target := range assignment.Targets {
			if _, err := jm.svc.heatmapPop(Hashval(target)); err != nil {
				return err
			}
		}
		if err := jm.svc.store.SaveJob(j); err != nil {
			return err
		}
		if jm.svc.stats != nil {
			jm.svc.stats.JobsReconciled.Inc()
		}
		return nil
	})
}

// Repeat reschedules a job's targets back onto its queue (spec §4.4 repeat).
func (jm *JobManager) Repeat(j *store.Job) error {
	queue, err := jm.svc.store.GetQueue(j.QueueID)
	if err != nil {
		return err
	}
	var assignment Assignment
	if err := jobJSON.UnmarshalFromString(j.Assignment, &assignment); err != nil {
		return err
	}
	return jm.svc.queues.Enqueue(queue, assignment.Targets)
}

// Delete removes a terminal job and its output (spec §4.4 delete); deleting
// a still-running job would corrupt the heatmap, so it's refused.
func (jm *JobManager) Delete(j *store.Job) error {
	if !j.IsTerminal() {
		return cmn.NewInvariantViolation("cannot delete running job %s", j.ID)
	}
	return jm.svc.withLock("job_delete", 0, func() error {
		queue, err := jm.svc.store.GetQueue(j.QueueID)
		if err != nil && !cmn.IsNotFound(err) {
			return err
		}
		if queue != nil {
			if err := output.ForPath(queue.DataAbspath).Remove(queue.DataAbspath, j.ID); err != nil {
				return cmn.NewStorageError(err)
			}
		}
		return jm.svc.store.DeleteJob(j)
	})
}

func outputAbspath(queue *store.Queue, jobID string) string {
	return queue.DataAbspath + "/" + jobID
}

// defaultNow is the clock New installs as SchedulerService.now: wall-clock
// time in UTC.
func defaultNow() time.Time { return time.Now().UTC() }
