// Package store implements the five scheduler relations (Queue, Target,
// Readynet, Heatmap, Job) of spec §3/§6 on top of an embedded buntdb
// database, the teacher's own choice of embedded, ACID, indexed storage
// (tidwall/buntdb is a direct dependency of the teacher repository).
//
// buntdb keeps a single ordered keyspace rather than relational tables, so
// each relation is represented as a family of string keys (see keys.go).
// Composite lookups spec.md expects from SQL (by queue+hashval, distinct
// queue_ids for a hashval, ...) are served by denormalized marker keys
// maintained in lock-step with the primary records, which is the standard
// secondary-index idiom for ordered key-value stores.
package store

import "time"

// Queue mirrors spec §3 Queue.
type Queue struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Active       bool     `json:"active"`
	Priority     int      `json:"priority"`
	Reqs         []string `json:"reqs"`
	GroupSize    int      `json:"group_size"`
	Config       string   `json:"config"`
	DataAbspath  string   `json:"data_abspath"`
}

// Target mirrors spec §3 Target.
type Target struct {
	ID      string `json:"id"`
	QueueID string `json:"queue_id"`
	Target  string `json:"target"`
	Hashval string `json:"hashval"`
}

// Job mirrors spec §3 Job. Retval is a pointer so the null/non-null
// distinction spec §3's state machine relies on survives JSON round trips.
type Job struct {
	ID             string    `json:"id"`
	QueueID        string    `json:"queue_id"`
	Assignment     string    `json:"assignment"` // serialized {id, config, targets[]}
	Retval         *int      `json:"retval"`
	TimeStart      time.Time `json:"time_start"`
	TimeEnd        time.Time `json:"time_end"`
	OutputAbspath  string    `json:"output_abspath"`
}

func (j *Job) IsTerminal() bool { return j.Retval != nil }
