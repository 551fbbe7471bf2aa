// Package timeline models a build's hierarchical execution report as
// exposed by the Azure DevOps build API: a forest of stage/job/task records,
// each optionally carrying a reference to a remote log. The locator in this
// package maps a human-supplied name to a specific record; it only ever
// borrows the record slice and never mutates or caches it.
package timeline

import (
	"fmt"
	"time"
)

// RecordType is the kind of a timeline node.
type RecordType string

const (
	TypeStage RecordType = "Stage"
	TypeJob   RecordType = "Job"
	TypeTask  RecordType = "Task"
)

// State is a record's execution state. Only StateCompleted records have a
// readable log.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "inProgress"
	StateCompleted  State = "completed"
)

// LogRef points at the remote log resource for a record.
type LogRef struct {
	ID  int    `json:"id"`
	URL string `json:"url,omitempty"`
}

// Record is one node of the execution report. ParentID, when non-empty,
// references another record in the same set (the set forms a forest). Names
// are not unique.
type Record struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parentId,omitempty"`
	Type       RecordType `json:"type"`
	Name       string     `json:"name"`
	State      State      `json:"state"`
	Result     string     `json:"result,omitempty"`
	Log        *LogRef    `json:"log,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	FinishTime *time.Time `json:"finishTime,omitempty"`
}

// DurationOf renders the record's wall-clock duration from its start and
// finish timestamps, or "" when either is missing.
func DurationOf(rec *Record) string {
	if rec.StartTime == nil || rec.FinishTime == nil {
		return ""
	}
	d := rec.FinishTime.Sub(*rec.StartTime).Round(time.Second)
	if d < 0 {
		return ""
	}
	return d.String()
}

// EnsureCompleted returns a StateError unless the record has reached its
// terminal state. Callers must check this before attempting any retrieval.
func EnsureCompleted(rec *Record) error {
	if rec.State != StateCompleted {
		return &StateError{Name: rec.Name, State: rec.State}
	}
	return nil
}

// EnsureLog returns a NoLogError when the record carries no log reference.
// This is deliberately distinct from not-found: the record exists, it just
// produced no log.
func EnsureLog(rec *Record) error {
	if rec.Log == nil || rec.Log.ID <= 0 {
		return &NoLogError{Name: rec.Name}
	}
	return nil
}

// StateError reports a record that has not finished running.
type StateError struct {
	Name  string
	State State
}

func (e *StateError) Error() string {
	state := string(e.State)
	if state == "" {
		state = "unknown"
	}
	return fmt.Sprintf("%q has not completed yet (state: %s); its log is not readable until it finishes", e.Name, state)
}

// NoLogError reports a completed record that produced no log.
type NoLogError struct {
	Name string
}

func (e *NoLogError) Error() string {
	return fmt.Sprintf("no log available for %q", e.Name)
}
