// Package tasks owns the agent's work list. The agent never builds a Task; it
// holds a Ref and asks the Manager whether that Ref is still current.
package tasks

import (
	"fmt"
	"time"

	"idlecraft.ai/internal/sim/geom"
)

type Task struct {
	ID          string `json:"id"`
	Skill       string `json:"skill"`
	ActivityID  string `json:"activity_id"`
	NodeID      string `json:"node_id"`
	ItemID      string `json:"item_id,omitempty"`
	TargetCount int    `json:"target_count"`

	// Progress only moves forward while the task is in the list.
	Progress float64 `json:"progress"`

	// Done is owned by the skill: items gathered, or inputs consumed for
	// processing skills. Progress is derived from it.
	Done int `json:"done"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *Task) Complete() bool { return t.Progress >= 1 }

// DerivedProgress is Done/TargetCount clamped to [0,1].
func (t *Task) DerivedProgress() float64 {
	if t.TargetCount <= 0 {
		return 1
	}
	return geom.Clamp01(float64(t.Done) / float64(t.TargetCount))
}

// Remaining is how many more units the task needs.
func (t *Task) Remaining() int {
	if r := t.TargetCount - t.Done; r > 0 {
		return r
	}
	return 0
}

func (t *Task) String() string {
	return fmt.Sprintf("%s(%s x%d @%s)", t.ID, t.ActivityID, t.TargetCount, t.NodeID)
}

// Ref is a generation checked handle into the Manager's arena. The zero Ref
// never resolves.
type Ref struct {
	Index int    `json:"index"`
	Gen   uint32 `json:"gen"`
}

func (r Ref) IsZero() bool { return r.Gen == 0 }

func (r Ref) String() string {
	if r.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%d#%d", r.Index, r.Gen)
}

type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeSkipped   OutcomeKind = "skipped"
)

// Outcome is recorded once per task when it leaves the list.
type Outcome struct {
	TaskID      string      `json:"task_id"`
	Skill       string      `json:"skill"`
	ActivityID  string      `json:"activity_id"`
	NodeID      string      `json:"node_id"`
	TargetCount int         `json:"target_count"`
	Done        int         `json:"done"`
	Progress    float64     `json:"progress"`
	Kind        OutcomeKind `json:"kind"`
	Reason      string      `json:"reason,omitempty"`
	At          time.Time   `json:"at"`
}

type OutcomeListener func(Outcome)
