package agent

import "time"

type DecisionKind string

const (
	DecisionWait    DecisionKind = "wait"
	DecisionSelect  DecisionKind = "select"
	DecisionBank    DecisionKind = "bank"
	DecisionMove    DecisionKind = "move"
	DecisionStart   DecisionKind = "start"
	DecisionSkip    DecisionKind = "skip"
	DecisionDrop    DecisionKind = "drop"
	DecisionCancel  DecisionKind = "cancel"
	DecisionRecover DecisionKind = "recover"
	DecisionIdle    DecisionKind = "idle"
)

// Decision is one line of the decision audit log.
type Decision struct {
	At     time.Time    `json:"at"`
	Tick   uint64       `json:"tick"`
	Kind   DecisionKind `json:"kind"`
	TaskID string       `json:"task_id,omitempty"`
	Node   string       `json:"node,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

type Recorder interface {
	RecordDecision(d Decision)
}

type RecorderFunc func(d Decision)

func (f RecorderFunc) RecordDecision(d Decision) { f(d) }
