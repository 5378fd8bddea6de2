package tasks

import (
	"errors"
	"fmt"

	"idlecraft.ai/internal/sim/clock"
)

var ErrStaleRef = errors.New("tasks: stale task ref")

// PossibleFunc decides whether a task can be attempted at all (node and
// activity exist, level is high enough).
type PossibleFunc func(t *Task) bool

type slot struct {
	gen  uint32
	task *Task
}

// Manager is an arena of tasks plus the ordered work list. The first
// incomplete task in the list is current.
type Manager struct {
	clk      clock.Clock
	possible PossibleFunc

	slots []slot
	free  []int
	order []int

	nextID    int
	listeners []OutcomeListener
}

func NewManager(clk clock.Clock, possible PossibleFunc) *Manager {
	if possible == nil {
		possible = func(*Task) bool { return true }
	}
	return &Manager{clk: clk, possible: possible, nextID: 1}
}

func (m *Manager) OnOutcome(l OutcomeListener) {
	if l != nil {
		m.listeners = append(m.listeners, l)
	}
}

// Add appends a copy of t to the end of the list.
func (m *Manager) Add(t Task) Ref {
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%06d", m.nextID)
		m.nextID++
	}
	if t.CreatedAt.IsZero() && m.clk != nil {
		t.CreatedAt = m.clk.Now()
	}
	var idx int
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		m.slots = append(m.slots, slot{})
		idx = len(m.slots) - 1
	}
	s := &m.slots[idx]
	s.gen++
	tc := t
	s.task = &tc
	m.order = append(m.order, idx)
	return Ref{Index: idx, Gen: s.gen}
}

func (m *Manager) Len() int { return len(m.order) }

// Get resolves ref. The returned pointer is only valid until the task leaves
// the list.
func (m *Manager) Get(ref Ref) (*Task, error) {
	if ref.IsZero() || ref.Index < 0 || ref.Index >= len(m.slots) {
		return nil, ErrStaleRef
	}
	s := m.slots[ref.Index]
	if s.gen != ref.Gen || s.task == nil {
		return nil, ErrStaleRef
	}
	return s.task, nil
}

func (m *Manager) Valid(ref Ref) bool {
	_, err := m.Get(ref)
	return err == nil
}

func (m *Manager) refAt(idx int) Ref { return Ref{Index: idx, Gen: m.slots[idx].gen} }

// Current is the task the agent should be working on, or the zero Ref.
func (m *Manager) Current() Ref { return m.FirstIncomplete() }

func (m *Manager) FirstIncomplete() Ref {
	for _, idx := range m.order {
		if !m.slots[idx].task.Complete() {
			return m.refAt(idx)
		}
	}
	return Ref{}
}

// IsCurrent compares identity, never contents.
func (m *Manager) IsCurrent(ref Ref) bool {
	return !ref.IsZero() && m.Current() == ref
}

func (m *Manager) IsPossible(ref Ref) bool {
	t, err := m.Get(ref)
	if err != nil {
		return false
	}
	return m.possible(t)
}

// SkipCurrent drops the current task and records why. It returns the dropped
// ref, or the zero Ref when the list is empty.
func (m *Manager) SkipCurrent(reason string) Ref {
	ref := m.Current()
	if ref.IsZero() {
		return ref
	}
	m.remove(ref, OutcomeSkipped, reason)
	return ref
}

// SetProgress never lowers progress. Reaching 1 completes and removes the task.
func (m *Manager) SetProgress(ref Ref, v float64) error {
	t, err := m.Get(ref)
	if err != nil {
		return err
	}
	if v > 1 {
		v = 1
	}
	if v > t.Progress {
		t.Progress = v
	}
	if t.Complete() {
		m.remove(ref, OutcomeCompleted, "")
	}
	return nil
}

// UpdateAllProgress re-derives every task's progress from its counters.
func (m *Manager) UpdateAllProgress() {
	refs := make([]Ref, 0, len(m.order))
	for _, idx := range m.order {
		refs = append(refs, m.refAt(idx))
	}
	for _, ref := range refs {
		if t, err := m.Get(ref); err == nil {
			_ = m.SetProgress(ref, t.DerivedProgress())
		}
	}
}

func (m *Manager) remove(ref Ref, kind OutcomeKind, reason string) {
	t := m.slots[ref.Index].task
	out := Outcome{
		TaskID:      t.ID,
		Skill:       t.Skill,
		ActivityID:  t.ActivityID,
		NodeID:      t.NodeID,
		TargetCount: t.TargetCount,
		Done:        t.Done,
		Progress:    t.Progress,
		Kind:        kind,
		Reason:      reason,
	}
	if m.clk != nil {
		out.At = m.clk.Now()
	}

	for i, idx := range m.order {
		if idx == ref.Index {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.slots[ref.Index].task = nil
	m.slots[ref.Index].gen++
	m.free = append(m.free, ref.Index)

	for _, l := range m.listeners {
		l(out)
	}
}

// Tasks returns copies in list order.
func (m *Manager) Tasks() []Task {
	out := make([]Task, 0, len(m.order))
	for _, idx := range m.order {
		out = append(out, *m.slots[idx].task)
	}
	return out
}

// Restore replaces the list. Refs handed out before Restore go stale.
func (m *Manager) Restore(list []Task, nextID int) {
	for _, idx := range m.order {
		m.slots[idx].task = nil
		m.slots[idx].gen++
		m.free = append(m.free, idx)
	}
	m.order = m.order[:0]
	for _, t := range list {
		m.Add(t)
	}
	if nextID > m.nextID {
		m.nextID = nextID
	}
}

func (m *Manager) NextID() int { return m.nextID }
