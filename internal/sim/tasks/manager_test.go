package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlecraft.ai/internal/sim/clock"
)

func newTestManager(possible PossibleFunc) (*Manager, *[]Outcome) {
	m := NewManager(clock.NewManual(time.Unix(1000, 0)), possible)
	var outs []Outcome
	m.OnOutcome(func(o Outcome) { outs = append(outs, o) })
	return m, &outs
}

func TestCurrentIsFirstIncomplete(t *testing.T) {
	m, _ := newTestManager(nil)
	assert.True(t, m.Current().IsZero())

	a := m.Add(Task{ActivityID: "chop", TargetCount: 2})
	b := m.Add(Task{ActivityID: "mine", TargetCount: 2})
	assert.Equal(t, a, m.Current())
	assert.True(t, m.IsCurrent(a))
	assert.False(t, m.IsCurrent(b))
	assert.Equal(t, m.Current(), m.FirstIncomplete())

	ta, err := m.Get(a)
	require.NoError(t, err)
	assert.Equal(t, "task-000001", ta.ID)
	assert.Equal(t, time.Unix(1000, 0), ta.CreatedAt)
}

func TestSetProgressIsMonotonicAndCompletes(t *testing.T) {
	m, outs := newTestManager(nil)
	a := m.Add(Task{ActivityID: "chop", TargetCount: 4})
	b := m.Add(Task{ActivityID: "mine", TargetCount: 4})

	require.NoError(t, m.SetProgress(a, 0.5))
	require.NoError(t, m.SetProgress(a, 0.25))
	ta, _ := m.Get(a)
	assert.Equal(t, 0.5, ta.Progress)

	require.NoError(t, m.SetProgress(a, 1.5))
	assert.False(t, m.Valid(a), "completed task leaves the list")
	assert.ErrorIs(t, m.SetProgress(a, 1), ErrStaleRef)
	assert.Equal(t, b, m.Current())

	require.Len(t, *outs, 1)
	assert.Equal(t, OutcomeCompleted, (*outs)[0].Kind)
	assert.Equal(t, 1.0, (*outs)[0].Progress)
}

func TestReusedSlotDoesNotResolveOldRef(t *testing.T) {
	m, _ := newTestManager(nil)
	a := m.Add(Task{ActivityID: "chop", TargetCount: 1})
	m.SkipCurrent("test")
	c := m.Add(Task{ActivityID: "cook", TargetCount: 1})

	assert.Equal(t, a.Index, c.Index, "slot is reused")
	assert.NotEqual(t, a, c)
	_, err := m.Get(a)
	assert.ErrorIs(t, err, ErrStaleRef)
	_, err = m.Get(Ref{})
	assert.ErrorIs(t, err, ErrStaleRef)
}

func TestSkipCurrentRecordsReason(t *testing.T) {
	m, outs := newTestManager(nil)
	assert.True(t, m.SkipCurrent("empty").IsZero())

	a := m.Add(Task{ActivityID: "bait", TargetCount: 3})
	assert.Equal(t, a, m.SkipCurrent("no bait"))
	require.Len(t, *outs, 1)
	assert.Equal(t, OutcomeSkipped, (*outs)[0].Kind)
	assert.Equal(t, "no bait", (*outs)[0].Reason)
	assert.Equal(t, 0, m.Len())
}

func TestUpdateAllProgressFromCounters(t *testing.T) {
	m, outs := newTestManager(nil)
	a := m.Add(Task{ActivityID: "cook", TargetCount: 4})
	b := m.Add(Task{ActivityID: "smelt", TargetCount: 2})

	ta, _ := m.Get(a)
	ta.Done = 3
	tb, _ := m.Get(b)
	tb.Done = 5

	m.UpdateAllProgress()
	ta, err := m.Get(a)
	require.NoError(t, err)
	assert.Equal(t, 0.75, ta.Progress)
	assert.False(t, m.Valid(b))
	require.Len(t, *outs, 1)
	assert.Equal(t, 5, (*outs)[0].Done)

	ta.Done = 1
	m.UpdateAllProgress()
	assert.Equal(t, 0.75, ta.Progress, "progress never moves back")
}

func TestIsPossibleDelegates(t *testing.T) {
	m, _ := newTestManager(func(t *Task) bool { return t.NodeID != "nowhere" })
	a := m.Add(Task{NodeID: "tree", TargetCount: 1})
	b := m.Add(Task{NodeID: "nowhere", TargetCount: 1})
	assert.True(t, m.IsPossible(a))
	assert.False(t, m.IsPossible(b))
	assert.False(t, m.IsPossible(Ref{}))
}

func TestRestoreInvalidatesRefs(t *testing.T) {
	m, _ := newTestManager(nil)
	a := m.Add(Task{ActivityID: "chop", TargetCount: 2})
	list := m.Tasks()

	m.Restore(list, 42)
	assert.False(t, m.Valid(a))
	require.Equal(t, 1, m.Len())
	cur, err := m.Get(m.Current())
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, cur.ID)
	assert.Equal(t, 42, m.NextID())
}

func TestDerivedProgressClamps(t *testing.T) {
	tk := Task{TargetCount: 10, Done: 4}
	assert.Equal(t, 0.4, tk.DerivedProgress())
	tk.Done = 30
	assert.Equal(t, 1.0, tk.DerivedProgress())
	assert.Equal(t, 0, tk.Remaining())
	assert.Equal(t, 1.0, (&Task{}).DerivedProgress())
}
