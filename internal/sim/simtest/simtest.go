// Package simtest builds an agent over the repository's world data and a
// manual clock, for tests that tick the whole loop.
package simtest

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"idlecraft.ai/internal/sim/agent"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/clock"
	"idlecraft.ai/internal/sim/tasks"
	"idlecraft.ai/internal/sim/tuning"
)

var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// ConfigDir is the repository's configs directory.
func ConfigDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "configs")
}

type Harness struct {
	T     testing.TB
	Clock *clock.Manual
	Ctx   *agent.Context
	Agent *agent.Agent
	Logs  *observer.ObservedLogs

	Outcomes  []tasks.Outcome
	Decisions []agent.Decision
}

type options struct {
	tune      func(*tuning.Tuning)
	bank      []catalogs.ItemCount
	generator bool
}

type Option func(*options)

func WithTuning(f func(*tuning.Tuning)) Option { return func(o *options) { o.tune = f } }

// WithBank stocks the bank before the first tick.
func WithBank(items ...catalogs.ItemCount) Option {
	return func(o *options) { o.bank = append(o.bank, items...) }
}

// WithoutGenerator leaves the task list for the test to fill.
func WithoutGenerator() Option { return func(o *options) { o.generator = false } }

func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()
	o := options{generator: true}
	for _, f := range opts {
		f(&o)
	}

	cat, err := catalogs.Load(ConfigDir())
	require.NoError(t, err)
	tun, err := tuning.Load(filepath.Join(ConfigDir(), "tuning.yaml"))
	require.NoError(t, err)
	if o.tune != nil {
		o.tune(&tun)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	clk := clock.NewManual(Epoch)
	ctx, err := agent.NewContext(cat, tun, clk, zap.New(core))
	require.NoError(t, err)
	if !o.generator {
		ctx.Generator = nil
	}
	ctx.Metrics = agent.MustNewMetrics(prometheus.NewRegistry())
	for _, it := range o.bank {
		ctx.Bank.Add(it.Item, it.Count)
	}

	h := &Harness{T: t, Clock: clk, Ctx: ctx, Logs: logs}
	ctx.Recorder = agent.RecorderFunc(func(d agent.Decision) { h.Decisions = append(h.Decisions, d) })
	ctx.Tasks.OnOutcome(func(o tasks.Outcome) { h.Outcomes = append(h.Outcomes, o) })

	h.Agent, err = agent.New(ctx)
	require.NoError(t, err)
	return h
}

func (h *Harness) Interval() time.Duration { return h.Ctx.Tuning.TickInterval() }

// Step ticks n times at the configured rate.
func (h *Harness) Step(n int) {
	dt := h.Interval()
	for i := 0; i < n; i++ {
		h.Clock.Advance(dt)
		h.Agent.Tick(dt)
	}
}

// RunUntil ticks until cond holds, failing the test after max ticks.
func (h *Harness) RunUntil(max int, cond func() bool) int {
	h.T.Helper()
	for i := 1; i <= max; i++ {
		h.Step(1)
		if cond() {
			return i
		}
	}
	h.T.Fatalf("condition not met after %d ticks", max)
	return max
}

// AddTask queues activity at node with the item the activity yields.
func (h *Harness) AddTask(activity, node string, target int) tasks.Ref {
	h.T.Helper()
	act, ok := h.Ctx.Catalogs.Activity(activity)
	require.True(h.T, ok, "unknown activity %s", activity)
	item := act.PrimaryItem()
	if act.RecipeID != "" {
		if r, ok := h.Ctx.Catalogs.Recipe(act.RecipeID); ok && len(r.Outputs) > 0 {
			item = r.Outputs[0].Item
		}
	}
	return h.Ctx.Tasks.Add(tasks.Task{
		Skill:       act.Skill,
		ActivityID:  activity,
		NodeID:      node,
		ItemID:      item,
		TargetCount: target,
	})
}

// Completed counts completed outcomes.
func (h *Harness) Completed() int {
	n := 0
	for _, o := range h.Outcomes {
		if o.Kind == tasks.OutcomeCompleted {
			n++
		}
	}
	return n
}
