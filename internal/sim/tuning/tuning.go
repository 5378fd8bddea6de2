package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"idlecraft.ai/internal/sim/geom"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	DecisionQuantumMs  int `yaml:"decision_quantum_ms"`
	ProgressSyncMs     int `yaml:"progress_sync_ms"`
	PathPrepMs         int `yaml:"path_prep_ms"`
	BankingAnimationMs int `yaml:"banking_animation_ms"`

	Movement  Movement  `yaml:"movement"`
	Activity  Activity  `yaml:"activity"`
	Inventory Inventory `yaml:"inventory"`
	Tasks     Tasks     `yaml:"tasks"`

	SafeLocation geom.Vec `yaml:"safe_location"`

	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks"`
	Seed               int64 `yaml:"seed"`
}

type Movement struct {
	LandSpeed       float64 `yaml:"land_speed"`  // tiles per second
	WaterSpeed      float64 `yaml:"water_speed"` // tiles per second
	AgilityBonus    float64 `yaml:"agility_bonus_per_level"`
	DebugMultiplier float64 `yaml:"debug_multiplier"`
	TerrainCacheMs  int     `yaml:"terrain_cache_ms"`
	NodeTolerance   float64 `yaml:"node_tolerance"`
	DesyncTolerance float64 `yaml:"desync_tolerance"`
	WaypointEpsilon float64 `yaml:"waypoint_epsilon"`
}

type Activity struct {
	DebugMultiplier float64 `yaml:"debug_multiplier"`
}

type Inventory struct {
	Capacity int `yaml:"capacity"`
}

type Tasks struct {
	QueueLength int `yaml:"queue_length"`
	MinTarget   int `yaml:"min_target"`
	MaxTarget   int `yaml:"max_target"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		DecisionQuantumMs:  1000,
		ProgressSyncMs:     2000,
		PathPrepMs:         600,
		BankingAnimationMs: 600,
		Movement: Movement{
			LandSpeed:       4,
			WaterSpeed:      2,
			AgilityBonus:    0.005,
			DebugMultiplier: 1,
			TerrainCacheMs:  100,
			NodeTolerance:   1,
			DesyncTolerance: 2,
			WaypointEpsilon: 0.01,
		},
		Activity:           Activity{DebugMultiplier: 1},
		Inventory:          Inventory{Capacity: 28},
		Tasks:              Tasks{QueueLength: 5, MinTarget: 10, MaxTarget: 40},
		SafeLocation:       geom.Vec{X: 10, Y: 10},
		SnapshotEveryTicks: 1200,
		Seed:               1337,
	}
}

// Load reads path on top of Defaults, so a tuning file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz <= 0 {
		errs = append(errs, errors.New("tick_rate_hz must be > 0"))
	}
	if t.DecisionQuantumMs <= 0 {
		errs = append(errs, errors.New("decision_quantum_ms must be > 0"))
	}
	if t.Movement.LandSpeed <= 0 || t.Movement.WaterSpeed <= 0 {
		errs = append(errs, errors.New("movement speeds must be > 0"))
	}
	if t.Movement.DebugMultiplier <= 0 {
		errs = append(errs, errors.New("movement.debug_multiplier must be > 0"))
	}
	if t.Activity.DebugMultiplier <= 0 {
		errs = append(errs, errors.New("activity.debug_multiplier must be > 0"))
	}
	if t.Inventory.Capacity <= 0 {
		errs = append(errs, errors.New("inventory.capacity must be > 0"))
	}
	if t.Tasks.MinTarget <= 0 || t.Tasks.MaxTarget < t.Tasks.MinTarget {
		errs = append(errs, errors.New("tasks target bounds invalid"))
	}
	return errors.Join(errs...)
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (t Tuning) TickInterval() time.Duration    { return time.Second / time.Duration(t.TickRateHz) }
func (t Tuning) DecisionQuantum() time.Duration { return ms(t.DecisionQuantumMs) }
func (t Tuning) ProgressSync() time.Duration    { return ms(t.ProgressSyncMs) }
func (t Tuning) PathPrep() time.Duration        { return ms(t.PathPrepMs) }
func (t Tuning) BankingAnimation() time.Duration {
	return ms(t.BankingAnimationMs)
}
func (t Tuning) TerrainCacheTTL() time.Duration { return ms(t.Movement.TerrainCacheMs) }
