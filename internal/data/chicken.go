package data

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"gopkg.in/yaml.v3"
)

// ChickenTemplate is the YAML form of agent.Tuning. Durations are in seconds.
type ChickenTemplate struct {
	MinBehaviorDuration  float64 `yaml:"min_behavior_duration"`
	MaxBehaviorDuration  float64 `yaml:"max_behavior_duration"`
	WanderProb           float64 `yaml:"wander_prob"`
	WanderCenteringForce float64 `yaml:"wander_centering_force"`
	WanderRadius         float64 `yaml:"wander_radius"`

	FleeRecoverDuration float64 `yaml:"flee_recover_duration"`
	FleeRadius          float64 `yaml:"flee_radius"`
	FleeJitterMin       float64 `yaml:"flee_jitter_min"`
	FleeJitterMax       float64 `yaml:"flee_jitter_max"`
	FastFleeFactor      float64 `yaml:"fast_flee_factor"`
	RelaxedFleeFactor   float64 `yaml:"relaxed_flee_factor"`
	IncomingSpeedSq     float64 `yaml:"incoming_speed_sq"`
	IncomingAlignment   float64 `yaml:"incoming_alignment"`
	FastFleeAlignment   float64 `yaml:"fast_flee_alignment"`
	FleeDistance        float64 `yaml:"flee_distance"`
	FleeJitter          float64 `yaml:"flee_jitter"`

	BaseSpeed          float64 `yaml:"base_speed"`
	RunSpeedMultiplier float64 `yaml:"run_speed_multiplier"`
	Radius             float64 `yaml:"radius"`

	WhackDelay     float64 `yaml:"whack_delay"`
	IdleInterval   float64 `yaml:"idle_interval"`
	WanderInterval float64 `yaml:"wander_interval"`
	FleeInterval   float64 `yaml:"flee_interval"`
	StartSpread    float64 `yaml:"start_spread"`
	ArriveDistance float64 `yaml:"arrive_distance"`

	SnapDistance           float64 `yaml:"snap_distance"`
	SpawnSnapDistance      float64 `yaml:"spawn_snap_distance"`
	MaxDestinationAttempts int     `yaml:"max_destination_attempts"`
}

type chickenFile struct {
	Chicken ChickenTemplate `yaml:"chicken"`
}

// LoadChickenTuning loads the chicken template from a YAML file. Keys the
// file leaves out keep the stock values of agent.DefaultTuning.
func LoadChickenTuning(path string) (agent.Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return agent.Tuning{}, fmt.Errorf("read chicken template: %w", err)
	}
	return ParseChickenTuning(raw)
}

// ParseChickenTuning is LoadChickenTuning on an in-memory document.
func ParseChickenTuning(raw []byte) (agent.Tuning, error) {
	f := chickenFile{Chicken: templateFrom(agent.DefaultTuning())}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return agent.Tuning{}, fmt.Errorf("parse chicken template: %w", err)
	}
	t := f.Chicken.Tuning()
	if err := ValidateTuning(t); err != nil {
		return agent.Tuning{}, fmt.Errorf("chicken template: %w", err)
	}
	return t, nil
}

// Tuning converts the template to runtime form.
func (c ChickenTemplate) Tuning() agent.Tuning {
	return agent.Tuning{
		MinBehaviorDuration:    seconds(c.MinBehaviorDuration),
		MaxBehaviorDuration:    seconds(c.MaxBehaviorDuration),
		WanderProb:             c.WanderProb,
		WanderCenteringForce:   c.WanderCenteringForce,
		WanderRadius:           c.WanderRadius,
		FleeRecoverDuration:    seconds(c.FleeRecoverDuration),
		FleeRadius:             c.FleeRadius,
		FleeJitterMin:          c.FleeJitterMin,
		FleeJitterMax:          c.FleeJitterMax,
		FastFleeFactor:         c.FastFleeFactor,
		RelaxedFleeFactor:      c.RelaxedFleeFactor,
		IncomingSpeedSq:        c.IncomingSpeedSq,
		IncomingAlignment:      c.IncomingAlignment,
		FastFleeAlignment:      c.FastFleeAlignment,
		FleeDistance:           c.FleeDistance,
		FleeJitter:             c.FleeJitter,
		BaseSpeed:              c.BaseSpeed,
		RunSpeedMultiplier:     c.RunSpeedMultiplier,
		Radius:                 c.Radius,
		WhackDelay:             seconds(c.WhackDelay),
		IdleInterval:           seconds(c.IdleInterval),
		WanderInterval:         seconds(c.WanderInterval),
		FleeInterval:           seconds(c.FleeInterval),
		StartSpread:            seconds(c.StartSpread),
		ArriveDistance:         c.ArriveDistance,
		SnapDistance:           c.SnapDistance,
		SpawnSnapDistance:      c.SpawnSnapDistance,
		MaxDestinationAttempts: c.MaxDestinationAttempts,
	}
}

func templateFrom(t agent.Tuning) ChickenTemplate {
	return ChickenTemplate{
		MinBehaviorDuration:    t.MinBehaviorDuration.Seconds(),
		MaxBehaviorDuration:    t.MaxBehaviorDuration.Seconds(),
		WanderProb:             t.WanderProb,
		WanderCenteringForce:   t.WanderCenteringForce,
		WanderRadius:           t.WanderRadius,
		FleeRecoverDuration:    t.FleeRecoverDuration.Seconds(),
		FleeRadius:             t.FleeRadius,
		FleeJitterMin:          t.FleeJitterMin,
		FleeJitterMax:          t.FleeJitterMax,
		FastFleeFactor:         t.FastFleeFactor,
		RelaxedFleeFactor:      t.RelaxedFleeFactor,
		IncomingSpeedSq:        t.IncomingSpeedSq,
		IncomingAlignment:      t.IncomingAlignment,
		FastFleeAlignment:      t.FastFleeAlignment,
		FleeDistance:           t.FleeDistance,
		FleeJitter:             t.FleeJitter,
		BaseSpeed:              t.BaseSpeed,
		RunSpeedMultiplier:     t.RunSpeedMultiplier,
		Radius:                 t.Radius,
		WhackDelay:             t.WhackDelay.Seconds(),
		IdleInterval:           t.IdleInterval.Seconds(),
		WanderInterval:         t.WanderInterval.Seconds(),
		FleeInterval:           t.FleeInterval.Seconds(),
		StartSpread:            t.StartSpread.Seconds(),
		ArriveDistance:         t.ArriveDistance,
		SnapDistance:           t.SnapDistance,
		SpawnSnapDistance:      t.SpawnSnapDistance,
		MaxDestinationAttempts: t.MaxDestinationAttempts,
	}
}

// ValidateTuning rejects values the state machine cannot run with.
func ValidateTuning(t agent.Tuning) error {
	var errs []error
	if t.MinBehaviorDuration < 0 || t.MaxBehaviorDuration < t.MinBehaviorDuration {
		errs = append(errs, errors.New("behavior duration range is empty"))
	}
	if t.WanderProb < 0 || t.WanderProb > 1 {
		errs = append(errs, fmt.Errorf("wander_prob %v outside [0,1]", t.WanderProb))
	}
	if t.FleeRadius <= 0 {
		errs = append(errs, errors.New("flee_radius must be positive"))
	}
	if t.FleeJitterMin <= 0 || t.FleeJitterMax < t.FleeJitterMin {
		errs = append(errs, errors.New("flee jitter range is empty"))
	}
	if t.BaseSpeed <= 0 || t.RunSpeedMultiplier < 1 {
		errs = append(errs, errors.New("speeds must be positive and running no slower than walking"))
	}
	// A zero interval would re-evaluate every tick forever.
	if t.IdleInterval <= 0 || t.WanderInterval <= 0 || t.FleeInterval <= 0 {
		errs = append(errs, errors.New("think intervals must be positive"))
	}
	if t.MaxDestinationAttempts <= 0 {
		errs = append(errs, errors.New("max_destination_attempts must be positive"))
	}
	return errors.Join(errs...)
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
