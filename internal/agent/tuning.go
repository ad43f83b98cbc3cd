package agent

import "time"

// Tuning holds the behaviour constants shared by every chicken of one kind.
// Radii are in ground-plane units, speeds in units per second.
type Tuning struct {
	// Random state (idle / wander) duration range of the background reroll loop.
	MinBehaviorDuration time.Duration
	MaxBehaviorDuration time.Duration
	// Chance of picking wander over idle.
	WanderProb float64
	// Pull towards the arena centre when choosing a wander point.
	WanderCenteringForce float64
	// Maximum wander point distance.
	WanderRadius float64

	// Time until giving up avoidance once the threat stops being dangerous,
	// scaled by U[0,1].
	FleeRecoverDuration time.Duration
	// Base distance to the threat that starts fleeing.
	FleeRadius float64
	// Per-actor multiplier range applied to FleeRadius at construction.
	FleeJitterMin float64
	FleeJitterMax float64
	// Fractions of the flee radius for the fast (run) and relaxed tests.
	FastFleeFactor    float64
	RelaxedFleeFactor float64
	// Threat counts as incoming above this squared speed ...
	IncomingSpeedSq float64
	// ... and when dot(velocity, threat→actor) exceeds these.
	IncomingAlignment float64
	FastFleeAlignment float64
	// How far a flee candidate is thrown, and its random jitter.
	FleeDistance float64
	FleeJitter   float64

	BaseSpeed          float64
	RunSpeedMultiplier float64
	// Footprint radius of the nav body.
	Radius float64

	// Delay between hit and despawn.
	WhackDelay time.Duration

	IdleInterval   time.Duration
	WanderInterval time.Duration
	FleeInterval   time.Duration
	// Maximum random delay before a freshly spawned chicken starts thinking.
	StartSpread time.Duration
	// Wander counts as arrived below this remaining path distance.
	ArriveDistance float64

	// Nav snap distances for destination candidates and spawn points.
	SnapDistance      float64
	SpawnSnapDistance float64
	// Rejection sampling cap for destination selection.
	MaxDestinationAttempts int
}

// DefaultTuning returns the stock chicken.
func DefaultTuning() Tuning {
	return Tuning{
		MinBehaviorDuration:    2 * time.Second,
		MaxBehaviorDuration:    10 * time.Second,
		WanderProb:             0.5,
		WanderCenteringForce:   0.25,
		WanderRadius:           5,
		FleeRecoverDuration:    2 * time.Second,
		FleeRadius:             5,
		FleeJitterMin:          0.75,
		FleeJitterMax:          1.5,
		FastFleeFactor:         0.7,
		RelaxedFleeFactor:      0.5,
		IncomingSpeedSq:        1,
		IncomingAlignment:      0,
		FastFleeAlignment:      0.5,
		FleeDistance:           20,
		FleeJitter:             10,
		BaseSpeed:              1.5,
		RunSpeedMultiplier:     1.8,
		Radius:                 0.3,
		WhackDelay:             150 * time.Millisecond,
		IdleInterval:           time.Second,
		WanderInterval:         time.Second,
		FleeInterval:           500 * time.Millisecond,
		StartSpread:            time.Second,
		ArriveDistance:         1,
		SnapDistance:           4,
		SpawnSnapDistance:      1,
		MaxDestinationAttempts: 100,
	}
}
