package event

import (
	"time"

	"github.com/jakecoffman/cp"
)

// Presentation notifications. Everything here is fire-and-forget: the
// simulation never reads them back.

// AnimParam names a boolean animator parameter on a chicken.
type AnimParam uint8

const (
	AnimWalk AnimParam = iota
	AnimRun
	AnimEat
	AnimTurnHead
)

func (p AnimParam) String() string {
	switch p {
	case AnimWalk:
		return "walk"
	case AnimRun:
		return "run"
	case AnimEat:
		return "eat"
	case AnimTurnHead:
		return "turn_head"
	}
	return "unknown"
}

// Cue names a one-shot sound.
type Cue uint8

const (
	CueChickenFly Cue = iota
	CueWhack
	CueImpact
	CueSwing
	CueTimeUp
	CueVictory
	CueGameMusic
	CueStopMusic
)

func (c Cue) String() string {
	switch c {
	case CueChickenFly:
		return "chicken_fly"
	case CueWhack:
		return "whack"
	case CueImpact:
		return "impact"
	case CueSwing:
		return "swing"
	case CueTimeUp:
		return "time_up"
	case CueVictory:
		return "victory"
	case CueGameMusic:
		return "game_music"
	case CueStopMusic:
		return "stop_music"
	}
	return "unknown"
}

// AnimChanged is emitted when an actor flips an animator flag.
type AnimChanged struct {
	ActorID int32
	Param   AnimParam
	On      bool
}

// StateChanged is emitted on every behaviour state transition.
type StateChanged struct {
	ActorID int32
	From    string
	To      string
}

// SoundPlayed requests a one-shot sound. ActorID is 0 for global cues.
type SoundPlayed struct {
	ActorID  int32
	Cue      Cue
	Position cp.Vector
}

// Visibility is emitted when an actor is shown (spawned) or hidden.
type Visibility struct {
	ActorID  int32
	Visible  bool
	Position cp.Vector
}

// EffectKind names a pooled particle effect.
type EffectKind uint8

const (
	EffectExplosion EffectKind = iota
	EffectImpact
)

func (k EffectKind) String() string {
	switch k {
	case EffectExplosion:
		return "explosion"
	case EffectImpact:
		return "impact"
	}
	return "unknown"
}

// EffectPlayed is emitted when a pooled effect starts playing.
type EffectPlayed struct {
	Kind     EffectKind
	Position cp.Vector
	Duration time.Duration
}

// ScoreChanged is emitted on every scored whack.
type ScoreChanged struct {
	Score     int
	Objective int
}

// Outcome is how a round ended.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeWin
	OutcomeLose
	OutcomeQuit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "win"
	case OutcomeLose:
		return "lose"
	case OutcomeQuit:
		return "quit"
	}
	return "none"
}

// RoundEnded is emitted once per round when the outcome is decided.
type RoundEnded struct {
	Outcome Outcome
	Score   int
	Elapsed time.Duration
}
