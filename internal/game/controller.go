package game

import (
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/config"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/sched"
	"github.com/flocksim/flocksim/internal/scripting"
	"github.com/jakecoffman/cp"
	"go.uber.org/zap"
)

// Rules computes per-round settings. *scripting.Engine implements it.
type Rules interface {
	CalcTimeLimit(ctx scripting.RoundContext) time.Duration
	CalcScoreObjective(ctx scripting.RoundContext) int
}

// DefaultRules is the built-in rule set, used when no script engine is wired.
type DefaultRules struct{}

func (DefaultRules) CalcTimeLimit(ctx scripting.RoundContext) time.Duration {
	return scripting.DefaultTimeLimit(ctx)
}

func (DefaultRules) CalcScoreObjective(ctx scripting.RoundContext) int { return ctx.ChickenAmount }

// Whack is one scored hit.
type Whack struct {
	At       time.Duration // since round start
	Position cp.Vector
}

// Result summarizes a finished round.
type Result struct {
	Round          int
	Outcome        event.Outcome
	ChickenAmount  int
	ScoreObjective int
	Score          int
	TimeLimit      time.Duration
	Elapsed        time.Duration
	Whacks         []Whack
}

// Controller runs the gameplay phase of one round at a time: lose
// countdown, scoring, win check and the post-game exit delay.
type Controller struct {
	env    *agent.Env
	cfg    config.GameConfig
	mgr    *Manager
	player *Player
	rules  Rules
	log    *zap.Logger

	round          int
	chickenAmount  int
	scoreObjective int
	timeLimit      time.Duration

	running  bool
	ended    bool
	done     bool
	outcome  event.Outcome
	startAt  time.Duration
	endAt    time.Duration
	score    int
	whacks   []Whack
	loseTask sched.Handle
}

func NewController(env *agent.Env, cfg config.GameConfig, mgr *Manager, player *Player, rules Rules, log *zap.Logger) *Controller {
	if rules == nil {
		rules = DefaultRules{}
	}
	c := &Controller{env: env, cfg: cfg, mgr: mgr, player: player, rules: rules, log: log}
	c.SetChickenAmount(cfg.ChickenAmount)
	return c
}

// SetChickenAmount clamps n to the configured range and derives the score
// objective and time limit for the next round.
func (c *Controller) SetChickenAmount(n int) {
	n = max(c.cfg.MinChickenAmount, min(n, c.cfg.MaxChickenAmount))
	ctx := scripting.RoundContext{
		Round:         c.round + 1,
		ChickenAmount: n,
		MinAmount:     c.cfg.MinChickenAmount,
		MaxAmount:     c.cfg.MaxChickenAmount,
		BaseLimit:     c.cfg.BaseTimeLimit,
		PerMinLimit:   c.cfg.TimeLimitPerMinCount,
	}
	c.chickenAmount = n
	c.scoreObjective = c.rules.CalcScoreObjective(ctx)
	c.timeLimit = c.rules.CalcTimeLimit(ctx)
}

// Start activates the gameplay phase: spawns the flock, arms the lose timer
// and resets the player.
func (c *Controller) Start() {
	if c.running {
		return
	}
	c.round++
	c.running = true
	c.ended, c.done = false, false
	c.outcome = event.OutcomeNone
	c.score = 0
	c.whacks = c.whacks[:0]
	c.startAt = c.env.Sched.Now()

	c.player.Reset()
	c.mgr.OnActorDown(c.onActorDown)
	spawned := c.mgr.SpawnChickens(c.chickenAmount)
	if spawned < c.scoreObjective {
		c.log.Warn("flock smaller than objective",
			zap.Int("spawned", spawned), zap.Int("objective", c.scoreObjective))
		c.scoreObjective = spawned
	}

	c.loseTask = c.env.Sched.Schedule(c, c.timeLimit, c.Lose)
	event.Emit(c.env.Bus, event.SoundPlayed{Cue: event.CueGameMusic})
	event.Emit(c.env.Bus, event.ScoreChanged{Score: 0, Objective: c.scoreObjective})

	c.log.Info("round started",
		zap.Int("round", c.round),
		zap.Int("chickens", spawned),
		zap.Int("objective", c.scoreObjective),
		zap.Duration("time_limit", c.timeLimit),
	)
	if c.scoreObjective == 0 {
		c.Win()
	}
}

// Stop deactivates the gameplay phase and clears the arena.
func (c *Controller) Stop() {
	if !c.running {
		return
	}
	c.running = false
	c.env.Sched.CancelAll(c)
	c.loseTask = 0
	c.mgr.OnActorDown(nil)
	c.mgr.Clear()
	c.player.Disable()
	c.score = 0
}

func (c *Controller) onActorDown(pos cp.Vector) {
	if c.ended {
		return
	}
	c.score++
	c.whacks = append(c.whacks, Whack{At: c.env.Sched.Now() - c.startAt, Position: pos})
	event.Emit(c.env.Bus, event.ScoreChanged{Score: c.score, Objective: c.scoreObjective})
	if c.score == c.scoreObjective {
		c.Win()
	}
}

// Win ends the round as a victory. No-op once the round has ended.
func (c *Controller) Win() {
	c.finish(event.OutcomeWin, event.CueVictory, c.cfg.ExitDelay)
}

// Lose ends the round on time-out. No-op once the round has ended.
func (c *Controller) Lose() {
	c.finish(event.OutcomeLose, event.CueTimeUp, c.cfg.ExitDelay)
}

// Quit abandons the round without a delay.
func (c *Controller) Quit() {
	c.finish(event.OutcomeQuit, event.CueStopMusic, 0)
}

func (c *Controller) finish(o event.Outcome, cue event.Cue, exitDelay time.Duration) {
	if c.ended || !c.running {
		return
	}
	c.ended = true
	c.outcome = o
	c.endAt = c.env.Sched.Now()
	c.env.Sched.Cancel(c.loseTask)
	c.loseTask = 0

	c.player.OnGameEnded()
	if o != event.OutcomeQuit {
		event.Emit(c.env.Bus, event.SoundPlayed{Cue: event.CueStopMusic})
	}
	event.Emit(c.env.Bus, event.SoundPlayed{Cue: cue})
	event.Emit(c.env.Bus, event.RoundEnded{Outcome: o, Score: c.score, Elapsed: c.endAt - c.startAt})

	c.log.Info("round ended",
		zap.Int("round", c.round),
		zap.Stringer("outcome", o),
		zap.Int("score", c.score),
		zap.Int("objective", c.scoreObjective),
		zap.Duration("elapsed", c.endAt-c.startAt),
	)
	c.env.Sched.Schedule(c, exitDelay, func() { c.done = true })
}

// TimeLeft returns the time until the lose timer fires, frozen once the
// round has ended.
func (c *Controller) TimeLeft() time.Duration {
	if !c.running {
		return c.timeLimit
	}
	now := c.env.Sched.Now()
	if c.ended {
		now = c.endAt
	}
	return max(0, c.timeLimit-(now-c.startAt))
}

func (c *Controller) Round() int               { return c.round }
func (c *Controller) Score() int               { return c.score }
func (c *Controller) ScoreObjective() int      { return c.scoreObjective }
func (c *Controller) ChickenAmount() int       { return c.chickenAmount }
func (c *Controller) TimeLimit() time.Duration { return c.timeLimit }
func (c *Controller) Running() bool            { return c.running }

// GameEnded reports whether the round is over. The arena stays up until
// Done, so effects and cues can finish.
func (c *Controller) GameEnded() bool { return c.ended }

// Done reports whether the post-game delay has elapsed.
func (c *Controller) Done() bool { return c.done }

// Result returns the summary of the current or last round.
func (c *Controller) Result() Result {
	elapsed := c.env.Sched.Now() - c.startAt
	if c.ended {
		elapsed = c.endAt - c.startAt
	}
	return Result{
		Round:          c.round,
		Outcome:        c.outcome,
		ChickenAmount:  c.chickenAmount,
		ScoreObjective: c.scoreObjective,
		Score:          c.score,
		TimeLimit:      c.timeLimit,
		Elapsed:        elapsed,
		Whacks:         append([]Whack(nil), c.whacks...),
	}
}
