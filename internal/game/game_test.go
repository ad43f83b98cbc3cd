package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/config"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/pool"
	"github.com/flocksim/flocksim/internal/core/sched"
	"github.com/flocksim/flocksim/internal/nav"
	"github.com/jakecoffman/cp"
	"go.uber.org/zap/zaptest"
)

type world struct {
	env    *agent.Env
	cfg    config.GameConfig
	tuning *agent.Tuning
	mgr    *Manager
	player *Player
	ctrl   *Controller
}

func newWorld(t *testing.T, mesh *nav.Mesh) *world {
	t.Helper()
	cfg := config.Default().Game
	tuning := agent.DefaultTuning()
	frame := &agent.Frame{}
	frame.Refresh(agent.Threat{Position: cp.Vector{X: 1000}})
	env := &agent.Env{
		Sched:    sched.New(),
		Nav:      mesh,
		Threat:   frame,
		Rand:     rand.New(rand.NewSource(3)),
		Bus:      event.NewBus(),
		PlayArea: cfg.PlayAreaRadius,
	}
	log := zaptest.NewLogger(t)
	w := &world{env: env, cfg: cfg, tuning: &tuning}
	w.mgr = NewManager(env, w.tuning, cfg, log)
	w.player = NewPlayer(env, cfg, w.mgr)
	w.ctrl = NewController(env, cfg, w.mgr, w.player, nil, log)
	return w
}

// only returns the single spawned chicken.
func (w *world) only(t *testing.T) *agent.Chicken {
	t.Helper()
	var out *agent.Chicken
	w.mgr.Each(func(c *agent.Chicken) { out = c })
	if out == nil || w.mgr.Live() != 1 {
		t.Fatalf("expected exactly one chicken, have %d", w.mgr.Live())
	}
	return out
}

func TestSpawnChickensInRing(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	if n := w.mgr.SpawnChickens(16); n != 16 {
		t.Fatalf("spawned %d", n)
	}
	if w.mgr.Live() != 16 {
		t.Fatalf("live=%d", w.mgr.Live())
	}
	w.mgr.Each(func(c *agent.Chicken) {
		d := c.Position().Length()
		if d < w.cfg.SpawnMinRadius-1e-9 || d > w.cfg.SpawnMaxRadius+1e-9 {
			t.Errorf("chicken %d spawned at distance %v", c.ID(), d)
		}
		if !c.Active() {
			t.Errorf("chicken %d not active", c.ID())
		}
	})
}

func TestSpawnGivesUpWithoutGround(t *testing.T) {
	w := newWorld(t, nav.NewDisc(1))
	if n := w.mgr.SpawnChickens(3); n != 0 {
		t.Fatalf("spawned %d on a mesh that misses the ring", n)
	}
	if w.mgr.Live() != 0 || w.env.Sched.Len() != 0 {
		t.Fatalf("failed spawns leaked: live=%d pending=%d", w.mgr.Live(), w.env.Sched.Len())
	}
}

func TestClearRecyclesFlock(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(8)
	w.env.Sched.Tick(2 * time.Second)
	w.mgr.PlayWhackEffect(cp.Vector{X: 1})

	w.mgr.Clear()
	if w.mgr.Live() != 0 || w.mgr.Effects().Borrowed() != 0 {
		t.Fatalf("live=%d effects=%d", w.mgr.Live(), w.mgr.Effects().Borrowed())
	}
	if w.env.Sched.Len() != 0 {
		t.Fatalf("%d actions survived Clear", w.env.Sched.Len())
	}

	// The pool is reused, not regrown.
	w.mgr.SpawnChickens(8)
	if w.mgr.chickens.Len() != 8 {
		t.Fatalf("pool grew to %d", w.mgr.chickens.Len())
	}
}

func TestWhackEffectReturnsAfterDuration(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.PlayWhackEffect(cp.Vector{X: 2})
	if w.mgr.Effects().Borrowed() != 1 {
		t.Fatalf("borrowed=%d", w.mgr.Effects().Borrowed())
	}
	if event.Pending[event.EffectPlayed](w.env.Bus) != 1 {
		t.Fatalf("no effect event")
	}
	var fx *Effect
	w.mgr.Effects().Each(func(_ pool.Handle, e *Effect) { fx = e })
	hidden := 0
	event.Subscribe(w.env.Bus, func(e event.Visibility) {
		if e.ActorID == fx.ID() && !e.Visible {
			hidden++
		}
	})

	w.env.Sched.Tick(w.cfg.ExplosionDuration - time.Millisecond)
	if !fx.Playing() || w.mgr.Effects().Borrowed() != 1 {
		t.Fatalf("effect ended early")
	}
	w.env.Sched.Tick(time.Millisecond)
	if w.mgr.Effects().Borrowed() != 0 {
		t.Fatalf("effect not returned after its duration")
	}
	if fx.Playing() {
		t.Fatalf("returned effect still playing")
	}
	w.env.Bus.SwapBuffers()
	w.env.Bus.DispatchAll()
	if hidden != 1 {
		t.Fatalf("hidden=%d, want 1", hidden)
	}
}

func TestReplayedEffectKeepsItsNewTimer(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.PlayWhackEffect(cp.Vector{X: 1})
	var fx *Effect
	w.mgr.Effects().Each(func(_ pool.Handle, e *Effect) { fx = e })

	w.env.Sched.Tick(w.cfg.ExplosionDuration / 2)
	fx.Play(cp.Vector{X: 3})
	w.env.Sched.Tick(w.cfg.ExplosionDuration / 2)
	if !fx.Playing() {
		t.Fatalf("first timer stopped the replayed effect")
	}
	w.env.Sched.Tick(w.cfg.ExplosionDuration / 2)
	if fx.Playing() {
		t.Fatalf("replayed effect never stopped")
	}
}

func TestNearestAndInReach(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(3)
	spots := []cp.Vector{{X: 1}, {X: 3}, {X: -8}}
	var chickens []*agent.Chicken
	w.mgr.Each(func(c *agent.Chicken) { chickens = append(chickens, c) })
	for i, c := range chickens {
		c.Body().Warp(spots[i])
	}

	c, ok := w.mgr.Nearest(cp.Vector{X: 2.8})
	if !ok || c != chickens[1] {
		t.Fatalf("nearest=%v ok=%v", c, ok)
	}
	if got := w.mgr.InReach(cp.Vector{}, 1.2); len(got) != 1 || got[0] != chickens[0] {
		t.Fatalf("in reach=%v", got)
	}

	chickens[1].Whack()
	if c, _ := w.mgr.Nearest(cp.Vector{X: 2.8}); c != chickens[0] {
		t.Fatalf("dying chicken still targeted")
	}
}

func TestSetChickenAmount(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	tests := []struct {
		amount    int
		wantCount int
		wantLimit time.Duration
	}{
		{8, 16, 60 * time.Second},
		{16, 16, 60 * time.Second},
		{24, 24, 75 * time.Second},
		{100, 64, 150 * time.Second},
	}
	for _, tt := range tests {
		w.ctrl.SetChickenAmount(tt.amount)
		if w.ctrl.ChickenAmount() != tt.wantCount || w.ctrl.ScoreObjective() != tt.wantCount {
			t.Errorf("amount %d: count=%d objective=%d", tt.amount, w.ctrl.ChickenAmount(), w.ctrl.ScoreObjective())
		}
		if w.ctrl.TimeLimit() != tt.wantLimit {
			t.Errorf("amount %d: limit=%v, want %v", tt.amount, w.ctrl.TimeLimit(), tt.wantLimit)
		}
	}
}

func TestRoundWinsAtObjective(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.ctrl.Start()
	if !w.ctrl.Running() || w.mgr.Live() != 16 {
		t.Fatalf("running=%v live=%d", w.ctrl.Running(), w.mgr.Live())
	}
	w.env.Sched.Tick(10 * time.Second)

	w.mgr.Each(func(c *agent.Chicken) { c.Whack() })
	if !w.ctrl.GameEnded() || w.ctrl.Result().Outcome != event.OutcomeWin {
		t.Fatalf("ended=%v outcome=%v", w.ctrl.GameEnded(), w.ctrl.Result().Outcome)
	}
	if w.ctrl.Score() != 16 || len(w.ctrl.Result().Whacks) != 16 {
		t.Fatalf("score=%d whacks=%d", w.ctrl.Score(), len(w.ctrl.Result().Whacks))
	}
	if left := w.ctrl.TimeLeft(); left != 50*time.Second {
		t.Fatalf("time left=%v", left)
	}
	if event.Pending[event.RoundEnded](w.env.Bus) != 1 {
		t.Fatalf("round end not announced")
	}

	w.env.Sched.Tick(w.cfg.ExitDelay - time.Millisecond)
	if w.ctrl.Done() {
		t.Fatalf("done before the exit delay")
	}
	if w.ctrl.TimeLeft() != 50*time.Second {
		t.Fatalf("time left kept running after the end")
	}
	w.env.Sched.Tick(time.Millisecond)
	if !w.ctrl.Done() {
		t.Fatalf("not done after the exit delay")
	}
	if w.mgr.Live() != 0 {
		t.Fatalf("whacked chickens not recycled: %d", w.mgr.Live())
	}
}

func TestRoundLosesOnTimeout(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.ctrl.Start()
	limit := w.ctrl.TimeLimit()

	w.env.Sched.Tick(limit - time.Millisecond)
	if w.ctrl.GameEnded() {
		t.Fatalf("lost early")
	}
	w.env.Sched.Tick(time.Millisecond)
	res := w.ctrl.Result()
	if res.Outcome != event.OutcomeLose || res.Elapsed != limit || w.ctrl.TimeLeft() != 0 {
		t.Fatalf("result=%+v", res)
	}

	// Late hits no longer score.
	var c *agent.Chicken
	w.mgr.Each(func(x *agent.Chicken) { c = x })
	c.Whack()
	if w.ctrl.Score() != 0 {
		t.Fatalf("scored after the end")
	}
}

func TestStopClearsArena(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.ctrl.Start()
	w.env.Sched.Tick(3 * time.Second)
	w.ctrl.Stop()

	if w.ctrl.Running() || w.mgr.Live() != 0 {
		t.Fatalf("running=%v live=%d", w.ctrl.Running(), w.mgr.Live())
	}
	if w.env.Sched.Len() != 0 {
		t.Fatalf("%d actions survived Stop", w.env.Sched.Len())
	}

	// A second round starts cleanly.
	w.ctrl.SetChickenAmount(16)
	w.ctrl.Start()
	if w.ctrl.Round() != 2 || w.ctrl.Score() != 0 || w.mgr.Live() != 16 {
		t.Fatalf("round=%d score=%d live=%d", w.ctrl.Round(), w.ctrl.Score(), w.mgr.Live())
	}
}

func TestQuitIsImmediate(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.ctrl.Start()
	w.ctrl.Quit()
	w.ctrl.Win()
	if w.ctrl.Result().Outcome != event.OutcomeQuit {
		t.Fatalf("outcome=%v", w.ctrl.Result().Outcome)
	}
	w.env.Sched.Tick(0)
	if !w.ctrl.Done() {
		t.Fatalf("quit waits for the exit delay")
	}
}

func TestPlayerSwingHits(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(1)
	c := w.only(t)
	c.Body().Warp(cp.Vector{X: 1})
	w.player.Reset()

	w.player.Update()
	if w.player.Swings() != 1 || w.player.CanAttack() || w.player.Body().Speed() != 0 {
		t.Fatalf("no swing: swings=%d", w.player.Swings())
	}
	w.player.Update() // mid-swing: nothing new
	if w.player.Swings() != 1 {
		t.Fatalf("swung twice")
	}

	w.env.Sched.Tick(w.cfg.AttackCheckDelay)
	if w.player.Hits() != 1 || !c.Dying() {
		t.Fatalf("hit did not land")
	}
	if !w.player.CanAttack() || w.player.Body().Speed() != w.cfg.PlayerSpeed {
		t.Fatalf("player did not recover from the swing")
	}
	if w.player.Impacts().Borrowed() != 1 {
		t.Fatalf("no impact effect")
	}
	w.env.Sched.Tick(w.cfg.ImpactDuration)
	if w.player.Impacts().Borrowed() != 0 {
		t.Fatalf("impact effect not returned")
	}
}

func TestPlayerSwingMisses(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(1)
	c := w.only(t)
	c.Body().Warp(cp.Vector{X: 1})
	w.player.Reset()
	w.player.Update()

	c.Body().Warp(cp.Vector{X: 5})
	var cues []event.Cue
	event.Subscribe(w.env.Bus, func(e event.SoundPlayed) { cues = append(cues, e.Cue) })
	w.env.Bus.SwapBuffers()
	w.env.Sched.Tick(w.cfg.AttackCheckDelay)
	w.env.Bus.SwapBuffers()
	w.env.Bus.DispatchAll()

	if w.player.Hits() != 0 || c.Dying() {
		t.Fatalf("missed swing hit")
	}
	found := false
	for _, cue := range cues {
		found = found || cue == event.CueSwing
	}
	if !found {
		t.Fatalf("cues=%v, want swing", cues)
	}
}

func TestPlayerChasesNearest(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(1)
	c := w.only(t)
	c.Body().Warp(cp.Vector{X: 10})
	w.player.Reset()

	w.player.Update()
	if !w.player.Body().HasPath() || w.player.Body().Destination().Distance(cp.Vector{X: 10}) > 1e-6 {
		t.Fatalf("player not chasing: dest=%v", w.player.Body().Destination())
	}
	w.player.Body().Step(time.Second)
	th := w.player.Threat()
	if th.Velocity.X <= 0 || th.Position.X <= 0 {
		t.Fatalf("threat snapshot does not follow the player: %+v", th)
	}
}

func TestPlayerIdleUntilReset(t *testing.T) {
	w := newWorld(t, nav.NewDisc(40))
	w.mgr.SpawnChickens(1)
	w.only(t).Body().Warp(cp.Vector{X: 1})
	w.player.Update()
	if w.player.Swings() != 0 {
		t.Fatalf("player acted before Reset")
	}
	w.player.Reset()
	w.player.OnGameEnded()
	w.player.Update()
	if w.player.Swings() != 0 || w.player.Body().HasPath() {
		t.Fatalf("player acted after the game ended")
	}
}
