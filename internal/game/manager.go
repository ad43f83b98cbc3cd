package game

import (
	"math"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/config"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/pool"
	"github.com/jakecoffman/cp"
	"go.uber.org/zap"
)

// Manager spawns and despawns the flock and its whack effects, both pooled.
// It is the agent.Owner of every chicken it spawns.
type Manager struct {
	env      *agent.Env
	cfg      config.GameConfig
	log      *zap.Logger
	chickens *pool.Pool[*agent.Chicken]
	effects  *pool.Pool[*Effect]
	onDown   func(pos cp.Vector)
}

// NewManager builds the pools. tuning is shared by every chicken and may be
// replaced in place between rounds.
func NewManager(env *agent.Env, tuning *agent.Tuning, cfg config.GameConfig, log *zap.Logger) *Manager {
	m := &Manager{env: env, cfg: cfg, log: log}
	m.chickens = pool.New(env.Sched, func() *agent.Chicken {
		return agent.New(env, tuning)
	}, 0)
	m.effects = pool.New(env.Sched, func() *Effect {
		return newEffect(event.EffectExplosion, cfg.ExplosionDuration, env)
	}, cfg.ExplosionPreload)
	return m
}

// OnActorDown sets the scoring listener. nil detaches it.
func (m *Manager) OnActorDown(fn func(pos cp.Vector)) { m.onDown = fn }

// SpawnChickens borrows n chickens and places each at a random point of the
// spawn ring. A chicken that finds no walkable origin within SpawnAttempts
// tries is handed back. Returns how many were spawned.
func (m *Manager) SpawnChickens(n int) int {
	spawned := 0
	for i := 0; i < n; i++ {
		h, c := m.chickens.Acquire()
		ok := false
		for try := 0; try < m.cfg.SpawnAttempts && !ok; try++ {
			ok = c.Spawn(m, h, m.spawnOrigin())
		}
		if !ok {
			m.chickens.Release(h)
			m.log.Warn("chicken spawn failed", zap.Int("attempts", m.cfg.SpawnAttempts))
			continue
		}
		spawned++
	}
	m.log.Debug("flock spawned", zap.Int("requested", n), zap.Int("spawned", spawned),
		zap.Int("pool_size", m.chickens.Len()))
	return spawned
}

func (m *Manager) spawnOrigin() cp.Vector {
	r := m.cfg.SpawnMinRadius + m.env.Rand.Float64()*(m.cfg.SpawnMaxRadius-m.cfg.SpawnMinRadius)
	return cp.ForAngle(2 * math.Pi * m.env.Rand.Float64()).Mult(r)
}

// Clear despawns every chicken and stops every effect.
func (m *Manager) Clear() {
	n := m.chickens.Drain(func(_ pool.Handle, c *agent.Chicken) { c.Despawn() })
	m.effects.Drain(func(_ pool.Handle, e *Effect) { e.Stop() })
	m.log.Debug("flock cleared", zap.Int("chickens", n))
}

// Live returns how many chickens are out.
func (m *Manager) Live() int { return m.chickens.Borrowed() }

// Each calls fn for every spawned chicken.
func (m *Manager) Each(fn func(*agent.Chicken)) {
	m.chickens.Each(func(_ pool.Handle, c *agent.Chicken) { fn(c) })
}

// Nearest returns the closest chicken that can still be whacked.
func (m *Manager) Nearest(p cp.Vector) (*agent.Chicken, bool) {
	var (
		best   *agent.Chicken
		bestSq = math.Inf(1)
	)
	m.Each(func(c *agent.Chicken) {
		if !c.Active() || c.Dying() {
			return
		}
		if d := c.Position().DistanceSq(p); d < bestSq {
			best, bestSq = c, d
		}
	})
	return best, best != nil
}

// InReach returns the whackable chickens within r of p, in pool order.
func (m *Manager) InReach(p cp.Vector, r float64) []*agent.Chicken {
	var hits []*agent.Chicken
	r2 := r * r
	m.Each(func(c *agent.Chicken) {
		if c.Active() && !c.Dying() && c.Position().DistanceSq(p) <= r2 {
			hits = append(hits, c)
		}
	})
	return hits
}

// ActorDown implements agent.Owner.
func (m *Manager) ActorDown(pos cp.Vector) {
	if m.onDown != nil {
		m.onDown(pos)
	}
}

// PlayWhackEffect implements agent.Owner.
func (m *Manager) PlayWhackEffect(pos cp.Vector) {
	_, fx := m.effects.AcquireWithTimeout(m.cfg.ExplosionDuration)
	fx.Play(pos)
}

// Release implements agent.Owner.
func (m *Manager) Release(h pool.Handle) bool {
	return m.chickens.Release(h)
}

// Effects exposes the whack effect pool.
func (m *Manager) Effects() *pool.Pool[*Effect] { return m.effects }

// Close drops both pools. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.Clear()
	m.chickens.Close()
	m.effects.Close()
}
