package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/flocksim/flocksim/internal/config"
	"github.com/flocksim/flocksim/internal/core/event"
	"github.com/flocksim/flocksim/internal/core/sched"
	coresys "github.com/flocksim/flocksim/internal/core/system"
	"github.com/flocksim/flocksim/internal/data"
	"github.com/flocksim/flocksim/internal/game"
	"github.com/flocksim/flocksim/internal/persist"
	"github.com/flocksim/flocksim/internal/scripting"
	"github.com/flocksim/flocksim/internal/system"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// sim bundles everything one process runs rounds with.
type sim struct {
	cfg    *config.Config
	log    *zap.Logger
	seed   int64
	tuning *agent.Tuning
	rules  *scripting.Engine
	rounds *persist.RoundRepo // nil when the database is disabled
	watch  *data.Watcher      // nil when hot reload is off

	env    *agent.Env
	mgr    *game.Manager
	player *game.Player
	ctrl   *game.Controller
	pres   *system.PresentationSystem
	runner *coresys.Runner
}

// ── Main simulation logic ─────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/sim.toml"
	if p := os.Getenv("FLOCKSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	printBanner(seed)

	s := &sim{cfg: cfg, log: log, seed: seed}

	// 3. Load data tables and rules
	printSection("data")
	tuning, err := data.LoadChickenTuning(cfg.Data.ChickenFile)
	if err != nil {
		return fmt.Errorf("chicken template: %w", err)
	}
	s.tuning = &tuning
	printOK(fmt.Sprintf("chicken template %s", cfg.Data.ChickenFile))

	arena, err := data.LoadArena(cfg.Data.ArenaFile)
	if err != nil {
		return fmt.Errorf("arena: %w", err)
	}
	mesh, err := arena.Mesh()
	if err != nil {
		return err
	}
	printStat(fmt.Sprintf("arena %q walkable areas", arena.Name), mesh.Areas())

	s.rules, err = scripting.NewEngine(cfg.Data.ScriptDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer s.rules.Close()
	printOK("lua round rules loaded")
	fmt.Println()

	// 4. Connect to PostgreSQL and run migrations
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cfg.Database.Enabled {
		printSection("database")
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.RunMigrations(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))
		s.rounds = persist.NewRoundRepo(db)
		fmt.Println()
	}

	// 5. Hot reload of tuning and rules between rounds
	if cfg.Data.Watch {
		dirs := []string{filepath.Dir(cfg.Data.ChickenFile), filepath.Join(cfg.Data.ScriptDir, "rules")}
		s.watch, err = data.NewWatcher(dirs...)
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		defer s.watch.Close()
	}

	// 6. Build the world and register systems
	frame := &agent.Frame{}
	s.env = &agent.Env{
		Sched:    sched.New(),
		Nav:      mesh,
		Threat:   frame,
		Rand:     rand.New(rand.NewSource(seed)),
		Bus:      event.NewBus(),
		PlayArea: cfg.Game.PlayAreaRadius,
	}
	s.mgr = game.NewManager(s.env, s.tuning, cfg.Game, log.Named("flock"))
	defer s.mgr.Close()
	s.player = game.NewPlayer(s.env, cfg.Game, s.mgr)
	s.ctrl = game.NewController(s.env, cfg.Game, s.mgr, s.player, s.rules, log.Named("round"))
	s.pres = system.NewPresentationSystem(s.env.Bus, log.Named("present"))

	s.runner = coresys.NewRunner()
	s.runner.Register(system.NewThreatSystem(frame, s.player))
	s.runner.Register(system.NewPlayerSystem(s.player))
	s.runner.Register(system.NewScheduleSystem(s.env.Sched))
	s.runner.Register(system.NewMovementSystem(s.player, s.mgr))
	s.runner.Register(s.pres)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	printSection("ready")
	mode := "fast-forward"
	if cfg.Sim.Realtime {
		mode = "realtime"
	}
	printReady(fmt.Sprintf("%d rounds, %s (tick: %s)", cfg.Sim.Rounds, mode, cfg.Sim.TickRate))
	fmt.Println()

	// 7. Play
	var results []game.Result
	for i := 0; i < cfg.Sim.Rounds; i++ {
		s.applyReloads()
		res, interrupted := s.playRound(shutdownCh)
		results = append(results, res)
		s.report(res)
		if s.rounds != nil {
			s.save(res)
		}
		s.ctrl.Stop()
		s.pres.Reset()
		if interrupted {
			log.Info("shutdown signal received")
			break
		}
	}

	s.summary(results)
	return nil
}

// playRound runs one round until the post-game delay has elapsed. It reports
// whether a shutdown signal cut it short.
func (s *sim) playRound(shutdownCh <-chan os.Signal) (game.Result, bool) {
	s.ctrl.SetChickenAmount(s.cfg.Game.ChickenAmount)
	s.ctrl.Start()
	start := s.env.Sched.Now()
	dt := s.cfg.Sim.TickRate

	var tick <-chan time.Time
	if s.cfg.Sim.Realtime {
		ticker := time.NewTicker(dt)
		defer ticker.Stop()
		tick = ticker.C
	}

	interrupted := false
	for !s.ctrl.Done() {
		if s.cfg.Sim.Realtime {
			select {
			case <-tick:
			case <-shutdownCh:
				interrupted = true
			}
		} else {
			select {
			case <-shutdownCh:
				interrupted = true
			default:
			}
		}
		if interrupted {
			s.ctrl.Quit()
			s.runner.Tick(0)
			break
		}

		s.runner.Tick(dt)
		if s.env.Sched.Now()-start > s.cfg.Sim.MaxRoundTime && !s.ctrl.GameEnded() {
			s.log.Warn("round exceeded max round time", zap.Duration("limit", s.cfg.Sim.MaxRoundTime))
			s.ctrl.Quit()
		}
	}
	return s.ctrl.Result(), interrupted
}

// applyReloads picks up data files changed since the previous round.
func (s *sim) applyReloads() {
	if s.watch == nil {
		return
	}
	for {
		select {
		case path, ok := <-s.watch.Events:
			if !ok {
				return
			}
			s.reload(path)
		case err, ok := <-s.watch.Errors:
			if ok {
				s.log.Warn("watch error", zap.Error(err))
			}
		default:
			return
		}
	}
}

func (s *sim) reload(path string) {
	switch {
	case filepath.Ext(path) == ".lua":
		if err := s.rules.Reload(); err != nil {
			s.log.Error("reload rules", zap.String("file", path), zap.Error(err))
		}
	case filepath.Clean(path) == filepath.Clean(s.cfg.Data.ChickenFile):
		t, err := data.LoadChickenTuning(path)
		if err != nil {
			s.log.Error("reload chicken template", zap.String("file", path), zap.Error(err))
			return
		}
		*s.tuning = t
		s.log.Info("chicken template reloaded", zap.String("file", path))
	}
}

func (s *sim) report(res game.Result) {
	printSection(fmt.Sprintf("round %d", res.Round))
	printValue("outcome", res.Outcome.String())
	printValue("score", fmt.Sprintf("%d / %d", res.Score, res.ScoreObjective))
	printValue("time", fmt.Sprintf("%s / %s", formatClock(res.Elapsed), formatClock(res.TimeLimit)))
	tally := s.pres.Tally()
	printStat("swings", s.player.Swings())
	printStat("hits", s.player.Hits())
	printStat("state transitions", tally.Transitions)
	printStat("flee cues", tally.Cues[event.CueChickenFly])
	printStat("frames (total)", int(s.runner.Frames()))
	fmt.Println()
}

func (s *sim) save(res game.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	whacks := make([]persist.WhackRow, len(res.Whacks))
	for i, w := range res.Whacks {
		whacks[i] = persist.WhackRow{At: w.At, X: w.Position.X, Z: w.Position.Y}
	}
	id, err := s.rounds.Save(ctx, persist.RoundRow{
		Seed:           s.seed,
		RoundNo:        res.Round,
		ChickenAmount:  res.ChickenAmount,
		ScoreObjective: res.ScoreObjective,
		Score:          res.Score,
		Outcome:        res.Outcome.String(),
		TimeLimit:      res.TimeLimit,
		Elapsed:        res.Elapsed,
		Frames:         s.runner.Frames(),
	}, whacks)
	if err != nil {
		s.log.Error("save round", zap.Int("round", res.Round), zap.Error(err))
		return
	}
	s.log.Debug("round saved", zap.Int64("id", id))
}

func (s *sim) summary(results []game.Result) {
	wins := 0
	var played time.Duration
	for _, r := range results {
		if r.Outcome == event.OutcomeWin {
			wins++
		}
		played += r.Elapsed
	}
	printSection("summary")
	printStat("rounds", len(results))
	printStat("wins", wins)
	printValue("simulated time", formatClock(played))

	if s.rounds != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stats, err := s.rounds.Stats(ctx)
		if err != nil {
			s.log.Warn("round stats", zap.Error(err))
			return
		}
		printStat("rounds (all time)", int(stats.Rounds))
		printStat("wins (all time)", int(stats.Wins))
		printStat("best score", stats.BestScore)
		if stats.Wins > 0 {
			printValue("mean win time", formatClock(stats.MeanWinTime))
		}
	}
	fmt.Println()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
