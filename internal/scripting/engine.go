package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for round rules.
// Single-goroutine access only (game loop). Reload swaps the VM between rounds.
type Engine struct {
	vm  *lua.LState
	dir string
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// Missing script directories are not an error: every rule has a Go fallback.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := &Engine{dir: scriptsDir, log: log}
	vm, err := e.newVM()
	if err != nil {
		return nil, err
	}
	e.vm = vm
	return e, nil
}

func (e *Engine) newVM() (*lua.LState, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	for _, sub := range []string{"core", "rules"} {
		p := filepath.Join(e.dir, sub)
		if err := e.loadDir(vm, p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return vm, nil
}

// Reload rebuilds the VM from disk. On failure the running VM is kept.
func (e *Engine) Reload() error {
	vm, err := e.newVM()
	if err != nil {
		return err
	}
	e.vm.Close()
	e.vm = vm
	e.log.Info("lua scripts reloaded", zap.String("dir", e.dir))
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(vm *lua.LState, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// RoundContext holds the round setup handed to the rule scripts.
type RoundContext struct {
	Round         int // 1-based
	ChickenAmount int
	MinAmount     int
	MaxAmount     int
	BaseLimit     time.Duration
	PerMinLimit   time.Duration // added per MinAmount chickens
}

func (e *Engine) roundTable(ctx RoundContext) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("round", lua.LNumber(ctx.Round))
	t.RawSetString("chicken_amount", lua.LNumber(ctx.ChickenAmount))
	t.RawSetString("min_amount", lua.LNumber(ctx.MinAmount))
	t.RawSetString("max_amount", lua.LNumber(ctx.MaxAmount))
	t.RawSetString("base_time_limit", lua.LNumber(ctx.BaseLimit.Seconds()))
	t.RawSetString("time_limit_per_min", lua.LNumber(ctx.PerMinLimit.Seconds()))
	return t
}

// DefaultTimeLimit is the stock rule: the base limit plus PerMinLimit for
// every MinAmount chickens, truncated to whole seconds.
func DefaultTimeLimit(ctx RoundContext) time.Duration {
	if ctx.MinAmount <= 0 {
		return ctx.BaseLimit
	}
	extra := int(float64(ctx.ChickenAmount) / float64(ctx.MinAmount) * ctx.PerMinLimit.Seconds())
	return ctx.BaseLimit + time.Duration(extra)*time.Second
}

// CalcTimeLimit calls the Lua calc_time_limit function (seconds). Falls back
// to DefaultTimeLimit when the function is missing or misbehaves.
func (e *Engine) CalcTimeLimit(ctx RoundContext) time.Duration {
	secs, ok := e.callNumber("calc_time_limit", e.roundTable(ctx))
	if !ok || secs <= 0 {
		return DefaultTimeLimit(ctx)
	}
	return time.Duration(secs * float64(time.Second))
}

// CalcScoreObjective calls the Lua calc_score_objective function. Falls back
// to one point per chicken. The result never exceeds the chicken amount, so
// a round stays winnable.
func (e *Engine) CalcScoreObjective(ctx RoundContext) int {
	n, ok := e.callNumber("calc_score_objective", e.roundTable(ctx))
	if !ok || n < 1 {
		return ctx.ChickenAmount
	}
	return min(int(n), ctx.ChickenAmount)
}

// --- Lua helpers ---

// callNumber calls a Lua function and returns its numeric result. ok is
// false when the function is not defined, errors or returns a non-number.
func (e *Engine) callNumber(name string, args ...lua.LValue) (float64, bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		e.log.Debug("lua function not found", zap.String("name", name))
		return 0, false
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call error", zap.String("func", name), zap.Error(err))
		return 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua function returned non-number", zap.String("func", name),
			zap.String("type", result.Type().String()))
		return 0, false
	}
	return float64(n), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
