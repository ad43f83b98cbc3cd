package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func writeRules(t *testing.T, dir, body string) {
	t.Helper()
	rules := filepath.Join(dir, "rules")
	if err := os.MkdirAll(rules, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rules, "round.lua"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

var stock = RoundContext{
	Round:         1,
	ChickenAmount: 24,
	MinAmount:     16,
	MaxAmount:     64,
	BaseLimit:     30 * time.Second,
	PerMinLimit:   30 * time.Second,
}

func TestDefaultTimeLimit(t *testing.T) {
	tests := []struct {
		amount int
		want   time.Duration
	}{
		{16, 60 * time.Second},
		{24, 75 * time.Second},
		{20, 67 * time.Second}, // 37.5 truncated
		{64, 150 * time.Second},
	}
	for _, tt := range tests {
		ctx := stock
		ctx.ChickenAmount = tt.amount
		if got := DefaultTimeLimit(ctx); got != tt.want {
			t.Errorf("amount %d: got %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestShippedRules(t *testing.T) {
	e, err := NewEngine(filepath.Join("..", "..", "scripts"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if got := e.CalcTimeLimit(stock); got != DefaultTimeLimit(stock) {
		t.Fatalf("round 1 limit=%v, want %v", got, DefaultTimeLimit(stock))
	}
	sprint := stock
	sprint.Round = 3
	if got := e.CalcTimeLimit(sprint); got != 60*time.Second {
		t.Fatalf("sprint limit=%v", got)
	}
	if got := e.CalcScoreObjective(stock); got != 24 {
		t.Fatalf("objective=%d", got)
	}
}

func TestMissingScriptsFallBack(t *testing.T) {
	e, err := NewEngine(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if got := e.CalcTimeLimit(stock); got != 75*time.Second {
		t.Fatalf("limit=%v", got)
	}
	if got := e.CalcScoreObjective(stock); got != stock.ChickenAmount {
		t.Fatalf("objective=%d", got)
	}
}

func TestMisbehavingScriptsFallBack(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, `
function calc_time_limit(ctx) error("boom") end
function calc_score_objective(ctx) return "lots" end
`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if got := e.CalcTimeLimit(stock); got != DefaultTimeLimit(stock) {
		t.Fatalf("limit=%v", got)
	}
	if got := e.CalcScoreObjective(stock); got != stock.ChickenAmount {
		t.Fatalf("objective=%d", got)
	}
}

func TestObjectiveCappedAtAmount(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, `function calc_score_objective(ctx) return ctx.chicken_amount * 2 end`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if got := e.CalcScoreObjective(stock); got != stock.ChickenAmount {
		t.Fatalf("objective=%d", got)
	}
}

func TestSyntaxErrorFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "function (")
	if _, err := NewEngine(dir, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected load error")
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, `function calc_score_objective(ctx) return 5 end`)
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if got := e.CalcScoreObjective(stock); got != 5 {
		t.Fatalf("objective=%d", got)
	}

	writeRules(t, dir, `function calc_score_objective(ctx) return 7 end`)
	if err := e.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := e.CalcScoreObjective(stock); got != 7 {
		t.Fatalf("after reload objective=%d", got)
	}

	writeRules(t, dir, "function (")
	if err := e.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := e.CalcScoreObjective(stock); got != 7 {
		t.Fatalf("failed reload replaced the VM: objective=%d", got)
	}
}
