package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flocksim/flocksim/internal/agent"
	"github.com/jakecoffman/cp"
)

func TestShippedChickenMatchesDefaults(t *testing.T) {
	got, err := LoadChickenTuning(filepath.Join("..", "..", "data", "yaml", "chicken.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got != agent.DefaultTuning() {
		t.Fatalf("shipped template drifted from defaults:\n got %+v\nwant %+v", got, agent.DefaultTuning())
	}
}

func TestParseChickenOverlaysDefaults(t *testing.T) {
	got, err := ParseChickenTuning([]byte(`
chicken:
  flee_radius: 7.5
  whack_delay: 0.3
`))
	if err != nil {
		t.Fatal(err)
	}
	if got.FleeRadius != 7.5 || got.WhackDelay != 300*time.Millisecond {
		t.Fatalf("overrides lost: %+v", got)
	}
	if got.FleeInterval != 500*time.Millisecond || got.MaxDestinationAttempts != 100 {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestParseChickenRejectsBadTuning(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"Syntax", "chicken: [", "parse chicken template"},
		{"Wander probability", "chicken:\n  wander_prob: 1.5\n", "wander_prob"},
		{"Inverted behavior range", "chicken:\n  min_behavior_duration: 5\n  max_behavior_duration: 1\n", "behavior duration"},
		{"Zero flee interval", "chicken:\n  flee_interval: 0\n", "think intervals"},
		{"Empty jitter", "chicken:\n  flee_jitter_min: 2\n  flee_jitter_max: 1\n", "jitter"},
		{"Slow run", "chicken:\n  run_speed_multiplier: 0.5\n", "speeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChickenTuning([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadArena(t *testing.T) {
	a, err := LoadArena(filepath.Join("..", "..", "data", "yaml", "arena.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "farm" || len(a.Areas) != 3 {
		t.Fatalf("arena=%+v", a)
	}
	m, err := a.Mesh()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []cp.Vector{{}, {X: 0, Y: 39}, {X: 35, Y: 0}} {
		if !m.Walkable(p) {
			t.Errorf("%v should be walkable", p)
		}
	}
	if m.Walkable(cp.Vector{X: -39, Y: -1}) {
		t.Errorf("outside the fence should not be walkable")
	}
}

func TestLoadArenaErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("arena:\n  name: void\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadArena(empty); err == nil {
		t.Fatal("expected error for arena without areas")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("arena:\n  areas:\n    - kind: circle\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := LoadArena(bad)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Mesh(); err == nil {
		t.Fatal("expected mesh error for zero-radius circle")
	}
}

func TestIsDataFile(t *testing.T) {
	for path, want := range map[string]bool{
		"data/yaml/chicken.yaml": true,
		"x.YML":                  true,
		"scripts/round.lua":      true,
		"chicken.yaml~":          false,
		"notes.txt":              false,
	} {
		if got := IsDataFile(path); got != want {
			t.Errorf("IsDataFile(%q)=%v, want %v", path, got, want)
		}
	}
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	path := filepath.Join(dir, "chicken.yaml")
	if err := os.WriteFile(path, []byte("chicken: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events:
		if filepath.Base(got) != "chicken.yaml" {
			t.Fatalf("event for %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
}

func TestWatcherCloseClosesChannels(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Events; ok {
		t.Fatal("events channel still open")
	}
	if err := w.Close(); err != nil {
		t.Fatal("second close:", err)
	}
}
