package system

import (
	"testing"
	"time"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"output", PhaseOutput, &log})
	r.Register(recorder{"update-a", PhaseUpdate, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"update-b", PhaseUpdate, &log})
	r.Register(recorder{"post", PhasePostUpdate, &log})

	r.Tick(16 * time.Millisecond)

	want := []string{"input", "update-a", "update-b", "post", "output"}
	if len(log) != len(want) {
		t.Fatalf("got %v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("got %v, want %v", log, want)
		}
	}
	if r.Frames() != 1 {
		t.Fatalf("frames=%d", r.Frames())
	}
}

func TestTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"update", PhaseUpdate, &log})
	r.TickPhase(PhaseUpdate, time.Millisecond)
	if len(log) != 1 || log[0] != "update" {
		t.Fatalf("got %v", log)
	}
	if r.Frames() != 0 {
		t.Fatalf("TickPhase must not count frames")
	}
}
