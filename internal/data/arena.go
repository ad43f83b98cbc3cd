package data

import (
	"fmt"
	"os"

	"github.com/flocksim/flocksim/internal/nav"
	"github.com/jakecoffman/cp"
	"gopkg.in/yaml.v3"
)

// AreaEntry is one walkable area. Points are [x, z] on the ground plane.
type AreaEntry struct {
	Kind   string       `yaml:"kind"` // circle, box or polygon
	Center [2]float64   `yaml:"center"`
	Radius float64      `yaml:"radius"`
	Min    [2]float64   `yaml:"min"`
	Max    [2]float64   `yaml:"max"`
	Verts  [][2]float64 `yaml:"verts"`
}

// Arena is the walkable layout of the playing field.
type Arena struct {
	Name  string      `yaml:"name"`
	Areas []AreaEntry `yaml:"areas"`
}

type arenaFile struct {
	Arena Arena `yaml:"arena"`
}

// LoadArena loads the arena layout from a YAML file.
func LoadArena(path string) (*Arena, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read arena: %w", err)
	}
	var f arenaFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse arena: %w", err)
	}
	if len(f.Arena.Areas) == 0 {
		return nil, fmt.Errorf("arena %q has no walkable areas", f.Arena.Name)
	}
	return &f.Arena, nil
}

// NavAreas converts the layout to navigation areas.
func (a *Arena) NavAreas() []nav.Area {
	out := make([]nav.Area, 0, len(a.Areas))
	for _, e := range a.Areas {
		area := nav.Area{
			Kind:   nav.AreaKind(e.Kind),
			Center: vec(e.Center),
			Radius: e.Radius,
			Min:    vec(e.Min),
			Max:    vec(e.Max),
		}
		for _, v := range e.Verts {
			area.Verts = append(area.Verts, vec(v))
		}
		out = append(out, area)
	}
	return out
}

// Mesh builds the navigation mesh for the arena.
func (a *Arena) Mesh() (*nav.Mesh, error) {
	m, err := nav.NewMesh(a.NavAreas())
	if err != nil {
		return nil, fmt.Errorf("arena %q: %w", a.Name, err)
	}
	return m, nil
}

func vec(p [2]float64) cp.Vector { return cp.Vector{X: p[0], Y: p[1]} }
