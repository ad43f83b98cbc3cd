package nav

import (
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
)

// AreaKind selects the shape of one walkable area.
type AreaKind string

const (
	AreaCircle  AreaKind = "circle"
	AreaBox     AreaKind = "box"
	AreaPolygon AreaKind = "polygon"
)

// Area is one walkable region on the ground plane. The mesh is the union of
// all areas. Polygon vertices must describe a convex, counter-clockwise hull.
type Area struct {
	Kind   AreaKind
	Center cp.Vector
	Radius float64
	Min    cp.Vector
	Max    cp.Vector
	Verts  []cp.Vector
}

// Path is a polyline from the agent position to its destination.
type Path struct {
	Corners []cp.Vector
}

// Length returns the total polyline length.
func (p Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p.Corners); i++ {
		total += p.Corners[i].Distance(p.Corners[i-1])
	}
	return total
}

// End returns the last corner, or the zero vector for an empty path.
func (p Path) End() cp.Vector {
	if len(p.Corners) == 0 {
		return cp.Vector{}
	}
	return p.Corners[len(p.Corners)-1]
}

// Mesh answers walkability queries over a set of static areas kept in a
// chipmunk space. Ground-plane coordinates: X maps to world X, Y to world Z.
type Mesh struct {
	space     *cp.Space
	areas     int
	pathSnap  float64
	pathProbe float64
}

// DefaultPathSnap is how far PathTo may move a target to reach walkable ground.
const DefaultPathSnap = 1.0

// NewMesh builds a mesh from walkable areas.
func NewMesh(areas []Area) (*Mesh, error) {
	m := &Mesh{
		space:     cp.NewSpace(),
		pathSnap:  DefaultPathSnap,
		pathProbe: 0.5,
	}
	for i, a := range areas {
		shape, err := m.shapeFor(a)
		if err != nil {
			return nil, fmt.Errorf("area %d: %w", i, err)
		}
		m.space.AddShape(shape)
		m.areas++
	}
	return m, nil
}

// NewDisc is a mesh with a single circular walkable area centred on the origin.
func NewDisc(radius float64) *Mesh {
	m, _ := NewMesh([]Area{{Kind: AreaCircle, Radius: radius}})
	return m
}

func (m *Mesh) shapeFor(a Area) (*cp.Shape, error) {
	body := m.space.StaticBody
	switch a.Kind {
	case AreaCircle:
		if a.Radius <= 0 {
			return nil, fmt.Errorf("circle radius %.2f", a.Radius)
		}
		return cp.NewCircle(body, a.Radius, a.Center), nil
	case AreaBox:
		if a.Max.X <= a.Min.X || a.Max.Y <= a.Min.Y {
			return nil, fmt.Errorf("empty box %v-%v", a.Min, a.Max)
		}
		return cp.NewBox2(body, cp.BB{L: a.Min.X, B: a.Min.Y, R: a.Max.X, T: a.Max.Y}, 0), nil
	case AreaPolygon:
		if len(a.Verts) < 3 {
			return nil, fmt.Errorf("polygon needs 3 vertices, got %d", len(a.Verts))
		}
		return cp.NewPolyShapeRaw(body, len(a.Verts), a.Verts, 0), nil
	}
	return nil, fmt.Errorf("unknown area kind %q", a.Kind)
}

// Areas returns the number of walkable areas.
func (m *Mesh) Areas() int { return m.areas }

// SampleNear returns the walkable point nearest to p, provided it lies
// within maxDist. Points already on walkable ground are returned unchanged.
func (m *Mesh) SampleNear(p cp.Vector, maxDist float64) (cp.Vector, bool) {
	if maxDist < 0 {
		maxDist = 0
	}
	info := m.space.PointQueryNearest(p, maxDist, cp.SHAPE_FILTER_ALL)
	if info == nil || info.Shape == nil {
		return cp.Vector{}, false
	}
	if info.Distance <= 0 {
		return p, true
	}
	if info.Distance > maxDist {
		return cp.Vector{}, false
	}
	return info.Point, true
}

// walkableEpsilon absorbs rounding for points snapped onto an area edge.
const walkableEpsilon = 1e-6

// Walkable reports whether p lies on walkable ground.
func (m *Mesh) Walkable(p cp.Vector) bool {
	_, ok := m.SampleNear(p, walkableEpsilon)
	return ok
}

// PathTo resolves a pathable destination for an agent at from. The target is
// snapped onto walkable ground; if the straight line leaves the mesh the
// path is cut at the last walkable probe (a partial path). Full path
// following is left to the caller.
func (m *Mesh) PathTo(from, to cp.Vector) (Path, bool) {
	end, ok := m.SampleNear(to, m.pathSnap)
	if !ok {
		return Path{}, false
	}
	dist := from.Distance(end)
	steps := int(math.Ceil(dist / m.pathProbe))
	last := from
	for i := 1; i <= steps; i++ {
		probe := from.Lerp(end, float64(i)/float64(steps))
		if !m.Walkable(probe) {
			if last.Equal(from) {
				return Path{}, false
			}
			return Path{Corners: []cp.Vector{from, last}}, true
		}
		last = probe
	}
	return Path{Corners: []cp.Vector{from, end}}, true
}
