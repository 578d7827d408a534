package layout

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// NoPath is returned by TravelTime when two points are not connected.
const NoPath = -1.0

// Point is a coordinate on the factory floor, in meters.
type Point struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// Dist returns the straight-line distance between two points.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Points maps path point names to coordinates.
type Points map[string]Point

// Names returns the point names in lexical order.
func (p Points) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// NameOf returns the name of the point at pos.
func (p Points) NameOf(pos Point) (string, bool) {
	for _, name := range p.Names() {
		if p[name] == pos {
			return name, true
		}
	}
	return "", false
}

// Oracle answers travel time questions between named points.
type Oracle interface {
	// TravelTime returns the seconds needed to go from one point to another,
	// or a negative value if there is no path.
	TravelTime(from, to string) float64
}

// PathTable is an Oracle backed by an explicit table of travel times.
type PathTable struct {
	times     map[string]map[string]float64
	symmetric bool
}

var _ Oracle = (*PathTable)(nil)

// NewPathTable creates an empty table. A symmetric table answers B→A with
// the A→B entry when B→A was not set.
func NewPathTable(symmetric bool) *PathTable {
	return &PathTable{times: make(map[string]map[string]float64), symmetric: symmetric}
}

// Set records the travel time from one point to another.
func (t *PathTable) Set(from, to string, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("travel time %s->%s must not be negative, got %v", from, to, seconds)
	}
	row, ok := t.times[from]
	if !ok {
		row = make(map[string]float64)
		t.times[from] = row
	}
	row[to] = seconds
	return nil
}

// TravelTime implements Oracle.
func (t *PathTable) TravelTime(from, to string) float64 {
	if from == to {
		return 0
	}
	if v, ok := t.times[from][to]; ok {
		return v
	}
	if t.symmetric {
		if v, ok := t.times[to][from]; ok {
			return v
		}
	}
	return NoPath
}

// Reachable reports whether there is a path from one point to another.
func (t *PathTable) Reachable(from, to string) bool {
	return t.TravelTime(from, to) >= 0
}

// Operation is an action an AGV may perform at a path point.
type Operation string

const (
	OpLoad   Operation = "load"
	OpUnload Operation = "unload"
)

// PointOperations declares which device an AGV serves at a path point.
type PointOperations struct {
	DeviceID      string      `json:"device" yaml:"device" mapstructure:"device"`
	Operations    []Operation `json:"operations" yaml:"operations" mapstructure:"operations"`
	DefaultBuffer string      `json:"buffer,omitempty" yaml:"buffer,omitempty" mapstructure:"buffer"`
}

// Allows reports whether op may be performed at the point.
func (o PointOperations) Allows(op Operation) bool {
	return slices.Contains(o.Operations, op)
}

// OperationMap holds the per-point operation declarations of one AGV.
type OperationMap map[string]PointOperations

// At returns the declaration for point, if any.
func (m OperationMap) At(point string) (PointOperations, bool) {
	ops, ok := m[point]
	return ops, ok
}

// StraightLine is an Oracle that drives every pair of points in a straight
// line at a constant speed.
type StraightLine struct {
	points Points
	speed  float64
}

var _ Oracle = (*StraightLine)(nil)

func NewStraightLine(points Points, speed float64) *StraightLine {
	return &StraightLine{points: points, speed: speed}
}

func (s *StraightLine) TravelTime(from, to string) float64 {
	a, okA := s.points[from]
	b, okB := s.points[to]
	if !okA || !okB || s.speed <= 0 {
		return NoPath
	}
	return a.Dist(b) / s.speed
}
