package quadtree

import (
	"math"

	"github.com/GaryBoone/GoStats/stats"
)

// Statistics aggregates every point stored below a node.
type Statistics struct {
	x, y, z stats.Stats
}

type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Sum    float64 `json:"sum"`
	StdDev float64 `json:"std_dev"`
}

func (s *Statistics) add(x, y, z float64) {
	s.x.Update(x)
	s.y.Update(y)
	s.z.Update(z)
}

// addLeaf aggregates all values of a leaf, used when a leaf moves under a
// freshly promoted node.
func (s *Statistics) addLeaf(l LeafItem) {
	for i := range l.Count() {
		s.add(l.X(), l.Y(), l.Value(i))
	}
}

func (s *Statistics) Count() int { return s.z.Count() }

func (s *Statistics) X() Summary { return summarize(&s.x) }
func (s *Statistics) Y() Summary { return summarize(&s.y) }
func (s *Statistics) Z() Summary { return summarize(&s.z) }

func summarize(d *stats.Stats) Summary {
	if d.Count() == 0 {
		return Summary{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), StdDev: math.NaN()}
	}
	return Summary{
		Count:  d.Count(),
		Min:    d.Min(),
		Max:    d.Max(),
		Mean:   d.Mean(),
		Sum:    d.Sum(),
		StdDev: d.PopulationStandardDeviation(),
	}
}

func (s *Statistics) clone() *Statistics {
	c := *s
	return &c
}
