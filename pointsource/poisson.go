package pointsource

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/fogleman/poissondisc"
	"github.com/paulmach/orb"
)

// Poisson fills bound with Poisson-disc samples at least radius apart. The
// single attribute "value" is computed by fn.
func Poisson(bound orb.Bound, radius float64, seed int64, fn func(orb.Point) float64) (*Table, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("bad radius %v, must be positive", radius)
	}
	if !(bound.Max.X() > bound.Min.X() && bound.Max.Y() > bound.Min.Y()) {
		return nil, errors.New("empty bound")
	}

	rnd := rand.New(rand.NewSource(seed))
	points := poissondisc.Sample(bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y(), radius, 32, rnd)

	table := NewTable("value")
	for _, p := range points {
		pt := orb.Point{p.X, p.Y}
		if err := table.Add(pt, fn(pt)); err != nil {
			return nil, err
		}
	}
	return table, nil
}
