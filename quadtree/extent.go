package quadtree

import (
	"math"

	"github.com/paulmach/orb"
)

// Extent is an axis aligned rectangle. Containment is half-open: min sides
// are inside, max sides are not, which matches the quadrant rule.
type Extent struct {
	XMin, YMin float64
	XMax, YMax float64
}

func ExtentFromBound(b orb.Bound) Extent {
	return Extent{
		XMin: b.Min.X(),
		YMin: b.Min.Y(),
		XMax: b.Max.X(),
		YMax: b.Max.Y(),
	}
}

func (e Extent) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.XMin, e.YMin},
		Max: orb.Point{e.XMax, e.YMax},
	}
}

func (e Extent) XRange() float64  { return e.XMax - e.XMin }
func (e Extent) YRange() float64  { return e.YMax - e.YMin }
func (e Extent) XCenter() float64 { return (e.XMin + e.XMax) / 2 }
func (e Extent) YCenter() float64 { return (e.YMin + e.YMax) / 2 }

// Size is half of the larger side.
func (e Extent) Size() float64 {
	return math.Max(e.XRange(), e.YRange()) / 2
}

func (e Extent) IsFinite() bool {
	for _, v := range [4]float64{e.XMin, e.YMin, e.XMax, e.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (e Extent) Contains(x, y float64) bool {
	return x >= e.XMin && x < e.XMax && y >= e.YMin && y < e.YMax
}

// Quadrant returns the quadrant of (x, y) relative to the extent midpoint.
func (e Extent) Quadrant(x, y float64) int {
	return quadrantOf(e.XCenter(), e.YCenter(), x, y)
}

func (e Extent) Intersects(o Extent) bool {
	return e.XMin < o.XMax && o.XMin < e.XMax && e.YMin < o.YMax && o.YMin < e.YMax
}

// quadrant extent of e when split at (cx, cy)
func (e Extent) quarter(cx, cy float64, quadrant int) Extent {
	switch quadrant {
	case 0:
		return Extent{XMin: e.XMin, YMin: e.YMin, XMax: cx, YMax: cy}
	case 1:
		return Extent{XMin: e.XMin, YMin: cy, XMax: cx, YMax: e.YMax}
	case 2:
		return Extent{XMin: cx, YMin: cy, XMax: e.XMax, YMax: e.YMax}
	default:
		return Extent{XMin: cx, YMin: e.YMin, XMax: e.XMax, YMax: cy}
	}
}

// Quadrant numbering:
//
//	1 | 2
//	--+--
//	0 | 3
func quadrantOf(cx, cy, x, y float64) int {
	if x < cx {
		if y < cy {
			return 0
		}
		return 1
	}
	if y >= cy {
		return 2
	}
	return 3
}
