package quadtree

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

func distance(ax, ay, bx, by float64, polar bool) float64 {
	if polar {
		return geo.DistanceHaversine(orb.Point{ax, ay}, orb.Point{bx, by})
	}
	return planar.Distance(orb.Point{ax, ay}, orb.Point{bx, by})
}

// lowerBound is a distance no point of e can be closer than.
func lowerBound(x, y float64, e Extent, polar bool) float64 {
	dx := gap(x, e.XMin, e.XMax)
	dy := gap(y, e.YMin, e.YMax)
	if !polar {
		return math.Sqrt(dx*dx + dy*dy)
	}

	h := hav(deg2rad(dy))

	// past 180 degrees the longitude gap wraps and stops bounding anything
	if math.Max(math.Abs(x-e.XMin), math.Abs(x-e.XMax)) <= 180 {
		cosQuery := math.Max(math.Cos(deg2rad(clampLat(y))), 0)
		cosBox := math.Max(math.Min(math.Cos(deg2rad(clampLat(e.YMin))), math.Cos(deg2rad(clampLat(e.YMax)))), 0)
		h += cosQuery * cosBox * hav(deg2rad(dx))
	}

	h = math.Min(math.Max(h, 0), 1)
	return 2.0 * orb.EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func gap(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

func hav(theta float64) float64 {
	s := math.Sin(theta / 2)
	return s * s
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}

func clampLat(lat float64) float64 {
	return math.Min(math.Max(lat, -90), 90)
}
