package quadtree

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/btree"
)

const (
	// QuadrantAny disables the quadrant filter.
	QuadrantAny = -1
	// QuadrantEach searches each quadrant around the query separately and
	// pools the results, up to maxPoints per quadrant.
	QuadrantEach = 4
)

// ParseQuadrant converts "any", "each" or a quadrant number 0..3 to the
// quadrant argument of SelectNearestPoints. An empty string means any.
func ParseQuadrant(s string) (int, error) {
	switch s {
	case "", "any":
		return QuadrantAny, nil
	case "each":
		return QuadrantEach, nil
	}
	q, err := strconv.Atoi(s)
	if err != nil || q < 0 || q > 3 {
		return 0, fmt.Errorf("bad quadrant %q, expected any, each or 0-3", s)
	}
	return q, nil
}

type Neighbor struct {
	Leaf     LeafItem
	Distance float64
}

type candidate struct {
	leaf     LeafItem
	distance float64
	seq      int
}

// candidates are ordered by distance, then by discovery, so the maximum is
// the worst bound and the latest of equally distant candidates goes first.
func lessCandidate(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.seq < b.seq
}

type selection struct {
	x, y      float64
	polar     bool
	maxPoints int
	radius    float64
	quadrant  int

	seq        int
	candidates *btree.BTreeG[candidate]
}

// SelectNearestPoints returns up to maxPoints leaves closest to (x, y),
// sorted by distance. maxPoints <= 0 selects all points, radius <= 0 does
// not limit the distance. quadrant is QuadrantAny, 0..3 or QuadrantEach,
// anything else selects nothing.
func (t *QuadTree) SelectNearestPoints(x, y float64, maxPoints int, radius float64, quadrant int) []Neighbor {
	if t.root == nil || quadrant < QuadrantAny || quadrant > QuadrantEach {
		return nil
	}
	if maxPoints <= 0 {
		maxPoints = t.nPoints
	}
	if maxPoints <= 0 {
		return nil
	}

	if quadrant != QuadrantEach {
		return t.selectNearest(x, y, maxPoints, radius, quadrant)
	}

	var pooled []Neighbor
	for q := range 4 {
		pooled = append(pooled, t.selectNearest(x, y, maxPoints, radius, q)...)
	}
	slices.SortStableFunc(pooled, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return pooled
}

// GetNearestPoints is SelectNearestPoints flattened to coordinates and the
// first value of every leaf.
func (t *QuadTree) GetNearestPoints(x, y float64, maxPoints int, radius float64, quadrant int) []Point {
	selected := t.SelectNearestPoints(x, y, maxPoints, radius, quadrant)
	if len(selected) == 0 {
		return nil
	}

	points := make([]Point, len(selected))
	for i, n := range selected {
		points[i] = n.Leaf.Point()
	}
	return points
}

func (t *QuadTree) selectNearest(x, y float64, maxPoints int, radius float64, quadrant int) []Neighbor {
	s := &selection{
		x:          x,
		y:          y,
		polar:      t.polar,
		maxPoints:  maxPoints,
		radius:     radius,
		quadrant:   quadrant,
		candidates: btree.NewG[candidate](8, lessCandidate),
	}
	s.node(t.root)

	out := make([]Neighbor, 0, s.candidates.Len())
	s.candidates.Ascend(func(c candidate) bool {
		out = append(out, Neighbor{Leaf: c.leaf, Distance: c.distance})
		return true
	})
	return out
}

func (s *selection) full() bool {
	return s.candidates.Len() >= s.maxPoints
}

func (s *selection) worst() float64 {
	c, _ := s.candidates.Max()
	return c.distance
}

func (s *selection) node(n *Node) {
	in := -1
	for q, child := range n.children {
		if child != nil && child.Contains(s.x, s.y) {
			in = q
			s.item(child)
			break
		}
	}

	for q, child := range n.children {
		if child == nil || q == in {
			continue
		}

		extent := child.Extent()
		if !s.quadrantIntersects(extent) {
			continue
		}

		bound := lowerBound(s.x, s.y, extent, s.polar)
		if s.radius > 0 && bound > s.radius {
			continue
		}
		if s.full() && bound > s.worst() {
			continue
		}

		s.item(child)
	}
}

func (s *selection) item(item Item) {
	switch c := item.(type) {
	case *Node:
		s.node(c)
	case LeafItem:
		s.leaf(c)
	}
}

func (s *selection) leaf(l LeafItem) {
	if s.quadrant != QuadrantAny && quadrantOf(s.x, s.y, l.X(), l.Y()) != s.quadrant {
		return
	}

	d := distance(s.x, s.y, l.X(), l.Y(), s.polar)
	if s.radius > 0 && d > s.radius {
		return
	}

	if s.full() {
		if d >= s.worst() {
			return
		}
		s.candidates.DeleteMax()
	}

	s.candidates.ReplaceOrInsert(candidate{leaf: l, distance: d, seq: s.seq})
	s.seq++
}

// quadrantIntersects reports whether e overlaps the quadrant around the
// query point the selection is restricted to.
func (s *selection) quadrantIntersects(e Extent) bool {
	switch s.quadrant {
	case 0:
		return e.XMin < s.x && e.YMin < s.y
	case 1:
		return e.XMin < s.x && e.YMax > s.y
	case 2:
		return e.XMax > s.x && e.YMax > s.y
	case 3:
		return e.XMax > s.x && e.YMin < s.y
	}
	return true
}
