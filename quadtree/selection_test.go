package quadtree_test

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/royalcat/prquadtree/quadtree"
	"github.com/tidwall/qtree"
)

func randomTree(t *testing.T, seed int64, n int, opts ...quadtree.Option) (*quadtree.QuadTree, []quadtree.Point) {
	t.Helper()

	rnd := rand.New(rand.NewSource(seed))
	tree, err := quadtree.NewQuadTree(quadtree.Extent{XMin: 0, YMin: 0, XMax: 100, YMax: 100}, opts...)
	if err != nil {
		t.Fatal(err)
	}

	points := make([]quadtree.Point, 0, n)
	for i := range n {
		p := quadtree.Point{X: rnd.Float64()*120 - 10, Y: rnd.Float64()*120 - 10, Z: float64(i)}
		if err := tree.AddPoint(p.X, p.Y, p.Z); err != nil {
			t.Fatal(err)
		}
		points = append(points, p)
	}
	return tree, points
}

func planarDistance(p quadtree.Point, x, y float64) float64 {
	return math.Sqrt((p.X-x)*(p.X-x) + (p.Y-y)*(p.Y-y))
}

func TestSelectKNearestMatchesBruteForce(t *testing.T) {
	tree, points := randomTree(t, 21, 800)
	rnd := rand.New(rand.NewSource(22))

	for _, k := range []int{1, 3, 8, 50, 1000} {
		for range 50 {
			x, y := rnd.Float64()*140-20, rnd.Float64()*140-20

			expected := make([]float64, len(points))
			for i, p := range points {
				expected[i] = planarDistance(p, x, y)
			}
			slices.Sort(expected)
			expected = expected[:min(k, len(points))]

			selected := tree.SelectNearestPoints(x, y, k, 0, quadtree.QuadrantAny)
			if len(selected) != len(expected) {
				t.Fatalf("k=%d: expected %d points, got %d", k, len(expected), len(selected))
			}
			for i, n := range selected {
				if math.Abs(n.Distance-expected[i]) > 1e-9 {
					t.Fatalf("k=%d: expected distance #%d to be %v, got %v", k, i, expected[i], n.Distance)
				}
				if i > 0 && n.Distance < selected[i-1].Distance {
					t.Fatalf("k=%d: expected ascending distances", k)
				}
			}
		}
	}
}

func TestSelectAllPoints(t *testing.T) {
	tree, points := randomTree(t, 5, 100)

	selected := tree.SelectNearestPoints(50, 50, 0, 0, quadtree.QuadrantAny)
	if len(selected) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(selected))
	}

	got := tree.GetNearestPoints(50, 50, 0, 0, quadtree.QuadrantAny)
	values := make([]float64, len(got))
	for i, p := range got {
		values[i] = p.Z
	}
	slices.Sort(values)
	for i, v := range values {
		if v != float64(i) {
			t.Fatalf("expected value %d, got %v", i, v)
		}
	}
}

func TestSelectRadius(t *testing.T) {
	tree, points := randomTree(t, 31, 1000)

	// independent window index to count what a radius query must return
	var window qtree.QTree
	for i, p := range points {
		window.Insert([2]float64{p.X, p.Y}, [2]float64{p.X, p.Y}, i)
	}

	rnd := rand.New(rand.NewSource(32))
	for range 100 {
		x, y := rnd.Float64()*100, rnd.Float64()*100
		radius := rnd.Float64()*15 + 0.5

		expected := 0
		window.Search([2]float64{x - radius, y - radius}, [2]float64{x + radius, y + radius},
			func(_, _ [2]float64, data interface{}) bool {
				if planarDistance(points[data.(int)], x, y) <= radius {
					expected++
				}
				return true
			})

		selected := tree.SelectNearestPoints(x, y, 0, radius, quadtree.QuadrantAny)
		if len(selected) != expected {
			t.Fatalf("radius %v at (%v, %v): expected %d points, got %d", radius, x, y, expected, len(selected))
		}
		for _, n := range selected {
			if n.Distance > radius {
				t.Fatalf("expected distance within %v, got %v", radius, n.Distance)
			}
		}

		limited := tree.SelectNearestPoints(x, y, 5, radius, quadtree.QuadrantAny)
		if len(limited) != min(5, expected) {
			t.Fatalf("expected %d points, got %d", min(5, expected), len(limited))
		}
	}
}

func inQuadrant(x, y, px, py float64, quadrant int) bool {
	switch quadrant {
	case 0:
		return px < x && py < y
	case 1:
		return px < x && py >= y
	case 2:
		return px >= x && py >= y
	default:
		return px >= x && py < y
	}
}

func TestSelectQuadrantFilter(t *testing.T) {
	tree, points := randomTree(t, 41, 600)
	rnd := rand.New(rand.NewSource(42))

	for range 50 {
		x, y := rnd.Float64()*100, rnd.Float64()*100
		for q := range 4 {
			var expected []float64
			for _, p := range points {
				if inQuadrant(x, y, p.X, p.Y, q) {
					expected = append(expected, planarDistance(p, x, y))
				}
			}
			slices.Sort(expected)
			expected = expected[:min(6, len(expected))]

			selected := tree.SelectNearestPoints(x, y, 6, 0, q)
			if len(selected) != len(expected) {
				t.Fatalf("quadrant %d: expected %d points, got %d", q, len(expected), len(selected))
			}
			for i, n := range selected {
				if !inQuadrant(x, y, n.Leaf.X(), n.Leaf.Y(), q) {
					t.Fatalf("quadrant %d: point (%v, %v) is outside", q, n.Leaf.X(), n.Leaf.Y())
				}
				if math.Abs(n.Distance-expected[i]) > 1e-9 {
					t.Fatalf("quadrant %d: expected distance %v, got %v", q, expected[i], n.Distance)
				}
			}
		}
	}
}

func TestSelectEachPoolsQuadrants(t *testing.T) {
	tree, _ := randomTree(t, 51, 400)

	pooled := tree.SelectNearestPoints(40, 60, 3, 0, quadtree.QuadrantEach)
	if len(pooled) != 12 {
		t.Fatalf("expected 12 points, got %d", len(pooled))
	}

	perQuadrant := [4]int{}
	for i, n := range pooled {
		for q := range 4 {
			if inQuadrant(40, 60, n.Leaf.X(), n.Leaf.Y(), q) {
				perQuadrant[q]++
			}
		}
		if i > 0 && n.Distance < pooled[i-1].Distance {
			t.Fatalf("expected pooled result sorted by distance")
		}
	}
	if perQuadrant != [4]int{3, 3, 3, 3} {
		t.Fatalf("expected 3 points per quadrant, got %v", perQuadrant)
	}
}

func TestSelectInvalidQuadrant(t *testing.T) {
	tree, _ := randomTree(t, 61, 10)
	if got := tree.SelectNearestPoints(1, 1, 3, 0, 5); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := quadtree.New().SelectNearestPoints(1, 1, 3, 0, quadtree.QuadrantAny); got != nil {
		t.Fatalf("expected nil on empty tree, got %v", got)
	}
}

func TestParseQuadrant(t *testing.T) {
	cases := map[string]int{
		"":     quadtree.QuadrantAny,
		"any":  quadtree.QuadrantAny,
		"each": quadtree.QuadrantEach,
		"0":    0,
		"1":    1,
		"2":    2,
		"3":    3,
	}
	for in, expected := range cases {
		got, err := quadtree.ParseQuadrant(in)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got != expected {
			t.Fatalf("%q: expected %d, got %d", in, expected, got)
		}
	}

	for _, in := range []string{"4", "-1", "ANY", "x", " 1"} {
		if _, err := quadtree.ParseQuadrant(in); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestSelectTiesKeepDiscoveryOrder(t *testing.T) {
	tree, err := quadtree.NewQuadTree(quadtree.Extent{XMin: -2, YMin: -2, XMax: 2, YMax: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range [][2]float64{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} {
		_ = tree.AddPoint(p[0], p[1], float64(i))
	}

	selected := tree.SelectNearestPoints(0, 0, 2, 0, quadtree.QuadrantAny)
	if len(selected) != 2 {
		t.Fatalf("expected 2 points, got %d", len(selected))
	}
	for _, n := range selected {
		if n.Distance != 1 {
			t.Fatalf("expected distance 1, got %v", n.Distance)
		}
	}
}
