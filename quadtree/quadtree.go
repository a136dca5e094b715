package quadtree

import (
	"fmt"
	"iter"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
)

// PointSource supplies samples to NewFromSource.
type PointSource interface {
	Len() int
	Bound() orb.Bound
	Point(i int) orb.Point
	Value(i, attribute int) float64
	IsNoData(i, attribute int) bool
}

// QuadTree is a point-region quadtree. It is not safe for concurrent
// mutation, queries may run concurrently with each other.
type QuadTree struct {
	root    *Node
	nPoints int

	polar      bool
	statistics bool
	maxGrowth  int

	log *slog.Logger
}

// New returns an empty tree, Create must be called before adding points.
func New(opts ...Option) *QuadTree {
	o := loadOptions(opts...)
	return &QuadTree{
		polar:      o.polar,
		statistics: o.statistics,
		maxGrowth:  o.maxGrowth,
		log:        o.logger.With("component", "quadtree"),
	}
}

func NewQuadTree(extent Extent, opts ...Option) (*QuadTree, error) {
	t := New(opts...)
	if err := t.Create(extent); err != nil {
		return nil, err
	}
	return t, nil
}

// NewFromSource builds a tree over every sample of src. The attribute
// column is used as z, attribute < 0 uses the sample index instead.
func NewFromSource(src PointSource, attribute int, opts ...Option) (*QuadTree, error) {
	t := New(opts...)
	if _, err := t.CreateFromSource(src, attribute); err != nil {
		return nil, err
	}
	return t, nil
}

// Create discards the current content and sets up an empty square root
// around the extent, with a 1% margin so points on the extent border stay
// inside.
func (t *QuadTree) Create(extent Extent) error {
	t.Destroy()

	if !extent.IsFinite() || extent.XRange() <= 0 || extent.YRange() <= 0 {
		return fmt.Errorf("%w: %+v", ErrDegenerateExtent, extent)
	}

	size := 0.51 * math.Max(extent.XRange(), extent.YRange())
	cx, cy := extent.XCenter(), extent.YCenter()

	t.root = newNode(Extent{
		XMin: cx - size,
		YMin: cy - size,
		XMax: cx + size,
		YMax: cy + size,
	}, -1, t.statistics)

	return nil
}

// CreateFromSource creates the tree from the source bound and inserts all
// of its samples. It returns how many samples were skipped as no-data.
func (t *QuadTree) CreateFromSource(src PointSource, attribute int) (skipped int, err error) {
	if err := t.Create(ExtentFromBound(src.Bound())); err != nil {
		return 0, err
	}

	for i := range src.Len() {
		p := src.Point(i)

		z := float64(i)
		if attribute >= 0 {
			if src.IsNoData(i, attribute) {
				skipped++
				continue
			}
			z = src.Value(i, attribute)
		}

		if err := t.AddPoint(p.X(), p.Y(), z); err != nil {
			return skipped, fmt.Errorf("error adding point %d: %w", i, err)
		}
	}

	t.log.Debug("Quadtree created from source", "points", t.nPoints, "skipped", skipped)

	return skipped, nil
}

// Destroy drops every item. The tree needs Create before it can be used
// again.
func (t *QuadTree) Destroy() {
	t.root = nil
	t.nPoints = 0
}

// AddPoint inserts a sample, growing the root when the point lies outside
// of it.
func (t *QuadTree) AddPoint(x, y, z float64) error {
	if t.root == nil {
		return ErrNotCreated
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, x, y)
	}

	if err := t.checkRoot(x, y); err != nil {
		return err
	}

	if err := t.root.add(x, y, z); err != nil {
		return err
	}

	t.nPoints++
	return nil
}

// checkRoot grows the root until it contains (x, y). The number of steps is
// known before the tree is touched, so hitting the limit changes nothing.
func (t *QuadTree) checkRoot(x, y float64) error {
	if t.root.Contains(x, y) {
		return nil
	}

	extent := t.root.extent
	steps := 0
	for !extent.Contains(x, y) {
		if steps >= t.maxGrowth {
			t.log.Warn("Point is too far from quadtree extent", "x", x, "y", y, "max_growth", t.maxGrowth)
			return fmt.Errorf("%w: (%v, %v) not reached in %d steps", ErrGrowthLimit, x, y, t.maxGrowth)
		}
		extent, _, _ = growExtent(extent, x, y)
		steps++
	}

	for range steps {
		t.grow(x, y)
	}

	t.log.Debug("Quadtree root grown", "steps", steps, "size", t.root.extent.Size())

	return nil
}

func (t *QuadTree) grow(x, y float64) {
	old := t.root
	extent, cx, cy := growExtent(old.extent, x, y)

	root := &Node{
		extent:   extent,
		quadrant: -1,
		cx:       cx,
		cy:       cy,
	}
	if old.stats != nil {
		root.stats = old.stats.clone()
	}

	q := quadrantOf(cx, cy, old.extent.XCenter(), old.extent.YCenter())
	old.quadrant = q
	root.children[q] = old

	t.root = root
}

// growExtent doubles e towards (x, y) on both axes. The returned centre is
// the corner of e the new extent is split at.
func growExtent(e Extent, x, y float64) (grown Extent, cx, cy float64) {
	w, h := e.XRange(), e.YRange()
	grown = e

	if x < e.XMin {
		grown.XMin = e.XMin - w
		cx = e.XMin
	} else {
		grown.XMax = e.XMax + w
		cx = e.XMax
	}

	if y < e.YMin {
		grown.YMin = e.YMin - h
		cy = e.YMin
	} else {
		grown.YMax = e.YMax + h
		cy = e.YMax
	}

	return grown, cx, cy
}

// Len is the number of inserted points, duplicates included.
func (t *QuadTree) Len() int { return t.nPoints }

func (t *QuadTree) IsPolar() bool { return t.polar }

// Root is nil before Create.
func (t *QuadTree) Root() *Node { return t.root }

func (t *QuadTree) Extent() (Extent, bool) {
	if t.root == nil {
		return Extent{}, false
	}
	return t.root.extent, true
}

// Statistics returns the aggregate of the whole tree, nil when the tree was
// built without statistics.
func (t *QuadTree) Statistics() *Statistics {
	if t.root == nil {
		return nil
	}
	return t.root.stats
}

// Leaves walks every leaf depth first, children in quadrant order.
func (t *QuadTree) Leaves() iter.Seq[LeafItem] {
	return func(yield func(LeafItem) bool) {
		if t.root != nil {
			walkLeaves(t.root, yield)
		}
	}
}

func walkLeaves(n *Node, yield func(LeafItem) bool) bool {
	for _, child := range n.children {
		switch c := child.(type) {
		case *Node:
			if !walkLeaves(c, yield) {
				return false
			}
		case LeafItem:
			if !yield(c) {
				return false
			}
		}
	}
	return true
}

type Info struct {
	Points int    `json:"points"`
	Leaves int    `json:"leaves"`
	Lists  int    `json:"lists"`
	Nodes  int    `json:"nodes"`
	Depth  int    `json:"depth"`
	Extent Extent `json:"extent"`
}

// Describe counts the cells of the tree.
func (t *QuadTree) Describe() Info {
	info := Info{Points: t.nPoints}
	if t.root == nil {
		return info
	}
	info.Extent = t.root.extent
	describe(t.root, 1, &info)
	return info
}

// Depth is the number of node levels, 0 before Create.
func (t *QuadTree) Depth() int {
	return t.Describe().Depth
}

func describe(n *Node, depth int, info *Info) {
	info.Nodes++
	if depth > info.Depth {
		info.Depth = depth
	}
	for _, child := range n.children {
		switch c := child.(type) {
		case *Node:
			describe(c, depth+1, info)
		case *LeafList:
			info.Leaves++
			info.Lists++
		case *Leaf:
			info.Leaves++
		}
	}
}
