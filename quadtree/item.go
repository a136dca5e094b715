package quadtree

// Item is a tree cell: a leaf, a leaf list or a node.
type Item interface {
	IsLeaf() bool
	IsNode() bool
	Extent() Extent
	Contains(x, y float64) bool
	// Quadrant is the slot the item occupies in its parent, -1 for the root.
	Quadrant() int
}

// LeafItem is implemented by *Leaf and *LeafList.
type LeafItem interface {
	Item
	X() float64
	Y() float64
	Z() float64
	Point() Point
	Count() int
	Value(i int) float64
}

type Point struct {
	X, Y, Z float64
}

var (
	_ LeafItem = (*Leaf)(nil)
	_ LeafItem = (*LeafList)(nil)
	_ Item     = (*Node)(nil)
)

type Leaf struct {
	extent   Extent
	quadrant int

	x, y, z float64
}

func newLeaf(extent Extent, quadrant int, x, y, z float64) *Leaf {
	return &Leaf{extent: extent, quadrant: quadrant, x: x, y: y, z: z}
}

func (l *Leaf) IsLeaf() bool               { return true }
func (l *Leaf) IsNode() bool               { return false }
func (l *Leaf) Extent() Extent             { return l.extent }
func (l *Leaf) Contains(x, y float64) bool { return l.extent.Contains(x, y) }
func (l *Leaf) Quadrant() int              { return l.quadrant }

func (l *Leaf) X() float64   { return l.x }
func (l *Leaf) Y() float64   { return l.y }
func (l *Leaf) Z() float64   { return l.z }
func (l *Leaf) Point() Point { return Point{X: l.x, Y: l.y, Z: l.z} }
func (l *Leaf) Count() int   { return 1 }
func (l *Leaf) Value(i int) float64 {
	if i != 0 {
		panic("quadtree: leaf value index out of range")
	}
	return l.z
}

func (l *Leaf) sameCoord(x, y float64) bool {
	return l.x == x && l.y == y
}

// LeafList holds every value inserted at one coordinate, in insertion
// order. Z returns the first one.
type LeafList struct {
	Leaf

	values []float64
}

func newLeafList(l *Leaf) *LeafList {
	return &LeafList{
		Leaf:   *l,
		values: []float64{l.z},
	}
}

func (l *LeafList) AddValue(z float64) {
	l.values = append(l.values, z)
}

func (l *LeafList) Count() int          { return len(l.values) }
func (l *LeafList) Value(i int) float64 { return l.values[i] }

func (l *LeafList) Values() []float64 {
	out := make([]float64, len(l.values))
	copy(out, l.values)
	return out
}

// leafBase gives access to the shared leaf part of both leaf kinds.
func leafBase(item LeafItem) *Leaf {
	switch l := item.(type) {
	case *Leaf:
		return l
	case *LeafList:
		return &l.Leaf
	}
	return nil
}
