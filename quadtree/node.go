package quadtree

// Node is an internal cell owning up to four children, one per quadrant.
// It routes points by its split centre, which is the extent midpoint for
// every node except a grown root.
type Node struct {
	extent   Extent
	quadrant int
	cx, cy   float64

	children [4]Item
	stats    *Statistics
}

func newNode(extent Extent, quadrant int, withStatistics bool) *Node {
	n := &Node{
		extent:   extent,
		quadrant: quadrant,
		cx:       extent.XCenter(),
		cy:       extent.YCenter(),
	}
	if withStatistics {
		n.stats = &Statistics{}
	}
	return n
}

func (n *Node) IsLeaf() bool               { return false }
func (n *Node) IsNode() bool               { return true }
func (n *Node) Extent() Extent             { return n.extent }
func (n *Node) Contains(x, y float64) bool { return n.extent.Contains(x, y) }
func (n *Node) Quadrant() int              { return n.quadrant }

// Center is the point the node splits its extent at.
func (n *Node) Center() (x, y float64) { return n.cx, n.cy }

// Child returns the item in the given quadrant slot, nil when empty.
func (n *Node) Child(quadrant int) Item {
	if quadrant < 0 || quadrant > 3 {
		return nil
	}
	return n.children[quadrant]
}

// Statistics is nil unless the tree was built with statistics.
func (n *Node) Statistics() *Statistics { return n.stats }

func (n *Node) childExtent(quadrant int) Extent {
	return n.extent.quarter(n.cx, n.cy, quadrant)
}

// add inserts (x, y, z) below n. Statistics are updated on the way back up,
// so a rejected insert leaves the subtree as it was.
func (n *Node) add(x, y, z float64) error {
	if !n.Contains(x, y) {
		return ErrOutOfExtent
	}

	q := quadrantOf(n.cx, n.cy, x, y)

	switch child := n.children[q].(type) {
	case nil:
		n.children[q] = newLeaf(n.childExtent(q), q, x, y, z)

	case *Node:
		if err := child.add(x, y, z); err != nil {
			return err
		}

	case *Leaf:
		if child.sameCoord(x, y) {
			list := newLeafList(child)
			list.AddValue(z)
			n.children[q] = list
		} else if err := n.promote(q, child, x, y, z); err != nil {
			return err
		}

	case *LeafList:
		if child.sameCoord(x, y) {
			child.AddValue(z)
		} else if err := n.promote(q, child, x, y, z); err != nil {
			return err
		}
	}

	if n.stats != nil {
		n.stats.add(x, y, z)
	}
	return nil
}

// promote replaces the leaf in slot q by a node holding both the old leaf
// and the new point.
func (n *Node) promote(q int, leaf LeafItem, x, y, z float64) error {
	sub := n.childExtent(q)
	if sub == n.extent {
		return ErrUnsplittable
	}

	node := newNode(sub, q, n.stats != nil)

	base := leafBase(leaf)
	oldExtent, oldQuadrant := base.extent, base.quadrant

	lq := quadrantOf(node.cx, node.cy, base.x, base.y)
	base.extent, base.quadrant = node.childExtent(lq), lq
	node.children[lq] = leaf
	if node.stats != nil {
		node.stats.addLeaf(leaf)
	}

	if err := node.add(x, y, z); err != nil {
		base.extent, base.quadrant = oldExtent, oldQuadrant
		return err
	}

	n.children[q] = node
	return nil
}
