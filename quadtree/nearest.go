package quadtree

type nearest struct {
	x, y  float64
	polar bool

	leaf     LeafItem
	distance float64 // < 0 while nothing was found
}

// GetNearestLeaf returns the leaf closest to (x, y). ok is false for an
// empty tree.
func (t *QuadTree) GetNearestLeaf(x, y float64) (leaf LeafItem, distance float64, ok bool) {
	if t.root == nil {
		return nil, 0, false
	}

	s := nearest{x: x, y: y, polar: t.polar, distance: -1}
	s.node(t.root)

	if s.leaf == nil {
		return nil, 0, false
	}
	return s.leaf, s.distance, true
}

func (t *QuadTree) GetNearestPoint(x, y float64) (p Point, distance float64, ok bool) {
	leaf, distance, ok := t.GetNearestLeaf(x, y)
	if !ok {
		return Point{}, 0, false
	}
	return leaf.Point(), distance, true
}

func (s *nearest) node(n *Node) {
	// the quadrant holding the query first, it gives the tightest bound
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
		if s.distance < 0 || lowerBound(s.x, s.y, child.Extent(), s.polar) <= s.distance {
			s.item(child)
		}
	}
}

func (s *nearest) item(item Item) {
	switch c := item.(type) {
	case *Node:
		s.node(c)
	case LeafItem:
		d := distance(s.x, s.y, c.X(), c.Y(), s.polar)
		if s.distance < 0 || d < s.distance {
			s.leaf = c
			s.distance = d
		}
	}
}
