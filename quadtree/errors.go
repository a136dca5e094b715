package quadtree

import "errors"

var (
	ErrDegenerateExtent = errors.New("quadtree: extent has zero width or height")
	ErrNotCreated       = errors.New("quadtree: tree has no root")
	ErrInvalidPoint     = errors.New("quadtree: point coordinates are not finite")
	ErrOutOfExtent      = errors.New("quadtree: point is outside of node extent")
	ErrGrowthLimit      = errors.New("quadtree: root growth limit exceeded")
	ErrUnsplittable     = errors.New("quadtree: points are too close to be separated")
)
