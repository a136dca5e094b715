package server

import (
	"math"

	"github.com/mailru/easyjson/jwriter"
	"github.com/royalcat/prquadtree/quadtree"
)

type neighbor struct {
	Leaf     quadtree.LeafItem
	Distance float64
}

func (n neighbor) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"x":`)
	writeFloat(w, n.Leaf.X())
	w.RawString(`,"y":`)
	writeFloat(w, n.Leaf.Y())
	w.RawString(`,"z":`)
	writeFloat(w, n.Leaf.Z())
	w.RawString(`,"values":[`)
	for i := range n.Leaf.Count() {
		if i > 0 {
			w.RawByte(',')
		}
		writeFloat(w, n.Leaf.Value(i))
	}
	w.RawString(`],"distance":`)
	writeFloat(w, n.Distance)
	w.RawByte('}')
}

// neighborList encodes missing entries as null.
type neighborList []*neighbor

func (l neighborList) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	for i, n := range l {
		if i > 0 {
			w.RawByte(',')
		}
		if n == nil {
			w.RawString("null")
			continue
		}
		n.MarshalEasyJSON(w)
	}
	w.RawByte(']')
}

type info struct {
	quadtree.Info
	Polar      bool
	Statistics *quadtree.Statistics
}

func (i info) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"points":`)
	w.Int(i.Points)
	w.RawString(`,"leaves":`)
	w.Int(i.Leaves)
	w.RawString(`,"lists":`)
	w.Int(i.Lists)
	w.RawString(`,"nodes":`)
	w.Int(i.Nodes)
	w.RawString(`,"depth":`)
	w.Int(i.Depth)
	w.RawString(`,"polar":`)
	w.Bool(i.Polar)
	w.RawString(`,"extent":[`)
	writeFloat(w, i.Extent.XMin)
	w.RawByte(',')
	writeFloat(w, i.Extent.YMin)
	w.RawByte(',')
	writeFloat(w, i.Extent.XMax)
	w.RawByte(',')
	writeFloat(w, i.Extent.YMax)
	w.RawByte(']')
	if i.Statistics != nil {
		w.RawString(`,"statistics":{"x":`)
		writeSummary(w, i.Statistics.X())
		w.RawString(`,"y":`)
		writeSummary(w, i.Statistics.Y())
		w.RawString(`,"z":`)
		writeSummary(w, i.Statistics.Z())
		w.RawByte('}')
	}
	w.RawByte('}')
}

func writeSummary(w *jwriter.Writer, s quadtree.Summary) {
	w.RawString(`{"count":`)
	w.Int(s.Count)
	w.RawString(`,"min":`)
	writeFloat(w, s.Min)
	w.RawString(`,"max":`)
	writeFloat(w, s.Max)
	w.RawString(`,"mean":`)
	writeFloat(w, s.Mean)
	w.RawString(`,"sum":`)
	writeFloat(w, s.Sum)
	w.RawString(`,"std_dev":`)
	writeFloat(w, s.StdDev)
	w.RawByte('}')
}

// writeFloat writes NaN and infinities as null, JSON has no notation for
// them.
func writeFloat(w *jwriter.Writer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		w.RawString("null")
		return
	}
	w.Float64(v)
}
