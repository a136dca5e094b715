// Package pointsource provides point samples with attribute columns to build
// quadtrees from.
package pointsource

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Table is an in-memory point source. NaN is always treated as no-data, a
// field may declare an extra no-data value.
type Table struct {
	fields []string
	noData []float64

	points []orb.Point
	rows   [][]float64
	bound  orb.Bound
}

func NewTable(fields ...string) *Table {
	noData := make([]float64, len(fields))
	for i := range noData {
		noData[i] = math.NaN()
	}
	return &Table{
		fields: fields,
		noData: noData,
	}
}

// Add appends a sample, one value per field is required.
func (t *Table) Add(p orb.Point, values ...float64) error {
	if len(values) != len(t.fields) {
		return fmt.Errorf("expected %d values, got %d", len(t.fields), len(values))
	}

	if len(t.points) == 0 {
		t.bound = p.Bound()
	} else {
		t.bound = t.bound.Extend(p)
	}

	t.points = append(t.points, p)
	t.rows = append(t.rows, values)
	return nil
}

// Field returns the attribute index of name, -1 when there is no such field.
func (t *Table) Field(name string) int {
	for i, f := range t.fields {
		if f == name {
			return i
		}
	}
	return -1
}

func (t *Table) Fields() []string {
	return t.fields
}

// SetNoData marks value as missing data for the field.
func (t *Table) SetNoData(attribute int, value float64) {
	t.noData[attribute] = value
}

func (t *Table) Len() int { return len(t.points) }

func (t *Table) Bound() orb.Bound { return t.bound }

func (t *Table) Point(i int) orb.Point { return t.points[i] }

func (t *Table) Value(i, attribute int) float64 { return t.rows[i][attribute] }

func (t *Table) IsNoData(i, attribute int) bool {
	v := t.rows[i][attribute]
	return math.IsNaN(v) || v == t.noData[attribute]
}
