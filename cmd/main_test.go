package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/royalcat/prquadtree/quadtree"
	"github.com/stretchr/testify/require"
)

const cornersCSV = `x,y,z,name
0,0,1,a
10,0,,b
0,10,3,c
10,10,4,
`

func writeSource(t *testing.T, name, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func testConfig(attribute string, opts ...quadtree.Option) sourceConfig {
	return sourceConfig{
		xField:    "x",
		yField:    "y",
		attribute: attribute,
		threads:   1,
		opts:      opts,
	}
}

func TestBuildTree(t *testing.T) {
	path := writeSource(t, "corners.csv", cornersCSV)

	tree, err := buildTree(context.Background(), path, testConfig("z", quadtree.WithStatistics()))
	require.NoError(t, err)
	require.Equal(t, 3, tree.Len())
	require.Equal(t, 3, tree.Statistics().Count())

	leaf, distance, ok := tree.GetNearestLeaf(8, 3)
	require.True(t, ok)
	require.Equal(t, 4.0, leaf.Value(0))
	require.InDelta(t, 7.2801, distance, 1e-4)

	// point index as value keeps rows without data
	tree, err = buildTree(context.Background(), path, testConfig(""))
	require.NoError(t, err)
	require.Equal(t, 4, tree.Len())

	leaf, _, ok = tree.GetNearestLeaf(10, 0)
	require.True(t, ok)
	require.Equal(t, 1.0, leaf.Value(0))
}

func TestBuildTreeAllNoData(t *testing.T) {
	path := writeSource(t, "corners.csv", cornersCSV)

	tree, err := buildTree(context.Background(), path, testConfig("name"))
	require.NoError(t, err)
	require.Equal(t, 0, tree.Len())
}

func TestBuildTreeErrors(t *testing.T) {
	path := writeSource(t, "corners.csv", cornersCSV)

	_, err := buildTree(context.Background(), path, testConfig("height"))
	require.ErrorContains(t, err, `no attribute "height"`)

	c := testConfig("z")
	c.xField = "lon"
	_, err = buildTree(context.Background(), path, c)
	require.Error(t, err)

	_, err = buildTree(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), testConfig("z"))
	require.Error(t, err)
}

func TestBuildTreeConcurrentOptions(t *testing.T) {
	path := writeSource(t, "corners.csv", cornersCSV)

	c := testConfig("z")
	c.opts = make([]quadtree.Option, 1, 4)
	c.opts[0] = quadtree.WithPolar()

	a, err := buildTree(context.Background(), path, c)
	require.NoError(t, err)
	b, err := buildTree(context.Background(), path, c)
	require.NoError(t, err)

	require.True(t, a.IsPolar())
	require.True(t, b.IsPolar())
	require.Nil(t, c.opts[:2][1])
}

func TestOpenSourceZstd(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	path := writeSource(t, "corners.csv.zst", string(enc.EncodeAll([]byte(cornersCSV), nil)))
	require.NoError(t, enc.Close())

	table, err := openSource(context.Background(), path, testConfig("z"))
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())
	require.Equal(t, []string{"z", "name"}, table.Fields())
}

func TestParseBound(t *testing.T) {
	bound, err := parseBound("-10, -5, 10, 5")
	require.NoError(t, err)
	require.Equal(t, orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}}, bound)

	for _, s := range []string{
		"",
		"0,0,1",
		"0,0,1,1,1",
		"0,0,x,1",
		"0,0,0,1",
		"0,1,1,1",
		"2,0,1,1",
	} {
		_, err := parseBound(s)
		require.Error(t, err, s)
	}
}
