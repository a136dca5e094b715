package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/royalcat/prquadtree/pointsource"
	"github.com/royalcat/prquadtree/quadtree"
	"github.com/urfave/cli/v3"
	"golang.org/x/exp/mmap"
)

var sourceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "x-field",
		Value: "x",
		Usage: "csv column holding x (longitude for polar trees)",
	},
	&cli.StringFlag{
		Name:  "y-field",
		Value: "y",
		Usage: "csv column holding y (latitude for polar trees)",
	},
	&cli.StringFlag{
		Name:        "attribute",
		Aliases:     []string{"a"},
		Usage:       "attribute used as point value",
		DefaultText: "point index",
	},
	&cli.StringSliceFlag{
		Name:  "tags",
		Usage: "osm node tags read as attributes from .osm.pbf inputs",
		Value: []string{"ele"},
	},
	&cli.IntFlag{
		Name:        "threads",
		Aliases:     []string{"t"},
		DefaultText: "max",
	},
	&cli.BoolFlag{
		Name:  "polar",
		Usage: "treat coordinates as degrees and measure great circle distances",
	},
	&cli.BoolFlag{
		Name:  "statistics",
		Usage: "keep running statistics in every node",
	},
	&cli.IntFlag{
		Name:  "max-growth",
		Value: 128,
		Usage: "maximum number of root doublings for a single point",
	},
}

type sourceConfig struct {
	xField, yField string
	attribute      string
	tags           []string
	threads        int
	opts           []quadtree.Option
}

func loadSourceConfig(ctx *cli.Context) sourceConfig {
	c := sourceConfig{
		xField:    ctx.String("x-field"),
		yField:    ctx.String("y-field"),
		attribute: ctx.String("attribute"),
		tags:      ctx.StringSlice("tags"),
		threads:   threads(ctx),
		opts:      []quadtree.Option{quadtree.WithMaxGrowth(ctx.Int("max-growth"))},
	}
	if ctx.Bool("polar") {
		c.opts = append(c.opts, quadtree.WithPolar())
	}
	if ctx.Bool("statistics") {
		c.opts = append(c.opts, quadtree.WithStatistics())
	}
	return c
}

// openSource reads .osm.pbf files through a memory map, everything else as
// csv.
func openSource(ctx context.Context, path string, c sourceConfig) (*pointsource.Table, error) {
	if !strings.HasSuffix(path, ".osm.pbf") {
		return pointsource.OpenCSV(path, c.xField, c.yField)
	}

	file, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	size := int64(file.Len())
	return pointsource.ReadOSM(ctx, io.NewSectionReader(file, 0, size), size, c.tags, c.threads)
}

func buildTree(ctx context.Context, path string, c sourceConfig) (*quadtree.QuadTree, error) {
	log := slog.Default().With("source", path)

	table, err := openSource(ctx, path, c)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	attribute := -1
	if c.attribute != "" {
		attribute = table.Field(c.attribute)
		if attribute < 0 {
			return nil, fmt.Errorf("%s has no attribute %q, available: %v", path, c.attribute, table.Fields())
		}
	}

	// c is shared between concurrently loaded datasets
	opts := append(slices.Clip(c.opts), quadtree.WithLogger(log))

	tree := quadtree.New(opts...)
	skipped, err := tree.CreateFromSource(table, attribute)
	if err != nil {
		return nil, fmt.Errorf("error building quadtree from %s: %w", path, err)
	}

	log.Info("Quadtree built", "points", tree.Len(), "skipped", skipped)
	return tree, nil
}
