package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb"
	"github.com/royalcat/prquadtree/internal/stats"
	"github.com/royalcat/prquadtree/internal/telemetry"
	"github.com/royalcat/prquadtree/pointsource"
	"github.com/royalcat/prquadtree/quadtree"
	"github.com/royalcat/prquadtree/server"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/urfave/cli/v3"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"
)

const appName = "prquadtree"

var telemetryClient *telemetry.Client

func main() {
	queryFlags := []cli.Flag{
		&cli.IntFlag{
			Name:    "max",
			Aliases: []string{"k"},
			Value:   1,
			Usage:   "number of neighbours, 0 selects every point",
		},
		&cli.Float64Flag{
			Name:        "radius",
			Aliases:     []string{"r"},
			DefaultText: "unlimited",
		},
		&cli.StringFlag{
			Name:  "quadrant",
			Value: "any",
			Usage: "any, each or 0-3 (lower left, upper left, upper right, lower right)",
		},
	}

	app := &cli.App{
		Name:        appName,
		Description: "Point-region quadtree index for nearest neighbour queries",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "otel-endpoint",
				Usage: "OTLP http collector, OTEL_* environment is used when empty",
			},
		},
		Before: func(ctx *cli.Context) error {
			var err error
			telemetryClient, err = telemetry.Setup(ctx.Context, appName, ctx.String("otel-endpoint"))
			return err
		},
		After: func(ctx *cli.Context) error {
			if telemetryClient == nil {
				return nil
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryClient.Flush(shutdownCtx); err != nil {
				slog.Error("error flushing telemetry", "error", err.Error())
			}
			telemetryClient.Shutdown(shutdownCtx)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve nearest neighbour queries over http",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:      "dataset",
						Aliases:   []string{"d"},
						Usage:     "name=path of a csv, csv.zst or osm.pbf source",
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
					},
				}, sourceFlags...),
				Action: serve,
			},
			{
				Name:    "nearest",
				Aliases: []string{"n"},
				Usage:   "find the points closest to a location",
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:      "points",
						Aliases:   []string{"p"},
						Required:  true,
						TakesFile: true,
					},
					&cli.Float64Flag{Name: "x", Required: true},
					&cli.Float64Flag{Name: "y", Required: true},
				}, queryFlags...), sourceFlags...),
				Action: nearest,
			},
			{
				Name:  "query",
				Usage: "answer every location of a csv file",
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:      "points",
						Aliases:   []string{"p"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "input",
						Aliases:   []string{"i"},
						Required:  true,
						TakesFile: true,
						Usage:     "csv with x and y columns",
					},
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
					},
				}, queryFlags...), sourceFlags...),
				Action: query,
			},
			{
				Name:  "info",
				Usage: "build a quadtree and describe it",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:      "points",
						Aliases:   []string{"p"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:      "runtime-stats",
						Usage:     "write a runtime resource report to this file",
						TakesFile: true,
					},
				}, sourceFlags...),
				Action: info,
			},
			{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "generates a random Poisson-disc point set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:      "output",
						Aliases:   []string{"o"},
						Required:  true,
						TakesFile: true,
					},
					&cli.StringFlag{
						Name:  "bound",
						Value: "0,0,100,100",
						Usage: "minX,minY,maxX,maxY",
					},
					&cli.Float64Flag{
						Name:  "radius",
						Value: 1,
						Usage: "minimal distance between points",
					},
					&cli.Int64Flag{
						Name:        "seed",
						DefaultText: "current time",
					},
				},
				Action: generate,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func threads(ctx *cli.Context) int {
	if t := ctx.Int("threads"); t > 0 {
		return t
	}
	return runtime.GOMAXPROCS(0)
}

func serve(ctx *cli.Context) error {
	config := loadSourceConfig(ctx)

	flags := ctx.StringSlice("dataset")
	names := make([]string, len(flags))
	paths := make([]string, len(flags))
	for i, flag := range flags {
		name, path, ok := strings.Cut(flag, "=")
		if !ok {
			return fmt.Errorf("bad dataset %q, expected name=path", flag)
		}
		names[i], paths[i] = name, path
	}

	trees := make([]*quadtree.QuadTree, len(flags))
	g, gctx := errgroup.WithContext(ctx.Context)
	for i, path := range paths {
		g.Go(func() error {
			tree, err := buildTree(gctx, path, config)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	datasets := make(map[string]*quadtree.QuadTree, len(flags))
	for i, name := range names {
		datasets[name] = trees[i]
	}

	return server.Run(ctx.Context, ctx.String("listen"), datasets)
}

func nearest(ctx *cli.Context) error {
	quadrant, err := quadtree.ParseQuadrant(ctx.String("quadrant"))
	if err != nil {
		return err
	}

	tree, err := buildTree(ctx.Context, ctx.String("points"), loadSourceConfig(ctx))
	if err != nil {
		return err
	}

	x, y := ctx.Float64("x"), ctx.Float64("y")
	selected := tree.SelectNearestPoints(x, y, ctx.Int("max"), ctx.Float64("radius"), quadrant)
	if len(selected) == 0 {
		fmt.Println("no points found")
		return nil
	}

	for i, n := range selected {
		fmt.Printf("%d\tx=%v\ty=%v\tz=%v\tdistance=%v\n", i+1, n.Leaf.X(), n.Leaf.Y(), n.Leaf.Z(), n.Distance)
	}
	return nil
}

func query(ctx *cli.Context) error {
	log := slog.Default()

	quadrant, err := quadtree.ParseQuadrant(ctx.String("quadrant"))
	if err != nil {
		return err
	}
	config := loadSourceConfig(ctx)

	tree, err := buildTree(ctx.Context, ctx.String("points"), config)
	if err != nil {
		return err
	}

	queries, err := pointsource.OpenCSV(ctx.String("input"), config.xField, config.yField)
	if err != nil {
		return fmt.Errorf("error reading queries: %w", err)
	}

	maxPoints, radius := ctx.Int("max"), ctx.Float64("radius")
	results := make([][]quadtree.Neighbor, queries.Len())

	start := time.Now()
	p := pool.New().WithMaxGoroutines(config.threads)
	for i := range queries.Len() {
		p.Go(func() {
			q := queries.Point(i)
			results[i] = tree.SelectNearestPoints(q.X(), q.Y(), maxPoints, radius, quadrant)
		})
	}
	p.Wait()

	log.Info("Queries answered", "queries", queries.Len(), "elapsed", time.Since(start))

	out := pointsource.NewTable("query", "rank", "z", "distance")
	for i, neighbors := range results {
		for rank, n := range neighbors {
			err := out.Add(orb.Point{n.Leaf.X(), n.Leaf.Y()}, float64(i), float64(rank+1), n.Leaf.Z(), n.Distance)
			if err != nil {
				return err
			}
		}
	}

	return pointsource.CreateCSV(ctx.String("output"), out)
}

func info(ctx *cli.Context) error {
	var collector *stats.Collector
	if statsFile := ctx.String("runtime-stats"); statsFile != "" {
		var err error
		collector, err = stats.NewCollector(100 * time.Millisecond)
		if err != nil {
			return err
		}
		collector.Start()
	}

	tree, err := buildTree(ctx.Context, ctx.String("points"), loadSourceConfig(ctx))
	if err != nil {
		return err
	}

	d := tree.Describe()
	fmt.Printf("points:  %s\n", humanize.Comma(int64(d.Points)))
	fmt.Printf("leaves:  %s (%s with duplicates)\n", humanize.Comma(int64(d.Leaves)), humanize.Comma(int64(d.Lists)))
	fmt.Printf("nodes:   %s\n", humanize.Comma(int64(d.Nodes)))
	fmt.Printf("depth:   %d\n", d.Depth)
	fmt.Printf("extent:  [%v, %v] - [%v, %v], size %v\n", d.Extent.XMin, d.Extent.YMin, d.Extent.XMax, d.Extent.YMax, d.Extent.Size())

	if s := tree.Statistics(); s != nil {
		for _, axis := range []struct {
			name    string
			summary quadtree.Summary
		}{{"x", s.X()}, {"y", s.Y()}, {"z", s.Z()}} {
			fmt.Printf("%s:       min %v, max %v, mean %v, std dev %v\n",
				axis.name, axis.summary.Min, axis.summary.Max, axis.summary.Mean, axis.summary.StdDev)
		}
	}

	if collector != nil {
		collector.Mark("tree built")
		report := collector.Stop()
		if err := report.SaveToFile(ctx.String("runtime-stats")); err != nil {
			return err
		}
	}

	return nil
}

func parseBound(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.New("bound must be minX,minY,maxX,maxY")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bad bound value %q: %w", p, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("empty bound %v", v)
	}

	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func generate(ctx *cli.Context) error {
	bound, err := parseBound(ctx.String("bound"))
	if err != nil {
		return err
	}

	seed := ctx.Int64("seed")
	if !ctx.IsSet("seed") {
		seed = time.Now().UnixNano()
	}

	center := bound.Center()
	table, err := pointsource.Poisson(bound, ctx.Float64("radius"), seed, func(p orb.Point) float64 {
		// smooth surface, so neighbours carry similar values
		return math.Sin((p.X()-center.X())/10) * math.Cos((p.Y()-center.Y())/10)
	})
	if err != nil {
		return err
	}

	output := ctx.String("output")
	slog.Info("Saving generated points", "points", table.Len(), "file", output, "seed", seed)

	return pointsource.CreateCSV(output, table)
}
