package pointsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cheggaaa/pb/v3/termutil"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// ReadOSM collects the nodes of an osm.pbf stream carrying at least one of
// tags. Attribute i is the numeric value of tag i, x is the longitude and y
// the latitude. size is the stream length in bytes and only drives the
// progress bar, 0 disables it.
func ReadOSM(ctx context.Context, r io.Reader, size int64, tags []string, threads int) (*Table, error) {
	scanner := osmpbf.New(ctx, r, threads)
	defer scanner.Close()

	scanner.SkipWays = true
	scanner.SkipRelations = true

	table := NewTable(tags...)

	var bar *pb.ProgressBar
	if size > 0 {
		bar = pb.Start64(size)
		bar.Set("prefix", "reading nodes")
		bar.Set(pb.Bytes, true)
		bar.SetRefreshRate(time.Second * 5)
		if w, err := termutil.TerminalWidth(); w == 0 || err != nil {
			bar.SetTemplateString(`{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}{{with string . "suffix"}} {{.}}{{end}}` + "\n")
		}
	}

	for scanner.Scan() {
		if bar != nil {
			bar.SetCurrent(scanner.FullyScannedBytes())
		}

		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if err := addNode(table, node, tags); err != nil {
			return nil, err
		}
	}
	if bar != nil {
		bar.Finish()
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	slog.Info("OSM nodes loaded", "nodes", table.Len(), "tags", tags)

	return table, nil
}

// addNode adds node to table when it carries any of tags.
func addNode(table *Table, node *osm.Node, tags []string) error {
	values, ok := nodeValues(node, tags)
	if !ok {
		return nil
	}
	if err := table.Add(orb.Point{node.Lon, node.Lat}, values...); err != nil {
		return fmt.Errorf("node %d: %w", node.ID, err)
	}
	return nil
}

func nodeValues(node *osm.Node, tags []string) ([]float64, bool) {
	values := make([]float64, len(tags))
	found := false
	for i, tag := range tags {
		v := node.Tags.Find(tag)
		if v != "" {
			found = true
		}
		values[i] = parseTagValue(v)
	}
	return values, found
}

// parseTagValue reads the leading number of a tag value, so "1250 m" and
// "12,5" are understood. Anything else is NaN.
func parseTagValue(v string) float64 {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return math.NaN()
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}
