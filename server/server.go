package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fasthttp/router"
	"github.com/mailru/easyjson/jwriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/royalcat/prquadtree/quadtree"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

var meter = otel.Meter("github.com/royalcat/prquadtree/server")

// Run serves the datasets until ctx is done. Metrics are exported through
// the global otel meter provider.
func Run(ctx context.Context, address string, datasets map[string]*quadtree.QuadTree) error {
	log := slog.Default().With("component", "server")

	s, err := newServer(datasets)
	if err != nil {
		return err
	}

	server := &fasthttp.Server{
		ReadTimeout:        time.Second,
		MaxRequestBodySize: MaxBodySize,
		Handler:            s.router().Handler,
	}

	ln, err := net.Listen("tcp4", address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", address, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "address", ln.Addr().String(), "datasets", s.datasets.Size())
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		_ = ln.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = server.ShutdownWithContext(shutdownCtx)
	_ = ln.Close()
	<-serveErr
	return err
}

type server struct {
	datasets *xsync.MapOf[string, *quadtree.QuadTree]

	metricNearestCallCount      metric.Int64Counter
	metricNearestMultiCallCount metric.Int64Counter
	metricSelectCallCount       metric.Int64Counter
	metricPointsQueried         metric.Int64Counter
}

func newServer(datasets map[string]*quadtree.QuadTree) (*server, error) {
	s := &server{
		datasets: xsync.NewMapOf[string, *quadtree.QuadTree](),
	}
	for name, tree := range datasets {
		s.datasets.Store(name, tree)
	}

	var err error
	s.metricNearestCallCount, err = meter.Int64Counter("http_nearest_call_total")
	if err != nil {
		return nil, err
	}
	s.metricNearestMultiCallCount, err = meter.Int64Counter("http_nearest_multi_call_total")
	if err != nil {
		return nil, err
	}
	s.metricSelectCallCount, err = meter.Int64Counter("http_select_call_total")
	if err != nil {
		return nil, err
	}
	s.metricPointsQueried, err = meter.Int64Counter("points_queried_total")
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *server) router() *router.Router {
	r := router.New()
	r.GET("/quadtree/{dataset}/nearest/{x}/{y}", s.NearestHandler)
	r.POST("/quadtree/{dataset}/nearest", s.NearestMultiHandler)
	r.GET("/quadtree/{dataset}/select/{x}/{y}", s.SelectHandler)
	r.GET("/quadtree/{dataset}/info", s.InfoHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	return r
}

var reqPointsPool = sync.Pool{
	New: func() any {
		return &[][2]float64{}
	},
}

func (s *server) dataset(ctx *fasthttp.RequestCtx) (*quadtree.QuadTree, bool) {
	name := ctx.UserValue("dataset").(string)
	tree, ok := s.datasets.Load(name)
	if !ok {
		ctx.Response.SetStatusCode(http.StatusNotFound)
		ctx.Response.SetBodyString("unknown dataset: " + name)
		return nil, false
	}
	return tree, true
}

func pathPoint(ctx *fasthttp.RequestCtx) (x, y float64, ok bool) {
	x, err := strconv.ParseFloat(ctx.UserValue("x").(string), 64)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		return 0, 0, false
	}
	y, err = strconv.ParseFloat(ctx.UserValue("y").(string), 64)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		return 0, 0, false
	}
	return x, y, true
}

func writeJSON(ctx *fasthttp.RequestCtx, w *jwriter.Writer) {
	if w.Error != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		return
	}
	ctx.Response.SetStatusCode(http.StatusOK)
	ctx.Response.Header.SetContentType("application/json")
	_, _ = w.DumpTo(ctx.Response.BodyWriter())
}

func (s *server) NearestHandler(ctx *fasthttp.RequestCtx) {
	s.metricNearestCallCount.Add(ctx, 1)
	s.metricPointsQueried.Add(ctx, 1)

	tree, ok := s.dataset(ctx)
	if !ok {
		return
	}
	x, y, ok := pathPoint(ctx)
	if !ok {
		return
	}

	leaf, distance, ok := tree.GetNearestLeaf(x, y)
	if !ok {
		ctx.Response.SetStatusCode(http.StatusNoContent)
		return
	}

	w := &jwriter.Writer{}
	neighbor{Leaf: leaf, Distance: distance}.MarshalEasyJSON(w)
	writeJSON(ctx, w)
}

func (s *server) NearestMultiHandler(ctx *fasthttp.RequestCtx) {
	s.metricNearestMultiCallCount.Add(ctx, 1)

	tree, ok := s.dataset(ctx)
	if !ok {
		return
	}

	req := reqPointsPool.Get().(*[][2]float64) // x, y
	*req = (*req)[:0]
	defer reqPointsPool.Put(req)

	if err := unmarshalPointsListFast(ctx.Request.Body(), req); err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString("failed to parse request: " + err.Error())
		return
	}

	s.metricPointsQueried.Add(ctx, int64(len(*req)))

	res := make(neighborList, len(*req))
	for i, p := range *req {
		if leaf, distance, ok := tree.GetNearestLeaf(p[0], p[1]); ok {
			res[i] = &neighbor{Leaf: leaf, Distance: distance}
		}
	}

	w := &jwriter.Writer{}
	res.MarshalEasyJSON(w)
	writeJSON(ctx, w)
}

func (s *server) SelectHandler(ctx *fasthttp.RequestCtx) {
	s.metricSelectCallCount.Add(ctx, 1)
	s.metricPointsQueried.Add(ctx, 1)

	tree, ok := s.dataset(ctx)
	if !ok {
		return
	}
	x, y, ok := pathPoint(ctx)
	if !ok {
		return
	}

	q, err := parseSelectQuery(ctx.QueryArgs())
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusBadRequest)
		ctx.Response.SetBodyString(err.Error())
		return
	}

	selected := tree.SelectNearestPoints(x, y, q.maxPoints, q.radius, q.quadrant)

	res := make(neighborList, len(selected))
	for i := range selected {
		res[i] = &neighbor{Leaf: selected[i].Leaf, Distance: selected[i].Distance}
	}

	w := &jwriter.Writer{}
	res.MarshalEasyJSON(w)
	writeJSON(ctx, w)
}

func (s *server) InfoHandler(ctx *fasthttp.RequestCtx) {
	tree, ok := s.dataset(ctx)
	if !ok {
		return
	}

	w := &jwriter.Writer{}
	info{Info: tree.Describe(), Polar: tree.IsPolar(), Statistics: tree.Statistics()}.MarshalEasyJSON(w)
	writeJSON(ctx, w)
}

type selectQuery struct {
	maxPoints int
	radius    float64
	quadrant  int
}

func parseSelectQuery(args *fasthttp.Args) (selectQuery, error) {
	q := selectQuery{quadrant: quadtree.QuadrantAny}

	if v := args.Peek("max"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return q, fmt.Errorf("bad max: %w", err)
		}
		q.maxPoints = n
	}

	if v := args.Peek("radius"); len(v) > 0 {
		r, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return q, fmt.Errorf("bad radius: %w", err)
		}
		q.radius = r
	}

	quadrant, err := quadtree.ParseQuadrant(string(args.Peek("quadrant")))
	if err != nil {
		return q, err
	}
	q.quadrant = quadrant

	return q, nil
}
