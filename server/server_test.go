package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/royalcat/prquadtree/quadtree"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func testServer(t testing.TB) *server {
	t.Helper()

	tree, err := quadtree.NewQuadTree(quadtree.Extent{XMin: 0, YMin: 0, XMax: 10, YMax: 10}, quadtree.WithStatistics())
	require.NoError(t, err)
	for i, p := range [][2]float64{{0, 0}, {10, 0}, {0, 10}, {10, 10}} {
		require.NoError(t, tree.AddPoint(p[0], p[1], float64(i+1)))
	}
	require.NoError(t, tree.AddPoint(0, 0, 5))

	s, err := newServer(map[string]*quadtree.QuadTree{
		"corners": tree,
		"empty":   quadtree.New(),
	})
	require.NoError(t, err)
	return s
}

func getRequestCtx(body string, values map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	for k, v := range values {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

type neighborResponse struct {
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Z        float64   `json:"z"`
	Values   []float64 `json:"values"`
	Distance float64   `json:"distance"`
}

func TestNearestHandler(t *testing.T) {
	s := testServer(t)

	ctx := getRequestCtx("", map[string]string{"dataset": "corners", "x": "1", "y": "1.5"})
	s.NearestHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var res neighborResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &res))
	require.Equal(t, 0.0, res.X)
	require.Equal(t, 0.0, res.Y)
	require.Equal(t, []float64{1, 5}, res.Values)
	require.InDelta(t, 1.8027756, res.Distance, 1e-6)
}

func TestNearestHandlerErrors(t *testing.T) {
	s := testServer(t)

	ctx := getRequestCtx("", map[string]string{"dataset": "missing", "x": "1", "y": "1"})
	s.NearestHandler(ctx)
	require.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	ctx = getRequestCtx("", map[string]string{"dataset": "corners", "x": "one", "y": "1"})
	s.NearestHandler(ctx)
	require.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = getRequestCtx("", map[string]string{"dataset": "empty", "x": "1", "y": "1"})
	s.NearestHandler(ctx)
	require.Equal(t, http.StatusNoContent, ctx.Response.StatusCode())
}

func TestNearestMultiHandler(t *testing.T) {
	s := testServer(t)

	ctx := getRequestCtx(`[[1, 1], [9, 9.5], [2, 8]]`, map[string]string{"dataset": "corners"})
	s.NearestMultiHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var res []*neighborResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &res))
	require.Len(t, res, 3)
	require.Equal(t, 1.0, res[0].Z)
	require.Equal(t, 4.0, res[1].Z)
	require.Equal(t, 3.0, res[2].Z)

	ctx = getRequestCtx(`[[1, 1]`, map[string]string{"dataset": "corners"})
	s.NearestMultiHandler(ctx)
	require.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = getRequestCtx(`[[1, 1]]`, map[string]string{"dataset": "empty"})
	s.NearestMultiHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.Equal(t, "[null]", string(ctx.Response.Body()))
}

func TestSelectHandler(t *testing.T) {
	s := testServer(t)

	cases := []struct {
		query string
		z     []float64
	}{
		{"", []float64{1, 3, 2, 4}},
		{"max=2", []float64{1, 3}},
		{"radius=6.5", []float64{1}},
		{"quadrant=2", []float64{4}},
		{"quadrant=each&max=1", []float64{1, 3, 2, 4}},
	}

	for _, c := range cases {
		ctx := getRequestCtx("", map[string]string{"dataset": "corners", "x": "4", "y": "4.5"})
		ctx.Request.URI().SetQueryString(c.query)
		s.SelectHandler(ctx)
		require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), c.query)

		var res []neighborResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &res))

		z := make([]float64, len(res))
		for i, n := range res {
			z[i] = n.Z
		}
		require.Equal(t, c.z, z, c.query)
	}

	for _, query := range []string{"quadrant=7", "max=x", "radius=far"} {
		ctx := getRequestCtx("", map[string]string{"dataset": "corners", "x": "4", "y": "4"})
		ctx.Request.URI().SetQueryString(query)
		s.SelectHandler(ctx)
		require.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode(), query)
	}
}

func TestInfoHandler(t *testing.T) {
	s := testServer(t)

	ctx := getRequestCtx("", map[string]string{"dataset": "corners"})
	s.InfoHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	var res struct {
		Points     int       `json:"points"`
		Leaves     int       `json:"leaves"`
		Lists      int       `json:"lists"`
		Extent     []float64 `json:"extent"`
		Statistics struct {
			Z struct {
				Count int     `json:"count"`
				Max   float64 `json:"max"`
			} `json:"z"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &res))
	require.Equal(t, 5, res.Points)
	require.Equal(t, 4, res.Leaves)
	require.Equal(t, 1, res.Lists)
	require.Len(t, res.Extent, 4)
	require.Equal(t, 5, res.Statistics.Z.Count)
	require.Equal(t, 5.0, res.Statistics.Z.Max)

	ctx = getRequestCtx("", map[string]string{"dataset": "empty"})
	s.InfoHandler(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	require.True(t, json.Valid(ctx.Response.Body()))
}

func freeAddress(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRunShutdown(t *testing.T) {
	datasets := map[string]*quadtree.QuadTree{"empty": quadtree.New()}
	addr := freeAddress(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, addr, datasets)
	}()

	require.Eventually(t, func() bool {
		status, _, err := fasthttp.Get(nil, "http://"+addr+"/quadtree/empty/info")
		return err == nil && status == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Run(ctx, freeAddress(t), nil))
}

func TestRunListenError(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = Run(context.Background(), ln.Addr().String(), nil)
	require.Error(t, err)

	require.Error(t, Run(context.Background(), "127.0.0.1:-1", nil))
}

func BenchmarkHandlers(b *testing.B) {
	s := testServer(b)

	for _, n := range []int{10, 1000, 10_000} {
		b.Run("NearestMultiHandler-"+strconv.Itoa(n), func(b *testing.B) {
			points := generatePoints(n)
			b.ResetTimer()

			for b.Loop() {
				s.NearestMultiHandler(getRequestCtx(points, map[string]string{"dataset": "corners"}))
			}
		})
	}
}

func generatePoints(n int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := range n {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("[1.0, 1.0]")
	}
	sb.WriteByte(']')
	return sb.String()
}
