package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c, err := NewCollector(10 * time.Millisecond)
	require.NoError(t, err)

	c.Start()
	buf := make([][]byte, 0, 64)
	for range 64 {
		buf = append(buf, make([]byte, 1<<14))
	}
	c.Mark("allocated")
	time.Sleep(30 * time.Millisecond)
	report := c.Stop()

	require.GreaterOrEqual(t, len(report.Samples), 3)
	require.Equal(t, "start", report.Samples[0].Mark)
	require.Equal(t, "stop", report.Samples[len(report.Samples)-1].Mark)
	require.Positive(t, report.PeakHeapAlloc)
	require.Equal(t, len(report.Samples), report.CPU.Count())
	require.Len(t, buf, 64)

	var out bytes.Buffer
	_, err = report.WriteTo(&out)
	require.NoError(t, err)
	require.True(t, strings.Contains(out.String(), "allocated"))
}
