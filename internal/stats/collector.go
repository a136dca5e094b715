// Package stats samples process resources while a quadtree is built or
// queried.
package stats

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	gostats "github.com/GaryBoone/GoStats/stats"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

type Sample struct {
	Elapsed      time.Duration
	Mark         string
	HeapAlloc    uint64
	Sys          uint64
	ProcessRSS   uint64
	CPUPercent   float64
	SystemCPU    float64
	NumGC        uint32
	NumGoroutine int
}

type Report struct {
	Start   time.Time
	Elapsed time.Duration
	Samples []Sample

	PeakHeapAlloc  uint64
	PeakProcessRSS uint64
	PeakGoroutines int
	CPU            gostats.Stats
}

// Collector samples the runtime every interval until Stop. Marks add a
// labelled sample, so the report shows where a phase ended.
type Collector struct {
	mu       sync.Mutex
	report   Report
	interval time.Duration
	proc     *process.Process

	stop chan struct{}
	done chan struct{}
}

func NewCollector(interval time.Duration) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process info: %w", err)
	}

	return &Collector{
		interval: interval,
		proc:     proc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (c *Collector) Start() {
	c.report.Start = time.Now()
	c.sample("start")
	go c.collect()
}

func (c *Collector) collect() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			c.sample("stop")
			return
		case <-ticker.C:
			c.sample("")
		}
	}
}

// Mark records a sample labelled with name.
func (c *Collector) Mark(name string) {
	c.sample(name)
}

func (c *Collector) sample(mark string) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Elapsed:      time.Since(c.report.Start),
		Mark:         mark,
		HeapAlloc:    mem.HeapAlloc,
		Sys:          mem.Sys,
		NumGC:        mem.NumGC,
		NumGoroutine: runtime.NumGoroutine(),
	}
	if memInfo, err := c.proc.MemoryInfo(); err == nil && memInfo != nil {
		s.ProcessRSS = memInfo.RSS
	}
	if p, err := c.proc.CPUPercent(); err == nil {
		s.CPUPercent = p
	}
	if p, err := cpu.Percent(0, false); err == nil && len(p) > 0 {
		s.SystemCPU = p[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := &c.report
	r.Samples = append(r.Samples, s)
	r.PeakHeapAlloc = max(r.PeakHeapAlloc, s.HeapAlloc)
	r.PeakProcessRSS = max(r.PeakProcessRSS, s.ProcessRSS)
	r.PeakGoroutines = max(r.PeakGoroutines, s.NumGoroutine)
	r.CPU.Update(s.CPUPercent)
}

// Stop ends sampling and returns everything collected.
func (c *Collector) Stop() Report {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.Elapsed = time.Since(c.report.Start)
	return c.report
}

// WriteTo prints a human readable report, marked samples are always shown,
// periodic ones only when there are few of them.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	const maxPeriodic = 50

	ew := &errWriter{w: w}
	ew.printf("started %s, took %s\n", r.Start.Format(time.RFC3339), r.Elapsed.Round(time.Millisecond))
	ew.printf("peak heap %s, peak rss %s, peak goroutines %d\n",
		humanize.IBytes(r.PeakHeapAlloc), humanize.IBytes(r.PeakProcessRSS), r.PeakGoroutines)
	if r.CPU.Count() > 0 {
		ew.printf("cpu mean %.1f%%, max %.1f%% over %d samples\n", r.CPU.Mean(), r.CPU.Max(), r.CPU.Count())
	}

	ew.printf("\n%-12s %-12s %-12s %-12s %-8s %s\n", "elapsed", "heap", "rss", "sys", "cpu %", "mark")
	periodic := len(r.Samples) <= maxPeriodic
	for _, s := range r.Samples {
		if s.Mark == "" && !periodic {
			continue
		}
		ew.printf("%-12s %-12s %-12s %-12s %-8.1f %s\n",
			s.Elapsed.Round(time.Millisecond),
			humanize.IBytes(s.HeapAlloc),
			humanize.IBytes(s.ProcessRSS),
			humanize.IBytes(s.Sys),
			s.CPUPercent,
			s.Mark)
	}

	return ew.n, ew.err
}

// SaveToFile writes the report to filename.
func (r *Report) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer f.Close()

	if _, err := r.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return f.Close()
}

type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	n, err := fmt.Fprintf(ew.w, format, args...)
	ew.n += int64(n)
	ew.err = err
}
