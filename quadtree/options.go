package quadtree

import "log/slog"

const defaultMaxGrowth = 128

type options struct {
	statistics bool
	polar      bool
	maxGrowth  int
	logger     *slog.Logger
}

func loadOptions(opts ...Option) options {
	o := options{
		maxGrowth: defaultMaxGrowth,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

type Option interface {
	apply(*options)
}

type statisticsOption bool

func (s statisticsOption) apply(o *options) { o.statistics = bool(s) }

// WithStatistics makes every node aggregate x, y and z of its subtree.
func WithStatistics() Option {
	return statisticsOption(true)
}

type polarOption bool

func (p polarOption) apply(o *options) { o.polar = bool(p) }

// WithPolar switches distances to great-circle metres, x is longitude and
// y is latitude in degrees.
func WithPolar() Option {
	return polarOption(true)
}

type maxGrowth int

func (m maxGrowth) apply(o *options) { o.maxGrowth = int(m) }

// WithMaxGrowth caps how many times the root may double to reach a single
// point. Default: 128
func WithMaxGrowth(steps int) Option {
	return maxGrowth(steps)
}

type loggerOption struct{ l *slog.Logger }

func (l loggerOption) apply(o *options) {
	if l.l != nil {
		o.logger = l.l
	}
}

func WithLogger(logger *slog.Logger) Option {
	return loggerOption{l: logger}
}
