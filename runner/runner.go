// Package runner orchestrates the stream-pipelined element-wise sum. For
// each partition of the input it enqueues transfer-in, compute, and
// transfer-out on that partition's own stream, so one partition's
// device-to-host copy overlaps the next partition's host-to-device copy and
// kernel. The host thread only enqueues; the single synchronization point is
// the end-of-pipeline tag.
package runner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/vecstream/device"
	"github.com/notargets/vecstream/partitions"
)

// Defaults for unspecified tuning parameters.
const (
	DefaultBlockSize = 512
	DefaultNStreams  = 1
)

// Config carries the pipeline tuning parameters.
type Config struct {
	// N is the total element count. Required, positive.
	N int

	// BlockSize is the compute-unit grouping per launch. Defaults to 512.
	BlockSize int

	// NStreams is the pipeline depth. Defaults to 1, which degenerates to
	// no overlap.
	NStreams int

	// Logger receives enqueue/drain debug tracing. Nil means no logging.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.NStreams == 0 {
		c.NStreams = DefaultNStreams
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

func (c Config) validate() error {
	if c.N < 1 {
		return fmt.Errorf("config: N must be positive, got %d", c.N)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("config: BlockSize must be positive, got %d", c.BlockSize)
	}
	if c.NStreams < 1 {
		return fmt.Errorf("config: NStreams must be positive, got %d", c.NStreams)
	}
	return nil
}

// Runner owns the streams and partition plan for one pipeline
// configuration. It may execute Run any number of times.
type Runner struct {
	Device *device.Device

	cfg     Config
	parts   []partitions.Partition
	streams []*device.Stream
	logger  *zap.Logger
}

// NewRunner validates the configuration, plans the partitions, and creates
// one stream per partition.
func NewRunner(dev *device.Device, cfg Config) (*Runner, error) {
	if dev == nil {
		panic("runner: nil device")
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		Device: dev,
		cfg:    cfg,
		parts:  partitions.Plan(cfg.N, cfg.NStreams),
		logger: cfg.Logger,
	}
	r.streams = make([]*device.Stream, cfg.NStreams)
	for i := range r.streams {
		r.streams[i] = dev.CreateStream()
	}
	return r, nil
}

// Config returns the effective configuration after defaulting.
func (r *Runner) Config() Config { return r.cfg }

// Partitions returns a copy of the partition plan.
func (r *Runner) Partitions() []partitions.Partition {
	out := make([]partitions.Partition, len(r.parts))
	copy(out, r.parts)
	return out
}

// Free drains and destroys the runner's streams. The runner must not be
// used afterwards.
func (r *Runner) Free() {
	for _, s := range r.streams {
		r.Device.DestroyStream(s)
	}
	r.streams = nil
}
