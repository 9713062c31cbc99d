// Command vecstream runs the stream-pipelined vector add end to end:
// generates test data, executes the overlap pipeline over a number of
// trials, validates the result against the sequential reference, and reports
// device-measured timing statistics and effective bandwidth.
package main

import (
	"flag"
	"math/rand"
	"os"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/vecstream/device"
	"github.com/notargets/vecstream/runner"
	"github.com/notargets/vecstream/utils"
)

// settings carries the tuning parameters. Environment variables
// (VECSTREAM_*) provide defaults; flags override.
type settings struct {
	N         int   `envconfig:"N" default:"16777217"` // 2^24 + 1
	BlockSize int   `envconfig:"BLOCK_SIZE" default:"512"`
	NStreams  int   `envconfig:"NSTREAMS" default:"4"`
	Trials    int   `envconfig:"TRIALS" default:"5"`
	Seed      int64 `envconfig:"SEED" default:"1"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg settings
	if err := envconfig.Process("vecstream", &cfg); err != nil {
		logger.Fatal("reading environment", zap.Error(err))
	}
	flag.IntVar(&cfg.N, "n", cfg.N, "total element count")
	flag.IntVar(&cfg.BlockSize, "block", cfg.BlockSize, "compute-unit grouping per launch")
	flag.IntVar(&cfg.NStreams, "streams", cfg.NStreams, "pipeline depth")
	flag.IntVar(&cfg.Trials, "trials", cfg.Trials, "timed pipeline runs")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "test data seed")
	flag.Parse()

	logger = logger.With(zap.String("run_id", uuid.NewString()))

	dev := device.New(device.Config{})
	defer dev.Free()

	logger.Info("device",
		zap.String("mode", dev.Mode()),
		zap.Int64("mem_bytes", dev.MemBytes()),
		zap.Int64("pinned_limit_bytes", dev.PinnedLimitBytes()))

	rng := rand.New(rand.NewSource(cfg.Seed))
	in1 := make([]int32, cfg.N)
	in2 := make([]int32, cfg.N)
	out := make([]int32, cfg.N)
	for i := 0; i < cfg.N; i++ {
		in1[i] = rng.Int31n(1 << 30)
		in2[i] = rng.Int31n(1 << 30)
	}

	r, err := runner.NewRunner(dev, runner.Config{
		N:         cfg.N,
		BlockSize: cfg.BlockSize,
		NStreams:  cfg.NStreams,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("configuring pipeline", zap.Error(err))
	}
	defer r.Free()

	logger.Info("pipeline",
		zap.Int("n", cfg.N),
		zap.Int("block_size", cfg.BlockSize),
		zap.Int("n_streams", cfg.NStreams),
		zap.Int("trials", cfg.Trials))

	samples := make([]float64, 0, cfg.Trials)
	for trial := 0; trial < cfg.Trials; trial++ {
		elapsed, err := r.Run(in1, in2, out)
		if err != nil {
			logger.Fatal("pipeline aborted", zap.Int("trial", trial), zap.Error(err))
		}
		samples = append(samples, elapsed)
		logger.Info("trial complete",
			zap.Int("trial", trial),
			zap.Float64("elapsed_ms", elapsed))
	}

	if err := utils.VerifySum(in1, in2, out); err != nil {
		logger.Error("validation failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("validation passed")

	mean := stat.Mean(samples, nil)
	stddev := stat.StdDev(samples, nil)
	movedBytes := 3 * float64(cfg.N) * 4 // two inputs in, one output back
	logger.Info("timing",
		zap.Float64("mean_ms", mean),
		zap.Float64("stddev_ms", stddev),
		zap.Float64("bandwidth_gb_s", movedBytes/(mean/1e3)/1e9))
}
