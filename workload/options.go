package workload

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/benz9527/xtree/xlog"
)

const (
	defaultScenarios = 8
	defaultWorkers   = 4
	defaultDepth     = 4
	defaultSteps     = 64
	maxDepth         = 16
)

type runnerOption struct {
	logger         xlog.XLogger
	seed           uint64
	scenarios      int
	workers        int
	depth          int
	steps          int
	isValueChecked *atomic.Bool
}

func (opt *runnerOption) checked() {
	if opt.isValueChecked == nil || !opt.isValueChecked.Load() {
		panic("value unchecked")
	}
}

func (opt *runnerOption) getScenarios() int {
	opt.checked()
	return opt.scenarios
}

func (opt *runnerOption) getWorkers() int {
	opt.checked()
	return opt.workers
}

func (opt *runnerOption) getDepth() int {
	opt.checked()
	return opt.depth
}

func (opt *runnerOption) getSteps() int {
	opt.checked()
	return opt.steps
}

func (opt *runnerOption) getSeed() uint64 {
	opt.checked()
	return opt.seed
}

func (opt *runnerOption) getLogger() xlog.XLogger {
	opt.checked()
	return opt.logger
}

func (opt *runnerOption) Validate() {
	opt.isValueChecked = &atomic.Bool{}
	if opt.scenarios <= 0 {
		opt.scenarios = defaultScenarios
	}
	if opt.workers <= 0 {
		opt.workers = defaultWorkers
	}
	if opt.workers > opt.scenarios {
		slog.Warn("[workload options] adjust the workers", "from", opt.workers, "to", opt.scenarios)
		opt.workers = opt.scenarios
	}
	if opt.depth <= 0 {
		opt.depth = defaultDepth
	}
	if opt.steps < 0 {
		opt.steps = defaultSteps
	}
	if opt.logger == nil {
		opt.logger = xlog.NewXLogger(xlog.WithXLoggerLevel(xlog.LogLevelInfo))
	}
	opt.isValueChecked.Store(true)
}

type RunnerOption func(opt *runnerOption)

func WithScenarios(n int) RunnerOption {
	return func(opt *runnerOption) {
		if n <= 0 {
			panic("workload scenarios must be greater than 0")
		}
		opt.scenarios = n
	}
}

func WithWorkers(n int) RunnerOption {
	return func(opt *runnerOption) {
		if n <= 0 {
			panic("workload workers must be greater than 0")
		}
		opt.workers = n
	}
}

func WithDepth(depth int) RunnerOption {
	return func(opt *runnerOption) {
		if depth <= 0 || depth > maxDepth {
			panic(fmt.Sprintf("workload tree depth must be in [1, %d]", maxDepth))
		}
		opt.depth = depth
	}
}

func WithSteps(steps int) RunnerOption {
	return func(opt *runnerOption) {
		if steps < 0 {
			panic("workload steps must not be negative")
		}
		opt.steps = steps
	}
}

func WithSeed(seed uint64) RunnerOption {
	return func(opt *runnerOption) {
		opt.seed = seed
	}
}

func WithLogger(logger xlog.XLogger) RunnerOption {
	return func(opt *runnerOption) {
		opt.logger = logger
	}
}
