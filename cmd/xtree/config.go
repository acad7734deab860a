package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/benz9527/xtree/observability"
	"github.com/benz9527/xtree/workload"
)

const (
	envScenarios = "XTREE_SCENARIOS"
	envWorkers   = "XTREE_WORKERS"
	envDepth     = "XTREE_DEPTH"
	envSteps     = "XTREE_STEPS"
	envSeed      = "XTREE_SEED"
	envMetrics   = "XTREE_METRICS"
	envAddr      = "XTREE_METRICS_ADDR"
	envLinger    = "XTREE_METRICS_LINGER"

	defaultMetricsInterval = 5 * time.Second
	defaultMetricsAddr     = ":2112"
)

// config is read from the environment. Unset variables keep the runner
// defaults.
type config struct {
	scenarios int
	workers   int
	depth     int
	steps     int
	hasSteps  bool
	seed      uint64
	metrics   observability.ExporterKind
	// prometheus only
	metricsAddr string
	// how long the process stays up after the run so the last values can
	// be scraped
	linger time.Duration
}

func parseInt(getenv func(string) string, key string, min int) (int, bool, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	if v < min {
		return 0, false, fmt.Errorf("%s: %d is less than %d", key, v, min)
	}
	return v, true, nil
}

func loadConfig(getenv func(string) string) (*config, error) {
	cfg := &config{}
	var err, merr error
	cfg.scenarios, _, err = parseInt(getenv, envScenarios, 1)
	merr = multierr.Append(merr, err)
	cfg.workers, _, err = parseInt(getenv, envWorkers, 1)
	merr = multierr.Append(merr, err)
	cfg.depth, _, err = parseInt(getenv, envDepth, 1)
	merr = multierr.Append(merr, err)
	cfg.steps, cfg.hasSteps, err = parseInt(getenv, envSteps, 0)
	merr = multierr.Append(merr, err)

	if raw := strings.TrimSpace(getenv(envSeed)); raw != "" {
		cfg.seed, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			merr = multierr.Append(merr, fmt.Errorf("%s: %w", envSeed, err))
		}
	} else {
		cfg.seed = uint64(time.Now().UnixNano())
	}

	cfg.metrics, err = observability.ParseExporterKind(getenv(envMetrics))
	merr = multierr.Append(merr, err)
	if cfg.metricsAddr = strings.TrimSpace(getenv(envAddr)); cfg.metricsAddr == "" {
		cfg.metricsAddr = defaultMetricsAddr
	}
	if raw := strings.TrimSpace(getenv(envLinger)); raw != "" {
		cfg.linger, err = time.ParseDuration(raw)
		if err == nil && cfg.linger < 0 {
			err = fmt.Errorf("%s: negative duration %s", envLinger, raw)
		} else if err != nil {
			err = fmt.Errorf("%s: %w", envLinger, err)
		}
		merr = multierr.Append(merr, err)
	}
	if merr != nil {
		return nil, merr
	}
	return cfg, nil
}

func (cfg *config) runnerOptions() []workload.RunnerOption {
	opts := []workload.RunnerOption{workload.WithSeed(cfg.seed)}
	if cfg.scenarios > 0 {
		opts = append(opts, workload.WithScenarios(cfg.scenarios))
	}
	if cfg.workers > 0 {
		opts = append(opts, workload.WithWorkers(cfg.workers))
	}
	if cfg.depth > 0 {
		opts = append(opts, workload.WithDepth(cfg.depth))
	}
	if cfg.hasSteps {
		opts = append(opts, workload.WithSteps(cfg.steps))
	}
	return opts
}
