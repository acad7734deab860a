package workload

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xtree/lib/infra"
	"github.com/benz9527/xtree/xlog"
)

type counters struct {
	scenarios atomic.Int64
	steps     atomic.Int64
	moves     atomic.Int64
	forks     atomic.Int64
	regrows   atomic.Int64
	rejected  atomic.Int64
}

func (c *counters) report() Report {
	return Report{
		Scenarios: c.scenarios.Load(),
		Steps:     c.steps.Load(),
		Moves:     c.moves.Load(),
		Forks:     c.forks.Load(),
		Regrows:   c.regrows.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// Report counts what a run did. Scenarios holds only the completed ones.
type Report struct {
	Scenarios int64
	Steps     int64
	Moves     int64
	Forks     int64
	Regrows   int64
	Rejected  int64
}

func (r Report) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("scenarios", r.Scenarios),
		zap.Int64("steps", r.Steps),
		zap.Int64("moves", r.Moves),
		zap.Int64("forks", r.Forks),
		zap.Int64("regrows", r.Regrows),
		zap.Int64("rejected", r.Rejected),
	}
}

// Runner drives independent tree scenarios on a bounded worker pool.
// Every scenario builds and mutates its own tree, trees are never shared
// between goroutines.
type Runner struct {
	opt   *runnerOption
	gPool *ants.Pool
}

func NewRunner(opts ...RunnerOption) (*Runner, error) {
	opt := &runnerOption{
		scenarios: defaultScenarios,
		workers:   defaultWorkers,
		depth:     defaultDepth,
		steps:     defaultSteps,
	}
	for _, o := range opts {
		if o != nil {
			o(opt)
		}
	}
	opt.Validate()

	p, err := ants.NewPool(
		opt.getWorkers(),
		ants.WithPreAlloc(true),
		ants.WithLogger(xlog.NewAntsXLogger(opt.getLogger())),
		ants.WithPanicHandler(func(i any) {
			opt.getLogger().Logf(zap.ErrorLevel, "workload scenario panic: %v", i)
		}),
	)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "workload pool")
	}
	return &Runner{
		opt:   opt,
		gPool: p,
	}, nil
}

// Run executes all scenarios and waits for them. Errors from every failed
// scenario are combined. A cancelled context stops further submissions and
// the running scenarios at their next step.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	var (
		stats  = &counters{}
		lock   sync.Mutex
		merged error
		wg     sync.WaitGroup
		logger = r.opt.getLogger()
	)
	collect := func(err error) {
		lock.Lock()
		defer lock.Unlock()
		merged = multierr.Append(merged, err)
	}

	for id := 0; id < r.opt.getScenarios(); id++ {
		if err := ctx.Err(); err != nil {
			collect(infra.WrapErrorStackWithMessage(err, "workload submission"))
			break
		}
		scn := newScenario(id, r.opt.getSeed(), logger, stats)
		wg.Add(1)
		err := r.gPool.Submit(func() {
			defer wg.Done()
			if err := scn.run(ctx, r.opt.getDepth(), r.opt.getSteps()); err != nil {
				logger.ErrorStack(err, "workload scenario failed", zap.Int("scenario", scn.id))
				collect(err)
			}
		})
		if err != nil {
			wg.Done()
			collect(infra.WrapErrorStackWithMessage(err, fmt.Sprintf("submit scenario %d", id)))
			break
		}
	}
	wg.Wait()

	report := stats.report()
	logger.Info("workload finished", report.fields()...)
	return report, merged
}

func (r *Runner) Release() {
	if r == nil || r.gPool == nil {
		return
	}
	r.gPool.Release()
}
